package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("Resource {{name}} (#{{id}}) changed at {{timestamp}}", map[string]interface{}{
		"id":        "7",
		"name":      "Printer A",
		"timestamp": "2026-08-29T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "Resource Printer A (#7) changed at 2026-08-29T10:00:00Z", out)
}

func TestRenderMissingKey(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("hello {{missing}}!", map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "hello !", out)
}

func TestRenderParseError(t *testing.T) {
	r := NewRenderer()
	_, err := r.Render("{{#if}}broken", nil)
	assert.Error(t, err)
}

func TestRenderCachesCompiledTemplates(t *testing.T) {
	r := NewRenderer()
	src := "{{name}}"
	_, err := r.Render(src, map[string]interface{}{"name": "a"})
	require.NoError(t, err)
	_, err = r.Render(src, map[string]interface{}{"name": "b"})
	require.NoError(t, err)
	assert.Len(t, r.cache, 1)
}

func TestHasMarkers(t *testing.T) {
	assert.True(t, HasMarkers("makerspace/{{id}}/status"))
	assert.False(t, HasMarkers("makerspace/laser/status"))
	assert.False(t, HasMarkers(""))
}
