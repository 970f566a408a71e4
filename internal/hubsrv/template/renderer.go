// Package template renders notification bodies, topics, URLs and header
// values from Handlebars-style templates. Compiled templates are cached by
// exact source string; the cache is safe for concurrent use.
package template

import (
	"strings"
	"sync"

	"github.com/aymerick/raymond"
)

type Renderer struct {
	mu    sync.RWMutex
	cache map[string]*raymond.Template
}

func NewRenderer() *Renderer {
	return &Renderer{cache: make(map[string]*raymond.Template)}
}

// Render executes the template against ctx. Parse results are cached, so
// rendering the same source repeatedly compiles once.
func (r *Renderer) Render(source string, ctx any) (string, error) {
	tpl, err := r.compile(source)
	if err != nil {
		return "", err
	}
	return tpl.Exec(ctx)
}

func (r *Renderer) compile(source string) (*raymond.Template, error) {
	r.mu.RLock()
	tpl, ok := r.cache[source]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := raymond.Parse(source)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// Another goroutine may have compiled the same source meanwhile; keeping
	// either is fine.
	r.cache[source] = tpl
	r.mu.Unlock()
	return tpl, nil
}

// HasMarkers reports whether s contains template syntax. Topic and URL
// strings are only rendered when they do.
func HasMarkers(s string) bool {
	return strings.Contains(s, "{{")
}
