package apperrors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorChain(t *testing.T) {
	ErrBase := New("base error")
	assert.Equal(t, "base error", ErrBase.Error())
	assert.ErrorIs(t, ErrBase, ErrBase)

	ErrChild := ErrBase.New("child")
	assert.Equal(t, "child", ErrChild.Error())
	assert.ErrorIs(t, ErrChild, ErrBase)

	cause := errors.New("db down")
	wrapped := ErrChild.Err(cause)
	assert.Equal(t, "child", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrBase)
	assert.ErrorIs(t, wrapped, cause)

	wrapped = ErrChild.MsgErr("could not load", cause)
	assert.Equal(t, "could not load", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrChild)
	assert.ErrorIs(t, wrapped, cause)
}

func TestStatusCodePropagation(t *testing.T) {
	ErrBase := New("base").SetStatusCode(http.StatusInternalServerError)
	ErrNotFound := ErrBase.New("missing").SetStatusCode(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, ErrNotFound.StatusCode())

	// Msg must not disturb the sentinel it derives from.
	detailed := ErrNotFound.Msg("resource 42 missing")
	assert.Equal(t, http.StatusNotFound, detailed.StatusCode())
	assert.Equal(t, http.StatusNotFound, ErrNotFound.StatusCode())
	assert.ErrorIs(t, detailed, ErrNotFound)
}
