package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCarriesStatusCode(t *testing.T) {
	err := NewC("token is invalid", http.StatusUnauthorized)
	assert.Equal(t, "token is invalid", err.Error())
	assert.Equal(t, http.StatusUnauthorized, err.HTTPStatusCode())
	assert.Equal(t, http.StatusUnauthorized, HTTPStatusCode(err))
}

func TestDefaultStatusCode(t *testing.T) {
	err := New("boom")
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatusCode())

	assert.Equal(t, http.StatusOK, HTTPStatusCode(nil))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusCode(io.EOF))
}

func TestWrapPreservesIdentity(t *testing.T) {
	base := NewC("record not found", http.StatusNotFound)
	wrapped := WrapPrefix(base, "loading profile", 0)

	assert.Equal(t, "loading profile: record not found", wrapped.Error())
	assert.True(t, Is(wrapped, base))
	assert.Equal(t, http.StatusNotFound, HTTPStatusCode(wrapped))
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("plain: %w", io.ErrUnexpectedEOF), 0)
	assert.True(t, Is(wrapped, io.ErrUnexpectedEOF))
	assert.Equal(t, http.StatusInternalServerError, wrapped.HTTPStatusCode())
}

func TestWrapFollowsWrappedStatus(t *testing.T) {
	base := NewC("forbidden", http.StatusForbidden)
	wrapped := Wrap(fmt.Errorf("calling api: %w", base), 0)
	assert.Equal(t, http.StatusForbidden, wrapped.HTTPStatusCode())
}

func TestPublicMessage(t *testing.T) {
	err := NewC("pq: duplicate key value", http.StatusConflict).
		WithPublicMessage("That product already exists")

	assert.Equal(t, "That product already exists", PublicMessage(err))
	assert.Equal(t, "pq: duplicate key value", err.Error())

	// Errors without a public message must not leak internals.
	assert.Equal(t, "Internal Server Error", PublicMessage(New("sql: bad conn")))
}

func TestStackTrace(t *testing.T) {
	err := New("traced")
	frames := err.StackFrames()
	assert.NotEmpty(t, frames)
	assert.Contains(t, frames[0].Name, "TestStackTrace")
	assert.NotEmpty(t, err.MinimalStack(0, 3))
}

func TestMarkResetsStack(t *testing.T) {
	base := NewC("base", http.StatusBadRequest)
	marked := Mark(base, 0)

	assert.Equal(t, base.Error(), marked.Error())
	assert.Equal(t, http.StatusBadRequest, marked.HTTPStatusCode())
	assert.Contains(t, marked.StackFrames()[0].Name, "TestMarkResetsStack")
}

func TestErrorf(t *testing.T) {
	err := Errorf("upvote failed for %s", "prod-1")
	assert.Equal(t, "upvote failed for prod-1", err.Error())
}
