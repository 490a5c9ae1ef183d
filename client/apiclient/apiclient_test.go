package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/apporbit/apporbit/client/tokenstore"
	"github.com/apporbit/apporbit/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, tokenstore.Store) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	tokens := tokenstore.Memory()
	c, err := New(ts.URL, tokens)
	require.NoError(t, err)
	return c, tokens
}

func TestBearerAttachedExactlyOnce(t *testing.T) {
	var auths []string
	c, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auths = r.Header.Values("Authorization")
		w.Write([]byte(`{}`))
	})

	tokens.Set("tok-123")
	require.NoError(t, c.Get(t.Context(), "/ping", nil))
	assert.Equal(t, []string{"Bearer tok-123"}, auths)
}

func TestNoTokenNoHeader(t *testing.T) {
	var auths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auths = r.Header.Values("Authorization")
		w.Write([]byte(`{}`))
	})

	require.NoError(t, c.Get(t.Context(), "/ping", nil))
	assert.Empty(t, auths)
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		json.NewEncoder(w).Encode(payload{Name: in.Name + "!"})
	})

	var out payload
	require.NoError(t, c.Post(t.Context(), "/echo", payload{Name: "hi"}, &out))
	assert.Equal(t, "hi!", out.Name)
}

func TestErrorMapping(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "product already exists"}`))
	})

	err := c.Post(t.Context(), "/products/add-product", map[string]string{}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, errors.HTTPStatusCode(err))
	assert.Equal(t, "product already exists", errors.PublicMessage(err))
}

func TestUnauthorizedEmitsEvent(t *testing.T) {
	c, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "token expired"}`))
	})
	tokens.Set("stale")

	var mu sync.Mutex
	var events []Unauthorized
	c.SetUnauthorizedListener(func(ev Unauthorized) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	err := c.Get(t.Context(), "/products", nil)
	require.Error(t, err, "the caller still sees the error")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, errors.HTTPStatusCode(err))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, Unauthorized{Status: 401, Method: "GET", Path: "/products"}, events[0])
}

func TestForbiddenEmitsEvent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	var events []Unauthorized
	c.SetUnauthorizedListener(func(ev Unauthorized) {
		events = append(events, ev)
	})

	err := c.Delete(t.Context(), "/products/admin-delete/p1", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, errors.HTTPStatusCode(err))
	require.Len(t, events, 1)
	assert.Equal(t, http.StatusForbidden, events[0].Status)
}

func TestNoListenerIsFine(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := c.Get(t.Context(), "/products", nil)
	require.Error(t, err)
}

func TestUnreachableServer(t *testing.T) {
	tokens := tokenstore.Memory()
	c, err := New("http://127.0.0.1:1", tokens)
	require.NoError(t, err)

	err = c.Get(t.Context(), "/ping", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, errors.HTTPStatusCode(err))
}

func TestInvalidBaseURL(t *testing.T) {
	_, err := New("not-a-url", tokenstore.Memory())
	require.Error(t, err)

	_, err = New("", tokenstore.Memory())
	require.Error(t, err)
}
