// Package apiclient provides the authenticated HTTP client the SDK uses to
// talk to the AppOrbit backend. A round tripper attaches the bearer token
// from the token store; JSON helpers decode responses and map failures to
// coded errors.
//
// When the backend answers 401 or 403 the client emits an Unauthorized
// event to its registered listener and still returns the error to the
// caller. The transport never performs logout or navigation itself; the
// session store listens for the event and reacts.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/client/tokenstore"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/logging"
)

// ErrUnauthorized is the base error for 401 and 403 responses.
var ErrUnauthorized = errors.NewC("request was not authorized", http.StatusUnauthorized)

// Unauthorized describes a 401/403 response, delivered to the listener
// registered with SetUnauthorizedListener.
type Unauthorized struct {
	Status int
	Method string
	Path   string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// by the authorizing round tripper.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the API at baseURL. Tokens, when present in the
// store, are attached to every request.
func New(baseURL string, tokens tokenstore.Store, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Codef(http.StatusBadRequest, "apiclient: invalid base url %q", baseURL)
	}

	c := &Client{
		base:   base,
		tokens: tokens,
		http:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = &http.Client{
		Transport: &authTransport{
			tokens: tokens,
			next:   transportOf(c.http),
			emit:   c.emitUnauthorized,
		},
		CheckRedirect: c.http.CheckRedirect,
		Jar:           c.http.Jar,
		Timeout:       c.http.Timeout,
	}
	return c, nil
}

func transportOf(hc *http.Client) http.RoundTripper {
	if hc.Transport != nil {
		return hc.Transport
	}
	return http.DefaultTransport
}

// Client is an authenticated JSON API client. It is safe for concurrent
// use.
type Client struct {
	base   *url.URL
	tokens tokenstore.Store
	http   *http.Client

	listener atomic.Pointer[func(Unauthorized)]
}

// SetUnauthorizedListener registers the single listener notified of 401/403
// responses. Registering again replaces the previous listener.
func (c *Client) SetUnauthorizedListener(fn func(Unauthorized)) {
	c.listener.Store(&fn)
}

// HTTPClient returns the underlying client with the authorizing transport,
// for requests the JSON helpers don't cover.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Get issues a GET and decodes the response into out. Pass nil to discard
// the body.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH with a JSON body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	u := c.base.JoinPath(path)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.WrapPrefix(err, "apiclient: encoding request", 0)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Codef(http.StatusServiceUnavailable, "apiclient: %s %s: %s", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.responseError(resp, method, path)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapPrefix(err, "apiclient: decoding response", 0)
	}
	return nil
}

// responseError maps a non-2xx response to a coded error, preserving the
// server's error message when the body carries one.
func (c *Client) responseError(resp *http.Response, method, path string) error {
	msg := http.StatusText(resp.StatusCode)
	var body api.ErrorResponse
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			msg = body.Error
		}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.Mark(ErrUnauthorized, 1).
			WithHTTPStatusCode(resp.StatusCode).
			WithPublicMessage(msg)
	}
	return errors.Codef(resp.StatusCode, "apiclient: %s %s: %s", method, path, msg).
		WithPublicMessage(msg)
}

func (c *Client) emitUnauthorized(ev Unauthorized) {
	if fn := c.listener.Load(); fn != nil {
		(*fn)(ev)
	}
}

// authTransport attaches the bearer token and watches for auth failures.
type authTransport struct {
	tokens tokenstore.Store
	next   http.RoundTripper
	emit   func(Unauthorized)
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if token, ok := t.tokens.Get(); ok && req.Header.Get("Authorization") == "" {
		// Clone so retries and concurrent use never see a mutated request.
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		logging.Warnw(req.Context(), "apiclient: request not authorized",
			"http_status", resp.StatusCode, "method", req.Method, "path", req.URL.Path)
		t.emit(Unauthorized{
			Status: resp.StatusCode,
			Method: req.Method,
			Path:   strings.TrimSuffix(req.URL.Path, "/"),
		})
	}
	return resp, nil
}
