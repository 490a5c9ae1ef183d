package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/client/apiclient"
	"github.com/apporbit/apporbit/client/tokenstore"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/eventbus"
	"github.com/apporbit/apporbit/idp"
	"github.com/apporbit/apporbit/idp/fakeidp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	idp     *fakeidp.FakeIDP
	tokens  tokenstore.Store
	client  *apiclient.Client
	session *Session

	mu        sync.Mutex
	exchanges int
	failWith  int // When non-zero, the jwt endpoint fails with this status.
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		idp:    fakeidp.New(fakeidp.WithHasher(fakeidp.TestHasher)),
		tokens: tokenstore.Memory(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/jwt", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.exchanges++
		n := f.exchanges
		fail := f.failWith
		f.mu.Unlock()

		if fail != 0 {
			w.WriteHeader(fail)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "exchange refused"})
			return
		}

		var req api.TokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if _, err := f.idp.Verify(r.Context(), req.Token); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "bad id token"})
			return
		}
		json.NewEncoder(w).Encode(api.TokenResponse{Token: "app-token-" + req.Email + "-" + itoa(n)})
	})
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer valid" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	var err error
	f.client, err = apiclient.New(ts.URL, f.tokens)
	require.NoError(t, err)

	f.session = New(f.idp, f.tokens, f.client, opts...)

	_, err = f.idp.Register("ada@example.com", "pw", "Ada", "")
	require.NoError(t, err)
	return f
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func TestStart_NoProviderSession(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, StateInitializing, f.session.State())
	assert.True(t, f.session.Loading())

	f.session.Start(t.Context())

	assert.Equal(t, StateSignedOut, f.session.State())
	assert.False(t, f.session.Loading())
	_, ok := f.session.Identity()
	assert.False(t, ok)
}

func TestStart_RestoresProviderSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.idp.SignIn(t.Context(), "ada@example.com", "pw")
	require.NoError(t, err)

	f.session.Start(t.Context())

	assert.Equal(t, StateSignedIn, f.session.State())
	id, ok := f.session.Identity()
	assert.True(t, ok)
	assert.Equal(t, "ada@example.com", id.Email)
	_, ok = f.tokens.Get()
	assert.True(t, ok)
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())

	var snaps []Snapshot
	f.session.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	require.NoError(t, f.session.SignIn(t.Context(), "ada@example.com", "pw"))

	assert.Equal(t, StateSignedIn, f.session.State())
	token, ok := f.tokens.Get()
	assert.True(t, ok)
	assert.NotEmpty(t, token)
	require.Len(t, snaps, 1)
	assert.Equal(t, StateSignedIn, snaps[0].State)
	assert.Equal(t, "ada@example.com", snaps[0].Identity.Email)
}

func TestSignIn_BadPassword(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())

	err := f.session.SignIn(t.Context(), "ada@example.com", "nope")
	require.Error(t, err)

	assert.Equal(t, StateSignedOut, f.session.State())
	_, ok := f.tokens.Get()
	assert.False(t, ok)
}

func TestSignIn_ExchangeFailure(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())
	f.failWith = http.StatusInternalServerError

	err := f.session.SignIn(t.Context(), "ada@example.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthExchange)

	// The session is stable at SignedOut and the provider session is gone
	// too, so the two systems agree.
	assert.Equal(t, StateSignedOut, f.session.State())
	_, ok := f.tokens.Get()
	assert.False(t, ok)
	_, ok = f.idp.CurrentCredential(t.Context())
	assert.False(t, ok)
}

func TestSignInWithGoogle(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())
	f.idp.FederatedAccount = "ada@example.com"

	require.NoError(t, f.session.SignInWithGoogle(t.Context()))
	assert.Equal(t, StateSignedIn, f.session.State())
}

func TestSignInWithToken(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())

	cred, err := f.idp.SignIn(t.Context(), "ada@example.com", "pw")
	require.NoError(t, err)

	require.NoError(t, f.session.SignInWithToken(t.Context(), cred.IDToken))
	assert.Equal(t, StateSignedIn, f.session.State())
}

func TestReLoginReplacesToken(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())

	require.NoError(t, f.session.SignIn(t.Context(), "ada@example.com", "pw"))
	first, _ := f.tokens.Get()

	require.NoError(t, f.session.SignOut(t.Context()))
	_, ok := f.tokens.Get()
	assert.False(t, ok, "sign-out leaves an empty token store")

	require.NoError(t, f.session.SignIn(t.Context(), "ada@example.com", "pw"))
	second, ok := f.tokens.Get()
	assert.True(t, ok)
	assert.NotEqual(t, first, second)
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())
	require.NoError(t, f.session.SignIn(t.Context(), "ada@example.com", "pw"))

	require.NoError(t, f.session.SignOut(t.Context()))

	assert.Equal(t, StateSignedOut, f.session.State())
	_, ok := f.session.Identity()
	assert.False(t, ok)
	_, ok = f.tokens.Get()
	assert.False(t, ok)
	_, ok = f.idp.CurrentCredential(t.Context())
	assert.False(t, ok)
}

func TestForceSignOut_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())
	require.NoError(t, f.session.SignIn(t.Context(), "ada@example.com", "pw"))

	var notifications int
	f.session.Subscribe(func(s Snapshot) { notifications++ })

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.session.ForceSignOut("token expired")
		}()
	}
	wg.Wait()

	assert.Equal(t, StateSignedOut, f.session.State())
	assert.Equal(t, 1, notifications, "concurrent forced sign-outs collapse to one transition")
	_, ok := f.tokens.Get()
	assert.False(t, ok)
}

func TestUnauthorizedResponseForcesSignOut(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())
	require.NoError(t, f.session.SignIn(t.Context(), "ada@example.com", "pw"))

	// The stored token is not "valid", so the products endpoint rejects it.
	err := f.client.Get(t.Context(), "/products", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, errors.HTTPStatusCode(err))

	assert.Equal(t, StateSignedOut, f.session.State())
	_, ok := f.tokens.Get()
	assert.False(t, ok)
}

func TestForceSignOutPublishesEvent(t *testing.T) {
	bus := eventbus.NewBus(t.Context())
	f := newFixture(t, WithEventBus(bus))
	f.session.Start(t.Context())
	require.NoError(t, f.session.SignIn(t.Context(), "ada@example.com", "pw"))

	var mu sync.Mutex
	var got []Invalidated
	bus.Subscribe(TopicInvalidated, func(ctx context.Context, msg *eventbus.Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg.Data.(Invalidated))
		return nil
	})

	f.session.ForceSignOut("token expired")
	require.NoError(t, bus.Wait(t.Context(), time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, Invalidated{Reason: "token expired", Email: "ada@example.com"}, got[0])
}

// asyncProvider reports no credential until restoration completes and then
// notifies listeners, the way browser SDK providers behave.
type asyncProvider struct {
	*fakeidp.FakeIDP

	mu       sync.Mutex
	restored bool
}

func (p *asyncProvider) CurrentCredential(ctx context.Context) (idp.Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.restored {
		return idp.Credential{}, false
	}
	return p.FakeIDP.CurrentCredential(ctx)
}

func (p *asyncProvider) restore(ctx context.Context, email, password string) error {
	p.mu.Lock()
	p.restored = true
	p.mu.Unlock()
	_, err := p.FakeIDP.SignIn(ctx, email, password)
	return err
}

func TestStart_AsyncProviderRestore(t *testing.T) {
	f := newFixture(t)
	provider := &asyncProvider{FakeIDP: f.idp}
	sess := New(provider, f.tokens, f.client)

	// At Start the provider hasn't finished restoring, so the session
	// settles at SignedOut.
	sess.Start(t.Context())
	assert.Equal(t, StateSignedOut, sess.State())

	// When restoration completes the provider reports the signed-in user and
	// the session exchanges the credential for a token.
	require.NoError(t, provider.restore(t.Context(), "ada@example.com", "pw"))

	assert.Equal(t, StateSignedIn, sess.State())
	id, ok := sess.Identity()
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", id.Email)
	_, ok = f.tokens.Get()
	assert.True(t, ok, "restored session has a bearer token")
}

func TestSignIn_ProviderEchoNotReexchanged(t *testing.T) {
	f := newFixture(t)
	f.session.Start(t.Context())
	require.NoError(t, f.session.SignIn(t.Context(), "ada@example.com", "pw"))

	f.mu.Lock()
	n := f.exchanges
	f.mu.Unlock()
	assert.Equal(t, 1, n, "the provider's echo of our own sign-in is not exchanged again")
}
