package server_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/client/apiclient"
	"github.com/apporbit/apporbit/client/guards"
	"github.com/apporbit/apporbit/client/roles"
	"github.com/apporbit/apporbit/client/session"
	"github.com/apporbit/apporbit/client/tokenstore"
	"github.com/apporbit/apporbit/idp/fakeidp"
	"github.com/apporbit/apporbit/server"
	"github.com/apporbit/apporbit/storage"
	"github.com/apporbit/apporbit/storage/memorystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run the client SDK against the real server rather than a stub,
// covering the whole exchange: IdP credential → bearer token → role-gated
// requests → forced sign-out when the backend stops honoring the token.

type stack struct {
	idp      *fakeidp.FakeIDP
	store    storage.Store
	tokens   tokenstore.Store
	client   *apiclient.Client
	session  *session.Session
	resolver *roles.Resolver
}

func newStack(t *testing.T) *stack {
	t.Helper()
	s := &stack{
		idp:    fakeidp.New(fakeidp.WithHasher(fakeidp.TestHasher)),
		store:  memorystore.New(),
		tokens: tokenstore.Memory(),
	}

	srv := server.New(s.store, s.idp,
		server.WithSigningKey([]byte("integration-key")),
		server.WithTokenExpiry(time.Hour),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := apiclient.New(ts.URL, s.tokens)
	require.NoError(t, err)
	s.client = client
	s.session = session.New(s.idp, s.tokens, client)
	s.resolver = roles.NewResolver(client)

	_, err = s.idp.Register("ada@example.com", "pw", "Ada", "")
	require.NoError(t, err)
	return s
}

func (s *stack) promote(t *testing.T, email string, role api.Role) {
	t.Helper()
	var user api.User
	require.NoError(t, s.store.Read(email, &user))
	user.Role = role
	require.NoError(t, s.store.Update(&user))
}

func TestEndToEnd_SignInAndGuards(t *testing.T) {
	s := newStack(t)
	s.session.Start(t.Context())
	assert.Equal(t, session.StateSignedOut, s.session.State())

	require.NoError(t, s.session.SignIn(t.Context(), "ada@example.com", "pw"))
	assert.Equal(t, session.StateSignedIn, s.session.State())

	// The exchange registered the account server-side.
	var user api.User
	require.NoError(t, s.store.Read("ada@example.com", &user))
	assert.Equal(t, api.RoleUser, user.Role)

	// A fresh user is turned away from moderator views...
	guard := guards.RequireModerator(s.session, s.resolver)
	res := guard(t.Context(), "/dashboard/review-queue")
	assert.Equal(t, guards.Redirect, res.Decision)
	assert.Equal(t, guards.ModeratorOnlyMessage, res.Message)

	// ...and admitted once the backend says moderator.
	s.promote(t, "ada@example.com", api.RoleModerator)
	assert.Equal(t, guards.Admit, guard(t.Context(), "/dashboard/review-queue").Decision)
}

func TestEndToEnd_SessionRestore(t *testing.T) {
	s := newStack(t)
	s.session.Start(t.Context())
	require.NoError(t, s.session.SignIn(t.Context(), "ada@example.com", "pw"))

	// A second session over the same token store and provider restores
	// without a fresh exchange, like an app relaunch.
	restored := session.New(s.idp, s.tokens, s.client)
	restored.Start(t.Context())
	assert.Equal(t, session.StateSignedIn, restored.State())
	id, ok := restored.Identity()
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", id.Email)
}

func TestEndToEnd_ForcedSignOut(t *testing.T) {
	s := newStack(t)
	s.session.Start(t.Context())
	require.NoError(t, s.session.SignIn(t.Context(), "ada@example.com", "pw"))

	// Simulate the backend no longer honoring the stored token.
	s.tokens.Set("tampered")

	var resp api.VerifyResponse
	err := s.client.Get(t.Context(), "/api/auth/verify", &resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)

	// The rejected request forces the session out and clears the token.
	assert.Equal(t, session.StateSignedOut, s.session.State())
	_, ok := s.tokens.Get()
	assert.False(t, ok)
}

func TestEndToEnd_ModeratorWorkflow(t *testing.T) {
	s := newStack(t)
	s.session.Start(t.Context())
	require.NoError(t, s.session.SignIn(t.Context(), "ada@example.com", "pw"))
	s.promote(t, "ada@example.com", api.RoleModerator)

	// Seed a pending product from another account, then work the queue over
	// the authenticated client.
	require.NoError(t, s.store.Create(&api.Product{
		ID:         "p1",
		OwnerEmail: "someone@example.com",
		Name:       "Orbital CMS",
		Status:     api.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}))

	var queue []api.Product
	require.NoError(t, s.client.Get(t.Context(), "/products/review-queue", &queue))
	require.Len(t, queue, 1)

	var product api.Product
	require.NoError(t, s.client.Patch(t.Context(), "/products/p1/accept", nil, &product))
	assert.Equal(t, api.StatusAccepted, product.Status)

	var page api.ProductPage
	require.NoError(t, s.client.Get(t.Context(), "/api/products", &page))
	assert.Equal(t, 1, page.Total)
}
