// Package roles resolves a signed-in user's authorization role from the
// backend. Resolution is deliberately fail-safe: any problem fetching or
// decoding the role degrades to the ordinary user role, never to an error
// and never to elevated access.
package roles

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/apporbit/apporbit"
	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/client/apiclient"
	"github.com/apporbit/apporbit/client/session"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/logging"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxAge sets how long a fetched role may be served from cache. Zero
// means every Resolve call refetches, matching the freshness the moderation
// UI expects. Longer ages trade staleness for fewer requests.
func WithMaxAge(d time.Duration) Option {
	return func(r *Resolver) {
		r.maxAge = d
	}
}

// NewResolver returns a Resolver backed by the given API client. The cache
// max age defaults to the client.roleMaxAge config value.
func NewResolver(client *apiclient.Client, opts ...Option) *Resolver {
	r := &Resolver{
		client: client,
		maxAge: apporbit.Config.Duration("client.roleMaxAge"),
		cache:  map[string]cacheEntry{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type cacheEntry struct {
	role      api.Role
	fetchedAt time.Time
}

// Resolver fetches and caches per-email roles. Safe for concurrent use.
type Resolver struct {
	client *apiclient.Client
	maxAge time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time // Stubbed in tests.
}

// Resolve returns the role for email. Absent email, a missing user record,
// or any fetch failure resolve to RoleUser.
func (r *Resolver) Resolve(ctx context.Context, email string) (role api.Role) {
	defer func() {
		// A panicking decoder or listener must not take down the caller.
		if p := recover(); p != nil {
			logging.Errorw(ctx, "roles: recovered from panic", "error", p)
			role = api.RoleUser
		}
	}()

	if email == "" {
		return api.RoleUser
	}

	if role, ok := r.cached(email); ok {
		return role
	}

	var resp api.RoleResponse
	err := r.client.Get(ctx, "/users/role/"+url.PathEscape(email), &resp)
	if err != nil {
		logging.Debugw(ctx, "roles: fetch failed, defaulting to user",
			"email", email, "http_status", errors.HTTPStatusCode(err))
		return api.RoleUser
	}
	role = resp.Role
	if !role.Valid() {
		logging.Warnw(ctx, "roles: unknown role in response, defaulting to user", "role", role)
		role = api.RoleUser
	}

	r.mu.Lock()
	r.cache[email] = cacheEntry{role: role, fetchedAt: r.now()}
	r.mu.Unlock()
	return role
}

// Reset drops all cached roles.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[string]cacheEntry{}
}

// Watch resets the cache on every session transition, so a user signing in
// or out never sees roles resolved for a previous identity. Returns the
// subscription's cancel function.
func (r *Resolver) Watch(s *session.Session) (cancel func()) {
	return s.Subscribe(func(session.Snapshot) {
		r.Reset()
	})
}

func (r *Resolver) cached(email string) (api.Role, bool) {
	if r.maxAge <= 0 {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[email]
	if !ok || r.now().Sub(entry.fetchedAt) > r.maxAge {
		return "", false
	}
	return entry.role, true
}
