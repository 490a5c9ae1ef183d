// Package fakeidp provides an in-memory identity provider for tests and
// local development. It issues opaque ID tokens and implements both the
// Provider and Verifier interfaces so a client SDK and a backend under test
// can share one source of identity.
package fakeidp

import (
	"context"
	"sync"

	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/idp"
	"github.com/google/uuid"
)

// Option configures the provider.
type Option func(*FakeIDP)

// WithHasher overrides the password hasher. Use TestHasher to skip bcrypt
// work in tests.
func WithHasher(h Hasher) Option {
	return func(f *FakeIDP) {
		f.hasher = h
	}
}

// New returns an empty provider. Register accounts before signing in.
func New(opts ...Option) *FakeIDP {
	f := &FakeIDP{
		accounts:  map[string]*account{},
		tokens:    map[string]idp.Credential{},
		listeners: map[int]func(idp.Credential, bool){},
		hasher:    DefaultHasher,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type account struct {
	uid          string
	email        string
	name         string
	photo        string
	passwordHash []byte
}

// FakeIDP is an in-memory identity provider.
type FakeIDP struct {
	mu        sync.Mutex
	accounts  map[string]*account
	tokens    map[string]idp.Credential
	current   *idp.Credential
	listeners map[int]func(idp.Credential, bool)
	nextID    int
	hasher    Hasher

	// FederatedAccount, when set, is the account returned by
	// SignInFederated, simulating the user completing an SSO popup.
	FederatedAccount string
}

var (
	_ idp.Provider = &FakeIDP{}
	_ idp.Verifier = &FakeIDP{}
)

// Register creates an account. Returns the account's uid.
func (f *FakeIDP) Register(email, password, name, photo string) (string, error) {
	hash, err := f.hasher.Generate([]byte(password))
	if err != nil {
		return "", errors.Wrap(err, 0)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	uid := uuid.NewString()
	f.accounts[email] = &account{
		uid:          uid,
		email:        email,
		name:         name,
		photo:        photo,
		passwordHash: hash,
	}
	return uid, nil
}

// CurrentCredential returns the signed-in user, if any.
func (f *FakeIDP) CurrentCredential(ctx context.Context) (idp.Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return idp.Credential{}, false
	}
	return *f.current, true
}

// SignIn authenticates an email/password account.
func (f *FakeIDP) SignIn(ctx context.Context, email, password string) (idp.Credential, error) {
	f.mu.Lock()
	acct, ok := f.accounts[email]
	f.mu.Unlock()
	if !ok {
		return idp.Credential{}, errors.Mark(idp.ErrInvalidCredentials, 0)
	}
	if err := f.hasher.Compare(acct.passwordHash, []byte(password)); err != nil {
		return idp.Credential{}, errors.Mark(idp.ErrInvalidCredentials, 0)
	}
	return f.establish(acct), nil
}

// SignInFederated signs in as FederatedAccount, simulating an SSO flow.
func (f *FakeIDP) SignInFederated(ctx context.Context) (idp.Credential, error) {
	f.mu.Lock()
	acct, ok := f.accounts[f.FederatedAccount]
	f.mu.Unlock()
	if !ok {
		return idp.Credential{}, errors.Mark(idp.ErrInvalidCredentials, 0)
	}
	return f.establish(acct), nil
}

// SignInWithToken establishes a session from a token this provider issued.
func (f *FakeIDP) SignInWithToken(ctx context.Context, idToken string) (idp.Credential, error) {
	cred, err := f.Verify(ctx, idToken)
	if err != nil {
		return idp.Credential{}, err
	}

	f.mu.Lock()
	acct, ok := f.accounts[cred.Email]
	f.mu.Unlock()
	if !ok {
		return idp.Credential{}, errors.Mark(idp.ErrInvalidToken, 0)
	}
	return f.establish(acct), nil
}

// SignOut ends the provider session and notifies listeners.
func (f *FakeIDP) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.current = nil
	cbs := f.snapshotListeners()
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(idp.Credential{}, false)
	}
	return nil
}

// OnStateChange registers a state listener.
func (f *FakeIDP) OnStateChange(cb func(idp.Credential, bool)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = cb
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

// Verify implements idp.Verifier for tokens issued by this provider.
func (f *FakeIDP) Verify(ctx context.Context, idToken string) (idp.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.tokens[idToken]
	if !ok {
		return idp.Credential{}, errors.Mark(idp.ErrInvalidToken, 0)
	}
	return cred, nil
}

// Revoke invalidates a previously issued token, simulating expiry.
func (f *FakeIDP) Revoke(idToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, idToken)
}

// establish issues a fresh token, makes acct the current user, and notifies
// listeners.
func (f *FakeIDP) establish(acct *account) idp.Credential {
	cred := idp.Credential{
		IDToken: "fake-" + uuid.NewString(),
		UID:     acct.uid,
		Email:   acct.email,
		Name:    acct.name,
		Photo:   acct.photo,
	}

	f.mu.Lock()
	f.tokens[cred.IDToken] = cred
	f.current = &cred
	cbs := f.snapshotListeners()
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(cred, true)
	}
	return cred
}

// snapshotListeners copies callbacks so they run outside the lock. Callers
// must hold mu.
func (f *FakeIDP) snapshotListeners() []func(idp.Credential, bool) {
	cbs := make([]func(idp.Credential, bool), 0, len(f.listeners))
	for _, cb := range f.listeners {
		cbs = append(cbs, cb)
	}
	return cbs
}
