// Package session maintains the client's authentication state. A Session
// tracks a single explicit state machine:
//
//	Initializing → SignedOut | SignedIn
//	SignedOut ↔ SignedIn
//
// Sign-in runs in two legs: the identity provider asserts who the user is,
// then the exchanger trades that assertion for an app bearer token. The
// session only reports SignedIn once both legs succeed, so a token is
// present exactly when an identity is.
package session

import (
	"context"
	"sync"

	"github.com/apporbit/apporbit/client/apiclient"
	"github.com/apporbit/apporbit/client/tokenstore"
	"github.com/apporbit/apporbit/eventbus"
	"github.com/apporbit/apporbit/idp"
	"github.com/apporbit/apporbit/logging"
)

// State is the session's position in the auth state machine.
type State string

const (
	// StateInitializing holds until the provider's persisted session, if
	// any, has been restored and exchanged. Consumers must not treat it as
	// signed out.
	StateInitializing State = "initializing"
	StateSignedOut    State = "signed_out"
	StateSignedIn     State = "signed_in"
)

// TopicInvalidated is the event bus topic published when the backend
// rejects the session and the user is forcibly signed out. The payload is
// an Invalidated value.
const TopicInvalidated = "session.invalidated"

// Invalidated is the payload published on TopicInvalidated.
type Invalidated struct {
	Reason string
	Email  string
}

// Identity is the signed-in user as asserted by the identity provider.
type Identity struct {
	UID   string
	Email string
	Name  string
	Photo string
}

// Snapshot is an immutable view of the session, delivered to subscribers on
// every transition.
type Snapshot struct {
	State    State
	Identity Identity // Zero unless State is StateSignedIn.
}

// Option configures a Session.
type Option func(*Session)

// WithEventBus publishes session lifecycle events to the given bus.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(s *Session) {
		s.bus = bus
	}
}

// WithExchanger overrides the default exchanger.
func WithExchanger(e *Exchanger) Option {
	return func(s *Session) {
		s.exchanger = e
	}
}

// New builds a Session from its collaborators. Call Start before use.
func New(provider idp.Provider, tokens tokenstore.Store, client *apiclient.Client, opts ...Option) *Session {
	s := &Session{
		provider:    provider,
		tokens:      tokens,
		client:      client,
		state:       StateInitializing,
		subscribers: map[int]func(Snapshot){},
		ctx:         context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exchanger == nil {
		s.exchanger = NewExchanger(client, tokens)
	}
	return s
}

// Session is the auth state store. It is safe for concurrent use.
type Session struct {
	provider  idp.Provider
	tokens    tokenstore.Store
	client    *apiclient.Client
	exchanger *Exchanger
	bus       eventbus.EventBus

	mu          sync.Mutex
	state       State
	identity    Identity
	subscribers map[int]func(Snapshot)
	nextID      int
	started     bool

	ctx              context.Context
	cancelProviderCb func()
}

// Start wires the session to its collaborators and resolves the
// Initializing state: a restored provider session is exchanged for a token,
// otherwise the session settles at SignedOut. ctx scopes background work
// such as reacting to unauthorized responses.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx = ctx
	s.mu.Unlock()

	s.client.SetUnauthorizedListener(func(ev apiclient.Unauthorized) {
		s.ForceSignOut("backend rejected credentials")
	})

	cancel := s.provider.OnStateChange(func(cred idp.Credential, signedIn bool) {
		if signedIn {
			s.onProviderSignedIn(cred)
			return
		}
		s.onProviderSignedOut()
	})
	s.mu.Lock()
	s.cancelProviderCb = cancel
	s.mu.Unlock()

	if cred, ok := s.provider.CurrentCredential(ctx); ok {
		if err := s.establish(ctx, cred); err != nil {
			logging.Warnw(ctx, "session: could not restore session", "error", err)
		}
		return
	}
	s.transition(StateSignedOut, Identity{})
}

// Stop cancels the provider subscription.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancelProviderCb
	s.cancelProviderCb = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loading is true while the session is still Initializing.
func (s *Session) Loading() bool {
	return s.State() == StateInitializing
}

// Identity returns the signed-in user, if any.
func (s *Session) Identity() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.state == StateSignedIn
}

// Snapshot returns the current state and identity.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Identity: s.identity}
}

// Subscribe registers fn to be called with a snapshot after every
// transition. The returned function cancels the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// SignIn authenticates an email/password account and exchanges the
// resulting credential. On error the session remains in its prior state.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	cred, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	return s.establish(ctx, cred)
}

// SignInWithGoogle runs the provider's federated flow.
func (s *Session) SignInWithGoogle(ctx context.Context) error {
	cred, err := s.provider.SignInFederated(ctx)
	if err != nil {
		return err
	}
	return s.establish(ctx, cred)
}

// SignInWithToken establishes a session from an existing provider ID token.
func (s *Session) SignInWithToken(ctx context.Context, idToken string) error {
	cred, err := s.provider.SignInWithToken(ctx, idToken)
	if err != nil {
		return err
	}
	return s.establish(ctx, cred)
}

// SignOut ends the provider session and transitions to SignedOut. The token
// store is cleared even if the provider sign-out fails.
func (s *Session) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	s.transition(StateSignedOut, Identity{})
	return err
}

// ForceSignOut transitions to SignedOut without waiting on the provider,
// used when the backend rejects the session's credentials. It is
// idempotent: concurrent calls produce a single transition and a single
// notification.
func (s *Session) ForceSignOut(reason string) {
	s.mu.Lock()
	if s.state == StateSignedOut {
		s.mu.Unlock()
		return
	}
	email := s.identity.Email
	ctx := s.ctx
	s.mu.Unlock()

	if !s.transition(StateSignedOut, Identity{}) {
		return
	}

	logging.Warnw(ctx, "session: forced sign-out", "reason", reason, "email", email)
	// Provider sign-out is best effort; local state is already clean.
	if err := s.provider.SignOut(ctx); err != nil {
		logging.Warnw(ctx, "session: provider sign-out failed", "error", err)
	}

	if s.bus != nil {
		s.bus.Publish(TopicInvalidated, Invalidated{Reason: reason, Email: email})
	}
}

// establish exchanges a provider credential and transitions to SignedIn. On
// exchange failure the provider session is ended so the two systems don't
// disagree about who is signed in. An identity that is already established
// is not exchanged again; that makes the provider's echo of this session's
// own sign-in calls a no-op.
func (s *Session) establish(ctx context.Context, cred idp.Credential) error {
	s.mu.Lock()
	if s.state == StateSignedIn && s.identity.UID == cred.UID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if _, err := s.exchanger.Exchange(ctx, cred); err != nil {
		if serr := s.provider.SignOut(ctx); serr != nil {
			logging.Warnw(ctx, "session: provider sign-out after failed exchange", "error", serr)
		}
		s.transition(StateSignedOut, Identity{})
		return err
	}

	s.transition(StateSignedIn, Identity{
		UID:   cred.UID,
		Email: cred.Email,
		Name:  cred.Name,
		Photo: cred.Photo,
	})
	return nil
}

// onProviderSignedIn reacts to the provider reporting a signed-in user: a
// session restored asynchronously after Start, or one established outside
// this Session. The credential is exchanged so a bearer token exists
// whenever the provider considers the user signed in.
func (s *Session) onProviderSignedIn(cred idp.Credential) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if err := s.establish(ctx, cred); err != nil {
		logging.Warnw(ctx, "session: could not establish provider session", "error", err)
	}
}

// onProviderSignedOut reacts to the provider ending the session externally.
func (s *Session) onProviderSignedOut() {
	s.mu.Lock()
	signedIn := s.state == StateSignedIn
	s.mu.Unlock()
	if signedIn {
		s.transition(StateSignedOut, Identity{})
	}
}

// transition moves the state machine and notifies subscribers. Entering
// SignedOut always clears the token store. Returns false if the session was
// already in the requested state with the same identity.
func (s *Session) transition(state State, identity Identity) bool {
	s.mu.Lock()
	if s.state == state && s.identity == identity {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.identity = identity
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	snap := Snapshot{State: state, Identity: identity}
	if state == StateSignedOut {
		s.tokens.Clear()
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}
