// Package googleidp implements identity verification and sign-in against
// Google.
//
// The backend uses Verifier to validate ID tokens the client obtained from
// the Google SDK. Clients without a browser SDK can use Provider, which runs
// the OAuth2 authorization-code flow: the host application supplies a
// CodeSource that presents the consent URL to the user and returns the
// resulting code.
package googleidp

import (
	"context"
	"net/http"
	"sync"

	"github.com/apporbit/apporbit"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/idp"
	"github.com/apporbit/apporbit/logging"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

func init() {
	apporbit.RegisterConfigKeys(
		apporbit.ConfigKeyInfo{
			Key:         "auth.google.id",
			Description: "Google OAuth2 client ID",
			Type:        "string",
		},
		apporbit.ConfigKeyInfo{
			Key:         "auth.google.secret",
			Description: "Google OAuth2 client secret",
			Type:        "string",
		},
		apporbit.ConfigKeyInfo{
			Key:         "auth.google.redirectUrl",
			Description: "OAuth2 redirect URL registered with Google",
			Type:        "string",
		},
	)
}

// validatorFunc matches idtoken.Validate, overridable in tests.
type validatorFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithValidator overrides the token validation function.
func WithValidator(v validatorFunc) VerifierOption {
	return func(vf *Verifier) {
		vf.validate = v
	}
}

// NewVerifier returns a Verifier for ID tokens issued to the given OAuth
// client. If clientID is empty it is read from config.
func NewVerifier(clientID string, opts ...VerifierOption) *Verifier {
	if clientID == "" {
		clientID = apporbit.Config.String("auth.google.id")
	}
	v := &Verifier{
		clientID: clientID,
		validate: idtoken.Validate,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verifier validates Google ID tokens.
type Verifier struct {
	clientID string
	validate validatorFunc
}

var _ idp.Verifier = &Verifier{}

// Verify checks the ID token's signature and audience and returns the
// identity it asserts.
func (v *Verifier) Verify(ctx context.Context, token string) (idp.Credential, error) {
	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		logging.Errorw(ctx, "googleidp: failed to validate id token", "error", err)
		return idp.Credential{}, errors.WrapPrefix(idp.ErrInvalidToken, err.Error(), 0)
	}
	return credentialFromClaims(token, payload.Claims), nil
}

func credentialFromClaims(token string, claims map[string]any) idp.Credential {
	return idp.Credential{
		IDToken: token,
		UID:     claimString(claims, "sub"),
		Email:   claimString(claims, "email"),
		Name:    claimString(claims, "name"),
		Photo:   claimString(claims, "picture"),
	}
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// CodeSource obtains an authorization code for the given consent URL, e.g.
// by opening a browser and running a loopback listener.
type CodeSource func(ctx context.Context, authURL string) (code string, err error)

// NewProvider returns a Provider that signs in via the OAuth2
// authorization-code flow. Client id, secret, and redirect URL are read from
// config when the corresponding arguments are empty.
func NewProvider(clientID, clientSecret, redirectURL string, source CodeSource) *Provider {
	if clientID == "" {
		clientID = apporbit.Config.String("auth.google.id")
	}
	if clientSecret == "" {
		clientSecret = apporbit.Config.String("auth.google.secret")
	}
	if redirectURL == "" {
		redirectURL = apporbit.Config.String("auth.google.redirectUrl")
	}
	return &Provider{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		source:    source,
		verifier:  NewVerifier(clientID),
		listeners: map[int]func(idp.Credential, bool){},
	}
}

// Provider implements idp.Provider on top of Google's OAuth2 endpoints.
type Provider struct {
	conf     *oauth2.Config
	source   CodeSource
	verifier *Verifier

	mu        sync.Mutex
	current   *idp.Credential
	listeners map[int]func(idp.Credential, bool)
	nextID    int
}

var _ idp.Provider = &Provider{}

// CurrentCredential returns the in-process session, if one exists. Google
// sessions are not restored across process restarts.
func (p *Provider) CurrentCredential(ctx context.Context) (idp.Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return idp.Credential{}, false
	}
	return *p.current, true
}

// SignIn is unsupported: Google accounts authenticate via the federated
// flow, not a password collected by this app.
func (p *Provider) SignIn(ctx context.Context, email, password string) (idp.Credential, error) {
	return idp.Credential{}, errors.Mark(idp.ErrUnsupported, 0)
}

// SignInFederated runs the authorization-code flow and exchanges the code
// for an ID token.
func (p *Provider) SignInFederated(ctx context.Context) (idp.Credential, error) {
	state := uuid.NewString()
	authURL := p.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)

	code, err := p.source(ctx, authURL)
	if err != nil {
		return idp.Credential{}, errors.WrapPrefix(err, "googleidp: authorization code flow failed", 0)
	}

	logging.Info(ctx, "googleidp: exchanging authorization code")
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return idp.Credential{}, errors.Codef(http.StatusUnauthorized, "googleidp: token exchange failed: %s", err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return idp.Credential{}, errors.Codef(http.StatusUnauthorized, "googleidp: token response missing id_token")
	}
	return p.SignInWithToken(ctx, rawIDToken)
}

// SignInWithToken validates the token and establishes the session.
func (p *Provider) SignInWithToken(ctx context.Context, idToken string) (idp.Credential, error) {
	cred, err := p.verifier.Verify(ctx, idToken)
	if err != nil {
		return idp.Credential{}, err
	}

	p.mu.Lock()
	p.current = &cred
	cbs := p.snapshotListeners()
	p.mu.Unlock()

	for _, cb := range cbs {
		cb(cred, true)
	}
	return cred, nil
}

// SignOut drops the in-process session.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	cbs := p.snapshotListeners()
	p.mu.Unlock()

	for _, cb := range cbs {
		cb(idp.Credential{}, false)
	}
	return nil
}

// OnStateChange registers a state listener.
func (p *Provider) OnStateChange(cb func(idp.Credential, bool)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = cb
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// snapshotListeners copies callbacks so they run outside the lock. Callers
// must hold mu.
func (p *Provider) snapshotListeners() []func(idp.Credential, bool) {
	cbs := make([]func(idp.Credential, bool), 0, len(p.listeners))
	for _, cb := range p.listeners {
		cbs = append(cbs, cb)
	}
	return cbs
}
