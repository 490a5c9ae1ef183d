// Package idp abstracts the external identity provider that asserts who a
// user is. The session store drives sign-in through a Provider; the backend
// checks asserted identities through a Verifier. Concrete implementations
// live in subpackages: googleidp for Google sign-in, fakeidp for tests.
package idp

import (
	"context"
	"net/http"

	"github.com/apporbit/apporbit/errors"
)

var (
	// Returned when an email/password pair doesn't match an account.
	ErrInvalidCredentials = errors.NewC("invalid credentials", http.StatusUnauthorized)

	// Returned when an ID token fails validation.
	ErrInvalidToken = errors.NewC("invalid identity token", http.StatusUnauthorized)

	// Returned for operations the provider doesn't support, e.g. password
	// sign-in against a federated-only provider.
	ErrUnsupported = errors.NewC("operation not supported by identity provider", http.StatusNotImplemented)
)

// Credential is the provider's assertion of a signed-in user. IDToken is
// opaque to the client and only meaningful to a Verifier.
type Credential struct {
	IDToken string
	UID     string
	Email   string
	Name    string
	Photo   string
}

// Provider is the client-side surface of an identity provider.
type Provider interface {
	// CurrentCredential returns the provider's current signed-in user, if
	// any. Implementations that restore sessions asynchronously report false
	// until restoration completes and then notify via OnStateChange.
	CurrentCredential(ctx context.Context) (Credential, bool)

	// SignIn authenticates an email/password account.
	SignIn(ctx context.Context, email, password string) (Credential, error)

	// SignInFederated runs the provider's federated flow, e.g. Google SSO.
	SignInFederated(ctx context.Context) (Credential, error)

	// SignInWithToken establishes a session from an existing ID token.
	SignInWithToken(ctx context.Context, idToken string) (Credential, error)

	// SignOut ends the provider session.
	SignOut(ctx context.Context) error

	// OnStateChange registers a callback invoked whenever the provider's
	// signed-in user changes. The returned function cancels the
	// subscription.
	OnStateChange(cb func(Credential, bool)) (cancel func())
}

// Verifier checks an ID token and returns the identity it asserts. Used by
// the backend during token exchange.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (Credential, error)
}
