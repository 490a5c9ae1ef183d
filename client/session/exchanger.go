package session

import (
	"context"
	"net/http"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/client/apiclient"
	"github.com/apporbit/apporbit/client/tokenstore"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/idp"
	"github.com/apporbit/apporbit/logging"
)

// ErrAuthExchange is returned when a provider credential could not be
// exchanged for an app token.
var ErrAuthExchange = errors.NewC("credential exchange failed", http.StatusUnauthorized).
	WithPublicMessage("Sign-in failed, please try again")

// ExchangerOption configures an Exchanger.
type ExchangerOption func(*Exchanger)

// WithStoredTokenReuse makes Exchange return an already persisted token
// instead of calling the backend. Off by default: re-exchanging refreshes
// the token's expiry and keeps the user record current.
func WithStoredTokenReuse() ExchangerOption {
	return func(e *Exchanger) {
		e.reuseStored = true
	}
}

// NewExchanger returns an Exchanger that trades identity-provider
// credentials for app bearer tokens and persists them.
func NewExchanger(client *apiclient.Client, tokens tokenstore.Store, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{client: client, tokens: tokens}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchanger implements the token exchange leg of sign-in.
type Exchanger struct {
	client      *apiclient.Client
	tokens      tokenstore.Store
	reuseStored bool
}

// Exchange posts the credential to the backend's token endpoint, persists
// the returned bearer token, and returns it.
func (e *Exchanger) Exchange(ctx context.Context, cred idp.Credential) (string, error) {
	if e.reuseStored {
		if token, ok := e.tokens.Get(); ok {
			logging.Debug(ctx, "session: reusing stored token")
			return token, nil
		}
	}

	req := api.TokenRequest{
		Token: cred.IDToken,
		Email: cred.Email,
		Name:  cred.Name,
		Photo: cred.Photo,
		UID:   cred.UID,
	}
	var resp api.TokenResponse
	if err := e.client.Post(ctx, "/api/auth/jwt", req, &resp); err != nil {
		logging.Warnw(ctx, "session: token exchange failed", "error", err, "email", cred.Email)
		return "", errors.Mark(ErrAuthExchange, 0).
			WithHTTPStatusCode(errors.HTTPStatusCode(err)).
			Append(err.Error())
	}
	if resp.Token == "" {
		return "", errors.Mark(ErrAuthExchange, 0).Append("empty token in response")
	}

	e.tokens.Set(resp.Token)
	return resp.Token, nil
}
