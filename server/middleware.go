package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/logging"
	"github.com/apporbit/apporbit/storage"
)

// ErrPermissionDenied is returned when an authenticated user lacks the role a
// route requires.
var ErrPermissionDenied = errors.NewC("permission denied", http.StatusForbidden).
	WithPublicMessage("You do not have access to this resource")

type identityKey struct{}

// IdentityFromContext returns the identity attached by the bearer-token
// middleware, if the request carried a valid token.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// requireIdentity parses the Authorization header and attaches the resulting
// identity to the request context. Requests without a valid bearer token are
// answered 401.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeError(w, r, errors.Mark(ErrInvalidToken, 0).Append("missing bearer token"))
			return
		}
		id, err := ParseToken(s.signingKey, raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := withIdentity(r.Context(), id)
		logging.Track(ctx, "auth.email", id.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a route on the caller's stored role. The role comes from
// the user record, never from token claims, so revoking a role takes effect
// on the next request. Missing records resolve to the plain user role.
func (s *Server) requireRole(min api.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, r, errors.Mark(ErrInvalidToken, 0).Append("missing bearer token"))
				return
			}
			role := api.RoleUser
			var user api.User
			switch err := s.store.Read(id.Email, &user); {
			case err == nil:
				role = user.Role
			case !errors.Is(err, storage.ErrNotFound):
				writeError(w, r, err)
				return
			}
			if !role.AtLeast(min) {
				writeError(w, r, errors.Mark(ErrPermissionDenied, 0).
					Append("requires "+string(min)+" role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// currentUser loads the user record for the request's identity.
func (s *Server) currentUser(r *http.Request) (api.User, error) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return api.User{}, errors.Mark(ErrInvalidToken, 0).Append("missing bearer token")
	}
	var user api.User
	if err := s.store.Read(id.Email, &user); err != nil {
		return api.User{}, err
	}
	return user, nil
}
