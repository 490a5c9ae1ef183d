package server

import (
	"net/http"
	"sort"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/logging"
	"github.com/apporbit/apporbit/storage"
	"github.com/go-chi/chi/v5"
)

// handleUserRole reports the stored role for an email. Unknown users resolve
// to the plain user role rather than 404, matching the fail-safe contract the
// client role resolver expects.
func (s *Server) handleUserRole(r *http.Request) (any, error) {
	email := chi.URLParam(r, "email")
	var user api.User
	err := s.store.Read(email, &user)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return api.RoleResponse{Role: api.RoleUser}, nil
	case err != nil:
		return nil, err
	}
	return api.RoleResponse{Role: user.Role}, nil
}

// handleUserProfile returns a user record. Users may read their own profile;
// moderators and admins may read anyone's.
func (s *Server) handleUserProfile(r *http.Request) (any, error) {
	email := chi.URLParam(r, "email")
	id, _ := IdentityFromContext(r.Context())
	if id.Email != email {
		caller, err := s.currentUser(r)
		if err != nil {
			return nil, err
		}
		if !caller.Role.AtLeast(api.RoleModerator) {
			return nil, errors.Mark(ErrPermissionDenied, 0).Append("profile belongs to another user")
		}
	}

	var user api.User
	if err := s.store.Read(email, &user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Server) handleAllUsers(r *http.Request) (any, error) {
	var users []api.User
	if err := s.store.List(&users, api.User{}); err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Email < users[j].Email
	})
	return users, nil
}

// handleMakeRole promotes a user, e.g. PATCH /users/make-moderator/{id}.
// There is deliberately no make-user demotion route in the dashboard; role
// cleanup goes through storage directly.
func (s *Server) handleMakeRole(r *http.Request) (any, error) {
	role := api.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		return nil, errors.Codef(http.StatusBadRequest, "unknown role %q", role).
			WithPublicMessage("Unknown role")
	}

	email := chi.URLParam(r, "id")
	var user api.User
	if err := s.store.Read(email, &user); err != nil {
		return nil, err
	}
	user.Role = role
	if err := s.store.Update(&user); err != nil {
		return nil, err
	}
	logging.Infow(r.Context(), "changed user role", "email", email, "role", role)
	return user, nil
}
