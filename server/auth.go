package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/errors"
	"github.com/apporbit/apporbit/idp"
	"github.com/apporbit/apporbit/logging"
	"github.com/apporbit/apporbit/storage"
)

// handleIssueToken exchanges an identity provider credential for an AppOrbit
// bearer token, upserting the user record in the same round trip so a first
// sign-in also registers the account.
func (s *Server) handleIssueToken(r *http.Request) (any, error) {
	var req api.TokenRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if req.Token == "" {
		return nil, errors.Mark(idp.ErrInvalidToken, 0).Append("missing token")
	}

	cred, err := s.verifier.Verify(r.Context(), req.Token)
	if err != nil {
		return nil, err
	}
	if cred.Email == "" {
		return nil, errors.Mark(idp.ErrInvalidToken, 0).Append("credential has no email")
	}

	// The verified credential is canonical; request profile fields only fill
	// gaps the provider left blank.
	user := api.User{
		Email: cred.Email,
		UID:   firstNonEmpty(cred.UID, req.UID),
		Name:  firstNonEmpty(cred.Name, req.Name),
		Photo: firstNonEmpty(cred.Photo, req.Photo),
	}
	if err := s.upsertUser(r, &user); err != nil {
		return nil, err
	}

	token, err := IssueToken(s.signingKey, Identity{
		UID:   user.UID,
		Email: user.Email,
		Name:  user.Name,
		Photo: user.Photo,
	}, s.tokenExpiry)
	if err != nil {
		return nil, err
	}
	logging.Infow(r.Context(), "issued bearer token", "email", user.Email)
	return api.TokenResponse{Token: token}, nil
}

// handleVerify confirms a stored bearer token is still valid and returns the
// current user record, so clients restoring a session get fresh profile data.
func (s *Server) handleVerify(r *http.Request) (any, error) {
	user, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}
	return api.VerifyResponse{User: user}, nil
}

// upsertUser creates or refreshes the user record for a verified credential.
// Roles are never downgraded here: an existing record keeps its role, and a
// new record only gets admin if the email is on the bootstrap list.
func (s *Server) upsertUser(r *http.Request, user *api.User) error {
	var existing api.User
	err := s.store.Read(user.Email, &existing)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		user.Role = api.RoleUser
		if slices.Contains(s.adminEmails, user.Email) {
			user.Role = api.RoleAdmin
		}
		user.CreatedAt = time.Now().UTC()
		return s.store.Create(user)
	case err != nil:
		return err
	default:
		existing.UID = firstNonEmpty(user.UID, existing.UID)
		existing.Name = firstNonEmpty(user.Name, existing.Name)
		existing.Photo = firstNonEmpty(user.Photo, existing.Photo)
		*user = existing
		return s.store.Update(&existing)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
