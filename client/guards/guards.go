// Package guards decides whether the current session may enter a protected
// view. A guard never admits on unknown state: while the session is still
// initializing the result is Pending, and the caller shows a loading state
// rather than a protected page or a spurious login redirect.
package guards

import (
	"context"

	"github.com/apporbit/apporbit/api"
	"github.com/apporbit/apporbit/client/roles"
	"github.com/apporbit/apporbit/client/session"
)

// Decision is the outcome kind of a guard check.
type Decision int

const (
	// Pending means the answer isn't known yet; show a loading state.
	Pending Decision = iota
	// Admit grants access to the protected view.
	Admit
	// Redirect denies access and names where to send the user instead.
	Redirect
)

// Messages shown after a role-based redirect.
const (
	ModeratorOnlyMessage = "No access: Only for moderators or administrators."
	AdminOnlyMessage     = "No access: For administrators only."
)

// Result is a guard's verdict. Location, Message, and From are only set for
// Redirect results.
type Result struct {
	Decision Decision
	Location string
	Message  string
	From     string // The originally requested location, preserved so login can return there.
}

// Guard checks whether the session may enter the view at the given
// location.
type Guard func(ctx context.Context, from string) Result

// RequireAuth admits any signed-in user. Visitors are redirected to the
// login page with their destination preserved.
func RequireAuth(s *session.Session) Guard {
	return func(ctx context.Context, from string) Result {
		if s.Loading() {
			return Result{Decision: Pending}
		}
		if _, ok := s.Identity(); ok {
			return Result{Decision: Admit}
		}
		return Result{Decision: Redirect, Location: "/login", From: from}
	}
}

// RequireModerator admits moderators and admins.
func RequireModerator(s *session.Session, r *roles.Resolver) Guard {
	return requireRole(s, r, api.RoleModerator, ModeratorOnlyMessage)
}

// RequireAdmin admits admins only.
func RequireAdmin(s *session.Session, r *roles.Resolver) Guard {
	return requireRole(s, r, api.RoleAdmin, AdminOnlyMessage)
}

func requireRole(s *session.Session, r *roles.Resolver, min api.Role, message string) Guard {
	return func(ctx context.Context, from string) Result {
		if s.Loading() {
			return Result{Decision: Pending}
		}
		id, ok := s.Identity()
		if !ok {
			return Result{Decision: Redirect, Location: "/login", From: from}
		}
		if r.Resolve(ctx, id.Email).AtLeast(min) {
			return Result{Decision: Admit}
		}
		return Result{Decision: Redirect, Location: "/", Message: message, From: from}
	}
}
