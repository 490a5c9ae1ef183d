// Package api defines the wire types and stored models shared by the
// AppOrbit client SDK and the reference backend.
package api

// Role is a user's authorization level. Roles are hierarchical: admins can
// do everything moderators can, moderators everything users can.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

var roleLevels = map[Role]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// Valid returns true for one of the three known roles.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// AtLeast returns true if the role grants the privileges of min. Unknown
// roles grant nothing.
func (r Role) AtLeast(min Role) bool {
	return roleLevels[r] >= roleLevels[min] && roleLevels[r] > 0
}
