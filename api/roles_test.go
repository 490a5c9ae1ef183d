package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleUser))
	assert.True(t, RoleAdmin.AtLeast(RoleModerator))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.True(t, RoleModerator.AtLeast(RoleUser))
	assert.False(t, RoleModerator.AtLeast(RoleAdmin))
	assert.False(t, RoleUser.AtLeast(RoleModerator))

	assert.False(t, Role("superuser").AtLeast(RoleUser), "unknown roles grant nothing")
	assert.False(t, Role("").AtLeast(Role("")), "empty roles grant nothing")
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleModerator.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("root").Valid())
	assert.False(t, Role("").Valid())
}
