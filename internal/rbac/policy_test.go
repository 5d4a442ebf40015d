package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilPrincipalIsDenied(t *testing.T) {
	var policy Policy
	assert.False(t, policy.CanViewAnyUsers(nil))
	assert.False(t, policy.CanCreateUser(nil))
	assert.False(t, policy.CanUpdateUser(nil, 7))
	assert.False(t, policy.CanDeleteUser(nil, 7))
}

func TestAdminHoldsUserPermissions(t *testing.T) {
	var policy Policy
	admin := NewPrincipal(2, []Role{RoleAdmin})

	assert.True(t, policy.CanViewAnyUsers(admin))
	assert.True(t, policy.CanCreateUser(admin))
	assert.True(t, policy.CanUpdateUser(admin, 99))
	assert.True(t, policy.CanDeleteUser(admin, 99))
}

func TestBaseRoleHoldsNothing(t *testing.T) {
	var policy Policy
	member := NewPrincipal(3, []Role{RoleUser})

	assert.False(t, policy.CanViewAnyUsers(member))
	assert.False(t, policy.CanCreateUser(member))
	assert.False(t, policy.CanUpdateUser(member, 3))
	assert.False(t, policy.CanDeleteUser(member, 3))
}

func TestPermissionsDeriveFromAllRoles(t *testing.T) {
	p := NewPrincipal(4, []Role{RoleUser, RoleAdmin})
	assert.True(t, p.Can(PermReadUser))
	assert.True(t, p.HasRole(RoleUser))
	assert.True(t, p.HasRole(RoleAdmin))
	assert.False(t, p.HasRole(RoleSuperAdmin))
}
