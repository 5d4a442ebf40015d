package users

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stafflane/stafflane/internal/rbac"
)

func TestScopeFor(t *testing.T) {
	assert.Equal(t, Scope{}, ScopeFor(nil))
	assert.Equal(t, Scope{All: true}, ScopeFor(rbac.NewPrincipal(1, []rbac.Role{rbac.RoleSuperAdmin})))
	assert.Equal(t, Scope{ViewerID: 2}, ScopeFor(rbac.NewPrincipal(2, []rbac.Role{rbac.RoleAdmin})))
	assert.Equal(t, Scope{ViewerID: 3}, ScopeFor(rbac.NewPrincipal(3, []rbac.Role{rbac.RoleUser})))
}

func TestScopeMatches(t *testing.T) {
	creator := int64(2)
	other := int64(9)

	all := Scope{All: true}
	assert.True(t, all.Matches(User{ID: 1}))
	assert.True(t, all.Matches(User{ID: 5, CreatedBy: &other}))

	scoped := Scope{ViewerID: 2}
	assert.True(t, scoped.Matches(User{ID: 2}), "own record is always visible")
	assert.True(t, scoped.Matches(User{ID: 5, CreatedBy: &creator}))
	assert.False(t, scoped.Matches(User{ID: 5, CreatedBy: &other}))
	assert.False(t, scoped.Matches(User{ID: 5}), "nil created_by belongs to nobody")
}

func TestScopeWhere(t *testing.T) {
	clause, args := Scope{All: true}.Where(1)
	assert.Empty(t, clause)
	assert.Empty(t, args)

	clause, args = Scope{ViewerID: 7}.Where(3)
	assert.Equal(t, "(created_by = $3 OR id = $3)", clause)
	assert.Equal(t, []any{int64(7)}, args)
}
