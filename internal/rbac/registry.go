package rbac

import (
	"errors"
	"fmt"
)

// ErrUnknownKey indicates a role or permission key outside the compiled-in catalog.
var ErrUnknownKey = errors.New("rbac: unknown key")

// Role is a named bundle of permissions. The catalog is closed; roles are
// not user-extensible at runtime.
type Role string

const (
	// RoleSuperAdmin is the top role, exempt from ownership scoping.
	RoleSuperAdmin Role = "super-admin"
	// RoleAdmin manages the users it created.
	RoleAdmin Role = "admin"
	// RoleUser is the base role every created account receives.
	RoleUser Role = "user"
)

// Permission is an atomic grant for one action on the user resource.
type Permission string

const (
	PermCreateUser Permission = "create-user"
	PermReadUser   Permission = "read-user"
	PermUpdateUser Permission = "update-user"
	PermDeleteUser Permission = "delete-user"
)

// AllRoles lists the catalog in display order.
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleUser}
}

// AllPermissions lists the catalog in display order.
func AllPermissions() []Permission {
	return []Permission{PermCreateUser, PermReadUser, PermUpdateUser, PermDeleteUser}
}

// Label returns the human-readable name for the role.
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin"
	case RoleUser:
		return "User"
	}
	return string(r)
}

// Label returns the human-readable name for the permission.
func (p Permission) Label() string {
	switch p {
	case PermCreateUser:
		return "Create User"
	case PermReadUser:
		return "Read User"
	case PermUpdateUser:
		return "Update User"
	case PermDeleteUser:
		return "Delete User"
	}
	return string(p)
}

// RoleFromKey validates an untrusted role key against the catalog.
func RoleFromKey(key string) (Role, error) {
	switch Role(key) {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return Role(key), nil
	}
	return "", fmt.Errorf("%w: role %q", ErrUnknownKey, key)
}

// PermissionFromKey validates an untrusted permission key against the catalog.
func PermissionFromKey(key string) (Permission, error) {
	switch Permission(key) {
	case PermCreateUser, PermReadUser, PermUpdateUser, PermDeleteUser:
		return Permission(key), nil
	}
	return "", fmt.Errorf("%w: permission %q", ErrUnknownKey, key)
}

// grants maps each role to its permissions. Both admin tiers manage users;
// the tiers differ only in visibility scoping, handled by users.Scope.
var grants = map[Role][]Permission{
	RoleSuperAdmin: {PermCreateUser, PermReadUser, PermUpdateUser, PermDeleteUser},
	RoleAdmin:      {PermCreateUser, PermReadUser, PermUpdateUser, PermDeleteUser},
	RoleUser:       {},
}

// Grants returns the permissions bundled into the role.
func (r Role) Grants() []Permission {
	perms := grants[r]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
