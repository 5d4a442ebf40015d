package rbac

// Principal describes the authenticated actor performing an action.
// Permissions are derived transitively from the assigned roles.
type Principal struct {
	ID    int64
	Roles []Role

	perms map[Permission]struct{}
}

// NewPrincipal builds a Principal with its derived permission set.
func NewPrincipal(id int64, roles []Role) *Principal {
	p := &Principal{ID: id, Roles: roles, perms: make(map[Permission]struct{})}
	for _, role := range roles {
		for _, perm := range role.Grants() {
			p.perms[perm] = struct{}{}
		}
	}
	return p
}

// HasRole reports whether the principal holds the role.
func (p *Principal) HasRole(role Role) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Can reports whether the principal holds the permission. A nil principal
// (unauthenticated request) never holds anything.
func (p *Principal) Can(perm Permission) bool {
	if p == nil {
		return false
	}
	_, ok := p.perms[perm]
	return ok
}

// Policy exposes one pure decision per lifecycle action. Decisions never
// mutate state and never error; an absent principal is simply denied.
type Policy struct{}

// CanViewAnyUsers gates the user listing.
func (Policy) CanViewAnyUsers(p *Principal) bool {
	return p.Can(PermReadUser)
}

// CanCreateUser gates user creation.
func (Policy) CanCreateUser(p *Principal) bool {
	return p.Can(PermCreateUser)
}

// CanUpdateUser gates updates. The check is permission-only: ownership of
// the target does not restrict it.
func (Policy) CanUpdateUser(p *Principal, targetID int64) bool {
	return p.Can(PermUpdateUser)
}

// CanDeleteUser gates deletion, permission-only like CanUpdateUser.
func (Policy) CanDeleteUser(p *Principal, targetID int64) bool {
	return p.Can(PermDeleteUser)
}
