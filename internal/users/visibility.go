package users

import (
	"fmt"

	"github.com/stafflane/stafflane/internal/rbac"
)

// Scope restricts which records a principal may list. The top role sees
// everything; anyone else sees the records they created plus their own.
// It composes with pagination: the repository applies it before LIMIT and
// the reported total reflects the filtered set.
type Scope struct {
	All      bool
	ViewerID int64
}

// ScopeFor derives the visibility scope for a principal.
func ScopeFor(p *rbac.Principal) Scope {
	if p == nil {
		return Scope{}
	}
	if p.HasRole(rbac.RoleSuperAdmin) {
		return Scope{All: true}
	}
	return Scope{ViewerID: p.ID}
}

// Matches reports whether the scope admits the record.
func (s Scope) Matches(u User) bool {
	if s.All {
		return true
	}
	if u.ID == s.ViewerID {
		return true
	}
	return u.CreatedBy != nil && *u.CreatedBy == s.ViewerID
}

// Where returns the SQL fragment and arguments enforcing the scope, with
// placeholders starting at argPos. An empty clause means unrestricted.
func (s Scope) Where(argPos int) (string, []any) {
	if s.All {
		return "", nil
	}
	return fmt.Sprintf("(created_by = $%d OR id = $%d)", argPos, argPos), []any{s.ViewerID}
}
