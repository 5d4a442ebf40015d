package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgx shared by a pool and a transaction, so role
// assignments can join a caller's transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists user-to-role assignments. The role catalog itself is
// compiled in; only the assignment relation lives in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by the provided pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Assign attaches a role to a user. Runs on q, which may be an open
// transaction; pass nil to use the pool. The key is validated against the
// catalog before touching storage.
func (s *Store) Assign(ctx context.Context, q DB, userID int64, role Role) error {
	if _, err := RoleFromKey(string(role)); err != nil {
		return err
	}
	if q == nil {
		q = s.pool
	}
	_, err := q.Exec(ctx, `INSERT INTO user_roles (user_id, role_key) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, string(role))
	if err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	return nil
}

// RolesOf returns the roles assigned to a user. Keys no longer present in
// the catalog are skipped; the closed vocabulary is enforced on write.
func (s *Store) RolesOf(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT role_key FROM user_roles WHERE user_id = $1 ORDER BY role_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: roles of: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		role, err := RoleFromKey(key)
		if err != nil {
			continue
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// Principal loads the acting principal with its derived permission set.
func (s *Store) Principal(ctx context.Context, userID int64) (*Principal, error) {
	roles, err := s.RolesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewPrincipal(userID, roles), nil
}
