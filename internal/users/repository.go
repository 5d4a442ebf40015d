package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stafflane/stafflane/internal/platform/db"
	"github.com/stafflane/stafflane/internal/rbac"
)

// Repository defines persistence for user records. WithTx runs fn against a
// repository bound to one transaction; Querier exposes that binding so
// collaborators (role assignment) can join the same transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Querier() rbac.DB
	Get(ctx context.Context, id int64) (*User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	List(ctx context.Context, scope Scope, limit, offset int) ([]User, int, error)
	Create(ctx context.Context, user User) (int64, error)
	Update(ctx context.Context, id int64, name, email string) error
	Delete(ctx context.Context, id int64) error
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) Querier() rbac.DB {
	return r.db
}

const userColumns = "id, name, email, password_hash, created_by, created_at, updated_at"

func (r *repository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *repository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`, email, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("users: email taken: %w", err)
	}
	return taken, nil
}

func (r *repository) List(ctx context.Context, scope Scope, limit, offset int) ([]User, int, error) {
	where := ""
	args := []any{}
	if clause, scopeArgs := scope.Where(1); clause != "" {
		where = "WHERE " + clause
		args = append(args, scopeArgs...)
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var records []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedBy, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repository) Create(ctx context.Context, user User) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, created_by) VALUES ($1, $2, $3, $4) RETURNING id`,
		user.Name, user.Email, user.PasswordHash, user.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("users: insert: %w", err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, name, email string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET name = $1, email = $2, updated_at = NOW() WHERE id = $3`,
		name, email, id,
	)
	if err != nil {
		return fmt.Errorf("users: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedBy, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// IsUniqueViolation reports whether err is the Postgres unique-constraint
// error, which surfaces duplicate-email races the pre-check cannot catch.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "email")
	}
	return false
}
