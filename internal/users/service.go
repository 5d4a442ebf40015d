package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/stafflane/stafflane/internal/rbac"
	"github.com/stafflane/stafflane/internal/shared"
)

// Dispatcher delivers the one-time credential to a newly created account.
// Dispatch happens after commit; a failure never rolls the record back.
type Dispatcher interface {
	DispatchCredentials(ctx context.Context, email, name, password string) error
}

// RoleAssigner attaches roles inside the caller's transaction.
type RoleAssigner interface {
	Assign(ctx context.Context, q rbac.DB, userID int64, role rbac.Role) error
}

// Auditor records mutations for the audit trail.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the user lifecycle: authorize, validate, mutate
// atomically, then run post-commit side effects.
type Service struct {
	logger     *slog.Logger
	repo       Repository
	roles      RoleAssigner
	policy     rbac.Policy
	dispatcher Dispatcher
	auditor    Auditor
	validate   *validator.Validate
}

// NewService builds a Service instance. Auditor may be nil.
func NewService(logger *slog.Logger, repo Repository, roles RoleAssigner, dispatcher Dispatcher, auditor Auditor) *Service {
	return &Service{
		logger:     logger,
		repo:       repo,
		roles:      roles,
		dispatcher: dispatcher,
		auditor:    auditor,
		validate:   validator.New(),
	}
}

const defaultPerPage = 15

// List returns the records visible to the principal plus pagination
// metadata. The total reflects the scoped set, not the whole table.
func (s *Service) List(ctx context.Context, principal *rbac.Principal, req ListUsersRequest) ([]User, shared.Pagination, error) {
	if !s.policy.CanViewAnyUsers(principal) {
		return nil, shared.Pagination{}, ErrDenied
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	perPage := req.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = defaultPerPage
	}
	scope := ScopeFor(principal)
	records, total, err := s.repo.List(ctx, scope, perPage, (page-1)*perPage)
	if err != nil {
		s.logFailure(ctx, "list users", principal, 0, err)
		return nil, shared.Pagination{}, fmt.Errorf("list users: %w", err)
	}
	return records, shared.NewPagination(page, perPage, total), nil
}

// Get fetches one record, subject to the principal's visibility scope.
func (s *Service) Get(ctx context.Context, principal *rbac.Principal, id int64) (*User, error) {
	if !s.policy.CanViewAnyUsers(principal) {
		return nil, ErrDenied
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ScopeFor(principal).Matches(*user) {
		return nil, ErrNotFound
	}
	return user, nil
}

// Create provisions a new account as one atomic unit: insert the record
// with created_by set to the acting principal, hash and store a generated
// credential, and attach the base role. Only after commit is the plaintext
// credential handed to the dispatcher; a dispatch failure is reported as
// ErrNotification alongside the created record.
func (s *Service) Create(ctx context.Context, principal *rbac.Principal, req CreateUserRequest) (*User, error) {
	if !s.policy.CanCreateUser(principal) {
		return nil, ErrDenied
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validateRequest(ctx, req, req.Email, 0); err != nil {
		return nil, err
	}

	password, err := GeneratePassword(GeneratedPasswordLength)
	if err != nil {
		s.logFailure(ctx, "create user", principal, 0, err)
		return nil, fmt.Errorf("create user: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logFailure(ctx, "create user", principal, 0, err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	user := User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedBy:    &principal.ID,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, user)
		if err != nil {
			return err
		}
		user.ID = id
		return s.roles.Assign(ctx, repo.Querier(), id, rbac.RoleUser)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			// Duplicate-email race the pre-check missed; nothing was committed.
			return nil, &ValidationError{Fields: map[string]string{"email": "Email is already in use"}}
		}
		s.logFailure(ctx, "create user", principal, 0, err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.recordAudit(ctx, principal, "user.created", user.ID)

	if err := s.dispatcher.DispatchCredentials(ctx, user.Email, user.Name, password); err != nil {
		s.logFailure(ctx, "dispatch credentials", principal, user.ID, err)
		return &user, fmt.Errorf("%w: %v", ErrNotification, err)
	}
	return &user, nil
}

// Update rewrites name and email in one transaction. Partial success is
// not possible.
func (s *Service) Update(ctx context.Context, principal *rbac.Principal, id int64, req UpdateUserRequest) (*User, error) {
	if !s.policy.CanUpdateUser(principal, id) {
		return nil, ErrDenied
	}

	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validateRequest(ctx, req, req.Email, target.ID); err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, id, req.Name, req.Email)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, &ValidationError{Fields: map[string]string{"email": "Email is already in use"}}
		}
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logFailure(ctx, "update user", principal, id, err)
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.recordAudit(ctx, principal, "user.updated", id)

	target.Name = req.Name
	target.Email = req.Email
	return target, nil
}

// Delete removes the record atomically. A second delete of the same id
// yields ErrNotFound.
func (s *Service) Delete(ctx context.Context, principal *rbac.Principal, id int64) error {
	if !s.policy.CanDeleteUser(principal, id) {
		return ErrDenied
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		s.logFailure(ctx, "delete user", principal, id, err)
		return fmt.Errorf("delete user: %w", err)
	}
	s.recordAudit(ctx, principal, "user.deleted", id)
	return nil
}

// validateRequest checks field constraints plus email uniqueness among live
// records, excluding the target's own current value on update.
func (s *Service) validateRequest(ctx context.Context, req any, email string, excludeID int64) error {
	fields := make(map[string]string)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[strings.ToLower(fe.Field())] = fieldMessage(fe)
			}
		} else {
			return fmt.Errorf("validate: %w", err)
		}
	}
	if _, ok := fields["email"]; !ok && email != "" {
		taken, err := s.repo.EmailTaken(ctx, email, excludeID)
		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		if taken {
			fields["email"] = "Email is already in use"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	}
	return "Invalid value"
}

func (s *Service) logFailure(ctx context.Context, op string, principal *rbac.Principal, targetID int64, err error) {
	if s.logger == nil {
		return
	}
	attrs := []any{slog.String("op", op), slog.Any("error", err)}
	if principal != nil {
		attrs = append(attrs, slog.Int64("principal_id", principal.ID))
	}
	if targetID != 0 {
		attrs = append(attrs, slog.Int64("target_id", targetID))
	}
	s.logger.ErrorContext(ctx, op+" failed", attrs...)
}

func (s *Service) recordAudit(ctx context.Context, principal *rbac.Principal, action string, targetID int64) {
	if s.auditor == nil {
		return
	}
	log := shared.AuditLog{
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(targetID, 10),
	}
	if principal != nil {
		log.ActorID = principal.ID
	}
	if err := s.auditor.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "record audit", slog.String("action", action), slog.Any("error", err))
	}
}
