package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stafflane/stafflane/internal/rbac"
	"github.com/stafflane/stafflane/internal/shared"
)

type fakeRepo struct {
	mu        sync.Mutex
	users     map[int64]User
	nextID    int64
	createErr error
	updateErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[int64]User), nextID: 1}
}

func (f *fakeRepo) seed(u User) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == 0 {
		u.ID = f.nextID
	}
	if u.ID >= f.nextID {
		f.nextID = u.ID + 1
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().Add(-time.Duration(u.ID) * time.Minute)
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Querier() rbac.DB { return nil }

func (f *fakeRepo) Get(ctx context.Context, id int64) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (f *fakeRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) List(ctx context.Context, scope Scope, limit, offset int) ([]User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var visible []User
	for _, u := range f.users {
		if scope.Matches(u) {
			visible = append(visible, u)
		}
	}
	sort.Slice(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.After(visible[j].CreatedAt)
		}
		return visible[i].ID > visible[j].ID
	})
	total := len(visible)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return visible[offset:end], total, nil
}

func (f *fakeRepo) Create(ctx context.Context, user User) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user.ID, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, name, email string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Name = name
	u.Email = email
	u.UpdatedAt = time.Now()
	f.users[id] = u
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	return nil
}

type dispatchCall struct {
	email    string
	name     string
	password string
}

type fakeDispatcher struct {
	err   error
	calls []dispatchCall
}

func (f *fakeDispatcher) DispatchCredentials(ctx context.Context, email, name, password string) error {
	f.calls = append(f.calls, dispatchCall{email: email, name: name, password: password})
	return f.err
}

type assignCall struct {
	userID int64
	role   rbac.Role
}

type fakeAssigner struct {
	err   error
	calls []assignCall
}

func (f *fakeAssigner) Assign(ctx context.Context, q rbac.DB, userID int64, role rbac.Role) error {
	f.calls = append(f.calls, assignCall{userID: userID, role: role})
	return f.err
}

type fakeAuditor struct {
	logs []shared.AuditLog
}

func (f *fakeAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo *fakeRepo) (*Service, *fakeDispatcher, *fakeAssigner, *fakeAuditor) {
	dispatcher := &fakeDispatcher{}
	assigner := &fakeAssigner{}
	auditor := &fakeAuditor{}
	return NewService(discardLogger(), repo, assigner, dispatcher, auditor), dispatcher, assigner, auditor
}

func superAdmin(id int64) *rbac.Principal {
	return rbac.NewPrincipal(id, []rbac.Role{rbac.RoleSuperAdmin})
}

func admin(id int64) *rbac.Principal {
	return rbac.NewPrincipal(id, []rbac.Role{rbac.RoleAdmin})
}

func baseUser(id int64) *rbac.Principal {
	return rbac.NewPrincipal(id, []rbac.Role{rbac.RoleUser})
}

func ref(v int64) *int64 { return &v }

func TestListDenied(t *testing.T) {
	svc, _, _, _ := newTestService(newFakeRepo())

	_, _, err := svc.List(context.Background(), nil, ListUsersRequest{})
	assert.ErrorIs(t, err, ErrDenied)

	_, _, err = svc.List(context.Background(), baseUser(3), ListUsersRequest{})
	assert.ErrorIs(t, err, ErrDenied)
}

func TestListSuperAdminSeesEverything(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 1, Name: "Root", Email: "root@example.com"})
	repo.seed(User{ID: 2, Name: "Alice", Email: "alice@example.com", CreatedBy: ref(1)})
	repo.seed(User{ID: 3, Name: "Bob", Email: "bob@example.com", CreatedBy: ref(2)})
	svc, _, _, _ := newTestService(repo)

	records, page, err := svc.List(context.Background(), superAdmin(1), ListUsersRequest{})
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 3, page.Total)
}

func TestListAdminSeesOwnAndCreated(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 1, Name: "Root", Email: "root@example.com"})
	repo.seed(User{ID: 2, Name: "Alice", Email: "alice@example.com", CreatedBy: ref(1)})
	repo.seed(User{ID: 3, Name: "Bob", Email: "bob@example.com", CreatedBy: ref(2)})
	repo.seed(User{ID: 4, Name: "Carol", Email: "carol@example.com", CreatedBy: ref(2)})
	svc, _, _, _ := newTestService(repo)

	records, page, err := svc.List(context.Background(), admin(2), ListUsersRequest{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 3, page.Total)
	ids := []int64{records[0].ID, records[1].ID, records[2].ID}
	assert.ElementsMatch(t, []int64{2, 3, 4}, ids)
}

func TestListPaginationReflectsScopedTotal(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 1, Name: "Root", Email: "root@example.com"})
	for i := int64(2); i <= 21; i++ {
		repo.seed(User{ID: i, Name: "Member", Email: "m@example.com", CreatedBy: ref(2)})
	}
	svc, _, _, _ := newTestService(repo)

	records, page, err := svc.List(context.Background(), admin(2), ListUsersRequest{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 20, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, records, 5)
}

func TestListOrderedNewestFirst(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	repo.seed(User{ID: 1, Name: "Old", Email: "old@example.com", CreatedAt: now.Add(-2 * time.Hour)})
	repo.seed(User{ID: 2, Name: "New", Email: "new@example.com", CreatedAt: now})
	repo.seed(User{ID: 3, Name: "Mid", Email: "mid@example.com", CreatedAt: now.Add(-time.Hour)})
	svc, _, _, _ := newTestService(repo)

	records, _, err := svc.List(context.Background(), superAdmin(1), ListUsersRequest{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(2), records[0].ID)
	assert.Equal(t, int64(3), records[1].ID)
	assert.Equal(t, int64(1), records[2].ID)
}

func TestGetOutsideScopeNotFound(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 1, Name: "Root", Email: "root@example.com"})
	repo.seed(User{ID: 3, Name: "Bob", Email: "bob@example.com", CreatedBy: ref(1)})
	svc, _, _, _ := newTestService(repo)

	// Bob was created by someone else, so admin 2 cannot see him.
	_, err := svc.Get(context.Background(), admin(2), 3)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Get(context.Background(), superAdmin(9), 3)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
}

func TestCreateHappyPath(t *testing.T) {
	repo := newFakeRepo()
	svc, dispatcher, assigner, auditor := newTestService(repo)

	created, err := svc.Create(context.Background(), admin(7), CreateUserRequest{
		Name:  "  Dana  ",
		Email: " dana@example.com ",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Dana", created.Name)
	assert.Equal(t, "dana@example.com", created.Email)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, int64(7), *created.CreatedBy)

	require.Len(t, assigner.calls, 1)
	assert.Equal(t, created.ID, assigner.calls[0].userID)
	assert.Equal(t, rbac.RoleUser, assigner.calls[0].role)

	require.Len(t, dispatcher.calls, 1)
	call := dispatcher.calls[0]
	assert.Equal(t, "dana@example.com", call.email)
	assert.Len(t, call.password, GeneratedPasswordLength)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte(call.password)))
	assert.NotContains(t, created.PasswordHash, call.password)

	require.Len(t, auditor.logs, 1)
	assert.Equal(t, "user.created", auditor.logs[0].Action)
}

func TestCreateDenied(t *testing.T) {
	repo := newFakeRepo()
	svc, dispatcher, assigner, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), baseUser(3), CreateUserRequest{Name: "X", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrDenied)
	assert.Empty(t, repo.users)
	assert.Empty(t, dispatcher.calls)
	assert.Empty(t, assigner.calls)
}

func TestCreateValidation(t *testing.T) {
	repo := newFakeRepo()
	svc, dispatcher, _, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), admin(1), CreateUserRequest{Name: "", Email: "not-an-email"})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "email")
	assert.Empty(t, repo.users)
	assert.Empty(t, dispatcher.calls)
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 1, Name: "Root", Email: "taken@example.com"})
	svc, dispatcher, _, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), admin(1), CreateUserRequest{Name: "Dup", Email: "Taken@Example.com"})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "email")
	assert.Empty(t, dispatcher.calls)
}

func TestCreateDuplicateEmailRace(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	svc, dispatcher, _, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), admin(1), CreateUserRequest{Name: "Race", Email: "race@example.com"})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "email")
	assert.Empty(t, dispatcher.calls)
}

func TestCreateDispatchFailureKeepsRecord(t *testing.T) {
	repo := newFakeRepo()
	svc, dispatcher, _, _ := newTestService(repo)
	dispatcher.err = errors.New("smtp down")

	created, err := svc.Create(context.Background(), admin(1), CreateUserRequest{Name: "Eve", Email: "eve@example.com"})
	assert.ErrorIs(t, err, ErrNotification)
	require.NotNil(t, created)

	stored, getErr := repo.Get(context.Background(), created.ID)
	require.NoError(t, getErr)
	assert.Equal(t, "eve@example.com", stored.Email)
}

func TestUpdate(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 5, Name: "Old Name", Email: "old@example.com"})
	svc, _, _, auditor := newTestService(repo)

	updated, err := svc.Update(context.Background(), admin(1), 5, UpdateUserRequest{Name: "New Name", Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)

	stored, _ := repo.Get(context.Background(), 5)
	assert.Equal(t, "new@example.com", stored.Email)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, "user.updated", auditor.logs[0].Action)
}

func TestUpdateRejectsEmailOfAnotherUser(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 5, Name: "X", Email: "x@example.com"})
	repo.seed(User{ID: 6, Name: "Y", Email: "y@example.com"})
	svc, _, _, auditor := newTestService(repo)

	_, err := svc.Update(context.Background(), admin(1), 5, UpdateUserRequest{Name: "X", Email: "y@example.com"})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "email")

	stored, _ := repo.Get(context.Background(), 5)
	assert.Equal(t, "X", stored.Name)
	assert.Equal(t, "x@example.com", stored.Email)
	assert.Empty(t, auditor.logs)
}

func TestUpdateKeepsOwnEmail(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 5, Name: "Same", Email: "same@example.com"})
	svc, _, _, _ := newTestService(repo)

	// Re-submitting the target's current email must not trip uniqueness.
	_, err := svc.Update(context.Background(), admin(1), 5, UpdateUserRequest{Name: "Same", Email: "same@example.com"})
	assert.NoError(t, err)
}

func TestUpdateDeniedLeavesRecordUnchanged(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 5, Name: "Keep", Email: "keep@example.com"})
	svc, _, _, _ := newTestService(repo)

	_, err := svc.Update(context.Background(), baseUser(5), 5, UpdateUserRequest{Name: "Changed", Email: "changed@example.com"})
	assert.ErrorIs(t, err, ErrDenied)

	stored, _ := repo.Get(context.Background(), 5)
	assert.Equal(t, "Keep", stored.Name)
	assert.Equal(t, "keep@example.com", stored.Email)
}

func TestUpdateMissing(t *testing.T) {
	svc, _, _, _ := newTestService(newFakeRepo())
	_, err := svc.Update(context.Background(), admin(1), 99, UpdateUserRequest{Name: "X", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 5, Name: "Gone", Email: "gone@example.com"})
	svc, _, _, auditor := newTestService(repo)

	require.NoError(t, svc.Delete(context.Background(), admin(1), 5))
	_, err := repo.Get(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, "user.deleted", auditor.logs[0].Action)

	// Second delete of the same id reports the record missing.
	assert.ErrorIs(t, svc.Delete(context.Background(), admin(1), 5), ErrNotFound)
}

func TestDeleteDeniedLeavesRecord(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 5, Name: "Stay", Email: "stay@example.com"})
	svc, _, _, _ := newTestService(repo)

	assert.ErrorIs(t, svc.Delete(context.Background(), baseUser(5), 5), ErrDenied)
	_, err := repo.Get(context.Background(), 5)
	assert.NoError(t, err)
}
