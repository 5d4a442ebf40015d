package users

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stafflane/stafflane/internal/rbac"
	"github.com/stafflane/stafflane/internal/shared"
	"github.com/stafflane/stafflane/internal/view"
	_ "github.com/stafflane/stafflane/testing"
)

func newTestRouter(t *testing.T, repo *fakeRepo, principal *rbac.Principal) (http.Handler, *fakeDispatcher) {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)

	svc, dispatcher, _, _ := newTestService(repo)
	handler := NewHandler(discardLogger(), svc, templates, shared.NewCSRFManager("csrfsecret"), rbac.Middleware{})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(rbac.ContextWithPrincipal(req.Context(), principal)))
		})
	})
	r.Route("/users", handler.MountRoutes)
	return r, dispatcher
}

func TestListPageRendersVisibleUsers(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 1, Name: "Root", Email: "root@example.com"})
	repo.seed(User{ID: 2, Name: "Alice", Email: "alice@example.com", CreatedBy: ref(1)})
	router, _ := newTestRouter(t, repo, superAdmin(1))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/users", nil))

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "alice@example.com")
	assert.Contains(t, res.Body.String(), "root@example.com")
}

func TestListPageForbiddenWithoutPermission(t *testing.T) {
	router, _ := newTestRouter(t, newFakeRepo(), baseUser(3))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestCreateUserRedirects(t *testing.T) {
	repo := newFakeRepo()
	router, dispatcher := newTestRouter(t, repo, admin(1))

	form := url.Values{}
	form.Set("name", "Dana")
	form.Set("email", "dana@example.com")
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/users", res.Header().Get("Location"))
	assert.Len(t, repo.users, 1)
	assert.Len(t, dispatcher.calls, 1)
}

func TestCreateUserInvalidInputRerendersForm(t *testing.T) {
	repo := newFakeRepo()
	router, dispatcher := newTestRouter(t, repo, admin(1))

	form := url.Values{}
	form.Set("name", "")
	form.Set("email", "not-an-email")
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Must be a valid email address")
	assert.Empty(t, repo.users)
	assert.Empty(t, dispatcher.calls)
}

func TestEditFormShowsCurrentValues(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(User{ID: 4, Name: "Edit Me", Email: "edit@example.com"})
	router, _ := newTestRouter(t, repo, superAdmin(1))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/users/4/edit", nil))

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "edit@example.com")
}

func TestDeleteMissingUserRedirectsWithFlash(t *testing.T) {
	router, _ := newTestRouter(t, newFakeRepo(), admin(1))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/users/99/delete", nil))

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/users", res.Header().Get("Location"))
}
