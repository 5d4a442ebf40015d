package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stafflane/stafflane/internal/shared"
	"github.com/stafflane/stafflane/internal/view"
)

// PermissionsHandler renders the compiled-in role and permission catalog.
type PermissionsHandler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(PermReadUser))
		r.Get("/", h.listPermissions)
	})
}

type roleRow struct {
	Key    string
	Label  string
	Grants []Permission
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	roles := make([]roleRow, 0, len(AllRoles()))
	for _, role := range AllRoles() {
		roles = append(roles, roleRow{Key: string(role), Label: role.Label(), Grants: role.Grants()})
	}
	h.render(w, r, "pages/permissions/list.html", map[string]any{
		"Roles":       roles,
		"Permissions": AllPermissions(),
	}, http.StatusOK)
}

func (h *PermissionsHandler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Permissions", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
