package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stafflane/stafflane/internal/rbac"
	"github.com/stafflane/stafflane/internal/shared"
	"github.com/stafflane/stafflane/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers user routes grouped by required permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermReadUser))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermCreateUser))
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermUpdateUser))
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}", h.updateUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermDeleteUser))
		r.Post("/{id}/delete", h.deleteUser)
	})
}

type formErrors map[string]string

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	records, pagination, err := h.service.List(r.Context(), principal, ListUsersRequest{Page: page})
	if err != nil {
		if errors.Is(err, ErrDenied) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h.render(w, r, "pages/users/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/list.html", map[string]any{
		"Users":      records,
		"Pagination": pagination,
		"Errors":     formErrors{},
	}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal := rbac.PrincipalFromContext(r.Context())
	req := CreateUserRequest{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
	}

	_, err := h.service.Create(r.Context(), principal, req)
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, "/users", "success", "User created")
	case errors.Is(err, ErrNotification):
		// The record exists; only the credential email failed.
		h.redirectWithFlash(w, r, "/users", "error", "User created, but the credential email could not be sent")
	case errors.Is(err, ErrDenied):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	default:
		if ve, ok := AsValidationError(err); ok {
			h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors(ve.Fields), "Form": req}, http.StatusBadRequest)
			return
		}
		h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}, "Form": req}, http.StatusInternalServerError)
	}
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	principal := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		h.logger.Error("get user failed", slog.Int64("id", id), slog.Any("error", err))
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{}, "User": user}, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal := rbac.PrincipalFromContext(r.Context())
	req := UpdateUserRequest{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
	}

	_, err = h.service.Update(r.Context(), principal, id, req)
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, "/users", "success", "User updated")
	case errors.Is(err, ErrDenied):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	default:
		if ve, ok := AsValidationError(err); ok {
			h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors(ve.Fields), "Form": req, "User": &User{ID: id, Name: req.Name, Email: req.Email}}, http.StatusBadRequest)
			return
		}
		h.logger.Error("update user failed", slog.Int64("id", id), slog.Any("error", err))
		h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}, "User": &User{ID: id, Name: req.Name, Email: req.Email}}, http.StatusInternalServerError)
	}
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	principal := rbac.PrincipalFromContext(r.Context())

	switch err := h.service.Delete(r.Context(), principal, id); {
	case err == nil:
		h.redirectWithFlash(w, r, "/users", "success", "User deleted")
	case errors.Is(err, ErrDenied):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		h.redirectWithFlash(w, r, "/users", "error", "User no longer exists")
	default:
		h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Users", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
