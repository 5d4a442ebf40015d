package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/stafflane/stafflane/internal/shared"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the acting principal in the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the acting principal, nil when absent.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Store  *Store
	Logger *slog.Logger
}

// LoadPrincipal resolves the session user into a Principal and stores it in
// the request context. Unauthenticated requests pass through with no
// principal; the per-route checks deny them.
func (m Middleware) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.currentUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.Store.Principal(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("rbac load principal", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireAny ensures the principal holds at least one of the permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal := PrincipalFromContext(r.Context())
			for _, perm := range perms {
				if principal.Can(perm) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the principal holds every listed permission.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			for _, perm := range perms {
				if !principal.Can(perm) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
