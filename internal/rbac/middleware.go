package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/doj-records/records/internal/platform/httpx"
	"github.com/doj-records/records/internal/shared"
)

// UserIDHeader carries the caller's user id when no session layer has put
// one on the request context.
const UserIDHeader = "X-User-ID"

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	// UserID extracts the acting user. Defaults to RequestUserID.
	UserID func(*http.Request) string
}

// RequestUserID returns the user id from the request context, falling back
// to the X-User-ID header.
func RequestUserID(r *http.Request) string {
	if id := shared.UserIDFromContext(r.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(UserIDHeader))
}

// Require admits the request only when the current user may perform action
// on module. The user id is stored on the context for downstream handlers.
func (m Middleware) Require(module string, action shared.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := m.userID(r)
			d := m.Service.Decide(r.Context(), userID, module, action)
			switch d.State {
			case StateAllowed:
				next.ServeHTTP(w, r.WithContext(shared.ContextWithUserID(r.Context(), userID)))
			case StateUnauthenticated:
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "user identity required")
			default:
				if m.Logger != nil {
					m.Logger.InfoContext(r.Context(), "rbac forbidden",
						slog.String("user", userID),
						slog.String("module", module),
						slog.String("action", action.String()),
					)
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
			}
		})
	}
}

// Guard adapts Require to the shared guard signature.
func (m Middleware) Guard() shared.Guard {
	return m.Require
}

func (m Middleware) userID(r *http.Request) string {
	if m.UserID != nil {
		return m.UserID(r)
	}
	return RequestUserID(r)
}
