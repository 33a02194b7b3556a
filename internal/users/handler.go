package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doj-records/records/internal/platform/httpx"
	"github.com/doj-records/records/internal/shared"
)

// Handler exposes read-only user endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   shared.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard shared.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard(shared.ModuleUsers, shared.ActionView))
		}
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
	})
}

type userView struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	Status     string   `json:"status,omitempty"`
	RoleID     string   `json:"role_id,omitempty"`
	Candidates []string `json:"role_candidates"`
	FullAccess bool     `json:"full_access"`
}

func toView(u User) userView {
	candidates := u.Ref.Candidates
	if candidates == nil {
		candidates = []string{}
	}
	return userView{
		ID:         u.ID,
		Username:   u.Username,
		Status:     u.Status,
		RoleID:     u.RoleID,
		Candidates: candidates,
		FullAccess: u.Ref.FullAccess,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]userView, len(list))
	for i, u := range list {
		out[i] = toView(u)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.logger.ErrorContext(r.Context(), "get user failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(u))
}
