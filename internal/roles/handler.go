package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doj-records/records/internal/platform/httpx"
	"github.com/doj-records/records/internal/shared"
)

// Handler manages role authoring endpoints.
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

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		h.require(r, shared.ActionView)
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		h.require(r, shared.ActionEdit)
		r.Put("/{roleID}", h.putRole)
	})
	r.Group(func(r chi.Router) {
		h.require(r, shared.ActionDelete)
		r.Delete("/{roleID}", h.deleteRole)
	})
}

func (h *Handler) require(r chi.Router, action shared.Action) {
	if h.guard != nil {
		r.Use(h.guard(shared.ModuleRoles, action))
	}
}

type roleRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Permissions map[string][]string `json:"permissions"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list roles failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": list})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.Get(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.fail(w, r, "get role failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) putRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, created, err := h.service.Save(r.Context(), Role{
		ID:          chi.URLParam(r, "roleID"),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Permissions: req.Permissions,
	})
	if err != nil {
		h.fail(w, r, "save role failed", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		h.fail(w, r, "delete role failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidRole) {
		h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
