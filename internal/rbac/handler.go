package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/doj-records/records/internal/platform/httpx"
	"github.com/doj-records/records/internal/shared"
)

// Handler exposes access decisions to navigation and UI collaborators.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	_ = v.RegisterValidation("module", func(fl validator.FieldLevel) bool {
		return shared.IsKnownModule(fl.Field().String())
	})
	return &Handler{logger: logger, service: service, validator: v}
}

// MountRoutes registers decision routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/modules", h.listCatalog)
	r.Get("/users/{userID}/modules", h.accessibleModules)
	r.Get("/users/{userID}/permissions/{module}/{action}", h.checkPermission)
}

type permissionQuery struct {
	UserID string `validate:"required,max=128"`
	Module string `validate:"required,module"`
	Action string `validate:"required,max=32"`
}

type decisionResponse struct {
	UserID  string `json:"user_id"`
	Module  string `json:"module"`
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
	State   string `json:"state"`
	Role    string `json:"role,omitempty"`
}

type moduleView struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	q := permissionQuery{
		UserID: chi.URLParam(r, "userID"),
		Module: chi.URLParam(r, "module"),
		Action: chi.URLParam(r, "action"),
	}
	if err := h.validator.Struct(q); err != nil {
		h.logger.DebugContext(r.Context(), "rbac invalid permission query", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	d := h.service.Decide(r.Context(), q.UserID, q.Module, shared.NormalizeAction(q.Action))
	httpx.JSON(w, http.StatusOK, decisionResponse{
		UserID:  d.UserID,
		Module:  d.Module,
		Action:  d.Action.String(),
		Allowed: d.Allowed(),
		State:   d.State.String(),
		Role:    d.Role,
	})
}

func (h *Handler) accessibleModules(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	keys := h.service.AccessibleModules(r.Context(), userID)
	labels := make(map[string]string, len(keys))
	for _, m := range shared.Modules() {
		labels[m.Key] = m.Label
	}
	out := make([]moduleView, len(keys))
	for i, k := range keys {
		out[i] = moduleView{Key: k, Label: labels[k]}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "modules": out})
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := shared.Modules()
	out := make([]moduleView, len(catalog))
	for i, m := range catalog {
		out[i] = moduleView{Key: m.Key, Label: m.Label}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": out})
}
