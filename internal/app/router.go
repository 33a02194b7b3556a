package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doj-records/records/internal/observability"
	"github.com/doj-records/records/internal/rbac"
	"github.com/doj-records/records/internal/roles"
	"github.com/doj-records/records/internal/users"
	"github.com/doj-records/records/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Metrics      *observability.Metrics
	AuthzHandler *rbac.Handler
	RolesHandler *roles.Handler
	UsersHandler *users.Handler
	JobsHandler  *jobs.Handler
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		if params.AuthzHandler != nil {
			r.Route("/authz", params.AuthzHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

// NewHandler wires the HTTP surface over rt.
func NewHandler(cfg *Config, rt *Runtime) http.Handler {
	guard := rt.AuthzMiddleware().Guard()
	var enqueuer jobs.Enqueuer
	if rt.Jobs != nil {
		enqueuer = rt.Jobs
	}
	return NewRouter(RouterParams{
		Logger:       rt.Logger,
		Config:       cfg,
		Metrics:      rt.Metrics,
		AuthzHandler: rbac.NewHandler(rt.Logger, rt.RBAC),
		RolesHandler: roles.NewHandler(rt.Logger, rt.Roles, guard),
		UsersHandler: users.NewHandler(rt.Logger, rt.Users, guard),
		JobsHandler:  jobs.NewHandler(rt.Inspector, enqueuer, guard, rt.Logger),
	})
}
