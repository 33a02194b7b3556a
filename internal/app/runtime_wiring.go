package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/doj-records/records/internal/jobs"
	"github.com/doj-records/records/internal/observability"
	"github.com/doj-records/records/internal/platform/cache"
	"github.com/doj-records/records/internal/platform/db"
	"github.com/doj-records/records/internal/rbac"
	"github.com/doj-records/records/internal/roles"
	"github.com/doj-records/records/internal/storage"
	"github.com/doj-records/records/internal/storage/filestore"
	"github.com/doj-records/records/internal/storage/lock"
	"github.com/doj-records/records/internal/storage/policy"
	"github.com/doj-records/records/internal/storage/relational"
	"github.com/doj-records/records/internal/users"
	"github.com/doj-records/records/jobs"
)

// Runtime holds the components shared by the service and the worker.
type Runtime struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Redis   *redis.Client
	Store   *storage.Store
	Users   *users.Service
	Roles   *roles.Service
	RBAC    *rbac.Service

	// Jobs and Inspector are nil unless REDIS_ADDR is set.
	Jobs      *jobs.Client
	Inspector *asynq.Inspector

	closers []func()
}

// Open wires storage, repositories and the access decision engine. In test
// mode no PostgreSQL or Redis connection is attempted.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Logger: logger, Metrics: metrics}

	var locker lock.Locker
	if cfg.RedisAddr != "" && !InTestMode() {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		rt.Redis = client
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		locker = lock.NewRedis(client, cfg.LockTTL, logger)

		opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient, err := jobs.NewClient(opts)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("app: jobs client: %w", err)
		}
		inspector := asynq.NewInspector(opts)
		rt.Jobs, rt.Inspector = jobClient, inspector
		rt.closers = append(rt.closers, func() {
			_ = inspector.Close()
			_ = jobClient.Close()
		})
	}

	files, err := filestore.New(cfg.DataDir, locker, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	pcfg, err := cfg.PolicyConfig()
	if err != nil {
		rt.Close()
		return nil, err
	}

	var rel storage.Relational
	if dsn := cfg.PostgresDSN(); dsn != "" && !InTestMode() {
		adapter, err := rt.openRelational(ctx, cfg, dsn)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rel = adapter
	}

	rt.Store = storage.New(files, rel, policy.New(pcfg, logger), logger, metrics)

	roleRepo := roles.NewRepository(rt.Store, logger)
	rt.Roles = roles.NewService(roleRepo, logger)
	rt.Users = users.NewService(users.NewRepository(rt.Store, logger), roleRepo, logger)
	builder := rbac.NewBuilder(roleRepo, logger)
	rt.Roles.OnChange(builder.Invalidate)
	rt.RBAC = rbac.NewService(rt.Users, builder, logger, metrics)
	return rt, nil
}

// openRelational dials PostgreSQL within DB_CONNECT_TIMEOUT. An unreachable
// server is not fatal: the pool is kept and every request probes it again
// while the file store serves in the meantime.
func (rt *Runtime) openRelational(ctx context.Context, cfg *Config, dsn string) (*relational.Adapter, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.DBConnectTimeout)
	defer cancel()

	pool, err := db.New(dialCtx, dsn)
	if err != nil {
		rt.Logger.WarnContext(ctx, "postgres unavailable at startup, serving from file store", slog.Any("error", err))
		pool, err = db.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("app: postgres: %w", err)
		}
	}
	conn := db.OpenSQL(pool)
	rt.closers = append(rt.closers, func() {
		_ = conn.Close()
		pool.Close()
	})
	return relational.New(conn, rt.Logger), nil
}

// Close releases connections in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// MigrationJobs returns the handlers for the legacy migration tasks.
func (rt *Runtime) MigrationJobs(metrics *jobmetrics.Metrics) *jobs.MigrationJobs {
	return jobs.NewMigrationJobs(rt.Users, rt.Roles, rt.Logger, metrics)
}

// AuthzMiddleware returns the rbac middleware for collaborator routes.
func (rt *Runtime) AuthzMiddleware() rbac.Middleware {
	return rbac.Middleware{Service: rt.RBAC, Logger: rt.Logger}
}
