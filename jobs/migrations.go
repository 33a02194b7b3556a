package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/doj-records/records/internal/jobs"
	"github.com/doj-records/records/internal/roles"
	"github.com/doj-records/records/internal/storage"
	"github.com/doj-records/records/internal/users"
)

// UserMigrator rewrites legacy user role fields.
type UserMigrator interface {
	NormalizeLegacyRoles(ctx context.Context) (users.MigrationReport, error)
}

// RoleMigrator rewrites stored role permissions.
type RoleMigrator interface {
	NormalizeStored(ctx context.Context) (roles.NormalizationReport, error)
}

// MigrationJobs runs the one-time legacy data migrations.
type MigrationJobs struct {
	Users   UserMigrator
	Roles   RoleMigrator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewMigrationJobs wires dependencies for the migration handlers.
func NewMigrationJobs(usersSvc UserMigrator, rolesSvc RoleMigrator, logger *slog.Logger, metrics *jobmetrics.Metrics) *MigrationJobs {
	return &MigrationJobs{Users: usersSvc, Roles: rolesSvc, Logger: logger, Metrics: metrics}
}

// Handlers lists the task handlers to register on the worker.
func (j *MigrationJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskUsersNormalizeRoles, Handler: j.HandleNormalizeRoles},
		{Type: TaskRolesNormalizePermissions, Handler: j.HandleNormalizePermissions},
	}
}

// HandleNormalizeRoles processes TaskUsersNormalizeRoles tasks.
func (j *MigrationJobs) HandleNormalizeRoles(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Users == nil {
		return errors.New("normalize roles: handler not configured")
	}
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	tracker := j.Metrics.Track(TaskUsersNormalizeRoles)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("task", TaskUsersNormalizeRoles), slog.String("requested_by", payload.RequestedBy))
	report, err := j.Users.NormalizeLegacyRoles(storage.WithScope(ctx))
	if err != nil {
		logger.Error("normalize user roles", slog.Any("error", err))
		return err
	}
	j.Metrics.AddRewritten(TaskUsersNormalizeRoles, len(report.Updated))
	if len(report.Unresolved) > 0 {
		logger.Warn("users left without role_id", slog.Any("users", report.Unresolved))
	}
	logger.Info("user roles normalized",
		slog.Int("updated", len(report.Updated)),
		slog.Int("unresolved", len(report.Unresolved)),
		slog.Int("skipped", report.Skipped),
	)
	return nil
}

// HandleNormalizePermissions processes TaskRolesNormalizePermissions tasks.
func (j *MigrationJobs) HandleNormalizePermissions(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Roles == nil {
		return errors.New("normalize permissions: handler not configured")
	}
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	tracker := j.Metrics.Track(TaskRolesNormalizePermissions)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("task", TaskRolesNormalizePermissions), slog.String("requested_by", payload.RequestedBy))
	report, err := j.Roles.NormalizeStored(storage.WithScope(ctx))
	if err != nil {
		logger.Error("normalize role permissions", slog.Any("error", err))
		return err
	}
	j.Metrics.AddRewritten(TaskRolesNormalizePermissions, len(report.Rewritten))
	logger.Info("role permissions normalized",
		slog.Int("rewritten", len(report.Rewritten)),
		slog.Int("unchanged", report.Unchanged),
	)
	return nil
}

func decodePayload(t *asynq.Task) (MigrationPayload, error) {
	var payload MigrationPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, asynq.SkipRetry
	}
	return payload, nil
}

func (j *MigrationJobs) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
