package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUsersNormalizeRoles derives role_id from legacy role display names.
	TaskUsersNormalizeRoles = "users:normalize_roles"
	// TaskRolesNormalizePermissions rewrites stored role permissions into
	// the view/edit/delete vocabulary.
	TaskRolesNormalizePermissions = "roles:normalize_permissions"
)

// MigrationPayload identifies who requested a migration run.
type MigrationPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// NewUsersNormalizeRolesTask builds the legacy role-field migration task.
func NewUsersNormalizeRolesTask(payload MigrationPayload) (*asynq.Task, error) {
	return newMigrationTask(TaskUsersNormalizeRoles, payload)
}

// NewRolesNormalizePermissionsTask builds the permission canonicalization task.
func NewRolesNormalizePermissionsTask(payload MigrationPayload) (*asynq.Task, error) {
	return newMigrationTask(TaskRolesNormalizePermissions, payload)
}

func newMigrationTask(taskType string, payload MigrationPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// MigrationSchedule registers both migrations under spec, roles first so
// the user migration resolves against canonical role ids.
func MigrationSchedule(spec string) ([]CronRegistration, error) {
	rolesTask, err := NewRolesNormalizePermissionsTask(MigrationPayload{RequestedBy: "scheduler"})
	if err != nil {
		return nil, err
	}
	usersTask, err := NewUsersNormalizeRolesTask(MigrationPayload{RequestedBy: "scheduler"})
	if err != nil {
		return nil, err
	}
	return []CronRegistration{
		{Spec: spec, Task: rolesTask},
		{Spec: spec, Task: usersTask, Options: []asynq.Option{asynq.ProcessIn(time.Minute)}},
	}, nil
}
