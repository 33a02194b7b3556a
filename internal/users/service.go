package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doj-records/records/internal/roles"
	"github.com/doj-records/records/internal/shared"
)

// RoleLister supplies the stored roles the legacy migration matches against.
type RoleLister interface {
	List(ctx context.Context) ([]roles.Role, error)
}

// legacyRoleNames maps historical display names to role ids.
var legacyRoleNames = map[string]string{
	"Staatsanwalt":         "prosecutor",
	"Richter":              "judge",
	"Administrator":        shared.RoleAdmin,
	"Vorsitzender Richter": "chief_justice",
	"Oberjustizinspektor":  "chief_justice",
	"Oberstaatsanwalt":     "senior_prosecutor",
	"Juniorstaatsanwalt":   "junior_prosecutor",
	"Amtsrichter":          "district_court_judge",
	"District Attorney":    "district_attorney",
	"Senior Prosecutor":    "senior_prosecutor",
	"Junior Prosecutor":    "junior_prosecutor",
	"District Court Judge": "district_court_judge",
}

// Service handles user lookups and the one-time role field migration.
type Service struct {
	repo   *Repository
	roles  RoleLister
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo *Repository, roles RoleLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, logger: logger}
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.Get(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// MigrationReport summarizes a NormalizeLegacyRoles run.
type MigrationReport struct {
	Updated    map[string]string `json:"updated"`
	Unresolved []string          `json:"unresolved"`
	Skipped    int               `json:"skipped"`
}

// NormalizeLegacyRoles fills role_id for every user that only carries a
// legacy role display name. Users that already have a role_id are left
// alone, so repeated runs are no-ops.
func (s *Service) NormalizeLegacyRoles(ctx context.Context) (MigrationReport, error) {
	report := MigrationReport{Updated: map[string]string{}}
	stored, err := s.roles.List(ctx)
	if err != nil {
		return report, fmt.Errorf("users: normalize roles: %w", err)
	}
	recs, err := s.repo.Records(ctx)
	if err != nil {
		return report, err
	}

	for _, rec := range recs {
		u, err := fromRecord(rec)
		if err != nil {
			s.logger.WarnContext(ctx, "users migration skip malformed record", slog.String("id", rec.ID()), slog.Any("error", err))
			report.Unresolved = append(report.Unresolved, rec.ID())
			continue
		}
		if u.RoleID != "" {
			report.Skipped++
			continue
		}
		roleID := deriveRoleID(u, stored)
		if roleID == "" {
			s.logger.WarnContext(ctx, "users migration no matching role", slog.String("user", u.ID), slog.String("role", u.Role))
			report.Unresolved = append(report.Unresolved, u.ID)
			continue
		}
		if err := s.repo.SetRoleID(ctx, rec, roleID); err != nil {
			return report, err
		}
		s.logger.InfoContext(ctx, "users migration set role_id", slog.String("user", u.ID), slog.String("role", u.Role), slog.String("role_id", roleID))
		report.Updated[u.ID] = roleID
	}
	return report, nil
}

func deriveRoleID(u User, stored []roles.Role) string {
	names := make([]string, 0, 1+len(u.Roles))
	if u.Role != "" {
		names = append(names, u.Role)
	}
	names = append(names, u.Roles...)
	for _, name := range names {
		if id := roleIDFromName(name, stored); id != "" {
			return id
		}
	}
	return ""
}

// roleIDFromName tries an exact stored name match, then the historical name
// table, then a slug that names an existing role.
func roleIDFromName(name string, stored []roles.Role) string {
	for _, r := range stored {
		if r.Name == name {
			return r.ID
		}
	}
	if id, ok := legacyRoleNames[name]; ok {
		return id
	}
	slug := Slug(name)
	for _, r := range stored {
		if r.ID == slug {
			return slug
		}
	}
	return ""
}
