package roles

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/doj-records/records/internal/shared"
)

var roleIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id string) (Role, error)
	Put(ctx context.Context, role Role) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Service handles role authoring. Every write stores canonical permissions.
type Service struct {
	repo      RepositoryPort
	validator *validator.Validate
	logger    *slog.Logger

	mu        sync.RWMutex
	listeners []func()
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	_ = v.RegisterValidation("role_id", func(fl validator.FieldLevel) bool {
		return roleIDPattern.MatchString(fl.Field().String())
	})
	return &Service{repo: repo, validator: v, logger: logger}
}

// OnChange registers fn to run after every stored role write, before the
// writing call returns.
func (s *Service) OnChange(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Service) changed() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.listeners {
		fn()
	}
}

// List returns all roles sorted by id.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Get returns one role.
func (s *Service) Get(ctx context.Context, id string) (Role, error) {
	return s.repo.Get(ctx, id)
}

// Save validates role, canonicalizes its permissions and stores it. Unknown
// modules are rejected rather than silently dropped so authors notice typos.
func (s *Service) Save(ctx context.Context, role Role) (Role, bool, error) {
	role.ID = strings.TrimSpace(role.ID)
	role.Name = strings.TrimSpace(role.Name)
	if err := s.validator.Struct(role); err != nil {
		return Role{}, false, fmt.Errorf("%w: %s", ErrInvalidRole, describe(err))
	}
	if unknown := UnknownModules(role.Permissions); len(unknown) > 0 {
		return Role{}, false, fmt.Errorf("%w: unknown modules %s", ErrInvalidRole, strings.Join(unknown, ", "))
	}
	if shared.IsFullAccessRole(role.ID) && len(CanonicalPermissions(role.Permissions)) > 0 {
		return Role{}, false, fmt.Errorf("%w: %s: %v", ErrInvalidRole, role.ID, errSentinelRole)
	}
	role.Permissions = CanonicalPermissions(role.Permissions)
	created, err := s.repo.Put(ctx, role)
	if err != nil {
		return Role{}, false, err
	}
	s.changed()
	s.logger.InfoContext(ctx, "role saved", slog.String("role", role.ID), slog.Bool("created", created))
	return role, created, nil
}

// Delete removes a role. Users referencing it keep their role fields.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed()
	s.logger.InfoContext(ctx, "role deleted", slog.String("role", id))
	return nil
}

// NormalizationReport summarizes a NormalizeStored run.
type NormalizationReport struct {
	Rewritten []string `json:"rewritten"`
	Unchanged int      `json:"unchanged"`
}

// synonyms become view/edit/delete and anything else edit, unknown modules are
// synonyms and numeric codes become view/edit/delete, unknown modules are
// dropped, and modules that historically shared the cases grants inherit
// them when absent.
func (s *Service) NormalizeStored(ctx context.Context) (NormalizationReport, error) {
	var report NormalizationReport
	list, err := s.repo.List(ctx)
	if err != nil {
		return report, err
	}
	for _, role := range list {
		next := inherit(role.Permissions)
		next = CanonicalPermissions(next)
		if reflect.DeepEqual(next, role.Permissions) {
			report.Unchanged++
			continue
		}
		role.Permissions = next
		if _, err := s.repo.Put(ctx, role); err != nil {
			return report, err
		}
		s.changed()
		s.logger.InfoContext(ctx, "role permissions normalized", slog.String("role", role.ID))
		report.Rewritten = append(report.Rewritten, role.ID)
	}
	return report, nil
}

func inherit(perms map[string][]string) map[string][]string {
	out := make(map[string][]string, len(perms)+len(inheritedModules))
	for k, v := range perms {
		out[k] = v
	}
	for _, rule := range inheritedModules {
		src, ok := out[rule.from]
		if !ok {
			continue
		}
		if _, exists := out[rule.to]; !exists {
			out[rule.to] = src
		}
	}
	return out
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
