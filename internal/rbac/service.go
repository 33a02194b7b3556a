package rbac

import (
	"context"
	"errors"
	"log/slog"

	"github.com/doj-records/records/internal/shared"
	"github.com/doj-records/records/internal/users"
)

// UserSource loads users with their role reference resolved.
type UserSource interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// DecisionObserver receives every decision outcome.
type DecisionObserver interface {
	ObserveDecision(module string, allowed bool)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(string, bool) {}

// Service answers access questions. It never returns errors to callers:
// every failure resolves to a deny.
type Service struct {
	users    UserSource
	builder  *Builder
	logger   *slog.Logger
	observer DecisionObserver
}

// NewService constructs a Service.
func NewService(src UserSource, builder *Builder, logger *slog.Logger, observer DecisionObserver) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{users: src, builder: builder, logger: logger, observer: observer}
}

// CheckPermission reports whether userID may perform action on module.
// action may be any legacy synonym.
func (s *Service) CheckPermission(ctx context.Context, userID, module, action string) bool {
	return s.Decide(ctx, userID, module, shared.NormalizeAction(action)).Allowed()
}

// Decide resolves a single access question.
func (s *Service) Decide(ctx context.Context, userID, module string, action shared.Action) Decision {
	d := s.decide(ctx, userID, module, action)
	s.observer.ObserveDecision(module, d.Allowed())
	if !d.Allowed() {
		s.logger.DebugContext(ctx, "rbac deny",
			slog.String("user", userID),
			slog.String("module", module),
			slog.String("action", action.String()),
			slog.String("reason", d.Reason),
		)
	}
	return d
}

func (s *Service) decide(ctx context.Context, userID, module string, action shared.Action) Decision {
	d := Decision{State: StateDenied, UserID: userID, Module: module, Action: action}
	if userID == "" {
		d.State = StateUnauthenticated
		d.Reason = "no user"
		return d
	}
	u, ok := s.loadUser(ctx, userID)
	if !ok {
		d.Reason = "unknown user"
		return d
	}
	if u.Ref.FullAccess {
		d.State = StateAllowed
		d.Reason = "full access"
		return d
	}
	matrix, err := s.builder.Build(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "rbac build matrix", slog.Any("error", err))
		d.Reason = "permission matrix unavailable"
		return d
	}
	for _, candidate := range u.Ref.Candidates {
		if matrix.Allows(candidate, module, action) {
			d.State = StateAllowed
			d.Role = candidate
			d.Reason = "role grant"
			return d
		}
	}
	d.Reason = "no matching grant"
	return d
}

// AccessibleModules lists the catalog modules userID may view, in catalog
// order.
func (s *Service) AccessibleModules(ctx context.Context, userID string) []string {
	out := []string{}
	if userID == "" {
		return out
	}
	u, ok := s.loadUser(ctx, userID)
	if !ok {
		return out
	}
	if u.Ref.FullAccess {
		return shared.ModuleKeys()
	}
	matrix, err := s.builder.Build(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "rbac build matrix", slog.Any("error", err))
		return out
	}
	for _, module := range shared.ModuleKeys() {
		for _, candidate := range u.Ref.Candidates {
			if matrix.Allows(candidate, module, shared.ActionView) {
				out = append(out, module)
				break
			}
		}
	}
	return out
}

func (s *Service) loadUser(ctx context.Context, userID string) (users.User, bool) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			s.logger.WarnContext(ctx, "rbac load user", slog.String("user", userID), slog.Any("error", err))
		}
		return users.User{}, false
	}
	return u, true
}
