package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/doj-records/records/internal/roles"
	"github.com/doj-records/records/internal/shared"
)

// RoleSource lists the stored roles.
type RoleSource interface {
	List(ctx context.Context) ([]roles.Role, error)
}

// Builder computes the permission matrix from stored roles. Every Build
// reads storage afresh and nothing is kept once it completes. Concurrent
// callers share one in-flight build per generation; Invalidate starts a new
// generation, so a Build issued after a role write never joins a load that
// began before it. Writes made by other processes carry no invalidation and
// may be missed by callers that join a build already in flight.
type Builder struct {
	roles  RoleSource
	logger *slog.Logger
	group  singleflight.Group
	gen    atomic.Uint64
}

// NewBuilder constructs a Builder.
func NewBuilder(src RoleSource, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{roles: src, logger: logger}
}

// Build returns the current matrix. A caller whose ctx ends stops waiting;
// the shared build itself runs to completion for the remaining callers.
func (b *Builder) Build(ctx context.Context) (Matrix, error) {
	key := strconv.FormatUint(b.gen.Load(), 10)
	ch := b.group.DoChan(key, func() (any, error) {
		return b.build(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Matrix), nil
	}
}

// Invalidate marks builds in flight as stale for later callers.
func (b *Builder) Invalidate() {
	b.gen.Add(1)
}

func (b *Builder) build(ctx context.Context) (Matrix, error) {
	stored, err := b.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: load roles: %w", err)
	}
	return Compile(stored), nil
}

// Compile derives the matrix from stored roles:
//
//  1. sentinel roles receive every action on every catalog module;
//  2. stored roles contribute their normalized grants on catalog modules,
//     except that entries for sentinel ids are ignored;
//  3. every role present receives view on the baseline module.
func Compile(stored []roles.Role) Matrix {
	m := make(Matrix, len(stored)+len(shared.FullAccessRoleIDs()))
	modules := shared.ModuleKeys()
	for _, id := range shared.FullAccessRoleIDs() {
		for _, module := range modules {
			m.grant(id, module, shared.AllActions)
		}
	}
	for _, role := range stored {
		if role.ID == "" || shared.IsFullAccessRole(role.ID) {
			continue
		}
		if _, ok := m[role.ID]; !ok {
			m[role.ID] = make(map[string]shared.ActionSet)
		}
		for module, set := range role.Grants() {
			m.grant(role.ID, module, set)
		}
	}
	baseline := shared.ActionSet(0).With(shared.ActionView)
	for id := range m {
		m.grant(id, shared.BaselineModule, baseline)
	}
	return m
}
