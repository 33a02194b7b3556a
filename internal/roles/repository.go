package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doj-records/records/internal/shared"
	"github.com/doj-records/records/internal/storage"
	"github.com/doj-records/records/internal/storage/record"
)

// Store is the persistence surface the repository needs.
type Store interface {
	FindByID(ctx context.Context, collection, id string) (record.Record, bool, error)
	Query(ctx context.Context, collection string, criteria map[string]any) ([]record.Record, error)
	Insert(ctx context.Context, collection string, rec record.Record) (string, error)
	Update(ctx context.Context, collection, id string, rec record.Record) error
	Delete(ctx context.Context, collection, id string) error
}

// Repository maps role records to typed roles.
type Repository struct {
	store  Store
	logger *slog.Logger
}

// NewRepository constructs a repository.
func NewRepository(store Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: store, logger: logger}
}

// List returns every stored role. Records without an id or that cannot be
// decoded are skipped.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	recs, err := r.store.Query(ctx, shared.CollectionRoles, nil)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	out := make([]Role, 0, len(recs))
	for _, rec := range recs {
		if rec.ID() == "" {
			continue
		}
		role, err := fromRecord(rec)
		if err != nil {
			r.logger.WarnContext(ctx, "roles skip malformed record", slog.String("id", rec.ID()), slog.Any("error", err))
			continue
		}
		out = append(out, role)
	}
	return out, nil
}

// Get loads one role.
func (r *Repository) Get(ctx context.Context, id string) (Role, error) {
	rec, ok, err := r.store.FindByID(ctx, shared.CollectionRoles, id)
	if err != nil {
		return Role{}, fmt.Errorf("roles: get %s: %w", id, err)
	}
	if !ok {
		return Role{}, ErrNotFound
	}
	return fromRecord(rec)
}

// Put inserts role or replaces the stored role with the same id. It reports
// whether a new record was created.
func (r *Repository) Put(ctx context.Context, role Role) (bool, error) {
	rec, err := record.Encode(role)
	if err != nil {
		return false, fmt.Errorf("roles: put %s: %w", role.ID, err)
	}
	err = r.store.Update(ctx, shared.CollectionRoles, role.ID, rec)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("roles: put %s: %w", role.ID, err)
	}
	if _, err := r.store.Insert(ctx, shared.CollectionRoles, rec); err != nil {
		return false, fmt.Errorf("roles: put %s: %w", role.ID, err)
	}
	return true, nil
}

// Delete removes a role.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, shared.CollectionRoles, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("roles: delete %s: %w", id, err)
	}
	return nil
}

func fromRecord(rec record.Record) (Role, error) {
	var role Role
	if err := record.Decode(rec, &role); err != nil {
		return Role{}, fmt.Errorf("roles: decode %s: %w", rec.ID(), err)
	}
	if role.Permissions == nil {
		role.Permissions = map[string][]string{}
	}
	return role, nil
}
