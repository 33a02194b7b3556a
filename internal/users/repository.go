package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doj-records/records/internal/shared"
	"github.com/doj-records/records/internal/storage/record"
)

// Store is the persistence surface the repository needs.
type Store interface {
	FindByID(ctx context.Context, collection, id string) (record.Record, bool, error)
	Query(ctx context.Context, collection string, criteria map[string]any) ([]record.Record, error)
	Insert(ctx context.Context, collection string, rec record.Record) (string, error)
	Update(ctx context.Context, collection, id string, rec record.Record) error
}

// Repository maps user records to typed users.
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

// Get loads one user with its role reference resolved.
func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	rec, ok, err := r.store.FindByID(ctx, shared.CollectionUsers, id)
	if err != nil {
		return User{}, fmt.Errorf("users: get %s: %w", id, err)
	}
	if !ok {
		return User{}, ErrNotFound
	}
	return fromRecord(rec)
}

// List returns every user. Undecodable entries are skipped.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	recs, err := r.store.Query(ctx, shared.CollectionUsers, nil)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	out := make([]User, 0, len(recs))
	for _, rec := range recs {
		u, err := fromRecord(rec)
		if err != nil {
			r.logger.WarnContext(ctx, "users skip malformed record", slog.String("id", rec.ID()), slog.Any("error", err))
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// Records returns the raw user records, preserving fields the typed User
// does not model.
func (r *Repository) Records(ctx context.Context) ([]record.Record, error) {
	recs, err := r.store.Query(ctx, shared.CollectionUsers, nil)
	if err != nil {
		return nil, fmt.Errorf("users: records: %w", err)
	}
	return recs, nil
}

// SetRoleID stores roleID on the raw record.
func (r *Repository) SetRoleID(ctx context.Context, rec record.Record, roleID string) error {
	next := rec.Clone()
	next["role_id"] = roleID
	if err := r.store.Update(ctx, shared.CollectionUsers, rec.ID(), next); err != nil {
		return fmt.Errorf("users: set role_id %s: %w", rec.ID(), err)
	}
	return nil
}

// Create inserts a user and returns its id.
func (r *Repository) Create(ctx context.Context, u User, extra record.Record) (string, error) {
	rec, err := record.Encode(u)
	if err != nil {
		return "", fmt.Errorf("users: create: %w", err)
	}
	for k, v := range extra {
		if _, ok := rec[k]; !ok {
			rec[k] = v
		}
	}
	if u.ID == "" {
		delete(rec, record.FieldID)
	}
	id, err := r.store.Insert(ctx, shared.CollectionUsers, rec)
	if err != nil {
		return "", fmt.Errorf("users: create: %w", err)
	}
	return id, nil
}

func fromRecord(rec record.Record) (User, error) {
	var u User
	if err := record.Decode(rec, &u); err != nil {
		return User{}, fmt.Errorf("users: decode %s: %w", rec.ID(), err)
	}
	if u.ID == "" {
		u.ID = rec.ID()
	}
	u.Ref = ResolveRoleRef(u)
	return u, nil
}
