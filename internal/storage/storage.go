// Package storage is the persistence facade feature modules use for
// collection CRUD. It routes every call to the file store or the relational
// adapter according to the migration policy and retries on the file store
// when the relational backend is unreachable.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/doj-records/records/internal/storage/filestore"
	"github.com/doj-records/records/internal/storage/policy"
	"github.com/doj-records/records/internal/storage/record"
	"github.com/doj-records/records/internal/storage/relational"
)

// Operation labels used in logs and metrics.
const (
	opFind   = "find"
	opInsert = "insert"
	opUpdate = "update"
	opDelete = "delete"
	opQuery  = "query"
)

// Relational is the subset of the relational adapter the facade drives.
type Relational interface {
	policy.Probe
	FindByID(ctx context.Context, table, id string) (record.Record, bool, error)
	Insert(ctx context.Context, table string, rec record.Record) error
	Update(ctx context.Context, table, id string, rec record.Record) error
	Delete(ctx context.Context, table, id string) error
	Query(ctx context.Context, table string, criteria map[string]any) ([]record.Record, error)
}

// Observer receives backend selection events.
type Observer interface {
	ObserveStorage(collection, backend, op string)
	ObserveFallback(collection, op string)
}

type nopObserver struct{}

func (nopObserver) ObserveStorage(string, string, string) {}
func (nopObserver) ObserveFallback(string, string)        {}

// Store unifies both backends behind one CRUD surface.
type Store struct {
	files    *filestore.Store
	rel      Relational
	policy   *policy.Policy
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
	newID    func() string
}

// New constructs a Store. rel may be nil when relational mode is not
// configured.
func New(files *filestore.Store, rel Relational, pol *policy.Policy, logger *slog.Logger, observer Observer) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if pol == nil {
		pol = policy.New(policy.DefaultConfig(), logger)
	}
	return &Store{
		files:    files,
		rel:      rel,
		policy:   pol,
		logger:   logger,
		observer: observer,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Files exposes the underlying file store.
func (s *Store) Files() *filestore.Store {
	return s.files
}

// FindByID returns the record with id. Absence is reported as ok=false with
// a nil error.
func (s *Store) FindByID(ctx context.Context, collection, id string) (record.Record, bool, error) {
	name, err := record.CollectionName(collection)
	if err != nil {
		return nil, false, err
	}
	var (
		found record.Record
		ok    bool
	)
	served, err := s.relational(ctx, name, opFind, func(table string) error {
		var ferr error
		found, ok, ferr = s.rel.FindByID(ctx, table, id)
		return ferr
	})
	if served {
		if err != nil {
			return nil, false, fmt.Errorf("storage: find %s/%s: %w", name, id, err)
		}
		return found, ok, nil
	}

	s.observer.ObserveStorage(name, policy.BackendFile.String(), opFind)
	for _, rec := range s.files.Load(ctx, name) {
		if rec.ID() == id {
			return rec, true, nil
		}
	}
	return nil, false, nil
}

// Insert stores rec and returns its id. A missing id is synthesized and a
// missing date_created is stamped with the current time.
func (s *Store) Insert(ctx context.Context, collection string, rec record.Record) (string, error) {
	name, err := record.CollectionName(collection)
	if err != nil {
		return "", err
	}
	rec = rec.Clone()
	if rec == nil {
		rec = record.Record{}
	}
	id := rec.ID()
	if id == "" {
		id = s.newID()
	}
	rec[record.FieldID] = id
	if !rec.Has(record.FieldDateCreated) {
		rec[record.FieldDateCreated] = s.timestamp()
	}

	served, err := s.relational(ctx, name, opInsert, func(table string) error {
		return s.rel.Insert(ctx, table, rec)
	})
	if served {
		if err != nil {
			return "", fmt.Errorf("storage: insert %s: %w", name, err)
		}
		return id, nil
	}

	err = s.files.Mutate(ctx, name, func(recs []record.Record) ([]record.Record, error) {
		for _, existing := range recs {
			if existing.ID() == id {
				return nil, ErrDuplicate
			}
		}
		return append(recs, rec), nil
	})
	if err != nil {
		return "", fmt.Errorf("storage: insert %s: %w", name, err)
	}
	s.observer.ObserveStorage(name, policy.BackendFile.String(), opInsert)
	return id, nil
}

// Update replaces the record with id wholesale, keeping its original
// date_created and stamping date_updated.
func (s *Store) Update(ctx context.Context, collection, id string, rec record.Record) error {
	name, err := record.CollectionName(collection)
	if err != nil {
		return err
	}
	rec = rec.Clone()
	if rec == nil {
		rec = record.Record{}
	}
	rec[record.FieldID] = id
	rec[record.FieldDateUpdated] = s.timestamp()

	served, err := s.relational(ctx, name, opUpdate, func(table string) error {
		return s.rel.Update(ctx, table, id, rec)
	})
	if served {
		if err != nil {
			return fmt.Errorf("storage: update %s/%s: %w", name, id, err)
		}
		return nil
	}

	err = s.files.Mutate(ctx, name, func(recs []record.Record) ([]record.Record, error) {
		for i, existing := range recs {
			if existing.ID() != id {
				continue
			}
			if created, ok := existing[record.FieldDateCreated]; ok {
				rec[record.FieldDateCreated] = created
			}
			recs[i] = rec
			return recs, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return fmt.Errorf("storage: update %s/%s: %w", name, id, err)
	}
	s.observer.ObserveStorage(name, policy.BackendFile.String(), opUpdate)
	return nil
}

// Delete removes the record with id. Referencing records are left alone.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	name, err := record.CollectionName(collection)
	if err != nil {
		return err
	}
	served, err := s.relational(ctx, name, opDelete, func(table string) error {
		return s.rel.Delete(ctx, table, id)
	})
	if served {
		if err != nil {
			return fmt.Errorf("storage: delete %s/%s: %w", name, id, err)
		}
		return nil
	}

	err = s.files.Mutate(ctx, name, func(recs []record.Record) ([]record.Record, error) {
		for i, existing := range recs {
			if existing.ID() == id {
				return append(recs[:i], recs[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", name, id, err)
	}
	s.observer.ObserveStorage(name, policy.BackendFile.String(), opDelete)
	return nil
}

// Query returns the records whose fields equal every criterion. Empty
// criteria return the whole collection.
func (s *Store) Query(ctx context.Context, collection string, criteria map[string]any) ([]record.Record, error) {
	name, err := record.CollectionName(collection)
	if err != nil {
		return nil, err
	}
	var rows []record.Record
	served, err := s.relational(ctx, name, opQuery, func(table string) error {
		var qerr error
		rows, qerr = s.rel.Query(ctx, table, criteria)
		return qerr
	})
	if served {
		if err != nil {
			return nil, fmt.Errorf("storage: query %s: %w", name, err)
		}
		if rows == nil {
			rows = []record.Record{}
		}
		return rows, nil
	}

	s.observer.ObserveStorage(name, policy.BackendFile.String(), opQuery)
	out := []record.Record{}
	for _, rec := range s.files.Load(ctx, name) {
		if rec.Matches(criteria) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Backend reports the backend that would serve collection right now.
func (s *Store) Backend(ctx context.Context, collection string) (policy.Backend, error) {
	name, err := record.CollectionName(collection)
	if err != nil {
		return policy.BackendFile, err
	}
	return s.backend(ctx, name), nil
}

func (s *Store) backend(ctx context.Context, collection string) policy.Backend {
	scope := ScopeFrom(ctx)
	if b, ok := scope.Backend(collection); ok {
		return b
	}
	var b policy.Backend
	if s.rel == nil {
		b = policy.BackendFile
	} else {
		b = s.policy.Route(ctx, collection, s.rel)
	}
	scope.pin(collection, b)
	return b
}

// relational runs fn when collection is routed to the relational backend.
// served is false when the file store must handle the call, either because
// the collection is not routed there or because the backend turned out to be
// unavailable. Any other relational error is returned with served=true.
func (s *Store) relational(ctx context.Context, collection, op string, fn func(table string) error) (served bool, err error) {
	if s.backend(ctx, collection) != policy.BackendRelational {
		return false, nil
	}
	err = fn(policy.TableName(collection))
	switch {
	case err == nil:
		s.observer.ObserveStorage(collection, policy.BackendRelational.String(), op)
		return true, nil
	case relational.IsUnavailable(err):
		s.logger.WarnContext(ctx, "storage relational unavailable, using file store",
			slog.String("collection", collection),
			slog.String("op", op),
			slog.Any("error", err),
		)
		s.observer.ObserveFallback(collection, op)
		ScopeFrom(ctx).pin(collection, policy.BackendFile)
		return false, nil
	case errors.Is(err, relational.ErrNotFound):
		return true, ErrNotFound
	case relational.IsDuplicate(err):
		return true, fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return true, err
	}
}

func (s *Store) timestamp() string {
	return s.now().Format(record.TimeLayout)
}
