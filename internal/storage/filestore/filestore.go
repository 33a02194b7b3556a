// Package filestore keeps each collection as one JSON array file.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/doj-records/records/internal/storage/lock"
	"github.com/doj-records/records/internal/storage/record"
)

const fileExt = ".json"

// Store reads and rewrites whole collection files.
type Store struct {
	dir    string
	locker lock.Locker
	logger *slog.Logger
}

// New constructs a Store rooted at dir. A nil locker serializes writers
// within this process only.
func New(dir string, locker lock.Locker, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create data dir: %w", err)
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, locker: locker, logger: logger}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the backing file for a collection.
func (s *Store) Path(collection string) string {
	return filepath.Join(s.dir, collection+fileExt)
}

// Exists reports whether the collection file is present.
func (s *Store) Exists(collection string) bool {
	_, err := os.Stat(s.Path(collection))
	return err == nil
}

// Load decodes the whole collection. A missing or undecodable file yields
// an empty collection.
func (s *Store) Load(ctx context.Context, collection string) []record.Record {
	data, err := os.ReadFile(s.Path(collection))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WarnContext(ctx, "filestore read", slog.String("collection", collection), slog.Any("error", err))
		}
		return []record.Record{}
	}
	return s.decode(ctx, collection, data)
}

// Mutate runs fn over the current collection contents under the collection
// lock and atomically replaces the file with the result. When fn returns an
// error nothing is written.
func (s *Store) Mutate(ctx context.Context, collection string, fn func([]record.Record) ([]record.Record, error)) error {
	release, err := s.locker.Lock(ctx, collection)
	if err != nil {
		return fmt.Errorf("filestore: lock %s: %w", collection, err)
	}
	defer release()

	next, err := fn(s.Load(ctx, collection))
	if err != nil {
		return err
	}
	return s.save(collection, next)
}

// Replace atomically overwrites the collection with records.
func (s *Store) Replace(ctx context.Context, collection string, records []record.Record) error {
	return s.Mutate(ctx, collection, func([]record.Record) ([]record.Record, error) {
		return records, nil
	})
}

func (s *Store) decode(ctx context.Context, collection string, data []byte) []record.Record {
	if len(bytes.TrimSpace(data)) == 0 {
		return []record.Record{}
	}
	var raw []record.Record
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.WarnContext(ctx, "filestore malformed collection", slog.String("collection", collection), slog.Any("error", err))
		return []record.Record{}
	}
	out := raw[:0]
	for _, rec := range raw {
		if rec == nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (s *Store) save(collection string, records []record.Record) error {
	if records == nil {
		records = []record.Record{}
	}
	payload, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", collection, err)
	}
	if err := renameio.WriteFile(s.Path(collection), payload, 0o644); err != nil {
		return fmt.Errorf("filestore: write %s: %w", collection, err)
	}
	return nil
}
