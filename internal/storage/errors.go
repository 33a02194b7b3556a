package storage

import (
	"fmt"

	"github.com/doj-records/records/internal/shared"
	"github.com/doj-records/records/internal/storage/record"
)

var (
	// ErrNotFound indicates an update or delete targeted an absent id.
	ErrNotFound = fmt.Errorf("storage: record %w", shared.ErrNotFound)
	// ErrDuplicate indicates an insert reused an existing id.
	ErrDuplicate = fmt.Errorf("storage: %w", shared.ErrDuplicate)
	// ErrInvalidCollection indicates a collection name that maps to no file or table.
	ErrInvalidCollection = record.ErrInvalidCollection
)
