// Package record holds the schemaless field bag exchanged with the storage
// backends. Typed domain structs are decoded from it at the repository edge.
package record

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Well-known fields injected or read by the facade.
const (
	FieldID          = "id"
	FieldDateCreated = "date_created"
	FieldDateUpdated = "date_updated"
)

// TimeLayout is the timestamp format stored in date fields.
const TimeLayout = "2006-01-02 15:04:05"

// ErrInvalidCollection reports a collection name that cannot map to a file or table.
var ErrInvalidCollection = errors.New("record: invalid collection name")

var collectionPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Record is a single stored object keyed by field name.
type Record map[string]any

// ID returns the record id as a string, or "" when absent.
func (r Record) ID() string {
	return formatID(r[FieldID])
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the field is present and non-nil.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// Matches reports whether every criterion equals the record's field value.
func (r Record) Matches(criteria map[string]any) bool {
	for field, want := range criteria {
		got, ok := r[field]
		if !ok || !Equal(got, want) {
			return false
		}
	}
	return true
}

// Equal compares two field values loosely: numbers, strings and booleans
// that render identically are considered equal, so 5, 5.0 and "5" match.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return scalarString(a) == scalarString(b)
}

// CollectionName normalizes a collection or legacy file name ("cases.json")
// into its stem ("cases").
func CollectionName(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollection, raw)
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if !collectionPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollection, raw)
	}
	return name, nil
}

func formatID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return scalarString(id)
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
