// Package policy decides which backend is authoritative for a collection.
package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"

	"github.com/doj-records/records/internal/shared"
	"github.com/doj-records/records/internal/storage/record"
)

// Backend identifies a storage backend.
type Backend int

const (
	BackendFile Backend = iota
	BackendRelational
)

func (b Backend) String() string {
	if b == BackendRelational {
		return "relational"
	}
	return "file"
}

// Probe answers the runtime questions the policy cannot know statically.
type Probe interface {
	Available(ctx context.Context) bool
	TableExists(ctx context.Context, table string) (bool, error)
}

// Config holds the per-collection migration flags.
type Config struct {
	// Development forces every collection onto the file backend.
	Development bool
	// Default applies to collections without an explicit flag.
	Default bool
	// Collections maps collection names to their migration flag.
	Collections map[string]bool
}

// fileConfig mirrors the TOML policy file.
type fileConfig struct {
	Default     *bool           `toml:"default"`
	Collections map[string]bool `toml:"collections"`
}

// pinned collections never leave the file backend.
var pinned = map[string]struct{}{
	shared.CollectionUsers: {},
	shared.CollectionRoles: {},
}

// DefaultConfig returns the stock migration flags.
func DefaultConfig() Config {
	return Config{
		Default: true,
		Collections: map[string]bool{
			shared.CollectionUsers: false,
			shared.CollectionRoles: false,
			"cases":                true,
			"documents":            true,
			"equipment":            true,
			"fines":                true,
			"court_calendar":       true,
		},
	}
}

// LoadFile overlays the flags from a TOML file onto base:
//
//	default = false
//	[collections]
//	cases = true
func LoadFile(path string, base Config) (Config, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return base, fmt.Errorf("policy: decode %s: %w", path, err)
	}
	out := Config{Development: base.Development, Default: base.Default, Collections: make(map[string]bool, len(base.Collections)+len(fc.Collections))}
	for k, v := range base.Collections {
		out.Collections[k] = v
	}
	if fc.Default != nil {
		out.Default = *fc.Default
	}
	for k, v := range fc.Collections {
		name, err := record.CollectionName(k)
		if err != nil {
			return base, fmt.Errorf("policy: %s: %w", path, err)
		}
		out.Collections[name] = v
	}
	return out, nil
}

// Policy resolves the backend for a collection.
type Policy struct {
	development bool
	def         bool
	flags       map[string]bool
	logger      *slog.Logger
}

// New constructs a Policy.
func New(cfg Config, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	flags := make(map[string]bool, len(cfg.Collections))
	for k, v := range cfg.Collections {
		flags[k] = v
	}
	return &Policy{development: cfg.Development, def: cfg.Default, flags: flags, logger: logger}
}

// TableName derives the relational table from a collection name.
func TableName(collection string) string {
	return collection
}

// Migrated reports the static flag for a collection, after the development
// gate and the pinned collections are applied.
func (p *Policy) Migrated(collection string) bool {
	if p.development {
		return false
	}
	if _, ok := pinned[collection]; ok {
		return false
	}
	if flag, ok := p.flags[collection]; ok {
		return flag
	}
	return p.def
}

// Route picks the backend for collection. The relational backend is chosen
// only when the collection is migrated, the probe reports a reachable
// database and the table exists.
func (p *Policy) Route(ctx context.Context, collection string, probe Probe) Backend {
	if probe == nil || !p.Migrated(collection) {
		return BackendFile
	}
	if !probe.Available(ctx) {
		return BackendFile
	}
	exists, err := probe.TableExists(ctx, TableName(collection))
	if err != nil {
		p.logger.WarnContext(ctx, "policy table probe", slog.String("collection", collection), slog.Any("error", err))
		return BackendFile
	}
	if !exists {
		p.logger.WarnContext(ctx, "policy schema drift, table missing", slog.String("collection", collection))
		return BackendFile
	}
	return BackendRelational
}
