// Package storage defines the backend-agnostic capability interface the
// import pipeline needs from the destination equipment table, plus the
// backend factory registry.
//
// The interface is intentionally minimal: the pipeline reads the current
// column set, adds text columns idempotently, preloads values for duplicate
// detection, and inserts rows one at a time. Each backend implements these
// semantics in its own idiomatic way (Postgres ADD COLUMN IF NOT EXISTS,
// SQLite PRAGMA table_info, MSSQL COL_LENGTH, etc).
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a Registry.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - Table is the destination table name, optionally schema-qualified.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// EnsureOutcome reports what EnsureColumn did.
type EnsureOutcome int

const (
	// ColumnApplied means the column did not exist and was created.
	ColumnApplied EnsureOutcome = iota
	// ColumnExists means the column was already present; nothing was done.
	ColumnExists
	// ColumnRejected means the name is not a usable identifier for this
	// backend. The caller drops the column and continues.
	ColumnRejected
)

func (o EnsureOutcome) String() string {
	switch o {
	case ColumnApplied:
		return "applied"
	case ColumnExists:
		return "exists"
	case ColumnRejected:
		return "rejected"
	default:
		return fmt.Sprintf("EnsureOutcome(%d)", int(o))
	}
}

// Registry is the destination table seen through the import pipeline's eyes.
//
// IMPORTANT: the destination table is shared mutable state with the rest of
// the platform. Columns added here are visible immediately and globally, and
// EnsureColumn must stay idempotent because concurrent imports may evolve
// the schema redundantly.
type Registry interface {
	// Close releases backend resources. Treat as "call once".
	Close()

	// Columns returns the current attribute names of the destination table.
	Columns(ctx context.Context) ([]string, error)

	// EnsureColumn adds a nullable free-text column when it does not exist.
	//
	// Idempotence:
	//   - Re-running with the same name must return ColumnExists, never fail.
	//
	// Errors:
	//   - Returned only for backend failures (connection loss, permission).
	//     An unusable identifier is reported as ColumnRejected, not an error.
	EnsureColumn(ctx context.Context, name string) (EnsureOutcome, error)

	// ExistingValues returns the normalized (trimmed, lower-cased) non-empty
	// values currently stored in the named column. Used to preload the
	// duplicate-detection set.
	ExistingValues(ctx context.Context, column string) (map[string]struct{}, error)

	// InsertRow inserts one row with the given column values.
	// Column order in the generated SQL is deterministic (sorted by name).
	InsertRow(ctx context.Context, values map[string]any) error
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Registry, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The kind string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. Intentional: fail fast instead of
//     ambiguous backend selection.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Registry using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported, or whatever
//     error the registered factory returns.
func New(ctx context.Context, cfg Config) (Registry, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("storage: missing Table")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
