// Package schema evolves the destination table to fit a confirmed
// column mapping: every header destined for a new column gets a sanitized
// identifier and, when missing, a freshly created text attribute.
package schema

import (
	"context"
	"log"

	"inventory/internal/mapping"
	"inventory/internal/metrics"
	"inventory/internal/storage"
)

// Logger is the minimal logging interface used by the evolver.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// defaultReserved names the identity, audit and system attributes that can
// never be a mapping destination, regardless of configuration.
var defaultReserved = []string{
	"id",
	"external_id",
	"created_at",
	"updated_at",
	"created_by",
	"updated_by",
	"deleted_at",
}

// Evolver applies schema evolution for one confirmed mapping.
type Evolver struct {
	Registry storage.Registry
	Logger   Logger

	// MaxIdentifierLen caps sanitized names. Zero means the default.
	MaxIdentifierLen int

	reserved map[string]struct{}
}

// NewEvolver builds an Evolver. extraReserved is merged with the built-in
// reserved set.
func NewEvolver(reg storage.Registry, extraReserved []string, maxIdentLen int) *Evolver {
	reserved := make(map[string]struct{}, len(defaultReserved)+len(extraReserved))
	for _, r := range defaultReserved {
		reserved[r] = struct{}{}
	}
	for _, r := range extraReserved {
		if s := mapping.Sanitize(r); s != "" {
			reserved[s] = struct{}{}
		}
	}
	return &Evolver{
		Registry:         reg,
		MaxIdentifierLen: maxIdentLen,
		reserved:         reserved,
	}
}

// Result is the outcome of one evolution pass.
type Result struct {
	// Resolved maps each surviving header to its destination attribute.
	// Headers dropped for reserved-name collisions or rejected
	// identifiers are absent.
	Resolved map[string]string

	// ColumnsCreated lists attributes created by this pass, in header
	// order. Re-running the same mapping yields an empty list.
	ColumnsCreated []string
}

// Evolve resolves the mapping against the live schema, creating missing
// columns. Headers are processed in file order so convergence and
// creation order are deterministic.
//
// Failure model (per-column recoverable):
//   - A header whose sanitized name is reserved is dropped silently.
//   - A column the backend rejects or fails to create is logged and
//     dropped; the batch continues without it.
func (e *Evolver) Evolve(ctx context.Context, headers []string, m mapping.Mapping) *Result {
	logf := e.logger()
	maxLen := e.MaxIdentifierLen
	res := &Result{Resolved: make(map[string]string, len(m))}

	for _, h := range headers {
		t, ok := m[h]
		if !ok {
			continue
		}

		switch t.Kind {
		case mapping.ExistingField:
			if _, bad := e.reserved[t.Field]; bad {
				logf("schema: header %q targets reserved field %q, dropped", h, t.Field)
				continue
			}
			res.Resolved[h] = t.Field

		case mapping.NewColumn:
			// Re-sanitize whatever the client sent; the identifier
			// contract must hold even for hand-edited mappings.
			name := mapping.SanitizeMax(t.SanitizedName, maxLen)
			if name == "" {
				name = mapping.SanitizeMax(h, maxLen)
			}
			if name == "" {
				logf("schema: header %q sanitizes to nothing, dropped", h)
				continue
			}
			if _, bad := e.reserved[name]; bad {
				// Reserved collision: dropped from the mapping, the
				// existing system column is never touched.
				continue
			}

			outcome, err := e.Registry.EnsureColumn(ctx, name)
			if err != nil {
				logf("schema: ensure column %q: %v (header %q dropped)", name, err, h)
				continue
			}
			switch outcome {
			case storage.ColumnApplied:
				res.Resolved[h] = name
				res.ColumnsCreated = append(res.ColumnsCreated, name)
			case storage.ColumnExists:
				// Converge: a previous import, or an earlier header in
				// this pass, already owns this attribute.
				res.Resolved[h] = name
			case storage.ColumnRejected:
				logf("schema: column name %q rejected by backend (header %q dropped)", name, h)
			}
		}
	}

	metrics.RecordColumnsCreated(len(res.ColumnsCreated))
	return res
}

func (e *Evolver) logger() func(format string, v ...any) {
	if e.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return e.Logger.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }
