package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"inventory/internal/storage"
)

/*
Registry implements storage.Registry for Postgres.

It provides:
  - Column introspection via information_schema
  - Idempotent column creation (ADD COLUMN IF NOT EXISTS)
  - Duplicate-set preload
  - Single-row inserts

Dynamic columns are created as "text": imported spreadsheet data is free
text until proven otherwise, and text never rejects a value a looser type
would have taken.
*/
type Registry struct {
	pool  *pgxpool.Pool
	table string
}

// New creates a new Postgres-backed Registry.
func New(ctx context.Context, cfg storage.Config) (storage.Registry, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Registry{pool: pool, table: cfg.Table}, nil
}

// Close closes the connection pool.
func (r *Registry) Close() {
	r.pool.Close()
}

// Columns returns the destination table's current column names.
func (r *Registry) Columns(ctx context.Context) ([]string, error) {
	schema, table := splitQualifiedName(r.table)

	rows, err := r.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// EnsureColumn adds a nullable text column when it does not exist.
//
// Idempotence comes from ADD COLUMN IF NOT EXISTS, so redundant calls from
// concurrent imports are safe without any cross-session lock.
func (r *Registry) EnsureColumn(ctx context.Context, name string) (storage.EnsureOutcome, error) {
	if !validIdent(name) {
		return storage.ColumnRejected, nil
	}

	existing, err := r.Columns(ctx)
	if err != nil {
		return storage.ColumnRejected, err
	}
	for _, c := range existing {
		if c == name {
			return storage.ColumnExists, nil
		}
	}

	if _, err := r.pool.Exec(ctx, buildAddColumnSQL(r.table, name)); err != nil {
		return storage.ColumnRejected, fmt.Errorf("add column %s.%s: %w", r.table, name, err)
	}
	return storage.ColumnApplied, nil
}

// ExistingValues preloads the normalized non-empty values of one column.
func (r *Registry) ExistingValues(ctx context.Context, column string) (map[string]struct{}, error) {
	if !validIdent(column) {
		return nil, fmt.Errorf("invalid column name %q", column)
	}

	sql := fmt.Sprintf(
		`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL`,
		pgIdent(column), r.table, pgIdent(column))

	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("existing values of %s.%s: %w", r.table, column, err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if k := storage.NormalizeValue(v); k != "" {
			out[k] = struct{}{}
		}
	}
	return out, rows.Err()
}

// InsertRow inserts one row.
func (r *Registry) InsertRow(ctx context.Context, values map[string]any) error {
	sql, args := buildInsertSQL(r.table, values)
	if sql == "" {
		return fmt.Errorf("insert into %s: no values", r.table)
	}
	_, err := r.pool.Exec(ctx, sql, args...)
	return err
}

// buildInsertSQL constructs a single-row INSERT and its args for Postgres.
//
// Why this exists:
//   - It is pure and deterministic (columns sorted by name), so we can unit
//     test placeholder numbering and quoting without a database.
func buildInsertSQL(table string, values map[string]any) (string, []any) {
	if len(values) == 0 {
		return "", nil
	}

	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES (")

	args := make([]any, 0, len(cols))
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
		args = append(args, values[c])
	}
	b.WriteString(")")

	return b.String(), args
}

// buildAddColumnSQL constructs idempotent DDL for one text column.
func buildAddColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s text", table, pgIdent(column))
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// identRe matches what the sanitizer produces; anything else is rejected
// rather than quoted into existence.
var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(name string) bool {
	return name != "" && len(name) <= 63 && identRe.MatchString(name)
}

// splitQualifiedName splits "schema.table" into its parts.
// An unqualified name resolves to the "public" schema.
func splitQualifiedName(name string) (schema string, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "public", name
}
