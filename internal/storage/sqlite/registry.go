package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"inventory/internal/storage"
)

// Registry implements storage.Registry for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no ADD COLUMN IF NOT EXISTS; idempotence comes from
//     checking PRAGMA table_info first, then tolerating the "duplicate
//     column name" error if another writer raced us to it.
//   - Every column gets TEXT affinity, which matches the free-text model
//     for imported spreadsheet data.
type Registry struct {
	db    *sql.DB
	table string
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Registry, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Registry{db: db, table: cfg.Table}, nil
}

func (r *Registry) Close() { _ = r.db.Close() }

// Columns returns the destination table's current column names.
func (r *Registry) Columns(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%s)", sqlIdent(r.table)))
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// EnsureColumn adds a nullable TEXT column when it does not exist.
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

	_, err = r.db.ExecContext(ctx, buildAddColumnSQL(r.table, name))
	if err != nil {
		// A concurrent import may have added the column between the
		// PRAGMA check and the ALTER. That is the idempotent outcome,
		// not a failure.
		if strings.Contains(err.Error(), "duplicate column name") {
			return storage.ColumnExists, nil
		}
		return storage.ColumnRejected, fmt.Errorf("add column %s.%s: %w", r.table, name, err)
	}
	return storage.ColumnApplied, nil
}

// ExistingValues preloads the normalized non-empty values of one column.
func (r *Registry) ExistingValues(ctx context.Context, column string) (map[string]struct{}, error) {
	if !validIdent(column) {
		return nil, fmt.Errorf("invalid column name %q", column)
	}

	q := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL",
		sqlIdent(column), sqlIdent(r.table), sqlIdent(column))

	rows, err := r.db.QueryContext(ctx, q)
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
	q, args := buildInsertSQL(r.table, values)
	if q == "" {
		return fmt.Errorf("insert into %s: no values", r.table)
	}
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

// buildInsertSQL constructs a single-row INSERT and its args for SQLite.
// Pure and deterministic (columns sorted by name) for database-free tests.
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
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES (")

	args := make([]any, 0, len(cols))
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
		args = append(args, values[c])
	}
	b.WriteString(")")

	return b.String(), args
}

func buildAddColumnSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", sqlIdent(table), sqlIdent(column))
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(name string) bool {
	return name != "" && len(name) <= 63 && identRe.MatchString(name)
}
