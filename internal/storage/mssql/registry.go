package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"inventory/internal/storage"
)

// Registry implements storage.Registry for Microsoft SQL Server.
//
// This implementation supports:
//   - Column introspection via INFORMATION_SCHEMA.COLUMNS.
//   - Idempotent column creation guarded by an IF COL_LENGTH(...) IS NULL
//     check executed server-side, so concurrent imports cannot race between
//     a client-side check and the ALTER.
//   - Dynamic columns typed nvarchar(max): the widest text type available.
type Registry struct {
	db    *sql.DB
	table string
}

func init() {
	storage.Register("mssql", New)
}

// New constructs a Registry using database/sql and the "sqlserver" driver.
func New(ctx context.Context, cfg storage.Config) (storage.Registry, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
	schema, table := splitQualifiedName(r.table)

	rows, err := r.db.QueryContext(ctx,
		`SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		 ORDER BY ORDINAL_POSITION`,
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

// EnsureColumn adds a nullable nvarchar(max) column when it does not exist.
func (r *Registry) EnsureColumn(ctx context.Context, name string) (storage.EnsureOutcome, error) {
	if !validIdent(name) {
		return storage.ColumnRejected, nil
	}

	existing, err := r.Columns(ctx)
	if err != nil {
		return storage.ColumnRejected, err
	}
	for _, c := range existing {
		if strings.EqualFold(c, name) {
			return storage.ColumnExists, nil
		}
	}

	if _, err := r.db.ExecContext(ctx, buildAddColumnSQL(r.table, name)); err != nil {
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
		msIdent(column), r.table, msIdent(column))

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

// buildInsertSQL constructs a single-row INSERT with @pN placeholders.
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
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(msIdent(c))
	}
	b.WriteString(") VALUES (")

	args := make([]any, 0, len(cols))
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@p%d", i+1)
		args = append(args, values[c])
	}
	b.WriteString(")")

	return b.String(), args
}

// buildAddColumnSQL guards the ALTER with a server-side existence check,
// which is the closest MSSQL gets to ADD COLUMN IF NOT EXISTS.
func buildAddColumnSQL(table, column string) string {
	return fmt.Sprintf(
		"IF COL_LENGTH('%s', '%s') IS NULL ALTER TABLE %s ADD %s nvarchar(max) NULL",
		table, column, table, msIdent(column))
}

func msIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(name string) bool {
	return name != "" && len(name) <= 63 && identRe.MatchString(name)
}

// splitQualifiedName splits "schema.table" into its parts.
// An unqualified name resolves to the "dbo" schema.
func splitQualifiedName(name string) (schema string, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "dbo", name
}
