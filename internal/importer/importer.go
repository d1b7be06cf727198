// Package importer executes a confirmed column mapping against the
// destination table, row by row, with per-row failure isolation.
//
// The import is explicitly not transactional across rows: partial success
// is the intended behavior, because an all-or-nothing import over
// thousands of operator-authored rows would let one bad row block the
// other 999. Each row's outcome accumulates into a Result; no row failure
// aborts the batch.
package importer

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"inventory/internal/metrics"
	"inventory/internal/parser"
	"inventory/internal/storage"
)

// Logger is the minimal logging interface used by the importer.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// RowError records one skipped row. Row is the spreadsheet row number
// (the header is row 1, the first data row is 2), matching what the
// operator sees in their original file.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result is the structured outcome of one execute call. Immutable once
// returned. Imported + Skipped always equals the number of data rows:
// a row with no mapped values still imports under a synthesized name,
// never silently discarded.
type Result struct {
	Imported       int        `json:"imported"`
	Skipped        int        `json:"skipped"`
	Errors         []RowError `json:"errors,omitempty"`
	ColumnsCreated []string   `json:"columns_created,omitempty"`
}

// Importer inserts rows under a resolved mapping.
type Importer struct {
	Registry storage.Registry
	Logger   Logger

	// NameField is the primary display attribute; NameFallbackField is
	// consulted when the primary is unmapped or empty.
	NameField         string
	NameFallbackField string

	// UniqueField is the attribute checked when SkipDuplicates is set.
	UniqueField string

	// Actor is the acting user reference stamped on every row for
	// provenance.
	Actor string

	// NewID is a seam for deterministic tests. When nil, uuid.NewString.
	NewID func() string
}

// Request is one import batch.
type Request struct {
	Grid *parser.Grid

	// Resolved maps surviving headers to destination attributes, as
	// produced by schema evolution.
	Resolved map[string]string

	// ColumnsCreated is carried through into the Result.
	ColumnsCreated []string

	SkipDuplicates bool
}

// Run processes rows strictly in file order.
//
// Duplicate detection accumulates state row-by-row: the set starts from
// values already committed to the destination and grows with each value
// accepted in this batch, so ordering is part of the contract.
//
// Errors:
//   - Returns a non-nil error only when the duplicate set cannot be
//     preloaded; nothing has been inserted at that point.
//   - Row-level failures never surface as errors; they are recorded in
//     Result.Errors and the batch continues.
func (im *Importer) Run(ctx context.Context, req Request) (*Result, error) {
	logf := im.logger()
	newID := im.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	res := &Result{ColumnsCreated: req.ColumnsCreated}

	dedupe := req.SkipDuplicates && im.UniqueField != "" && targetMapped(req.Resolved, im.UniqueField)
	var seen map[string]struct{}
	if dedupe {
		var err error
		seen, err = im.Registry.ExistingValues(ctx, im.UniqueField)
		if err != nil {
			return nil, fmt.Errorf("preload duplicate set: %w", err)
		}
	}

	for i, row := range req.Grid.Rows {
		rowNum := i + 2 // header is row 1

		values := make(map[string]any, len(req.Resolved)+2)
		for _, h := range req.Grid.Headers {
			attr, ok := req.Resolved[h]
			if !ok {
				continue
			}
			if v := req.Grid.Cell(row, h); v != "" {
				// Later headers overwrite earlier ones when two
				// converge on one attribute: last-write-wins, in
				// file column order.
				values[attr] = v
			}
		}

		im.ensureName(values, i)

		var dupKey string
		if dedupe {
			dupKey = storage.NormalizeValue(values[im.UniqueField])
			if dupKey != "" {
				if _, dup := seen[dupKey]; dup {
					res.Skipped++
					res.Errors = append(res.Errors, RowError{
						Row:     rowNum,
						Message: fmt.Sprintf("duplicate %s %q", im.UniqueField, fmt.Sprint(values[im.UniqueField])),
					})
					continue
				}
			}
		}

		values["external_id"] = newID()
		if im.Actor != "" {
			values["created_by"] = im.Actor
		}

		if err := im.Registry.InsertRow(ctx, values); err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, RowError{Row: rowNum, Message: err.Error()})
			logf("import: row %d: %v", rowNum, err)
			continue
		}

		res.Imported++
		if dedupe && dupKey != "" {
			seen[dupKey] = struct{}{}
		}
	}

	metrics.RecordRows("imported", res.Imported)
	metrics.RecordRows("skipped", res.Skipped)
	return res, nil
}

// ensureName guarantees a non-empty primary display value: primary field,
// else fallback field, else a placeholder from the row's ordinal.
func (im *Importer) ensureName(values map[string]any, ordinal int) {
	if im.NameField == "" {
		return
	}
	if v, ok := values[im.NameField]; ok && fmt.Sprint(v) != "" {
		return
	}
	if im.NameFallbackField != "" {
		if v, ok := values[im.NameFallbackField]; ok && fmt.Sprint(v) != "" {
			values[im.NameField] = v
			return
		}
	}
	values[im.NameField] = fmt.Sprintf("Imported item %d", ordinal+1)
}

func targetMapped(resolved map[string]string, attr string) bool {
	for _, a := range resolved {
		if a == attr {
			return true
		}
	}
	return false
}

func (im *Importer) logger() func(format string, v ...any) {
	if im.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return im.Logger.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }
