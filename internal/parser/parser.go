// Package parser decodes an uploaded spreadsheet or delimited text file
// into a rectangular grid: a header row plus positional data rows.
//
// The parser is agnostic to where the file came from and never touches the
// destination schema. Rows stay positional (aligned to the original column
// order) rather than keyed by header, because a data row may be shorter
// than the header row.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrMalformedFile means the file decoded but yielded no usable header row,
// or could not be decoded at all. Fatal to the call.
var ErrMalformedFile = errors.New("malformed file")

// ErrUnsupportedFormat means the file is neither a workbook nor delimited
// text. Fatal to the call.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Grid is the parsed rectangular content of one upload.
type Grid struct {
	// Headers are the first-row cells, trimmed, with blanks dropped,
	// in original order.
	Headers []string

	// HeaderIndex maps each header to its original column position.
	// When the first row repeats a header, the first occurrence wins and
	// later columns under the same name are unreachable. Deterministic,
	// and it keeps headers unique within one session.
	HeaderIndex map[string]int

	// Rows are all subsequent rows, positionally aligned to the original
	// column order. A row may be shorter than the header row.
	Rows [][]string
}

// Cell returns the value under header h for row, or "" when the row is too
// short or the header is unknown.
func (g *Grid) Cell(row []string, h string) string {
	ix, ok := g.HeaderIndex[h]
	if !ok || ix >= len(row) {
		return ""
	}
	return row[ix]
}

// Options controls parsing of one upload.
type Options struct {
	// Filename is the original upload name; its extension participates in
	// format detection.
	Filename string

	// Format forces a source format ("xlsx" | "csv"). Empty means detect
	// from Filename and content.
	Format string

	// Comma overrides the delimiter for delimited text. Zero means detect.
	Comma rune
}

// xlsxMagic is the ZIP local-file-header signature; .xlsx is a ZIP container.
var xlsxMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// oleMagic is the legacy OLE compound-document signature (.xls, .doc).
// Explicitly unsupported: operators must re-save as .xlsx or CSV.
var oleMagic = []byte{0xd0, 0xcf, 0x11, 0xe0}

// Parse decodes raw upload bytes into a Grid.
//
// Errors:
//   - ErrUnsupportedFormat when the bytes are neither a workbook nor
//     plausible delimited text.
//   - ErrMalformedFile when decoding fails or the first row has no
//     non-blank cell.
func Parse(data []byte, opts Options) (*Grid, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedFile)
	}

	format, err := resolveFormat(data, opts)
	if err != nil {
		return nil, err
	}

	var raw [][]string
	switch format {
	case "xlsx":
		raw, err = parseWorkbook(data)
	case "csv":
		raw, err = parseDelimited(data, opts.Comma)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	return buildGrid(raw)
}

func resolveFormat(data []byte, opts Options) (string, error) {
	switch opts.Format {
	case "xlsx", "csv":
		return opts.Format, nil
	case "":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, opts.Format)
	}

	switch strings.ToLower(filepath.Ext(opts.Filename)) {
	case ".xlsx":
		return "xlsx", nil
	case ".csv", ".tsv", ".txt":
		return "csv", nil
	}

	// No usable extension: sniff content.
	if bytes.HasPrefix(data, xlsxMagic) {
		return "xlsx", nil
	}
	if bytes.HasPrefix(data, oleMagic) {
		return "", fmt.Errorf("%w: legacy .xls workbook (re-save as .xlsx or CSV)", ErrUnsupportedFormat)
	}
	if looksDelimited(data) {
		return "csv", nil
	}
	return "", ErrUnsupportedFormat
}

// looksDelimited accepts content whose first line is text containing at
// least one common delimiter and no NUL bytes.
func looksDelimited(data []byte) bool {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.IndexByte(line, 0) >= 0 {
		return false
	}
	return bytes.ContainsAny(line, ",;\t")
}

// buildGrid applies the header-row contract shared by both formats.
func buildGrid(raw [][]string) (*Grid, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformedFile)
	}

	first := raw[0]
	g := &Grid{HeaderIndex: make(map[string]int, len(first))}
	for i, h := range first {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, dup := g.HeaderIndex[h]; dup {
			continue
		}
		g.Headers = append(g.Headers, h)
		g.HeaderIndex[h] = i
	}
	if len(g.Headers) == 0 {
		return nil, fmt.Errorf("%w: first row has no column names", ErrMalformedFile)
	}

	g.Rows = raw[1:]
	return g, nil
}
