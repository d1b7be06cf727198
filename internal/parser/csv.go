package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// parseDelimited reads delimited text into raw rows.
//
// Tolerations, in the order operators hit them:
//   - UTF-8 BOM from Excel "CSV UTF-8" exports is stripped.
//   - Non-UTF-8 bytes are assumed Windows-1252 (the usual Excel legacy
//     export) and transformed before parsing.
//   - Ragged rows are allowed; the importer treats missing cells as empty.
func parseDelimited(data []byte, comma rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		dec, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder()))
		if err != nil {
			return nil, fmt.Errorf("%w: undecodable text: %v", ErrMalformedFile, err)
		}
		data = dec
	}

	if comma == 0 {
		comma = detectComma(data)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
		}
		for i, v := range rec {
			rec[i] = strings.TrimSpace(v)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// detectComma scores candidate delimiters against the first line and picks
// the one splitting it into the most fields. Ties resolve in candidate
// order, so a plain comma wins over exotic exports.
func detectComma(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t'} {
		n := bytes.Count(line, []byte(string(c)))
		if n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
