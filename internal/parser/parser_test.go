package parser

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

// TestParse_CSVHappyPath verifies header extraction and positional rows.
func TestParse_CSVHappyPath(t *testing.T) {
	t.Parallel()

	data := []byte("Name,Serial Number,Location\nRouter,SN-1,Closet A\nSwitch,SN-2,Closet B\n")
	g, err := Parse(data, Options{Filename: "assets.csv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantHeaders := []string{"Name", "Serial Number", "Location"}
	if !reflect.DeepEqual(g.Headers, wantHeaders) {
		t.Fatalf("Headers=%v, want %v", g.Headers, wantHeaders)
	}
	if len(g.Rows) != 2 {
		t.Fatalf("Rows=%d, want 2", len(g.Rows))
	}
	if got := g.Cell(g.Rows[1], "Serial Number"); got != "SN-2" {
		t.Fatalf("Cell=%q, want %q", got, "SN-2")
	}
}

// TestParse_HeaderContract verifies header-row handling shared by all
// formats.
//
// Edge cases:
//   - cells are trimmed
//   - blank header cells are dropped but the remaining columns keep their
//     original positions
//   - duplicate headers keep the first occurrence
func TestParse_HeaderContract(t *testing.T) {
	t.Parallel()

	data := []byte(" Name ,,Location,Name\nRouter,ignored,Closet A,shadowed\n")
	g, err := Parse(data, Options{Filename: "assets.csv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !reflect.DeepEqual(g.Headers, []string{"Name", "Location"}) {
		t.Fatalf("Headers=%v, want [Name Location]", g.Headers)
	}
	if got := g.Cell(g.Rows[0], "Name"); got != "Router" {
		t.Fatalf("duplicate header resolved to %q, want first column", got)
	}
	if got := g.Cell(g.Rows[0], "Location"); got != "Closet A" {
		t.Fatalf("Cell(Location)=%q, want %q", got, "Closet A")
	}
}

// TestParse_RaggedRows verifies short rows parse and Cell returns "" for
// the missing tail.
func TestParse_RaggedRows(t *testing.T) {
	t.Parallel()

	data := []byte("Name,Location\nRouter\n")
	g, err := Parse(data, Options{Filename: "assets.csv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := g.Cell(g.Rows[0], "Location"); got != "" {
		t.Fatalf("Cell past row end = %q, want empty", got)
	}
}

// TestParse_BOMAndSemicolon verifies a UTF-8 BOM is stripped and the
// delimiter detector picks semicolons on first-line evidence.
func TestParse_BOMAndSemicolon(t *testing.T) {
	t.Parallel()

	data := append([]byte{0xef, 0xbb, 0xbf}, []byte("Name;Location\nRouter;Closet A\n")...)
	g, err := Parse(data, Options{Filename: "assets.csv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(g.Headers, []string{"Name", "Location"}) {
		t.Fatalf("Headers=%v, want [Name Location]", g.Headers)
	}
}

// TestParse_TSVByExtension verifies .tsv routes to the delimited decoder
// and tab wins delimiter detection.
func TestParse_TSVByExtension(t *testing.T) {
	t.Parallel()

	data := []byte("Name\tLocation\nRouter\tCloset A\n")
	g, err := Parse(data, Options{Filename: "assets.tsv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := g.Cell(g.Rows[0], "Location"); got != "Closet A" {
		t.Fatalf("Cell=%q, want %q", got, "Closet A")
	}
}

// TestParse_Windows1252 verifies non-UTF-8 bytes are decoded as
// Windows-1252 instead of failing.
func TestParse_Windows1252(t *testing.T) {
	t.Parallel()

	// 0xe9 is é in Windows-1252 and invalid standalone UTF-8.
	data := []byte("Name,Location\nCam\xe9ra,Entr\xe9e\n")
	g, err := Parse(data, Options{Filename: "assets.csv"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := g.Cell(g.Rows[0], "Name"); got != "Caméra" {
		t.Fatalf("Cell=%q, want %q", got, "Caméra")
	}
}

// TestParse_XLSX verifies workbook parsing through a real in-memory .xlsx.
func TestParse_XLSX(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Name", "Serial Number"}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &[]any{"Router", "SN-1"}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	g, err := Parse(buf.Bytes(), Options{Filename: "assets.xlsx"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(g.Headers, []string{"Name", "Serial Number"}) {
		t.Fatalf("Headers=%v", g.Headers)
	}
	if got := g.Cell(g.Rows[0], "Serial Number"); got != "SN-1" {
		t.Fatalf("Cell=%q, want %q", got, "SN-1")
	}
}

// TestParse_XLSXSniffedWithoutExtension verifies the ZIP magic routes an
// extension-less upload to the workbook decoder.
func TestParse_XLSXSniffedWithoutExtension(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Name"}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	g, err := Parse(buf.Bytes(), Options{Filename: "upload"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(g.Headers) != 1 || g.Headers[0] != "Name" {
		t.Fatalf("Headers=%v, want [Name]", g.Headers)
	}
}

// TestParse_Errors verifies the sentinel contract for bad input.
func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		opts Options
		want error
	}{
		{name: "empty_file", data: nil, opts: Options{Filename: "a.csv"}, want: ErrMalformedFile},
		{name: "blank_header_row", data: []byte(",,\nRouter,SN-1,\n"), opts: Options{Filename: "a.csv"}, want: ErrMalformedFile},
		{name: "corrupt_xlsx", data: []byte("PK\x03\x04not a real archive"), opts: Options{Filename: "a.xlsx"}, want: ErrMalformedFile},
		{name: "legacy_xls", data: append([]byte{0xd0, 0xcf, 0x11, 0xe0}, make([]byte, 64)...), opts: Options{Filename: "upload"}, want: ErrUnsupportedFormat},
		{name: "binary_junk", data: []byte{0x00, 0x01, 0x02, 0x03}, opts: Options{Filename: "upload"}, want: ErrUnsupportedFormat},
		{name: "forced_unknown_format", data: []byte("a,b\n"), opts: Options{Filename: "a.csv", Format: "parquet"}, want: ErrUnsupportedFormat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.data, tc.opts)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Parse err=%v, want %v", err, tc.want)
			}
		})
	}
}

// TestDetectComma verifies delimiter scoring on the first line only.
func TestDetectComma(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want rune
	}{
		{name: "comma_default", in: "plainheader\n", want: ','},
		{name: "semicolon_majority", in: "a;b;c\nx,y\n", want: ';'},
		{name: "tab_majority", in: "a\tb\tc\n", want: '\t'},
		{name: "comma_wins_tie", in: "a,b;c\n", want: ','},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectComma([]byte(tc.in)); got != tc.want {
				t.Fatalf("detectComma(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
