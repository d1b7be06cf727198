package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"inventory/internal/parser"
	"inventory/internal/storage"
)

// fakeRegistry records inserted rows and serves a canned duplicate set.
type fakeRegistry struct {
	existing    map[string]struct{}
	existingErr error

	inserted  []map[string]any
	failOnRow func(values map[string]any) error
}

func (f *fakeRegistry) Close() {}

func (f *fakeRegistry) Columns(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeRegistry) EnsureColumn(ctx context.Context, name string) (storage.EnsureOutcome, error) {
	return storage.ColumnExists, nil
}

func (f *fakeRegistry) ExistingValues(ctx context.Context, column string) (map[string]struct{}, error) {
	if f.existingErr != nil {
		return nil, f.existingErr
	}
	out := make(map[string]struct{}, len(f.existing))
	for k := range f.existing {
		out[k] = struct{}{}
	}
	return out, nil
}

func (f *fakeRegistry) InsertRow(ctx context.Context, values map[string]any) error {
	if f.failOnRow != nil {
		if err := f.failOnRow(values); err != nil {
			return err
		}
	}
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	f.inserted = append(f.inserted, cp)
	return nil
}

func grid(headers []string, rows ...[]string) *parser.Grid {
	ix := make(map[string]int, len(headers))
	for i, h := range headers {
		ix[h] = i
	}
	return &parser.Grid{Headers: headers, HeaderIndex: ix, Rows: rows}
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// TestRun_ImportsRows verifies the happy path: mapped cells land on their
// attributes, every row gets an external id, the actor is stamped.
func TestRun_ImportsRows(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	im := &Importer{Registry: reg, NameField: "name", Actor: "user-7", NewID: seqIDs()}

	g := grid(
		[]string{"Name", "Serial Number", "Unmapped"},
		[]string{"Router", "SN-1", "junk"},
		[]string{"Switch", "SN-2", ""},
	)
	res, err := im.Run(context.Background(), Request{
		Grid:     g,
		Resolved: map[string]string{"Name": "name", "Serial Number": "serial_number"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Imported != 2 || res.Skipped != 0 {
		t.Fatalf("Imported=%d Skipped=%d, want 2/0", res.Imported, res.Skipped)
	}
	if len(reg.inserted) != 2 {
		t.Fatalf("inserted=%d rows, want 2", len(reg.inserted))
	}

	first := reg.inserted[0]
	if first["name"] != "Router" || first["serial_number"] != "SN-1" {
		t.Fatalf("row 1 values=%v", first)
	}
	if _, leaked := first["Unmapped"]; leaked {
		t.Fatalf("unmapped header leaked into values: %v", first)
	}
	if first["external_id"] != "id-1" || first["created_by"] != "user-7" {
		t.Fatalf("provenance missing: %v", first)
	}
}

// TestRun_Accounting verifies Imported+Skipped always equals the data row
// count, with failures recorded per row.
func TestRun_Accounting(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		failOnRow: func(values map[string]any) error {
			if values["name"] == "Bad" {
				return errors.New("value too long for column")
			}
			return nil
		},
	}
	im := &Importer{Registry: reg, NameField: "name", NewID: seqIDs()}

	g := grid(
		[]string{"Name"},
		[]string{"Good"},
		[]string{"Bad"},
		[]string{"Also good"},
	)
	res, err := im.Run(context.Background(), Request{
		Grid:     g,
		Resolved: map[string]string{"Name": "name"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Imported+res.Skipped != len(g.Rows) {
		t.Fatalf("Imported+Skipped=%d, want %d", res.Imported+res.Skipped, len(g.Rows))
	}
	if res.Imported != 2 || res.Skipped != 1 {
		t.Fatalf("Imported=%d Skipped=%d, want 2/1", res.Imported, res.Skipped)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors=%v, want one entry", res.Errors)
	}
	// Header is row 1; the second data row is spreadsheet row 3.
	if res.Errors[0].Row != 3 {
		t.Fatalf("error row=%d, want 3", res.Errors[0].Row)
	}
	if !strings.Contains(res.Errors[0].Message, "too long") {
		t.Fatalf("error message=%q", res.Errors[0].Message)
	}
}

// TestRun_SkipDuplicates verifies duplicate handling against both the
// preloaded destination set and values accepted earlier in the batch,
// compared case-insensitively.
func TestRun_SkipDuplicates(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{existing: map[string]struct{}{"sn-0": {}}}
	im := &Importer{Registry: reg, NameField: "name", UniqueField: "serial_number", NewID: seqIDs()}

	g := grid(
		[]string{"Name", "Serial"},
		[]string{"A", "SN-0"}, // already in destination
		[]string{"B", "SN-1"},
		[]string{"C", " sn-1 "}, // duplicate of B after normalization
		[]string{"D", ""},       // empty unique value never counts as duplicate
		[]string{"E", ""},
	)
	res, err := im.Run(context.Background(), Request{
		Grid:           g,
		Resolved:       map[string]string{"Name": "name", "Serial": "serial_number"},
		SkipDuplicates: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Imported != 3 || res.Skipped != 2 {
		t.Fatalf("Imported=%d Skipped=%d, want 3/2", res.Imported, res.Skipped)
	}
	for _, re := range res.Errors {
		if !strings.Contains(re.Message, "duplicate serial_number") {
			t.Fatalf("unexpected error message %q", re.Message)
		}
	}
	if res.Errors[0].Row != 2 || res.Errors[1].Row != 4 {
		t.Fatalf("duplicate rows=%v, want rows 2 and 4", res.Errors)
	}
}

// TestRun_DuplicatesOffWithoutMapping verifies SkipDuplicates is inert
// when the unique field is not part of the resolved mapping.
func TestRun_DuplicatesOffWithoutMapping(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{existingErr: errors.New("should not be called")}
	im := &Importer{Registry: reg, NameField: "name", UniqueField: "serial_number", NewID: seqIDs()}

	g := grid([]string{"Name"}, []string{"A"}, []string{"A"})
	res, err := im.Run(context.Background(), Request{
		Grid:           g,
		Resolved:       map[string]string{"Name": "name"},
		SkipDuplicates: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Imported != 2 {
		t.Fatalf("Imported=%d, want 2", res.Imported)
	}
}

// TestRun_PreloadFailureIsFatal verifies the one fatal error path: the
// duplicate set cannot be preloaded and nothing is inserted.
func TestRun_PreloadFailureIsFatal(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{existingErr: errors.New("connection refused")}
	im := &Importer{Registry: reg, NameField: "name", UniqueField: "serial_number", NewID: seqIDs()}

	g := grid([]string{"Name", "Serial"}, []string{"A", "SN-1"})
	_, err := im.Run(context.Background(), Request{
		Grid:           g,
		Resolved:       map[string]string{"Name": "name", "Serial": "serial_number"},
		SkipDuplicates: true,
	})
	if err == nil || !strings.Contains(err.Error(), "preload duplicate set") {
		t.Fatalf("err=%v, want preload failure", err)
	}
	if len(reg.inserted) != 0 {
		t.Fatalf("inserted=%d rows before failing, want 0", len(reg.inserted))
	}
}

// TestRun_NameSynthesis verifies the primary display value is never empty:
// fallback field first, then a placeholder from the ordinal.
func TestRun_NameSynthesis(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	im := &Importer{
		Registry:          reg,
		NameField:         "name",
		NameFallbackField: "model",
		NewID:             seqIDs(),
	}

	g := grid(
		[]string{"Name", "Model"},
		[]string{"", "MX-100"}, // fallback supplies the name
		[]string{"", ""},       // placeholder
		[]string{"Router", ""}, // primary wins
	)
	res, err := im.Run(context.Background(), Request{
		Grid:     g,
		Resolved: map[string]string{"Name": "name", "Model": "model"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Imported != 3 {
		t.Fatalf("Imported=%d, want 3", res.Imported)
	}

	if got := reg.inserted[0]["name"]; got != "MX-100" {
		t.Fatalf("row 1 name=%v, want fallback MX-100", got)
	}
	if got := reg.inserted[1]["name"]; got != "Imported item 2" {
		t.Fatalf("row 2 name=%v, want placeholder", got)
	}
	if got := reg.inserted[2]["name"]; got != "Router" {
		t.Fatalf("row 3 name=%v, want Router", got)
	}
}

// TestRun_LastWriteWins verifies two headers resolving to one attribute
// keep the later column's non-empty value.
func TestRun_LastWriteWins(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	im := &Importer{Registry: reg, NameField: "name", NewID: seqIDs()}

	g := grid(
		[]string{"Name", "Serial No.", "Serial-No"},
		[]string{"A", "SN-OLD", "SN-NEW"},
		[]string{"B", "SN-KEEP", ""}, // empty later cell does not erase
	)
	res, err := im.Run(context.Background(), Request{
		Grid: g,
		Resolved: map[string]string{
			"Name":       "name",
			"Serial No.": "serial_no",
			"Serial-No":  "serial_no",
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Imported != 2 {
		t.Fatalf("Imported=%d, want 2", res.Imported)
	}
	if got := reg.inserted[0]["serial_no"]; got != "SN-NEW" {
		t.Fatalf("row 1 serial_no=%v, want SN-NEW", got)
	}
	if got := reg.inserted[1]["serial_no"]; got != "SN-KEEP" {
		t.Fatalf("row 2 serial_no=%v, want SN-KEEP", got)
	}
}
