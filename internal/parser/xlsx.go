package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseWorkbook reads the first sheet of an .xlsx workbook into raw rows.
//
// Multi-sheet workbooks are common in the wild; the import contract is
// "first sheet only" and the preview makes that visible to the operator.
func parseWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedFile)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}

	for _, row := range rows {
		for i, v := range row {
			row[i] = strings.TrimSpace(v)
		}
	}
	return rows, nil
}
