package register

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyWorkbook is returned for spreadsheets without sheets.
var ErrEmptyWorkbook = errors.New("excel file has no sheets")

// XLSXToCSV renders the first sheet of a workbook as CSV so it can go through the same parser as
// CSV uploads. Trailing empty cells excel omits are padded to the widest row.
func XLSXToCSV(r io.Reader) (io.Reader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if len(row) < width {
			row = append(row, make([]string, width-len(row))...)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to convert xlsx row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to convert xlsx: %w", err)
	}
	return &buf, nil
}
