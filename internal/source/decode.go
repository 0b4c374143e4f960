package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"dashcore/pkg/table"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeCSV reads a comma separated table whose first record is the header.
// Records may vary in length; the loader reports ragged rows.
func DecodeCSV(b []byte) (table.Raw, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, utf8BOM)))
	r.FieldsPerRecord = -1
	r.ReuseRecord = false
	records, err := r.ReadAll()
	if err != nil {
		return table.Raw{}, fmt.Errorf("source: decode csv: %w", err)
	}
	return split(records)
}

// DecodeXLSX reads sheet (the first sheet when empty) of a workbook. Short
// rows are padded to the header width and blank rows are skipped.
func DecodeXLSX(b []byte, sheet string) (table.Raw, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return table.Raw{}, fmt.Errorf("source: open xlsx: %w", err)
	}
	defer f.Close()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return table.Raw{}, errors.New("source: workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return table.Raw{}, fmt.Errorf("source: read sheet %q: %w", sheet, err)
	}
	kept := rows[:0]
	for _, row := range rows {
		if !blank(row) {
			kept = append(kept, row)
		}
	}
	if len(kept) == 0 {
		return split(nil)
	}
	width := len(kept[0])
	for i, row := range kept {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			kept[i] = padded
		}
	}
	return split(kept)
}

func split(records [][]string) (table.Raw, error) {
	if len(records) == 0 {
		return table.Raw{}, errors.New("source: no header row")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	return table.Raw{Header: header, Records: records[1:]}, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
