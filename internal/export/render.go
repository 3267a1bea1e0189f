package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docscan/internal/entity"
)

const sheetName = "Sheet1"

// pinnedTimestamp keeps workbook metadata stable so identical records render
// to identical bytes.
const pinnedTimestamp = "2000-01-01T00:00:00Z"

// Headers returns the distinct labels across records in first-seen order.
func Headers(records []entity.FieldRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		for _, l := range r.Labels() {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}

func rows(records []entity.FieldRecord, headers []string) [][]string {
	out := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(headers))
		for j, h := range headers {
			row[j], _ = r.Get(h)
		}
		out[i] = row
	}
	return out
}

// RenderText writes one section per record:
//
//	\n--- Document N ---\n
//	label: value\n
func RenderText(records []entity.FieldRecord) []byte {
	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "\n--- Document %d ---\n", i+1)
		for _, f := range r.Fields() {
			b.WriteString(f.Label)
			b.WriteString(": ")
			b.WriteString(f.Value)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

// RenderDelimited writes a header row and one row per record. Missing labels
// are empty cells. No labels at all yields an empty file.
func RenderDelimited(records []entity.FieldRecord) ([]byte, error) {
	headers := Headers(records)
	var buf bytes.Buffer
	if len(headers) == 0 {
		return buf.Bytes(), nil
	}
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	if err := w.WriteAll(rows(records, headers)); err != nil {
		return nil, fmt.Errorf("csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderSpreadsheet builds an xlsx workbook with the same shape as
// RenderDelimited.
func RenderSpreadsheet(records []entity.FieldRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetDocProps(&excelize.DocProperties{
		Created:  pinnedTimestamp,
		Modified: pinnedTimestamp,
		Creator:  "docscan",
		Title:    "Extracted fields",
	}); err != nil {
		return nil, fmt.Errorf("xlsx props: %w", err)
	}

	headers := Headers(records)
	widths := make([]int, len(headers))
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("xlsx header: %w", err)
		}
		widths[i] = utf8.RuneCountInString(h)
	}

	for r, row := range rows(records, headers) {
		for c, v := range row {
			if v == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("xlsx cell %s: %w", cell, err)
			}
			if n := utf8.RuneCountInString(v); n > widths[c] {
				widths[c] = n
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheetName, col, col, float64(min(w+2, 60)))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
