// Package export encodes expense lists as downloadable spreadsheets.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"spendly/internal/core"
)

// Format is a download format accepted by the export endpoint.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const (
	SheetName = "Expenses"
	baseName  = "Expense_Report"
)

var header = []string{"Date", "Item", "Category", "Amount"}

// ParseFormat maps a query value to a Format. Empty selects JSON.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, true
	case FormatXLSX, FormatCSV:
		return Format(s), true
	default:
		return "", false
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

// Filename is the attachment name offered to the client.
func (f Format) Filename() string {
	return baseName + "." + string(f)
}

// Encode renders expenses in the given spreadsheet format.
func Encode(f Format, expenses []core.Expense) ([]byte, error) {
	switch f {
	case FormatXLSX:
		return XLSX(expenses)
	case FormatCSV:
		return CSV(expenses)
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

// XLSX writes one row per expense in input order under a header row and
// closes the table with a Total row summing every amount.
func XLSX(expenses []core.Expense) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &[]any{header[0], header[1], header[2], header[3]}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, e := range expenses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{e.Date.Format(time.DateOnly), e.Item, e.Category, e.Amount.Float64()}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, len(expenses)+2)
	if err != nil {
		return nil, err
	}
	total := []any{"Total", "", "", core.Sum(expenses).Float64()}
	if err := f.SetSheetRow(SheetName, cell, &total); err != nil {
		return nil, fmt.Errorf("write total: %w", err)
	}

	for col, width := range map[string]float64{"A": 15, "B": 30, "C": 15, "D": 15} {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// CSV produces the same table as XLSX with amounts fixed to two decimals.
func CSV(expenses []core.Expense) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := make([][]string, 0, len(expenses)+2)
	records = append(records, header)
	for _, e := range expenses {
		records = append(records, []string{e.Date.Format(time.DateOnly), e.Item, e.Category, e.Amount.String()})
	}
	records = append(records, []string{"Total", "", "", core.Sum(expenses).String()})

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
