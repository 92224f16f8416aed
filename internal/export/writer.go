// Package export writes expenses and corrections as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"ledgerlens/internal/domain"
)

// BOM is written before CSV output so Excel on Windows detects UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv or xlsx. An empty string selects csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidInput, s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Table is a header row plus data rows.
type Table struct {
	Sheet   string
	Columns []string
	Rows    [][]string
}

// Write encodes t to w in the given format.
func Write(w io.Writer, format Format, t Table) error {
	switch format {
	case FormatXLSX:
		return writeXLSX(w, t)
	default:
		return writeCSV(w, t)
	}
}

func writeCSV(w io.Writer, t Table) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("renaming sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("creating stream writer: %w", err)
	}
	if err := sw.SetRow("A1", toCells(t.Columns)); err != nil {
		return err
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(row)); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}

var expenseColumns = []string{
	"ID", "Date", "Merchant", "Description", "Amount", "Currency",
	"Category", "Source", "Confidence", "Receipt Key", "Created At",
}

// ExpenseTable converts expenses to a table.
func ExpenseTable(expenses []domain.Expense) Table {
	rows := make([][]string, 0, len(expenses))
	for i := range expenses {
		e := &expenses[i]
		rows = append(rows, []string{
			e.ID.String(),
			e.ExpenseDate.Format("2006-01-02"),
			e.MerchantName,
			e.Description,
			e.Amount.StringFixed(2),
			e.Currency,
			string(e.Category),
			string(e.Source),
			formatConfidence(e.Confidence),
			e.ReceiptKey,
			e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return Table{Sheet: "Expenses", Columns: expenseColumns, Rows: rows}
}

var correctionColumns = []string{
	"ID", "Merchant", "Description", "Amount", "Correct Category", "Submitted At",
}

// CorrectionTable converts corrections to a table, in log order.
func CorrectionTable(corrections []domain.Correction) Table {
	rows := make([][]string, 0, len(corrections))
	for i := range corrections {
		c := &corrections[i]
		amount := ""
		if c.OriginalInput.Amount != nil {
			amount = c.OriginalInput.Amount.String()
		}
		rows = append(rows, []string{
			c.ID.String(),
			c.OriginalInput.MerchantName,
			c.OriginalInput.Description,
			amount,
			string(c.CorrectCategory),
			c.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	return Table{Sheet: "Corrections", Columns: correctionColumns, Rows: rows}
}

func formatConfidence(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	multiUnderscore = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename keeps letters, digits, hyphen and underscore, collapses runs of
// underscores and truncates to 100 characters.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "export"
	}
	return s
}

// BuildFilename returns {name}_{YYYY-MM-DD}.{format}.
func BuildFilename(name string, format Format, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(name), now.Format("2006-01-02"), format)
}
