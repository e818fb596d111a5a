// Package export writes parsed receipts to Excel workbooks and reads them
// back.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/zombor/receipt-parser/internal/parsing"
)

const (
	// SheetPrefix starts the name of every receipt sheet.
	SheetPrefix = "Receipt "
	// SummarySheet lists every receipt sheet in the workbook.
	SummarySheet = "Summary"
	// DefaultMaxBackups is how many backup copies WriteFile keeps.
	DefaultMaxBackups = 10

	totalLabel     = "TOTAL"
	manualSource   = "Manual"
	dateLayout     = "2006-01-02"
	currencyFormat = "$#,##0.00"
	headerFill     = "366092"
	maxColumnWidth = 50
	defaultSheet   = "Sheet1"
)

var (
	receiptColumns = []string{"Date", "Vendor", "Category", "Amount"}
	summaryColumns = []string{"Sheet", "Date", "Items", "Total", "Source"}
)

// Receipt is one receipt sheet.
type Receipt struct {
	Date   time.Time
	Items  []parsing.Item
	Source string
}

// Total sums the item amounts.
func (r Receipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// SheetName is the sheet a receipt dated date is written to.
func SheetName(date time.Time) string {
	return SheetPrefix + date.Format(dateLayout)
}

// Writer renders receipts as a document on out.
type Writer interface {
	Write(out io.Writer, receipts []Receipt) error
}

// ExcelWriter renders receipts into workbooks.
type ExcelWriter struct {
	// MaxBackups <= 0 keeps every backup.
	MaxBackups int
	now        func() time.Time
}

func NewExcelWriter() *ExcelWriter {
	return &ExcelWriter{
		MaxBackups: DefaultMaxBackups,
		now:        time.Now,
	}
}

// Write renders receipts into a new workbook on out. Receipts sharing a date
// get numbered sheet names.
func (x *ExcelWriter) Write(out io.Writer, receipts []Receipt) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := x.fill(f, receipts, false); err != nil {
		return err
	}
	if err := f.Write(out); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// WriteFile adds receipts to the workbook at path, creating it when missing.
// A sheet for the same date is replaced. An existing file is copied to a
// timestamped backup first.
func (x *ExcelWriter) WriteFile(path string, receipts ...Receipt) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating workbook directory: %w", err)
	}

	var f *excelize.File
	if _, err := os.Stat(path); err == nil {
		if _, err := x.backup(path); err != nil {
			return err
		}
		f, err = excelize.OpenFile(path)
		if err != nil {
			return fmt.Errorf("opening workbook: %w", err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
	} else {
		return fmt.Errorf("checking workbook: %w", err)
	}
	defer f.Close()

	if err := x.fill(f, receipts, true); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}

	slog.Info("Workbook saved", "path", path, "receipts", len(receipts))
	return nil
}

func (x *ExcelWriter) fill(f *excelize.File, receipts []Receipt, replace bool) error {
	styles, err := newSheetStyles(f)
	if err != nil {
		return err
	}

	sources, err := readSources(f)
	if err != nil {
		return err
	}

	// Only sheets from earlier runs are replaced; same-date receipts in this
	// batch get numbered sheets.
	written := make(map[string]bool)
	for _, r := range receipts {
		base := SheetName(r.Date)
		name := base
		if replace && !written[base] {
			if err := dropDateSheets(f, base); err != nil {
				return err
			}
		} else {
			name = uniqueSheetName(f, base)
		}
		written[base] = true
		if err := writeReceiptSheet(f, styles, name, r); err != nil {
			return err
		}
		sources[name] = r.Source
	}

	if err := writeSummarySheet(f, styles, sources); err != nil {
		return err
	}

	if len(f.GetSheetList()) > 1 {
		if err := dropSheet(f, defaultSheet); err != nil {
			return err
		}
	}
	if idx, err := f.GetSheetIndex(SummarySheet); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return nil
}

type sheetStyles struct {
	header   int
	currency int
	text     int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	numFmt := currencyFormat

	header, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return sheetStyles{}, fmt.Errorf("creating header style: %w", err)
	}
	currency, err := f.NewStyle(&excelize.Style{Border: border, CustomNumFmt: &numFmt})
	if err != nil {
		return sheetStyles{}, fmt.Errorf("creating currency style: %w", err)
	}
	text, err := f.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return sheetStyles{}, fmt.Errorf("creating cell style: %w", err)
	}
	return sheetStyles{header: header, currency: currency, text: text}, nil
}

func writeReceiptSheet(f *excelize.File, styles sheetStyles, name string, r Receipt) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", name, err)
	}

	date := r.Date.Format(dateLayout)
	rows := make([][]any, 0, len(r.Items)+2)
	rows = append(rows, toAny(receiptColumns))
	for _, item := range r.Items {
		rows = append(rows, []any{date, item.Vendor, item.Category, item.Amount.InexactFloat64()})
	}
	rows = append(rows, []any{date, totalLabel, "", r.Total().InexactFloat64()})

	if err := writeRows(f, name, rows); err != nil {
		return err
	}
	return formatSheet(f, styles, name, rows, map[int]bool{3: true})
}

func writeSummarySheet(f *excelize.File, styles sheetStyles, sources map[string]string) error {
	if err := dropSheet(f, SummarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	rows := [][]any{toAny(summaryColumns)}
	for _, name := range f.GetSheetList() {
		if !strings.HasPrefix(name, SheetPrefix) {
			continue
		}
		r, err := readReceiptSheet(f, name)
		if err != nil {
			return err
		}
		source := sources[name]
		if source == "" {
			source = manualSource
		}
		rows = append(rows, []any{
			name,
			r.Date.Format(dateLayout),
			len(r.Items),
			r.Total().InexactFloat64(),
			source,
		})
	}

	if err := writeRows(f, SummarySheet, rows); err != nil {
		return err
	}
	return formatSheet(f, styles, SummarySheet, rows, map[int]bool{3: true})
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("setting %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

// formatSheet styles the header row, borders every data cell, applies the
// currency format to the given zero-based columns and sizes columns to fit.
func formatSheet(f *excelize.File, styles sheetStyles, sheet string, rows [][]any, currencyCols map[int]bool) error {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])

	for c := 0; c < width; c++ {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}

		style := styles.text
		if currencyCols[c] {
			style = styles.currency
		}
		if err := f.SetCellStyle(sheet, col+"1", col+"1", styles.header); err != nil {
			return fmt.Errorf("styling header: %w", err)
		}
		if len(rows) > 1 {
			last := fmt.Sprintf("%s%d", col, len(rows))
			if err := f.SetCellStyle(sheet, col+"2", last, style); err != nil {
				return fmt.Errorf("styling column %s: %w", col, err)
			}
		}

		if err := f.SetColWidth(sheet, col, col, columnWidth(rows, c)); err != nil {
			return fmt.Errorf("sizing column %s: %w", col, err)
		}
	}
	return nil
}

func columnWidth(rows [][]any, col int) float64 {
	longest := 0
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		if n := utf8.RuneCountInString(fmt.Sprint(row[col])); n > longest {
			longest = n
		}
	}
	return float64(min(longest+2, maxColumnWidth))
}

// readSources returns the Source column of an existing summary sheet keyed
// by sheet name.
func readSources(f *excelize.File) (map[string]string, error) {
	sources := make(map[string]string)
	if idx, err := f.GetSheetIndex(SummarySheet); err != nil || idx < 0 {
		return sources, nil
	}
	rows, err := f.GetRows(SummarySheet)
	if err != nil {
		return nil, fmt.Errorf("reading summary sheet: %w", err)
	}
	for i, row := range rows {
		if i == 0 || len(row) < len(summaryColumns) {
			continue
		}
		sources[row[0]] = row[4]
	}
	return sources, nil
}

func dropSheet(f *excelize.File, name string) error {
	idx, err := f.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil
	}
	if err := f.DeleteSheet(name); err != nil {
		return fmt.Errorf("deleting sheet %s: %w", name, err)
	}
	return nil
}

// dropDateSheets removes name and its numbered variants
func dropDateSheets(f *excelize.File, name string) error {
	for _, sheet := range f.GetSheetList() {
		if sheet == name || strings.HasPrefix(sheet, name+" (") {
			if err := dropSheet(f, sheet); err != nil {
				return err
			}
		}
	}
	return nil
}

func uniqueSheetName(f *excelize.File, name string) string {
	candidate := name
	for n := 2; ; n++ {
		if idx, err := f.GetSheetIndex(candidate); err != nil || idx < 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
