package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/zombor/receipt-parser/internal/parsing"
)

// ReadReceipts loads every receipt sheet of the workbook at path, skipping
// TOTAL rows. Sheets that cannot be read are logged and skipped.
func ReadReceipts(path string) ([]Receipt, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sources, err := readSources(f)
	if err != nil {
		return nil, err
	}

	receipts := make([]Receipt, 0)
	for _, name := range f.GetSheetList() {
		if !strings.HasPrefix(name, SheetPrefix) {
			continue
		}
		r, err := readReceiptSheet(f, name)
		if err != nil {
			slog.Warn("Skipping unreadable receipt sheet", "sheet", name, "error", err)
			continue
		}
		r.Source = sources[name]
		receipts = append(receipts, r)
	}
	return receipts, nil
}

func readReceiptSheet(f *excelize.File, name string) (Receipt, error) {
	date, err := sheetDate(name)
	if err != nil {
		return Receipt{}, err
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Receipt{}, fmt.Errorf("reading sheet %s: %w", name, err)
	}

	items := make([]parsing.Item, 0, len(rows))
	for i, row := range rows {
		// Header
		if i == 0 {
			continue
		}
		if len(row) < len(receiptColumns) || row[1] == totalLabel {
			continue
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(row[3]))
		if err != nil {
			return Receipt{}, fmt.Errorf("sheet %s row %d: parsing amount %q: %w", name, i+1, row[3], err)
		}
		item, err := parsing.NewItem(parsing.Item{
			Vendor:     row[1],
			Category:   row[2],
			Amount:     amount.Round(2),
			LineNumber: i,
		})
		if err != nil {
			return Receipt{}, fmt.Errorf("sheet %s row %d: %w", name, i+1, err)
		}
		items = append(items, item)
	}

	return Receipt{Date: date, Items: items}, nil
}

// sheetDate reads the date out of "Receipt 2024-01-15" or "Receipt 2024-01-15 (2)".
func sheetDate(name string) (time.Time, error) {
	rest := strings.TrimPrefix(name, SheetPrefix)
	if len(rest) < len(dateLayout) {
		return time.Time{}, fmt.Errorf("sheet %s: no date in name", name)
	}
	date, err := time.Parse(dateLayout, rest[:len(dateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("sheet %s: parsing date: %w", name, err)
	}
	return date, nil
}
