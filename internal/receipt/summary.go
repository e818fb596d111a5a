package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-parser/internal/parsing"
)

// SummaryType selects how a summary breaks down spending
type SummaryType string

const (
	SummaryDaily    SummaryType = "daily"
	SummaryWeekly   SummaryType = "weekly"
	SummaryMonthly  SummaryType = "monthly"
	SummaryYearly   SummaryType = "yearly"
	SummaryVendor   SummaryType = "vendor"
	SummaryCategory SummaryType = "category"
)

const uncategorized = "Uncategorized"

// ParseSummaryType validates a summary type name
func ParseSummaryType(s string) (SummaryType, error) {
	switch t := SummaryType(strings.ToLower(strings.TrimSpace(s))); t {
	case SummaryDaily, SummaryWeekly, SummaryMonthly, SummaryYearly, SummaryVendor, SummaryCategory:
		return t, nil
	}
	return "", &parsing.ValidationError{Field: "type", Message: fmt.Sprintf("unknown summary type %q", s)}
}

// Summary totals spending across receipts
type Summary struct {
	Type         SummaryType                `json:"type"`
	Period       string                     `json:"period"`
	Total        decimal.Decimal            `json:"total"`
	ItemCount    int                        `json:"item_count"`
	ReceiptCount int                        `json:"receipt_count"`
	Breakdown    map[string]decimal.Decimal `json:"breakdown"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// Average is the mean receipt total, zero without receipts
func (s *Summary) Average() decimal.Decimal {
	if s.ReceiptCount == 0 {
		return decimal.Zero
	}
	return s.Total.Div(decimal.NewFromInt(int64(s.ReceiptCount))).Round(2)
}

// Summarize totals receipts, breaking the total down by kind. Period spans
// the first to the last receipt date.
func Summarize(receipts []*Receipt, kind SummaryType, now time.Time) (*Summary, error) {
	if _, err := ParseSummaryType(string(kind)); err != nil {
		return nil, err
	}

	summary := &Summary{
		Type:         kind,
		Total:        decimal.Zero,
		ReceiptCount: len(receipts),
		Breakdown:    make(map[string]decimal.Decimal),
		GeneratedAt:  now,
	}

	var first, last time.Time
	for i, r := range receipts {
		if i == 0 || r.Date.Before(first) {
			first = r.Date
		}
		if i == 0 || r.Date.After(last) {
			last = r.Date
		}

		for _, item := range r.Items {
			key := breakdownKey(kind, r.Date, item)
			summary.Breakdown[key] = summary.Breakdown[key].Add(item.Amount)
			summary.Total = summary.Total.Add(item.Amount)
			summary.ItemCount++
		}
	}

	if len(receipts) > 0 {
		summary.Period = fmt.Sprintf("%s to %s", first.Format("2006-01-02"), last.Format("2006-01-02"))
	}
	return summary, nil
}

func breakdownKey(kind SummaryType, date time.Time, item parsing.Item) string {
	switch kind {
	case SummaryDaily:
		return date.Format("2006-01-02")
	case SummaryWeekly:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case SummaryMonthly:
		return date.Format("2006-01")
	case SummaryYearly:
		return date.Format("2006")
	case SummaryVendor:
		return item.Vendor
	default:
		if item.Category == "" {
			return uncategorized
		}
		return item.Category
	}
}
