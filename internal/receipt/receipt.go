package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-parser/internal/parsing"
)

// Receipt is a parsed receipt with its line items
type Receipt struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Date        time.Time       `json:"date"`
	Items       []parsing.Item  `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Text        string          `json:"text"` // text the items were parsed from
	Filename    string          `json:"filename,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RecalculateTotal sets Total to the sum of item amounts
func (r *Receipt) RecalculateTotal() {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Amount)
	}
	r.Total = total
}

// ItemCount returns the number of line items
func (r *Receipt) ItemCount() int {
	return len(r.Items)
}
