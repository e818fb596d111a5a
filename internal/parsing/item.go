package parsing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Item is one purchased line of a receipt.
type Item struct {
	Vendor     string          `json:"vendor"`
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category"`
	LineNumber int             `json:"line_number"`
	Confidence float64         `json:"confidence"`
	RawText    string          `json:"raw_text"`
}

// NewItem trims text fields and rejects empty vendors and negative amounts.
func NewItem(in Item) (Item, error) {
	in.Vendor = strings.TrimSpace(in.Vendor)
	in.Category = strings.TrimSpace(in.Category)
	if in.Vendor == "" {
		return Item{}, newValidationError("vendor", "vendor is empty")
	}
	if in.Amount.IsNegative() {
		return Item{}, newValidationError("amount", "amount cannot be negative: %s", in.Amount)
	}
	return in, nil
}

// ParsedLine is the outcome of matching a single input line.
type ParsedLine struct {
	LineNumber  int
	RawText     string
	Vendor      string
	Amount      decimal.NullDecimal
	Confidence  float64
	ParseMethod string
}
