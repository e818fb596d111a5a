package scanning

import (
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-parser/internal/parsing"
)

// Hybrid reads a receipt with a cheap primary scanner, usually Tesseract, and
// only asks the fallback, usually a vision model, when the primary text does
// not look like a usable receipt.
type Hybrid struct {
	primary  Scanner
	fallback Scanner
	reliable func(text string) bool
}

// NewHybrid combines two scanners. reliable decides whether primary text can
// be kept.
func NewHybrid(primary, fallback Scanner, reliable func(text string) bool) *Hybrid {
	return &Hybrid{primary: primary, fallback: fallback, reliable: reliable}
}

// ExtractText returns the primary transcription when it is reliable and the
// fallback transcription otherwise.
func (h *Hybrid) ExtractText(imageData []byte, contentType string) (string, error) {
	text, err := h.primary.ExtractText(imageData, contentType)
	if err == nil && h.reliable(text) {
		slog.Debug("Primary scan is reliable", "chars", len(text))
		return text, nil
	}
	if err != nil {
		slog.Warn("Primary scan failed, using fallback scanner", "error", err)
	} else {
		slog.Info("Primary scan looks unreliable, using fallback scanner", "chars", len(text))
	}
	return h.fallback.ExtractText(imageData, contentType)
}

// Close closes both scanners.
func (h *Hybrid) Close() error {
	return errors.Join(h.primary.Close(), h.fallback.Close())
}

// ReliableReceipt reports text as reliable when parser finds at least
// minItems items adding up to less than maxTotal.
func ReliableReceipt(parser parsing.ReceiptParser, minItems int, maxTotal decimal.Decimal) func(string) bool {
	return func(text string) bool {
		items, err := parser.ParseReceiptText(text)
		if err != nil || len(items) < minItems {
			return false
		}
		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.Amount)
		}
		return total.LessThan(maxTotal)
	}
}
