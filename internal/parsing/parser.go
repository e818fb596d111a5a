// Package parsing turns raw receipt text into line items.
//
// Each line is cleaned, filtered against ignore keywords, and matched against
// an ordered library of patterns. The highest-confidence pattern whose match
// also yields a usable vendor and an in-range amount wins; a pattern that
// matches but fails validation does not block the ones below it.
package parsing

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDedupKeyLength is the vendor prefix length used to drop repeats.
const DefaultDedupKeyLength = 20

// ReceiptParser extracts items from receipt text.
type ReceiptParser interface {
	ParseReceiptText(text string) ([]Item, error)
}

// Config assembles a Parser. Start from DefaultConfig and override fields.
type Config struct {
	Cleaner  CleanerConfig
	Amount   AmountConfig
	Patterns []Pattern
	// DedupKeyLength <= 0 keeps every line.
	DedupKeyLength int
}

func DefaultConfig() Config {
	return Config{
		Cleaner:        DefaultCleanerConfig(),
		Amount:         DefaultAmountConfig(),
		Patterns:       DefaultPatterns(),
		DedupKeyLength: DefaultDedupKeyLength,
	}
}

// Parser is the regex based ReceiptParser. It holds configuration only and
// is safe for concurrent use.
type Parser struct {
	cleaner        *Cleaner
	amounts        *AmountParser
	patterns       []Pattern
	dedupKeyLength int
}

func NewParser(cfg Config) (*Parser, error) {
	cleaner, err := NewCleaner(cfg.Cleaner)
	if err != nil {
		return nil, fmt.Errorf("creating cleaner: %w", err)
	}
	amounts, err := NewAmountParser(cfg.Amount)
	if err != nil {
		return nil, fmt.Errorf("creating amount parser: %w", err)
	}
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	return &Parser{
		cleaner:        cleaner,
		amounts:        amounts,
		patterns:       byConfidence(patterns),
		dedupKeyLength: cfg.DedupKeyLength,
	}, nil
}

// ParseLine matches a single line. It returns false for ignored lines and
// lines no pattern can recover.
func (p *Parser) ParseLine(line string, lineNumber int) (ParsedLine, bool) {
	cleaned := p.cleaner.CleanLine(line)
	if p.cleaner.ShouldIgnoreLine(cleaned) {
		return ParsedLine{}, false
	}

	for _, pattern := range p.patterns {
		rawVendor, rawAmount, ok := pattern.Match(cleaned)
		if !ok {
			continue
		}

		vendor := p.cleaner.CleanVendorName(rawVendor)
		if vendor == "" {
			continue
		}

		amount, err := p.amounts.Parse(rawAmount)
		if err != nil {
			slog.Debug("Pattern match failed validation",
				"pattern", pattern.Name(),
				"line", cleaned,
				"error", err,
			)
			continue
		}

		return ParsedLine{
			LineNumber:  lineNumber,
			RawText:     line,
			Vendor:      vendor,
			Amount:      decimal.NullDecimal{Decimal: amount, Valid: true},
			Confidence:  pattern.Confidence(),
			ParseMethod: pattern.Name(),
		}, true
	}
	return ParsedLine{}, false
}

// ParseReceiptText parses every line of text. Lines that fail are logged and
// skipped; an empty result is not an error.
func (p *Parser) ParseReceiptText(text string) ([]Item, error) {
	items := make([]Item, 0)
	if strings.TrimSpace(text) == "" {
		slog.Warn("Empty receipt text provided")
		return items, nil
	}

	lines := splitLines(text)
	seen := make(map[string]int)
	slog.Debug("Starting receipt parsing", "line_count", len(lines))

	for i, line := range lines {
		lineNumber := i + 1
		parsed, ok := p.ParseLine(line, lineNumber)
		if !ok || !parsed.Amount.Valid {
			continue
		}

		item, err := NewItem(Item{
			Vendor:     parsed.Vendor,
			Amount:     parsed.Amount.Decimal,
			LineNumber: parsed.LineNumber,
			Confidence: parsed.Confidence,
			RawText:    parsed.RawText,
		})
		if err != nil {
			slog.Warn("Failed to parse line", "line_number", lineNumber, "line", line, "error", err)
			continue
		}

		if p.dedupKeyLength > 0 {
			key := vendorKey(item.Vendor, p.dedupKeyLength)
			if first, dup := seen[key]; dup {
				slog.Info("Dropping repeated vendor line",
					"line_number", lineNumber,
					"first_line", first,
					"vendor", item.Vendor,
					"amount", item.Amount.StringFixed(2),
				)
				continue
			}
			seen[key] = lineNumber
		}

		items = append(items, item)
	}

	slog.Debug("Receipt parsing completed", "total_lines", len(lines), "items_found", len(items))
	return items, nil
}

// ParseReader reads all of r and parses it.
func (p *Parser) ParseReader(r io.Reader) ([]Item, error) {
	text, err := ReadText(r, "")
	if err != nil {
		return nil, err
	}
	return p.ParseReceiptText(text)
}

// ParseFile parses a UTF-8 text file.
func (p *Parser) ParseFile(path string) ([]Item, error) {
	text, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.ParseReceiptText(text)
}

// ReadText reads receipt text from r. Failures are ProcessingErrors naming
// source.
func ReadText(r io.Reader, source string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &ProcessingError{Source: source, Err: fmt.Errorf("reading receipt text: %w", err)}
	}
	return string(data), nil
}

// ReadFile reads a receipt text file.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ProcessingError{Source: path, Err: err}
	}
	return string(data), nil
}

// lineBreaks maps every line boundary OCR output may contain to "\n".
// Tesseract ends each page with a form feed.
var lineBreaks = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\f", "\n",
	"\v", "\n",
	"\x1c", "\n",
	"\x1d", "\n",
	"\x1e", "\n",
	"\u0085", "\n",
	"\u2028", "\n",
	"\u2029", "\n",
)

func splitLines(text string) []string {
	return strings.Split(lineBreaks.Replace(text), "\n")
}

// vendorKey is the lowercase first n runes of vendor.
func vendorKey(vendor string, n int) string {
	r := []rune(strings.ToLower(vendor))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
