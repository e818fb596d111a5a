package parsing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountConfig bounds accepted amounts.
type AmountConfig struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	// ImpliedCents turns a bare 3-4 digit run such as "1234" into 12.34.
	ImpliedCents bool
}

func DefaultAmountConfig() AmountConfig {
	return AmountConfig{
		MinAmount:    decimal.RequireFromString("0.01"),
		MaxAmount:    decimal.RequireFromString("10000.00"),
		ImpliedCents: true,
	}
}

// AmountParser converts matched amount text into validated decimals.
type AmountParser struct {
	min          decimal.Decimal
	max          decimal.Decimal
	impliedCents bool
}

func NewAmountParser(cfg AmountConfig) (*AmountParser, error) {
	if cfg.MinAmount.IsNegative() {
		return nil, fmt.Errorf("minimum amount %s is negative", cfg.MinAmount)
	}
	if cfg.MaxAmount.LessThan(cfg.MinAmount) {
		return nil, fmt.Errorf("maximum amount %s is below minimum %s", cfg.MaxAmount, cfg.MinAmount)
	}
	return &AmountParser{
		min:          cfg.MinAmount,
		max:          cfg.MaxAmount,
		impliedCents: cfg.ImpliedCents,
	}, nil
}

// Parse returns the amount in s, or a *ValidationError.
func (p *AmountParser) Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, newValidationError("amount", "empty amount string")
	}

	cleaned := p.clean(s)
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, newValidationError("amount", "invalid amount format: %s", s)
	}

	if amount.LessThan(p.min) {
		return decimal.Zero, newValidationError("amount_range", "amount too small: %s, minimum: %s", amount, p.min)
	}
	if amount.GreaterThan(p.max) {
		return decimal.Zero, newValidationError("amount_range", "amount too large: %s, maximum: %s", amount, p.max)
	}
	return amount, nil
}

func (p *AmountParser) clean(s string) string {
	cleaned := strings.ReplaceAll(s, "$", "")
	cleaned = strings.ReplaceAll(cleaned, "USD", "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	if p.impliedCents && !strings.Contains(cleaned, ".") &&
		len(cleaned) >= 3 && len(cleaned) <= 4 && isDigits(cleaned[len(cleaned)-2:]) {
		cleaned = cleaned[:len(cleaned)-2] + "." + cleaned[len(cleaned)-2:]
	}
	return cleaned
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
