package parsing

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
)

// Pattern is a compiled "description + amount" line matcher with an authored
// confidence. Group 1 of the expression captures the description, group 2
// the amount.
type Pattern struct {
	re         *regexp.Regexp
	name       string
	confidence float64
}

// NewPattern compiles expr case-insensitively.
func NewPattern(expr, name string, confidence float64) (Pattern, error) {
	if name == "" {
		return Pattern{}, fmt.Errorf("pattern name is required")
	}
	if confidence < 0 || confidence > 1 {
		return Pattern{}, fmt.Errorf("pattern %s: confidence %.2f outside [0,1]", name, confidence)
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compiling pattern %s: %w", name, err)
	}
	if re.NumSubexp() < 2 {
		return Pattern{}, fmt.Errorf("pattern %s: needs description and amount groups, has %d", name, re.NumSubexp())
	}
	return Pattern{re: re, name: name, confidence: confidence}, nil
}

// MustPattern is like NewPattern but panics on error.
func MustPattern(expr, name string, confidence float64) Pattern {
	p, err := NewPattern(expr, name, confidence)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) Name() string        { return p.name }
func (p Pattern) Confidence() float64 { return p.confidence }

// Match returns the raw description and amount substrings of text.
func (p Pattern) Match(text string) (description, amount string, ok bool) {
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// DefaultPatterns returns the built-in library, most specific shapes first.
func DefaultPatterns() []Pattern {
	return []Pattern{
		MustPattern(`^(.+?)\s+\$\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2}))\s*$`, "currency_with_commas", 0.95),
		MustPattern(`^(.+?)\s+USD\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2}))\s*$`, "usd_currency", 0.95),
		MustPattern(`^(.+?)\s+\$(\d+\.\d{2})\s*$`, "simple_currency", 0.9),
		MustPattern(`^(.+?)\s+(\d{1,3}(?:,\d{3})*\.\d{2})\s*$`, "decimal_amount", 0.8),
		MustPattern(`^(.+?)\s+\$(\d+)\s*$`, "whole_dollar", 0.7),
		MustPattern(`(.+?)\s*[\$]?\s*(\d+\.?\d*)\s*$`, "loose_numeric", 0.5),
	}
}

type patternSpec struct {
	Pattern    string  `json:"pattern"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// LoadPatterns reads a JSON array of {"pattern","name","confidence"} objects.
func LoadPatterns(r io.Reader) ([]Pattern, error) {
	var specs []patternSpec
	if err := json.NewDecoder(r).Decode(&specs); err != nil {
		return nil, fmt.Errorf("decoding patterns: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("pattern list is empty")
	}
	patterns := make([]Pattern, 0, len(specs))
	for _, s := range specs {
		p, err := NewPattern(s.Pattern, s.Name, s.Confidence)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// byConfidence returns a copy ordered by descending confidence. Equal
// confidences keep library order.
func byConfidence(patterns []Pattern) []Pattern {
	sorted := make([]Pattern, len(patterns))
	copy(sorted, patterns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].confidence > sorted[j].confidence
	})
	return sorted
}
