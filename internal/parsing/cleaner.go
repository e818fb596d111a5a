package parsing

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultNoiseChars matches every character a cleaned line may not contain.
const DefaultNoiseChars = `[^\p{L}\p{N}_\s$.,\-]`

var (
	dollarRunRE     = regexp.MustCompile(`\$+`)
	trailingPunctRE = regexp.MustCompile(`[^\p{L}\p{N}_\s]+$`)
	leadingNoiseRE  = regexp.MustCompile(`^[^\p{L}_]+`)
	symbolsOnlyRE   = regexp.MustCompile(`^[^\p{L}_]+$`)
)

// CleanerConfig controls which lines are noise.
type CleanerConfig struct {
	// IgnoreWords are matched as case-insensitive substrings.
	IgnoreWords []string
	// MinLineChars is the minimum number of non-space characters.
	MinLineChars int
	// NoiseChars is a regexp character class stripped from every line.
	NoiseChars string
}

// DefaultIgnoreWords mark summary and payment lines.
func DefaultIgnoreWords() []string {
	return []string{
		"tax", "total", "subtotal", "tip", "gratuity",
		"discount", "coupon", "credit", "change",
	}
}

func DefaultCleanerConfig() CleanerConfig {
	return CleanerConfig{
		IgnoreWords:  DefaultIgnoreWords(),
		MinLineChars: 3,
		NoiseChars:   DefaultNoiseChars,
	}
}

// Cleaner normalizes OCR lines and vendor names.
type Cleaner struct {
	ignoreWords  []string
	minLineChars int
	noise        *regexp.Regexp
}

func NewCleaner(cfg CleanerConfig) (*Cleaner, error) {
	expr := cfg.NoiseChars
	if expr == "" {
		expr = DefaultNoiseChars
	}
	noise, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling noise characters: %w", err)
	}

	words := make([]string, 0, len(cfg.IgnoreWords))
	for _, w := range cfg.IgnoreWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words = append(words, w)
		}
	}

	return &Cleaner{
		ignoreWords:  words,
		minLineChars: cfg.MinLineChars,
		noise:        noise,
	}, nil
}

// CleanLine collapses whitespace, strips noise characters and repeated
// dollar signs.
func (c *Cleaner) CleanLine(line string) string {
	if line == "" {
		return ""
	}
	cleaned := collapseSpaces(line)
	cleaned = c.noise.ReplaceAllString(cleaned, "")
	cleaned = dollarRunRE.ReplaceAllString(cleaned, "$")
	return strings.TrimSpace(cleaned)
}

// CleanVendorName trims punctuation and leading numbers, then title cases.
func (c *Cleaner) CleanVendorName(vendor string) string {
	if vendor == "" {
		return ""
	}
	cleaned := collapseSpaces(vendor)
	cleaned = trailingPunctRE.ReplaceAllString(cleaned, "")
	cleaned = leadingNoiseRE.ReplaceAllString(cleaned, "")
	// Casers carry state, so one is built per call.
	cleaned = cases.Title(language.Und).String(cleaned)
	return strings.TrimSpace(cleaned)
}

// ShouldIgnoreLine reports whether line is blank, symbols only, a summary
// line, or too short to be an item.
func (c *Cleaner) ShouldIgnoreLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	if symbolsOnlyRE.MatchString(line) {
		return true
	}
	lower := strings.ToLower(line)
	for _, w := range c.ignoreWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return nonSpaceCount(line) < c.minLineChars
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func nonSpaceCount(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
