package parsing

import (
	"regexp"
	"strings"
	"time"
)

type datePattern struct {
	re     *regexp.Regexp
	layout string
}

// Tried in order; separators are normalized to "-" before parsing.
var datePatterns = []datePattern{
	{regexp.MustCompile(`\d{4}[-/]\d{2}[-/]\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{2}[-/]\d{2}[-/]\d{4}`), "01-02-2006"},
	{regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{4}`), "1-2-2006"},
}

// ExtractDate returns the first valid purchase date printed in text.
func ExtractDate(text string) (time.Time, bool) {
	for _, dp := range datePatterns {
		for _, match := range dp.re.FindAllString(text, -1) {
			normalized := strings.ReplaceAll(match, "/", "-")
			if d, err := time.Parse(dp.layout, normalized); err == nil {
				return d, true
			}
		}
	}
	return time.Time{}, false
}
