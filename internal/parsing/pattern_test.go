package parsing

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pattern", func() {
	Describe("NewPattern", func() {
		It("should compile a valid pattern", func() {
			p, err := NewPattern(`^(.+?)\s+(\d+\.\d{2})$`, "described", 0.7)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name()).To(Equal("described"))
			Expect(p.Confidence()).To(Equal(0.7))
		})

		It("should require two capture groups", func() {
			_, err := NewPattern(`^(.+)$`, "one_group", 0.5)
			Expect(err).To(MatchError(ContainSubstring("needs description and amount groups")))
		})

		It("should reject a bad expression", func() {
			_, err := NewPattern(`^(.+?`, "broken", 0.5)
			Expect(err).To(HaveOccurred())
		})

		It("should reject confidence outside [0,1]", func() {
			_, err := NewPattern(`(a)(b)`, "too_sure", 1.5)
			Expect(err).To(HaveOccurred())
		})

		It("should require a name", func() {
			_, err := NewPattern(`(a)(b)`, "", 0.5)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Match", func() {
		It("should ignore case", func() {
			p := MustPattern(`^(.+?)\s+usd\s*(\d+\.\d{2})$`, "usd", 0.9)
			desc, amount, ok := p.Match("Book USD 12.34")
			Expect(ok).To(BeTrue())
			Expect(desc).To(Equal("Book"))
			Expect(amount).To(Equal("12.34"))
		})

		It("should report no match", func() {
			p := MustPattern(`^(.+?)\s+\$(\d+\.\d{2})$`, "simple", 0.9)
			_, _, ok := p.Match("no amount here")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("DefaultPatterns", func() {
		It("should be ordered by descending confidence", func() {
			patterns := DefaultPatterns()
			names := make([]string, len(patterns))
			for i, p := range patterns {
				names[i] = p.Name()
			}
			Expect(names).To(Equal([]string{
				"currency_with_commas",
				"usd_currency",
				"simple_currency",
				"decimal_amount",
				"whole_dollar",
				"loose_numeric",
			}))
			Expect(byConfidence(patterns)).To(Equal(patterns))
		})
	})

	Describe("byConfidence", func() {
		It("should keep library order for equal confidences", func() {
			sorted := byConfidence([]Pattern{
				MustPattern(`(a)(b)`, "low", 0.5),
				MustPattern(`(a)(b)`, "first_high", 0.9),
				MustPattern(`(a)(b)`, "second_high", 0.9),
			})
			Expect(sorted[0].Name()).To(Equal("first_high"))
			Expect(sorted[1].Name()).To(Equal("second_high"))
			Expect(sorted[2].Name()).To(Equal("low"))
		})
	})

	Describe("LoadPatterns", func() {
		It("should load patterns from JSON", func() {
			patterns, err := LoadPatterns(strings.NewReader(`[
				{"pattern": "^(.+?)\\s+EUR\\s*(\\d+\\.\\d{2})$", "name": "euro", "confidence": 0.85}
			]`))
			Expect(err).NotTo(HaveOccurred())
			Expect(patterns).To(HaveLen(1))

			desc, amount, ok := patterns[0].Match("Croissant EUR 2.40")
			Expect(ok).To(BeTrue())
			Expect(desc).To(Equal("Croissant"))
			Expect(amount).To(Equal("2.40"))
		})

		It("should reject an empty list", func() {
			_, err := LoadPatterns(strings.NewReader(`[]`))
			Expect(err).To(HaveOccurred())
		})

		It("should reject malformed JSON", func() {
			_, err := LoadPatterns(strings.NewReader(`{`))
			Expect(err).To(HaveOccurred())
		})

		It("should reject an invalid entry", func() {
			_, err := LoadPatterns(strings.NewReader(`[{"pattern": "(x)", "name": "bad", "confidence": 0.5}]`))
			Expect(err).To(HaveOccurred())
		})
	})
})
