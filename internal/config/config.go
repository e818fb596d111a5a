// Package config registers the command line options shared by the receipt
// commands and builds the configured components from them.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-parser/internal/parsing"
	"github.com/zombor/receipt-parser/internal/scanning"
)

// EnvVarPrefix prefixes the environment variable of every flag.
const EnvVarPrefix = "RECEIPT_PARSER"

// ParseOptions returns the ff options both commands parse with: environment
// variables and an optional plain "name value" config file.
func ParseOptions() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix(EnvVarPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	}
}

// RegisterConfigFile adds the --config flag read by ParseOptions
func RegisterConfigFile(fs *ff.FlagSet) *string {
	return fs.StringLong("config", "", "Config file with one 'flag value' pair per line (optional)")
}

// Parser holds the parsing flags
type Parser struct {
	minAmount      *string
	maxAmount      *string
	noImpliedCents *bool
	dedupKeyLength *int
	ignoreWords    *string
	minLineChars   *int
	patternsFile   *string
}

// RegisterParser adds the parsing flags to fs
func RegisterParser(fs *ff.FlagSet) *Parser {
	defaults := parsing.DefaultConfig()
	return &Parser{
		minAmount:      fs.StringLong("min-amount", defaults.Amount.MinAmount.StringFixed(2), "Smallest accepted item amount"),
		maxAmount:      fs.StringLong("max-amount", defaults.Amount.MaxAmount.StringFixed(2), "Largest accepted item amount"),
		noImpliedCents: fs.BoolLong("no-implied-cents", "Do not read bare 3-4 digit amounts such as 1234 as 12.34"),
		dedupKeyLength: fs.IntLong("dedup-key-length", defaults.DedupKeyLength, "Vendor prefix length used to drop repeated items (0 disables)"),
		ignoreWords:    fs.StringLong("ignore-words", strings.Join(defaults.Cleaner.IgnoreWords, ","), "Comma separated keywords that mark non-item lines"),
		minLineChars:   fs.IntLong("min-line-chars", defaults.Cleaner.MinLineChars, "Minimum non-space characters for an item line"),
		patternsFile:   fs.StringLong("patterns", "", "JSON file with a custom pattern library (optional)"),
	}
}

// Config converts the parsed flags into a parsing.Config
func (p *Parser) Config() (parsing.Config, error) {
	cfg := parsing.DefaultConfig()

	minAmount, err := decimal.NewFromString(strings.TrimSpace(*p.minAmount))
	if err != nil {
		return cfg, fmt.Errorf("parsing min-amount %q: %w", *p.minAmount, err)
	}
	maxAmount, err := decimal.NewFromString(strings.TrimSpace(*p.maxAmount))
	if err != nil {
		return cfg, fmt.Errorf("parsing max-amount %q: %w", *p.maxAmount, err)
	}
	cfg.Amount.MinAmount = minAmount
	cfg.Amount.MaxAmount = maxAmount
	cfg.Amount.ImpliedCents = !*p.noImpliedCents

	cfg.DedupKeyLength = *p.dedupKeyLength
	cfg.Cleaner.IgnoreWords = splitList(*p.ignoreWords)
	cfg.Cleaner.MinLineChars = *p.minLineChars

	if *p.patternsFile != "" {
		f, err := os.Open(*p.patternsFile)
		if err != nil {
			return cfg, fmt.Errorf("opening patterns file: %w", err)
		}
		defer f.Close()

		patterns, err := parsing.LoadPatterns(f)
		if err != nil {
			return cfg, fmt.Errorf("loading patterns from %s: %w", *p.patternsFile, err)
		}
		cfg.Patterns = patterns
	}

	return cfg, nil
}

// NewParser builds the parser described by the flags
func (p *Parser) NewParser() (*parsing.Parser, error) {
	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}
	return parsing.NewParser(cfg)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Scanner holds the text extraction flags
type Scanner struct {
	kind           *string
	geminiKey      *string
	geminiModel    *string
	ollamaURL      *string
	ollamaModel    *string
	language       *string
	fallback       *string
	hybridMinItems *int
	hybridMaxTotal *string
}

// RegisterScanner adds the scanner flags to fs. defaultKind may be empty to
// leave scanning off unless asked for.
func RegisterScanner(fs *ff.FlagSet, defaultKind string) *Scanner {
	return &Scanner{
		kind:           fs.StringLong("scanner", defaultKind, "Scanner type: 'tesseract', 'gemini', 'ollama' or 'hybrid'"),
		geminiKey:      fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:    fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		ollamaURL:      fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:    fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)"),
		language:       fs.StringLong("tesseract-lang", "eng", "Tesseract language"),
		fallback:       fs.StringLong("hybrid-fallback", "gemini", "Vision scanner the hybrid scanner falls back to: 'gemini' or 'ollama'"),
		hybridMinItems: fs.IntLong("hybrid-min-items", 3, "Fewest Tesseract items the hybrid scanner accepts"),
		hybridMaxTotal: fs.StringLong("hybrid-max-total", "1000", "Tesseract totals at or above this go to the fallback scanner"),
	}
}

// Kind is the selected scanner type, empty when none was chosen
func (s *Scanner) Kind() string {
	return strings.ToLower(strings.TrimSpace(*s.kind))
}

// NewScanner builds the selected scanner. parser judges Tesseract output for
// the hybrid scanner.
func (s *Scanner) NewScanner(parser parsing.ReceiptParser) (scanning.Scanner, error) {
	if s.Kind() == "hybrid" {
		return s.newHybrid(parser)
	}
	return s.newScanner(s.Kind())
}

func (s *Scanner) newHybrid(parser parsing.ReceiptParser) (scanning.Scanner, error) {
	fallbackKind := strings.ToLower(strings.TrimSpace(*s.fallback))
	if fallbackKind != "gemini" && fallbackKind != "ollama" {
		return nil, fmt.Errorf("invalid hybrid fallback %q: use gemini or ollama", *s.fallback)
	}
	maxTotal, err := decimal.NewFromString(strings.TrimSpace(*s.hybridMaxTotal))
	if err != nil {
		return nil, fmt.Errorf("parsing hybrid-max-total %q: %w", *s.hybridMaxTotal, err)
	}

	fallback, err := s.newScanner(fallbackKind)
	if err != nil {
		return nil, err
	}
	primary, err := s.newScanner("tesseract")
	if err != nil {
		fallback.Close()
		return nil, err
	}

	slog.Info("Initializing hybrid scanner...", "fallback", fallbackKind, "min_items", *s.hybridMinItems, "max_total", maxTotal.String())
	return scanning.NewHybrid(primary, fallback, scanning.ReliableReceipt(parser, *s.hybridMinItems, maxTotal)), nil
}

func (s *Scanner) newScanner(kind string) (scanning.Scanner, error) {
	switch kind {
	case "tesseract":
		slog.Info("Initializing Tesseract scanner...", "language", *s.language)
		t, err := scanning.NewTesseract(*s.language)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "gemini":
		apiKey := *s.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", *s.geminiModel)
		g, err := scanning.NewGemini(apiKey, *s.geminiModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *s.ollamaURL, "model", *s.ollamaModel)
		o, err := scanning.NewOllama(*s.ollamaURL, *s.ollamaModel)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q: use tesseract, gemini, ollama or hybrid", *s.kind)
	}
}

// RegisterLogLevel adds the --log-level flag to fs
func RegisterLogLevel(fs *ff.FlagSet) *string {
	return fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
}

// SetupLogging installs a text handler on stderr as the default logger
func SetupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}
