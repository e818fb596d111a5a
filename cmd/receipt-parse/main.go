package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-parser/internal/config"
	"github.com/zombor/receipt-parser/internal/export"
	"github.com/zombor/receipt-parser/internal/parsing"
	"github.com/zombor/receipt-parser/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-parse")
	var (
		xlsxPath    = fs.StringLong("xlsx", "", "Workbook to add the parsed receipts to (optional)")
		asJSON      = fs.BoolLong("json", "Print items as JSON")
		logLevel    = config.RegisterLogLevel(fs)
		parserFlags = config.RegisterParser(fs)
		scanFlags   = config.RegisterScanner(fs, "")
		_           = config.RegisterConfigFile(fs)
		_           = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:], config.ParseOptions()...); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := config.SetupLogging(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	files := fs.GetArgs()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "usage: receipt-parse [flags] FILE... (use - for stdin)\n")
		os.Exit(1)
	}

	parser, err := parserFlags.NewParser()
	if err != nil {
		slog.Error("Failed to configure parser", "error", err)
		os.Exit(1)
	}

	var scanner scanning.Scanner
	if scanFlags.Kind() != "" {
		scanner, err = scanFlags.NewScanner(parser)
		if err != nil {
			slog.Error("Failed to initialize scanner", "type", scanFlags.Kind(), "error", err)
			os.Exit(1)
		}
		defer scanner.Close()
	}

	p := &receiptParser{parser: parser, scanner: scanner, stdin: os.Stdin, now: time.Now}
	receipts, err := p.parseAll(files)
	if err != nil {
		slog.Error("Failed to parse receipts", "error", err)
		os.Exit(1)
	}

	if *asJSON {
		err = printJSON(os.Stdout, receipts)
	} else {
		err = printTable(os.Stdout, receipts)
	}
	if err != nil {
		slog.Error("Failed to print items", "error", err)
		os.Exit(1)
	}

	if *xlsxPath != "" {
		if err := export.NewExcelWriter().WriteFile(*xlsxPath, receipts...); err != nil {
			slog.Error("Failed to write workbook", "path", *xlsxPath, "error", err)
			os.Exit(1)
		}
	}
}

// receiptParser turns input files into export receipts. Text files are parsed
// directly; anything else goes through the scanner first.
type receiptParser struct {
	parser  parsing.ReceiptParser
	scanner scanning.Scanner
	stdin   io.Reader
	now     func() time.Time
}

func (p *receiptParser) parseAll(files []string) ([]export.Receipt, error) {
	receipts := make([]export.Receipt, 0, len(files))
	for _, file := range files {
		r, err := p.parse(file)
		if err != nil {
			return nil, err
		}
		slog.Info("Receipt parsed", "source", r.Source, "items", len(r.Items), "total", r.Total().StringFixed(2))
		receipts = append(receipts, r)
	}
	return receipts, nil
}

func (p *receiptParser) parse(file string) (export.Receipt, error) {
	text, err := p.readText(file)
	if err != nil {
		return export.Receipt{}, err
	}

	items, err := p.parser.ParseReceiptText(text)
	if err != nil {
		return export.Receipt{}, fmt.Errorf("parsing %s: %w", file, err)
	}

	date, ok := parsing.ExtractDate(text)
	if !ok {
		date = p.now()
	}

	source := filepath.Base(file)
	if file == "-" {
		source = "stdin"
	}
	return export.Receipt{Date: date, Items: items, Source: source}, nil
}

func (p *receiptParser) readText(file string) (string, error) {
	if file == "-" {
		return parsing.ReadText(p.stdin, "stdin")
	}

	contentType := scanContentType(file)
	if contentType == "" {
		return parsing.ReadFile(file)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", &parsing.ProcessingError{Source: file, Err: err}
	}

	if p.scanner == nil {
		return "", &parsing.ProcessingError{
			Source: file,
			Err:    fmt.Errorf("%s needs a scanner: pass --scanner", contentType),
		}
	}
	text, err := p.scanner.ExtractText(data, contentType)
	if err != nil {
		return "", &parsing.ProcessingError{Source: file, Err: fmt.Errorf("extracting text: %w", err)}
	}
	return text, nil
}

// scanContentType is the content type of files that need OCR, empty for text
func scanContentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic", ".heif":
		return "image/heic"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}

func printTable(w io.Writer, receipts []export.Receipt) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range receipts {
		fmt.Fprintf(tw, "# %s (%s)\n", r.Source, r.Date.Format("2006-01-02"))
		fmt.Fprintln(tw, "LINE\tVENDOR\tAMOUNT\tCONFIDENCE")
		for _, item := range r.Items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\n", item.LineNumber, item.Vendor, item.Amount.StringFixed(2), item.Confidence)
		}
		fmt.Fprintf(tw, "\tTOTAL\t%s\t\n\n", r.Total().StringFixed(2))
	}
	return tw.Flush()
}

type jsonReceipt struct {
	Source string          `json:"source"`
	Date   string          `json:"date"`
	Items  []parsing.Item  `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

func printJSON(w io.Writer, receipts []export.Receipt) error {
	out := make([]jsonReceipt, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, jsonReceipt{
			Source: r.Source,
			Date:   r.Date.Format("2006-01-02"),
			Items:  r.Items,
			Total:  r.Total(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
