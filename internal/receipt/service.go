package receipt

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-parser/internal/export"
	"github.com/zombor/receipt-parser/internal/parsing"
	"github.com/zombor/receipt-parser/internal/scanning"
)

const defaultTitle = "Receipt"

var (
	filenameJunkRE  = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaceRE = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Service turns uploaded receipts and pasted text into stored, parsed receipts
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	parser      parsing.ReceiptParser
	exporter    export.Writer
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service with UUID IDs, the system clock and the Excel
// exporter. scanner may be nil when only text input is used.
func NewService(db DB, scanner scanning.Scanner, storage Storage, parser parsing.ReceiptParser) *Service {
	return NewServiceWithDeps(db, scanner, storage, parser, export.NewExcelWriter(), uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a Service with every dependency supplied
func NewServiceWithDeps(
	db DB,
	scanner scanning.Scanner,
	storage Storage,
	parser parsing.ReceiptParser,
	exporter export.Writer,
	idGen IDGenerator,
	timeSrc TimeSource,
) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		parser:      parser,
		exporter:    exporter,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename strips special characters and shortens long phone
// generated names
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = filenameJunkRE.ReplaceAllString(base, "")
	base = filenameSpaceRE.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if ext != "" {
		ext = filenameJunkRE.ReplaceAllString(ext[1:], "")
		if ext != "" {
			ext = "." + ext
		}
	}
	return base + ext
}

// ProcessReceipt stores an uploaded image or PDF, extracts its text with the
// scanner and parses the items
func (s *Service) ProcessReceipt(filename string, data []byte, contentType string) (*Receipt, error) {
	if s.scanner == nil {
		return nil, fmt.Errorf("no scanner configured")
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()
	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	text, err := s.scanner.ExtractText(data, contentType)
	if err != nil {
		slog.Error("Failed to extract receipt text",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.removeFile(savedPath)
		return nil, &parsing.ProcessingError{Source: filename, Err: fmt.Errorf("extracting text: %w", err)}
	}

	title := strings.TrimSuffix(cleanFilename, filepath.Ext(cleanFilename))
	receipt, err := s.buildReceipt(id, title, text, now)
	if err != nil {
		s.removeFile(savedPath)
		return nil, err
	}
	receipt.Filename = savedPath
	receipt.ContentType = contentType

	if err := s.db.SaveReceipt(receipt); err != nil {
		s.removeFile(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Receipt processed", "id", id, "items", receipt.ItemCount(), "total", receipt.Total.StringFixed(2))
	return receipt, nil
}

// ParseText parses pasted receipt text and stores the result
func (s *Service) ParseText(title, text string) (*Receipt, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &parsing.ValidationError{Field: "text", Message: "receipt text is empty"}
	}

	receipt, err := s.buildReceipt(s.idGenerator.Generate(), title, text, s.timeSource.Now())
	if err != nil {
		return nil, err
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}
	return receipt, nil
}

func (s *Service) buildReceipt(id, title, text string, now time.Time) (*Receipt, error) {
	items, err := s.parser.ParseReceiptText(text)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt text: %w", err)
	}

	date, ok := parsing.ExtractDate(text)
	if !ok {
		date = now
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}

	receipt := &Receipt{
		ID:        id,
		Title:     title,
		Date:      date,
		Items:     items,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	receipt.RecalculateTotal()
	return receipt, nil
}

// AddItem appends a manually entered item and recomputes the total
func (s *Service) AddItem(id, vendor string, amount decimal.Decimal, category string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	item, err := parsing.NewItem(parsing.Item{
		Vendor:     vendor,
		Amount:     amount,
		Category:   category,
		Confidence: 1.0,
	})
	if err != nil {
		return nil, err
	}

	receipt.Items = append(receipt.Items, item)
	receipt.RecalculateTotal()
	receipt.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return receipt, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts, oldest first
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		if receipts[i].Date.Equal(receipts[j].Date) {
			return receipts[i].CreatedAt.Before(receipts[j].CreatedAt)
		}
		return receipts[i].Date.Before(receipts[j].Date)
	})
	return receipts, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if receipt.Filename != "" {
		if err := s.storage.Delete(receipt.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", receipt.Filename, "error", err)
		}
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// ErrNoFile is returned for receipts entered as text
var ErrNoFile = errors.New("receipt has no file")

// GetReceiptFile returns the uploaded file and its content type
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}
	if receipt.Filename == "" {
		return nil, "", ErrNoFile
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, receipt.ContentType, nil
}

// Summarize builds a summary report over every stored receipt
func (s *Service) Summarize(kind SummaryType) (*Summary, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return Summarize(receipts, kind, s.timeSource.Now())
}

// ExportReceipts converts every stored receipt, oldest first, into export
// rows. The source is the stored file name, or the title for pasted text.
func (s *Service) ExportReceipts() ([]export.Receipt, error) {
	receipts, err := s.ListReceipts()
	if err != nil {
		return nil, err
	}

	sheets := make([]export.Receipt, 0, len(receipts))
	for _, r := range receipts {
		source := r.Filename
		if source == "" {
			source = r.Title
		}
		sheets = append(sheets, export.Receipt{Date: r.Date, Items: r.Items, Source: source})
	}
	return sheets, nil
}

// Export writes every stored receipt to w as a workbook
func (s *Service) Export(w io.Writer) error {
	sheets, err := s.ExportReceipts()
	if err != nil {
		return err
	}

	if err := s.exporter.Write(w, sheets); err != nil {
		return fmt.Errorf("exporting receipts: %w", err)
	}
	return nil
}

func (s *Service) removeFile(name string) {
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to clean up file", "filename", name, "error", err)
	}
}
