package scanning

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements Scanner with a local Tesseract install.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a Tesseract scanner for the given language, "eng" by
// default.
func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting tesseract language: %w", err)
	}
	// Receipts are a single column of uniform text.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting page segmentation mode: %w", err)
	}

	return &Tesseract{client: client}, nil
}

// ExtractText preprocesses the image and runs OCR on it.
func (t *Tesseract) ExtractText(imageData []byte, contentType string) (string, error) {
	img, err := decodeReceipt(imageData, contentType)
	if err != nil {
		return "", err
	}

	pngData, err := encodePNG(preprocessForOCR(img))
	if err != nil {
		return "", err
	}

	// A gosseract client holds one image at a time.
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(pngData); err != nil {
		return "", fmt.Errorf("loading image into tesseract: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}

	text = strings.TrimSpace(text)
	slog.Debug("Tesseract extracted text", "chars", len(text))
	return text, nil
}

// Close releases the Tesseract engine.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
