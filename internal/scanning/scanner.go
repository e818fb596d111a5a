package scanning

// Scanner turns a receipt image or PDF into plain text, one receipt line per
// text line. Output is untrusted and goes through the parser.
type Scanner interface {
	// ExtractText reads the text printed on the receipt.
	ExtractText(imageData []byte, contentType string) (string, error)
	// Close releases provider resources.
	Close() error
}

// transcriptionPrompt is shared by the vision providers.
const transcriptionPrompt = `You are reading a photographed or scanned receipt. Transcribe every purchased line item exactly as printed.

Output rules:
- One item per line, in the order printed.
- Each line is the item description followed by its price, like: Grande Latte $5.45
- If a purchase date is printed, put it alone on the first line as YYYY-MM-DD, for example: 2024-01-15
- Keep subtotal, tax, and total lines as printed.
- Do not add commentary, headings, JSON, or markdown code blocks.
- If no text is readable, return an empty response.`
