package parsing

import "fmt"

// ValidationError reports input that cannot become a receipt item: a malformed
// or out-of-range amount, an empty vendor, or a payload of the wrong type.
// It is recoverable at line granularity.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ProcessingError wraps a failure that prevents parsing a whole document,
// such as an unreadable source file.
type ProcessingError struct {
	Source string
	Err    error
}

func (e *ProcessingError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("processing receipt: %v", e.Err)
	}
	return fmt.Sprintf("processing receipt %s: %v", e.Source, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
