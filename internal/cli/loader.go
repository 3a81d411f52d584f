package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/citerate/internal/corpus"
	"github.com/roach88/citerate/internal/schema"
)

// Error code constants - unified across all CLI commands.
// Schema violations carry their own E2xx codes from internal/schema.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E004" // Document read/parse failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadError represents an error that occurred during document loading.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loadErrorCode maps a load failure to its CLI error code.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}

// LoadDocument reads a capture document from disk. When strict is set,
// the raw bytes are checked against the embedded document schema first
// and any violations are returned instead of a decoded document. In
// non-strict mode shape problems surface later, as per-paper errors
// during analysis.
func LoadDocument(path string, strict bool) (*corpus.Document, []schema.ValidationError, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("document not found: %s", path)}
	}
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing document: %v", err)}
	}
	if info.IsDir() {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	if !strict {
		doc, err := corpus.Load(path)
		if err != nil {
			return nil, nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error()}
		}
		return doc, nil, nil
	}

	// Strict mode validates the raw bytes so error positions refer to
	// the file as written, then decodes the same bytes.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading document: %v", err)}
	}

	if verrs := schema.Validate(path, data); len(verrs) > 0 {
		return nil, verrs, nil
	}

	doc, err := corpus.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error()}
	}
	return doc, nil, nil
}
