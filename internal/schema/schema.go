// Package schema validates raw capture documents against an embedded CUE
// schema. Validation runs on the raw JSON bytes so error positions map to
// lines in the file the user supplied.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed document.cue
var schemaSource string

// Validation error codes (E200-E299).
const (
	ErrDocumentShape = "E200" // document is not a capture record
	ErrScrapedAt     = "E201" // missing or malformed capture timestamp
	ErrPaperTitle    = "E202" // missing or empty paper title
	ErrYearKey       = "E203" // citations_by_year key is not a 4-digit year
	ErrCitationCount = "E204" // citation count is not a non-negative number
	ErrTotalCount    = "E205" // total_citations is not a non-negative number
)

// ValidationError is one schema violation in a capture document.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateFile validates the capture document at path. The returned error
// covers I/O only; schema violations come back as ValidationErrors.
func ValidateFile(path string) ([]ValidationError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture document: %w", err)
	}
	return Validate(path, data), nil
}

// Validate checks raw JSON bytes against the capture document schema.
// Returns nil when the document conforms. filename is used for error
// positions only.
func Validate(filename string, data []byte) []ValidationError {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(schemaSource, cue.Filename("document.cue"))
	if err := schemaVal.Err(); err != nil {
		return []ValidationError{{
			Field:   "schema",
			Message: fmt.Sprintf("internal schema does not compile: %v", err),
			Code:    ErrDocumentShape,
		}}
	}
	docSchema := schemaVal.LookupPath(cue.ParsePath("#Document"))

	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return toValidationErrors(err)
	}

	unified := docSchema.Unify(ctx.BuildExpr(expr))
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return toValidationErrors(err)
	}

	return nil
}

// toValidationErrors converts a CUE error list into classified
// ValidationErrors with positions.
func toValidationErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		field := strings.Join(e.Path(), ".")

		format, args := e.Msg()
		message := fmt.Sprintf(format, args...)

		line := 0
		if positions := cueerrors.Positions(e); len(positions) > 0 {
			line = positions[0].Line()
		}

		out = append(out, ValidationError{
			Field:   field,
			Message: message,
			Code:    classify(field, message),
			Line:    line,
		})
	}
	if len(out) == 0 {
		out = append(out, ValidationError{
			Field:   "document",
			Message: err.Error(),
			Code:    ErrDocumentShape,
		})
	}
	return out
}

// classify maps a violation to an error code by the path it occurred at.
func classify(field, message string) string {
	switch {
	case strings.Contains(field, "scraped_at"):
		return ErrScrapedAt
	case strings.Contains(field, "title"):
		return ErrPaperTitle
	case strings.Contains(field, "citations_by_year"):
		// A key failing the 4-digit pattern is reported as a disallowed
		// field; anything else under the map is a bad count value.
		if strings.Contains(message, "not allowed") {
			return ErrYearKey
		}
		return ErrCitationCount
	case strings.Contains(field, "total_citations"):
		return ErrTotalCount
	default:
		return ErrDocumentShape
	}
}
