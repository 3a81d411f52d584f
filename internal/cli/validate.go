package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/citerate/internal/schema"
)

// ValidationResult holds validation results for one capture document.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	File   string                   `json:"file,omitempty"`
	Errors []schema.ValidationError `json:"errors,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Input string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a capture document without analyzing it",
		Long: `Validate a capture document against the embedded document schema.

Checks the document shape, capture timestamp, paper titles, year keys,
and citation counts without running any analysis. Faster than analyze
for checking freshly scraped files.

Example:
  citerate validate -i citations.json
  citerate validate -i citations.json --format json`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "path to capture document (required)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	verrs, err := schema.ValidateFile(opts.Input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("document not found: %s", opts.Input), nil)
		}
		return outputValidateError(formatter, ErrCodeReadFailed, err.Error(), nil)
	}

	formatter.VerboseLog("Checked %s against the capture document schema", opts.Input)

	if len(verrs) > 0 {
		return outputValidationErrors(formatter, opts.Input, verrs)
	}

	return outputValidateSuccess(formatter, opts.Input)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, file string) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, File: file}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", file)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Unreadable input is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs schema violations for a document.
func outputValidationErrors(formatter *OutputFormatter, file string, errs []schema.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			File:   file,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Schema violations = exit code 1 (validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "✗ Validation failed: %s\n", file)
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Schema violations = exit code 1 (validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
