package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hlolower/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool                       `json:"valid"`
	Computations int                        `json:"computations"`
	Errors       []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Check that every computation lowers to well-formed IR",
		Long: `Compile and lower every computation in a directory of CUE specs, then
check each lowered program for structural consistency: operands defined
before use, operand and result types agreeing, outputs matching the
returned values.

All problems are reported, not only the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	loadResult, loadErrors := compiler.LoadDir(specsDir, compiler.LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputValidateError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		code, message := parseCompileError(err)
		ve := compiler.ValidationError{Field: "load", Message: message, Code: code}
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			ve.Line = loadErr.Pos.Line()
		}
		validationErrors = append(validationErrors, ve)
	}

	validationErrors = append(validationErrors, validateAll(loadResult, formatter, logger)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, len(loadResult.Computations), validationErrors)
	}
	return outputValidateSuccess(formatter, len(loadResult.Computations))
}

// validateAll lowers each computation and validates the result. Field names
// are prefixed with the computation so errors from several programs can be
// told apart.
func validateAll(r *compiler.LoadResult, formatter *OutputFormatter, logger *slog.Logger) []compiler.ValidationError {
	var allErrors []compiler.ValidationError
	for _, c := range r.Computations {
		formatter.VerboseLog("Validating computation: %s", c.Name)

		p, err := compiler.Lower(c.Graph, compiler.WithLogger(logger))
		if err != nil {
			allErrors = append(allErrors, compiler.ValidationError{
				Field:   c.Name,
				Message: err.Error(),
				Code:    ErrCodeLowerFailed,
			})
			continue
		}

		for _, ve := range compiler.Validate(p) {
			ve.Field = c.Name + "." + ve.Field
			allErrors = append(allErrors, ve)
		}
	}
	return allErrors
}

func outputValidateSuccess(formatter *OutputFormatter, count int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Computations: count})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d computation(s) valid\n", count)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Validation errors are command-level errors (exit code 2)
	return reported(NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message)))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, count int, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:        false,
				Computations: count,
				Errors:       errs,
			},
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

		// Validation failures = exit code 1 (test/validation failure)
		return reported(NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs))))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s line %d\n", err.Field, err.Line)
		} else {
			fmt.Fprintln(formatter.Writer, err.Field)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return reported(NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs))))
}

// ValidateSpecsDir validates all computations in a directory without
// printing anything. The error is non-nil only when the specs cannot be
// loaded at all.
func ValidateSpecsDir(specsDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := compiler.LoadDir(specsDir, compiler.LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	silent := &OutputFormatter{Format: "text", Writer: io.Discard}
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	return validateAll(loadResult, silent, discard), nil
}
