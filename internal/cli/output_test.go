package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hlolower/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"want": "tensor<3x3xsi32>", "got": "tensor<9xsi32>"}
	require.NoError(t, formatter.Error("SHAPE_MISMATCH", "shape differs", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SHAPE_MISMATCH", resp.Error.Code)
	assert.Equal(t, "shape differs", resp.Error.Message)
	assert.Equal(t, map[string]any{"want": "tensor<3x3xsi32>", "got": "tensor<9xsi32>"}, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{"quiet", false, "Error [E001]: compilation failed\n"},
		{"verbose", true, "Error [E001]: compilation failed\nDetails: a=1, b=2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E001", "compilation failed", map[string]string{"b": "2", "a": "1"}))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: tt.verbose}

			formatter.VerboseLog("Lowering computation: %s", "Nand")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Equal(t, "Lowering computation: Nand\n", diag.String())
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestOutputFormatter_ErrWriterFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	formatter.VerboseLog("hello")
	assert.Equal(t, "hello\n", buf.String())
	assert.Same(t, buf, formatter.GetErrWriter())
}

func TestGetExitCode(t *testing.T) {
	evalErr := ir.NewArityMismatch(2, 1)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"command error", NewExitError(ExitCommandError, "bad path"), ExitCommandError},
		{"wrapped twice", fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "db", errors.New("locked"))), ExitCommandError},
		{"evaluation failure", WrapExitError(ExitFailure, "evaluation failed", evalErr), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestAlreadyReported(t *testing.T) {
	assert.False(t, AlreadyReported(nil))
	assert.False(t, AlreadyReported(errors.New("boom")))
	assert.False(t, AlreadyReported(NewExitError(ExitCommandError, "database not found")))
	assert.True(t, AlreadyReported(reported(NewExitError(ExitFailure, "validation failed"))))
	assert.True(t, AlreadyReported(fmt.Errorf("outer: %w", reported(NewExitError(ExitFailure, "x")))))
}

func TestExitErrorUnwrapKeepsIRCode(t *testing.T) {
	err := WrapExitError(ExitFailure, "evaluation failed", fmt.Errorf("input 0: %w", ir.NewArityMismatch(2, 1)))

	assert.True(t, ir.IsArityMismatch(err))
	assert.Equal(t, "evaluation failed: input 0: ARITY_MISMATCH: expected 2 input buffer(s), got 1", err.Error())
}
