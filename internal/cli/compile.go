package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hlolower/internal/compiler"
	"github.com/roach88/hlolower/internal/ir"
)

// ErrCodeLowerFailed reports a computation that compiled from CUE but could
// not be lowered (shape or type mismatch, unsupported opcode).
const ErrCodeLowerFailed = "E020"

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Computation string // lower only this computation
	ElementType string // retype every tensor before lowering
	Output      string // output file path
}

// CompiledProgram is one lowered computation.
type CompiledProgram struct {
	Computation string      `json:"computation"`
	Hash        string      `json:"hash"`
	IR          string      `json:"ir"`
	Program     *ir.Program `json:"program"`
}

// CompilationResult holds every lowered computation in load order.
type CompilationResult struct {
	Programs []CompiledProgram `json:"programs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Lower CUE computations to eltwise IR",
		Long: `Compile the HLO computations declared in a directory of CUE specs and
lower each one to eltwise IR.

Text output is the rendered IR. JSON output adds the program structure and
its content hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Computation, "computation", "c", "", "lower only the named computation")
	cmd.Flags().StringVarP(&opts.ElementType, "element-type", "t", "", "retype all tensors (s8..u32) before lowering")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	loadResult, loadErrors := compiler.LoadDir(specsDir, compiler.LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	targets, err := selectComputations(loadResult, opts.Computation)
	if err != nil {
		return outputCompileError(formatter, compiler.ErrCodeNotFound, err.Error(), nil)
	}

	et, err := parseElementTypeFlag(opts.ElementType)
	if err != nil {
		return outputCompileError(formatter, compiler.ErrCodeInvalidType, err.Error(), nil)
	}

	result := &CompilationResult{}
	for _, c := range targets {
		formatter.VerboseLog("Lowering computation: %s", c.Name)

		g := c.Graph
		if et != ir.InvalidType {
			g = g.WithElementType(et)
		}
		p, err := compiler.Lower(g, compiler.WithLogger(logger))
		if err != nil {
			return outputCompileError(formatter, ErrCodeLowerFailed,
				fmt.Sprintf("%s: %v", c.Name, err), map[string]string{"code": string(ir.CodeOf(err))})
		}
		hash, err := ir.ProgramHash(p)
		if err != nil {
			return outputCompileError(formatter, compiler.ErrCodeGeneric, err.Error(), nil)
		}
		result.Programs = append(result.Programs, CompiledProgram{
			Computation: c.Name,
			Hash:        hash,
			IR:          ir.Render(p),
			Program:     p,
		})
	}

	if opts.Output != "" {
		if err := writeCompileOutput(result, opts.Format, opts.Output); err != nil {
			return outputCompileError(formatter, compiler.ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// selectComputations returns every computation, or only the named one.
func selectComputations(r *compiler.LoadResult, name string) ([]compiler.NamedGraph, error) {
	if name == "" {
		return r.Computations, nil
	}
	g, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("computation %q not found (have %s)", name, strings.Join(r.Names(), ", "))
	}
	return []compiler.NamedGraph{{Name: name, Graph: g}}, nil
}

// parseElementTypeFlag maps an empty flag to InvalidType, meaning "as declared".
func parseElementTypeFlag(s string) (ir.ElementType, error) {
	if s == "" {
		return ir.InvalidType, nil
	}
	return ir.ParseElementType(s)
}

// renderPrograms joins the IR of every program, each preceded by a comment
// naming its computation and hash.
func renderPrograms(result *CompilationResult) string {
	var b strings.Builder
	for i, p := range result.Programs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "// %s %s\n", p.Computation, p.Hash)
		b.WriteString(p.IR)
	}
	return b.String()
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprint(formatter.Writer, renderPrograms(result))
	if outputFile != "" {
		fmt.Fprintf(formatter.GetErrWriter(), "Wrote %d program(s) to %s\n", len(result.Programs), outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return reported(WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return reported(NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs))))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return reported(NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs))))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return compiler.MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return compiler.ErrCodeGeneric, err.Error()
}

// writeCompileOutput writes rendered IR in text mode, indented JSON otherwise.
func writeCompileOutput(result *CompilationResult, format, filename string) error {
	data := []byte(renderPrograms(result))
	if format == "json" {
		var err error
		data, err = json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling IR: %w", err)
		}
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
