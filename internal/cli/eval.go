package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hlolower/internal/compiler"
	"github.com/roach88/hlolower/internal/engine"
	"github.com/roach88/hlolower/internal/harness"
	"github.com/roach88/hlolower/internal/ir"
	"github.com/roach88/hlolower/internal/store"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Computation string
	ElementType string
	Inputs      []string // one comma-separated buffer per flag
	DBPath      string   // record the run when set
}

// EvalResult is the outcome of one evaluation.
type EvalResult struct {
	Computation string      `json:"computation"`
	ProgramHash string      `json:"program_hash"`
	RunID       string      `json:"run_id,omitempty"`
	Seq         int64       `json:"seq,omitempty"`
	Outputs     []ir.Buffer `json:"outputs"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <specs-dir>",
		Short: "Lower a computation and evaluate it on input buffers",
		Long: `Lower one computation and evaluate it on integer input buffers.

Each --input flag supplies one buffer as comma-separated values in
row-major order, typed after the matching function argument. With --db the
program and the run are recorded so they can be traced and replayed later.

Example:
  hlolower eval ./specs -c EltwiseAndOp -i 1,0,1,0,1,0,1,0,1 -i 1,1,0,0,1,1,0,0,1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Computation, "computation", "c", "", "computation to evaluate (required)")
	cmd.Flags().StringVarP(&opts.ElementType, "element-type", "t", "", "retype all tensors (s8..u32) before lowering")
	cmd.Flags().StringArrayVarP(&opts.Inputs, "input", "i", nil, "input buffer as comma-separated integers (repeatable)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "record the run in this SQLite database")
	_ = cmd.MarkFlagRequired("computation")

	return cmd
}

func runEval(opts *EvalOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loadResult, loadErrors := compiler.LoadDir(specsDir, compiler.LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	targets, err := selectComputations(loadResult, opts.Computation)
	if err != nil {
		return outputCompileError(formatter, compiler.ErrCodeNotFound, err.Error(), nil)
	}
	g := targets[0].Graph

	et, err := parseElementTypeFlag(opts.ElementType)
	if err != nil {
		return outputCompileError(formatter, compiler.ErrCodeInvalidType, err.Error(), nil)
	}
	if et != ir.InvalidType {
		g = g.WithElementType(et)
	}

	p, err := compiler.Lower(g, compiler.WithLogger(logger))
	if err != nil {
		return outputCompileError(formatter, ErrCodeLowerFailed, err.Error(), map[string]string{"code": string(ir.CodeOf(err))})
	}

	data, err := parseInputs(opts.Inputs)
	if err != nil {
		return outputCompileError(formatter, compiler.ErrCodeGeneric, err.Error(), nil)
	}
	inputs, err := harness.BuildInputs(p, data)
	if err != nil {
		return outputEvalError(formatter, err)
	}

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.DBPath != "" {
		st, err := store.Open(opts.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		last, err := st.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read database", err)
		}
		engineOpts = append(engineOpts, engine.WithRecorder(st), engine.WithClock(engine.NewClockAt(last)))
	}

	run, err := engine.New(engineOpts...).Run(ctx, p, inputs)
	if run == nil && err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}
	if err != nil {
		formatter.VerboseLog("Recorded failed run %s (seq %d)", run.ID, run.Seq)
		return outputEvalError(formatter, err)
	}

	result := EvalResult{
		Computation: targets[0].Name,
		ProgramHash: run.ProgramHash,
		Outputs:     run.Outputs,
	}
	if opts.DBPath != "" {
		result.RunID = run.ID
		result.Seq = run.Seq
	}
	return outputEvalSuccess(formatter, result)
}

// parseInputs reads one buffer per flag value. An empty value is an empty
// buffer.
func parseInputs(values []string) ([][]int64, error) {
	data := make([][]int64, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			data[i] = []int64{}
			continue
		}
		fields := strings.Split(v, ",")
		buf := make([]int64, len(fields))
		for j, f := range fields {
			n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("input %d element %d: %q is not an integer", i, j, f)
			}
			buf[j] = n
		}
		data[i] = buf
	}
	return data, nil
}

// formatBuffer renders a buffer as its type followed by its values.
func formatBuffer(b ir.Buffer) string {
	parts := make([]string, len(b.Data))
	for i, v := range b.Data {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return fmt.Sprintf("%s [%s]", b.Type, strings.Join(parts, ","))
}

func outputEvalSuccess(formatter *OutputFormatter, result EvalResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s (%s)\n", result.Computation, result.ProgramHash)
	if result.RunID != "" {
		fmt.Fprintf(formatter.Writer, "  run %s (seq %d)\n", result.RunID, result.Seq)
	}
	for i, out := range result.Outputs {
		fmt.Fprintf(formatter.Writer, "  output %d: %s\n", i, formatBuffer(out))
	}
	return nil
}

// outputEvalError reports an evaluation failure under its IR error code.
// Bad inputs are the caller's fault, so the exit code is ExitFailure.
func outputEvalError(formatter *OutputFormatter, err error) error {
	code := string(ir.CodeOf(err))
	if code == "" {
		code = compiler.ErrCodeGeneric
	}
	_ = formatter.Error(code, err.Error(), nil)
	return reported(WrapExitError(ExitFailure, "evaluation failed", err))
}
