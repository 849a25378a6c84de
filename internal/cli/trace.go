package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/hlolower/internal/ir"
	"github.com/roach88/hlolower/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database    string
	ProgramHash string // optional - runs of one program
	RunID       string // optional - a single run
}

// TraceRun is one recorded run in the timeline.
type TraceRun struct {
	Seq          int64       `json:"seq"`
	ID           string      `json:"id"`
	ProgramHash  string      `json:"program_hash"`
	Computation  string      `json:"computation"`
	Status       string      `json:"status"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Inputs       []ir.Buffer `json:"inputs"`
	Outputs      []ir.Buffer `json:"outputs,omitempty"`
}

// TraceProgram is a stored program referenced by the timeline.
type TraceProgram struct {
	Hash        string `json:"hash"`
	Computation string `json:"computation"`
	IR          string `json:"ir"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceRun     `json:"timeline"`
	Programs []TraceProgram `json:"programs"`
	Stats    TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Runs     int `json:"runs"`
	OK       int `json:"ok"`
	Failed   int `json:"failed"`
	Programs int `json:"programs"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded runs",
		Long: `Show the recorded runs in seq order, with the programs they ran.

The output includes:
- Timeline: every run with its status, inputs and outputs
- Programs: the stored programs those runs reference
- Stats: run counts by status

Examples:
  hlolower trace --db ./runs.db
  hlolower trace --db ./runs.db --program 3f9a...
  hlolower trace --db ./runs.db --run 0190f3c2-...
  hlolower trace --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.ProgramHash, "program", "", "show runs of this program hash only")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runs []store.RunRecord
	if opts.RunID != "" {
		rec, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.RunRecord{rec}
	} else {
		runs, err = st.ReadRuns(ctx, opts.ProgramHash)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
	}

	result, err := buildTrace(ctx, st, runs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read programs", err)
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTrace assembles the timeline and loads each referenced program once,
// in first-use order.
func buildTrace(ctx context.Context, st *store.Store, runs []store.RunRecord) (TraceResult, error) {
	result := TraceResult{
		Timeline: make([]TraceRun, 0, len(runs)),
		Programs: []TraceProgram{},
	}
	seen := make(map[string]string) // hash -> computation

	for _, rec := range runs {
		computation, ok := seen[rec.ProgramHash]
		if !ok {
			prog, err := st.ReadProgram(ctx, rec.ProgramHash)
			if err != nil {
				return TraceResult{}, err
			}
			computation = prog.Computation
			seen[rec.ProgramHash] = computation
			result.Programs = append(result.Programs, TraceProgram{
				Hash:        prog.Hash,
				Computation: prog.Computation,
				IR:          prog.Text,
			})
		}

		result.Timeline = append(result.Timeline, TraceRun{
			Seq:          rec.Seq,
			ID:           rec.ID,
			ProgramHash:  rec.ProgramHash,
			Computation:  computation,
			Status:       string(rec.Status),
			ErrorCode:    rec.ErrorCode,
			ErrorMessage: rec.ErrorMessage,
			Inputs:       rec.Inputs,
			Outputs:      rec.Outputs,
		})

		if rec.Status == store.RunOK {
			result.Stats.OK++
		} else {
			result.Stats.Failed++
		}
	}

	result.Stats.Runs = len(runs)
	result.Stats.Programs = len(result.Programs)
	return result, nil
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	fmt.Fprintln(w, "=== Timeline ===")
	for _, run := range result.Timeline {
		formatTraceRun(w, run, verbose)
	}
	fmt.Fprintln(w)

	if verbose {
		fmt.Fprintln(w, "=== Programs ===")
		for _, p := range result.Programs {
			fmt.Fprintf(w, "// %s %s\n%s\n", p.Computation, p.Hash, p.IR)
		}
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Runs:     %d\n", result.Stats.Runs)
	fmt.Fprintf(w, "  OK:       %d\n", result.Stats.OK)
	fmt.Fprintf(w, "  Failed:   %d\n", result.Stats.Failed)
	fmt.Fprintf(w, "  Programs: %d\n", result.Stats.Programs)

	return nil
}

// formatTraceRun formats a single run for text output.
func formatTraceRun(w io.Writer, run TraceRun, verbose bool) {
	if run.Status == string(store.RunOK) {
		fmt.Fprintf(w, "  [%d] OK   %s %s\n", run.Seq, run.Computation, truncateID(run.ID))
	} else {
		fmt.Fprintf(w, "  [%d] FAIL %s %s %s\n", run.Seq, run.Computation, truncateID(run.ID), run.ErrorCode)
	}
	if !verbose {
		return
	}
	fmt.Fprintf(w, "       Program: %s\n", truncateID(run.ProgramHash))
	for i, in := range run.Inputs {
		fmt.Fprintf(w, "       Input %d:  %s\n", i, formatBuffer(in))
	}
	for i, out := range run.Outputs {
		fmt.Fprintf(w, "       Output %d: %s\n", i, formatBuffer(out))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(w, "       Error: %s\n", run.ErrorMessage)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
