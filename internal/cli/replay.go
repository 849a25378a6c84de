package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hlolower/internal/engine"
	"github.com/roach88/hlolower/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database    string
	ProgramHash string // optional - one program only
}

// ReplayDivergence is one recorded run that did not reproduce.
type ReplayDivergence struct {
	RunID       string `json:"run_id"`
	Seq         int64  `json:"seq"`
	ProgramHash string `json:"program_hash"`
	Reason      string `json:"reason"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs          int                `json:"runs"`
	Programs      int                `json:"programs"`
	Deterministic bool               `json:"deterministic"`
	Divergences   []ReplayDivergence `json:"divergences"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-evaluate recorded runs and verify determinism",
		Long: `Re-evaluate every recorded run in seq order against its stored program.

A successful run must produce outputs with the same canonical hash; a
failed run must fail again with the same error code. Stored programs are
re-hashed and must still match their key.

Exit codes:
  0 - All runs reproduced
  1 - One or more runs diverged
  2 - Command error (database not found, etc.)

Examples:
  hlolower replay --db ./runs.db
  hlolower replay --db ./runs.db --program 3f9a...
  hlolower replay --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.ProgramHash, "program", "", "replay runs of this program hash only")

	return cmd
}

// programSource narrows a replay to the runs of one program.
type programSource struct {
	*store.Store
	hash string
}

func (s programSource) ReadRuns(ctx context.Context, _ string) ([]store.RunRecord, error) {
	return s.Store.ReadRuns(ctx, s.hash)
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var source engine.ReplaySource = st
	if opts.ProgramHash != "" {
		source = programSource{Store: st, hash: opts.ProgramHash}
	}

	report, err := engine.Replay(ctx, source, newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay runs", err)
	}

	result := ReplayResult{
		Runs:          report.Runs,
		Programs:      report.Programs,
		Deterministic: report.OK(),
		Divergences:   make([]ReplayDivergence, 0, len(report.Diverged)),
	}
	for _, d := range report.Diverged {
		result.Divergences = append(result.Divergences, ReplayDivergence{
			RunID:       d.RunID,
			Seq:         d.Seq,
			ProgramHash: d.ProgramHash,
			Reason:      d.Reason,
		})
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result)
}

// openExistingStore opens a store that must already exist. store.Open
// would otherwise create an empty database at a mistyped path.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: fmt.Sprintf("%d run(s) diverged", len(result.Divergences)),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Deterministic {
		return reported(NewExitError(ExitFailure, "determinism verification failed"))
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	if result.Runs == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s) across %d program(s)\n", result.Runs, result.Programs)
	fmt.Fprintln(w)

	for _, d := range result.Divergences {
		fmt.Fprintf(w, "✗ Run %s (seq %d)\n", d.RunID, d.Seq)
		fmt.Fprintf(w, "  Program: %s\n", truncateID(d.ProgramHash))
		fmt.Fprintf(w, "  %s\n\n", d.Reason)
	}

	if result.Deterministic {
		fmt.Fprintln(w, "✓ All runs reproduced")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return reported(NewExitError(ExitFailure, "determinism verification failed"))
}
