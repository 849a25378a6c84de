package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/hlolower/internal/ir"
	"github.com/roach88/hlolower/internal/store"
)

// ReplaySource reads recorded runs back. *store.Store implements it.
type ReplaySource interface {
	ReadRuns(ctx context.Context, programHash string) ([]store.RunRecord, error)
	ReadProgram(ctx context.Context, hash string) (store.ProgramRecord, error)
}

// Divergence describes one recorded run that no longer reproduces.
type Divergence struct {
	RunID       string
	Seq         int64
	ProgramHash string
	Reason      string
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	Runs     int // runs re-evaluated
	Programs int // distinct programs loaded
	Diverged []Divergence
}

// OK reports whether every run reproduced.
func (r *ReplayReport) OK() bool {
	return len(r.Diverged) == 0
}

// Replay re-evaluates every recorded run in seq order and compares the
// outcome with what was recorded.
//
// A successful run must produce outputs with the same canonical hash. A
// failed run must fail again with the same error code. A stored program
// whose canonical form no longer hashes to its key is reported against
// every run that uses it.
//
// Replay never writes. It stops early only on a read error or when ctx is
// cancelled.
func Replay(ctx context.Context, source ReplaySource, logger *slog.Logger) (*ReplayReport, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	runs, err := source.ReadRuns(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	report := &ReplayReport{}
	programs := make(map[string]*ir.Program)

	for _, rec := range runs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		p, ok := programs[rec.ProgramHash]
		if !ok {
			prog, err := source.ReadProgram(ctx, rec.ProgramHash)
			if err != nil {
				return report, fmt.Errorf("replay run %s: %w", rec.ID, err)
			}
			p = prog.Program
			programs[rec.ProgramHash] = p
			report.Programs++
		}

		report.Runs++
		if reason := replayRun(p, rec); reason != "" {
			logger.Warn("run diverged",
				"run_id", rec.ID,
				"seq", rec.Seq,
				"program_hash", rec.ProgramHash,
				"reason", reason)
			report.Diverged = append(report.Diverged, Divergence{
				RunID:       rec.ID,
				Seq:         rec.Seq,
				ProgramHash: rec.ProgramHash,
				Reason:      reason,
			})
			continue
		}
		logger.Debug("run reproduced", "run_id", rec.ID, "seq", rec.Seq)
	}

	return report, nil
}

// replayRun returns "" if rec reproduces, else why not.
func replayRun(p *ir.Program, rec store.RunRecord) string {
	if h, err := ir.ProgramHash(p); err != nil || h != rec.ProgramHash {
		return "stored program does not match its hash"
	}

	outputs, err := Evaluate(p, rec.Inputs)

	if rec.Status == store.RunFailed {
		if err == nil {
			return fmt.Sprintf("recorded failure %s now succeeds", rec.ErrorCode)
		}
		if got := string(ir.CodeOf(err)); got != rec.ErrorCode {
			return fmt.Sprintf("error code changed from %s to %s", rec.ErrorCode, got)
		}
		return ""
	}

	if err != nil {
		return fmt.Sprintf("now fails: %v", err)
	}

	want, err := ir.BuffersHash(rec.Outputs)
	if err != nil {
		return fmt.Sprintf("recorded outputs cannot be hashed: %v", err)
	}
	got, err := ir.BuffersHash(outputs)
	if err != nil {
		return fmt.Sprintf("outputs cannot be hashed: %v", err)
	}
	if got != want {
		return fmt.Sprintf("outputs differ: recorded %s, replayed %s", want[:12], got[:12])
	}
	return ""
}
