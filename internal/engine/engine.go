package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/hlolower/internal/ir"
	"github.com/roach88/hlolower/internal/store"
)

// Recorder persists programs and the runs made against them.
// *store.Store implements it.
type Recorder interface {
	WriteRunAtomic(ctx context.Context, prog store.ProgramRecord, run store.RunRecord) error
}

// Engine evaluates programs and records every run.
//
// Thread-safety: Run may be called from multiple goroutines as long as the
// clock, generator and recorder are themselves safe for concurrent use (the
// defaults are).
type Engine struct {
	recorder Recorder
	clock    SeqClock
	runIDs   RunIDGenerator
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder persists each run. Without it runs are only returned.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithClock sets the seq source. Default: NewClock().
//
// When recording into a store that already holds runs, pass
// NewClockAt(lastSeq) so seqs stay unique.
func WithClock(c SeqClock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:  NewClock(),
		runIDs: UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run is the outcome of one evaluation.
type Run struct {
	ID          string
	Seq         int64
	ProgramHash string
	Outputs     []ir.Buffer
}

// Run evaluates p against inputs, stamps the run and records it.
//
// If evaluation fails, the failed run is still recorded with its error code,
// and Run returns the stamped *Run (with no outputs) together with the typed
// evaluation error. A recording failure is returned as-is and takes
// precedence.
func (e *Engine) Run(ctx context.Context, p *ir.Program, inputs []ir.Buffer) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prog, err := store.NewProgramRecord(p)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	run := &Run{
		ID:          e.runIDs.Generate(),
		Seq:         e.clock.Next(),
		ProgramHash: prog.Hash,
	}

	outputs, evalErr := Evaluate(p, inputs)

	rec := store.RunRecord{
		ID:            run.ID,
		Seq:           run.Seq,
		ProgramHash:   prog.Hash,
		Inputs:        inputs,
		Status:        store.RunOK,
		EngineVersion: ir.EngineVersion,
	}
	if evalErr != nil {
		rec.Status = store.RunFailed
		rec.ErrorCode = string(ir.CodeOf(evalErr))
		rec.ErrorMessage = evalErr.Error()
	} else {
		rec.Outputs = outputs
		run.Outputs = outputs
	}

	if e.recorder != nil {
		if err := e.recorder.WriteRunAtomic(ctx, prog, rec); err != nil {
			e.logger.Error("failed to record run",
				"run_id", run.ID,
				"seq", run.Seq,
				"error", err)
			return nil, fmt.Errorf("record run %s: %w", run.ID, err)
		}
	}

	if evalErr != nil {
		e.logger.Warn("run failed",
			"computation", p.Computation,
			"program_hash", prog.Hash,
			"run_id", run.ID,
			"seq", run.Seq,
			"error", evalErr)
		return run, evalErr
	}

	e.logger.Debug("run completed",
		"computation", p.Computation,
		"program_hash", prog.Hash,
		"run_id", run.ID,
		"seq", run.Seq,
		"outputs", len(outputs))

	return run, nil
}
