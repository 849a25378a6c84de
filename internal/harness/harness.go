package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/hlolower/internal/compiler"
	"github.com/roach88/hlolower/internal/engine"
	"github.com/roach88/hlolower/internal/filecheck"
	"github.com/roach88/hlolower/internal/hlo"
	"github.com/roach88/hlolower/internal/ir"
	"github.com/roach88/hlolower/internal/store"
	"github.com/roach88/hlolower/internal/testutil"
)

// Harness runs one scenario against a fresh in-memory store with a
// deterministic clock and run IDs, so identical scenarios produce
// identical records.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	runIDs *testutil.SequentialRunIDs
	logger *slog.Logger
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger routes harness, lowering and engine logs to logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Open a fresh in-memory store
//  2. Load the specs and find the computation
//  3. For each element type: retype, lower, render, filecheck, validate
//  4. Evaluate every case through the engine, recording each run
//  5. Replay the recorded runs to confirm they reproduce
//
// A returned error means the scenario could not be executed at all;
// expectation failures are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		runIDs: testutil.NewSequentialRunIDs(scenario.Name),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.engine = engine.New(
		engine.WithRecorder(st),
		engine.WithClock(h.clock),
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithLogger(h.logger),
	)

	g, err := loadComputation(scenario)
	if err != nil {
		return nil, err
	}

	types, err := elementTypes(scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	for _, et := range types {
		inst, err := h.runInstance(ctx, scenario, g, et, result)
		if err != nil {
			return nil, err
		}
		result.Instances = append(result.Instances, inst)
	}

	report, err := engine.Replay(ctx, st, h.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to replay runs: %w", err)
	}
	for _, d := range report.Diverged {
		result.AddError(fmt.Sprintf("replay: run %s (seq %d): %s", d.RunID, d.Seq, d.Reason))
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"computation", scenario.Computation,
		"instances", len(result.Instances),
		"runs", report.Runs,
		"pass", result.Pass)

	return result, nil
}

func loadComputation(s *Scenario) (*hlo.Graph, error) {
	var names []string
	for _, path := range s.Specs {
		loaded, errs := compiler.LoadFiles(compiler.LoadModeFailFast, path)
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to load %s: %w", path, errs[0])
		}
		if g, ok := loaded.Lookup(s.Computation); ok {
			return g, nil
		}
		names = append(names, loaded.Names()...)
	}
	return nil, fmt.Errorf("computation %q not found in specs (have %v)", s.Computation, names)
}

// elementTypes returns the instantiation types; InvalidType stands for
// "as declared".
func elementTypes(s *Scenario) ([]ir.ElementType, error) {
	if len(s.ElementTypes) == 0 {
		return []ir.ElementType{ir.InvalidType}, nil
	}
	types := make([]ir.ElementType, len(s.ElementTypes))
	for i, name := range s.ElementTypes {
		et, err := ir.ParseElementType(name)
		if err != nil {
			return nil, fmt.Errorf("element_types[%d]: %w", i, err)
		}
		types[i] = et
	}
	return types, nil
}

func (h *Harness) runInstance(ctx context.Context, s *Scenario, g *hlo.Graph, et ir.ElementType, result *Result) (Instance, error) {
	inst := Instance{}
	label := s.Name
	if et != ir.InvalidType {
		g = g.WithElementType(et)
		inst.ElementType = et.String()
		label = fmt.Sprintf("%s[%s]", s.Name, et)
	}

	p, err := compiler.Lower(g, compiler.WithLogger(h.logger))
	if err != nil {
		inst.LowerError = string(ir.CodeOf(err))
		if s.LowerError == "" {
			result.AddError(fmt.Sprintf("%s: lowering failed: %v", label, err))
		} else if aerr := checkErrorCode(s.LowerError, err); aerr != nil {
			result.AddError(fmt.Sprintf("%s: lowering: %v", label, aerr))
		}
		return inst, nil
	}
	if s.LowerError != "" {
		result.AddError(fmt.Sprintf("%s: lowering succeeded, expected %s", label, s.LowerError))
		return inst, nil
	}

	inst.IR = ir.Render(p)
	if inst.ProgramHash, err = ir.ProgramHash(p); err != nil {
		return inst, fmt.Errorf("%s: hashing program: %w", label, err)
	}

	for _, verr := range compiler.Validate(p) {
		result.AddError(fmt.Sprintf("%s: %v", label, verr))
	}

	if s.Checks != "" {
		checkType := et
		if checkType == ir.InvalidType && len(p.Inputs) > 0 {
			checkType = p.Inputs[0].Type.Type
		}
		if err := filecheck.Check(inst.IR, substituteType(s.Checks, checkType)); err != nil {
			result.AddError(fmt.Sprintf("%s: %v", label, err))
		}
	}

	for i, c := range s.Cases {
		cr, err := h.runCase(ctx, p, i, c, label, result)
		if err != nil {
			return inst, err
		}
		inst.Cases = append(inst.Cases, cr)
	}

	h.logger.Debug("instance completed",
		"scenario", s.Name,
		"element_type", inst.ElementType,
		"program_hash", inst.ProgramHash,
		"cases", len(inst.Cases))

	return inst, nil
}

func (h *Harness) runCase(ctx context.Context, p *ir.Program, i int, c Case, label string, result *Result) (CaseResult, error) {
	cr := CaseResult{Index: i}
	where := fmt.Sprintf("%s: %s", label, c.label(i))

	inputs, err := BuildInputs(p, c.Inputs)
	if err != nil {
		// Values that do not fit the element type never reach the engine.
		cr.ErrorCode = string(ir.CodeOf(err))
		if c.Error == "" {
			result.AddError(fmt.Sprintf("%s: %v", where, err))
		} else if aerr := checkErrorCode(c.Error, err); aerr != nil {
			result.AddError(fmt.Sprintf("%s: %v", where, aerr))
		}
		return cr, nil
	}

	run, err := h.engine.Run(ctx, p, inputs)
	if run == nil {
		return cr, fmt.Errorf("%s: %w", where, err)
	}
	cr.RunID, cr.Seq = run.ID, run.Seq

	if err != nil {
		cr.ErrorCode = string(ir.CodeOf(err))
		if c.Error == "" {
			result.AddError(fmt.Sprintf("%s: %v", where, err))
		} else if aerr := checkErrorCode(c.Error, err); aerr != nil {
			result.AddError(fmt.Sprintf("%s: %v", where, aerr))
		}
		return cr, nil
	}

	for _, out := range run.Outputs {
		cr.Outputs = append(cr.Outputs, out.Data)
	}
	if c.Error != "" {
		result.AddError(fmt.Sprintf("%s: %v", where, checkErrorCode(c.Error, nil)))
		return cr, nil
	}
	for _, aerr := range compareOutputs(c.Outputs, run.Outputs) {
		result.AddError(fmt.Sprintf("%s: %v", where, aerr))
	}
	return cr, nil
}
