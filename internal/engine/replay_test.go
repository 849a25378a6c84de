package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hlolower/internal/ir"
	"github.com/roach88/hlolower/internal/store"
)

func recordRuns(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := t.Context()
	e := New(WithRecorder(s), WithRunIDGenerator(NewFixedGenerator("r1", "r2", "r3")))
	a := ir.MustBuffer(t3x3, inputA...)
	b := ir.MustBuffer(t3x3, inputB...)

	_, err := e.Run(ctx, binaryProgram(ir.OpAnd, t3x3), []ir.Buffer{a, b})
	require.NoError(t, err)
	_, err = e.Run(ctx, binaryProgram(ir.OpXor, t3x3), []ir.Buffer{a, b})
	require.NoError(t, err)
	_, err = e.Run(ctx, binaryProgram(ir.OpXor, t3x3), []ir.Buffer{a})
	require.Error(t, err)
}

func TestReplay_Reproduces(t *testing.T) {
	s := setupTestStore(t)
	recordRuns(t, s)

	report, err := Replay(t.Context(), s, nil)
	require.NoError(t, err)
	assert.True(t, report.OK(), "diverged: %v", report.Diverged)
	assert.Equal(t, 3, report.Runs)
	assert.Equal(t, 2, report.Programs)
}

// tamperedSource rewrites recorded runs on the way out.
type tamperedSource struct {
	ReplaySource
	edit func(*store.RunRecord)
}

func (s tamperedSource) ReadRuns(ctx context.Context, hash string) ([]store.RunRecord, error) {
	runs, err := s.ReplaySource.ReadRuns(ctx, hash)
	for i := range runs {
		s.edit(&runs[i])
	}
	return runs, err
}

func TestReplay_DetectsChangedOutputs(t *testing.T) {
	s := setupTestStore(t)
	recordRuns(t, s)

	src := tamperedSource{ReplaySource: s, edit: func(r *store.RunRecord) {
		if r.ID == "r2" {
			r.Outputs[0].Data[0] ^= 1
		}
	}}

	report, err := Replay(t.Context(), src, nil)
	require.NoError(t, err)
	require.Len(t, report.Diverged, 1)
	assert.Equal(t, "r2", report.Diverged[0].RunID)
	assert.Equal(t, int64(2), report.Diverged[0].Seq)
	assert.Contains(t, report.Diverged[0].Reason, "outputs differ")
}

func TestReplay_DetectsChangedErrorCode(t *testing.T) {
	s := setupTestStore(t)
	recordRuns(t, s)

	src := tamperedSource{ReplaySource: s, edit: func(r *store.RunRecord) {
		if r.ID == "r3" {
			r.ErrorCode = string(ir.ErrCodeShapeMismatch)
		}
	}}

	report, err := Replay(t.Context(), src, nil)
	require.NoError(t, err)
	require.Len(t, report.Diverged, 1)
	assert.Equal(t, "error code changed from SHAPE_MISMATCH to ARITY_MISMATCH", report.Diverged[0].Reason)
}

func TestReplay_DetectsNewFailure(t *testing.T) {
	s := setupTestStore(t)
	recordRuns(t, s)

	src := tamperedSource{ReplaySource: s, edit: func(r *store.RunRecord) {
		if r.ID == "r1" {
			r.Inputs = r.Inputs[:1]
		}
	}}

	report, err := Replay(t.Context(), src, nil)
	require.NoError(t, err)
	require.Len(t, report.Diverged, 1)
	assert.Contains(t, report.Diverged[0].Reason, "now fails")
}

func TestReplay_EmptyStore(t *testing.T) {
	report, err := Replay(t.Context(), setupTestStore(t), nil)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Zero(t, report.Runs)
}
