package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
	harnessSpecs     = filepath.Join("..", "harness", "testdata", "specs")
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandNonExistentSpecsDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), harnessScenarios, "--specs", "/nonexistent/specs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "specs directory not found")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandAllPass(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ eltwise_and (2 instance(s))")
	assert.Contains(t, out, "✓ shape_mismatch (1 instance(s))")
	assert.Contains(t, out, "Test Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}),
		harnessScenarios, "--golden", harnessGolden, "--filter", "eltwise_*")
	require.NoError(t, err)

	var result TestResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 4, result.Passed)
	for _, s := range result.Scenarios {
		assert.True(t, s.Pass, s.Name)
	}
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	goldenDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "eltwise_or.golden"), []byte("stale\n"), 0644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		harnessScenarios, "--golden", goldenDir, "--filter", "eltwise_o*")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ eltwise_or")
	assert.Contains(t, out, "IR does not match golden file")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandUpdateGolden(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		harnessScenarios, "--golden", goldenDir, "--filter", "eltwise_and", "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ eltwise_and (golden updated)")

	got, err := os.ReadFile(filepath.Join(goldenDir, "eltwise_and.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(harnessGolden, "eltwise_and.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	// The regenerated file now passes a plain run.
	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		harnessScenarios, "--golden", goldenDir, "--filter", "eltwise_and")
	require.NoError(t, err)
}

func TestTestCommandScenarioFailure(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_output
description: Expects the wrong AND result
specs: [logical.cue]
computation: EltwiseAndOp
cases:
  - inputs: [[1, 1, 1, 1, 1, 1, 1, 1, 1], [1, 1, 1, 1, 1, 1, 1, 1, 1]]
    outputs: [[0, 0, 0, 0, 0, 0, 0, 0, 0]]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_output.yaml"), []byte(scenario), 0644))

	absSpecs, err := filepath.Abs(harnessSpecs)
	require.NoError(t, err)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir, "--specs", absSpecs)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, result.Scenarios, 1)
	assert.False(t, result.Scenarios[0].Pass)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "load error")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "golden", "x.golden"), goldenFilePath(filepath.Join("a", "golden"), "x"))
}
