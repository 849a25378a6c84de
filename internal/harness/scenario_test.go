package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_Testdata(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/eltwise_and.yaml")
	require.NoError(t, err)

	assert.Equal(t, "eltwise_and", s.Name)
	assert.Equal(t, "EltwiseAndOp", s.Computation)
	assert.Equal(t, []string{"s32", "s64"}, s.ElementTypes)
	assert.Equal(t, []string{filepath.Join("testdata", "specs", "logical.cue")}, s.Specs)
	assert.Contains(t, s.Checks, "CHECK-NEXT: %0 = eltwise.and")

	require.Len(t, s.Cases, 3)
	assert.Equal(t, "truth table", s.Cases[0].Name)
	assert.Equal(t, [][]int64{{0, 0, 1, 0, 0, 0, 1, 0, 0}}, s.Cases[0].Outputs)
	assert.Equal(t, "ARITY_MISMATCH", s.Cases[1].Error)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	specDir, err := filepath.Abs("testdata/specs")
	require.NoError(t, err)

	path := writeScenario(t, t.TempDir(), `
name: based
description: specs resolved against an explicit base
specs: [logical.cue]
computation: EltwiseNotOp
checks: "CHECK: eltwise.not"
`)

	s, err := LoadScenarioWithBasePath(path, specDir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(specDir, "logical.cue")}, s.Specs)
}

func TestLoadScenario_Errors(t *testing.T) {
	specPath, err := filepath.Abs("testdata/specs/logical.cue")
	require.NoError(t, err)

	valid := "name: x\ndescription: d\nspecs: [" + specPath + "]\ncomputation: EltwiseNotOp\n"

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", valid + "checks: a\ncase: []\n", "field case not found"},
		{"missing name", "description: d\nspecs: [" + specPath + "]\ncomputation: C\nchecks: a\n", "name is required"},
		{"missing description", "name: x\nspecs: [" + specPath + "]\ncomputation: C\nchecks: a\n", "description is required"},
		{"missing specs", "name: x\ndescription: d\ncomputation: C\nchecks: a\n", "specs list is required"},
		{"missing computation", "name: x\ndescription: d\nspecs: [" + specPath + "]\nchecks: a\n", "computation is required"},
		{"nothing to check", valid, "at least one of checks, cases or lower_error"},
		{"spec not found", "name: x\ndescription: d\nspecs: [/nope/missing.cue]\ncomputation: C\nchecks: a\n", "spec file not found"},
		{"bad element type", valid + "checks: a\nelement_types: [f32]\n", "element_types[0]"},
		{"bad lower error", valid + "lower_error: OOPS\n", "unknown error code"},
		{"case without inputs", valid + "cases:\n  - outputs: [[1]]\n", "inputs are required"},
		{"case without expectation", valid + "cases:\n  - inputs: [[1]]\n", "outputs or error is required"},
		{"case with both", valid + "cases:\n  - inputs: [[1]]\n    outputs: [[0]]\n    error: SHAPE_MISMATCH\n", "mutually exclusive"},
		{"case bad code", valid + "cases:\n  - inputs: [[1]]\n    error: BOOM\n", "unknown error code"},
		{"float data", valid + "cases:\n  - inputs: [[1.5]]\n    outputs: [[0]]\n", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
