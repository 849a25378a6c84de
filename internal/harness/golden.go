package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the IR of every instance, in instantiation order, as the
// text stored in golden files:
//
//	// element_type: s32
//	func @hlo_module(...) ... {
//	  ...
//	}
//
// Instances that failed to lower contribute a lower_error line instead.
// The snapshot depends only on the lowered programs, never on run IDs or
// seqs.
func Snapshot(result *Result) []byte {
	var b strings.Builder
	for i, inst := range result.Instances {
		if i > 0 {
			b.WriteByte('\n')
		}
		if inst.ElementType != "" {
			b.WriteString("// element_type: " + inst.ElementType + "\n")
		}
		if inst.LowerError != "" {
			b.WriteString("// lower_error: " + inst.LowerError + "\n")
			continue
		}
		b.WriteString(inst.IR)
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. A snapshot mismatch fails t
// through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's snapshot against the golden
// file for name without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(result))
}
