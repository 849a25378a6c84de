package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/hlolower/internal/ir"
)

// maxReportedMismatches caps element diffs listed per output.
const maxReportedMismatches = 8

// AssertionError is returned when an evaluated case disagrees with its
// expectation.
type AssertionError struct {
	Type     string // output_count, output_shape, output_values, error_code
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	return buf.String()
}

// compareOutputs checks got against want element by element.
func compareOutputs(want [][]int64, got []ir.Buffer) []error {
	if len(want) != len(got) {
		return []error{&AssertionError{
			Type:     "output_count",
			Expected: fmt.Sprintf("%d output(s)", len(want)),
			Actual:   fmt.Sprintf("%d output(s)", len(got)),
		}}
	}

	var errs []error
	for i := range want {
		if len(want[i]) != len(got[i].Data) {
			errs = append(errs, &AssertionError{
				Type:     "output_shape",
				Expected: fmt.Sprintf("output %d with %d element(s)", i, len(want[i])),
				Actual:   fmt.Sprintf("%d element(s) of %s", len(got[i].Data), got[i].Type),
			})
			continue
		}

		var diffs []string
		total := 0
		for j, w := range want[i] {
			if g := got[i].Data[j]; g != w {
				total++
				if len(diffs) < maxReportedMismatches {
					diffs = append(diffs, fmt.Sprintf("[%d] want %d got %d", j, w, g))
				}
			}
		}
		if total > 0 {
			actual := strings.Join(diffs, ", ")
			if total > len(diffs) {
				actual += fmt.Sprintf(" (+%d more)", total-len(diffs))
			}
			errs = append(errs, &AssertionError{
				Type:     "output_values",
				Expected: fmt.Sprintf("output %d = %v", i, want[i]),
				Actual:   actual,
			})
		}
	}
	return errs
}

// checkErrorCode verifies that err carries the wanted code.
func checkErrorCode(want string, err error) error {
	got := string(ir.CodeOf(err))
	if got == want {
		return nil
	}
	actual := "success"
	if err != nil {
		actual = err.Error()
	}
	return &AssertionError{
		Type:     "error_code",
		Expected: want,
		Actual:   actual,
	}
}

// BuildInputs types each input after the matching function argument.
// Data whose length disagrees with the argument becomes a rank-1 buffer of
// the argument's element type, so the evaluator reports the shape mismatch
// and the failed run is recorded. Surplus inputs beyond the signature are
// typed after the first argument for the same reason.
func BuildInputs(p *ir.Program, data [][]int64) ([]ir.Buffer, error) {
	bufs := make([]ir.Buffer, len(data))
	for i, d := range data {
		var t ir.TensorType
		switch {
		case i < len(p.Inputs):
			t = p.Inputs[i].Type
		case len(p.Inputs) > 0:
			t = p.Inputs[0].Type
		default:
			t = ir.Tensor(ir.S32)
		}
		if t.Size() != len(d) {
			t = ir.Tensor(t.Type, int64(len(d)))
		}

		b, err := ir.NewBuffer(t, d)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		bufs[i] = b
	}
	return bufs, nil
}

// substituteType expands ${type} in check text.
func substituteType(checks string, et ir.ElementType) string {
	return strings.ReplaceAll(checks, "${type}", et.MLIR())
}
