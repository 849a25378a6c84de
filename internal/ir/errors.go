package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes lowering and evaluation failures.
type ErrorCode string

const (
	// ErrCodeShapeMismatch indicates operand or buffer dims disagree.
	ErrCodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"

	// ErrCodeTypeMismatch indicates element types disagree, or a value does
	// not fit its element type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeArityMismatch indicates the wrong number of input buffers.
	ErrCodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// ErrCodeUnsupportedOperator indicates an opcode outside the lowered set.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"

	// ErrCodeInvalidGraph indicates a malformed instruction graph.
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"
)

// Error is the typed failure returned by graph construction, lowering and
// evaluation. These are usage errors, never transient: retrying the same
// inputs fails the same way.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the instruction or operation involved, if any.
	Op string

	// Message is a human-readable description.
	Message string

	// Details contains additional context (expected/actual values).
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an *Error with a formatted message.
func Errorf(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewShapeMismatch reports two tensor types whose dims disagree.
func NewShapeMismatch(op string, want, got TensorType) *Error {
	return &Error{
		Code:    ErrCodeShapeMismatch,
		Op:      op,
		Message: fmt.Sprintf("shape %s does not match %s", got, want),
		Details: map[string]string{"want": want.String(), "got": got.String()},
	}
}

// NewTypeMismatch reports two element types that disagree.
func NewTypeMismatch(op string, want, got ElementType) *Error {
	return &Error{
		Code:    ErrCodeTypeMismatch,
		Op:      op,
		Message: fmt.Sprintf("element type %s does not match %s", got, want),
		Details: map[string]string{"want": want.String(), "got": got.String()},
	}
}

// NewArityMismatch reports a wrong number of inputs.
func NewArityMismatch(want, got int) *Error {
	return &Error{
		Code:    ErrCodeArityMismatch,
		Message: fmt.Sprintf("expected %d input buffer(s), got %d", want, got),
		Details: map[string]string{"want": fmt.Sprint(want), "got": fmt.Sprint(got)},
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsShapeMismatch reports whether err carries ErrCodeShapeMismatch.
func IsShapeMismatch(err error) bool { return CodeOf(err) == ErrCodeShapeMismatch }

// IsTypeMismatch reports whether err carries ErrCodeTypeMismatch.
func IsTypeMismatch(err error) bool { return CodeOf(err) == ErrCodeTypeMismatch }

// IsArityMismatch reports whether err carries ErrCodeArityMismatch.
func IsArityMismatch(err error) bool { return CodeOf(err) == ErrCodeArityMismatch }

// IsUnsupportedOperator reports whether err carries ErrCodeUnsupportedOperator.
func IsUnsupportedOperator(err error) bool { return CodeOf(err) == ErrCodeUnsupportedOperator }

// IsInvalidGraph reports whether err carries ErrCodeInvalidGraph.
func IsInvalidGraph(err error) bool { return CodeOf(err) == ErrCodeInvalidGraph }
