// Package ir provides the lowered representation of elementwise HLO
// computations: tensor types, programs, buffers, and the typed error
// taxonomy shared by the compiler and the evaluator.
//
// This package imports nothing internal. The compiler produces Programs,
// the engine executes them against Buffers, and the store persists both
// through the canonical JSON forms defined here.
//
// Key constraints:
//   - Element types are integers only; buffer scalars are int64.
//   - Elementwise operations never broadcast: operand and result types match exactly.
//   - Rendering is pure; identical programs render to byte-identical text.
//   - Canonical JSON (RFC 8785) is the only serialization used for hashing.
package ir
