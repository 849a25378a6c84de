// Package engine executes lowered programs.
//
// Evaluate is the pure core: it binds input buffers to a program's
// arguments by position, runs the ops in emission order and returns fresh
// output buffers. It has no state and is safe for concurrent use.
//
// Engine wraps Evaluate with identity and persistence. Every run is stamped
// with a logical seq from a Clock and an ID from a RunIDGenerator, and is
// handed to a Recorder (normally *store.Store) whether it succeeded or not.
// Replay reads the recorded runs back and re-evaluates them to confirm the
// evaluator is still deterministic.
//
// Ordering uses the logical clock only. Wall-clock time is never recorded.
package engine
