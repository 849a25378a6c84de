// Package store provides SQLite-backed persistence for lowered programs and
// the evaluation runs made against them.
//
// Programs are content-addressed: the primary key is ir.ProgramHash, so
// writing the same program twice is a no-op. Runs reference their program by
// hash and carry a logical seq from the engine clock.
//
// # Ordering
//
// Every multi-row query orders by seq ASC, id ASC COLLATE BINARY so replays
// see runs in the order they were recorded.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: A run cannot reference an unknown program
//
// Buffers and programs are stored as RFC 8785 canonical JSON produced by
// package ir.
package store
