// Package hlo models an elementwise HLO computation as an instruction graph.
//
// A Graph is an arena: it owns every Node, and nodes refer to their operands
// by NodeID. Graphs are assembled with a Builder, which only accepts operand
// handles that already exist, so every Graph is acyclic by construction.
//
// The node and opcode sets are closed. The lowering pass in package compiler
// switches over them exhaustively and rejects anything it does not know.
package hlo
