// Package harness runs lowering scenarios end to end.
//
// A scenario names a CUE computation, the filecheck directives its rendered
// IR must satisfy, and input/output cases it must evaluate:
//
//	name: eltwise_and
//	description: AND over 3x3 boolean tensors
//	specs: [logical.cue]
//	computation: EltwiseAndOp
//	element_types: [s32, s64]
//	checks: |
//	  CHECK: func @hlo_module(%arg0: tensor<3x3x${type}>, %arg1: tensor<3x3x${type}>) -> tensor<3x3x${type}>
//	  CHECK: return %{{.*}} : tensor<3x3x${type}>
//	cases:
//	  - inputs: [[0,0,1,1,0,0,1,1,0], [1,0,1,0,1,0,1,0,1]]
//	    outputs: [[0,0,1,0,0,0,1,0,0]]
//
// Each listed element type is one instance: the computation is retyped,
// lowered, rendered and checked, then every case runs through an
// engine.Engine recording into an in-memory store. After all instances the
// recorded runs are replayed, so a scenario also proves its runs reproduce.
//
// A case may instead expect a failure by code:
//
//	  - inputs: [[0,1,0]]
//	    error: ARITY_MISMATCH
//
// Runs are stamped by testutil.DeterministicClock and
// testutil.SequentialRunIDs, so repeated executions record identical runs.
// Golden files hold only the rendered IR (see Snapshot).
package harness
