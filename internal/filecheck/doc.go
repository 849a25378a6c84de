// Package filecheck verifies rendered IR text against ordered pattern
// directives, in the style of LLVM's FileCheck.
//
// A check file is plain text. Lines carrying a directive are read; every
// other line is ignored, so directives can sit in comments:
//
//	// CHECK: func @hlo_module(%arg0: tensor<3x3xsi32>
//	// CHECK-NEXT: %0 = eltwise.and %arg0, %arg1
//	// CHECK-NOT: eltwise.or
//	// CHECK: return %{{[0-9]+}} : tensor<3x3xsi32>
//
// Pattern text is literal except for {{regex}} blocks. Any run of spaces
// or tabs in a pattern matches any non-empty run of spaces or tabs in the
// input.
//
// The package is a test collaborator; nothing in the lowering or evaluation
// path imports it.
package filecheck
