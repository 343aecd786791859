// AArch64 generator tests
//
// Whole-program output is checked by test/arm64_test.md. This file covers
// the primitives and the paths the fixtures cannot reach conveniently:
// wide immediates, large frames, the darwin object format, and limits.

package main

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func generateARM64(t *testing.T, src, os string) (string, error) {
	t.Helper()
	arena, root := parseTree(t, src)
	opts := DefaultOptions()
	opts.OS = os
	return GenerateARM64(arena, root, opts)
}

func TestLoadImm(t *testing.T) {
	t.Parallel()
	tests := []struct {
		val  int64
		want []string
	}{
		{0, []string{"mov x0, #0"}},
		{65535, []string{"mov x0, #65535"}},
		{-1, []string{"mov x0, #-1"}},
		{-65536, []string{"mov x0, #-65536"}},
		{65536, []string{"movz x0, #0", "movk x0, #1, lsl #16"}},
		{0x1_0000_0000, []string{"movz x0, #0", "movk x0, #1, lsl #32"}},
		{math.MinInt64, []string{"movz x0, #0", "movk x0, #32768, lsl #48"}},
		{math.MaxInt64, []string{
			"movz x0, #65535",
			"movk x0, #65535, lsl #16",
			"movk x0, #65535, lsl #32",
			"movk x0, #32767, lsl #48",
		}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.val), func(t *testing.T) {
			t.Parallel()
			g := &arm64Gen{}
			g.loadImm("x0", tt.val)
			be.Equal(t, trimmedLines(g.code.String()), tt.want)
		})
	}
}

func TestFrameSize(t *testing.T) {
	t.Parallel()
	be.Equal(t, frameSize(0), 0)
	be.Equal(t, frameSize(1), 16)
	be.Equal(t, frameSize(2), 16)
	be.Equal(t, frameSize(3), 32)
}

// manyLocals builds a function that declares count integer locals, local i
// initialized to i.
func manyLocals(count int) (*Arena, NodeID) {
	a := NewArena()
	vars := make([]NodeID, count)
	for i := range vars {
		vars[i] = a.Var(fmt.Sprintf("v%d", i), TypeInteger, a.Integer(int64(i)))
	}
	fn := a.Func("big", nil, TypeVoid, a.Block(vars...))
	return a, a.Program(fn)
}

func TestLargeFrameOffsets(t *testing.T) {
	t.Parallel()
	a, root := manyLocals(600)
	text, err := GenerateARM64(a, root, DefaultOptions())
	be.Err(t, err, nil)

	assertLinesInOrder(t, text, []string{
		"fn_big:",
		// 600 words is past the sub immediate range.
		"mov x9, #4800",
		"sub sp, sp, x9",
		// Slot 31 is the last one in ldur/stur range.
		"mov x0, #31",
		"stur x0, [x29, #-256]",
		"mov x0, #32",
		"sub x9, x29, #264",
		"str x0, [x9]",
		// Slot 511 is the first one past the sub immediate range.
		"mov x0, #510",
		"sub x9, x29, #4088",
		"str x0, [x9]",
		"mov x0, #511",
		"mov x10, #4096",
		"sub x9, x29, x10",
		"str x0, [x9]",
	})
}

func TestDarwinFlavor(t *testing.T) {
	t.Parallel()
	text, err := generateARM64(t, `
		(program
		  (var "x" integer 1)
		  (call (ident "print") (string "hi"))
		  (while (binary "<" (ident "x") 3)
		    (assign (ident "x") (binary "+" (ident "x") 1)))
		  (call (ident "print") (ident "x")))
	`, OSDarwin)
	be.Err(t, err, nil)

	assertLinesInOrder(t, text, []string{
		".section __TEXT,__text,regular,pure_instructions",
		".globl _main",
		"_main:",
		"adrp x9, _g_x@PAGE",
		"add x9, x9, _g_x@PAGEOFF",
		"adrp x0, _kw_str0@PAGE",
		"add x0, x0, _kw_str0@PAGEOFF",
		"bl _kw_print_text",
		"Lkw1:",
		"cbz x0, Lkw2",
		"b Lkw1",
		"Lkw2:",
		"bl _kw_print_int",
		"Lkw0:",
		".section __TEXT,__const",
		"_kw_str0:",
		`.ascii "hi"`,
		".zerofill __DATA,__bss,_g_x,8,3",
		"_kw_print_text:",
		"sub sp, sp, #16",
		"stp x1, x0, [sp]",
		"bl _printf",
		"_kw_print_int:",
		"str x0, [sp]",
		"bl _printf",
	})
	be.True(t, !strings.Contains(text, ".Lkw"))
	be.True(t, !strings.Contains(text, ":lo12:"))
	be.True(t, !strings.Contains(text, ".bss"))
}

func TestHelpersAreEmittedOnce(t *testing.T) {
	t.Parallel()
	text, err := generateARM64(t, `
		(block
		  (call (ident "print") 1)
		  (call (ident "print") 2 (boolean true) (boolean false))
		  (call (ident "print") (string "a") (string "b")))
	`, OSLinux)
	be.Err(t, err, nil)

	be.Equal(t, strings.Count(text, "bl kw_print_int\n"), 2)
	be.Equal(t, strings.Count(text, "kw_print_int:"), 1)
	be.Equal(t, strings.Count(text, "kw_print_bool:"), 1)
	be.Equal(t, strings.Count(text, "kw_print_text:"), 1)
	be.Equal(t, strings.Count(text, "kw_true:"), 1)

	// Equal literals are not merged.
	be.True(t, strings.Contains(text, "kw_str1:"))
}

func TestAsmEscape(t *testing.T) {
	t.Parallel()
	be.Equal(t, asmEscape([]byte("plain text")), "plain text")
	be.Equal(t, asmEscape([]byte("q\"b\\s")), `q\"b\\s`)
	be.Equal(t, asmEscape([]byte("n\nt\t")), `n\nt\t`)
	be.Equal(t, asmEscape([]byte{0, 0x1b, 0x7f, 0xc3, 0xb6}), `\000\033\177\303\266`)
}

// =============================================================================
// LIMITATIONS
// =============================================================================

func TestUnsupportedConstructsLeavePlaceholders(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		src     string
		lines   []string
		message string
	}{
		{
			name:    "print of array",
			src:     `(call (ident "print") (array 1 2))`,
			lines:   []string{"// print of array omitted"},
			message: "arm64: unsupported NodeArray: print of array value",
		},
		{
			name:    "nested function",
			src:     `(block (block (func "f" (params) void (block))))`,
			lines:   []string{"// nested function f omitted"},
			message: "arm64: unsupported NodeFunc: nested function f",
		},
		{
			name:    "unresolved name",
			src:     `(call (ident "print") (ident "nope"))`,
			lines:   []string{"mov x0, #0", "bl kw_print_int"},
			message: "arm64: unsupported NodeIdent: unresolved name nope",
		},
		{
			name:    "assignment to unresolved name",
			src:     `(assign (ident "nope") 1)`,
			lines:   []string{"// assignment to unresolved nope omitted"},
			message: "arm64: unsupported NodeAssign: assignment to unresolved name nope",
		},
		{
			name:    "continue outside loop",
			src:     `(continue)`,
			lines:   []string{"// NodeContinue outside of a loop"},
			message: "arm64: unsupported NodeContinue: continue outside of a loop",
		},
		{
			name:    "unknown operator",
			src:     `(call (ident "print") (binary "**" 2 3))`,
			lines:   []string{"// unsupported operator **", "mov x0, #0"},
			message: "arm64: unsupported NodeBinary: operator **",
		},
		{
			name:    "remainder of decimals",
			src:     `(call (ident "print") (binary "%" (decimal "5.5") 2))`,
			lines:   []string{"// unsupported decimal operator %"},
			message: "arm64: unsupported NodeBinary: operator % on decimals",
		},
		{
			name:    "negated text",
			src:     `(call (ident "print") (unary "-" (string "a")))`,
			lines:   []string{"// unsupported unary -"},
			message: "arm64: unsupported NodeUnary: unary operator - on text",
		},
		{
			name:    "length of integer",
			src:     `(call (ident "print") (call (ident "length") 5))`,
			lines:   []string{"mov x0, #5", "mov x0, #0"},
			message: "arm64: unsupported NodeCall: length needs one text or array argument",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			text, err := generateARM64(t, tt.src, OSLinux)
			be.True(t, IsLimitationError(err))
			be.Equal(t, diagnosticMessages(err), []string{tt.message})
			assertLinesInOrder(t, text, tt.lines)

			// The program around the placeholder is still complete.
			assertLinesInOrder(t, text, []string{"main:", ".Lkw0:", "ret"})
		})
	}
}

func TestArgumentRegisterLimit(t *testing.T) {
	t.Parallel()
	text, err := generateARM64(t, `
		(program
		  (func "f" (params (param "a" text) (param "b" text) (param "c" text)
		                    (param "d" text) (param "e" text)) void
		    (block))
		  (call (ident "f") (string "1") (string "2") (string "3") (string "4") (string "5")))
	`, OSLinux)

	be.True(t, IsLimitationError(err))
	be.Equal(t, diagnosticMessages(err), []string{
		"arm64: unsupported NodeFunc: parameter e of f does not fit in x0..x7",
		"arm64: unsupported NodeCall: call to f passes more than eight argument words",
	})
	assertLinesInOrder(t, text, []string{
		"stur x7, [x29, #-64]",
		"ldp x6, x7, [sp], #16",
		"bl fn_f",
	})
	be.True(t, !strings.Contains(text, "kw_str4:"))
}

// =============================================================================
// EXPRESSIONS
// =============================================================================

func TestDecimalOperations(t *testing.T) {
	t.Parallel()
	text, err := generateARM64(t, `
		(block
		  (call (ident "print") (binary "<" (decimal "1.0") (decimal "2.0")))
		  (call (ident "print") (unary "-" (decimal "0.5"))))
	`, OSLinux)
	be.Err(t, err, nil)

	assertLinesInOrder(t, text, []string{
		"fcmp d0, d1",
		"cset x0, mi",
		"bl kw_print_bool",
		"fneg d0, d0",
		"fmov x0, d0",
		"bl kw_print_decimal",
		"kw_fmt_decimal:",
		`.asciz "%g\n"`,
	})
}

func TestPipeCallsFunction(t *testing.T) {
	t.Parallel()
	text, err := generateARM64(t, `
		(program
		  (func "double" (params (param "n" integer)) integer
		    (block (return (binary "+" (ident "n") (ident "n")))))
		  (call (ident "print") (pipe 21 (ident "double"))))
	`, OSLinux)
	be.Err(t, err, nil)

	assertLinesInOrder(t, text, []string{
		"fn_double:",
		"main:",
		"mov x0, #21",
		"str x0, [sp, #-16]!",
		"ldr x0, [sp], #16",
		"bl fn_double",
		"bl kw_print_int",
	})
}

func TestFunctionFallsOffEnd(t *testing.T) {
	t.Parallel()
	text, err := generateARM64(t, `
		(program (func "f" (params) text (block)))
	`, OSLinux)
	be.Err(t, err, nil)

	assertLinesInOrder(t, text, []string{
		"fn_f:",
		"mov x0, #0",
		"mov x1, #0",
		".Lkw0:",
		"ret",
		"main:",
		".Lkw1:",
	})
}

func TestLocalTextVariable(t *testing.T) {
	t.Parallel()
	text, err := generateARM64(t, `
		(block (block
		  (var "s" text (string "abc"))
		  (call (ident "print") (call (ident "length") (ident "s")))))
	`, OSLinux)
	be.Err(t, err, nil)

	assertLinesInOrder(t, text, []string{
		"sub sp, sp, #16",
		"mov x1, #3",
		"stur x0, [x29, #-8]",
		"stur x1, [x29, #-16]",
		"ldur x0, [x29, #-8]",
		"ldur x1, [x29, #-16]",
		"mov x0, x1",
		"bl kw_print_int",
	})
}
