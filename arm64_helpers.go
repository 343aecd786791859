package main

import (
	"fmt"
	"strings"
)

// Runtime helpers for the AArch64 target. Each one is a small leaf routine
// around the C library's printf, emitted at most once per compilation.

const (
	helperPrintInt     = "kw_print_int"
	helperPrintText    = "kw_print_text"
	helperPrintBool    = "kw_print_bool"
	helperPrintDecimal = "kw_print_decimal"
)

// hins appends one instruction to the helper section.
func (g *arm64Gen) hins(format string, args ...interface{}) {
	g.helpers.WriteString("\t")
	fmt.Fprintf(&g.helpers, format, args...)
	g.helpers.WriteString("\n")
}

// hloadAddress is loadAddress for the helper section.
func (g *arm64Gen) hloadAddress(reg, name string) {
	s := g.sym(name)
	if g.darwin {
		g.hins("adrp %s, %s@PAGE", reg, s)
		g.hins("add %s, %s, %s@PAGEOFF", reg, reg, s)
		return
	}
	g.hins("adrp %s, %s", reg, s)
	g.hins("add %s, %s, :lo12:%s", reg, reg, s)
}

// helperFunc wraps body in a frame-pointer prologue and epilogue. On darwin
// the variadic arguments of printf are passed on the stack, so a 16-byte
// argument area is reserved below the frame record.
func (g *arm64Gen) helperFunc(name string, body func()) {
	fmt.Fprintf(&g.helpers, "\n\t.p2align 2\n%s:\n", g.sym(name))
	g.hins("stp x29, x30, [sp, #-16]!")
	g.hins("mov x29, sp")
	if g.darwin {
		g.hins("sub sp, sp, #16")
	}
	body()
	g.hins("mov sp, x29")
	g.hins("ldp x29, x30, [sp], #16")
	g.hins("ret")
}

// rodataString emits a NUL-terminated constant used by the helpers.
func (g *arm64Gen) rodataString(name, contents string) {
	g.ctx.EnsureHelper(name, func() {
		fmt.Fprintf(&g.rodata, "%s:\n\t.asciz \"%s\"\n", g.sym(name), asmEscape([]byte(contents)))
	})
}

// emitLiteral places a literal table entry in read-only data.
func (g *arm64Gen) emitLiteral(lit StringLiteral) {
	fmt.Fprintf(&g.rodata, "%s:\n\t.ascii \"%s\"\n", g.sym("kw_"+lit.Label), asmEscape(lit.Bytes))
}

func (g *arm64Gen) callPrintf() {
	g.hins("bl %s", g.sym("printf"))
}

func (g *arm64Gen) printIntHelper() string {
	g.ctx.EnsureHelper(helperPrintInt, func() {
		g.rodataString("kw_fmt_int", "%ld\n")
		g.helperFunc(helperPrintInt, func() {
			if g.darwin {
				g.hins("str x0, [sp]")
			} else {
				g.hins("mov x1, x0")
			}
			g.hloadAddress("x0", "kw_fmt_int")
			g.callPrintf()
		})
	})
	return helperPrintInt
}

// printTextHelper prints a fat (pointer, length) value. The text is not
// NUL-terminated, so the length goes through the %.*s precision.
func (g *arm64Gen) printTextHelper() string {
	g.ctx.EnsureHelper(helperPrintText, func() {
		g.rodataString("kw_fmt_text", "%.*s\n")
		g.helperFunc(helperPrintText, func() {
			if g.darwin {
				g.hins("stp x1, x0, [sp]")
			} else {
				g.hins("mov x2, x0")
			}
			g.hloadAddress("x0", "kw_fmt_text")
			g.callPrintf()
		})
	})
	return helperPrintText
}

func (g *arm64Gen) printBoolHelper() string {
	g.ctx.EnsureHelper(helperPrintBool, func() {
		g.rodataString("kw_fmt_str", "%s\n")
		g.rodataString("kw_true", "true")
		g.rodataString("kw_false", "false")
		g.helperFunc(helperPrintBool, func() {
			g.hloadAddress("x9", "kw_true")
			g.hloadAddress("x10", "kw_false")
			g.hins("cmp x0, #0")
			g.hins("csel x1, x9, x10, ne")
			if g.darwin {
				g.hins("str x1, [sp]")
			}
			g.hloadAddress("x0", "kw_fmt_str")
			g.callPrintf()
		})
	})
	return helperPrintBool
}

// printDecimalHelper receives the bit pattern of a double in x0.
func (g *arm64Gen) printDecimalHelper() string {
	g.ctx.EnsureHelper(helperPrintDecimal, func() {
		g.rodataString("kw_fmt_decimal", "%g\n")
		g.helperFunc(helperPrintDecimal, func() {
			if g.darwin {
				g.hins("str x0, [sp]")
			} else {
				g.hins("fmov d0, x0")
			}
			g.hloadAddress("x0", "kw_fmt_decimal")
			g.callPrintf()
		})
	})
	return helperPrintDecimal
}

// asmEscape renders bytes for an .ascii or .asciz directive.
func asmEscape(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		switch {
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c >= 0x20 && c < 0x7f:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "\\%03o", c)
		}
	}
	return b.String()
}
