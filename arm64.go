package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/glog"
)

// AArch64 assembly generator
//
// Calling convention: argument words in x0..x7, scalar results in x0, fat
// results in x0 (pointer) and x1 (length). Every expression leaves its value
// in those registers. Binary operators keep the left operand on the stack
// while the right one is evaluated; there is no register allocation.
//
// Frame layout: x29 points at the saved x29/x30 pair. Local slot N is the
// word at [x29 - 8*(N+1)]; a fat local uses slots N (pointer) and N+1
// (length). The frame is reserved once in the prologue for every local the
// function declares, rounded up to 16 bytes.

// GenerateARM64 compiles the tree rooted at root to assembly text. The text
// is always complete; the error is nil or lists constructs that were replaced
// by placeholders.
func GenerateARM64(arena *Arena, root NodeID, opts Options) (string, error) {
	g := &arm64Gen{
		ctx:    NewGenContext(arena, TargetARM64),
		arena:  arena,
		darwin: opts.OS == OSDarwin,
	}
	g.generate(root)
	return g.assemble(), g.ctx.Diagnostics()
}

type arm64Gen struct {
	ctx    *GenContext
	arena  *Arena
	darwin bool

	code    strings.Builder // function bodies
	rodata  strings.Builder // literals
	bss     strings.Builder // globals and array storage
	helpers strings.Builder // runtime helper routines

	arrays   int
	userMain *Symbol
}

// Output sections

func (g *arm64Gen) ins(format string, args ...interface{}) {
	g.code.WriteString("\t")
	fmt.Fprintf(&g.code, format, args...)
	g.code.WriteString("\n")
}

func (g *arm64Gen) comment(format string, args ...interface{}) {
	g.code.WriteString("\t// ")
	fmt.Fprintf(&g.code, format, args...)
	g.code.WriteString("\n")
}

func (g *arm64Gen) label(l Label) {
	g.code.WriteString(g.labelName(l) + ":\n")
}

// labelName spells an assembler-local label.
func (g *arm64Gen) labelName(l Label) string {
	if g.darwin {
		return "Lkw" + l.String()[1:]
	}
	return ".Lkw" + l.String()[1:]
}

// sym spells a global symbol for the object format.
func (g *arm64Gen) sym(name string) string {
	if g.darwin {
		return "_" + name
	}
	return name
}

func (g *arm64Gen) assemble() string {
	var out strings.Builder
	out.WriteString("// generated by kwc for aarch64\n")
	if g.darwin {
		out.WriteString("\t.section __TEXT,__text,regular,pure_instructions\n")
	} else {
		out.WriteString("\t.text\n")
	}
	out.WriteString(g.code.String())

	if g.rodata.Len() > 0 {
		if g.darwin {
			out.WriteString("\n\t.section __TEXT,__const\n")
		} else {
			out.WriteString("\n\t.section .rodata\n")
		}
		out.WriteString(g.rodata.String())
	}

	if g.bss.Len() > 0 {
		if !g.darwin {
			out.WriteString("\n\t.bss\n")
		} else {
			out.WriteString("\n")
		}
		out.WriteString(g.bss.String())
	}

	if g.helpers.Len() > 0 {
		if g.darwin {
			out.WriteString("\n\t.section __TEXT,__text,regular,pure_instructions\n")
		} else {
			out.WriteString("\n\t.text\n")
		}
		out.WriteString(g.helpers.String())
	}
	return out.String()
}

// reserveBSS adds size zero bytes of 8-aligned storage named name.
func (g *arm64Gen) reserveBSS(name string, size int) {
	if g.darwin {
		fmt.Fprintf(&g.bss, "\t.zerofill __DATA,__bss,%s,%d,3\n", g.sym(name), size)
		return
	}
	fmt.Fprintf(&g.bss, "\t.p2align 3\n%s:\n\t.zero %d\n", g.sym(name), size)
}

// Register and memory primitives

// loadImm materializes a 64-bit constant. Values that do not fit one move are
// split into movz plus a movk per non-zero 16-bit chunk.
func (g *arm64Gen) loadImm(reg string, val int64) {
	if val >= -65536 && val <= 65535 {
		g.ins("mov %s, #%d", reg, val)
		return
	}
	uval := uint64(val)
	g.ins("movz %s, #%d", reg, uval&0xFFFF)
	for shift := 16; shift < 64; shift += 16 {
		if chunk := (uval >> shift) & 0xFFFF; chunk != 0 {
			g.ins("movk %s, #%d, lsl #%d", reg, chunk, shift)
		}
	}
}

// loadAddress puts the address of a global symbol in reg.
func (g *arm64Gen) loadAddress(reg, name string) {
	s := g.sym(name)
	if g.darwin {
		g.ins("adrp %s, %s@PAGE", reg, s)
		g.ins("add %s, %s, %s@PAGEOFF", reg, reg, s)
		return
	}
	g.ins("adrp %s, %s", reg, s)
	g.ins("add %s, %s, :lo12:%s", reg, reg, s)
}

// slotAddress returns an addressing-mode operand for local slot N, using x9
// as scratch when the offset is out of the unscaled range.
func (g *arm64Gen) slotAddress(slot int) (string, bool) {
	off := (slot + 1) * 8
	if off <= 256 {
		return fmt.Sprintf("[x29, #-%d]", off), true
	}
	if off <= 4095 {
		g.ins("sub x9, x29, #%d", off)
	} else {
		g.loadImm("x10", int64(off))
		g.ins("sub x9, x29, x10")
	}
	return "[x9]", false
}

func (g *arm64Gen) storeSlot(reg string, slot int) {
	addr, unscaled := g.slotAddress(slot)
	if unscaled {
		g.ins("stur %s, %s", reg, addr)
	} else {
		g.ins("str %s, %s", reg, addr)
	}
}

func (g *arm64Gen) loadSlot(reg string, slot int) {
	addr, unscaled := g.slotAddress(slot)
	if unscaled {
		g.ins("ldur %s, %s", reg, addr)
	} else {
		g.ins("ldr %s, %s", reg, addr)
	}
}

// push saves the value in x0 (and x1) on the stack, keeping sp 16-aligned.
func (g *arm64Gen) push(r Repr) {
	if r == Fat {
		g.ins("stp x0, x1, [sp, #-16]!")
	} else {
		g.ins("str x0, [sp, #-16]!")
	}
}

// pop restores a value pushed by push into reg (and reg+1 for fat values).
func (g *arm64Gen) pop(r Repr, reg int) {
	if r == Fat {
		g.ins("ldp x%d, x%d, [sp], #16", reg, reg+1)
	} else {
		g.ins("ldr x%d, [sp], #16", reg)
	}
}

func (g *arm64Gen) zero(r Repr) {
	g.ins("mov x0, #0")
	if r == Fat {
		g.ins("mov x1, #0")
	}
}

// load reads a variable into x0 (and x1).
func (g *arm64Gen) load(sym *Symbol) Repr {
	r := ReprOf(sym.Type)
	if sym.Global {
		g.loadAddress("x9", sym.Storage)
		if r == Fat {
			g.ins("ldp x0, x1, [x9]")
		} else {
			g.ins("ldr x0, [x9]")
		}
		return r
	}
	g.loadSlot("x0", sym.Slot)
	if r == Fat {
		g.loadSlot("x1", sym.Slot+1)
	}
	return r
}

// store writes x0 (and x1) to a variable.
func (g *arm64Gen) store(sym *Symbol) {
	r := ReprOf(sym.Type)
	if sym.Global {
		g.loadAddress("x9", sym.Storage)
		if r == Fat {
			g.ins("stp x0, x1, [x9]")
		} else {
			g.ins("str x0, [x9]")
		}
		return
	}
	g.storeSlot("x0", sym.Slot)
	if r == Fat {
		g.storeSlot("x1", sym.Slot+1)
	}
}

// Program structure

func (g *arm64Gen) generate(root NodeID) {
	stmts := topLevelStatements(g.arena, root)

	// Declarations first, so bodies can refer to anything declared at the
	// top level regardless of order.
	for _, id := range stmts {
		n := g.arena.At(id)
		switch n.Kind {
		case NodeFunc:
			sym := g.ctx.DeclareFunc(n, "fn_"+mangleName(n.Name))
			if n.Name == "main" && len(n.Params) == 0 {
				g.userMain = sym
			}
		case NodeClass:
			g.ctx.DeclareClass(n)
		case NodeVar:
			storage := "g_" + mangleName(n.Name)
			typ := n.Type
			if typ == TypeUnknown && len(n.Children) > 0 {
				typ = g.ctx.TypeOf(n.Children[0])
			}
			g.ctx.DeclareGlobal(n.Name, typ, storage)
			g.reserveBSS(storage, ReprOf(typ).Words()*8)
		}
	}

	for _, id := range stmts {
		if g.arena.At(id).Kind == NodeFunc {
			g.function(id)
		}
	}
	g.entry(root, stmts)
}

// frameSize is the 16-byte-aligned size of a frame holding words locals.
func frameSize(words int) int {
	size := words * 8
	if size%16 != 0 {
		size += 16 - size%16
	}
	return size
}

func (g *arm64Gen) prologue(symbol string, words int) {
	fmt.Fprintf(&g.code, "\n\t.globl %s\n\t.p2align 2\n%s:\n", g.sym(symbol), g.sym(symbol))
	g.ins("stp x29, x30, [sp, #-16]!")
	g.ins("mov x29, sp")
	size := frameSize(words)
	switch {
	case size == 0:
	case size <= 4095:
		g.ins("sub sp, sp, #%d", size)
	default:
		g.loadImm("x9", int64(size))
		g.ins("sub sp, sp, x9")
	}
	if glog.V(5) {
		glog.V(5).Infof("arm64: %s frame=%d bytes (%d words)", symbol, size, words)
	}
}

func (g *arm64Gen) epilogue() {
	g.label(g.ctx.ReturnLabel())
	g.ins("mov sp, x29")
	g.ins("ldp x29, x30, [sp], #16")
	g.ins("ret")
}

func (g *arm64Gen) function(id NodeID) {
	n := g.arena.Get(id)
	sym, _ := g.ctx.Lookup(n.Name)
	words := localWords(g.arena, n.Children[0])
	for _, p := range n.Params {
		words += ReprOf(p.Type).Words()
	}

	g.ctx.BeginFunction(n.Name, n.Result)
	g.prologue(sym.Storage, words)

	// Parameters become ordinary locals.
	reg := 0
	for _, p := range n.Params {
		local := g.ctx.DeclareLocal(p.Name, p.Type)
		words := ReprOf(p.Type).Words()
		if reg+words > 8 {
			g.ctx.Limitation(id, "parameter %s of %s does not fit in x0..x7", p.Name, n.Name)
			continue
		}
		for w := 0; w < words; w++ {
			g.storeSlot(fmt.Sprintf("x%d", reg+w), local.Slot+w)
		}
		reg += words
	}

	g.stmt(n.Children[0])

	// Falling off the end returns the zero value of the declared type.
	g.zero(ReprOf(n.Result))
	assertf(g.ctx.SlotsUsed() <= words, "%s used %d slots, frame has %d", n.Name, g.ctx.SlotsUsed(), words)
	g.epilogue()
	g.ctx.EndFunction()
}

// entry emits main: every top-level statement that is not a declaration,
// then a call to the program's own main function if it has one.
func (g *arm64Gen) entry(root NodeID, stmts []NodeID) {
	words := entryWords(g.arena, root)
	g.ctx.BeginFunction("main", TypeInteger)
	g.prologue("main", words)

	for _, id := range stmts {
		n := g.arena.At(id)
		switch n.Kind {
		case NodeFunc, NodeClass:
		case NodeVar:
			sym, _ := g.ctx.Lookup(n.Name)
			g.initVar(id, sym)
		default:
			g.stmt(id)
		}
	}
	if g.userMain != nil {
		g.ins("bl %s", g.sym(g.userMain.Storage))
	}

	g.zero(Scalar)
	assertf(g.ctx.SlotsUsed() <= words, "main used %d slots, frame has %d", g.ctx.SlotsUsed(), words)
	g.epilogue()
	g.ctx.EndFunction()
}

// initVar stores a declaration's initializer, or zero, into sym.
func (g *arm64Gen) initVar(id NodeID, sym *Symbol) {
	n := g.arena.At(id)
	if len(n.Children) > 0 {
		g.expr(n.Children[0])
	} else {
		g.zero(ReprOf(sym.Type))
	}
	g.store(sym)
}

// Statements

func (g *arm64Gen) stmt(id NodeID) {
	n := g.arena.Get(id)
	switch n.Kind {
	case NodeBlock:
		g.ctx.EnterScope()
		for _, child := range n.Children {
			g.stmt(child)
		}
		g.ctx.LeaveScope()

	case NodeVar:
		typ := n.Type
		if typ == TypeUnknown && len(n.Children) > 0 {
			typ = g.ctx.TypeOf(n.Children[0])
		}
		// Evaluate the initializer before the name is in scope.
		if len(n.Children) > 0 {
			g.expr(n.Children[0])
		} else {
			g.zero(ReprOf(typ))
		}
		g.store(g.ctx.DeclareLocal(n.Name, typ))

	case NodeAssign:
		g.assign(id)

	case NodeIf:
		g.ifChain(n)

	case NodeWhile:
		g.whileLoop(n)

	case NodeFor:
		g.forLoop(n)

	case NodeReturn:
		if len(n.Children) > 0 {
			g.expr(n.Children[0])
		} else {
			g.zero(ReprOf(g.ctx.ReturnType()))
		}
		g.ins("b %s", g.labelName(g.ctx.ReturnLabel()))

	case NodeBreak, NodeContinue:
		brk, cont, ok := g.ctx.LoopTargets()
		if !ok {
			g.ctx.Limitation(id, "%s outside of a loop", strings.ToLower(strings.TrimPrefix(string(n.Kind), "Node")))
			g.comment("%s outside of a loop", n.Kind)
			return
		}
		if n.Kind == NodeBreak {
			g.ins("b %s", g.labelName(brk))
		} else {
			g.ins("b %s", g.labelName(cont))
		}

	case NodeClass:
		g.ctx.DeclareClass(&n)
		g.comment("class %s: %d fields", n.Name, len(n.Fields))

	case NodeFunc:
		g.ctx.Limitation(id, "nested function %s", n.Name)
		g.comment("nested function %s omitted", n.Name)

	case NodeProgram:
		g.ctx.Limitation(id, "program nested inside a statement")
		g.comment("nested program omitted")

	case NodeInteger, NodeDecimal, NodeBoolean, NodeString, NodeIdent,
		NodeBinary, NodeUnary, NodeCall, NodePipe, NodeArray, NodeIndex:
		g.expr(id)

	default:
		g.ctx.Limitation(id, "unknown statement")
		g.comment("unsupported statement %s", n.Kind)
	}
}

func (g *arm64Gen) assign(id NodeID) {
	n := g.arena.Get(id)
	target := g.arena.Get(n.Children[0])
	switch target.Kind {
	case NodeIdent:
		sym, ok := g.ctx.Lookup(target.Name)
		if !ok || sym.Kind != SymbolVar {
			g.ctx.Limitation(id, "assignment to unresolved name %s", target.Name)
			g.comment("assignment to unresolved %s omitted", target.Name)
			return
		}
		g.expr(n.Children[1])
		g.store(sym)

	case NodeIndex:
		g.expr(target.Children[0])
		g.push(Scalar) // element base pointer; the length is not needed
		g.expr(target.Children[1])
		g.push(Scalar)
		g.expr(n.Children[1])
		g.pop(Scalar, 2)
		g.pop(Scalar, 1)
		g.ins("str x0, [x1, x2, lsl #3]")

	default:
		g.ctx.Limitation(id, "assignment to %s", target.Kind)
		g.comment("assignment to %s omitted", target.Kind)
	}
}

// ifChain lowers (if c1 b1 c2 b2 ... else?) as a cascade of test/skip label
// pairs that share one join label.
func (g *arm64Gen) ifChain(n Node) {
	join := g.ctx.NewLabel()
	i := 0
	for ; i+1 < len(n.Children); i += 2 {
		next := g.ctx.NewLabel()
		g.expr(n.Children[i])
		g.ins("cbz x0, %s", g.labelName(next))
		g.stmt(n.Children[i+1])
		g.ins("b %s", g.labelName(join))
		g.label(next)
	}
	if i < len(n.Children) {
		g.stmt(n.Children[i])
	}
	g.label(join)
}

func (g *arm64Gen) whileLoop(n Node) {
	start := g.ctx.NewLabel()
	end := g.ctx.NewLabel()

	g.label(start)
	g.expr(n.Children[0])
	g.ins("cbz x0, %s", g.labelName(end))
	saved := g.ctx.EnterLoop(end, start)
	g.stmt(n.Children[1])
	g.ctx.LeaveLoop(saved)
	g.ins("b %s", g.labelName(start))
	g.label(end)
}

// forLoop lowers (for i a b body): i runs from a to b inclusive. Both bounds
// are evaluated once, before i is in scope, and the limit is kept in a hidden
// slot. continue jumps to the increment.
func (g *arm64Gen) forLoop(n Node) {
	g.ctx.EnterScope()
	counterSlot := g.ctx.HiddenLocal(TypeInteger)
	limit := g.ctx.HiddenLocal(TypeInteger)
	g.expr(n.Children[0])
	g.storeSlot("x0", counterSlot)
	g.expr(n.Children[1])
	g.storeSlot("x0", limit)
	counter := g.ctx.BindLocal(n.Name, TypeInteger, counterSlot)

	start := g.ctx.NewLabel()
	step := g.ctx.NewLabel()
	end := g.ctx.NewLabel()

	g.label(start)
	g.loadSlot("x0", counter.Slot)
	g.loadSlot("x1", limit)
	g.ins("cmp x0, x1")
	g.ins("b.gt %s", g.labelName(end))
	saved := g.ctx.EnterLoop(end, step)
	g.stmt(n.Children[2])
	g.ctx.LeaveLoop(saved)
	g.label(step)
	g.loadSlot("x0", counter.Slot)
	g.ins("add x0, x0, #1")
	g.storeSlot("x0", counter.Slot)
	g.ins("b %s", g.labelName(start))
	g.label(end)
	g.ctx.LeaveScope()
}

// Expressions

// expr evaluates id into x0 (and x1 for fat values).
func (g *arm64Gen) expr(id NodeID) Repr {
	n := g.arena.Get(id)
	switch n.Kind {
	case NodeInteger:
		g.loadImm("x0", n.Integer)
		return Scalar

	case NodeDecimal:
		g.loadImm("x0", int64(math.Float64bits(n.Decimal)))
		return Scalar

	case NodeBoolean:
		if n.Boolean {
			g.ins("mov x0, #1")
		} else {
			g.ins("mov x0, #0")
		}
		return Scalar

	case NodeString:
		lit := g.ctx.AddStringLiteral(n.Text)
		g.emitLiteral(lit)
		g.loadAddress("x0", "kw_"+lit.Label)
		g.loadImm("x1", int64(lit.Length))
		return Fat

	case NodeIdent:
		sym, ok := g.ctx.Lookup(n.Name)
		if !ok || sym.Kind != SymbolVar {
			g.ctx.Limitation(id, "unresolved name %s", n.Name)
			r := ReprOf(g.ctx.TypeOf(id))
			g.zero(r)
			return r
		}
		return g.load(sym)

	case NodeBinary:
		return g.binary(id, n)

	case NodeUnary:
		return g.unary(id, n)

	case NodeCall, NodePipe:
		return g.call(id)

	case NodeArray:
		return g.arrayLiteral(id, n)

	case NodeIndex:
		g.expr(n.Children[0])
		g.push(Scalar)
		g.expr(n.Children[1])
		g.pop(Scalar, 1)
		g.ins("ldr x0, [x1, x0, lsl #3]")
		return Scalar

	case NodeAssign:
		g.assign(id)
		g.zero(Scalar)
		return Scalar

	default:
		g.ctx.Limitation(id, "not an expression")
		g.comment("unsupported expression %s", n.Kind)
		g.zero(Scalar)
		return Scalar
	}
}

var arm64IntOps = map[string]string{"+": "add", "-": "sub", "*": "mul", "/": "sdiv"}
var arm64FloatOps = map[string]string{"+": "fadd", "-": "fsub", "*": "fmul", "/": "fdiv"}

var arm64Conds = map[string]string{"==": "eq", "!=": "ne", "<": "lt", "<=": "le", ">": "gt", ">=": "ge"}

// After fcmp, mi and ls are the ordered less-than conditions.
var arm64FloatConds = map[string]string{"==": "eq", "!=": "ne", "<": "mi", "<=": "ls", ">": "gt", ">=": "ge"}

func (g *arm64Gen) binary(id NodeID, n Node) Repr {
	left, right := n.Children[0], n.Children[1]
	lt, rt := g.ctx.TypeOf(left), g.ctx.TypeOf(right)

	if ReprOf(lt) == Fat || ReprOf(rt) == Fat {
		g.ctx.Limitation(id, "operator %s on %s and %s", n.Op, lt, rt)
		g.comment("unsupported %s on %s and %s", n.Op, lt, rt)
		g.zero(Scalar)
		return Scalar
	}

	if isLogicalOp(n.Op) {
		g.expr(left)
		g.push(Scalar)
		g.expr(right)
		g.pop(Scalar, 1)
		// Normalize both sides to 0/1 before combining bitwise.
		g.ins("cmp x1, #0")
		g.ins("cset x1, ne")
		g.ins("cmp x0, #0")
		g.ins("cset x0, ne")
		if n.Op == "and" {
			g.ins("and x0, x1, x0")
		} else {
			g.ins("orr x0, x1, x0")
		}
		return Scalar
	}

	if lt == TypeDecimal || rt == TypeDecimal {
		return g.decimalBinary(id, n, lt, rt)
	}

	// Left ends up in x1, right in x0.
	g.expr(left)
	g.push(Scalar)
	g.expr(right)
	g.pop(Scalar, 1)

	if op, ok := arm64IntOps[n.Op]; ok {
		g.ins("%s x0, x1, x0", op)
		return Scalar
	}
	if cond, ok := arm64Conds[n.Op]; ok {
		g.ins("cmp x1, x0")
		g.ins("cset x0, %s", cond)
		return Scalar
	}
	if n.Op == "%" {
		g.ins("sdiv x2, x1, x0")
		g.ins("msub x0, x2, x0, x1")
		return Scalar
	}

	g.ctx.Limitation(id, "operator %s", n.Op)
	g.comment("unsupported operator %s", n.Op)
	g.zero(Scalar)
	return Scalar
}

// decimalBinary works on bit patterns moved through d0/d1. Integer operands
// are converted first.
func (g *arm64Gen) decimalBinary(id NodeID, n Node, lt, rt Type) Repr {
	g.expr(n.Children[0])
	g.toDecimalBits(lt)
	g.push(Scalar)
	g.expr(n.Children[1])
	g.toDecimalBits(rt)
	g.pop(Scalar, 1)
	g.ins("fmov d0, x1")
	g.ins("fmov d1, x0")

	if op, ok := arm64FloatOps[n.Op]; ok {
		g.ins("%s d0, d0, d1", op)
		g.ins("fmov x0, d0")
		return Scalar
	}
	if cond, ok := arm64FloatConds[n.Op]; ok {
		g.ins("fcmp d0, d1")
		g.ins("cset x0, %s", cond)
		return Scalar
	}

	g.ctx.Limitation(id, "operator %s on decimals", n.Op)
	g.comment("unsupported decimal operator %s", n.Op)
	g.zero(Scalar)
	return Scalar
}

func (g *arm64Gen) toDecimalBits(t Type) {
	if t != TypeDecimal {
		g.ins("scvtf d0, x0")
		g.ins("fmov x0, d0")
	}
}

func (g *arm64Gen) unary(id NodeID, n Node) Repr {
	operandType := g.ctx.TypeOf(n.Children[0])
	r := g.expr(n.Children[0])
	switch {
	case n.Op == "not":
		g.ins("cmp x0, #0")
		g.ins("cset x0, eq")
		return Scalar
	case n.Op == "-" && operandType == TypeDecimal:
		g.ins("fmov d0, x0")
		g.ins("fneg d0, d0")
		g.ins("fmov x0, d0")
		return Scalar
	case n.Op == "-" && r == Scalar:
		g.ins("neg x0, x0")
		return Scalar
	}
	g.ctx.Limitation(id, "unary operator %s on %s", n.Op, operandType)
	g.comment("unsupported unary %s", n.Op)
	g.zero(Scalar)
	return Scalar
}

// call lowers calls and pipes. Built-ins are matched by name first.
func (g *arm64Gen) call(id NodeID) Repr {
	callee, args := g.ctx.CallParts(id)
	switch callee {
	case "print":
		for _, arg := range args {
			g.print(arg)
		}
		return Scalar
	case "length":
		if len(args) != 1 || g.expr(args[0]) != Fat {
			g.ctx.Limitation(id, "length needs one text or array argument")
			g.zero(Scalar)
			return Scalar
		}
		g.ins("mov x0, x1")
		return Scalar
	}

	sym, ok := g.ctx.Lookup(callee)
	if !ok || sym.Kind != SymbolFunc {
		g.ctx.Limitation(id, "call to unresolved function %q", callee)
		g.comment("call to unresolved %s omitted", callee)
		g.zero(Scalar)
		return Scalar
	}

	words := 0
	for i, arg := range args {
		w := ReprOf(g.ctx.TypeOf(arg)).Words()
		if words+w > 8 {
			g.ctx.Limitation(id, "call to %s passes more than eight argument words", callee)
			args = args[:i]
			break
		}
		words += w
	}

	reprs := make([]Repr, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		reprs[i] = g.expr(args[i])
		g.push(reprs[i])
	}
	reg := 0
	for _, r := range reprs {
		g.pop(r, reg)
		reg += r.Words()
	}
	g.ins("bl %s", g.sym(sym.Storage))
	return ReprOf(sym.Result)
}

func (g *arm64Gen) print(arg NodeID) {
	typ := g.ctx.TypeOf(arg)
	switch typ {
	case TypeText:
		if g.expr(arg) != Fat {
			g.ins("mov x1, #0")
		}
		g.ins("bl %s", g.sym(g.printTextHelper()))
	case TypeBoolean:
		g.expr(arg)
		g.ins("bl %s", g.sym(g.printBoolHelper()))
	case TypeDecimal:
		g.expr(arg)
		g.ins("bl %s", g.sym(g.printDecimalHelper()))
	case TypeArray, TypeVoid:
		g.ctx.Limitation(arg, "print of %s value", typ)
		g.comment("print of %s omitted", typ)
	default:
		g.expr(arg)
		g.ins("bl %s", g.sym(g.printIntHelper()))
	}
}

// arrayLiteral stores the elements into storage reserved for this literal
// and yields (address, count).
func (g *arm64Gen) arrayLiteral(id NodeID, n Node) Repr {
	storage := fmt.Sprintf("kw_arr%d", g.arrays)
	g.arrays++
	size := len(n.Children) * 8
	if size == 0 {
		size = 8
	}
	g.reserveBSS(storage, size)

	for i, elem := range n.Children {
		if g.expr(elem) == Fat {
			g.ctx.Limitation(elem, "array element of type %s", g.ctx.TypeOf(elem))
			continue
		}
		g.loadAddress("x9", storage)
		if off := i * 8; off <= 32760 {
			g.ins("str x0, [x9, #%d]", off)
		} else {
			g.loadImm("x10", int64(off))
			g.ins("str x0, [x9, x10]")
		}
	}
	g.loadAddress("x0", storage)
	g.loadImm("x1", int64(len(n.Children)))
	return Fat
}
