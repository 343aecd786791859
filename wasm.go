package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/glog"
)

// WebAssembly text generator
//
// Every value is one or two i64 cells: scalars are one cell, fat values are
// (offset, length). Locals are numbered by the context's slot counter, so
// parameters come first, then one scratch cell, then declared locals and
// loop counters. Text and array contents live in linear memory; a single
// data segment at offset 0 holds the literal table and reserved array space.

const wasmPageSize = 65536

// GenerateWasm compiles the tree rooted at root to a WebAssembly text module.
// The text is always complete; the error is nil or lists constructs that were
// replaced by placeholders.
func GenerateWasm(arena *Arena, root NodeID, opts Options) (string, error) {
	g := &wasmGen{
		ctx:   NewGenContext(arena, TargetWasm),
		arena: arena,
	}
	g.generate(root)
	return g.assemble(), g.ctx.Diagnostics()
}

type watBuilder struct {
	sb     strings.Builder
	indent int
}

func (w *watBuilder) line(format string, args ...interface{}) {
	w.sb.WriteString(strings.Repeat("  ", w.indent))
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteString("\n")
}

func (w *watBuilder) String() string {
	return w.sb.String()
}

type wasmGen struct {
	ctx   *GenContext
	arena *Arena

	globals watBuilder
	funcs   watBuilder
	helpers watBuilder
	w       *watBuilder // body of the function being generated

	scratch  int // scratch cell of the current function
	userMain *Symbol
}

func (g *wasmGen) assemble() string {
	var w watBuilder
	w.line("(module")
	w.indent++
	w.line(`(import "env" "print_i64" (func $print_i64 (param i64)))`)
	w.line(`(import "env" "print_str" (func $print_str (param i32 i32)))`)
	pages := (g.ctx.DataSize() + wasmPageSize - 1) / wasmPageSize
	if pages == 0 {
		pages = 1
	}
	w.line(`(memory (export "memory") %d)`, pages)
	w.sb.WriteString(g.globals.String())
	w.sb.WriteString(g.funcs.String())
	w.sb.WriteString(g.helpers.String())
	if size := g.ctx.DataSize(); size > 0 {
		w.line(`(data (i32.const 0) "%s")`, wasmEscape(g.dataSegment()))
	}
	w.indent--
	w.line(")")
	return w.String()
}

// dataSegment lays out the literal table over zeroed memory. Reserved array
// space stays zero.
func (g *wasmGen) dataSegment() []byte {
	data := make([]byte, g.ctx.DataSize())
	for _, lit := range g.ctx.Literals() {
		copy(data[lit.Offset:], lit.Bytes)
	}
	return data
}

// wasmEscape renders bytes for a WebAssembly text string.
func wasmEscape(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if c >= 0x20 && c <= 0x7e && c != '\\' && c != '"' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "\\%02x", c)
	}
	return b.String()
}

func (g *wasmGen) line(format string, args ...interface{}) {
	g.w.line(format, args...)
}

func wasmLabel(l Label) string {
	return "$" + l.String()
}

// Module structure

func (g *wasmGen) generate(root NodeID) {
	stmts := topLevelStatements(g.arena, root)

	for _, id := range stmts {
		n := g.arena.At(id)
		switch n.Kind {
		case NodeFunc:
			sym := g.ctx.DeclareFunc(n, "$fn_"+mangleName(n.Name))
			if n.Name == "main" && len(n.Params) == 0 {
				g.userMain = sym
			}
		case NodeClass:
			g.ctx.DeclareClass(n)
		case NodeVar:
			storage := "$g_" + mangleName(n.Name)
			typ := n.Type
			if typ == TypeUnknown && len(n.Children) > 0 {
				typ = g.ctx.TypeOf(n.Children[0])
			}
			g.ctx.DeclareGlobal(n.Name, typ, storage)
			g.globals.indent = 1
			g.globals.line("(global %s (mut i64) (i64.const 0))", storage)
			if ReprOf(typ) == Fat {
				g.globals.line("(global %s_len (mut i64) (i64.const 0))", storage)
			}
		}
	}

	for _, id := range stmts {
		if g.arena.At(id).Kind == NodeFunc {
			g.function(id)
		}
	}
	g.entry(stmts)
}

// beginBody starts collecting a function body. Callers reserve the scratch
// cell right after declaring the parameters.
func (g *wasmGen) beginBody(name string, result Type) {
	g.ctx.BeginFunction(name, result)
	g.w = &watBuilder{indent: 2}
}

// endBody writes the finished function to the functions section.
func (g *wasmGen) endBody(header string, paramWords int) {
	g.funcs.indent = 1
	g.funcs.line("%s", header)
	if locals := g.ctx.SlotsUsed() - paramWords; locals > 0 {
		g.funcs.line("  (local%s)", strings.Repeat(" i64", locals))
	}
	g.funcs.sb.WriteString(g.w.String())
	g.funcs.line(")")
	g.w = nil
	g.ctx.EndFunction()
}

func (g *wasmGen) function(id NodeID) {
	n := g.arena.Get(id)
	sym, _ := g.ctx.Lookup(n.Name)
	g.beginBody(n.Name, n.Result)

	var header strings.Builder
	header.WriteString("(func " + sym.Storage)
	if sym != g.userMain {
		fmt.Fprintf(&header, ` (export "%s")`, wasmEscape([]byte(n.Name)))
	}
	paramWords := 0
	for _, p := range n.Params {
		g.ctx.DeclareLocal(p.Name, p.Type)
		for w := 0; w < ReprOf(p.Type).Words(); w++ {
			header.WriteString(" (param i64)")
			paramWords++
		}
	}
	if hasResult(n.Result) {
		header.WriteString(" (result i64)")
	}
	g.scratch = g.ctx.HiddenLocal(TypeInteger)

	g.stmt(n.Children[0])
	g.defaultReturn(n.Result)
	if glog.V(5) {
		glog.V(5).Infof("wasm: %s params=%d locals=%d", n.Name, paramWords, g.ctx.SlotsUsed()-paramWords)
	}
	g.endBody(header.String(), paramWords)
}

// defaultReturn leaves the zero value of result on the stack for a body
// that falls off its end.
func (g *wasmGen) defaultReturn(result Type) {
	if hasResult(result) {
		g.line("i64.const 0")
	}
}

// entry emits the exported main: the top-level statements in order, then a
// call to the program's own main function if it declares one.
func (g *wasmGen) entry(stmts []NodeID) {
	g.beginBody("main", TypeVoid)
	g.scratch = g.ctx.HiddenLocal(TypeInteger)

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
		g.line("call %s", g.userMain.Storage)
		if hasResult(g.userMain.Result) {
			g.line("drop")
		}
	}
	g.endBody(`(func $main (export "main")`, 0)
}

func (g *wasmGen) initVar(id NodeID, sym *Symbol) {
	n := g.arena.At(id)
	if len(n.Children) > 0 {
		g.valueAs(n.Children[0], sym.Type)
	} else {
		g.zero(ReprOf(sym.Type))
	}
	g.store(sym)
}

// Cells

func (g *wasmGen) zero(r Repr) {
	for i := 0; i < r.Words(); i++ {
		g.line("i64.const 0")
	}
}

// discard drops cells left by an expression whose value is unused.
func (g *wasmGen) discard(cells int) {
	for i := 0; i < cells; i++ {
		g.line("drop")
	}
}

// hasResult reports whether a function returning t declares a result cell.
func hasResult(t Type) bool {
	return t != TypeVoid && t != TypeUnknown
}

func (g *wasmGen) load(sym *Symbol) Repr {
	r := ReprOf(sym.Type)
	if sym.Global {
		g.line("global.get %s", sym.Storage)
		if r == Fat {
			g.line("global.get %s_len", sym.Storage)
		}
		return r
	}
	g.line("local.get %d", sym.Slot)
	if r == Fat {
		g.line("local.get %d", sym.Slot+1)
	}
	return r
}

// store pops a value into sym; the length cell of a fat value is on top.
func (g *wasmGen) store(sym *Symbol) {
	r := ReprOf(sym.Type)
	if sym.Global {
		if r == Fat {
			g.line("global.set %s_len", sym.Storage)
		}
		g.line("global.set %s", sym.Storage)
		return
	}
	if r == Fat {
		g.line("local.set %d", sym.Slot+1)
	}
	g.line("local.set %d", sym.Slot)
}

// pack folds a fat (offset, length) pair into one cell for a function result.
func (g *wasmGen) pack() {
	g.line("local.set %d", g.scratch)
	g.line("i64.const 32")
	g.line("i64.shl")
	g.line("local.get %d", g.scratch)
	g.line("i64.const 4294967295")
	g.line("i64.and")
	g.line("i64.or")
}

// unpack splits a packed result cell back into (offset, length).
func (g *wasmGen) unpack() {
	g.line("local.tee %d", g.scratch)
	g.line("i64.const 32")
	g.line("i64.shr_u")
	g.line("local.get %d", g.scratch)
	g.line("i64.const 4294967295")
	g.line("i64.and")
}

// Statements

func (g *wasmGen) stmt(id NodeID) {
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
		if len(n.Children) > 0 {
			g.valueAs(n.Children[0], typ)
		} else {
			g.zero(ReprOf(typ))
		}
		g.store(g.ctx.DeclareLocal(n.Name, typ))

	case NodeAssign:
		g.assign(id)

	case NodeIf:
		g.ifChain(n.Children)

	case NodeWhile:
		g.whileLoop(n)

	case NodeFor:
		g.forLoop(n)

	case NodeReturn:
		result := g.ctx.ReturnType()
		switch {
		case !hasResult(result):
			if len(n.Children) > 0 {
				g.discard(g.expr(n.Children[0]))
			}
		case len(n.Children) > 0:
			if g.value(n.Children[0]) == Fat {
				g.pack()
			}
		default:
			g.line("i64.const 0")
		}
		g.line("return")

	case NodeBreak, NodeContinue:
		brk, cont, ok := g.ctx.LoopTargets()
		if !ok {
			g.ctx.Limitation(id, "%s outside of a loop", strings.ToLower(strings.TrimPrefix(string(n.Kind), "Node")))
			g.line("nop")
			return
		}
		if n.Kind == NodeBreak {
			g.line("br %s", wasmLabel(brk))
		} else {
			g.line("br %s", wasmLabel(cont))
		}

	case NodeClass:
		g.ctx.DeclareClass(&n)
		g.line(";; class %s: %d fields", n.Name, len(n.Fields))

	case NodeFunc:
		g.ctx.Limitation(id, "nested function %s", n.Name)
		g.line("nop")

	case NodeProgram:
		g.ctx.Limitation(id, "program nested inside a statement")
		g.line("nop")

	case NodeInteger, NodeDecimal, NodeBoolean, NodeString, NodeIdent,
		NodeBinary, NodeUnary, NodeCall, NodePipe, NodeArray, NodeIndex:
		g.discard(g.expr(id))

	default:
		g.ctx.Limitation(id, "unknown statement")
		g.line("nop")
	}
}

func (g *wasmGen) assign(id NodeID) {
	n := g.arena.Get(id)
	target := g.arena.Get(n.Children[0])
	switch target.Kind {
	case NodeIdent:
		sym, ok := g.ctx.Lookup(target.Name)
		if !ok || sym.Kind != SymbolVar {
			g.ctx.Limitation(id, "assignment to unresolved name %s", target.Name)
			g.line("nop")
			return
		}
		g.valueAs(n.Children[1], sym.Type)
		g.store(sym)

	case NodeIndex:
		g.elementAddress(target)
		g.valueAs(n.Children[1], TypeInteger)
		g.line("i64.store")

	default:
		g.ctx.Limitation(id, "assignment to %s", target.Kind)
		g.line("nop")
	}
}

// condition evaluates id and leaves an i32 truth value for if/br_if.
func (g *wasmGen) condition(id NodeID) {
	g.value(id)
	g.line("i64.const 0")
	g.line("i64.ne")
}

// ifChain lowers [c1 b1 c2 b2 ... else?] as nested if/else blocks.
func (g *wasmGen) ifChain(children []NodeID) {
	if len(children) == 0 {
		return
	}
	if len(children) == 1 {
		g.stmt(children[0])
		return
	}
	g.condition(children[0])
	g.line("if")
	g.w.indent++
	g.stmt(children[1])
	g.w.indent--
	if len(children) > 2 {
		g.line("else")
		g.w.indent++
		g.ifChain(children[2:])
		g.w.indent--
	}
	g.line("end")
}

func (g *wasmGen) whileLoop(n Node) {
	brk := g.ctx.NewLabel()
	top := g.ctx.NewLabel()

	g.line("block %s", wasmLabel(brk))
	g.w.indent++
	g.line("loop %s", wasmLabel(top))
	g.w.indent++
	g.condition(n.Children[0])
	g.line("i32.eqz")
	g.line("br_if %s", wasmLabel(brk))
	saved := g.ctx.EnterLoop(brk, top)
	g.stmt(n.Children[1])
	g.ctx.LeaveLoop(saved)
	g.line("br %s", wasmLabel(top))
	g.w.indent--
	g.line("end")
	g.w.indent--
	g.line("end")
}

// forLoop lowers (for i a b body) with an inclusive upper bound. Both bounds
// are evaluated once, before i is in scope. The body sits in its own block so
// that continue reaches the step.
func (g *wasmGen) forLoop(n Node) {
	g.ctx.EnterScope()
	counterSlot := g.ctx.HiddenLocal(TypeInteger)
	limit := g.ctx.HiddenLocal(TypeInteger)
	g.valueAs(n.Children[0], TypeInteger)
	g.line("local.set %d", counterSlot)
	g.valueAs(n.Children[1], TypeInteger)
	g.line("local.set %d", limit)
	counter := g.ctx.BindLocal(n.Name, TypeInteger, counterSlot)

	brk := g.ctx.NewLabel()
	top := g.ctx.NewLabel()
	step := g.ctx.NewLabel()

	g.line("block %s", wasmLabel(brk))
	g.w.indent++
	g.line("loop %s", wasmLabel(top))
	g.w.indent++
	g.line("local.get %d", counter.Slot)
	g.line("local.get %d", limit)
	g.line("i64.gt_s")
	g.line("br_if %s", wasmLabel(brk))
	g.line("block %s", wasmLabel(step))
	g.w.indent++
	saved := g.ctx.EnterLoop(brk, step)
	g.stmt(n.Children[2])
	g.ctx.LeaveLoop(saved)
	g.w.indent--
	g.line("end")
	g.line("local.get %d", counter.Slot)
	g.line("i64.const 1")
	g.line("i64.add")
	g.line("local.set %d", counter.Slot)
	g.line("br %s", wasmLabel(top))
	g.w.indent--
	g.line("end")
	g.w.indent--
	g.line("end")
	g.ctx.LeaveScope()
}

// Expressions

// value evaluates id where a value is required. Expressions that produce
// nothing (calls to void functions) yield a zero cell.
func (g *wasmGen) value(id NodeID) Repr {
	switch g.expr(id) {
	case 0:
		g.line("i64.const 0")
		return Scalar
	case 2:
		return Fat
	default:
		return Scalar
	}
}

// valueAs evaluates id into the cells of a typ value. A value of the other
// representation is replaced by zero cells.
func (g *wasmGen) valueAs(id NodeID, typ Type) {
	got, want := g.value(id), ReprOf(typ)
	if got == want {
		return
	}
	g.ctx.Limitation(id, "%s value where %s is expected", got, typ)
	g.discard(got.Words())
	g.zero(want)
}

// expr evaluates id and returns the number of cells it left on the stack.
func (g *wasmGen) expr(id NodeID) int {
	n := g.arena.Get(id)
	switch n.Kind {
	case NodeInteger:
		g.line("i64.const %d", n.Integer)
		return 1

	case NodeDecimal:
		g.line("i64.const %d", int64(math.Float64bits(n.Decimal)))
		return 1

	case NodeBoolean:
		if n.Boolean {
			g.line("i64.const 1")
		} else {
			g.line("i64.const 0")
		}
		return 1

	case NodeString:
		lit := g.ctx.AddStringLiteral(n.Text)
		g.line("i64.const %d", lit.Offset)
		g.line("i64.const %d", lit.Length)
		return 2

	case NodeIdent:
		sym, ok := g.ctx.Lookup(n.Name)
		if !ok || sym.Kind != SymbolVar {
			g.ctx.Limitation(id, "unresolved name %s", n.Name)
			r := ReprOf(g.ctx.TypeOf(id))
			g.zero(r)
			return r.Words()
		}
		return g.load(sym).Words()

	case NodeBinary:
		g.binary(id, n)
		return 1

	case NodeUnary:
		g.unary(id, n)
		return 1

	case NodeCall, NodePipe:
		return g.call(id)

	case NodeArray:
		g.arrayLiteral(n)
		return 2

	case NodeIndex:
		g.elementAddress(n)
		g.line("i64.load")
		return 1

	case NodeAssign:
		g.assign(id)
		return 0

	default:
		g.ctx.Limitation(id, "not an expression")
		g.line("nop")
		g.line("i64.const 0")
		return 1
	}
}

var wasmIntOps = map[string]string{
	"+": "i64.add", "-": "i64.sub", "*": "i64.mul", "/": "i64.div_s", "%": "i64.rem_s",
	"==": "i64.eq", "!=": "i64.ne", "<": "i64.lt_s", "<=": "i64.le_s", ">": "i64.gt_s", ">=": "i64.ge_s",
}

var wasmFloatOps = map[string]string{
	"+": "f64.add", "-": "f64.sub", "*": "f64.mul", "/": "f64.div",
	"==": "f64.eq", "!=": "f64.ne", "<": "f64.lt", "<=": "f64.le", ">": "f64.gt", ">=": "f64.ge",
}

func (g *wasmGen) binary(id NodeID, n Node) {
	left, right := n.Children[0], n.Children[1]
	lt, rt := g.ctx.TypeOf(left), g.ctx.TypeOf(right)

	if ReprOf(lt) == Fat || ReprOf(rt) == Fat {
		g.ctx.Limitation(id, "operator %s on %s and %s", n.Op, lt, rt)
		g.line("nop")
		g.line("i64.const 0")
		return
	}

	if isLogicalOp(n.Op) {
		g.truthValue(left)
		g.truthValue(right)
		if n.Op == "and" {
			g.line("i64.and")
		} else {
			g.line("i64.or")
		}
		return
	}

	if lt == TypeDecimal || rt == TypeDecimal {
		op, ok := wasmFloatOps[n.Op]
		if !ok {
			g.ctx.Limitation(id, "operator %s on decimals", n.Op)
			g.line("nop")
			g.line("i64.const 0")
			return
		}
		g.value(left)
		g.toFloat(lt)
		g.value(right)
		g.toFloat(rt)
		g.line("%s", op)
		if isComparisonOp(n.Op) {
			g.line("i64.extend_i32_u")
		} else {
			g.line("i64.reinterpret_f64")
		}
		return
	}

	op, ok := wasmIntOps[n.Op]
	if !ok {
		g.ctx.Limitation(id, "operator %s", n.Op)
		g.line("nop")
		g.line("i64.const 0")
		return
	}
	g.value(left)
	g.value(right)
	g.line("%s", op)
	if isComparisonOp(n.Op) {
		g.line("i64.extend_i32_u")
	}
}

// truthValue evaluates id and normalizes it to 0 or 1.
func (g *wasmGen) truthValue(id NodeID) {
	g.condition(id)
	g.line("i64.extend_i32_u")
}

func (g *wasmGen) toFloat(t Type) {
	if t == TypeDecimal {
		g.line("f64.reinterpret_i64")
	} else {
		g.line("f64.convert_i64_s")
	}
}

func (g *wasmGen) unary(id NodeID, n Node) {
	operand := n.Children[0]
	t := g.ctx.TypeOf(operand)
	switch {
	case n.Op == "not":
		g.value(operand)
		g.line("i64.eqz")
		g.line("i64.extend_i32_u")
	case n.Op == "-" && t == TypeDecimal:
		g.value(operand)
		g.line("f64.reinterpret_i64")
		g.line("f64.neg")
		g.line("i64.reinterpret_f64")
	case n.Op == "-" && ReprOf(t) == Scalar:
		g.line("i64.const 0")
		g.value(operand)
		g.line("i64.sub")
	default:
		g.ctx.Limitation(id, "unary operator %s on %s", n.Op, t)
		g.line("nop")
		g.line("i64.const 0")
	}
}

// call lowers calls and pipes and returns the number of cells left.
func (g *wasmGen) call(id NodeID) int {
	callee, args := g.ctx.CallParts(id)
	switch callee {
	case "print":
		for _, arg := range args {
			g.print(arg)
		}
		return 0
	case "length":
		if len(args) != 1 || g.ctx.TypeOf(args[0]) != TypeText && g.ctx.TypeOf(args[0]) != TypeArray {
			g.ctx.Limitation(id, "length needs one text or array argument")
			g.line("i64.const 0")
			return 1
		}
		g.value(args[0])
		g.line("local.set %d", g.scratch)
		g.line("drop")
		g.line("local.get %d", g.scratch)
		return 1
	}

	sym, ok := g.ctx.Lookup(callee)
	if !ok || sym.Kind != SymbolFunc {
		g.ctx.Limitation(id, "call to unresolved function %q", callee)
		g.line("nop")
		return 0
	}
	if len(args) != len(sym.Params) {
		g.ctx.Limitation(id, "call to %s with %d arguments, want %d", callee, len(args), len(sym.Params))
		g.line("nop")
		return 0
	}
	for i, arg := range args {
		g.valueAs(arg, sym.Params[i].Type)
	}
	g.line("call %s", sym.Storage)
	if !hasResult(sym.Result) {
		return 0
	}
	if ReprOf(sym.Result) == Fat {
		g.unpack()
		return 2
	}
	return 1
}

func (g *wasmGen) print(arg NodeID) {
	t := g.ctx.TypeOf(arg)
	switch t {
	case TypeText:
		if n := g.arena.At(arg); n.Kind == NodeString {
			lit := g.ctx.AddStringLiteral(n.Text)
			g.line("i32.const %d", lit.Offset)
			g.line("i32.const %d", lit.Length)
		} else {
			if g.value(arg) != Fat {
				g.line("i64.const 0")
			}
			g.line("local.set %d", g.scratch)
			g.line("i32.wrap_i64")
			g.line("local.get %d", g.scratch)
			g.line("i32.wrap_i64")
		}
		g.line("call $print_str")
	case TypeBoolean:
		g.value(arg)
		g.line("call %s", g.printBoolHelper())
	case TypeDecimal:
		g.ctx.Limitation(arg, "decimal printed as its integer part")
		g.value(arg)
		g.line("f64.reinterpret_i64")
		g.line("i64.trunc_sat_f64_s")
		g.line("call $print_i64")
	case TypeArray, TypeVoid:
		g.ctx.Limitation(arg, "print of %s value", t)
		g.discard(g.expr(arg))
		g.line("nop")
	default:
		g.value(arg)
		g.line("call $print_i64")
	}
}

// printBoolHelper emits $print_bool on first use. It prints one of two
// literals added to the data segment with it.
func (g *wasmGen) printBoolHelper() string {
	const name = "$print_bool"
	g.ctx.EnsureHelper(name, func() {
		yes := g.ctx.AddStringLiteral("true")
		no := g.ctx.AddStringLiteral("false")
		h := &g.helpers
		h.indent = 1
		h.line("(func %s (param i64)", name)
		h.line("  local.get 0")
		h.line("  i64.eqz")
		h.line("  if")
		h.line("    i32.const %d", no.Offset)
		h.line("    i32.const %d", no.Length)
		h.line("  else")
		h.line("    i32.const %d", yes.Offset)
		h.line("    i32.const %d", yes.Length)
		h.line("  end")
		h.line("  call $print_str")
		h.line(")")
	})
	return name
}

// arrayLiteral stores the elements into data space reserved for this
// literal and leaves (offset, count).
func (g *wasmGen) arrayLiteral(n Node) {
	base := g.ctx.ReserveData(8*len(n.Children), 8)
	for i, elem := range n.Children {
		g.line("i32.const %d", base+8*i)
		if g.value(elem) == Fat {
			g.ctx.Limitation(elem, "array element of type %s", g.ctx.TypeOf(elem))
			g.line("drop")
			g.line("drop")
			g.line("i64.const 0")
		}
		g.line("i64.store")
	}
	g.line("i64.const %d", base)
	g.line("i64.const %d", len(n.Children))
}

// elementAddress leaves the i32 address of array[index] for an index node.
func (g *wasmGen) elementAddress(n Node) {
	if g.value(n.Children[0]) == Fat {
		g.line("drop")
	}
	g.line("i32.wrap_i64")
	g.value(n.Children[1])
	g.line("i32.wrap_i64")
	g.line("i32.const 8")
	g.line("i32.mul")
	g.line("i32.add")
}
