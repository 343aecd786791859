package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
)

// Label is a branch target minted by GenContext.NewLabel. Labels are unique
// within one compilation and never reused.
type Label int

func (l Label) String() string {
	return "L" + strconv.Itoa(int(l))
}

// SymbolKind tells variables, functions and classes apart.
type SymbolKind int

const (
	SymbolVar SymbolKind = iota
	SymbolFunc
	SymbolClass
)

// Symbol is a named storage location or declaration.
type Symbol struct {
	Name string
	Kind SymbolKind
	Type Type
	// Global symbols live in static storage named Storage. Locals occupy
	// Repr.Words() consecutive slots starting at Slot.
	Global  bool
	Slot    int
	Storage string
	// SymbolFunc:
	Params []Param
	Result Type
	// SymbolClass:
	Fields []Param
}

// Scope is one lexical symbol table. The parent pointer is a back-reference
// only; scopes are discarded when left.
type Scope struct {
	parent  *Scope
	symbols map[string]*Symbol
}

func newScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]*Symbol)}
}

// Lookup walks outward through enclosing scopes.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if sym, ok := scope.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

func (s *Scope) declare(sym *Symbol) {
	s.symbols[sym.Name] = sym
}

// StringLiteral is one entry of the literal table.
type StringLiteral struct {
	Index  int
	Label  string // data label on the AArch64 target
	Offset int    // byte offset in the WebAssembly data segment
	Bytes  []byte // decoded contents
	Length int    // len(Bytes)
}

// dataReservation is zero-initialized space in the WebAssembly data segment.
type dataReservation struct {
	Offset int
	Size   int
}

// LimitationError records a construct a backend could not lower. Output is
// still produced; the construct is replaced by an inert placeholder.
type LimitationError struct {
	Target  string
	Kind    NodeKind
	Message string
}

func (e *LimitationError) Error() string {
	return fmt.Sprintf("%s: unsupported %s: %s", e.Target, e.Kind, e.Message)
}

// funcState is the per-function part of the context.
type funcState struct {
	name     string
	result   Type
	nextSlot int
	ret      Label
	brk      Label
	cont     Label
	inLoop   bool
}

// GenContext is the mutable state of one code generation pass. Nothing in it
// is shared between compilations.
type GenContext struct {
	arena  *Arena
	target string

	labels       int
	literals     []StringLiteral
	reservations []dataReservation
	dataSize     int

	globals *Scope
	scope   *Scope
	helpers map[string]bool
	fn      *funcState

	diags *multierror.Error
}

func NewGenContext(arena *Arena, target string) *GenContext {
	globals := newScope(nil)
	return &GenContext{
		arena:   arena,
		target:  target,
		globals: globals,
		scope:   globals,
		helpers: make(map[string]bool),
	}
}

// NewLabel returns a fresh label.
func (c *GenContext) NewLabel() Label {
	l := Label(c.labels)
	c.labels++
	return l
}

// EnterScope pushes a new innermost scope.
func (c *GenContext) EnterScope() *Scope {
	c.scope = newScope(c.scope)
	return c.scope
}

// LeaveScope pops the innermost scope.
func (c *GenContext) LeaveScope() {
	assertf(c.scope.parent != nil, "cannot leave the global scope")
	c.scope = c.scope.parent
}

// Lookup resolves name from the innermost scope outward.
func (c *GenContext) Lookup(name string) (*Symbol, bool) {
	return c.scope.Lookup(name)
}

// DeclareGlobal declares a variable in static storage.
func (c *GenContext) DeclareGlobal(name string, typ Type, storage string) *Symbol {
	sym := &Symbol{Name: name, Kind: SymbolVar, Type: typ, Global: true, Storage: storage}
	c.globals.declare(sym)
	return sym
}

// DeclareLocal declares a variable in the current scope and assigns it the
// next free local slots of the current function.
func (c *GenContext) DeclareLocal(name string, typ Type) *Symbol {
	sym := &Symbol{Name: name, Kind: SymbolVar, Type: typ, Slot: c.allocSlots(typ)}
	c.scope.declare(sym)
	return sym
}

// HiddenLocal reserves slots that no source name refers to.
func (c *GenContext) HiddenLocal(typ Type) int {
	return c.allocSlots(typ)
}

// BindLocal names slots reserved earlier with HiddenLocal. Until then,
// lookups of name resolve in the enclosing scopes.
func (c *GenContext) BindLocal(name string, typ Type, slot int) *Symbol {
	assertf(c.fn != nil && slot+ReprOf(typ).Words() <= c.fn.nextSlot, "binding %s to unreserved slot %d", name, slot)
	sym := &Symbol{Name: name, Kind: SymbolVar, Type: typ, Slot: slot}
	c.scope.declare(sym)
	return sym
}

func (c *GenContext) allocSlots(typ Type) int {
	assertf(c.fn != nil, "local declared outside of a function")
	slot := c.fn.nextSlot
	c.fn.nextSlot += ReprOf(typ).Words()
	return slot
}

// DeclareFunc records a function signature in the global scope.
func (c *GenContext) DeclareFunc(n *Node, storage string) *Symbol {
	sym := &Symbol{
		Name:    n.Name,
		Kind:    SymbolFunc,
		Type:    n.Result,
		Global:  true,
		Storage: storage,
		Params:  n.Params,
		Result:  n.Result,
	}
	c.globals.declare(sym)
	return sym
}

// DeclareClass records a class and its fields in the current scope.
func (c *GenContext) DeclareClass(n *Node) *Symbol {
	sym := &Symbol{Name: n.Name, Kind: SymbolClass, Type: Type(n.Name), Fields: n.Fields}
	c.scope.declare(sym)
	return sym
}

// BeginFunction starts a function body: a fresh slot counter, return label
// and scope.
func (c *GenContext) BeginFunction(name string, result Type) {
	c.fn = &funcState{name: name, result: result, ret: c.NewLabel()}
	c.EnterScope()
}

func (c *GenContext) EndFunction() {
	c.LeaveScope()
	c.fn = nil
}

// ReturnType is the declared result type of the function being generated.
func (c *GenContext) ReturnType() Type {
	if c.fn == nil {
		return TypeVoid
	}
	return c.fn.result
}

// ReturnLabel is the shared epilogue label of the current function.
func (c *GenContext) ReturnLabel() Label {
	return c.fn.ret
}

// SlotsUsed is the number of local slots allocated so far in the current
// function.
func (c *GenContext) SlotsUsed() int {
	return c.fn.nextSlot
}

// loopLabels is a saved break/continue pair.
type loopLabels struct {
	brk, cont Label
	inLoop    bool
}

// EnterLoop installs the break/continue targets of a loop body and returns
// the enclosing loop's targets for LeaveLoop.
func (c *GenContext) EnterLoop(brk, cont Label) loopLabels {
	saved := loopLabels{brk: c.fn.brk, cont: c.fn.cont, inLoop: c.fn.inLoop}
	c.fn.brk, c.fn.cont, c.fn.inLoop = brk, cont, true
	return saved
}

func (c *GenContext) LeaveLoop(saved loopLabels) {
	c.fn.brk, c.fn.cont, c.fn.inLoop = saved.brk, saved.cont, saved.inLoop
}

// LoopTargets returns the innermost loop's break and continue labels.
func (c *GenContext) LoopTargets() (brk, cont Label, ok bool) {
	if c.fn == nil || !c.fn.inLoop {
		return 0, 0, false
	}
	return c.fn.brk, c.fn.cont, true
}

// AddStringLiteral decodes raw and appends a new literal table entry. Equal
// contents still get separate entries.
func (c *GenContext) AddStringLiteral(raw string) StringLiteral {
	decoded := decodeEscapes(raw)
	lit := StringLiteral{
		Index:  len(c.literals),
		Label:  "str" + strconv.Itoa(len(c.literals)),
		Offset: c.dataSize,
		Bytes:  decoded,
		Length: len(decoded),
	}
	c.literals = append(c.literals, lit)
	c.dataSize += len(decoded)
	return lit
}

// Literals returns the literal table in order of first use.
func (c *GenContext) Literals() []StringLiteral {
	return c.literals
}

// ReserveData reserves size zero bytes in the data segment at an offset
// aligned to align.
func (c *GenContext) ReserveData(size, align int) int {
	if align > 1 && c.dataSize%align != 0 {
		c.dataSize += align - c.dataSize%align
	}
	offset := c.dataSize
	c.reservations = append(c.reservations, dataReservation{Offset: offset, Size: size})
	c.dataSize += size
	return offset
}

// DataSize is the total size of the data segment in bytes.
func (c *GenContext) DataSize() int {
	return c.dataSize
}

// EnsureHelper runs emit the first time name is requested and reports
// whether it did.
func (c *GenContext) EnsureHelper(name string, emit func()) bool {
	if c.helpers[name] {
		return false
	}
	c.helpers[name] = true
	if glog.V(5) {
		glog.V(5).Infof("%s: emitting helper %s", c.target, name)
	}
	emit()
	return true
}

// Limitation records that the construct at id could not be lowered.
func (c *GenContext) Limitation(id NodeID, format string, args ...interface{}) {
	kind := NodeKind("")
	if c.arena.Valid(id) {
		kind = c.arena.At(id).Kind
	}
	err := &LimitationError{Target: c.target, Kind: kind, Message: fmt.Sprintf(format, args...)}
	if glog.V(2) {
		glog.V(2).Infof("%v", err)
	}
	c.diags = multierror.Append(c.diags, err)
}

// Diagnostics returns the recorded limitations, or nil.
func (c *GenContext) Diagnostics() error {
	return c.diags.ErrorOrNil()
}

// TypeOf returns the static type of an expression, preferring the type the
// front end resolved.
func (c *GenContext) TypeOf(id NodeID) Type {
	n := c.arena.At(id)
	if n.Type != TypeUnknown && n.Kind != NodeVar && n.Kind != NodeFunc {
		return n.Type
	}

	switch n.Kind {
	case NodeInteger:
		return TypeInteger
	case NodeDecimal:
		return TypeDecimal
	case NodeBoolean:
		return TypeBoolean
	case NodeString:
		return TypeText
	case NodeArray:
		return TypeArray
	case NodeIndex:
		return TypeInteger
	case NodeIdent:
		if sym, ok := c.Lookup(n.Name); ok && sym.Kind == SymbolVar {
			return sym.Type
		}
		return TypeUnknown
	case NodeBinary:
		if isComparisonOp(n.Op) || isLogicalOp(n.Op) {
			return TypeBoolean
		}
		left := c.TypeOf(n.Children[0])
		right := c.TypeOf(n.Children[1])
		if ReprOf(left) == Fat || ReprOf(right) == Fat {
			// No operator works on text or arrays; backends produce a zero word.
			return TypeUnknown
		}
		if left == TypeDecimal || right == TypeDecimal {
			return TypeDecimal
		}
		if left == TypeUnknown {
			return right
		}
		return left
	case NodeUnary:
		if n.Op == "not" {
			return TypeBoolean
		}
		return c.TypeOf(n.Children[0])
	case NodeCall, NodePipe:
		callee, _ := c.CallParts(id)
		switch callee {
		case "length":
			return TypeInteger
		case "print":
			return TypeVoid
		}
		if sym, ok := c.Lookup(callee); ok && sym.Kind == SymbolFunc {
			return sym.Result
		}
		return TypeUnknown
	}
	return TypeVoid
}

// CallParts returns the callee name and argument list of a call or pipe.
// `v |> f` calls f(v); `v |> f(a, b)` calls f(v, a, b).
func (c *GenContext) CallParts(id NodeID) (string, []NodeID) {
	n := c.arena.At(id)
	switch n.Kind {
	case NodeCall:
		if len(n.Children) == 0 {
			return "", nil
		}
		return c.arena.At(n.Children[0]).Name, n.Children[1:]
	case NodePipe:
		if len(n.Children) != 2 {
			return "", nil
		}
		value, target := n.Children[0], c.arena.At(n.Children[1])
		switch target.Kind {
		case NodeIdent:
			return target.Name, []NodeID{value}
		case NodeCall:
			if len(target.Children) == 0 {
				return "", nil
			}
			args := append([]NodeID{value}, target.Children[1:]...)
			return c.arena.At(target.Children[0]).Name, args
		}
	}
	return "", nil
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "!=", "<", ">", "<=", ">=":
		return true
	default:
		return false
	}
}

func isLogicalOp(op string) bool {
	return op == "and" || op == "or"
}

// decodeEscapes turns the escape sequences of a text literal into bytes.
// Unknown escapes are kept verbatim.
func decodeEscapes(raw string) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if ch != '\\' || i+1 == len(raw) {
			out = append(out, ch)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '\\':
			out = append(out, '\\')
		case '"':
			out = append(out, '"')
		case '0':
			out = append(out, 0)
		default:
			out = append(out, '\\', raw[i])
		}
	}
	return out
}

// mangleName turns a source identifier into an assembler-safe symbol. ASCII
// letters and digits are kept, '_' is doubled, and every other rune becomes
// _uXXXX or _UXXXXXXXX. A single '_' only ever starts an escape, so distinct
// names never share a symbol, even with the "_len" suffix of a fat global.
func mangleName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '_':
			b.WriteString("__")
		case ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'):
			b.WriteRune(r)
		case r <= 0xFFFF:
			fmt.Fprintf(&b, "_u%04X", r)
		default:
			fmt.Fprintf(&b, "_U%08X", r)
		}
	}
	return b.String()
}

// topLevelStatements returns the statements of a program root, or the root
// itself when it is a lone statement.
func topLevelStatements(arena *Arena, root NodeID) []NodeID {
	n := arena.At(root)
	if isBlockLike(n.Kind) {
		return n.Children
	}
	return []NodeID{root}
}

// localWords counts the local words a function body needs: declared
// variables, plus a counter and a limit per counting loop. Nested function
// declarations are not counted.
func localWords(arena *Arena, id NodeID) int {
	n := arena.At(id)
	total := 0
	switch n.Kind {
	case NodeFunc:
		return 0
	case NodeVar:
		// An inferred type may turn out fat; reserve for the worst case.
		if n.Type == TypeUnknown {
			total += Fat.Words()
		} else {
			total += ReprOf(n.Type).Words()
		}
	case NodeFor:
		total += 2
	}
	for _, child := range n.Children {
		total += localWords(arena, child)
	}
	return total
}

// entryWords is localWords for the synthesized entry function. Its top-level
// variables are globals.
func entryWords(arena *Arena, root NodeID) int {
	total := 0
	for _, id := range topLevelStatements(arena, root) {
		if arena.At(id).Kind != NodeVar {
			total += localWords(arena, id)
		}
	}
	return total
}
