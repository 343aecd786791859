package main

// NodeKind represents different types of AST nodes
type NodeKind string

const (
	NodeInteger  NodeKind = "NodeInteger"
	NodeDecimal  NodeKind = "NodeDecimal"
	NodeBoolean  NodeKind = "NodeBoolean"
	NodeString   NodeKind = "NodeString"
	NodeIdent    NodeKind = "NodeIdent"
	NodeBinary   NodeKind = "NodeBinary"
	NodeUnary    NodeKind = "NodeUnary"
	NodeCall     NodeKind = "NodeCall"
	NodePipe     NodeKind = "NodePipe"
	NodeVar      NodeKind = "NodeVar"
	NodeFunc     NodeKind = "NodeFunc"
	NodeClass    NodeKind = "NodeClass"
	NodeIf       NodeKind = "NodeIf"
	NodeFor      NodeKind = "NodeFor"
	NodeWhile    NodeKind = "NodeWhile"
	NodeBlock    NodeKind = "NodeBlock"
	NodeReturn   NodeKind = "NodeReturn"
	NodeBreak    NodeKind = "NodeBreak"
	NodeContinue NodeKind = "NodeContinue"
	NodeAssign   NodeKind = "NodeAssign"
	NodeArray    NodeKind = "NodeArray"
	NodeIndex    NodeKind = "NodeIndex"
	NodeProgram  NodeKind = "NodeProgram"
)

// allNodeKinds is every kind a backend has to make a decision about.
var allNodeKinds = []NodeKind{
	NodeInteger, NodeDecimal, NodeBoolean, NodeString, NodeIdent,
	NodeBinary, NodeUnary, NodeCall, NodePipe, NodeVar, NodeFunc, NodeClass,
	NodeIf, NodeFor, NodeWhile, NodeBlock, NodeReturn, NodeBreak, NodeContinue,
	NodeAssign, NodeArray, NodeIndex, NodeProgram,
}

// Type is a resolved semantic type. Builtin types use the names below; any
// other non-empty name is an instance of the class with that name.
type Type string

const (
	TypeUnknown Type = ""
	TypeVoid    Type = "void"
	TypeInteger Type = "integer"
	TypeDecimal Type = "decimal"
	TypeText    Type = "text"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
)

// IsClass reports whether t names a class instance type.
func (t Type) IsClass() bool {
	switch t {
	case TypeUnknown, TypeVoid, TypeInteger, TypeDecimal, TypeText, TypeBoolean, TypeArray:
		return false
	}
	return true
}

// Param is a function parameter or a class field.
type Param struct {
	Name string
	Type Type
}

// NodeID indexes a node in an Arena.
type NodeID int32

// NoNode is the absent child.
const NoNode NodeID = -1

// Node is one AST node. Children are indices into the owning Arena; a parent
// exclusively owns its children.
type Node struct {
	Kind NodeKind
	// NodeIdent, NodeVar, NodeFunc, NodeClass, NodeFor (loop variable):
	Name string
	// NodeString, exactly as written (escape sequences not decoded):
	Text string
	// NodeInteger:
	Integer int64
	// NodeDecimal:
	Decimal float64
	// NodeBoolean:
	Boolean bool
	// NodeBinary, NodeUnary: "+", "-", "==", "and", "not", ...
	Op string
	// Resolved type from the front end. For NodeVar, the declared type.
	Type Type
	// NodeFunc:
	Params []Param
	Result Type
	// NodeClass:
	Fields []Param

	Children []NodeID
}

// Arena owns every node of one compilation. Nodes are never freed; a rewrite
// allocates a replacement and swaps the index held by the parent.
type Arena struct {
	nodes []Node
}

func NewArena() *Arena {
	return &Arena{}
}

// New appends n and returns its index.
func (a *Arena) New(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

// At returns the node stored at id. The pointer is valid until the next call
// to New.
func (a *Arena) At(id NodeID) *Node {
	return &a.nodes[id]
}

// Get returns a copy of the node at id.
func (a *Arena) Get(id NodeID) Node {
	return a.nodes[id]
}

// Set replaces the node stored at id.
func (a *Arena) Set(id NodeID, n Node) {
	a.nodes[id] = n
}

func (a *Arena) Len() int {
	return len(a.nodes)
}

// Valid reports whether id refers to a node in this arena.
func (a *Arena) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(a.nodes)
}

// Clone deep-copies the subtree rooted at id and returns the copy's root.
func (a *Arena) Clone(id NodeID) NodeID {
	n := a.Get(id)
	if len(n.Children) > 0 {
		children := make([]NodeID, len(n.Children))
		for i, child := range n.Children {
			children[i] = a.Clone(child)
		}
		n.Children = children
	}
	if n.Params != nil {
		n.Params = append([]Param(nil), n.Params...)
	}
	if n.Fields != nil {
		n.Fields = append([]Param(nil), n.Fields...)
	}
	return a.New(n)
}

// Constructors used by the S-expression reader and by tests.

func (a *Arena) Integer(v int64) NodeID {
	return a.New(Node{Kind: NodeInteger, Integer: v, Type: TypeInteger})
}

func (a *Arena) DecimalLit(v float64) NodeID {
	return a.New(Node{Kind: NodeDecimal, Decimal: v, Type: TypeDecimal})
}

func (a *Arena) BooleanLit(v bool) NodeID {
	return a.New(Node{Kind: NodeBoolean, Boolean: v, Type: TypeBoolean})
}

func (a *Arena) StringLit(raw string) NodeID {
	return a.New(Node{Kind: NodeString, Text: raw, Type: TypeText})
}

func (a *Arena) Ident(name string) NodeID {
	return a.New(Node{Kind: NodeIdent, Name: name})
}

func (a *Arena) Binary(op string, left, right NodeID) NodeID {
	return a.New(Node{Kind: NodeBinary, Op: op, Children: []NodeID{left, right}})
}

func (a *Arena) Unary(op string, operand NodeID) NodeID {
	return a.New(Node{Kind: NodeUnary, Op: op, Children: []NodeID{operand}})
}

func (a *Arena) Call(callee string, args ...NodeID) NodeID {
	children := append([]NodeID{a.Ident(callee)}, args...)
	return a.New(Node{Kind: NodeCall, Children: children})
}

func (a *Arena) Var(name string, typ Type, init ...NodeID) NodeID {
	return a.New(Node{Kind: NodeVar, Name: name, Type: typ, Children: init})
}

func (a *Arena) Func(name string, params []Param, result Type, body NodeID) NodeID {
	return a.New(Node{Kind: NodeFunc, Name: name, Params: params, Result: result, Children: []NodeID{body}})
}

func (a *Arena) Block(stmts ...NodeID) NodeID {
	return a.New(Node{Kind: NodeBlock, Children: stmts})
}

func (a *Arena) Program(stmts ...NodeID) NodeID {
	return a.New(Node{Kind: NodeProgram, Children: stmts})
}

func (a *Arena) Return(value ...NodeID) NodeID {
	return a.New(Node{Kind: NodeReturn, Children: value})
}

func (a *Arena) Assign(target, value NodeID) NodeID {
	return a.New(Node{Kind: NodeAssign, Children: []NodeID{target, value}})
}

// isBlockLike reports whether the node's children are a statement list.
func isBlockLike(kind NodeKind) bool {
	return kind == NodeBlock || kind == NodeProgram
}

// StructurallyEqual compares two subtrees, possibly from different arenas.
func StructurallyEqual(a *Arena, x NodeID, b *Arena, y NodeID) bool {
	n, m := a.Get(x), b.Get(y)
	if n.Kind != m.Kind || n.Name != m.Name || n.Text != m.Text ||
		n.Integer != m.Integer || n.Decimal != m.Decimal || n.Boolean != m.Boolean ||
		n.Op != m.Op || n.Type != m.Type || n.Result != m.Result {
		return false
	}
	if !paramsEqual(n.Params, m.Params) || !paramsEqual(n.Fields, m.Fields) {
		return false
	}
	if len(n.Children) != len(m.Children) {
		return false
	}
	for i := range n.Children {
		if !StructurallyEqual(a, n.Children[i], b, m.Children[i]) {
			return false
		}
	}
	return true
}

func paramsEqual(p, q []Param) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}
