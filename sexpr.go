package main

import (
	"strconv"
	"unicode"

	"github.com/pkg/errors"
	"github.com/strager/kwc/sexy"
)

// The front end hands the backend a typed AST as an S-expression document:
//
//	(program
//	  (func "add" (params (param "a" integer) (param "b" integer)) integer
//	    (block (return (binary "+" (ident "a") (ident "b")))))
//	  (call (ident "print") (call (ident "add") 2 3)))
//
// Integers are bare; every other node is a list headed by its kind. Any list
// may carry ^{type: T} with the type the front end resolved.

// ParseAST reads an AST document into a fresh arena.
func ParseAST(src string) (*Arena, NodeID, error) {
	doc, err := sexy.Parse(src)
	if err != nil {
		return nil, NoNode, errors.Wrap(err, "parsing AST document")
	}
	r := &astReader{arena: NewArena()}
	root, err := r.node(doc)
	if err != nil {
		return nil, NoNode, err
	}
	return r.arena, root, nil
}

type astReader struct {
	arena *Arena
}

func (r *astReader) node(d *sexy.Node) (NodeID, error) {
	if d.Type == sexy.NodeInteger {
		v, err := strconv.ParseInt(d.Text, 10, 64)
		if err != nil {
			return NoNode, errors.Wrapf(err, "integer literal %s", d.Text)
		}
		return r.arena.Integer(v), nil
	}
	if d.Type != sexy.NodeList || len(d.Items) == 0 || d.Items[0].Type != sexy.NodeSymbol {
		return NoNode, errors.Errorf("expected a node, got %s", d)
	}

	head := d.Items[0].Text
	args := d.Items[1:]
	n := Node{}
	var err error

	switch head {
	case "integer":
		if len(args) != 1 || args[0].Type != sexy.NodeInteger {
			return NoNode, errors.Errorf("integer: expected one integer, got %s", d)
		}
		n.Kind = NodeInteger
		n.Type = TypeInteger
		n.Integer, err = strconv.ParseInt(args[0].Text, 10, 64)
		err = errors.Wrapf(err, "integer literal %s", args[0].Text)
	case "decimal":
		var text string
		if text, err = r.stringArg(head, args, 0); err == nil {
			n.Kind = NodeDecimal
			n.Type = TypeDecimal
			n.Decimal, err = strconv.ParseFloat(text, 64)
			err = errors.Wrapf(err, "decimal literal %q", text)
		}
	case "boolean":
		var sym string
		if sym, err = r.symbolArg(head, args, 0); err == nil {
			n.Kind = NodeBoolean
			n.Type = TypeBoolean
			switch sym {
			case "true":
				n.Boolean = true
			case "false":
			default:
				err = errors.Errorf("boolean: expected true or false, got %s", sym)
			}
		}
	case "string":
		n.Kind = NodeString
		n.Type = TypeText
		n.Text, err = r.stringArg(head, args, 0)
	case "ident":
		n.Kind = NodeIdent
		n.Name, err = r.stringArg(head, args, 0)
	case "binary", "unary":
		n.Kind = NodeBinary
		arity := 2
		if head == "unary" {
			n.Kind = NodeUnary
			arity = 1
		}
		if n.Op, err = r.stringArg(head, args, 0); err == nil {
			n.Children, err = r.exactly(head, args[1:], arity)
		}
	case "call":
		n.Kind = NodeCall
		if len(args) == 0 {
			err = errors.New("call: missing callee")
		} else {
			n.Children, err = r.nodes(args)
		}
	case "pipe":
		n.Kind = NodePipe
		n.Children, err = r.exactly(head, args, 2)
	case "var":
		n.Kind = NodeVar
		if n.Name, err = r.stringArg(head, args, 0); err != nil {
			break
		}
		if n.Type, err = r.typeArg(head, args, 1); err != nil {
			break
		}
		if len(args) > 3 {
			err = errors.Errorf("var %s: too many initializers", n.Name)
			break
		}
		n.Children, err = r.nodes(args[2:])
	case "func":
		err = r.function(&n, args)
	case "class":
		n.Kind = NodeClass
		if n.Name, err = r.stringArg(head, args, 0); err != nil {
			break
		}
		if len(args) != 2 {
			err = errors.Errorf("class %s: expected (fields ...)", n.Name)
			break
		}
		n.Fields, err = r.paramList(args[1], "fields", "field")
	case "if":
		n.Kind = NodeIf
		if len(args) < 2 {
			err = errors.New("if: expected a condition and a body")
			break
		}
		n.Children, err = r.nodes(args)
	case "for":
		n.Kind = NodeFor
		if n.Name, err = r.stringArg(head, args, 0); err == nil {
			n.Children, err = r.exactly(head, args[1:], 3)
		}
	case "while":
		n.Kind = NodeWhile
		n.Children, err = r.exactly(head, args, 2)
	case "block":
		n.Kind = NodeBlock
		n.Children, err = r.nodes(args)
	case "program":
		n.Kind = NodeProgram
		n.Children, err = r.nodes(args)
	case "return":
		n.Kind = NodeReturn
		if len(args) > 1 {
			err = errors.New("return: too many values")
			break
		}
		n.Children, err = r.nodes(args)
	case "break":
		n.Kind = NodeBreak
		_, err = r.exactly(head, args, 0)
	case "continue":
		n.Kind = NodeContinue
		_, err = r.exactly(head, args, 0)
	case "assign":
		n.Kind = NodeAssign
		n.Children, err = r.exactly(head, args, 2)
	case "array":
		n.Kind = NodeArray
		n.Type = TypeArray
		n.Children, err = r.nodes(args)
	case "index":
		n.Kind = NodeIndex
		n.Children, err = r.exactly(head, args, 2)
	default:
		return NoNode, errors.Errorf("unknown node kind %q", head)
	}
	if err != nil {
		return NoNode, err
	}

	for i, key := range d.MetaKeys {
		if key != "type" {
			continue
		}
		typ, err := r.typeArg(head, d.MetaItems[i:i+1], 0)
		if err != nil {
			return NoNode, errors.Wrap(err, "type metadata")
		}
		if n.Kind != NodeVar && n.Kind != NodeFunc {
			n.Type = typ
		}
	}
	return r.arena.New(n), nil
}

func (r *astReader) function(n *Node, args []*sexy.Node) error {
	n.Kind = NodeFunc
	var err error
	if n.Name, err = r.stringArg("func", args, 0); err != nil {
		return err
	}
	if len(args) != 4 {
		return errors.Errorf("func %s: expected (params ...) RESULT BODY", n.Name)
	}
	if n.Params, err = r.paramList(args[1], "params", "param"); err != nil {
		return errors.Wrapf(err, "func %s", n.Name)
	}
	if n.Result, err = r.typeArg("func", args, 2); err != nil {
		return err
	}
	body, err := r.node(args[3])
	if err != nil {
		return errors.Wrapf(err, "func %s", n.Name)
	}
	n.Children = []NodeID{body}
	return nil
}

// paramList reads (params (param "a" T)...) or (fields (field "x" T)...).
func (r *astReader) paramList(d *sexy.Node, listHead, itemHead string) ([]Param, error) {
	if d.Type != sexy.NodeList || len(d.Items) == 0 || d.Items[0].Text != listHead {
		return nil, errors.Errorf("expected (%s ...), got %s", listHead, d)
	}
	params := []Param{}
	for _, item := range d.Items[1:] {
		if item.Type != sexy.NodeList || len(item.Items) != 3 || item.Items[0].Text != itemHead {
			return nil, errors.Errorf("expected (%s NAME TYPE), got %s", itemHead, item)
		}
		name, err := r.stringArg(itemHead, item.Items[1:], 0)
		if err != nil {
			return nil, err
		}
		typ, err := r.typeArg(itemHead, item.Items[1:], 1)
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Name: name, Type: typ})
	}
	return params, nil
}

func (r *astReader) nodes(items []*sexy.Node) ([]NodeID, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]NodeID, len(items))
	for i, item := range items {
		id, err := r.node(item)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (r *astReader) exactly(head string, items []*sexy.Node, count int) ([]NodeID, error) {
	if len(items) != count {
		return nil, errors.Errorf("%s: expected %d operands, got %d", head, count, len(items))
	}
	return r.nodes(items)
}

func (r *astReader) stringArg(head string, args []*sexy.Node, i int) (string, error) {
	if i >= len(args) || args[i].Type != sexy.NodeString {
		return "", errors.Errorf("%s: argument %d must be a string", head, i+1)
	}
	return args[i].Text, nil
}

func (r *astReader) symbolArg(head string, args []*sexy.Node, i int) (string, error) {
	if i >= len(args) || args[i].Type != sexy.NodeSymbol {
		return "", errors.Errorf("%s: argument %d must be a symbol", head, i+1)
	}
	return args[i].Text, nil
}

// typeArg reads a type name. A class name that is not a valid symbol may be
// written as a string.
func (r *astReader) typeArg(head string, args []*sexy.Node, i int) (Type, error) {
	if i < len(args) && args[i].Type == sexy.NodeString {
		return Type(args[i].Text), nil
	}
	sym, err := r.symbolArg(head, args, i)
	if sym == "unknown" {
		return TypeUnknown, err
	}
	return Type(sym), err
}

// ToSExpr prints the subtree at id in the form ParseAST reads.
func ToSExpr(arena *Arena, id NodeID) string {
	return toSexy(arena, id).String()
}

func toSexy(arena *Arena, id NodeID) *sexy.Node {
	n := arena.Get(id)
	list := func(head string, items ...*sexy.Node) *sexy.Node {
		return sexy.NewList(append([]*sexy.Node{sexy.NewSymbol(head)}, items...))
	}
	children := func() []*sexy.Node {
		items := make([]*sexy.Node, len(n.Children))
		for i, child := range n.Children {
			items[i] = toSexy(arena, child)
		}
		return items
	}
	params := func(listHead, itemHead string, ps []Param) *sexy.Node {
		items := make([]*sexy.Node, len(ps))
		for i, p := range ps {
			items[i] = list(itemHead, sexy.NewString(p.Name), typeSexy(p.Type))
		}
		return list(listHead, items...)
	}

	var d *sexy.Node
	implied := TypeUnknown
	switch n.Kind {
	case NodeInteger:
		if n.Type == TypeInteger || n.Type == TypeUnknown {
			return sexy.NewInteger(strconv.FormatInt(n.Integer, 10))
		}
		d = list("integer", sexy.NewInteger(strconv.FormatInt(n.Integer, 10)))
	case NodeDecimal:
		d = list("decimal", sexy.NewString(strconv.FormatFloat(n.Decimal, 'g', -1, 64)))
		implied = TypeDecimal
	case NodeBoolean:
		d = list("boolean", sexy.NewSymbol(strconv.FormatBool(n.Boolean)))
		implied = TypeBoolean
	case NodeString:
		d = list("string", sexy.NewString(n.Text))
		implied = TypeText
	case NodeIdent:
		d = list("ident", sexy.NewString(n.Name))
	case NodeBinary:
		d = list("binary", append([]*sexy.Node{sexy.NewString(n.Op)}, children()...)...)
	case NodeUnary:
		d = list("unary", append([]*sexy.Node{sexy.NewString(n.Op)}, children()...)...)
	case NodeCall:
		d = list("call", children()...)
	case NodePipe:
		d = list("pipe", children()...)
	case NodeVar:
		d = list("var", append([]*sexy.Node{sexy.NewString(n.Name), typeSexy(n.Type)}, children()...)...)
		return d
	case NodeFunc:
		d = list("func", append([]*sexy.Node{sexy.NewString(n.Name), params("params", "param", n.Params), typeSexy(n.Result)}, children()...)...)
		return d
	case NodeClass:
		d = list("class", sexy.NewString(n.Name), params("fields", "field", n.Fields))
	case NodeIf:
		d = list("if", children()...)
	case NodeFor:
		d = list("for", append([]*sexy.Node{sexy.NewString(n.Name)}, children()...)...)
	case NodeWhile:
		d = list("while", children()...)
	case NodeBlock:
		d = list("block", children()...)
	case NodeProgram:
		d = list("program", children()...)
	case NodeReturn:
		d = list("return", children()...)
	case NodeBreak:
		d = list("break")
	case NodeContinue:
		d = list("continue")
	case NodeAssign:
		d = list("assign", children()...)
	case NodeArray:
		d = list("array", children()...)
		implied = TypeArray
	case NodeIndex:
		d = list("index", children()...)
	default:
		d = list(string(n.Kind), children()...)
	}

	if n.Type != TypeUnknown && n.Type != implied {
		d.MetaKeys = []string{"type"}
		d.MetaItems = []*sexy.Node{typeSexy(n.Type)}
	}
	return d
}

func typeSexy(t Type) *sexy.Node {
	if t == TypeUnknown {
		return sexy.NewSymbol("unknown")
	}
	if !isSymbolText(string(t)) {
		return sexy.NewString(string(t))
	}
	return sexy.NewSymbol(string(t))
}

// isSymbolText reports whether s reads back as a single sexy symbol.
func isSymbolText(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '_'):
		default:
			return false
		}
	}
	return s != ""
}
