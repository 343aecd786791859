package main

import (
	"math"

	"github.com/golang/glog"
)

// optimizer.go - AST rewrites applied before code generation
//
// One bottom-up traversal. At each node, after its children are rewritten:
// - Constant folding (2 + 3 → 5)
// - Strength reduction (x * 2 → x + x)
// - Dead code elimination (statements after a return in the same block)
//
// Rewrites never mutate a node another parent could observe: a replaced node
// is allocated fresh in the arena and its index is swapped into the parent.

// OptimizeStats counts the rewrites applied by one optimization pass.
type OptimizeStats struct {
	Folded  int // binary nodes replaced by an integer literal
	Reduced int // multiplications by 2 replaced by an addition
	Pruned  int // unreachable statements dropped
}

// Optimize rewrites the tree rooted at root and returns the root of the
// optimized tree (which is root itself unless the root was replaced).
func Optimize(arena *Arena, root NodeID) NodeID {
	newRoot, _ := OptimizeWithStats(arena, root)
	return newRoot
}

func OptimizeWithStats(arena *Arena, root NodeID) (NodeID, OptimizeStats) {
	o := &optimizer{arena: arena}
	newRoot := o.rewrite(root)
	if glog.V(3) {
		glog.V(3).Infof("optimize: folded=%d reduced=%d pruned=%d", o.stats.Folded, o.stats.Reduced, o.stats.Pruned)
	}
	return newRoot, o.stats
}

type optimizer struct {
	arena *Arena
	stats OptimizeStats
}

func (o *optimizer) rewrite(id NodeID) NodeID {
	n := o.arena.Get(id)

	if len(n.Children) > 0 {
		children := make([]NodeID, len(n.Children))
		for i, child := range n.Children {
			children[i] = o.rewrite(child)
		}
		n.Children = children
	}

	if n.Kind == NodeBinary && len(n.Children) == 2 {
		// Fold first so that strength reduction only sees multiplications
		// that survived folding.
		if value, ok := o.foldBinary(n); ok {
			o.stats.Folded++
			return o.arena.New(Node{Kind: NodeInteger, Integer: value, Type: TypeInteger})
		}
		if operand, ok := o.doubledOperand(n); ok {
			o.stats.Reduced++
			return o.arena.New(Node{
				Kind:     NodeBinary,
				Op:       "+",
				Type:     n.Type,
				Children: []NodeID{operand, o.arena.Clone(operand)},
			})
		}
	}

	if isBlockLike(n.Kind) {
		n.Children = o.pruneAfterReturn(n.Children)
	}

	o.arena.Set(id, n)
	return id
}

// foldBinary computes the value of an arithmetic node over two integer
// literals. Division and modulo by zero are left for the target to trap on.
func (o *optimizer) foldBinary(n Node) (int64, bool) {
	left := o.arena.Get(n.Children[0])
	right := o.arena.Get(n.Children[1])
	if left.Kind != NodeInteger || right.Kind != NodeInteger {
		return 0, false
	}
	a, b := left.Integer, right.Integer

	switch n.Op {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "*":
		return a * b, true
	case "/":
		// MinInt64 / -1 traps on WebAssembly but not on AArch64.
		if b == 0 || (a == math.MinInt64 && b == -1) {
			return 0, false
		}
		return a / b, true
	case "%":
		if b == 0 {
			return 0, false
		}
		return a % b, true
	}
	return 0, false
}

// doubledOperand returns x for x * 2 and 2 * x. x is evaluated twice after
// the rewrite, so it must be free of side effects.
func (o *optimizer) doubledOperand(n Node) (NodeID, bool) {
	if n.Op != "*" {
		return NoNode, false
	}
	left, right := n.Children[0], n.Children[1]
	if isIntegerLiteral(o.arena, right, 2) && o.arena.Get(left).Kind != NodeInteger && isPure(o.arena, left) {
		return left, true
	}
	if isIntegerLiteral(o.arena, left, 2) && o.arena.Get(right).Kind != NodeInteger && isPure(o.arena, right) {
		return right, true
	}
	return NoNode, false
}

// isPure reports whether evaluating id twice is indistinguishable from
// evaluating it once.
func isPure(arena *Arena, id NodeID) bool {
	n := arena.Get(id)
	switch n.Kind {
	case NodeInteger, NodeDecimal, NodeBoolean, NodeIdent:
		return true
	case NodeBinary, NodeUnary, NodeIndex:
		for _, child := range n.Children {
			if !isPure(arena, child) {
				return false
			}
		}
		return true
	}
	return false
}

func (o *optimizer) pruneAfterReturn(stmts []NodeID) []NodeID {
	for i, stmt := range stmts {
		if o.arena.Get(stmt).Kind == NodeReturn {
			o.stats.Pruned += len(stmts) - (i + 1)
			return stmts[:i+1]
		}
	}
	return stmts
}

func isIntegerLiteral(arena *Arena, id NodeID, value int64) bool {
	n := arena.Get(id)
	return n.Kind == NodeInteger && n.Integer == value
}
