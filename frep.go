// Package frep implements function representation (f-rep) solid modeling.
//
// A solid is represented by a scalar field f(x,y,z) built as a directed
// acyclic graph of arithmetic operations on the coordinate axes. The field is
// negative inside the solid, positive outside and zero on the surface.
// Structurally identical expressions are hash-consed so that equality of
// trees is pointer equality and shared subexpressions are stored once.
package frep

import (
	"errors"
	"sync"

	"github.com/chewxy/math32"
)

// Op identifies the operation performed by an expression node. The set is
// closed: user extension happens exclusively through [OpOracle] nodes.
type Op uint8

const (
	OpInvalid Op = iota

	// Leaf nodes.
	OpConstant
	OpVarX
	OpVarY
	OpVarZ
	OpVarFree

	// Unary operations.
	OpConstVar
	OpSquare
	OpSqrt
	OpNeg
	OpSin
	OpCos
	OpTan
	OpAsin
	OpAcos
	OpAtan
	OpExp
	OpAbs
	OpLog
	OpRecip

	// Binary operations.
	OpAdd
	OpMul
	OpMin
	OpMax
	OpSub
	OpDiv
	OpAtan2
	OpPow
	OpNthRoot
	OpMod
	OpNanFill
	OpCompare

	// Extension hook. Carries an opaque [Oracle].
	OpOracle

	maxOp
)

// Arity returns the number of child operands of nodes with this operation.
func (op Op) Arity() int {
	switch {
	case op >= OpConstVar && op <= OpRecip:
		return 1
	case op >= OpAdd && op <= OpCompare:
		return 2
	}
	return 0
}

// IsValid reports whether op is a member of the closed operation set.
func (op Op) IsValid() bool { return op > OpInvalid && op < maxOp }

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "invalid"
}

var opNames = [...]string{
	OpInvalid: "invalid", OpConstant: "const", OpVarX: "x", OpVarY: "y", OpVarZ: "z",
	OpVarFree: "var", OpConstVar: "const-var", OpSquare: "square", OpSqrt: "sqrt",
	OpNeg: "neg", OpSin: "sin", OpCos: "cos", OpTan: "tan", OpAsin: "asin",
	OpAcos: "acos", OpAtan: "atan", OpExp: "exp", OpAbs: "abs", OpLog: "log",
	OpRecip: "recip", OpAdd: "add", OpMul: "mul", OpMin: "min", OpMax: "max",
	OpSub: "sub", OpDiv: "div", OpAtan2: "atan2", OpPow: "pow", OpNthRoot: "nth-root",
	OpMod: "mod", OpNanFill: "nan-fill", OpCompare: "compare", OpOracle: "oracle",
}

// ErrNotConstant is returned by [Tree.Value] when the tree root is not a
// constant node.
var ErrNotConstant = errors.New("frep: tree is not a constant")

// node is an immutable expression node. Nodes are allocated exactly once per
// structurally distinct expression (see intern) with the exception of free
// variable and oracle nodes, which are unique by identity.
type node struct {
	lhs, rhs *node
	aux      *node // Third coordinate of OpOracle nodes.
	oracle   Oracle
	value    float32 // Payload of OpConstant nodes.
	op       Op
}

// Tree is a handle on a scalar field over R³. The zero value is invalid;
// construct Trees with [X], [Y], [Z], [Const], [Var], the operator methods or
// the shape functions. Copies of a Tree are interchangeable: a Tree is a
// reference to shared immutable node storage.
type Tree struct {
	n *node
}

type nodeKey struct {
	lhs, rhs *node
	cbits    uint32
	op       Op
}

// cons is the global hash-consing table. Guarded for concurrent tree
// construction across render workers.
var cons = struct {
	sync.RWMutex
	m map[nodeKey]*node
}{m: make(map[nodeKey]*node)}

func intern(key nodeKey, mk func() *node) *node {
	cons.RLock()
	n, ok := cons.m[key]
	cons.RUnlock()
	if ok {
		return n
	}
	cons.Lock()
	defer cons.Unlock()
	if n, ok = cons.m[key]; ok {
		return n
	}
	n = mk()
	cons.m[key] = n
	return n
}

// X returns the tree evaluating to the x coordinate.
func X() Tree { return axis(OpVarX) }

// Y returns the tree evaluating to the y coordinate.
func Y() Tree { return axis(OpVarY) }

// Z returns the tree evaluating to the z coordinate.
func Z() Tree { return axis(OpVarZ) }

func axis(op Op) Tree {
	return Tree{n: intern(nodeKey{op: op}, func() *node { return &node{op: op} })}
}

// Const returns a constant tree. Two constants built from the same value are
// the same node.
func Const(v float32) Tree {
	key := nodeKey{op: OpConstant, cbits: math32.Float32bits(v)}
	return Tree{n: intern(key, func() *node { return &node{op: OpConstant, value: v} })}
}

// Var returns a fresh free variable leaf. Free variables are never interned:
// every call returns a distinct node whose value is supplied externally
// through a [Variables] set. Most callers want [Variables.Add] instead.
func Var() Tree {
	return Tree{n: &node{op: OpVarFree}}
}

// Unary builds the unary operation op applied to a. It panics if op is not a
// unary operation or a is the zero Tree; composition itself never fails.
func Unary(op Op, a Tree) Tree {
	if op.Arity() != 1 {
		panic("frep: " + op.String() + " is not a unary operation")
	}
	a.mustValid()
	key := nodeKey{op: op, lhs: a.n}
	return Tree{n: intern(key, func() *node { return &node{op: op, lhs: a.n} })}
}

// Binary builds the binary operation op applied to a and b. It panics if op
// is not a binary operation or either operand is the zero Tree.
func Binary(op Op, a, b Tree) Tree {
	if op.Arity() != 2 {
		panic("frep: " + op.String() + " is not a binary operation")
	}
	a.mustValid()
	b.mustValid()
	key := nodeKey{op: op, lhs: a.n, rhs: b.n}
	return Tree{n: intern(key, func() *node { return &node{op: op, lhs: a.n, rhs: b.n} })}
}

func (t Tree) mustValid() {
	if t.n == nil {
		panic("frep: zero Tree used as operand")
	}
}

// Op returns the operation of the tree's root node.
func (t Tree) Op() Op {
	if t.n == nil {
		return OpInvalid
	}
	return t.n.op
}

// Operands returns the children of the root node. Leaf nodes return zero
// Trees; unary nodes return a zero rhs.
func (t Tree) Operands() (lhs, rhs Tree) {
	if t.n == nil {
		return Tree{}, Tree{}
	}
	return Tree{n: t.n.lhs}, Tree{n: t.n.rhs}
}

// IsVariable reports whether the tree root is a free variable leaf.
func (t Tree) IsVariable() bool { return t.n != nil && t.n.op == OpVarFree }

// Value returns the constant value of the tree. Fails with [ErrNotConstant]
// if the root is not a constant node.
func (t Tree) Value() (float32, error) {
	if t.n == nil || t.n.op != OpConstant {
		return 0, ErrNotConstant
	}
	return t.n.value, nil
}

// Equals reports structural equality, which by hash-consing is root node
// identity.
func (t Tree) Equals(other Tree) bool { return t.n == other.n }

// Unary operation methods.

func (t Tree) Square() Tree { return Unary(OpSquare, t) }
func (t Tree) Sqrt() Tree   { return Unary(OpSqrt, t) }
func (t Tree) Neg() Tree    { return Unary(OpNeg, t) }
func (t Tree) Sin() Tree    { return Unary(OpSin, t) }
func (t Tree) Cos() Tree    { return Unary(OpCos, t) }
func (t Tree) Tan() Tree    { return Unary(OpTan, t) }
func (t Tree) Asin() Tree   { return Unary(OpAsin, t) }
func (t Tree) Acos() Tree   { return Unary(OpAcos, t) }
func (t Tree) Atan() Tree   { return Unary(OpAtan, t) }
func (t Tree) Exp() Tree    { return Unary(OpExp, t) }
func (t Tree) Abs() Tree    { return Unary(OpAbs, t) }
func (t Tree) Log() Tree    { return Unary(OpLog, t) }
func (t Tree) Recip() Tree  { return Unary(OpRecip, t) }

// ConstVar marks the tree as a variable whose partial derivatives are treated
// as constant during evaluation.
func (t Tree) ConstVar() Tree { return Unary(OpConstVar, t) }

// Binary operation methods.

func (t Tree) Add(rhs Tree) Tree { return Binary(OpAdd, t, rhs) }
func (t Tree) Mul(rhs Tree) Tree { return Binary(OpMul, t, rhs) }
func (t Tree) Min(rhs Tree) Tree { return Binary(OpMin, t, rhs) }
func (t Tree) Max(rhs Tree) Tree { return Binary(OpMax, t, rhs) }
func (t Tree) Sub(rhs Tree) Tree { return Binary(OpSub, t, rhs) }
func (t Tree) Div(rhs Tree) Tree { return Binary(OpDiv, t, rhs) }

// Atan2 is the two-argument arctangent with t as the y argument.
func (t Tree) Atan2(x Tree) Tree { return Binary(OpAtan2, t, x) }

func (t Tree) Pow(exp Tree) Tree   { return Binary(OpPow, t, exp) }
func (t Tree) NthRoot(n Tree) Tree { return Binary(OpNthRoot, t, n) }
func (t Tree) Mod(rhs Tree) Tree   { return Binary(OpMod, t, rhs) }

// NanFill yields rhs wherever t evaluates to NaN and t elsewhere. Used to
// patch removable singularities such as the axis of [Tree.RevolveY].
func (t Tree) NanFill(rhs Tree) Tree { return Binary(OpNanFill, t, rhs) }

// Compare yields -1, 0 or +1 for t<rhs, t==rhs and t>rhs respectively, and
// NaN if either operand is NaN.
func (t Tree) Compare(rhs Tree) Tree { return Binary(OpCompare, t, rhs) }

// AddConst and friends lift float32 arguments into constant operands. They
// keep shape construction code readable.

func (t Tree) AddConst(v float32) Tree { return t.Add(Const(v)) }
func (t Tree) MulConst(v float32) Tree { return t.Mul(Const(v)) }
func (t Tree) SubConst(v float32) Tree { return t.Sub(Const(v)) }
func (t Tree) DivConst(v float32) Tree { return t.Div(Const(v)) }

// walk visits every node reachable from t exactly once in dependency order:
// children are always visited before their parents.
func (t Tree) walk(visit func(n *node)) {
	seen := make(map[*node]bool)
	var rec func(n *node)
	rec = func(n *node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		rec(n.lhs)
		rec(n.rhs)
		rec(n.aux)
		visit(n)
	}
	rec(t.n)
}

// FreeVariables returns the distinct free variable leaves reachable from t
// in dependency order. Useful to re-bind variables of a deserialized tree
// with [Variables.Adopt].
func (t Tree) FreeVariables() []Tree {
	var vars []Tree
	t.walk(func(n *node) {
		if n.op == OpVarFree {
			vars = append(vars, Tree{n: n})
		}
	})
	return vars
}

// NodeCount returns the number of distinct nodes in the tree DAG. Shared
// subexpressions are counted once.
func (t Tree) NodeCount() int {
	count := 0
	t.walk(func(*node) { count++ })
	return count
}
