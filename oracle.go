package frep

import "github.com/soypat/geometry/ms3"

// Oracle is the extension point of the closed operation set: an opaque field
// function that participates in the expression graph without the core knowing
// how it computes its values.
//
// Implementations must be pure: two Evaluate calls over the same positions
// must store identical distances, or renders stop being deterministic.
type Oracle interface {
	// Evaluate evaluates the field over pos positions, storing results in
	// dist. pos and dist are the same length. For fields of two variables the
	// Z coordinate carries the third remapped coordinate and may be ignored.
	Evaluate(pos []ms3.Vec, dist []float32) error
	// Bounds returns a box known to contain the negative region of the field.
	// It is a pruning hint only: evaluation outside Bounds must still return
	// correct (positive) distances.
	Bounds() ms3.Box
}

// NewOracle wraps o as an expression tree leaf. Oracle nodes are unique by
// identity and are never hash-consed nor serializable.
//
// The node carries the three coordinate expressions the oracle is evaluated
// at, initially the raw axes. Transforms remap them like any other
// subexpression, so a moved or twirled oracle sees transformed coordinates.
func NewOracle(o Oracle) Tree {
	if o == nil {
		panic("frep: nil Oracle")
	}
	return Tree{n: &node{
		op:     OpOracle,
		oracle: o,
		lhs:    X().n,
		rhs:    Y().n,
		aux:    Z().n,
	}}
}

// Oracle returns the Oracle payload of the root node, if any.
func (t Tree) Oracle() (Oracle, bool) {
	if t.n == nil || t.n.op != OpOracle {
		return nil, false
	}
	return t.n.oracle, true
}

// OracleCoords returns the three coordinate expressions an oracle root is
// evaluated at. Zero Trees if the root is not an oracle.
func (t Tree) OracleCoords() (x, y, z Tree) {
	if t.n == nil || t.n.op != OpOracle {
		return Tree{}, Tree{}, Tree{}
	}
	return Tree{n: t.n.lhs}, Tree{n: t.n.rhs}, Tree{n: t.n.aux}
}
