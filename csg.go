package frep

import "github.com/chewxy/math32"

// Constructive solid geometry on scalar fields. Union and intersection are
// the pointwise min and max of the operand fields; inversion is negation.
// Composition is total: no CSG operation can fail.

// Union returns the union of two solids.
func Union(a, b Tree) Tree { return a.Min(b) }

// Intersection returns the intersection of two solids.
func Intersection(a, b Tree) Tree { return a.Max(b) }

// Inverse swaps the inside and outside of a solid.
func Inverse(a Tree) Tree { return a.Neg() }

// Difference returns a with b removed.
func Difference(a, b Tree) Tree { return Intersection(a, Inverse(b)) }

// Xor returns the region inside exactly one of a and b.
func Xor(a, b Tree) Tree {
	return Intersection(Union(a, b), Inverse(Intersection(a, b)))
}

// Emptiness returns the field that is outside everywhere.
func Emptiness() Tree { return Const(math32.Inf(1)) }

// UnionMulti folds union over trees. An empty argument list yields
// [Emptiness].
func UnionMulti(trees []Tree) Tree {
	if len(trees) == 0 {
		return Emptiness()
	}
	u := trees[0]
	for _, t := range trees[1:] {
		u = Union(u, t)
	}
	return u
}

// IntersectionMulti folds intersection over trees. An empty argument list
// yields [Emptiness].
func IntersectionMulti(trees []Tree) Tree {
	if len(trees) == 0 {
		return Emptiness()
	}
	u := trees[0]
	for _, t := range trees[1:] {
		u = Intersection(u, t)
	}
	return u
}

// DifferenceMulti removes every tree in rest from t. An empty rest list
// leaves t unchanged.
func DifferenceMulti(t Tree, rest []Tree) Tree {
	if len(rest) == 0 {
		return t
	}
	return Intersection(t, Inverse(UnionMulti(rest)))
}

// Offset expands the solid boundary outward by o (shrinks for negative o).
// Exact only where t is a true distance field.
func Offset(t Tree, o Tree) Tree { return t.Sub(o) }

// Shell hollows the solid leaving a skin of thickness o.
func Shell(t Tree, o Tree) Tree {
	return Difference(t, Offset(t, Inverse(o)))
}

// Clearance expands b by o and subtracts it from a, leaving a gap of o
// between the two solids.
func Clearance(a, b Tree, o Tree) Tree {
	return Difference(a, Offset(b, o))
}

// Blend joins a and b with a smooth fillet of characteristic size m.
func Blend(a, b Tree, m Tree) Tree {
	joint := Union(a, b)
	fillet := a.Sqrt().Add(b.Sqrt()).Sub(m)
	return Union(joint, fillet)
}
