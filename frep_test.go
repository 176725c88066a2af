package frep

import (
	"errors"
	"testing"

	"github.com/soypat/geometry/ms3"
)

type stubOracle struct{}

func (stubOracle) Evaluate(pos []ms3.Vec, dist []float32) error {
	for i := range dist {
		dist[i] = pos[i].X
	}
	return nil
}

func (stubOracle) Bounds() ms3.Box {
	return ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}
}

func TestHashConsing(t *testing.T) {
	a := X().Square().Add(Y().Square())
	b := X().Square().Add(Y().Square())
	if !a.Equals(b) {
		t.Error("structurally identical trees are distinct nodes")
	}
	if a.n != b.n {
		t.Error("Equals true but roots differ")
	}
	if !Const(1.5).Equals(Const(1.5)) {
		t.Error("equal constants not interned to one node")
	}
	if Const(1).Equals(Const(2)) {
		t.Error("distinct constants interned to one node")
	}
	if !X().Equals(X()) {
		t.Error("axis leaves not interned")
	}
	// Equality is an equivalence relation on interned nodes.
	c := a
	if !a.Equals(a) || !b.Equals(a) || !a.Equals(c) || !b.Equals(c) {
		t.Error("tree equality is not reflexive/symmetric/transitive")
	}
}

func TestFreeVariablesNeverInterned(t *testing.T) {
	if Var().Equals(Var()) {
		t.Error("two Var() calls returned the same node")
	}
	v := Var()
	if !v.IsVariable() {
		t.Error("Var root is not a variable leaf")
	}
	if v.Add(Const(1)).IsVariable() {
		t.Error("non-leaf reported as variable")
	}
}

func TestValue(t *testing.T) {
	v, err := Const(2.5).Value()
	if err != nil || v != 2.5 {
		t.Errorf("Const(2.5).Value() = %v, %v", v, err)
	}
	if _, err := X().Value(); !errors.Is(err, ErrNotConstant) {
		t.Errorf("X().Value() error = %v, want ErrNotConstant", err)
	}
	if _, err := Const(1).Add(Const(1)).Value(); !errors.Is(err, ErrNotConstant) {
		t.Error("sum of constants reported as constant root")
	}
}

func TestSharedSubexpressionCountedOnce(t *testing.T) {
	// r2 is shared between both max operands and must be stored once:
	// x, y, x², y², add, sqrt, 1, sub, 4, sub, max.
	r2 := X().Square().Add(Y().Square())
	tree := r2.Sqrt().SubConst(1).Max(r2.SubConst(4))
	if got := tree.NodeCount(); got != 11 {
		t.Errorf("NodeCount() = %d, want 11", got)
	}
}

func TestCSGClosure(t *testing.T) {
	a := Sphere(Const(1), Origin3())
	b := BoxExactCentered(V3(1, 1, 1), Origin3())
	for _, tree := range []Tree{
		Union(a, b), Intersection(a, b), Difference(a, b), Xor(a, b),
		UnionMulti(nil), IntersectionMulti(nil), DifferenceMulti(a, nil),
		Blend(a, b, Const(0.5)), Shell(a, Const(0.1)),
	} {
		if tree.Op() == OpInvalid {
			t.Error("CSG composition produced an invalid tree")
		}
	}
	if !DifferenceMulti(a, nil).Equals(a) {
		t.Error("DifferenceMulti with no subtrahends changed the tree")
	}
	if v, err := UnionMulti(nil).Value(); err != nil || !(v > 0) {
		t.Errorf("UnionMulti(nil) = %v, %v, want +Inf constant", v, err)
	}
}

func TestUnionIdempotentByIdentity(t *testing.T) {
	a := Circle(Const(1), Origin2())
	u1 := Union(a, a)
	u2 := Union(a, a)
	if !u1.Equals(u2) {
		t.Error("identical unions are distinct nodes")
	}
	lhs, rhs := u1.Operands()
	if !lhs.Equals(a) || !rhs.Equals(a) {
		t.Error("union operands lost identity")
	}
}

func TestRemap(t *testing.T) {
	f := X().Add(Y())
	g := f.Remap(Y(), X(), Z())
	if !g.Equals(Y().Add(X())) {
		t.Error("remap did not substitute axes")
	}
	// Axis-free subtrees are untouched.
	c := Const(3)
	if !c.Remap(Y(), X(), Z()).Equals(c) {
		t.Error("remap rebuilt a constant")
	}
	// Identity remap re-interns to the original nodes.
	if !f.Remap(X(), Y(), Z()).Equals(f) {
		t.Error("identity remap changed the tree")
	}
}

func TestMoveComposition(t *testing.T) {
	s := Sphere(Const(1), Origin3())
	a := s.Move(V3(1, 0, 0)).Move(V3(1, 0, 0))
	b := s.Move(V3(2, 0, 0))
	// Moves do not constant-fold, but both must at least be valid and the
	// original must be untouched.
	if a.Op() == OpInvalid || b.Op() == OpInvalid {
		t.Fatal("move produced invalid tree")
	}
	if !s.Equals(Sphere(Const(1), Origin3())) {
		t.Error("transform mutated its operand")
	}
}

func TestVariables(t *testing.T) {
	var vs Variables
	r, err := vs.Add("r", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsVariable() {
		t.Error("Add returned a non-variable tree")
	}
	if _, err := vs.Add("r", 2); !errors.Is(err, ErrVariableAlreadyAdded) {
		t.Errorf("duplicate Add error = %v", err)
	}
	if err := vs.Set("r", 2); err != nil {
		t.Fatal(err)
	}
	if v, _ := vs.Get("r"); v != 2 {
		t.Errorf("Get after Set = %v, want 2", v)
	}
	if err := vs.Set("missing", 1); !errors.Is(err, ErrVariableNotFound) {
		t.Errorf("Set of absent name error = %v", err)
	}
	gen := vs.Generation()
	if err := vs.Set("r", 3); err != nil || vs.Generation() != gen {
		t.Error("Set changed the generation")
	}
	if _, err := vs.Add("h", 5); err != nil || vs.Generation() == gen {
		t.Error("Add did not change the generation")
	}
	if vs.Count() != 2 {
		t.Errorf("Count() = %d, want 2", vs.Count())
	}
}

func TestVariablesInsertionOrder(t *testing.T) {
	var vs Variables
	names := []string{"a", "b", "c"}
	want := []float32{1, 2, 3}
	trees := make([]Tree, len(names))
	for i, n := range names {
		trees[i], _ = vs.Add(n, want[i])
	}
	got := vs.Values()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %v, want %v", i, got[i], want[i])
		}
		if !vs.Trees()[i].Equals(trees[i]) {
			t.Errorf("Trees()[%d] lost identity", i)
		}
	}
}

func TestUnaryBinaryPanics(t *testing.T) {
	assertPanics := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s did not panic", name)
			}
		}()
		fn()
	}
	assertPanics("Unary(OpAdd)", func() { Unary(OpAdd, X()) })
	assertPanics("Binary(OpNeg)", func() { Binary(OpNeg, X(), Y()) })
	assertPanics("zero operand", func() { X().Add(Tree{}) })
}

func TestOracleCoordsRemap(t *testing.T) {
	o := NewOracle(stubOracle{})
	x, y, z := o.OracleCoords()
	if !x.Equals(X()) || !y.Equals(Y()) || !z.Equals(Z()) {
		t.Fatal("fresh oracle does not read the raw axes")
	}
	moved := o.Move(V3(1, 2, 3))
	mx, my, mz := moved.OracleCoords()
	if !mx.Equals(X().SubConst(1)) || !my.Equals(Y().SubConst(2)) || !mz.Equals(Z().SubConst(3)) {
		t.Error("move did not remap oracle coordinates")
	}
	if got, ok := moved.Oracle(); !ok || got == nil {
		t.Error("remap dropped the oracle payload")
	}
}
