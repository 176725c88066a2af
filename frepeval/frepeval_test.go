package frepeval

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"

	"github.com/frepkit/frep"
)

func evalAt(t *testing.T, tree frep.Tree, vars *frep.Variables, pos ...ms3.Vec) []float32 {
	t.Helper()
	e, err := NewEvaluator(tree, vars, ms3.Box{})
	if err != nil {
		t.Fatal(err)
	}
	dist := make([]float32, len(pos))
	if err := e.Evaluate(pos, dist, nil); err != nil {
		t.Fatal(err)
	}
	return dist
}

func TestEvaluateCircleField(t *testing.T) {
	circle := frep.X().Square().Add(frep.Y().Square()).SubConst(1)
	got := evalAt(t, circle, nil,
		ms3.Vec{X: 0, Y: 0},
		ms3.Vec{X: 1, Y: 0},
		ms3.Vec{X: 2, Y: 0},
		ms3.Vec{X: 0, Y: 0, Z: 5}, // z must not leak into a 2D field.
	)
	want := []float32{-1, 0, 3, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("circle(%d) = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEvaluateSphereDistance(t *testing.T) {
	s := frep.Sphere(frep.Const(1), frep.Origin3())
	pts := []ms3.Vec{{X: 2}, {Y: 0.5}, {Z: -1}}
	want := []float32{1, -0.5, 0}
	got := evalAt(t, s, nil, pts...)
	for i := range want {
		if math32.Abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("sphere(%v) = %v, want %v", pts[i], got[i], want[i])
		}
	}
}

func TestRegisterReuse(t *testing.T) {
	// A long chain needs O(1) registers, not one per node.
	tree := frep.X()
	for i := 0; i < 20; i++ {
		tree = tree.Square().AddConst(1)
	}
	e, err := NewEvaluator(tree, nil, ms3.Box{})
	if err != nil {
		t.Fatal(err)
	}
	if e.prog.NumRegisters() > 4 {
		t.Errorf("NumRegisters() = %d for a chain, want <= 4", e.prog.NumRegisters())
	}
	if e.prog.NumInstructions() != tree.NodeCount() {
		t.Errorf("instructions = %d, nodes = %d", e.prog.NumInstructions(), tree.NodeCount())
	}
}

func TestScalarSemantics(t *testing.T) {
	x := frep.X()
	tests := []struct {
		name string
		tree frep.Tree
		x    float32
		want float32
	}{
		{"mod euclid negative", x.Mod(frep.Const(3)), -1, 2},
		{"mod sign of modulus", x.Mod(frep.Const(-3)), 1, -2},
		{"nthroot cube of negative", x.NthRoot(frep.Const(3)), -8, -2},
		{"recip", x.Recip(), 4, 0.25},
		{"compare less", x.Compare(frep.Const(0)), -5, -1},
		{"compare greater", x.Compare(frep.Const(0)), 5, 1},
		{"compare equal", x.Compare(frep.Const(0)), 0, 0},
		{"nanfill passthrough", x.NanFill(frep.Const(9)), 2, 2},
		{"nanfill fill", x.Sqrt().NanFill(frep.Const(9)), -1, 9},
	}
	for _, tc := range tests {
		got := evalAt(t, tc.tree, nil, ms3.Vec{X: tc.x})
		if math32.Abs(got[0]-tc.want) > 1e-6 {
			t.Errorf("%s: f(%v) = %v, want %v", tc.name, tc.x, got[0], tc.want)
		}
	}
	if got := evalAt(t, x.NthRoot(frep.Const(2)), nil, ms3.Vec{X: -4}); !math32.IsNaN(got[0]) {
		t.Errorf("even root of negative = %v, want NaN", got[0])
	}
}

func TestVariableSnapshotAndUpdate(t *testing.T) {
	var vs frep.Variables
	r, err := vs.Add("r", 1)
	if err != nil {
		t.Fatal(err)
	}
	sphere := frep.Sphere(r, frep.Origin3())
	e, err := NewEvaluator(sphere, &vs, ms3.Box{})
	if err != nil {
		t.Fatal(err)
	}
	at2 := func() float32 {
		dist := make([]float32, 1)
		if err := e.Evaluate([]ms3.Vec{{X: 2}}, dist, nil); err != nil {
			t.Fatal(err)
		}
		return dist[0]
	}
	if d := at2(); d != 1 {
		t.Fatalf("initial radius: d(2,0,0) = %v, want 1", d)
	}
	// Set without Update keeps the old snapshot.
	if err := vs.Set("r", 2); err != nil {
		t.Fatal(err)
	}
	if d := at2(); d != 1 {
		t.Errorf("after Set without Update: d = %v, want stale 1", d)
	}
	if err := e.Update(&vs); err != nil {
		t.Fatal(err)
	}
	if d := at2(); d != 0 {
		t.Errorf("after Update: d = %v, want 0", d)
	}
}

func TestUpdateRejectsForeignSet(t *testing.T) {
	var vs, other frep.Variables
	r, _ := vs.Add("r", 1)
	e, err := NewEvaluator(frep.Sphere(r, frep.Origin3()), &vs, ms3.Box{})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Update(&other); !errors.Is(err, ErrVariablesCouldNotBeUpdated) {
		t.Errorf("Update(foreign set) error = %v", err)
	}
	if err := e.Update(nil); !errors.Is(err, ErrVariablesCouldNotBeUpdated) {
		t.Errorf("Update(nil) error = %v", err)
	}
}

func TestStructuralChangeRejectsEvaluation(t *testing.T) {
	var vs frep.Variables
	r, _ := vs.Add("r", 1)
	e, err := NewEvaluator(frep.Sphere(r, frep.Origin3()), &vs, ms3.Box{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := vs.Add("h", 1); err != nil {
		t.Fatal(err)
	}
	dist := make([]float32, 1)
	if err := e.Evaluate([]ms3.Vec{{X: 2}}, dist, nil); !errors.Is(err, ErrStaleVariables) {
		t.Errorf("Evaluate after Add error = %v, want ErrStaleVariables", err)
	}
	if err := e.Update(&vs); err != nil {
		t.Fatal(err)
	}
	if err := e.Evaluate([]ms3.Vec{{X: 2}}, dist, nil); err != nil {
		t.Errorf("Evaluate after Update error = %v", err)
	}
}

func TestUnboundVariable(t *testing.T) {
	if _, err := Compile(frep.Var(), nil); !errors.Is(err, ErrUnboundVariable) {
		t.Errorf("Compile(unbound var) error = %v", err)
	}
}

func TestOracleEvaluation(t *testing.T) {
	o := frep.NewOracle(planeOracle{})
	got := evalAt(t, o, nil, ms3.Vec{X: 3}, ms3.Vec{X: -2})
	if got[0] != 3 || got[1] != -2 {
		t.Errorf("oracle field = %v, want [3 -2]", got)
	}
	// Coordinate remapping flows into the oracle.
	moved := o.Move(frep.V3(1, 0, 0))
	got = evalAt(t, moved, nil, ms3.Vec{X: 3})
	if got[0] != 2 {
		t.Errorf("moved oracle field = %v, want 2", got[0])
	}
}

type planeOracle struct{}

func (planeOracle) Evaluate(pos []ms3.Vec, dist []float32) error {
	for i := range dist {
		dist[i] = pos[i].X
	}
	return nil
}

func (planeOracle) Bounds() ms3.Box {
	return ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}
}

func TestIntervalPruning(t *testing.T) {
	s := frep.Sphere(frep.Const(1), frep.Origin3())
	e, err := NewEvaluator(s, nil, ms3.Box{})
	if err != nil {
		t.Fatal(err)
	}
	far := ms3.Box{Min: ms3.Vec{X: 5, Y: 5, Z: 5}, Max: ms3.Vec{X: 6, Y: 6, Z: 6}}
	iv, err := e.EvaluateInterval(far)
	if err != nil {
		t.Fatal(err)
	}
	if !iv.IsEmptyOutside() {
		t.Errorf("far box interval = %+v, want provably outside", iv)
	}
	core := ms3.Box{Min: ms3.Vec{X: -0.1, Y: -0.1, Z: -0.1}, Max: ms3.Vec{X: 0.1, Y: 0.1, Z: 0.1}}
	iv, err = e.EvaluateInterval(core)
	if err != nil {
		t.Fatal(err)
	}
	if !iv.IsFullInside() {
		t.Errorf("core box interval = %+v, want provably inside", iv)
	}
	straddle := ms3.Box{Min: ms3.Vec{X: 0.5, Y: -0.5, Z: -0.5}, Max: ms3.Vec{X: 1.5, Y: 0.5, Z: 0.5}}
	iv, err = e.EvaluateInterval(straddle)
	if err != nil {
		t.Fatal(err)
	}
	if iv.IsEmptyOutside() || iv.IsFullInside() {
		t.Errorf("boundary box interval = %+v, want ambiguous", iv)
	}
}

func TestIntervalTrigConservative(t *testing.T) {
	f := frep.X().Sin()
	e, err := NewEvaluator(f, nil, ms3.Box{})
	if err != nil {
		t.Fatal(err)
	}
	b := ms3.Box{Min: ms3.Vec{X: 0}, Max: ms3.Vec{X: 2}} // Crosses pi/2.
	iv, err := e.EvaluateInterval(b)
	if err != nil {
		t.Fatal(err)
	}
	if !iv.In(1) {
		t.Errorf("sin interval over [0,2] = %+v, must contain the max at pi/2", iv)
	}
	if iv.Lo > 0.01 {
		t.Errorf("sin interval lower bound %v too tight", iv.Lo)
	}
}

func TestNormalsCentralDiff(t *testing.T) {
	s := frep.Sphere(frep.Const(1), frep.Origin3())
	e, err := NewEvaluator(s, nil, ms3.Box{})
	if err != nil {
		t.Fatal(err)
	}
	pos := []ms3.Vec{{X: 1}, {Y: -1}}
	normals := make([]ms3.Vec, len(pos))
	var vp VecPool
	if err := NormalsCentralDiff(e, pos, normals, 1e-3, &vp); err != nil {
		t.Fatal(err)
	}
	n0 := ms3.Unit(normals[0])
	if math32.Abs(n0.X-1) > 1e-3 || math32.Abs(n0.Y) > 1e-3 || math32.Abs(n0.Z) > 1e-3 {
		t.Errorf("normal at (1,0,0) = %+v, want +x", n0)
	}
	n1 := ms3.Unit(normals[1])
	if math32.Abs(n1.Y+1) > 1e-3 {
		t.Errorf("normal at (0,-1,0) = %+v, want -y", n1)
	}
}
