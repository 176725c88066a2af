package freprender_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"

	"github.com/frepkit/frep"
	"github.com/frepkit/frep/frepeval"
	"github.com/frepkit/frep/freprender"
)

func mustEval(tb testing.TB, tree frep.Tree, bounds ms3.Box) *frepeval.Evaluator {
	tb.Helper()
	ev, err := frepeval.NewEvaluator(tree, nil, bounds)
	if err != nil {
		tb.Fatalf("compiling field: %v", err)
	}
	return ev
}

func box3(halfSide float32) ms3.Box {
	return ms3.Box{
		Min: ms3.Vec{X: -halfSide, Y: -halfSide, Z: -halfSide},
		Max: ms3.Vec{X: halfSide, Y: halfSide, Z: halfSide},
	}
}

func TestSliceUnitCircle(t *testing.T) {
	// Quadratic circle field, not a distance field. The zero set is still the
	// exact unit circle.
	x, y := frep.X(), frep.Y()
	tree := x.Square().Add(y.Square()).SubConst(1)
	ev := mustEval(t, tree, box3(2))
	region := ms2.Box{Min: ms2.Vec{X: -2, Y: -2}, Max: ms2.Vec{X: 2, Y: 2}}
	contours, err := freprender.RenderSlice(ev.XYSlice(0), region, freprender.Settings{Resolution: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(contours) != 1 {
		t.Fatalf("want 1 contour, got %d", len(contours))
	}
	c := contours[0]
	if !c.Closed {
		t.Error("unit circle contour should be closed")
	}
	if len(c.Points) < 20 {
		t.Errorf("suspiciously coarse contour: %d points", len(c.Points))
	}
	for _, p := range c.Points {
		r := math32.Hypot(p.X, p.Y)
		if math32.Abs(r-1) > 0.05 {
			t.Fatalf("contour point %v at radius %.4f, want 1", p, r)
		}
	}
}

func TestSliceOpenContour(t *testing.T) {
	// A half-plane boundary crosses the region border, so its contour must
	// come out open.
	ev := mustEval(t, frep.Y(), box3(1))
	region := ms2.Box{Min: ms2.Vec{X: -1, Y: -1}, Max: ms2.Vec{X: 1, Y: 1}}
	contours, err := freprender.RenderSlice(ev.XYSlice(0), region, freprender.Settings{Resolution: 8})
	if err != nil {
		t.Fatal(err)
	}
	if len(contours) != 1 {
		t.Fatalf("want 1 contour, got %d", len(contours))
	}
	if contours[0].Closed {
		t.Error("border-crossing contour should be open")
	}
	for _, p := range contours[0].Points {
		if math32.Abs(p.Y) > 1e-4 {
			t.Fatalf("contour point %v off the y=0 line", p)
		}
	}
}

func TestRenderMeshHollowSphereManifold(t *testing.T) {
	outer := frep.Sphere(frep.Const(1), frep.Origin3())
	inner := frep.Sphere(frep.Const(0.6), frep.Origin3())
	shell := frep.Difference(outer, inner)
	ev := mustEval(t, shell, box3(1.3))
	cfg := freprender.Settings{
		Resolution: 12,
		Quality:    freprender.QualityNoMerge,
	}
	tris, err := freprender.RenderMesh(ev, ev.Bounds(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) == 0 {
		t.Fatal("empty mesh")
	}
	mesh := freprender.BuildTriangleMesh(tris)
	// Both boundary spheres are fully inside the region, so the mesh must be
	// closed: every undirected edge shared by exactly two triangles.
	edges := make(map[[2]uint32]int)
	for i := 0; i < mesh.TriangleCount(); i++ {
		idx := [3]uint32{mesh.Indices[3*i], mesh.Indices[3*i+1], mesh.Indices[3*i+2]}
		for e := 0; e < 3; e++ {
			a, b := idx[e], idx[(e+1)%3]
			if a > b {
				a, b = b, a
			}
			edges[[2]uint32{a, b}]++
		}
	}
	for e, n := range edges {
		if n != 2 {
			t.Fatalf("edge %v shared by %d triangles, want 2", e, n)
		}
	}
	// Vertices cluster on the two boundary spheres; nothing may land in the
	// hollow core or far outside.
	for _, v := range mesh.Vertices {
		r := ms3.Norm(v)
		if r < 0.5 || r > 1.15 {
			t.Fatalf("vertex %v at radius %.3f outside shell", v, r)
		}
	}
	// Outward orientation: signed volume approximates outer minus inner ball.
	var vol6 float32
	for _, tri := range tris {
		vol6 += ms3.Dot(tri[0], ms3.Cross(tri[1], tri[2]))
	}
	vol := vol6 / 6
	want := 4 * math32.Pi / 3 * (1 - 0.6*0.6*0.6)
	if math32.Abs(vol-want) > 0.35*want {
		t.Errorf("signed shell volume %.3f, want about %.3f", vol, want)
	}
}

func TestRenderMeshQualityMerge(t *testing.T) {
	// Default quality merges near-coplanar boundary cells; the sphere should
	// still mesh without losing its overall shape.
	ev := mustEval(t, frep.Sphere(frep.Const(1), frep.Origin3()), box3(1.3))
	tris, err := freprender.RenderMesh(ev, ev.Bounds(), freprender.Settings{Resolution: 12})
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) == 0 {
		t.Fatal("empty mesh")
	}
	for _, tri := range tris {
		for _, v := range tri {
			r := ms3.Norm(v)
			if r < 0.7 || r > 1.3 {
				t.Fatalf("vertex %v at radius %.3f far from unit sphere", v, r)
			}
		}
	}
}

func TestRenderMeshAlgorithms(t *testing.T) {
	ev := mustEval(t, frep.Sphere(frep.Const(1), frep.Origin3()), box3(1.3))
	for _, alg := range []freprender.Algorithm{
		freprender.DualContouring, freprender.IsoSimplex, freprender.Hybrid,
	} {
		t.Run(alg.String(), func(t *testing.T) {
			tris, err := freprender.RenderMesh(ev, ev.Bounds(), freprender.Settings{
				Resolution: 10,
				Algorithm:  alg,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(tris) < 50 {
				t.Fatalf("suspiciously small mesh: %d triangles", len(tris))
			}
			for _, tri := range tris {
				for _, v := range tri {
					if r := ms3.Norm(v); math32.Abs(r-1) > 0.25 {
						t.Fatalf("vertex %v at radius %.3f, want near 1", v, r)
					}
				}
			}
		})
	}
}

func TestRenderMeshWorkerDeterminism(t *testing.T) {
	shell := frep.Difference(
		frep.Sphere(frep.Const(1), frep.Origin3()),
		frep.BoxExactCentered(frep.V3(0.9, 0.9, 2.6), frep.Origin3()),
	)
	ev := mustEval(t, shell, box3(1.3))
	render := func(workers int) []ms3.Triangle {
		tris, err := freprender.RenderMesh(ev, ev.Bounds(), freprender.Settings{
			Resolution: 10,
			Workers:    workers,
		})
		if err != nil {
			t.Fatal(err)
		}
		return tris
	}
	serial := render(1)
	parallel := render(8)
	if len(serial) != len(parallel) {
		t.Fatalf("triangle count differs across workers: %d vs %d", len(serial), len(parallel))
	}
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("triangle %d differs across worker counts:\n%v\n%v", i, serial[i], parallel[i])
		}
	}
}

func TestVariableUpdateChangesMesh(t *testing.T) {
	var vars frep.Variables
	r, err := vars.Add("r", 1)
	if err != nil {
		t.Fatal(err)
	}
	tree := frep.Sphere(r, frep.Origin3())
	ev, err := frepeval.NewEvaluator(tree, &vars, box3(2.4))
	if err != nil {
		t.Fatal(err)
	}
	maxRadius := func() float32 {
		tris, err := freprender.RenderMesh(ev, ev.Bounds(), freprender.Settings{Resolution: 10})
		if err != nil {
			t.Fatal(err)
		}
		var max float32
		for _, tri := range tris {
			for _, v := range tri {
				if n := ms3.Norm(v); n > max {
					max = n
				}
			}
		}
		return max
	}
	if got := maxRadius(); math32.Abs(got-1) > 0.15 {
		t.Fatalf("initial mesh extent %.3f, want about 1", got)
	}
	// Value changes are invisible until Update synchronizes the snapshot.
	if err := vars.Set("r", 2); err != nil {
		t.Fatal(err)
	}
	if got := maxRadius(); math32.Abs(got-1) > 0.15 {
		t.Fatalf("mesh extent %.3f changed before Update", got)
	}
	if err := ev.Update(&vars); err != nil {
		t.Fatal(err)
	}
	if got := maxRadius(); math32.Abs(got-2) > 0.15 {
		t.Fatalf("mesh extent %.3f after Update, want about 2", got)
	}
}

func TestRenderCSGIdentities(t *testing.T) {
	a := frep.Sphere(frep.Const(0.8), frep.Origin3())
	region := ms2.Box{Min: ms2.Vec{X: -1, Y: -1}, Max: ms2.Vec{X: 1, Y: 1}}
	cfg := freprender.Settings{Resolution: 20}
	occupancy := func(tree frep.Tree) []bool {
		ev := mustEval(t, tree, box3(1))
		bm, err := freprender.RenderBitmap(ev.XYSlice(0), region, cfg)
		if err != nil {
			t.Fatal(err)
		}
		return bm.Occ
	}
	base := occupancy(a)
	for name, tree := range map[string]frep.Tree{
		"union-self":       frep.Union(a, a),
		"difference-empty": frep.Difference(a, frep.Emptiness()),
		"intersect-full":   frep.Intersection(a, frep.Inverse(frep.Emptiness())),
	} {
		got := occupancy(tree)
		for i := range base {
			if got[i] != base[i] {
				t.Fatalf("%s: occupancy differs from base shape at cell %d", name, i)
			}
		}
	}
	empty := occupancy(frep.Intersection(a, frep.Emptiness()))
	for i, o := range empty {
		if o {
			t.Fatalf("intersection with empty set occupied at cell %d", i)
		}
	}
}

func TestRenderBitmapArea(t *testing.T) {
	ev := mustEval(t, frep.Sphere(frep.Const(1), frep.Origin3()), box3(1.5))
	region := ms2.Box{Min: ms2.Vec{X: -1.5, Y: -1.5}, Max: ms2.Vec{X: 1.5, Y: 1.5}}
	bm, err := freprender.RenderBitmap(ev.XYSlice(0), region, freprender.Settings{Resolution: 20})
	if err != nil {
		t.Fatal(err)
	}
	cell := float32(1.0 / 20)
	area := float32(bm.Count()) * cell * cell
	if math32.Abs(area-math32.Pi) > 0.1*math32.Pi {
		t.Errorf("disk area %.3f, want about %.3f", area, math32.Pi)
	}
	if bm.At(bm.Width/2, bm.Height/2) != true {
		t.Error("center cell should be occupied")
	}
	if bm.At(0, 0) {
		t.Error("corner cell should be empty")
	}
}

func TestRenderDegenerateInputs(t *testing.T) {
	ev := mustEval(t, frep.Sphere(frep.Const(1), frep.Origin3()), box3(1))
	bad := ms3.Box{Min: ms3.Vec{X: 1}, Max: ms3.Vec{X: -1, Y: 1, Z: 1}}
	if _, err := freprender.RenderMesh(ev, bad, freprender.Settings{Resolution: 10}); err != freprender.ErrDegenerateRegion {
		t.Errorf("degenerate region: got %v", err)
	}
	if _, err := freprender.RenderMesh(ev, box3(1), freprender.Settings{}); err == nil {
		t.Error("zero resolution should fail")
	}
	if _, err := freprender.RenderMesh(ev, box3(1), freprender.Settings{Resolution: 10, Algorithm: 99}); err == nil {
		t.Error("unknown algorithm should fail")
	}
	badRegion2 := ms2.Box{Min: ms2.Vec{X: 1}, Max: ms2.Vec{X: -1, Y: 1}}
	if _, err := freprender.RenderSlice(ev.XYSlice(0), badRegion2, freprender.Settings{Resolution: 10}); err != freprender.ErrDegenerateRegion {
		t.Errorf("degenerate slice region: got %v", err)
	}
}

func TestMeshRendererStreaming(t *testing.T) {
	ev := mustEval(t, frep.Sphere(frep.Const(1), frep.Origin3()), box3(1.3))
	cfg := freprender.Settings{Resolution: 8}
	want, err := freprender.RenderMesh(ev, ev.Bounds(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	mr, err := freprender.NewMeshRenderer(ev, ev.Bounds(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	got, err := freprender.RenderAll(mr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("streamed %d triangles, rendered %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("streamed triangle %d differs", i)
		}
	}
}

func TestBuildTriangleMeshWelds(t *testing.T) {
	a := ms3.Vec{}
	b := ms3.Vec{X: 1}
	c := ms3.Vec{Y: 1}
	d := ms3.Vec{X: 1, Y: 1}
	mesh := freprender.BuildTriangleMesh([]ms3.Triangle{{a, b, c}, {b, d, c}})
	if len(mesh.Vertices) != 4 {
		t.Errorf("want 4 welded vertices, got %d", len(mesh.Vertices))
	}
	if len(mesh.Indices) != 6 {
		t.Errorf("want 6 indices, got %d", len(mesh.Indices))
	}
	if mesh.TriangleCount() != 2 {
		t.Errorf("want 2 triangles, got %d", mesh.TriangleCount())
	}
	if tri := mesh.Triangle(0); tri != (ms3.Triangle{a, b, c}) {
		t.Errorf("triangle 0 mangled: %v", tri)
	}
}

func TestWriteBinarySTL(t *testing.T) {
	ev := mustEval(t, frep.Sphere(frep.Const(1), frep.Origin3()), box3(1.3))
	tris, err := freprender.RenderMesh(ev, ev.Bounds(), freprender.Settings{Resolution: 8})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := freprender.WriteBinarySTL(&buf, tris)
	if err != nil {
		t.Fatal(err)
	}
	want := 84 + 50*len(tris)
	if n != want || buf.Len() != want {
		t.Fatalf("wrote %d bytes (buffer %d), want %d", n, buf.Len(), want)
	}
	count := uint32(buf.Bytes()[80]) | uint32(buf.Bytes()[81])<<8 |
		uint32(buf.Bytes()[82])<<16 | uint32(buf.Bytes()[83])<<24
	if int(count) != len(tris) {
		t.Fatalf("triangle count field %d, want %d", count, len(tris))
	}
}

func TestWriteSVG(t *testing.T) {
	x, y := frep.X(), frep.Y()
	tree := x.Square().Add(y.Square()).SubConst(1)
	ev := mustEval(t, tree, box3(2))
	region := ms2.Box{Min: ms2.Vec{X: -2, Y: -2}, Max: ms2.Vec{X: 2, Y: 2}}
	contours, err := freprender.RenderSlice(ev.XYSlice(0), region, freprender.Settings{Resolution: 10})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := freprender.WriteSVG(&buf, contours, region); err != nil {
		t.Fatal(err)
	}
	svg := buf.String()
	if !strings.Contains(svg, "<svg") || !strings.Contains(svg, "</svg>") {
		t.Error("missing svg envelope")
	}
	if strings.Count(svg, "<path") != len(contours) {
		t.Errorf("want %d path elements, got %d", len(contours), strings.Count(svg, "<path"))
	}
	if !strings.Contains(svg, "Z\"") {
		t.Error("closed contour should end its path with Z")
	}
}
