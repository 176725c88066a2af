package frepio_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/soypat/geometry/ms3"

	"github.com/frepkit/frep"
	"github.com/frepkit/frep/frepeval"
	"github.com/frepkit/frep/frepio"
	"github.com/frepkit/frep/freprender"
)

func shellTree() frep.Tree {
	return frep.Difference(
		frep.Sphere(frep.Const(1), frep.Origin3()),
		frep.Sphere(frep.Const(0.6), frep.Origin3()),
	)
}

func TestRoundTripIdentity(t *testing.T) {
	for _, enc := range []frepio.Encoding{frepio.PackedOpcodes, frepio.PortableOpcodes} {
		orig := shellTree()
		var buf bytes.Buffer
		if err := frepio.Save(&buf, orig, enc); err != nil {
			t.Fatal(err)
		}
		got, err := frepio.Load(&buf)
		if err != nil {
			t.Fatal(err)
		}
		// No free variables: hash-consing makes the reload land on the very
		// same interned nodes.
		if !got.Equals(orig) {
			t.Errorf("encoding %d: reloaded tree not identical to original", enc)
		}
		if got.NodeCount() != orig.NodeCount() {
			t.Errorf("encoding %d: node count %d, want %d", enc, got.NodeCount(), orig.NodeCount())
		}
	}
}

func TestRoundTripMeshBitIdentical(t *testing.T) {
	orig := shellTree()
	var buf bytes.Buffer
	if err := frepio.Save(&buf, orig, frepio.PackedOpcodes); err != nil {
		t.Fatal(err)
	}
	loaded, err := frepio.Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	bounds := ms3.Box{
		Min: ms3.Vec{X: -1.3, Y: -1.3, Z: -1.3},
		Max: ms3.Vec{X: 1.3, Y: 1.3, Z: 1.3},
	}
	cfg := freprender.Settings{Resolution: 8}
	render := func(tree frep.Tree) []ms3.Triangle {
		ev, err := frepeval.NewEvaluator(tree, nil, bounds)
		if err != nil {
			t.Fatal(err)
		}
		tris, err := freprender.RenderMesh(ev, bounds, cfg)
		if err != nil {
			t.Fatal(err)
		}
		return tris
	}
	want := render(orig)
	got := render(loaded)
	if len(got) != len(want) {
		t.Fatalf("triangle count %d after reload, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("triangle %d differs after reload", i)
		}
	}
}

func TestRoundTripFreeVariable(t *testing.T) {
	var vars frep.Variables
	r, err := vars.Add("r", 1)
	if err != nil {
		t.Fatal(err)
	}
	orig := frep.Sphere(r, frep.Origin3())
	var buf bytes.Buffer
	if err := frepio.Save(&buf, orig, frepio.PackedOpcodes); err != nil {
		t.Fatal(err)
	}
	loaded, err := frepio.Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Equals(orig) {
		t.Error("reload of a tree with free variables must produce fresh variable leaves")
	}
	if loaded.NodeCount() != orig.NodeCount() {
		t.Errorf("node count %d, want %d", loaded.NodeCount(), orig.NodeCount())
	}
	freeLeaves := loaded.FreeVariables()
	if len(freeLeaves) != 1 {
		t.Fatalf("want 1 free variable leaf, got %d", len(freeLeaves))
	}
	if freeLeaves[0].Equals(r) {
		t.Error("loaded variable leaf must be distinct from the original")
	}
	// The fresh leaf is usable once registered in a new set.
	var vars2 frep.Variables
	if err := vars2.Adopt("r", freeLeaves[0], 2); err != nil {
		t.Fatal(err)
	}
	if err := vars2.Adopt("c", frep.Const(1), 0); err != frep.ErrNotVariable {
		t.Errorf("adopting a constant: got %v", err)
	}
}

func TestSaveRejectsOracle(t *testing.T) {
	var buf bytes.Buffer
	tree := frep.NewOracle(planeOracle{}).Add(frep.Const(1))
	err := frepio.Save(&buf, tree, frepio.PackedOpcodes)
	if !errors.Is(err, frepio.ErrOracleNotSerializable) {
		t.Fatalf("want ErrOracleNotSerializable, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("failed save wrote %d bytes", buf.Len())
	}
}

type planeOracle struct{}

func (planeOracle) Evaluate(pos []ms3.Vec, dist []float32) error {
	for i, p := range pos {
		dist[i] = p.Z
	}
	return nil
}

func (planeOracle) Bounds() ms3.Box { return ms3.Box{} }

func TestLoadRejectsMalformed(t *testing.T) {
	var good bytes.Buffer
	if err := frepio.Save(&good, shellTree(), frepio.PackedOpcodes); err != nil {
		t.Fatal(err)
	}
	cases := map[string][]byte{
		"empty":          {},
		"bad magic":      []byte("nope1\x01\x01\x02"),
		"truncated":      good.Bytes()[:good.Len()/2],
		"unknown flags":  append([]byte("frep1\x80"), good.Bytes()[6:]...),
		"zero nodes":     []byte("frep1\x01\x00"),
		"forward ref":    []byte("frep1\x01\x02\x07\x01"),
		"unknown opcode": []byte("frep1\x01\x01\xf0"),
	}
	for name, data := range cases {
		if _, err := frepio.Load(bytes.NewReader(data)); err == nil {
			t.Errorf("%s: load succeeded on malformed input", name)
		}
	}
}

func TestFileHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shell.frep")
	orig := shellTree()
	if err := frepio.SaveFile(path, orig); err != nil {
		t.Fatal(err)
	}
	loaded, err := frepio.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Equals(orig) {
		t.Error("file round trip lost tree identity")
	}
	_, err = frepio.LoadFile(filepath.Join(t.TempDir(), "absent.frep"))
	if !errors.Is(err, frepio.ErrFileReadFailed) {
		t.Errorf("want ErrFileReadFailed for absent file, got %v", err)
	}
	err = frepio.SaveFile(filepath.Join(t.TempDir(), "no", "such", "dir.frep"), orig)
	if !errors.Is(err, frepio.ErrFileWriteFailed) {
		t.Errorf("want ErrFileWriteFailed for bad path, got %v", err)
	}
}
