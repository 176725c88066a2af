package textfrep

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"

	"github.com/frepkit/frep"
)

// Polygon returns the exact signed distance field of the simple polygon with
// the argument vertices as an oracle tree. The field ignores the third
// coordinate, describing a prism of infinite height; bound it with
// [frep.ExtrudeZ] to obtain a solid. Winding order does not matter.
func Polygon(verts []ms2.Vec) (frep.Tree, error) {
	if len(verts) < 3 {
		return frep.Tree{}, errors.New("textfrep: polygon needs at least 3 vertices")
	}
	p := &polygon2D{verts: append([]ms2.Vec{}, verts...)}
	p.bb = ms2.Box{Min: verts[0], Max: verts[0]}
	for _, v := range verts[1:] {
		p.bb.Min = ms2.MinElem(p.bb.Min, v)
		p.bb.Max = ms2.MaxElem(p.bb.Max, v)
	}
	return frep.NewOracle(p), nil
}

type polygon2D struct {
	verts []ms2.Vec
	bb    ms2.Box
}

func (p *polygon2D) Evaluate(pos []ms3.Vec, dist []float32) error {
	// https://www.shadertoy.com/view/wdBXRW
	verts := p.verts
	for i, p3 := range pos {
		p := ms2.Vec{X: p3.X, Y: p3.Y}
		d := ms2.Norm2(ms2.Sub(p, verts[0]))
		s := float32(1.0)
		jv := len(verts) - 1
		for iv, v1 := range verts {
			v2 := verts[jv]
			e := ms2.Sub(v2, v1)
			w := ms2.Sub(p, v1)
			b := ms2.Sub(w, ms2.Scale(ms1.Clamp(ms2.Dot(w, e)/ms2.Norm2(e), 0, 1), e))
			d = math32.Min(d, ms2.Norm2(b))
			// winding number from http://geomalgorithms.com/a03-_inclusion.html
			b1 := p.Y >= v1.Y
			b2 := p.Y < v2.Y
			b3 := e.X*w.Y > e.Y*w.X
			if (b1 && b2 && b3) || ((!b1) && (!b2) && (!b3)) {
				s = -s
			}
			jv = iv
		}
		dist[i] = s * math32.Sqrt(d)
	}
	return nil
}

func (p *polygon2D) Bounds() ms3.Box {
	return ms3.Box{
		Min: ms3.Vec{X: p.bb.Min.X, Y: p.bb.Min.Y, Z: math32.Inf(-1)},
		Max: ms3.Vec{X: p.bb.Max.X, Y: p.bb.Max.Y, Z: math32.Inf(1)},
	}
}
