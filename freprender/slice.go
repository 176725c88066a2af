package freprender

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/math/ms1"

	"github.com/frepkit/frep/frepeval"
)

// Contour is an ordered polyline in the slice plane. Closed contours
// implicitly connect the last point back to the first.
type Contour struct {
	Points []ms2.Vec
	Closed bool
}

// RenderSlice extracts the zero set of a 2D field over region as polyline
// contours using marching squares on a uniform grid of the settings'
// resolution. Contours crossing the region boundary come out open.
func RenderSlice(s frepeval.SDF2, region ms2.Box, cfg Settings) ([]Contour, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if err := validRegion2(region); err != nil {
		return nil, err
	}
	res := cfg.cellSize()
	sz := region.Size()
	nx := int(math32.Ceil(sz.X / res))
	ny := int(math32.Ceil(sz.Y / res))
	if nx < 1 || ny < 1 {
		return nil, errBadResolution
	}
	// Corner sample grid, row-major.
	corners := make([]ms2.Vec, (nx+1)*(ny+1))
	for iy := 0; iy <= ny; iy++ {
		for ix := 0; ix <= nx; ix++ {
			corners[iy*(nx+1)+ix] = ms2.Vec{
				X: region.Min.X + res*float32(ix),
				Y: region.Min.Y + res*float32(iy),
			}
		}
	}
	dist := make([]float32, len(corners))
	if err := evaluateParallel2(s, corners, dist, cfg.Workers); err != nil {
		return nil, err
	}
	sample := func(ix, iy int) float32 { return dist[iy*(nx+1)+ix] }

	// First pass: saddle cells need a center sample to disambiguate.
	type cellIdx struct{ x, y int }
	var saddles []cellIdx
	caseOf := func(ix, iy int) int {
		c := 0
		if sample(ix, iy) < 0 {
			c |= 1
		}
		if sample(ix+1, iy) < 0 {
			c |= 2
		}
		if sample(ix+1, iy+1) < 0 {
			c |= 4
		}
		if sample(ix, iy+1) < 0 {
			c |= 8
		}
		return c
	}
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			if c := caseOf(ix, iy); c == 5 || c == 10 {
				saddles = append(saddles, cellIdx{x: ix, y: iy})
			}
		}
	}
	saddleInside := make(map[cellIdx]bool, len(saddles))
	if len(saddles) > 0 {
		pos := make([]ms2.Vec, len(saddles))
		for i, c := range saddles {
			pos[i] = ms2.Vec{
				X: region.Min.X + res*(float32(c.x)+0.5),
				Y: region.Min.Y + res*(float32(c.y)+0.5),
			}
		}
		d := make([]float32, len(pos))
		if err := evaluateParallel2(s, pos, d, cfg.Workers); err != nil {
			return nil, err
		}
		for i, c := range saddles {
			saddleInside[c] = d[i] < 0
		}
	}

	cb := contourBuilder{
		points: make(map[gridEdge]ms2.Vec),
		adj:    make(map[gridEdge][]int),
	}
	// Crossing point of a grid edge by linear interpolation.
	edgePoint := func(e gridEdge) ms2.Vec {
		d0 := sample(e.x, e.y)
		var d1 float32
		p := ms2.Vec{X: region.Min.X + res*float32(e.x), Y: region.Min.Y + res*float32(e.y)}
		if e.vertical {
			d1 = sample(e.x, e.y+1)
			p.Y += res * ms1.Clamp(-d0/(d1-d0), 0, 1)
		} else {
			d1 = sample(e.x+1, e.y)
			p.X += res * ms1.Clamp(-d0/(d1-d0), 0, 1)
		}
		return p
	}
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			c := caseOf(ix, iy)
			bottom := gridEdge{x: ix, y: iy}
			top := gridEdge{x: ix, y: iy + 1}
			left := gridEdge{x: ix, y: iy, vertical: true}
			right := gridEdge{x: ix + 1, y: iy, vertical: true}
			emit := func(a, b gridEdge) { cb.addSegment(a, edgePoint(a), b, edgePoint(b)) }
			switch c {
			case 0, 15:
			case 1, 14:
				emit(bottom, left)
			case 2, 13:
				emit(bottom, right)
			case 3, 12:
				emit(left, right)
			case 4, 11:
				emit(right, top)
			case 6, 9:
				emit(bottom, top)
			case 7, 8:
				emit(top, left)
			case 5:
				if saddleInside[cellIdx{x: ix, y: iy}] {
					emit(bottom, right)
					emit(top, left)
				} else {
					emit(bottom, left)
					emit(right, top)
				}
			case 10:
				if saddleInside[cellIdx{x: ix, y: iy}] {
					emit(bottom, left)
					emit(right, top)
				} else {
					emit(bottom, right)
					emit(top, left)
				}
			}
		}
	}
	return cb.chain(), nil
}

// gridEdge identifies a grid edge by its lower corner lattice coordinates.
// Crossing points live on grid edges, so chaining by edge identity is exact
// with no floating point comparisons.
type gridEdge struct {
	x, y     int
	vertical bool
}

type contourSegment struct {
	a, b gridEdge
	used bool
}

type contourBuilder struct {
	segments []contourSegment
	points   map[gridEdge]ms2.Vec
	adj      map[gridEdge][]int
}

func (cb *contourBuilder) addSegment(a gridEdge, pa ms2.Vec, b gridEdge, pb ms2.Vec) {
	id := len(cb.segments)
	cb.segments = append(cb.segments, contourSegment{a: a, b: b})
	cb.points[a] = pa
	cb.points[b] = pb
	cb.adj[a] = append(cb.adj[a], id)
	cb.adj[b] = append(cb.adj[b], id)
}

// chain stitches segments into polylines. Segments are consumed in creation
// order so output ordering is deterministic.
func (cb *contourBuilder) chain() []Contour {
	var out []Contour
	for id := range cb.segments {
		if cb.segments[id].used {
			continue
		}
		cb.segments[id].used = true
		seg := cb.segments[id]
		keys := []gridEdge{seg.a, seg.b}
		closed := false
		// Extend forward from b, then backward from a.
		for {
			last := keys[len(keys)-1]
			next, ok := cb.takeAt(last)
			if !ok {
				break
			}
			if next == keys[0] {
				closed = true
				break
			}
			keys = append(keys, next)
		}
		if !closed {
			for {
				first := keys[0]
				prev, ok := cb.takeAt(first)
				if !ok {
					break
				}
				keys = append([]gridEdge{prev}, keys...)
			}
		}
		pts := make([]ms2.Vec, len(keys))
		for i, k := range keys {
			pts[i] = cb.points[k]
		}
		out = append(out, Contour{Points: pts, Closed: closed})
	}
	return out
}

// takeAt consumes the unused segment incident at key and returns its far end.
func (cb *contourBuilder) takeAt(key gridEdge) (gridEdge, bool) {
	for _, id := range cb.adj[key] {
		s := &cb.segments[id]
		if s.used {
			continue
		}
		s.used = true
		if s.a == key {
			return s.b, true
		}
		return s.a, true
	}
	return gridEdge{}, false
}
