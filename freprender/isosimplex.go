package freprender

import (
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"

	"github.com/frepkit/frep/frepeval"
)

// Iso-simplex boundary extraction: each boundary cell splits into six
// tetrahedra around the main cell diagonal and every tetrahedron is marched
// independently. Vertices land on cell edges, so the result is crack-free
// on uniform leaf grids without any vertex solve.

// cellTets indexes cube corners (bit 0 x, bit 1 y, bit 2 z) into the six
// tetrahedra sharing the 0-7 diagonal.
var cellTets = [6][4]int{
	{0, 5, 1, 7},
	{0, 1, 3, 7},
	{0, 3, 2, 7},
	{0, 2, 6, 7},
	{0, 6, 4, 7},
	{0, 4, 5, 7},
}

func renderIsoSimplex(s frepeval.SDF3, leaves []icube, origin ms3.Vec, res float32, cfg Settings) ([]ms3.Triangle, error) {
	if len(leaves) == 0 {
		return nil, nil
	}
	pos := make([]ms3.Vec, 0, len(leaves)*8)
	for _, c := range leaves {
		sz := c.size(res)
		orig := c.origin(origin, res)
		for corner := 0; corner < 8; corner++ {
			pos = append(pos, ms3.Add(orig, ms3.Vec{
				X: sz * float32(corner&1),
				Y: sz * float32(corner>>1&1),
				Z: sz * float32(corner>>2&1),
			}))
		}
	}
	dist := make([]float32, len(pos))
	if err := evaluateParallel(s, pos, dist, cfg.Workers); err != nil {
		return nil, err
	}
	var tris []ms3.Triangle
	for i := range leaves {
		corners := pos[i*8 : i*8+8]
		d := dist[i*8 : i*8+8]
		for _, tet := range cellTets {
			tris = marchTetrahedron(tris,
				[4]ms3.Vec{corners[tet[0]], corners[tet[1]], corners[tet[2]], corners[tet[3]]},
				[4]float32{d[tet[0]], d[tet[1]], d[tet[2]], d[tet[3]]})
		}
	}
	return tris, nil
}

// edgeZero returns the linear zero crossing of the segment a-b.
func edgeZero(a, b ms3.Vec, da, db float32) ms3.Vec {
	t := ms1.Clamp(-da/(db-da), 0, 1)
	return ms3.Add(a, ms3.Scale(t, ms3.Sub(b, a)))
}

// marchTetrahedron appends the boundary triangles of one tetrahedron,
// oriented with normals pointing out of the negative region.
func marchTetrahedron(dst []ms3.Triangle, p [4]ms3.Vec, d [4]float32) []ms3.Triangle {
	var index int
	for i := 0; i < 4; i++ {
		if d[i] < 0 {
			index |= 1 << i
		}
	}
	iz := func(i, j int) ms3.Vec { return edgeZero(p[i], p[j], d[i], d[j]) }
	var tris [2]ms3.Triangle
	n := 0
	switch index {
	case 0x00, 0x0F:
		return dst
	case 0x01, 0x0E:
		tris[0] = ms3.Triangle{iz(0, 1), iz(0, 2), iz(0, 3)}
		n = 1
	case 0x02, 0x0D:
		tris[0] = ms3.Triangle{iz(1, 0), iz(1, 3), iz(1, 2)}
		n = 1
	case 0x03, 0x0C:
		tris[0] = ms3.Triangle{iz(0, 3), iz(0, 2), iz(1, 3)}
		tris[1] = ms3.Triangle{iz(1, 3), iz(0, 2), iz(1, 2)}
		n = 2
	case 0x04, 0x0B:
		tris[0] = ms3.Triangle{iz(2, 0), iz(2, 1), iz(2, 3)}
		n = 1
	case 0x05, 0x0A:
		tris[0] = ms3.Triangle{iz(0, 1), iz(2, 3), iz(0, 3)}
		tris[1] = ms3.Triangle{iz(0, 1), iz(1, 2), iz(2, 3)}
		n = 2
	case 0x06, 0x09:
		tris[0] = ms3.Triangle{iz(0, 1), iz(1, 3), iz(2, 3)}
		tris[1] = ms3.Triangle{iz(0, 1), iz(2, 3), iz(0, 2)}
		n = 2
	case 0x07, 0x08:
		tris[0] = ms3.Triangle{iz(3, 0), iz(3, 2), iz(3, 1)}
		n = 1
	}
	// The case table does not distinguish complementary sign patterns, so
	// orient each triangle against the inside centroid explicitly.
	var inside ms3.Vec
	var cnt float32
	for i := 0; i < 4; i++ {
		if d[i] < 0 {
			inside = ms3.Add(inside, p[i])
			cnt++
		}
	}
	inside = ms3.Scale(1/cnt, inside)
	for i := 0; i < n; i++ {
		tri := tris[i]
		nrm := ms3.Cross(ms3.Sub(tri[1], tri[0]), ms3.Sub(tri[2], tri[0]))
		centroid := ms3.Scale(1.0/3, ms3.Add(ms3.Add(tri[0], tri[1]), tri[2]))
		if ms3.Dot(nrm, ms3.Sub(centroid, inside)) < 0 {
			tri[1], tri[2] = tri[2], tri[1]
		}
		if tri[0] != tri[1] && tri[1] != tri[2] && tri[2] != tri[0] {
			dst = append(dst, tri)
		}
	}
	return dst
}
