package freprender

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"

	"github.com/frepkit/frep/frepeval"
)

// Dual contouring: one vertex per boundary cell, one quad per sign-changing
// cell edge. Each cell owns the three edges incident at its minimum corner.

// dualCell carries the samples and derived state of one boundary cell.
type dualCell struct {
	// Distance from cell origin corner to the surface.
	origDist float32
	// Distances at the far ends of the three origin-incident edges.
	xDist, yDist, zDist float32
	// Surface crossing points accumulated from this cell's and neighboring
	// cells' active edges, with their normal buffer indices.
	biasVerts   []ms3.Vec
	biasVertIdx []int
	normalSum   ms3.Vec
	// vertex is the final per-cell vertex all incident quads meet at.
	vertex    ms3.Vec
	hasVertex bool
}

func makeDualCell(data []float32) dualCell {
	return dualCell{origDist: data[0], xDist: data[1], yDist: data[2], zDist: data[3]}
}

func (dc *dualCell) addBiasVert(v ms3.Vec, idx int) {
	dc.biasVerts = append(dc.biasVerts, v)
	dc.biasVertIdx = append(dc.biasVertIdx, idx)
}

func (dc *dualCell) vertMean() (mean ms3.Vec) {
	for _, v := range dc.biasVerts {
		mean = ms3.Add(mean, v)
	}
	return ms3.Scale(1/float32(len(dc.biasVerts)), mean)
}

func (dc *dualCell) isActive() bool { return dc.xActive() || dc.yActive() || dc.zActive() }

func signDiffers(a, b float32) bool {
	return math32.Float32bits(a)&(1<<31) != math32.Float32bits(b)&(1<<31)
}

func (dc *dualCell) xActive() bool { return signDiffers(dc.origDist, dc.xDist) }
func (dc *dualCell) yActive() bool { return signDiffers(dc.origDist, dc.yDist) }
func (dc *dualCell) zActive() bool { return signDiffers(dc.origDist, dc.zDist) }

// Linear zero crossing along each origin edge, as a fraction of the edge.
func (dc *dualCell) xIsectLinear() float32 { return -dc.origDist / (dc.xDist - dc.origDist) }
func (dc *dualCell) yIsectLinear() float32 { return -dc.origDist / (dc.yDist - dc.origDist) }
func (dc *dualCell) zIsectLinear() float32 { return -dc.origDist / (dc.zDist - dc.origDist) }

// Winding of the quad around an active edge follows the field gradient along
// the edge.
func (dc *dualCell) xFlip() bool { return dc.xDist-dc.origDist < 0 }
func (dc *dualCell) yFlip() bool { return dc.yDist-dc.origDist < 0 }
func (dc *dualCell) zFlip() bool { return dc.zDist-dc.origDist < 0 }

// edgeCellNeighbors returns the lattice coordinates of the four cells
// sharing the axis edge at v, in circular order around the edge oriented so
// the shared flip rule yields outward-facing quads. Smallest cells span two
// lattice units.
func edgeCellNeighbors(v ivec, axis int) [4]ivec {
	const sub = -2
	switch axis {
	case 0: // x
		return [4]ivec{
			v.Add(ivec{y: sub, z: sub}), v.Add(ivec{z: sub}), v, v.Add(ivec{y: sub}),
		}
	case 1: // y
		return [4]ivec{
			v.Add(ivec{x: sub, z: sub}), v.Add(ivec{x: sub}), v, v.Add(ivec{z: sub}),
		}
	case 2: // z
		return [4]ivec{
			v.Add(ivec{x: sub, y: sub}), v.Add(ivec{y: sub}), v, v.Add(ivec{x: sub}),
		}
	}
	panic("invalid axis")
}

// renderDualContour extracts the boundary of s over the leaf cells. With
// meanVertex set the least-squares vertex placement is replaced by the mean
// of edge crossings, which is guaranteed to stay within the cell.
func renderDualContour(s frepeval.SDF3, leaves []icube, origin ms3.Vec, res float32, cfg Settings, meanVertex bool) ([]ms3.Triangle, error) {
	ncells := len(leaves)
	if ncells == 0 {
		return nil, nil
	}
	cellMap := make(map[ivec]int, ncells)
	pos := make([]ms3.Vec, 0, ncells*4)
	for i, c := range leaves {
		sz := c.size(res)
		orig := c.origin(origin, res)
		pos = append(pos,
			orig,
			ms3.Add(orig, ms3.Vec{X: sz}),
			ms3.Add(orig, ms3.Vec{Y: sz}),
			ms3.Add(orig, ms3.Vec{Z: sz}),
		)
		cellMap[c.ivec] = i
	}
	dist := make([]float32, len(pos))
	if err := evaluateParallel(s, pos, dist, cfg.Workers); err != nil {
		return nil, err
	}

	// Accumulate edge crossings into the four cells surrounding each active
	// edge. Iteration order fixes the crossing buffer layout.
	cells := make([]dualCell, ncells)
	var crossings []ms3.Vec
	for i, c := range leaves {
		cell := makeDualCell(dist[i*4:])
		cells[i] = cell
		if !cell.isActive() {
			continue
		}
		sz := c.size(res)
		orig := c.origin(origin, res)
		if cell.xActive() {
			x := ms3.Add(orig, ms3.Vec{X: sz * cell.xIsectLinear()})
			crossings = append(crossings, x)
			spreadBias(cells, cellMap, c.ivec, 0, x, len(crossings)-1)
		}
		if cell.yActive() {
			y := ms3.Add(orig, ms3.Vec{Y: sz * cell.yIsectLinear()})
			crossings = append(crossings, y)
			spreadBias(cells, cellMap, c.ivec, 1, y, len(crossings)-1)
		}
		if cell.zActive() {
			z := ms3.Add(orig, ms3.Vec{Z: sz * cell.zIsectLinear()})
			crossings = append(crossings, z)
			spreadBias(cells, cellMap, c.ivec, 2, z, len(crossings)-1)
		}
	}
	if len(crossings) == 0 {
		return nil, nil
	}

	normals := make([]ms3.Vec, len(crossings))
	const normStep = 2e-5
	if err := normalsParallel(s, crossings, normals, normStep, cfg.Workers); err != nil {
		return nil, err
	}

	for i := range cells {
		dc := &cells[i]
		if len(dc.biasVerts) == 0 {
			continue
		}
		cellOrigin := leaves[i].origin(origin, res)
		if meanVertex {
			dc.vertex = dc.vertMean()
			dc.hasVertex = true
			for _, bi := range dc.biasVertIdx {
				dc.normalSum = ms3.Add(dc.normalSum, ms3.Unit(normals[bi]))
			}
			continue
		}
		dc.vertex = qefVertex(dc, cellOrigin, normals)
		dc.hasVertex = true
	}

	if cfg.Quality > QualityNoMerge {
		mergeCoplanarCells(cells, leaves, res, cfg.Quality)
	}

	var tris []ms3.Triangle
	for i, c := range leaves {
		cell := &cells[i]
		if !cell.isActive() {
			continue
		}
		if cell.xActive() {
			tris = emitQuad(tris, cells, cellMap, c.ivec, 0, cell.xFlip())
		}
		if cell.yActive() {
			tris = emitQuad(tris, cells, cellMap, c.ivec, 1, cell.yFlip())
		}
		if cell.zActive() {
			tris = emitQuad(tris, cells, cellMap, c.ivec, 2, cell.zFlip())
		}
	}
	return tris, nil
}

// spreadBias adds the crossing to every cell sharing the active edge.
func spreadBias(cells []dualCell, cellMap map[ivec]int, v ivec, axis int, crossing ms3.Vec, idx int) {
	for _, nv := range edgeCellNeighbors(v, axis) {
		if ci, ok := cellMap[nv]; ok {
			cells[ci].addBiasVert(crossing, idx)
		}
	}
}

// qefVertex solves the least-squares vertex minimizing distance to the
// tangent planes at the cell's crossings, regularized toward their mean.
func qefVertex(dc *dualCell, cellOrigin ms3.Vec, normals []ms3.Vec) ms3.Vec {
	var AtA ms3.Mat3
	var Atb ms3.Vec
	for i, p := range dc.biasVerts {
		qi := ms3.Sub(p, cellOrigin)
		ni := ms3.Unit(normals[dc.biasVertIdx[i]])
		dc.normalSum = ms3.Add(dc.normalSum, ni)
		AtA = ms3.AddMat3(AtA, ms3.Prod(ni, ni))
		Atb = ms3.Add(Atb, ms3.Scale(ms3.Dot(ni, qi), ni))
	}
	bias := dc.vertMean()
	const lambda = 3e-3
	AtA = ms3.AddMat3(AtA, ms3.ScaleMat3(ms3.IdentityMat3(), lambda))
	Atb = ms3.Add(Atb, ms3.Scale(lambda, ms3.Sub(bias, cellOrigin)))
	if math32.Abs(AtA.Determinant()) < 1e-5 {
		// Singular or near-singular matrix; fall back to mean position.
		return bias
	}
	x := ms3.MulMatVec(AtA.Inverse(), Atb)
	return ms3.Add(x, cellOrigin)
}

// mergeCoplanarCells collapses the vertices of sibling cell groups whose
// vertices are nearly coplanar into their shared mean. Connectivity is left
// untouched so the mesh stays closed; quads internal to a merged group
// degenerate and are dropped at emission.
func mergeCoplanarCells(cells []dualCell, leaves []icube, res float32, quality float32) {
	type group struct {
		members []int
	}
	groups := make(map[ivec]*group)
	var keys []ivec
	for i := range cells {
		if !cells[i].hasVertex {
			continue
		}
		v := leaves[i].ivec
		// Siblings share a level-2 parent spanning 4 lattice units.
		key := ivec{x: v.x &^ 3, y: v.y &^ 3, z: v.z &^ 3}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			keys = append(keys, key)
		}
		g.members = append(g.members, i)
	}
	tol := 2 * res / quality
	for _, key := range keys {
		g := groups[key]
		if len(g.members) < 2 {
			continue
		}
		var mean, nsum ms3.Vec
		for _, ci := range g.members {
			mean = ms3.Add(mean, cells[ci].vertex)
			nsum = ms3.Add(nsum, cells[ci].normalSum)
		}
		mean = ms3.Scale(1/float32(len(g.members)), mean)
		if ms3.Norm(nsum) == 0 {
			continue
		}
		n := ms3.Unit(nsum)
		flat := true
		for _, ci := range g.members {
			if math32.Abs(ms3.Dot(n, ms3.Sub(cells[ci].vertex, mean))) > tol {
				flat = false
				break
			}
		}
		if !flat {
			continue
		}
		for _, ci := range g.members {
			cells[ci].vertex = mean
		}
	}
}

// emitQuad appends the two triangles of the quad around the axis edge at v.
// Quads missing a neighbor cell vertex (region boundary) and triangles
// degenerated by cell merging are dropped.
func emitQuad(dst []ms3.Triangle, cells []dualCell, cellMap map[ivec]int, v ivec, axis int, flip bool) []ms3.Triangle {
	var quad [4]ms3.Vec
	for iq, nv := range edgeCellNeighbors(v, axis) {
		ci, ok := cellMap[nv]
		if !ok || !cells[ci].hasVertex {
			return dst
		}
		quad[iq] = cells[ci].vertex
	}
	if flip {
		quad = [4]ms3.Vec{quad[3], quad[2], quad[1], quad[0]}
	}
	for _, tri := range [2]ms3.Triangle{
		{quad[0], quad[1], quad[2]},
		{quad[2], quad[3], quad[0]},
	} {
		if tri[0] != tri[1] && tri[1] != tri[2] && tri[2] != tri[0] {
			dst = append(dst, tri)
		}
	}
	return dst
}
