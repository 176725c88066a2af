package freprender

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"golang.org/x/sync/errgroup"

	"github.com/frepkit/frep/frepeval"
)

// This file contains basic low level algorithms regarding octrees.

// ivec is an octree lattice coordinate. One lattice unit is half the smallest
// cube edge, so cube centers and corners are both representable exactly.
type ivec struct {
	x, y, z int
}

func (a ivec) Add(b ivec) ivec {
	return ivec{x: a.x + b.x, y: a.y + b.y, z: a.z + b.z}
}

// icube is an axis-aligned octree cube. lvl 1 cubes are the smallest; a cube
// of level l has edge 2^l lattice units. The zero icube (lvl 0) is invalid
// and marks consumed buffer slots.
type icube struct {
	ivec ivec
	lvl  int
}

// size returns the cube edge length where res is the smallest cube edge.
func (c icube) size(res float32) float32 {
	return res * float32(int(1)<<(c.lvl-1))
}

// origin returns the minimum corner of the cube in world coordinates.
func (c icube) origin(origin ms3.Vec, res float32) ms3.Vec {
	h := res / 2
	return ms3.Add(origin, ms3.Vec{
		X: h * float32(c.ivec.x),
		Y: h * float32(c.ivec.y),
		Z: h * float32(c.ivec.z),
	})
}

// center returns the cube center in world coordinates.
func (c icube) center(worldOrigin ms3.Vec, res float32) ms3.Vec {
	sz := c.size(res)
	return ms3.AddScalar(sz/2, c.origin(worldOrigin, res))
}

// box returns the cube bounds in world coordinates.
func (c icube) box(worldOrigin ms3.Vec, res float32) ms3.Box {
	orig := c.origin(worldOrigin, res)
	return ms3.Box{Min: orig, Max: ms3.AddScalar(c.size(res), orig)}
}

// octree decomposes the cube into its 8 children in a fixed z-major corner
// order. Traversal order must stay a pure function of geometry so renders are
// reproducible.
func (c icube) octree() [8]icube {
	lvl := c.lvl - 1
	s := 1 << lvl
	i := c.ivec
	return [8]icube{
		{ivec: i, lvl: lvl},
		{ivec: i.Add(ivec{x: s}), lvl: lvl},
		{ivec: i.Add(ivec{y: s}), lvl: lvl},
		{ivec: i.Add(ivec{x: s, y: s}), lvl: lvl},
		{ivec: i.Add(ivec{z: s}), lvl: lvl},
		{ivec: i.Add(ivec{x: s, z: s}), lvl: lvl},
		{ivec: i.Add(ivec{y: s, z: s}), lvl: lvl},
		{ivec: i.Add(ivec{x: s, y: s, z: s}), lvl: lvl},
	}
}

// decomposesTo returns how many cubes of minLvl the cube decomposes into.
func (c icube) decomposesTo(minLvl int) uint64 {
	return 1 << (3 * uint(c.lvl-minLvl))
}

// makeICube sizes a top-level octree cube covering bb with smallest cubes of
// edge minResolution.
func makeICube(bb ms3.Box, minResolution float32) (topCube icube, origin ms3.Vec, err error) {
	if minResolution <= 0 || math32.IsNaN(minResolution) || math32.IsInf(minResolution, 0) {
		return icube{}, ms3.Vec{}, errors.New("invalid renderer cube resolution")
	}
	sz := bb.Size()
	longAxis := sz.Max()
	// how many cube levels for the octree?
	log2 := math32.Log2(longAxis / minResolution)
	levels := int(math32.Ceil(log2)) + 1
	if levels <= 1 {
		return icube{}, ms3.Vec{}, errors.New("resolution not fine enough for boundary extraction")
	}
	return icube{lvl: levels}, bb.Min, nil
}

// collectLeaves gathers the smallest-level cubes of the octree that may
// contain surface, in deterministic cube order. Pruning uses interval
// analysis when the field supports it; otherwise the octree decomposes fully
// and leaf filtering is left to the per-cell sampling of the extractor.
//
// Branches are processed on the worker pool; the merged result is ordered by
// branch index, independent of scheduling.
func collectLeaves(s frepeval.SDF3, top icube, origin ms3.Vec, res float32, workers int) ([]icube, error) {
	ie, _ := s.(IntervalEvaluator)

	// Fan out on the first levels with enough branches to saturate workers.
	branches := []icube{top}
	for len(branches) < 4*workers && branches[0].lvl > 2 {
		next := make([]icube, 0, len(branches)*8)
		for _, b := range branches {
			sub := b.octree()
			next = append(next, sub[:]...)
		}
		branches = next
	}

	results := make([][]icube, len(branches))
	var g errgroup.Group
	g.SetLimit(workers)
	for bi, branch := range branches {
		g.Go(func() error {
			leaves, err := descend(ie, nil, branch, origin, res)
			results[bi] = leaves
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var leaves []icube
	for _, r := range results {
		leaves = append(leaves, r...)
	}
	return leaves, nil
}

// descend appends surface candidate leaves of cube to dst depth-first.
func descend(ie IntervalEvaluator, dst []icube, cube icube, origin ms3.Vec, res float32) ([]icube, error) {
	if ie != nil {
		iv, err := ie.EvaluateInterval(cube.box(origin, res))
		if err != nil {
			return dst, err
		}
		if iv.IsEmptyOutside() || iv.IsFullInside() {
			return dst, nil
		}
	}
	if cube.lvl == 1 {
		return append(dst, cube), nil
	}
	var err error
	for _, sub := range cube.octree() {
		dst, err = descend(ie, dst, sub, origin, res)
		if err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// pruneNoSurface discards leaves whose center distance proves no surface
// within the cube under a maxDistMult*size Lipschitz bound. Used to thin
// fully decomposed leaf sets when interval pruning is unavailable; assumes
// the field does not understate distance.
func pruneNoSurface(s frepeval.SDF3, leaves []icube, origin ms3.Vec, res float32, maxDistMult float32, workers int) ([]icube, error) {
	if len(leaves) == 0 {
		return leaves, nil
	}
	pos := make([]ms3.Vec, len(leaves))
	dist := make([]float32, len(leaves))
	for i, c := range leaves {
		pos[i] = c.center(origin, res)
	}
	if err := evaluateParallel(s, pos, dist, workers); err != nil {
		return leaves, err
	}
	keep := leaves[:0]
	for i, c := range leaves {
		maxDist := c.size(res) * maxDistMult
		if math32.Abs(dist[i]) < maxDist {
			keep = append(keep, c)
		}
	}
	return keep, nil
}
