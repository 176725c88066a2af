package frep

import "github.com/chewxy/math32"

// Array generators replicate a shape along linear or angular grids, and
// ExtrudeZ sweeps a 2D shape into 3D. All are sugar over union folds of
// transformed copies, so replication count must be a concrete integer while
// spacing may be variable.

// ExtrudeZ bounds a 2D shape between the planes z=zmin and z=zmax.
func ExtrudeZ(t Tree, zmin, zmax Tree) Tree {
	return t.Max(zmin.Sub(Z()).Max(Z().Sub(zmax)))
}

// ArrayX unions n copies of the shape spaced dx apart along x. It panics if
// n < 1.
func (t Tree) ArrayX(n int, dx Tree) Tree {
	if n < 1 {
		panic("frep: array count must be positive")
	}
	copies := make([]Tree, n)
	for i := range copies {
		copies[i] = t.Move(Vec3{X: dx.MulConst(float32(i)), Y: Const(0), Z: Const(0)})
	}
	return UnionMulti(copies)
}

// ArrayXY unions an nx by ny grid of copies spaced delta apart.
func (t Tree) ArrayXY(nx, ny int, delta Vec2) Tree {
	if nx < 1 || ny < 1 {
		panic("frep: array count must be positive")
	}
	delta.mustValid()
	row := t.ArrayX(nx, delta.X)
	copies := make([]Tree, ny)
	for i := range copies {
		copies[i] = row.Move(Vec3{X: Const(0), Y: delta.Y.MulConst(float32(i)), Z: Const(0)})
	}
	return UnionMulti(copies)
}

// ArrayXYZ unions an nx by ny by nz grid of copies spaced delta apart.
func (t Tree) ArrayXYZ(nx, ny, nz int, delta Vec3) Tree {
	if nx < 1 || ny < 1 || nz < 1 {
		panic("frep: array count must be positive")
	}
	delta.mustValid()
	plane := t.ArrayXY(nx, ny, delta.xy())
	copies := make([]Tree, nz)
	for i := range copies {
		copies[i] = plane.Move(Vec3{X: Const(0), Y: Const(0), Z: delta.Z.MulConst(float32(i))})
	}
	return UnionMulti(copies)
}

// ArrayPolarZ unions n copies of the shape rotated into an even fan about the
// z-parallel axis through center.
func (t Tree) ArrayPolarZ(n int, center Vec2) Tree {
	if n < 1 {
		panic("frep: array count must be positive")
	}
	center.mustValid()
	c := Vec3{X: center.X, Y: center.Y, Z: Const(0)}
	copies := make([]Tree, n)
	for i := range copies {
		copies[i] = t.RotateZ(Const(2*math32.Pi*float32(i)/float32(n)), c)
	}
	return UnionMulti(copies)
}
