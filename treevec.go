package frep

// Vec2 is a 2D point or direction with tree-valued components, letting shape
// parameters be driven by free variables as well as constants.
type Vec2 struct {
	X, Y Tree
}

// V2 lifts constant coordinates into a [Vec2].
func V2(x, y float32) Vec2 {
	return Vec2{X: Const(x), Y: Const(y)}
}

// Vec3 is a 3D point or direction with tree-valued components.
type Vec3 struct {
	X, Y, Z Tree
}

// V3 lifts constant coordinates into a [Vec3].
func V3(x, y, z float32) Vec3 {
	return Vec3{X: Const(x), Y: Const(y), Z: Const(z)}
}

// Origin2 is the 2D origin.
func Origin2() Vec2 { return V2(0, 0) }

// Origin3 is the 3D origin.
func Origin3() Vec3 { return V3(0, 0, 0) }

func (v Vec2) mustValid() {
	v.X.mustValid()
	v.Y.mustValid()
}

func (v Vec3) mustValid() {
	v.X.mustValid()
	v.Y.mustValid()
	v.Z.mustValid()
}

// xy drops the Z component.
func (v Vec3) xy() Vec2 { return Vec2{X: v.X, Y: v.Y} }
