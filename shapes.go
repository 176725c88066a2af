package frep

import "github.com/chewxy/math32"

// Shape constructors build closed-form signed-distance-like fields out of the
// axis leaves and the operator catalog. All numeric parameters are
// tree-valued so shapes can be driven by free variables; use [Const], [V2] and
// [V3] for fixed dimensions.

// Circle is a 2D circle of radius r at center.
func Circle(r Tree, center Vec2) Tree {
	center.mustValid()
	c := X().Square().Add(Y().Square()).Sqrt().Sub(r)
	return c.Move(Vec3{X: center.X, Y: center.Y, Z: Const(0)})
}

// Ring is a 2D annulus with outer radius ro and inner radius ri at center.
func Ring(ro, ri Tree, center Vec2) Tree {
	return Difference(Circle(ro, center), Circle(ri, center))
}

// Polygon is a regular 2D polygon with n sides inscribed in a circle of
// radius r at center. It panics if n < 3.
func Polygon(r Tree, n int, center Vec2) Tree {
	if n < 3 {
		panic("frep: polygon needs at least 3 sides")
	}
	// Inradius of the inscribed polygon.
	in := r.MulConst(math32.Cos(math32.Pi / float32(n)))
	half := Y().Sub(in)
	sides := make([]Tree, n)
	for i := range sides {
		sides[i] = half.RotateZ(Const(2*math32.Pi*float32(i)/float32(n)), Origin3())
	}
	p := IntersectionMulti(sides)
	return p.Move(Vec3{X: center.X, Y: center.Y, Z: Const(0)})
}

// Rectangle is an axis-aligned 2D rectangle with corners a and b. The field
// is mitered (correct sign, not exact exterior distance); see
// [RectangleExact] for a true distance field.
func Rectangle(a, b Vec2) Tree {
	a.mustValid()
	b.mustValid()
	return IntersectionMulti([]Tree{
		a.X.Sub(X()), X().Sub(b.X),
		a.Y.Sub(Y()), Y().Sub(b.Y),
	})
}

// RoundedRectangle is a 2D rectangle with corners a and b and corner radius
// given as a fraction r in [0,1] of the smaller side.
func RoundedRectangle(a, b Vec2, r Tree) Tree {
	a.mustValid()
	b.mustValid()
	rad := r.Mul(b.X.Sub(a.X).Min(b.Y.Sub(a.Y))).DivConst(2)
	return UnionMulti([]Tree{
		Rectangle(Vec2{X: a.X, Y: a.Y.Add(rad)}, Vec2{X: b.X, Y: b.Y.Sub(rad)}),
		Rectangle(Vec2{X: a.X.Add(rad), Y: a.Y}, Vec2{X: b.X.Sub(rad), Y: b.Y}),
		Circle(rad, Vec2{X: a.X.Add(rad), Y: a.Y.Add(rad)}),
		Circle(rad, Vec2{X: b.X.Sub(rad), Y: a.Y.Add(rad)}),
		Circle(rad, Vec2{X: a.X.Add(rad), Y: b.Y.Sub(rad)}),
		Circle(rad, Vec2{X: b.X.Sub(rad), Y: b.Y.Sub(rad)}),
	})
}

// RectangleCenteredExact is an exact-distance 2D rectangle of the given size
// centered at center.
func RectangleCenteredExact(size, center Vec2) Tree {
	size.mustValid()
	center.mustValid()
	dx := X().Abs().Sub(size.X.DivConst(2))
	dy := Y().Abs().Sub(size.Y.DivConst(2))
	outside := dx.Max(Const(0)).Square().Add(dy.Max(Const(0)).Square()).Sqrt()
	inside := dx.Max(dy).Min(Const(0))
	return outside.Add(inside).Move(Vec3{X: center.X, Y: center.Y, Z: Const(0)})
}

// RectangleExact is an exact-distance 2D rectangle with corners a and b.
func RectangleExact(a, b Vec2) Tree {
	size := Vec2{X: b.X.Sub(a.X), Y: b.Y.Sub(a.Y)}
	center := Vec2{X: a.X.Add(b.X).DivConst(2), Y: a.Y.Add(b.Y).DivConst(2)}
	return RectangleCenteredExact(size, center)
}

// Triangle is the 2D triangle with vertices a, b, c in either winding order.
func Triangle(a, b, c Vec2) Tree {
	a.mustValid()
	b.mustValid()
	c.mustValid()
	// Compare of the signed area flips the edge fields for clockwise input so
	// both windings produce the same solid.
	winding := edge2(a, b, c).Compare(Const(0))
	return IntersectionMulti([]Tree{
		edgeField(a, b).Mul(winding),
		edgeField(b, c).Mul(winding),
		edgeField(c, a).Mul(winding),
	})
}

// edgeField is negative to the left of the directed edge a->b.
func edgeField(a, b Vec2) Tree {
	return b.Y.Sub(a.Y).Mul(X().Sub(a.X)).Sub(b.X.Sub(a.X).Mul(Y().Sub(a.Y)))
}

// edge2 is the cross product (b-a)x(c-a), positive for counter-clockwise
// vertex order.
func edge2(a, b, c Vec2) Tree {
	return b.X.Sub(a.X).Mul(c.Y.Sub(a.Y)).Sub(b.Y.Sub(a.Y).Mul(c.X.Sub(a.X)))
}

// HalfSpace is the half-space containing every point p with
// dot(p-point, norm) < 0; norm points out of the solid.
func HalfSpace(norm, point Vec3) Tree {
	norm.mustValid()
	point.mustValid()
	return X().Sub(point.X).Mul(norm.X).
		Add(Y().Sub(point.Y).Mul(norm.Y)).
		Add(Z().Sub(point.Z).Mul(norm.Z))
}

// Sphere is a sphere of radius r at center.
func Sphere(r Tree, center Vec3) Tree {
	center.mustValid()
	s := X().Square().Add(Y().Square()).Add(Z().Square()).Sqrt().Sub(r)
	return s.Move(center)
}

// BoxMitered is an axis-aligned box with corners a and b built from six
// half-spaces. Correct sign everywhere, mitered exterior distance.
func BoxMitered(a, b Vec3) Tree {
	a.mustValid()
	b.mustValid()
	return ExtrudeZ(Rectangle(a.xy(), b.xy()), a.Z, b.Z)
}

// BoxMiteredCentered is [BoxMitered] specified as size and center.
func BoxMiteredCentered(size, center Vec3) Tree {
	size.mustValid()
	center.mustValid()
	h := Vec3{X: size.X.DivConst(2), Y: size.Y.DivConst(2), Z: size.Z.DivConst(2)}
	a := Vec3{X: center.X.Sub(h.X), Y: center.Y.Sub(h.Y), Z: center.Z.Sub(h.Z)}
	b := Vec3{X: center.X.Add(h.X), Y: center.Y.Add(h.Y), Z: center.Z.Add(h.Z)}
	return BoxMitered(a, b)
}

// BoxExactCentered is an exact-distance box of the given size at center.
func BoxExactCentered(size, center Vec3) Tree {
	size.mustValid()
	center.mustValid()
	dx := X().Abs().Sub(size.X.DivConst(2))
	dy := Y().Abs().Sub(size.Y.DivConst(2))
	dz := Z().Abs().Sub(size.Z.DivConst(2))
	outside := dx.Max(Const(0)).Square().
		Add(dy.Max(Const(0)).Square()).
		Add(dz.Max(Const(0)).Square()).Sqrt()
	inside := dx.Max(dy).Max(dz).Min(Const(0))
	return outside.Add(inside).Move(center)
}

// BoxExact is an exact-distance box with corners a and b.
func BoxExact(a, b Vec3) Tree {
	size := Vec3{X: b.X.Sub(a.X), Y: b.Y.Sub(a.Y), Z: b.Z.Sub(a.Z)}
	center := Vec3{
		X: a.X.Add(b.X).DivConst(2),
		Y: a.Y.Add(b.Y).DivConst(2),
		Z: a.Z.Add(b.Z).DivConst(2),
	}
	return BoxExactCentered(size, center)
}

// RoundedBox is a box with corners a and b and edge radius given as a
// fraction r in [0,1] of the smallest dimension.
func RoundedBox(a, b Vec3, r Tree) Tree {
	a.mustValid()
	b.mustValid()
	rad := r.Mul(b.X.Sub(a.X).Min(b.Y.Sub(a.Y)).Min(b.Z.Sub(a.Z))).DivConst(2)
	ai := Vec3{X: a.X.Add(rad), Y: a.Y.Add(rad), Z: a.Z.Add(rad)}
	bi := Vec3{X: b.X.Sub(rad), Y: b.Y.Sub(rad), Z: b.Z.Sub(rad)}
	return Offset(BoxExact(ai, bi), rad)
}

// CylinderZ is a z-aligned cylinder of radius r and height h whose base disc
// is centered at base.
func CylinderZ(r, h Tree, base Vec3) Tree {
	base.mustValid()
	return ExtrudeZ(Circle(r, base.xy()), base.Z, base.Z.Add(h))
}

// ConeAngZ is a z-aligned cone with apex at apex, half-angle angle radians
// and the given height below the apex.
func ConeAngZ(angle, height Tree, apex Vec3) Tree {
	apex.mustValid()
	radial := X().Square().Add(Y().Square()).Sqrt()
	slant := angle.Cos().Mul(radial).Add(angle.Sin().Mul(Z()))
	c := height.Neg().Sub(Z()).Max(slant)
	return c.Move(apex)
}

// ConeZ is a z-aligned cone with base disc of radius r centered at base,
// narrowing to an apex at base.z+height.
func ConeZ(r, height Tree, base Vec3) Tree {
	base.mustValid()
	angle := r.Div(height).Atan()
	apex := Vec3{X: base.X, Y: base.Y, Z: base.Z.Add(height)}
	return ConeAngZ(angle, height, apex)
}

// PyramidZ is a pyramid with rectangular base corners a and b at z=zmin,
// narrowing to an apex at zmin+height.
func PyramidZ(a, b Vec2, zmin, height Tree) Tree {
	a.mustValid()
	b.mustValid()
	base := Vec3{
		X: a.X.Add(b.X).DivConst(2),
		Y: a.Y.Add(b.Y).DivConst(2),
		Z: zmin,
	}
	p := ExtrudeZ(Rectangle(a, b), zmin, zmin.Add(height))
	p = p.TaperXYAlongZ(base, height, Const(0), Const(1))
	// The taper divides by zero on the apex plane; fall back to the distance
	// above the base there.
	return p.NanFill(Z().Sub(zmin))
}

// TorusZ is a z-aligned torus at center with primary radius ro and tube
// radius ri.
func TorusZ(ro, ri Tree, center Vec3) Tree {
	center.mustValid()
	radial := X().Square().Add(Y().Square()).Sqrt()
	t := ro.Sub(radial).Square().Add(Z().Square()).Sqrt().Sub(ri)
	return t.Move(center)
}

// Gyroid is an infinite triply-periodic gyroid lattice with the given
// per-axis period and wall thickness.
func Gyroid(period Vec3, thickness Tree) Tree {
	period.mustValid()
	tau := Const(2 * math32.Pi)
	x := X().Mul(tau).Div(period.X)
	y := Y().Mul(tau).Div(period.Y)
	z := Z().Mul(tau).Div(period.Z)
	surface := x.Sin().Mul(y.Cos()).
		Add(y.Sin().Mul(z.Cos())).
		Add(z.Sin().Mul(x.Cos()))
	return Shell(surface, thickness)
}
