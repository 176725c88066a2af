package frep

// Transforms substitute the coordinate axes of a tree before it is evaluated.
// Every transform consumes its receiver and returns a new Tree; the receiver
// itself is never mutated, so reusing the untransformed shape is as simple as
// keeping the original handle around.

// Remap rebuilds t substituting the axis leaves x, y, z with the given
// expressions. Shared subexpressions are rewritten once, and subexpressions
// that mention no axis are reused as-is.
func (t Tree) Remap(x, y, z Tree) Tree {
	t.mustValid()
	x.mustValid()
	y.mustValid()
	z.mustValid()
	memo := make(map[*node]*node)
	var rec func(n *node) *node
	rec = func(n *node) *node {
		if m, ok := memo[n]; ok {
			return m
		}
		var m *node
		switch n.op {
		case OpVarX:
			m = x.n
		case OpVarY:
			m = y.n
		case OpVarZ:
			m = z.n
		case OpConstant, OpVarFree:
			m = n
		case OpOracle:
			m = &node{op: OpOracle, oracle: n.oracle, lhs: rec(n.lhs), rhs: rec(n.rhs), aux: rec(n.aux)}
		default:
			switch n.op.Arity() {
			case 1:
				m = Unary(n.op, Tree{n: rec(n.lhs)}).n
			default:
				m = Binary(n.op, Tree{n: rec(n.lhs)}, Tree{n: rec(n.rhs)}).n
			}
		}
		memo[n] = m
		return m
	}
	return Tree{n: rec(t.n)}
}

// Move translates the solid by offset.
func (t Tree) Move(offset Vec3) Tree {
	offset.mustValid()
	return t.Remap(X().Sub(offset.X), Y().Sub(offset.Y), Z().Sub(offset.Z))
}

// ReflectX reflects the solid across the plane x=x0.
func (t Tree) ReflectX(x0 Tree) Tree {
	return t.Remap(x0.MulConst(2).Sub(X()), Y(), Z())
}

// ReflectY reflects the solid across the plane y=y0.
func (t Tree) ReflectY(y0 Tree) Tree {
	return t.Remap(X(), y0.MulConst(2).Sub(Y()), Z())
}

// ReflectZ reflects the solid across the plane z=z0.
func (t Tree) ReflectZ(z0 Tree) Tree {
	return t.Remap(X(), Y(), z0.MulConst(2).Sub(Z()))
}

// ReflectXY swaps the x and y axes.
func (t Tree) ReflectXY() Tree { return t.Remap(Y(), X(), Z()) }

// ReflectYZ swaps the y and z axes.
func (t Tree) ReflectYZ() Tree { return t.Remap(X(), Z(), Y()) }

// ReflectXZ swaps the x and z axes.
func (t Tree) ReflectXZ() Tree { return t.Remap(Z(), Y(), X()) }

// SymmetricX mirrors the x>0 half of the solid onto x<0.
func (t Tree) SymmetricX() Tree { return t.Remap(X().Abs(), Y(), Z()) }

// SymmetricY mirrors the y>0 half of the solid onto y<0.
func (t Tree) SymmetricY() Tree { return t.Remap(X(), Y().Abs(), Z()) }

// SymmetricZ mirrors the z>0 half of the solid onto z<0.
func (t Tree) SymmetricZ() Tree { return t.Remap(X(), Y(), Z().Abs()) }

// ScaleX scales the solid by sx on the x axis about x=x0.
func (t Tree) ScaleX(sx, x0 Tree) Tree {
	return t.Remap(x0.Add(X().Sub(x0).Div(sx)), Y(), Z())
}

// ScaleY scales the solid by sy on the y axis about y=y0.
func (t Tree) ScaleY(sy, y0 Tree) Tree {
	return t.Remap(X(), y0.Add(Y().Sub(y0).Div(sy)), Z())
}

// ScaleZ scales the solid by sz on the z axis about z=z0.
func (t Tree) ScaleZ(sz, z0 Tree) Tree {
	return t.Remap(X(), Y(), z0.Add(Z().Sub(z0).Div(sz)))
}

// ScaleXYZ scales the solid per-axis about center.
func (t Tree) ScaleXYZ(s Vec3, center Vec3) Tree {
	s.mustValid()
	center.mustValid()
	return t.Remap(
		center.X.Add(X().Sub(center.X).Div(s.X)),
		center.Y.Add(Y().Sub(center.Y).Div(s.Y)),
		center.Z.Add(Z().Sub(center.Z).Div(s.Z)),
	)
}

// RotateX rotates the solid by angle radians about the x-parallel axis
// through center.
func (t Tree) RotateX(angle Tree, center Vec3) Tree {
	center.mustValid()
	c, s := angle.Cos(), angle.Sin()
	t = t.Move(Vec3{X: center.X.Neg(), Y: center.Y.Neg(), Z: center.Z.Neg()})
	t = t.Remap(
		X(),
		c.Mul(Y()).Add(s.Mul(Z())),
		c.Mul(Z()).Sub(s.Mul(Y())),
	)
	return t.Move(center)
}

// RotateY rotates the solid by angle radians about the y-parallel axis
// through center.
func (t Tree) RotateY(angle Tree, center Vec3) Tree {
	center.mustValid()
	c, s := angle.Cos(), angle.Sin()
	t = t.Move(Vec3{X: center.X.Neg(), Y: center.Y.Neg(), Z: center.Z.Neg()})
	t = t.Remap(
		c.Mul(X()).Add(s.Mul(Z())),
		Y(),
		c.Mul(Z()).Sub(s.Mul(X())),
	)
	return t.Move(center)
}

// RotateZ rotates the solid by angle radians about the z-parallel axis
// through center.
func (t Tree) RotateZ(angle Tree, center Vec3) Tree {
	center.mustValid()
	c, s := angle.Cos(), angle.Sin()
	t = t.Move(Vec3{X: center.X.Neg(), Y: center.Y.Neg(), Z: center.Z.Neg()})
	t = t.Remap(
		c.Mul(X()).Add(s.Mul(Y())),
		c.Mul(Y()).Sub(s.Mul(X())),
		Z(),
	)
	return t.Move(center)
}

// TaperXAlongY tapers the x axis of the solid along y. The solid is scaled by
// baseScale at base and by scale at base.y+height.
func (t Tree) TaperXAlongY(base Vec2, height, scale, baseScale Tree) Tree {
	base.mustValid()
	t = t.Move(Vec3{X: base.X.Neg(), Y: base.Y.Neg(), Z: Const(0)})
	s := height.Div(scale.Mul(Y()).Add(baseScale.Mul(height.Sub(Y()))))
	t = t.Remap(X().Mul(s), Y(), Z())
	return t.Move(Vec3{X: base.X, Y: base.Y, Z: Const(0)})
}

// TaperXYAlongZ tapers the x and y axes of the solid along z. The solid is
// scaled by baseScale at base and by scale at base.z+height.
func (t Tree) TaperXYAlongZ(base Vec3, height, scale, baseScale Tree) Tree {
	base.mustValid()
	t = t.Move(Vec3{X: base.X.Neg(), Y: base.Y.Neg(), Z: base.Z.Neg()})
	s := height.Div(scale.Mul(Z()).Add(baseScale.Mul(height.Sub(Z()))))
	t = t.Remap(X().Mul(s), Y().Mul(s), Z())
	return t.Move(base)
}

// ShearXAlongY shears the solid on the x axis along y. x is offset by
// baseOffset at base.y and by offset at base.y+height.
func (t Tree) ShearXAlongY(base Vec2, height, offset, baseOffset Tree) Tree {
	base.mustValid()
	f := Y().Sub(base.Y).Div(height)
	dx := baseOffset.Add(offset.Sub(baseOffset).Mul(f))
	return t.Remap(X().Sub(dx), Y(), Z())
}

// warpAxes selects which coordinates a radial warp displaces.
type warpAxes struct{ x, y, z bool }

// attractRepel is the shared radial warp of Attract and Repel. sign is +1 to
// attract the surface toward locus and -1 to repel it.
func (t Tree) attractRepel(locus Vec3, radius, exaggerate Tree, sign float32, axes warpAxes) Tree {
	locus.mustValid()
	t = t.Move(Vec3{X: locus.X.Neg(), Y: locus.Y.Neg(), Z: locus.Z.Neg()})
	norm := X().Square().Add(Y().Square()).Add(Z().Square()).Sqrt()
	falloff := Const(1).Add(Const(sign).Mul(exaggerate).Mul(norm.Div(radius).Neg().Exp()))
	x, y, z := X(), Y(), Z()
	if axes.x {
		x = x.Mul(falloff)
	}
	if axes.y {
		y = y.Mul(falloff)
	}
	if axes.z {
		z = z.Mul(falloff)
	}
	t = t.Remap(x, y, z)
	return t.Move(locus)
}

// Attract deforms space so the solid's surface is pulled toward locus.
// The effect decays exponentially with distance over radius; exaggerate sets
// its strength.
func (t Tree) Attract(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, 1, warpAxes{x: true, y: true, z: true})
}

// AttractX is [Tree.Attract] displacing only the x coordinate.
func (t Tree) AttractX(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, 1, warpAxes{x: true})
}

// AttractY is [Tree.Attract] displacing only the y coordinate.
func (t Tree) AttractY(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, 1, warpAxes{y: true})
}

// AttractZ is [Tree.Attract] displacing only the z coordinate.
func (t Tree) AttractZ(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, 1, warpAxes{z: true})
}

// AttractXY is [Tree.Attract] displacing only the x and y coordinates.
func (t Tree) AttractXY(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, 1, warpAxes{x: true, y: true})
}

// AttractYZ is [Tree.Attract] displacing only the y and z coordinates.
func (t Tree) AttractYZ(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, 1, warpAxes{y: true, z: true})
}

// AttractXZ is [Tree.Attract] displacing only the x and z coordinates.
func (t Tree) AttractXZ(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, 1, warpAxes{x: true, z: true})
}

// Repel deforms space so the solid's surface is pushed away from locus.
func (t Tree) Repel(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, -1, warpAxes{x: true, y: true, z: true})
}

// RepelX is [Tree.Repel] displacing only the x coordinate.
func (t Tree) RepelX(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, -1, warpAxes{x: true})
}

// RepelY is [Tree.Repel] displacing only the y coordinate.
func (t Tree) RepelY(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, -1, warpAxes{y: true})
}

// RepelZ is [Tree.Repel] displacing only the z coordinate.
func (t Tree) RepelZ(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, -1, warpAxes{z: true})
}

// RepelXY is [Tree.Repel] displacing only the x and y coordinates.
func (t Tree) RepelXY(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, -1, warpAxes{x: true, y: true})
}

// RepelYZ is [Tree.Repel] displacing only the y and z coordinates.
func (t Tree) RepelYZ(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, -1, warpAxes{y: true, z: true})
}

// RepelXZ is [Tree.Repel] displacing only the x and z coordinates.
func (t Tree) RepelXZ(locus Vec3, radius, exaggerate Tree) Tree {
	return t.attractRepel(locus, radius, exaggerate, -1, warpAxes{x: true, z: true})
}

// RevolveY revolves a 2D solid in the x-y plane about the vertical line x=x0.
func (t Tree) RevolveY(x0 Tree) Tree {
	r := X().Sub(x0).Square().Add(Z().Square()).Sqrt()
	return Union(
		t.Remap(x0.Add(r), Y(), Z()),
		t.Remap(x0.Sub(r), Y(), Z()),
	)
}

// twirl is the shared position-dependent rotation of the Twirl family.
// axisNorm selects whether the falloff distance is measured from center
// (false) or from the rotation axis through center (true).
func (t Tree) twirl(amount, radius Tree, center Vec3, axis int, axisNorm bool) Tree {
	center.mustValid()
	t = t.Move(Vec3{X: center.X.Neg(), Y: center.Y.Neg(), Z: center.Z.Neg()})
	var norm Tree
	if axisNorm {
		switch axis {
		case 0:
			norm = Y().Square().Add(Z().Square()).Sqrt()
		case 1:
			norm = X().Square().Add(Z().Square()).Sqrt()
		default:
			norm = X().Square().Add(Y().Square()).Sqrt()
		}
	} else {
		norm = X().Square().Add(Y().Square()).Add(Z().Square()).Sqrt()
	}
	// Half the twirl amount remains at one radius from the center.
	a := amount.Mul(Const(0.5).Pow(norm.Div(radius)))
	c, s := a.Cos(), a.Sin()
	switch axis {
	case 0:
		t = t.Remap(X(), c.Mul(Y()).Add(s.Mul(Z())), c.Mul(Z()).Sub(s.Mul(Y())))
	case 1:
		t = t.Remap(c.Mul(X()).Add(s.Mul(Z())), Y(), c.Mul(Z()).Sub(s.Mul(X())))
	default:
		t = t.Remap(c.Mul(X()).Add(s.Mul(Y())), c.Mul(Y()).Sub(s.Mul(X())), Z())
	}
	return t.Move(center)
}

// TwirlX twists the solid about the x-parallel axis through center by amount
// radians, decaying with distance from center over radius.
func (t Tree) TwirlX(amount, radius Tree, center Vec3) Tree {
	return t.twirl(amount, radius, center, 0, false)
}

// TwirlAxisX is [Tree.TwirlX] with the decay measured from the rotation axis
// instead of the center point.
func (t Tree) TwirlAxisX(amount, radius Tree, center Vec3) Tree {
	return t.twirl(amount, radius, center, 0, true)
}

// TwirlY twists the solid about the y-parallel axis through center.
func (t Tree) TwirlY(amount, radius Tree, center Vec3) Tree {
	return t.twirl(amount, radius, center, 1, false)
}

// TwirlAxisY is [Tree.TwirlY] with the decay measured from the rotation axis.
func (t Tree) TwirlAxisY(amount, radius Tree, center Vec3) Tree {
	return t.twirl(amount, radius, center, 1, true)
}

// TwirlZ twists the solid about the z-parallel axis through center.
func (t Tree) TwirlZ(amount, radius Tree, center Vec3) Tree {
	return t.twirl(amount, radius, center, 2, false)
}

// TwirlAxisZ is [Tree.TwirlZ] with the decay measured from the rotation axis.
func (t Tree) TwirlAxisZ(amount, radius Tree, center Vec3) Tree {
	return t.twirl(amount, radius, center, 2, true)
}
