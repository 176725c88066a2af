package frepeval

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"

	"github.com/frepkit/frep"
)

// Interval is a closed floating interval [Lo, Hi] used for conservative range
// analysis of a field over a box. Analysis results may over-approximate but
// never under-approximate the true value range.
type Interval struct {
	Lo, Hi float32
}

// In reports whether v lies inside the interval.
func (iv Interval) In(v float32) bool { return v >= iv.Lo && v <= iv.Hi }

// IsEmptyOutside reports whether the interval proves the field positive,
// meaning the whole box is outside the solid.
func (iv Interval) IsEmptyOutside() bool { return iv.Lo > 0 }

// IsFullInside reports whether the interval proves the field negative,
// meaning the whole box is inside the solid.
func (iv Interval) IsFullInside() bool { return iv.Hi < 0 }

func exact(v float32) Interval { return Interval{Lo: v, Hi: v} }

func whole() Interval {
	return Interval{Lo: math32.Inf(-1), Hi: math32.Inf(1)}
}

func hull(a, b Interval) Interval {
	return Interval{Lo: math32.Min(a.Lo, b.Lo), Hi: math32.Max(a.Hi, b.Hi)}
}

func (iv Interval) add(o Interval) Interval {
	return Interval{Lo: iv.Lo + o.Lo, Hi: iv.Hi + o.Hi}
}

func (iv Interval) sub(o Interval) Interval {
	return Interval{Lo: iv.Lo - o.Hi, Hi: iv.Hi - o.Lo}
}

func (iv Interval) neg() Interval { return Interval{Lo: -iv.Hi, Hi: -iv.Lo} }

func (iv Interval) mul(o Interval) Interval {
	p1, p2 := iv.Lo*o.Lo, iv.Lo*o.Hi
	p3, p4 := iv.Hi*o.Lo, iv.Hi*o.Hi
	return Interval{
		Lo: math32.Min(math32.Min(p1, p2), math32.Min(p3, p4)),
		Hi: math32.Max(math32.Max(p1, p2), math32.Max(p3, p4)),
	}
}

func (iv Interval) div(o Interval) Interval {
	if o.In(0) {
		return whole()
	}
	return iv.mul(Interval{Lo: 1 / o.Hi, Hi: 1 / o.Lo})
}

func (iv Interval) min(o Interval) Interval {
	return Interval{Lo: math32.Min(iv.Lo, o.Lo), Hi: math32.Min(iv.Hi, o.Hi)}
}

func (iv Interval) max(o Interval) Interval {
	return Interval{Lo: math32.Max(iv.Lo, o.Lo), Hi: math32.Max(iv.Hi, o.Hi)}
}

func (iv Interval) square() Interval {
	lo, hi := iv.Lo*iv.Lo, iv.Hi*iv.Hi
	if iv.In(0) {
		return Interval{Lo: 0, Hi: math32.Max(lo, hi)}
	}
	return Interval{Lo: math32.Min(lo, hi), Hi: math32.Max(lo, hi)}
}

func (iv Interval) sqrt() Interval {
	return Interval{Lo: math32.Sqrt(math32.Max(0, iv.Lo)), Hi: math32.Sqrt(math32.Max(0, iv.Hi))}
}

func (iv Interval) abs() Interval {
	if iv.In(0) {
		return Interval{Lo: 0, Hi: math32.Max(-iv.Lo, iv.Hi)}
	}
	lo, hi := math32.Abs(iv.Lo), math32.Abs(iv.Hi)
	return Interval{Lo: math32.Min(lo, hi), Hi: math32.Max(lo, hi)}
}

// monotonic applies a nondecreasing function to both bounds.
func (iv Interval) monotonic(f func(float32) float32) Interval {
	return Interval{Lo: f(iv.Lo), Hi: f(iv.Hi)}
}

func (iv Interval) sin() Interval {
	if iv.Hi-iv.Lo >= 2*math32.Pi {
		return Interval{Lo: -1, Hi: 1}
	}
	lo, hi := math32.Sin(iv.Lo), math32.Sin(iv.Hi)
	out := Interval{Lo: math32.Min(lo, hi), Hi: math32.Max(lo, hi)}
	// Widen over any interior extremum at pi/2 + k*pi.
	k := math32.Ceil((iv.Lo - math32.Pi/2) / math32.Pi)
	for x := math32.Pi/2 + k*math32.Pi; x <= iv.Hi; x += math32.Pi {
		out = hull(out, exact(math32.Sin(x)))
	}
	return out
}

func (iv Interval) cos() Interval {
	return iv.add(exact(math32.Pi / 2)).sin()
}

// EvaluateInterval bounds the field of the compiled program over the box.
// Trigonometric, oracle and power instructions widen conservatively; the
// result is a pruning aid, not a tight range.
func (p *Program) EvaluateInterval(b ms3.Box, values []float32) (Interval, error) {
	regs := make([]Interval, p.nreg)
	var root Interval
	for _, inst := range p.insts {
		var out Interval
		switch inst.op {
		case frep.OpConstant:
			out = exact(inst.value)
		case frep.OpVarX:
			out = Interval{Lo: b.Min.X, Hi: b.Max.X}
		case frep.OpVarY:
			out = Interval{Lo: b.Min.Y, Hi: b.Max.Y}
		case frep.OpVarZ:
			out = Interval{Lo: b.Min.Z, Hi: b.Max.Z}
		case frep.OpVarFree:
			out = exact(values[inst.slot])
		case frep.OpOracle:
			out = whole()
		case frep.OpConstVar:
			out = regs[inst.a]
		case frep.OpSquare:
			out = regs[inst.a].square()
		case frep.OpSqrt:
			out = regs[inst.a].sqrt()
		case frep.OpNeg:
			out = regs[inst.a].neg()
		case frep.OpSin:
			out = regs[inst.a].sin()
		case frep.OpCos:
			out = regs[inst.a].cos()
		case frep.OpTan, frep.OpNthRoot, frep.OpPow:
			out = whole()
		case frep.OpAsin:
			out = regs[inst.a].monotonic(math32.Asin)
		case frep.OpAcos:
			a := regs[inst.a]
			out = Interval{Lo: math32.Acos(a.Hi), Hi: math32.Acos(a.Lo)}
		case frep.OpAtan:
			out = regs[inst.a].monotonic(math32.Atan)
		case frep.OpExp:
			out = regs[inst.a].monotonic(math32.Exp)
		case frep.OpAbs:
			out = regs[inst.a].abs()
		case frep.OpLog:
			out = regs[inst.a].monotonic(math32.Log)
		case frep.OpRecip:
			out = exact(1).div(regs[inst.a])
		case frep.OpAdd:
			out = regs[inst.a].add(regs[inst.b])
		case frep.OpMul:
			out = regs[inst.a].mul(regs[inst.b])
		case frep.OpMin:
			out = regs[inst.a].min(regs[inst.b])
		case frep.OpMax:
			out = regs[inst.a].max(regs[inst.b])
		case frep.OpSub:
			out = regs[inst.a].sub(regs[inst.b])
		case frep.OpDiv:
			out = regs[inst.a].div(regs[inst.b])
		case frep.OpAtan2:
			out = Interval{Lo: -math32.Pi, Hi: math32.Pi}
		case frep.OpMod:
			m := regs[inst.b].abs()
			out = Interval{Lo: -m.Hi, Hi: m.Hi}
		case frep.OpNanFill:
			out = hull(regs[inst.a], regs[inst.b])
		case frep.OpCompare:
			out = Interval{Lo: -1, Hi: 1}
		default:
			return Interval{}, fmt.Errorf("frepeval: cannot bound op %s", inst.op)
		}
		regs[inst.out] = out
		root = out
	}
	return root, nil
}
