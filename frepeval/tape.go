package frepeval

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"

	"github.com/frepkit/frep"
)

// ErrUnboundVariable is returned by [Compile] when the tree contains a free
// variable leaf absent from the variable set.
var ErrUnboundVariable = errors.New("frepeval: tree contains a free variable not in the variable set")

// instruction is one step of a flattened expression DAG. Registers are
// batch-sized scratch buffers; out may alias a register freed by a prior
// instruction.
type instruction struct {
	oracle  frep.Oracle
	value   float32 // Payload of constant loads.
	slot    int32   // Value buffer index of free-variable loads.
	out     int32
	a, b, c int32
	op      frep.Op
}

// Program is a tree compiled to a register tape. Instructions are in
// dependency order; shared subexpressions are computed once. A Program is
// immutable and safe for concurrent execution with per-call scratch buffers.
type Program struct {
	insts []instruction
	nreg  int
	nvar  int
}

// Compile flattens the tree DAG into a Program. Free variable leaves resolve
// to positional slots of vars; vars may be nil for variable-free trees.
func Compile(tree frep.Tree, vars *frep.Variables) (*Program, error) {
	if tree.Op() == frep.OpInvalid {
		return nil, errors.New("frepeval: cannot compile zero Tree")
	}
	slots := make(map[frep.Tree]int32)
	if vars != nil {
		for i, vt := range vars.Trees() {
			slots[vt] = int32(i)
		}
	}

	// Post-order traversal with per-node use counts for register reuse.
	var order []frep.Tree
	uses := make(map[frep.Tree]int)
	var visit func(t frep.Tree) error
	visit = func(t frep.Tree) error {
		uses[t]++
		if uses[t] > 1 {
			return nil
		}
		switch t.Op() {
		case frep.OpOracle:
			x, y, z := t.OracleCoords()
			for _, c := range []frep.Tree{x, y, z} {
				if err := visit(c); err != nil {
					return err
				}
			}
		case frep.OpVarFree:
			if _, ok := slots[t]; !ok {
				return ErrUnboundVariable
			}
		default:
			lhs, rhs := t.Operands()
			if t.Op().Arity() >= 1 {
				if err := visit(lhs); err != nil {
					return err
				}
			}
			if t.Op().Arity() == 2 {
				if err := visit(rhs); err != nil {
					return err
				}
			}
		}
		order = append(order, t)
		return nil
	}
	if err := visit(tree); err != nil {
		return nil, err
	}

	p := &Program{nvar: len(slots)}
	reg := make(map[frep.Tree]int32)
	var free []int32
	alloc := func() int32 {
		if n := len(free); n > 0 {
			r := free[n-1]
			free = free[:n-1]
			return r
		}
		r := int32(p.nreg)
		p.nreg++
		return r
	}
	release := func(t frep.Tree) {
		uses[t]--
		if uses[t] == 0 {
			free = append(free, reg[t])
		}
	}
	for _, t := range order {
		inst := instruction{op: t.Op()}
		switch t.Op() {
		case frep.OpConstant:
			inst.value, _ = t.Value()
		case frep.OpVarFree:
			inst.slot = slots[t]
		case frep.OpVarX, frep.OpVarY, frep.OpVarZ:
		case frep.OpOracle:
			x, y, z := t.OracleCoords()
			inst.oracle, _ = t.Oracle()
			inst.a, inst.b, inst.c = reg[x], reg[y], reg[z]
			release(x)
			release(y)
			release(z)
		default:
			lhs, rhs := t.Operands()
			inst.a = reg[lhs]
			if t.Op().Arity() == 2 {
				inst.b = reg[rhs]
			}
			release(lhs)
			if t.Op().Arity() == 2 {
				release(rhs)
			}
		}
		inst.out = alloc()
		reg[t] = inst.out
		p.insts = append(p.insts, inst)
	}
	return p, nil
}

// NumInstructions returns the tape length, one instruction per distinct node.
func (p *Program) NumInstructions() int { return len(p.insts) }

// NumRegisters returns the scratch buffer count required by execution.
func (p *Program) NumRegisters() int { return p.nreg }

// exec runs the tape over a position batch. values is the positional
// free-variable buffer; its length must be at least the highest bound slot.
func (p *Program) exec(pos []ms3.Vec, dist []float32, values []float32, vp *VecPool) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	regs := make([][]float32, p.nreg)
	for i := range regs {
		regs[i] = vp.Float.Acquire(len(pos))
		defer vp.Float.Release(regs[i])
	}
	var root []float32
	for _, inst := range p.insts {
		o := regs[inst.out]
		root = o
		switch inst.op {
		case frep.OpConstant:
			for i := range o {
				o[i] = inst.value
			}
		case frep.OpVarX:
			for i, pp := range pos {
				o[i] = pp.X
			}
		case frep.OpVarY:
			for i, pp := range pos {
				o[i] = pp.Y
			}
		case frep.OpVarZ:
			for i, pp := range pos {
				o[i] = pp.Z
			}
		case frep.OpVarFree:
			v := values[inst.slot]
			for i := range o {
				o[i] = v
			}
		case frep.OpOracle:
			ra, rb, rc := regs[inst.a], regs[inst.b], regs[inst.c]
			opos := vp.V3.Acquire(len(pos))
			for i := range opos {
				opos[i] = ms3.Vec{X: ra[i], Y: rb[i], Z: rc[i]}
			}
			err := inst.oracle.Evaluate(opos, o)
			vp.V3.Release(opos)
			if err != nil {
				return fmt.Errorf("frepeval: oracle: %w", err)
			}
		case frep.OpConstVar:
			copy(o, regs[inst.a])
		case frep.OpSquare:
			for i, a := range regs[inst.a] {
				o[i] = a * a
			}
		case frep.OpSqrt:
			for i, a := range regs[inst.a] {
				o[i] = math32.Sqrt(a)
			}
		case frep.OpNeg:
			for i, a := range regs[inst.a] {
				o[i] = -a
			}
		case frep.OpSin:
			for i, a := range regs[inst.a] {
				o[i] = math32.Sin(a)
			}
		case frep.OpCos:
			for i, a := range regs[inst.a] {
				o[i] = math32.Cos(a)
			}
		case frep.OpTan:
			for i, a := range regs[inst.a] {
				o[i] = math32.Tan(a)
			}
		case frep.OpAsin:
			for i, a := range regs[inst.a] {
				o[i] = math32.Asin(a)
			}
		case frep.OpAcos:
			for i, a := range regs[inst.a] {
				o[i] = math32.Acos(a)
			}
		case frep.OpAtan:
			for i, a := range regs[inst.a] {
				o[i] = math32.Atan(a)
			}
		case frep.OpExp:
			for i, a := range regs[inst.a] {
				o[i] = math32.Exp(a)
			}
		case frep.OpAbs:
			for i, a := range regs[inst.a] {
				o[i] = math32.Abs(a)
			}
		case frep.OpLog:
			for i, a := range regs[inst.a] {
				o[i] = math32.Log(a)
			}
		case frep.OpRecip:
			for i, a := range regs[inst.a] {
				o[i] = 1 / a
			}
		case frep.OpAdd:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = a + rb[i]
			}
		case frep.OpMul:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = a * rb[i]
			}
		case frep.OpMin:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = math32.Min(a, rb[i])
			}
		case frep.OpMax:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = math32.Max(a, rb[i])
			}
		case frep.OpSub:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = a - rb[i]
			}
		case frep.OpDiv:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = a / rb[i]
			}
		case frep.OpAtan2:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = math32.Atan2(a, rb[i])
			}
		case frep.OpPow:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = math32.Pow(a, rb[i])
			}
		case frep.OpNthRoot:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = nthRoot(a, rb[i])
			}
		case frep.OpMod:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = modEuclid(a, rb[i])
			}
		case frep.OpNanFill:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				if math32.IsNaN(a) {
					o[i] = rb[i]
				} else {
					o[i] = a
				}
			}
		case frep.OpCompare:
			rb := regs[inst.b]
			for i, a := range regs[inst.a] {
				o[i] = compare(a, rb[i])
			}
		default:
			return fmt.Errorf("frepeval: cannot execute op %s", inst.op)
		}
	}
	copy(dist, root)
	return nil
}

// nthRoot is the principal n-th root extended to negative operands for odd
// integer n.
func nthRoot(a, n float32) float32 {
	if a < 0 {
		if n == math32.Round(n) && modEuclid(n, 2) == 1 {
			return -math32.Pow(-a, 1/n)
		}
		return math32.NaN()
	}
	return math32.Pow(a, 1/n)
}

// modEuclid is the remainder of a/b with the sign of b.
func modEuclid(a, b float32) float32 {
	r := math32.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// compare orders a against b as -1, 0 or +1, propagating NaN.
func compare(a, b float32) float32 {
	switch {
	case math32.IsNaN(a) || math32.IsNaN(b):
		return math32.NaN()
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
