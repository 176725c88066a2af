package frepeval

import (
	"errors"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"

	"github.com/frepkit/frep"
)

var (
	// ErrVariablesCouldNotBeUpdated is returned by [Evaluator.Update] when the
	// variable set's structure no longer matches the one the evaluator was
	// compiled against.
	ErrVariablesCouldNotBeUpdated = errors.New("frepeval: variable set changed shape since evaluator was built")
	// ErrStaleVariables is returned by evaluation when the bound variable set
	// gained variables after the last Update call. Value-only Set calls do not
	// trigger it; evaluation keeps using the last synchronized snapshot until
	// Update.
	ErrStaleVariables = errors.New("frepeval: variable set structurally changed, call Update")
)

// Evaluator binds a tree against a snapshot of a variable set's values and
// evaluates it as a vectorized signed distance field.
//
// Value changes through [frep.Variables.Set] are not observed until [Evaluator.Update]
// is called; the evaluator keeps computing against its snapshot. Structural
// changes (Add) invalidate the evaluator until a successful Update.
type Evaluator struct {
	prog       *Program
	tree       frep.Tree
	vars       *frep.Variables
	values     []float32
	generation uint64
	bounds     ms3.Box
}

// NewEvaluator compiles tree against vars and snapshots the current variable
// values. vars may be nil for variable-free trees. bounds is the box renders
// of this field default to; it is reported verbatim by [Evaluator.Bounds].
func NewEvaluator(tree frep.Tree, vars *frep.Variables, bounds ms3.Box) (*Evaluator, error) {
	prog, err := Compile(tree, vars)
	if err != nil {
		return nil, err
	}
	e := &Evaluator{prog: prog, tree: tree, vars: vars, bounds: bounds}
	if vars != nil {
		e.values = vars.Values()
		e.generation = vars.Generation()
	}
	return e, nil
}

// Tree returns the bound tree.
func (e *Evaluator) Tree() frep.Tree { return e.tree }

// Program returns the compiled tape the evaluator executes.
func (e *Evaluator) Program() *Program { return e.prog }

// Bounds returns the render box the evaluator was constructed with.
func (e *Evaluator) Bounds() ms3.Box { return e.bounds }

// Update re-synchronizes the evaluator against the current values of vars,
// which must be the same set the evaluator was built from. Fails with
// [ErrVariablesCouldNotBeUpdated] if the set is a different one or has
// gained variables since construction.
func (e *Evaluator) Update(vars *frep.Variables) error {
	if vars == nil || vars != e.vars {
		return ErrVariablesCouldNotBeUpdated
	}
	if vars.Generation() != e.generation {
		// New variables cannot be referenced by the compiled tree, so the
		// tape is still valid; only the snapshot shape must match.
		if vars.Count() < len(e.values) {
			return ErrVariablesCouldNotBeUpdated
		}
		e.generation = vars.Generation()
	}
	vals := vars.Values()
	e.values = vals[:len(e.values)]
	return nil
}

// Evaluate implements [SDF3] against the evaluator's value snapshot. Fails
// with [ErrStaleVariables] if the bound set changed structurally since the
// last Update.
func (e *Evaluator) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if err := e.checkFresh(); err != nil {
		return err
	}
	return e.prog.exec(pos, dist, e.values, PoolOrNew(userData))
}

// EvaluateInterval conservatively bounds the field over the box using the
// evaluator's value snapshot.
func (e *Evaluator) EvaluateInterval(b ms3.Box) (Interval, error) {
	if err := e.checkFresh(); err != nil {
		return Interval{}, err
	}
	return e.prog.EvaluateInterval(b, e.values)
}

func (e *Evaluator) checkFresh() error {
	if e.vars != nil && e.vars.Generation() != e.generation {
		return ErrStaleVariables
	}
	return nil
}

// XYSlice returns the 2D field obtained by fixing z. The slice shares the
// evaluator's snapshot and freshness checks.
func (e *Evaluator) XYSlice(z float32) SDF2 {
	return &xySlice{e: e, z: z}
}

type xySlice struct {
	e *Evaluator
	z float32
}

func (s *xySlice) Evaluate(pos []ms2.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	vp := PoolOrNew(userData)
	p3 := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(p3)
	for i, p := range pos {
		p3[i] = ms3.Vec{X: p.X, Y: p.Y, Z: s.z}
	}
	return s.e.Evaluate(p3, dist, userData)
}

func (s *xySlice) Bounds() ms2.Box {
	b := s.e.bounds
	return ms2.Box{
		Min: ms2.Vec{X: b.Min.X, Y: b.Min.Y},
		Max: ms2.Vec{X: b.Max.X, Y: b.Max.Y},
	}
}
