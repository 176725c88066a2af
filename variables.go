package frep

import "errors"

var (
	// ErrVariableAlreadyAdded is returned by [Variables.Add] for duplicate names.
	ErrVariableAlreadyAdded = errors.New("frep: variable already added")
	// ErrVariableNotFound is returned by [Variables.Set] for unknown names.
	ErrVariableNotFound = errors.New("frep: variable not found")
	// ErrNotVariable is returned by [Variables.Adopt] when the adopted tree is
	// not a free variable leaf.
	ErrNotVariable = errors.New("frep: tree is not a free variable leaf")
)

// Variables is an append-only set of named free variables used to
// parameterize trees without rebuilding them. The zero value is ready to use.
//
// Insertion order is stable and determines the positional value buffer
// consumed by evaluators. Variables is not safe for concurrent use; callers
// synchronize Set against concurrent evaluation externally.
type Variables struct {
	index  map[string]int
	trees  []Tree
	values []float32
	// generation increments on structural change (Add). Evaluators bind a
	// generation and refuse to update against a mismatched one.
	generation uint64
}

// Add creates a fresh free variable bound to name with an initial value and
// returns the tree wrapping it. Fails with [ErrVariableAlreadyAdded] if name
// is already present.
func (vs *Variables) Add(name string, value float32) (Tree, error) {
	if _, exists := vs.index[name]; exists {
		return Tree{}, ErrVariableAlreadyAdded
	}
	if vs.index == nil {
		vs.index = make(map[string]int)
	}
	t := Var()
	vs.index[name] = len(vs.trees)
	vs.trees = append(vs.trees, t)
	vs.values = append(vs.values, value)
	vs.generation++
	return t, nil
}

// Adopt registers an existing free variable leaf under name, typically one
// recovered with [Tree.FreeVariables] from a deserialized tree. Fails with
// [ErrVariableAlreadyAdded] for duplicate names and [ErrNotVariable] if t is
// not a free variable leaf.
func (vs *Variables) Adopt(name string, t Tree, value float32) error {
	if !t.IsVariable() {
		return ErrNotVariable
	}
	if _, exists := vs.index[name]; exists {
		return ErrVariableAlreadyAdded
	}
	if vs.index == nil {
		vs.index = make(map[string]int)
	}
	vs.index[name] = len(vs.trees)
	vs.trees = append(vs.trees, t)
	vs.values = append(vs.values, value)
	vs.generation++
	return nil
}

// Set updates the value bound to name. Fails with [ErrVariableNotFound] if
// name was never added. Evaluators keep computing against their previous
// snapshot until their Update method is called.
func (vs *Variables) Set(name string, value float32) error {
	i, ok := vs.index[name]
	if !ok {
		return ErrVariableNotFound
	}
	vs.values[i] = value
	return nil
}

// Get returns the current value bound to name.
func (vs *Variables) Get(name string) (float32, error) {
	i, ok := vs.index[name]
	if !ok {
		return 0, ErrVariableNotFound
	}
	return vs.values[i], nil
}

// Count returns the number of variables added.
func (vs *Variables) Count() int { return len(vs.trees) }

// Trees returns the free variable trees in insertion order.
func (vs *Variables) Trees() []Tree { return append([]Tree{}, vs.trees...) }

// Values returns a snapshot of the current values in insertion order.
func (vs *Variables) Values() []float32 { return append([]float32{}, vs.values...) }

// Generation identifies the structural shape of the set. It changes on Add
// but not on Set.
func (vs *Variables) Generation() uint64 { return vs.generation }
