package engine

import (
	"github.com/rubiojr/bindgen/model"
)

// ClassState is the lifecycle state of a class within a run.
type ClassState int

const (
	Declared ClassState = iota
	Validated
	Emitted
	// Excluded classes failed validation, or depend on a class that did.
	Excluded
)

var classStateNames = [...]string{"declared", "validated", "emitted", "excluded"}

func (s ClassState) String() string { return classStateNames[s] }

// Failure is one error reported to the error handler.
type Failure struct {
	Desc model.Descriptor
	Err  error
}

// Result describes a finished run.
type Result struct {
	// Suppressed counts the errors the handler chose to continue past.
	Suppressed int
	// Failures lists every reported error in order.
	Failures []Failure
	// Wrappers counts the generated wrapper functions.
	Wrappers int

	states map[*model.Class]ClassState
}

func newResult() *Result {
	return &Result{states: make(map[*model.Class]ClassState)}
}

// State returns the state of c at the end of the run.
func (r *Result) State(c *model.Class) ClassState {
	return r.states[c]
}

// Excluded lists the excluded classes, for reporting.
func (r *Result) Excluded(mod *model.Module) []*model.Class {
	var out []*model.Class
	for _, c := range mod.Classes() {
		if r.states[c] == Excluded {
			out = append(out, c)
		}
	}
	return out
}
