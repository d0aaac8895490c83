// Package ownership decides who owns a native object at each wrapper
// boundary and what the generated glue must do about it.
//
// For every parameter and return value the Resolver produces a Decision: a
// Policy plus the actions to run before the native call (OnEnter) and after
// it (OnExit). Finalize gives the actions a wrapper runs when the host
// collects it. Reference counted classes never get a Delete action.
package ownership

import (
	"fmt"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/ctype"
	"github.com/rubiojr/bindgen/model"
)

// Policy is the ownership policy of one value.
type Policy int

const (
	// CalleeRetains: the caller keeps ownership; the callee may keep a
	// non-owning reference. For returns, the host wraps a non-owning
	// reference.
	CalleeRetains Policy = iota
	// CallerTransfersIn: ownership moves to the callee.
	CallerTransfersIn
	// CallerOwnsReturned: the host wraps and owns the returned object.
	CallerOwnsReturned
	// CustodianBound: the value is a ward of another object.
	CustodianBound
	// ReferenceCounted: the glue increfs on every new alias and decrefs
	// when a wrapper is finalized.
	ReferenceCounted
)

func (p Policy) String() string {
	switch p {
	case CallerTransfersIn:
		return "caller-transfers-in"
	case CallerOwnsReturned:
		return "caller-owns-returned-value"
	case CustodianBound:
		return "custodian-bound"
	case ReferenceCounted:
		return "reference-counted"
	default:
		return "callee-retains"
	}
}

// ActionKind is a single lifetime operation performed by generated glue.
type ActionKind int

const (
	// Incref takes a new native reference.
	Incref ActionKind = iota
	// Decref drops a native reference.
	Decref
	// Adopt marks the wrapper as owner of the object.
	Adopt
	// Relinquish detaches the object from the wrapper, whose pointer is
	// cleared.
	Relinquish
	// MarkNotOwned marks the wrapper as a non-owning alias.
	MarkNotOwned
	// AddWard registers the value as a ward of a custodian.
	AddWard
	// Delete destroys the native object.
	Delete
	// Copy stores a copy of the native value in the wrapper.
	Copy
)

var actionNames = [...]string{"incref", "decref", "adopt", "relinquish", "mark-not-owned", "add-ward", "delete", "copy"}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Action is one lifetime operation. Custodian is the custodian index of an
// AddWard action.
type Action struct {
	Kind      ActionKind
	Custodian int
}

func (a Action) String() string {
	if a.Kind == AddWard {
		return fmt.Sprintf("add-ward(%d)", a.Custodian)
	}
	return a.Kind.String()
}

// Decision is the resolved ownership of one value.
type Decision struct {
	Policy Policy
	// RefCounted reports that the value's class is reference counted.
	RefCounted bool
	// Custodian is set for custodian-bound values.
	Custodian *int
	// OnEnter runs before the native call, OnExit after it succeeded.
	OnEnter []Action
	OnExit  []Action
}

// Actions returns OnEnter followed by OnExit.
func (d Decision) Actions() []Action {
	out := make([]Action, 0, len(d.OnEnter)+len(d.OnExit))
	out = append(out, d.OnEnter...)
	return append(out, d.OnExit...)
}

// Subject is a value whose ownership is resolved.
type Subject struct {
	Role binderr.Role
	Type ctype.Signature
	// Class is the class of the value, nil when it is not a class
	// instance.
	Class     *model.Class
	Ownership model.Ownership
	// Reverse is set for downcalls, where native code calls a host
	// override: parameters flow to the host and the return flows back.
	Reverse bool
}

// Resolve decides the ownership of s. Custodian annotations are ignored
// on downcalls: the host side of a trampoline has no custodian to bind to.
func Resolve(s Subject) (Decision, error) {
	if s.Class == nil {
		if s.Ownership.Custodian != nil && !s.Reverse {
			return Decision{}, binderr.Configf("custodian annotation on %s %q, which is not a class instance", s.Role, s.Type)
		}
		return Decision{Policy: CalleeRetains}, nil
	}
	d := Decision{RefCounted: s.Class.IsRefCounted()}

	if !s.Type.IsPointer() {
		return resolveNonPointer(s, d)
	}
	if s.Reverse {
		return resolveReverse(s, d)
	}
	if s.Role == binderr.Parameter {
		return resolveParam(s, d)
	}
	return resolveReturn(s, d)
}

func resolveNonPointer(s Subject, d Decision) (Decision, error) {
	if s.Ownership.Custodian != nil && !s.Reverse {
		return d, binderr.Configf("custodian annotation on %s %q, which is not a pointer", s.Role, s.Type)
	}
	// Values and references flowing into native code are passed through
	// (native code copies what it keeps). Flowing out, they are copied
	// into a wrapper the host owns.
	if s.Reverse == (s.Role == binderr.Return) {
		d.Policy = CalleeRetains
		return d, nil
	}
	d.Policy = CallerOwnsReturned
	if s.Reverse {
		d.OnEnter = []Action{{Kind: Copy}, {Kind: Adopt}}
	} else {
		d.OnExit = []Action{{Kind: Copy}, {Kind: Adopt}}
	}
	return d, nil
}

func resolveParam(s Subject, d Decision) (Decision, error) {
	own := s.Ownership
	if own.Custodian != nil {
		if own.TransferOwnership != nil && *own.TransferOwnership {
			return d, binderr.Configf("parameter %q both transfers ownership and has a custodian", s.Type)
		}
		d.Policy = CustodianBound
		d.Custodian = own.Custodian
		d.OnExit = []Action{{Kind: AddWard, Custodian: *own.Custodian}}
		return d, nil
	}
	if own.TransferOwnership == nil {
		return d, binderr.Configf("pointer parameter %q needs a transfer_ownership annotation", s.Type)
	}
	transfer := *own.TransferOwnership
	switch {
	case d.RefCounted && transfer:
		// The callee keeps its own reference; the wrapper keeps its own.
		d.Policy = ReferenceCounted
		d.OnEnter = []Action{{Kind: Incref}}
	case d.RefCounted:
		d.Policy = ReferenceCounted
	case transfer:
		d.Policy = CallerTransfersIn
		d.OnExit = []Action{{Kind: Relinquish}}
	default:
		d.Policy = CalleeRetains
	}
	return d, nil
}

func resolveReturn(s Subject, d Decision) (Decision, error) {
	own := s.Ownership
	if own.Custodian != nil && *own.Custodian == -1 {
		return d, binderr.Configf("return value %q cannot be its own custodian", s.Type)
	}
	if own.CallerOwnsReturn == nil && own.Custodian == nil {
		return d, binderr.Configf("pointer return %q needs a caller_owns_return annotation", s.Type)
	}
	owns := own.CallerOwnsReturn != nil && *own.CallerOwnsReturn
	switch {
	case d.RefCounted && owns:
		d.Policy = ReferenceCounted
		d.OnExit = []Action{{Kind: Adopt}}
	case d.RefCounted:
		d.Policy = ReferenceCounted
		d.OnExit = []Action{{Kind: Incref}, {Kind: Adopt}}
	case owns:
		d.Policy = CallerOwnsReturned
		d.OnExit = []Action{{Kind: Adopt}}
	default:
		d.Policy = CalleeRetains
		d.OnExit = []Action{{Kind: MarkNotOwned}}
	}
	if own.Custodian != nil {
		d.Policy = CustodianBound
		d.Custodian = own.Custodian
		d.OnExit = append(d.OnExit, Action{Kind: AddWard, Custodian: *own.Custodian})
	}
	return d, nil
}

// resolveReverse mirrors the forward rules for downcalls: a parameter is
// a value native code hands to the host, the return is a value the host
// hands back to native code.
func resolveReverse(s Subject, d Decision) (Decision, error) {
	own := s.Ownership
	if s.Role == binderr.Parameter {
		transfer := own.TransferOwnership != nil && *own.TransferOwnership
		switch {
		case d.RefCounted && transfer:
			d.Policy = ReferenceCounted
			d.OnEnter = []Action{{Kind: Adopt}}
		case d.RefCounted:
			d.Policy = ReferenceCounted
			d.OnEnter = []Action{{Kind: Incref}, {Kind: Adopt}}
		case transfer:
			d.Policy = CallerTransfersIn
			d.OnEnter = []Action{{Kind: Adopt}}
		default:
			// The host may keep the wrapper past the call; detach it so it
			// never points at an object native code may free.
			d.Policy = CalleeRetains
			d.OnEnter = []Action{{Kind: MarkNotOwned}}
			d.OnExit = []Action{{Kind: Relinquish}}
		}
		return d, nil
	}
	owns := own.CallerOwnsReturn != nil && *own.CallerOwnsReturn
	switch {
	case d.RefCounted && owns:
		d.Policy = ReferenceCounted
		d.OnExit = []Action{{Kind: Incref}}
	case d.RefCounted:
		d.Policy = ReferenceCounted
	case owns:
		d.Policy = CallerOwnsReturned
		d.OnExit = []Action{{Kind: Relinquish}}
	default:
		d.Policy = CalleeRetains
	}
	return d, nil
}

// Finalize returns what a wrapper of c does when the host collects it,
// provided it still holds an object it owns: reference counted objects
// are decref'd, everything else is deleted.
func Finalize(c *model.Class) []Action {
	if c.IsRefCounted() {
		return []Action{{Kind: Decref}}
	}
	return []Action{{Kind: Delete}}
}

// CustodianScope describes the callable a custodian index is checked
// against.
type CustodianScope struct {
	// HasSelf is set for instance methods.
	HasSelf bool
	// Params are the callable's parameters (1-based in custodian
	// indexes).
	Params []*model.Parameter
	// IsInstance reports whether a parameter or the return value is a
	// class instance that can hold a ward list.
	IsInstance func(t ctype.Signature) bool
	// Return is the callable's return value.
	Return *model.ReturnValue
}

// ValidateCustodian checks custodian index idx used by the value at
// position pos (1-based parameter position, or -1 for the return value).
func ValidateCustodian(idx, pos int, scope CustodianScope) error {
	switch {
	case idx == 0:
		if !scope.HasSelf {
			return binderr.Configf("custodian 0 (self) used outside an instance method")
		}
	case idx == -1:
		if pos == -1 {
			return binderr.Configf("return value cannot be its own custodian")
		}
		if scope.Return == nil || scope.Return.TypeErr != nil || !scope.IsInstance(scope.Return.Type) {
			return binderr.Configf("custodian -1 requires a class instance return value")
		}
	case idx > 0:
		if idx > len(scope.Params) {
			return binderr.Configf("custodian index %d out of range (%d parameters)", idx, len(scope.Params))
		}
		if idx == pos {
			return binderr.Configf("parameter %d cannot be its own custodian", idx)
		}
		p := scope.Params[idx-1]
		if p.TypeErr != nil || !scope.IsInstance(p.Type) {
			return binderr.Configf("custodian parameter %d (%s) is not a class instance", idx, p.TypeText)
		}
	default:
		return binderr.Configf("invalid custodian index %d", idx)
	}
	return nil
}
