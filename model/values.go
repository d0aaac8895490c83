package model

import (
	"fmt"

	"github.com/rubiojr/bindgen/ctype"
)

// Direction of a parameter.
type Direction int

const (
	In Direction = iota
	Out
	InOut
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case InOut:
		return "inout"
	default:
		return "in"
	}
}

// ParseDirection accepts "in", "out", "inout" and "".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "in":
		return In, nil
	case "out":
		return Out, nil
	case "inout":
		return InOut, nil
	}
	return In, fmt.Errorf("unknown direction %q", s)
}

// Ownership holds the ownership annotations of a parameter or return
// value. Nil fields were not given.
type Ownership struct {
	// TransferOwnership applies to parameters: the callee takes ownership.
	TransferOwnership *bool
	// CallerOwnsReturn applies to return values: the host owns the result.
	CallerOwnsReturn *bool
	// Custodian binds the value's lifetime to another object: 0 is self,
	// a positive index is a parameter position (1-based), -1 is the return
	// value.
	Custodian *int
}

// Parameter is a function or method parameter.
type Parameter struct {
	Name string
	// TypeText is the type as written by the caller.
	TypeText string
	// Type is the parsed signature; only valid when TypeErr is nil.
	Type    ctype.Signature
	TypeErr error

	Ownership Ownership
	Direction Direction
	// Default is a C++ expression used when the host omits the argument.
	Default string
	// NullOK lets a pointer parameter accept the host's None.
	NullOK bool
}

// ParamOption configures a Parameter.
type ParamOption func(*Parameter)

// Param declares a parameter. A malformed type is recorded, not fatal; it
// surfaces as a configuration error when the owning member is validated.
func Param(typ, name string, opts ...ParamOption) *Parameter {
	p := &Parameter{Name: name, TypeText: typ}
	p.Type, p.TypeErr = ctype.Parse(typ)
	for _, o := range opts {
		o(p)
	}
	return p
}

func TransferOwnership(transfer bool) ParamOption {
	return func(p *Parameter) { p.Ownership.TransferOwnership = &transfer }
}

// Custodian makes the parameter a ward of the object at index.
func Custodian(index int) ParamOption {
	return func(p *Parameter) { p.Ownership.Custodian = &index }
}

func Dir(d Direction) ParamOption { return func(p *Parameter) { p.Direction = d } }

func Default(expr string) ParamOption { return func(p *Parameter) { p.Default = expr } }

func NullOK() ParamOption { return func(p *Parameter) { p.NullOK = true } }

// ReturnValue is the return type of a callable, or the type of an
// attribute.
type ReturnValue struct {
	TypeText  string
	Type      ctype.Signature
	TypeErr   error
	Ownership Ownership
}

// ReturnOption configures a ReturnValue.
type ReturnOption func(*ReturnValue)

// Ret declares a return value.
func Ret(typ string, opts ...ReturnOption) *ReturnValue {
	r := &ReturnValue{TypeText: typ}
	r.Type, r.TypeErr = ctype.Parse(typ)
	for _, o := range opts {
		o(r)
	}
	return r
}

func CallerOwnsReturn(owns bool) ReturnOption {
	return func(r *ReturnValue) { r.Ownership.CallerOwnsReturn = &owns }
}

// ReturnCustodian makes the returned object a ward of the object at index.
func ReturnCustodian(index int) ReturnOption {
	return func(r *ReturnValue) { r.Ownership.Custodian = &index }
}

// IsVoid reports a void return.
func (r *ReturnValue) IsVoid() bool {
	return r.TypeErr == nil && r.Type.Base == "void" && r.Type.Pointers == 0
}

func orVoid(r *ReturnValue) *ReturnValue {
	if r == nil {
		return Ret("void")
	}
	return r
}
