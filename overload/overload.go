// Package overload groups callables that share one exposed name.
//
// A Group validates that its members can be told apart by the host's
// call-time type tests, resolves a call the way the generated dispatcher
// does (first accepting member in registration order wins), and emits that
// dispatcher.
package overload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/model"
)

// ErrNoMatchingOverload is returned by Resolve when no member accepts the
// arguments. Generated glue raises a host TypeError in that case.
var ErrNoMatchingOverload = errors.New(binderr.Namespace + ": no overload matches the arguments")

// Kind is what a parameter accepts at call time.
type Kind int

const (
	Int Kind = iota
	Float
	Bool
	String
	Instance
	// Object accepts any host value.
	Object
	// None is the host's null value. Only used for arguments.
	None
)

var kindNames = [...]string{"int", "float", "bool", "str", "instance", "object", "None"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Param is the call-time shape of one parameter.
type Param struct {
	Kind Kind
	// Classes lists the classes an Instance parameter accepts: the
	// declared class first, then classes implicitly converting to it.
	Classes []*model.Class
	// Optional parameters have a default value.
	Optional bool
	// NullOK lets the parameter accept None.
	NullOK bool
}

func (p Param) String() string {
	if p.Kind != Instance {
		return p.Kind.String()
	}
	names := make([]string, len(p.Classes))
	for i, c := range p.Classes {
		names[i] = c.FullName()
	}
	return strings.Join(names, "|")
}

// Shape is the call-time signature of a member.
type Shape struct {
	Params []Param
	// Opaque members (custom wrappers) do their own argument parsing.
	// They never conflict and are assumed to accept anything.
	Opaque bool
}

// MinArgs returns the number of required arguments.
func (s Shape) MinArgs() int {
	n := 0
	for _, p := range s.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// MaxArgs returns the number of accepted arguments.
func (s Shape) MaxArgs() int { return len(s.Params) }

func (s Shape) String() string {
	if s.Opaque {
		return "(...)"
	}
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
		if p.Optional {
			parts[i] += "="
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Member is one callable of a group.
type Member struct {
	// Wrapper is the generated (or custom) wrapper function name.
	Wrapper string
	Shape   Shape
	Desc    model.Descriptor
}

// Group is the set of callables sharing one exposed name.
type Group struct {
	Name    string
	Members []*Member
}

// NewGroup returns an empty group for the exposed name.
func NewGroup(name string) *Group {
	return &Group{Name: name}
}

// Add appends m. Registration order is dispatch order.
func (g *Group) Add(m *Member) {
	g.Members = append(g.Members, m)
}

// Remove drops m, used when a member failed to generate.
func (g *Group) Remove(m *Member) {
	for i, x := range g.Members {
		if x == m {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return
		}
	}
}

// Overloaded reports whether a dispatcher is needed.
func (g *Group) Overloaded() bool { return len(g.Members) > 1 }

// Validate reports the first pair of members no call can tell apart.
func (g *Group) Validate() error {
	for i, a := range g.Members {
		if a.Shape.Opaque {
			continue
		}
		for _, b := range g.Members[i+1:] {
			if b.Shape.Opaque {
				continue
			}
			if indistinguishable(a.Shape, b.Shape) {
				return binderr.Configf("ambiguous overloads of %s: %s and %s both take %s",
					g.Name, describe(a), describe(b), a.Shape)
			}
		}
	}
	return nil
}

// Check validates m against the members already in the group, without
// adding it.
func (g *Group) Check(m *Member) error {
	if m.Shape.Opaque {
		return nil
	}
	for _, x := range g.Members {
		if !x.Shape.Opaque && indistinguishable(x.Shape, m.Shape) {
			return binderr.Configf("ambiguous overloads of %s: %s and %s both take %s",
				g.Name, describe(x), describe(m), m.Shape)
		}
	}
	return nil
}

func describe(m *Member) string {
	if m.Desc != nil {
		return m.Desc.Describe()
	}
	return m.Wrapper
}

func indistinguishable(a, b Shape) bool {
	if a.MinArgs() != b.MinArgs() || a.MaxArgs() != b.MaxArgs() {
		return false
	}
	for i := range a.Params {
		if !sameParam(a.Params[i], b.Params[i]) {
			return false
		}
	}
	return true
}

func sameParam(a, b Param) bool {
	if a.Kind != b.Kind || a.NullOK != b.NullOK {
		return false
	}
	if a.Kind != Instance {
		return true
	}
	if len(a.Classes) != len(b.Classes) {
		return false
	}
	for i := range a.Classes {
		if a.Classes[i] != b.Classes[i] {
			return false
		}
	}
	return true
}

// Arg is a host argument as seen by the dispatcher.
type Arg struct {
	Kind Kind
	// Class is the class of an Instance argument.
	Class *model.Class
}

// Resolve returns the first member accepting args.
func (g *Group) Resolve(args []Arg) (*Member, error) {
	for _, m := range g.Members {
		if m.Shape.Accepts(args) {
			return m, nil
		}
	}
	kinds := make([]string, len(args))
	for i, a := range args {
		kinds[i] = a.Kind.String()
		if a.Class != nil {
			kinds[i] = a.Class.FullName()
		}
	}
	return nil, fmt.Errorf("%w: %s(%s)", ErrNoMatchingOverload, g.Name, strings.Join(kinds, ", "))
}

// Accepts reports whether a call with args would be accepted.
func (s Shape) Accepts(args []Arg) bool {
	if s.Opaque {
		return true
	}
	if len(args) < s.MinArgs() || len(args) > s.MaxArgs() {
		return false
	}
	for i, a := range args {
		if !s.Params[i].accepts(a) {
			return false
		}
	}
	return true
}

func (p Param) accepts(a Arg) bool {
	if p.Kind == Object {
		return true
	}
	switch a.Kind {
	case None:
		return p.NullOK
	case Int:
		return p.Kind == Int || p.Kind == Float
	case Bool:
		return p.Kind == Bool || p.Kind == Int
	case Float:
		return p.Kind == Float
	case String:
		return p.Kind == String
	case Instance:
		if p.Kind != Instance || a.Class == nil {
			return false
		}
		for _, c := range p.Classes {
			if a.Class.IsSubclassOf(c) {
				return true
			}
		}
	}
	return false
}
