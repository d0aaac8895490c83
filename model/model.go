// Package model is the declarative API used to describe the C++ surface
// to wrap: a Module holds a namespace tree of classes, enums, functions
// and custom wrappers, built once by the caller and consumed once by a
// generation run.
//
//	mod := model.NewModule("foo")
//	foo := mod.AddClass("Foo", model.AutomaticTypeNarrowing())
//	foo.AddConstructor(model.Param("std::string", "datum"))
//	foo.AddMethod("get_datum", model.Ret("std::string"), nil)
package model

import (
	"fmt"
	"strings"
)

// Descriptor is implemented by every declared entity. Describe names the
// entity for diagnostics ("class Foo", "method SomeObject::get_int").
type Descriptor interface {
	Describe() string
}

// Visibility of a native member. It only affects native-side declarations.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// ParseVisibility accepts "public", "protected", "private" and "".
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "", "public":
		return Public, nil
	case "protected":
		return Protected, nil
	case "private":
		return Private, nil
	}
	return Public, fmt.Errorf("unknown visibility %q", s)
}

// Module is the root of a descriptor tree.
type Module struct {
	*Namespace
	// Includes are emitted verbatim after the preamble, e.g. `"foo.h"`.
	Includes []string
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	m := &Module{}
	m.Namespace = &Namespace{Name: name, module: m}
	return m
}

// AddInclude records a header to include, quoted or bracketed as given.
func (m *Module) AddInclude(header string) {
	m.Includes = append(m.Includes, header)
}

func (m *Module) Describe() string { return "module " + m.Name }

// Classes returns every class of the module, outer classes before their
// nested classes, namespaces depth first, each level in declaration order.
func (m *Module) Classes() []*Class {
	var out []*Class
	var walkClass func(c *Class)
	walkClass = func(c *Class) {
		out = append(out, c)
		for _, n := range c.NestedClasses {
			walkClass(n)
		}
	}
	var walk func(ns *Namespace)
	walk = func(ns *Namespace) {
		for _, c := range ns.Classes {
			walkClass(c)
		}
		for _, child := range ns.Namespaces {
			walk(child)
		}
	}
	walk(m.Namespace)
	return out
}

// Enums returns every enum of the module, including nested ones.
func (m *Module) Enums() []*Enum {
	var out []*Enum
	var walk func(ns *Namespace)
	walk = func(ns *Namespace) {
		out = append(out, ns.Enums...)
		for _, child := range ns.Namespaces {
			walk(child)
		}
	}
	walk(m.Namespace)
	for _, c := range m.Classes() {
		out = append(out, c.NestedEnums...)
	}
	return out
}

// FindClass looks a class up by its full C++ name ("xpto::SomeClass").
func (m *Module) FindClass(fullName string) *Class {
	fullName = strings.TrimPrefix(fullName, "::")
	for _, c := range m.Classes() {
		if c.FullName() == fullName {
			return c
		}
	}
	return nil
}

// Contains reports whether c was declared in this module.
func (m *Module) Contains(c *Class) bool {
	return c != nil && c.module == m
}

// Namespace is a C++ namespace. The module itself is the root namespace,
// which has no C++ scope of its own.
type Namespace struct {
	Name       string
	Parent     *Namespace
	Namespaces []*Namespace
	Classes    []*Class
	Enums      []*Enum
	Functions  []*Function

	module *Module
}

func (ns *Namespace) Describe() string {
	if ns.Parent == nil {
		return "module " + ns.Name
	}
	return "namespace " + ns.Scope()
}

// Scope returns the C++ scope of the namespace ("" for the module root,
// "xpto" or "a::b" otherwise).
func (ns *Namespace) Scope() string {
	if ns == nil || ns.Parent == nil {
		return ""
	}
	if p := ns.Parent.Scope(); p != "" {
		return p + "::" + ns.Name
	}
	return ns.Name
}

// Module returns the module the namespace belongs to.
func (ns *Namespace) Module() *Module { return ns.module }

// AddNamespace declares a child namespace.
func (ns *Namespace) AddNamespace(name string) *Namespace {
	child := &Namespace{Name: name, Parent: ns, module: ns.module}
	ns.Namespaces = append(ns.Namespaces, child)
	return child
}

// AddClass declares a class in the namespace.
func (ns *Namespace) AddClass(name string, opts ...ClassOption) *Class {
	c := newClass(name, ns)
	for _, o := range opts {
		o(c)
	}
	ns.Classes = append(ns.Classes, c)
	return c
}

// AddEnum declares an enum in the namespace.
func (ns *Namespace) AddEnum(name string, values ...string) *Enum {
	e := &Enum{Name: name, Values: values, Namespace: ns}
	ns.Enums = append(ns.Enums, e)
	return e
}

// AddFunction declares a free function. Functions added under the same
// exposed name form one overload group.
func (ns *Namespace) AddFunction(name string, ret *ReturnValue, params []*Parameter, opts ...FunctionOption) *Function {
	f := &Function{Name: name, HostName: name, Return: orVoid(ret), Params: params, Namespace: ns}
	for _, o := range opts {
		o(f)
	}
	ns.Functions = append(ns.Functions, f)
	return f
}

// AddCustomFunction adds a hand written wrapper, exposed as name and
// inserted verbatim. It joins the overload group of any function with the
// same exposed name.
func (ns *Namespace) AddCustomFunction(name, wrapperName, body string, flags ...string) *Function {
	f := &Function{
		Name:      name,
		HostName:  name,
		Namespace: ns,
		Custom:    &CustomWrapper{WrapperName: wrapperName, Body: body, Flags: flags},
	}
	ns.Functions = append(ns.Functions, f)
	return f
}

// Enum is a C++ enumeration exposed as host integers.
type Enum struct {
	Name      string
	Values    []string
	Namespace *Namespace
	// Outer is set for enums nested in a class.
	Outer *Class
}

// FullName returns the scoped C++ name of the enum.
func (e *Enum) FullName() string {
	if e.Outer != nil {
		return e.Outer.FullName() + "::" + e.Name
	}
	return scoped(e.Namespace.Scope(), e.Name)
}

func (e *Enum) Describe() string { return "enum " + e.FullName() }

// Function is a free function, or a custom wrapper when Custom is set.
type Function struct {
	// Name is the native function name.
	Name string
	// HostName is the name exposed to the host; functions sharing it are
	// overloads of each other.
	HostName  string
	Return    *ReturnValue
	Params    []*Parameter
	Namespace *Namespace
	Custom    *CustomWrapper
}

// FullName returns the scoped native name.
func (f *Function) FullName() string { return scoped(f.Namespace.Scope(), f.Name) }

func (f *Function) Describe() string {
	return fmt.Sprintf("function %s(%s)", f.FullName(), describeParams(f.Params))
}

// FunctionOption configures a Function.
type FunctionOption func(*Function)

// ExposedAs sets the host-visible name of a function.
func ExposedAs(name string) FunctionOption {
	return func(f *Function) { f.HostName = name }
}

// CustomWrapper is an opaque, hand written wrapper function. The engine
// inserts Body verbatim and never inspects or re-validates it.
type CustomWrapper struct {
	WrapperName string
	Body        string
	// Flags are the method-table flags, without the dialect prefix
	// ("METH_VARARGS", "METH_KEYWORDS", "METH_STATIC").
	Flags []string
}

func scoped(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "::" + name
}

func describeParams(params []*Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.TypeText
	}
	return strings.Join(parts, ", ")
}
