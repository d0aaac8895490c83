package model

import (
	"fmt"
	"strings"
)

// RefCount names the methods of a reference counted class. A class with a
// RefCount policy is never deleted by the glue, only decref'd.
type RefCount struct {
	Incref string
	Decref string
	// Peek optionally returns the current count.
	Peek string
}

// HelperClassEditor is the view of a generated helper (trampoline) class
// handed to helper class hooks. Hooks may only append.
type HelperClassEditor interface {
	// Name returns the C++ name of the helper class.
	Name() string
	// AddCustomMethod appends a declaration to the class body and its
	// definition after the generated members.
	AddCustomMethod(declaration, body string)
	// AddPostGenerationCode appends a fragment emitted after the helper
	// class definitions.
	AddPostGenerationCode(code string)
}

// HelperClassHook is called once the helper class members are final.
type HelperClassHook func(HelperClassEditor)

// Class is a C++ class.
type Class struct {
	Name      string
	Namespace *Namespace
	// Outer is the enclosing class of a nested class.
	Outer  *Class
	Parent *Class

	Constructors  []*Constructor
	Methods       []*Method
	Attributes    []*Attribute
	NestedClasses []*Class
	NestedEnums   []*Enum

	Singleton bool
	RefCount  *RefCount
	// InstanceCreator, when set, replaces "new T(args)" in constructor
	// wrappers. It is a format with three %s verbs: the lvalue receiving
	// the pointer, the type to construct and the argument list.
	InstanceCreator string
	// AutomaticTypeNarrowing makes pointer returns of this class wrap
	// the most derived registered class of the object.
	AutomaticTypeNarrowing bool
	// InheritDefaultConstructors copies the parent's zero-argument
	// constructors.
	InheritDefaultConstructors bool

	// ImplicitConversions lists the classes this class implicitly
	// converts to, in declaration order.
	ImplicitConversions []*Class
	HelperClassHooks    []HelperClassHook

	allowSubclassing *bool
	cannotConstruct  string
	module           *Module
}

func newClass(name string, ns *Namespace) *Class {
	return &Class{Name: name, Namespace: ns, module: ns.module}
}

// ClassOption configures a Class at declaration time.
type ClassOption func(*Class)

// WithParent sets the single base class.
func WithParent(parent *Class) ClassOption {
	return func(c *Class) { c.Parent = parent }
}

// AllowSubclassing lets host classes derive from the class.
func AllowSubclassing() ClassOption {
	return func(c *Class) { c.SetAllowSubclassing(true) }
}

// Singleton suppresses the public construction path.
func Singleton() ClassOption {
	return func(c *Class) { c.Singleton = true }
}

// RefCounted marks the class as reference counted.
func RefCounted(incref, decref, peek string) ClassOption {
	return func(c *Class) { c.RefCount = &RefCount{Incref: incref, Decref: decref, Peek: peek} }
}

// AutomaticTypeNarrowing enables most-derived wrapping of pointer returns.
func AutomaticTypeNarrowing() ClassOption {
	return func(c *Class) { c.AutomaticTypeNarrowing = true }
}

// InstanceCreator sets a custom instance creation format.
func InstanceCreator(format string) ClassOption {
	return func(c *Class) { c.InstanceCreator = format }
}

func (c *Class) Describe() string { return "class " + c.FullName() }

// Module returns the module the class was declared in.
func (c *Class) Module() *Module { return c.module }

// FullName returns the scoped C++ name ("xpto::SomeClass",
// "SomeObject::NestedClass").
func (c *Class) FullName() string {
	if c.Outer != nil {
		return c.Outer.FullName() + "::" + c.Name
	}
	return scoped(c.Namespace.Scope(), c.Name)
}

// MangledName flattens the full name into an identifier
// ("SomeObject__NestedClass").
func (c *Class) MangledName() string {
	return strings.ReplaceAll(c.FullName(), "::", "__")
}

// AddNestedClass declares a class nested in c.
func (c *Class) AddNestedClass(name string, opts ...ClassOption) *Class {
	n := newClass(name, c.Namespace)
	n.Outer = c
	for _, o := range opts {
		o(n)
	}
	c.NestedClasses = append(c.NestedClasses, n)
	return n
}

// AddNestedEnum declares an enum nested in c.
func (c *Class) AddNestedEnum(name string, values ...string) *Enum {
	e := &Enum{Name: name, Values: values, Namespace: c.Namespace, Outer: c}
	c.NestedEnums = append(c.NestedEnums, e)
	return e
}

// SetAllowSubclassing sets the subclassing flag explicitly. When never
// set, the flag is inherited from the parent class.
func (c *Class) SetAllowSubclassing(allow bool) {
	c.allowSubclassing = &allow
}

// AllowsSubclassing reports the effective subclassing flag.
func (c *Class) AllowsSubclassing() bool {
	for k := c; k != nil; k = k.Parent {
		if k.allowSubclassing != nil {
			return *k.allowSubclassing
		}
	}
	return false
}

// SetCannotBeConstructed marks the class as not constructible by the glue.
// Any code path that needs to construct one fails lazily with a
// generation error carrying reason.
func (c *Class) SetCannotBeConstructed(reason string) {
	if reason == "" {
		reason = "no reason given"
	}
	c.cannotConstruct = reason
}

// CannotBeConstructed reports whether the glue may not construct the class,
// and why.
func (c *Class) CannotBeConstructed() (bool, string) {
	return c.cannotConstruct != "", c.cannotConstruct
}

// IsRefCounted reports whether the class, or an ancestor, is reference
// counted.
func (c *Class) IsRefCounted() bool { return c.RefCountPolicy() != nil }

// RefCountPolicy returns the nearest reference counting policy in the
// inheritance chain.
func (c *Class) RefCountPolicy() *RefCount {
	for k := c; k != nil; k = k.Parent {
		if k.RefCount != nil {
			return k.RefCount
		}
	}
	return nil
}

// ImplicitlyConvertsTo declares a directed implicit conversion c -> target.
func (c *Class) ImplicitlyConvertsTo(target *Class) {
	c.ImplicitConversions = append(c.ImplicitConversions, target)
}

// AddHelperClassHook registers a hook run on the class's helper class.
func (c *Class) AddHelperClassHook(hook HelperClassHook) {
	c.HelperClassHooks = append(c.HelperClassHooks, hook)
}

// IsSubclassOf reports whether c is other or derives from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Parent {
		if k == other {
			return true
		}
	}
	return false
}

// Ancestors returns the parent chain, nearest first.
func (c *Class) Ancestors() []*Class {
	var out []*Class
	for k := c.Parent; k != nil; k = k.Parent {
		out = append(out, k)
	}
	return out
}

// Constructor is a C++ constructor.
type Constructor struct {
	Class      *Class
	Params     []*Parameter
	Visibility Visibility
	// Inherited is set on constructors copied from the parent class.
	Inherited bool
}

// AddConstructor declares a public constructor.
func (c *Class) AddConstructor(params ...*Parameter) *Constructor {
	return c.AddConstructorWithVisibility(Public, params...)
}

// AddConstructorWithVisibility declares a constructor with the given
// visibility. Non-public constructors are only reachable from helper
// classes.
func (c *Class) AddConstructorWithVisibility(v Visibility, params ...*Parameter) *Constructor {
	ctor := &Constructor{Class: c, Params: params, Visibility: v}
	c.Constructors = append(c.Constructors, ctor)
	return ctor
}

func (ct *Constructor) Describe() string {
	return fmt.Sprintf("constructor %s(%s)", ct.Class.FullName(), describeParams(ct.Params))
}

// Method is a C++ method, a free function exposed as a method (Function
// set), or a custom wrapper (Custom set).
type Method struct {
	Class *Class
	// Name is the native method (or function) name.
	Name string
	// HostName is the exposed name; methods sharing it are overloads.
	HostName string
	Return   *ReturnValue
	Params   []*Parameter

	Static      bool
	Const       bool
	Virtual     bool
	PureVirtual bool
	Visibility  Visibility

	// Function is set when a free function is exposed as a method. The
	// instance is passed as its first native parameter.
	Function bool
	Custom   *CustomWrapper
}

// MethodOption configures a Method.
type MethodOption func(*Method)

func IsStatic() MethodOption  { return func(m *Method) { m.Static = true } }
func IsConst() MethodOption   { return func(m *Method) { m.Const = true } }
func IsVirtual() MethodOption { return func(m *Method) { m.Virtual = true } }

// IsPureVirtual marks the method pure virtual (and virtual).
func IsPureVirtual() MethodOption {
	return func(m *Method) {
		m.Virtual = true
		m.PureVirtual = true
	}
}

func WithVisibility(v Visibility) MethodOption {
	return func(m *Method) { m.Visibility = v }
}

// MethodExposedAs sets the host-visible name of a method.
func MethodExposedAs(name string) MethodOption {
	return func(m *Method) { m.HostName = name }
}

// AddMethod declares a method.
func (c *Class) AddMethod(name string, ret *ReturnValue, params []*Parameter, opts ...MethodOption) *Method {
	m := &Method{Class: c, Name: name, HostName: name, Return: orVoid(ret), Params: params}
	for _, o := range opts {
		o(m)
	}
	c.Methods = append(c.Methods, m)
	return m
}

// AddFunctionAsMethod exposes the free function fn as method hostName. The
// first native parameter of fn receives the instance.
func (c *Class) AddFunctionAsMethod(fn, hostName string, ret *ReturnValue, params []*Parameter) *Method {
	m := &Method{Class: c, Name: fn, HostName: hostName, Return: orVoid(ret), Params: params, Function: true}
	c.Methods = append(c.Methods, m)
	return m
}

// AddCustomMethod adds a hand written method wrapper, inserted verbatim.
func (c *Class) AddCustomMethod(hostName, wrapperName, body string, flags ...string) *Method {
	m := &Method{
		Class:    c,
		Name:     hostName,
		HostName: hostName,
		Custom:   &CustomWrapper{WrapperName: wrapperName, Body: body, Flags: flags},
	}
	for _, f := range flags {
		if f == "METH_STATIC" {
			m.Static = true
		}
	}
	c.Methods = append(c.Methods, m)
	return m
}

func (m *Method) Describe() string {
	return fmt.Sprintf("method %s::%s(%s)", m.Class.FullName(), m.Name, describeParams(m.Params))
}

// Attribute is an instance or static data member.
type Attribute struct {
	Class *Class
	Name  string
	Type  *ReturnValue
	// Getter and Setter name methods used instead of direct member access.
	Getter string
	Setter string
	Static bool
	// ReadOnly suppresses the setter.
	ReadOnly bool
}

// AttributeOption configures an Attribute.
type AttributeOption func(*Attribute)

func Getter(method string) AttributeOption { return func(a *Attribute) { a.Getter = method } }
func Setter(method string) AttributeOption { return func(a *Attribute) { a.Setter = method } }
func ReadOnly() AttributeOption            { return func(a *Attribute) { a.ReadOnly = true } }

// AddInstanceAttribute declares an instance attribute.
func (c *Class) AddInstanceAttribute(typ, name string, opts ...AttributeOption) *Attribute {
	a := &Attribute{Class: c, Name: name, Type: Ret(typ)}
	for _, o := range opts {
		o(a)
	}
	c.Attributes = append(c.Attributes, a)
	return a
}

// AddStaticAttribute declares a static data member.
func (c *Class) AddStaticAttribute(typ, name string, opts ...AttributeOption) *Attribute {
	a := c.AddInstanceAttribute(typ, name, opts...)
	a.Static = true
	return a
}

func (a *Attribute) Describe() string {
	kind := "attribute"
	if a.Static {
		kind = "static attribute"
	}
	return fmt.Sprintf("%s %s::%s", kind, a.Class.FullName(), a.Name)
}
