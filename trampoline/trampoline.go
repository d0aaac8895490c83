// Package trampoline synthesizes helper classes: native subclasses of a
// wrapped class whose virtual methods forward to host overrides.
//
// For every virtual method the helper gets a downcall, an override that
// looks up the host method and calls it, falling back to the native
// implementation when the host does not override it. Non-pure virtuals
// also get an upcall, name__parent_caller, which the method wrapper uses
// to reach the native implementation without re-entering the downcall.
package trampoline

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/hostapi"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/typehandlers"
)

// SelfField is the helper member holding the host object.
const SelfField = "m_hbself"

// Generator builds helper classes against one registry.
type Generator struct {
	Dialect  *hostapi.Dialect
	Registry *typehandlers.Registry
}

// New returns a Generator.
func New(d *hostapi.Dialect, reg *typehandlers.Registry) *Generator {
	return &Generator{Dialect: d, Registry: reg}
}

// HelperName names the helper class of c.
func HelperName(d *hostapi.Dialect, c *model.Class) string {
	return d.Wrapper(c.MangledName()) + "__HelperClass"
}

// ParentCallerName names the upcall of m.
func ParentCallerName(m *model.Method) string {
	return m.Name + "__parent_caller"
}

// Skipped is a virtual method that got no downcall; the native
// implementation stays in effect for host subclasses.
type Skipped struct {
	Method *model.Method
	Err    error
}

type member struct {
	visibility model.Visibility
	decl       string
}

// Helper is a generated helper class. Once Generate returns, its members
// are final; hooks and later callers may only append custom methods and
// post-generation code.
type Helper struct {
	Class *model.Class
	// Virtuals are the overridden methods, most derived declaration first.
	Virtuals []*model.Method
	// Upcalls are the methods with a parent caller.
	Upcalls []*model.Method
	Skipped []Skipped

	name    string
	d       *hostapi.Dialect
	ctors   []string
	members []member
	defs    []string
	post    []string
}

// Name returns the C++ name of the helper class.
func (h *Helper) Name() string { return h.name }

// AddCustomMethod appends a public declaration and its out-of-class
// definition.
func (h *Helper) AddCustomMethod(declaration, body string) {
	h.members = append(h.members, member{model.Public, declaration})
	h.defs = append(h.defs, body)
}

// AddPostGenerationCode appends a fragment written after the definitions.
func (h *Helper) AddPostGenerationCode(code string) {
	h.post = append(h.post, code)
}

// HasUpcall reports whether m has a parent caller in this helper.
func (h *Helper) HasUpcall(m *model.Method) bool {
	for _, u := range h.Upcalls {
		if u == m {
			return true
		}
	}
	return false
}

// PureVirtuals lists the pure virtual methods a host subclass must
// override.
func (h *Helper) PureVirtuals() []*model.Method {
	var out []*model.Method
	for _, m := range h.Virtuals {
		if m.PureVirtual {
			out = append(out, m)
		}
	}
	return out
}

// WriteOverrideChecks writes the construction-time checks that the host
// class of self overrides every pure virtual method.
func (h *Helper) WriteOverrideChecks(block *codesink.CodeBlock, self string) {
	for _, m := range h.PureVirtuals() {
		cond := "!" + h.d.Call("has_override", "("+h.d.Object()+" *) "+self, fmt.Sprintf("%q", m.Name))
		block.WriteErrorCheck(cond, h.d.Raise("TypeError",
			fmt.Sprintf("%s: pure virtual method %s is not overridden", h.Class.FullName(), m.Name)))
	}
}

// Generate builds the helper class of c. It fails when c does not allow
// subclassing, or when a pure virtual method cannot get a downcall, which
// would leave the helper abstract. Other virtual methods that cannot be
// forwarded are recorded in Skipped.
func (g *Generator) Generate(c *model.Class) (*Helper, error) {
	if !c.AllowsSubclassing() {
		return nil, binderr.Generationf("class %s does not allow subclassing, no helper class can be generated", c.FullName())
	}
	h := &Helper{Class: c, name: HelperName(g.Dialect, c), d: g.Dialect}

	h.ctors = g.constructors(h)
	for _, m := range VirtualMethods(c) {
		if m.Visibility == model.Private && !m.PureVirtual {
			continue
		}
		sig, err := nativeSignature(m)
		if err != nil {
			if m.PureVirtual {
				return nil, fmt.Errorf("helper class of %s: %w", c.FullName(), err)
			}
			h.Skipped = append(h.Skipped, Skipped{Method: m, Err: err})
			continue
		}
		def, err := g.downcall(h, m, sig)
		if err != nil {
			if m.PureVirtual {
				return nil, fmt.Errorf("helper class of %s: pure virtual %s: %w", c.FullName(), m.Name, err)
			}
			h.Skipped = append(h.Skipped, Skipped{Method: m, Err: err})
			continue
		}
		h.Virtuals = append(h.Virtuals, m)
		if !m.PureVirtual {
			h.Upcalls = append(h.Upcalls, m)
			h.members = append(h.members, member{model.Public, upcall(c, m, sig)})
		}
		h.members = append(h.members, member{m.Visibility,
			fmt.Sprintf("virtual %s %s(%s)%s;", sig.ret, m.Name, sig.params, sig.suffix)})
		h.defs = append(h.defs, def)
	}

	for _, hook := range c.HelperClassHooks {
		hook(h)
	}
	return h, nil
}

// signature is the native spelling of a method.
type signature struct {
	ret    string
	params string
	args   string
	suffix string
}

func nativeSignature(m *model.Method) (signature, error) {
	if m.Return.TypeErr != nil {
		return signature{}, binderr.Configf("%s: return value: %v", m.Describe(), m.Return.TypeErr)
	}
	sig := signature{ret: m.Return.Type.String()}
	var params, args []string
	for _, p := range m.Params {
		if p.TypeErr != nil {
			return signature{}, binderr.Configf("%s: parameter %s: %v", m.Describe(), p.Name, p.TypeErr)
		}
		params = append(params, p.Type.Decl(p.Name))
		args = append(args, p.Name)
	}
	sig.params = strings.Join(params, ", ")
	sig.args = strings.Join(args, ", ")
	if m.Const {
		sig.suffix = " const"
	}
	return sig, nil
}

// constructors forwards every non-private constructor of the class.
func (g *Generator) constructors(h *Helper) []string {
	c := h.Class
	var out []string
	emit := func(params, args string) {
		var w codesink.Writer
		w.Linef("%s(%s)", h.name, params)
		w.Indent()
		w.Linef(": %s(%s), %s(NULL)", c.FullName(), args, SelfField)
		w.Line("{}")
		out = append(out, strings.TrimRight(w.String(), "\n"))
	}
	n := 0
	for _, ct := range c.Constructors {
		if ct.Visibility == model.Private {
			continue
		}
		var params, args []string
		ok := true
		for _, p := range ct.Params {
			if p.TypeErr != nil {
				ok = false
				break
			}
			params = append(params, p.Type.Decl(p.Name))
			args = append(args, p.Name)
		}
		if !ok {
			continue
		}
		emit(strings.Join(params, ", "), strings.Join(args, ", "))
		n++
	}
	if n == 0 && len(c.Constructors) == 0 {
		emit("", "")
	}
	return out
}

func upcall(c *model.Class, m *model.Method, sig signature) string {
	var w codesink.Writer
	w.Linef("inline %s %s(%s)%s", sig.ret, ParentCallerName(m), sig.params, sig.suffix)
	w.Line("{")
	w.Indent()
	call := fmt.Sprintf("%s::%s(%s);", c.FullName(), m.Name, sig.args)
	if m.Return.IsVoid() {
		w.Line(call)
	} else {
		w.Line("return " + call)
	}
	w.Dedent()
	w.Line("}")
	return strings.TrimRight(w.String(), "\n")
}

// VirtualMethods returns the virtual methods of c and its ancestors. A
// redeclaration in a subclass overrides the ancestor's, and is virtual
// even when not flagged so.
func VirtualMethods(c *model.Class) []*model.Method {
	virtual := make(map[string]bool)
	for k := c; k != nil; k = k.Parent {
		for _, m := range k.Methods {
			if m.Virtual && overridable(m) {
				virtual[methodKey(m)] = true
			}
		}
	}
	seen := make(map[string]bool)
	var out []*model.Method
	for k := c; k != nil; k = k.Parent {
		for _, m := range k.Methods {
			if !overridable(m) {
				continue
			}
			key := methodKey(m)
			if seen[key] || !virtual[key] {
				continue
			}
			seen[key] = true
			out = append(out, m)
		}
	}
	return out
}

func overridable(m *model.Method) bool {
	return m.Custom == nil && !m.Function && !m.Static
}

func methodKey(m *model.Method) string {
	var types []string
	for _, p := range m.Params {
		if p.TypeErr != nil {
			types = append(types, p.TypeText)
			continue
		}
		types = append(types, p.Type.String())
	}
	key := m.Name + "(" + strings.Join(types, ",") + ")"
	if m.Const {
		key += " const"
	}
	return key
}

// Write writes the helper class declaration.
func (h *Helper) Write(w *codesink.Writer) {
	d := h.d
	w.Linef("class %s : public %s", h.name, h.Class.FullName())
	w.Line("{")
	w.Line("public:")
	w.Indent()
	w.Linef("%s *%s;", d.Object(), SelfField)
	w.Blank()
	for _, ct := range h.ctors {
		w.Line(ct)
		w.Blank()
	}
	w.Linef("void set_hbself(%s *self)", d.Object())
	w.Line("{")
	w.Indent()
	w.Linef("%s;", d.Call("xdecref", SelfField))
	w.Linef("%s;", d.Call("incref", "self"))
	w.Linef("%s = self;", SelfField)
	w.Dedent()
	w.Line("}")
	w.Blank()
	w.Linef("virtual ~%s()", h.name)
	w.Line("{")
	w.Indent()
	w.Linef("%s;", d.Call("xdecref", SelfField))
	w.Linef("%s = NULL;", SelfField)
	w.Dedent()
	w.Line("}")
	w.Dedent()

	for _, vis := range []model.Visibility{model.Public, model.Protected, model.Private} {
		var decls []string
		for _, m := range h.members {
			if m.visibility == vis {
				decls = append(decls, m.decl)
			}
		}
		if len(decls) == 0 {
			continue
		}
		if vis != model.Public {
			w.Linef("%s:", vis)
		}
		w.Indent()
		for _, decl := range decls {
			w.Blank()
			w.Line(decl)
		}
		w.Dedent()
	}
	w.Line("};")
}

// WriteDefinitions writes the downcall definitions and custom method
// bodies.
func (h *Helper) WriteDefinitions(w *codesink.Writer) {
	for _, def := range h.defs {
		w.Blank()
		w.Line(def)
	}
}

// WritePostGeneration writes the fragments added by hooks.
func (h *Helper) WritePostGeneration(w *codesink.Writer) {
	for _, p := range h.post {
		w.Blank()
		w.Line(p)
	}
}
