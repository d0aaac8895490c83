package engine

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/overload"
)

// entry is one member of an exposed name, before generation.
type entry struct {
	desc   model.Descriptor
	custom *model.CustomWrapper
	gen    func(w *codesink.Writer, s wrapperSig) (overload.Shape, error)
}

// groupSpec names the wrappers of one exposed name.
type groupSpec struct {
	hostName string
	// base is the wrapper name, or the dispatcher name when overloaded.
	base     string
	sig      wrapperSig
	callArgs string
}

// tableEntry is a row of a method table.
type tableEntry struct {
	name    string
	wrapper string
	flags   []string
}

// emitGroup generates every member of a group. A member that fails is
// reported and left out. It returns the wrapper the method table points
// at, and false when no member survived.
//
// Groups with more than one member, or with a custom wrapper, get a
// dispatcher: custom wrappers always take the return_exception slot.
func (r *run) emitGroup(w *codesink.Writer, gs groupSpec, entries []entry) (string, bool, error) {
	overloaded := len(entries) > 1
	for _, e := range entries {
		if e.custom != nil {
			overloaded = true
		}
	}

	g := overload.NewGroup(gs.hostName)
	for i, e := range entries {
		if e.custom != nil {
			g.Add(&overload.Member{Wrapper: e.custom.WrapperName, Shape: overload.Shape{Opaque: true}, Desc: e.desc})
			w.Blank()
			w.Raw(strings.TrimRight(e.custom.Body, "\n") + "\n")
			continue
		}
		s := gs.sig
		s.name = gs.base
		if overloaded {
			s.name = fmt.Sprintf("%s__%d", gs.base, i)
			s.overloaded = true
		}
		var shape overload.Shape
		body, err := w.Capture(func() error {
			var gerr error
			shape, gerr = e.gen(w, s)
			return gerr
		})
		if err == nil {
			m := &overload.Member{Wrapper: s.name, Shape: shape, Desc: e.desc}
			if err = g.Check(m); err == nil {
				g.Add(m)
				r.res.Wrappers++
				w.Blank()
				w.Raw(body)
				continue
			}
		}
		if err := r.report(e.desc, err); err != nil {
			return "", false, err
		}
	}

	if len(g.Members) == 0 {
		return "", false, nil
	}
	if !overloaded {
		return g.Members[0].Wrapper, true, nil
	}
	w.Blank()
	g.Emit(w, r.d, overload.Dispatcher{
		Name:        gs.base,
		ReturnType:  gs.sig.ret,
		Params:      gs.sig.params,
		CallArgs:    gs.callArgs,
		ErrorReturn: gs.sig.errorValue,
	})
	return gs.base, true, nil
}

// methodFlags returns the method table flags of a group.
func (r *run) methodFlags(static bool, custom []*model.CustomWrapper) []string {
	names := []string{"METH_VARARGS", "METH_KEYWORDS"}
	if static {
		names = append(names, "METH_STATIC")
	}
	for _, cw := range custom {
		for _, f := range cw.Flags {
			if !contains(names, f) {
				names = append(names, f)
			}
		}
	}
	flags := make([]string, len(names))
	for i, n := range names {
		flags[i] = r.d.Flag(n)
	}
	return flags
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func (r *run) emitFunctions(ns *model.Namespace) error {
	d := r.d
	prefix := namespacePrefix(ns)
	var order []string
	groups := make(map[string][]*model.Function)
	for _, f := range ns.Functions {
		if _, ok := groups[f.HostName]; !ok {
			order = append(order, f.HostName)
		}
		groups[f.HostName] = append(groups[f.HostName], f)
	}

	var w codesink.Writer
	var table []tableEntry
	for _, hostName := range order {
		var entries []entry
		var custom []*model.CustomWrapper
		for _, f := range groups[hostName] {
			f := f
			if f.Custom != nil {
				custom = append(custom, f.Custom)
				entries = append(entries, entry{desc: f, custom: f.Custom})
				continue
			}
			entries = append(entries, entry{desc: f, gen: func(w *codesink.Writer, s wrapperSig) (overload.Shape, error) {
				return r.writeFunction(w, f, s)
			}})
		}
		gs := groupSpec{
			hostName: hostName,
			base:     "_wrap_" + prefix + "_" + hostName,
			sig: wrapperSig{
				ret:        d.Object() + " *",
				params:     d.Object() + " *dummy, " + d.Object() + " *args, " + d.Object() + " *kwargs",
				errorValue: "NULL",
			},
			callArgs: "dummy, args, kwargs",
		}
		wrapper, ok, err := r.emitGroup(&w, gs, entries)
		if err != nil {
			return err
		}
		if ok {
			table = append(table, tableEntry{name: hostName, wrapper: wrapper, flags: r.methodFlags(false, custom)})
		}
	}

	w.Blank()
	w.Linef("static %s %s_functions[] = {", d.MethodDef(), prefix)
	w.Indent()
	for _, e := range table {
		w.Linef("{(char *) %q, (%s) %s, %s, NULL },", e.name, d.Prefix+"CFunction", e.wrapper, strings.Join(e.flags, "|"))
	}
	w.Line("{NULL, NULL, 0, NULL}")
	w.Dedent()
	w.Line("};")
	r.fragment(w.String())
	return nil
}

func (r *run) writeFunction(w *codesink.Writer, f *model.Function, s wrapperSig) (overload.Shape, error) {
	if !s.overloaded {
		s.params = strings.Replace(s.params, "*dummy", "*"+r.d.Unused("dummy"), 1)
	}
	return r.writeCallable(w, callable{
		sig:    s,
		params: f.Params,
		ret:    f.Return,
		parse:  parseArgs,
		call: func(args []string) string {
			return fmt.Sprintf("%s(%s)", f.FullName(), strings.Join(args, ", "))
		},
	})
}

// moduleInit writes one init function per namespace, children first; the
// root's is the module entry point.
func (r *run) moduleInit() string {
	var w codesink.Writer
	r.writeNamespaceInit(&w, r.mod.Namespace)
	return w.String()
}

func (r *run) writeNamespaceInit(w *codesink.Writer, ns *model.Namespace) {
	d := r.d
	for _, child := range ns.Namespaces {
		r.writeNamespaceInit(w, child)
	}

	prefix := namespacePrefix(ns)
	fail := "return NULL;"
	w.Blank()
	if ns.Parent == nil {
		fail = "return;"
		w.Line(d.Flag("MODINIT_FUNC"))
		w.Linef("init%s(void)", prefix)
	} else {
		w.Linef("static %s *", d.Object())
		w.Linef("init%s(void)", prefix)
	}
	w.Line("{")
	w.Indent()
	w.Linef("%s *m;", d.Object())
	if len(ns.Namespaces) > 0 {
		w.Linef("%s *submodule;", d.Object())
	}
	w.Linef("m = %s;", d.Call("module_new", fmt.Sprintf("(char *) %q", namespaceHostName(ns)), prefix+"_functions"))
	writeFail(w, "m == NULL", fail)

	for _, child := range ns.Namespaces {
		w.Blank()
		w.Linef("submodule = init%s();", namespacePrefix(child))
		writeFail(w, "submodule == NULL", fail)
		w.Linef("%s;", d.Call("module_add_object", "m", fmt.Sprintf("(char *) %q", child.Name), "submodule"))
	}
	for _, c := range ns.Classes {
		r.writeClassRegistration(w, c, fail)
	}
	for _, e := range ns.Enums {
		r.writeEnumRegistration(w, e, "m")
	}
	if ns.Parent != nil {
		w.Line("return m;")
	}
	w.Dedent()
	w.Line("}")
}

func writeFail(w *codesink.Writer, cond, fail string) {
	w.Linef("if (%s) {", cond)
	w.Indent()
	w.Line(fail)
	w.Dedent()
	w.Line("}")
}

// writeClassRegistration readies the type object of c, exposes it in its
// namespace or outer class, then registers its nested classes and enums.
func (r *run) writeClassRegistration(w *codesink.Writer, c *model.Class, fail string) {
	if !r.emitted(c) {
		return
	}
	d := r.d
	typeObj := "&" + d.Type(c.MangledName())
	w.Blank()
	w.Linef("/* Register the '%s' class */", c.FullName())
	if c.Parent != nil {
		w.Linef("%s;", d.Call("type_set_base", typeObj, "&"+d.Type(c.Parent.MangledName())))
	}
	writeFail(w, d.Call("type_ready", typeObj), fail)
	if r.statics[c] {
		w.Linef("%s;", d.Call("type_add_static_getsets", typeObj, d.Wrapper(c.MangledName())+"__static_getsets"))
	}
	obj := fmt.Sprintf("(%s *) %s", d.Object(), typeObj)
	if c.Outer != nil {
		w.Linef("%s;", d.Call("type_add_object", "&"+d.Type(c.Outer.MangledName()), fmt.Sprintf("(char *) %q", c.Name), obj))
	} else {
		w.Linef("%s;", d.Call("module_add_object", "m", fmt.Sprintf("(char *) %q", c.Name), obj))
	}
	if root := r.reg.NarrowingRoot(c); root != nil && r.emitted(root) {
		w.Linef("%s;", d.Call("typeid_map_register",
			"&"+d.Wrapper(root.MangledName())+"__typeid_map", "typeid("+c.FullName()+").name()", typeObj))
	}
	for _, n := range c.NestedClasses {
		r.writeClassRegistration(w, n, fail)
	}
	for _, e := range c.NestedEnums {
		r.writeEnumRegistration(w, e, "")
	}
}

// writeEnumRegistration exposes each enum value as a host integer, on the
// module m, or on the outer class type when m is empty.
func (r *run) writeEnumRegistration(w *codesink.Writer, e *model.Enum, m string) {
	if r.badEnums[e] {
		return
	}
	d := r.d
	scope := e.Namespace.Scope()
	if e.Outer != nil {
		scope = e.Outer.FullName()
	}
	w.Blank()
	w.Linef("/* Register the '%s' enum */", e.FullName())
	for _, v := range e.Values {
		native := v
		if scope != "" {
			native = scope + "::" + v
		}
		name := fmt.Sprintf("(char *) %q", v)
		if m != "" {
			w.Linef("%s;", d.Call("module_add_int", m, name, native))
		} else {
			w.Linef("%s;", d.Call("type_add_int", "&"+d.Type(e.Outer.MangledName()), name, native))
		}
	}
}
