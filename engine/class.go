package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/overload"
	"github.com/rubiojr/bindgen/ownership"
	"github.com/rubiojr/bindgen/trampoline"
	"github.com/rubiojr/bindgen/typehandlers"
)

// classGen holds the names used while generating one class.
type classGen struct {
	*run
	c       *model.Class
	wrapper string // HbFoo
	typeObj string // HbFoo_Type
	prefix  string // _wrap_HbFoo
	helper  *trampoline.Helper
	log     *zap.Logger

	methods       []tableEntry
	getsets       []getset
	staticGetsets []getset
}

type getset struct {
	name, getter, setter string
}

func (r *run) emitClass(c *model.Class) error {
	d := r.d
	g := &classGen{
		run:     r,
		c:       c,
		wrapper: d.Wrapper(c.MangledName()),
		typeObj: d.Type(c.MangledName()),
		log:     r.log.With(zap.String("class", c.FullName())),
	}
	g.prefix = "_wrap_" + g.wrapper
	g.log.Debug("emitting class")

	var w codesink.Writer
	w.Linef("/* --- %s --- */", c.FullName())
	if c.AllowsSubclassing() {
		if err := g.writeHelper(&w); err != nil {
			return err
		}
	}
	if err := g.writeConstructors(&w); err != nil {
		return err
	}
	if err := g.writeMethods(&w); err != nil {
		return err
	}
	if err := g.writeAttributes(&w); err != nil {
		return err
	}
	g.writeTables(&w)
	g.writeLifecycle(&w)
	g.writeTypeObject(&w)

	r.fragment(w.String())
	r.res.states[c] = Emitted
	return nil
}

func (g *classGen) writeHelper(w *codesink.Writer) error {
	h, err := trampoline.New(g.d, g.reg).Generate(g.c)
	if err != nil {
		// The class is still wrapped, only host subclasses lose their
		// overrides.
		return g.report(g.c, err)
	}
	for _, s := range h.Skipped {
		g.log.Warn("virtual method cannot be overridden from the host",
			zap.String("method", s.Method.Name), zap.Error(s.Err))
	}
	g.helpers[g.c] = h
	g.helper = h
	w.Blank()
	h.Write(w)
	h.WriteDefinitions(w)
	h.WritePostGeneration(w)
	return nil
}

// abstract reports whether the class has pure virtual methods left
// unimplemented by its native hierarchy.
func (g *classGen) abstract() bool {
	for _, m := range trampoline.VirtualMethods(g.c) {
		if m.PureVirtual {
			return true
		}
	}
	return false
}

func (g *classGen) writeConstructors(w *codesink.Writer) error {
	name := g.prefix + "__tp_init"
	var entries []entry
	if !g.c.Singleton {
		for _, ct := range g.c.Constructors {
			if ct.Visibility == model.Private || (ct.Visibility == model.Protected && g.helper == nil) {
				continue
			}
			ct := ct
			entries = append(entries, entry{desc: ct, gen: func(w *codesink.Writer, s wrapperSig) (overload.Shape, error) {
				return g.writeConstructor(w, ct, s)
			}})
		}
	}
	gs := groupSpec{
		hostName: g.c.Name,
		base:     name,
		sig:      wrapperSig{ret: "int", params: g.wrapper + " *self, " + g.d.Object() + " *args, " + g.d.Object() + " *kwargs", errorValue: "-1"},
		callArgs: "self, args, kwargs",
	}
	_, ok, err := g.emitGroup(w, gs, entries)
	if err != nil || ok {
		return err
	}

	// No usable constructor: construction from the host raises.
	reason := "it has no public constructors"
	if g.c.Singleton {
		reason = "it is a singleton"
	} else if no, why := g.c.CannotBeConstructed(); no {
		reason = why
	}
	d := g.d
	w.Blank()
	w.Line("static int")
	w.Linef("%s(%s *%s, %s *%s, %s *%s)", name,
		g.wrapper, d.Unused("self"), d.Object(), d.Unused("args"), d.Object(), d.Unused("kwargs"))
	w.Line("{")
	w.Indent()
	w.Line(d.Raise("TypeError", fmt.Sprintf("class '%s' cannot be constructed (%s)", g.c.Name, reason)))
	w.Line("return -1;")
	w.Dedent()
	w.Line("}")
	return nil
}

func (g *classGen) writeConstructor(w *codesink.Writer, ct *model.Constructor, s wrapperSig) (overload.Shape, error) {
	c := g.c
	if no, reason := c.CannotBeConstructed(); no {
		return overload.Shape{}, binderr.Generationf("%s: class cannot be constructed (%s)", ct.Describe(), reason)
	}
	abstract := g.abstract()
	if abstract && g.helper == nil {
		return overload.Shape{}, binderr.Generationf("%s: class %s is abstract and allows no subclassing",
			ct.Describe(), c.FullName())
	}
	d := g.d
	errRet := s.errorReturn(d)
	construct := func(ctx *typehandlers.Context, body *codesink.CodeBlock) error {
		args := strings.Join(ctx.CallParams, ", ")
		if g.helper == nil {
			body.WriteCode(nativeConstruction(c, args))
			body.WriteCode(fmt.Sprintf("self->flags = %s;", d.Flag("WRAPPER_FLAG_NONE")))
			return nil
		}

		body.WriteCode(fmt.Sprintf("if (%s != &%s) {", d.Call("object_type", "("+d.Object()+" *) self"), g.typeObj))
		sub := codesink.NewCodeBlock(errRet, body)
		g.helper.WriteOverrideChecks(sub, "self")
		hname := g.helper.Name()
		sub.WriteCode(fmt.Sprintf("%s *helper = new %s(%s);", hname, hname, args))
		sub.WriteCode("helper->set_hbself((" + d.Object() + " *) self);")
		sub.WriteCode("self->obj = helper;")
		indent(body, sub.Lines())
		body.WriteCode("} else {")
		native := codesink.NewCodeBlock(errRet, body)
		switch {
		case ct.Visibility == model.Protected:
			native.WriteErrorExit(d.Raise("TypeError", fmt.Sprintf("class '%s' can only be constructed by host subclasses", c.Name)))
		case abstract:
			native.WriteErrorExit(d.Raise("TypeError", fmt.Sprintf("class '%s' has pure virtual methods and cannot be constructed directly", c.Name)))
		default:
			native.WriteCode(nativeConstruction(c, args))
		}
		indent(body, native.Lines())
		body.WriteCode("}")
		body.WriteCode(fmt.Sprintf("self->flags = %s;", d.Flag("WRAPPER_FLAG_NONE")))
		return nil
	}
	return g.writeCallable(w, callable{
		sig:       s,
		params:    ct.Params,
		hasSelf:   true,
		parse:     parseArgs,
		construct: construct,
	})
}

// nativeConstruction renders the creation of a native instance into
// self->obj.
func nativeConstruction(c *model.Class, args string) string {
	if c.InstanceCreator != "" {
		return fmt.Sprintf(c.InstanceCreator, "self->obj", c.FullName(), args)
	}
	return fmt.Sprintf("self->obj = new %s(%s);", c.FullName(), args)
}

func indent(b *codesink.CodeBlock, lines []string) {
	for _, l := range lines {
		b.WriteCode("    " + l)
	}
}

func (g *classGen) writeMethods(w *codesink.Writer) error {
	var order []string
	groups := make(map[string][]*model.Method)
	for _, m := range g.c.Methods {
		if m.Visibility != model.Public {
			continue
		}
		if _, ok := groups[m.HostName]; !ok {
			order = append(order, m.HostName)
		}
		groups[m.HostName] = append(groups[m.HostName], m)
	}

	d := g.d
	for _, hostName := range order {
		var entries []entry
		static := false
		var custom []*model.CustomWrapper
		for _, m := range groups[hostName] {
			m := m
			static = static || m.Static
			if m.Custom != nil {
				custom = append(custom, m.Custom)
				entries = append(entries, entry{desc: m, custom: m.Custom})
				continue
			}
			entries = append(entries, entry{desc: m, gen: func(w *codesink.Writer, s wrapperSig) (overload.Shape, error) {
				return g.writeMethod(w, m, s)
			}})
		}
		gs := groupSpec{
			hostName: hostName,
			base:     g.prefix + "_" + hostName,
			sig:      wrapperSig{ret: d.Object() + " *", params: g.wrapper + " *self, " + d.Object() + " *args, " + d.Object() + " *kwargs", errorValue: "NULL"},
			callArgs: "self, args, kwargs",
		}
		wrapper, ok, err := g.emitGroup(w, gs, entries)
		if err != nil {
			return err
		}
		if ok {
			g.methods = append(g.methods, tableEntry{name: hostName, wrapper: wrapper, flags: g.methodFlags(static, custom)})
		}
	}
	return nil
}

func (g *classGen) writeMethod(w *codesink.Writer, m *model.Method, s wrapperSig) (overload.Shape, error) {
	d := g.d
	c := g.c
	params := m.Params
	var selfArg string
	if m.Function {
		if len(params) == 0 {
			return overload.Shape{}, binderr.Configf("%s: a function exposed as a method needs the instance as first parameter", m.Describe())
		}
		first := params[0]
		if first.TypeErr != nil {
			return overload.Shape{}, binderr.Configf("%s: parameter %s: %v", m.Describe(), first.Name, first.TypeErr)
		}
		selfArg = "*self->obj"
		if first.Type.IsPointer() {
			selfArg = "self->obj"
		}
		params = params[1:]
	}
	if m.Static {
		// Static wrappers receive the type object, not an instance.
		s.params = strings.Replace(s.params, "*self", "*"+d.Unused("dummy"), 1)
	}

	cl := callable{
		sig:     s,
		params:  params,
		ret:     m.Return,
		hasSelf: !m.Static,
		parse:   parseArgs,
	}
	upcall := g.helper != nil && g.helper.HasUpcall(m)
	if upcall {
		hname := g.helper.Name()
		cl.prelude = []string{fmt.Sprintf("%s *helper_class = dynamic_cast<%s*> (self->obj);", hname, hname)}
	}
	cl.call = func(args []string) string {
		a := strings.Join(args, ", ")
		switch {
		case m.Function:
			return fmt.Sprintf("%s(%s)", m.Name, strings.Join(append([]string{selfArg}, args...), ", "))
		case m.Static:
			return fmt.Sprintf("%s::%s(%s)", c.FullName(), m.Name, a)
		case upcall:
			return fmt.Sprintf("(helper_class == NULL) ? (self->obj->%s(%s)) : (helper_class->%s(%s))",
				m.Name, a, trampoline.ParentCallerName(m), a)
		}
		return fmt.Sprintf("self->obj->%s(%s)", m.Name, a)
	}
	return g.writeCallable(w, cl)
}

func (g *classGen) writeAttributes(w *codesink.Writer) error {
	for _, a := range g.c.Attributes {
		gs, err := g.writeAttribute(w, a)
		if err != nil {
			if err := g.report(a, err); err != nil {
				return err
			}
			continue
		}
		if a.Static {
			g.staticGetsets = append(g.staticGetsets, gs)
		} else {
			g.getsets = append(g.getsets, gs)
		}
	}
	return nil
}

// writeAttribute writes the getter and, unless read only, the setter of a.
// Nothing is written when either fails.
func (g *classGen) writeAttribute(w *codesink.Writer, a *model.Attribute) (getset, error) {
	d := g.d
	c := g.c
	gs := getset{name: a.Name, getter: g.prefix + "__get_" + a.Name}
	owner := "self->obj->"
	if a.Static {
		owner = c.FullName() + "::"
	}
	selfParam := g.wrapper + " *self"
	if a.Static {
		selfParam = g.wrapper + " *" + d.Unused("self")
	}

	ret := a.Type
	if ret.TypeErr == nil && ret.Type.IsPointer() && ret.Ownership.CallerOwnsReturn == nil {
		// The instance keeps owning the object its field points to.
		cp := *ret
		no := false
		cp.Ownership.CallerOwnsReturn = &no
		ret = &cp
	}

	var out codesink.Writer
	out.Blank()
	_, err := g.writeCallable(&out, callable{
		sig: wrapperSig{
			name:       gs.getter,
			ret:        d.Object() + " *",
			params:     selfParam + ", void *" + d.Unused("closure"),
			errorValue: "NULL",
		},
		ret:     ret,
		hasSelf: !a.Static,
		parse:   parseNone,
		call: func([]string) string {
			if a.Getter != "" {
				return owner + a.Getter + "()"
			}
			return owner + a.Name
		},
	})
	if err != nil {
		return gs, fmt.Errorf("getter: %w", err)
	}

	if !a.ReadOnly {
		gs.setter = g.prefix + "__set_" + a.Name
		p := &model.Parameter{Name: "value", TypeText: a.Type.TypeText, Type: a.Type.Type, TypeErr: a.Type.TypeErr}
		if a.Type.TypeErr == nil && a.Type.Type.IsPointer() {
			// The stored pointer lives as long as the instance holding it.
			no := false
			p.Ownership.TransferOwnership = &no
			if !a.Static {
				self := 0
				p.Ownership.Custodian = &self
			}
		}
		out.Blank()
		_, err = g.writeCallable(&out, callable{
			sig: wrapperSig{
				name:       gs.setter,
				ret:        "int",
				params:     selfParam + ", " + d.Object() + " *value, void *" + d.Unused("closure"),
				errorValue: "-1",
			},
			params:  []*model.Parameter{p},
			hasSelf: !a.Static,
			parse:   parseValue,
			call: func(args []string) string {
				if a.Setter != "" {
					return owner + a.Setter + "(" + args[0] + ")"
				}
				return owner + a.Name + " = " + args[0]
			},
		})
		if err != nil {
			return gs, fmt.Errorf("setter: %w", err)
		}
		g.res.Wrappers++
	}
	g.res.Wrappers++
	w.Raw(out.String())
	return gs, nil
}

func (g *classGen) writeTables(w *codesink.Writer) {
	d := g.d
	w.Blank()
	w.Linef("static %s %s_methods[] = {", d.MethodDef(), g.wrapper)
	w.Indent()
	for _, e := range g.methods {
		w.Linef("{(char *) %q, (%s) %s, %s, NULL },", e.name, d.Prefix+"CFunction", e.wrapper, strings.Join(e.flags, "|"))
	}
	w.Line("{NULL, NULL, 0, NULL}")
	w.Dedent()
	w.Line("};")

	writeGetsets := func(name string, list []getset) {
		w.Blank()
		w.Linef("static %s %s[] = {", d.GetSetDef(), name)
		w.Indent()
		for _, gs := range list {
			setter := "NULL"
			if gs.setter != "" {
				setter = "(" + d.Fn("setter") + ") " + gs.setter
			}
			w.Linef("{(char *) %q, (%s) %s, %s, NULL, NULL },", gs.name, d.Fn("getter"), gs.getter, setter)
		}
		w.Line("{ NULL, NULL, NULL, NULL, NULL }")
		w.Dedent()
		w.Line("};")
	}
	writeGetsets(g.wrapper+"__getsets", g.getsets)
	if len(g.staticGetsets) > 0 {
		writeGetsets(g.wrapper+"__static_getsets", g.staticGetsets)
		g.statics[g.c] = true
	}
}

// writeLifecycle writes the finalizer and, for classes with a helper, the
// hooks letting the host collect the helper/wrapper reference cycle.
func (g *classGen) writeLifecycle(w *codesink.Writer) {
	d := g.d
	if g.helper != nil {
		hname := g.helper.Name()
		w.Blank()
		w.Line("static int")
		w.Linef("%s__tp_traverse(%s *self, %s visit, void *arg)", g.prefix, g.wrapper, d.Fn("visitproc"))
		w.Line("{")
		w.Indent()
		w.Linef("%s *helper = dynamic_cast<%s*> (self->obj);", hname, hname)
		w.Linef("if (helper && helper->%s) {", trampoline.SelfField)
		w.Indent()
		w.Linef("int ret = visit(helper->%s, arg);", trampoline.SelfField)
		w.Line("if (ret) {")
		w.Indent()
		w.Line("return ret;")
		w.Dedent()
		w.Line("}")
		w.Dedent()
		w.Line("}")
		w.Line("return 0;")
		w.Dedent()
		w.Line("}")

		w.Blank()
		w.Line("static int")
		w.Linef("%s__tp_clear(%s *self)", g.prefix, g.wrapper)
		w.Line("{")
		w.Indent()
		w.Linef("%s *helper = dynamic_cast<%s*> (self->obj);", hname, hname)
		w.Line("if (helper) {")
		w.Indent()
		w.Linef("%s *tmp = helper->%s;", d.Object(), trampoline.SelfField)
		w.Linef("helper->%s = NULL;", trampoline.SelfField)
		w.Linef("%s;", d.Call("xdecref", "tmp"))
		w.Dedent()
		w.Line("}")
		w.Line("return 0;")
		w.Dedent()
		w.Line("}")
	}

	w.Blank()
	w.Line("static void")
	w.Linef("%s__tp_dealloc(%s *self)", g.prefix, g.wrapper)
	w.Line("{")
	w.Indent()
	w.Linef("%s;", d.Call("clear_wards", "("+d.Object()+" *) self"))
	w.Lines(ownership.FinalizeCode(d, g.c, "self"))
	w.Linef("%s;", d.Call("object_free", "("+d.Object()+" *) self"))
	w.Dedent()
	w.Line("}")
}

func (g *classGen) writeTypeObject(w *codesink.Writer) {
	d := g.d
	flags := []string{d.Flag("TPFLAGS_DEFAULT")}
	if g.c.AllowsSubclassing() {
		flags = append(flags, d.Flag("TPFLAGS_BASETYPE"))
	}
	traverse, clear := "NULL", "NULL"
	if g.helper != nil {
		flags = append(flags, d.Flag("TPFLAGS_HAVE_GC"))
		traverse = "(" + d.Fn("traverseproc") + ") " + g.prefix + "__tp_traverse"
		clear = "(" + d.Fn("inquiry") + ") " + g.prefix + "__tp_clear"
	}
	fields := [][2]string{
		{fmt.Sprintf("(char *) %q", g.hostName(g.c)), "tp_name"},
		{"sizeof(" + g.wrapper + ")", "tp_basicsize"},
		{"(" + d.Fn("destructor") + ") " + g.prefix + "__tp_dealloc", "tp_dealloc"},
		{"(" + d.Fn("initproc") + ") " + g.prefix + "__tp_init", "tp_init"},
		{traverse, "tp_traverse"},
		{clear, "tp_clear"},
		{g.wrapper + "_methods", "tp_methods"},
		{g.wrapper + "__getsets", "tp_getset"},
		{strings.Join(flags, "|"), "tp_flags"},
	}
	w.Blank()
	w.Linef("%s %s = {", d.TypeObject(), g.typeObj)
	w.Indent()
	for _, f := range fields {
		w.Linef("%s, /* %s */", f[0], f[1])
	}
	w.Dedent()
	w.Line("};")
}
