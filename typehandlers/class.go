package typehandlers

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/hostapi"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/overload"
)

type classBase struct {
	c *model.Class
}

func (h classBase) Class() *model.Class { return h.c }

func (h classBase) wrapper(ctx *Context) string {
	return ctx.Dialect.Wrapper(h.c.MangledName())
}

func (h classBase) typeObject(ctx *Context) string {
	return ctx.Dialect.Type(h.c.MangledName())
}

// typeCheck renders a host type test of obj against class c.
func typeCheck(ctx *Context, obj string, c *model.Class) string {
	return ctx.Dialect.Call("object_type_check", obj, "&"+ctx.Dialect.Type(c.MangledName()))
}

// newWrapper renders the allocation of a wrapper of c with the given
// type object expression.
func newWrapper(ctx *Context, c *model.Class, typeExpr string) string {
	return ctx.Dialect.Call("object_new", ctx.Dialect.Wrapper(c.MangledName()), typeExpr)
}

// checkCopyable fails lazily for classes the glue may not construct.
func checkCopyable(c *model.Class) error {
	if no, reason := c.CannotBeConstructed(); no {
		return binderr.Generationf("%s cannot be constructed (%s)", c.FullName(), reason)
	}
	return nil
}

// wrapCopy writes code wrapping a copy of native value expr into a new
// host wrapper owning it, and returns the wrapper variable.
func (h classBase) wrapCopy(ctx *Context, v *Value, block blockWriter) (string, error) {
	if err := checkCopyable(h.c); err != nil {
		return "", err
	}
	host := ctx.Decls.DeclareVariable(h.wrapper(ctx)+" *", hostName(v), "", "")
	block.WriteCode(fmt.Sprintf("%s = %s;", host, newWrapper(ctx, h.c, "&"+h.typeObject(ctx))))
	lines, err := ctx.ownershipCode(v, v.Ownership.Actions(), host, v.expr(), "")
	if err != nil {
		return "", err
	}
	for _, l := range lines {
		block.WriteCode(l)
	}
	return host, nil
}

type blockWriter interface {
	WriteCode(code string)
}

// classValue handles class instances passed or returned by value or by
// const reference. Parameters accept the class, its subclasses and the
// classes implicitly converting to it.
type classValue struct {
	classBase
	reg *Registry
}

func (h classValue) Accepts() overload.Param {
	classes := append([]*model.Class{h.c}, h.reg.ConversionsTo(h.c)...)
	return overload.Param{Kind: overload.Instance, Classes: classes}
}

func (h classValue) ConvertHostToC(ctx *Context, v *Value) error {
	if ctx.Reverse {
		host := ctx.Decls.DeclareVariable(h.wrapper(ctx)+" *", "host_retval", "", "")
		ctx.Parse.Add("O!", "&"+h.typeObject(ctx), "&"+host)
		ctx.ReturnExpr = "*" + host + "->obj"
		return nil
	}
	d := ctx.Dialect
	init := ""
	if v.Default != "" {
		init = "NULL"
	}
	sources := ctx.Registry.ConversionsTo(h.c)
	if len(sources) == 0 {
		host := ctx.Decls.DeclareVariable(h.wrapper(ctx)+" *", hostName(v), init, "")
		ctx.Parse.AddKeyword(v.Name, "O!", v.Default != "", "&"+h.typeObject(ctx), "&"+host)
		ctx.SetHostVar(v.Index, host)
		expr := "*" + host + "->obj"
		if v.Default != "" {
			expr = host + " ? " + expr + " : " + v.Default
		}
		ctx.AddCallParam(v, expr)
		return nil
	}

	// Implicit conversions: accept any host object, then test the declared
	// class first and each source class in declaration order.
	host := ctx.Decls.DeclareVariable(d.Object()+" *", hostName(v), init, "")
	ctx.Parse.AddKeyword(v.Name, "O", v.Default != "", "&"+host)
	ctx.SetHostVar(v.Index, host)
	full := h.c.FullName()
	conds := []string{"!" + typeCheck(ctx, host, h.c)}
	for _, s := range sources {
		conds = append(conds, "!"+typeCheck(ctx, host, s))
	}
	cond := joinAnd(conds)
	if v.Default != "" {
		cond = host + " && " + cond
	}
	ctx.raise(ctx.Before, cond, fmt.Sprintf("parameter %s must be %s or convertible to it", v.Name, full))

	last := sources[len(sources)-1]
	expr := fmt.Sprintf("%s(*((%s *) %s)->obj)", full, d.Wrapper(last.MangledName()), host)
	for i := len(sources) - 2; i >= 0; i-- {
		s := sources[i]
		expr = fmt.Sprintf("(%s ? %s(*((%s *) %s)->obj) : %s)",
			typeCheck(ctx, host, s), full, d.Wrapper(s.MangledName()), host, expr)
	}
	expr = fmt.Sprintf("(%s ? *((%s *) %s)->obj : %s)", typeCheck(ctx, host, h.c), h.wrapper(ctx), host, expr)
	if v.Default != "" {
		expr = host + " ? " + expr + " : " + v.Default
	}
	ctx.AddCallParam(v, expr)
	return nil
}

func (h classValue) ConvertCToHost(ctx *Context, v *Value) error {
	var block blockWriter = ctx.After
	if ctx.Reverse {
		block = ctx.Before
	}
	host, err := h.wrapCopy(ctx, v, block)
	if err != nil {
		return err
	}
	if v.Role == Return {
		ctx.ReturnHost = host
	}
	ctx.Build.Add("N", "("+ctx.Dialect.Object()+" *) "+host)
	return nil
}

// classRef handles non-const references, which may be out parameters.
type classRef struct{ classBase }

func (h classRef) Accepts() overload.Param {
	return overload.Param{Kind: overload.Instance, Classes: []*model.Class{h.c}}
}

func (h classRef) ConvertHostToC(ctx *Context, v *Value) error {
	if ctx.Reverse {
		return classValue{classBase: h.classBase, reg: ctx.Registry}.ConvertHostToC(ctx, v)
	}
	host := ctx.Decls.DeclareVariable(h.wrapper(ctx)+" *", hostName(v), "", "")
	if v.Direction == model.Out {
		if err := checkCopyable(h.c); err != nil {
			return err
		}
		ctx.Before.WriteCode(fmt.Sprintf("%s = %s;", host, newWrapper(ctx, h.c, "&"+h.typeObject(ctx))))
		ctx.Before.WriteCode(fmt.Sprintf("%s->obj = new %s();", host, h.c.FullName()))
		ctx.Before.WriteCode(fmt.Sprintf("%s->flags = %s;", host, ctx.Dialect.Flag("WRAPPER_FLAG_NONE")))
		ctx.AddCallParam(v, "*"+host+"->obj")
		ctx.Build.Add("N", "("+ctx.Dialect.Object()+" *) "+host)
		return nil
	}
	ctx.Parse.AddKeyword(v.Name, "O!", false, "&"+h.typeObject(ctx), "&"+host)
	ctx.SetHostVar(v.Index, host)
	ctx.AddCallParam(v, "*"+host+"->obj")
	if v.Direction == model.InOut {
		ctx.Build.Add("O", "("+ctx.Dialect.Object()+" *) "+host)
	}
	return nil
}

func (h classRef) ConvertCToHost(ctx *Context, v *Value) error {
	return classValue{classBase: h.classBase, reg: ctx.Registry}.ConvertCToHost(ctx, v)
}

// classPtr handles pointers to class instances. Ownership is resolved per
// value; pointer returns of narrowing classes wrap the most derived
// registered class of the object.
type classPtr struct{ classBase }

func (h classPtr) Accepts() overload.Param {
	return overload.Param{Kind: overload.Instance, Classes: []*model.Class{h.c}}
}

func (h classPtr) ConvertHostToC(ctx *Context, v *Value) error {
	d := ctx.Dialect
	full := h.c.FullName()
	if ctx.Reverse {
		host := ctx.Decls.DeclareVariable(h.wrapper(ctx)+" *", "host_retval", "", "")
		ctx.Parse.Add("O!", "&"+h.typeObject(ctx), "&"+host)
		retval := ctx.Decls.DeclareVariable(full+" *", "retval", "", "")
		ctx.After.WriteCode(fmt.Sprintf("%s = %s->obj;", retval, host))
		lines, err := ctx.ownershipCode(v, v.Ownership.Actions(), host, retval, "")
		if err != nil {
			return err
		}
		for _, l := range lines {
			ctx.After.WriteCode(l)
		}
		ctx.ReturnExpr = retval
		return nil
	}

	optional := v.Default != ""
	var host, native, wrapperExpr, guard string
	if v.NullOK {
		host = ctx.Decls.DeclareVariable(d.Object()+" *", hostName(v), "NULL", "")
		ctx.Parse.AddKeyword(v.Name, "O", optional, "&"+host)
		notNone := fmt.Sprintf("%s && !%s", host, d.Call("is_none", host))
		ctx.raise(ctx.Before, notNone+" && !"+typeCheck(ctx, host, h.c),
			fmt.Sprintf("parameter %s must be %s or None", v.Name, full))
		wrapperExpr = fmt.Sprintf("((%s *) %s)", h.wrapper(ctx), host)
		guard = "(" + notNone + ")"
		fallback := "NULL"
		if optional {
			fallback = v.Default
		}
		native = fmt.Sprintf("(%s ? %s->obj : %s)", guard, wrapperExpr, fallback)
		ctx.SetHostVar(v.Index, host)
	} else {
		init := ""
		if optional {
			init = "NULL"
		}
		host = ctx.Decls.DeclareVariable(h.wrapper(ctx)+" *", hostName(v), init, "")
		ctx.Parse.AddKeyword(v.Name, "O!", optional, "&"+h.typeObject(ctx), "&"+host)
		wrapperExpr = host
		native = host + "->obj"
		if optional {
			guard = host
			native = fmt.Sprintf("(%s ? %s->obj : %s)", host, host, v.Default)
		}
		ctx.SetHostVar(v.Index, host)
	}

	enter, err := ctx.ownershipCode(v, v.Ownership.OnEnter, wrapperExpr, wrapperExpr+"->obj", guard)
	if err != nil {
		return err
	}
	writeGuarded(ctx.Before, guard, enter)
	ctx.AddCallParam(v, native)
	exit, err := ctx.ownershipCode(v, v.Ownership.OnExit, wrapperExpr, wrapperExpr+"->obj", guard)
	if err != nil {
		return err
	}
	writeGuarded(ctx.After, guard, exit)
	return nil
}

func (h classPtr) ConvertCToHost(ctx *Context, v *Value) error {
	d := ctx.Dialect
	native := v.expr()
	host := ctx.Decls.DeclareVariable(h.wrapper(ctx)+" *", hostName(v), "NULL", "")
	block := ctx.After
	if ctx.Reverse {
		block = ctx.Before
	}

	var lines []string
	typeExpr := "&" + h.typeObject(ctx)
	if root := ctx.Registry.NarrowingRoot(h.c); root != nil {
		wt := ctx.Decls.DeclareVariable(d.TypeObject()+" *", "wrapper_type", "", "")
		lines = append(lines, fmt.Sprintf("%s = %s;", wt,
			d.Call("typeid_map_lookup", "&"+TypeIDMap(d, root), "typeid(*("+native+")).name()", typeExpr)))
		typeExpr = wt
	}
	obj := native
	if v.Type.Const {
		obj = fmt.Sprintf("const_cast<%s *>(%s)", h.c.FullName(), native)
	}

	lines = append(lines,
		fmt.Sprintf("%s = %s;", host, newWrapper(ctx, h.c, typeExpr)),
		fmt.Sprintf("%s->obj = %s;", host, obj))
	hostObj := fmt.Sprintf("%s ? (%s *) %s : %s", host, d.Object(), host, d.Call("none"))
	if ctx.Reverse {
		enter, err := ctx.ownershipCode(v, v.Ownership.OnEnter, host, host+"->obj", host)
		if err != nil {
			return err
		}
		writeGuarded(block, native, append(lines, enter...))
		exit, err := ctx.ownershipCode(v, v.Ownership.OnExit, host, host+"->obj", host)
		if err != nil {
			return err
		}
		// "O" keeps a reference in the downcall so the exit actions never
		// touch a wrapper the argument tuple already released. The release
		// runs on every exit of the downcall once the wrapper exists.
		release := append(guarded(host, exit), d.Call("xdecref", "("+d.Object()+" *) "+host)+";")
		ctx.Before.AddCleanupCode(strings.Join(release, "\n"))
		ctx.Build.Add("O", hostObj)
		return nil
	}

	acts, err := ctx.ownershipCode(v, v.Ownership.Actions(), host, host+"->obj", host)
	if err != nil {
		return err
	}
	if v.Role == Return {
		ctx.ReturnHost = host
	}
	writeGuarded(block, native, append(lines, acts...))
	ctx.Build.Add("N", hostObj)
	return nil
}

// TypeIDMap names the typeid map of a narrowing root class.
func TypeIDMap(d *hostapi.Dialect, root *model.Class) string {
	return d.Wrapper(root.MangledName()) + "__typeid_map"
}

func joinAnd(conds []string) string {
	s := conds[0]
	for _, c := range conds[1:] {
		s += " && " + c
	}
	return s
}
