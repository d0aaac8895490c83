package engine

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/ctype"
	"github.com/rubiojr/bindgen/hostapi"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/overload"
	"github.com/rubiojr/bindgen/ownership"
	"github.com/rubiojr/bindgen/typehandlers"
)

// parseMode selects how a wrapper receives its host arguments.
type parseMode int

const (
	parseArgs  parseMode = iota // args and kwargs
	parseValue                  // a single value, for setters
	parseNone                   // nothing, for getters
)

// reserved are the names wrapper signatures and bodies use themselves.
var reserved = []string{
	"self", "args", "kwargs", "value", "closure", "dummy", "return_exception",
	"keywords", "host_result", "helper_class", "helper",
}

// wrapperSig is the C signature of one generated wrapper.
type wrapperSig struct {
	name string
	// ret is "HbObject *" for value returning wrappers, "int" for status
	// returning ones.
	ret        string
	params     string
	errorValue string
	// overloaded wrappers take part in dispatch and report parse errors
	// through return_exception.
	overloaded bool
}

func (s wrapperSig) errorReturn(d *hostapi.Dialect) []string {
	var lines []string
	if s.overloaded {
		lines = append(lines, d.Call("fetch_error", "return_exception")+";")
	}
	return append(lines, "return "+s.errorValue+";")
}

func (s wrapperSig) writeHeader(w *codesink.Writer, d *hostapi.Dialect) {
	w.Line("static " + s.ret)
	params := s.params
	if s.overloaded {
		params = fmt.Sprintf("%s, %s **return_exception", params, d.Object())
	}
	w.Linef("%s(%s)", s.name, params)
}

// callable describes one forward wrapper: host calls native.
type callable struct {
	sig    wrapperSig
	params []*model.Parameter
	// ret is nil for status returning wrappers (constructors, setters).
	ret     *model.ReturnValue
	hasSelf bool
	parse   parseMode
	// prelude lines are written after the arguments are parsed.
	prelude []string
	// call renders the native call for the converted arguments.
	call func(args []string) string
	// construct, when set, writes the body of a constructor instead of
	// a call.
	construct func(ctx *typehandlers.Context, body *codesink.CodeBlock) error
}

func (r *run) newContext(errorReturn []string, hasSelf bool) *typehandlers.Context {
	ctx := typehandlers.NewContext(r.d, r.reg, errorReturn, false)
	for _, name := range reserved {
		ctx.Decls.Reserve(name)
	}
	if hasSelf {
		ctx.Self = "self"
	}
	return ctx
}

func (r *run) scope(hasSelf bool, params []*model.Parameter, ret *model.ReturnValue) ownership.CustodianScope {
	return ownership.CustodianScope{HasSelf: hasSelf, Params: params, IsInstance: r.reg.IsInstance, Return: ret}
}

// convertParams binds and converts every parameter, returning the call
// shape used for overload checks.
func (r *run) convertParams(ctx *typehandlers.Context, params []*model.Parameter, scope ownership.CustodianScope) (overload.Shape, error) {
	var shape overload.Shape
	for i, p := range params {
		if cust := p.Ownership.Custodian; cust != nil {
			if err := ownership.ValidateCustodian(*cust, i+1, scope); err != nil {
				return shape, fmt.Errorf("parameter %s: %w", p.Name, err)
			}
		}
		b, v, err := r.reg.BindParam(p, i+1, false)
		if err != nil {
			return shape, err
		}
		if err := b.Handler.ConvertHostToC(ctx, v); err != nil {
			return shape, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		if p.Direction == model.Out {
			continue
		}
		acc := b.Handler.Accepts()
		acc.Optional = p.Default != ""
		acc.NullOK = p.NullOK
		shape.Params = append(shape.Params, acc)
	}
	return shape, nil
}

// convertReturn writes the native call into body and converts its result.
func (r *run) convertReturn(ctx *typehandlers.Context, c callable, body *codesink.CodeBlock) error {
	call := c.call(ctx.CallParams)
	if c.ret == nil || c.ret.IsVoid() {
		body.WriteCode(call + ";")
		return nil
	}
	if cust := c.ret.Ownership.Custodian; cust != nil {
		if err := ownership.ValidateCustodian(*cust, -1, r.scope(c.hasSelf, c.params, c.ret)); err != nil {
			return fmt.Errorf("return value: %w", err)
		}
	}
	b, v, err := r.reg.BindReturn(c.ret, "retval", false)
	if err != nil {
		return fmt.Errorf("return value: %w", err)
	}
	if b.Class != nil && b.Transform == nil && !b.Type.IsPointer() {
		// Class values are copied straight out of the call, so the class
		// needs no default constructor.
		v.Expr = call
	} else {
		retval := ctx.Decls.DeclareVariable(declType(c.ret.Type), "retval", "", "")
		v.Name = retval
		body.WriteCode(retval + " = " + call + ";")
		if b.Transform != nil {
			v.Expr = b.Transform.Untransform(ctx.Decls, ctx.After, v.Type, retval)
		}
	}
	if err := b.Handler.ConvertCToHost(ctx, v); err != nil {
		return fmt.Errorf("return value: %w", err)
	}
	return nil
}

// declType spells the type of a local holding a returned value.
func declType(s ctype.Signature) string {
	s = s.WithoutReference()
	if s.IsValue() {
		s = s.WithoutConst()
	}
	str := s.String()
	head := strings.TrimRight(str, "*")
	if head == str {
		return str
	}
	return head + " " + str[len(head):]
}

// writeCallable generates the wrapper described by c.
func (r *run) writeCallable(w *codesink.Writer, c callable) (overload.Shape, error) {
	d := r.d
	errRet := c.sig.errorReturn(d)
	ctx := r.newContext(errRet, c.hasSelf)
	shape, err := r.convertParams(ctx, c.params, r.scope(c.hasSelf, c.params, c.ret))
	if err != nil {
		return shape, err
	}

	// The return value is converted in blocks of its own: its result comes
	// first in the built value, and its code runs before the parameters'
	// exit actions.
	paramExit, paramBuild := ctx.After, ctx.Build
	ctx.After = codesink.NewCodeBlock(errRet, ctx.Before)
	ctx.Build = &typehandlers.ArgList{}
	body := codesink.NewCodeBlock(errRet, ctx.Before)
	if c.construct != nil {
		err = c.construct(ctx, body)
	} else {
		err = r.convertReturn(ctx, c, body)
	}
	if err != nil {
		return shape, err
	}
	if err := ctx.FlushWards(); err != nil {
		return shape, err
	}

	c.sig.writeHeader(w, d)
	w.Line("{")
	w.Indent()
	if c.ret != nil {
		w.Linef("%s *host_result;", d.Object())
	}
	w.Lines(ctx.Decls.Lines())
	switch c.parse {
	case parseArgs:
		var kws []string
		for _, k := range ctx.Parse.Keywords() {
			kws = append(kws, fmt.Sprintf("%q", k))
		}
		w.Linef("const char *keywords[] = {%s};", strings.Join(append(kws, "NULL"), ", "))
		w.Blank()
		cond := d.Call("parse_args", append([]string{"args", "kwargs",
			fmt.Sprintf("(char *) %q", ctx.Parse.Format()), "(char **) keywords"}, ctx.Parse.Args()...)...)
		writeCheck(w, "!"+cond, errRet)
	case parseValue:
		w.Blank()
		cond := d.Call("parse_value", append([]string{"value",
			fmt.Sprintf("(char *) %q", ctx.Parse.Format())}, ctx.Parse.Args()...)...)
		writeCheck(w, "!"+cond, errRet)
	default:
		w.Blank()
	}
	w.Lines(c.prelude)
	ctx.Before.Flush(w)
	body.Flush(w)
	ctx.After.Flush(w)
	paramExit.Flush(w)
	ctx.Final.Flush(w)
	if c.ret == nil {
		w.Line("return 0;")
	} else {
		items := append(ctx.Build.Items, paramBuild.Items...)
		w.Linef("host_result = %s;", buildValue(d, items))
		w.Line("return host_result;")
	}
	w.Dedent()
	w.Line("}")
	return shape, nil
}

func writeCheck(w *codesink.Writer, cond string, failure []string) {
	b := codesink.NewCodeBlock(failure, nil)
	b.WriteErrorCheck(cond)
	b.Flush(w)
}

// buildValue renders the host value built from items: None when empty, a
// tuple when more than one.
func buildValue(d *hostapi.Dialect, items []typehandlers.ArgItem) string {
	list := &typehandlers.ArgList{Items: items}
	format := list.Format()
	if len(items) > 1 {
		format = "(" + format + ")"
	}
	return d.Call("build_value", append([]string{fmt.Sprintf("(char *) %q", format)}, list.Args()...)...)
}
