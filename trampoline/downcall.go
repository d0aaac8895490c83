package trampoline

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/typehandlers"
)

// fallback returns the code run when the host does not override m, or the
// override failed: the native implementation, or a fatal error for pure
// virtuals, which have none.
func fallback(h *Helper, m *model.Method, sig signature) []string {
	if m.PureVirtual {
		msg := fmt.Sprintf("pure virtual method %s::%s called without a host override", h.Class.FullName(), m.Name)
		return []string{h.d.Call("fatal_error", fmt.Sprintf("%q", msg)) + ";"}
	}
	call := fmt.Sprintf("%s::%s(%s);", h.Class.FullName(), m.Name, sig.args)
	if m.Return.IsVoid() {
		return []string{call, "return;"}
	}
	return []string{"return " + call}
}

// downcall renders the out-of-class definition of the override of m.
// Parameters are converted native to host and the result host to native,
// with the same handlers forward wrappers use.
func (g *Generator) downcall(h *Helper, m *model.Method, sig signature) (string, error) {
	d := g.Dialect
	fb := fallback(h, m, sig)
	errorReturn := append([]string{d.Call("error_print") + ";"}, fb...)
	ctx := typehandlers.NewContext(d, g.Registry, errorReturn, true)
	ctx.Self = SelfField

	for _, p := range m.Params {
		ctx.Decls.Reserve(p.Name)
	}
	method := ctx.Decls.DeclareVariable(d.Object()+" *", "host_method", "", "")
	result := ctx.Decls.DeclareVariable(d.Object()+" *", "host_result", "", "")
	ctx.Before.AddCleanupCode(d.Call("decref", method) + ";")
	ctx.After.AddCleanupCode(d.Call("decref", result) + ";")

	for i, p := range m.Params {
		b, v, err := g.Registry.BindParam(p, i+1, true)
		if err != nil {
			return "", err
		}
		if b.Transform != nil {
			v.Expr = b.Transform.Untransform(ctx.Decls, ctx.Before, v.Type, p.Name)
		}
		if err := b.Handler.ConvertCToHost(ctx, v); err != nil {
			return "", err
		}
	}
	if !m.Return.IsVoid() {
		b, v, err := g.Registry.BindReturn(m.Return, "retval", true)
		if err != nil {
			return "", err
		}
		if err := b.Handler.ConvertHostToC(ctx, v); err != nil {
			return "", err
		}
		if b.Transform != nil {
			ctx.ReturnExpr = b.Transform.Transform(ctx.Decls, ctx.After, v.Type, ctx.ReturnExpr)
		}
	}
	if err := ctx.FlushWards(); err != nil {
		return "", err
	}

	var w codesink.Writer
	w.Line(sig.ret)
	w.Linef("%s::%s(%s)%s", h.name, m.Name, sig.params, sig.suffix)
	w.Line("{")
	w.Indent()
	w.Lines(ctx.Decls.Lines())
	w.Blank()
	w.Linef("%s = %s;", method, d.Call("get_override", SelfField, fmt.Sprintf("%q", m.Name)))
	w.Linef("if (!%s) {", method)
	w.Indent()
	w.Lines(fb)
	w.Dedent()
	w.Line("}")
	ctx.Before.Flush(&w)

	callArgs := []string{SelfField, method, fmt.Sprintf("%q", "("+ctx.Build.Format()+")")}
	callArgs = append(callArgs, ctx.Build.Args()...)
	w.Linef("%s = %s;", result, d.Call("call_method", callArgs...))
	// Failed calls unwind the cleanup stack: the wrappers made for the
	// arguments, then the override itself.
	printError := d.Call("error_print") + ";"
	called := codesink.NewCodeBlock(fb, ctx.Before)
	called.WriteErrorCheck("!"+result, printError)
	called.Flush(&w)
	if ctx.Parse.Len() > 0 {
		parseArgs := append([]string{result, fmt.Sprintf("%q", ctx.Parse.Format())}, ctx.Parse.Args()...)
		parsed := codesink.NewCodeBlock(fb, ctx.After)
		parsed.WriteErrorCheck("!"+d.Call("parse_value", parseArgs...), printError)
		parsed.Flush(&w)
	}
	ctx.After.Flush(&w)
	ctx.Final.Flush(&w)
	if m.Return.IsVoid() {
		w.Lines(ctx.After.CleanupLines())
	} else {
		// Copy out before the host result, which may own the data, goes.
		native := ctx.Decls.Reserve("native_retval")
		w.Linef("%s = %s;", m.Return.Type.Decl(native), ctx.ReturnExpr)
		w.Lines(ctx.After.CleanupLines())
		w.Linef("return %s;", native)
	}
	w.Dedent()
	w.Line("}")
	return strings.TrimRight(w.String(), "\n"), nil
}
