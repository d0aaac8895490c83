package typehandlers

import (
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/overload"
)

// primitive handles arithmetic types passed by value.
type primitive struct {
	ctype  string
	format string
	kind   overload.Kind
}

// primitives maps native arithmetic types to host format characters.
var primitives = []primitive{
	{"int", "i", overload.Int},
	{"unsigned int", "I", overload.Int},
	{"unsigned", "I", overload.Int},
	{"long", "l", overload.Int},
	{"long int", "l", overload.Int},
	{"unsigned long", "k", overload.Int},
	{"long long", "L", overload.Int},
	{"unsigned long long", "K", overload.Int},
	{"short", "h", overload.Int},
	{"unsigned short", "H", overload.Int},
	{"signed char", "b", overload.Int},
	{"unsigned char", "B", overload.Int},
	{"char", "c", overload.String},
	{"double", "d", overload.Float},
	{"float", "f", overload.Float},
	{"size_t", "n", overload.Int},
	{"int8_t", "b", overload.Int},
	{"uint8_t", "B", overload.Int},
	{"int16_t", "h", overload.Int},
	{"uint16_t", "H", overload.Int},
	{"int32_t", "i", overload.Int},
	{"uint32_t", "I", overload.Int},
	{"int64_t", "L", overload.Int},
	{"uint64_t", "K", overload.Int},
}

func (h primitive) Accepts() overload.Param { return overload.Param{Kind: h.kind} }

func (h primitive) ConvertHostToC(ctx *Context, v *Value) error {
	if ctx.Reverse {
		name := ctx.Decls.DeclareVariable(h.ctype, "retval", "", "")
		ctx.Parse.Add(h.format, "&"+name)
		ctx.ReturnExpr = name
		return nil
	}
	name := ctx.Decls.DeclareVariable(h.ctype, v.Name, v.Default, "")
	ctx.Parse.AddKeyword(v.Name, h.format, v.Default != "", "&"+name)
	ctx.AddCallParam(v, name)
	return nil
}

func (h primitive) ConvertCToHost(ctx *Context, v *Value) error {
	ctx.Build.Add(h.format, v.expr())
	return nil
}

// primitiveRef handles arithmetic types passed by reference or pointer,
// which may be out or inout parameters returned to the host.
type primitiveRef struct {
	primitive
	pointer bool
}

func (h primitiveRef) ConvertHostToC(ctx *Context, v *Value) error {
	if ctx.Reverse {
		return unsupported(v, "reference returned from a virtual method")
	}
	name := ctx.Decls.DeclareVariable(h.ctype, v.Name, v.Default, "")
	if v.Direction != model.Out {
		ctx.Parse.AddKeyword(v.Name, h.format, v.Default != "", "&"+name)
	}
	if h.pointer {
		ctx.AddCallParam(v, "&"+name)
	} else {
		ctx.AddCallParam(v, name)
	}
	if v.Direction != model.In {
		ctx.Build.Add(h.format, name)
	}
	return nil
}

func (h primitiveRef) ConvertCToHost(ctx *Context, v *Value) error {
	if v.Role == Return || v.Direction != model.In {
		return unsupported(v, "only input references can be passed to host overrides")
	}
	expr := v.expr()
	if h.pointer {
		expr = "*" + expr
	}
	ctx.Build.Add(h.format, expr)
	return nil
}

// boolean maps bool to the host's truth value.
type boolean struct{}

func (boolean) Accepts() overload.Param { return overload.Param{Kind: overload.Bool} }

func (boolean) ConvertHostToC(ctx *Context, v *Value) error {
	d := ctx.Dialect
	if ctx.Reverse {
		host := ctx.Decls.DeclareVariable(d.Object()+" *", "host_retval", "", "")
		ctx.Parse.Add("O", "&"+host)
		ctx.ReturnExpr = "(bool) " + d.Call("object_is_true", host)
		return nil
	}
	if v.Default != "" {
		host := ctx.Decls.DeclareVariable(d.Object()+" *", hostName(v), "NULL", "")
		ctx.Parse.AddKeyword(v.Name, "O", true, "&"+host)
		ctx.AddCallParam(v, host+" ? (bool) "+d.Call("object_is_true", host)+" : "+v.Default)
		return nil
	}
	host := ctx.Decls.DeclareVariable(d.Object()+" *", hostName(v), "", "")
	ctx.Parse.AddKeyword(v.Name, "O", false, "&"+host)
	ctx.AddCallParam(v, "(bool) "+d.Call("object_is_true", host))
	return nil
}

func (boolean) ConvertCToHost(ctx *Context, v *Value) error {
	ctx.Build.Add("N", ctx.Dialect.Call("bool_from_long", v.expr()))
	return nil
}

// cstring handles const char*, borrowed from the host for the duration of
// the call.
type cstring struct{}

func (cstring) Accepts() overload.Param { return overload.Param{Kind: overload.String} }

func (cstring) ConvertHostToC(ctx *Context, v *Value) error {
	if ctx.Reverse {
		return unsupported(v, "the host string would not outlive the downcall")
	}
	name := ctx.Decls.DeclareVariable("const char *", v.Name, v.Default, "")
	ctx.Parse.AddKeyword(v.Name, "s", v.Default != "", "&"+name)
	ctx.AddCallParam(v, name)
	return nil
}

func (cstring) ConvertCToHost(ctx *Context, v *Value) error {
	ctx.Build.Add("s", v.expr())
	return nil
}

// stdString handles std::string by value and by const reference.
type stdString struct{}

func (stdString) Accepts() overload.Param { return overload.Param{Kind: overload.String} }

func (stdString) ConvertHostToC(ctx *Context, v *Value) error {
	d := ctx.Dialect
	if ctx.Reverse {
		ptr := ctx.Decls.DeclareVariable("const char *", "retval_ptr", "", "")
		n := ctx.Decls.DeclareVariable(d.Fn("ssize_t"), "retval_len", "", "")
		ctx.Parse.Add("s#", "&"+ptr, "&"+n)
		ctx.ReturnExpr = "std::string(" + ptr + ", " + n + ")"
		return nil
	}
	init := ""
	if v.Default != "" {
		init = "NULL"
	}
	ptr := ctx.Decls.DeclareVariable("const char *", v.Name, init, "")
	n := ctx.Decls.DeclareVariable(d.Fn("ssize_t"), v.Name+"_len", "", "")
	ctx.Parse.AddKeyword(v.Name, "s#", v.Default != "", "&"+ptr, "&"+n)
	expr := "std::string(" + ptr + ", " + n + ")"
	if v.Default != "" {
		expr = ptr + " ? " + expr + " : std::string(" + v.Default + ")"
	}
	ctx.AddCallParam(v, expr)
	return nil
}

func (stdString) ConvertCToHost(ctx *Context, v *Value) error {
	e := v.expr()
	ctx.Build.Add("s#", "("+e+").c_str()", "("+e+").size()")
	return nil
}

// stdStringRef handles non-const std::string&, usable as an out or inout
// parameter.
type stdStringRef struct{ stdString }

func (stdStringRef) ConvertHostToC(ctx *Context, v *Value) error {
	d := ctx.Dialect
	if ctx.Reverse {
		return unsupported(v, "reference returned from a virtual method")
	}
	std := ctx.Decls.DeclareVariable("std::string", v.Name+"_std", "", "")
	if v.Direction != model.Out {
		ptr := ctx.Decls.DeclareVariable("const char *", v.Name, "", "")
		n := ctx.Decls.DeclareVariable(d.Fn("ssize_t"), v.Name+"_len", "", "")
		ctx.Parse.AddKeyword(v.Name, "s#", false, "&"+ptr, "&"+n)
		ctx.Before.WriteCode(std + " = std::string(" + ptr + ", " + n + ");")
	}
	ctx.AddCallParam(v, std)
	if v.Direction != model.In {
		ctx.Build.Add("s#", std+".c_str()", std+".size()")
	}
	return nil
}

func (h stdStringRef) ConvertCToHost(ctx *Context, v *Value) error {
	if v.Role == Parameter && v.Direction != model.In {
		return unsupported(v, "only input references can be passed to host overrides")
	}
	return h.stdString.ConvertCToHost(ctx, v)
}

// void is the return handler of functions returning nothing.
type void struct{}

func (void) Accepts() overload.Param { return overload.Param{Kind: overload.Object} }

func (void) ConvertHostToC(ctx *Context, v *Value) error {
	if !ctx.Reverse {
		return unsupported(v, "void parameter")
	}
	ctx.ReturnExpr = ""
	return nil
}

func (void) ConvertCToHost(*Context, *Value) error { return nil }

// enum maps an enumeration to a host integer.
type enum struct {
	e *model.Enum
}

func (h enum) Accepts() overload.Param { return overload.Param{Kind: overload.Int} }

func (h enum) ConvertHostToC(ctx *Context, v *Value) error {
	full := h.e.FullName()
	if ctx.Reverse {
		name := ctx.Decls.DeclareVariable("int", "retval", "", "")
		ctx.Parse.Add("i", "&"+name)
		ctx.ReturnExpr = "(" + full + ") " + name
		return nil
	}
	name := ctx.Decls.DeclareVariable("int", v.Name, v.Default, "")
	ctx.Parse.AddKeyword(v.Name, "i", v.Default != "", "&"+name)
	ctx.AddCallParam(v, "("+full+") "+name)
	return nil
}

func (h enum) ConvertCToHost(ctx *Context, v *Value) error {
	ctx.Build.Add("i", v.expr())
	return nil
}
