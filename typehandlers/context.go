// Package typehandlers converts values between the host and native sides
// of a generated wrapper.
//
// A Handler is bound to one (post-transformation) type signature and knows
// how to write the declarations, argument parsing, call parameters and
// result building for values of that type, in both directions: forward
// wrappers (host calls native) and downcall trampolines (native calls a
// host override). Handlers are looked up through a Registry, which tries
// the registered Transformations first.
package typehandlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/ctype"
	"github.com/rubiojr/bindgen/hostapi"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/overload"
	"github.com/rubiojr/bindgen/ownership"
)

// Roles, re-exported for handler code.
const (
	Parameter = binderr.Parameter
	Return    = binderr.Return
)

// Handler converts values of one signature.
type Handler interface {
	// ConvertHostToC turns a host value into a native one: parameters of
	// forward wrappers and the return value of downcalls.
	ConvertHostToC(ctx *Context, v *Value) error
	// ConvertCToHost turns a native value into a host one: return values
	// of forward wrappers and parameters of downcalls.
	ConvertCToHost(ctx *Context, v *Value) error
	// Accepts describes the host values accepted as a parameter.
	Accepts() overload.Param
}

// ClassHandler is implemented by handlers of class instances.
type ClassHandler interface {
	Handler
	Class() *model.Class
}

// Value is one parameter or return value being converted.
type Value struct {
	// Name is the native variable name: the parameter name, or the
	// return variable.
	Name string
	// Expr is the native expression holding the value when it flows to the
	// host (defaults to Name).
	Expr string
	// Type is the post-transformation signature.
	Type ctype.Signature
	Role binderr.Role
	// Index is the 1-based parameter position, or -1 for the return value.
	Index     int
	Class     *model.Class
	Ownership ownership.Decision
	Direction model.Direction
	Default   string
	NullOK    bool
	// Transform is the transformation that produced Type, if any.
	Transform Transformation
	// Original is the signature as declared.
	Original ctype.Signature
}

func (v *Value) expr() string {
	if v.Expr != "" {
		return v.Expr
	}
	return v.Name
}

// ArgItem is one entry of a parse or build format.
type ArgItem struct {
	Format   string
	Args     []string
	Keyword  string
	Optional bool
}

// ArgList accumulates a host format string and its arguments.
type ArgList struct {
	Items []ArgItem
}

// Add appends a positional item.
func (a *ArgList) Add(format string, args ...string) {
	a.Items = append(a.Items, ArgItem{Format: format, Args: args})
}

// AddKeyword appends a named item.
func (a *ArgList) AddKeyword(keyword, format string, optional bool, args ...string) {
	a.Items = append(a.Items, ArgItem{Format: format, Args: args, Keyword: keyword, Optional: optional})
}

// Format returns the format string; "|" marks where optional items start.
func (a *ArgList) Format() string {
	var sb strings.Builder
	optional := false
	for _, it := range a.Items {
		if it.Optional && !optional {
			sb.WriteByte('|')
			optional = true
		}
		sb.WriteString(it.Format)
	}
	return sb.String()
}

// Args returns all arguments in order.
func (a *ArgList) Args() []string {
	var out []string
	for _, it := range a.Items {
		out = append(out, it.Args...)
	}
	return out
}

// Keywords returns the keyword names of all items.
func (a *ArgList) Keywords() []string {
	var out []string
	for _, it := range a.Items {
		out = append(out, it.Keyword)
	}
	return out
}

// Len returns the number of items.
func (a *ArgList) Len() int { return len(a.Items) }

// Context is the state of one wrapper function being generated.
type Context struct {
	Dialect  *hostapi.Dialect
	Registry *Registry
	Decls    *codesink.Declarations
	// Before holds code running before the call, After code running after
	// it, Final code running once every value was converted.
	Before *codesink.CodeBlock
	After  *codesink.CodeBlock
	Final  *codesink.CodeBlock
	// Parse collects host-to-native conversions: the arguments of a
	// forward wrapper, the result of a downcall.
	Parse *ArgList
	// Build collects native-to-host conversions: the result of a forward
	// wrapper, the arguments of a downcall.
	Build *ArgList
	// CallParams are the native call arguments of a forward wrapper.
	CallParams []string
	Ledger     *ownership.Ledger
	// Reverse is set while generating a downcall.
	Reverse bool
	// Self is the host expression of the instance, empty for functions
	// and static methods.
	Self string
	// ReturnHost is the host variable holding the returned wrapper, set by
	// class return handlers.
	ReturnHost string
	// ReturnExpr is the native expression a downcall returns, set by the
	// return handler.
	ReturnExpr string

	hostVars map[int]string
	wards    []pendingWard
}

type pendingWard struct {
	custodian int
	ward      string
	guard     string
}

// NewContext returns a context whose error exits end with errorReturn.
func NewContext(d *hostapi.Dialect, reg *Registry, errorReturn []string, reverse bool) *Context {
	before := codesink.NewCodeBlock(errorReturn, nil)
	after := codesink.NewCodeBlock(errorReturn, before)
	final := codesink.NewCodeBlock(errorReturn, after)
	return &Context{
		Dialect:  d,
		Registry: reg,
		Decls:    codesink.NewDeclarations(),
		Before:   before,
		After:    after,
		Final:    final,
		Parse:    &ArgList{},
		Build:    &ArgList{},
		Ledger:   &ownership.Ledger{},
		Reverse:  reverse,
		hostVars: make(map[int]string),
	}
}

// AddCallParam appends a native call argument for v, wrapping it with the
// value's transformation.
func (ctx *Context) AddCallParam(v *Value, expr string) {
	if v.Transform != nil {
		expr = v.Transform.Transform(ctx.Decls, ctx.Before, v.Type, expr)
	}
	ctx.CallParams = append(ctx.CallParams, expr)
}

// SetHostVar records the host object holding parameter index, so
// custodians can refer to it.
func (ctx *Context) SetHostVar(index int, expr string) {
	ctx.hostVars[index] = expr
}

// HostVar returns the host object of parameter index.
func (ctx *Context) HostVar(index int) (string, bool) {
	v, ok := ctx.hostVars[index]
	return v, ok
}

// ownershipCode records actions in the ledger and returns their code.
// AddWard actions are deferred until FlushWards; guard, when set, is the
// condition under which the ward exists.
func (ctx *Context) ownershipCode(v *Value, actions []ownership.Action, wrapper, native, guard string) ([]string, error) {
	var lines []string
	for _, a := range actions {
		if err := ctx.Ledger.Record(v.Name, v.Ownership.RefCounted, a); err != nil {
			return nil, err
		}
		if a.Kind == ownership.AddWard {
			ctx.wards = append(ctx.wards, pendingWard{custodian: a.Custodian, ward: wrapper, guard: guard})
			continue
		}
		t := ownership.Target{Dialect: ctx.Dialect, Class: v.Class, Wrapper: wrapper, Native: native}
		lines = append(lines, ownership.Code(a, t)...)
	}
	return lines, nil
}

// FlushWards writes the pending custodian/ward registrations into Final.
// It runs after every value was converted, when all host variables and the
// returned wrapper are known.
func (ctx *Context) FlushWards() error {
	d := ctx.Dialect
	for _, pw := range ctx.wards {
		var custodian string
		switch {
		case pw.custodian == 0:
			if ctx.Self == "" {
				return binderr.Configf("custodian 0 (self) used without an instance")
			}
			custodian = ctx.Self
		case pw.custodian == -1:
			if ctx.ReturnHost == "" {
				return binderr.Configf("custodian -1 used without a wrapped return value")
			}
			custodian = ctx.ReturnHost
		default:
			var ok bool
			custodian, ok = ctx.HostVar(pw.custodian)
			if !ok {
				return binderr.Configf("custodian %d is not a wrapped parameter", pw.custodian)
			}
		}
		guard := pw.guard
		if pw.custodian == -1 {
			guard = joinGuards(guard, ctx.ReturnHost)
		}
		t := ownership.Target{Dialect: d, Wrapper: pw.ward, Custodian: custodian}
		lines := ownership.Code(ownership.Action{Kind: ownership.AddWard}, t)
		writeGuarded(ctx.Final, guard, lines)
	}
	ctx.wards = nil
	return nil
}

// raise writes a host TypeError followed by the block's error exit.
func (ctx *Context) raise(block *codesink.CodeBlock, cond, msg string) {
	block.WriteErrorCheck(cond, ctx.Dialect.Raise("TypeError", msg))
}

// Signatures lists canonical signatures of a handler map, sorted.
func signatures(m map[string]Handler) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func unsupported(v *Value, reason string) error {
	sig := v.Original
	if sig.Base == "" {
		sig = v.Type
	}
	return &binderr.UnhandledTypeError{CType: sig.String(), Role: v.Role, Reason: reason}
}

// hostName derives the name of the host variable paired with v.
func hostName(v *Value) string {
	return "host_" + v.Name
}

func joinGuards(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " && " + b
}

// writeGuarded writes lines into block, inside "if (guard)" when guard is
// set.
func writeGuarded(block *codesink.CodeBlock, guard string, lines []string) {
	for _, l := range guarded(guard, lines) {
		block.WriteCode(l)
	}
}

func guarded(guard string, lines []string) []string {
	if len(lines) == 0 || guard == "" {
		return lines
	}
	out := []string{fmt.Sprintf("if (%s) {", guard)}
	for _, l := range lines {
		out = append(out, "    "+l)
	}
	return append(out, "}")
}
