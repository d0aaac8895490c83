// Package hostapi names the host runtime ABI the generated glue is written
// against. The engine never spells a host symbol directly; everything goes
// through a Dialect, so targeting another managed runtime means supplying
// another Dialect and a matching preamble.
package hostapi

import "fmt"

// Dialect describes the host ABI symbols used by generated code.
type Dialect struct {
	// Prefix is prepended to generated wrapper struct and type names
	// ("Hb" gives HbFoo and HbFoo_Type).
	Prefix string
	// Func is the prefix of host ABI functions ("hb_" gives hb_parse_args).
	Func string
	// Macro is the prefix of host ABI macros and flags ("HB_").
	Macro string
}

// Default returns the neutral "Hb" dialect.
func Default() *Dialect {
	return New("Hb")
}

// New derives a dialect from a type prefix: "Py" yields Py/py_/PY_.
func New(prefix string) *Dialect {
	return &Dialect{
		Prefix: prefix,
		Func:   lower(prefix) + "_",
		Macro:  upper(prefix) + "_",
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// Object is the generic host object type.
func (d *Dialect) Object() string { return d.Prefix + "Object" }

// TypeObject is the host type-object type.
func (d *Dialect) TypeObject() string { return d.Prefix + "TypeObject" }

// MethodDef is the method table entry type.
func (d *Dialect) MethodDef() string { return d.Prefix + "MethodDef" }

// GetSetDef is the attribute table entry type.
func (d *Dialect) GetSetDef() string { return d.Prefix + "GetSetDef" }

// Call renders a call to a host ABI function: Call("parse_args", "a", "b")
// gives "hb_parse_args(a, b)".
func (d *Dialect) Call(fn string, args ...string) string {
	s := d.Func + fn + "("
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += a
	}
	return s + ")"
}

// Fn returns the bare name of a host ABI function.
func (d *Dialect) Fn(name string) string { return d.Func + name }

// Flag returns the name of a host macro or flag.
func (d *Dialect) Flag(name string) string { return d.Macro + name }

// Unused wraps a parameter name in the host's unused-parameter macro.
func (d *Dialect) Unused(name string) string {
	return fmt.Sprintf("%s(%s)", d.Flag("UNUSED"), name)
}

// Wrapper returns the wrapper struct name for a mangled class name.
func (d *Dialect) Wrapper(mangled string) string { return d.Prefix + mangled }

// Type returns the type-object variable name for a mangled class name.
func (d *Dialect) Type(mangled string) string { return d.Prefix + mangled + "_Type" }

// Raise renders a statement raising a host exception of the given kind.
func (d *Dialect) Raise(kind, msg string) string {
	return d.Call("raise", d.Flag("EXC_"+kind), fmt.Sprintf("%q", msg)) + ";"
}
