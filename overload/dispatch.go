package overload

import (
	"fmt"

	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/hostapi"
)

// Dispatcher describes the C signature shared by a group's wrappers.
type Dispatcher struct {
	// Name is the dispatcher function name.
	Name string
	// ReturnType is "HbObject *" for functions and methods, "int" for
	// constructors.
	ReturnType string
	// Params is the parameter list without the trailing
	// return_exception slot ("HbFoo *self, HbObject *args, HbObject *kwargs").
	Params string
	// CallArgs are the arguments forwarded to each member ("self, args,
	// kwargs").
	CallArgs string
	// ErrorReturn is the value returned when no member matched ("NULL",
	// "-1").
	ErrorReturn string
}

// MemberParams returns the parameter list of a member wrapper taking part
// in dispatch.
func (ds Dispatcher) MemberParams(d *hostapi.Dialect) string {
	return fmt.Sprintf("%s, %s **return_exception", ds.Params, d.Object())
}

// Emit writes the dispatcher. Each member is tried in registration order;
// a member that cannot parse the arguments stores its exception and the
// next one is tried. When none accepts, a TypeError carrying every
// member's error is raised.
func (g *Group) Emit(w *codesink.Writer, d *hostapi.Dialect, ds Dispatcher) {
	obj := d.Object()
	n := len(g.Members)

	w.Line("static " + ds.ReturnType)
	w.Linef("%s(%s)", ds.Name, ds.Params)
	w.Line("{")
	w.Indent()
	w.Linef("%s retval;", ds.ReturnType)
	w.Linef("%s *error_list;", obj)
	w.Linef("%s *exceptions[%d] = {0,};", obj, n)
	for i, m := range g.Members {
		w.Linef("retval = %s(%s, &exceptions[%d]);", m.Wrapper, ds.CallArgs, i)
		w.Linef("if (!exceptions[%d]) {", i)
		w.Indent()
		for j := 0; j < i; j++ {
			w.Linef("%s(exceptions[%d]);", d.Fn("decref"), j)
		}
		w.Line("return retval;")
		w.Dedent()
		w.Line("}")
	}
	w.Linef("error_list = %s;", d.Call("list_new", fmt.Sprint(n)))
	for i := range g.Members {
		w.Linef("%s;", d.Call("list_set_item", "error_list", fmt.Sprint(i), d.Call("object_str", fmt.Sprintf("exceptions[%d]", i))))
		w.Linef("%s(exceptions[%d]);", d.Fn("decref"), i)
	}
	w.Linef("%s;", d.Call("raise_object", d.Flag("EXC_TypeError"), "error_list"))
	w.Linef("%s(error_list);", d.Fn("decref"))
	w.Linef("return %s;", ds.ErrorReturn)
	w.Dedent()
	w.Line("}")
}
