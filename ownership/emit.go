package ownership

import (
	"fmt"

	"github.com/rubiojr/bindgen/hostapi"
	"github.com/rubiojr/bindgen/model"
)

// Target names the C++ expressions an action operates on.
type Target struct {
	Dialect *hostapi.Dialect
	Class   *model.Class
	// Wrapper is the wrapper struct pointer expression ("py_Foo").
	Wrapper string
	// Native is the native pointer expression ("retval").
	Native string
	// Custodian is the host object expression of an AddWard custodian.
	Custodian string
}

// Code renders a as C++ statements.
func Code(a Action, t Target) []string {
	d := t.Dialect
	switch a.Kind {
	case Incref:
		return []string{fmt.Sprintf("%s->%s();", t.Native, t.Class.RefCountPolicy().Incref)}
	case Decref:
		return []string{fmt.Sprintf("%s->%s();", t.Native, t.Class.RefCountPolicy().Decref)}
	case Adopt:
		return []string{fmt.Sprintf("%s->flags = %s;", t.Wrapper, d.Flag("WRAPPER_FLAG_NONE"))}
	case MarkNotOwned:
		return []string{fmt.Sprintf("%s->flags = %s;", t.Wrapper, d.Flag("WRAPPER_FLAG_OBJECT_NOT_OWNED"))}
	case Relinquish:
		return []string{fmt.Sprintf("%s->obj = NULL;", t.Wrapper)}
	case AddWard:
		return []string{fmt.Sprintf("%s((%s *) %s, (%s *) %s);",
			d.Fn("add_ward"), d.Object(), t.Custodian, d.Object(), t.Wrapper)}
	case Delete:
		return []string{fmt.Sprintf("delete %s;", t.Native)}
	case Copy:
		return []string{fmt.Sprintf("%s->obj = new %s(%s);", t.Wrapper, t.Class.FullName(), t.Native)}
	}
	return nil
}

// FinalizeCode renders the body of a wrapper's finalizer: the object is
// released only while the wrapper still holds it and, unless reference
// counted, owns it.
func FinalizeCode(d *hostapi.Dialect, c *model.Class, wrapper string) []string {
	tmp := "tmp"
	t := Target{Dialect: d, Class: c, Wrapper: wrapper, Native: tmp}
	var lines []string
	if c.IsRefCounted() {
		lines = append(lines, fmt.Sprintf("if (%s->obj) {", wrapper))
		lines = append(lines, fmt.Sprintf("    %s *%s = %s->obj;", c.FullName(), tmp, wrapper))
		lines = append(lines, fmt.Sprintf("    %s->obj = NULL;", wrapper))
	} else {
		lines = append(lines, fmt.Sprintf("if (%s->obj && !(%s->flags & %s)) {",
			wrapper, wrapper, d.Flag("WRAPPER_FLAG_OBJECT_NOT_OWNED")))
		lines = append(lines, fmt.Sprintf("    %s *%s = %s->obj;", c.FullName(), tmp, wrapper))
		lines = append(lines, fmt.Sprintf("    %s->obj = NULL;", wrapper))
	}
	for _, a := range Finalize(c) {
		for _, l := range Code(a, t) {
			lines = append(lines, "    "+l)
		}
	}
	lines = append(lines, "} else {")
	lines = append(lines, fmt.Sprintf("    %s->obj = NULL;", wrapper))
	lines = append(lines, "}")
	return lines
}
