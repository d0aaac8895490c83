// Package doc summarizes module descriptors for terminal display.
//
// Extract walks a model.Module and records what the host will see: the
// exposed name of every class, method, attribute, function and enum value,
// next to the native signature it wraps. Overloads of one exposed name are
// listed together.
package doc

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/model"
)

// ModuleDoc is the summary of a module or one of its namespaces.
type ModuleDoc struct {
	Name       string // host name, e.g. "foo" or "foo.xpto"
	Scope      string // C++ scope, empty for the module root
	Includes   []string
	Classes    []ClassDoc
	Enums      []EnumDoc
	Funcs      []FuncDoc
	Namespaces []*ModuleDoc
}

// ClassDoc describes a class.
type ClassDoc struct {
	Name   string // host name, e.g. "SomeObject.NestedClass"
	Native string
	Parent string
	Traits []string // "subclassable", "singleton", ...
	Ctors  []string
	Funcs  []FuncDoc
	Attrs  []string
	Enums  []EnumDoc
	// Reason is set when the host cannot construct the class.
	Reason string
}

// FuncDoc describes one exposed callable, with every native overload.
type FuncDoc struct {
	Name      string
	Overloads []string
}

// EnumDoc describes an enum.
type EnumDoc struct {
	Name   string
	Values []string
}

// Extract summarizes mod.
func Extract(mod *model.Module) *ModuleDoc {
	md := extractNamespace(mod.Namespace, mod.Name)
	md.Includes = append([]string(nil), mod.Includes...)
	return md
}

func extractNamespace(ns *model.Namespace, hostName string) *ModuleDoc {
	md := &ModuleDoc{Name: hostName, Scope: ns.Scope()}
	for _, c := range ns.Classes {
		md.Classes = append(md.Classes, extractClasses(c, c.Name)...)
	}
	for _, e := range ns.Enums {
		md.Enums = append(md.Enums, EnumDoc{Name: e.Name, Values: e.Values})
	}
	md.Funcs = groupFunctions(ns.Functions)
	for _, child := range ns.Namespaces {
		md.Namespaces = append(md.Namespaces, extractNamespace(child, hostName+"."+child.Name))
	}
	return md
}

// extractClasses returns c followed by its nested classes.
func extractClasses(c *model.Class, hostName string) []ClassDoc {
	cd := ClassDoc{Name: hostName, Native: c.FullName()}
	if c.Parent != nil {
		cd.Parent = c.Parent.FullName()
	}
	cd.Traits = traits(c)
	for _, ct := range c.Constructors {
		sig := fmt.Sprintf("%s(%s)", c.Name, params(ct.Params))
		if ct.Visibility != model.Public {
			sig = ct.Visibility.String() + " " + sig
		}
		if ct.Inherited {
			sig += " [inherited]"
		}
		cd.Ctors = append(cd.Ctors, sig)
	}
	switch no, reason := c.CannotBeConstructed(); {
	case no:
		cd.Reason = reason
	case c.Singleton:
		cd.Reason = "singleton"
	}
	cd.Funcs = groupMethods(c.Methods)
	for _, a := range c.Attributes {
		cd.Attrs = append(cd.Attrs, attribute(a))
	}
	for _, e := range c.NestedEnums {
		cd.Enums = append(cd.Enums, EnumDoc{Name: e.Name, Values: e.Values})
	}

	out := []ClassDoc{cd}
	for _, n := range c.NestedClasses {
		out = append(out, extractClasses(n, hostName+"."+n.Name)...)
	}
	return out
}

func traits(c *model.Class) []string {
	var out []string
	if c.AllowsSubclassing() {
		out = append(out, "subclassable")
	}
	if c.Singleton {
		out = append(out, "singleton")
	}
	if rc := c.RefCountPolicy(); rc != nil {
		out = append(out, fmt.Sprintf("refcounted(%s/%s)", rc.Incref, rc.Decref))
	}
	if c.AutomaticTypeNarrowing {
		out = append(out, "narrowing")
	}
	for _, t := range c.ImplicitConversions {
		out = append(out, "converts to "+t.FullName())
	}
	return out
}

func groupFunctions(fns []*model.Function) []FuncDoc {
	var out []FuncDoc
	index := make(map[string]int)
	for _, f := range fns {
		sig := "[custom " + wrapperName(f.Custom) + "]"
		if f.Custom == nil {
			sig = fmt.Sprintf("%s %s(%s)", f.Return.TypeText, f.FullName(), params(f.Params))
		}
		out = appendOverload(out, index, f.HostName, sig)
	}
	return out
}

func groupMethods(methods []*model.Method) []FuncDoc {
	var out []FuncDoc
	index := make(map[string]int)
	for _, m := range methods {
		if m.Visibility != model.Public {
			continue
		}
		var sig string
		switch {
		case m.Custom != nil:
			sig = "[custom " + wrapperName(m.Custom) + "]"
		case m.Function:
			sig = fmt.Sprintf("%s %s(%s) [function]", m.Return.TypeText, m.Name, params(m.Params))
		default:
			sig = fmt.Sprintf("%s %s(%s)", m.Return.TypeText, m.Name, params(m.Params))
			if m.Const {
				sig += " const"
			}
			var flags []string
			if m.Static {
				flags = append(flags, "static")
			}
			if m.PureVirtual {
				flags = append(flags, "pure virtual")
			} else if m.Virtual {
				flags = append(flags, "virtual")
			}
			if len(flags) > 0 {
				sig += " [" + strings.Join(flags, ", ") + "]"
			}
		}
		out = appendOverload(out, index, m.HostName, sig)
	}
	return out
}

func appendOverload(out []FuncDoc, index map[string]int, name, sig string) []FuncDoc {
	if i, ok := index[name]; ok {
		out[i].Overloads = append(out[i].Overloads, sig)
		return out
	}
	index[name] = len(out)
	return append(out, FuncDoc{Name: name, Overloads: []string{sig}})
}

func wrapperName(cw *model.CustomWrapper) string {
	return cw.WrapperName
}

func attribute(a *model.Attribute) string {
	s := a.Type.TypeText + " " + a.Name
	if a.Static {
		s = "static " + s
	}
	var via []string
	if a.Getter != "" {
		via = append(via, "get: "+a.Getter)
	}
	if a.Setter != "" {
		via = append(via, "set: "+a.Setter)
	}
	if a.ReadOnly {
		via = append(via, "read only")
	}
	if len(via) > 0 {
		s += " (" + strings.Join(via, ", ") + ")"
	}
	return s
}

func params(ps []*model.Parameter) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		s := p.TypeText + " " + p.Name
		if p.Default != "" {
			s += " = " + p.Default
		}
		if p.Direction != model.In {
			s = p.Direction.String() + " " + s
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}
