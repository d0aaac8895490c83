package doc

import (
	"fmt"
	"strings"
)

// FormatModule formats a module summary for terminal display.
func FormatModule(md *ModuleDoc) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("module %s", md.Name))
	sb.WriteString("\n")
	for _, inc := range md.Includes {
		sb.WriteString("    #include ")
		sb.WriteString(inc)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	formatScope(&sb, md)
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func formatScope(sb *strings.Builder, md *ModuleDoc) {
	for _, e := range md.Enums {
		formatEnum(sb, e, "")
		sb.WriteString("\n")
	}
	for _, c := range md.Classes {
		formatClass(sb, c)
		sb.WriteString("\n")
	}
	for _, f := range md.Funcs {
		formatFunc(sb, f, "")
		sb.WriteString("\n")
	}
	for _, child := range md.Namespaces {
		sb.WriteString(fmt.Sprintf("namespace %s (%s)\n\n", child.Name, child.Scope))
		formatScope(sb, child)
	}
}

func formatClass(sb *strings.Builder, c ClassDoc) {
	sb.WriteString("class ")
	sb.WriteString(c.Name)
	if len(c.Traits) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(c.Traits, ", "))
		sb.WriteString("]")
	}
	sb.WriteString("\n")
	sb.WriteString("    native: ")
	sb.WriteString(c.Native)
	if c.Parent != "" {
		sb.WriteString(", parent: ")
		sb.WriteString(c.Parent)
	}
	sb.WriteString("\n")
	if c.Reason != "" {
		sb.WriteString(fmt.Sprintf("    not constructible: %s\n", c.Reason))
	}
	section(sb, "constructors", c.Ctors)
	if len(c.Funcs) > 0 {
		sb.WriteString("    methods:\n")
		for _, f := range c.Funcs {
			formatFunc(sb, f, "        ")
		}
	}
	section(sb, "attributes", c.Attrs)
	for _, e := range c.Enums {
		formatEnum(sb, e, "    ")
	}
}

func section(sb *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	sb.WriteString("    " + title + ":\n")
	for _, l := range lines {
		sb.WriteString("        ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
}

func formatFunc(sb *strings.Builder, f FuncDoc, indent string) {
	if len(f.Overloads) == 1 {
		sb.WriteString(fmt.Sprintf("%s%s: %s\n", indent, f.Name, f.Overloads[0]))
		return
	}
	sb.WriteString(fmt.Sprintf("%s%s: %d overloads\n", indent, f.Name, len(f.Overloads)))
	for _, o := range f.Overloads {
		sb.WriteString(indent)
		sb.WriteString("    ")
		sb.WriteString(o)
		sb.WriteString("\n")
	}
}

func formatEnum(sb *strings.Builder, e EnumDoc, indent string) {
	sb.WriteString(fmt.Sprintf("%senum %s\n", indent, e.Name))
	sb.WriteString(indent)
	sb.WriteString("    ")
	sb.WriteString(strings.Join(e.Values, ", "))
	sb.WriteString("\n")
}

// FormatSignatures lists type signatures under a title, in columns when
// width allows.
func FormatSignatures(title string, sigs []string, width int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%d):\n", title, len(sigs)))
	col := 0
	for _, s := range sigs {
		if len(s) > col {
			col = len(s)
		}
	}
	col += 2
	perLine := 1
	if width > 2 && col > 0 {
		perLine = (width - 2) / col
	}
	if perLine < 1 {
		perLine = 1
	}
	for i, s := range sigs {
		if i%perLine == 0 {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("  ")
		}
		if (i+1)%perLine == 0 || i == len(sigs)-1 {
			sb.WriteString(s)
		} else {
			sb.WriteString(fmt.Sprintf("%-*s", col, s))
		}
	}
	if len(sigs) > 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}
