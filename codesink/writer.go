package codesink

import (
	"fmt"
	"strings"
)

// Writer manages indented C++ source output for the code generator.
type Writer struct {
	sb     strings.Builder
	indent int
}

// indentUnit is one level of indentation in generated C++.
const indentUnit = "    "

// Line writes an indented line. A trailing newline is appended. Embedded
// newlines are indented line by line; empty lines stay empty.
func (w *Writer) Line(s string) {
	for _, l := range strings.Split(s, "\n") {
		if l == "" {
			w.sb.WriteByte('\n')
			continue
		}
		w.sb.WriteString(strings.Repeat(indentUnit, w.indent))
		w.sb.WriteString(l)
		w.sb.WriteByte('\n')
	}
}

// Linef writes an indented, formatted line with a trailing newline.
func (w *Writer) Linef(format string, args ...any) {
	w.Line(fmt.Sprintf(format, args...))
}

// Lines writes each line in order.
func (w *Writer) Lines(lines []string) {
	for _, l := range lines {
		w.Line(l)
	}
}

// Blank writes an empty line.
func (w *Writer) Blank() { w.sb.WriteByte('\n') }

// Raw writes unindented text directly to the buffer.
func (w *Writer) Raw(s string) {
	w.sb.WriteString(s)
}

// Indent increases the indentation level.
func (w *Writer) Indent() { w.indent++ }

// Dedent decreases the indentation level.
func (w *Writer) Dedent() {
	if w.indent > 0 {
		w.indent--
	}
}

// String returns the accumulated output.
func (w *Writer) String() string { return w.sb.String() }

// Capture runs fn against an empty buffer at indentation zero, then
// restores the original buffer and returns what fn wrote. Nothing fn
// writes reaches the original buffer, so a failed member leaves no half
// function behind.
func (w *Writer) Capture(fn func() error) (string, error) {
	saved := w.sb
	savedIndent := w.indent
	w.sb = strings.Builder{}
	w.indent = 0
	err := fn()
	result := w.sb.String()
	w.sb = saved
	w.indent = savedIndent
	return result, err
}
