package codesink

import (
	"fmt"
	"strings"
)

// Declarations collects the local variable declarations of one generated
// function. Every name it hands out is unique within the function, so a
// temporary introduced by a type transformation can never shadow another
// one, and all of them live at the top of the same lexical block as the
// code that uses them.
type Declarations struct {
	decls []string
	names map[string]bool
}

// NewDeclarations returns an empty declaration scope.
func NewDeclarations() *Declarations {
	return &Declarations{names: make(map[string]bool)}
}

// Reserve returns a unique variable name derived from name without
// declaring it. Used for names the function signature already declares.
func (d *Declarations) Reserve(name string) string {
	if !d.names[name] {
		d.names[name] = true
		return name
	}
	for i := 2; ; i++ {
		cand := fmt.Sprintf("%s%d", name, i)
		if !d.names[cand] {
			d.names[cand] = true
			return cand
		}
	}
}

// DeclareVariable declares a variable of type ctype and returns its unique
// name. init, when non-empty, is used as the initializer; array, when
// non-empty, is the array dimension ("2" declares name[2]).
func (d *Declarations) DeclareVariable(ctype, name, init, array string) string {
	name = d.Reserve(name)
	var sb strings.Builder
	sb.WriteString(ctype)
	if !strings.HasSuffix(ctype, "*") && !strings.HasSuffix(ctype, "&") {
		sb.WriteByte(' ')
	}
	sb.WriteString(name)
	if array != "" {
		sb.WriteString("[" + array + "]")
	}
	if init != "" {
		sb.WriteString(" = " + init)
	}
	sb.WriteByte(';')
	d.decls = append(d.decls, sb.String())
	return name
}

// Lines returns the declarations in declaration order.
func (d *Declarations) Lines() []string {
	return append([]string(nil), d.decls...)
}

// CodeBlock is a straight-line piece of a wrapper body with its own
// cleanup stack. Error checks written into a block release everything the
// block (and its parent blocks) acquired so far before taking the error
// return, so temporaries are freed on every exit path.
type CodeBlock struct {
	lines       []string
	cleanups    []string
	errorReturn []string
	parent      *CodeBlock
}

// NewCodeBlock returns a block whose error exits end with errorReturn
// (typically "return NULL;"). Cleanups registered on parent run after this
// block's own cleanups on every error exit.
func NewCodeBlock(errorReturn []string, parent *CodeBlock) *CodeBlock {
	return &CodeBlock{errorReturn: errorReturn, parent: parent}
}

// WriteCode appends code, which may span several lines.
func (b *CodeBlock) WriteCode(code string) {
	b.lines = append(b.lines, strings.Split(code, "\n")...)
}

// AddCleanupCode registers code to run when the block exits, on the error
// paths and on the normal path alike. Cleanups run in reverse order.
func (b *CodeBlock) AddCleanupCode(code string) {
	b.cleanups = append(b.cleanups, code)
}

// CleanupLines returns this block's cleanups followed by the parent
// chain's, each in reverse registration order.
func (b *CodeBlock) CleanupLines() []string {
	var out []string
	for blk := b; blk != nil; blk = blk.parent {
		for i := len(blk.cleanups) - 1; i >= 0; i-- {
			out = append(out, blk.cleanups[i])
		}
	}
	return out
}

// WriteErrorCheck writes "if (cond) { failure; cleanups; error return }".
func (b *CodeBlock) WriteErrorCheck(cond string, failure ...string) {
	b.lines = append(b.lines, "if ("+cond+") {")
	for _, l := range b.errorExit(failure) {
		b.lines = append(b.lines, indentUnit+l)
	}
	b.lines = append(b.lines, "}")
}

// WriteErrorExit writes an unconditional error exit.
func (b *CodeBlock) WriteErrorExit(failure ...string) {
	b.lines = append(b.lines, b.errorExit(failure)...)
}

func (b *CodeBlock) errorExit(failure []string) []string {
	var out []string
	for _, f := range failure {
		out = append(out, strings.Split(f, "\n")...)
	}
	for _, c := range b.CleanupLines() {
		out = append(out, strings.Split(c, "\n")...)
	}
	out = append(out, b.errorReturn...)
	return out
}

// Lines returns the code written so far.
func (b *CodeBlock) Lines() []string {
	return append([]string(nil), b.lines...)
}

// Empty reports whether no code was written.
func (b *CodeBlock) Empty() bool { return len(b.lines) == 0 }

// Flush writes the block's code to w.
func (b *CodeBlock) Flush(w *Writer) {
	for _, l := range b.lines {
		w.Line(l)
	}
}
