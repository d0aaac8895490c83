// Package codesink holds the output side of the generator: the Sink the
// engine writes fragments to, an indented Writer, and the CodeBlock and
// Declarations helpers used to lay out a single wrapper function.
package codesink

import (
	"fmt"
	"io"
)

// Sink receives the ordered source fragments of one generation run. The
// engine assumes a sink stores bytes untouched; any error is fatal to the
// run and is not retried.
type Sink interface {
	WriteFragment(s string) error
}

// WriterSink adapts an io.Writer (a file, a buffer, stdout).
type WriterSink struct {
	W io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{W: w}
}

func (s *WriterSink) WriteFragment(frag string) error {
	n, err := io.WriteString(s.W, frag)
	if err != nil {
		return err
	}
	if n != len(frag) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(frag))
	}
	return nil
}

// MemorySink collects fragments in memory.
type MemorySink struct {
	Fragments []string
}

func (s *MemorySink) WriteFragment(frag string) error {
	s.Fragments = append(s.Fragments, frag)
	return nil
}

// String concatenates all fragments in order.
func (s *MemorySink) String() string {
	n := 0
	for _, f := range s.Fragments {
		n += len(f)
	}
	b := make([]byte, 0, n)
	for _, f := range s.Fragments {
		b = append(b, f...)
	}
	return string(b)
}

// Discard drops every fragment. Used to check a module without output.
var Discard Sink = discard{}

type discard struct{}

func (discard) WriteFragment(string) error { return nil }
