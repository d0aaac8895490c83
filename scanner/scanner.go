// Package scanner tokenizes C++ type signatures such as "const Foo&",
// "::PointerHolder<Zbr>" or "unsigned long long*". It encapsulates the
// byte-level bookkeeping (identifier runs, scope separators, template
// bracket depth) so the signature parser only deals with tokens.
package scanner

import (
	"fmt"
	"strings"
)

// Kind identifies a token class.
type Kind int

const (
	EOF     Kind = iota
	Ident        // identifier or scoped name, e.g. "std::string"
	Number       // integer literal used as a template argument
	Less         // <
	Greater      // >
	Comma        // ,
	Star         // *
	Amp          // &
	Const        // const keyword
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "end of input"
	case Ident:
		return "identifier"
	case Number:
		return "number"
	case Less:
		return "'<'"
	case Greater:
		return "'>'"
	case Comma:
		return "','"
	case Star:
		return "'*'"
	case Amp:
		return "'&'"
	case Const:
		return "'const'"
	default:
		return "unknown"
	}
}

// Token is a single lexical unit of a type signature.
type Token struct {
	Kind Kind
	Text string
	Pos  int // byte offset of the first byte
}

// TypeScanner iterates byte-by-byte over a signature and groups bytes into
// tokens. Whitespace separates tokens and is otherwise ignored; a leading
// "::" (global scope) is dropped from identifiers.
type TypeScanner struct {
	src   string
	pos   int
	depth int // template bracket depth after the last token
}

// New creates a TypeScanner for the given signature text.
func New(src string) *TypeScanner {
	return &TypeScanner{src: src, pos: -1}
}

// next advances one byte. Returns (0, false) at end of input.
func (s *TypeScanner) next() (byte, bool) {
	s.pos++
	if s.pos >= len(s.src) {
		s.pos = len(s.src)
		return 0, false
	}
	return s.src[s.pos], true
}

// Peek returns the next byte without advancing, or (0, false) at end.
func (s *TypeScanner) Peek() (byte, bool) {
	if s.pos+1 >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos+1], true
}

// LookingAt checks if the unread input starts with the given prefix.
func (s *TypeScanner) LookingAt(prefix string) bool {
	return strings.HasPrefix(s.src[s.pos+1:], prefix)
}

// Depth returns the template bracket depth reached so far.
func (s *TypeScanner) Depth() int { return s.depth }

// Src returns the full signature text being scanned.
func (s *TypeScanner) Src() string { return s.src }

// Next returns the next token. Malformed input yields an error carrying
// the byte offset.
func (s *TypeScanner) Next() (Token, error) {
	for {
		ch, ok := s.Peek()
		if !ok {
			return Token{Kind: EOF, Pos: len(s.src)}, nil
		}
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			s.next()
			continue
		}
		break
	}

	start := s.pos + 1
	ch, _ := s.next()
	switch {
	case ch == '<':
		s.depth++
		return Token{Kind: Less, Text: "<", Pos: start}, nil
	case ch == '>':
		s.depth--
		if s.depth < 0 {
			return Token{}, fmt.Errorf("offset %d: unbalanced '>'", start)
		}
		return Token{Kind: Greater, Text: ">", Pos: start}, nil
	case ch == ',':
		return Token{Kind: Comma, Text: ",", Pos: start}, nil
	case ch == '*':
		return Token{Kind: Star, Text: "*", Pos: start}, nil
	case ch == '&':
		return Token{Kind: Amp, Text: "&", Pos: start}, nil
	case ch == ':' || isIdentStart(ch):
		return s.scanName(start)
	case isDigit(ch):
		for {
			c, ok := s.Peek()
			if !ok || !isDigit(c) {
				break
			}
			s.next()
		}
		return Token{Kind: Number, Text: s.src[start : s.pos+1], Pos: start}, nil
	default:
		return Token{}, fmt.Errorf("offset %d: unexpected character %q", start, ch)
	}
}

// scanName consumes a possibly scoped identifier. The first byte has
// already been read.
func (s *TypeScanner) scanName(start int) (Token, error) {
	// rewind so the loop below sees the first byte again
	s.pos--
	var sb strings.Builder
	for {
		if s.LookingAt("::") {
			s.next()
			s.next()
			if sb.Len() > 0 {
				sb.WriteString("::")
			}
			c, ok := s.Peek()
			if !ok || !isIdentStart(c) {
				return Token{}, fmt.Errorf("offset %d: expected identifier after '::'", s.pos+1)
			}
			continue
		}
		c, ok := s.Peek()
		if !ok || !(isIdentStart(c) || isDigit(c)) {
			break
		}
		s.next()
		sb.WriteByte(c)
	}
	text := sb.String()
	if text == "" {
		return Token{}, fmt.Errorf("offset %d: expected identifier", start)
	}
	if text == "const" {
		return Token{Kind: Const, Text: text, Pos: start}, nil
	}
	return Token{Kind: Ident, Text: text, Pos: start}, nil
}

// Tokenize scans the whole input. The template brackets must balance.
func Tokenize(src string) ([]Token, error) {
	s := New(src)
	var toks []Token
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == EOF {
			break
		}
		toks = append(toks, tok)
	}
	if s.depth != 0 {
		return nil, fmt.Errorf("unbalanced '<' in %q", src)
	}
	return toks, nil
}

// FindTopLevel returns the offset of the first byte in s matching pred at
// template bracket depth 0, or -1.
func FindTopLevel(s string, pred func(ch byte) bool) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '<':
			depth++
			continue
		case '>':
			depth--
			continue
		}
		if depth == 0 && pred(ch) {
			return i
		}
	}
	return -1
}

// SplitTopLevel splits s on commas that are not nested inside template
// brackets, trimming whitespace around each part.
func SplitTopLevel(s string) []string {
	var parts []string
	for {
		i := FindTopLevel(s, func(ch byte) bool { return ch == ',' })
		if i < 0 {
			break
		}
		parts = append(parts, strings.TrimSpace(s[:i]))
		s = s[i+1:]
	}
	if t := strings.TrimSpace(s); t != "" || len(parts) > 0 {
		parts = append(parts, t)
	}
	return parts
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
