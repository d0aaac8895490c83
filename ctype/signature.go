// Package ctype parses C++ type signatures into an immutable canonical form.
//
// Two signatures are the same type iff their canonical strings are equal:
// "const  Foo &", "Foo const&" and "::Foo const &" all canonicalize to
// "const Foo&".
package ctype

import (
	"fmt"
	"strings"

	"github.com/rubiojr/bindgen/scanner"
)

// Signature is a parsed C++ type. The zero value is not a valid type; use
// Parse or MustParse.
type Signature struct {
	// Base is the (possibly scoped) type name without qualifiers, e.g.
	// "std::string", "unsigned int", "PointerHolder".
	Base string
	// Const reports whether the base type is const-qualified.
	Const bool
	// Args are the template arguments, in order.
	Args []Signature
	// Literal holds a non-type template argument ("3" in Array<int, 3>).
	Literal string
	// Pointers is the pointer depth ("Foo**" has 2).
	Pointers int
	// Reference reports a trailing '&'.
	Reference bool
}

// multiword lists the builtin type keywords that combine into one base name.
var multiword = map[string]bool{
	"unsigned": true, "signed": true, "long": true, "short": true,
	"int": true, "char": true, "double": true,
}

// Parse parses a C++ type signature.
func Parse(text string) (Signature, error) {
	toks, err := scanner.Tokenize(text)
	if err != nil {
		return Signature{}, fmt.Errorf("parsing type %q: %w", text, err)
	}
	p := &parser{toks: toks}
	sig, err := p.parseType()
	if err != nil {
		return Signature{}, fmt.Errorf("parsing type %q: %w", text, err)
	}
	if p.pos != len(p.toks) {
		return Signature{}, fmt.Errorf("parsing type %q: unexpected %s %q", text, p.toks[p.pos].Kind, p.toks[p.pos].Text)
	}
	return sig, nil
}

// MustParse is like Parse but panics on error. Intended for constants in
// tables and tests.
func MustParse(text string) Signature {
	sig, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return sig
}

type parser struct {
	toks []scanner.Token
	pos  int
}

func (p *parser) peek() scanner.Token {
	if p.pos >= len(p.toks) {
		return scanner.Token{Kind: scanner.EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) parseType() (Signature, error) {
	var sig Signature
	if p.peek().Kind == scanner.Const {
		sig.Const = true
		p.pos++
	}
	tok := p.peek()
	switch tok.Kind {
	case scanner.Ident:
	case scanner.Number:
		p.pos++
		return Signature{Literal: tok.Text}, nil
	default:
		return Signature{}, fmt.Errorf("expected type name, got %s", tok.Kind)
	}

	var words []string
	for p.peek().Kind == scanner.Ident {
		w := p.peek().Text
		if len(words) > 0 && !(multiword[w] && multiword[words[len(words)-1]]) {
			break
		}
		words = append(words, w)
		p.pos++
	}
	sig.Base = strings.Join(words, " ")

	if p.peek().Kind == scanner.Less {
		p.pos++
		for {
			arg, err := p.parseType()
			if err != nil {
				return Signature{}, err
			}
			sig.Args = append(sig.Args, arg)
			if p.peek().Kind == scanner.Comma {
				p.pos++
				continue
			}
			break
		}
		if p.peek().Kind != scanner.Greater {
			return Signature{}, fmt.Errorf("expected '>', got %s", p.peek().Kind)
		}
		p.pos++
	}

	for {
		switch p.peek().Kind {
		case scanner.Const:
			// "Foo const*" qualifies the base; const after '*' is ignored as
			// it only constrains the pointer variable itself.
			if sig.Pointers == 0 {
				sig.Const = true
			}
			p.pos++
		case scanner.Star:
			if sig.Reference {
				return Signature{}, fmt.Errorf("pointer to reference")
			}
			sig.Pointers++
			p.pos++
		case scanner.Amp:
			if sig.Reference {
				return Signature{}, fmt.Errorf("reference to reference")
			}
			sig.Reference = true
			p.pos++
		default:
			return sig, nil
		}
	}
}

// String returns the canonical form.
func (s Signature) String() string {
	if s.Literal != "" {
		return s.Literal
	}
	var sb strings.Builder
	if s.Const {
		sb.WriteString("const ")
	}
	sb.WriteString(s.Base)
	if len(s.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range s.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		// avoid the ">>" token in emitted C++
		if strings.HasSuffix(sb.String(), ">") {
			sb.WriteByte(' ')
		}
		sb.WriteByte('>')
	}
	sb.WriteString(strings.Repeat("*", s.Pointers))
	if s.Reference {
		sb.WriteByte('&')
	}
	return sb.String()
}

// Equal reports whether two signatures have the same canonical form.
func (s Signature) Equal(o Signature) bool {
	return s.String() == o.String()
}

// IsPointer reports a pointer depth of at least one.
func (s Signature) IsPointer() bool { return s.Pointers > 0 }

// IsValue reports a type that is neither pointer nor reference.
func (s Signature) IsValue() bool { return s.Pointers == 0 && !s.Reference }

// IsTemplate reports whether the signature carries template arguments.
func (s Signature) IsTemplate() bool { return len(s.Args) > 0 }

// WithoutConst returns a copy with the base const qualifier removed.
func (s Signature) WithoutConst() Signature {
	s.Const = false
	return s
}

// WithoutReference returns a copy with the reference removed.
func (s Signature) WithoutReference() Signature {
	s.Reference = false
	return s
}

// Elem strips one level of indirection: the reference if present, otherwise
// one pointer level.
func (s Signature) Elem() Signature {
	if s.Reference {
		s.Reference = false
		return s
	}
	if s.Pointers > 0 {
		s.Pointers--
	}
	return s
}

// Decl renders a C++ declaration of a variable of this type.
func (s Signature) Decl(name string) string {
	str := s.String()
	head := strings.TrimRight(str, "*&")
	return head + " " + str[len(head):] + name
}

// PointerTo returns the signature of a pointer to s (reference dropped).
func PointerTo(s Signature) Signature {
	s.Reference = false
	s.Pointers++
	return s
}

// Named builds a plain value signature for a (possibly scoped) name.
func Named(base string) Signature {
	return Signature{Base: strings.TrimPrefix(base, "::")}
}
