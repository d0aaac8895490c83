package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Kind
		texts []string
	}{
		{"plain", "int", []Kind{Ident}, []string{"int"}},
		{"pointer", "Foo*", []Kind{Ident, Star}, []string{"Foo", "*"}},
		{"const ref", "const Foo &", []Kind{Const, Ident, Amp}, []string{"const", "Foo", "&"}},
		{"scoped", "std::string", []Kind{Ident}, []string{"std::string"}},
		{"global scope", "::PointerHolder<Zbr>", []Kind{Ident, Less, Ident, Greater}, []string{"PointerHolder", "<", "Zbr", ">"}},
		{"multiword", "unsigned long long", []Kind{Ident, Ident, Ident}, []string{"unsigned", "long", "long"}},
		{"template args", "std::map<int, Foo*>", []Kind{Ident, Less, Ident, Comma, Ident, Star, Greater}, nil},
		{"number arg", "Array<int, 3>", []Kind{Ident, Less, Ident, Comma, Number, Greater}, nil},
		{"trailing const", "Foo const*", []Kind{Ident, Const, Star}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Tokenize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kinds(toks))
			if tt.texts != nil {
				var texts []string
				for _, tok := range toks {
					texts = append(texts, tok.Text)
				}
				assert.Equal(t, tt.texts, texts)
			}
		})
	}
}

func TestTokenize_Errors(t *testing.T) {
	for _, input := range []string{"Foo<int", "Foo>", "Foo::", "Foo$", "a : b"} {
		_, err := Tokenize(input)
		if err == nil {
			t.Errorf("Tokenize(%q): expected error", input)
		}
	}
}

func TestTokenPositions(t *testing.T) {
	toks, err := Tokenize("const  Foo*")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, 0, toks[0].Pos)
	assert.Equal(t, 7, toks[1].Pos)
	assert.Equal(t, 10, toks[2].Pos)
}

func TestSplitTopLevel(t *testing.T) {
	assert.Equal(t, []string{"int", "std::map<int, Foo>", "bool"}, SplitTopLevel("int, std::map<int, Foo>, bool"))
	assert.Equal(t, []string{"Foo"}, SplitTopLevel(" Foo "))
	assert.Nil(t, SplitTopLevel(""))
}

func TestFindTopLevel(t *testing.T) {
	isComma := func(ch byte) bool { return ch == ',' }
	assert.Equal(t, -1, FindTopLevel("A<b, c>", isComma))
	assert.Equal(t, 7, FindTopLevel("A<b, c>, d", isComma))
}
