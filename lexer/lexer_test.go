package lexer_test

import (
	"testing"
	"testing/fstest"

	"github.com/kr/pretty"
	. "github.com/jaclang/jtype/lexer"
	"golang.org/x/exp/slices"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexerString(src)
	var got []Token
	for {
		tok := l.Next()
		got = append(got, tok)
		if tok.Type == EOF {
			return got
		}
		if len(got) > 10000 {
			t.Fatal("lexer does not terminate")
		}
	}
}

func tok(ttyp TokenType, data string) Token {
	return Token{Type: ttyp, Data: data}
}

func TestLexer(t *testing.T) {
	run := func(name, src string, expected []Token) {
		t.Run(name, func(t *testing.T) {
			got := lexAll(t, src)
			if !slices.EqualFunc(got, expected, Token.Eq) {
				t.Errorf("%s", pretty.Diff(got, expected))
			}
		})
	}
	run("empty", "", []Token{tok(EOF, "")})
	run("assignment", "x: int = 5;", []Token{
		tok(Ident, "x"), tok(Colon, ""), tok(TypInt, "int"), tok(Equals, ""), tok(Int, "5"), tok(Semicolon, ""), tok(EOF, ""),
	})
	run("archetype", "obj :pub Circle(Shape) { has radius: float = 1.5; }", []Token{
		tok(Obj, "obj"), tok(AccessPub, ""), tok(Ident, "Circle"), tok(LeftParen, ""), tok(Ident, "Shape"), tok(RightParen, ""),
		tok(LeftBrace, ""), tok(Has, "has"), tok(Ident, "radius"), tok(Colon, ""), tok(TypFloat, "float"), tok(Equals, ""),
		tok(Float, "1.5"), tok(Semicolon, ""), tok(RightBrace, ""), tok(EOF, ""),
	})
	run("ability", "def f(a: int) -> str {}", []Token{
		tok(Def, "def"), tok(Ident, "f"), tok(LeftParen, ""), tok(Ident, "a"), tok(Colon, ""), tok(TypInt, "int"),
		tok(RightParen, ""), tok(RightArrow, ""), tok(TypStr, "str"), tok(LeftBrace, ""), tok(RightBrace, ""), tok(EOF, ""),
	})
	run("comments", "# line\nx #* block\n comment *# y", []Token{
		tok(Ident, "x"), tok(Ident, "y"), tok(EOF, ""),
	})
	run("operators", "a //= b ** c // d <<= e != f", []Token{
		tok(Ident, "a"), tok(FloorDivEquals, ""), tok(Ident, "b"), tok(StarStar, ""), tok(Ident, "c"), tok(FloorDiv, ""),
		tok(Ident, "d"), tok(LeftShiftEquals, ""), tok(Ident, "e"), tok(NotEquals, ""), tok(Ident, "f"), tok(EOF, ""),
	})
	run("numbers", "0x1F 0b1010 1_000 3.14 2e10 .5", []Token{
		tok(Int, "0x1F"), tok(Int, "0b1010"), tok(Int, "1_000"), tok(Float, "3.14"), tok(Float, "2e10"), tok(Float, ".5"), tok(EOF, ""),
	})
	run("strings", `"a" 'b' f"c{x}" """multi
line"""`, []Token{
		tok(String, `"a"`), tok(String, `'b'`), tok(String, `f"c{x}"`), tok(String, "\"\"\"multi\nline\"\"\""), tok(EOF, ""),
	})
	run("colon not access", "a[1:private]", []Token{
		tok(Ident, "a"), tok(LeftBracket, ""), tok(Int, "1"), tok(Colon, ""), tok(Ident, "private"), tok(RightBracket, ""), tok(EOF, ""),
	})
	run("escaped name", "`node", []Token{tok(Ident, "node"), tok(EOF, "")})
	run("selector on number", "x.append", []Token{tok(Ident, "x"), tok(Period, ""), tok(Ident, "append"), tok(EOF, "")})
}

func TestIllegal(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated string", `"abc`},
		{"newline in string", "'a\nb'"},
		{"bad digit", "0b102"},
		{"trailing underscore", "1_"},
		{"unterminated comment", "#* never closed"},
		{"stray", "$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lexAll(t, tt.src)
			if slices.IndexFunc(got, func(tok Token) bool { return tok.Type == Illegal }) < 0 {
				t.Fatalf("no illegal token in %# v", pretty.Formatter(got))
			}
		})
	}
}

func TestPositions(t *testing.T) {
	got := lexAll(t, "x = 1;\n  y = 2.5;\n")
	want := []Pos{
		{Offset: 0, Line: 1, Column: 1},
		{Offset: 2, Line: 1, Column: 3},
		{Offset: 4, Line: 1, Column: 5},
		{Offset: 5, Line: 1, Column: 6},
		{Offset: 9, Line: 2, Column: 3},
		{Offset: 11, Line: 2, Column: 5},
		{Offset: 13, Line: 2, Column: 7},
		{Offset: 16, Line: 2, Column: 10},
	}
	for i, p := range want {
		if got[i].Span.Start != p {
			t.Errorf("token %d (%s): got %+v, want %+v", i, got[i], got[i].Span.Start, p)
		}
	}
	if end := got[6].Span.End; end.Column != 9 {
		t.Errorf("float ends at column %d", end.Column)
	}
}

func TestNewLexerExtension(t *testing.T) {
	fsys := fstest.MapFS{
		"a.jac": {Data: []byte("glob x = 1;")},
		"a.py":  {Data: []byte("x = 1")},
	}
	if _, err := NewLexer(fsys, "a.py"); err == nil {
		t.Fatal("expected an extension error")
	}
	l, err := NewLexer(fsys, "a.jac")
	if err != nil {
		t.Fatal(err)
	}
	if tok := l.Next(); tok.Type != Glob {
		t.Fatalf("got %s", tok)
	}
}
