package lexer

import "fmt"

type TokenType int

const (
	EOF TokenType = iota
	Illegal

	Ident
	Int
	Float
	String

	Plus
	Minus
	Star
	Slash
	FloorDiv
	Percent
	StarStar
	At
	Amp
	Pipe
	Caret
	Tilde
	LeftShift
	RightShift

	LessThan
	GreaterThan
	LessThanEquals
	GreaterThanEquals
	EqualEqual
	NotEquals

	Equals
	PlusEquals
	MinusEquals
	StarEquals
	SlashEquals
	FloorDivEquals
	PercentEquals
	StarStarEquals
	AmpEquals
	PipeEquals
	CaretEquals
	LeftShiftEquals
	RightShiftEquals
	ColonEquals

	Colon
	Semicolon
	Comma
	Period
	RightArrow
	QuestionMark
	LeftParen
	RightParen
	LeftBrace
	RightBrace
	LeftBracket
	RightBracket

	AccessPub
	AccessPriv
	AccessProtect

	Import
	From
	Include
	Obj
	Node
	Edge
	Walker
	Class
	Enum
	Def
	Can
	Has
	Static
	Abs
	Impl
	Glob
	With
	Entry
	Exit
	Return
	If
	Elif
	Else
	While
	For
	In
	To
	By
	Break
	Continue
	And
	Or
	Not
	Is
	As
	True
	False
	None
	Self
	Here
	Super
	Root

	TypInt
	TypFloat
	TypStr
	TypBool
	TypList
	TypDict
	TypTuple
	TypSet
	TypBytes
	TypAny
	TypType
)

var tokenNames = map[TokenType]string{
	EOF:               "end of file",
	Illegal:           "illegal token",
	Ident:             "identifier",
	Int:               "integer",
	Float:             "float",
	String:            "string",
	Plus:              "+",
	Minus:             "-",
	Star:              "*",
	Slash:             "/",
	FloorDiv:          "//",
	Percent:           "%",
	StarStar:          "**",
	At:                "@",
	Amp:               "&",
	Pipe:              "|",
	Caret:             "^",
	Tilde:             "~",
	LeftShift:         "<<",
	RightShift:        ">>",
	LessThan:          "<",
	GreaterThan:       ">",
	LessThanEquals:    "<=",
	GreaterThanEquals: ">=",
	EqualEqual:        "==",
	NotEquals:         "!=",
	Equals:            "=",
	PlusEquals:        "+=",
	MinusEquals:       "-=",
	StarEquals:        "*=",
	SlashEquals:       "/=",
	FloorDivEquals:    "//=",
	PercentEquals:     "%=",
	StarStarEquals:    "**=",
	AmpEquals:         "&=",
	PipeEquals:        "|=",
	CaretEquals:       "^=",
	LeftShiftEquals:   "<<=",
	RightShiftEquals:  ">>=",
	ColonEquals:       ":=",
	Colon:             ":",
	Semicolon:         ";",
	Comma:             ",",
	Period:            ".",
	RightArrow:        "->",
	QuestionMark:      "?",
	LeftParen:         "(",
	RightParen:        ")",
	LeftBrace:         "{",
	RightBrace:        "}",
	LeftBracket:       "[",
	RightBracket:      "]",
	AccessPub:         ":pub",
	AccessPriv:        ":priv",
	AccessProtect:     ":protect",
}

func init() {
	for kw, t := range Keywords {
		tokenNames[t] = kw
	}
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var Keywords = map[string]TokenType{
	"import":   Import,
	"from":     From,
	"include":  Include,
	"obj":      Obj,
	"node":     Node,
	"edge":     Edge,
	"walker":   Walker,
	"class":    Class,
	"enum":     Enum,
	"def":      Def,
	"can":      Can,
	"has":      Has,
	"static":   Static,
	"abs":      Abs,
	"impl":     Impl,
	"glob":     Glob,
	"with":     With,
	"entry":    Entry,
	"exit":     Exit,
	"return":   Return,
	"if":       If,
	"elif":     Elif,
	"else":     Else,
	"while":    While,
	"for":      For,
	"in":       In,
	"to":       To,
	"by":       By,
	"break":    Break,
	"continue": Continue,
	"and":      And,
	"or":       Or,
	"not":      Not,
	"is":       Is,
	"as":       As,
	"True":     True,
	"False":    False,
	"None":     None,
	"self":     Self,
	"here":     Here,
	"super":    Super,
	"root":     Root,
	"int":      TypInt,
	"float":    TypFloat,
	"str":      TypStr,
	"bool":     TypBool,
	"list":     TypList,
	"dict":     TypDict,
	"tuple":    TypTuple,
	"set":      TypSet,
	"bytes":    TypBytes,
	"any":      TypAny,
	"type":     TypType,
}

var accessTags = map[string]TokenType{
	"pub":     AccessPub,
	"priv":    AccessPriv,
	"protect": AccessProtect,
}

var SingleCharTokens = map[rune]TokenType{
	'+': Plus,
	'-': Minus,
	'*': Star,
	'/': Slash,
	'%': Percent,
	'@': At,
	'&': Amp,
	'|': Pipe,
	'^': Caret,
	'~': Tilde,
	'<': LessThan,
	'>': GreaterThan,
	'=': Equals,
	':': Colon,
	';': Semicolon,
	',': Comma,
	'.': Period,
	'?': QuestionMark,
	'(': LeftParen,
	')': RightParen,
	'{': LeftBrace,
	'}': RightBrace,
	'[': LeftBracket,
	']': RightBracket,
	eof: EOF,
}

var DoubleCharTokens = map[[2]rune]TokenType{
	{'-', '>'}: RightArrow,
	{'*', '*'}: StarStar,
	{'/', '/'}: FloorDiv,
	{'<', '='}: LessThanEquals,
	{'<', '<'}: LeftShift,
	{'>', '='}: GreaterThanEquals,
	{'>', '>'}: RightShift,
	{'=', '='}: EqualEqual,
	{'!', '='}: NotEquals,
	{':', '='}: ColonEquals,
	{'+', '='}: PlusEquals,
	{'-', '='}: MinusEquals,
	{'*', '='}: StarEquals,
	{'/', '='}: SlashEquals,
	{'%', '='}: PercentEquals,
	{'&', '='}: AmpEquals,
	{'|', '='}: PipeEquals,
	{'^', '='}: CaretEquals,
}

var TripleCharTokens = map[[3]rune]TokenType{
	{'/', '/', '='}: FloorDivEquals,
	{'*', '*', '='}: StarStarEquals,
	{'<', '<', '='}: LeftShiftEquals,
	{'>', '>', '='}: RightShiftEquals,
}

// AugmentedOps maps an augmented assignment to its binary operator.
var AugmentedOps = map[TokenType]TokenType{
	PlusEquals:       Plus,
	MinusEquals:      Minus,
	StarEquals:       Star,
	SlashEquals:      Slash,
	FloorDivEquals:   FloorDiv,
	PercentEquals:    Percent,
	StarStarEquals:   StarStar,
	AmpEquals:        Amp,
	PipeEquals:       Pipe,
	CaretEquals:      Caret,
	LeftShiftEquals:  LeftShift,
	RightShiftEquals: RightShift,
}

type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) Min(other Pos) Pos {
	if p.Line == 0 {
		return other
	}
	if other.Line == 0 {
		return p
	}
	if p.Offset < other.Offset {
		return p
	}
	return other
}

func (p Pos) Max(other Pos) Pos {
	if p.Line == 0 {
		return other
	}
	if other.Line == 0 {
		return p
	}
	if p.Offset > other.Offset {
		return p
	}
	return other
}

type Span struct {
	Start Pos
	End   Pos
}

func (span Span) Add(other Span) Span {
	return Span{span.Start.Min(other.Start), span.End.Max(other.End)}
}

func (s Span) String() string {
	if s.Start == s.End {
		return fmt.Sprintf("%d:%d", s.Start.Line, s.Start.Column)
	}
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%d:%d-%d", s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

type Token struct {
	Type TokenType
	Span Span
	Data string
}

func (t Token) String() string {
	if t.Data == "" {
		return fmt.Sprintf("%s:%s", t.Span, t.Type)
	}
	return fmt.Sprintf("%s:%s %q", t.Span, t.Type, t.Data)
}

func (b Token) Eq(a Token) bool {
	return a.Type == b.Type && a.Data == b.Data
}

// Text is the source form of the token.
func (t Token) Text() string {
	if t.Data != "" {
		return t.Data
	}
	return t.Type.String()
}

func (t Token) IsKeyword() bool {
	return t.Type >= Import && t.Type <= TypType
}

func (t Token) IsBuiltinType() bool {
	return t.Type >= TypInt && t.Type <= TypType
}

// IsName reports whether the token can be used where a name is expected,
// e.g. after a period or as a keyword argument.
func (t Token) IsName() bool {
	return t.Type == Ident || t.IsKeyword()
}

const MinPrec = 1

// Prec is the binding power of a binary operator, or 0.
func (t Token) Prec() int {
	switch t.Type {
	case Or:
		return 1
	case And:
		return 2
	case LessThan, GreaterThan, LessThanEquals, GreaterThanEquals, EqualEqual, NotEquals, Is, In:
		return 4
	case Pipe:
		return 5
	case Caret:
		return 6
	case Amp:
		return 7
	case LeftShift, RightShift:
		return 8
	case Plus, Minus:
		return 9
	case Star, Slash, FloorDiv, Percent, At:
		return 10
	case StarStar:
		return 12
	}
	return 0
}

func (t Token) IsRightAssoc() bool {
	return t.Type == StarStar
}

func (t Token) IsComparison() bool {
	return t.Prec() == 4
}

func (t Token) IsAssign() bool {
	if t.Type == Equals || t.Type == ColonEquals {
		return true
	}
	_, ok := AugmentedOps[t.Type]
	return ok
}
