package lexer

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/smasher164/xid"
)

type Lexer struct {
	ch    rune
	pos   int
	i     int // position in buffer
	err   error
	buf   []rune
	rdr   io.RuneReader
	lines []int // offsets of line starts
}

const eof = -1

const Ext = ".jac"

func isLetter(ch rune) bool {
	return ch == '_' || xid.Start(ch)
}

func isDecimal(ch rune) bool { return '0' <= ch && ch <= '9' }
func isHex(ch rune) bool {
	return '0' <= ch && ch <= '9' || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}
func isValidDigit(base int, ch rune) bool {
	switch base {
	case 2, 8, 10:
		return ch >= '0' && ch < rune('0'+base)
	default:
		return isHex(ch)
	}
}

func (l *Lexer) skipWS() {
	for unicode.IsSpace(l.ch) {
		l.next()
	}
}

func (l *Lexer) lexIdentOrKeyword() Token {
	startPos := l.pos
	l.next()
	for xid.Continue(l.ch) {
		l.next()
	}
	ident := l.bufString()
	if isStringPrefix(ident) && (l.ch == '"' || l.ch == '\'') {
		return l.lexString(startPos)
	}
	if ttyp, ok := Keywords[ident]; ok {
		return Token{Type: ttyp, Span: l.spanOf(startPos, l.pos-1), Data: ident}
	}
	return Token{Type: Ident, Span: l.spanOf(startPos, l.pos-1), Data: ident}
}

func isStringPrefix(s string) bool {
	switch strings.ToLower(s) {
	case "f", "r", "b", "rb", "br", "fr", "rf":
		return true
	}
	return false
}

// lexEscapedName lexes a backtick-escaped name such as `node, which is an
// identifier even when it spells a keyword.
func (l *Lexer) lexEscapedName() Token {
	startPos := l.pos
	l.next()
	if !isLetter(l.ch) {
		return Token{Type: Illegal, Span: l.spanOf(startPos, startPos), Data: "expected name after '`'"}
	}
	for xid.Continue(l.ch) {
		l.next()
	}
	return Token{Type: Ident, Span: l.spanOf(startPos, l.pos-1), Data: l.bufString()[1:]}
}

func (l *Lexer) lexDigits(err *Token, _allowed bool, base int) (digitCount int) {
	setErr := func(pos int, msg string) {
		if err.Type != Illegal {
			*err = Token{Type: Illegal, Span: l.spanOf(pos, pos), Data: msg}
		}
	}
	for {
		if l.ch == '_' {
			if _allowed {
				_allowed = !_allowed
			} else {
				setErr(l.pos, "'_' must separate successive digits")
			}
		} else if base == 10 && (l.ch == 'e' || l.ch == 'E') {
			if !_allowed {
				setErr(l.pos-1, "'_' must separate successive digits")
			}
			return digitCount
		} else if isHex(l.ch) {
			_allowed = true
			digitCount++
			if !isValidDigit(base, l.ch) {
				setErr(l.pos, fmt.Sprintf("%q is not a valid digit in base %d", l.ch, base))
			}
		} else {
			if !_allowed && digitCount > 0 {
				setErr(l.pos-1, "'_' must separate successive digits")
			}
			return digitCount
		}
		l.next()
	}
}

func (l *Lexer) lexNumber() Token {
	var (
		startPos   = l.pos
		base       = 10
		isFloat    = false
		digitCount = 0
		tok        Token
	)
	setErr := func(msg string) {
		if tok.Type != Illegal {
			tok = Token{Type: Illegal, Span: l.spanOf(startPos, l.pos), Data: msg}
		}
	}
	if l.ch != '.' {
		_allowed := false
		if l.ch == '0' {
			l.next()
			_allowed = true
			digitCount++
			switch l.ch {
			case 'x', 'X':
				l.next()
				base = 16
				digitCount = 0
			case 'o', 'O':
				l.next()
				base = 8
				digitCount = 0
			case 'b', 'B':
				l.next()
				base = 2
				digitCount = 0
			}
		}
		digitCount += l.lexDigits(&tok, _allowed, base)
		if base != 10 && digitCount == 0 {
			setErr("no digits in number")
		}
	}
	if l.ch == '.' && base == 10 && (isDecimal(l.peek()) || !isLetter(l.peek()) && l.peek() != '.') {
		isFloat = true
		l.next()
		digitCount += l.lexDigits(&tok, false, base)
		if digitCount == 0 {
			setErr("no digits in number")
		}
	}
	if base == 10 && (l.ch == 'e' || l.ch == 'E') {
		isFloat = true
		l.next()
		if l.ch == '+' || l.ch == '-' {
			l.next()
		}
		if count := l.lexDigits(&tok, false, 10); count == 0 {
			setErr("no digits in exponent")
		}
	}
	if tok.Type == Illegal {
		return tok
	}
	ttyp := Int
	if isFloat {
		ttyp = Float
	}
	return Token{Type: ttyp, Span: l.spanOf(startPos, l.pos-1), Data: l.bufString()}
}

func (l *Lexer) skipLineComment() {
	l.until('\n')
}

// skipBlockComment consumes a #* ... *# comment. It reports false when the
// comment is not terminated.
func (l *Lexer) skipBlockComment() bool {
	l.nextN(2)
	for l.ch != eof {
		if l.ch == '*' && l.peek() == '#' {
			l.nextN(2)
			return true
		}
		l.next()
	}
	return false
}

func (l *Lexer) lexEscape() string {
	var n int
	var base, max uint32
	switch l.ch {
	case 'a', 'b', 'f', 'n', 'r', 't', 'v', '\\', '\'', '"', '\n', '0':
		l.next()
		return ""
	case 'x':
		l.next()
		n, base, max = 2, 16, 255
	case 'u':
		l.next()
		n, base, max = 4, 16, unicode.MaxRune
	case 'U':
		l.next()
		n, base, max = 8, 16, unicode.MaxRune
	default:
		if l.ch == eof {
			return "escape sequence not terminated"
		}
		// unknown escapes are kept verbatim
		l.next()
		return ""
	}

	var x uint32
	for n > 0 {
		d, err := strconv.ParseInt(string(l.ch), int(base), 8)
		if err != nil {
			if l.ch == eof {
				return "escape sequence not terminated"
			}
			msg := fmt.Sprintf("illegal character %#U in escape sequence", l.ch)
			l.next()
			return msg
		}
		x = x*base + uint32(d)
		l.next()
		n--
	}

	if x > max || 0xD800 <= x && x < 0xE000 {
		return "escape sequence is invalid Unicode code point"
	}

	return ""
}

// lexString lexes a single, double or triple quoted string starting at
// startPos, which may precede the quote by a prefix such as f or r.
func (l *Lexer) lexString(startPos int) Token {
	quote := l.ch
	triple := false
	if q := l.checkN(3); q[0] == quote && q[1] == quote && q[2] == quote {
		triple = true
		l.nextN(3)
	} else {
		l.next()
	}
	for {
		switch l.ch {
		case eof:
			return Token{Type: Illegal, Span: l.spanOf(startPos, l.pos), Data: "unterminated string"}
		case '\n':
			if !triple {
				return Token{Type: Illegal, Span: l.spanOf(startPos, l.pos), Data: "newline in string"}
			}
			l.next()
		case quote:
			if !triple {
				l.next()
				return Token{Type: String, Span: l.spanOf(startPos, l.pos-1), Data: l.bufString()}
			}
			if q := l.checkN(3); q[1] == quote && q[2] == quote {
				l.nextN(3)
				return Token{Type: String, Span: l.spanOf(startPos, l.pos-1), Data: l.bufString()}
			}
			l.next()
		case '\\':
			l.next()
			begPos := l.pos
			if msg := l.lexEscape(); msg != "" {
				return Token{Type: Illegal, Span: l.spanOf(begPos, l.pos-1), Data: msg}
			}
		default:
			l.next()
		}
	}
}

func (l *Lexer) next() {
	if l.ch == eof {
		return
	}
	l.i++
	l.pos++
	if l.i < len(l.buf) {
		l.ch = l.buf[l.i]
	} else {
		r, _, err := l.rdr.ReadRune()
		if err != nil {
			l.ch = eof
			if err != io.EOF {
				l.err = err
			}
		} else {
			l.ch = r
		}
		l.buf = append(l.buf, l.ch)
	}
	if l.i > 0 && l.buf[l.i-1] == '\n' {
		if l.lines[len(l.lines)-1] < l.pos {
			l.lines = append(l.lines, l.pos)
		}
	}
}

func (l *Lexer) backup() {
	if l.i > 0 {
		l.i--
		l.pos--
		l.ch = l.buf[l.i]
	}
}

func (l *Lexer) peek() rune {
	if l.ch == eof {
		return eof
	}
	l.next()
	ch := l.ch
	l.backup()
	return ch
}

func (l *Lexer) checkN(n int) []rune {
	if n == 0 {
		return nil
	}
	dst := make([]rune, n)
	dst[0] = l.ch
	moved := 0
	for i := 1; i < n; i++ {
		if l.ch == eof {
			dst[i] = eof
			continue
		}
		l.next()
		moved++
		dst[i] = l.ch
	}
	for i := 0; i < moved; i++ {
		l.backup()
	}
	return dst
}

func (l *Lexer) nextN(n int) {
	for i := 0; i < n; i++ {
		l.next()
	}
}

func (l *Lexer) until(r rune) (dst []rune) {
	for l.ch != r && l.ch != eof {
		dst = append(dst, l.ch)
		l.next()
	}
	return dst
}

func (l *Lexer) bufString() string {
	return string(l.buf[:l.i])
}

func (l *Lexer) lineIndex(offset int) int {
	line, found := sort.Find(len(l.lines), func(i int) int {
		v := l.lines[i]
		if offset == v {
			return 0
		}
		if offset < v {
			return -1
		}
		return 1
	})
	if found {
		return line
	}
	return line - 1
}

func (l *Lexer) posOf(offset int) Pos {
	line := l.lineIndex(offset)
	return Pos{Offset: offset, Line: line + 1, Column: offset - l.lines[line] + 1}
}

func (l *Lexer) spanOf(off1, off2 int) Span {
	start := l.posOf(off1)
	var end Pos
	if off1 == off2 {
		end = start
	} else {
		end = l.posOf(off2)
	}
	return Span{Start: start, End: end}
}

func (l *Lexer) resetPos() {
	l.buf = l.buf[l.i:]
	l.i = 0
	l.ch = l.buf[l.i]
}

// Err returns the first read error other than io.EOF.
func (l *Lexer) Err() error {
	return l.err
}

// Next returns the next token, skipping whitespace and comments.
func (l *Lexer) Next() Token {
	defer l.resetPos()
	for {
		switch {
		case unicode.IsSpace(l.ch):
			l.skipWS()
			continue
		case l.ch == '#' && l.peek() == '*':
			startPos := l.pos
			if !l.skipBlockComment() {
				return Token{Type: Illegal, Span: l.spanOf(startPos, l.pos), Data: "comment not terminated"}
			}
			continue
		case l.ch == '#':
			l.skipLineComment()
			continue
		}
		break
	}
	l.resetPos()
	startPos := l.pos
	switch {
	case l.ch == eof:
		return Token{Type: EOF, Span: l.spanOf(startPos, startPos)}
	case isLetter(l.ch):
		return l.lexIdentOrKeyword()
	case l.ch == '`':
		return l.lexEscapedName()
	case isDecimal(l.ch) || l.ch == '.' && isDecimal(l.peek()):
		return l.lexNumber()
	case l.ch == '"' || l.ch == '\'':
		return l.lexString(startPos)
	case l.ch == ':' && isLetter(l.peek()):
		if tok, ok := l.lexAccessTag(); ok {
			return tok
		}
	}
	if ttyp, ok := TripleCharTokens[[3]rune(l.checkN(3))]; ok {
		l.nextN(3)
		return Token{Type: ttyp, Span: l.spanOf(startPos, l.pos-1)}
	}
	if ttyp, ok := DoubleCharTokens[[2]rune{l.ch, l.peek()}]; ok {
		l.nextN(2)
		return Token{Type: ttyp, Span: l.spanOf(startPos, l.pos-1)}
	}
	if ttyp, ok := SingleCharTokens[l.ch]; ok {
		l.next()
		return Token{Type: ttyp, Span: l.spanOf(startPos, startPos)}
	}
	ch := l.ch
	l.next()
	return Token{Type: Illegal, Span: l.spanOf(startPos, startPos), Data: fmt.Sprintf("unexpected character %q", ch)}
}

// lexAccessTag lexes :pub, :priv and :protect. Any other name after a
// colon leaves the lexer where it was.
func (l *Lexer) lexAccessTag() (Token, bool) {
	startPos := l.pos
	l.next()
	n := 0
	for xid.Continue(l.ch) {
		l.next()
		n++
	}
	if ttyp, ok := accessTags[l.bufString()[1:]]; ok {
		return Token{Type: ttyp, Span: l.spanOf(startPos, l.pos-1)}, true
	}
	for i := 0; i <= n; i++ {
		l.backup()
	}
	return Token{}, false
}

func newLexer(rdr io.RuneReader) *Lexer {
	l := &Lexer{
		rdr:   rdr,
		i:     -1,
		pos:   -1,
		lines: []int{0},
	}
	l.next()
	return l
}

func NewLexer(fsys fs.FS, filename string) (*Lexer, error) {
	if filepath.Ext(filename) != Ext {
		return nil, fmt.Errorf("invalid file extension %q, expected %q", filepath.Ext(filename), Ext)
	}
	src, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return nil, err
	}
	return newLexer(bytes.NewReader(src)), nil
}

func NewLexerString(src string) *Lexer {
	return newLexer(strings.NewReader(src))
}
