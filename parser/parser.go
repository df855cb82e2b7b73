package parser

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/lexer"
)

const debug = false

const maxErrors = 25

type Lexer interface {
	Next() lexer.Token
}

type parser struct {
	l        Lexer
	filename string
	tok      lexer.Token
	prev     lexer.Token
	buf      []lexer.Token
	indent   int
	errs     []error
}

// Error is a syntax error.
type Error struct {
	Filename string
	Span     lexer.Span
	Msg      string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Filename, e.Span.Start.Line, e.Span.Start.Column, e.Msg)
}

type bailout struct{}

func (p *parser) trace(msg string) func() {
	if debug {
		fmt.Printf("%*s%s %s\n", p.indent*2, "", msg, p.tok)
		p.indent++
		return func() {
			p.indent--
		}
	}
	return func() {}
}

// ModuleName derives the dotted module name of a source file.
func ModuleName(filename string) string {
	name := strings.TrimSuffix(filename, path.Ext(filename))
	name = strings.TrimSuffix(name, "/__init__")
	return strings.ReplaceAll(strings.Trim(name, "/"), "/", ".")
}

// ParseFile parses a .jac file. The returned module is usable even when
// err reports syntax errors.
func ParseFile(fsys fs.FS, filename string) (*ast.Module, error) {
	l, err := lexer.NewLexer(fsys, filename)
	if err != nil {
		return nil, err
	}
	return parse(l, filename)
}

// ParseString parses src as the module held in filename.
func ParseString(filename, src string) (*ast.Module, error) {
	return parse(lexer.NewLexerString(src), filename)
}

func parse(l *lexer.Lexer, filename string) (m *ast.Module, err error) {
	p := &parser{l: l, filename: filename}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
		}
		if lerr := l.Err(); lerr != nil {
			p.errs = append(p.errs, lerr)
		}
		err = errors.Join(p.errs...)
	}()
	m = &ast.Module{Name: ModuleName(filename), File: filename}
	p.next()
	p.parseModule(m)
	return m, nil
}

func (p *parser) next() {
	p.prev = p.tok
	if len(p.buf) > 0 {
		p.tok = p.buf[0]
		p.buf = p.buf[1:]
	} else {
		p.tok = p.l.Next()
	}
	if p.tok.Type == lexer.Illegal {
		p.errorf(p.tok.Span, "%s", p.tok.Data)
		p.next()
	}
}

func (p *parser) peek() lexer.Token {
	if len(p.buf) == 0 {
		p.buf = append(p.buf, p.l.Next())
	}
	return p.buf[0]
}

func (p *parser) errorf(span lexer.Span, format string, args ...any) {
	p.errs = append(p.errs, &Error{Filename: p.filename, Span: span, Msg: fmt.Sprintf(format, args...)})
	if len(p.errs) >= maxErrors {
		panic(bailout{})
	}
}

func (p *parser) got(ttyp lexer.TokenType) bool {
	if p.tok.Type == ttyp {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(ttyp lexer.TokenType) lexer.Token {
	tok := p.tok
	if tok.Type != ttyp {
		p.errorf(tok.Span, "expected %q, found %q", ttyp.String(), tok.Text())
		return tok
	}
	p.next()
	return tok
}

// span returns the span from start to the end of the last consumed token.
func (p *parser) span(start lexer.Span) lexer.Span {
	return start.Add(p.prev.Span)
}

// sync skips to the end of the current statement.
func (p *parser) sync() {
	if p.prev.Type == lexer.Semicolon || p.prev.Type == lexer.RightBrace {
		return
	}
	depth := 0
	for {
		switch p.tok.Type {
		case lexer.EOF:
			return
		case lexer.Semicolon:
			if depth == 0 {
				p.next()
				return
			}
		case lexer.LeftBrace:
			depth++
		case lexer.RightBrace:
			if depth == 0 {
				return
			}
			depth--
			if depth == 0 {
				p.next()
				return
			}
		}
		p.next()
	}
}

func (p *parser) parseModule(m *ast.Module) {
	defer p.trace("parseModule")()
	start := p.tok.Span
	for p.tok.Type != lexer.EOF {
		if s := p.parseStmtSafe(true); s != nil {
			m.Body = append(m.Body, s)
		}
	}
	m.Range = start.Add(p.tok.Span)
}

// parseStmtSafe parses one statement and guarantees progress.
func (p *parser) parseStmtSafe(top bool) ast.Stmt {
	before := p.tok.Span.Start.Offset
	nerrs := len(p.errs)
	var s ast.Stmt
	if top {
		s = p.parseTopStmt()
	} else {
		s = p.parseStmt()
	}
	if len(p.errs) > nerrs {
		p.sync()
	}
	if p.tok.Span.Start.Offset == before && p.tok.Type != lexer.EOF {
		p.next()
	}
	return s
}

func (p *parser) parseAccess() ast.Access {
	switch p.tok.Type {
	case lexer.AccessPub:
		p.next()
		return ast.AccessPublic
	case lexer.AccessPriv:
		p.next()
		return ast.AccessPrivate
	case lexer.AccessProtect:
		p.next()
		return ast.AccessProtected
	}
	return ast.AccessDefault
}

func (p *parser) parseDecorators() {
	for p.tok.Type == lexer.At {
		p.next()
		p.parsePostfix()
	}
}

func (p *parser) parseTopStmt() ast.Stmt {
	defer p.trace("parseTopStmt")()
	switch p.tok.Type {
	case lexer.Import, lexer.Include:
		return p.parseImport()
	case lexer.Glob:
		return p.parseGlobal()
	case lexer.With:
		if p.peek().Type == lexer.Entry {
			return p.parseModuleCode()
		}
	case lexer.Impl:
		return p.parseImpl()
	case lexer.String:
		if p.peek().Type != lexer.Semicolon {
			// docstring
			tok := p.tok
			p.next()
			return &ast.ExprStmt{Loc: ast.At(tok.Span), X: &ast.String{Loc: ast.At(tok.Span), Value: tok.Data}}
		}
	}
	return p.parseStmt()
}

func (p *parser) parseStmt() ast.Stmt {
	defer p.trace("parseStmt")()
	p.parseDecorators()
	switch p.tok.Type {
	case lexer.Obj, lexer.Node, lexer.Edge, lexer.Walker, lexer.Class:
		return p.parseArchetype()
	case lexer.Enum:
		return p.parseEnum()
	case lexer.Def, lexer.Can:
		return p.parseAbility(false)
	case lexer.Static:
		switch p.peek().Type {
		case lexer.Has:
			return p.parseHas()
		case lexer.Def, lexer.Can:
			p.next()
			return p.parseAbility(true)
		}
	case lexer.Has:
		return p.parseHas()
	case lexer.If:
		return p.parseIf()
	case lexer.While:
		return p.parseWhile()
	case lexer.For:
		return p.parseFor()
	case lexer.Return:
		return p.parseReturn()
	case lexer.Break, lexer.Continue:
		tok := p.tok
		p.next()
		p.expect(lexer.Semicolon)
		return &ast.CtrlStmt{Loc: ast.At(p.span(tok.Span)), Tok: tok}
	case lexer.LeftBrace:
		start := p.tok.Span
		body := p.parseBlock()
		return &ast.Block{Loc: ast.At(p.span(start)), Body: body}
	case lexer.Semicolon:
		p.next()
		return nil
	}
	s := p.parseSimpleStmt()
	p.expect(lexer.Semicolon)
	return s
}

func (p *parser) parseBlock() []ast.Stmt {
	defer p.trace("parseBlock")()
	p.expect(lexer.LeftBrace)
	body := []ast.Stmt{}
	for p.tok.Type != lexer.RightBrace && p.tok.Type != lexer.EOF {
		if s := p.parseStmtSafe(false); s != nil {
			body = append(body, s)
		}
	}
	p.expect(lexer.RightBrace)
	return body
}

func (p *parser) parseName() *ast.Name {
	tok := p.tok
	if !tok.IsName() {
		p.errorf(tok.Span, "expected name, found %q", tok.Text())
		return &ast.Name{Loc: ast.At(tok.Span), Value: "_"}
	}
	p.next()
	return &ast.Name{Loc: ast.At(tok.Span), Value: tok.Data}
}

func (p *parser) parseModulePath() *ast.ModulePath {
	start := p.tok.Span
	mp := &ast.ModulePath{}
	mp.Parts = append(mp.Parts, p.parseName())
	for p.got(lexer.Period) {
		mp.Parts = append(mp.Parts, p.parseName())
	}
	if p.got(lexer.As) {
		mp.Alias = p.parseName()
	}
	mp.Range = p.span(start)
	return mp
}

func (p *parser) parseImport() *ast.Import {
	defer p.trace("parseImport")()
	start := p.tok.Span
	p.next()
	// language tag, as in import:py
	if p.tok.Type == lexer.Colon {
		p.next()
		p.parseName()
	}
	imp := &ast.Import{}
	if p.got(lexer.From) {
		imp.From = p.parseModulePath()
		p.got(lexer.Comma)
		p.expect(lexer.LeftBrace)
		for p.tok.Type != lexer.RightBrace && p.tok.Type != lexer.EOF {
			istart := p.tok.Span
			it := &ast.ImportItem{Name: p.parseName()}
			if p.got(lexer.As) {
				it.Alias = p.parseName()
			}
			it.Range = p.span(istart)
			imp.Items = append(imp.Items, it)
			if !p.got(lexer.Comma) {
				break
			}
		}
		p.expect(lexer.RightBrace)
		p.got(lexer.Semicolon)
	} else {
		imp.Paths = append(imp.Paths, p.parseModulePath())
		for p.got(lexer.Comma) {
			imp.Paths = append(imp.Paths, p.parseModulePath())
		}
		p.expect(lexer.Semicolon)
	}
	imp.Range = p.span(start)
	return imp
}

func (p *parser) parseGlobal() *ast.GlobalVars {
	defer p.trace("parseGlobal")()
	start := p.tok.Span
	p.next()
	g := &ast.GlobalVars{Access: p.parseAccess()}
	for {
		s := p.parseSimpleStmt()
		a, ok := s.(*ast.Assignment)
		if !ok {
			// glob x; declares without a value
			es, _ := s.(*ast.ExprStmt)
			if es == nil {
				break
			}
			a = &ast.Assignment{Loc: es.Loc, Targets: []ast.Expr{es.X}}
		}
		g.Assigns = append(g.Assigns, a)
		if !p.got(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.Semicolon)
	g.Range = p.span(start)
	return g
}

func (p *parser) parseModuleCode() *ast.ModuleCode {
	defer p.trace("parseModuleCode")()
	start := p.tok.Span
	p.next()
	p.expect(lexer.Entry)
	mc := &ast.ModuleCode{}
	if p.got(lexer.Colon) {
		mc.Name = p.parseName()
	}
	mc.Body = p.parseBlock()
	mc.Range = p.span(start)
	return mc
}

func (p *parser) parseBases() []ast.Expr {
	var bases []ast.Expr
	if !p.got(lexer.LeftParen) {
		return nil
	}
	for p.tok.Type != lexer.RightParen && p.tok.Type != lexer.EOF {
		bases = append(bases, p.parseExpr())
		if !p.got(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RightParen)
	return bases
}

var archKinds = map[lexer.TokenType]ast.ArchKind{
	lexer.Obj:    ast.ArchObj,
	lexer.Node:   ast.ArchNode,
	lexer.Edge:   ast.ArchEdge,
	lexer.Walker: ast.ArchWalker,
	lexer.Class:  ast.ArchClass,
}

func (p *parser) parseArchetype() *ast.Archetype {
	defer p.trace("parseArchetype")()
	start := p.tok.Span
	a := &ast.Archetype{Kind: archKinds[p.tok.Type]}
	p.next()
	a.Access = p.parseAccess()
	a.Name = p.parseName()
	a.Bases = p.parseBases()
	if p.got(lexer.Semicolon) {
		a.Range = p.span(start)
		return a
	}
	a.Body = p.parseBlock()
	a.Range = p.span(start)
	return a
}

func (p *parser) parseEnum() *ast.Enum {
	defer p.trace("parseEnum")()
	start := p.tok.Span
	p.next()
	e := &ast.Enum{Access: p.parseAccess()}
	e.Name = p.parseName()
	e.Bases = p.parseBases()
	if p.got(lexer.Semicolon) {
		e.Range = p.span(start)
		return e
	}
	p.expect(lexer.LeftBrace)
	for p.tok.Type == lexer.Ident {
		vstart := p.tok.Span
		v := &ast.EnumVariant{Name: p.parseName()}
		if p.got(lexer.Equals) {
			v.Value = p.parseExpr()
		}
		v.Range = p.span(vstart)
		e.Variants = append(e.Variants, v)
		if !p.got(lexer.Comma) {
			break
		}
	}
	p.got(lexer.Semicolon)
	for p.tok.Type != lexer.RightBrace && p.tok.Type != lexer.EOF {
		if s := p.parseStmtSafe(false); s != nil {
			e.Body = append(e.Body, s)
		}
	}
	p.expect(lexer.RightBrace)
	e.Range = p.span(start)
	return e
}

func (p *parser) parseHas() *ast.Has {
	defer p.trace("parseHas")()
	start := p.tok.Span
	h := &ast.Has{}
	if p.got(lexer.Static) {
		h.Static = true
	}
	p.expect(lexer.Has)
	h.Access = p.parseAccess()
	for {
		vstart := p.tok.Span
		v := &ast.HasVar{Name: p.parseName()}
		if p.tok.Type == lexer.Colon {
			p.next()
			v.Type = p.parseTypeTag()
		}
		if p.got(lexer.Equals) {
			v.Value = p.parseExpr()
		}
		if p.got(lexer.By) {
			// by postinit
			p.parseName()
		}
		v.Range = p.span(vstart)
		h.Vars = append(h.Vars, v)
		if !p.got(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.Semicolon)
	h.Range = p.span(start)
	return h
}

func (p *parser) parseTypeTag() *ast.TypeTag {
	start := p.tok.Span
	t := p.parseTernary()
	return &ast.TypeTag{Loc: ast.At(p.span(start)), Type: t}
}

func (p *parser) parseAbility(static bool) *ast.Ability {
	defer p.trace("parseAbility")()
	start := p.tok.Span
	p.next()
	ab := &ast.Ability{Static: static, Access: p.parseAccess()}
	ab.Name = p.parseName()
	ab.Name.Value = ast.CanonicalName(ab.Name.Value)
	switch p.tok.Type {
	case lexer.LeftParen:
		ab.Sig = p.parseSignature()
	case lexer.With:
		ab.Event = p.parseEventSig()
	case lexer.RightArrow:
		sstart := p.tok.Span
		p.next()
		ab.Sig = &ast.Signature{Return: p.parseTypeTag()}
		ab.Sig.Range = p.span(sstart)
	}
	switch {
	case p.got(lexer.Abs):
		ab.Abstract = true
		p.expect(lexer.Semicolon)
	case p.got(lexer.Semicolon):
	default:
		ab.HasBody = true
		ab.Body = p.parseBlock()
	}
	ab.Range = p.span(start)
	return ab
}

func (p *parser) parseEventSig() *ast.EventSig {
	start := p.tok.Span
	p.expect(lexer.With)
	ev := &ast.EventSig{}
	if p.tok.Type != lexer.Entry && p.tok.Type != lexer.Exit {
		ev.Type = p.parseTypeTag()
	}
	switch p.tok.Type {
	case lexer.Entry:
		ev.Entry = true
		p.next()
	case lexer.Exit:
		p.next()
	default:
		p.errorf(p.tok.Span, "expected entry or exit, found %q", p.tok.Text())
	}
	ev.Range = p.span(start)
	return ev
}

func (p *parser) parseSignature() *ast.Signature {
	defer p.trace("parseSignature")()
	start := p.tok.Span
	sig := &ast.Signature{}
	p.expect(lexer.LeftParen)
	for p.tok.Type != lexer.RightParen && p.tok.Type != lexer.EOF {
		if p.tok.Type == lexer.Self && sig.Params == nil {
			// explicit self is implied
			p.next()
			if !p.got(lexer.Comma) {
				break
			}
			continue
		}
		pstart := p.tok.Span
		param := &ast.Param{}
		switch {
		case p.got(lexer.Star):
			param.Kind = ast.ParamStar
		case p.got(lexer.StarStar):
			param.Kind = ast.ParamDoubleStar
		}
		param.Name = p.parseName()
		if p.got(lexer.Colon) {
			param.Type = p.parseTypeTag()
		}
		if p.got(lexer.Equals) {
			param.Default = p.parseExpr()
		}
		param.Range = p.span(pstart)
		sig.Params = append(sig.Params, param)
		if !p.got(lexer.Comma) {
			break
		}
	}
	p.expect(lexer.RightParen)
	if p.got(lexer.RightArrow) {
		sig.Return = p.parseTypeTag()
	}
	sig.Range = p.span(start)
	return sig
}

func (p *parser) parseImpl() *ast.ImplDef {
	defer p.trace("parseImpl")()
	start := p.tok.Span
	p.next()
	d := &ast.ImplDef{}
	d.Target = append(d.Target, p.parseName())
	for p.got(lexer.Period) {
		n := p.parseName()
		n.Value = ast.CanonicalName(n.Value)
		d.Target = append(d.Target, n)
	}
	switch p.tok.Type {
	case lexer.LeftParen:
		d.Sig = p.parseSignature()
	case lexer.With:
		d.Event = p.parseEventSig()
	case lexer.RightArrow:
		sstart := p.tok.Span
		p.next()
		d.Sig = &ast.Signature{Return: p.parseTypeTag()}
		d.Sig.Range = p.span(sstart)
	}
	d.Body = p.parseBlock()
	d.Range = p.span(start)
	return d
}

func (p *parser) parseIf() *ast.If {
	defer p.trace("parseIf")()
	start := p.tok.Span
	p.next()
	n := &ast.If{Cond: p.parseExpr()}
	n.Body = p.parseBlock()
	switch p.tok.Type {
	case lexer.Elif:
		n.Else = p.parseIf()
	case lexer.Else:
		estart := p.tok.Span
		p.next()
		body := p.parseBlock()
		n.Else = &ast.Block{Loc: ast.At(p.span(estart)), Body: body}
	}
	n.Range = p.span(start)
	return n
}

func (p *parser) parseWhile() *ast.While {
	defer p.trace("parseWhile")()
	start := p.tok.Span
	p.next()
	n := &ast.While{Cond: p.parseExpr()}
	n.Body = p.parseBlock()
	n.Range = p.span(start)
	return n
}

func (p *parser) parseFor() *ast.For {
	defer p.trace("parseFor")()
	start := p.tok.Span
	p.next()
	n := &ast.For{Target: p.parseTargetList()}
	p.expect(lexer.In)
	n.Iter = p.parseExpr()
	n.Body = p.parseBlock()
	n.Range = p.span(start)
	return n
}

func (p *parser) parseTargetList() ast.Expr {
	start := p.tok.Span
	first := p.parseBinary(lexer.MinPrec + 4)
	if p.tok.Type != lexer.Comma {
		return first
	}
	elems := []ast.Expr{first}
	for p.got(lexer.Comma) {
		elems = append(elems, p.parseBinary(lexer.MinPrec+4))
	}
	return &ast.TupleVal{Loc: ast.At(p.span(start)), Elems: elems}
}

func (p *parser) parseReturn() *ast.Return {
	defer p.trace("parseReturn")()
	start := p.tok.Span
	p.next()
	r := &ast.Return{}
	if p.tok.Type != lexer.Semicolon {
		r.Value = p.parseExprList()
	}
	p.expect(lexer.Semicolon)
	r.Range = p.span(start)
	return r
}

// parseExprList parses a, b, c as a tuple and a single expression as is.
func (p *parser) parseExprList() ast.Expr {
	start := p.tok.Span
	first := p.parseExpr()
	if p.tok.Type != lexer.Comma {
		return first
	}
	elems := []ast.Expr{first}
	for p.got(lexer.Comma) {
		if p.tok.Type == lexer.Semicolon {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	return &ast.TupleVal{Loc: ast.At(p.span(start)), Elems: elems}
}

// parseSimpleStmt parses an expression statement or an assignment without
// the terminating semicolon.
func (p *parser) parseSimpleStmt() ast.Stmt {
	defer p.trace("parseSimpleStmt")()
	start := p.tok.Span
	x := p.parseExprList()
	switch {
	case p.tok.Type == lexer.Colon:
		p.next()
		a := &ast.Assignment{Targets: []ast.Expr{x}, Type: p.parseTypeTag()}
		if p.got(lexer.Equals) {
			a.Value = p.parseExprList()
		}
		a.Range = p.span(start)
		return a
	case p.tok.Type == lexer.Equals || p.tok.Type == lexer.ColonEquals:
		a := &ast.Assignment{Targets: []ast.Expr{x}}
		for p.tok.Type == lexer.Equals || p.tok.Type == lexer.ColonEquals {
			p.next()
			v := p.parseExprList()
			if p.tok.Type == lexer.Equals {
				a.Targets = append(a.Targets, v)
				continue
			}
			a.Value = v
		}
		a.Range = p.span(start)
		return a
	case p.tok.IsAssign():
		op := lexer.AugmentedOps[p.tok.Type]
		p.next()
		a := &ast.Assignment{Targets: []ast.Expr{x}, AugOp: op, Value: p.parseExprList()}
		a.Range = p.span(start)
		return a
	}
	return &ast.ExprStmt{Loc: ast.At(p.span(start)), X: x}
}

func (p *parser) parseExpr() ast.Expr {
	return p.parseTernary()
}

func (p *parser) parseTernary() ast.Expr {
	start := p.tok.Span
	x := p.parseOr()
	if p.tok.Type != lexer.If {
		return x
	}
	p.next()
	cond := p.parseOr()
	p.expect(lexer.Else)
	els := p.parseTernary()
	return &ast.IfExpr{Loc: ast.At(p.span(start)), Then: x, Cond: cond, Else: els}
}

func (p *parser) parseBoolOp(ttyp lexer.TokenType, operand func() ast.Expr) ast.Expr {
	start := p.tok.Span
	x := operand()
	if p.tok.Type != ttyp {
		return x
	}
	op := p.tok
	values := []ast.Expr{x}
	for p.got(ttyp) {
		values = append(values, operand())
	}
	return &ast.BoolExpr{Loc: ast.At(p.span(start)), Op: op, Values: values}
}

func (p *parser) parseOr() ast.Expr {
	return p.parseBoolOp(lexer.Or, p.parseAnd)
}

func (p *parser) parseAnd() ast.Expr {
	return p.parseBoolOp(lexer.And, p.parseNot)
}

func (p *parser) parseNot() ast.Expr {
	if p.tok.Type == lexer.Not {
		op := p.tok
		p.next()
		x := p.parseNot()
		return &ast.UnaryExpr{Loc: ast.At(op.Span.Add(x.Span())), Op: op, X: x}
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() ast.Expr {
	start := p.tok.Span
	x := p.parseBinary(lexer.MinPrec + 4)
	var ops []lexer.Token
	var rights []ast.Expr
	for {
		op := p.tok
		switch {
		case op.Type == lexer.Not && p.peek().Type == lexer.In:
			p.next()
			op.Data = "not in"
		case op.Type == lexer.Is:
			if p.peek().Type == lexer.Not {
				p.next()
				op.Data = "is not"
			}
		case !op.IsComparison():
			if ops == nil {
				return x
			}
			return &ast.CompareExpr{Loc: ast.At(p.span(start)), Left: x, Ops: ops, Rights: rights}
		}
		p.next()
		ops = append(ops, op)
		rights = append(rights, p.parseBinary(lexer.MinPrec+4))
	}
}

// parseBinary parses arithmetic and bitwise operators with precedence
// climbing.
func (p *parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		op := p.tok
		prec := op.Prec()
		if prec < minPrec || op.IsComparison() || prec < lexer.MinPrec+4 {
			return left
		}
		p.next()
		next := prec + 1
		if op.IsRightAssoc() {
			next = prec
		}
		right := p.parseBinary(next)
		left = &ast.BinaryExpr{Loc: ast.At(left.Span().Add(right.Span())), Left: left, Op: op, Right: right}
	}
}

func (p *parser) parseUnary() ast.Expr {
	switch p.tok.Type {
	case lexer.Minus, lexer.Plus, lexer.Tilde:
		op := p.tok
		p.next()
		x := p.parseUnary()
		return &ast.UnaryExpr{Loc: ast.At(op.Span.Add(x.Span())), Op: op, X: x}
	}
	return p.parsePower()
}

func (p *parser) parsePower() ast.Expr {
	x := p.parsePostfix()
	if p.tok.Type != lexer.StarStar {
		return x
	}
	op := p.tok
	p.next()
	y := p.parseUnary()
	return &ast.BinaryExpr{Loc: ast.At(x.Span().Add(y.Span())), Left: x, Op: op, Right: y}
}

func (p *parser) parsePostfix() ast.Expr {
	x := p.parseAtom()
	for {
		switch p.tok.Type {
		case lexer.Period:
			p.next()
			sel := p.parseName()
			sel.Value = ast.CanonicalName(sel.Value)
			x = &ast.SelectorExpr{Loc: ast.At(x.Span().Add(sel.Span())), X: x, Sel: sel}
		case lexer.LeftParen:
			p.next()
			args := p.parseArgs()
			end := p.expect(lexer.RightParen)
			x = &ast.CallExpr{Loc: ast.At(x.Span().Add(end.Span)), Fun: x, Args: args}
		case lexer.LeftBracket:
			p.next()
			idx := p.parseIndex()
			end := p.expect(lexer.RightBracket)
			x = &ast.IndexExpr{Loc: ast.At(x.Span().Add(end.Span)), X: x, Index: idx}
		default:
			return x
		}
	}
}

func (p *parser) parseArgs() []ast.Expr {
	var args []ast.Expr
	for p.tok.Type != lexer.RightParen && p.tok.Type != lexer.EOF {
		if p.tok.IsName() && p.peek().Type == lexer.Equals {
			key := p.parseName()
			p.next()
			v := p.parseExpr()
			args = append(args, &ast.KWPair{Loc: ast.At(key.Span().Add(v.Span())), Key: key, Value: v})
		} else {
			args = append(args, p.parseExpr())
		}
		if !p.got(lexer.Comma) {
			break
		}
	}
	return args
}

func (p *parser) parseIndex() ast.Expr {
	start := p.tok.Span
	var elems []ast.Expr
	for p.tok.Type != lexer.RightBracket && p.tok.Type != lexer.EOF {
		elems = append(elems, p.parseSliceOrExpr())
		if !p.got(lexer.Comma) {
			break
		}
	}
	switch len(elems) {
	case 0:
		p.errorf(p.tok.Span, "expected index expression")
		return &ast.Null{Loc: ast.At(start)}
	case 1:
		return elems[0]
	}
	return &ast.TupleVal{Loc: ast.At(p.span(start)), Elems: elems}
}

func (p *parser) parseSliceOrExpr() ast.Expr {
	start := p.tok.Span
	var lo ast.Expr
	if p.tok.Type != lexer.Colon {
		lo = p.parseExpr()
		if p.tok.Type != lexer.Colon {
			return lo
		}
	}
	s := &ast.SliceExpr{Lo: lo}
	p.expect(lexer.Colon)
	if p.tok.Type != lexer.Colon && p.tok.Type != lexer.RightBracket && p.tok.Type != lexer.Comma {
		s.Hi = p.parseExpr()
	}
	if p.got(lexer.Colon) && p.tok.Type != lexer.RightBracket && p.tok.Type != lexer.Comma {
		s.Step = p.parseExpr()
	}
	s.Range = p.span(start)
	return s
}

func (p *parser) parseAtom() ast.Expr {
	tok := p.tok
	switch {
	case tok.Type == lexer.Ident:
		p.next()
		return &ast.Name{Loc: ast.At(tok.Span), Value: tok.Data}
	case tok.Type == lexer.Self, tok.Type == lexer.Here, tok.Type == lexer.Super, tok.Type == lexer.Root:
		p.next()
		return &ast.SpecialVarRef{Loc: ast.At(tok.Span), Value: tok.Data}
	case tok.IsBuiltinType():
		p.next()
		return &ast.BuiltinType{Loc: ast.At(tok.Span), Value: tok.Data}
	case tok.Type == lexer.Int:
		p.next()
		return &ast.Int{Loc: ast.At(tok.Span), Value: tok.Data}
	case tok.Type == lexer.Float:
		p.next()
		return &ast.Float{Loc: ast.At(tok.Span), Value: tok.Data}
	case tok.Type == lexer.String:
		p.next()
		s := &ast.String{Loc: ast.At(tok.Span), Value: tok.Data}
		for p.tok.Type == lexer.String {
			s.Value += " " + p.tok.Data
			s.Range = s.Range.Add(p.tok.Span)
			p.next()
		}
		return s
	case tok.Type == lexer.True, tok.Type == lexer.False:
		p.next()
		return &ast.Bool{Loc: ast.At(tok.Span), Value: tok.Type == lexer.True}
	case tok.Type == lexer.None:
		p.next()
		return &ast.Null{Loc: ast.At(tok.Span)}
	case tok.Type == lexer.LeftParen:
		return p.parseParen()
	case tok.Type == lexer.LeftBracket:
		p.next()
		elems := p.parseExprs(lexer.RightBracket)
		end := p.expect(lexer.RightBracket)
		return &ast.ListVal{Loc: ast.At(tok.Span.Add(end.Span)), Elems: elems}
	case tok.Type == lexer.LeftBrace:
		return p.parseBraces()
	}
	p.errorf(tok.Span, "unexpected %q in expression", tok.Text())
	return &ast.Null{Loc: ast.At(tok.Span)}
}

func (p *parser) parseExprs(end lexer.TokenType) []ast.Expr {
	var elems []ast.Expr
	for p.tok.Type != end && p.tok.Type != lexer.EOF {
		elems = append(elems, p.parseExpr())
		if !p.got(lexer.Comma) {
			break
		}
	}
	return elems
}

func (p *parser) parseParen() ast.Expr {
	start := p.tok.Span
	p.next()
	if p.tok.Type == lexer.RightParen {
		end := p.expect(lexer.RightParen)
		return &ast.TupleVal{Loc: ast.At(start.Add(end.Span))}
	}
	x := p.parseExpr()
	if p.tok.Type != lexer.Comma {
		p.expect(lexer.RightParen)
		return x
	}
	elems := []ast.Expr{x}
	for p.got(lexer.Comma) {
		if p.tok.Type == lexer.RightParen {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	end := p.expect(lexer.RightParen)
	return &ast.TupleVal{Loc: ast.At(start.Add(end.Span)), Elems: elems}
}

func (p *parser) parseBraces() ast.Expr {
	start := p.tok.Span
	p.next()
	if p.tok.Type == lexer.RightBrace {
		end := p.expect(lexer.RightBrace)
		return &ast.DictVal{Loc: ast.At(start.Add(end.Span))}
	}
	first := p.parseExpr()
	if p.tok.Type != lexer.Colon {
		elems := []ast.Expr{first}
		if p.got(lexer.Comma) {
			elems = append(elems, p.parseExprs(lexer.RightBrace)...)
		}
		end := p.expect(lexer.RightBrace)
		return &ast.SetVal{Loc: ast.At(start.Add(end.Span)), Elems: elems}
	}
	d := &ast.DictVal{}
	key := first
	for {
		p.expect(lexer.Colon)
		v := p.parseExpr()
		d.Pairs = append(d.Pairs, &ast.KVPair{Loc: ast.At(key.Span().Add(v.Span())), Key: key, Value: v})
		if !p.got(lexer.Comma) || p.tok.Type == lexer.RightBrace {
			break
		}
		key = p.parseExpr()
	}
	end := p.expect(lexer.RightBrace)
	d.Range = start.Add(end.Span)
	return d
}
