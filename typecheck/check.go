package typecheck

import (
	"errors"
	"log"

	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/diag"
	"github.com/jaclang/jtype/lexer"
	"github.com/jaclang/jtype/names"
	"github.com/jaclang/jtype/scope"
	"github.com/jaclang/jtype/types"
)

type checker struct {
	c    *Checker
	r    *Resolver
	info *names.Info
	file string
	log  *log.Logger
}

// check validates the statements of a module against the annotated types.
func (c *Checker) check(info *names.Info) {
	k := &checker{
		c:    c,
		r:    c.resolver,
		info: info,
		file: info.Module.File,
		log:  c.checkLog,
	}
	k.log.Printf("module %s", info.Module.Name)
	k.stmts(Env{Info: info, Scope: info.Root}, info.Module.Body)
}

func (k *checker) errorf(n ast.Node, code *diag.Code, format string, args ...any) {
	k.c.sink.AddError(k.file, n.Span(), code, format, args...)
}

func (k *checker) warnf(n ast.Node, code *diag.Code, format string, args ...any) {
	k.c.sink.AddWarning(k.file, n.Span(), code, format, args...)
}

func (k *checker) reporter(n ast.Node) reportFunc {
	return func(sev diag.Severity, code *diag.Code, format string, args ...any) {
		switch sev {
		case diag.Error:
			k.errorf(n, code, format, args...)
		case diag.Warning:
			k.warnf(n, code, format, args...)
		}
	}
}

// invariant reports a broken checker assumption. It only stops the build
// when typing asserts are enabled.
func (k *checker) invariant(n ast.Node, msg string) {
	if k.c.settings.TypingAsserts {
		panic(&StructuralError{Node: n, Err: errors.New(msg)})
	}
	k.log.Printf("%s: %s", n.Span(), msg)
}

func (k *checker) stmts(env Env, body []ast.Stmt) {
	for _, s := range body {
		k.stmt(env, s)
	}
}

// stmt checks one statement. A failure inside the checker is logged and
// only abandons that statement.
func (k *checker) stmt(env Env, s ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*StructuralError); ok || k.c.settings.TypingAsserts {
				panic(r)
			}
			k.log.Printf("%s: internal error: %v", s.Span(), r)
		}
	}()
	switch s := s.(type) {
	case *ast.Archetype:
		k.stmts(env.In(k.info.Scopes[s]), s.Body)
	case *ast.Enum:
		inner := env.In(k.info.Scopes[s])
		for _, v := range s.Variants {
			k.expr(inner, v.Value)
		}
		k.stmts(inner, s.Body)
	case *ast.Ability:
		inner := env.In(k.info.Scopes[s])
		k.defaults(inner, s.Sig)
		k.stmts(inner, s.Body)
	case *ast.ImplDef:
		inner := env.In(k.info.Scopes[s])
		k.defaults(inner, s.Sig)
		k.stmts(inner, s.Body)
	case *ast.Has:
		k.has(env, s)
	case *ast.GlobalVars:
		for _, a := range s.Assigns {
			k.assign(env, a)
		}
	case *ast.Assignment:
		k.assign(env, s)
	case *ast.ExprStmt:
		k.expr(env, s.X)
	case *ast.Return:
		k.ret(env, s)
	case *ast.If:
		k.ifStmt(env, s)
	case *ast.Block:
		k.stmts(env, s.Body)
	case *ast.ModuleCode:
		k.stmts(env, s.Body)
	case *ast.While:
		k.expr(env, s.Cond)
		k.stmts(env, s.Body)
	case *ast.For:
		k.expr(env, s.Iter)
		k.store(env, s.Target, k.r.ElementType(k.r.GetType(env, s.Iter)))
		k.stmts(env, s.Body)
	}
}

func (k *checker) defaults(env Env, sig *ast.Signature) {
	if sig == nil {
		return
	}
	for _, p := range sig.Params {
		if p.Default == nil {
			continue
		}
		k.expr(env, p.Default)
		sym := k.info.Decls[p]
		if sym == nil || p.Type == nil || p.Kind != ast.ParamNormal {
			continue
		}
		got := k.r.GetType(env, p.Default)
		if !k.r.CanAssign(sym.Current(), got) {
			k.errorf(p.Default, &diag.JT1004, "Can't assign a value %s to a parameter '%s' of type %s", got, p.Name.Value, types.Name(sym.Current()))
		}
	}
}

func (k *checker) has(env Env, s *ast.Has) {
	for _, v := range s.Vars {
		if v.Value == nil {
			continue
		}
		k.expr(env, v.Value)
		sym := k.info.Decls[v]
		if sym == nil || v.Type == nil || sym.Decl() != ast.Node(v) {
			continue
		}
		k.assignable(v.Value, sym.Current(), k.r.GetType(env, v.Value))
	}
}

func (k *checker) assignable(n ast.Node, want, got types.Type) {
	if !k.r.CanAssign(want, got) {
		k.errorf(n, &diag.JT1001, "Can't assign a value %s to a %s object", got, want)
	}
}

func (k *checker) assign(env Env, s *ast.Assignment) {
	k.expr(env, s.Value)
	for _, t := range s.Targets {
		k.target(env, t)
	}
	value := s.Value
	if s.IsAug() && len(s.Targets) > 0 {
		// The operands were validated above; only the operator is checked.
		bin := &ast.BinaryExpr{
			Loc:   s.Loc,
			Left:  s.Targets[0],
			Op:    lexer.Token{Type: s.AugOp, Span: s.Span()},
			Right: s.Value,
		}
		k.r.SetType(env, bin, k.r.binaryType(env, bin, k.reporter(bin)))
		value = bin
	}
	if value == nil {
		return
	}
	vt := k.r.GetType(env, value)
	for _, t := range s.Targets {
		if n, ok := t.(*ast.Name); ok && s.Type != nil {
			k.annotated(env, n, s, vt)
			continue
		}
		k.storeAt(env, t, vt, s)
	}
}

// annotated checks `x: T = v` against the T written on the statement, which
// differs from the symbol's type when x is redefined later.
func (k *checker) annotated(env Env, n *ast.Name, s *ast.Assignment, vt types.Type) {
	if k.info.Uses[n] == nil {
		return
	}
	k.assignable(s, k.r.TypeOfTag(env, s.Type), vt)
}

// target validates the parts of an assignment target that are read.
func (k *checker) target(env Env, t ast.Expr) {
	switch t := t.(type) {
	case *ast.SelectorExpr, *ast.IndexExpr, *ast.CallExpr:
		k.chain(env, t)
	case *ast.TupleVal:
		for _, e := range t.Elems {
			k.target(env, e)
		}
	case *ast.ListVal:
		for _, e := range t.Elems {
			k.target(env, e)
		}
	}
}

func (k *checker) store(env Env, target ast.Expr, vt types.Type) {
	k.storeAt(env, target, vt, target)
}

// storeAt checks that a value of type vt can be stored in target. The
// first binding of an unannotated variable gives it its type.
func (k *checker) storeAt(env Env, target ast.Expr, vt types.Type, at ast.Node) {
	switch t := target.(type) {
	case *ast.Name:
		sym := k.info.Uses[t]
		if sym == nil {
			return
		}
		if sym.Inferred && sym.Current() == types.Any && sym.Decl() == ast.Node(t) {
			if vt != types.None {
				sym.Scope.UpdateType(sym.Name, vt, true)
				k.log.Printf("%s inferred as %s", sym.QualifiedName(), types.Name(vt))
			}
			return
		}
		k.assignable(at, sym.Current(), vt)
	case *ast.SelectorExpr:
		if _, ok := k.r.ModulePath(env, t.X); ok {
			return
		}
		recv := k.r.GetType(env, t.X)
		if !HasMembers(recv) {
			return
		}
		m := k.r.Member(recv, t.Sel.Value)
		if m == nil {
			return
		}
		if m.Synthesized && !m.IsMethod && m.Type == types.Any {
			m.Type = vt
			return
		}
		k.assignable(at, m.Type, vt)
	case *ast.IndexExpr:
		recv := k.r.GetType(env, t.X)
		m := k.r.Member(recv, "__setitem__")
		if m == nil {
			return
		}
		if f, ok := m.Type.(*types.Function); ok {
			if p, ok := f.Positional(1); ok {
				k.assignable(at, settle(p.Type), vt)
			}
		}
	case *ast.TupleVal:
		for _, e := range t.Elems {
			k.storeAt(env, e, k.r.ElementType(vt), at)
		}
	case *ast.ListVal:
		for _, e := range t.Elems {
			k.storeAt(env, e, k.r.ElementType(vt), at)
		}
	case *ast.CallExpr:
		k.errorf(t, &diag.JT1016, "Can't assign to a function call")
	}
}

func (k *checker) ret(env Env, s *ast.Return) {
	k.expr(env, s.Value)
	ab := env.Scope.Enclosing(scope.AbilityScope, scope.ImplScope)
	if ab == nil {
		k.errorf(s, nil, "'return' outside of an ability")
		return
	}
	var sym *scope.Symbol
	var event bool
	switch n := ab.Node.(type) {
	case *ast.Ability:
		sym = k.info.Decls[n]
		event = n.Event != nil
	case *ast.ImplDef:
		sym = ab.Target
		event = n.Event != nil
	}
	if event {
		if s.Value != nil {
			k.c.sink.AddInfo(k.file, s.Span(), "Value returned from an event ability is discarded")
		}
		return
	}
	if sym == nil {
		return
	}
	f, ok := sym.Type.(*types.Function)
	if !ok {
		return
	}
	if f.Return == types.None {
		if s.Value != nil && k.r.GetType(env, s.Value) != types.None {
			k.warnf(s, &diag.JT2002, "Ability returns None but a value is returned")
		}
		return
	}
	got := k.r.GetType(env, s.Value)
	if !k.r.CanAssign(f.Return, got) {
		k.errorf(s, &diag.JT1002, "Can't return %s from an ability returning %s", got, f.Return)
	}
}

func (k *checker) ifStmt(env Env, s *ast.If) {
	k.expr(env, s.Cond)
	sym, then, els := k.narrowing(env, s.Cond)
	if then != nil {
		sym.PushConstraint(then)
	}
	k.stmts(env, s.Body)
	if then != nil {
		sym.PopConstraint()
	}
	if s.Else == nil {
		return
	}
	if els != nil {
		sym.PushConstraint(els)
	}
	k.stmt(env, s.Else)
	if els != nil {
		sym.PopConstraint()
	}
}

// narrowing recognizes `x is None` and `x is not None` on a variable with
// an optional type and returns the type of x in each branch.
func (k *checker) narrowing(env Env, cond ast.Expr) (sym *scope.Symbol, then, els types.Type) {
	cmp, ok := cond.(*ast.CompareExpr)
	if !ok || len(cmp.Ops) != 1 {
		return nil, nil, nil
	}
	n, ok := cmp.Left.(*ast.Name)
	if _, null := cmp.Rights[0].(*ast.Null); !ok || !null {
		return nil, nil, nil
	}
	sym = k.info.Uses[n]
	if sym == nil {
		return nil, nil, nil
	}
	u, ok := sym.Current().(*types.Union)
	if !ok || !u.Contains(types.None) {
		return nil, nil, nil
	}
	some := u.Narrow(func(t types.Type) bool { return t != types.None })
	switch cmp.Ops[0].Text() {
	case "is not", "!=":
		return sym, some, types.None
	case "is", "==":
		return sym, types.None, some
	}
	return nil, nil, nil
}

// expr validates every operation inside e.
func (k *checker) expr(env Env, e ast.Expr) {
	switch e := e.(type) {
	case nil:
		return
	case *ast.SelectorExpr, *ast.CallExpr, *ast.IndexExpr:
		k.chain(env, e)
		return
	case *ast.BinaryExpr:
		k.expr(env, e.Left)
		k.expr(env, e.Right)
		k.r.SetType(env, e, k.r.binaryType(env, e, k.reporter(e)))
		return
	}
	k.children(env, e)
}

func (k *checker) children(env Env, n ast.Node) {
	for _, c := range ast.Children(n) {
		if x, ok := c.(ast.Expr); ok {
			k.expr(env, x)
		} else {
			k.children(env, c)
		}
	}
}

// chain validates a.b(c)[d] left to right. The first missing member ends
// the validation of the chain.
func (k *checker) chain(env Env, e ast.Expr) {
	root, links := ast.Chain(e)
	k.expr(env, root)
	for _, l := range links {
		switch l := l.(type) {
		case *ast.CallExpr:
			for _, a := range l.Args {
				k.expr(env, a)
			}
		case *ast.IndexExpr:
			k.expr(env, l.Index)
		}
	}
	for _, l := range links {
		ok := true
		switch l := l.(type) {
		case *ast.SelectorExpr:
			ok = k.selector(env, l)
		case *ast.CallExpr:
			ok = k.call(env, l)
		}
		if !ok {
			return
		}
	}
}

func (k *checker) selector(env Env, sel *ast.SelectorExpr) bool {
	name := sel.Sel.Value
	if p, ok := k.r.ModulePath(env, sel.X); ok {
		sym, loaded := k.r.ModuleMember(p, name)
		if !loaded || sym != nil {
			return true
		}
		if _, sub := k.r.modules[p+"."+name]; sub {
			return true
		}
		k.errorf(sel.Sel, &diag.JT1005, "No member called '%s' in module '%s'", name, p)
		return false
	}
	recv := k.r.GetType(env, sel.X)
	if recv == types.None {
		k.errorf(sel.Sel, &diag.JT1005, "No member called '%s' in None object", name)
		return false
	}
	if !HasMembers(recv) {
		return true
	}
	m := k.r.Member(recv, name)
	if _, isClass := recv.(*types.Class); isClass && m != nil && m.Kind == types.InstanceMember && !m.IsMethod {
		m = nil
	}
	if m == nil {
		k.errorf(sel.Sel, &diag.JT1005, "No member called '%s' in %s object", name, recv)
		return false
	}
	return true
}

func (k *checker) call(env Env, call *ast.CallExpr) bool {
	ft := k.r.GetType(env, call.Fun)
	switch f := ft.(type) {
	case *types.Function:
		k.args(env, call, k.r.Overload(env, f, call.Args))
	case *types.Class:
		if f.Abstract {
			k.errorf(call, &diag.JT1009, "Can't create an object from an abstract class")
			return false
		}
		if m := f.Lookup("__init__"); m != nil {
			if ctor, ok := m.Type.(*types.Function); ok {
				k.args(env, call, k.r.Overload(env, ctor, call.Args))
			}
		}
	case *types.Instance:
		if m := f.Lookup("__call__"); m != nil {
			if fn, ok := m.Type.(*types.Function); ok {
				k.args(env, call, k.r.Overload(env, fn, call.Args))
			}
		} else if HasMembers(f) {
			k.errorf(call, &diag.JT1014, "%s object is not callable", f)
			return false
		}
	default:
		switch {
		case ft == types.None:
			k.errorf(call, &diag.JT1014, "None object is not callable")
			return false
		case ft == types.Any:
			k.log.Printf("%s: call to %s with unknown type", call.Span(), ast.Format(call.Fun))
		}
	}
	return true
}

// args matches the arguments of a call to the parameters of f: positional
// arguments by position, keyword arguments by name.
func (k *checker) args(env Env, call *ast.CallExpr, f *types.Function) {
	bound := map[string]bool{}
	pos := 0
	keyword, tooMany := false, false
	for _, a := range call.Args {
		if kw, ok := a.(*ast.KWPair); ok {
			keyword = true
			p, ok := f.Param(kw.Key.Value)
			if !ok {
				k.errorf(kw.Key, &diag.JT1011, "No parameter named '%s'", kw.Key.Value)
				continue
			}
			bound[p.Name] = true
			k.argument(env, kw.Value, p)
			continue
		}
		if keyword {
			k.invariant(a, "positional argument follows keyword argument")
		}
		p, ok := f.Positional(pos)
		pos++
		if !ok {
			if !tooMany {
				k.errorf(a, &diag.JT1012, "Too many positional arguments")
				tooMany = true
			}
			continue
		}
		bound[p.Name] = true
		k.argument(env, a, p)
	}
	for _, p := range f.Required() {
		if !bound[p.Name] {
			k.errorf(call, &diag.JT1013, "Missing argument for parameter '%s'", p.Name)
		}
	}
}

func (k *checker) argument(env Env, arg ast.Expr, p types.Param) {
	got := k.r.GetType(env, arg)
	want := settle(p.Type)
	if !k.r.CanAssign(want, got) {
		k.errorf(arg, &diag.JT1004, "Can't assign a value %s to a parameter '%s' of type %s", got, p.Name, types.Name(want))
	}
}
