package typecheck

import (
	"log"

	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/diag"
	"github.com/jaclang/jtype/names"
	"github.com/jaclang/jtype/scope"
	"github.com/jaclang/jtype/types"
	"github.com/samber/lo"
)

type annotator struct {
	c    *Checker
	r    *Resolver
	info *names.Info
	file string
	log  *log.Logger

	implOf map[*scope.Symbol]*ast.ImplDef
	impls  []*ast.ImplDef
	ctors  []*ast.Archetype
	seen   map[*types.Class]bool
}

// annotate gives every declaration of a module its declared type.
func (c *Checker) annotate(info *names.Info) {
	a := &annotator{
		c:      c,
		r:      c.resolver,
		info:   info,
		file:   info.Module.File,
		log:    c.annotateLog,
		implOf: map[*scope.Symbol]*ast.ImplDef{},
		seen:   map[*types.Class]bool{},
	}
	for impl, target := range info.Impls {
		a.implOf[target] = impl
	}
	a.log.Printf("module %s", info.Module.Name)
	a.declareShells()
	root := Env{Info: info, Scope: info.Root}
	a.stmts(root, info.Module.Body)
	for _, impl := range a.impls {
		inner := root.In(info.Scopes[impl])
		a.stmts(inner, impl.Body)
		a.impl(inner, impl)
	}
	for _, s := range a.ctors {
		a.constructor(s)
	}
}

func (a *annotator) errorf(n ast.Node, code *diag.Code, format string, args ...any) {
	a.c.sink.AddError(a.file, n.Span(), code, format, args...)
}

func (a *annotator) warnf(n ast.Node, code *diag.Code, format string, args ...any) {
	a.c.sink.AddWarning(a.file, n.Span(), code, format, args...)
}

// declareShells registers an empty class for every archetype and enum so
// that declarations can refer to types declared after them.
func (a *annotator) declareShells() {
	ast.Inspect(a.info.Module, func(n ast.Node) bool {
		var abstract bool
		switch n := n.(type) {
		case *ast.Archetype:
			abstract = n.Abstract()
		case *ast.Enum:
		default:
			return true
		}
		sym := a.info.Decls[n]
		if sym == nil {
			return true
		}
		cls, ok := a.c.registry.Get(sym.QualifiedName())
		if !ok {
			cls = types.NewClass(sym.Scope.QualifiedName(), sym.Name)
			a.c.registry.Register(cls)
			a.log.Printf("registered %s", cls.FullName)
		}
		if a.seen[cls] {
			cls.Abstract = cls.Abstract || abstract
		} else {
			cls.Abstract = abstract
			a.seen[cls] = true
		}
		sym.Type = cls
		sym.Inferred = false
		return true
	})
}

// shell returns the class registered for a type symbol. A missing shell
// means declareShells did not run for this module.
func (a *annotator) shell(n ast.Node, sym *scope.Symbol) *types.Class {
	cls, ok := a.c.registry.Get(sym.QualifiedName())
	if !ok {
		panic(&StructuralError{Node: n, Err: ErrMissingShell})
	}
	return cls
}

func (a *annotator) stmts(env Env, body []ast.Stmt) {
	for _, s := range body {
		a.stmt(env, s)
	}
}

func (a *annotator) stmt(env Env, s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Archetype:
		a.stmts(env.In(a.info.Scopes[s]), s.Body)
		a.archetype(env, s)
	case *ast.Enum:
		a.stmts(env.In(a.info.Scopes[s]), s.Body)
		a.enum(env, s)
	case *ast.Ability:
		a.stmts(env.In(a.info.Scopes[s]), s.Body)
		a.ability(env, s)
	case *ast.ImplDef:
		a.impls = append(a.impls, s)
	case *ast.Has:
		a.has(env, s)
	case *ast.GlobalVars:
		for _, as := range s.Assigns {
			a.assign(env, as)
		}
	case *ast.Assignment:
		a.assign(env, s)
	case *ast.ModuleCode:
		a.stmts(env, s.Body)
	case *ast.Block:
		a.stmts(env, s.Body)
	case *ast.If:
		a.stmts(env, s.Body)
		if s.Else != nil {
			a.stmt(env, s.Else)
		}
	case *ast.While:
		a.stmts(env, s.Body)
	case *ast.For:
		a.stmts(env, s.Body)
	}
}

func (a *annotator) assign(env Env, s *ast.Assignment) {
	if s.Type == nil {
		if !s.IsAug() && inConstructor(env) {
			for _, t := range s.Targets {
				a.dynamicMember(env, t)
			}
		}
		return
	}
	t := a.r.TypeOfTag(env, s.Type)
	for _, target := range s.Targets {
		n, ok := target.(*ast.Name)
		if !ok {
			a.errorf(target, &diag.JT1015, "Only a name can be annotated, not %s", ast.Format(target))
			continue
		}
		sym := a.info.Uses[n]
		if sym == nil {
			continue
		}
		if old := sym.Type; old != nil && old != types.Any && !types.IsSameType(old, t) {
			a.warnf(n, &diag.JT2001, "Can't redefine %s to be %s", n.Value, types.Name(t))
		}
		sym.Type = t
		sym.Inferred = false
		a.log.Printf("%s: %s", sym.QualifiedName(), types.Name(t))
	}
}

// inConstructor reports whether env is the body of __init__, either inline
// or through an impl.
func inConstructor(env Env) bool {
	s := env.Scope.Enclosing(scope.AbilityScope, scope.ImplScope)
	if s == nil {
		return false
	}
	if s.Kind == scope.ImplScope {
		return s.Target != nil && s.Target.Name == "__init__"
	}
	return s.Name == "__init__"
}

// dynamicMember adds an Any member for `self.x = ...` when the class has
// no member x yet.
func (a *annotator) dynamicMember(env Env, target ast.Expr) {
	sel, ok := target.(*ast.SelectorExpr)
	if !ok {
		return
	}
	self, ok := sel.X.(*ast.SpecialVarRef)
	if !ok || self.Value != "self" {
		return
	}
	cls := a.r.EnclosingClass(env)
	if cls == nil || cls.Lookup(sel.Sel.Value) != nil {
		return
	}
	cls.Instance[sel.Sel.Value] = &types.Member{
		Name:        sel.Sel.Value,
		Type:        types.Any,
		Kind:        types.InstanceMember,
		Synthesized: true,
	}
	a.log.Printf("dynamic member %s.%s", cls.FullName, sel.Sel.Value)
}

func (a *annotator) signature(env Env, sig *ast.Signature) *types.Function {
	f := &types.Function{Return: types.None}
	if sig == nil {
		return f
	}
	f.Return = a.r.TypeOfTag(env, sig.Return)
	for _, p := range sig.Params {
		t := types.Type(types.Any)
		if p.Type != nil {
			t = a.r.TypeOfTag(env, p.Type)
		}
		param := types.Param{Name: p.Name.Value, Type: t, Optional: p.Default != nil}
		symType := t
		switch p.Kind {
		case ast.ParamStar:
			param.Kind = types.VarArgs
			symType = a.r.container("tuple", t)
		case ast.ParamDoubleStar:
			param.Kind = types.KwArgs
			symType = a.r.container("dict", a.r.instance("str"), t)
		}
		if sym := a.info.Decls[p]; sym != nil {
			sym.Type = symType
			sym.Inferred = false
		}
		f.Params = append(f.Params, param)
	}
	return f
}

func (a *annotator) ability(env Env, s *ast.Ability) {
	sym := a.info.Decls[s]
	if sym == nil {
		return
	}
	f := a.signature(env.In(a.info.Scopes[s]), s.Sig)
	if s.Event != nil {
		f.Return = types.None
	}
	sym.Type = f
	sym.Inferred = false
	a.log.Printf("%s: %s", sym.QualifiedName(), f)

	impl := a.implOf[sym]
	if f.Return == types.None || s.Abstract || (!s.HasBody && impl == nil) {
		return
	}
	body := s.Body
	if impl != nil {
		body = append(body[:len(body):len(body)], impl.Body...)
	}
	if !hasReturn(body) {
		a.errorf(s.Name, &diag.JT1003, "Missing return statement")
	}
}

func hasReturn(body []ast.Stmt) bool {
	return lo.SomeBy(body, func(s ast.Stmt) bool {
		return len(ast.Find[*ast.Return](s)) > 0
	})
}

// impl types the parameters of an impl body. Parameters without an
// annotation take the type declared by the ability.
func (a *annotator) impl(env Env, s *ast.ImplDef) {
	target := a.info.Impls[s]
	if target == nil || s.Sig == nil {
		return
	}
	f, _ := target.Type.(*types.Function)
	for _, p := range s.Sig.Params {
		sym := a.info.Decls[p]
		if sym == nil {
			continue
		}
		switch {
		case p.Type != nil:
			sym.Type = a.r.TypeOfTag(env, p.Type)
		case f != nil:
			if fp, ok := f.Param(p.Name.Value); ok {
				sym.Type = fp.Type
			}
		}
		sym.Inferred = false
	}
}

func (a *annotator) has(env Env, s *ast.Has) {
	for _, v := range s.Vars {
		sym := a.info.Decls[v]
		if sym == nil {
			continue
		}
		if sym.Decl() != ast.Node(v) {
			a.errorf(v.Name, &diag.JT1008, "'%s' was defined before", v.Name.Value)
			continue
		}
		sym.Inferred = false
		if v.Type == nil {
			a.errorf(v.Name, &diag.JT1010, "Field '%s' needs a type annotation", v.Name.Value)
			sym.Type = types.Any
			continue
		}
		sym.Type = a.r.TypeOfTag(env, v.Type)
	}
}

// lastDecl is the node that completes the declaration of sym; earlier ones
// are forward declarations.
func lastDecl[T ast.Node](sym *scope.Symbol) (T, bool) {
	for i := len(sym.Defs) - 1; i >= 0; i-- {
		if n, ok := sym.Defs[i].(T); ok {
			return n, true
		}
	}
	var zero T
	return zero, false
}

func (a *annotator) archetype(env Env, s *ast.Archetype) {
	sym := a.info.Decls[s]
	if sym == nil {
		return
	}
	if last, _ := lastDecl[*ast.Archetype](sym); last != s {
		return
	}
	cls := a.shell(s, sym)
	a.members(cls, a.info.Scopes[s])
	a.bases(env, cls, s.Bases)
	a.ctors = append(a.ctors, s)
}

func (a *annotator) enum(env Env, s *ast.Enum) {
	sym := a.info.Decls[s]
	if sym == nil {
		return
	}
	if last, _ := lastDecl[*ast.Enum](sym); last != s {
		return
	}
	cls := a.shell(s, sym)
	for _, v := range s.Variants {
		if vs := a.info.Decls[v]; vs != nil {
			vs.Type = types.NewInstance(cls)
			vs.Inferred = false
		}
	}
	a.members(cls, a.info.Scopes[s])
	for name, t := range map[string]types.Type{"name": a.r.instance("str"), "value": types.Any} {
		if _, ok := cls.Instance[name]; !ok {
			cls.Instance[name] = &types.Member{Name: name, Type: t, Synthesized: true}
		}
	}
	a.bases(env, cls, s.Bases)
}

// members rebuilds the member tables of cls from the symbols of its scope.
// Members added for `self.x` assignments are kept.
func (a *annotator) members(cls *types.Class, s *scope.Scope) {
	old := cls.Instance
	cls.Instance = map[string]*types.Member{}
	cls.Static = map[string]*types.Member{}
	if s == nil {
		return
	}
	for _, sym := range s.Symbols() {
		switch sym.Kind {
		case scope.Field, scope.Method, scope.Ability, scope.Variant, scope.Archetype, scope.Enum:
		default:
			continue
		}
		m := &types.Member{
			Name:       sym.Name,
			Type:       sym.Current(),
			Visibility: sym.Access,
			IsMethod:   sym.Kind.IsMethod(),
			Decl:       sym,
		}
		if sym.Static || sym.Kind.IsType() {
			m.Kind = types.ClassMember
			cls.Static[sym.Name] = m
		} else {
			cls.Instance[sym.Name] = m
		}
	}
	for name, m := range old {
		if !m.Synthesized || m.IsMethod {
			continue
		}
		if _, ok := cls.Instance[name]; !ok {
			cls.Instance[name] = m
		}
	}
}

func (a *annotator) bases(env Env, cls *types.Class, exprs []ast.Expr) {
	cls.Bases = nil
	for _, e := range exprs {
		base, ok := a.r.GetType(env, e).(*types.Class)
		if !ok || base == cls {
			a.warnf(e, &diag.JT2003, "Can't resolve base class %s", ast.Format(e))
			continue
		}
		cls.Bases = append(cls.Bases, base)
	}
	if len(cls.Bases) == 0 {
		if obj, ok := a.c.registry.Get("builtins.object"); ok {
			cls.Bases = []*types.Class{obj}
		}
	}
}

// constructor fixes the return type of a declared __init__ or synthesizes
// one from the fields of the archetype and all of its ancestors, nearest
// first.
func (a *annotator) constructor(s *ast.Archetype) {
	sym := a.info.Decls[s]
	inner := a.info.Scopes[s]
	cls := a.shell(s, sym)
	if decl, ok := inner.Lookup("__init__", false); ok && decl.Kind.IsMethod() {
		if f, ok := decl.Type.(*types.Function); ok {
			f.Return = types.NewInstance(cls)
		}
		return
	}
	f := &types.Function{Return: types.NewInstance(cls)}
	seen := map[string]bool{}
	for _, fs := range inner.Symbols() {
		if fs.Kind != scope.Field || fs.Static || seen[fs.Name] {
			continue
		}
		seen[fs.Name] = true
		f.Params = append(f.Params, types.Param{Name: fs.Name, Type: fs.Current(), Optional: hasDefault(fs)})
	}
	visited := map[*types.Class]bool{cls: true}
	var inherit func(c *types.Class)
	inherit = func(c *types.Class) {
		for _, base := range c.Bases {
			if visited[base] {
				continue
			}
			visited[base] = true
			for _, m := range base.Fields() {
				if m.Synthesized || seen[m.Name] {
					continue
				}
				seen[m.Name] = true
				fs, _ := m.Decl.(*scope.Symbol)
				f.Params = append(f.Params, types.Param{Name: m.Name, Type: m.Type, Optional: fs != nil && hasDefault(fs)})
			}
			inherit(base)
		}
	}
	inherit(cls)
	cls.Instance["__init__"] = &types.Member{
		Name:        "__init__",
		Type:        f,
		Kind:        types.InstanceMember,
		IsMethod:    true,
		Synthesized: true,
	}
	a.log.Printf("synthesized %s.__init__%s", cls.FullName, f)
}

func hasDefault(sym *scope.Symbol) bool {
	v, ok := sym.Decl().(*ast.HasVar)
	return ok && v.Value != nil
}
