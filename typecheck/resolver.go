package typecheck

import (
	"log"
	"strings"

	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/diag"
	"github.com/jaclang/jtype/lexer"
	"github.com/jaclang/jtype/names"
	"github.com/jaclang/jtype/scope"
	"github.com/jaclang/jtype/types"
	"github.com/samber/lo"
)

// Env is the position an expression is evaluated at.
type Env struct {
	Info  *names.Info
	Scope *scope.Scope
}

func (e Env) In(s *scope.Scope) Env {
	if s != nil {
		e.Scope = s
	}
	return e
}

// Resolver computes the types of expressions from the symbol tables and
// the registry. Diagnostics are only produced through the report callbacks
// handed to it by the check pass.
type Resolver struct {
	registry *types.Registry
	modules  map[string]*names.Info
	rel      *types.Relation
	binary   map[*ast.BinaryExpr]types.Type
	log      *log.Logger
}

type reportFunc func(sev diag.Severity, code *diag.Code, format string, args ...any)

func NewResolver(registry *types.Registry, modules map[string]*names.Info, logger *log.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		modules:  modules,
		rel:      types.NewRelation(),
		binary:   map[*ast.BinaryExpr]types.Type{},
		log:      logger,
	}
}

func (r *Resolver) Reset() {
	r.rel = types.NewRelation()
	r.binary = map[*ast.BinaryExpr]types.Type{}
}

// CanAssign reports whether a source value may be stored in target.
func (r *Resolver) CanAssign(target, source types.Type) bool {
	return r.rel.CanAssign(target, source)
}

func (r *Resolver) instance(name string) types.Type {
	return r.registry.InstanceOf(name)
}

// GetType returns the type of e as seen from env. Expressions the resolver
// cannot type are Any.
func (r *Resolver) GetType(env Env, e ast.Expr) types.Type {
	switch e := e.(type) {
	case nil:
		return types.None
	case *ast.Name:
		return r.nameType(env, e)
	case *ast.SpecialVarRef:
		return r.specialType(env, e)
	case *ast.BuiltinType:
		return r.builtinType(e.Value)
	case *ast.Int:
		return r.instance("int")
	case *ast.Float:
		return r.instance("float")
	case *ast.String:
		return r.instance("str")
	case *ast.Bool:
		return r.instance("bool")
	case *ast.Null:
		return types.None
	case *ast.ListVal:
		return r.container("list", r.unionOf(env, e.Elems))
	case *ast.SetVal:
		return r.container("set", r.unionOf(env, e.Elems))
	case *ast.TupleVal:
		return r.container("tuple", r.unionOf(env, e.Elems))
	case *ast.DictVal:
		keys := lo.Map(e.Pairs, func(p *ast.KVPair, _ int) ast.Expr { return p.Key })
		vals := lo.Map(e.Pairs, func(p *ast.KVPair, _ int) ast.Expr { return p.Value })
		return r.container("dict", r.unionOf(env, keys), r.unionOf(env, vals))
	case *ast.KWPair:
		return r.GetType(env, e.Value)
	case *ast.BinaryExpr:
		if t, ok := r.binary[e]; ok {
			return t
		}
		t := r.binaryType(env, e, nil)
		r.binary[e] = t
		return t
	case *ast.CompareExpr:
		return r.instance("bool")
	case *ast.BoolExpr:
		return r.unionOf(env, e.Values)
	case *ast.UnaryExpr:
		if e.Op.Type == lexer.Not {
			return r.instance("bool")
		}
		return r.GetType(env, e.X)
	case *ast.IfExpr:
		return types.NewUnion(r.GetType(env, e.Then), r.GetType(env, e.Else))
	case *ast.SelectorExpr:
		return r.selectorType(env, e)
	case *ast.CallExpr:
		return r.callType(env, e)
	case *ast.IndexExpr:
		return r.indexType(env, e)
	}
	r.log.Printf("no type for %T at %s", e, e.Span())
	return types.Any
}

func (r *Resolver) unionOf(env Env, es []ast.Expr) types.Type {
	if len(es) == 0 {
		return types.Any
	}
	ts := lo.Map(es, func(e ast.Expr, _ int) types.Type { return r.GetType(env, e) })
	return types.NewUnion(ts...)
}

func (r *Resolver) container(name string, args ...types.Type) types.Type {
	return types.NewInstance(types.NewGeneric(r.registry.Builtin(name), args...))
}

func (r *Resolver) builtinType(name string) types.Type {
	switch name {
	case "any":
		return types.Any
	case "type":
		return types.Any
	}
	if c, ok := r.registry.Get("builtins." + name); ok {
		return c
	}
	return types.Any
}

func (r *Resolver) nameType(env Env, n *ast.Name) types.Type {
	sym := env.Info.Uses[n]
	if sym == nil {
		if c, ok := r.registry.Get("builtins." + n.Value); ok {
			return c
		}
		return types.Any
	}
	return r.SymbolType(env, sym)
}

// SymbolType is the current type of sym. Symbols declared in another
// module and archetypes whose symbol has not been annotated yet are looked
// up by their qualified name.
func (r *Resolver) SymbolType(env Env, sym *scope.Symbol) types.Type {
	return r.symbolType(sym, 0)
}

const maxImportDepth = 16

func (r *Resolver) symbolType(sym *scope.Symbol, depth int) types.Type {
	t := sym.Current()
	if t != types.Any {
		return t
	}
	switch {
	case sym.Kind == scope.Module:
		return types.Any
	case sym.Imported != "":
		return r.importedType(sym, depth)
	case sym.Kind.IsType():
		if c, ok := r.registry.Get(sym.QualifiedName()); ok {
			return c
		}
	}
	return t
}

func (r *Resolver) importedType(sym *scope.Symbol, depth int) types.Type {
	if depth > maxImportDepth {
		return types.Any
	}
	i := strings.LastIndexByte(sym.Imported, '.')
	if i < 0 {
		return types.Any
	}
	mod, name := sym.Imported[:i], sym.Imported[i+1:]
	if info, ok := r.modules[mod]; ok {
		if s, ok := info.Root.Lookup(name, false); ok && s != sym {
			return r.symbolType(s, depth+1)
		}
		return types.Any
	}
	if c, ok := r.registry.Get(sym.Imported); ok {
		return c
	}
	return types.Any
}

// ModulePath returns the dotted module x names when x refers to an
// imported module rather than a value.
func (r *Resolver) ModulePath(env Env, x ast.Expr) (string, bool) {
	switch x := x.(type) {
	case *ast.Name:
		sym := env.Info.Uses[x]
		if sym == nil || sym.Kind != scope.Module {
			return "", false
		}
		return sym.Imported, true
	case *ast.SelectorExpr:
		p, ok := r.ModulePath(env, x.X)
		if !ok {
			return "", false
		}
		sub := p + "." + x.Sel.Value
		if _, ok := r.modules[sub]; ok {
			return sub, true
		}
		if _, ok := r.modules[p]; ok {
			return "", false
		}
		return sub, true
	}
	return "", false
}

// ModuleMember looks up name among the top-level symbols of a local
// module. The second result is false when the module was not loaded.
func (r *Resolver) ModuleMember(path, name string) (*scope.Symbol, bool) {
	info, ok := r.modules[path]
	if !ok {
		return nil, false
	}
	sym, _ := info.Root.Lookup(name, false)
	return sym, true
}

func (r *Resolver) selectorType(env Env, e *ast.SelectorExpr) types.Type {
	if p, ok := r.ModulePath(env, e.X); ok {
		if sym, _ := r.ModuleMember(p, e.Sel.Value); sym != nil {
			return r.SymbolType(env, sym)
		}
		return types.Any
	}
	m := r.Member(r.GetType(env, e.X), e.Sel.Value)
	if m == nil || m.Type == nil {
		return types.Any
	}
	return settle(m.Type)
}

// Member returns the member called name of a type that holds members.
func (r *Resolver) Member(t types.Type, name string) *types.Member {
	switch t := t.(type) {
	case *types.Instance:
		return t.Lookup(name)
	case *types.Class:
		return t.Lookup(name)
	case *types.Generic:
		return t.Specialized().Lookup(name)
	case *types.TypeVar:
		if t.Resolved != nil {
			return r.Member(t.Resolved, name)
		}
	}
	return nil
}

// HasMembers reports whether member access on t can be checked.
func HasMembers(t types.Type) bool {
	switch t := t.(type) {
	case *types.Instance:
		return t.Class() != nil
	case *types.Class, *types.Generic:
		return true
	case *types.TypeVar:
		return t.Resolved != nil && HasMembers(t.Resolved)
	}
	return false
}

// settle replaces unbound type variables with Any.
func settle(t types.Type) types.Type {
	switch tt := t.(type) {
	case *types.TypeVar:
		if tt.Resolved == nil {
			return types.Any
		}
		return tt.Resolved
	case *types.Instance:
		if tv, ok := tt.Of.(*types.TypeVar); ok {
			if tv.Resolved == nil {
				return types.Any
			}
			return settle(tv.Resolved)
		}
	}
	return t
}

func returnType(f *types.Function) types.Type {
	if f.Return == nil {
		return types.Any
	}
	return settle(f.Return)
}

// Overload picks the signature of f that accepts the positional arguments,
// falling back to the primary one.
func (r *Resolver) Overload(env Env, f *types.Function, args []ast.Expr) *types.Function {
	if len(f.Overloads) == 0 {
		return f
	}
	var ts []types.Type
	for _, a := range args {
		if _, ok := a.(*ast.KWPair); ok {
			continue
		}
		ts = append(ts, r.GetType(env, a))
	}
	if o := f.ResolveOverload(ts); o != nil {
		return o
	}
	return f
}

func (r *Resolver) callType(env Env, e *ast.CallExpr) types.Type {
	switch f := r.GetType(env, e.Fun).(type) {
	case *types.Function:
		return returnType(r.Overload(env, f, e.Args))
	case *types.Class:
		return types.NewInstance(f)
	case *types.Generic:
		return types.NewInstance(f)
	}
	return types.Any
}

func (r *Resolver) indexType(env Env, e *ast.IndexExpr) types.Type {
	xt := r.GetType(env, e.X)
	if c, ok := xt.(*types.Class); ok && c.IsGeneric() {
		return types.NewGeneric(c, r.typeArgs(env, e.Index)...)
	}
	if _, ok := e.Index.(*ast.SliceExpr); ok {
		return xt
	}
	m := r.Member(xt, "__getitem__")
	if m == nil {
		return types.Any
	}
	f, ok := m.Type.(*types.Function)
	if !ok {
		return types.Any
	}
	o := f.ResolveOverload([]types.Type{r.GetType(env, e.Index)})
	if o == nil {
		o = f
	}
	return returnType(o)
}

func (r *Resolver) typeArgs(env Env, index ast.Expr) []types.Type {
	elems := []ast.Expr{index}
	if tv, ok := index.(*ast.TupleVal); ok {
		elems = tv.Elems
	}
	return lo.Map(elems, func(e ast.Expr, _ int) types.Type { return r.annotation(env, e) })
}

// TypeOfTag evaluates a type annotation. A missing annotation is None.
func (r *Resolver) TypeOfTag(env Env, tag *ast.TypeTag) types.Type {
	if tag == nil {
		return types.None
	}
	return r.annotation(env, tag.Type)
}

// annotation evaluates e as a type: classes denote their instances.
func (r *Resolver) annotation(env Env, e ast.Expr) types.Type {
	switch e := e.(type) {
	case nil, *ast.Null:
		return types.None
	case *ast.BinaryExpr:
		if e.Op.Type == lexer.Pipe {
			return types.NewUnion(r.annotation(env, e.Left), r.annotation(env, e.Right))
		}
	case *ast.IndexExpr:
		if c, ok := r.GetType(env, e.X).(*types.Class); ok {
			return types.NewInstance(types.NewGeneric(c, r.typeArgs(env, e.Index)...))
		}
		return types.Any
	}
	switch t := r.GetType(env, e).(type) {
	case *types.Class:
		return types.NewInstance(t)
	case *types.Generic:
		return types.NewInstance(t)
	default:
		return t
	}
}

// SetType records t as the type of an assignable expression.
func (r *Resolver) SetType(env Env, e ast.Expr, t types.Type) {
	switch e := e.(type) {
	case *ast.Name:
		if sym := env.Info.Uses[e]; sym != nil {
			sym.Scope.UpdateType(sym.Name, t, sym.Inferred)
		}
	case *ast.SelectorExpr:
		if m := r.Member(r.GetType(env, e.X), e.Sel.Value); m != nil {
			m.Type = t
			if sym, ok := m.Decl.(*scope.Symbol); ok {
				sym.Scope.UpdateType(sym.Name, t, sym.Inferred)
			}
		}
	case *ast.BinaryExpr:
		r.binary[e] = t
	}
}

// EnclosingClass returns the archetype or enum that self refers to at env.
// Impl bodies belong to the archetype of the ability they implement.
func (r *Resolver) EnclosingClass(env Env) *types.Class {
	for cur := env.Scope; cur != nil; {
		switch cur.Kind {
		case scope.ArchetypeScope, scope.EnumScope:
			c, _ := r.registry.Get(cur.QualifiedName())
			return c
		case scope.ImplScope:
			if t := cur.Target; t != nil {
				if t.Kind.IsType() {
					cur = env.Info.ScopeOf(t)
				} else {
					cur = t.Scope
				}
				continue
			}
		}
		cur = cur.Parent
	}
	return nil
}

func (r *Resolver) specialType(env Env, e *ast.SpecialVarRef) types.Type {
	c := r.EnclosingClass(env)
	if c == nil {
		return types.Any
	}
	switch e.Value {
	case "self", "here":
		return types.NewInstance(c)
	case "super":
		if len(c.Bases) > 0 {
			return types.NewInstance(c.Bases[0])
		}
		return r.instance("object")
	}
	return types.Any
}

// ElementType is the type a for loop binds when iterating over t.
func (r *Resolver) ElementType(t types.Type) types.Type {
	inst, ok := t.(*types.Instance)
	if !ok {
		return types.Any
	}
	if inst.IsBuiltin("str") {
		return r.instance("str")
	}
	if g, ok := inst.Of.(*types.Generic); ok && len(g.Args) > 0 {
		for _, name := range []string{"list", "set", "tuple", "dict"} {
			if inst.IsBuiltin(name) {
				return settle(g.Args[0])
			}
		}
	}
	return types.Any
}

var dunders = map[lexer.TokenType]string{
	lexer.Plus:       "__add__",
	lexer.Minus:      "__sub__",
	lexer.Star:       "__mul__",
	lexer.Slash:      "__truediv__",
	lexer.FloorDiv:   "__floordiv__",
	lexer.Percent:    "__mod__",
	lexer.StarStar:   "__pow__",
	lexer.At:         "__matmul__",
	lexer.Amp:        "__and__",
	lexer.Pipe:       "__or__",
	lexer.Caret:      "__xor__",
	lexer.LeftShift:  "__lshift__",
	lexer.RightShift: "__rshift__",
}

func isBuiltin(t types.Type, name string) bool {
	inst, ok := t.(*types.Instance)
	return ok && inst.IsBuiltin(name)
}

// binaryType evaluates a binary operation through the left operand's
// operator method.
func (r *Resolver) binaryType(env Env, e *ast.BinaryExpr, report reportFunc) types.Type {
	if report == nil {
		report = func(diag.Severity, *diag.Code, string, ...any) {}
	}
	op := e.Op.Text()
	lt, rt := r.GetType(env, e.Left), r.GetType(env, e.Right)
	if lt == types.Any || rt == types.Any {
		report(diag.Warning, &diag.JT2004, "Operand of '%s' has an unknown type", op)
		return types.Any
	}
	for _, t := range []types.Type{lt, rt} {
		if _, ok := t.(*types.Class); ok {
			report(diag.Warning, &diag.JT2005, "Operand of '%s' is %s rather than an instance", op, t)
			return types.Any
		}
	}
	dunder, ok := dunders[e.Op.Type]
	if !ok {
		return types.Any
	}
	if lt == types.None {
		report(diag.Error, &diag.JT1006, "Unsupported binary operation '%s' on type None", op)
		return types.Any
	}
	if !HasMembers(lt) {
		return types.Any
	}
	m := r.Member(lt, dunder)
	if m == nil {
		report(diag.Error, &diag.JT1006, "Unsupported binary operation '%s' on type %s", op, lt)
		return types.Any
	}
	f, ok := m.Type.(*types.Function)
	if !ok {
		return types.Any
	}
	switch e.Op.Type {
	case lexer.Plus, lexer.Minus, lexer.Star:
		if isBuiltin(lt, "int") && isBuiltin(rt, "float") {
			return r.instance("float")
		}
	}
	o := f.ResolveOverload([]types.Type{rt})
	if o == nil {
		report(diag.Error, &diag.JT1007, "Unsupported operand type %s for '%s' on %s", rt, op, lt)
		return types.Any
	}
	return returnType(o)
}
