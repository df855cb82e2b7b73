// Package names builds the scope tree of a module and binds every name to
// the symbol it refers to.
package names

import (
	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/scope"
	"github.com/jaclang/jtype/types"
	"github.com/samber/lo"
)

type Info struct {
	Module *ast.Module
	Root   *scope.Scope

	// Scopes maps archetypes, enums, abilities and impls to the scope they
	// open.
	Scopes map[ast.Node]*scope.Scope

	// Decls maps declaring nodes to their symbol: archetypes, enums,
	// variants, has-vars, abilities, params and import items.
	Decls map[ast.Node]*scope.Symbol

	Uses  map[*ast.Name]*scope.Symbol
	Impls map[*ast.ImplDef]*scope.Symbol

	// Unbound lists names with no declaration in scope, such as builtin
	// functions.
	Unbound []*ast.Name
}

// ScopeOf returns the scope opened by the declaration of sym.
func (info *Info) ScopeOf(sym *scope.Symbol) *scope.Scope {
	if sym == nil {
		return nil
	}
	return info.Scopes[sym.Decl()]
}

type use struct {
	name  *ast.Name
	scope *scope.Scope
}

type resolver struct {
	info    *Info
	tab     *scope.Table
	pending []use
	impls   []*ast.ImplDef
}

// Resolve declares every symbol of m and then binds each use.
func Resolve(m *ast.Module) *Info {
	root := scope.New(scope.ModuleScope, m.Name, m, nil)
	r := &resolver{
		info: &Info{
			Module: m,
			Root:   root,
			Scopes: map[ast.Node]*scope.Scope{m: root},
			Decls:  map[ast.Node]*scope.Symbol{},
			Uses:   map[*ast.Name]*scope.Symbol{},
			Impls:  map[*ast.ImplDef]*scope.Symbol{},
		},
		tab: scope.NewTable(root),
	}
	r.declareStmts(m.Body)
	for _, impl := range r.impls {
		r.linkImpl(impl)
	}
	for _, u := range r.pending {
		if sym := r.info.Lookup(u.scope, u.name.Value); sym != nil {
			r.bind(u.name, sym)
		} else {
			r.info.Unbound = append(r.info.Unbound, u.name)
		}
	}
	return r.info
}

func access(a ast.Access) types.Visibility {
	switch a {
	case ast.AccessPrivate:
		return types.Private
	case ast.AccessProtected:
		return types.Protected
	}
	return types.Public
}

func (r *resolver) bind(n *ast.Name, sym *scope.Symbol) {
	r.info.Uses[n] = sym
	sym.Uses = append(sym.Uses, n)
}

func (r *resolver) define(n *ast.Name, kind scope.SymbolKind, decl ast.Node) *scope.Symbol {
	sym := r.tab.Current().Define(n.Value, kind, nil, decl, false)
	r.info.Uses[n] = sym
	if decl != nil {
		r.info.Decls[decl] = sym
	}
	return sym
}

func (r *resolver) enter(kind scope.Kind, name string, node ast.Node) *scope.Scope {
	s := r.tab.Enter(kind, name, node)
	r.info.Scopes[node] = s
	return s
}

func (r *resolver) declareStmts(body []ast.Stmt) {
	for _, s := range body {
		r.declare(s)
	}
}

func (r *resolver) declare(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Import:
		r.declareImport(s)
	case *ast.Archetype:
		sym := r.define(s.Name, scope.Archetype, s)
		sym.Access = access(s.Access)
		r.uses(s.Bases...)
		r.enter(scope.ArchetypeScope, s.Name.Value, s)
		r.declareStmts(s.Body)
		r.tab.Exit()
	case *ast.Enum:
		sym := r.define(s.Name, scope.Enum, s)
		sym.Access = access(s.Access)
		r.uses(s.Bases...)
		r.enter(scope.EnumScope, s.Name.Value, s)
		for _, v := range s.Variants {
			vsym := r.define(v.Name, scope.Variant, v)
			vsym.Static = true
			r.uses(v.Value)
		}
		r.declareStmts(s.Body)
		r.tab.Exit()
	case *ast.Has:
		for _, v := range s.Vars {
			sym := r.define(v.Name, scope.Field, v)
			sym.Static = s.Static
			sym.Access = access(s.Access)
			r.typeUses(v.Type)
			r.uses(v.Value)
		}
	case *ast.Ability:
		kind := scope.Ability
		if cur := r.tab.Current().Kind; cur == scope.ArchetypeScope || cur == scope.EnumScope {
			kind = scope.Method
		}
		sym := r.define(s.Name, kind, s)
		sym.Static = s.Static
		sym.Access = access(s.Access)
		r.enter(scope.AbilityScope, s.Name.Value, s)
		r.declareSig(s.Sig)
		if s.Event != nil {
			r.typeUses(s.Event.Type)
		}
		r.declareStmts(s.Body)
		r.tab.Exit()
	case *ast.ImplDef:
		r.impls = append(r.impls, s)
		r.enter(scope.ImplScope, s.TargetName(), s)
		r.declareSig(s.Sig)
		if s.Event != nil {
			r.typeUses(s.Event.Type)
		}
		r.declareStmts(s.Body)
		r.tab.Exit()
	case *ast.GlobalVars:
		for _, a := range s.Assigns {
			r.declareAssign(a, access(s.Access))
		}
	case *ast.ModuleCode:
		r.declareStmts(s.Body)
	case *ast.Assignment:
		r.declareAssign(s, types.Public)
	case *ast.ExprStmt:
		r.uses(s.X)
	case *ast.Return:
		r.uses(s.Value)
	case *ast.If:
		r.uses(s.Cond)
		r.declareStmts(s.Body)
		if s.Else != nil {
			r.declare(s.Else)
		}
	case *ast.Block:
		r.declareStmts(s.Body)
	case *ast.While:
		r.uses(s.Cond)
		r.declareStmts(s.Body)
	case *ast.For:
		r.uses(s.Iter)
		r.declareTarget(s.Target, types.Public)
		r.declareStmts(s.Body)
	case *ast.CtrlStmt, nil:
	default:
		panic("names: unexpected statement")
	}
}

func (r *resolver) declareImport(s *ast.Import) {
	if s.From != nil {
		for _, it := range s.Items {
			sym := r.define(it.Bound(), scope.Import, it)
			sym.Imported = s.From.String() + "." + it.Name.Value
		}
		return
	}
	for _, p := range s.Paths {
		bound, origin := p.Parts[0], p.Parts[0].Value
		if p.Alias != nil {
			bound, origin = p.Alias, p.String()
		}
		sym := r.define(bound, scope.Module, p)
		sym.Imported = origin
	}
}

func (r *resolver) declareSig(sig *ast.Signature) {
	if sig == nil {
		return
	}
	for _, p := range sig.Params {
		r.define(p.Name, scope.Param, p)
		r.typeUses(p.Type)
		r.uses(p.Default)
	}
	r.typeUses(sig.Return)
}

func (r *resolver) declareAssign(a *ast.Assignment, vis types.Visibility) {
	r.typeUses(a.Type)
	r.uses(a.Value)
	for _, t := range a.Targets {
		if a.IsAug() {
			r.uses(t)
			continue
		}
		r.declareTarget(t, vis)
	}
}

// declareTarget defines the plain names on the left of an assignment and
// records the rest as uses.
func (r *resolver) declareTarget(t ast.Expr, vis types.Visibility) {
	switch t := t.(type) {
	case *ast.Name:
		sym := r.tab.Current().Define(t.Value, scope.Variable, nil, t, true)
		if len(sym.Defs) == 1 {
			sym.Access = vis
		}
		r.bind(t, sym)
	case *ast.TupleVal:
		for _, e := range t.Elems {
			r.declareTarget(e, vis)
		}
	case *ast.ListVal:
		for _, e := range t.Elems {
			r.declareTarget(e, vis)
		}
	default:
		r.uses(t)
	}
}

func (r *resolver) typeUses(tag *ast.TypeTag) {
	if tag != nil {
		r.uses(tag.Type)
	}
}

// uses records every name read by the expressions. Selected members and
// keyword argument names are not uses.
func (r *resolver) uses(es ...ast.Expr) {
	for _, e := range es {
		switch e := e.(type) {
		case nil:
		case *ast.Name:
			r.pending = append(r.pending, use{name: e, scope: r.tab.Current()})
		case *ast.SelectorExpr:
			r.uses(e.X)
		case *ast.KWPair:
			r.uses(e.Value)
		default:
			for _, c := range ast.Children(e) {
				if x, ok := c.(ast.Expr); ok {
					r.uses(x)
				}
			}
		}
	}
}

// linkImpl binds `impl A.f` to the ability f declared in A.
func (r *resolver) linkImpl(impl *ast.ImplDef) {
	s := r.info.Scopes[impl]
	sym := r.info.Lookup(s.Parent, impl.Target[0].Value)
	if sym == nil {
		r.info.Unbound = append(r.info.Unbound, impl.Target[0])
		return
	}
	r.bind(impl.Target[0], sym)
	for _, n := range impl.Target[1:] {
		owner := r.info.ScopeOf(sym)
		if owner == nil {
			return
		}
		next, ok := owner.Lookup(n.Value, false)
		if !ok {
			r.info.Unbound = append(r.info.Unbound, n)
			return
		}
		sym = next
		r.bind(n, sym)
	}
	s.Target = sym
	r.info.Impls[impl] = sym
}

// Lookup resolves name from s. Abilities do not see the members of their
// enclosing archetype, and impls see the parameters of the ability they
// implement.
func (info *Info) Lookup(s *scope.Scope, name string) *scope.Symbol {
	for cur := s; cur != nil; {
		if sym, ok := cur.Lookup(name, false); ok {
			return sym
		}
		switch cur.Kind {
		case scope.ImplScope:
			if target := info.ScopeOf(cur.Target); target != nil {
				if sym, ok := target.Lookup(name, false); ok {
					return sym
				}
			}
			cur = cur.Parent
		case scope.AbilityScope:
			cur = cur.Parent
			for cur != nil && lo.Contains([]scope.Kind{scope.ArchetypeScope, scope.EnumScope}, cur.Kind) {
				cur = cur.Parent
			}
		default:
			cur = cur.Parent
		}
	}
	return nil
}
