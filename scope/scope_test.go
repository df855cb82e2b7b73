package scope_test

import (
	"strings"
	"testing"

	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/scope"
	"github.com/jaclang/jtype/types"
	"github.com/nalgeon/be"
)

func builtins(t *testing.T) *types.Registry {
	t.Helper()
	r, err := types.Default()
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestDefineMerge(t *testing.T) {
	r := builtins(t)
	intT, floatT := r.InstanceOf("int"), r.InstanceOf("float")
	boolT := r.InstanceOf("bool")
	mod := scope.New(scope.ModuleScope, "main", nil, nil)

	first := &ast.Name{Value: "x"}
	sym := mod.Define("x", scope.Variable, intT, first, false)
	be.Equal(t, sym.Type, types.Type(intT))

	// Any never erases a known type
	second := &ast.Name{Value: "x"}
	again := mod.Define("x", scope.Variable, types.Any, second, true)
	be.True(t, again == sym)
	be.Equal(t, sym.Type, types.Type(intT))
	be.Equal(t, len(sym.Defs), 2)

	// a wider type does not replace a narrower one
	mod.Define("x", scope.Variable, floatT, nil, true)
	be.Equal(t, sym.Type, types.Type(intT))

	// a more specific type does
	mod.Define("x", scope.Variable, boolT, nil, true)
	be.Equal(t, sym.Type, types.Type(boolT))
	be.True(t, sym.Inferred)
}

func TestDefineOverAny(t *testing.T) {
	r := builtins(t)
	mod := scope.New(scope.ModuleScope, "main", nil, nil)
	sym := mod.Define("y", scope.Variable, nil, nil, true)
	be.Equal(t, sym.Type, types.Type(types.Any))
	mod.Define("y", scope.Variable, r.InstanceOf("str"), nil, true)
	be.Equal(t, types.Name(sym.Type), "str")
}

func TestLookup(t *testing.T) {
	mod := scope.New(scope.ModuleScope, "main", nil, nil)
	arch := scope.New(scope.ArchetypeScope, "A", nil, mod)
	ab := scope.New(scope.AbilityScope, "f", nil, arch)
	sibling := scope.New(scope.AbilityScope, "g", nil, arch)

	mod.Define("g1", scope.Variable, nil, nil, false)
	sibling.Define("local", scope.Variable, nil, nil, false)

	_, ok := ab.Lookup("g1", true)
	be.True(t, ok)
	_, ok = ab.Lookup("g1", false)
	be.True(t, !ok)
	_, ok = ab.Lookup("local", true)
	be.True(t, !ok)

	be.Equal(t, ab.QualifiedName(), "main.A.f")
	be.True(t, ab.Enclosing(scope.ArchetypeScope) == arch)
	be.True(t, ab.Module() == mod)
	be.True(t, mod.Enclosing(scope.AbilityScope) == nil)
}

func TestUpdateType(t *testing.T) {
	r := builtins(t)
	mod := scope.New(scope.ModuleScope, "main", nil, nil)
	mod.Define("x", scope.Variable, r.InstanceOf("int"), nil, false)
	be.True(t, mod.UpdateType("x", r.InstanceOf("str"), true))
	sym, _ := mod.Lookup("x", false)
	be.Equal(t, types.Name(sym.Type), "str")
	be.True(t, !mod.UpdateType("missing", types.Any, true))
}

func TestSymbolsOrder(t *testing.T) {
	mod := scope.New(scope.ModuleScope, "main", nil, nil)
	for _, name := range []string{"c", "a", "b"} {
		mod.Define(name, scope.Variable, nil, nil, false)
	}
	var names []string
	for _, sym := range mod.Symbols() {
		names = append(names, sym.Name)
	}
	be.Equal(t, names, []string{"c", "a", "b"})
	be.Equal(t, mod.Symbols()[2].QualifiedName(), "main.b")
}

func TestConstraints(t *testing.T) {
	r := builtins(t)
	mod := scope.New(scope.ModuleScope, "main", nil, nil)
	sym := mod.Define("v", scope.Variable, types.NewUnion(r.InstanceOf("int"), types.None), nil, false)
	be.Equal(t, types.Name(sym.Current()), "int | None")
	sym.PushConstraint(r.InstanceOf("int"))
	be.Equal(t, types.Name(sym.Current()), "int")
	sym.PopConstraint()
	be.Equal(t, types.Name(sym.Current()), "int | None")
}

func TestTable(t *testing.T) {
	mod := scope.New(scope.ModuleScope, "main", nil, nil)
	tab := scope.NewTable(mod)
	node := &ast.Archetype{Name: &ast.Name{Value: "A"}}
	a := tab.Enter(scope.ArchetypeScope, "A", node)
	be.True(t, tab.Current() == a)
	tab.Exit()
	be.True(t, tab.Current() == mod)

	// entering the same node again reuses the scope
	be.True(t, tab.Enter(scope.ArchetypeScope, "A", node) == a)
	be.Equal(t, len(mod.Children), 1)
	tab.Exit()

	defer func() {
		be.True(t, recover() != nil)
	}()
	tab.Exit()
}

func TestStatsAndString(t *testing.T) {
	r := builtins(t)
	mod := scope.New(scope.ModuleScope, "main", nil, nil)
	mod.Define("A", scope.Archetype, nil, nil, false)
	arch := scope.New(scope.ArchetypeScope, "A", nil, mod)
	arch.Define("x", scope.Field, r.InstanceOf("int"), nil, false)
	arch.Define("f", scope.Method, nil, nil, false)

	stats := mod.Stats()
	be.Equal(t, stats[scope.Archetype], 1)
	be.Equal(t, stats[scope.Field], 1)
	be.Equal(t, stats[scope.Method], 1)

	s := mod.String()
	be.True(t, strings.Contains(s, "module main"))
	be.True(t, strings.Contains(s, "archetype A"))
	be.True(t, strings.Contains(s, "field"))
}
