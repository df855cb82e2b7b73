package names_test

import (
	"testing"

	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/names"
	"github.com/jaclang/jtype/parser"
	"github.com/jaclang/jtype/scope"
	"github.com/nalgeon/be"
)

func resolve(t *testing.T, src string) *names.Info {
	t.Helper()
	m, err := parser.ParseString("main.jac", src)
	if err != nil {
		t.Fatal(err)
	}
	return names.Resolve(m)
}

// useOf finds the symbol bound to the nth occurrence of name.
func useOf(t *testing.T, info *names.Info, name string, nth int) *scope.Symbol {
	t.Helper()
	var seen int
	for _, n := range ast.Find[*ast.Name](info.Module) {
		if n.Value != name {
			continue
		}
		if seen == nth {
			return info.Uses[n]
		}
		seen++
	}
	t.Fatalf("no occurrence %d of %s", nth, name)
	return nil
}

func TestDeclarations(t *testing.T) {
	info := resolve(t, `
import from geometry { Point as P }
import os;

glob :priv counter: int = 0;

obj Circle {
    has radius: float;
    static has count: int = 0;
    def area() -> float {
        return 3.14 * self.radius * self.radius;
    }
}

enum Color { RED, GREEN }

def make(r: float) -> Circle {
    c = Circle(radius=r);
    return c;
}
`)
	root := info.Root
	be.Equal(t, root.Name, "main")

	var kinds []string
	for _, sym := range root.Symbols() {
		kinds = append(kinds, sym.Kind.String()+" "+sym.Name)
	}
	be.Equal(t, kinds, []string{"import P", "module os", "var counter", "archetype Circle", "enum Color", "ability make"})

	p, _ := root.Lookup("P", false)
	be.Equal(t, p.Imported, "geometry.Point")
	counter, _ := root.Lookup("counter", false)
	be.Equal(t, counter.Access.String(), "priv")

	circle, _ := root.Lookup("Circle", false)
	cs := info.ScopeOf(circle)
	be.Equal(t, cs.Kind, scope.ArchetypeScope)
	radius, _ := cs.Lookup("radius", false)
	be.Equal(t, radius.Kind, scope.Field)
	count, _ := cs.Lookup("count", false)
	be.True(t, count.Static)
	area, _ := cs.Lookup("area", false)
	be.Equal(t, area.Kind, scope.Method)
	be.Equal(t, info.ScopeOf(area).QualifiedName(), "main.Circle.area")

	color, _ := root.Lookup("Color", false)
	red, ok := info.ScopeOf(color).Lookup("RED", false)
	be.True(t, ok)
	be.Equal(t, red.Kind, scope.Variant)

	mk, _ := root.Lookup("make", false)
	ms := info.ScopeOf(mk)
	r, _ := ms.Lookup("r", false)
	be.Equal(t, r.Kind, scope.Param)
	c, _ := ms.Lookup("c", false)
	be.Equal(t, c.Kind, scope.Variable)
	be.Equal(t, len(c.Uses), 2)
}

func TestUses(t *testing.T) {
	info := resolve(t, `
def f() -> B {
    return B();
}

obj B {
    has x: int;
    def g() -> int {
        return x;
    }
}

with entry {
    y = f();
    print(y);
}
`)
	// forward reference to B from f
	b := useOf(t, info, "B", 0)
	be.True(t, b != nil)
	be.Equal(t, b.Kind, scope.Archetype)
	be.True(t, useOf(t, info, "B", 1) == b)

	// fields are not visible as bare names inside methods
	be.True(t, useOf(t, info, "x", 1) == nil)

	y := useOf(t, info, "y", 1)
	be.True(t, y != nil)
	be.True(t, y.Scope == info.Root)

	var unbound []string
	for _, n := range info.Unbound {
		unbound = append(unbound, n.Value)
	}
	be.Equal(t, unbound, []string{"x", "print"})
}

func TestImpl(t *testing.T) {
	info := resolve(t, `
obj Circle {
    has radius: float;
    def area(scale: float) -> float;
}

impl Circle.area(scale: float) -> float {
    return scale * self.radius;
}

impl Missing.nothing() {}
`)
	var impls []*ast.ImplDef
	for _, s := range info.Module.Body {
		if d, ok := s.(*ast.ImplDef); ok {
			impls = append(impls, d)
		}
	}
	be.Equal(t, len(impls), 2)

	target := info.Impls[impls[0]]
	be.True(t, target != nil)
	be.Equal(t, target.QualifiedName(), "main.Circle.area")
	is := info.Scopes[impls[0]]
	be.Equal(t, is.Kind, scope.ImplScope)
	be.True(t, is.Target == target)

	// the body's scale is the impl's own parameter
	scale := useOf(t, info, "scale", 2)
	be.True(t, scale != nil)
	be.True(t, scale.Scope == is)

	be.True(t, info.Impls[impls[1]] == nil)
}

func TestImplSeesTargetParams(t *testing.T) {
	info := resolve(t, `
obj A {
    def f(n: int) -> int;
}

impl A.f {
    return n;
}
`)
	n := useOf(t, info, "n", 1)
	be.True(t, n != nil)
	be.Equal(t, n.Kind, scope.Param)
}
