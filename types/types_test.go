package types_test

import (
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/nalgeon/be"

	"github.com/jaclang/jtype/types"
)

func builtins(t *testing.T) *types.Registry {
	t.Helper()
	r, err := types.Default()
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestUnionLaws(t *testing.T) {
	r := builtins(t)
	i, s, f := r.InstanceOf("int"), r.InstanceOf("str"), r.InstanceOf("float")

	be.True(t, types.IsSameType(types.NewUnion(i), i))
	be.True(t, types.IsSameType(types.NewUnion(i, i), i))
	be.Equal(t, types.NewUnion(types.Any, i), types.Type(types.Any))
	be.Equal(t, types.NewUnion(types.Never, types.Never), types.Type(types.Never))
	be.True(t, types.IsSameType(types.NewUnion(types.Never, s), s))

	nested := types.NewUnion(i, types.NewUnion(s, f))
	flat := types.NewUnion(i, s, f)
	if !types.IsSameType(nested, flat) {
		t.Fatalf("flattening: %s != %s", nested, flat)
	}
	u, ok := nested.(*types.Union)
	if !ok {
		t.Fatalf("expected a union, got %s", spew.Sdump(nested))
	}
	for _, m := range u.Members {
		if _, ok := m.(*types.Union); ok {
			t.Fatal("union contains a union")
		}
	}
	be.Equal(t, u.String(), "'int' | 'str' | 'float'")
	be.Equal(t, types.Name(u), "int | str | float")
}

func TestUnionDropsSubclasses(t *testing.T) {
	shape := types.NewClass("geo", "Shape")
	circle := types.NewClass("geo", "Circle")
	circle.Bases = []*types.Class{shape}
	got := types.NewUnion(types.NewInstance(circle), types.NewInstance(shape))
	be.True(t, types.IsSameType(got, types.NewInstance(shape)))

	r := builtins(t)
	// promotions are not subclassing
	_, ok := types.NewUnion(r.InstanceOf("int"), r.InstanceOf("float")).(*types.Union)
	be.True(t, ok)
}

func TestUnionNarrow(t *testing.T) {
	r := builtins(t)
	u := types.NewUnion(r.InstanceOf("int"), types.None).(*types.Union)
	be.True(t, u.Contains(types.None))
	got := u.Narrow(func(t types.Type) bool { return t != types.None })
	be.True(t, types.IsSameType(got, r.InstanceOf("int")))
}

func TestReflexive(t *testing.T) {
	r := builtins(t)
	list := r.Builtin("list")
	all := []types.Type{
		types.Any, types.Unknown, types.Never, types.None,
		r.Builtin("int"), r.InstanceOf("str"),
		types.NewInstance(types.NewGeneric(list, r.InstanceOf("int"))),
		&types.Function{Params: []types.Param{{Name: "a", Type: r.InstanceOf("int")}}, Return: types.None},
		types.NewUnion(r.InstanceOf("int"), r.InstanceOf("str")),
		&types.TypeVar{Name: "T"},
	}
	for _, ty := range all {
		if !types.CanAssign(ty, ty) {
			t.Errorf("%s is not assignable to itself", ty)
		}
	}
}

func TestSpecialAssignability(t *testing.T) {
	r := builtins(t)
	i := r.InstanceOf("int")
	be.True(t, types.CanAssign(types.Any, i))
	be.True(t, types.CanAssign(types.Unknown, i))
	be.True(t, types.CanAssign(i, types.Any))
	be.True(t, types.CanAssign(i, types.Never))
	be.True(t, !types.CanAssign(types.Never, i))
	be.True(t, !types.CanAssign(i, types.Unknown))
	be.True(t, types.CanAssign(types.Any, types.Unknown))
	be.True(t, !types.CanAssign(i, types.None))
}

func TestNumericPromotion(t *testing.T) {
	r := builtins(t)
	i, f, b := r.InstanceOf("int"), r.InstanceOf("float"), r.InstanceOf("bool")
	be.True(t, types.CanAssign(f, i))
	be.True(t, !types.CanAssign(i, f))
	be.True(t, types.CanAssign(i, b))
	be.True(t, types.CanAssign(f, b))
	be.True(t, !types.CanAssign(b, i))
	be.True(t, types.IsAssignableTo(b, f))
}

func TestConsistency(t *testing.T) {
	r := builtins(t)
	ts := []types.Type{
		types.Any, types.None, types.Never,
		r.InstanceOf("int"), r.InstanceOf("float"), r.InstanceOf("bool"), r.InstanceOf("str"),
		types.NewUnion(r.InstanceOf("int"), r.InstanceOf("str")),
	}
	for _, a := range ts {
		for _, b := range ts {
			if types.CanAssign(a, b) != types.IsAssignableTo(b, a) {
				t.Errorf("inconsistent relation for %s and %s", a, b)
			}
		}
	}
}

func TestClassHierarchy(t *testing.T) {
	animal := types.NewClass("zoo", "Animal")
	dog := types.NewClass("zoo", "Dog")
	puppy := types.NewClass("zoo", "Puppy")
	dog.Bases = []*types.Class{animal}
	puppy.Bases = []*types.Class{dog}

	be.True(t, types.CanAssign(types.NewInstance(animal), types.NewInstance(puppy)))
	be.True(t, !types.CanAssign(types.NewInstance(puppy), types.NewInstance(animal)))
	be.Equal(t, types.NewInstance(dog).String(), "'zoo.Dog'")
	be.Equal(t, dog.String(), "type[zoo.Dog]")

	animal.Instance["name"] = &types.Member{Name: "name", Type: types.Any}
	if m := types.NewInstance(puppy).Lookup("name"); m == nil {
		t.Fatal("inherited member not found")
	}
}

func TestUnionAssignability(t *testing.T) {
	r := builtins(t)
	i, s, f := r.InstanceOf("int"), r.InstanceOf("str"), r.InstanceOf("float")
	is := types.NewUnion(i, s)
	be.True(t, types.CanAssign(is, i))
	be.True(t, types.CanAssign(is, s))
	be.True(t, !types.CanAssign(is, f))
	be.True(t, !types.CanAssign(i, is))
	be.True(t, types.CanAssign(types.NewUnion(f, s), is))
}

func TestGenerics(t *testing.T) {
	r := builtins(t)
	list := r.Builtin("list")
	li := types.NewInstance(types.NewGeneric(list, r.InstanceOf("int")))
	lf := types.NewInstance(types.NewGeneric(list, r.InstanceOf("float")))
	ls := types.NewInstance(types.NewGeneric(list, r.InstanceOf("str")))

	be.True(t, types.CanAssign(lf, li))
	be.True(t, !types.CanAssign(li, ls))
	be.True(t, types.CanAssign(types.NewInstance(list), li))
	be.Equal(t, li.String(), "'list[int]'")

	get := li.Lookup("__getitem__")
	if get == nil {
		t.Fatal("no __getitem__ on list[int]")
	}
	fn := get.Type.(*types.Function)
	be.True(t, types.IsSameType(fn.Return, r.InstanceOf("int")))

	// the unspecialized class keeps its type variable
	raw := list.Lookup("__getitem__").Type.(*types.Function)
	if _, ok := raw.Return.(*types.Instance).Of.(*types.TypeVar); !ok {
		t.Fatalf("base class was mutated: %s", raw)
	}

	dict := r.Builtin("dict")
	d := types.NewGeneric(dict, r.InstanceOf("str"), r.InstanceOf("int"))
	set := d.Specialized().Lookup("__setitem__").Type.(*types.Function)
	be.Equal(t, set.String(), "(arg0: str, arg1: int) -> None")
	be.True(t, d.Specialized() == d.Specialized())
}

func TestFunctionAssignability(t *testing.T) {
	r := builtins(t)
	i, f := r.InstanceOf("int"), r.InstanceOf("float")
	fn := func(p, ret types.Type) *types.Function {
		return &types.Function{Params: []types.Param{{Name: "x", Type: p}}, Return: ret}
	}
	// covariant return, contravariant params
	be.True(t, types.CanAssign(fn(i, f), fn(f, i)))
	be.True(t, !types.CanAssign(fn(f, i), fn(i, i)))
	be.True(t, !types.CanAssign(fn(i, i), fn(i, f)))

	star := &types.Function{Params: []types.Param{{Name: "x", Type: i, Kind: types.VarArgs}}, Return: i}
	be.True(t, !types.CanAssign(fn(i, i), star))
	be.True(t, !types.CanAssign(fn(i, i), &types.Function{Return: i}))

	rel := types.NewRelation()
	be.True(t, rel.CanAssign(fn(i, f), fn(f, i)))
	be.True(t, rel.CanAssign(fn(i, f), fn(f, i)))
	be.Equal(t, fn(i, f).String(), "(x: int) -> float")
}

func TestOverloads(t *testing.T) {
	r := builtins(t)
	pop := r.Builtin("list").Lookup("pop").Type.(*types.Function)
	be.True(t, pop.ResolveOverload(nil) == pop)
	be.True(t, pop.ResolveOverload([]types.Type{r.InstanceOf("int")}) == pop.Overloads[0])
	be.True(t, pop.ResolveOverload([]types.Type{r.InstanceOf("str")}) == nil)
	be.True(t, pop.CanAccept(nil))
}

func TestTypeVarDisplay(t *testing.T) {
	r := builtins(t)
	tv := &types.TypeVar{Name: "T"}
	be.Equal(t, tv.String(), "T")
	tv.Resolved = r.Builtin("int")
	be.Equal(t, tv.String(), "T=int")
	be.Equal(t, types.NewInstance(tv).Lookup("bit_length").Name, "bit_length")
}

func TestInstancePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("instance of a function did not panic")
		}
	}()
	types.NewInstance(&types.Function{})
}

func TestRegistry(t *testing.T) {
	r := types.NewRegistry()
	c := types.NewClass("app", "A")
	r.Register(c)
	r.Register(c)
	be.Equal(t, r.Len(), 1)
	got, ok := r.Get("app.A")
	be.True(t, ok && got == c)
	_, ok = r.Get("app.B")
	be.True(t, !ok)

	c2 := types.NewClass("app", "A")
	r.Register(c2)
	got, _ = r.Get("app.A")
	be.True(t, got == c2)
}

func TestLoadBuiltins(t *testing.T) {
	r := builtins(t)
	names := []string{}
	for _, c := range r.All() {
		names = append(names, c.FullName)
	}
	be.Equal(t, names[0], "builtins.bool")
	i := r.Builtin("int")
	be.Equal(t, len(i.AssignableFrom), 1)
	add := i.Instance["__add__"]
	be.True(t, add.IsMethod)
	be.Equal(t, add.Type.String(), "(arg0: int | float) -> int")
	clear := r.Builtin("list").Instance["clear"].Type.(*types.Function)
	be.Equal(t, clear.Return, types.Type(types.None))
}

func TestLoadBuiltinsErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"malformed", `{"builtins.a": `},
		{"unknown arg", `{"builtins.a": {"methods": {"f": {"args": ["builtins.b"]}}}}`},
		{"unknown return", `{"builtins.a": {"methods": {"f": {"return": "nope"}}}}`},
		{"unknown assignable", `{"builtins.a": {"assignable_from": ["builtins.z"]}}`},
		{"bad ref", `{"builtins.a": {"methods": {"f": {"args": [1]}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := types.NewRegistry().LoadBuiltins([]byte(tt.src))
			if !errors.Is(err, types.ErrBuiltins) {
				t.Fatalf("expected ErrBuiltins, got %v", err)
			}
		})
	}
}

func TestLoadBuiltinsForwardReference(t *testing.T) {
	src := `
	// b refers to c, which is declared after it
	{
		"builtins.b": {"methods": {"f": {"args": ["builtins.c"], "return": "builtins.c"}}},
		"builtins.c": {"methods": {"g": {"args": [["builtins.b", "builtins.c"]]}}} // trailing
	}`
	r := types.NewRegistry()
	if err := r.LoadBuiltins([]byte(src)); err != nil {
		t.Fatal(err)
	}
	c, _ := r.Get("builtins.c")
	f := r.Builtin("b").Instance["f"].Type.(*types.Function)
	be.True(t, f.Return.(*types.Instance).Of == c)
	g := c.Instance["g"].Type.(*types.Function)
	be.Equal(t, g.Return, types.Type(types.None))
	_, ok := g.Params[0].Type.(*types.Union)
	be.True(t, ok)
}

func TestStripComments(t *testing.T) {
	src := "{\"url\": \"http://x\" // c\n}"
	be.Equal(t, string(types.StripComments([]byte(src))), "{\"url\": \"http://x\" \n}")
}

func TestConstructor(t *testing.T) {
	c := types.NewClass("m", "P")
	ctor := c.Constructor()
	be.Equal(t, len(ctor.Params), 0)
	be.True(t, types.IsSameType(ctor.Return, types.NewInstance(c)))
}
