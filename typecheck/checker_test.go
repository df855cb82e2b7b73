package typecheck_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jaclang/jtype/config"
	"github.com/jaclang/jtype/diag"
	"github.com/jaclang/jtype/fsx"
	"github.com/jaclang/jtype/parser"
	"github.com/jaclang/jtype/scope"
	"github.com/jaclang/jtype/typecheck"
	"github.com/jaclang/jtype/types"
	"github.com/nalgeon/be"
	"github.com/samber/lo"
)

func build(t *testing.T, files [][2]string, opts ...typecheck.Option) *typecheck.Checker {
	t.Helper()
	importer := parser.NewImporter(fsx.TestFS(files))
	if err := importer.ImportCrawl(files[0][0]); err != nil {
		t.Fatal(err)
	}
	registry, err := types.Default()
	if err != nil {
		t.Fatal(err)
	}
	tc := typecheck.NewChecker(importer, registry, opts...)
	if err := tc.ProcessBuild(); err != nil {
		t.Fatal(err)
	}
	return tc
}

func checkSource(t *testing.T, src string) *typecheck.Checker {
	t.Helper()
	return build(t, [][2]string{{"main.jac", src}})
}

func messages(ds []diag.Diagnostic) []string {
	return lo.Map(ds, func(d diag.Diagnostic, _ int) string { return d.Message })
}

func symbol(t *testing.T, tc *typecheck.Checker, name string) *scope.Symbol {
	t.Helper()
	info, ok := tc.Info("main")
	be.True(t, ok)
	sym, ok := info.Root.Lookup(name, false)
	if !ok {
		t.Fatalf("no symbol %s", name)
	}
	return sym
}

func TestAssignMismatch(t *testing.T) {
	tc := checkSource(t, `
x: int = 5;
x = 3.5;
`)
	errs := tc.Sink().Errors()
	be.Equal(t, messages(errs), []string{"Can't assign a value 'float' to a 'int' object"})
	be.Equal(t, errs[0].Span.Start.Line, 3)
	be.Equal(t, errs[0].Location(), "line 3, col 1")
	be.Equal(t, *errs[0].Code, diag.JT1001)
}

func TestMissingReturn(t *testing.T) {
	tc := checkSource(t, `
def f() -> int {
    print("hi");
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{"Missing return statement"})
	f, ok := symbol(t, tc, "f").Type.(*types.Function)
	be.True(t, ok)
	be.Equal(t, types.Name(f.Return), "int")
}

func TestMemberAccess(t *testing.T) {
	tc := checkSource(t, `
obj Point {
    has x: int;
}
with entry {
    p = Point(1);
    p.nonexistent_field.y.z;
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{
		"No member called 'nonexistent_field' in 'main.Point' object",
	})
}

func TestCallMismatch(t *testing.T) {
	tc := checkSource(t, `
def add(a: int, b: int) -> int {
    return a + b;
}
with entry {
    add(1, "two");
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{
		"Can't assign a value 'str' to a parameter 'b' of type int",
	})
}

func TestArgumentCounts(t *testing.T) {
	tc := checkSource(t, `
def f(a: int, b: int = 2) -> int {
    return a;
}
with entry {
    f(1, c=3);
    f(1, 2, 3);
    f(b=1);
    f(1, b=2);
}
`)
	sink := tc.Sink()
	be.Equal(t, len(sink.Errors()), 3)
	be.Equal(t, messages(sink.ByCode(diag.JT1011)), []string{"No parameter named 'c'"})
	be.Equal(t, messages(sink.ByCode(diag.JT1012)), []string{"Too many positional arguments"})
	be.Equal(t, messages(sink.ByCode(diag.JT1013)), []string{"Missing argument for parameter 'a'"})
}

func TestForwardReference(t *testing.T) {
	tc := checkSource(t, `
obj Line {
    has start: Point, end: Point;

    def length() -> float {
        return self.end.x - self.start.x;
    }
}

obj Point {
    has x: float, y: float;
}

with entry {
    l = Line(Point(0.0, 0.0), Point(3.0, 4.0));
    l.start.z;
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{
		"No member called 'z' in 'main.Point' object",
	})
	be.Equal(t, types.Name(symbol(t, tc, "l").Type), "main.Line")
}

func TestConstructorSynthesis(t *testing.T) {
	tc := checkSource(t, `
obj Pair {
    has a: int;
    has b: str = "x";
}

obj Named {
    has name: str;

    def init(name: str) {
        self.name = name;
    }
}
`)
	be.Equal(t, tc.Sink().Len(), 0)

	pair, ok := tc.Registry().Get("main.Pair")
	be.True(t, ok)
	ctor := pair.Instance["__init__"]
	be.True(t, ctor.Synthesized)
	f := ctor.Type.(*types.Function)
	be.Equal(t, lo.Map(f.Params, func(p types.Param, _ int) string { return types.Name(p.Type) }), []string{"int", "str"})
	be.Equal(t, lo.Map(f.Params, func(p types.Param, _ int) bool { return p.Optional }), []bool{false, true})
	be.True(t, types.IsSameType(f.Return, types.NewInstance(pair)))

	named, ok := tc.Registry().Get("main.Named")
	be.True(t, ok)
	ctor = named.Instance["__init__"]
	be.True(t, !ctor.Synthesized)
	be.True(t, types.IsSameType(ctor.Type.(*types.Function).Return, types.NewInstance(named)))
}

func TestInheritedFields(t *testing.T) {
	tc := checkSource(t, `
obj Base {
    has id: int;
}
obj Child(Base) {
    has label: str;
}
with entry {
    Child("a", 1);
    Child(1, "a");
}
`)
	child, _ := tc.Registry().Get("main.Child")
	f := child.Constructor()
	be.Equal(t, lo.Map(f.Params, func(p types.Param, _ int) string { return p.Name }), []string{"label", "id"})
	be.Equal(t, len(tc.Sink().Errors()), 2)
}

func TestInheritedFieldsTransitive(t *testing.T) {
	tc := checkSource(t, `
obj B {
    has b: int;
}
obj C(B) {
    has c: str;
}
obj D(C) {
    has d: float;
}
with entry {
    D(d=1.0, c="x", b=1);
    D(1.0, "x", 1);
}
`)
	d, _ := tc.Registry().Get("main.D")
	f := d.Constructor()
	be.Equal(t, lo.Map(f.Params, func(p types.Param, _ int) string { return p.Name }), []string{"d", "c", "b"})
	be.Equal(t, tc.Sink().Summary(), "Errors: 0, Warnings: 0")
}

func TestIdempotent(t *testing.T) {
	tc := checkSource(t, `
obj Pair {
    has a: int, b: str;
}
with entry {
    p = Pair(1, 2);
}
`)
	pair, _ := tc.Registry().Get("main.Pair")
	first := tc.Sink().Summary()
	n := tc.Registry().Len()

	be.Err(t, tc.ProcessBuild(), nil)
	again, _ := tc.Registry().Get("main.Pair")
	be.True(t, pair == again)
	be.Equal(t, tc.Registry().Len(), n)
	be.Equal(t, len(again.Constructor().Params), 2)
	be.Equal(t, tc.Sink().Summary(), first)
	be.Equal(t, first, "Errors: 1, Warnings: 0")
}

func TestAbstract(t *testing.T) {
	tc := checkSource(t, `
obj Shape {
    def area() -> float abs;
}
obj Square(Shape) {
    has side: float;

    def area() -> float {
        return self.side * self.side;
    }
}
with entry {
    s = Shape();
    q = Square(2.0);
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{"Can't create an object from an abstract class"})
	shape, _ := tc.Registry().Get("main.Shape")
	be.True(t, shape.Abstract)
}

func TestBinary(t *testing.T) {
	tc := checkSource(t, `
with entry {
    a = 1 + 2.5;
    b = 7 / 2;
    c = "s" * 3;
    d = "s" - 1;
}
`)
	be.Equal(t, types.Name(symbol(t, tc, "a").Type), "float")
	be.Equal(t, types.Name(symbol(t, tc, "b").Type), "float")
	be.Equal(t, types.Name(symbol(t, tc, "c").Type), "str")
	be.Equal(t, messages(tc.Sink().Errors()), []string{"Unsupported binary operation '-' on type 'str'"})
}

func TestImplAndSuper(t *testing.T) {
	tc := checkSource(t, `
obj Animal {
    has name: str;
    def speak() -> str;
}

impl Animal.speak() -> str {
    return self.name;
}

obj Dog(Animal) {
    has breed: str;

    def init(name: str, breed: str) {
        super.init(name=name);
        self.breed = breed;
    }

    def speak() -> str {
        return self.nme;
    }
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{"No member called 'nme' in 'main.Dog' object"})
}

func TestDynamicMembers(t *testing.T) {
	tc := checkSource(t, `
obj Counter {
    def init() {
        self.count = 0;
    }

    def bump() {
        self.count += 1;
        self.total;
    }
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{"No member called 'total' in 'main.Counter' object"})
	counter, _ := tc.Registry().Get("main.Counter")
	m := counter.Instance["count"]
	be.True(t, m.Synthesized)
	be.Equal(t, types.Name(m.Type), "int")
}

func TestReturnChecks(t *testing.T) {
	tc := checkSource(t, `
def f() -> int {
    return "no";
}
def g() {
    return 1;
}
`)
	be.Equal(t, messages(tc.Sink().ByCode(diag.JT1002)), []string{"Can't return 'str' from an ability returning 'int'"})
	be.Equal(t, len(tc.Sink().ByCode(diag.JT2002)), 1)
}

func TestNarrowing(t *testing.T) {
	tc := checkSource(t, `
def first(xs: list[int]) -> int | None {
    if len(xs) == 0 {
        return None;
    }
    return xs[0];
}
with entry {
    v: int | None = first([1, 2]);
    if v is not None {
        w: int = v;
    }
    u: int = v;
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{"Can't assign a value 'int' | None to a 'int' object"})
}

func TestEnum(t *testing.T) {
	tc := checkSource(t, `
enum Color {
    RED, GREEN
}
with entry {
    c: Color = Color.RED;
    n: str = c.name;
    Color.BLUE;
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{"No member called 'BLUE' in type[main.Color] object"})
}

func TestFieldDiagnostics(t *testing.T) {
	tc := checkSource(t, `
obj A {
    has x: int = "one";
    has x: str;
}
`)
	sink := tc.Sink()
	be.Equal(t, messages(sink.ByCode(diag.JT1008)), []string{"'x' was defined before"})
	be.Equal(t, messages(sink.ByCode(diag.JT1001)), []string{"Can't assign a value 'str' to a 'int' object"})
}

func TestRedefinition(t *testing.T) {
	tc := checkSource(t, `
with entry {
    x: int = 1;
    x: str = "a";
}
`)
	be.Equal(t, messages(tc.Sink().Warnings()), []string{"Can't redefine x to be str"})
	be.Equal(t, len(tc.Sink().Errors()), 0)
	be.Equal(t, types.Name(symbol(t, tc, "x").Type), "str")

	// Each annotated binding is checked against its own annotation and a
	// plain rebinding against the latest one.
	tc = checkSource(t, `
with entry {
    x: int = 1;
    x: str = "a";
    x = 2;
}
`)
	errs := tc.Sink().Errors()
	be.Equal(t, messages(errs), []string{"Can't assign a value 'int' to a 'str' object"})
	be.Equal(t, errs[0].Span.Start.Line, 5)
}

func TestAugmentedAssign(t *testing.T) {
	tc := checkSource(t, `
with entry {
    x: int = 1;
    x += "s";
    s: str = "a";
    s -= 1;
    y: int = 1;
    y += 1.5;
    z: int = 2;
    z *= 3;
    f: float = 1.0;
    f += 1;
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{
		"Unsupported operand type 'str' for '+' on 'int'",
		"Unsupported binary operation '-' on type 'str'",
		"Can't assign a value 'float' to a 'int' object",
	})
	be.Equal(t, len(tc.Sink().Warnings()), 0)
}

func TestAugmentedAssignReportsOnce(t *testing.T) {
	tc := checkSource(t, `
obj A {
    has n: int = 0;
}
def g(a: int, b: str) -> int {
    return a;
}
with entry {
    o = A();
    o.nope += 1;
    x: int = 0;
    x += g(1, 2);
    x += 1 - "s";
}
`)
	be.Equal(t, messages(tc.Sink().Errors()), []string{
		"No member called 'nope' in 'main.A' object",
		"Can't assign a value 'int' to a parameter 'b' of type str",
		"Unsupported operand type 'str' for '-' on 'int'",
	})
	be.Equal(t, messages(tc.Sink().Warnings()), []string{
		"Operand of '+' has an unknown type",
		"Operand of '+' has an unknown type",
	})
}

func TestImportedTypes(t *testing.T) {
	tc := build(t, [][2]string{
		{"main.jac", `
import from shapes { Circle }
import util;

with entry {
    c = Circle(1.0);
    c.radius = "big";
    r: float = util.unit().radius;
    util.missing();
}
`},
		{"shapes.jac", `
obj Circle {
    has radius: float;
}
`},
		{"util.jac", `
import from shapes { Circle }

def unit() -> Circle {
    return Circle(1.0);
}
`},
	})
	errs := tc.Sink().Errors()
	be.Equal(t, messages(errs), []string{
		"Can't assign a value 'str' to a 'float' object",
		"No member called 'missing' in module 'util'",
	})
	be.Equal(t, errs[0].File, "main.jac")
}

func TestDisabled(t *testing.T) {
	settings := config.Default()
	settings.Semantics = false
	tc := build(t, [][2]string{{"main.jac", "x: int = 1.5;"}}, typecheck.WithSettings(settings))
	be.Equal(t, tc.Sink().Len(), 0)
}

func TestDebugLog(t *testing.T) {
	var buf bytes.Buffer
	settings := config.Default()
	settings.DebugTyping = true
	build(t, [][2]string{{"main.jac", "with entry { print(1); }"}},
		typecheck.WithSettings(settings), typecheck.WithLogOutput(&buf))
	out := buf.String()
	be.True(t, strings.Contains(out, "[JTypeAnnotatePass] module main"))
	be.True(t, strings.Contains(out, "[JTypeCheckPass] module main"))
	be.True(t, strings.Contains(out, "[JTypeCheckPass] ") && strings.Contains(out, "call to print"))
}

func TestQuietByDefault(t *testing.T) {
	var buf bytes.Buffer
	build(t, [][2]string{{"main.jac", "with entry { print(1); }"}}, typecheck.WithLogOutput(&buf))
	be.Equal(t, buf.Len(), 0)
}
