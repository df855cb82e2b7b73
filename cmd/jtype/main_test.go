package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaclang/jtype/config"
	"github.com/nalgeon/be"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		be.Err(t, os.MkdirAll(filepath.Dir(path), 0o755), nil)
		be.Err(t, os.WriteFile(path, []byte(src), 0o644), nil)
	}
	return dir
}

func runCmd(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCheck(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.jac": "x: int = 5;\nx = 3.5;\n",
	})
	code, out, _ := runCmd("check", filepath.Join(dir, "main.jac"))
	be.Equal(t, code, 1)
	be.Equal(t, out, "main.jac:2:1: error[JT1001]: Can't assign a value 'float' to a 'int' object\nErrors: 1, Warnings: 0\n")
}

func TestCheckImports(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.jac":   "import from geo { Point }\nglob p: Point = Point(x=1, y=2);\n",
		"geo.jac":    "obj Point {\n    has x: int, y: int;\n}\n",
		"unused.jac": "glob broken = ;\n",
	})
	code, out, _ := runCmd("check", filepath.Join(dir, "main.jac"))
	be.Equal(t, code, 0)
	be.Equal(t, out, "Errors: 0, Warnings: 0\n")
}

func TestSyntaxError(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.jac": "glob x = ;\n"})
	code, out, _ := runCmd("check", filepath.Join(dir, "main.jac"))
	be.Equal(t, code, 1)
	be.True(t, strings.Contains(out, "error[JT0001]"))
}

func TestMissingFile(t *testing.T) {
	code, out, _ := runCmd("check", filepath.Join(t.TempDir(), "nope.jac"))
	be.Equal(t, code, 1)
	be.True(t, strings.Contains(out, "error[JT0002]"))
}

func TestStub(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.jac": "obj Point {\n    has x: int;\n    def norm() -> float {\n        return 1.0;\n    }\n}\n",
	})
	out := filepath.Join(dir, "stubs")
	code, _, stderr := runCmd("stub", "-out", out, filepath.Join(dir, "main.jac"))
	be.Equal(t, code, 0)
	be.Equal(t, stderr, "")
	data, err := os.ReadFile(filepath.Join(out, "main.jac"))
	be.Err(t, err, nil)
	be.True(t, strings.Contains(string(data), "obj Point {\n    has x: int;\n    def norm() -> float;\n}\n"))
}

func TestStubRequiresOut(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.jac": "glob x = 1;\n"})
	code, _, stderr := runCmd("stub", filepath.Join(dir, "main.jac"))
	be.Equal(t, code, 1)
	be.True(t, strings.Contains(stderr, "-out is required"))
}

func TestTypes(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.jac": "glob count = 1;\n"})
	code, out, _ := runCmd("types", filepath.Join(dir, "main.jac"))
	be.Equal(t, code, 0)
	be.True(t, strings.Contains(out, "count"))
	be.True(t, strings.Contains(out, "int"))
	be.True(t, strings.HasSuffix(out, "main: 1 var\n"))
}

func TestAST(t *testing.T) {
	dir := writeFiles(t, map[string]string{"main.jac": "glob answer = 42;\n"})
	code, out, _ := runCmd("ast", filepath.Join(dir, "main.jac"))
	be.Equal(t, code, 0)
	be.True(t, strings.Contains(out, "ast.GlobalVars"))
	be.True(t, strings.Contains(out, `"answer"`))
}

func TestBuiltins(t *testing.T) {
	code, out, _ := runCmd("builtins")
	be.Equal(t, code, 0)
	be.True(t, strings.Contains(out, "type[int]"))
	be.True(t, strings.Contains(out, "__add__"))
}

func TestUsage(t *testing.T) {
	code, _, stderr := runCmd()
	be.Equal(t, code, 2)
	be.True(t, strings.Contains(stderr, "Usage:"))

	code, _, stderr = runCmd("frobnicate")
	be.Equal(t, code, 2)
	be.True(t, strings.Contains(stderr, "unknown command: frobnicate"))

	code, out, _ := runCmd("version")
	be.Equal(t, code, 0)
	be.Equal(t, out, "jtype "+version+"\n")
}

func TestSession(t *testing.T) {
	var out bytes.Buffer
	s := newSession(config.Default(), &out, io.Discard)

	s.eval("glob x: int = 1;")
	be.Equal(t, out.String(), "")

	s.eval(`glob y: str = x;`)
	be.Equal(t, out.String(), "repl.jac:2:6: error[JT1001]: Can't assign a value 'int' to a 'str' object\n")

	// Diagnostics already shown are not repeated.
	out.Reset()
	s.eval("glob z = x + 1;")
	be.Equal(t, out.String(), "")

	out.Reset()
	s.typeOf("x * 2.5")
	be.Equal(t, out.String(), "'float'\n")

	out.Reset()
	s.eval("glob w = ;")
	be.True(t, strings.Contains(out.String(), "error[JT0001]"))
	be.Equal(t, len(s.entries), 3)

	out.Reset()
	be.Equal(t, s.command(":reset"), false)
	be.Equal(t, len(s.entries), 0)
	be.Equal(t, s.command(":quit"), true)
}

func TestUnclosed(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"glob x = 1;", 0},
		{"obj A {", 1},
		{"obj A {\n    has x: list[int", 2},
		{`glob s = "{";`, 0},
		{"def f() { # {\n", 1},
		{"obj A {\n}", 0},
	}
	for _, tt := range tests {
		be.Equal(t, unclosed(tt.src), tt.want)
	}
}
