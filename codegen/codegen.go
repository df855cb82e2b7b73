// Package codegen writes the declarations of a checked build back out as
// Jac stub modules: archetypes, enums, fields, ability signatures and
// globals, with every type filled in from the checker.
package codegen

import (
	"bytes"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/fsx"
	"github.com/jaclang/jtype/names"
	"github.com/jaclang/jtype/parser"
	"github.com/jaclang/jtype/scope"
	"github.com/jaclang/jtype/typecheck"
	"github.com/jaclang/jtype/types"
)

const indent = "    "

type Codegen struct {
	// assumes the build has been through ProcessBuild
	importer *parser.Importer
	checker  *typecheck.Checker
}

func NewCodegen(importer *parser.Importer, checker *typecheck.Checker) *Codegen {
	return &Codegen{
		importer: importer,
		checker:  checker,
	}
}

// CodegenBuild writes one stub per checked module into outfs, at the same
// path as the module's source file.
func (c *Codegen) CodegenBuild(outfs fs.FS) error {
	for _, name := range c.importer.Sorted {
		info, ok := c.checker.Info(name)
		if !ok {
			continue
		}
		if err := fsx.WriteFile(outfs, info.Module.File, c.Stub(info)); err != nil {
			return fmt.Errorf("codegen %s: %w", name, err)
		}
	}
	return nil
}

// Stub renders the stub of a single checked module.
func (c *Codegen) Stub(info *names.Info) []byte {
	w := &stubWriter{info: info, module: info.Module.Name, imports: set.New[string](0)}
	for _, sym := range info.Root.Symbols() {
		if sym.Kind == scope.Variable {
			w.line(0, "glob%s %s: %s;", access(sym.Access), sym.Name, w.typeText(sym.Type))
		}
	}
	for _, s := range info.Module.Body {
		w.decl(0, s)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "# Code generated by jtype from %s. DO NOT EDIT.\n", info.Module.File)
	imports := w.imports.Slice()
	sort.Strings(imports)
	if len(imports) > 0 {
		out.WriteString("\n")
	}
	for _, imp := range imports {
		fmt.Fprintf(&out, "import %s;\n", imp)
	}
	if w.body.Len() > 0 {
		out.WriteString("\n")
	}
	out.Write(w.body.Bytes())
	return out.Bytes()
}

type stubWriter struct {
	info    *names.Info
	module  string
	imports *set.Set[string]
	body    bytes.Buffer
}

func (w *stubWriter) line(depth int, format string, args ...any) {
	w.body.WriteString(strings.Repeat(indent, depth))
	fmt.Fprintf(&w.body, format, args...)
	w.body.WriteString("\n")
}

func access(v types.Visibility) string {
	if v == types.Public {
		return ""
	}
	return ":" + v.String()
}

func (w *stubWriter) decl(depth int, s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Archetype:
		cls := w.class(s)
		if cls == nil {
			return
		}
		w.line(depth, "%s%s %s%s {", s.Kind, access(w.info.Decls[s].Access), s.Name.Value, w.bases(cls, s.Bases))
		w.members(depth+1, s.Body)
		w.line(depth, "}")
	case *ast.Enum:
		cls := w.class(s)
		if cls == nil {
			return
		}
		w.line(depth, "enum%s %s%s {", access(w.info.Decls[s].Access), s.Name.Value, w.bases(cls, s.Bases))
		variants := make([]string, len(s.Variants))
		for i, v := range s.Variants {
			variants[i] = v.Name.Value
			if v.Value != nil {
				variants[i] += " = " + ast.Format(v.Value)
			}
		}
		if len(variants) > 0 {
			w.line(depth+1, "%s;", strings.Join(variants, ", "))
		}
		w.members(depth+1, s.Body)
		w.line(depth, "}")
	case *ast.Ability:
		w.ability(depth, s)
	}
}

func (w *stubWriter) class(n ast.Node) *types.Class {
	sym := w.info.Decls[n]
	if sym == nil {
		return nil
	}
	cls, _ := sym.Type.(*types.Class)
	return cls
}

// bases lists the written bases only; the implicit object base is left out.
func (w *stubWriter) bases(cls *types.Class, written []ast.Expr) string {
	if len(written) == 0 || len(cls.Bases) == 0 {
		return ""
	}
	out := make([]string, len(cls.Bases))
	for i, b := range cls.Bases {
		out[i] = w.className(b)
	}
	return "(" + strings.Join(out, ", ") + ")"
}

func (w *stubWriter) members(depth int, body []ast.Stmt) {
	for _, s := range body {
		switch s := s.(type) {
		case *ast.Has:
			w.has(depth, s)
		default:
			w.decl(depth, s)
		}
	}
}

func (w *stubWriter) has(depth int, s *ast.Has) {
	prefix := "has"
	if s.Static {
		prefix = "static has"
	}
	for _, v := range s.Vars {
		sym := w.info.Decls[v]
		if sym == nil || sym.Decl() != v {
			continue
		}
		text := fmt.Sprintf("%s%s %s: %s", prefix, access(sym.Access), v.Name.Value, w.typeText(sym.Type))
		if v.Value != nil {
			text += " = " + ast.Format(v.Value)
		}
		w.line(depth, "%s;", text)
	}
}

func (w *stubWriter) ability(depth int, s *ast.Ability) {
	sym := w.info.Decls[s]
	if sym == nil {
		return
	}
	f, ok := sym.Type.(*types.Function)
	if !ok {
		return
	}
	var b strings.Builder
	if s.Static {
		b.WriteString("static ")
	}
	if s.Event != nil {
		fmt.Fprintf(&b, "can%s %s with ", access(sym.Access), s.Name.Value)
		if s.Event.Type != nil {
			b.WriteString(ast.Format(s.Event.Type) + " ")
		}
		if s.Event.Entry {
			b.WriteString("entry")
		} else {
			b.WriteString("exit")
		}
	} else {
		fmt.Fprintf(&b, "def%s %s(%s)", access(sym.Access), s.Name.Value, w.params(f, s.Sig))
		if s.Name.Value != "__init__" {
			b.WriteString(" -> " + w.typeText(f.Return))
		}
	}
	if s.Abstract {
		b.WriteString(" abs")
	}
	w.line(depth, "%s;", b.String())
}

func (w *stubWriter) params(f *types.Function, sig *ast.Signature) string {
	out := make([]string, len(f.Params))
	for i, p := range f.Params {
		var b strings.Builder
		switch p.Kind {
		case types.VarArgs:
			b.WriteString("*")
		case types.KwArgs:
			b.WriteString("**")
		}
		b.WriteString(p.Name + ": " + w.typeText(p.Type))
		if sig != nil && i < len(sig.Params) && sig.Params[i].Default != nil {
			b.WriteString(" = " + ast.Format(sig.Params[i].Default))
		}
		out[i] = b.String()
	}
	return strings.Join(out, ", ")
}

// className is the name of cls as seen from the stub's module. Classes of
// other local modules are qualified and their module is imported.
func (w *stubWriter) className(cls *types.Class) string {
	switch cls.Module {
	case "builtins", "", w.module:
		return cls.Name
	}
	w.imports.Insert(cls.Module)
	return cls.FullName
}

// typeText renders t as an annotation that parses back to the same type.
func (w *stubWriter) typeText(t types.Type) string {
	switch t := t.(type) {
	case nil:
		return "any"
	case types.Special:
		if t == types.None {
			return "None"
		}
		return "any"
	case *types.Instance:
		switch of := t.Of.(type) {
		case *types.Class:
			return w.className(of)
		default:
			return w.typeText(of)
		}
	case *types.Generic:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = w.typeText(a)
		}
		return w.className(t.Base) + "[" + strings.Join(args, ", ") + "]"
	case *types.TypeVar:
		if t.Resolved != nil {
			return w.typeText(t.Resolved)
		}
		return "any"
	case *types.Union:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = w.typeText(m)
		}
		return strings.Join(parts, " | ")
	case *types.Class:
		return "type"
	default:
		return "any"
	}
}
