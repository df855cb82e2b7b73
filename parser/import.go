package parser

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/lexer"
	"github.com/samber/lo"
	"golang.org/x/mod/module"
)

var ErrImportCycle = errors.New("import cycle detected")

// Importer loads a module and the local modules it imports. Modules are
// keyed by their dotted name.
type Importer struct {
	root     fs.FS
	Modules  map[string]*ast.Module
	Deps     map[string][]string
	Sorted   []string
	External *set.Set[string]
	errs     []error
}

func NewImporter(root fs.FS) *Importer {
	return &Importer{
		root:     root,
		Modules:  make(map[string]*ast.Module),
		Deps:     make(map[string][]string),
		External: set.New[string](0),
	}
}

// Imports lists the dotted module names m imports, in source order.
func Imports(m *ast.Module) []string {
	var paths []string
	for _, imp := range ast.Find[*ast.Import](m) {
		if imp.From != nil {
			paths = append(paths, imp.From.String())
		}
		for _, p := range imp.Paths {
			paths = append(paths, p.String())
		}
	}
	return lo.Uniq(paths)
}

// Resolve maps a dotted module name to a file in the importer's root.
func (i *Importer) Resolve(name string) (string, bool) {
	base := strings.ReplaceAll(name, ".", "/")
	for _, file := range []string{base + lexer.Ext, path.Join(base, "__init__"+lexer.Ext)} {
		if module.CheckFilePath(file) != nil {
			continue
		}
		if _, err := fs.Stat(i.root, file); err == nil {
			return file, true
		}
	}
	return "", false
}

func (i *Importer) importCrawl(name, file string) {
	m, err := i.ImportSingle(name, file)
	if err != nil {
		i.errs = append(i.errs, err)
	}
	if m == nil {
		return
	}
	var deps []string
	for _, dep := range Imports(m) {
		depFile, ok := i.Resolve(dep)
		if !ok {
			i.External.Insert(dep)
			continue
		}
		deps = append(deps, dep)
		if _, ok := i.Modules[dep]; !ok {
			i.importCrawl(dep, depFile)
		}
	}
	i.Deps[name] = deps
	i.Sorted = append(i.Sorted, name)
}

func (i *Importer) checkCycle() error {
	pos := make(map[string]int)
	for idx, name := range i.Sorted {
		pos[name] = idx
	}
	names := lo.Keys(i.Deps)
	sort.Strings(names)
	for _, name := range names {
		for _, dep := range i.Deps[name] {
			if pos[name] <= pos[dep] {
				return fmt.Errorf("%w: %s", ErrImportCycle, strings.Join(i.cycle(dep, name), " -> "))
			}
		}
	}
	return nil
}

// cycle finds the import path from 'from' back to 'to' and closes it.
func (i *Importer) cycle(from, to string) []string {
	seen := set.New[string](len(i.Deps))
	var walk func(string) []string
	walk = func(cur string) []string {
		if cur == to {
			return []string{cur}
		}
		if !seen.Insert(cur) {
			return nil
		}
		for _, dep := range i.Deps[cur] {
			if p := walk(dep); p != nil {
				return append([]string{cur}, p...)
			}
		}
		return nil
	}
	p := walk(from)
	if p == nil {
		return []string{to, from}
	}
	return append([]string{to}, p...)
}

// ImportCrawl imports the module in file and all of its local
// dependencies. Sorted lists modules so that every module comes after the
// modules it imports. Syntax errors do not stop the crawl; they are joined
// into the returned error together with any import cycle.
func (i *Importer) ImportCrawl(file string) error {
	name := ModuleName(file)
	if _, ok := i.Modules[name]; !ok {
		i.importCrawl(name, file)
	}
	if err := i.checkCycle(); err != nil {
		i.errs = append(i.errs, err)
	}
	return errors.Join(i.errs...)
}

// ImportSingle parses one module, consulting the cache first.
func (i *Importer) ImportSingle(name, file string) (*ast.Module, error) {
	if m, ok := i.Modules[name]; ok {
		return m, nil
	}
	if err := module.CheckFilePath(file); err != nil {
		return nil, fmt.Errorf("invalid module path %s: %w", file, err)
	}
	m, err := ParseFile(i.root, file)
	if m == nil {
		return nil, err
	}
	m.Name = name
	i.Modules[name] = m
	return m, err
}
