package scope

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/types"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Kind int

const (
	ModuleScope Kind = iota
	ArchetypeScope
	EnumScope
	AbilityScope
	ImplScope
)

func (k Kind) String() string {
	return [...]string{"module", "archetype", "enum", "ability", "impl"}[k]
}

type SymbolKind int

const (
	Variable SymbolKind = iota
	Param
	Field
	Method
	Ability
	Archetype
	Enum
	Variant
	Import
	Module
)

func (k SymbolKind) String() string {
	return [...]string{"var", "param", "field", "method", "ability", "archetype", "enum", "variant", "import", "module"}[k]
}

// IsMethod reports whether symbols of this kind become methods when
// gathered into a class.
func (k SymbolKind) IsMethod() bool {
	return k == Method || k == Ability
}

// IsType reports whether the symbol names a class-like declaration.
func (k SymbolKind) IsType() bool {
	return k == Archetype || k == Enum
}

type Symbol struct {
	Name     string
	Kind     SymbolKind
	Access   types.Visibility
	Type     types.Type
	Inferred bool
	Static   bool
	Defs     []ast.Node
	Uses     []ast.Node

	// Constraints narrow Type inside guarded blocks; the innermost is last.
	Constraints []types.Type

	Scope *Scope

	// Imported is the qualified origin "mod.Name" of an imported symbol, or
	// the module name for `import mod;`.
	Imported string

	order int
}

var _ types.Decl = (*Symbol)(nil)
var _ types.Ordered = (*Symbol)(nil)

func (s *Symbol) DeclName() string { return s.QualifiedName() }

func (s *Symbol) Order() int { return s.order }

func (s *Symbol) QualifiedName() string {
	if s.Scope == nil {
		return s.Name
	}
	return s.Scope.QualifiedName() + "." + s.Name
}

// Decl is the first definition site.
func (s *Symbol) Decl() ast.Node {
	if len(s.Defs) == 0 {
		return nil
	}
	return s.Defs[0]
}

// Current is the symbol's type under the innermost active constraint.
func (s *Symbol) Current() types.Type {
	if n := len(s.Constraints); n > 0 {
		return s.Constraints[n-1]
	}
	if s.Type == nil {
		return types.Any
	}
	return s.Type
}

func (s *Symbol) PushConstraint(t types.Type) {
	s.Constraints = append(s.Constraints, t)
}

func (s *Symbol) PopConstraint() {
	s.Constraints = s.Constraints[:len(s.Constraints)-1]
}

func (s *Symbol) String() string {
	t := s.Type
	if t == nil {
		t = types.Any
	}
	return fmt.Sprintf("%s %s: %s", s.Kind, s.Name, types.Name(t))
}

type Scope struct {
	Kind     Kind
	Name     string
	Node     ast.Node
	Parent   *Scope
	Children []*Scope

	// Target is the ability an impl scope supplies a body for.
	Target *Symbol

	symbols map[string]*Symbol
	count   int
}

func New(kind Kind, name string, node ast.Node, parent *Scope) *Scope {
	s := &Scope{
		Kind:    kind,
		Name:    name,
		Node:    node,
		Parent:  parent,
		symbols: map[string]*Symbol{},
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

func isAny(t types.Type) bool {
	return t == nil || t == types.Any || t == types.Unknown
}

// Define adds a symbol or merges a definition into the existing one. The
// stored type is only replaced by a more specific type, so a later Any
// never erases a known type.
func (s *Scope) Define(name string, kind SymbolKind, typ types.Type, def ast.Node, inferred bool) *Symbol {
	if sym, ok := s.symbols[name]; ok {
		if def != nil {
			sym.Defs = append(sym.Defs, def)
		}
		if isAny(sym.Type) || (!isAny(typ) && types.IsAssignableTo(typ, sym.Type)) {
			if typ != nil {
				sym.Type = typ
				sym.Inferred = inferred
			}
		}
		return sym
	}
	if typ == nil {
		typ = types.Any
	}
	sym := &Symbol{
		Name:     name,
		Kind:     kind,
		Type:     typ,
		Inferred: inferred,
		Scope:    s,
		order:    s.count,
	}
	if def != nil {
		sym.Defs = append(sym.Defs, def)
	}
	s.count++
	s.symbols[name] = sym
	return sym
}

// Lookup finds name in s and, when deep, in its ancestors. Sibling scopes
// are never searched.
func (s *Scope) Lookup(name string, deep bool) (*Symbol, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if sym, ok := cur.symbols[name]; ok {
			return sym, true
		}
		if !deep {
			break
		}
	}
	return nil, false
}

// UpdateType replaces the type of an existing local symbol.
func (s *Scope) UpdateType(name string, typ types.Type, inferred bool) bool {
	sym, ok := s.symbols[name]
	if !ok {
		return false
	}
	sym.Type = typ
	sym.Inferred = inferred
	return true
}

// Symbols returns the local symbols in definition order.
func (s *Scope) Symbols() []*Symbol {
	syms := maps.Values(s.symbols)
	slices.SortFunc(syms, func(a, b *Symbol) bool {
		return a.order < b.order
	})
	return syms
}

func (s *Scope) Len() int { return len(s.symbols) }

// QualifiedName is the dotted path of the scope from the module down.
func (s *Scope) QualifiedName() string {
	if s.Parent == nil {
		return s.Name
	}
	return s.Parent.QualifiedName() + "." + s.Name
}

// Enclosing returns the innermost scope, starting at s, with one of kinds.
func (s *Scope) Enclosing(kinds ...Kind) *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if slices.Contains(kinds, cur.Kind) {
			return cur
		}
	}
	return nil
}

func (s *Scope) Module() *Scope {
	cur := s
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Child returns the direct child scope declared by node.
func (s *Scope) Child(node ast.Node) *Scope {
	for _, c := range s.Children {
		if c.Node == node {
			return c
		}
	}
	return nil
}

// Stats counts the symbols of every kind in s and its descendants.
func (s *Scope) Stats() map[SymbolKind]int {
	stats := map[SymbolKind]int{}
	var walk func(*Scope)
	walk = func(cur *Scope) {
		for _, sym := range cur.symbols {
			stats[sym.Kind]++
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(s)
	return stats
}

func scopeString(buf io.Writer, s *Scope, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(buf, "%s%s %s\n", indent, s.Kind, s.Name)
	syms := s.Symbols()
	if len(syms) == 0 {
		fmt.Fprintf(buf, "%s  (empty)\n", indent)
	}
	for _, sym := range syms {
		t := sym.Type
		if t == nil {
			t = types.Any
		}
		inferred := ""
		if sym.Inferred {
			inferred = "inferred"
		}
		fmt.Fprintf(buf, "%s  %s\t%s\t%s\t%s\n", indent, sym.Name, sym.Kind, types.Name(t), inferred)
	}
	for _, c := range s.Children {
		scopeString(buf, c, depth+1)
	}
}

func (s *Scope) String() string {
	sb := new(strings.Builder)
	buf := tabwriter.NewWriter(sb, 0, 0, 1, ' ', 0)
	scopeString(buf, s, 0)
	buf.Flush()
	return sb.String()
}

// Table tracks the active scope while a pass walks the tree.
type Table struct {
	root *Scope
	cur  *Scope
}

func NewTable(root *Scope) *Table {
	return &Table{root: root, cur: root}
}

// Enter makes the child declared by node current, creating it when the
// scope tree does not have one yet.
func (t *Table) Enter(kind Kind, name string, node ast.Node) *Scope {
	child := t.cur.Child(node)
	if child == nil {
		child = New(kind, name, node, t.cur)
	}
	t.cur = child
	return child
}

func (t *Table) Exit() {
	if t.cur.Parent == nil {
		panic("exit from module scope")
	}
	t.cur = t.cur.Parent
}

func (t *Table) Current() *Scope { return t.cur }

func (t *Table) Root() *Scope { return t.root }
