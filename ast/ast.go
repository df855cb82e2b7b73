package ast

import (
	"strings"

	"github.com/jaclang/jtype/lexer"
)

type Node interface {
	Span() lexer.Span
}

type Expr interface {
	Node
	exprNode()
}

type Stmt interface {
	Node
	stmtNode()
}

// Loc is embedded in every node.
type Loc struct {
	Range lexer.Span
}

func (l Loc) Span() lexer.Span { return l.Range }

func At(span lexer.Span) Loc { return Loc{Range: span} }

var _ Node = (*Module)(nil)
var _ Stmt = (*Import)(nil)
var _ Stmt = (*Archetype)(nil)
var _ Stmt = (*Enum)(nil)
var _ Stmt = (*Has)(nil)
var _ Stmt = (*Ability)(nil)
var _ Stmt = (*ImplDef)(nil)
var _ Stmt = (*GlobalVars)(nil)
var _ Stmt = (*ModuleCode)(nil)
var _ Stmt = (*Assignment)(nil)
var _ Stmt = (*ExprStmt)(nil)
var _ Stmt = (*Return)(nil)
var _ Stmt = (*If)(nil)
var _ Stmt = (*Block)(nil)
var _ Stmt = (*While)(nil)
var _ Stmt = (*For)(nil)
var _ Stmt = (*CtrlStmt)(nil)
var _ Expr = (*Name)(nil)
var _ Expr = (*SpecialVarRef)(nil)
var _ Expr = (*BuiltinType)(nil)
var _ Expr = (*Int)(nil)
var _ Expr = (*Float)(nil)
var _ Expr = (*String)(nil)
var _ Expr = (*Bool)(nil)
var _ Expr = (*Null)(nil)
var _ Expr = (*ListVal)(nil)
var _ Expr = (*SetVal)(nil)
var _ Expr = (*TupleVal)(nil)
var _ Expr = (*DictVal)(nil)
var _ Expr = (*BinaryExpr)(nil)
var _ Expr = (*CompareExpr)(nil)
var _ Expr = (*BoolExpr)(nil)
var _ Expr = (*UnaryExpr)(nil)
var _ Expr = (*IfExpr)(nil)
var _ Expr = (*SelectorExpr)(nil)
var _ Expr = (*CallExpr)(nil)
var _ Expr = (*KWPair)(nil)
var _ Expr = (*IndexExpr)(nil)
var _ Expr = (*SliceExpr)(nil)

type Access int

const (
	AccessDefault Access = iota
	AccessPublic
	AccessPrivate
	AccessProtected
)

type Module struct {
	Loc
	Name string
	File string
	Body []Stmt
}

type ModulePath struct {
	Loc
	Parts []*Name
	Alias *Name
}

func (p *ModulePath) String() string {
	parts := make([]string, len(p.Parts))
	for i, n := range p.Parts {
		parts[i] = n.Value
	}
	return strings.Join(parts, ".")
}

type ImportItem struct {
	Loc
	Name  *Name
	Alias *Name
}

// Bound is the name the item is visible as.
func (i *ImportItem) Bound() *Name {
	if i.Alias != nil {
		return i.Alias
	}
	return i.Name
}

// Import is either `import a.b as c;` (Paths) or `import from a.b { X, Y
// as Z }` (From and Items).
type Import struct {
	Loc
	Paths []*ModulePath
	From  *ModulePath
	Items []*ImportItem
}

type ArchKind int

const (
	ArchObj ArchKind = iota
	ArchNode
	ArchEdge
	ArchWalker
	ArchClass
)

func (k ArchKind) String() string {
	return [...]string{"obj", "node", "edge", "walker", "class"}[k]
}

type Archetype struct {
	Loc
	Kind   ArchKind
	Access Access
	Name   *Name
	Bases  []Expr
	Body   []Stmt
}

// Abstract reports whether the archetype declares an abstract ability.
func (a *Archetype) Abstract() bool {
	for _, s := range a.Body {
		if ab, ok := s.(*Ability); ok && ab.Abstract {
			return true
		}
	}
	return false
}

type Enum struct {
	Loc
	Access   Access
	Name     *Name
	Bases    []Expr
	Variants []*EnumVariant
	Body     []Stmt
}

type EnumVariant struct {
	Loc
	Name  *Name
	Value Expr
}

type Has struct {
	Loc
	Static bool
	Access Access
	Vars   []*HasVar
}

type HasVar struct {
	Loc
	Name  *Name
	Type  *TypeTag
	Value Expr
}

type Ability struct {
	Loc
	Static   bool
	Abstract bool
	Access   Access
	Name     *Name
	Sig      *Signature
	Event    *EventSig
	Body     []Stmt
	HasBody  bool
}

// EventSig is the `with X entry` form of an ability signature.
type EventSig struct {
	Loc
	Type  *TypeTag
	Entry bool
}

type ParamKind int

const (
	ParamNormal ParamKind = iota
	ParamStar
	ParamDoubleStar
)

type Param struct {
	Loc
	Kind    ParamKind
	Name    *Name
	Type    *TypeTag
	Default Expr
}

type Signature struct {
	Loc
	Params []*Param
	Return *TypeTag
}

// ImplDef supplies the body of an ability declared elsewhere, as in
// `impl Circle.area() -> float { ... }`.
type ImplDef struct {
	Loc
	Target []*Name
	Sig    *Signature
	Event  *EventSig
	Body   []Stmt
}

func (d *ImplDef) TargetName() string {
	parts := make([]string, len(d.Target))
	for i, n := range d.Target {
		parts[i] = n.Value
	}
	return strings.Join(parts, ".")
}

type GlobalVars struct {
	Loc
	Access  Access
	Assigns []*Assignment
}

type ModuleCode struct {
	Loc
	Name *Name
	Body []Stmt
}

type Assignment struct {
	Loc
	Targets []Expr
	Type    *TypeTag
	Value   Expr
	AugOp   lexer.TokenType
}

func (a *Assignment) IsAug() bool {
	return a.AugOp != 0
}

type ExprStmt struct {
	Loc
	X Expr
}

type Return struct {
	Loc
	Value Expr
}

// If chains elif clauses through Else, which is an *If or a *Block.
type If struct {
	Loc
	Cond Expr
	Body []Stmt
	Else Stmt
}

type Block struct {
	Loc
	Body []Stmt
}

type While struct {
	Loc
	Cond Expr
	Body []Stmt
}

type For struct {
	Loc
	Target Expr
	Iter   Expr
	Body   []Stmt
}

type CtrlStmt struct {
	Loc
	Tok lexer.Token
}

// TypeTag marks an expression used as a type annotation.
type TypeTag struct {
	Loc
	Type Expr
}

type Name struct {
	Loc
	Value string
}

// SpecialVarRef is self, here, super or root.
type SpecialVarRef struct {
	Loc
	Value string
}

type BuiltinType struct {
	Loc
	Value string
}

type Int struct {
	Loc
	Value string
}

type Float struct {
	Loc
	Value string
}

type String struct {
	Loc
	Value string
}

type Bool struct {
	Loc
	Value bool
}

type Null struct {
	Loc
}

type ListVal struct {
	Loc
	Elems []Expr
}

type SetVal struct {
	Loc
	Elems []Expr
}

type TupleVal struct {
	Loc
	Elems []Expr
}

type KVPair struct {
	Loc
	Key   Expr
	Value Expr
}

type DictVal struct {
	Loc
	Pairs []*KVPair
}

type BinaryExpr struct {
	Loc
	Left  Expr
	Op    lexer.Token
	Right Expr
}

// CompareExpr is a comparison chain: Left Ops[0] Rights[0] Ops[1] ...
type CompareExpr struct {
	Loc
	Left   Expr
	Ops    []lexer.Token
	Rights []Expr
}

type BoolExpr struct {
	Loc
	Op     lexer.Token
	Values []Expr
}

type UnaryExpr struct {
	Loc
	Op lexer.Token
	X  Expr
}

type IfExpr struct {
	Loc
	Then Expr
	Cond Expr
	Else Expr
}

type SelectorExpr struct {
	Loc
	X   Expr
	Sel *Name
}

// CallExpr arguments are expressions or *KWPair.
type CallExpr struct {
	Loc
	Fun  Expr
	Args []Expr
}

type KWPair struct {
	Loc
	Key   *Name
	Value Expr
}

type IndexExpr struct {
	Loc
	X     Expr
	Index Expr
}

type SliceExpr struct {
	Loc
	Lo, Hi, Step Expr
}

func (*Import) stmtNode()     {}
func (*Archetype) stmtNode()  {}
func (*Enum) stmtNode()       {}
func (*Has) stmtNode()        {}
func (*Ability) stmtNode()    {}
func (*ImplDef) stmtNode()    {}
func (*GlobalVars) stmtNode() {}
func (*ModuleCode) stmtNode() {}
func (*Assignment) stmtNode() {}
func (*ExprStmt) stmtNode()   {}
func (*Return) stmtNode()     {}
func (*If) stmtNode()         {}
func (*Block) stmtNode()      {}
func (*While) stmtNode()      {}
func (*For) stmtNode()        {}
func (*CtrlStmt) stmtNode()   {}

func (*Name) exprNode()          {}
func (*SpecialVarRef) exprNode() {}
func (*BuiltinType) exprNode()   {}
func (*Int) exprNode()           {}
func (*Float) exprNode()         {}
func (*String) exprNode()        {}
func (*Bool) exprNode()          {}
func (*Null) exprNode()          {}
func (*ListVal) exprNode()       {}
func (*SetVal) exprNode()        {}
func (*TupleVal) exprNode()      {}
func (*DictVal) exprNode()       {}
func (*BinaryExpr) exprNode()    {}
func (*CompareExpr) exprNode()   {}
func (*BoolExpr) exprNode()      {}
func (*UnaryExpr) exprNode()     {}
func (*IfExpr) exprNode()        {}
func (*SelectorExpr) exprNode()  {}
func (*CallExpr) exprNode()      {}
func (*KWPair) exprNode()        {}
func (*IndexExpr) exprNode()     {}
func (*SliceExpr) exprNode()     {}

var canonicalNames = map[string]string{
	"init":     "__init__",
	"postinit": "__post_init__",
}

// CanonicalName maps Jac's special ability names to their dunder form.
func CanonicalName(name string) string {
	if c, ok := canonicalNames[name]; ok {
		return c
	}
	return name
}
