package types

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Type is one of Special, *Class, *Instance, *Function, *TypeVar, *Generic
// or *Union.
type Type interface {
	fmt.Stringer
	isType()
}

var _ Type = Any
var _ Type = (*Class)(nil)
var _ Type = (*Instance)(nil)
var _ Type = (*Function)(nil)
var _ Type = (*TypeVar)(nil)
var _ Type = (*Generic)(nil)
var _ Type = (*Union)(nil)

type Special int

const (
	Any Special = iota
	Unknown
	Never
	None
)

func (Special) isType() {}

func (s Special) String() string {
	switch s {
	case Any:
		return "Any"
	case Unknown:
		return "Unknown"
	case Never:
		return "Never"
	case None:
		return "None"
	default:
		panic("unreachable")
	}
}

type MemberKind int

const (
	InstanceMember MemberKind = iota
	ClassMember
)

func (k MemberKind) String() string {
	if k == ClassMember {
		return "class"
	}
	return "instance"
}

type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protect"
	case Private:
		return "priv"
	default:
		return "pub"
	}
}

// Decl is the symbol that declared a member. Members synthesized by the
// checker or loaded from built-ins have no Decl.
type Decl interface {
	DeclName() string
}

type Member struct {
	Name        string
	Type        Type
	Kind        MemberKind
	Visibility  Visibility
	IsMethod    bool
	Synthesized bool
	Decl        Decl
}

// Class is a nominal type declaration. Classes are shared by pointer and
// referenced from the registry by FullName.
type Class struct {
	Name     string
	FullName string
	Module   string
	Abstract bool

	Instance map[string]*Member
	Static   map[string]*Member

	Bases          []*Class
	Generics       []*TypeVar
	AssignableFrom []*Class

	// Of is set on classes produced by specializing a generic.
	Of *Class
}

func NewClass(module, name string) *Class {
	full := name
	if module != "" {
		full = module + "." + name
	}
	return &Class{
		Name:     name,
		FullName: full,
		Module:   module,
		Instance: map[string]*Member{},
		Static:   map[string]*Member{},
	}
}

func (*Class) isType() {}

func (c *Class) String() string {
	return "type[" + c.displayName() + "]"
}

func (c *Class) displayName() string {
	if c.Module == "builtins" || c.Module == "" {
		return c.Name
	}
	return c.FullName
}

func (c *Class) IsGeneric() bool {
	return len(c.Generics) > 0
}

func (c *Class) TypeVar(name string) (*TypeVar, bool) {
	for _, tv := range c.Generics {
		if tv.Name == name {
			return tv, true
		}
	}
	return nil, false
}

// Lookup finds a member by name in the class and then in its bases,
// depth-first and left to right.
func (c *Class) Lookup(name string) *Member {
	return c.lookup(name, map[*Class]bool{})
}

func (c *Class) lookup(name string, seen map[*Class]bool) *Member {
	if seen[c] {
		return nil
	}
	seen[c] = true
	if m, ok := c.Instance[name]; ok {
		return m
	}
	if m, ok := c.Static[name]; ok {
		return m
	}
	for _, b := range c.Bases {
		if m := b.lookup(name, seen); m != nil {
			return m
		}
	}
	return nil
}

// Fields returns the non-method instance members sorted by declaration
// order when known and by name otherwise.
func (c *Class) Fields() []*Member {
	var out []*Member
	for _, m := range c.Instance {
		if !m.IsMethod {
			out = append(out, m)
		}
	}
	sortMembers(out)
	return out
}

// Members returns every member, instance members first, in a stable order.
func (c *Class) Members() []*Member {
	inst := maps.Values(c.Instance)
	static := maps.Values(c.Static)
	sortMembers(inst)
	sortMembers(static)
	return append(inst, static...)
}

// Ordered is implemented by declarations that know their source position.
type Ordered interface {
	Order() int
}

func sortMembers(ms []*Member) {
	slices.SortStableFunc(ms, func(a, b *Member) bool {
		oa, aok := a.Decl.(Ordered)
		ob, bok := b.Decl.(Ordered)
		switch {
		case aok && bok && oa.Order() != ob.Order():
			return oa.Order() < ob.Order()
		case aok != bok:
			return aok
		}
		return a.Name < b.Name
	})
}

// Constructor returns the signature used when the class is called.
func (c *Class) Constructor() *Function {
	if m := c.Lookup("__init__"); m != nil {
		if f, ok := m.Type.(*Function); ok {
			return f
		}
	}
	return &Function{Return: NewInstance(c)}
}

// IsSubclass reports whether base appears in the transitive bases of c.
func (c *Class) IsSubclass(base *Class) bool {
	return c.isSubclass(base, map[*Class]bool{})
}

func (c *Class) isSubclass(base *Class, seen map[*Class]bool) bool {
	if c == base {
		return true
	}
	if seen[c] {
		return false
	}
	seen[c] = true
	for _, b := range c.Bases {
		if b.isSubclass(base, seen) {
			return true
		}
	}
	return false
}

func (c *Class) origin() *Class {
	if c.Of != nil {
		return c.Of
	}
	return c
}

// Instance is a value produced by instantiating Of.
type Instance struct {
	Of Type
}

// NewInstance wraps a type that can hold members. It panics for anything
// other than *Class, *Generic or *TypeVar.
func NewInstance(of Type) *Instance {
	switch of.(type) {
	case *Class, *Generic, *TypeVar:
		return &Instance{Of: of}
	default:
		panic(fmt.Sprintf("types: instance of %v", of))
	}
}

func (*Instance) isType() {}

func (i *Instance) String() string {
	return "'" + typeName(i) + "'"
}

// Class returns the class whose members an instance exposes, or nil for
// an unresolved type variable.
func (i *Instance) Class() *Class {
	switch of := i.Of.(type) {
	case *Class:
		return of
	case *Generic:
		return of.Specialized()
	case *TypeVar:
		switch r := of.Resolved.(type) {
		case *Class:
			return r
		case *Instance:
			return r.Class()
		case *Generic:
			return r.Specialized()
		}
	}
	return nil
}

func (i *Instance) Lookup(name string) *Member {
	if c := i.Class(); c != nil {
		return c.Lookup(name)
	}
	return nil
}

// IsBuiltin reports whether the instance is of the named builtins class.
func (i *Instance) IsBuiltin(name string) bool {
	c := i.Class()
	return c != nil && c.origin().FullName == "builtins."+name
}

// TypeVar is a generic type parameter. Resolved is set once the variable
// is bound to a concrete type.
type TypeVar struct {
	Name     string
	Resolved Type
}

func (*TypeVar) isType() {}

func (tv *TypeVar) String() string {
	if tv.Resolved != nil {
		return tv.Name + "=" + typeName(tv.Resolved)
	}
	return tv.Name
}

// typeName renders a type without the quotes used around instances.
func typeName(t Type) string {
	switch t := t.(type) {
	case *Instance:
		switch of := t.Of.(type) {
		case *Class:
			return of.displayName()
		default:
			return typeName(of)
		}
	case *Class:
		return t.displayName()
	case *Generic:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = typeName(a)
		}
		return t.Base.displayName() + "[" + strings.Join(args, ", ") + "]"
	case *TypeVar:
		if t.Resolved != nil {
			return typeName(t.Resolved)
		}
		return t.Name
	case *Union:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = typeName(m)
		}
		return strings.Join(parts, " | ")
	default:
		return t.String()
	}
}

// Name renders t the way it is written in a type annotation.
func Name(t Type) string {
	return typeName(t)
}
