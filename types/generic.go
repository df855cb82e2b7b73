package types

// Generic is a generic class specialized with concrete arguments.
type Generic struct {
	Base *Class
	Args []Type

	spec *Class
}

func NewGeneric(base *Class, args ...Type) *Generic {
	return &Generic{Base: base, Args: args}
}

func (*Generic) isType() {}

func (g *Generic) String() string {
	return typeName(g)
}

// Bindings maps each type parameter of the base to its argument. Missing
// arguments leave the parameter unbound.
func (g *Generic) Bindings() map[*TypeVar]Type {
	m := make(map[*TypeVar]Type, len(g.Base.Generics))
	for i, tv := range g.Base.Generics {
		if i < len(g.Args) {
			m[tv] = g.Args[i]
		}
	}
	return m
}

// Specialized returns a copy of the base class with every type variable in
// its member types replaced per the arguments. It is built on first use.
func (g *Generic) Specialized() *Class {
	if g.spec != nil {
		return g.spec
	}
	b := g.Bindings()
	c := &Class{
		Name:           g.Base.Name,
		FullName:       g.Base.FullName,
		Module:         g.Base.Module,
		Abstract:       g.Base.Abstract,
		Instance:       make(map[string]*Member, len(g.Base.Instance)),
		Static:         make(map[string]*Member, len(g.Base.Static)),
		Bases:          g.Base.Bases,
		AssignableFrom: g.Base.AssignableFrom,
		Of:             g.Base,
	}
	for name, m := range g.Base.Instance {
		c.Instance[name] = substMember(m, b)
	}
	for name, m := range g.Base.Static {
		c.Static[name] = substMember(m, b)
	}
	g.spec = c
	return c
}

func substMember(m *Member, b map[*TypeVar]Type) *Member {
	cp := *m
	cp.Type = Subst(m.Type, b)
	return &cp
}

// Subst replaces type variables in t, including instances of type
// variables, according to b.
func Subst(t Type, b map[*TypeVar]Type) Type {
	if len(b) == 0 {
		return t
	}
	switch t := t.(type) {
	case *TypeVar:
		if r, ok := b[t]; ok {
			return r
		}
		return t
	case *Instance:
		if tv, ok := t.Of.(*TypeVar); ok {
			if r, ok := b[tv]; ok {
				return asInstance(r)
			}
			return t
		}
		if g, ok := t.Of.(*Generic); ok {
			return NewInstance(Subst(g, b))
		}
		return t
	case *Function:
		f := &Function{
			Params: make([]Param, len(t.Params)),
			Return: Subst(t.Return, b),
		}
		for i, p := range t.Params {
			p.Type = Subst(p.Type, b)
			f.Params[i] = p
		}
		for _, o := range t.Overloads {
			f.Overloads = append(f.Overloads, Subst(o, b).(*Function))
		}
		return f
	case *Generic:
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = Subst(a, b)
		}
		return NewGeneric(t.Base, args...)
	case *Union:
		ms := make([]Type, len(t.Members))
		for i, m := range t.Members {
			ms[i] = Subst(m, b)
		}
		return NewUnion(ms...)
	default:
		return t
	}
}

func asInstance(t Type) Type {
	switch t := t.(type) {
	case *Class, *Generic:
		return NewInstance(t)
	default:
		return t
	}
}
