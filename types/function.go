package types

import "strings"

type ParamKind int

const (
	Positional ParamKind = iota
	VarArgs
	KwArgs
)

type Param struct {
	Name     string
	Type     Type
	Optional bool
	Kind     ParamKind
}

func (p Param) String() string {
	var b strings.Builder
	switch p.Kind {
	case VarArgs:
		b.WriteString("*")
	case KwArgs:
		b.WriteString("**")
	}
	b.WriteString(p.Name)
	b.WriteString(": ")
	b.WriteString(typeName(p.Type))
	if p.Optional {
		b.WriteString(" = ...")
	}
	return b.String()
}

// Function is a callable signature. Overloads are alternative signatures
// tried in order after the primary one.
type Function struct {
	Params    []Param
	Return    Type
	Overloads []*Function
}

func (*Function) isType() {}

func (f *Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	ret := f.Return
	if ret == nil {
		ret = None
	}
	return "(" + strings.Join(params, ", ") + ") -> " + typeName(ret)
}

// Param returns the parameter called name, falling back to a **kwargs
// parameter when there is one.
func (f *Function) Param(name string) (Param, bool) {
	var kw *Param
	for i, p := range f.Params {
		switch {
		case p.Kind == KwArgs:
			kw = &f.Params[i]
		case p.Kind == Positional && p.Name == name:
			return p, true
		}
	}
	if kw != nil {
		return *kw, true
	}
	return Param{}, false
}

// Positional returns the parameter bound to the i-th positional argument.
func (f *Function) Positional(i int) (Param, bool) {
	n := 0
	for _, p := range f.Params {
		switch p.Kind {
		case VarArgs:
			return p, true
		case Positional:
			if n == i {
				return p, true
			}
			n++
		}
	}
	return Param{}, false
}

// Required returns the positional parameters without a default.
func (f *Function) Required() []Param {
	var out []Param
	for _, p := range f.Params {
		if p.Kind == Positional && !p.Optional {
			out = append(out, p)
		}
	}
	return out
}

// CanAccept reports whether f can be called with the given positional
// argument types.
func (f *Function) CanAccept(args []Type) bool {
	return f.canAccept(new(Relation), args)
}

func (f *Function) canAccept(r *Relation, args []Type) bool {
	if len(args) < len(f.Required()) {
		return false
	}
	for i, a := range args {
		p, ok := f.Positional(i)
		if !ok || !r.CanAssign(p.Type, a) {
			return false
		}
	}
	return true
}

// ResolveOverload returns the first signature among f and its overloads
// that accepts args, or nil.
func (f *Function) ResolveOverload(args []Type) *Function {
	r := new(Relation)
	if f.canAccept(r, args) {
		return f
	}
	for _, o := range f.Overloads {
		if o.canAccept(r, args) {
			return o
		}
	}
	return nil
}
