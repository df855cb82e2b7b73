package types

// IsSameType reports structural equality for unions, functions and
// generics, and identity for classes.
func IsSameType(a, b Type) bool {
	switch a := a.(type) {
	case Special:
		b, ok := b.(Special)
		return ok && a == b
	case *Class:
		b, ok := b.(*Class)
		return ok && a == b
	case *Instance:
		b, ok := b.(*Instance)
		return ok && IsSameType(a.Of, b.Of)
	case *TypeVar:
		b, ok := b.(*TypeVar)
		if !ok {
			return false
		}
		if a == b {
			return true
		}
		return a.Resolved != nil && b.Resolved != nil && IsSameType(a.Resolved, b.Resolved)
	case *Generic:
		b, ok := b.(*Generic)
		if !ok || a.Base != b.Base || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !IsSameType(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case *Function:
		b, ok := b.(*Function)
		if !ok || len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if a.Params[i].Kind != b.Params[i].Kind || !IsSameType(a.Params[i].Type, b.Params[i].Type) {
				return false
			}
		}
		return IsSameType(returnOf(a), returnOf(b))
	case *Union:
		b, ok := b.(*Union)
		if !ok || len(a.Members) != len(b.Members) {
			return false
		}
		for _, m := range a.Members {
			if !b.Contains(m) {
				return false
			}
		}
		return true
	}
	return false
}

func returnOf(f *Function) Type {
	if f.Return == nil {
		return None
	}
	return f.Return
}

// CanAssign reports whether a value of type source may be stored where
// target is expected.
func CanAssign(target, source Type) bool {
	return new(Relation).CanAssign(target, source)
}

// IsAssignableTo is CanAssign with the arguments swapped.
func IsAssignableTo(source, target Type) bool {
	return CanAssign(target, source)
}

// Relation memoizes function assignability. A Relation lives for one pass.
type Relation struct {
	funcs map[[2]*Function]bool
}

func NewRelation() *Relation {
	return &Relation{}
}

func (r *Relation) CanAssign(target, source Type) bool {
	if target == nil || source == nil {
		return false
	}
	if IsSameType(target, source) {
		return true
	}
	switch target {
	case Any, Unknown:
		return true
	}
	switch source {
	case Any, Never:
		return true
	case Unknown:
		return false
	}
	if target == Never {
		return false
	}

	if tv, ok := target.(*TypeVar); ok {
		if tv.Resolved == nil {
			return true
		}
		return r.CanAssign(tv.Resolved, source)
	}
	if sv, ok := source.(*TypeVar); ok {
		if sv.Resolved == nil {
			return true
		}
		return r.CanAssign(target, sv.Resolved)
	}

	if su, ok := source.(*Union); ok {
		for _, m := range su.Members {
			if !r.CanAssign(target, m) {
				return false
			}
		}
		return true
	}
	if tu, ok := target.(*Union); ok {
		for _, m := range tu.Members {
			if r.CanAssign(m, source) {
				return true
			}
		}
		return false
	}

	switch t := target.(type) {
	case *Instance:
		s, ok := source.(*Instance)
		return ok && r.holderAssignable(t.Of, s.Of)
	case *Class:
		switch s := source.(type) {
		case *Class:
			return classAccepts(t, s)
		case *Generic:
			return classAccepts(t, s.Base)
		}
	case *Generic:
		switch s := source.(type) {
		case *Generic, *Class:
			return r.holderAssignable(t, s)
		}
	case *Function:
		if s, ok := source.(*Function); ok {
			return r.funcAssignable(t, s)
		}
	}
	return false
}

// holderAssignable compares the member-holding types wrapped by instances.
func (r *Relation) holderAssignable(target, source Type) bool {
	if tv, ok := target.(*TypeVar); ok {
		if tv.Resolved == nil {
			return true
		}
		return r.CanAssign(asInstance(tv.Resolved), NewInstance(source))
	}
	if sv, ok := source.(*TypeVar); ok {
		if sv.Resolved == nil {
			return true
		}
		return r.CanAssign(NewInstance(target), asInstance(sv.Resolved))
	}
	switch t := target.(type) {
	case *Class:
		switch s := source.(type) {
		case *Class:
			return classAccepts(t, s)
		case *Generic:
			return classAccepts(t, s.Base)
		}
	case *Generic:
		switch s := source.(type) {
		case *Class:
			return classAccepts(t.Base, s)
		case *Generic:
			if !classAccepts(t.Base, s.Base) || len(t.Args) != len(s.Args) {
				return false
			}
			for i := range t.Args {
				if !r.CanAssign(t.Args[i], s.Args[i]) {
					return false
				}
			}
			return true
		}
	}
	return false
}

// classAccepts reports whether instances of source may be used where
// instances of target are expected, following base chains and the
// AssignableFrom lists transitively.
func classAccepts(target, source *Class) bool {
	return accepts(target.origin(), source.origin(), map[*Class]bool{})
}

func accepts(target, source *Class, seen map[*Class]bool) bool {
	if source.IsSubclass(target) {
		return true
	}
	if seen[target] {
		return false
	}
	seen[target] = true
	for _, a := range target.AssignableFrom {
		if accepts(a, source, seen) {
			return true
		}
	}
	return false
}

func (r *Relation) funcAssignable(target, source *Function) bool {
	key := [2]*Function{target, source}
	if v, ok := r.funcs[key]; ok {
		return v
	}
	if r.funcs == nil {
		r.funcs = map[[2]*Function]bool{}
	}
	// Provisional entry for recursive signatures.
	r.funcs[key] = true
	ok := r.CanAssign(returnOf(target), returnOf(source)) && len(target.Params) == len(source.Params)
	for i := 0; ok && i < len(target.Params); i++ {
		tp, sp := target.Params[i], source.Params[i]
		ok = tp.Kind == sp.Kind && r.CanAssign(sp.Type, tp.Type)
	}
	r.funcs[key] = ok
	return ok
}
