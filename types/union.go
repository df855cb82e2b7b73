package types

import "strings"

// Union is a flattened, deduplicated set of at least two member types.
// Construct it with NewUnion.
type Union struct {
	Members []Type
}

func (*Union) isType() {}

func (u *Union) String() string {
	parts := make([]string, len(u.Members))
	for i, m := range u.Members {
		parts[i] = m.String()
	}
	return strings.Join(parts, " | ")
}

// NewUnion normalizes ts into a single type. Nested unions are flattened,
// duplicates removed, members subsumed by a base class member dropped,
// Never dropped and Any absorbs everything. A result with one member is
// returned as is.
func NewUnion(ts ...Type) Type {
	var flat []Type
	var flatten func([]Type)
	flatten = func(ts []Type) {
		for _, t := range ts {
			if u, ok := t.(*Union); ok {
				flatten(u.Members)
			} else if t != nil {
				flat = append(flat, t)
			}
		}
	}
	flatten(ts)

	var members []Type
	for _, t := range flat {
		switch t {
		case Any:
			return Any
		case Never:
			continue
		}
		if !containsSame(members, t) {
			members = append(members, t)
		}
	}

	kept := members[:0:0]
	for i, t := range members {
		subsumed := false
		for j, o := range members {
			if i != j && subsumes(o, t) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			kept = append(kept, t)
		}
	}

	switch len(kept) {
	case 0:
		return Never
	case 1:
		return kept[0]
	default:
		return &Union{Members: kept}
	}
}

// subsumes reports whether wide is an instance of a proper base class of
// narrow's class. Promotions through AssignableFrom do not count.
func subsumes(wide, narrow Type) bool {
	w, ok := wide.(*Instance)
	if !ok {
		return false
	}
	n, ok := narrow.(*Instance)
	if !ok {
		return false
	}
	wc, ok := w.Of.(*Class)
	if !ok {
		return false
	}
	nc, ok := n.Of.(*Class)
	if !ok || nc == wc {
		return false
	}
	return nc.IsSubclass(wc)
}

func containsSame(ts []Type, t Type) bool {
	for _, o := range ts {
		if IsSameType(o, t) {
			return true
		}
	}
	return false
}

// Contains reports whether t is one of the members of u.
func (u *Union) Contains(t Type) bool {
	return containsSame(u.Members, t)
}

// Narrow keeps the members for which keep returns true.
func (u *Union) Narrow(keep func(Type) bool) Type {
	var out []Type
	for _, m := range u.Members {
		if keep(m) {
			out = append(out, m)
		}
	}
	return NewUnion(out...)
}
