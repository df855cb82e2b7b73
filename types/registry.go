package types

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

//go:embed builtins.json
var builtinsJSON []byte

// Registry maps fully qualified names to class types. One registry is
// shared by every module of a build and is only written by the driver.
type Registry struct {
	types map[string]*Class
}

func NewRegistry() *Registry {
	return &Registry{types: map[string]*Class{}}
}

// Default returns a registry loaded with the embedded built-ins.
func Default() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadBuiltins(builtinsJSON); err != nil {
		return nil, err
	}
	return r, nil
}

// Register inserts c, replacing any class with the same full name.
func (r *Registry) Register(c *Class) {
	r.types[c.FullName] = c
}

func (r *Registry) Get(fullName string) (*Class, bool) {
	c, ok := r.types[fullName]
	return c, ok
}

// All returns the registered classes sorted by full name.
func (r *Registry) All() []*Class {
	cs := maps.Values(r.types)
	slices.SortFunc(cs, func(a, b *Class) bool {
		return a.FullName < b.FullName
	})
	return cs
}

func (r *Registry) Len() int {
	return len(r.types)
}

// Builtin returns the builtins class called name. The built-ins are loaded
// before any checking starts, so a missing one is a structural failure.
func (r *Registry) Builtin(name string) *Class {
	c, ok := r.types["builtins."+name]
	if !ok {
		panic(fmt.Sprintf("types: builtin %q is not registered", name))
	}
	return c
}

// InstanceOf returns an instance of the named builtins class.
func (r *Registry) InstanceOf(name string) *Instance {
	return NewInstance(r.Builtin(name))
}

type builtinDef struct {
	Generics       []string             `json:"generics"`
	AssignableFrom []string             `json:"assignable_from"`
	Methods        map[string]methodDef `json:"methods"`
}

type methodDef struct {
	Args      []typeRef   `json:"args"`
	Return    typeRef     `json:"return"`
	Overloads []methodDef `json:"overloads"`
}

// typeRef is either a single type name or a list of names forming a union.
type typeRef []string

func (t *typeRef) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*t = nil
		} else {
			*t = typeRef{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("type reference must be a name or a list of names: %s", b)
	}
	*t = many
	return nil
}

var ErrBuiltins = errors.New("invalid builtin definitions")

// LoadBuiltins registers the classes described by data. Shells are
// registered first so that method signatures may refer to any builtin.
func (r *Registry) LoadBuiltins(data []byte) error {
	var defs map[string]builtinDef
	if err := json.Unmarshal(StripComments(data), &defs); err != nil {
		return fmt.Errorf("%w: %v", ErrBuiltins, err)
	}
	names := maps.Keys(defs)
	slices.Sort(names)

	for _, full := range names {
		def := defs[full]
		module, short := "", full
		if i := strings.LastIndexByte(full, '.'); i >= 0 {
			module, short = full[:i], full[i+1:]
		}
		c := NewClass(module, short)
		for _, g := range def.Generics {
			c.Generics = append(c.Generics, &TypeVar{Name: g})
		}
		r.Register(c)
	}

	var errs []error
	for _, full := range names {
		def := defs[full]
		c := r.types[full]
		for _, a := range def.AssignableFrom {
			src, ok := r.types[a]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s: assignable_from references unknown type %q", ErrBuiltins, full, a))
				continue
			}
			c.AssignableFrom = append(c.AssignableFrom, src)
		}
		methods := maps.Keys(def.Methods)
		slices.Sort(methods)
		for _, name := range methods {
			f, err := r.signature(c, def.Methods[name])
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s.%s: %v", ErrBuiltins, full, name, err))
				continue
			}
			c.Instance[name] = &Member{
				Name:       name,
				Type:       f,
				Kind:       InstanceMember,
				Visibility: Public,
				IsMethod:   true,
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) signature(c *Class, def methodDef) (*Function, error) {
	f := &Function{}
	for i, arg := range def.Args {
		t, err := r.ref(c, arg)
		if err != nil {
			return nil, err
		}
		f.Params = append(f.Params, Param{Name: fmt.Sprintf("arg%d", i), Type: t})
	}
	ret, err := r.ref(c, def.Return)
	if err != nil {
		return nil, err
	}
	f.Return = ret
	for _, o := range def.Overloads {
		of, err := r.signature(c, o)
		if err != nil {
			return nil, err
		}
		f.Overloads = append(f.Overloads, of)
	}
	return f, nil
}

// ref resolves a builtin type reference to an instance type. An empty
// reference and "builtins.none" denote None.
func (r *Registry) ref(c *Class, ref typeRef) (Type, error) {
	if len(ref) == 0 {
		return None, nil
	}
	var ts []Type
	for _, name := range ref {
		switch name {
		case "builtins.none":
			ts = append(ts, None)
			continue
		case "builtins.any":
			ts = append(ts, Any)
			continue
		}
		if tv, ok := c.TypeVar(name); ok {
			ts = append(ts, NewInstance(tv))
			continue
		}
		t, ok := r.types[name]
		if !ok {
			return nil, fmt.Errorf("unknown type %q", name)
		}
		ts = append(ts, NewInstance(t))
	}
	return NewUnion(ts...), nil
}

// StripComments removes // comments that appear outside string literals.
func StripComments(data []byte) []byte {
	var out bytes.Buffer
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		ch := data[i]
		if inString {
			out.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '/' && i+1 < len(data) && data[i+1] == '/' {
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out.WriteByte('\n')
			}
			continue
		}
		if ch == '"' {
			inString = true
		}
		out.WriteByte(ch)
	}
	return out.Bytes()
}
