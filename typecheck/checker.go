// Package typecheck assigns types to the declarations of a build and
// reports type errors.
//
// A build is checked in two passes over the modules in import order. The
// annotate pass registers every archetype and enum, then gives fields,
// abilities and annotated variables their declared types. The check pass
// walks statements and validates assignments, calls, returns, member
// accesses and operators against those types.
package typecheck

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jaclang/jtype/ast"
	"github.com/jaclang/jtype/config"
	"github.com/jaclang/jtype/diag"
	"github.com/jaclang/jtype/names"
	"github.com/jaclang/jtype/parser"
	"github.com/jaclang/jtype/types"
)

var ErrMissingShell = errors.New("class shell not registered")

// StructuralError is an internal failure of the checker that cannot be
// reported as a diagnostic.
type StructuralError struct {
	Node ast.Node
	Err  error
}

func (e *StructuralError) Error() string {
	if e.Node == nil {
		return "typecheck: " + e.Err.Error()
	}
	return fmt.Sprintf("typecheck: %s: %v", e.Node.Span(), e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

type Checker struct {
	importer *parser.Importer
	registry *types.Registry
	sink     *diag.Sink
	settings config.Settings
	logOut   io.Writer

	// Infos holds the resolved names of every checked module.
	Infos    map[string]*names.Info
	resolver *Resolver

	annotateLog *log.Logger
	checkLog    *log.Logger
}

type Option func(*Checker)

func WithSink(s *diag.Sink) Option {
	return func(c *Checker) { c.sink = s }
}

func WithSettings(s config.Settings) Option {
	return func(c *Checker) { c.settings = s }
}

// WithLogOutput sets where the debug logs go when DebugTyping is on.
func WithLogOutput(w io.Writer) Option {
	return func(c *Checker) { c.logOut = w }
}

func NewChecker(importer *parser.Importer, registry *types.Registry, opts ...Option) *Checker {
	c := &Checker{
		importer: importer,
		registry: registry,
		sink:     &diag.Sink{},
		settings: config.Default(),
		Infos:    map[string]*names.Info{},
	}
	for _, opt := range opts {
		opt(c)
	}
	out := io.Discard
	if c.settings.DebugTyping {
		out = c.logOut
		if out == nil {
			out = log.Writer()
		}
	}
	c.annotateLog = log.New(out, "[JTypeAnnotatePass] ", 0)
	c.checkLog = log.New(out, "[JTypeCheckPass] ", 0)
	c.resolver = NewResolver(registry, c.Infos, log.New(out, "[JacTypeResolver] ", 0))
	return c
}

func (c *Checker) Sink() *diag.Sink { return c.sink }

func (c *Checker) Registry() *types.Registry { return c.registry }

func (c *Checker) Resolver() *Resolver { return c.resolver }

// Info returns the resolved names of a checked module.
func (c *Checker) Info(module string) (*names.Info, bool) {
	info, ok := c.Infos[module]
	return info, ok
}

// ProcessBuild checks every module the importer loaded. Type errors are
// collected in the sink; the returned error is only set for structural
// failures. Running it again re-checks the build from fresh scopes and
// reuses the registered classes.
func (c *Checker) ProcessBuild() (err error) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*StructuralError)
			if !ok {
				panic(r)
			}
			err = se
		}
	}()
	c.sink.Items = nil
	c.resolver.Reset()
	if !c.settings.Semantics {
		return nil
	}
	var order []string
	for _, name := range c.importer.Sorted {
		if name == "builtins" {
			continue
		}
		m, ok := c.importer.Modules[name]
		if !ok {
			continue
		}
		info := names.Resolve(m)
		c.Infos[name] = info
		c.annotate(info)
		order = append(order, name)
	}
	for _, name := range order {
		c.check(c.Infos[name])
	}
	return nil
}
