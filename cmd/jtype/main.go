package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/jaclang/jtype/codegen"
	"github.com/jaclang/jtype/config"
	"github.com/jaclang/jtype/diag"
	"github.com/jaclang/jtype/fsx"
	"github.com/jaclang/jtype/parser"
	"github.com/jaclang/jtype/scope"
	"github.com/sanity-io/litter"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const version = "0.1.0"

// errFailed is returned by commands whose diagnostics have already been
// printed and that should only set the exit status.
var errFailed = errors.New("build failed")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	settings, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(stderr, "jtype:", err)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "check":
		err = cmdCheck(rest, settings, stdout, stderr)
	case "types":
		err = cmdTypes(rest, settings, stdout, stderr)
	case "stub":
		err = cmdStub(rest, settings, stdout, stderr)
	case "ast":
		err = cmdAST(rest, stdout, stderr)
	case "builtins":
		err = cmdBuiltins(rest, settings, stdout, stderr)
	case "repl":
		err = cmdRepl(rest, settings, stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
	case "version", "-v", "--version":
		fmt.Fprintln(stdout, "jtype", version)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		usage(stderr)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailed):
		return 1
	case errors.Is(err, flag.ErrHelp):
		return 0
	default:
		fmt.Fprintln(stderr, "jtype:", err)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `jtype checks the types of Jac programs

Usage:
  jtype check [flags] <file.jac>
  jtype types [flags] <file.jac>
  jtype stub [flags] -out <dir> <file.jac>
  jtype ast <file.jac>
  jtype builtins [flags]
  jtype repl [flags]

Commands:
  check     Report type errors in a module and the modules it imports
  types     Print the symbol tables of every checked module
  stub      Write typed declaration stubs of every checked module
  ast       Dump the syntax tree of a module
  builtins  List the built-in classes and their members
  repl      Check declarations interactively
  version   Print the jtype version

Flags:
  -debug     Trace the type passes (JAC_DEBUG_TYPING)
  -asserts   Stop at the first internal checker failure (JAC_TYPING_ASSERTS)
  -builtins  Load built-in definitions from a file (JAC_BUILTINS)
`)
}

// newFlags registers the flags shared by the checking commands on top of
// the settings read from the environment.
func newFlags(name string, settings *config.Settings, stderr io.Writer) *flag.FlagSet {
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.BoolVar(&settings.DebugTyping, "debug", settings.DebugTyping, "trace the type passes")
	fset.BoolVar(&settings.TypingAsserts, "asserts", settings.TypingAsserts, "stop at the first internal checker failure")
	fset.StringVar(&settings.BuiltinsPath, "builtins", settings.BuiltinsPath, "built-in definitions file")
	return fset
}

// input returns the file system rooted at the directory of the single
// positional argument and the file name inside it.
func input(fset *flag.FlagSet) (fsx.DirFS, string, error) {
	if fset.NArg() != 1 {
		return "", "", fmt.Errorf("%s: expected one .jac file", fset.Name())
	}
	abs, err := filepath.Abs(fset.Arg(0))
	if err != nil {
		return "", "", err
	}
	return fsx.DirFS(filepath.Dir(abs)), filepath.Base(abs), nil
}

func loadArgs(name string, args []string, settings config.Settings, stderr io.Writer, extra func(*flag.FlagSet)) (*build, error) {
	fset := newFlags(name, &settings, stderr)
	if extra != nil {
		extra(fset)
	}
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	root, file, err := input(fset)
	if err != nil {
		return nil, err
	}
	return load(root, file, settings, stderr)
}

func cmdCheck(args []string, settings config.Settings, stdout, stderr io.Writer) error {
	b, err := loadArgs("check", args, settings, stderr, nil)
	if err != nil {
		return err
	}
	b.sink.Print(stdout, diag.Hint)
	fmt.Fprintln(stdout, b.sink.Summary())
	if b.sink.HasErrors() {
		return errFailed
	}
	return nil
}

func cmdTypes(args []string, settings config.Settings, stdout, stderr io.Writer) error {
	b, err := loadArgs("types", args, settings, stderr, nil)
	if err != nil {
		return err
	}
	if !b.checked {
		b.sink.Print(stderr, diag.Hint)
		return errFailed
	}
	for _, name := range b.importer.Sorted {
		if info, ok := b.checker.Info(name); ok {
			fmt.Fprint(stdout, info.Root)
			fmt.Fprintf(stdout, "%s: %s\n", name, stats(info.Root))
		}
	}
	return nil
}

// stats summarizes the symbols of a module by kind, as in "2 var, 1 archetype".
func stats(s *scope.Scope) string {
	counts := s.Stats()
	kinds := maps.Keys(counts)
	slices.Sort(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%d %s", counts[k], k)
	}
	return strings.Join(parts, ", ")
}

func cmdStub(args []string, settings config.Settings, stdout, stderr io.Writer) error {
	var out string
	b, err := loadArgs("stub", args, settings, stderr, func(fset *flag.FlagSet) {
		fset.StringVar(&out, "out", "", "output directory")
	})
	if err != nil {
		return err
	}
	if out == "" {
		return errors.New("stub: -out is required")
	}
	if !b.checked || b.sink.HasErrors() {
		b.sink.Print(stderr, diag.Warning)
		return errFailed
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return err
	}
	return codegen.NewCodegen(b.importer, b.checker).CodegenBuild(fsx.DirFS(abs))
}

func cmdAST(args []string, stdout, stderr io.Writer) error {
	fset := flag.NewFlagSet("ast", flag.ContinueOnError)
	fset.SetOutput(stderr)
	if err := fset.Parse(args); err != nil {
		return err
	}
	root, file, err := input(fset)
	if err != nil {
		return err
	}
	m, err := parser.ParseFile(root, file)
	if m == nil {
		return err
	}
	fmt.Fprintln(stdout, litter.Options{HidePrivateFields: true, HideZeroValues: true}.Sdump(m))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errFailed
	}
	return nil
}

func cmdBuiltins(args []string, settings config.Settings, stdout, stderr io.Writer) error {
	fset := newFlags("builtins", &settings, stderr)
	if err := fset.Parse(args); err != nil {
		return err
	}
	reg, err := registry(settings)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 1, ' ', 0)
	for _, cls := range reg.All() {
		fmt.Fprintln(tw, cls)
		for _, m := range cls.Members() {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.Name, m.Kind, m.Type)
		}
	}
	return tw.Flush()
}
