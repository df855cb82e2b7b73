package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/jaclang/jtype/codegen"
	"github.com/jaclang/jtype/config"
	"github.com/jaclang/jtype/diag"
	"github.com/jaclang/jtype/fsx"
	"github.com/peterh/liner"
)

const (
	replFile    = "repl.jac"
	historyFile = ".jtype_history"
	promptMain  = "jac> "
	promptCont  = "...  "
	probe       = "__repl_probe"
	replHelp    = `Entries are declarations or statements; each one is added to the session
module and the module is checked again. Entries that do not parse are dropped.

  :type <expr>   Print the type of an expression
  :types         Print the session's symbol table
  :stub          Print the typed stub of the session module
  :load <file>   Add the contents of a file to the session
  :reset         Start a new, empty session
  :quit          Leave the REPL
`
)

// session is the module built up by a REPL. Diagnostics are printed the
// first time they appear.
type session struct {
	settings config.Settings
	out      io.Writer
	logOut   io.Writer
	entries  []string
	shown    *set.Set[string]
	last     *build
}

func newSession(settings config.Settings, out, logOut io.Writer) *session {
	return &session{settings: settings, out: out, logOut: logOut, shown: set.New[string](0)}
}

func (s *session) source(extra ...string) string {
	return strings.Join(append(s.entries[:len(s.entries):len(s.entries)], extra...), "\n") + "\n"
}

func (s *session) check(src string) (*build, error) {
	return load(fsx.TestFS([][2]string{{replFile, src}}), replFile, s.settings, s.logOut)
}

// eval adds an entry to the session and prints the diagnostics it caused.
func (s *session) eval(entry string) {
	b, err := s.check(s.source(entry))
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if !b.checked {
		b.sink.Print(s.out, diag.Hint)
		return
	}
	s.entries = append(s.entries, entry)
	s.last = b
	for _, d := range b.sink.Sorted() {
		if s.shown.Insert(d.String()) {
			fmt.Fprintln(s.out, d)
		}
	}
}

// typeOf checks expr against the session without keeping it.
func (s *session) typeOf(expr string) {
	b, err := s.check(s.source(fmt.Sprintf("glob %s = %s;", probe, expr)))
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if !b.checked {
		b.sink.Print(s.out, diag.Hint)
		return
	}
	info, _ := b.checker.Info("repl")
	sym, ok := info.Root.Lookup(probe, false)
	if !ok {
		fmt.Fprintln(s.out, "no type")
		return
	}
	fmt.Fprintln(s.out, sym.Current())
}

// command runs a :command and reports whether the session should end.
func (s *session) command(line string) bool {
	fields := strings.Fields(line)
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	switch fields[0] {
	case ":help":
		fmt.Fprint(s.out, replHelp)
	case ":quit", ":exit":
		return true
	case ":reset":
		*s = *newSession(s.settings, s.out, s.logOut)
		fmt.Fprintln(s.out, "session reset")
	case ":type":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: :type <expr>")
			break
		}
		s.typeOf(arg)
	case ":types":
		if s.last == nil {
			break
		}
		if info, ok := s.last.checker.Info("repl"); ok {
			fmt.Fprint(s.out, info.Root)
		}
	case ":stub":
		if s.last == nil {
			break
		}
		if info, ok := s.last.checker.Info("repl"); ok {
			s.out.Write(codegen.NewCodegen(s.last.importer, s.last.checker).Stub(info))
		}
	case ":load":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: :load <file>")
			break
		}
		src, err := os.ReadFile(arg)
		if err != nil {
			fmt.Fprintln(s.out, err)
			break
		}
		s.eval(string(src))
	default:
		fmt.Fprintln(s.out, "unknown command, try :help")
	}
	return false
}

// unclosed counts the braces, brackets and parentheses src leaves open.
func unclosed(src string) int {
	depth := 0
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '"', '\'':
			for i++; i < len(src) && src[i] != c; i++ {
				if src[i] == '\\' {
					i++
				}
			}
		case '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		}
	}
	return depth
}

// read reads one entry, continuing over lines while brackets are open.
func read(ln *liner.State) (string, error) {
	var b strings.Builder
	prompt := promptMain
	for {
		line, err := ln.Prompt(prompt)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if unclosed(b.String()) <= 0 {
			return b.String(), nil
		}
		prompt = promptCont
	}
}

func cmdRepl(args []string, settings config.Settings, stdout, stderr io.Writer) error {
	fset := newFlags("repl", &settings, stderr)
	if err := fset.Parse(args); err != nil {
		return err
	}
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	var histPath string
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			ln.ReadHistory(f)
			f.Close()
		}
	}

	fmt.Fprintln(stdout, "jtype", version, "REPL, :help for commands, Ctrl+D to exit")
	s := newSession(settings, stdout, stderr)
	for {
		entry, err := read(ln)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintln(stdout)
			break
		}
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(entry, "\n", " "))
		if strings.HasPrefix(entry, ":") {
			if s.command(entry) {
				break
			}
			continue
		}
		s.eval(entry)
	}

	if histPath != "" {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}
