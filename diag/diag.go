package diag

import (
	"fmt"
	"io"
	"sort"

	"github.com/jaclang/jtype/lexer"
)

type Severity int

const (
	Error Severity = iota
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	return [...]string{"error", "warning", "info", "hint"}[s]
}

type Diagnostic struct {
	Message  string
	Severity Severity
	File     string
	Span     lexer.Span
	Code     *Code
}

// Location renders the start of the span as "line L, col C".
func (d Diagnostic) Location() string {
	return fmt.Sprintf("line %d, col %d", d.Span.Start.Line, d.Span.Start.Column)
}

func (d Diagnostic) String() string {
	sev := d.Severity.String()
	if d.Code != nil {
		sev += "[" + d.Code.ID + "]"
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Span.Start.Line, d.Span.Start.Column, sev, d.Message)
}

// Sink collects diagnostics in the order they are reported.
type Sink struct {
	Items []Diagnostic
}

func (s *Sink) Add(d Diagnostic) {
	s.Items = append(s.Items, d)
}

func (s *Sink) report(sev Severity, file string, span lexer.Span, code *Code, format string, args ...any) {
	s.Add(Diagnostic{
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
		File:     file,
		Span:     span,
		Code:     code,
	})
}

func (s *Sink) AddError(file string, span lexer.Span, code *Code, format string, args ...any) {
	s.report(Error, file, span, code, format, args...)
}

func (s *Sink) AddWarning(file string, span lexer.Span, code *Code, format string, args ...any) {
	s.report(Warning, file, span, code, format, args...)
}

func (s *Sink) AddInfo(file string, span lexer.Span, format string, args ...any) {
	s.report(Info, file, span, nil, format, args...)
}

func (s *Sink) AddHint(file string, span lexer.Span, format string, args ...any) {
	s.report(Hint, file, span, nil, format, args...)
}

func (s *Sink) BySeverity(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.Items {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

func (s *Sink) ByCode(code Code) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.Items {
		if d.Code != nil && d.Code.ID == code.ID {
			out = append(out, d)
		}
	}
	return out
}

func (s *Sink) Errors() []Diagnostic { return s.BySeverity(Error) }

func (s *Sink) Warnings() []Diagnostic { return s.BySeverity(Warning) }

func (s *Sink) HasErrors() bool {
	for _, d := range s.Items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func (s *Sink) Len() int { return len(s.Items) }

func (s *Sink) Summary() string {
	return fmt.Sprintf("Errors: %d, Warnings: %d", len(s.Errors()), len(s.Warnings()))
}

// Sorted returns the diagnostics ordered by file, line and column.
func (s *Sink) Sorted() []Diagnostic {
	items := make([]Diagnostic, len(s.Items))
	copy(items, s.Items)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.Start.Line != b.Span.Start.Line {
			return a.Span.Start.Line < b.Span.Start.Line
		}
		return a.Span.Start.Column < b.Span.Start.Column
	})
	return items
}

// Print writes every diagnostic at least as severe as level.
func (s *Sink) Print(w io.Writer, level Severity) {
	for _, d := range s.Sorted() {
		if d.Severity <= level {
			fmt.Fprintln(w, d)
		}
	}
}
