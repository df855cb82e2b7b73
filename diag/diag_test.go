package diag_test

import (
	"strings"
	"testing"

	"github.com/jaclang/jtype/diag"
	"github.com/jaclang/jtype/lexer"
	"github.com/nalgeon/be"
)

func at(line, col int) lexer.Span {
	p := lexer.Pos{Line: line, Column: col}
	return lexer.Span{Start: p, End: p}
}

func TestSink(t *testing.T) {
	var s diag.Sink
	s.AddWarning("b.jac", at(1, 1), &diag.JT2001, "redefined %s", "x")
	s.AddError("b.jac", at(3, 5), &diag.JT1001, "Can't assign a value %s to a %s object", "'float'", "'int'")
	s.AddError("a.jac", at(7, 2), &diag.JT1005, "No member called 'y'")
	s.AddInfo("a.jac", at(1, 1), "note")
	s.AddHint("a.jac", at(2, 1), "hint")

	be.Equal(t, s.Len(), 5)
	be.True(t, s.HasErrors())
	be.Equal(t, len(s.Errors()), 2)
	be.Equal(t, len(s.Warnings()), 1)
	be.Equal(t, len(s.BySeverity(diag.Hint)), 1)
	be.Equal(t, s.Summary(), "Errors: 2, Warnings: 1")

	assign := s.ByCode(diag.JT1001)
	be.Equal(t, len(assign), 1)
	be.Equal(t, assign[0].Message, "Can't assign a value 'float' to a 'int' object")
	be.Equal(t, assign[0].Location(), "line 3, col 5")
}

func TestPrint(t *testing.T) {
	var s diag.Sink
	s.AddError("b.jac", at(3, 5), &diag.JT1001, "second")
	s.AddError("a.jac", at(9, 1), &diag.JT1005, "first")
	s.AddInfo("a.jac", at(1, 1), "hidden")

	var sb strings.Builder
	s.Print(&sb, diag.Warning)
	be.Equal(t, sb.String(), "a.jac:9:1: error[JT1005]: first\nb.jac:3:5: error[JT1001]: second\n")
}

func TestEmpty(t *testing.T) {
	var s diag.Sink
	be.True(t, !s.HasErrors())
	be.Equal(t, s.Summary(), "Errors: 0, Warnings: 0")
}
