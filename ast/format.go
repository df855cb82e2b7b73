package ast

import (
	"strings"

	"github.com/jaclang/jtype/lexer"
)

// Format renders an expression or type annotation back to source form.
// Statements render as their leading keyword.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func formatList(sb *strings.Builder, es []Expr) {
	for i, e := range es {
		if i > 0 {
			sb.WriteString(", ")
		}
		format(sb, e)
	}
}

func format(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
	case *Name:
		sb.WriteString(n.Value)
	case *SpecialVarRef:
		sb.WriteString(n.Value)
	case *BuiltinType:
		sb.WriteString(n.Value)
	case *Int:
		sb.WriteString(n.Value)
	case *Float:
		sb.WriteString(n.Value)
	case *String:
		sb.WriteString(n.Value)
	case *Bool:
		if n.Value {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case *Null:
		sb.WriteString("None")
	case *TypeTag:
		format(sb, n.Type)
	case *ListVal:
		sb.WriteString("[")
		formatList(sb, n.Elems)
		sb.WriteString("]")
	case *SetVal:
		sb.WriteString("{")
		formatList(sb, n.Elems)
		sb.WriteString("}")
	case *TupleVal:
		sb.WriteString("(")
		formatList(sb, n.Elems)
		if len(n.Elems) == 1 {
			sb.WriteString(",")
		}
		sb.WriteString(")")
	case *DictVal:
		sb.WriteString("{")
		for i, p := range n.Pairs {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, p)
		}
		sb.WriteString("}")
	case *KVPair:
		format(sb, n.Key)
		sb.WriteString(": ")
		format(sb, n.Value)
	case *BinaryExpr:
		prec := n.Op.Prec()
		right := n.Op.IsRightAssoc()
		formatOperand(sb, n.Left, prec, right)
		sb.WriteString(" " + n.Op.Text() + " ")
		formatOperand(sb, n.Right, prec, !right)
	case *CompareExpr:
		formatOperand(sb, n.Left, 4, true)
		for i, op := range n.Ops {
			sb.WriteString(" " + op.Text() + " ")
			formatOperand(sb, n.Rights[i], 4, true)
		}
	case *BoolExpr:
		for i, v := range n.Values {
			if i > 0 {
				sb.WriteString(" " + n.Op.Text() + " ")
			}
			formatOperand(sb, v, n.Op.Prec(), true)
		}
	case *UnaryExpr:
		sb.WriteString(n.Op.Text())
		if n.Op.Type == lexer.Not {
			sb.WriteString(" ")
		}
		formatOperand(sb, n.X, exprPrec(n), false)
	case *IfExpr:
		format(sb, n.Then)
		sb.WriteString(" if ")
		format(sb, n.Cond)
		sb.WriteString(" else ")
		format(sb, n.Else)
	case *SelectorExpr:
		format(sb, n.X)
		sb.WriteString(".")
		format(sb, n.Sel)
	case *CallExpr:
		format(sb, n.Fun)
		sb.WriteString("(")
		formatList(sb, n.Args)
		sb.WriteString(")")
	case *KWPair:
		format(sb, n.Key)
		sb.WriteString("=")
		format(sb, n.Value)
	case *IndexExpr:
		format(sb, n.X)
		sb.WriteString("[")
		if t, ok := n.Index.(*TupleVal); ok {
			formatList(sb, t.Elems)
		} else {
			format(sb, n.Index)
		}
		sb.WriteString("]")
	case *SliceExpr:
		format(sb, n.Lo)
		sb.WriteString(":")
		format(sb, n.Hi)
		if n.Step != nil {
			sb.WriteString(":")
			format(sb, n.Step)
		}
	case *Param:
		switch n.Kind {
		case ParamStar:
			sb.WriteString("*")
		case ParamDoubleStar:
			sb.WriteString("**")
		}
		format(sb, n.Name)
		if n.Type != nil {
			sb.WriteString(": ")
			format(sb, n.Type)
		}
		if n.Default != nil {
			sb.WriteString(" = ")
			format(sb, n.Default)
		}
	case *Signature:
		sb.WriteString("(")
		for i, p := range n.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, p)
		}
		sb.WriteString(")")
		if n.Return != nil {
			sb.WriteString(" -> ")
			format(sb, n.Return)
		}
	case *ModulePath:
		sb.WriteString(n.String())
	case *Archetype:
		sb.WriteString(n.Kind.String() + " " + n.Name.Value)
	case *Enum:
		sb.WriteString("enum " + n.Name.Value)
	case *Ability:
		sb.WriteString("def " + n.Name.Value)
	case *ImplDef:
		sb.WriteString("impl " + n.TargetName())
	default:
		sb.WriteString("<stmt>")
	}
}

const atomPrec = 100

func exprPrec(e Expr) int {
	switch e := e.(type) {
	case *BinaryExpr:
		return e.Op.Prec()
	case *BoolExpr:
		return e.Op.Prec()
	case *CompareExpr:
		return 4
	case *UnaryExpr:
		if e.Op.Type == lexer.Not {
			return 3
		}
		return 11
	case *IfExpr:
		return 0
	}
	return atomPrec
}

// formatOperand parenthesizes e when it binds looser than its parent.
// strict also parenthesizes operands of equal precedence.
func formatOperand(sb *strings.Builder, e Expr, prec int, strict bool) {
	p := exprPrec(e)
	if p < prec || (strict && p == prec) {
		sb.WriteString("(")
		format(sb, e)
		sb.WriteString(")")
		return
	}
	format(sb, e)
}
