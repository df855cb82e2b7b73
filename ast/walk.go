package ast

import "fmt"

func appendStmts(dst []Node, ss []Stmt) []Node {
	for _, s := range ss {
		dst = append(dst, s)
	}
	return dst
}

func appendExprs(dst []Node, es []Expr) []Node {
	for _, e := range es {
		dst = append(dst, e)
	}
	return dst
}

// appendOpt skips nil pointers stored in an interface.
func appendOpt[T Node](dst []Node, n T) []Node {
	var zero T
	if any(n) == any(zero) {
		return dst
	}
	return append(dst, n)
}

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var c []Node
	switch n := n.(type) {
	case *Module:
		c = appendStmts(c, n.Body)
	case *Import:
		for _, p := range n.Paths {
			c = append(c, p)
		}
		c = appendOpt(c, n.From)
		for _, it := range n.Items {
			c = append(c, it)
		}
	case *ModulePath:
		for _, p := range n.Parts {
			c = append(c, p)
		}
		c = appendOpt(c, n.Alias)
	case *ImportItem:
		c = append(c, n.Name)
		c = appendOpt(c, n.Alias)
	case *Archetype:
		c = append(c, n.Name)
		c = appendExprs(c, n.Bases)
		c = appendStmts(c, n.Body)
	case *Enum:
		c = append(c, n.Name)
		c = appendExprs(c, n.Bases)
		for _, v := range n.Variants {
			c = append(c, v)
		}
		c = appendStmts(c, n.Body)
	case *EnumVariant:
		c = append(c, n.Name)
		c = appendOpt(c, n.Value)
	case *Has:
		for _, v := range n.Vars {
			c = append(c, v)
		}
	case *HasVar:
		c = append(c, n.Name)
		c = appendOpt(c, n.Type)
		c = appendOpt(c, n.Value)
	case *Ability:
		c = append(c, n.Name)
		c = appendOpt(c, n.Sig)
		c = appendOpt(c, n.Event)
		c = appendStmts(c, n.Body)
	case *EventSig:
		c = appendOpt(c, n.Type)
	case *Signature:
		for _, p := range n.Params {
			c = append(c, p)
		}
		c = appendOpt(c, n.Return)
	case *Param:
		c = append(c, n.Name)
		c = appendOpt(c, n.Type)
		c = appendOpt(c, n.Default)
	case *ImplDef:
		for _, t := range n.Target {
			c = append(c, t)
		}
		c = appendOpt(c, n.Sig)
		c = appendOpt(c, n.Event)
		c = appendStmts(c, n.Body)
	case *GlobalVars:
		for _, a := range n.Assigns {
			c = append(c, a)
		}
	case *ModuleCode:
		c = appendOpt(c, n.Name)
		c = appendStmts(c, n.Body)
	case *Assignment:
		c = appendExprs(c, n.Targets)
		c = appendOpt(c, n.Type)
		c = appendOpt(c, n.Value)
	case *ExprStmt:
		c = append(c, n.X)
	case *Return:
		c = appendOpt(c, n.Value)
	case *If:
		c = append(c, n.Cond)
		c = appendStmts(c, n.Body)
		c = appendOpt(c, n.Else)
	case *Block:
		c = appendStmts(c, n.Body)
	case *While:
		c = append(c, n.Cond)
		c = appendStmts(c, n.Body)
	case *For:
		c = append(c, n.Target, n.Iter)
		c = appendStmts(c, n.Body)
	case *TypeTag:
		c = append(c, n.Type)
	case *ListVal:
		c = appendExprs(c, n.Elems)
	case *SetVal:
		c = appendExprs(c, n.Elems)
	case *TupleVal:
		c = appendExprs(c, n.Elems)
	case *DictVal:
		for _, p := range n.Pairs {
			c = append(c, p)
		}
	case *KVPair:
		c = append(c, n.Key, n.Value)
	case *BinaryExpr:
		c = append(c, n.Left, n.Right)
	case *CompareExpr:
		c = append(c, n.Left)
		c = appendExprs(c, n.Rights)
	case *BoolExpr:
		c = appendExprs(c, n.Values)
	case *UnaryExpr:
		c = append(c, n.X)
	case *IfExpr:
		c = append(c, n.Then, n.Cond, n.Else)
	case *SelectorExpr:
		c = append(c, n.X, n.Sel)
	case *CallExpr:
		c = append(c, n.Fun)
		c = appendExprs(c, n.Args)
	case *KWPair:
		c = append(c, n.Key, n.Value)
	case *IndexExpr:
		c = append(c, n.X, n.Index)
	case *SliceExpr:
		c = appendOpt(c, n.Lo)
		c = appendOpt(c, n.Hi)
		c = appendOpt(c, n.Step)
	case *Name, *SpecialVarRef, *BuiltinType, *Int, *Float, *String, *Bool, *Null, *CtrlStmt:
	default:
		panic(fmt.Sprintf("ast: unexpected node %T", n))
	}
	return c
}

// Inspect traverses the tree rooted at n in depth-first order. If f
// returns false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// Find returns every node of type T under n, including n itself.
func Find[T Node](n Node) []T {
	var out []T
	Inspect(n, func(x Node) bool {
		if t, ok := x.(T); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// Chain flattens a.b(c)[d] into its root and the steps applied to it,
// left to right: a, .b, (c), [d].
func Chain(e Expr) (root Expr, links []Expr) {
	for {
		switch x := e.(type) {
		case *SelectorExpr:
			links = append(links, x)
			e = x.X
		case *CallExpr:
			links = append(links, x)
			e = x.Fun
		case *IndexExpr:
			links = append(links, x)
			e = x.X
		default:
			for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
				links[i], links[j] = links[j], links[i]
			}
			return e, links
		}
	}
}
