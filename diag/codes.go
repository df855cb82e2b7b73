package diag

// Code identifies a kind of diagnostic.
type Code struct {
	ID          string
	Name        string
	Description string
}

// =============================================================================
// SYNTAX (JT0xxx)
// =============================================================================
var (
	JT0001 = Code{"JT0001", "syntax-error", "source could not be parsed"}
	JT0002 = Code{"JT0002", "import-error", "module could not be imported"}
)

// =============================================================================
// TYPE ERRORS (JT1xxx)
// =============================================================================
var (
	JT1001 = Code{"JT1001", "assign-mismatch", "value is not assignable to the target"}
	JT1002 = Code{"JT1002", "return-mismatch", "returned value does not match the declared return type"}
	JT1003 = Code{"JT1003", "missing-return", "ability with a return type has no return statement"}
	JT1004 = Code{"JT1004", "argument-mismatch", "argument is not assignable to the parameter"}
	JT1005 = Code{"JT1005", "no-member", "member does not exist on the type"}
	JT1006 = Code{"JT1006", "unsupported-operator", "operator is not defined for the operand"}
	JT1007 = Code{"JT1007", "operand-mismatch", "right operand does not match the operator method"}
	JT1008 = Code{"JT1008", "duplicate-field", "field declared twice in the same archetype"}
	JT1009 = Code{"JT1009", "abstract-instantiation", "abstract archetype cannot be instantiated"}
	JT1010 = Code{"JT1010", "untyped-field", "field declared without a type annotation"}
	JT1011 = Code{"JT1011", "unknown-parameter", "keyword argument names no parameter"}
	JT1012 = Code{"JT1012", "too-many-arguments", "more positional arguments than parameters"}
	JT1013 = Code{"JT1013", "missing-argument", "required parameter has no argument"}
	JT1014 = Code{"JT1014", "not-callable", "called value is not a function or archetype"}
	JT1015 = Code{"JT1015", "annotation-target", "only a plain name can carry a type annotation"}
	JT1016 = Code{"JT1016", "invalid-target", "expression cannot be assigned to"}
)

// =============================================================================
// WARNINGS (JT2xxx)
// =============================================================================
var (
	JT2001 = Code{"JT2001", "redefinition", "name redeclared with a different type"}
	JT2002 = Code{"JT2002", "return-from-none", "value returned from an ability returning None"}
	JT2003 = Code{"JT2003", "unresolved-base", "base archetype could not be resolved"}
	JT2004 = Code{"JT2004", "any-operand", "operand type is unknown"}
	JT2005 = Code{"JT2005", "class-operand", "operand is an archetype rather than an instance"}
)
