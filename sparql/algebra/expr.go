package algebra

import "github.com/quadstore/quadstore/rdf"

// Expr is the SPARQL expression AST, evaluated by sparql/builtin.Eval to an
// rdf.Term or an "unbound" error per §4.11.
type Expr interface {
	exprNode()
}

// VarExpr references a variable's current binding.
type VarExpr struct{ Variable *rdf.Variable }

func (*VarExpr) exprNode() {}

// LitExpr is a constant term (IRI or literal).
type LitExpr struct{ Value rdf.Term }

func (*LitExpr) exprNode() {}

type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg          // unary minus
	OpPlus         // unary plus
)

type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

func (*UnaryExpr) exprNode() {}

type BinaryOp int

const (
	OpAnd BinaryOp = iota
	OpOr
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
)

type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expr
}

func (*BinaryExpr) exprNode() {}

// FuncCallExpr invokes a builtin (by canonical name, e.g. "STRLEN") or a
// custom registered function (by IRI), per §4.11's function registry.
type FuncCallExpr struct {
	Name string // builtin name, or an IRI for a custom function
	Args []Expr
}

func (*FuncCallExpr) exprNode() {}

// ExistsExpr evaluates EXISTS/NOT EXISTS { Pattern } against the current
// row's bindings merged into Pattern's evaluation context.
type ExistsExpr struct {
	Pattern Node
	Not     bool
}

func (*ExistsExpr) exprNode() {}

// InExpr is `Target IN (Values...)` / `Target NOT IN (Values...)`.
type InExpr struct {
	Target Expr
	Values []Expr
	Not    bool
}

func (*InExpr) exprNode() {}

// AggregateRefExpr references a bound aggregate output variable — used by
// Having and downstream Project/OrderBy nodes over a Group's output.
type AggregateRefExpr struct{ Variable *rdf.Variable }

func (*AggregateRefExpr) exprNode() {}
