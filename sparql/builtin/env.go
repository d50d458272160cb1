// Package builtin evaluates the sparql/algebra expression AST against a
// binding, implementing §4.11's arithmetic, comparison, logic, string,
// numeric, datetime, hash, type-test, and constructor function groups. It
// generalizes trigo's pkg/sparql/evaluator (Evaluate/evaluateBinaryExpression),
// with one deliberate correctness fix over the teacher: trigo evaluates both
// operands of && and || eagerly before dispatch, which cannot short-circuit
// across an unbound-variable error; this package's Eval evaluates the right
// operand of && / || only when the left doesn't already decide the result,
// per §4.11 — see DESIGN.md.
package builtin

import (
	"context"
	"time"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
)

// Env supplies the evaluator with capabilities it cannot provide itself:
// EXISTS sub-pattern evaluation (which needs the executor), wall-clock time
// and fresh blank nodes (kept out of Eval's signature so evaluation stays
// deterministic given an Env), and custom function dispatch by IRI.
type Env interface {
	// ExistsMatch reports whether pattern has at least one solution when
	// evaluated with row's bindings merged into its evaluation context.
	ExistsMatch(ctx context.Context, pattern algebra.Node, row *binding.Binding) (bool, error)
	// Now returns the query's fixed "current" timestamp (NOW() must return
	// the same value every time it's called within one query execution).
	Now() time.Time
	// FreshBlankNode mints a new blank node for BNODE() with no argument.
	FreshBlankNode() rdf.Term
	// CustomFunction resolves a non-builtin FuncCallExpr by IRI, or reports
	// ok=false if no such function is registered.
	CustomFunction(iri string) (func(args []rdf.Term) (rdf.Term, error), bool)
}
