package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
	"github.com/quadstore/quadstore/sparql/builtin"
	"github.com/quadstore/quadstore/sparql/planner"
)

// execEnv adapts an Executor (plus the GRAPH scope in effect where an
// expression is evaluated) into builtin.Env, so EXISTS/NOT EXISTS sub-patterns
// reuse the very same createIterator machinery the enclosing query uses,
// rather than a separate evaluation path.
type execEnv struct {
	exec *Executor
	ec   execCtx
}

func (e *execEnv) ExistsMatch(ctx context.Context, pattern algebra.Node, row *binding.Binding) (bool, error) {
	p, err := planner.Annotate(ctx, pattern, e.exec.est)
	if err != nil {
		return false, fmt.Errorf("executor: exists: %w", err)
	}
	iter, err := e.exec.createIterator(ctx, p, execCtx{outer: row, graph: e.ec.graph})
	if err != nil {
		return false, err
	}
	defer iter.Close()
	return iter.Next(ctx)
}

func (e *execEnv) Now() time.Time          { return e.exec.queryNow }
func (e *execEnv) FreshBlankNode() rdf.Term { return e.exec.freshBlankNode() }

// CustomFunction reports no registered extension functions; every FuncCallExpr
// not covered by §4.11's builtin library fails to resolve.
func (e *execEnv) CustomFunction(string) (func(args []rdf.Term) (rdf.Term, error), bool) {
	return nil, false
}

// evalExpr evaluates expr against row, using an execEnv scoped to ec so
// nested EXISTS patterns see the same GRAPH scope as the clause containing
// the expression.
func (e *Executor) evalExpr(ctx context.Context, expr algebra.Expr, row *binding.Binding) (rdf.Term, error) {
	return builtin.Eval(ctx, expr, row, &execEnv{exec: e})
}

func effectiveBool(v rdf.Term) (bool, error) { return builtin.EffectiveBooleanValue(v) }

// filterIterator only passes through solutions for which expr's effective
// boolean value is true, suppressing rows where evaluation errors (an
// unbound variable, a type error) per SPARQL FILTER semantics.
type filterIterator struct {
	exec    *Executor
	input   Iterator
	expr    algebra.Expr
	current *binding.Binding
}

func (e *Executor) newFilterIterator(ctx context.Context, child *planner.Plan, ec execCtx, expr algebra.Expr) (Iterator, error) {
	input, err := e.createIterator(ctx, child, ec)
	if err != nil {
		return nil, err
	}
	return &filterIterator{exec: e, input: input, expr: expr}, nil
}

func (it *filterIterator) Next(ctx context.Context) (bool, error) {
	for {
		ok, err := it.input.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		row := it.input.Binding()
		v, err := it.exec.evalExpr(ctx, it.expr, row)
		if err != nil {
			continue
		}
		ebv, err := effectiveBool(v)
		if err != nil {
			continue
		}
		if ebv {
			it.current = row
			return true, nil
		}
	}
}

func (it *filterIterator) Binding() *binding.Binding { return it.current }
func (it *filterIterator) Close() error              { return it.input.Close() }

// extendIterator implements BIND: evaluates n.Expr per input row and binds
// the result to n.Var, generalizing trigo's bindIterator from VariableExpression
// substitution to the full Expr AST evaluated through builtin.Eval. Per
// SPARQL's BIND semantics, an evaluation error suppresses the binding (the
// variable stays unbound) rather than discarding the row.
type extendIterator struct {
	exec    *Executor
	input   Iterator
	varName string
	expr    algebra.Expr
}

func (e *Executor) newExtendIterator(ctx context.Context, child *planner.Plan, ec execCtx, n *algebra.Extend) (Iterator, error) {
	input, err := e.createIterator(ctx, child, ec)
	if err != nil {
		return nil, err
	}
	return &extendIterator{exec: e, input: input, varName: n.Var.Name, expr: n.Expr}, nil
}

func (it *extendIterator) Next(ctx context.Context) (bool, error) { return it.input.Next(ctx) }

func (it *extendIterator) Binding() *binding.Binding {
	row := it.input.Binding()
	v, err := it.exec.evalExpr(context.Background(), it.expr, row)
	if err != nil {
		return row
	}
	return row.Clone().Bind(it.varName, v)
}

func (it *extendIterator) Close() error { return it.input.Close() }
