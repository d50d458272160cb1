package executor

import (
	"context"
	"sort"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
	"github.com/quadstore/quadstore/sparql/planner"
)

// newOrderByIterator materializes child's solutions and sorts them by
// n.Conditions, generalizing trigo's orderByIterator (which only compares
// bare VariableExpressions) to evaluate arbitrary Expr per condition via
// builtin.Eval. A row whose expression errors is treated as unbound, and
// unbound values sort first in ascending and last in descending order.
func (e *Executor) newOrderByIterator(ctx context.Context, child *planner.Plan, ec execCtx, n *algebra.OrderBy) (Iterator, error) {
	input, err := e.createIterator(ctx, child, ec)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	var rows []*binding.Binding
	for {
		ok, nerr := input.Next(ctx)
		if nerr != nil {
			return nil, nerr
		}
		if !ok {
			break
		}
		rows = append(rows, input.Binding().Clone())
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, cond := range n.Conditions {
			vi, erri := e.evalExpr(ctx, cond.Expr, rows[i])
			vj, errj := e.evalExpr(ctx, cond.Expr, rows[j])
			cmp := compareOrderValues(vi, erri, vj, errj)
			if cmp == 0 {
				continue
			}
			if cond.Direction == algebra.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	return &materializedBindingIterator{rows: rows, pos: -1}, nil
}

// compareOrderValues orders unbound/errored values below every bound value,
// then falls back to termLess's numeric-aware lexical comparison.
func compareOrderValues(a rdf.Term, aerr error, b rdf.Term, berr error) int {
	aBad := aerr != nil || a == nil
	bBad := berr != nil || b == nil
	switch {
	case aBad && bBad:
		return 0
	case aBad:
		return -1
	case bBad:
		return 1
	}
	if a.Equals(b) {
		return 0
	}
	if termLess(a, b) {
		return -1
	}
	return 1
}
