package executor

import (
	"context"

	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
	"github.com/quadstore/quadstore/sparql/planner"
)

// joinIterator nested-loops an arbitrary left subtree against an arbitrary
// right subtree, rebuilding the right iterator for every left solution so
// the right side sees the left's bindings as constraints — the same
// construction chainJoinIterator uses within one BGP, generalized here to
// Join nodes whose children can themselves be joins, unions, paths, or
// anything else the algebra allows.
type joinIterator struct {
	exec  *Executor
	left  Iterator
	right *planner.Plan
	ec    execCtx
	cur   Iterator
}

func (e *Executor) newJoinIterator(ctx context.Context, plan *planner.Plan, ec execCtx) (Iterator, error) {
	left, err := e.createIterator(ctx, plan.Left, ec)
	if err != nil {
		return nil, err
	}
	return &joinIterator{exec: e, left: left, right: plan.Right, ec: ec}, nil
}

func (it *joinIterator) Next(ctx context.Context) (bool, error) {
	for {
		if it.cur != nil {
			ok, err := it.cur.Next(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
			it.cur.Close()
			it.cur = nil
		}
		ok, err := it.left.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		cur, err := it.exec.createIterator(ctx, it.right, execCtx{outer: it.left.Binding(), graph: it.ec.graph})
		if err != nil {
			return false, err
		}
		it.cur = cur
	}
}

func (it *joinIterator) Binding() *binding.Binding { return it.cur.Binding() }

func (it *joinIterator) Close() error {
	if it.cur != nil {
		it.cur.Close()
	}
	return it.left.Close()
}

// leftJoinIterator implements OPTIONAL: for every left solution, emit every
// compatible right solution (subject to the optional Filter guard); if none
// matched, fall back to emitting the left solution unextended — trigo's
// optionalIterator generalized from a BGP-only right side to an arbitrary
// Plan subtree and from a hard-coded FILTER clause to the LeftJoin's Filter
// expression evaluated via builtin.Eval.
type leftJoinIterator struct {
	exec      *Executor
	left      Iterator
	right     *planner.Plan
	ec        execCtx
	filter    algebra.Expr
	cur       Iterator
	leftRow   *binding.Binding
	hasMatch  bool
	current   *binding.Binding
}

func (e *Executor) newLeftJoinIterator(ctx context.Context, plan *planner.Plan, ec execCtx, filter algebra.Expr) (Iterator, error) {
	left, err := e.createIterator(ctx, plan.Left, ec)
	if err != nil {
		return nil, err
	}
	return &leftJoinIterator{exec: e, left: left, right: plan.Right, ec: ec, filter: filter}, nil
}

func (it *leftJoinIterator) Next(ctx context.Context) (bool, error) {
	for {
		if it.cur != nil {
			ok, err := it.cur.Next(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				cand := it.cur.Binding()
				if it.passesFilter(ctx, cand) {
					it.hasMatch = true
					it.current = cand
					return true, nil
				}
				continue
			}
			it.cur.Close()
			it.cur = nil
			if !it.hasMatch {
				it.current = it.leftRow
				return true, nil
			}
		}
		ok, err := it.left.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		it.leftRow = it.left.Binding()
		it.hasMatch = false
		cur, err := it.exec.createIterator(ctx, it.right, execCtx{outer: it.leftRow, graph: it.ec.graph})
		if err != nil {
			return false, err
		}
		it.cur = cur
	}
}

func (it *leftJoinIterator) passesFilter(ctx context.Context, row *binding.Binding) bool {
	if it.filter == nil {
		return true
	}
	v, err := it.exec.evalExpr(ctx, it.filter, row)
	if err != nil {
		return false
	}
	ebv, err := effectiveBool(v)
	return err == nil && ebv
}

func (it *leftJoinIterator) Binding() *binding.Binding { return it.current }

func (it *leftJoinIterator) Close() error {
	if it.cur != nil {
		it.cur.Close()
	}
	return it.left.Close()
}

// unionIterator exhausts left's solutions, then right's, matching trigo's
// unionIterator.
type unionIterator struct {
	left, right Iterator
	onLeft      bool
}

func (e *Executor) newUnionIterator(ctx context.Context, plan *planner.Plan, ec execCtx) (Iterator, error) {
	left, err := e.createIterator(ctx, plan.Left, ec)
	if err != nil {
		return nil, err
	}
	right, err := e.createIterator(ctx, plan.Right, ec)
	if err != nil {
		left.Close()
		return nil, err
	}
	return &unionIterator{left: left, right: right, onLeft: true}, nil
}

func (it *unionIterator) Next(ctx context.Context) (bool, error) {
	if it.onLeft {
		ok, err := it.left.Next(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		it.onLeft = false
	}
	return it.right.Next(ctx)
}

func (it *unionIterator) Binding() *binding.Binding {
	if it.onLeft {
		return it.left.Binding()
	}
	return it.right.Binding()
}

func (it *unionIterator) Close() error {
	err1 := it.left.Close()
	err2 := it.right.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// minusIterator drops every left solution that shares at least one
// variable with, and is compatible with, some right solution — SPARQL
// MINUS semantics, matching trigo's minusIterator's per-left-row full
// right-side scan.
type minusIterator struct {
	exec    *Executor
	left    Iterator
	right   *planner.Plan
	ec      execCtx
	current *binding.Binding
}

func (e *Executor) newMinusIterator(ctx context.Context, plan *planner.Plan, ec execCtx) (Iterator, error) {
	left, err := e.createIterator(ctx, plan.Left, ec)
	if err != nil {
		return nil, err
	}
	return &minusIterator{exec: e, left: left, right: plan.Right, ec: ec}, nil
}

func (it *minusIterator) Next(ctx context.Context) (bool, error) {
	for {
		ok, err := it.left.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		row := it.left.Binding()
		excluded, err := it.matchesRight(ctx, row)
		if err != nil {
			return false, err
		}
		if !excluded {
			it.current = row
			return true, nil
		}
	}
}

func (it *minusIterator) matchesRight(ctx context.Context, row *binding.Binding) (bool, error) {
	rightIter, err := it.exec.createIterator(ctx, it.right, execCtx{outer: binding.New(), graph: it.ec.graph})
	if err != nil {
		return false, err
	}
	defer rightIter.Close()
	for {
		ok, err := rightIter.Next(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		cand := rightIter.Binding()
		if sharesVariable(row, cand) && row.Compatible(cand) {
			return true, nil
		}
	}
}

func sharesVariable(a, b *binding.Binding) bool {
	for _, name := range a.Names() {
		if _, ok := b.Get(name); ok {
			return true
		}
	}
	return false
}

func (it *minusIterator) Binding() *binding.Binding { return it.current }

func (it *minusIterator) Close() error {
	return it.left.Close()
}
