package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
	"github.com/quadstore/quadstore/sparql/planner"
)

// Iterator is the Volcano-style pull interface every operator implements,
// generalizing trigo's store.BindingIterator with a context-aware Next so a
// long-running scan or join can be cancelled between rows.
type Iterator interface {
	Next(ctx context.Context) (bool, error)
	Binding() *binding.Binding
	Close() error
}

// createIterator builds the iterator for plan's root operator, threading ec
// down to every operator that scans the store or evaluates expressions.
func (e *Executor) createIterator(ctx context.Context, plan *planner.Plan, ec execCtx) (Iterator, error) {
	switch n := plan.Algebra.(type) {
	case *algebra.BGP:
		return e.newBGPIterator(ctx, plan.BGP, ec)
	case *algebra.Path:
		return e.newPathIterator(ctx, n, ec)
	case *algebra.Values:
		return e.newValuesIterator(n, ec)
	case *algebra.Join:
		return e.newJoinIterator(ctx, plan, ec)
	case *algebra.LeftJoin:
		return e.newLeftJoinIterator(ctx, plan, ec, n.Filter)
	case *algebra.Union:
		return e.newUnionIterator(ctx, plan, ec)
	case *algebra.Minus:
		return e.newMinusIterator(ctx, plan, ec)
	case *algebra.Filter:
		return e.newFilterIterator(ctx, plan.Child, ec, n.Expr)
	case *algebra.Extend:
		return e.newExtendIterator(ctx, plan.Child, ec, n)
	case *algebra.Project:
		return e.newProjectIterator(ctx, plan.Child, ec, n)
	case *algebra.Distinct:
		return e.newDistinctIterator(ctx, plan.Child, ec)
	case *algebra.Reduced:
		// REDUCED permits but never requires duplicate elimination; resolved
		// as an identity passthrough, see DESIGN.md.
		return e.createIterator(ctx, plan.Child, ec)
	case *algebra.Slice:
		return e.newSliceIterator(ctx, plan.Child, ec, n)
	case *algebra.OrderBy:
		return e.newOrderByIterator(ctx, plan.Child, ec, n)
	case *algebra.Group:
		return e.newGroupIterator(ctx, plan.Child, ec, n)
	case *algebra.Having:
		return e.newHavingIterator(ctx, plan.Child, ec, n)
	case *algebra.Graph:
		return e.newGraphIterator(ctx, plan.Child, ec, n)
	case *algebra.Service:
		return e.newServiceIterator(ctx, plan.Child, ec, n)
	case *algebra.Select:
		return e.createIterator(ctx, plan.Child, ec)
	default:
		return nil, fmt.Errorf("executor: unsupported algebra node %T", plan.Algebra)
	}
}

// singleBindingIterator yields exactly one solution: b. Used for an empty
// BGP (the zero-pattern conjunction, matched by the empty solution) and as
// the base case of a join chain.
type singleBindingIterator struct {
	b    *binding.Binding
	done bool
}

func newSingleBindingIterator(b *binding.Binding) *singleBindingIterator {
	return &singleBindingIterator{b: b}
}

func (s *singleBindingIterator) Next(context.Context) (bool, error) {
	if s.done {
		return false, nil
	}
	s.done = true
	return true, nil
}

func (s *singleBindingIterator) Binding() *binding.Binding { return s.b }
func (s *singleBindingIterator) Close() error              { return nil }

// emptyIterator yields no solutions.
type emptyIterator struct{}

func (emptyIterator) Next(context.Context) (bool, error)  { return false, nil }
func (emptyIterator) Binding() *binding.Binding            { return binding.New() }
func (emptyIterator) Close() error                         { return nil }

// projectIterator restricts each solution to n.Vars.
type projectIterator struct {
	input Iterator
	vars  []string
}

func (e *Executor) newProjectIterator(ctx context.Context, child *planner.Plan, ec execCtx, n *algebra.Project) (Iterator, error) {
	input, err := e.createIterator(ctx, child, ec)
	if err != nil {
		return nil, err
	}
	vars := make([]string, len(n.Vars))
	for i, v := range n.Vars {
		vars[i] = v.Name
	}
	return &projectIterator{input: input, vars: vars}, nil
}

func (it *projectIterator) Next(ctx context.Context) (bool, error) { return it.input.Next(ctx) }

func (it *projectIterator) Binding() *binding.Binding {
	src := it.input.Binding()
	out := binding.New()
	for _, name := range it.vars {
		if t, ok := src.Get(name); ok {
			out.Bind(name, t)
		}
	}
	return out
}

func (it *projectIterator) Close() error { return it.input.Close() }

// distinctIterator drops solutions equal (same variables, same values) to
// one already emitted, keyed by a sorted var=value signature, generalizing
// trigo's bindingSignature/applyDistinct from a post-hoc slice pass to a
// streaming filter.
type distinctIterator struct {
	input Iterator
	seen  map[string]bool
}

func (e *Executor) newDistinctIterator(ctx context.Context, child *planner.Plan, ec execCtx) (Iterator, error) {
	input, err := e.createIterator(ctx, child, ec)
	if err != nil {
		return nil, err
	}
	return &distinctIterator{input: input, seen: make(map[string]bool)}, nil
}

func (it *distinctIterator) Next(ctx context.Context) (bool, error) {
	for {
		ok, err := it.input.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		key := bindingSignature(it.input.Binding())
		if !it.seen[key] {
			it.seen[key] = true
			return true, nil
		}
	}
}

func (it *distinctIterator) Binding() *binding.Binding { return it.input.Binding() }
func (it *distinctIterator) Close() error              { return it.input.Close() }

func bindingSignature(b *binding.Binding) string {
	names := b.Names()
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		t, _ := b.Get(name)
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(t.String())
		sb.WriteByte(';')
	}
	return sb.String()
}

// sliceIterator implements OFFSET/LIMIT.
type sliceIterator struct {
	input   Iterator
	offset  int64
	limit   int64 // < 0 means unbounded
	skipped int64
	emitted int64
}

func (e *Executor) newSliceIterator(ctx context.Context, child *planner.Plan, ec execCtx, n *algebra.Slice) (Iterator, error) {
	input, err := e.createIterator(ctx, child, ec)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{input: input, offset: n.Offset, limit: n.Limit}, nil
}

func (it *sliceIterator) Next(ctx context.Context) (bool, error) {
	if it.limit >= 0 && it.emitted >= it.limit {
		return false, nil
	}
	for it.skipped < it.offset {
		ok, err := it.input.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		it.skipped++
	}
	ok, err := it.input.Next(ctx)
	if err != nil || !ok {
		return false, err
	}
	it.emitted++
	return true, nil
}

func (it *sliceIterator) Binding() *binding.Binding { return it.input.Binding() }
func (it *sliceIterator) Close() error              { return it.input.Close() }

// newValuesIterator materializes a VALUES clause's inline solution sequence.
func (e *Executor) newValuesIterator(n *algebra.Values, ec execCtx) (Iterator, error) {
	rows := make([]*binding.Binding, 0, len(n.Bindings))
	for _, row := range n.Bindings {
		b := ec.outer.Clone()
		for _, v := range n.Vars {
			if t, ok := row[v.Name]; ok && t != nil {
				b.Bind(v.Name, t)
			}
		}
		rows = append(rows, b)
	}
	return &materializedBindingIterator{rows: rows, pos: -1}, nil
}

// materializedBindingIterator replays a pre-computed slice of bindings.
type materializedBindingIterator struct {
	rows []*binding.Binding
	pos  int
}

func (it *materializedBindingIterator) Next(context.Context) (bool, error) {
	it.pos++
	return it.pos < len(it.rows), nil
}

func (it *materializedBindingIterator) Binding() *binding.Binding { return it.rows[it.pos] }
func (it *materializedBindingIterator) Close() error              { return nil }
