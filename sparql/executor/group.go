package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
	"github.com/quadstore/quadstore/sparql/planner"
)

// groupState accumulates one group's aggregate inputs as rows arrive.
type groupState struct {
	keyBindings *binding.Binding // the first row's key variable bindings, representative of the group
	rows        []*binding.Binding
}

// newGroupIterator materializes child's solutions, partitions them by
// n.Keys evaluated per row, computes every n.Aggregates entry per partition,
// and streams one result binding per group — unlike the rest of this
// package's operators, GROUP BY has no meaningful streaming evaluation
// without a pre-sorted input, so it buffers the way trigo's orderByIterator
// already does for ORDER BY.
func (e *Executor) newGroupIterator(ctx context.Context, child *planner.Plan, ec execCtx, n *algebra.Group) (Iterator, error) {
	input, err := e.createIterator(ctx, child, ec)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	order := make([]string, 0)
	groups := make(map[string]*groupState)
	for {
		ok, nerr := input.Next(ctx)
		if nerr != nil {
			return nil, nerr
		}
		if !ok {
			break
		}
		row := input.Binding().Clone()
		key, keyBindings, kerr := e.groupKey(ctx, n.Keys, row)
		if kerr != nil {
			continue
		}
		g, seen := groups[key]
		if !seen {
			g = &groupState{keyBindings: keyBindings}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, row)
	}

	// The empty input, zero-groups case still has one group per SPARQL's
	// "aggregation over zero rows" rule, unless the query has explicit
	// GROUP BY keys (in which case zero input rows means zero groups).
	if len(order) == 0 && len(n.Keys) == 0 {
		order = append(order, "")
		groups[""] = &groupState{keyBindings: binding.New()}
	}

	results := make([]*binding.Binding, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out := g.keyBindings.Clone()
		for _, agg := range n.Aggregates {
			val, aerr := e.computeAggregate(ctx, agg, g.rows)
			if aerr != nil {
				continue
			}
			if agg.As != nil {
				out.Bind(agg.As.Name, val)
			}
		}
		results = append(results, out)
	}

	return &materializedBindingIterator{rows: results, pos: -1}, nil
}

// groupKey evaluates keys against row, returning a stable string signature
// for map grouping and a Binding holding each VarExpr key's bound value
// (the only key shape that can be referred to downstream by name; a
// computed key is expected to have been bound to a variable by a preceding
// BIND, per §4.12).
func (e *Executor) groupKey(ctx context.Context, keys []algebra.Expr, row *binding.Binding) (string, *binding.Binding, error) {
	out := binding.New()
	var sb strings.Builder
	for _, k := range keys {
		v, err := e.evalExpr(ctx, k, row)
		if err != nil {
			v = nil
		}
		if v != nil {
			sb.WriteString(v.String())
		}
		sb.WriteByte('|')
		if ve, ok := k.(*algebra.VarExpr); ok && v != nil {
			out.Bind(ve.Variable.Name, v)
		}
	}
	return sb.String(), out, nil
}

// computeAggregate reduces rows to a single term for one Aggregate spec.
func (e *Executor) computeAggregate(ctx context.Context, agg algebra.Aggregate, rows []*binding.Binding) (rdf.Term, error) {
	switch agg.Kind {
	case algebra.AggCountStar:
		return rdf.NewTypedLiteral(fmt.Sprintf("%d", len(rows)), rdf.XSDInteger), nil
	case algebra.AggCount, algebra.AggCountDistinct:
		seen := make(map[string]bool)
		n := 0
		for _, row := range rows {
			v, err := e.evalExpr(ctx, agg.Expr, row)
			if err != nil || v == nil {
				continue
			}
			if agg.Kind == algebra.AggCountDistinct {
				key := v.String()
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			n++
		}
		return rdf.NewTypedLiteral(fmt.Sprintf("%d", n), rdf.XSDInteger), nil
	case algebra.AggSum, algebra.AggAvg:
		var sum float64
		var count int
		var sample rdf.Term
		for _, row := range rows {
			v, err := e.evalExpr(ctx, agg.Expr, row)
			if err != nil || v == nil {
				continue
			}
			n, nerr := aggNumeric(v)
			if nerr != nil {
				continue
			}
			sum += n
			count++
			sample = v
		}
		if agg.Kind == algebra.AggSum {
			return numericLiteral(sum, sample), nil
		}
		if count == 0 {
			return rdf.NewTypedLiteral("0", rdf.XSDInteger), nil
		}
		// AVG of integers is not itself an integer per SPARQL's numeric type
		// promotion (division always widens at least to decimal); float/double
		// inputs still produce a float/double average.
		if lit, ok := sample.(*rdf.Literal); ok && lit.Datatype != nil && lit.Datatype.Equals(rdf.XSDInteger) {
			return rdf.NewTypedLiteral(fmt.Sprintf("%g", sum/float64(count)), rdf.XSDDecimal), nil
		}
		return numericLiteral(sum/float64(count), sample), nil
	case algebra.AggMin, algebra.AggMax:
		var best rdf.Term
		for _, row := range rows {
			v, err := e.evalExpr(ctx, agg.Expr, row)
			if err != nil || v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			less := termLess(v, best)
			if (agg.Kind == algebra.AggMin && less) || (agg.Kind == algebra.AggMax && !less && !v.Equals(best)) {
				best = v
			}
		}
		if best == nil {
			return nil, fmt.Errorf("executor: aggregate over empty group")
		}
		return best, nil
	case algebra.AggSample:
		for _, row := range rows {
			v, err := e.evalExpr(ctx, agg.Expr, row)
			if err == nil && v != nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("executor: SAMPLE over empty group")
	case algebra.AggGroupConcat:
		sep := agg.Separator
		if sep == "" {
			sep = " "
		}
		var parts []string
		for _, row := range rows {
			v, err := e.evalExpr(ctx, agg.Expr, row)
			if err != nil || v == nil {
				continue
			}
			parts = append(parts, termLexical(v))
		}
		return rdf.NewLiteral(strings.Join(parts, sep)), nil
	default:
		return nil, fmt.Errorf("executor: unsupported aggregate kind %v", agg.Kind)
	}
}

func termLexical(t rdf.Term) string {
	if lit, ok := t.(*rdf.Literal); ok {
		return lit.Lexical
	}
	return t.String()
}

func aggNumeric(t rdf.Term) (float64, error) {
	lit, ok := t.(*rdf.Literal)
	if !ok || !rdf.IsNumericDatatype(lit.Datatype) {
		return 0, fmt.Errorf("executor: non-numeric aggregate operand %v", t)
	}
	var f float64
	_, err := fmt.Sscanf(lit.Lexical, "%g", &f)
	if err != nil {
		return 0, fmt.Errorf("executor: malformed numeric literal %q", lit.Lexical)
	}
	return f, nil
}

func numericLiteral(f float64, sample rdf.Term) rdf.Term {
	dt := rdf.XSDDouble
	if lit, ok := sample.(*rdf.Literal); ok && lit.Datatype != nil {
		dt = lit.Datatype
	}
	if dt.Equals(rdf.XSDInteger) && f == float64(int64(f)) {
		return rdf.NewTypedLiteral(fmt.Sprintf("%d", int64(f)), rdf.XSDInteger)
	}
	return rdf.NewTypedLiteral(fmt.Sprintf("%g", f), dt)
}

// termLess provides a total order over literals for MIN/MAX, comparing
// numerically when both sides are numeric and lexically otherwise.
func termLess(a, b rdf.Term) bool {
	la, aok := a.(*rdf.Literal)
	lb, bok := b.(*rdf.Literal)
	if aok && bok && rdf.IsNumericDatatype(la.Datatype) && rdf.IsNumericDatatype(lb.Datatype) {
		na, erra := aggNumeric(a)
		nb, errb := aggNumeric(b)
		if erra == nil && errb == nil {
			return na < nb
		}
	}
	return a.String() < b.String()
}

// newHavingIterator builds the Group iterator child names and filters its
// output bindings by n.Expr, evaluated with access to the aggregate
// results Group already bound — generalizing trigo's absence of HAVING
// support (trigo never implemented GROUP BY) from scratch, grounded on
// this package's own filterIterator.
func (e *Executor) newHavingIterator(ctx context.Context, child *planner.Plan, ec execCtx, n *algebra.Having) (Iterator, error) {
	input, err := e.createIterator(ctx, child, ec)
	if err != nil {
		return nil, err
	}
	return &filterIterator{exec: e, input: input, expr: n.Expr}, nil
}
