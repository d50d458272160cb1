package executor

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quadstore/quadstore/dict"
	"github.com/quadstore/quadstore/quadstore"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
)

// newPathIterator evaluates a property path between n.Subject and n.Object,
// the one BGP shape trigo never handled (trigo's planner/executor only ever
// see flattened triple patterns). Kleene closures (ZeroOrMore/OneOrMore)
// walk the quad store breadth-first from the bound endpoint, tracking
// visited nodes in a roaring.Bitmap keyed by the low 32 bits of their
// dict.ID — safe for any dictionary that stays under 2^32 distinct terms,
// which every backend spec.md targets does.
func (e *Executor) newPathIterator(ctx context.Context, n *algebra.Path, ec execCtx) (Iterator, error) {
	graph := n.Graph
	if graph == nil {
		graph = ec.graph
	}
	if graph == nil {
		graph = rdf.NewDefaultGraph()
	}
	graphID, graphBound, ok := e.resolveComponent(graph, ec)
	if !ok {
		return emptyIterator{}, nil
	}
	if !graphBound {
		// An unbound GRAPH variable would require enumerating every graph
		// in the store; property paths only support a graph scope already
		// fixed (named explicitly or bound by an enclosing pattern).
		return nil, fmt.Errorf("executor: property path requires a bound graph scope")
	}

	sID, sBound, sOK := e.resolveComponent(n.Subject, ec)
	if !sOK {
		return emptyIterator{}, nil
	}
	oID, oBound, oOK := e.resolveComponent(n.Object, ec)
	if !oOK {
		return emptyIterator{}, nil
	}

	pe := &pathEval{exec: e, ctx: ctx, graphID: graphID}

	switch {
	case sBound && oBound:
		reachable, err := pe.forward(sID, n.Expr)
		if err != nil {
			return nil, err
		}
		if !reachable.Contains(uint32(oID)) {
			return &materializedBindingIterator{rows: nil, pos: -1}, nil
		}
		return &materializedBindingIterator{rows: []*binding.Binding{ec.outer.Clone()}, pos: -1}, nil
	case sBound && !oBound:
		reachable, err := pe.forward(sID, n.Expr)
		if err != nil {
			return nil, err
		}
		return e.pathRowsForVar(n.Object, reachable, ec)
	case !sBound && oBound:
		reachable, err := pe.backward(oID, n.Expr)
		if err != nil {
			return nil, err
		}
		return e.pathRowsForVar(n.Subject, reachable, ec)
	default:
		return e.pathAllPairs(ctx, n, ec, pe)
	}
}

// pathEval holds the state one path evaluation needs repeatedly: the
// executor (for store access), the request context, and the graph scope.
type pathEval struct {
	exec    *Executor
	ctx     context.Context
	graphID dict.ID
}

// forward returns the set of node ids reachable from start via expr.
func (pe *pathEval) forward(start dict.ID, expr *algebra.PathExpr) (*roaring.Bitmap, error) {
	return pe.walk(roaringOf(start), expr, true)
}

// backward returns the set of node ids that can reach target via expr —
// evaluated as the forward closure of the path's structural inverse.
func (pe *pathEval) backward(target dict.ID, expr *algebra.PathExpr) (*roaring.Bitmap, error) {
	return pe.walk(roaringOf(target), expr, false)
}

func roaringOf(id dict.ID) *roaring.Bitmap {
	b := roaring.New()
	b.Add(uint32(id))
	return b
}

// walk evaluates expr over the frontier of ids already reached, returning
// the new frontier. forward=false evaluates expr's structural inverse
// (swapping PathPredicate direction and PathSequence order), implementing
// backward traversal without a second code path per operator.
func (pe *pathEval) walk(frontier *roaring.Bitmap, expr *algebra.PathExpr, forward bool) (*roaring.Bitmap, error) {
	switch expr.Kind {
	case algebra.PathPredicate:
		return pe.stepPredicate(frontier, expr.Predicate, forward)
	case algebra.PathInverse:
		return pe.walk(frontier, expr.Sub, !forward)
	case algebra.PathSequence:
		first, second := expr.Left, expr.Right
		if !forward {
			first, second = expr.Right, expr.Left
		}
		mid, err := pe.walk(frontier, first, forward)
		if err != nil {
			return nil, err
		}
		return pe.walk(mid, second, forward)
	case algebra.PathAlternative:
		left, err := pe.walk(frontier, expr.Left, forward)
		if err != nil {
			return nil, err
		}
		right, err := pe.walk(frontier, expr.Right, forward)
		if err != nil {
			return nil, err
		}
		out := left.Clone()
		out.Or(right)
		return out, nil
	case algebra.PathZeroOrOne:
		step, err := pe.walk(frontier, expr.Sub, forward)
		if err != nil {
			return nil, err
		}
		out := frontier.Clone()
		out.Or(step)
		return out, nil
	case algebra.PathZeroOrMore:
		return pe.closure(frontier, expr.Sub, forward, true)
	case algebra.PathOneOrMore:
		return pe.closure(frontier, expr.Sub, forward, false)
	case algebra.PathNegatedSet:
		return pe.stepNegated(frontier, expr.NegatedPreds, forward)
	default:
		return nil, fmt.Errorf("executor: unsupported path kind %v", expr.Kind)
	}
}

// closure computes the reflexive-transitive (includeZero=true, ZeroOrMore)
// or plain transitive (includeZero=false, OneOrMore) closure of sub from
// frontier, iterating until a pass adds no new node.
func (pe *pathEval) closure(frontier *roaring.Bitmap, sub *algebra.PathExpr, forward, includeZero bool) (*roaring.Bitmap, error) {
	visited := roaring.New()
	if includeZero {
		visited.Or(frontier)
	}
	current := frontier.Clone()
	for !current.IsEmpty() {
		next, err := pe.walk(current, sub, forward)
		if err != nil {
			return nil, err
		}
		next.AndNot(visited)
		if next.IsEmpty() {
			break
		}
		visited.Or(next)
		current = next
	}
	return visited, nil
}

// stepPredicate advances every id in frontier across one predicate hop.
func (pe *pathEval) stepPredicate(frontier *roaring.Bitmap, predicate rdf.Term, forward bool) (*roaring.Bitmap, error) {
	predID, ok := pe.exec.store.InternedID(predicate)
	if !ok {
		return roaring.New(), nil
	}
	out := roaring.New()
	it := frontier.Iterator()
	for it.HasNext() {
		id := dict.ID(it.Next())
		next, err := pe.hop(id, predID, true, forward)
		if err != nil {
			return nil, err
		}
		out.Or(next)
	}
	return out, nil
}

// stepNegated advances every id in frontier across any forward predicate
// hop whose predicate is not in excluded.
func (pe *pathEval) stepNegated(frontier *roaring.Bitmap, excluded []rdf.Term, forward bool) (*roaring.Bitmap, error) {
	excludedIDs := make(map[dict.ID]bool, len(excluded))
	for _, p := range excluded {
		if id, ok := pe.exec.store.InternedID(p); ok {
			excludedIDs[id] = true
		}
	}
	out := roaring.New()
	it := frontier.Iterator()
	for it.HasNext() {
		id := dict.ID(it.Next())
		next, err := pe.hopAnyPredicate(id, excludedIDs, forward)
		if err != nil {
			return nil, err
		}
		out.Or(next)
	}
	return out, nil
}

// hop matches one predicate-fixed edge from id, in the direction forward
// (id is the subject, result is objects) or backward (id is the object,
// result is subjects).
func (pe *pathEval) hop(id, predID dict.ID, predFixed, forward bool) (*roaring.Bitmap, error) {
	var pat quadstore.Pattern
	pat.C, pat.HasC = pe.graphID, true
	if predFixed {
		pat.P, pat.HasP = predID, true
	}
	if forward {
		pat.S, pat.HasS = id, true
	} else {
		pat.O, pat.HasO = id, true
	}
	it, err := pe.exec.store.Match(pe.ctx, pat)
	if err != nil {
		return nil, fmt.Errorf("executor: path hop: %w", err)
	}
	defer it.Close()
	out := roaring.New()
	for it.Next() {
		ids := it.QuadIDs()
		if forward {
			out.Add(uint32(ids.O))
		} else {
			out.Add(uint32(ids.S))
		}
	}
	return out, it.Err()
}

func (pe *pathEval) hopAnyPredicate(id dict.ID, excluded map[dict.ID]bool, forward bool) (*roaring.Bitmap, error) {
	var pat quadstore.Pattern
	pat.C, pat.HasC = pe.graphID, true
	if forward {
		pat.S, pat.HasS = id, true
	} else {
		pat.O, pat.HasO = id, true
	}
	it, err := pe.exec.store.Match(pe.ctx, pat)
	if err != nil {
		return nil, fmt.Errorf("executor: path hop: %w", err)
	}
	defer it.Close()
	out := roaring.New()
	for it.Next() {
		ids := it.QuadIDs()
		if excluded[ids.P] {
			continue
		}
		if forward {
			out.Add(uint32(ids.O))
		} else {
			out.Add(uint32(ids.S))
		}
	}
	return out, it.Err()
}

// pathRowsForVar decodes reachable into bindings of freeVar (an
// *rdf.Variable; a concrete term here would already have been handled by
// the bound/bound case in newPathIterator).
func (e *Executor) pathRowsForVar(freeVar rdf.Term, reachable *roaring.Bitmap, ec execCtx) (Iterator, error) {
	v, isVar := freeVar.(*rdf.Variable)
	if !isVar {
		return emptyIterator{}, nil
	}
	var rows []*binding.Binding
	it := reachable.Iterator()
	for it.HasNext() {
		id := dict.ID(it.Next())
		term, err := e.store.Dictionary().Lookup(id)
		if err != nil {
			return nil, fmt.Errorf("executor: path decode: %w", err)
		}
		rows = append(rows, ec.outer.Clone().Bind(v.Name, term))
	}
	return &materializedBindingIterator{rows: rows, pos: -1}, nil
}

// pathAllPairs handles the rare case of a path pattern with both endpoints
// unbound: it scans every distinct subject the graph holds as a starting
// frontier, then enumerates each one's forward closure. More expensive than
// the single-endpoint cases, but correct.
func (e *Executor) pathAllPairs(ctx context.Context, n *algebra.Path, ec execCtx, pe *pathEval) (Iterator, error) {
	sVar, sIsVar := n.Subject.(*rdf.Variable)
	oVar, oIsVar := n.Object.(*rdf.Variable)
	if !sIsVar || !oIsVar {
		return emptyIterator{}, nil
	}

	var pat quadstore.Pattern
	pat.C, pat.HasC = pe.graphID, true
	it, err := e.store.Match(ctx, pat)
	if err != nil {
		return nil, fmt.Errorf("executor: path scan: %w", err)
	}
	subjects := roaring.New()
	for it.Next() {
		subjects.Add(uint32(it.QuadIDs().S))
	}
	it.Close()
	if err := it.Err(); err != nil {
		return nil, err
	}

	var rows []*binding.Binding
	sit := subjects.Iterator()
	for sit.HasNext() {
		sID := dict.ID(sit.Next())
		reachable, err := pe.forward(sID, n.Expr)
		if err != nil {
			return nil, err
		}
		sTerm, err := e.store.Dictionary().Lookup(sID)
		if err != nil {
			return nil, err
		}
		oit := reachable.Iterator()
		for oit.HasNext() {
			oID := dict.ID(oit.Next())
			oTerm, err := e.store.Dictionary().Lookup(oID)
			if err != nil {
				return nil, err
			}
			b := ec.outer.Clone()
			b.Bind(sVar.Name, sTerm)
			b.Bind(oVar.Name, oTerm)
			rows = append(rows, b)
		}
	}
	return &materializedBindingIterator{rows: rows, pos: -1}, nil
}
