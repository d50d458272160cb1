package executor

import (
	"context"
	"fmt"

	"github.com/quadstore/quadstore/quadstore"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
)

// instantiateQuad is instantiateTriple extended with the Graph position,
// defaulting to the default graph when a quad-data triple names none.
func instantiateQuad(tp algebra.TriplePattern, row *binding.Binding) (*rdf.Quad, bool) {
	t, ok := instantiateTriple(tp, row)
	if !ok {
		return nil, false
	}
	graph := rdf.Term(rdf.NewDefaultGraph())
	if tp.Graph != nil {
		g, ok := instantiateTerm(tp.Graph, row)
		if !ok {
			return nil, false
		}
		graph = g
	}
	return rdf.NewQuad(t.Subject, t.Predicate, t.Object, graph), true
}

func (e *Executor) executeInsertData(ctx context.Context, q *algebra.InsertData) (*UpdateResult, error) {
	empty := binding.New()
	var inserted int64
	for _, tp := range q.Data.Quads {
		quad, ok := instantiateQuad(tp, empty)
		if !ok {
			continue
		}
		added, err := e.store.Insert(ctx, quad)
		if err != nil {
			return nil, fmt.Errorf("executor: insert data: %w", err)
		}
		if added {
			inserted++
		}
	}
	return &UpdateResult{Inserted: inserted}, nil
}

func (e *Executor) executeDeleteData(ctx context.Context, q *algebra.DeleteData) (*UpdateResult, error) {
	empty := binding.New()
	var deleted int64
	for _, tp := range q.Data.Quads {
		quad, ok := instantiateQuad(tp, empty)
		if !ok {
			continue
		}
		present, err := e.store.Contains(ctx, quad)
		if err != nil {
			return nil, fmt.Errorf("executor: delete data: %w", err)
		}
		if !present {
			continue
		}
		if err := e.store.Delete(ctx, quad); err != nil {
			return nil, fmt.Errorf("executor: delete data: %w", err)
		}
		deleted++
	}
	return &UpdateResult{Deleted: deleted}, nil
}

// bgpTemplate returns the triple patterns to instantiate per solution for a
// Pattern node that also serves as its own delete/insert template (DELETE
// WHERE's shorthand form) — the common case where Pattern is a bare BGP.
// A Pattern built from richer algebra (OPTIONAL, UNION, ...) has no single
// flat template and is reported as unsupported, a documented limitation.
func bgpTemplate(node algebra.Node) ([]algebra.TriplePattern, error) {
	bgp, ok := node.(*algebra.BGP)
	if !ok {
		return nil, fmt.Errorf("executor: DELETE WHERE requires a basic graph pattern, got %T", node)
	}
	return bgp.Patterns, nil
}

func (e *Executor) executeDeleteWhere(ctx context.Context, q *algebra.DeleteWhere) (*UpdateResult, error) {
	template, err := bgpTemplate(q.Pattern)
	if err != nil {
		return nil, err
	}
	p, err := e.plan(ctx, q.Pattern)
	if err != nil {
		return nil, err
	}
	iter, err := e.createIterator(ctx, p, rootCtx())
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var deleted int64
	for {
		ok, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		row := iter.Binding()
		for _, tp := range template {
			quad, ok := instantiateQuad(tp, row)
			if !ok {
				continue
			}
			if err := e.store.Delete(ctx, quad); err != nil {
				return nil, fmt.Errorf("executor: delete where: %w", err)
			}
			deleted++
		}
	}
	return &UpdateResult{Deleted: deleted}, nil
}

func (e *Executor) executeInsertWhere(ctx context.Context, q *algebra.InsertWhere) (*UpdateResult, error) {
	p, err := e.plan(ctx, q.Pattern)
	if err != nil {
		return nil, err
	}
	iter, err := e.createIterator(ctx, p, rootCtx())
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var inserted int64
	for {
		ok, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		row := iter.Binding()
		for _, tp := range q.Insert.Quads {
			quad, ok := instantiateQuad(tp, row)
			if !ok {
				continue
			}
			added, err := e.store.Insert(ctx, quad)
			if err != nil {
				return nil, fmt.Errorf("executor: insert where: %w", err)
			}
			if added {
				inserted++
			}
		}
	}
	return &UpdateResult{Inserted: inserted}, nil
}

// executeModify runs general DELETE/INSERT WHERE: for every Pattern
// solution, first delete q.Delete's instantiated quads, then insert
// q.Insert's, matching SPARQL Update's "delete before insert, same
// solution" ordering. q.Using is accepted but not used to restrict the
// dataset the WHERE clause matches against (see DESIGN.md).
func (e *Executor) executeModify(ctx context.Context, q *algebra.Modify) (*UpdateResult, error) {
	p, err := e.plan(ctx, q.Pattern)
	if err != nil {
		return nil, err
	}
	iter, err := e.createIterator(ctx, p, rootCtx())
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var result UpdateResult
	for {
		ok, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		row := iter.Binding()
		for _, tp := range q.Delete.Quads {
			quad, ok := instantiateQuad(tp, row)
			if !ok {
				continue
			}
			if err := e.store.Delete(ctx, quad); err != nil {
				return nil, fmt.Errorf("executor: modify delete: %w", err)
			}
			result.Deleted++
		}
		for _, tp := range q.Insert.Quads {
			quad, ok := instantiateQuad(tp, row)
			if !ok {
				continue
			}
			added, err := e.store.Insert(ctx, quad)
			if err != nil {
				return nil, fmt.Errorf("executor: modify insert: %w", err)
			}
			if added {
				result.Inserted++
			}
		}
	}
	return &result, nil
}

// executeGraphOp implements ADD/COPY/MOVE/DROP/CLEAR by copying or removing
// whole graphs' worth of quads. Only single named-graph source/destination
// terms are supported; the DEFAULT/NAMED/ALL keyword forms some SPARQL
// Update implementations accept are out of scope (see DESIGN.md).
func (e *Executor) executeGraphOp(ctx context.Context, q *algebra.GraphOp) (*UpdateResult, error) {
	switch q.Kind {
	case algebra.GraphDrop, algebra.GraphClear:
		n, err := e.clearGraph(ctx, q.Source)
		if err != nil {
			return e.silentResult(q.Silent, err)
		}
		return &UpdateResult{Deleted: n}, nil
	case algebra.GraphAdd:
		n, err := e.copyGraph(ctx, q.Source, q.Dest, false)
		if err != nil {
			return e.silentResult(q.Silent, err)
		}
		return &UpdateResult{Inserted: n}, nil
	case algebra.GraphCopy:
		if _, err := e.clearGraph(ctx, q.Dest); err != nil {
			return e.silentResult(q.Silent, err)
		}
		n, err := e.copyGraph(ctx, q.Source, q.Dest, false)
		if err != nil {
			return e.silentResult(q.Silent, err)
		}
		return &UpdateResult{Inserted: n}, nil
	case algebra.GraphMove:
		if _, err := e.clearGraph(ctx, q.Dest); err != nil {
			return e.silentResult(q.Silent, err)
		}
		n, err := e.copyGraph(ctx, q.Source, q.Dest, true)
		if err != nil {
			return e.silentResult(q.Silent, err)
		}
		return &UpdateResult{Inserted: n}, nil
	default:
		return nil, fmt.Errorf("executor: unsupported graph operation %v", q.Kind)
	}
}

func (e *Executor) silentResult(silent bool, err error) (*UpdateResult, error) {
	if silent {
		return &UpdateResult{}, nil
	}
	return nil, err
}

func (e *Executor) clearGraph(ctx context.Context, graph rdf.Term) (int64, error) {
	id, bound := e.store.InternedID(graph)
	if !bound {
		return 0, nil
	}
	pat := quadstore.Pattern{C: id, HasC: true}
	it, err := e.store.Match(ctx, pat)
	if err != nil {
		return 0, fmt.Errorf("executor: clear graph: %w", err)
	}
	defer it.Close()

	var quads []*rdf.Quad
	for it.Next() {
		quad, err := e.store.DecodeQuad(it.QuadIDs())
		if err != nil {
			return 0, err
		}
		quads = append(quads, quad)
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	for _, quad := range quads {
		if err := e.store.Delete(ctx, quad); err != nil {
			return 0, fmt.Errorf("executor: clear graph: %w", err)
		}
	}
	return int64(len(quads)), nil
}

func (e *Executor) copyGraph(ctx context.Context, source, dest rdf.Term, moveSource bool) (int64, error) {
	id, bound := e.store.InternedID(source)
	if !bound {
		return 0, nil
	}
	pat := quadstore.Pattern{C: id, HasC: true}
	it, err := e.store.Match(ctx, pat)
	if err != nil {
		return 0, fmt.Errorf("executor: copy graph: %w", err)
	}
	defer it.Close()

	var quads []*rdf.Quad
	for it.Next() {
		quad, err := e.store.DecodeQuad(it.QuadIDs())
		if err != nil {
			return 0, err
		}
		quads = append(quads, quad)
	}
	if err := it.Err(); err != nil {
		return 0, err
	}

	var inserted int64
	for _, quad := range quads {
		newQuad := rdf.NewQuad(quad.Subject, quad.Predicate, quad.Object, dest)
		added, err := e.store.Insert(ctx, newQuad)
		if err != nil {
			return 0, fmt.Errorf("executor: copy graph: %w", err)
		}
		if added {
			inserted++
		}
		if moveSource {
			if err := e.store.Delete(ctx, quad); err != nil {
				return 0, fmt.Errorf("executor: move graph: %w", err)
			}
		}
	}
	return inserted, nil
}
