package executor

import (
	"context"
	"fmt"

	"github.com/quadstore/quadstore/quadstore"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
)

// executeConstruct runs q.Child, instantiates q.Template against every
// solution, and deduplicates the resulting triples — generalizing trigo's
// instantiateTriplePattern/instantiateTerm from a fixed template walk into
// this package's shared triple-instantiation helper.
func (e *Executor) executeConstruct(ctx context.Context, q *algebra.Construct) (*ConstructResult, error) {
	p, err := e.plan(ctx, q.Child)
	if err != nil {
		return nil, err
	}
	iter, err := e.createIterator(ctx, p, rootCtx())
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	seen := make(map[string]bool)
	var triples []*rdf.Triple

	for {
		ok, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		row := iter.Binding()
		for _, tp := range q.Template.Triples {
			t, ok := instantiateTriple(tp, row)
			if !ok {
				continue
			}
			key := t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			triples = append(triples, t)
		}
	}

	return &ConstructResult{Triples: triples}, nil
}

// instantiateTriple substitutes row's bindings into tp's variables,
// reporting ok=false when a variable the template names is unbound in row
// (per CONSTRUCT's rule that such a triple is simply omitted).
func instantiateTriple(tp algebra.TriplePattern, row *binding.Binding) (*rdf.Triple, bool) {
	s, ok := instantiateTerm(tp.Subject, row)
	if !ok {
		return nil, false
	}
	p, ok := instantiateTerm(tp.Predicate, row)
	if !ok {
		return nil, false
	}
	o, ok := instantiateTerm(tp.Object, row)
	if !ok {
		return nil, false
	}
	return rdf.NewTriple(s, p, o), true
}

func instantiateTerm(term rdf.Term, row *binding.Binding) (rdf.Term, bool) {
	v, isVar := term.(*rdf.Variable)
	if !isVar {
		return term, true
	}
	return row.Get(v.Name)
}

// executeDescribe computes, for each term in q.Terms (plus every binding of
// each Variable over q.Child's solutions, if present), the Concise Bounded
// Description: every triple with that term as subject, recursively
// following any blank node objects, generalizing trigo's executeDescribe
// from a single explicit-IRI-list walk to also covering a DESCRIBE with a
// WHERE clause.
func (e *Executor) executeDescribe(ctx context.Context, q *algebra.Describe) (*ConstructResult, error) {
	var roots []rdf.Term

	for _, t := range q.Terms {
		if _, isVar := t.(*rdf.Variable); !isVar {
			roots = append(roots, t)
		}
	}

	if q.Child != nil {
		p, err := e.plan(ctx, q.Child)
		if err != nil {
			return nil, err
		}
		iter, err := e.createIterator(ctx, p, rootCtx())
		if err != nil {
			return nil, err
		}
		defer iter.Close()
		for {
			ok, err := iter.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			row := iter.Binding()
			for _, t := range q.Terms {
				v, isVar := t.(*rdf.Variable)
				if !isVar {
					continue
				}
				if term, bound := row.Get(v.Name); bound {
					roots = append(roots, term)
				}
			}
		}
	}

	seen := make(map[string]bool)
	var triples []*rdf.Triple
	visitedNodes := make(map[string]bool)
	var visit func(term rdf.Term) error
	visit = func(term rdf.Term) error {
		nodeKey := term.String()
		if visitedNodes[nodeKey] {
			return nil
		}
		visitedNodes[nodeKey] = true

		var pat quadstore.Pattern
		id, bound := e.store.InternedID(term)
		if !bound {
			return nil
		}
		pat.S, pat.HasS = id, true
		it, err := e.store.Match(ctx, pat)
		if err != nil {
			return fmt.Errorf("executor: describe: %w", err)
		}
		defer it.Close()
		for it.Next() {
			quad, err := e.store.DecodeQuad(it.QuadIDs())
			if err != nil {
				return fmt.Errorf("executor: describe: %w", err)
			}
			triple := rdf.NewTriple(quad.Subject, quad.Predicate, quad.Object)
			key := triple.Subject.String() + " " + triple.Predicate.String() + " " + triple.Object.String()
			if !seen[key] {
				seen[key] = true
				triples = append(triples, triple)
			}
			if bn, ok := quad.Object.(*rdf.BlankNode); ok {
				if err := visit(bn); err != nil {
					return err
				}
			}
		}
		return it.Err()
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}

	return &ConstructResult{Triples: triples}, nil
}
