package executor

import (
	"context"
	"fmt"

	"github.com/quadstore/quadstore/dict"
	"github.com/quadstore/quadstore/quadstore"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
	"github.com/quadstore/quadstore/sparql/planner"
	"github.com/quadstore/quadstore/sparql/wcoj"
)

// newBGPIterator dispatches a BGP to the join strategy the planner chose for
// it, generalizing trigo's createScanIterator/createJoinIterator (which only
// ever builds a left-deep nested-loop chain) across §4.7's full strategy
// table.
func (e *Executor) newBGPIterator(ctx context.Context, bp *planner.BGPPlan, ec execCtx) (Iterator, error) {
	switch bp.Strategy {
	case planner.StrategyDirectScan:
		if len(bp.Patterns) == 0 {
			return newSingleBindingIterator(ec.outer.Clone()), nil
		}
		return e.newPatternScan(ctx, bp.Patterns[0].Pattern, ec)
	case planner.StrategyHashJoin:
		return e.newHashJoinIterator(ctx, bp.Patterns, ec)
	case planner.StrategyWCOJ:
		return e.newWCOJIterator(ctx, bp, ec)
	default:
		return e.newChainIterator(ctx, bp.Patterns, ec)
	}
}

// resolvePattern substitutes ec's outer bindings and graph scope into tp,
// producing a quadstore.Pattern ready for Store.Match. ok is false when a
// bound term (or an outer binding substituted into tp) has never been
// interned, meaning tp can never match anything currently stored.
func (e *Executor) resolvePattern(tp algebra.TriplePattern, ec execCtx) (quadstore.Pattern, bool) {
	var pat quadstore.Pattern

	sid, shas, sok := e.resolveComponent(tp.Subject, ec)
	if !sok {
		return pat, false
	}
	pat.S, pat.HasS = sid, shas

	pid, phas, pok := e.resolveComponent(tp.Predicate, ec)
	if !pok {
		return pat, false
	}
	pat.P, pat.HasP = pid, phas

	oid, ohas, ook := e.resolveComponent(tp.Object, ec)
	if !ook {
		return pat, false
	}
	pat.O, pat.HasO = oid, ohas

	cid, chas, cok := e.resolveComponent(e.effectiveGraph(tp, ec), ec)
	if !cok {
		return pat, false
	}
	pat.C, pat.HasC = cid, chas

	return pat, true
}

// effectiveGraph returns the graph term tp should be matched against: tp's
// own Graph field if it names one, else the GRAPH clause in scope (ec.graph),
// else the default graph.
func (e *Executor) effectiveGraph(tp algebra.TriplePattern, ec execCtx) rdf.Term {
	if tp.Graph != nil {
		return tp.Graph
	}
	if ec.graph != nil {
		return ec.graph
	}
	return rdf.NewDefaultGraph()
}

// resolveComponent interns term (or, if term is a variable already bound in
// ec.outer, its bound value) into a dict.ID. has reports whether the
// component is constrained at all (false means "any value matches", i.e. a
// still-free variable). ok is false only when a bound term cannot possibly
// match anything because it was never interned.
func (e *Executor) resolveComponent(term rdf.Term, ec execCtx) (id dict.ID, has bool, ok bool) {
	if term == nil {
		return 0, false, true
	}
	if v, isVar := term.(*rdf.Variable); isVar {
		bound, isBound := ec.outer.Get(v.Name)
		if !isBound {
			return 0, false, true
		}
		id, found := e.store.InternedID(bound)
		if !found {
			return 0, false, false
		}
		return id, true, true
	}
	id, found := e.store.InternedID(term)
	if !found {
		return 0, false, false
	}
	return id, true, true
}

// bindTerm binds term (if a variable) to value in b, reporting false if
// term was already bound in b to a different value — the same-pattern
// repeated-variable check (e.g. ?x :knows ?x) trigo's scanIterator performs
// inline.
func bindTerm(b *binding.Binding, term, value rdf.Term) bool {
	if term == nil {
		return true
	}
	v, isVar := term.(*rdf.Variable)
	if !isVar {
		return true
	}
	if existing, ok := b.Get(v.Name); ok {
		return existing.Equals(value)
	}
	b.Bind(v.Name, value)
	return true
}

// patternScanIterator streams solutions for one quad pattern.
type patternScanIterator struct {
	exec    *Executor
	pattern algebra.TriplePattern
	ec      execCtx
	it      *quadstore.MatchIterator // nil means the pattern can never match
	current *binding.Binding
}

func (e *Executor) newPatternScan(ctx context.Context, tp algebra.TriplePattern, ec execCtx) (*patternScanIterator, error) {
	pat, ok := e.resolvePattern(tp, ec)
	if !ok {
		return &patternScanIterator{exec: e, pattern: tp, ec: ec}, nil
	}
	it, err := e.store.Match(ctx, pat)
	if err != nil {
		return nil, fmt.Errorf("executor: scan: %w", err)
	}
	return &patternScanIterator{exec: e, pattern: tp, ec: ec, it: it}, nil
}

func (p *patternScanIterator) Next(ctx context.Context) (bool, error) {
	if p.it == nil {
		return false, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !p.it.Next() {
			return false, p.it.Err()
		}
		ids := p.it.QuadIDs()
		quad, err := p.exec.store.DecodeQuad(ids)
		if err != nil {
			return false, fmt.Errorf("executor: scan: %w", err)
		}
		b := p.ec.outer.Clone()
		graphTerm := p.exec.effectiveGraph(p.pattern, p.ec)
		if bindTerm(b, p.pattern.Subject, quad.Subject) &&
			bindTerm(b, p.pattern.Predicate, quad.Predicate) &&
			bindTerm(b, p.pattern.Object, quad.Object) &&
			bindTerm(b, graphTerm, quad.Graph) {
			p.current = b
			return true, nil
		}
	}
}

func (p *patternScanIterator) Binding() *binding.Binding { return p.current }

func (p *patternScanIterator) Close() error {
	if p.it == nil {
		return nil
	}
	return p.it.Close()
}

// chainJoinIterator left-deep nested-loops patterns[0] against the
// remaining patterns, recreating the right-hand iterator for every
// left-hand binding so later patterns see earlier ones' bindings as
// constraints — generalizing trigo's nestedLoopJoinIterator from exactly
// two plans to an ordered pattern list.
type chainJoinIterator struct {
	exec  *Executor
	left  Iterator
	rest  []planner.PatternPlan
	graph rdf.Term
	right Iterator
}

func (e *Executor) newChainIterator(ctx context.Context, patterns []planner.PatternPlan, ec execCtx) (Iterator, error) {
	if len(patterns) == 0 {
		return newSingleBindingIterator(ec.outer.Clone()), nil
	}
	left, err := e.newPatternScan(ctx, patterns[0].Pattern, ec)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 1 {
		return left, nil
	}
	return &chainJoinIterator{exec: e, left: left, rest: patterns[1:], graph: ec.graph}, nil
}

func (it *chainJoinIterator) Next(ctx context.Context) (bool, error) {
	for {
		if it.right != nil {
			ok, err := it.right.Next(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
			it.right.Close()
			it.right = nil
		}
		ok, err := it.left.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		right, err := it.exec.newChainIterator(ctx, it.rest, execCtx{outer: it.left.Binding(), graph: it.graph})
		if err != nil {
			return false, err
		}
		it.right = right
	}
}

func (it *chainJoinIterator) Binding() *binding.Binding { return it.right.Binding() }

func (it *chainJoinIterator) Close() error {
	if it.right != nil {
		it.right.Close()
	}
	return it.left.Close()
}

// hashJoinIterator implements the two-pattern shared-variable case:
// materialize the build side (patterns[0], already the lower-cardinality
// estimate per orderPatterns) into a hash table keyed by the shared
// variables' values, then probe with the other side.
type hashJoinIterator struct {
	probe      Iterator
	table      map[string][]*binding.Binding
	sharedVars []string
	bucket     []*binding.Binding
	bucketPos  int
	probeRow   *binding.Binding
	current    *binding.Binding
}

func (e *Executor) newHashJoinIterator(ctx context.Context, patterns []planner.PatternPlan, ec execCtx) (Iterator, error) {
	if len(patterns) != 2 {
		return e.newChainIterator(ctx, patterns, ec)
	}
	shared := sharedPatternVars(patterns[0].Pattern, patterns[1].Pattern)

	buildIter, err := e.newPatternScan(ctx, patterns[0].Pattern, ec)
	if err != nil {
		return nil, err
	}
	table := make(map[string][]*binding.Binding)
	for {
		ok, err := buildIter.Next(ctx)
		if err != nil {
			buildIter.Close()
			return nil, err
		}
		if !ok {
			break
		}
		b := buildIter.Binding().Clone()
		key := hashKey(b, shared)
		table[key] = append(table[key], b)
	}
	buildIter.Close()

	probeIter, err := e.newPatternScan(ctx, patterns[1].Pattern, ec)
	if err != nil {
		return nil, err
	}
	return &hashJoinIterator{probe: probeIter, table: table, sharedVars: shared}, nil
}

func (it *hashJoinIterator) Next(ctx context.Context) (bool, error) {
	for {
		for it.bucketPos < len(it.bucket) {
			cand := it.bucket[it.bucketPos]
			it.bucketPos++
			if it.probeRow.Compatible(cand) {
				it.current = it.probeRow.Merge(cand)
				return true, nil
			}
		}
		ok, err := it.probe.Next(ctx)
		if err != nil || !ok {
			return false, err
		}
		it.probeRow = it.probe.Binding()
		it.bucket = it.table[hashKey(it.probeRow, it.sharedVars)]
		it.bucketPos = 0
	}
}

func (it *hashJoinIterator) Binding() *binding.Binding { return it.current }
func (it *hashJoinIterator) Close() error              { return it.probe.Close() }

func sharedPatternVars(a, b algebra.TriplePattern) []string {
	av := make(map[string]bool)
	for _, t := range []rdf.Term{a.Subject, a.Predicate, a.Object, a.Graph} {
		if v, ok := t.(*rdf.Variable); ok {
			av[v.Name] = true
		}
	}
	var shared []string
	seen := make(map[string]bool)
	for _, t := range []rdf.Term{b.Subject, b.Predicate, b.Object, b.Graph} {
		if v, ok := t.(*rdf.Variable); ok && av[v.Name] && !seen[v.Name] {
			shared = append(shared, v.Name)
			seen[v.Name] = true
		}
	}
	return shared
}

func hashKey(b *binding.Binding, vars []string) string {
	out := make([]byte, 0, 32)
	for _, name := range vars {
		t, _ := b.Get(name)
		out = append(out, name...)
		out = append(out, '=')
		if t != nil {
			out = append(out, t.String()...)
		}
		out = append(out, ';')
	}
	return string(out)
}

// newWCOJIterator evaluates a BGP the planner chose the Worst-Case-Optimal
// Join for: scan each pattern into a wcoj.Relation over the BGP's global
// canonical variable order, build every relation's trie concurrently, run
// LeapFrogJoin, then decode the resulting id rows back to terms.
func (e *Executor) newWCOJIterator(ctx context.Context, bp *planner.BGPPlan, ec execCtx) (Iterator, error) {
	order := bp.VarOrder
	relations := make([]wcoj.Relation, len(bp.Patterns))
	for i, pp := range bp.Patterns {
		vars := localVars(pp.Pattern, order)
		rows, err := e.scanPatternRows(ctx, pp.Pattern, ec, vars)
		if err != nil {
			return nil, err
		}
		relations[i] = wcoj.Relation{Vars: vars, Rows: rows}
	}
	tries, err := wcoj.BuildTries(ctx, relations)
	if err != nil {
		return nil, fmt.Errorf("executor: wcoj: %w", err)
	}
	rows, err := wcoj.LeapFrogJoin(ctx, order, tries)
	if err != nil {
		return nil, fmt.Errorf("executor: wcoj: %w", err)
	}
	return &wcojResultIterator{exec: e, order: order, rows: rows, outer: ec.outer, pos: -1}, nil
}

// localVars returns the subsequence of order that tp actually binds.
func localVars(tp algebra.TriplePattern, order []string) []string {
	set := make(map[string]bool)
	for _, t := range []rdf.Term{tp.Subject, tp.Predicate, tp.Object, tp.Graph} {
		if v, ok := t.(*rdf.Variable); ok {
			set[v.Name] = true
		}
	}
	var out []string
	for _, name := range order {
		if set[name] {
			out = append(out, name)
		}
	}
	return out
}

// scanPatternRows matches tp under ec and projects each solution onto vars
// (a subsequence of the BGP's global variable order), working entirely in
// dictionary-id space since the rows feed straight into a trie.Build.
func (e *Executor) scanPatternRows(ctx context.Context, tp algebra.TriplePattern, ec execCtx, vars []string) ([][]dict.ID, error) {
	pat, ok := e.resolvePattern(tp, ec)
	if !ok {
		return nil, nil
	}
	it, err := e.store.Match(ctx, pat)
	if err != nil {
		return nil, fmt.Errorf("executor: wcoj scan: %w", err)
	}
	defer it.Close()

	graphTerm := e.effectiveGraph(tp, ec)
	var rows [][]dict.ID
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids := it.QuadIDs()
		varVals := make(map[string]dict.ID)
		consistent := true
		assign := func(term rdf.Term, id dict.ID) {
			v, isVar := term.(*rdf.Variable)
			if !isVar {
				return
			}
			if existing, seen := varVals[v.Name]; seen {
				if existing != id {
					consistent = false
				}
				return
			}
			varVals[v.Name] = id
		}
		assign(tp.Subject, ids.S)
		assign(tp.Predicate, ids.P)
		assign(tp.Object, ids.O)
		assign(graphTerm, ids.C)
		if !consistent {
			continue
		}
		row := make([]dict.ID, len(vars))
		complete := true
		for i, name := range vars {
			id, present := varVals[name]
			if !present {
				complete = false
				break
			}
			row[i] = id
		}
		if complete {
			rows = append(rows, row)
		}
	}
	return rows, it.Err()
}

// wcojResultIterator replays LeapFrogJoin's materialized [][]dict.ID rows,
// decoding each back into terms merged with the outer binding.
type wcojResultIterator struct {
	exec    *Executor
	order   []string
	rows    [][]dict.ID
	outer   *binding.Binding
	pos     int
	current *binding.Binding
}

func (it *wcojResultIterator) Next(ctx context.Context) (bool, error) {
	it.pos++
	if it.pos >= len(it.rows) {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b := it.outer.Clone()
	row := it.rows[it.pos]
	for i, name := range it.order {
		term, err := it.exec.store.Dictionary().Lookup(row[i])
		if err != nil {
			return false, fmt.Errorf("executor: wcoj decode: %w", err)
		}
		b.Bind(name, term)
	}
	it.current = b
	return true, nil
}

func (it *wcojResultIterator) Binding() *binding.Binding { return it.current }
func (it *wcojResultIterator) Close() error              { return nil }
