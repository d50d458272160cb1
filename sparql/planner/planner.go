// Package planner turns a BGP into an annotated join plan: it classifies
// the pattern's join graph (star/chain/cyclic), chooses a join strategy per
// the classification and pattern count, and picks a per-pattern index via
// index.Select. It generalizes trigo's internal/sparql/optimizer, which only
// ever reorders a left-deep nested-loop chain, into the strategy table of
// §4.7, including the Worst-Case-Optimal Join path trigo has no equivalent
// of.
package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/quadstore/quadstore/index"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/varorder"
)

// Strategy is the join execution strategy chosen for a BGP.
type Strategy int

const (
	StrategyDirectScan Strategy = iota
	StrategyNestedLoop
	StrategyHashJoin
	StrategyWCOJ
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirectScan:
		return "DirectScan"
	case StrategyNestedLoop:
		return "NestedLoop"
	case StrategyHashJoin:
		return "HashJoin"
	case StrategyWCOJ:
		return "WCOJ"
	default:
		return "Unknown"
	}
}

// Shape classifies a BGP's join graph topology.
type Shape int

const (
	ShapeSingle Shape = iota
	ShapeChain
	ShapeStar
	ShapeCyclic
)

// PatternEstimate is a pattern's chosen physical index (resolved from its
// bound terms' dictionary ids) and its estimated result cardinality.
type PatternEstimate struct {
	Index       index.Index
	Cardinality int64
}

// Estimator supplies per-pattern index choice and cardinality estimates to
// the planner. Implementations own dictionary id resolution, since the
// planner package itself never touches a Dictionary.
type Estimator interface {
	Estimate(ctx context.Context, tp algebra.TriplePattern) (PatternEstimate, error)
}

// PatternPlan is one BGP pattern annotated with its chosen physical index
// and estimated cardinality.
type PatternPlan struct {
	Pattern     algebra.TriplePattern
	Index       index.Index
	Cardinality int64
}

// BGPPlan is a fully annotated BGP: its patterns (in execution order),
// the chosen strategy, and the canonical variable order WCOJ would use.
type BGPPlan struct {
	Patterns  []PatternPlan
	Strategy  Strategy
	Shape     Shape
	VarOrder  []string
}

// Plan is a tree mirroring the algebra tree, with every *algebra.BGP leaf
// replaced with a *BGPPlan and every other node preserved structurally.
type Plan struct {
	Algebra algebra.Node
	BGP     *BGPPlan   // non-nil iff Algebra is a *algebra.BGP
	Left    *Plan
	Right   *Plan
	Child   *Plan
}

// variableName returns name,true if term is a variable.
func variableName(term rdf.Term) (string, bool) {
	v, ok := term.(*rdf.Variable)
	if !ok {
		return "", false
	}
	return v.Name, true
}

func patternVars(tp algebra.TriplePattern) []string {
	var vars []string
	for _, t := range []rdf.Term{tp.Subject, tp.Predicate, tp.Object, tp.Graph} {
		if t == nil {
			continue
		}
		if name, ok := variableName(t); ok {
			vars = append(vars, name)
		}
	}
	return vars
}

// varFrequency counts how many patterns mention each variable.
func varFrequency(patterns []algebra.TriplePattern) map[string]int {
	freq := make(map[string]int)
	for _, p := range patterns {
		seen := make(map[string]bool)
		for _, v := range patternVars(p) {
			if !seen[v] {
				freq[v]++
				seen[v] = true
			}
		}
	}
	return freq
}

// classify determines a BGP's join-graph shape per §4.7. A star has one hub
// variable present in at least half of the patterns (so most joins route
// through that single variable, rather than a chain of distinct ones); a
// cyclic graph has no such hub but its shared-variable adjacency still forms
// a cycle, which takes five or more patterns (with four or fewer, any
// variable shared by two patterns already reaches the hub threshold);
// anything else is a chain.
func classify(patterns []algebra.TriplePattern) Shape {
	switch {
	case len(patterns) <= 1:
		return ShapeSingle
	case len(patterns) == 2:
		return ShapeChain
	}
	freq := varFrequency(patterns)
	for _, n := range freq {
		if n*2 >= len(patterns) {
			return ShapeStar
		}
	}
	if hasCycle(patterns) {
		return ShapeCyclic
	}
	return ShapeChain
}

// hasCycle builds the pattern-adjacency graph (edge between two patterns
// sharing a variable) and reports whether it contains a cycle.
func hasCycle(patterns []algebra.TriplePattern) bool {
	n := len(patterns)
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		vi := patternVars(patterns[i])
		for j := i + 1; j < n; j++ {
			if shareVar(vi, patternVars(patterns[j])) {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}
	visited := make([]bool, n)
	var dfs func(node, parent int) bool
	dfs = func(node, parent int) bool {
		visited[node] = true
		for _, next := range adj[node] {
			if !visited[next] {
				if dfs(next, node) {
					return true
				}
			} else if next != parent {
				return true
			}
		}
		return false
	}
	for i := 0; i < n; i++ {
		if !visited[i] && dfs(i, -1) {
			return true
		}
	}
	return false
}

func shareVar(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}

// hasLiteralConstrainedSharedVar reports whether any variable shared across two
// or more patterns also appears, in at least one pattern, alongside a bound
// literal constraint in the same pattern position — disqualifying the
// cheap hash-join path per §4.7's strategy table.
func hasLiteralConstrainedSharedVar(patterns []algebra.TriplePattern) bool {
	freq := varFrequency(patterns)
	for _, p := range patterns {
		for _, v := range patternVars(p) {
			if freq[v] > 1 {
				// shared variable; check siblings in the same pattern for a
				// bound literal riding alongside it
				for _, t := range []rdf.Term{p.Subject, p.Predicate, p.Object} {
					if t == nil {
						continue
					}
					if _, isVar := t.(*rdf.Variable); isVar {
						continue
					}
					if _, isLit := t.(*rdf.Literal); isLit {
						return true
					}
				}
			}
		}
	}
	return false
}

// chooseStrategy implements §4.7's strategy table.
func chooseStrategy(patterns []algebra.TriplePattern, shape Shape) Strategy {
	switch len(patterns) {
	case 0, 1:
		return StrategyDirectScan
	case 2:
		if shareVar(patternVars(patterns[0]), patternVars(patterns[1])) && !hasLiteralConstrainedSharedVar(patterns) {
			return StrategyHashJoin
		}
		return StrategyNestedLoop
	default:
		if shape == ShapeStar || shape == ShapeCyclic || len(patterns) >= 4 {
			return StrategyWCOJ
		}
		return StrategyNestedLoop
	}
}

// orderPatterns reorders patterns into a left-deep nested-loop/hash-join
// sequence: each subsequent pattern must share a variable with the
// already-placed prefix, and ties break toward lower estimated cardinality.
func orderPatterns(ctx context.Context, patterns []algebra.TriplePattern, est Estimator) ([]PatternPlan, error) {
	annotated := make([]PatternPlan, len(patterns))
	for i, p := range patterns {
		pe, err := est.Estimate(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("planner: estimate cardinality: %w", err)
		}
		annotated[i] = PatternPlan{Pattern: p, Index: pe.Index, Cardinality: pe.Cardinality}
	}
	if len(annotated) <= 1 {
		return annotated, nil
	}

	sort.Slice(annotated, func(i, j int) bool { return annotated[i].Cardinality < annotated[j].Cardinality })

	placed := []PatternPlan{annotated[0]}
	remaining := annotated[1:]
	placedVars := make(map[string]bool)
	for _, v := range patternVars(placed[0].Pattern) {
		placedVars[v] = true
	}
	for len(remaining) > 0 {
		bestIdx := -1
		for i, cand := range remaining {
			if shareVarSet(patternVars(cand.Pattern), placedVars) {
				if bestIdx == -1 || remaining[i].Cardinality < remaining[bestIdx].Cardinality {
					bestIdx = i
				}
			}
		}
		if bestIdx == -1 {
			bestIdx = 0 // disjoint component: fall back to cardinality order
		}
		chosen := remaining[bestIdx]
		placed = append(placed, chosen)
		for _, v := range patternVars(chosen.Pattern) {
			placedVars[v] = true
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return placed, nil
}

func shareVarSet(vars []string, set map[string]bool) bool {
	for _, v := range vars {
		if set[v] {
			return true
		}
	}
	return false
}

// Annotate walks node, replacing every *algebra.BGP with a planned
// *BGPPlan and recursing structurally through every other operator,
// producing a deterministic Plan given the same node and Estimator.
func Annotate(ctx context.Context, node algebra.Node, est Estimator) (*Plan, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case *algebra.BGP:
		bp, err := planBGP(ctx, n, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, BGP: bp}, nil
	case *algebra.Join:
		left, err := Annotate(ctx, n.Left, est)
		if err != nil {
			return nil, err
		}
		right, err := Annotate(ctx, n.Right, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Left: left, Right: right}, nil
	case *algebra.LeftJoin:
		left, err := Annotate(ctx, n.Left, est)
		if err != nil {
			return nil, err
		}
		right, err := Annotate(ctx, n.Right, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Left: left, Right: right}, nil
	case *algebra.Union:
		left, err := Annotate(ctx, n.Left, est)
		if err != nil {
			return nil, err
		}
		right, err := Annotate(ctx, n.Right, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Left: left, Right: right}, nil
	case *algebra.Minus:
		left, err := Annotate(ctx, n.Left, est)
		if err != nil {
			return nil, err
		}
		right, err := Annotate(ctx, n.Right, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Left: left, Right: right}, nil
	case *algebra.Filter:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Extend:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Project:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Distinct:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Reduced:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Slice:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.OrderBy:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Group:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Having:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Graph:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Service:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Select:
		child, err := Annotate(ctx, n.Project, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Ask:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Construct:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	case *algebra.Describe:
		child, err := Annotate(ctx, n.Child, est)
		if err != nil {
			return nil, err
		}
		return &Plan{Algebra: n, Child: child}, nil
	default:
		// Path, Values, and the Update operations carry no child algebra
		// worth annotating with a join strategy.
		return &Plan{Algebra: node}, nil
	}
}

func planBGP(ctx context.Context, bgp *algebra.BGP, est Estimator) (*BGPPlan, error) {
	shape := classify(bgp.Patterns)
	strategy := chooseStrategy(bgp.Patterns, shape)

	var patterns []PatternPlan
	var err error
	if strategy == StrategyWCOJ {
		patterns = make([]PatternPlan, len(bgp.Patterns))
		for i, p := range bgp.Patterns {
			pe, estErr := est.Estimate(ctx, p)
			if estErr != nil {
				return nil, fmt.Errorf("planner: estimate cardinality: %w", estErr)
			}
			patterns[i] = PatternPlan{Pattern: p, Index: pe.Index, Cardinality: pe.Cardinality}
		}
	} else {
		patterns, err = orderPatterns(ctx, bgp.Patterns, est)
		if err != nil {
			return nil, err
		}
	}

	return &BGPPlan{
		Patterns: patterns,
		Strategy: strategy,
		Shape:    shape,
		VarOrder: varorder.Canonical(bgp.Patterns),
	}, nil
}

// Explain renders plan as a human-readable, deterministic tree, mirroring
// trigo's plan-printing style in internal/sparql/optimizer.
func Explain(plan *Plan) string {
	var b []byte
	b = explainNode(b, plan, 0)
	return string(b)
}

func explainNode(b []byte, plan *Plan, depth int) []byte {
	if plan == nil {
		return b
	}
	b = append(b, indent(depth)...)
	switch {
	case plan.BGP != nil:
		b = append(b, fmt.Sprintf("BGP strategy=%s shape=%d patterns=%d\n", plan.BGP.Strategy, plan.BGP.Shape, len(plan.BGP.Patterns))...)
	default:
		b = append(b, fmt.Sprintf("%T\n", plan.Algebra)...)
	}
	b = explainNode(b, plan.Left, depth+1)
	b = explainNode(b, plan.Right, depth+1)
	b = explainNode(b, plan.Child, depth+1)
	return b
}

func indent(depth int) string {
	out := make([]byte, depth*2)
	for i := range out {
		out[i] = ' '
	}
	return string(out)
}
