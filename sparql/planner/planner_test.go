package planner

import (
	"context"
	"testing"

	"github.com/quadstore/quadstore/index"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
)

type fakeEstimator struct {
	cardinality map[int]int64 // pattern index -> cardinality
}

func (f *fakeEstimator) Estimate(_ context.Context, tp algebra.TriplePattern) (PatternEstimate, error) {
	// Cheap deterministic stand-in: cardinality keyed by bound-position count.
	n := 0
	for _, t := range []rdf.Term{tp.Subject, tp.Predicate, tp.Object} {
		if _, isVar := t.(*rdf.Variable); !isVar {
			n++
		}
	}
	return PatternEstimate{Index: index.SPOC, Cardinality: int64(10 - n)}, nil
}

func v(name string) *rdf.Variable { return rdf.NewVariable(name) }
func iri(s string) *rdf.IRI       { return rdf.NewIRI(s) }

func TestClassify_Chain(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":knows"), Object: v("b")},
		{Subject: v("b"), Predicate: iri(":knows"), Object: v("c")},
	}
	if got := classify(patterns); got != ShapeChain {
		t.Errorf("expected ShapeChain, got %v", got)
	}
}

func TestClassify_Star(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("x"), Predicate: iri(":name"), Object: v("n")},
		{Subject: v("x"), Predicate: iri(":age"), Object: v("a")},
		{Subject: v("x"), Predicate: iri(":email"), Object: v("e")},
	}
	if got := classify(patterns); got != ShapeStar {
		t.Errorf("expected ShapeStar, got %v", got)
	}
}

// TestClassify_StarPartialHub covers §4.7's "≥50% of patterns share one
// variable" rule: ?s is the hub for 2 of 3 patterns (two thirds, not all),
// which must still classify as a star rather than falling through to chain.
func TestClassify_StarPartialHub(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("s"), Predicate: iri(":p"), Object: v("a")},
		{Subject: v("s"), Predicate: iri(":q"), Object: v("b")},
		{Subject: v("b"), Predicate: iri(":r"), Object: v("c")},
	}
	if got := classify(patterns); got != ShapeStar {
		t.Errorf("expected ShapeStar for a 2-of-3 (>=50%%) hub, got %v", got)
	}
}

// TestClassify_Cyclic uses a five-pattern ring: every variable appears in
// only 2 of 5 patterns, below the star threshold. A three-pattern triangle
// would not do, since each of its variables is in 2 of 3 patterns and so
// already classifies as a star.
func TestClassify_Cyclic(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":p"), Object: v("b")},
		{Subject: v("b"), Predicate: iri(":p"), Object: v("c")},
		{Subject: v("c"), Predicate: iri(":p"), Object: v("d")},
		{Subject: v("d"), Predicate: iri(":p"), Object: v("e")},
		{Subject: v("e"), Predicate: iri(":p"), Object: v("a")},
	}
	if got := classify(patterns); got != ShapeCyclic {
		t.Errorf("expected ShapeCyclic, got %v", got)
	}
}

func TestChooseStrategy_SinglePattern(t *testing.T) {
	patterns := []algebra.TriplePattern{{Subject: v("a"), Predicate: iri(":p"), Object: v("b")}}
	if got := chooseStrategy(patterns, classify(patterns)); got != StrategyDirectScan {
		t.Errorf("expected StrategyDirectScan, got %v", got)
	}
}

func TestChooseStrategy_TwoPatternSharedVarIsHashJoin(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":knows"), Object: v("b")},
		{Subject: v("b"), Predicate: iri(":knows"), Object: v("c")},
	}
	if got := chooseStrategy(patterns, classify(patterns)); got != StrategyHashJoin {
		t.Errorf("expected StrategyHashJoin, got %v", got)
	}
}

func TestChooseStrategy_TwoPatternNoSharedVarIsNestedLoop(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":knows"), Object: v("b")},
		{Subject: v("x"), Predicate: iri(":likes"), Object: v("y")},
	}
	if got := chooseStrategy(patterns, classify(patterns)); got != StrategyNestedLoop {
		t.Errorf("expected StrategyNestedLoop, got %v", got)
	}
}

func TestChooseStrategy_ThreePatternStarIsWCOJ(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("x"), Predicate: iri(":name"), Object: v("n")},
		{Subject: v("x"), Predicate: iri(":age"), Object: v("a")},
		{Subject: v("x"), Predicate: iri(":email"), Object: v("e")},
	}
	if got := chooseStrategy(patterns, classify(patterns)); got != StrategyWCOJ {
		t.Errorf("expected StrategyWCOJ, got %v", got)
	}
}

func TestChooseStrategy_FourOrMorePatternsIsWCOJRegardlessOfShape(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":p"), Object: v("b")},
		{Subject: v("b"), Predicate: iri(":p"), Object: v("c")},
		{Subject: v("c"), Predicate: iri(":p"), Object: v("d")},
		{Subject: v("d"), Predicate: iri(":p"), Object: v("e")},
	}
	if got := chooseStrategy(patterns, classify(patterns)); got != StrategyWCOJ {
		t.Errorf("expected StrategyWCOJ, got %v", got)
	}
}

func TestAnnotate_BGPProducesPlan(t *testing.T) {
	bgp := &algebra.BGP{Patterns: []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":p"), Object: v("b")},
	}}
	plan, err := Annotate(context.Background(), bgp, &fakeEstimator{})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if plan.BGP == nil {
		t.Fatal("expected BGP plan to be populated")
	}
	if plan.BGP.Strategy != StrategyDirectScan {
		t.Errorf("expected StrategyDirectScan, got %v", plan.BGP.Strategy)
	}
}

func TestAnnotate_RecursesThroughFilterAndProject(t *testing.T) {
	bgp := &algebra.BGP{Patterns: []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":p"), Object: v("b")},
	}}
	tree := &algebra.Project{
		Vars:  []*rdf.Variable{v("a")},
		Child: &algebra.Filter{Expr: &algebra.LitExpr{Value: rdf.NewLiteral("true")}, Child: bgp},
	}
	plan, err := Annotate(context.Background(), tree, &fakeEstimator{})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if plan.Child == nil || plan.Child.Child == nil || plan.Child.Child.BGP == nil {
		t.Fatal("expected annotation to recurse down to the BGP leaf")
	}
}

func TestExplain_Deterministic(t *testing.T) {
	bgp := &algebra.BGP{Patterns: []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":p"), Object: v("b")},
	}}
	plan, _ := Annotate(context.Background(), bgp, &fakeEstimator{})
	out1 := Explain(plan)
	out2 := Explain(plan)
	if out1 != out2 {
		t.Errorf("expected Explain to be deterministic, got %q vs %q", out1, out2)
	}
	if out1 == "" {
		t.Error("expected non-empty explain output")
	}
}

func TestOrderPatterns_JoinsOnSharedVariable(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":knows"), Object: v("b")},
		{Subject: v("b"), Predicate: iri(":knows"), Object: v("c")},
		{Subject: v("z"), Predicate: iri(":unrelated"), Object: v("w")},
	}
	plans, err := orderPatterns(context.Background(), patterns, &fakeEstimator{})
	if err != nil {
		t.Fatalf("orderPatterns: %v", err)
	}
	if len(plans) != len(patterns) {
		t.Fatalf("expected %d patterns, got %d", len(patterns), len(plans))
	}
}
