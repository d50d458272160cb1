package varorder

import (
	"reflect"
	"testing"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
)

func v(name string) *rdf.Variable { return rdf.NewVariable(name) }
func iri(s string) *rdf.IRI       { return rdf.NewIRI(s) }

func TestCanonical_FrequencyDescending(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("x"), Predicate: iri(":name"), Object: v("n")},
		{Subject: v("x"), Predicate: iri(":age"), Object: v("a")},
		{Subject: v("x"), Predicate: iri(":email"), Object: v("e")},
	}
	order := Canonical(patterns)
	if order[0] != "x" {
		t.Fatalf("expected hub variable x first, got %v", order)
	}
}

func TestCanonical_LexicographicTieBreak(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("z"), Predicate: iri(":p"), Object: v("a")},
	}
	order := Canonical(patterns)
	want := []string{"a", "z"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestCanonical_DeterministicRegardlessOfPatternOrder(t *testing.T) {
	p1 := []algebra.TriplePattern{
		{Subject: v("a"), Predicate: iri(":p"), Object: v("b")},
		{Subject: v("b"), Predicate: iri(":p"), Object: v("c")},
	}
	p2 := []algebra.TriplePattern{p1[1], p1[0]}
	if !reflect.DeepEqual(Canonical(p1), Canonical(p2)) {
		t.Errorf("expected canonical order to be independent of input pattern order")
	}
}

func TestPosition_MapsIndexes(t *testing.T) {
	order := []string{"x", "a", "b"}
	pos := Position(order)
	if pos["x"] != 0 || pos["a"] != 1 || pos["b"] != 2 {
		t.Errorf("unexpected position map: %v", pos)
	}
}

func TestFrequency_CountsDistinctPatternsNotOccurrences(t *testing.T) {
	patterns := []algebra.TriplePattern{
		{Subject: v("x"), Predicate: v("x"), Object: v("y")}, // x appears twice in one pattern
	}
	freq := Frequency(patterns)
	if freq["x"] != 1 {
		t.Errorf("expected x frequency 1 (one pattern), got %d", freq["x"])
	}
}
