package executor

import (
	"context"
	"testing"

	"github.com/quadstore/quadstore/quadstore"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/storage/memory"
)

func newTestStore(t *testing.T) *quadstore.Store {
	t.Helper()
	return quadstore.New(memory.New(), nil)
}

func mustInsert(t *testing.T, store *quadstore.Store, s, p, o string) {
	t.Helper()
	_, err := store.InsertTriple(context.Background(), rdf.NewTriple(rdf.NewIRI(s), rdf.NewIRI(p), rdf.NewIRI(o)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func tp(s, p, o rdf.Term) algebra.TriplePattern {
	return algebra.TriplePattern{Subject: s, Predicate: p, Object: o}
}

func TestExecuteSelect_SinglePattern(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":knows", ":bob")
	mustInsert(t, store, ":alice", ":knows", ":carol")

	exec := New(store)
	bgp := &algebra.BGP{Patterns: []algebra.TriplePattern{
		tp(rdf.NewIRI(":alice"), rdf.NewIRI(":knows"), rdf.NewVariable("x")),
	}}
	query := &algebra.Select{Project: &algebra.Project{
		Vars:  []*rdf.Variable{rdf.NewVariable("x")},
		Child: bgp,
	}}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	sel := res.(*SelectResult)
	if len(sel.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(sel.Rows))
	}
}

func TestExecuteSelect_JoinAcrossTwoPatterns(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":knows", ":bob")
	mustInsert(t, store, ":bob", ":knows", ":carol")

	exec := New(store)
	bgp := &algebra.BGP{Patterns: []algebra.TriplePattern{
		tp(rdf.NewIRI(":alice"), rdf.NewIRI(":knows"), rdf.NewVariable("mid")),
		tp(rdf.NewVariable("mid"), rdf.NewIRI(":knows"), rdf.NewVariable("end")),
	}}
	query := &algebra.Select{Project: &algebra.Project{
		Vars:  []*rdf.Variable{rdf.NewVariable("mid"), rdf.NewVariable("end")},
		Child: bgp,
	}}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	sel := res.(*SelectResult)
	if len(sel.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(sel.Rows))
	}
	end, ok := sel.Rows[0].Get("end")
	if !ok || !end.Equals(rdf.NewIRI(":carol")) {
		t.Errorf("expected end bound to :carol, got %v", end)
	}
}

func TestExecuteAsk(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":knows", ":bob")

	exec := New(store)
	query := &algebra.Ask{Child: &algebra.BGP{Patterns: []algebra.TriplePattern{
		tp(rdf.NewIRI(":alice"), rdf.NewIRI(":knows"), rdf.NewIRI(":bob")),
	}}}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.(*AskResult).Result {
		t.Error("expected ASK to be true")
	}
}

func TestExecuteAsk_False(t *testing.T) {
	store := newTestStore(t)
	exec := New(store)
	query := &algebra.Ask{Child: &algebra.BGP{Patterns: []algebra.TriplePattern{
		tp(rdf.NewIRI(":alice"), rdf.NewIRI(":knows"), rdf.NewIRI(":bob")),
	}}}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.(*AskResult).Result {
		t.Error("expected ASK to be false")
	}
}

func TestExecuteConstruct(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":knows", ":bob")

	exec := New(store)
	query := &algebra.Construct{
		Template: algebra.ConstructTemplate{Triples: []algebra.TriplePattern{
			tp(rdf.NewVariable("x"), rdf.NewIRI(":relatesTo"), rdf.NewVariable("y")),
		}},
		Child: &algebra.BGP{Patterns: []algebra.TriplePattern{
			tp(rdf.NewVariable("x"), rdf.NewIRI(":knows"), rdf.NewVariable("y")),
		}},
	}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	cr := res.(*ConstructResult)
	if len(cr.Triples) != 1 {
		t.Fatalf("expected 1 triple, got %d", len(cr.Triples))
	}
	if cr.Triples[0].Predicate.String() != rdf.NewIRI(":relatesTo").String() {
		t.Errorf("unexpected predicate %v", cr.Triples[0].Predicate)
	}
}

func TestExecuteSelect_RepeatedVariableSelfConsistency(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":knows", ":alice")
	mustInsert(t, store, ":alice", ":knows", ":bob")

	exec := New(store)
	bgp := &algebra.BGP{Patterns: []algebra.TriplePattern{
		tp(rdf.NewVariable("x"), rdf.NewIRI(":knows"), rdf.NewVariable("x")),
	}}
	query := &algebra.Select{Project: &algebra.Project{
		Vars:  []*rdf.Variable{rdf.NewVariable("x")},
		Child: bgp,
	}}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	sel := res.(*SelectResult)
	if len(sel.Rows) != 1 {
		t.Fatalf("expected 1 self-consistent row, got %d", len(sel.Rows))
	}
}
