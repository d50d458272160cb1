package executor

import (
	"context"
	"testing"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
)

func TestExecuteDescribe_ExplicitTerm(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":knows", ":bob")
	mustInsert(t, store, ":alice", ":age", ":30")

	exec := New(store)
	query := &algebra.Describe{Terms: []rdf.Term{rdf.NewIRI(":alice")}}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	cr := res.(*ConstructResult)
	if len(cr.Triples) != 2 {
		t.Fatalf("expected 2 triples describing :alice, got %d", len(cr.Triples))
	}
}

func TestExecuteDescribe_FollowsBlankNodes(t *testing.T) {
	store := newTestStore(t)
	bn := rdf.NewBlankNode("addr1")
	_, err := store.InsertTriple(context.Background(), rdf.NewTriple(rdf.NewIRI(":alice"), rdf.NewIRI(":address"), bn))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err = store.InsertTriple(context.Background(), rdf.NewTriple(bn, rdf.NewIRI(":city"), rdf.NewIRI(":springfield")))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	exec := New(store)
	query := &algebra.Describe{Terms: []rdf.Term{rdf.NewIRI(":alice")}}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	cr := res.(*ConstructResult)
	if len(cr.Triples) != 2 {
		t.Fatalf("expected 2 triples (the address link and the blank node's own triple), got %d", len(cr.Triples))
	}
}

func TestExecuteDescribe_WithWhereClause(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":type", ":person")
	mustInsert(t, store, ":alice", ":age", ":30")
	mustInsert(t, store, ":bob", ":type", ":org")

	exec := New(store)
	query := &algebra.Describe{
		Terms: []rdf.Term{rdf.NewVariable("x")},
		Child: &algebra.BGP{Patterns: []algebra.TriplePattern{
			tp(rdf.NewVariable("x"), rdf.NewIRI(":type"), rdf.NewIRI(":person")),
		}},
	}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	cr := res.(*ConstructResult)
	if len(cr.Triples) != 2 {
		t.Fatalf("expected 2 triples describing :alice (matched by WHERE), got %d", len(cr.Triples))
	}
}
