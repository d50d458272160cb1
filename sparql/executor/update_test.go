package executor

import (
	"context"
	"testing"

	"github.com/quadstore/quadstore/quadstore"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
)

func TestExecuteInsertData(t *testing.T) {
	store := newTestStore(t)
	exec := New(store)

	q := &algebra.InsertData{Data: algebra.QuadData{Quads: []algebra.TriplePattern{
		tp(rdf.NewIRI(":alice"), rdf.NewIRI(":knows"), rdf.NewIRI(":bob")),
	}}}

	res, err := exec.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.(*UpdateResult).Inserted != 1 {
		t.Fatalf("expected 1 inserted, got %d", res.(*UpdateResult).Inserted)
	}

	ask := &algebra.Ask{Child: &algebra.BGP{Patterns: []algebra.TriplePattern{
		tp(rdf.NewIRI(":alice"), rdf.NewIRI(":knows"), rdf.NewIRI(":bob")),
	}}}
	askRes, err := exec.Execute(context.Background(), ask)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !askRes.(*AskResult).Result {
		t.Error("expected inserted quad to be visible")
	}
}

func TestExecuteDeleteData(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":knows", ":bob")
	exec := New(store)

	q := &algebra.DeleteData{Data: algebra.QuadData{Quads: []algebra.TriplePattern{
		tp(rdf.NewIRI(":alice"), rdf.NewIRI(":knows"), rdf.NewIRI(":bob")),
	}}}

	res, err := exec.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.(*UpdateResult).Deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", res.(*UpdateResult).Deleted)
	}
}

func TestExecuteDeleteWhere(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":type", ":person")
	mustInsert(t, store, ":bob", ":type", ":person")
	exec := New(store)

	q := &algebra.DeleteWhere{Pattern: &algebra.BGP{Patterns: []algebra.TriplePattern{
		tp(rdf.NewVariable("x"), rdf.NewIRI(":type"), rdf.NewIRI(":person")),
	}}}

	res, err := exec.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.(*UpdateResult).Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", res.(*UpdateResult).Deleted)
	}

	cnt, err := store.Count(context.Background(), quadstore.Pattern{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 0 {
		t.Errorf("expected store to be empty, got %d quads", cnt)
	}
}

func TestExecuteModify(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":status", ":pending")
	exec := New(store)

	q := &algebra.Modify{
		Delete: algebra.QuadData{Quads: []algebra.TriplePattern{
			tp(rdf.NewVariable("x"), rdf.NewIRI(":status"), rdf.NewIRI(":pending")),
		}},
		Insert: algebra.QuadData{Quads: []algebra.TriplePattern{
			tp(rdf.NewVariable("x"), rdf.NewIRI(":status"), rdf.NewIRI(":active")),
		}},
		Pattern: &algebra.BGP{Patterns: []algebra.TriplePattern{
			tp(rdf.NewVariable("x"), rdf.NewIRI(":status"), rdf.NewIRI(":pending")),
		}},
	}

	res, err := exec.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	upd := res.(*UpdateResult)
	if upd.Deleted != 1 || upd.Inserted != 1 {
		t.Fatalf("expected 1 deleted and 1 inserted, got %+v", upd)
	}

	ask := &algebra.Ask{Child: &algebra.BGP{Patterns: []algebra.TriplePattern{
		tp(rdf.NewIRI(":alice"), rdf.NewIRI(":status"), rdf.NewIRI(":active")),
	}}}
	askRes, err := exec.Execute(context.Background(), ask)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !askRes.(*AskResult).Result {
		t.Error("expected :alice to now be :active")
	}
}

func TestExecuteGraphOp_ClearAndCopy(t *testing.T) {
	store := newTestStore(t)
	exec := New(store)

	insert := &algebra.InsertData{Data: algebra.QuadData{Quads: []algebra.TriplePattern{
		{Subject: rdf.NewIRI(":a"), Predicate: rdf.NewIRI(":p"), Object: rdf.NewIRI(":b"), Graph: rdf.NewIRI(":g1")},
	}}}
	if _, err := exec.Execute(context.Background(), insert); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	copyOp := &algebra.GraphOp{Kind: algebra.GraphCopy, Source: rdf.NewIRI(":g1"), Dest: rdf.NewIRI(":g2")}
	res, err := exec.Execute(context.Background(), copyOp)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if res.(*UpdateResult).Inserted != 1 {
		t.Fatalf("expected 1 inserted into :g2, got %d", res.(*UpdateResult).Inserted)
	}

	clearOp := &algebra.GraphOp{Kind: algebra.GraphClear, Source: rdf.NewIRI(":g1")}
	res, err = exec.Execute(context.Background(), clearOp)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if res.(*UpdateResult).Deleted != 1 {
		t.Fatalf("expected 1 deleted from :g1, got %d", res.(*UpdateResult).Deleted)
	}
}
