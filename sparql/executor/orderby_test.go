package executor

import (
	"context"
	"testing"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
)

func TestExecuteSelect_OrderByDescending(t *testing.T) {
	store := newTestStore(t)
	mustInsert(t, store, ":alice", ":age", ":30")
	mustInsert(t, store, ":bob", ":age", ":15")
	mustInsert(t, store, ":carol", ":age", ":45")

	exec := New(store)
	bgp := &algebra.BGP{Patterns: []algebra.TriplePattern{
		tp(rdf.NewVariable("x"), rdf.NewIRI(":age"), rdf.NewVariable("age")),
	}}
	order := &algebra.OrderBy{
		Conditions: []algebra.OrderCondition{
			{Expr: &algebra.VarExpr{Variable: rdf.NewVariable("age")}, Direction: algebra.Descending},
		},
		Child: bgp,
	}
	query := &algebra.Select{Project: &algebra.Project{
		Vars:  []*rdf.Variable{rdf.NewVariable("x"), rdf.NewVariable("age")},
		Child: order,
	}}

	res, err := exec.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	sel := res.(*SelectResult)
	if len(sel.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(sel.Rows))
	}
	first, _ := sel.Rows[0].Get("x")
	if !first.Equals(rdf.NewIRI(":carol")) {
		t.Errorf("expected :carol (age :45) first in descending order, got %v", first)
	}
	last, _ := sel.Rows[2].Get("x")
	if !last.Equals(rdf.NewIRI(":bob")) {
		t.Errorf("expected :bob (age :15) last in descending order, got %v", last)
	}
}
