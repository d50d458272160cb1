// Package executor drives an annotated sparql/planner.Plan to completion
// using the Volcano iterator model, generalizing trigo's
// pkg/sparql/executor.Executor (Execute/createIterator/QueryResult shapes)
// from a left-deep nested-loop-only evaluator to one dispatching on the
// planner's chosen strategy per BGP (direct scan, nested loop, hash join, or
// Worst-Case-Optimal Join), and extending trigo's Select/Ask/Construct/
// Describe coverage with Update operation execution, Group/Having
// aggregation, property path evaluation, and GRAPH/SERVICE scoping.
package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/quadstore/quadstore/quadstore"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
	"github.com/quadstore/quadstore/sparql/planner"
)

// Executor evaluates algebra trees against a quadstore.Store.
type Executor struct {
	store    *quadstore.Store
	est      planner.Estimator
	lastPlan *planner.Plan
	blankSeq uint64
	queryNow time.Time
}

// New creates an Executor over store, using a StoreEstimator for planning.
func New(store *quadstore.Store) *Executor {
	return &Executor{store: store, est: planner.NewStoreEstimator(store)}
}

// LastPlan returns the annotated plan built by the most recent Execute call,
// or nil if Execute has not yet run.
func (e *Executor) LastPlan() *planner.Plan { return e.lastPlan }

// Explain renders the most recent plan as a human-readable tree.
func (e *Executor) Explain() string {
	if e.lastPlan == nil {
		return ""
	}
	return planner.Explain(e.lastPlan)
}

// Result is the outcome of executing a query-form root node.
type Result interface{ resultType() }

// SelectResult is a SELECT query's projected, ordered solution sequence.
type SelectResult struct {
	Vars []string
	Rows []*binding.Binding
}

func (*SelectResult) resultType() {}

// AskResult is an ASK query's boolean outcome.
type AskResult struct{ Result bool }

func (*AskResult) resultType() {}

// ConstructResult is a deduplicated triple set, produced by CONSTRUCT or
// DESCRIBE.
type ConstructResult struct{ Triples []*rdf.Triple }

func (*ConstructResult) resultType() {}

// UpdateResult reports how many quads an Update operation added and removed.
type UpdateResult struct{ Inserted, Deleted int64 }

func (*UpdateResult) resultType() {}

// execCtx threads the two pieces of state that accumulate as execution
// descends the algebra tree: the outer binding supplied by an enclosing
// join, and the graph term a GRAPH clause has put in scope (nil means the
// patterns below run unconstrained, i.e. against whatever graph their own
// Graph field names, defaulting to the default graph).
type execCtx struct {
	outer *binding.Binding
	graph rdf.Term
}

func rootCtx() execCtx { return execCtx{outer: binding.New()} }

// Execute plans and evaluates query, a query-form or update-form algebra
// root.
func (e *Executor) Execute(ctx context.Context, query algebra.Node) (Result, error) {
	e.queryNow = time.Now()
	switch q := query.(type) {
	case *algebra.Select:
		return e.executeSelect(ctx, q)
	case *algebra.Ask:
		return e.executeAsk(ctx, q)
	case *algebra.Construct:
		return e.executeConstruct(ctx, q)
	case *algebra.Describe:
		return e.executeDescribe(ctx, q)
	case *algebra.InsertData:
		return e.executeInsertData(ctx, q)
	case *algebra.DeleteData:
		return e.executeDeleteData(ctx, q)
	case *algebra.DeleteWhere:
		return e.executeDeleteWhere(ctx, q)
	case *algebra.InsertWhere:
		return e.executeInsertWhere(ctx, q)
	case *algebra.Modify:
		return e.executeModify(ctx, q)
	case *algebra.GraphOp:
		return e.executeGraphOp(ctx, q)
	default:
		return nil, fmt.Errorf("executor: unsupported top-level operation %T", query)
	}
}

// freshBlankNode mints a blank node unique within this Executor's lifetime,
// for BNODE() calls with no argument.
func (e *Executor) freshBlankNode() rdf.Term {
	n := atomic.AddUint64(&e.blankSeq, 1)
	return rdf.NewBlankNode(fmt.Sprintf("exec%d", n))
}

func (e *Executor) plan(ctx context.Context, node algebra.Node) (*planner.Plan, error) {
	p, err := planner.Annotate(ctx, node, e.est)
	if err != nil {
		return nil, fmt.Errorf("executor: plan: %w", err)
	}
	e.lastPlan = p
	return p, nil
}

func (e *Executor) executeSelect(ctx context.Context, q *algebra.Select) (*SelectResult, error) {
	p, err := e.plan(ctx, q.Project)
	if err != nil {
		return nil, err
	}
	iter, err := e.createIterator(ctx, p, rootCtx())
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var rows []*binding.Binding
	for {
		ok, err := iter.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, iter.Binding().Clone())
	}

	vars := projectedVars(q.Project)
	return &SelectResult{Vars: vars, Rows: rows}, nil
}

// projectedVars walks down through the wrapping combinators a Select's root
// commonly carries (Slice/OrderBy/Distinct/Reduced) to find the *Project
// node naming the output columns, if one is present; a plan with no
// Project (SELECT * passed straight through) reports no fixed column list
// and returns nil.
func projectedVars(node algebra.Node) []string {
	for node != nil {
		switch n := node.(type) {
		case *algebra.Project:
			vars := make([]string, len(n.Vars))
			for i, v := range n.Vars {
				vars[i] = v.Name
			}
			return vars
		case *algebra.Slice:
			node = n.Child
		case *algebra.OrderBy:
			node = n.Child
		case *algebra.Distinct:
			node = n.Child
		case *algebra.Reduced:
			node = n.Child
		default:
			return nil
		}
	}
	return nil
}

func (e *Executor) executeAsk(ctx context.Context, q *algebra.Ask) (*AskResult, error) {
	p, err := e.plan(ctx, q.Child)
	if err != nil {
		return nil, err
	}
	iter, err := e.createIterator(ctx, p, rootCtx())
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	ok, err := iter.Next(ctx)
	if err != nil {
		return nil, err
	}
	return &AskResult{Result: ok}, nil
}
