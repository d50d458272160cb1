package executor

import (
	"context"
	"fmt"

	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/planner"
)

// newGraphIterator scopes Child's pattern matches to n.GraphTerm by setting
// ec.graph before recursing. When GraphTerm is a variable, the underlying
// scans leave it unbound going in and bindTerm fills it in from each
// matched quad's graph component per row, exactly like any other pattern
// variable — no separate graph-binding pass is needed, unlike trigo's
// graphExecutor/graphJoinIterator wrapper pair.
func (e *Executor) newGraphIterator(ctx context.Context, child *planner.Plan, ec execCtx, n *algebra.Graph) (Iterator, error) {
	return e.createIterator(ctx, child, execCtx{outer: ec.outer, graph: n.GraphTerm})
}

// newServiceIterator attempts to run Child against the store locally, since
// remote SPARQL endpoint dispatch is outside this executor's scope (see
// algebra.Service's doc comment). A SILENT service that can't be serviced
// this way still succeeds with zero solutions rather than failing the whole
// query.
func (e *Executor) newServiceIterator(ctx context.Context, child *planner.Plan, ec execCtx, n *algebra.Service) (Iterator, error) {
	iter, err := e.createIterator(ctx, child, ec)
	if err != nil {
		if n.Silent {
			return emptyIterator{}, nil
		}
		return nil, fmt.Errorf("executor: SERVICE %s: remote dispatch unsupported: %w", n.Endpoint, err)
	}
	return iter, nil
}
