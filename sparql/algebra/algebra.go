// Package algebra defines the SPARQL 1.1 operator tree (§4.6): the
// pre-optimization shape produced by an external SPARQL parser and consumed
// by the planner. It generalizes trigo's internal/sparql/optimizer plan
// node types, which conflate algebra and plan, into a clean separation: this
// package is algebra only, with no strategy or index annotations attached.
package algebra

import "github.com/quadstore/quadstore/rdf"

// Node is any operator in the algebra tree.
type Node interface {
	algebraNode()
}

// TriplePattern is a single quad pattern: each field holds either a bound
// rdf.Term or an *rdf.Variable.
type TriplePattern struct {
	Subject, Predicate, Object, Graph rdf.Term // Graph may be nil (default graph, unscoped)
}

// BGP is a conjunction of quad patterns — the unit the planner analyzes and
// annotates with a join strategy.
type BGP struct {
	Patterns []TriplePattern
}

func (*BGP) algebraNode() {}

// Join is SPARQL's inner join of Left and Right. Which join strategy runs it
// (nested-loop/hash/WCOJ) is a planner.Plan concern, not an algebra concern.
type Join struct{ Left, Right Node }

func (*Join) algebraNode() {}

// LeftJoin is SPARQL's OPTIONAL: Filter guards which right-hand extensions
// are admitted; may be nil for an unconditional OPTIONAL.
type LeftJoin struct {
	Left, Right Node
	Filter      Expr
}

func (*LeftJoin) algebraNode() {}

type Union struct{ Left, Right Node }

func (*Union) algebraNode() {}

type Minus struct{ Left, Right Node }

func (*Minus) algebraNode() {}

// Filter drops bindings where Expr does not evaluate to boolean true.
type Filter struct {
	Expr  Expr
	Child Node
}

func (*Filter) algebraNode() {}

// Extend computes Expr and binds Var (BIND); used for VALUES-less
// computed-binding introduction.
type Extend struct {
	Var   *rdf.Variable
	Expr  Expr
	Child Node
}

func (*Extend) algebraNode() {}

// Values is an inline solution sequence (VALUES clause).
type Values struct {
	Vars     []*rdf.Variable
	Bindings []map[string]rdf.Term // nil entry for a variable means UNDEF
}

func (*Values) algebraNode() {}

type Project struct {
	Vars  []*rdf.Variable
	Child Node
}

func (*Project) algebraNode() {}

type Distinct struct{ Child Node }

func (*Distinct) algebraNode() {}

// Reduced is, per spec.md's resolved open question, implemented as an
// identity passthrough — see DESIGN.md.
type Reduced struct{ Child Node }

func (*Reduced) algebraNode() {}

type Slice struct {
	Offset, Limit int64 // Limit < 0 means unbounded
	Child         Node
}

func (*Slice) algebraNode() {}

type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

type OrderCondition struct {
	Expr      Expr
	Direction SortDirection
}

type OrderBy struct {
	Conditions []OrderCondition
	Child      Node
}

func (*OrderBy) algebraNode() {}

// AggregateKind enumerates the SPARQL 1.1 set functions.
type AggregateKind int

const (
	AggCount AggregateKind = iota
	AggCountDistinct
	AggCountStar
	AggSum
	AggAvg
	AggMin
	AggMax
	AggGroupConcat
	AggSample
)

type Aggregate struct {
	Kind      AggregateKind
	Expr      Expr // nil for COUNT(*)
	Separator string
	As        *rdf.Variable
}

type Group struct {
	Keys       []Expr
	Aggregates []Aggregate
	Child      Node
}

func (*Group) algebraNode() {}

type Having struct {
	Expr  Expr
	Child *Group
}

func (*Having) algebraNode() {}

// PathKind enumerates SPARQL 1.1 property path operator shapes.
type PathKind int

const (
	PathPredicate PathKind = iota // a single predicate IRI
	PathInverse
	PathSequence
	PathAlternative
	PathZeroOrMore
	PathOneOrMore
	PathZeroOrOne
	PathNegatedSet
)

// PathExpr is a property path expression tree.
type PathExpr struct {
	Kind         PathKind
	Predicate    rdf.Term    // for PathPredicate
	Sub          *PathExpr   // for inverse/closure operators
	Left, Right  *PathExpr   // for sequence/alternative
	NegatedPreds []rdf.Term  // for PathNegatedSet
}

// Path matches Subject to Object via Expr, a property path.
type Path struct {
	Subject, Object rdf.Term
	Graph           rdf.Term
	Expr            *PathExpr
}

func (*Path) algebraNode() {}

// Service delegates Child's evaluation to a remote SPARQL endpoint; the
// delegation mechanism itself is out of scope (§4.10), this node only
// carries the scoping information an executor would need to dispatch it.
type Service struct {
	Endpoint rdf.Term
	Silent   bool
	Child    Node
}

func (*Service) algebraNode() {}

// Graph scopes Child's matches to GraphTerm (an rdf.Term or *rdf.Variable).
type Graph struct {
	GraphTerm rdf.Term
	Child     Node
}

func (*Graph) algebraNode() {}

// Root query shapes.

type Select struct {
	Project Node // typically *Project wrapping the rest of the tree
}

func (*Select) algebraNode() {}

type Ask struct{ Child Node }

func (*Ask) algebraNode() {}

type ConstructTemplate struct {
	Triples []TriplePattern
}

type Construct struct {
	Template ConstructTemplate
	Child    Node
}

func (*Construct) algebraNode() {}

type Describe struct {
	Terms []rdf.Term // resources to describe; may reference Child's bindings
	Child Node       // nil for a DESCRIBE with no WHERE clause
}

func (*Describe) algebraNode() {}

// Update operations (§4.6).

type QuadData struct {
	Quads []TriplePattern // may include a Graph (named-graph INSERT/DELETE DATA)
}

type InsertData struct{ Data QuadData }

func (*InsertData) algebraNode() {}

type DeleteData struct{ Data QuadData }

func (*DeleteData) algebraNode() {}

type DeleteWhere struct{ Pattern Node }

func (*DeleteWhere) algebraNode() {}

type InsertWhere struct {
	Insert  QuadData
	Pattern Node
}

func (*InsertWhere) algebraNode() {}

// Modify is SPARQL Update's general DELETE/INSERT WHERE form.
type Modify struct {
	Delete, Insert QuadData
	Using          []rdf.Term
	Pattern        Node
}

func (*Modify) algebraNode() {}

type GraphOpKind int

const (
	GraphAdd GraphOpKind = iota
	GraphCopy
	GraphMove
	GraphDrop
	GraphClear
)

// GraphOp is a graph-level Update operation (ADD/COPY/MOVE/DROP/CLEAR),
// optionally SILENT.
type GraphOp struct {
	Kind         GraphOpKind
	Source, Dest rdf.Term // Dest unused for Drop/Clear
	Silent       bool
}

func (*GraphOp) algebraNode() {}
