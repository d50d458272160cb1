// Package binding defines Binding, the partial function from SPARQL
// variables to RDF terms that flows through every algebra operator,
// generalizing trigo's pkg/store.Binding (Vars map[string]rdf.Term) into a
// package shared by the executor, builtin evaluator, and planner.
package binding

import "github.com/quadstore/quadstore/rdf"

// Binding is a partial map from variable name to bound term.
type Binding struct {
	vars map[string]rdf.Term
}

// New creates an empty Binding.
func New() *Binding {
	return &Binding{vars: make(map[string]rdf.Term)}
}

// Get returns the term bound to name, if any.
func (b *Binding) Get(name string) (rdf.Term, bool) {
	t, ok := b.vars[name]
	return t, ok
}

// Bind sets name's binding, returning the same Binding for chaining.
func (b *Binding) Bind(name string, term rdf.Term) *Binding {
	b.vars[name] = term
	return b
}

// Unbind removes name's binding, if present.
func (b *Binding) Unbind(name string) {
	delete(b.vars, name)
}

// Clone returns an independent deep copy (term values are immutable and
// shared, only the map is copied).
func (b *Binding) Clone() *Binding {
	out := make(map[string]rdf.Term, len(b.vars))
	for k, v := range b.vars {
		out[k] = v
	}
	return &Binding{vars: out}
}

// Names returns the bound variable names, in no particular order.
func (b *Binding) Names() []string {
	names := make([]string, 0, len(b.vars))
	for k := range b.vars {
		names = append(names, k)
	}
	return names
}

// Len reports how many variables are bound.
func (b *Binding) Len() int { return len(b.vars) }

// Compatible reports whether b and other agree on every variable both
// bind — the join-compatibility test used by Join/LeftJoin/Minus.
func (b *Binding) Compatible(other *Binding) bool {
	for k, v := range b.vars {
		if ov, ok := other.vars[k]; ok && !v.Equals(ov) {
			return false
		}
	}
	return true
}

// Merge returns a new Binding containing every variable from b and other.
// Callers must check Compatible first; Merge does not re-validate.
func (b *Binding) Merge(other *Binding) *Binding {
	out := b.Clone()
	for k, v := range other.vars {
		out.vars[k] = v
	}
	return out
}

// Equal reports whether b and other bind exactly the same variables to
// equal terms — used by Distinct.
func (b *Binding) Equal(other *Binding) bool {
	if len(b.vars) != len(other.vars) {
		return false
	}
	for k, v := range b.vars {
		ov, ok := other.vars[k]
		if !ok || !v.Equals(ov) {
			return false
		}
	}
	return true
}
