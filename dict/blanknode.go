package dict

import (
	"fmt"
	"sync/atomic"

	"github.com/quadstore/quadstore/rdf"
)

// BlankNodeScope maps a single parse call's local blank-node labels to
// dictionary-interned terms with fresh, parse-scoped labels. Each call to
// NewBlankNodeScope starts a new scope: the same local label reused across
// two separate parse calls into the same Dictionary mints two distinct
// blank nodes, per spec.md's resolved open question ("assume per-parse
// scope with fresh ids").
type BlankNodeScope struct {
	dict    *Dictionary
	prefix  string
	counter int
	seen    map[string]rdf.Term
}

var scopeCounter atomic.Int64

// NewBlankNodeScope starts a fresh blank-node scope against d. The prefix
// disambiguates concurrently-active scopes from each other.
func NewBlankNodeScope(d *Dictionary, prefix string) *BlankNodeScope {
	n := scopeCounter.Add(1)
	return &BlankNodeScope{
		dict:   d,
		prefix: fmt.Sprintf("p%d:%s", n, prefix),
		seen:   make(map[string]rdf.Term),
	}
}

// Resolve returns the term for a parser-local blank-node label, minting a
// fresh dictionary-scoped blank node on first use within this scope.
func (s *BlankNodeScope) Resolve(localLabel string) rdf.Term {
	if t, ok := s.seen[localLabel]; ok {
		return t
	}
	s.counter++
	term := rdf.NewBlankNode(fmt.Sprintf("%s:%d", s.prefix, s.counter))
	s.seen[localLabel] = term
	// Pre-intern so the first insert referencing this label doesn't pay the
	// miss path; errors are only possible on id-space exhaustion, which the
	// subsequent insert will surface to the caller anyway.
	_, _ = s.dict.Intern(term)
	return term
}
