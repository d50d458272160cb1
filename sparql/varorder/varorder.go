// Package varorder computes the canonical variable sequence the
// LeapFrogTrieJoin joins on: frequency-desc across a BGP's patterns,
// lexicographic-asc to break ties, per spec.md §4.8. WCOJ correctness
// depends on every pattern's trie being built over the same prefix of this
// sequence, so the ordering lives in its own package rather than being
// recomputed ad hoc by the planner and the trie builder separately.
package varorder

import (
	"sort"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
)

func vars(tp algebra.TriplePattern) []string {
	var out []string
	for _, t := range []rdf.Term{tp.Subject, tp.Predicate, tp.Object, tp.Graph} {
		if t == nil {
			continue
		}
		if v, ok := t.(*rdf.Variable); ok {
			out = append(out, v.Name)
		}
	}
	return out
}

// Frequency counts, for each variable appearing in patterns, how many
// distinct patterns mention it.
func Frequency(patterns []algebra.TriplePattern) map[string]int {
	freq := make(map[string]int)
	for _, p := range patterns {
		seen := make(map[string]bool)
		for _, name := range vars(p) {
			if !seen[name] {
				freq[name]++
				seen[name] = true
			}
		}
	}
	return freq
}

// Canonical returns patterns' join variables ordered by descending
// frequency, breaking ties lexicographically ascending. The result is
// deterministic for a given pattern set regardless of input order.
func Canonical(patterns []algebra.TriplePattern) []string {
	freq := Frequency(patterns)
	names := make([]string, 0, len(freq))
	for name := range freq {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if freq[names[i]] != freq[names[j]] {
			return freq[names[i]] > freq[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Position maps each variable in order to its index, for projecting a
// pattern's bindings onto the canonical sequence when building a trie.
func Position(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	return pos
}
