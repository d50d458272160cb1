// Package trie implements the per-relation trie structure the
// Worst-Case-Optimal Join (sparql/wcoj) intersects, per spec.md §4.9: one
// trie per BGP pattern, built by sorting that pattern's matched tuples
// (projected onto the subsequence of the global canonical variable order
// the pattern actually binds) and grouping them level by level. The cursor
// contract (Open/Up/Key/Next/Seek/AtEnd) is the minimal interface
// LeapFrogJoin needs to walk several tries in lockstep; it has no analogue
// in trigo, whose optimizer only ever nested-loops, so the shape here is
// grounded directly on the Ngo et al. LeapFrogTrieJoin formulation spec.md
// §4.9 names.
package trie

import (
	"sort"

	"github.com/quadstore/quadstore/dict"
)

// node is one level of a Trie: a sorted set of keys, each with an optional
// child node one level deeper.
type node struct {
	keys     []dict.ID
	children map[dict.ID]*node
}

func newNode() *node { return &node{children: make(map[dict.ID]*node)} }

// Trie indexes a relation's matched tuples by Vars, a subsequence (in
// order) of the global canonical variable sequence the owning pattern
// actually binds.
type Trie struct {
	Vars []string
	root *node
}

// Build sorts rows lexicographically, deduplicates identical rows, and
// constructs the level-by-level trie. Every row must have length
// len(vars).
func Build(vars []string, rows [][]dict.ID) *Trie {
	sorted := make([][]dict.ID, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return lessRow(sorted[i], sorted[j]) })

	deduped := sorted[:0:0]
	for i, row := range sorted {
		if i == 0 || !equalRow(row, sorted[i-1]) {
			deduped = append(deduped, row)
		}
	}

	return &Trie{Vars: vars, root: buildLevel(deduped, 0, len(vars))}
}

func lessRow(a, b []dict.ID) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func equalRow(a, b []dict.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func buildLevel(rows [][]dict.ID, depth, numVars int) *node {
	n := newNode()
	if depth >= numVars || len(rows) == 0 {
		return n
	}
	i := 0
	for i < len(rows) {
		key := rows[i][depth]
		j := i
		for j < len(rows) && rows[j][depth] == key {
			j++
		}
		n.keys = append(n.keys, key)
		n.children[key] = buildLevel(rows[i:j], depth+1, numVars)
		i = j
	}
	return n
}

// frame is one level of cursor descent: the node being iterated and the
// current position within its sorted keys.
type frame struct {
	node *node
	pos  int
}

// Cursor walks a Trie one level at a time, per the Open/Up/Key/Next/Seek/
// AtEnd contract LeapFrogJoin drives across every relation in lockstep.
type Cursor struct {
	trie   *Trie
	frames []frame
}

// NewCursor returns a Cursor positioned above the trie's root, ready for
// its first Open.
func (t *Trie) NewCursor() *Cursor { return &Cursor{trie: t} }

// Open descends one level: into the root on the first call, or into the
// child keyed by the current level's Key on every subsequent call.
func (c *Cursor) Open() {
	var n *node
	if len(c.frames) == 0 {
		n = c.trie.root
	} else {
		top := c.frames[len(c.frames)-1]
		n = top.node.children[top.node.keys[top.pos]]
	}
	c.frames = append(c.frames, frame{node: n})
}

// Up ascends back to the parent level.
func (c *Cursor) Up() {
	c.frames = c.frames[:len(c.frames)-1]
}

// AtEnd reports whether the current level has been exhausted.
func (c *Cursor) AtEnd() bool {
	top := c.frames[len(c.frames)-1]
	return top.pos >= len(top.node.keys)
}

// Key returns the current level's key. Valid only when !AtEnd().
func (c *Cursor) Key() dict.ID {
	top := c.frames[len(c.frames)-1]
	return top.node.keys[top.pos]
}

// Next advances the current level by one key.
func (c *Cursor) Next() {
	c.frames[len(c.frames)-1].pos++
}

// Seek advances the current level forward (never backward) to the first
// key >= target.
func (c *Cursor) Seek(target dict.ID) {
	top := &c.frames[len(c.frames)-1]
	keys := top.node.keys
	lo := top.pos
	idx := sort.Search(len(keys)-lo, func(i int) bool { return keys[lo+i] >= target })
	top.pos = lo + idx
}
