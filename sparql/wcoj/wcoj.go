// Package wcoj implements LeapFrogJoin, the Worst-Case-Optimal multi-way
// join spec.md §4.9 names, over the tries sparql/trie builds per BGP
// pattern. Unlike trigo's optimizer, which only ever produces a left-deep
// nested-loop chain, LeapFrogJoin processes every relation's trie in
// lockstep, one global join variable at a time, guaranteeing the
// worst-case-optimal intersection bound for cyclic and star join graphs.
package wcoj

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/quadstore/quadstore/dict"
	"github.com/quadstore/quadstore/sparql/trie"
)

// Relation is one BGP pattern's matched tuples, ready to be built into a
// Trie: Vars is the subsequence (in global canonical order) of variables
// this pattern binds, and Rows holds one []dict.ID per matched tuple, in
// the same variable order as Vars.
type Relation struct {
	Vars []string
	Rows [][]dict.ID
}

// BuildTries constructs one trie per relation concurrently via
// errgroup.Group, joined by a barrier before the caller proceeds to
// LeapFrogJoin — §5.9's "builds all tries for a BGP before emitting
// results".
func BuildTries(ctx context.Context, relations []Relation) ([]*trie.Trie, error) {
	tries := make([]*trie.Trie, len(relations))
	g, _ := errgroup.WithContext(ctx)
	for i, rel := range relations {
		i, rel := i, rel
		g.Go(func() error {
			tries[i] = trie.Build(rel.Vars, rel.Rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("wcoj: build tries: %w", err)
	}
	return tries, nil
}

// LeapFrogJoin intersects tries across order, the global canonical
// variable sequence (from sparql/varorder), producing one []dict.ID row
// per order position for every matching binding. ctx is checked between
// top-level candidates so a long join can be cancelled.
func LeapFrogJoin(ctx context.Context, order []string, tries []*trie.Trie) ([][]dict.ID, error) {
	cursors := make([]*trie.Cursor, len(tries))
	varSets := make([]map[string]bool, len(tries))
	for i, t := range tries {
		cursors[i] = t.NewCursor()
		varSets[i] = toSet(t.Vars)
	}

	var results [][]dict.ID
	bindings := make([]dict.ID, len(order))

	var recurse func(level int) error
	recurse = func(level int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if level == len(order) {
			row := make([]dict.ID, len(order))
			copy(row, bindings)
			results = append(results, row)
			return nil
		}

		varName := order[level]
		var active []int
		for i := range tries {
			if varSets[i][varName] {
				active = append(active, i)
			}
		}
		if len(active) == 0 {
			return recurse(level + 1)
		}

		for _, i := range active {
			cursors[i].Open()
		}
		for {
			ok, err := leapIntersect(cursors, active)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			bindings[level] = cursors[active[0]].Key()
			if err := recurse(level + 1); err != nil {
				return err
			}
			cursors[active[0]].Next()
		}
		for _, i := range active {
			cursors[i].Up()
		}
		return nil
	}

	if err := recurse(0); err != nil {
		return nil, err
	}
	return results, nil
}

// leapIntersect advances active cursors, already positioned at the current
// level, until they all report the same Key, or reports false once any
// cursor is exhausted at this level.
func leapIntersect(cursors []*trie.Cursor, active []int) (bool, error) {
	if len(active) == 1 {
		return !cursors[active[0]].AtEnd(), nil
	}
	for {
		var maxKey dict.ID
		for i, idx := range active {
			if cursors[idx].AtEnd() {
				return false, nil
			}
			if i == 0 || cursors[idx].Key() > maxKey {
				maxKey = cursors[idx].Key()
			}
		}
		allEqual := true
		for _, idx := range active {
			if cursors[idx].Key() != maxKey {
				allEqual = false
				break
			}
		}
		if allEqual {
			return true, nil
		}
		for _, idx := range active {
			cursors[idx].Seek(maxKey)
			if cursors[idx].AtEnd() {
				return false, nil
			}
		}
	}
}

func toSet(vars []string) map[string]bool {
	set := make(map[string]bool, len(vars))
	for _, v := range vars {
		set[v] = true
	}
	return set
}
