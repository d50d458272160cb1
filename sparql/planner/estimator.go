package planner

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quadstore/quadstore/dict"
	"github.com/quadstore/quadstore/index"
	"github.com/quadstore/quadstore/quadstore"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
)

// StoreEstimator implements Estimator against a live quadstore.Store: a
// fully unbound pattern resolves against the store's reported backend stats
// when the backend provides them (cheap); every other pattern falls back to
// an actual prefix-scan count via the chosen index, since spec.md's backends
// expose no per-predicate histograms. Counts are cached by (index, bound
// ids) for the estimator's whole lifetime, so a repeated pattern reuses the
// first scan's count instead of re-scanning, generalizing trigo's lack of
// any cardinality estimation at all. The roaring bitmap only records the
// cache size after each new entry.
type StoreEstimator struct {
	store  *quadstore.Store
	cache  map[string]int64
	sketch *roaring.Bitmap
}

// NewStoreEstimator creates an Estimator backed by store.
func NewStoreEstimator(store *quadstore.Store) *StoreEstimator {
	return &StoreEstimator{store: store, cache: make(map[string]int64), sketch: roaring.New()}
}

func (e *StoreEstimator) Estimate(ctx context.Context, tp algebra.TriplePattern) (PatternEstimate, error) {
	pattern, bound := e.toPattern(tp)
	idx, _ := index.Select(bound)

	if cached, ok := e.cache[cacheKey(idx, bound)]; ok {
		return PatternEstimate{Index: idx, Cardinality: cached}, nil
	}

	var card int64
	if bound == (index.Bound{}) {
		if stats, ok, err := e.store.BackendStats(ctx); err == nil && ok {
			card = stats.KeyCount / 4 // four redundant indexes over the same quad set
		} else {
			n, err := e.store.Count(ctx, pattern)
			if err != nil {
				return PatternEstimate{}, err
			}
			card = n
		}
	} else {
		n, err := e.store.Count(ctx, pattern)
		if err != nil {
			return PatternEstimate{}, err
		}
		card = n
	}

	e.cache[cacheKey(idx, bound)] = card
	e.sketch.Add(uint32(len(e.cache)))
	return PatternEstimate{Index: idx, Cardinality: card}, nil
}

func (e *StoreEstimator) toPattern(tp algebra.TriplePattern) (quadstore.Pattern, index.Bound) {
	var pattern quadstore.Pattern
	if id, ok := e.resolve(tp.Subject); ok {
		pattern.S, pattern.HasS = id, true
	}
	if id, ok := e.resolve(tp.Predicate); ok {
		pattern.P, pattern.HasP = id, true
	}
	if id, ok := e.resolve(tp.Object); ok {
		pattern.O, pattern.HasO = id, true
	}
	if id, ok := e.resolve(tp.Graph); ok {
		pattern.C, pattern.HasC = id, true
	}
	bound := index.Bound{S: pattern.S, P: pattern.P, O: pattern.O, C: pattern.C,
		HasS: pattern.HasS, HasP: pattern.HasP, HasO: pattern.HasO, HasC: pattern.HasC}
	return pattern, bound
}

func (e *StoreEstimator) resolve(term rdf.Term) (dict.ID, bool) {
	if term == nil {
		return 0, false
	}
	if _, isVar := term.(*rdf.Variable); isVar {
		return 0, false
	}
	return e.store.InternedID(term)
}

func cacheKey(idx index.Index, b index.Bound) string {
	buf := make([]byte, 0, 1+4*8+4)
	buf = append(buf, byte(idx))
	for _, v := range []uint64{uint64(b.S), uint64(b.P), uint64(b.O), uint64(b.C)} {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
	}
	for _, has := range []bool{b.HasS, b.HasP, b.HasO, b.HasC} {
		if has {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return string(buf)
}
