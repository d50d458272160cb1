// Package quadstore implements the high-level quad store: insert, delete,
// contains, and pattern match over four redundant indexes, generalized from
// trigo's pkg/store.TripleStore (InsertQuad/Query/selectIndex) to the four
// SPOC/POCS/OCSP/CSPO orderings of spec.md §4.4/§4.5.
package quadstore

import (
	"context"
	"fmt"

	"github.com/quadstore/quadstore/dict"
	"github.com/quadstore/quadstore/index"
	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/storage"
)

// Store holds the set of quads, the four indexes over them, and the
// Dictionary that interns their terms. A Store is exclusively owned by its
// creator for writes; reads may be concurrent, per spec.md §3.
type Store struct {
	dict    *dict.Dictionary
	backend storage.Backend
}

// New creates a Store over backend, sharing d (or a fresh Dictionary if d is
// nil) for term interning.
func New(backend storage.Backend, d *dict.Dictionary) *Store {
	if d == nil {
		d = dict.New()
	}
	return &Store{dict: d, backend: backend}
}

// Dictionary returns the Store's shared term dictionary.
func (s *Store) Dictionary() *dict.Dictionary { return s.dict }

// Close releases the underlying backend.
func (s *Store) Close() error { return s.backend.Close() }

func indexKey(idx index.Index, s, p, o, c dict.ID) []byte {
	key := index.EncodeKey(idx, s, p, o, c)
	return append([]byte{byte(idx)}, key...)
}

// Insert adds quad q to all four indexes under a single logical batch
// write. Re-inserting an already-present quad is a no-op; Insert reports
// whether the quad was new.
func (s *Store) Insert(ctx context.Context, q *rdf.Quad) (bool, error) {
	sid, pid, oid, cid, err := s.internQuad(q)
	if err != nil {
		return false, err
	}

	already, err := s.containsIDs(ctx, sid, pid, oid, cid)
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	pairs := make([]storage.KV, 0, len(index.All))
	for _, idx := range index.All {
		pairs = append(pairs, storage.KV{Key: indexKey(idx, sid, pid, oid, cid)})
	}
	if err := s.backend.BatchPut(ctx, pairs); err != nil {
		return false, fmt.Errorf("quadstore: insert: %w", err)
	}
	return true, nil
}

// InsertTriple inserts t into the default graph.
func (s *Store) InsertTriple(ctx context.Context, t *rdf.Triple) (bool, error) {
	return s.Insert(ctx, rdf.NewQuad(t.Subject, t.Predicate, t.Object, nil))
}

// Delete removes quad q from all four indexes. Deleting an absent quad is a
// no-op.
func (s *Store) Delete(ctx context.Context, q *rdf.Quad) error {
	sid, ok1 := s.dict.Contains(q.Subject)
	pid, ok2 := s.dict.Contains(q.Predicate)
	oid, ok3 := s.dict.Contains(q.Object)
	cid, ok4 := s.dict.Contains(q.Graph)
	if !(ok1 && ok2 && ok3 && ok4) {
		return nil // never interned, so it was never stored
	}

	for _, idx := range index.All {
		if err := s.backend.Delete(ctx, indexKey(idx, sid, pid, oid, cid)); err != nil {
			return fmt.Errorf("quadstore: delete: %w", err)
		}
	}
	return nil
}

// Contains reports whether q is currently stored, using the SPOC index.
func (s *Store) Contains(ctx context.Context, q *rdf.Quad) (bool, error) {
	sid, ok1 := s.dict.Contains(q.Subject)
	pid, ok2 := s.dict.Contains(q.Predicate)
	oid, ok3 := s.dict.Contains(q.Object)
	cid, ok4 := s.dict.Contains(q.Graph)
	if !(ok1 && ok2 && ok3 && ok4) {
		return false, nil
	}
	return s.containsIDs(ctx, sid, pid, oid, cid)
}

func (s *Store) containsIDs(ctx context.Context, sid, pid, oid, cid dict.ID) (bool, error) {
	found, err := s.backend.Contains(ctx, indexKey(index.SPOC, sid, pid, oid, cid))
	if err != nil {
		return false, fmt.Errorf("quadstore: contains: %w", err)
	}
	return found, nil
}

func (s *Store) internQuad(q *rdf.Quad) (sid, pid, oid, cid dict.ID, err error) {
	if sid, err = s.dict.Intern(q.Subject); err != nil {
		return
	}
	if pid, err = s.dict.Intern(q.Predicate); err != nil {
		return
	}
	if oid, err = s.dict.Intern(q.Object); err != nil {
		return
	}
	if cid, err = s.dict.Intern(q.Graph); err != nil {
		return
	}
	return
}

// Pattern is a quad where each position is either a bound dict.ID or an
// unbound (variable) slot, per spec.md §4.2.
type Pattern struct {
	S, P, O, C             dict.ID
	HasS, HasP, HasO, HasC bool
}

func (p Pattern) bound() index.Bound {
	return index.Bound{S: p.S, P: p.P, O: p.O, C: p.C, HasS: p.HasS, HasP: p.HasP, HasO: p.HasO, HasC: p.HasC}
}

// QuadIDs is a quad expressed as raw dictionary identifiers, as produced by
// Match before the caller decides whether to decode through the Dictionary.
type QuadIDs struct {
	S, P, O, C dict.ID
}

// MatchIterator streams QuadIDs matching a Pattern in the chosen index's key
// order.
type MatchIterator struct {
	it  storage.Iterator
	idx index.Index
	err error
}

// Next advances to the next matching quad.
func (m *MatchIterator) Next() bool {
	return m.it.Next()
}

// QuadIDs returns the current match.
func (m *MatchIterator) QuadIDs() QuadIDs {
	kv := m.it.Item()
	s, p, o, c := index.DecodeKey(m.idx, kv.Key[1:])
	return QuadIDs{S: s, P: p, O: o, C: c}
}

// Err returns the first iteration error, if any.
func (m *MatchIterator) Err() error {
	if m.err != nil {
		return m.err
	}
	return m.it.Err()
}

// Close releases the iterator's backend resources.
func (m *MatchIterator) Close() error { return m.it.Close() }

// Match returns every stored quad consistent with pattern, in the order
// determined by the chosen index (§4.4's selection rule).
func (s *Store) Match(ctx context.Context, pattern Pattern) (*MatchIterator, error) {
	idx, prefix := index.Select(pattern.bound())
	fullPrefix := append([]byte{byte(idx)}, prefix...)
	it, err := s.backend.PrefixScan(ctx, fullPrefix)
	if err != nil {
		return nil, fmt.Errorf("quadstore: match: %w", err)
	}
	return &MatchIterator{it: it, idx: idx}, nil
}

// Count returns the number of quads matching pattern by iterating the
// chosen index's prefix scan to the end. Backend stats are not consulted;
// see BackendStats for those. Used by the query planner, per §4.5.
func (s *Store) Count(ctx context.Context, pattern Pattern) (int64, error) {
	it, err := s.Match(ctx, pattern)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var n int64
	for it.Next() {
		n++
	}
	return n, it.Err()
}

// BackendStats reports the underlying backend's usage statistics, if it
// implements storage.StatsProvider. Used by the query planner for
// cardinality estimation when a cheaper-than-scan estimate is available.
func (s *Store) BackendStats(ctx context.Context) (storage.Stats, bool, error) {
	sp, ok := s.backend.(storage.StatsProvider)
	if !ok {
		return storage.Stats{}, false, nil
	}
	stats, err := sp.Stats(ctx)
	if err != nil {
		return storage.Stats{}, false, fmt.Errorf("quadstore: backend stats: %w", err)
	}
	return stats, true, nil
}

// InternedID looks up term's dictionary id without interning it, so planning
// never grows the dictionary.
func (s *Store) InternedID(term rdf.Term) (dict.ID, bool) {
	return s.dict.Contains(term)
}

// DecodeQuad turns QuadIDs back into an rdf.Quad using the Store's
// Dictionary.
func (s *Store) DecodeQuad(ids QuadIDs) (*rdf.Quad, error) {
	subj, err := s.dict.Lookup(ids.S)
	if err != nil {
		return nil, fmt.Errorf("quadstore: decode subject: %w", err)
	}
	pred, err := s.dict.Lookup(ids.P)
	if err != nil {
		return nil, fmt.Errorf("quadstore: decode predicate: %w", err)
	}
	obj, err := s.dict.Lookup(ids.O)
	if err != nil {
		return nil, fmt.Errorf("quadstore: decode object: %w", err)
	}
	graph, err := s.dict.Lookup(ids.C)
	if err != nil {
		return nil, fmt.Errorf("quadstore: decode graph: %w", err)
	}
	return &rdf.Quad{Subject: subj, Predicate: pred, Object: obj, Graph: graph}, nil
}
