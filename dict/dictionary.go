// Package dict implements the interned term dictionary: a process-local
// table mapping RDF terms to small, stable, monotonic identifiers.
package dict

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/quadstore/quadstore/internal/kverr"
	"github.com/quadstore/quadstore/rdf"
)

// ID is a dictionary-assigned identifier. DefaultGraphID is the reserved,
// pre-interned identifier for the default graph context.
type ID uint64

// DefaultGraphID is reserved at dictionary construction time, so that every
// quad's graph position always holds a valid identifier.
const DefaultGraphID ID = 0

const shardCount = 64

// shard holds one partition of the forward term->id map, each guarded by
// its own mutex so unrelated terms don't serialize each other's intern
// calls. The reverse id->term table is a single append-only slice behind
// its own RWMutex, since decoding needs no content-based sharding.
type shard struct {
	mu      sync.Mutex
	forward map[string]ID
}

// Dictionary interns RDF terms to stable identifiers. A Dictionary may be
// shared by multiple quadstore.Store instances (per spec.md's "multi-store
// sharing is unspecified" open question, resolved here as: explicit sharing
// via constructor parameter, never a global singleton) or used standalone.
type Dictionary struct {
	shards  [shardCount]*shard
	reverse struct {
		mu    sync.RWMutex
		terms []rdf.Term // index i holds the term for ID(i)
	}
	nextID atomic.Uint64
}

// New creates an empty Dictionary with the default graph pre-interned at
// DefaultGraphID.
func New() *Dictionary {
	d := &Dictionary{}
	for i := range d.shards {
		d.shards[i] = &shard{forward: make(map[string]ID)}
	}
	d.reverse.terms = make([]rdf.Term, 0, 1024)
	// Reserve id 0 for the default graph unconditionally.
	id, _ := d.intern(rdf.NewDefaultGraph())
	if id != DefaultGraphID {
		panic("dict: default graph did not receive reserved id 0")
	}
	return d
}

// termKey returns a canonical string uniquely identifying term under RDF
// term-equality, used as the forward map key. QuotedTriple recurses so that
// structurally equal quoted triples produce identical keys.
func termKey(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.IRI:
		return "I" + t.Value
	case *rdf.BlankNode:
		return "B" + t.Label
	case *rdf.Literal:
		dt := ""
		if t.Datatype != nil {
			dt = t.Datatype.Value
		}
		return "L" + t.Lexical + "\x00" + dt + "\x00" + t.Language + "\x00" + t.Direction
	case *rdf.QuotedTriple:
		return "Q" + termKey(t.Subject) + "\x00" + termKey(t.Predicate) + "\x00" + termKey(t.Object)
	case *rdf.DefaultGraph:
		return "G"
	default:
		return fmt.Sprintf("?%T:%s", term, term.String())
	}
}

func shardIndexOf(key string) uint64 {
	return xxh3.HashString(key) % shardCount
}

// Intern assigns (or returns the existing) identifier for term. Concurrent
// Intern calls are safe; repeated interning of an equal term always yields
// the same id.
func (d *Dictionary) Intern(term rdf.Term) (ID, error) {
	return d.intern(term)
}

func (d *Dictionary) intern(term rdf.Term) (ID, error) {
	key := termKey(term)
	sh := d.shards[shardIndexOf(key)]

	sh.mu.Lock()
	if id, ok := sh.forward[key]; ok {
		sh.mu.Unlock()
		return id, nil
	}

	next := d.nextID.Load()
	if next == ^uint64(0) {
		sh.mu.Unlock()
		return 0, kverr.ErrOutOfSpace
	}
	id := ID(d.nextID.Add(1) - 1)
	sh.forward[key] = id
	sh.mu.Unlock()

	d.reverse.mu.Lock()
	for ID(len(d.reverse.terms)) <= id {
		d.reverse.terms = append(d.reverse.terms, nil)
	}
	d.reverse.terms[id] = term
	d.reverse.mu.Unlock()

	return id, nil
}

// Lookup returns the term previously interned under id. It is infallible
// for any id previously returned by Intern on this instance.
func (d *Dictionary) Lookup(id ID) (rdf.Term, error) {
	d.reverse.mu.RLock()
	defer d.reverse.mu.RUnlock()
	if int(id) >= len(d.reverse.terms) || d.reverse.terms[id] == nil {
		return nil, fmt.Errorf("dict: lookup %d: %w", id, kverr.ErrNotFound)
	}
	return d.reverse.terms[id], nil
}

// Contains reports whether term has already been interned, returning its id
// if so.
func (d *Dictionary) Contains(term rdf.Term) (ID, bool) {
	key := termKey(term)
	sh := d.shards[shardIndexOf(key)]
	sh.mu.Lock()
	id, ok := sh.forward[key]
	sh.mu.Unlock()
	return id, ok
}

// Len returns the number of distinct terms interned so far.
func (d *Dictionary) Len() int {
	return int(d.nextID.Load())
}
