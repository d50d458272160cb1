// Package storage defines the byte-level key-value contract every backend
// (InMemory, LSM, B+-tree) must satisfy, plus the optional capability
// interfaces (Flusher, Compactor, StatsProvider) a backend may support.
package storage

import "context"

// KV is a single key-value pair, as yielded by a RangeScan/PrefixScan
// iterator.
type KV struct {
	Key   []byte
	Value []byte
}

// Iterator walks a snapshot of key-value pairs in strictly ascending
// lexicographic key order. The snapshot is taken when the iterator is
// created; concurrent mutations are not visible through an open iterator.
type Iterator interface {
	// Next advances to the next pair, returning false at end-of-sequence or
	// on error (check Err after Next returns false).
	Next() bool
	// Item returns the current key-value pair. Valid only after a Next call
	// that returned true.
	Item() KV
	// Err returns the first error encountered during iteration, if any.
	Err() error
	// Close releases resources (snapshot handles, open cursors) held by the
	// iterator. Safe to call multiple times.
	Close() error
}

// Backend is the ordered byte-keyed, byte-valued map contract of §4.3.
// get/put/delete/contains are point operations; range_scan/prefix_scan
// stream a snapshot. batch_put applies atomically as a unit with respect to
// readers: a reader never observes a batch partially applied.
type Backend interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Put stores value at key. A single Put is atomic.
	Put(ctx context.Context, key, value []byte) error
	// Delete removes key. A single Delete is atomic. Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, key []byte) error
	// Contains reports whether key is present, without paying for a value
	// copy.
	Contains(ctx context.Context, key []byte) (bool, error)
	// RangeScan returns an iterator over keys k with start <= k < end. A nil
	// start begins at the first key; a nil end scans to the last key.
	RangeScan(ctx context.Context, start, end []byte) (Iterator, error)
	// PrefixScan returns an iterator over all keys beginning with prefix.
	PrefixScan(ctx context.Context, prefix []byte) (Iterator, error)
	// BatchPut applies every pair atomically as a single logical write.
	BatchPut(ctx context.Context, pairs []KV) error
	// Close releases the backend's resources.
	Close() error
}

// Flusher is implemented by persistent backends: Flush makes prior writes
// durable. Without a Flush call, a persistent backend may buffer writes in
// memory or in a not-yet-fsynced log.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Compactor is implemented by backends with background or on-demand
// compaction (LSM). Compact forces a merge of underlying storage files.
type Compactor interface {
	Compact(ctx context.Context) error
}

// Stats is a coarse snapshot of backend-reported statistics, used by the
// query planner for cardinality estimation.
type Stats struct {
	KeyCount     int64
	ApproxBytes  int64
	BackendLabel string
}

// StatsProvider is implemented by backends that can report usage stats
// cheaply (i.e. without a full scan).
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}
