// Package memory implements storage.Backend as a concurrent in-memory map
// with a side-channel ordered index (google/btree) for range and prefix
// scans, per spec.md §4.3's reference backend description. Flush and
// Compact are no-ops.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/quadstore/quadstore/internal/kverr"
	"github.com/quadstore/quadstore/storage"
)

// Backend is the InMemory reference storage.Backend implementation.
type Backend struct {
	mu     sync.RWMutex
	values map[string][]byte
	order  *btree.BTreeG[[]byte]
}

func less(a, b []byte) bool { return bytes.Compare(a, b) < 0 }

// New creates an empty InMemory backend.
func New() *Backend {
	return &Backend{
		values: make(map[string][]byte),
		order:  btree.NewG(32, less),
	}
}

func (b *Backend) Get(_ context.Context, key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[string(key)]
	if !ok {
		return nil, kverr.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (b *Backend) Put(_ context.Context, key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putLocked(key, value)
	return nil
}

func (b *Backend) putLocked(key, value []byte) {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	if _, exists := b.values[string(k)]; !exists {
		b.order.ReplaceOrInsert(k)
	}
	b.values[string(k)] = v
}

func (b *Backend) Delete(_ context.Context, key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.values[string(key)]; ok {
		delete(b.values, string(key))
		b.order.Delete(key)
	}
	return nil
}

func (b *Backend) Contains(_ context.Context, key []byte) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.values[string(key)]
	return ok, nil
}

func (b *Backend) RangeScan(_ context.Context, start, end []byte) (storage.Iterator, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var snap []storage.KV
	visit := func(k []byte) bool {
		if end != nil && bytes.Compare(k, end) >= 0 {
			return false
		}
		v := b.values[string(k)]
		snap = append(snap, storage.KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		return true
	}
	if start != nil {
		b.order.AscendGreaterOrEqual(start, visit)
	} else {
		b.order.Ascend(visit)
	}
	return &sliceIterator{items: snap, idx: -1}, nil
}

func (b *Backend) PrefixScan(_ context.Context, prefix []byte) (storage.Iterator, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var snap []storage.KV
	b.order.AscendGreaterOrEqual(prefix, func(k []byte) bool {
		if !bytes.HasPrefix(k, prefix) {
			return false
		}
		v := b.values[string(k)]
		snap = append(snap, storage.KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		return true
	})
	return &sliceIterator{items: snap, idx: -1}, nil
}

func (b *Backend) BatchPut(_ context.Context, pairs []storage.KV) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, kv := range pairs {
		b.putLocked(kv.Key, kv.Value)
	}
	return nil
}

func (b *Backend) Close() error { return nil }

// Flush is a no-op: the InMemory backend has no buffering to force out.
func (b *Backend) Flush(_ context.Context) error { return nil }

// Compact is a no-op: there is no on-disk structure to merge.
func (b *Backend) Compact(_ context.Context) error { return nil }

func (b *Backend) Stats(_ context.Context) (storage.Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var bytesUsed int64
	for k, v := range b.values {
		bytesUsed += int64(len(k) + len(v))
	}
	return storage.Stats{KeyCount: int64(len(b.values)), ApproxBytes: bytesUsed, BackendLabel: "memory"}, nil
}

type sliceIterator struct {
	items []storage.KV
	idx   int
}

func (it *sliceIterator) Next() bool {
	it.idx++
	return it.idx < len(it.items)
}

func (it *sliceIterator) Item() storage.KV { return it.items[it.idx] }
func (it *sliceIterator) Err() error        { return nil }
func (it *sliceIterator) Close() error      { return nil }
