// Package lsm implements storage.Backend as a log-structured merge tree,
// write-optimized, backed directly by BadgerDB — whose own SSTables,
// write-ahead log, and manifest of live files already satisfy spec.md
// §4.3/§7's LSM backend layout. A thin Snappy layer compresses each value
// on its own above Badger's own value storage, so compression is an explicit,
// independently toggleable component rather than relying solely on
// Badger's internal option.
package lsm

import (
	"bytes"
	"context"
	"fmt"
	"log"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/golang/snappy"

	"github.com/quadstore/quadstore/internal/kverr"
	"github.com/quadstore/quadstore/storage"
)

// Options tunes the LSM backend. Compression enables the per-value Snappy
// layer; CacheSizeMB bounds Badger's block cache.
type Options struct {
	Path        string
	Compression bool
	CacheSizeMB int64
	InMemory    bool // for tests: no files on disk
}

// Backend is the LSM storage.Backend implementation.
type Backend struct {
	db          *badger.DB
	compression bool
}

// Open creates or opens an LSM backend at opts.Path.
func Open(opts Options) (*Backend, error) {
	bopts := badger.DefaultOptions(opts.Path)
	bopts.Logger = nil // the teacher disables Badger's own logger; diagnostics go through the stdlib log package at open and compaction only
	bopts.InMemory = opts.InMemory
	if opts.CacheSizeMB > 0 {
		bopts.BlockCacheSize = opts.CacheSizeMB * 1 << 20
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("lsm: open %s: %w", opts.Path, err)
	}
	log.Printf("lsm: opened backend at %s (compression=%v)", opts.Path, opts.Compression)
	return &Backend{db: db, compression: opts.Compression}, nil
}

func (b *Backend) encode(v []byte) []byte {
	if !b.compression || len(v) == 0 {
		return v
	}
	return snappy.Encode(nil, v)
}

func (b *Backend) decode(v []byte) ([]byte, error) {
	if !b.compression || len(v) == 0 {
		return v, nil
	}
	out, err := snappy.Decode(nil, v)
	if err != nil {
		return nil, fmt.Errorf("lsm: decompress: %w", kverr.ErrCorruption)
	}
	return out, nil
}

func (b *Backend) Get(_ context.Context, key []byte) ([]byte, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return kverr.ErrNotFound
			}
			return fmt.Errorf("lsm: get: %w", err)
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return b.decode(raw)
}

func (b *Backend) Put(_ context.Context, key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, b.encode(value))
	})
	if err != nil {
		return fmt.Errorf("lsm: put: %w", err)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("lsm: delete: %w", err)
	}
	return nil
}

func (b *Backend) Contains(_ context.Context, key []byte) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (b *Backend) BatchPut(_ context.Context, pairs []storage.KV) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, kv := range pairs {
			if err := txn.Set(kv.Key, b.encode(kv.Value)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("lsm: batch put: %w", err)
	}
	return nil
}

func (b *Backend) RangeScan(_ context.Context, start, end []byte) (storage.Iterator, error) {
	txn := b.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	if start != nil {
		it.Seek(start)
	} else {
		it.Rewind()
	}
	return &iterator{txn: txn, it: it, end: end, backend: b, started: true}, nil
}

func (b *Backend) PrefixScan(_ context.Context, prefix []byte) (storage.Iterator, error) {
	txn := b.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	it.Seek(prefix)
	return &iterator{txn: txn, it: it, backend: b, started: true}, nil
}

// Flush forces Badger's value log and LSM tree to sync to disk.
func (b *Backend) Flush(_ context.Context) error {
	if err := b.db.Sync(); err != nil {
		return fmt.Errorf("lsm: flush: %w", err)
	}
	return nil
}

// Compact forces a full value-log garbage collection and table compaction.
func (b *Backend) Compact(_ context.Context) error {
	log.Printf("lsm: compaction requested")
	if err := b.db.Flatten(4); err != nil {
		return fmt.Errorf("lsm: compact: %w", err)
	}
	for {
		if err := b.db.RunValueLogGC(0.5); err != nil {
			break
		}
	}
	return nil
}

func (b *Backend) Stats(_ context.Context) (storage.Stats, error) {
	lsm, vlog := b.db.Size()
	return storage.Stats{ApproxBytes: lsm + vlog, BackendLabel: "lsm"}, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

type iterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	backend *Backend
	end     []byte
	started bool
	err     error
}

func (it *iterator) Next() bool {
	if !it.started {
		it.it.Next()
	}
	it.started = false
	if !it.it.Valid() {
		return false
	}
	if it.end != nil && bytes.Compare(it.it.Item().Key(), it.end) >= 0 {
		return false
	}
	return true
}

func (it *iterator) Item() storage.KV {
	item := it.it.Item()
	key := append([]byte(nil), item.Key()...)
	var raw []byte
	if err := item.Value(func(val []byte) error {
		raw = append([]byte{}, val...)
		return nil
	}); err != nil {
		it.err = fmt.Errorf("lsm: read value: %w", err)
		return storage.KV{Key: key}
	}
	value, err := it.backend.decode(raw)
	if err != nil {
		it.err = err
		return storage.KV{Key: key}
	}
	return storage.KV{Key: key, Value: value}
}

func (it *iterator) Err() error { return it.err }

func (it *iterator) Close() error {
	it.it.Close()
	it.txn.Discard()
	return nil
}
