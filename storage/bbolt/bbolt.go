// Package bbolt implements storage.Backend as a single memory-mapped
// B+-tree file (github.com/boltdb/bolt), matching spec.md §4.3/§7's
// read-optimized, exclusive-writer, multiple-reader, transactional backend
// — this is exactly boltdb's native transaction model, as exercised by
// cayley's graph/bolt quadstore in the retrieval pack.
package bbolt

import (
	"bytes"
	"context"
	"fmt"
	"log"

	bolt "github.com/boltdb/bolt"

	"github.com/quadstore/quadstore/internal/kverr"
	"github.com/quadstore/quadstore/storage"
)

var rootBucket = []byte("quadstore")

// Options tunes the B+-tree backend. MmapSize preallocates the memory-mapped
// file; boltdb grows it on demand beyond this size.
type Options struct {
	Path    string
	MmapSize int
}

// Backend is the B+-tree storage.Backend implementation.
type Backend struct {
	db *bolt.DB
}

// Open opens (creating if absent) a single-file B+-tree backend.
func Open(opts Options) (*Backend, error) {
	bopts := &bolt.Options{InitialMmapSize: opts.MmapSize}
	db, err := bolt.Open(opts.Path, 0o600, bopts)
	if err != nil {
		return nil, fmt.Errorf("bbolt: open %s: %w", opts.Path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bbolt: init bucket: %w", err)
	}
	log.Printf("bbolt: opened backend at %s", opts.Path)
	return &Backend{db: db}, nil
}

func (b *Backend) Get(_ context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(rootBucket).Get(key)
		if v == nil {
			return kverr.ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) Put(_ context.Context, key, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("bbolt: put: %w", err)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, key []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Delete(key)
	})
	if err != nil {
		return fmt.Errorf("bbolt: delete: %w", err)
	}
	return nil
}

func (b *Backend) Contains(_ context.Context, key []byte) (bool, error) {
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(rootBucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (b *Backend) BatchPut(_ context.Context, pairs []storage.KV) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(rootBucket)
		for _, kv := range pairs {
			if err := bucket.Put(kv.Key, kv.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bbolt: batch put: %w", err)
	}
	return nil
}

func (b *Backend) RangeScan(_ context.Context, start, end []byte) (storage.Iterator, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("bbolt: begin read tx: %w", err)
	}
	c := tx.Bucket(rootBucket).Cursor()
	return &iterator{tx: tx, cursor: c, start: start, end: end}, nil
}

func (b *Backend) PrefixScan(_ context.Context, prefix []byte) (storage.Iterator, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("bbolt: begin read tx: %w", err)
	}
	c := tx.Bucket(rootBucket).Cursor()
	return &iterator{tx: tx, cursor: c, start: prefix, prefix: prefix}, nil
}

// Flush is a no-op beyond Put/Delete: boltdb commits (and fsyncs, unless
// NoSync is set) every write transaction already.
func (b *Backend) Flush(_ context.Context) error { return nil }

func (b *Backend) Stats(_ context.Context) (storage.Stats, error) {
	s := b.db.Stats()
	return storage.Stats{
		KeyCount:     int64(s.TxStats.PageCount), // coarse proxy; boltdb has no direct key counter
		ApproxBytes:  int64(s.FreeAlloc),
		BackendLabel: "bbolt",
	}, nil
}

func (b *Backend) Close() error { return b.db.Close() }

type iterator struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	start   []byte
	end     []byte
	prefix  []byte
	started bool
	key     []byte
	value   []byte
}

func (it *iterator) Next() bool {
	var k, v []byte
	if !it.started {
		it.started = true
		if it.start != nil {
			k, v = it.cursor.Seek(it.start)
		} else {
			k, v = it.cursor.First()
		}
	} else {
		k, v = it.cursor.Next()
	}
	if k == nil {
		return false
	}
	if it.prefix != nil && !bytes.HasPrefix(k, it.prefix) {
		return false
	}
	if it.end != nil && bytes.Compare(k, it.end) >= 0 {
		return false
	}
	it.key, it.value = k, v
	return true
}

func (it *iterator) Item() storage.KV {
	return storage.KV{
		Key:   append([]byte(nil), it.key...),
		Value: append([]byte(nil), it.value...),
	}
}

func (it *iterator) Err() error { return nil }

func (it *iterator) Close() error {
	return it.tx.Rollback()
}
