package lsm

import (
	"context"
	"testing"

	"github.com/quadstore/quadstore/internal/kverr"
)

func open(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(Options{Path: t.TempDir(), Compression: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := open(t)
	if err := b.Put(ctx, []byte("k"), []byte("value-bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := b.Get(ctx, []byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "value-bytes" {
		t.Errorf("expected roundtrip value, got %q", v)
	}
}

func TestPutDeleteGet(t *testing.T) {
	ctx := context.Background()
	b := open(t)
	_ = b.Put(ctx, []byte("k"), []byte("v"))
	_ = b.Delete(ctx, []byte("k"))
	if _, err := b.Get(ctx, []byte("k")); err != kverr.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRangeScanOrdering(t *testing.T) {
	ctx := context.Background()
	b := open(t)
	for _, k := range []string{"c", "a", "e", "b", "d"} {
		_ = b.Put(ctx, []byte(k), []byte("v"))
	}
	it, err := b.RangeScan(ctx, nil, nil)
	if err != nil {
		t.Fatalf("range scan: %v", err)
	}
	defer it.Close()

	var got []string
	for it.Next() {
		got = append(got, string(it.Item().Key))
	}
	want := []string{"a", "b", "c", "d", "e"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPrefixScan(t *testing.T) {
	ctx := context.Background()
	b := open(t)
	_ = b.Put(ctx, []byte("ab1"), []byte("v"))
	_ = b.Put(ctx, []byte("ab2"), []byte("v"))
	_ = b.Put(ctx, []byte("ac1"), []byte("v"))

	it, err := b.PrefixScan(ctx, []byte("ab"))
	if err != nil {
		t.Fatalf("prefix scan: %v", err)
	}
	defer it.Close()
	var count int
	for it.Next() {
		count++
	}
	if count != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}

func TestFlushAndReopenRecovers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := Open(Options{Path: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := b.Put(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(Options{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	v, err := reopened.Get(ctx, []byte("k"))
	if err != nil || string(v) != "v" {
		t.Errorf("expected recovered value v, got %q (err=%v)", v, err)
	}
}

func TestCompactOnEmptyDBDoesNotError(t *testing.T) {
	ctx := context.Background()
	b := open(t)
	if err := b.Compact(ctx); err != nil {
		t.Errorf("compact on empty db should not error, got %v", err)
	}
}
