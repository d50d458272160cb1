package trie

import (
	"testing"

	"github.com/quadstore/quadstore/dict"
)

func row(vals ...dict.ID) []dict.ID { return vals }

func TestBuild_EmptyRowsProducesImmediatelyExhaustedCursor(t *testing.T) {
	tr := Build([]string{"x"}, nil)
	c := tr.NewCursor()
	c.Open()
	if !c.AtEnd() {
		t.Error("expected an empty trie's root level to be immediately exhausted")
	}
}

func TestBuild_SingleVarDedupesAndSorts(t *testing.T) {
	tr := Build([]string{"x"}, [][]dict.ID{row(3), row(1), row(2), row(1)})
	c := tr.NewCursor()
	c.Open()
	var got []dict.ID
	for !c.AtEnd() {
		got = append(got, c.Key())
		c.Next()
	}
	want := []dict.ID{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("at %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestCursor_SeekAdvancesToFirstKeyAtOrAboveTarget(t *testing.T) {
	tr := Build([]string{"x"}, [][]dict.ID{row(1), row(3), row(5), row(7)})
	c := tr.NewCursor()
	c.Open()
	c.Seek(4)
	if c.Key() != 5 {
		t.Errorf("expected seek(4) to land on 5, got %d", c.Key())
	}
	c.Seek(5)
	if c.Key() != 5 {
		t.Errorf("expected seek(5) to stay on 5, got %d", c.Key())
	}
	c.Seek(8)
	if !c.AtEnd() {
		t.Error("expected seek past the last key to reach AtEnd")
	}
}

func TestCursor_TwoLevelDescent(t *testing.T) {
	// Two-variable relation: (x, y) pairs (1,10), (1,20), (2,10).
	tr := Build([]string{"x", "y"}, [][]dict.ID{
		row(1, 10), row(1, 20), row(2, 10),
	})
	c := tr.NewCursor()
	c.Open() // level x
	if c.Key() != 1 {
		t.Fatalf("expected first x=1, got %d", c.Key())
	}
	c.Open() // level y, under x=1
	var ys []dict.ID
	for !c.AtEnd() {
		ys = append(ys, c.Key())
		c.Next()
	}
	if len(ys) != 2 || ys[0] != 10 || ys[1] != 20 {
		t.Errorf("expected y=[10,20] under x=1, got %v", ys)
	}
	c.Up()
	c.Next()
	if c.Key() != 2 {
		t.Fatalf("expected second x=2, got %d", c.Key())
	}
	c.Open()
	if c.AtEnd() || c.Key() != 10 {
		t.Errorf("expected y=10 under x=2")
	}
}
