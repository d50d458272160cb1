// Package index encodes quads of dictionary identifiers into the four key
// orderings (SPOC, POCS, OCSP, CSPO) spec.md §4.4 requires, and selects the
// best index for a bound pattern. Keys are fixed-width big-endian
// concatenations of dict.ID, so lexicographic byte order equals numeric
// order on every component — generalizing trigo's pkg/store index-selection
// logic (selectIndex/buildScanPrefix) from its nine graph-qualified tables
// down to the four orderings the spec names, since every quad here already
// carries a graph identifier (including the reserved default-graph id).
package index

import (
	"encoding/binary"

	"github.com/quadstore/quadstore/dict"
)

// Index names one of the four redundant key orderings over the same quad
// set.
type Index byte

const (
	SPOC Index = iota
	POCS
	OCSP
	CSPO
)

func (i Index) String() string {
	switch i {
	case SPOC:
		return "SPOC"
	case POCS:
		return "POCS"
	case OCSP:
		return "OCSP"
	case CSPO:
		return "CSPO"
	default:
		return "unknown"
	}
}

// All is every index in priority order (ties in §4.4's selection rule break
// SPOC > POCS > OCSP > CSPO).
var All = [4]Index{SPOC, POCS, OCSP, CSPO}

// Position names one of the four quad components in subject-first order,
// independent of any particular index's key ordering.
type Position int

const (
	S Position = iota
	P
	O
	C
)

// order returns the key-component order (as Positions) for idx, e.g. SPOC
// yields [S, P, O, C].
func order(idx Index) [4]Position {
	switch idx {
	case SPOC:
		return [4]Position{S, P, O, C}
	case POCS:
		return [4]Position{P, O, C, S}
	case OCSP:
		return [4]Position{O, C, S, P}
	case CSPO:
		return [4]Position{C, S, P, O}
	default:
		panic("index: unknown index")
	}
}

const idWidth = 8 // bytes per dict.ID component

// EncodeKey encodes the quad (s, p, o, c) as the key for idx: idx's
// component order, each id as 8-byte big-endian, so byte order equals
// numeric order on each component of the permutation.
func EncodeKey(idx Index, s, p, o, c dict.ID) []byte {
	ids := [4]dict.ID{s, p, o, c}
	ord := order(idx)
	key := make([]byte, 4*idWidth)
	for i, pos := range ord {
		binary.BigEndian.PutUint64(key[i*idWidth:(i+1)*idWidth], uint64(ids[pos]))
	}
	return key
}

// DecodeKey decodes a full (4-component) key for idx back into (s, p, o, c).
func DecodeKey(idx Index, key []byte) (s, p, o, c dict.ID) {
	if len(key) < 4*idWidth {
		panic("index: short key")
	}
	ord := order(idx)
	var ids [4]dict.ID
	for i, pos := range ord {
		ids[pos] = dict.ID(binary.BigEndian.Uint64(key[i*idWidth : (i+1)*idWidth]))
	}
	return ids[S], ids[P], ids[O], ids[C]
}

// Bound describes which quad positions a pattern fixes to a concrete
// identifier.
type Bound struct {
	S, P, O, C   dict.ID
	HasS, HasP, HasO, HasC bool
}

// Select chooses the index whose ordering has the longest prefix fully
// contained in the bound positions, breaking ties SPOC > POCS > OCSP > CSPO,
// per §4.4. It also returns the encoded scan prefix for that index.
func Select(b Bound) (Index, []byte) {
	has := map[Position]bool{S: b.HasS, P: b.HasP, O: b.HasO, C: b.HasC}
	ids := map[Position]dict.ID{S: b.S, P: b.P, O: b.O, C: b.C}

	bestIdx := SPOC
	bestLen := -1
	for _, idx := range All {
		ord := order(idx)
		n := 0
		for _, pos := range ord {
			if !has[pos] {
				break
			}
			n++
		}
		if n > bestLen {
			bestLen = n
			bestIdx = idx
		}
	}

	ord := order(bestIdx)
	prefix := make([]byte, 0, 4*idWidth)
	for _, pos := range ord {
		if !has[pos] {
			break
		}
		buf := make([]byte, idWidth)
		binary.BigEndian.PutUint64(buf, uint64(ids[pos]))
		prefix = append(prefix, buf...)
	}
	return bestIdx, prefix
}
