// Package chunkindex implements the hash-keyed catalog of chunks described
// by a [pkg/archive] dictionary or an on-disk layout: for every unique
// chunk hash, the uncompressed size and every offset at which that content
// occurs.
package chunkindex

import (
	"fmt"
	"sort"

	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

// Index maps a truncated hash sum to its size and sorted, duplicate-free
// list of source offsets. Every key is truncated to a fixed HashLength
// before lookup or storage, so a full-length hash transparently matches an
// index built with a shorter truncation.
type Index struct {
	hashLength int
	entries    map[string]*entry
}

type entry struct {
	size    int
	offsets []uint64
}

// New constructs an empty Index truncating all keys to hashLength bytes.
func New(hashLength int) *Index {
	return &Index{hashLength: hashLength, entries: make(map[string]*entry)}
}

// HashLength returns the truncation length this index was built with.
func (ix *Index) HashLength() int { return ix.hashLength }

func (ix *Index) key(hash hashsum.Sum) string {
	n := ix.hashLength
	if n > hash.Len() {
		n = hash.Len()
	}
	return string(hash.Truncate(n).Bytes())
}

// Add inserts (or merges into an existing entry) the given hash, size, and
// offsets. The resulting offset list stays sorted and duplicate-free.
// Two different sizes stored under the same truncated hash is a programming
// error and panics, matching the spec's "not expected under a reasonable
// hash length" invariant.
func (ix *Index) Add(hash hashsum.Sum, size int, offsets ...uint64) {
	k := ix.key(hash)
	e, ok := ix.entries[k]
	if !ok {
		sorted := append([]uint64(nil), offsets...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		sorted = dedupSorted(sorted)
		ix.entries[k] = &entry{size: size, offsets: sorted}
		return
	}
	if e.size != size {
		panic(fmt.Sprintf("chunkindex: conflicting sizes %d and %d for the same hash", e.size, size))
	}
	e.offsets = mergeSorted(e.offsets, offsets)
}

// Contains reports whether hash is present.
func (ix *Index) Contains(hash hashsum.Sum) bool {
	_, ok := ix.entries[ix.key(hash)]
	return ok
}

// Remove deletes hash's entry entirely.
func (ix *Index) Remove(hash hashsum.Sum) {
	delete(ix.entries, ix.key(hash))
}

// Offsets returns the sorted offset list for hash, or nil if absent.
func (ix *Index) Offsets(hash hashsum.Sum) []uint64 {
	e, ok := ix.entries[ix.key(hash)]
	if !ok {
		return nil
	}
	return append([]uint64(nil), e.offsets...)
}

// FirstOffset returns the smallest offset for hash and whether it exists.
func (ix *Index) FirstOffset(hash hashsum.Sum) (uint64, bool) {
	e, ok := ix.entries[ix.key(hash)]
	if !ok || len(e.offsets) == 0 {
		return 0, false
	}
	return e.offsets[0], true
}

// Size returns the stored content size for hash.
func (ix *Index) Size(hash hashsum.Sum) (int, bool) {
	e, ok := ix.entries[ix.key(hash)]
	if !ok {
		return 0, false
	}
	return e.size, true
}

// Len returns the number of distinct hashes stored.
func (ix *Index) Len() int { return len(ix.entries) }

// IsEmpty reports whether the index holds no entries.
func (ix *Index) IsEmpty() bool { return len(ix.entries) == 0 }

// Keys returns every stored (truncated) hash, in no particular order.
func (ix *Index) Keys() []hashsum.Sum {
	out := make([]hashsum.Sum, 0, len(ix.entries))
	for k := range ix.entries {
		out = append(out, hashsum.New([]byte(k)))
	}
	return out
}

// StripAlreadyInPlace removes, from other, every offset that also appears
// under the same hash in ix: an offset present in both indexes needs no
// data movement because the target content is already there. If an
// entry's offset list becomes empty it is removed entirely. Returns the
// number of offsets removed and the total bytes they represent.
func (ix *Index) StripAlreadyInPlace(other *Index) (count int, bytes int64) {
	for k, e := range ix.entries {
		oe, ok := other.entries[k]
		if !ok {
			continue
		}
		shared := make(map[uint64]struct{}, len(e.offsets))
		for _, off := range e.offsets {
			shared[off] = struct{}{}
		}
		kept := oe.offsets[:0:0]
		for _, off := range oe.offsets {
			if _, dup := shared[off]; dup {
				count++
				bytes += int64(oe.size)
				continue
			}
			kept = append(kept, off)
		}
		if len(kept) == 0 {
			delete(other.entries, k)
		} else {
			oe.offsets = kept
		}
	}
	return count, bytes
}

func dedupSorted(s []uint64) []uint64 {
	out := s[:0]
	var last uint64
	for i, v := range s {
		if i == 0 || v != last {
			out = append(out, v)
			last = v
		}
	}
	return out
}

func mergeSorted(existing []uint64, add []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(existing)+len(add))
	for _, v := range existing {
		seen[v] = struct{}{}
	}
	merged := append([]uint64(nil), existing...)
	for _, v := range add {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	return merged
}
