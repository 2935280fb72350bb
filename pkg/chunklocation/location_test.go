package chunklocation

import (
	"testing"

	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

func hash(b byte) hashsum.Sum { return hashsum.New([]byte{b}) }

func offsets(entries []Entry) []uint64 {
	out := make([]uint64, len(entries))
	for i, e := range entries {
		out[i] = e.Location.Offset
	}
	return out
}

func assertOffsets(t *testing.T, got []Entry, want []uint64) {
	t.Helper()
	gotOffsets := offsets(got)
	if len(gotOffsets) != len(want) {
		t.Fatalf("got %v want %v", gotOffsets, want)
	}
	for i := range want {
		if gotOffsets[i] != want[i] {
			t.Fatalf("got %v want %v", gotOffsets, want)
		}
	}
}

func TestInsertAndIterInOrder(t *testing.T) {
	m := New()
	m.Insert(Location{Offset: 20, Size: 10}, hash(1))
	m.Insert(Location{Offset: 0, Size: 10}, hash(2))
	m.Insert(Location{Offset: 10, Size: 10}, hash(3))

	entries := m.Entries()
	assertOffsets(t, entries, []uint64{0, 10, 20})
}

func TestRemoveOneFirstLast(t *testing.T) {
	m := New()
	m.Insert(Location{Offset: 0, Size: 10}, hash(1))
	m.Insert(Location{Offset: 10, Size: 10}, hash(2))
	m.Insert(Location{Offset: 20, Size: 10}, hash(3))

	m.Remove(Location{Offset: 10, Size: 10})
	assertOffsets(t, m.Entries(), []uint64{0, 20})

	m.Remove(Location{Offset: 0, Size: 10})
	assertOffsets(t, m.Entries(), []uint64{20})

	m.Remove(Location{Offset: 20, Size: 10})
	if m.Len() != 0 {
		t.Fatalf("expected empty map, got %d entries", m.Len())
	}
}

func TestNoRemoveOfAbsentLocation(t *testing.T) {
	m := New()
	m.Insert(Location{Offset: 0, Size: 10}, hash(1))
	m.Remove(Location{Offset: 50, Size: 10})
	if m.Len() != 1 {
		t.Fatal("removing an absent location must be a no-op")
	}
}

func TestSomeOverlap(t *testing.T) {
	m := New()
	m.Insert(Location{Offset: 0, Size: 10}, hash(1))
	m.Insert(Location{Offset: 10, Size: 10}, hash(2))
	m.Insert(Location{Offset: 20, Size: 10}, hash(3))

	got := m.IterOverlapping(Location{Offset: 5, Size: 10})
	assertOffsets(t, got, []uint64{10, 0})
}

func TestExactOverlap(t *testing.T) {
	m := New()
	m.Insert(Location{Offset: 0, Size: 10}, hash(1))
	got := m.IterOverlapping(Location{Offset: 0, Size: 10})
	assertOffsets(t, got, []uint64{0})
}

func TestExactOverlapPlusOne(t *testing.T) {
	m := New()
	m.Insert(Location{Offset: 0, Size: 10}, hash(1))
	got := m.IterOverlapping(Location{Offset: 1, Size: 10})
	assertOffsets(t, got, []uint64{0})
}

func TestExactOverlapMinusOne(t *testing.T) {
	m := New()
	m.Insert(Location{Offset: 1, Size: 10}, hash(1))
	got := m.IterOverlapping(Location{Offset: 0, Size: 10})
	assertOffsets(t, got, []uint64{1})
}

func TestAboveNoOverlap(t *testing.T) {
	m := New()
	m.Insert(Location{Offset: 100, Size: 10}, hash(1))
	got := m.IterOverlapping(Location{Offset: 0, Size: 10})
	if len(got) != 0 {
		t.Fatalf("expected no overlap, got %v", offsets(got))
	}
}

func TestBetweenNoOverlap(t *testing.T) {
	m := New()
	m.Insert(Location{Offset: 0, Size: 10}, hash(1))
	m.Insert(Location{Offset: 20, Size: 10}, hash(2))
	got := m.IterOverlapping(Location{Offset: 10, Size: 10})
	if len(got) != 0 {
		t.Fatalf("expected no overlap, got %v", offsets(got))
	}
}
