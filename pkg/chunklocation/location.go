// Package chunklocation implements an offset-ordered map of byte intervals
// and the query "which stored intervals overlap this range", used by the
// reorder planner to find chunks a write would clobber.
package chunklocation

import (
	"sort"

	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

// Location identifies a half-open byte interval [Offset, Offset+Size).
type Location struct {
	Offset uint64
	Size   uint32
}

// End returns the exclusive end of the interval.
func (l Location) End() uint64 { return l.Offset + uint64(l.Size) }

// Overlaps reports whether l and other's intervals intersect.
func (l Location) Overlaps(other Location) bool {
	return l.Offset < other.End() && other.Offset < l.End()
}

// Entry pairs a Location with the hash of the chunk stored there.
type Entry struct {
	Location Location
	Hash     hashsum.Sum
}

// Map is an ordered map keyed by Location (offset primary, size secondary),
// supporting interval-overlap queries.
type Map struct {
	locations []Location
	hashes    map[Location]hashsum.Sum
}

// New constructs an empty Map.
func New() *Map {
	return &Map{hashes: make(map[Location]hashsum.Sum)}
}

func (m *Map) indexOf(loc Location) (int, bool) {
	i := sort.Search(len(m.locations), func(i int) bool {
		a, b := m.locations[i], loc
		if a.Offset != b.Offset {
			return a.Offset >= b.Offset
		}
		return a.Size >= b.Size
	})
	if i < len(m.locations) && m.locations[i] == loc {
		return i, true
	}
	return i, false
}

// Insert adds loc -> hash, keeping locations sorted by (offset, size).
func (m *Map) Insert(loc Location, hash hashsum.Sum) {
	i, exists := m.indexOf(loc)
	if exists {
		m.hashes[loc] = hash
		return
	}
	m.locations = append(m.locations, Location{})
	copy(m.locations[i+1:], m.locations[i:])
	m.locations[i] = loc
	m.hashes[loc] = hash
}

// Remove deletes loc, if present.
func (m *Map) Remove(loc Location) {
	i, exists := m.indexOf(loc)
	if !exists {
		return
	}
	copy(m.locations[i:], m.locations[i+1:])
	m.locations = m.locations[:len(m.locations)-1]
	delete(m.hashes, loc)
}

// Len returns the number of stored locations.
func (m *Map) Len() int { return len(m.locations) }

// Entries returns every stored location in ascending (offset, size) order.
func (m *Map) Entries() []Entry {
	out := make([]Entry, len(m.locations))
	for i, loc := range m.locations {
		out[i] = Entry{Location: loc, Hash: m.hashes[loc]}
	}
	return out
}

// IterOverlapping returns every stored entry whose interval overlaps
// query's, walking backward from just below query.End() and stopping as
// soon as an entry's own end no longer reaches past query.Offset.
func (m *Map) IterOverlapping(query Location) []Entry {
	// Locations are sorted ascending by offset; entries with offset >=
	// query.End() cannot overlap, so the search bound excludes them.
	end := sort.Search(len(m.locations), func(i int) bool {
		return m.locations[i].Offset >= query.End()
	})

	var out []Entry
	for i := end - 1; i >= 0; i-- {
		loc := m.locations[i]
		if !(query.Offset < loc.End()) {
			break
		}
		out = append(out, Entry{Location: loc, Hash: m.hashes[loc]})
	}
	return out
}
