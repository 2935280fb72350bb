package chunklocation

import (
	"sort"

	"github.com/saworbit/chunkarchive/pkg/chunkindex"
	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

// Op is one instruction in a reorder plan.
type Op interface{ isOp() }

// Copy reads the chunk identified by Hash from Source (or an in-memory
// cache entry if one exists for Hash) and writes it to every offset in
// Dest.
type Copy struct {
	Hash   hashsum.Sum
	Size   uint32
	Source uint64
	Dest   []uint64
}

// StoreInMem reads the chunk from Source and retains it in an in-memory
// cache keyed by Hash, because its source bytes are about to be
// overwritten by a later Copy in the plan. Applying it twice for the
// same hash is a no-op for the driver.
type StoreInMem struct {
	Hash   hashsum.Sum
	Size   uint32
	Source uint64
}

func (Copy) isOp()       {}
func (StoreInMem) isOp() {}

type move struct {
	hash   hashsum.Sum
	key    string
	size   uint32
	source uint64
	dest   []uint64
}

type visitState int

const (
	unvisited visitState = iota
	inProgress
	finished
)

// ReorderOps computes the Copy/StoreInMem instruction stream that
// transforms current's chunk layout into target's, reading only from
// offsets current actually holds and never destroying a chunk's source
// bytes before they have been read or cached.
//
// Precondition: identity moves should already be removed by calling
// current.StripAlreadyInPlace(target) before this is called, so no Copy
// ever targets a chunk's own current offset.
func ReorderOps(current, target *chunkindex.Index) []Op {
	p := &planner{
		target: target,
		layout: New(),
		moves:  make(map[string]*move),
		state:  make(map[string]visitState),
		stored: make(map[string]bool),
	}

	var order []*move
	for _, h := range current.Keys() {
		if !target.Contains(h) {
			continue
		}
		size, _ := current.Size(h)
		source, ok := current.FirstOffset(h)
		if !ok {
			continue
		}
		m := &move{
			hash:   h,
			key:    string(h.Bytes()),
			size:   uint32(size),
			source: source,
			dest:   target.Offsets(h),
		}
		p.moves[m.key] = m
		p.layout.Insert(Location{Offset: source, Size: m.size}, h)
		order = append(order, m)
	}

	// Ascending source offset gives a deterministic root visitation order.
	sort.Slice(order, func(i, j int) bool { return order[i].source < order[j].source })

	for _, m := range order {
		if p.state[m.key] == finished {
			continue
		}
		var touched []string
		p.visit(m.key, &touched)
		for _, k := range touched {
			mv := p.moves[k]
			p.layout.Remove(Location{Offset: mv.source, Size: mv.size})
		}
	}

	return p.ops
}

type planner struct {
	target *chunkindex.Index
	layout *Map
	moves  map[string]*move
	state  map[string]visitState
	stored map[string]bool
	ops    []Op
}

func (p *planner) visit(key string, touched *[]string) {
	p.state[key] = inProgress
	*touched = append(*touched, key)
	m := p.moves[key]

	destSize := m.size
	if s, ok := p.target.Size(m.hash); ok {
		destSize = uint32(s)
	}

	for _, dest := range m.dest {
		overlaps := p.layout.IterOverlapping(Location{Offset: dest, Size: destSize})
		for _, ov := range overlaps {
			if ov.Hash.Equal(m.hash) {
				continue
			}
			neighborKey := string(ov.Hash.Bytes())
			neighbor, ok := p.moves[neighborKey]
			if !ok {
				continue
			}
			switch p.state[neighborKey] {
			case inProgress:
				if !p.stored[neighborKey] {
					p.stored[neighborKey] = true
					p.ops = append(p.ops, StoreInMem{Hash: neighbor.hash, Size: neighbor.size, Source: neighbor.source})
				}
			case finished:
				// Already copied or stashed; nothing left to protect.
			case unvisited:
				p.visit(neighborKey, touched)
			}
		}
	}

	p.ops = append(p.ops, Copy{Hash: m.hash, Size: m.size, Source: m.source, Dest: m.dest})
	p.state[key] = finished
}
