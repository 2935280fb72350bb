package chunklocation

import (
	"testing"

	"github.com/saworbit/chunkarchive/pkg/chunkindex"
	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

func wantCopy(t *testing.T, op Op, h hashsum.Sum, size uint32, source uint64, dest []uint64) {
	t.Helper()
	c, ok := op.(Copy)
	if !ok {
		t.Fatalf("expected Copy, got %#v", op)
	}
	if !c.Hash.Equal(h) || c.Size != size || c.Source != source {
		t.Fatalf("got %+v", c)
	}
	if len(c.Dest) != len(dest) {
		t.Fatalf("dest: got %v want %v", c.Dest, dest)
	}
	for i := range dest {
		if c.Dest[i] != dest[i] {
			t.Fatalf("dest: got %v want %v", c.Dest, dest)
		}
	}
}

func TestReorderWithOverlap(t *testing.T) {
	current := chunkindex.New(hashsum.MaxLength)
	current.Add(hash(1), 10, 0)
	current.Add(hash(2), 20, 10)
	current.Add(hash(3), 20, 30, 50)

	target := chunkindex.New(hashsum.MaxLength)
	target.Add(hash(1), 10, 60)
	target.Add(hash(2), 20, 50)
	target.Add(hash(3), 20, 10, 30)
	target.Add(hash(4), 5, 0, 5)

	ops := ReorderOps(current, target)
	if len(ops) != 3 {
		t.Fatalf("expected 3 ops, got %d: %+v", len(ops), ops)
	}
	wantCopy(t, ops[0], hash(1), 10, 0, []uint64{60})
	wantCopy(t, ops[1], hash(2), 20, 10, []uint64{50})
	wantCopy(t, ops[2], hash(3), 20, 30, []uint64{10, 30})
}

func TestReorderDoesNotCopyToSelf(t *testing.T) {
	current := chunkindex.New(hashsum.MaxLength)
	current.Add(hash(1), 10, 0, 20)

	target := chunkindex.New(hashsum.MaxLength)
	target.Add(hash(1), 10, 20, 40)

	current.StripAlreadyInPlace(target)

	ops := ReorderOps(current, target)
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %d: %+v", len(ops), ops)
	}
	wantCopy(t, ops[0], hash(1), 10, 0, []uint64{40})
}

func TestReorderOnlyMovesChunksPresentInBoth(t *testing.T) {
	current := chunkindex.New(hashsum.MaxLength)
	current.Add(hash(1), 10, 0)

	target := chunkindex.New(hashsum.MaxLength)
	target.Add(hash(2), 10, 100)

	ops := ReorderOps(current, target)
	if len(ops) != 0 {
		t.Fatalf("expected no ops, got %+v", ops)
	}
}
