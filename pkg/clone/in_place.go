package clone

import (
	"context"
	"fmt"
	"io"

	"github.com/saworbit/chunkarchive/pkg/archive"
	"github.com/saworbit/chunkarchive/pkg/chunk"
	"github.com/saworbit/chunkarchive/pkg/chunkindex"
	"github.com/saworbit/chunkarchive/pkg/chunklocation"
)

// Target is the file a clone session writes into: readable and writable
// at arbitrary offsets, and seekable so InPlace can rewind it for its
// initial content scan.
type Target interface {
	io.ReaderAt
	io.WriterAt
	io.ReadSeeker
}

// InPlace scans target for chunks it already contains and reorders them
// in place to satisfy as many of chunks' wanted offsets as possible
// without reading anything else, removing every hash it places from
// chunks. Returns the number of bytes moved or already correctly placed.
func InPlace(ctx context.Context, opts Options, arc *archive.Archive, target Target, chunks *chunkindex.Index) (uint64, error) {
	if _, err := target.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("clone: seeking target: %w", err)
	}
	targetIndex, err := ScanIndex(ctx, target, arc.ChunkerConfig(), arc.ChunkHashLength(), opts.maxBufferedChunks())
	if err != nil {
		return 0, err
	}

	_, inPlaceBytes := targetIndex.StripAlreadyInPlace(chunks)

	ops := chunklocation.ReorderOps(targetIndex, chunks)
	out := NewOutput(target)
	stored := make(map[string]chunk.VerifiedChunk)
	var totalMoved uint64

	readSource := func(offset uint64, size uint32) (chunk.VerifiedChunk, error) {
		buf := make([]byte, size)
		if _, err := target.ReadAt(buf, int64(offset)); err != nil {
			return chunk.VerifiedChunk{}, fmt.Errorf("clone: reading source chunk at %d: %w", offset, err)
		}
		return chunk.VerifiedChunk{Chunk: chunk.Chunk{Data: buf}}, nil
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return totalMoved, err
		}
		switch o := op.(type) {
		case chunklocation.Copy:
			key := string(o.Hash.Bytes())
			verified, ok := stored[key]
			if ok {
				delete(stored, key)
			} else {
				verified, err = readSource(o.Source, o.Size)
				if err != nil {
					return totalMoved, err
				}
			}
			verified.HashSum = o.Hash
			if _, err := out.WriteChunk(ctx, o.Dest, verified); err != nil {
				return totalMoved, err
			}
			totalMoved += uint64(o.Size)
			chunks.Remove(o.Hash)
		case chunklocation.StoreInMem:
			key := string(o.Hash.Bytes())
			if _, ok := stored[key]; !ok {
				verified, err := readSource(o.Source, o.Size)
				if err != nil {
					return totalMoved, err
				}
				verified.HashSum = o.Hash
				stored[key] = verified
			}
		}
	}

	return totalMoved + uint64(inPlaceBytes), nil
}
