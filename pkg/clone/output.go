// Package clone reconstructs a target from a chunk archive, filling in as
// much of it as possible from data the target, a local seed, or the
// archive itself already holds before fetching anything remote.
package clone

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/saworbit/chunkarchive/pkg/chunk"
	"github.com/saworbit/chunkarchive/pkg/chunkindex"
)

// Options parameterizes a clone session.
type Options struct {
	// MaxBufferedChunks bounds concurrent per-chunk decompress/verify work.
	// 0 selects an automatic value (2x CPU count, minimum 1).
	MaxBufferedChunks int
}

func (o Options) maxBufferedChunks() int {
	if o.MaxBufferedChunks > 0 {
		return o.MaxBufferedChunks
	}
	if n := runtime.NumCPU() * 2; n > 1 {
		return n
	}
	return 1
}

// Output is the exclusive write target of a clone session: a single
// io.WriterAt that every mode (in-place, seed, archive) writes into in
// turn, in sequence, so no two modes ever touch it concurrently.
type Output struct {
	w io.WriterAt
}

// NewOutput wraps w as a clone Output.
func NewOutput(w io.WriterAt) *Output {
	return &Output{w: w}
}

// WriteChunk writes verified's bytes to every offset in offsets.
func (o *Output) WriteChunk(ctx context.Context, offsets []uint64, verified chunk.VerifiedChunk) (int, error) {
	var written int
	for _, offset := range offsets {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := o.w.WriteAt(verified.Data, int64(offset))
		if err != nil {
			return written, fmt.Errorf("clone: writing chunk at offset %d: %w", offset, err)
		}
		written += n
	}
	return written, nil
}

// Feed writes verified to every offset registered for its hash in index,
// then removes that hash from index. Returns the number of bytes written,
// zero if the hash was not present.
func (o *Output) Feed(ctx context.Context, index *chunkindex.Index, verified chunk.VerifiedChunk) (int, error) {
	offsets := index.Offsets(verified.HashSum)
	if len(offsets) == 0 {
		return 0, nil
	}
	n, err := o.WriteChunk(ctx, offsets, verified)
	if err != nil {
		return n, err
	}
	index.Remove(verified.HashSum)
	return n, nil
}
