package clone

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/saworbit/chunkarchive/pkg/archive"
	"github.com/saworbit/chunkarchive/pkg/chunk"
	"github.com/saworbit/chunkarchive/pkg/chunkindex"
)

// FromArchive fetches every chunk still named in chunks from arc's
// underlying reader, verifying and writing each to out, and removing its
// hash from chunks once placed. This is the last resort of a clone
// session: whatever neither the target nor any seed could supply.
func FromArchive(ctx context.Context, opts Options, arc *archive.Archive, chunks *chunkindex.Index, out *Output) (uint64, error) {
	wanted := chunks.Len()
	stream, err := arc.ChunkStream(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("clone: fetching from archive: %w", err)
	}

	verifiedChunks := make([]chunk.VerifiedChunk, 0, wanted)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, opts.maxBufferedChunks())

	for res := range stream {
		res := res
		if res.Err != nil {
			return 0, fmt.Errorf("clone: %w", res.Err)
		}
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			return 0, g.Wait()
		}
		g.Go(func() error {
			defer func() { <-sem }()
			vc, err := res.Chunk.Verify()
			if err != nil {
				return fmt.Errorf("clone: verifying fetched chunk: %w", err)
			}
			mu.Lock()
			verifiedChunks = append(verifiedChunks, vc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total uint64
	for _, vc := range verifiedChunks {
		n, err := out.Feed(ctx, chunks, vc)
		if err != nil {
			return total, err
		}
		total += uint64(n)
	}
	return total, nil
}
