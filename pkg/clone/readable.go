package clone

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/saworbit/chunkarchive/pkg/chunk"
	"github.com/saworbit/chunkarchive/pkg/chunker"
	"github.com/saworbit/chunkarchive/pkg/chunkindex"
	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

// ScanIndex chunks r with cfg and returns an index of every chunk found,
// each keyed by a hash truncated to hashLength. It is how an in-place
// clone discovers what a target already holds before any data moves.
func ScanIndex(ctx context.Context, r io.Reader, cfg chunker.Config, hashLength int, maxBuffered int) (*chunkindex.Index, error) {
	if maxBuffered < 1 {
		maxBuffered = 1
	}
	idx := chunkindex.New(hashLength)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxBuffered)
	c := cfg.NewChunker(r)
	for {
		ck, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("clone: scanning target: %w", err)
		}
		offset, data := ck.Offset, ck.Data

		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			return nil, g.Wait()
		}
		g.Go(func() error {
			defer func() { <-sem }()
			sum := hashsum.Digest(data)
			mu.Lock()
			idx.Add(sum, len(data), offset)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return idx, nil
}

// FeedReadable chunks r with cfg and writes every chunk still named in
// chunks to out, removing each hash from chunks as it is placed. Reading
// stops as soon as chunks is empty, so a seed that is mostly useless is
// not read to the end.
func FeedReadable(ctx context.Context, r io.Reader, cfg chunker.Config, out *Output, chunks *chunkindex.Index, maxBuffered int) (uint64, error) {
	if maxBuffered < 1 {
		maxBuffered = 1
	}
	if chunks.IsEmpty() {
		return 0, nil
	}

	var (
		mu        sync.Mutex
		totalUsed uint64
	)

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxBuffered)
	c := cfg.NewChunker(r)
	for {
		mu.Lock()
		empty := chunks.IsEmpty()
		mu.Unlock()
		if empty {
			break
		}

		ck, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return totalUsed, fmt.Errorf("clone: reading seed: %w", err)
		}
		data := ck.Data

		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			return totalUsed, g.Wait()
		}
		g.Go(func() error {
			defer func() { <-sem }()
			verified := chunk.Verify(data)

			mu.Lock()
			offsets := chunks.Offsets(verified.HashSum)
			if len(offsets) > 0 {
				chunks.Remove(verified.HashSum)
			}
			mu.Unlock()
			if len(offsets) == 0 {
				return nil
			}

			n, err := out.WriteChunk(gctx, offsets, verified)
			if err != nil {
				return err
			}
			mu.Lock()
			totalUsed += uint64(n)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return totalUsed, err
	}
	return totalUsed, nil
}
