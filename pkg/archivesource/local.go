// Package archivesource implements the archive.ChunkReader contract over
// a local random-access file and over HTTP range requests, so the same
// archive.Archive and clone pipeline work against either source.
package archivesource

import (
	"context"
	"fmt"
	"io"

	"github.com/saworbit/chunkarchive/pkg/archive"
	"github.com/saworbit/chunkarchive/pkg/archiveerr"
)

// LocalReader reads archive bytes from an io.ReaderAt, such as an *os.File.
// Unlike HTTPReader it never coalesces adjacent ranges: a local seek is
// cheap enough that there is nothing to gain by batching.
type LocalReader struct {
	r io.ReaderAt
}

// NewLocalReader wraps r as an archive.ChunkReader.
func NewLocalReader(r io.ReaderAt) *LocalReader {
	return &LocalReader{r: r}
}

// ReadAt fetches exactly length bytes starting at offset.
func (l *LocalReader) ReadAt(_ context.Context, offset, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := l.r.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("archivesource: %w: %v", archiveerr.ErrReaderError, err)
	}
	if uint64(n) < length {
		return nil, fmt.Errorf("archivesource: %w", archiveerr.ErrUnexpectedEnd)
	}
	return buf, nil
}

// ReadChunks fetches each range independently, in order, as a stream.
func (l *LocalReader) ReadChunks(ctx context.Context, ranges []archive.Range) (<-chan archive.ChunkResult, error) {
	out := make(chan archive.ChunkResult)
	go func() {
		defer close(out)
		for i, rg := range ranges {
			data, err := l.ReadAt(ctx, rg.Offset, rg.Length)
			select {
			case out <- archive.ChunkResult{Index: i, Data: data, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
