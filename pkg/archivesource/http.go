package archivesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/saworbit/chunkarchive/internal/metrics"
	"github.com/saworbit/chunkarchive/pkg/archive"
	"github.com/saworbit/chunkarchive/pkg/archiveerr"
)

// RequestFactory builds a fresh, independent *http.Request each time it is
// called, standing in for the Rust reader's RequestBuilder::try_clone: a
// request consumed by one attempt must not be reused by a retry.
type RequestFactory func() (*http.Request, error)

// HTTPReader reads archive bytes over HTTP Range requests, coalescing
// strictly adjacent ranges passed to ReadChunks into a single request and
// retrying a failed transfer from the offset it actually reached.
type HTTPReader struct {
	client     *http.Client
	newRequest RequestFactory
	retryCount int
	retryDelay time.Duration
}

// NewHTTPReader builds a reader that issues requests built by newRequest.
func NewHTTPReader(newRequest RequestFactory) *HTTPReader {
	return &HTTPReader{client: http.DefaultClient, newRequest: newRequest}
}

// WithClient overrides the HTTP client used for requests.
func (r *HTTPReader) WithClient(c *http.Client) *HTTPReader {
	r.client = c
	return r
}

// WithRetries sets how many additional attempts are made after a failed
// transfer before giving up.
func (r *HTTPReader) WithRetries(n int) *HTTPReader {
	r.retryCount = n
	return r
}

// WithRetryDelay sets the pause between retry attempts.
func (r *HTTPReader) WithRetryDelay(d time.Duration) *HTTPReader {
	r.retryDelay = d
	return r
}

// ReadAt fetches exactly length bytes starting at offset via a single
// range request, retrying on failure.
func (r *HTTPReader) ReadAt(ctx context.Context, offset, length uint64) ([]byte, error) {
	return r.fetchRange(ctx, offset, length)
}

// ReadChunks coalesces runs of strictly adjacent ranges into one HTTP
// request each, then splits the response back into per-range results
// streamed in the order requested.
func (r *HTTPReader) ReadChunks(ctx context.Context, ranges []archive.Range) (<-chan archive.ChunkResult, error) {
	out := make(chan archive.ChunkResult)
	go func() {
		defer close(out)
		i := 0
		for i < len(ranges) {
			run := adjacentRun(ranges, i)
			first := ranges[i]
			last := ranges[i+run-1]
			total := last.Offset + last.Length - first.Offset

			data, err := r.fetchRange(ctx, first.Offset, total)
			if err != nil {
				for j := i; j < i+run; j++ {
					select {
					case out <- archive.ChunkResult{Index: j, Err: err}:
					case <-ctx.Done():
						return
					}
				}
				i += run
				continue
			}

			var pos uint64
			for j := i; j < i+run; j++ {
				l := ranges[j].Length
				select {
				case out <- archive.ChunkResult{Index: j, Data: data[pos : pos+l]}:
				case <-ctx.Done():
					return
				}
				pos += l
			}
			i += run
		}
	}()
	return out, nil
}

// adjacentRun returns the length of the longest run starting at start
// where each range's end offset equals the next range's offset.
func adjacentRun(ranges []archive.Range, start int) int {
	n := 1
	for start+n < len(ranges) {
		prev := ranges[start+n-1]
		if prev.Offset+prev.Length != ranges[start+n].Offset {
			break
		}
		n++
	}
	return n
}

func (r *HTTPReader) fetchRange(ctx context.Context, offset, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	var got uint64

	for attempt := 0; ; attempt++ {
		n, err := r.fetchInto(ctx, offset+got, length-got, buf[got:])
		got += uint64(n)
		if err == nil {
			return buf, nil
		}
		if errors.Is(err, archiveerr.ErrRequestNotClonable) {
			return nil, fmt.Errorf("archivesource: %w", err)
		}
		if attempt >= r.retryCount {
			return nil, fmt.Errorf("archivesource: %w: %v", archiveerr.ErrReaderError, err)
		}
		metrics.RecordHTTPRetry()
		select {
		case <-time.After(r.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *HTTPReader) fetchInto(ctx context.Context, offset, length uint64, dst []byte) (int, error) {
	if length == 0 {
		return 0, nil
	}
	req, err := r.newRequest()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", archiveerr.ErrRequestNotClonable, err)
	}
	req = req.Clone(ctx)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadFull(resp.Body, dst[:length])
}
