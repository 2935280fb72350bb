package chunker

import (
	"bufio"
	"io"

	"github.com/saworbit/chunkarchive/pkg/rollhash"
)

// ByteReader is the minimal source contract the chunker needs. Any
// io.Reader satisfies it once wrapped in bufio; Next reads exactly as much
// as the underlying reader yields per call, and chunk boundaries are
// provably independent of that granularity (see chunker_test.go).
type ByteReader = io.Reader

// Chunk is one emitted slice of the source: its starting offset and owned
// bytes.
type Chunk struct {
	Offset uint64
	Data   []byte
}

// Chunker produces a finite, strictly source-ordered sequence of Chunks
// via repeated calls to Next, terminated by io.EOF.
type Chunker interface {
	Next() (Chunk, error)
}

type rollingChunker struct {
	r      *bufio.Reader
	cfg    FilterConfig
	hash   rollhash.Hash
	offset uint64
	done   bool
}

func newRollingChunker(r ByteReader, cfg FilterConfig, hash rollhash.Hash) *rollingChunker {
	return &rollingChunker{r: bufio.NewReaderSize(r, 1<<20), cfg: cfg, hash: hash}
}

// isBoundary implements the documented rule: a byte position is a boundary
// when the low filter-bits bits of the rolling sum are all set.
func isBoundary(sum, mask uint32) bool {
	return sum&mask == mask
}

func (c *rollingChunker) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}

	min := c.cfg.MinChunkSize
	max := c.cfg.MaxChunkSize
	fastSkipEnd := min - c.cfg.WindowSize
	if fastSkipEnd < 0 {
		fastSkipEnd = 0
	}
	mask := c.cfg.FilterBits.Mask()

	var buf []byte
	start := c.offset

	for {
		b, err := c.r.ReadByte()
		if err == io.EOF {
			c.done = true
			if len(buf) == 0 {
				return Chunk{}, io.EOF
			}
			c.offset += uint64(len(buf))
			return Chunk{Offset: start, Data: buf}, nil
		}
		if err != nil {
			return Chunk{}, err
		}

		buf = append(buf, b)
		n := len(buf)

		boundary := false
		switch {
		case n <= fastSkipEnd:
			// Fast path: below the point where hashing could matter.
		case n < min:
			c.hash.Input(b)
		default:
			c.hash.Input(b)
			if isBoundary(c.hash.Sum(), mask) {
				boundary = true
			}
		}

		if boundary || n >= max {
			c.offset += uint64(n)
			c.hash.Reset()
			return Chunk{Offset: start, Data: buf}, nil
		}
	}
}

type fixedSizeChunker struct {
	r      *bufio.Reader
	size   int
	offset uint64
	done   bool
}

func newFixedSizeChunker(r ByteReader, size int) *fixedSizeChunker {
	return &fixedSizeChunker{r: bufio.NewReaderSize(r, 1<<20), size: size}
}

func (c *fixedSizeChunker) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}

	buf := make([]byte, c.size)
	n, err := io.ReadFull(c.r, buf)
	if n == 0 {
		c.done = true
		return Chunk{}, io.EOF
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		c.done = true
	} else if err != nil {
		return Chunk{}, err
	}

	start := c.offset
	c.offset += uint64(n)
	return Chunk{Offset: start, Data: buf[:n]}, nil
}
