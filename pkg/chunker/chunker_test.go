package chunker

import (
	"bytes"
	"io"
	"testing"
)

func pseudoRandomBytes(n int) []byte {
	out := make([]byte, n)
	var seed byte = 0xa3
	for v := 0; v < n; v++ {
		seed ^= seed * 4
		out[v] = seed ^ byte(v)
	}
	return out
}

func drainOffsets(t *testing.T, c Chunker) []uint64 {
	t.Helper()
	var offsets []uint64
	var reassembled []byte
	for {
		ch, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		offsets = append(offsets, ch.Offset)
		reassembled = append(reassembled, ch.Data...)
	}
	return append(offsets, uint64(len(reassembled)))
}

// oneByteReader forces ReadByte-driven chunkers to pull the underlying
// source one byte at a time, regardless of its own internal granularity.
type oneByteReader struct {
	data []byte
	pos  int
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

func TestChunkerReassemblesExactly(t *testing.T) {
	data := pseudoRandomBytes(10000)
	cfg := Config{Algorithm: RollSum, Filter: FilterConfig{
		FilterBits: FilterBits(5), MinChunkSize: 3, MaxChunkSize: 640, WindowSize: 5,
	}}
	c := cfg.NewChunker(bytes.NewReader(data))

	var out []byte
	for {
		ch, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, ch.Data...)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("reassembled bytes do not match source")
	}
}

func TestChunkerDeterministicAcrossReadGranularity(t *testing.T) {
	data := pseudoRandomBytes(10000)
	cfg := Config{Algorithm: RollSum, Filter: FilterConfig{
		FilterBits: FilterBits(10), MinChunkSize: 20, MaxChunkSize: 600, WindowSize: 10,
	}}

	offsetsBulk := drainOffsets(t, cfg.NewChunker(bytes.NewReader(data)))
	offsetsOneByte := drainOffsets(t, cfg.NewChunker(&oneByteReader{data: data}))

	if len(offsetsBulk) != len(offsetsOneByte) {
		t.Fatalf("different chunk counts: bulk=%d one-byte=%d", len(offsetsBulk), len(offsetsOneByte))
	}
	for i := range offsetsBulk {
		if offsetsBulk[i] != offsetsOneByte[i] {
			t.Fatalf("offset %d diverged: bulk=%d one-byte=%d", i, offsetsBulk[i], offsetsOneByte[i])
		}
	}
}

func TestChunkerEmptySourceProducesNoChunks(t *testing.T) {
	cfg := Config{Algorithm: RollSum, Filter: FilterConfig{
		FilterBits: FilterBits(5), MinChunkSize: 3, MaxChunkSize: 640, WindowSize: 5,
	}}
	c := cfg.NewChunker(bytes.NewReader(nil))
	if _, err := c.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF for empty source, got %v", err)
	}
}

func TestChunkerSourceSmallerThanWindow(t *testing.T) {
	cfg := Config{Algorithm: RollSum, Filter: FilterConfig{
		FilterBits: FilterBits(5), MinChunkSize: 0, MaxChunkSize: 40, WindowSize: 10,
	}}
	data := []byte{1, 2, 3, 4, 5}
	c := cfg.NewChunker(bytes.NewReader(data))

	ch, err := c.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.Data) != 5 {
		t.Fatalf("expected a single 5-byte chunk, got %d bytes", len(ch.Data))
	}
	if _, err := c.Next(); err != io.EOF {
		t.Fatal("expected exactly one chunk")
	}
}

func TestChunkerSourceSmallerThanMinChunkSize(t *testing.T) {
	cfg := Config{Algorithm: RollSum, Filter: FilterConfig{
		FilterBits: FilterBits(5), MinChunkSize: 10, MaxChunkSize: 40, WindowSize: 5,
	}}
	data := []byte{1, 2, 3, 4, 5}
	c := cfg.NewChunker(bytes.NewReader(data))

	ch, err := c.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.Data) != 5 {
		t.Fatalf("expected a single 5-byte chunk, got %d bytes", len(ch.Data))
	}
}

func TestFixedSizeChunker(t *testing.T) {
	data := pseudoRandomBytes(25)
	cfg := Config{Algorithm: FixedSize, FixedChunkSize: 10}
	c := cfg.NewChunker(bytes.NewReader(data))

	var got []Chunk
	for {
		ch, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, ch)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if len(got[0].Data) != 10 || len(got[1].Data) != 10 || len(got[2].Data) != 5 {
		t.Fatalf("unexpected chunk sizes: %d %d %d", len(got[0].Data), len(got[1].Data), len(got[2].Data))
	}
	if got[2].Offset != 20 {
		t.Fatalf("expected final chunk offset 20, got %d", got[2].Offset)
	}
}
