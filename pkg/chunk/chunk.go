// Package chunk defines the chunk value types that flow through the
// compress and clone pipelines: a raw Chunk, a VerifiedChunk carrying its
// own hash, a CompressedChunk ready for archive storage, and an
// ArchiveChunk fetched from an archive awaiting verification.
package chunk

import (
	"fmt"

	"github.com/saworbit/chunkarchive/pkg/compression"
	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

// Chunk is an owned, uninterpreted byte buffer.
type Chunk struct {
	Data []byte
}

// VerifiedChunk is a Chunk together with the full-length hash of its bytes,
// computed once and carried forward so it never needs recomputation.
type VerifiedChunk struct {
	Chunk
	HashSum hashsum.Sum
}

// Verify computes the hash of data and wraps it as a VerifiedChunk.
func Verify(data []byte) VerifiedChunk {
	return VerifiedChunk{Chunk: Chunk{Data: data}, HashSum: hashsum.Digest(data)}
}

// CompressedChunk is a byte buffer plus its original (uncompressed) size
// and the compression algorithm used to produce it, if any. When the
// compressed form would not be smaller than the source, the source bytes
// are kept verbatim and Algorithm is compression.None.
type CompressedChunk struct {
	Data         []byte
	SourceSize   int
	Algorithm    compression.Algorithm
}

// TryCompress compresses vc's bytes with c; if the result is not smaller
// than the source, the source bytes are kept and the algorithm is
// compression.None (the rule that lets readers recognize "stored
// uncompressed" purely from size).
func TryCompress(vc VerifiedChunk, c compression.Compression) (CompressedChunk, error) {
	if c.Algorithm == compression.None {
		return CompressedChunk{Data: vc.Data, SourceSize: len(vc.Data), Algorithm: compression.None}, nil
	}

	compressed, err := c.Compress(vc.Data)
	if err != nil {
		return CompressedChunk{}, fmt.Errorf("chunk: compress: %w", err)
	}
	if len(compressed) >= len(vc.Data) {
		return CompressedChunk{Data: vc.Data, SourceSize: len(vc.Data), Algorithm: compression.None}, nil
	}
	return CompressedChunk{Data: compressed, SourceSize: len(vc.Data), Algorithm: c.Algorithm}, nil
}

// Decompress inverts TryCompress.
func (cc CompressedChunk) Decompress() ([]byte, error) {
	if cc.Algorithm == compression.None {
		return cc.Data, nil
	}
	out, err := compression.Decompress(cc.Algorithm, cc.Data)
	if err != nil {
		return nil, fmt.Errorf("chunk: decompress: %w", err)
	}
	return out, nil
}

// HashSumMismatchError reports that a fetched chunk's content hash did not
// match the hash its descriptor promised.
type HashSumMismatchError struct {
	Expected     hashsum.Sum
	Got          hashsum.Sum
	InvalidChunk []byte
}

func (e *HashSumMismatchError) Error() string {
	return fmt.Sprintf("chunk: hash mismatch: expected %s, got %s", e.Expected, e.Got)
}

// ArchiveChunk is a chunk fetched from an archive along with the hash its
// descriptor promises; it is unverified until Verify is called.
type ArchiveChunk struct {
	CompressedChunk
	ExpectedHash hashsum.Sum
}

// Verify decompresses the chunk and checks its content hash against
// ExpectedHash, returning a VerifiedChunk on success or a
// *HashSumMismatchError (carrying the offending bytes) on failure.
func (ac ArchiveChunk) Verify() (VerifiedChunk, error) {
	data, err := ac.Decompress()
	if err != nil {
		return VerifiedChunk{}, err
	}
	got := hashsum.Digest(data)
	if !got.Equal(ac.ExpectedHash) {
		return VerifiedChunk{}, &HashSumMismatchError{Expected: ac.ExpectedHash, Got: got, InvalidChunk: data}
	}
	return VerifiedChunk{Chunk: Chunk{Data: data}, HashSum: got}, nil
}
