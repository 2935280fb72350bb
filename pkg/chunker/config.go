// Package chunker implements the streaming content-defined chunker: a
// boundary detector that consumes a byte stream and produces (offset,
// bytes) pairs using a rolling hash (RollSum or BuzHash) or a fixed-size
// cut, with minimum/maximum size clamps.
package chunker

import (
	"math/bits"

	"github.com/saworbit/chunkarchive/pkg/rollhash"
)

// Algorithm selects the chunking strategy.
type Algorithm int

const (
	BuzHash Algorithm = iota
	RollSum
	FixedSize
)

func (a Algorithm) String() string {
	switch a {
	case BuzHash:
		return "buzhash"
	case RollSum:
		return "rollsum"
	case FixedSize:
		return "fixed_size"
	default:
		return "unknown"
	}
}

// FilterBits controls the average chunk size for rolling-hash algorithms:
// a boundary is declared when the low Bits bits of the rolling sum are all
// set, giving a target average chunk size of 2^(Bits+1).
type FilterBits uint32

// FilterBitsFromSize picks the filter width whose target average is the
// power of two nearest to (and not exceeding) size.
func FilterBitsFromSize(size uint32) FilterBits {
	if size < 2 {
		return FilterBits(0)
	}
	return FilterBits(bits.Len32(size) - 2)
}

func (f FilterBits) Bits() uint32 { return uint32(f) }

// Mask returns the low-bits mask used by the boundary rule.
func (f FilterBits) Mask() uint32 {
	if f == 0 {
		return 0
	}
	return (uint32(1) << uint32(f)) - 1
}

// TargetAverage returns the expected average chunk size for this filter
// width.
func (f FilterBits) TargetAverage() uint32 {
	return uint32(1) << (uint32(f) + 1)
}

// FilterConfig parameterizes a rolling-hash chunker.
type FilterConfig struct {
	FilterBits    FilterBits
	MinChunkSize  int
	MaxChunkSize  int
	WindowSize    int
}

// DefaultFilterConfig mirrors the upstream default: 64KiB average, 16KiB
// minimum, 16MiB maximum, 64-byte window.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		FilterBits:   FilterBitsFromSize(64 * 1024),
		MinChunkSize: 16 * 1024,
		MaxChunkSize: 16 * 1024 * 1024,
		WindowSize:   64,
	}
}

func (c FilterConfig) normalize() FilterConfig {
	out := c
	if out.WindowSize <= 0 {
		out.WindowSize = 64
	}
	if out.MinChunkSize < 0 {
		out.MinChunkSize = 0
	}
	if out.MaxChunkSize < out.MinChunkSize {
		out.MaxChunkSize = out.MinChunkSize
	}
	if out.MaxChunkSize == 0 {
		out.MaxChunkSize = out.MinChunkSize + out.WindowSize + 1
	}
	return out
}

// Config selects an algorithm and its parameters. Exactly one of Filter or
// FixedChunkSize is meaningful, depending on Algorithm.
type Config struct {
	Algorithm      Algorithm
	Filter         FilterConfig
	FixedChunkSize int
}

// NewChunker constructs a Chunker (or FixedSizeChunker, wrapped behind the
// same interface) reading from r.
func (c Config) NewChunker(r ByteReader) Chunker {
	switch c.Algorithm {
	case FixedSize:
		size := c.FixedChunkSize
		if size <= 0 {
			size = 1024 * 1024
		}
		return newFixedSizeChunker(r, size)
	case RollSum:
		fc := c.Filter.normalize()
		return newRollingChunker(r, fc, rollhash.NewRollSum(fc.WindowSize))
	default:
		fc := c.Filter.normalize()
		return newRollingChunker(r, fc, rollhash.NewBuzHash(fc.WindowSize))
	}
}
