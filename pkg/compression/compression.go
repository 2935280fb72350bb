// Package compression provides a uniform compress/decompress shim over the
// pluggable codecs an archive may use per chunk: Brotli, LZMA, and Zstd.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz/lzma"
)

// Algorithm identifies a compression codec.
type Algorithm int

const (
	None Algorithm = iota
	Lzma
	Zstd
	Brotli
)

func (a Algorithm) String() string {
	switch a {
	case Lzma:
		return "lzma"
	case Zstd:
		return "zstd"
	case Brotli:
		return "brotli"
	default:
		return "none"
	}
}

// MaxLevel returns the highest valid compression level for a.
func (a Algorithm) MaxLevel() int {
	switch a {
	case Lzma:
		return 9
	case Zstd:
		return 22
	case Brotli:
		return 11
	default:
		return 0
	}
}

// Compression pairs an algorithm with its level.
type Compression struct {
	Algorithm Algorithm
	Level     int
}

// ErrLevelOutOfRange reports a compression level outside [0, MaxLevel()].
type ErrLevelOutOfRange struct {
	Algorithm Algorithm
	Level     int
}

func (e *ErrLevelOutOfRange) Error() string {
	return fmt.Sprintf("compression: level %d out of range for %s (max %d)", e.Level, e.Algorithm, e.Algorithm.MaxLevel())
}

// New validates level against algorithm's range and returns a Compression.
func New(algorithm Algorithm, level int) (Compression, error) {
	if level < 0 || level > algorithm.MaxLevel() {
		return Compression{}, &ErrLevelOutOfRange{Algorithm: algorithm, Level: level}
	}
	return Compression{Algorithm: algorithm, Level: level}, nil
}

// Compress returns the compressed form of src under c.
func (c Compression) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer

	switch c.Algorithm {
	case Brotli:
		w := brotli.NewWriterLevel(&buf, clampBrotliLevel(c.Level))
		if _, err := w.Write(src); err != nil {
			return nil, fmt.Errorf("compression: brotli write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compression: brotli close: %w", err)
		}

	case Zstd:
		w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstdLevel(c.Level)))
		if err != nil {
			return nil, fmt.Errorf("compression: zstd writer: %w", err)
		}
		if _, err := w.Write(src); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("compression: zstd write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compression: zstd close: %w", err)
		}

	case Lzma:
		w, err := lzma.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("compression: lzma writer: %w", err)
		}
		if _, err := w.Write(src); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("compression: lzma write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compression: lzma close: %w", err)
		}

	default:
		return append([]byte(nil), src...), nil
	}

	return buf.Bytes(), nil
}

// Decompress inverts Compress for the given algorithm.
func Decompress(algorithm Algorithm, compressed []byte) ([]byte, error) {
	switch algorithm {
	case Brotli:
		r := brotli.NewReader(bytes.NewReader(compressed))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("compression: brotli decode: %w", err)
		}
		return out, nil

	case Zstd:
		r, err := zstd.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("compression: zstd reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("compression: zstd decode: %w", err)
		}
		return out, nil

	case Lzma:
		r, err := lzma.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("compression: lzma reader: %w", err)
		}
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("compression: lzma decode: %w", err)
		}
		return out, nil

	default:
		return append([]byte(nil), compressed...), nil
	}
}

func clampBrotliLevel(level int) int {
	if level <= 0 {
		return brotli.DefaultCompression
	}
	if level > 11 {
		return 11
	}
	return level
}

func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
