// Package config holds the environment- and flag-driven settings shared by
// the chunkarchive CLI's compress, clone, and watch subcommands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/saworbit/chunkarchive/pkg/chunker"
	"github.com/saworbit/chunkarchive/pkg/compression"
	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

// Config holds the tunables a chunkarchive run needs: how to cut chunks,
// how to identify and compress them, how much concurrency to use, and how
// patient to be with a flaky remote source.
type Config struct {
	// Chunker selects the content-defined chunking algorithm and its
	// parameters, or a fixed chunk size.
	Chunker chunker.Config

	// HashLength truncates each chunk's full Blake2b-512 checksum to this
	// many bytes before it is used as a dictionary or index key.
	HashLength int

	// Compression selects the codec and level applied to unique chunks
	// before they are written to an archive.
	Compression compression.Compression

	// WorkerBufferDepth bounds concurrent per-chunk CPU work (hashing,
	// compression, decompression, verification). 0 selects an automatic
	// value (2x CPU count, minimum 1).
	WorkerBufferDepth int

	// HTTPRetryCount is how many additional attempts an HTTP range reader
	// makes after a failed transfer before giving up.
	HTTPRetryCount int

	// HTTPRetryDelay is the pause between HTTP retry attempts.
	HTTPRetryDelay time.Duration

	// ApplicationVersion is recorded in every archive this run creates.
	ApplicationVersion string

	// WatchDebounce is how long the watch subcommand waits after a
	// filesystem event before re-archiving, to avoid capturing a partial
	// write. Carried over from the corpus's capture-debounce knob.
	WatchDebounce time.Duration
}

// DefaultConfig returns the baseline configuration: BuzHash chunking at a
// 64KiB target average, Zstd compression at its default level, truncated
// 32-byte chunk identifiers, and automatic worker sizing.
func DefaultConfig() *Config {
	return &Config{
		Chunker: chunker.Config{
			Algorithm: chunker.BuzHash,
			Filter:    chunker.DefaultFilterConfig(),
		},
		HashLength:         32,
		Compression:        compression.Compression{Algorithm: compression.Zstd, Level: 3},
		WorkerBufferDepth:  0,
		HTTPRetryCount:     5,
		HTTPRetryDelay:     500 * time.Millisecond,
		ApplicationVersion: "dev",
		WatchDebounce:      100 * time.Millisecond,
	}
}

// LoadFromEnv starts from DefaultConfig and overrides it with any
// CHUNKARCHIVE_* environment variables that are set.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("CHUNKARCHIVE_CHUNKER_ALGO"); v != "" {
		if algo, err := parseChunkerAlgorithm(v); err == nil {
			cfg.Chunker.Algorithm = algo
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_CHUNK_MIN_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunker.Filter.MinChunkSize = n
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_CHUNK_AVG_BYTES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Chunker.Filter.FilterBits = chunker.FilterBitsFromSize(uint32(n))
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_CHUNK_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunker.Filter.MaxChunkSize = n
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_CHUNK_HASH_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunker.Filter.WindowSize = n
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_FIXED_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunker.FixedChunkSize = n
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_HASH_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HashLength = n
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_COMPRESSION"); v != "" {
		if algo, err := parseCompressionAlgorithm(v); err == nil {
			cfg.Compression.Algorithm = algo
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_COMPRESSION_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Compression.Level = n
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_WORKER_BUFFER_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerBufferDepth = n
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_HTTP_RETRY_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTPRetryCount = n
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_HTTP_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTPRetryDelay = d
		}
	}
	if v := os.Getenv("CHUNKARCHIVE_APP_VERSION"); v != "" {
		cfg.ApplicationVersion = v
	}
	if v := os.Getenv("CHUNKARCHIVE_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WatchDebounce = d
		}
	}

	return cfg
}

func parseChunkerAlgorithm(s string) (chunker.Algorithm, error) {
	switch s {
	case "buzhash":
		return chunker.BuzHash, nil
	case "rollsum":
		return chunker.RollSum, nil
	case "fixed_size", "fixed":
		return chunker.FixedSize, nil
	default:
		return 0, fmt.Errorf("config: unknown chunker algorithm %q", s)
	}
}

func parseCompressionAlgorithm(s string) (compression.Algorithm, error) {
	switch s {
	case "none":
		return compression.None, nil
	case "lzma":
		return compression.Lzma, nil
	case "zstd":
		return compression.Zstd, nil
	case "brotli":
		return compression.Brotli, nil
	default:
		return 0, fmt.Errorf("config: unknown compression algorithm %q", s)
	}
}

// Validate checks that the configuration describes a usable pipeline.
func (c *Config) Validate() error {
	if c.HashLength <= 0 || c.HashLength > hashsum.MaxLength {
		return fmt.Errorf("config: hash length must be between 1 and %d, got %d", hashsum.MaxLength, c.HashLength)
	}

	switch c.Chunker.Algorithm {
	case chunker.FixedSize:
		if c.Chunker.FixedChunkSize <= 0 {
			return fmt.Errorf("config: fixed chunk size must be positive, got %d", c.Chunker.FixedChunkSize)
		}
	case chunker.RollSum, chunker.BuzHash:
		f := c.Chunker.Filter
		if f.MinChunkSize < 0 || f.MaxChunkSize < 0 {
			return fmt.Errorf("config: chunk sizes must not be negative (min=%d max=%d)", f.MinChunkSize, f.MaxChunkSize)
		}
		if f.MaxChunkSize > 0 && f.MinChunkSize > f.MaxChunkSize {
			return fmt.Errorf("config: chunk min size cannot exceed max (min=%d max=%d)", f.MinChunkSize, f.MaxChunkSize)
		}
		if f.WindowSize <= 0 {
			return fmt.Errorf("config: chunk hash window must be positive, got %d", f.WindowSize)
		}
	default:
		return fmt.Errorf("config: unknown chunker algorithm %d", c.Chunker.Algorithm)
	}

	if c.Compression.Level < 0 || c.Compression.Level > c.Compression.Algorithm.MaxLevel() {
		return fmt.Errorf("config: compression level %d out of range for %s (max %d)",
			c.Compression.Level, c.Compression.Algorithm, c.Compression.Algorithm.MaxLevel())
	}

	if c.WorkerBufferDepth < 0 {
		return fmt.Errorf("config: worker buffer depth must not be negative, got %d", c.WorkerBufferDepth)
	}

	if c.HTTPRetryCount < 0 {
		return fmt.Errorf("config: http retry count must not be negative, got %d", c.HTTPRetryCount)
	}

	if c.HTTPRetryDelay < 0 {
		return fmt.Errorf("config: http retry delay must not be negative, got %s", c.HTTPRetryDelay)
	}

	if c.WatchDebounce < 0 {
		return fmt.Errorf("config: watch debounce must not be negative, got %s", c.WatchDebounce)
	}

	return nil
}
