package config

import (
	"os"
	"testing"
	"time"

	"github.com/saworbit/chunkarchive/pkg/chunker"
	"github.com/saworbit/chunkarchive/pkg/compression"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunker.Algorithm != chunker.BuzHash {
		t.Errorf("expected default chunker algorithm BuzHash, got %v", cfg.Chunker.Algorithm)
	}
	if cfg.HashLength != 32 {
		t.Errorf("expected default hash length 32, got %d", cfg.HashLength)
	}
	if cfg.Compression.Algorithm != compression.Zstd {
		t.Errorf("expected default compression Zstd, got %v", cfg.Compression.Algorithm)
	}
	if cfg.WorkerBufferDepth != 0 {
		t.Errorf("expected default worker buffer depth 0 (automatic), got %d", cfg.WorkerBufferDepth)
	}
	if cfg.HTTPRetryCount != 5 {
		t.Errorf("expected default http retry count 5, got %d", cfg.HTTPRetryCount)
	}
	if cfg.HTTPRetryDelay != 500*time.Millisecond {
		t.Errorf("expected default http retry delay 500ms, got %s", cfg.HTTPRetryDelay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	vars := map[string]string{
		"CHUNKARCHIVE_CHUNKER_ALGO":        "fixed_size",
		"CHUNKARCHIVE_FIXED_CHUNK_SIZE":    "4096",
		"CHUNKARCHIVE_HASH_LENGTH":         "16",
		"CHUNKARCHIVE_COMPRESSION":         "brotli",
		"CHUNKARCHIVE_COMPRESSION_LEVEL":   "5",
		"CHUNKARCHIVE_WORKER_BUFFER_DEPTH": "8",
		"CHUNKARCHIVE_HTTP_RETRY_COUNT":    "3",
		"CHUNKARCHIVE_HTTP_RETRY_DELAY":    "2s",
		"CHUNKARCHIVE_APP_VERSION":         "1.2.3",
	}
	for k, v := range vars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range vars {
			os.Unsetenv(k)
		}
	}()

	cfg := LoadFromEnv()

	if cfg.Chunker.Algorithm != chunker.FixedSize {
		t.Errorf("expected chunker algorithm FixedSize, got %v", cfg.Chunker.Algorithm)
	}
	if cfg.Chunker.FixedChunkSize != 4096 {
		t.Errorf("expected fixed chunk size 4096, got %d", cfg.Chunker.FixedChunkSize)
	}
	if cfg.HashLength != 16 {
		t.Errorf("expected hash length 16, got %d", cfg.HashLength)
	}
	if cfg.Compression.Algorithm != compression.Brotli {
		t.Errorf("expected compression Brotli, got %v", cfg.Compression.Algorithm)
	}
	if cfg.Compression.Level != 5 {
		t.Errorf("expected compression level 5, got %d", cfg.Compression.Level)
	}
	if cfg.WorkerBufferDepth != 8 {
		t.Errorf("expected worker buffer depth 8, got %d", cfg.WorkerBufferDepth)
	}
	if cfg.HTTPRetryCount != 3 {
		t.Errorf("expected http retry count 3, got %d", cfg.HTTPRetryCount)
	}
	if cfg.HTTPRetryDelay != 2*time.Second {
		t.Errorf("expected http retry delay 2s, got %s", cfg.HTTPRetryDelay)
	}
	if cfg.ApplicationVersion != "1.2.3" {
		t.Errorf("expected application version 1.2.3, got %s", cfg.ApplicationVersion)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func() *Config
		wantErr bool
	}{
		{"valid default config", DefaultConfig, false},
		{"invalid hash length zero", func() *Config {
			c := DefaultConfig()
			c.HashLength = 0
			return c
		}, true},
		{"invalid hash length too large", func() *Config {
			c := DefaultConfig()
			c.HashLength = 65
			return c
		}, true},
		{"invalid fixed chunk size", func() *Config {
			c := DefaultConfig()
			c.Chunker.Algorithm = chunker.FixedSize
			c.Chunker.FixedChunkSize = 0
			return c
		}, true},
		{"invalid chunk bounds", func() *Config {
			c := DefaultConfig()
			c.Chunker.Filter.MinChunkSize = 100
			c.Chunker.Filter.MaxChunkSize = 10
			return c
		}, true},
		{"invalid compression level", func() *Config {
			c := DefaultConfig()
			c.Compression.Level = c.Compression.Algorithm.MaxLevel() + 1
			return c
		}, true},
		{"negative worker buffer depth", func() *Config {
			c := DefaultConfig()
			c.WorkerBufferDepth = -1
			return c
		}, true},
		{"negative http retry count", func() *Config {
			c := DefaultConfig()
			c.HTTPRetryCount = -1
			return c
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg().Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
