package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/saworbit/chunkarchive/internal/metrics"
	"github.com/saworbit/chunkarchive/pkg/archive"
	"github.com/saworbit/chunkarchive/pkg/compression"
	"github.com/saworbit/chunkarchive/pkg/config"
)

func newCompressCmd() *cobra.Command {
	var (
		compressionName string
		compressionLvl  int
		hashLength      int
		bufferDepth     int
		metricsAddr     string
	)

	cmd := &cobra.Command{
		Use:   "compress <source> <archive>",
		Short: "Chunk a source file and write a deduplicated archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(c *config.Config) {
				if cmd.Flags().Changed("compression") {
					if algo, perr := parseCompressionFlag(compressionName); perr == nil {
						c.Compression.Algorithm = algo
					}
				}
				if cmd.Flags().Changed("level") {
					c.Compression.Level = compressionLvl
				}
				if cmd.Flags().Changed("hash-length") {
					c.HashLength = hashLength
				}
				if cmd.Flags().Changed("buffer-depth") {
					c.WorkerBufferDepth = bufferDepth
				}
			})
			if err != nil {
				return err
			}

			if metricsAddr != "" {
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				go func() {
					if err := metrics.Serve(ctx, metricsAddr, log.Default()); err != nil {
						log.Printf("[Metrics] server exited: %v", err)
					}
				}()
			}

			return runCompress(args[0], args[1], cfg)
		},
	}

	cmd.Flags().StringVar(&compressionName, "compression", "zstd", "Compression algorithm (none, lzma, zstd, brotli)")
	cmd.Flags().IntVar(&compressionLvl, "level", 3, "Compression level")
	cmd.Flags().IntVar(&hashLength, "hash-length", 32, "Truncated chunk hash length in bytes")
	cmd.Flags().IntVar(&bufferDepth, "buffer-depth", 0, "Worker pool depth (0 = automatic)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address while running")

	return cmd
}

func runCompress(sourcePath, archivePath string, cfg *config.Config) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", sourcePath, err)
	}
	if err := ensureReadable(sourcePath, info); err != nil {
		return err
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", sourcePath, err)
	}
	defer src.Close()

	dst, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", archivePath, err)
	}
	defer dst.Close()

	start := time.Now()
	result, err := archive.CreateArchive(context.Background(), src, dst, archive.CreateOptions{
		ChunkerConfig:      cfg.Chunker,
		NumChunkBuffers:    cfg.WorkerBufferDepth,
		ChunkHashLength:    cfg.HashLength,
		Compression:        cfg.Compression,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveCompress(start, outcome)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	if archiveInfo, statErr := dst.Stat(); statErr == nil {
		metrics.SetArchiveSize(archiveInfo.Size())
	}
	for i := 0; i < result.UniqueChunks; i++ {
		metrics.ObserveChunk(false)
	}
	for i := 0; i < result.TotalChunks-result.UniqueChunks; i++ {
		metrics.ObserveChunk(true)
	}

	log.Printf("[Compress] %s -> %s: %d bytes, %d/%d unique chunks, checksum %s",
		sourcePath, archivePath, result.SourceLength, result.UniqueChunks, result.TotalChunks, result.SourceChecksum)
	return nil
}

func parseCompressionFlag(s string) (compression.Algorithm, error) {
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
		return 0, fmt.Errorf("unknown compression algorithm %q", s)
	}
}
