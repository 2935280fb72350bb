package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/saworbit/chunkarchive/pkg/chunk"
	"github.com/saworbit/chunkarchive/pkg/chunker"
	"github.com/saworbit/chunkarchive/pkg/compression"
	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

// CreateOptions parameterizes CreateArchive.
type CreateOptions struct {
	ChunkerConfig      chunker.Config
	NumChunkBuffers    int
	ChunkHashLength    int
	Compression        compression.Compression
	ApplicationVersion string
	// Metadata is a free-form key->bytes map carried verbatim into the
	// archive dictionary and returned unchanged by Archive.Metadata.
	Metadata map[string][]byte
}

// CreateResult summarizes a completed CreateArchive call.
type CreateResult struct {
	SourceChecksum hashsum.Sum
	SourceLength   uint64
	UniqueChunks   int
	TotalChunks    int
}

// CreateArchive chunks input, deduplicates and compresses each unique
// chunk, and writes a complete archive (header followed by chunk payloads
// in first-seen order) to output.
//
// Chunking is inherently sequential (each chunk's boundary depends on the
// rolling hash state left by the one before it), so chunks are read from
// input one at a time, and each chunk's full-length hash is computed on
// that same loop and used to deduplicate it. Compressing a unique chunk is
// CPU-bound and independent of every other chunk, so compression is fanned
// out across a worker pool bounded by NumChunkBuffers (0 selects 2x CPU
// count); results are written to the temporary chunk file in original
// order regardless of completion order.
func CreateArchive(ctx context.Context, input io.Reader, output io.Writer, opts CreateOptions) (CreateResult, error) {
	numBuffers := opts.NumChunkBuffers
	if numBuffers < 1 {
		numBuffers = 2 * runtime.NumCPU()
	}
	hashLength := opts.ChunkHashLength
	if hashLength <= 0 || hashLength > hashsum.MaxLength {
		hashLength = hashsum.MaxLength
	}

	sourceHasher, err := blake2b.New512(nil)
	if err != nil {
		return CreateResult{}, fmt.Errorf("archive: source hasher: %w", err)
	}

	type uniqueChunk struct {
		hash hashsum.Sum
		data []byte
	}
	var uniqueChunks []uniqueChunk
	chunkIndexByHash := make(map[string]int)
	var chunkOrder []int
	var sourceLength uint64

	c := opts.ChunkerConfig.NewChunker(input)
	for {
		ck, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return CreateResult{}, fmt.Errorf("archive: chunking: %w", err)
		}

		sourceHasher.Write(ck.Data)
		sourceLength += uint64(len(ck.Data))

		full := hashsum.Digest(ck.Data)
		key := string(full.Bytes())
		idx, ok := chunkIndexByHash[key]
		if !ok {
			idx = len(uniqueChunks)
			chunkIndexByHash[key] = idx
			uniqueChunks = append(uniqueChunks, uniqueChunk{hash: full, data: ck.Data})
		}
		chunkOrder = append(chunkOrder, idx)
	}

	compressed := make([]chunk.CompressedChunk, len(uniqueChunks))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, numBuffers)
	for i, uc := range uniqueChunks {
		i, uc := i, uc
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
		}
		g.Go(func() error {
			defer func() { <-sem }()
			if err := gctx.Err(); err != nil {
				return err
			}
			vc := chunk.VerifiedChunk{Chunk: chunk.Chunk{Data: uc.data}, HashSum: uc.hash}
			cc, err := chunk.TryCompress(vc, opts.Compression)
			if err != nil {
				return fmt.Errorf("archive: compressing chunk: %w", err)
			}
			compressed[i] = cc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CreateResult{}, err
	}

	tempFile, err := os.CreateTemp("", "chunkarchive-*.tmp")
	if err != nil {
		return CreateResult{}, fmt.Errorf("archive: creating temp chunk file: %w", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	descriptors := make([]dictChunkDescriptor, len(uniqueChunks))
	var archiveOffset uint64
	for i, uc := range uniqueChunks {
		cc := compressed[i]
		if _, err := tempFile.Write(cc.Data); err != nil {
			return CreateResult{}, fmt.Errorf("archive: writing chunk data: %w", err)
		}
		descriptors[i] = dictChunkDescriptor{
			checksum:      uc.hash.Truncate(hashLength),
			archiveSize:   uint32(len(cc.Data)),
			archiveOffset: archiveOffset,
			sourceSize:    uint32(len(uc.data)),
		}
		archiveOffset += uint64(len(cc.Data))
	}

	rebuildOrder := make([]uint32, len(chunkOrder))
	for i, idx := range chunkOrder {
		rebuildOrder[i] = uint32(idx)
	}

	sourceChecksum := hashsum.New(sourceHasher.Sum(nil))

	dict := dictionary{
		sourceChecksum:     sourceChecksum,
		sourceTotalSize:    sourceLength,
		chunkDescriptors:   descriptors,
		rebuildOrder:       rebuildOrder,
		applicationVersion: opts.ApplicationVersion,
		compressionAlgo:    opts.Compression.Algorithm,
		compressionLevel:   uint32(opts.Compression.Level),
		chunkingAlgorithm:  opts.ChunkerConfig.Algorithm,
		chunkFilterBits:    opts.ChunkerConfig.Filter.FilterBits.Bits(),
		minChunkSize:       uint64(opts.ChunkerConfig.Filter.MinChunkSize),
		maxChunkSize:       chunkerMaxChunkSize(opts.ChunkerConfig),
		rollingHashWindow:  uint32(opts.ChunkerConfig.Filter.WindowSize),
		chunkHashLength:    uint32(hashLength),
		metadata:           opts.Metadata,
	}

	header, err := buildHeader(dict, 0)
	if err != nil {
		return CreateResult{}, fmt.Errorf("archive: building header: %w", err)
	}
	if _, err := output.Write(header); err != nil {
		return CreateResult{}, fmt.Errorf("archive: writing header: %w", err)
	}

	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return CreateResult{}, fmt.Errorf("archive: rewinding temp chunk file: %w", err)
	}
	if _, err := io.Copy(output, tempFile); err != nil {
		return CreateResult{}, fmt.Errorf("archive: copying chunk data: %w", err)
	}

	return CreateResult{
		SourceChecksum: sourceChecksum,
		SourceLength:   sourceLength,
		UniqueChunks:   len(uniqueChunks),
		TotalChunks:    len(chunkOrder),
	}, nil
}

func chunkerMaxChunkSize(cfg chunker.Config) uint64 {
	if cfg.Algorithm == chunker.FixedSize {
		return uint64(cfg.FixedChunkSize)
	}
	return uint64(cfg.Filter.MaxChunkSize)
}
