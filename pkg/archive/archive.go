// Package archive reads and writes the chunkarchive container format: a
// header carrying a chunk dictionary, followed by a run of (optionally
// compressed) chunk payloads addressed by the descriptors in that
// dictionary.
package archive

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/saworbit/chunkarchive/pkg/archiveerr"
	"github.com/saworbit/chunkarchive/pkg/chunk"
	"github.com/saworbit/chunkarchive/pkg/chunker"
	"github.com/saworbit/chunkarchive/pkg/chunkindex"
	"github.com/saworbit/chunkarchive/pkg/compression"
	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

// Range identifies a byte span to fetch: [Offset, Offset+Length).
type Range struct {
	Offset uint64
	Length uint64
}

// ChunkResult is one item of a ReadChunks stream, tagged with its position
// in the requested range list so callers can match it back to a
// descriptor.
type ChunkResult struct {
	Index int
	Data  []byte
	Err   error
}

// ByteRangeReader fetches an exact byte range, failing with
// archiveerr.ErrUnexpectedEnd if fewer bytes are available than requested.
type ByteRangeReader interface {
	ReadAt(ctx context.Context, offset, length uint64) ([]byte, error)
}

// ChunkReader is a ByteRangeReader that can additionally fetch several
// ranges as an ordered stream, coalescing adjacent ones where the
// implementation supports it (see pkg/archivesource).
type ChunkReader interface {
	ByteRangeReader
	ReadChunks(ctx context.Context, ranges []Range) (<-chan ChunkResult, error)
}

// ChunkDescriptor locates one unique chunk's payload within the archive.
type ChunkDescriptor struct {
	Checksum      hashsum.Sum
	ArchiveSize   uint32
	ArchiveOffset uint64
	SourceSize    uint32
}

// ArchiveEndOffset returns the offset one past this chunk's payload.
func (cd ChunkDescriptor) ArchiveEndOffset() uint64 {
	return cd.ArchiveOffset + uint64(cd.ArchiveSize)
}

// SourceChunk pairs a chunk descriptor with its offset in the
// reconstructed source, as produced by IterSourceChunks.
type SourceChunk struct {
	Offset     uint64
	Descriptor *ChunkDescriptor
}

// Archive is a parsed, readable chunkarchive container.
type Archive struct {
	reader               ChunkReader
	chunkDescriptors     []ChunkDescriptor
	sourceOrder          []int
	headerSize           int
	headerChecksum       hashsum.Sum
	chunkCompression     *compression.Compression
	createdByAppVersion  string
	chunkDataOffset      uint64
	sourceTotalSize      uint64
	sourceChecksum       hashsum.Sum
	chunkerConfig        chunker.Config
	chunkHashLength      int
	metadata             map[string][]byte
}

// TryInit reads and validates the header from r, returning a ready-to-use
// Archive. It performs exactly two reads: the fixed-size pre-header (to
// learn the dictionary length) and then the remainder of the header up to
// and including the trailing checksum.
func TryInit(ctx context.Context, r ChunkReader) (*Archive, error) {
	pre, err := r.ReadAt(ctx, 0, uint64(PreHeaderSize))
	if err != nil {
		return nil, fmt.Errorf("archive: %w: %v", archiveerr.ErrReaderError, err)
	}
	if err := verifyMagic(pre); err != nil {
		return nil, err
	}

	dictSize := binary.LittleEndian.Uint64(pre[len(Magic):])
	rest, err := r.ReadAt(ctx, uint64(PreHeaderSize), dictSize+8+uint64(ChecksumSize))
	if err != nil {
		return nil, fmt.Errorf("archive: %w: %v", archiveerr.ErrReaderError, err)
	}

	header := append(append([]byte(nil), pre...), rest...)
	dict, chunkDataOffset, checksum, err := parseHeader(header, dictSize)
	if err != nil {
		return nil, err
	}

	descriptors := make([]ChunkDescriptor, len(dict.chunkDescriptors))
	for i, d := range dict.chunkDescriptors {
		descriptors[i] = ChunkDescriptor{
			Checksum:      d.checksum,
			ArchiveSize:   d.archiveSize,
			ArchiveOffset: chunkDataOffset + d.archiveOffset,
			SourceSize:    d.sourceSize,
		}
	}

	sourceOrder := make([]int, len(dict.rebuildOrder))
	for i, v := range dict.rebuildOrder {
		sourceOrder[i] = int(v)
	}

	chunkerConfig, err := chunkerConfigFromDictionary(dict)
	if err != nil {
		return nil, err
	}

	var chunkCompression *compression.Compression
	if dict.compressionAlgo != compression.None {
		c, err := compression.New(dict.compressionAlgo, int(dict.compressionLevel))
		if err != nil {
			return nil, fmt.Errorf("archive: %w: %v", archiveerr.ErrInvalidArchive, err)
		}
		chunkCompression = &c
	}

	return &Archive{
		reader:              r,
		chunkDescriptors:    descriptors,
		sourceOrder:         sourceOrder,
		headerSize:          len(header),
		headerChecksum:      hashsum.New(checksum),
		chunkCompression:    chunkCompression,
		createdByAppVersion: dict.applicationVersion,
		chunkDataOffset:     chunkDataOffset,
		sourceTotalSize:     dict.sourceTotalSize,
		sourceChecksum:      dict.sourceChecksum,
		chunkerConfig:       chunkerConfig,
		chunkHashLength:     int(dict.chunkHashLength),
		metadata:            dict.metadata,
	}, nil
}

func chunkerConfigFromDictionary(d dictionary) (chunker.Config, error) {
	filter := chunker.FilterConfig{
		FilterBits:   chunker.FilterBits(d.chunkFilterBits),
		MinChunkSize: int(d.minChunkSize),
		MaxChunkSize: int(d.maxChunkSize),
		WindowSize:   int(d.rollingHashWindow),
	}
	switch d.chunkingAlgorithm {
	case chunker.FixedSize:
		return chunker.Config{Algorithm: chunker.FixedSize, FixedChunkSize: int(d.maxChunkSize)}, nil
	case chunker.RollSum:
		return chunker.Config{Algorithm: chunker.RollSum, Filter: filter}, nil
	case chunker.BuzHash:
		return chunker.Config{Algorithm: chunker.BuzHash, Filter: filter}, nil
	default:
		return chunker.Config{}, fmt.Errorf("archive: %w: unknown chunking algorithm", archiveerr.ErrInvalidArchive)
	}
}

// TotalChunks returns the number of chunks in the reconstructed source,
// counting a repeated chunk once per occurrence.
func (a *Archive) TotalChunks() int { return len(a.sourceOrder) }

// UniqueChunks returns the number of distinct chunks stored in the
// archive.
func (a *Archive) UniqueChunks() int { return len(a.chunkDescriptors) }

// CompressedSize returns the total size of all stored chunk payloads.
func (a *Archive) CompressedSize() uint64 {
	var total uint64
	for _, cd := range a.chunkDescriptors {
		total += uint64(cd.ArchiveSize)
	}
	return total
}

// ChunkDataOffset returns the absolute offset where chunk payloads begin.
func (a *Archive) ChunkDataOffset() uint64 { return a.chunkDataOffset }

// ChunkDescriptors returns every unique chunk descriptor.
func (a *Archive) ChunkDescriptors() []ChunkDescriptor {
	return append([]ChunkDescriptor(nil), a.chunkDescriptors...)
}

// TotalSourceSize returns the size of the original source.
func (a *Archive) TotalSourceSize() uint64 { return a.sourceTotalSize }

// SourceChecksum returns the Blake2b-512 checksum of the original source.
func (a *Archive) SourceChecksum() hashsum.Sum { return a.sourceChecksum }

// ChunkerConfig returns the chunker configuration used to build the
// archive.
func (a *Archive) ChunkerConfig() chunker.Config { return a.chunkerConfig }

// HeaderChecksum returns the checksum stored in the header trailer.
func (a *Archive) HeaderChecksum() hashsum.Sum { return a.headerChecksum }

// HeaderSize returns the size in bytes of the parsed header.
func (a *Archive) HeaderSize() int { return a.headerSize }

// ChunkHashLength returns the truncation length used to identify chunks.
func (a *Archive) ChunkHashLength() int { return a.chunkHashLength }

// ChunkCompression returns the compression used for chunk payloads, or
// nil if chunks are stored uncompressed.
func (a *Archive) ChunkCompression() *compression.Compression { return a.chunkCompression }

// BuiltWithVersion returns the application version string recorded when
// the archive was built.
func (a *Archive) BuiltWithVersion() string { return a.createdByAppVersion }

// Metadata returns the free-form key->bytes map stored alongside the
// archive's dictionary, as supplied to CreateOptions.Metadata when the
// archive was written. Returns nil if no metadata was set.
func (a *Archive) Metadata() map[string][]byte { return a.metadata }

// IterSourceChunks returns the chunks of the reconstructed source file in
// order, each paired with its offset in that file.
func (a *Archive) IterSourceChunks() []SourceChunk {
	out := make([]SourceChunk, 0, len(a.sourceOrder))
	var offset uint64
	for _, index := range a.sourceOrder {
		cd := &a.chunkDescriptors[index]
		out = append(out, SourceChunk{Offset: offset, Descriptor: cd})
		offset += uint64(cd.SourceSize)
	}
	return out
}

// BuildSourceIndex returns a chunkindex.Index describing where every
// chunk of the reconstructed source belongs.
func (a *Archive) BuildSourceIndex() *chunkindex.Index {
	ci := chunkindex.New(a.chunkHashLength)
	for _, sc := range a.IterSourceChunks() {
		ci.Add(sc.Descriptor.Checksum, int(sc.Descriptor.SourceSize), sc.Offset)
	}
	return ci
}

// ChunkStream fetches, in archive order, every chunk whose checksum is
// present in chunks, as a channel of chunk.ArchiveChunk wrapped in
// ChunkStreamResult. A chunk whose archive payload size equals its source
// size is reported as uncompressed, since compressing it would only have
// made it larger.
type ChunkStreamResult struct {
	Chunk chunk.ArchiveChunk
	Err   error
}

func (a *Archive) ChunkStream(ctx context.Context, chunks *chunkindex.Index) (<-chan ChunkStreamResult, error) {
	var descriptors []*ChunkDescriptor
	for i := range a.chunkDescriptors {
		cd := &a.chunkDescriptors[i]
		if chunks.Contains(cd.Checksum) {
			descriptors = append(descriptors, cd)
		}
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].ArchiveOffset < descriptors[j].ArchiveOffset
	})

	ranges := make([]Range, len(descriptors))
	for i, cd := range descriptors {
		ranges[i] = Range{Offset: cd.ArchiveOffset, Length: uint64(cd.ArchiveSize)}
	}

	raw, err := a.reader.ReadChunks(ctx, ranges)
	if err != nil {
		return nil, fmt.Errorf("archive: %w: %v", archiveerr.ErrReaderError, err)
	}

	out := make(chan ChunkStreamResult)
	go func() {
		defer close(out)
		for res := range raw {
			if res.Err != nil {
				select {
				case out <- ChunkStreamResult{Err: fmt.Errorf("archive: %w: %v", archiveerr.ErrReaderError, res.Err)}:
				case <-ctx.Done():
				}
				continue
			}
			cd := descriptors[res.Index]
			algo := compression.None
			if sourceSize := int(cd.SourceSize); len(res.Data) != sourceSize && a.chunkCompression != nil {
				algo = a.chunkCompression.Algorithm
			}
			ac := chunk.ArchiveChunk{
				CompressedChunk: chunk.CompressedChunk{
					Data:       res.Data,
					SourceSize: int(cd.SourceSize),
					Algorithm:  algo,
				},
				ExpectedHash: cd.Checksum,
			}
			select {
			case out <- ChunkStreamResult{Chunk: ac}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
