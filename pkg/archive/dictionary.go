package archive

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/saworbit/chunkarchive/pkg/archiveerr"
	"github.com/saworbit/chunkarchive/pkg/chunker"
	"github.com/saworbit/chunkarchive/pkg/compression"
	"github.com/saworbit/chunkarchive/pkg/hashsum"
)

// dictionary is the decoded form of the protobuf-wire-compatible blob
// embedded in an archive header. Every field here round-trips through
// encodeDictionary/decodeDictionary without needing a .proto-generated
// type: the wire format is simple enough to hand-encode with protowire.
type dictionary struct {
	sourceChecksum      hashsum.Sum
	sourceTotalSize     uint64
	chunkDescriptors    []dictChunkDescriptor
	rebuildOrder        []uint32
	applicationVersion  string
	compressionAlgo     compression.Algorithm
	compressionLevel    uint32
	chunkingAlgorithm   chunker.Algorithm
	chunkFilterBits     uint32
	minChunkSize        uint64
	maxChunkSize        uint64
	rollingHashWindow   uint32
	chunkHashLength     uint32
	metadata            map[string][]byte
}

type dictChunkDescriptor struct {
	checksum      hashsum.Sum
	archiveSize   uint32
	archiveOffset uint64
	sourceSize    uint32
}

const (
	fieldSourceChecksum     = 1
	fieldSourceTotalSize    = 2
	fieldChunkDescriptors   = 3
	fieldRebuildOrder       = 4
	fieldApplicationVersion = 5
	fieldChunkCompression   = 6
	fieldChunkerParams      = 7
	fieldMetadata           = 8
)

const (
	fieldMetadataKey   = 1
	fieldMetadataValue = 2
)

const (
	fieldDescChecksum      = 1
	fieldDescArchiveSize   = 2
	fieldDescArchiveOffset = 3
	fieldDescSourceSize    = 4
)

const (
	fieldCompressionType  = 1
	fieldCompressionLevel = 2
)

const (
	fieldChunkingAlgorithm = 1
	fieldFilterBits        = 2
	fieldMinChunkSize      = 3
	fieldMaxChunkSize      = 4
	fieldWindowSize        = 5
	fieldHashLength        = 6
)

func encodeDictionary(d dictionary) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSourceChecksum, protowire.BytesType)
	b = protowire.AppendBytes(b, d.sourceChecksum.Bytes())

	b = protowire.AppendTag(b, fieldSourceTotalSize, protowire.VarintType)
	b = protowire.AppendVarint(b, d.sourceTotalSize)

	for _, cd := range d.chunkDescriptors {
		b = protowire.AppendTag(b, fieldChunkDescriptors, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeChunkDescriptor(cd))
	}

	if len(d.rebuildOrder) > 0 {
		var packed []byte
		for _, v := range d.rebuildOrder {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = protowire.AppendTag(b, fieldRebuildOrder, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}

	b = protowire.AppendTag(b, fieldApplicationVersion, protowire.BytesType)
	b = protowire.AppendString(b, d.applicationVersion)

	b = protowire.AppendTag(b, fieldChunkCompression, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeCompression(d.compressionAlgo, d.compressionLevel))

	b = protowire.AppendTag(b, fieldChunkerParams, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeChunkerParams(d))

	for k, v := range d.metadata {
		b = protowire.AppendTag(b, fieldMetadata, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeMetadataEntry(k, v))
	}

	return b
}

func encodeMetadataEntry(key string, value []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMetadataKey, protowire.BytesType)
	b = protowire.AppendString(b, key)
	b = protowire.AppendTag(b, fieldMetadataValue, protowire.BytesType)
	b = protowire.AppendBytes(b, value)
	return b
}

func encodeChunkDescriptor(cd dictChunkDescriptor) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldDescChecksum, protowire.BytesType)
	b = protowire.AppendBytes(b, cd.checksum.Bytes())
	b = protowire.AppendTag(b, fieldDescArchiveSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cd.archiveSize))
	b = protowire.AppendTag(b, fieldDescArchiveOffset, protowire.VarintType)
	b = protowire.AppendVarint(b, cd.archiveOffset)
	b = protowire.AppendTag(b, fieldDescSourceSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cd.sourceSize))
	return b
}

func encodeCompression(algo compression.Algorithm, level uint32) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCompressionType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(algo))
	b = protowire.AppendTag(b, fieldCompressionLevel, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(level))
	return b
}

func encodeChunkerParams(d dictionary) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldChunkingAlgorithm, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.chunkingAlgorithm))
	b = protowire.AppendTag(b, fieldFilterBits, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.chunkFilterBits))
	b = protowire.AppendTag(b, fieldMinChunkSize, protowire.VarintType)
	b = protowire.AppendVarint(b, d.minChunkSize)
	b = protowire.AppendTag(b, fieldMaxChunkSize, protowire.VarintType)
	b = protowire.AppendVarint(b, d.maxChunkSize)
	b = protowire.AppendTag(b, fieldWindowSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.rollingHashWindow))
	b = protowire.AppendTag(b, fieldHashLength, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.chunkHashLength))
	return b
}

func decodeDictionary(buf []byte) (dictionary, error) {
	var d dictionary
	haveCompression := false
	haveChunkerParams := false

	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return dictionary{}, fmt.Errorf("archive: %w: malformed dictionary tag", archiveerr.ErrInvalidArchive)
		}
		buf = buf[n:]

		switch num {
		case fieldSourceChecksum:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return dictionary{}, err
			}
			d.sourceChecksum = hashsum.New(v)
			buf = buf[n:]
		case fieldSourceTotalSize:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return dictionary{}, err
			}
			d.sourceTotalSize = v
			buf = buf[n:]
		case fieldChunkDescriptors:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return dictionary{}, err
			}
			cd, err := decodeChunkDescriptor(v)
			if err != nil {
				return dictionary{}, err
			}
			d.chunkDescriptors = append(d.chunkDescriptors, cd)
			buf = buf[n:]
		case fieldRebuildOrder:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return dictionary{}, err
			}
			for len(v) > 0 {
				val, vn := protowire.ConsumeVarint(v)
				if vn < 0 {
					return dictionary{}, fmt.Errorf("archive: %w: malformed rebuild order", archiveerr.ErrInvalidArchive)
				}
				d.rebuildOrder = append(d.rebuildOrder, uint32(val))
				v = v[vn:]
			}
			buf = buf[n:]
		case fieldApplicationVersion:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return dictionary{}, err
			}
			d.applicationVersion = string(v)
			buf = buf[n:]
		case fieldChunkCompression:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return dictionary{}, err
			}
			algo, level, err := decodeCompression(v)
			if err != nil {
				return dictionary{}, err
			}
			d.compressionAlgo, d.compressionLevel = algo, level
			haveCompression = true
			buf = buf[n:]
		case fieldChunkerParams:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return dictionary{}, err
			}
			if err := decodeChunkerParams(v, &d); err != nil {
				return dictionary{}, err
			}
			haveChunkerParams = true
			buf = buf[n:]
		case fieldMetadata:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return dictionary{}, err
			}
			key, val, err := decodeMetadataEntry(v)
			if err != nil {
				return dictionary{}, err
			}
			if d.metadata == nil {
				d.metadata = make(map[string][]byte)
			}
			d.metadata[key] = val
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return dictionary{}, err
			}
			buf = buf[n:]
		}
	}

	if !haveCompression {
		return dictionary{}, fmt.Errorf("archive: %w: missing chunk compression", archiveerr.ErrInvalidArchive)
	}
	if !haveChunkerParams {
		return dictionary{}, fmt.Errorf("archive: %w: missing chunker parameters", archiveerr.ErrInvalidArchive)
	}
	return d, nil
}

func decodeMetadataEntry(buf []byte) (string, []byte, error) {
	var key string
	var value []byte
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return "", nil, fmt.Errorf("archive: %w: malformed metadata entry", archiveerr.ErrInvalidArchive)
		}
		buf = buf[n:]
		switch num {
		case fieldMetadataKey:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return "", nil, err
			}
			key = string(v)
			buf = buf[n:]
		case fieldMetadataValue:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return "", nil, err
			}
			value = append([]byte(nil), v...)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return "", nil, err
			}
			buf = buf[n:]
		}
	}
	return key, value, nil
}

func decodeChunkDescriptor(buf []byte) (dictChunkDescriptor, error) {
	var cd dictChunkDescriptor
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return dictChunkDescriptor{}, fmt.Errorf("archive: %w: malformed chunk descriptor", archiveerr.ErrInvalidArchive)
		}
		buf = buf[n:]
		switch num {
		case fieldDescChecksum:
			v, n, err := consumeBytes(buf, typ)
			if err != nil {
				return dictChunkDescriptor{}, err
			}
			cd.checksum = hashsum.New(v)
			buf = buf[n:]
		case fieldDescArchiveSize:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return dictChunkDescriptor{}, err
			}
			cd.archiveSize = uint32(v)
			buf = buf[n:]
		case fieldDescArchiveOffset:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return dictChunkDescriptor{}, err
			}
			cd.archiveOffset = v
			buf = buf[n:]
		case fieldDescSourceSize:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return dictChunkDescriptor{}, err
			}
			cd.sourceSize = uint32(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return dictChunkDescriptor{}, err
			}
			buf = buf[n:]
		}
	}
	return cd, nil
}

func decodeCompression(buf []byte) (compression.Algorithm, uint32, error) {
	var algo compression.Algorithm
	var level uint32
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return 0, 0, fmt.Errorf("archive: %w: malformed compression", archiveerr.ErrInvalidArchive)
		}
		buf = buf[n:]
		switch num {
		case fieldCompressionType:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return 0, 0, err
			}
			algo = compression.Algorithm(v)
			buf = buf[n:]
		case fieldCompressionLevel:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return 0, 0, err
			}
			level = uint32(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return 0, 0, err
			}
			buf = buf[n:]
		}
	}
	return algo, level, nil
}

func decodeChunkerParams(buf []byte, d *dictionary) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("archive: %w: malformed chunker parameters", archiveerr.ErrInvalidArchive)
		}
		buf = buf[n:]
		switch num {
		case fieldChunkingAlgorithm:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return err
			}
			d.chunkingAlgorithm = chunker.Algorithm(v)
			buf = buf[n:]
		case fieldFilterBits:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return err
			}
			d.chunkFilterBits = uint32(v)
			buf = buf[n:]
		case fieldMinChunkSize:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return err
			}
			d.minChunkSize = v
			buf = buf[n:]
		case fieldMaxChunkSize:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return err
			}
			d.maxChunkSize = v
			buf = buf[n:]
		case fieldWindowSize:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return err
			}
			d.rollingHashWindow = uint32(v)
			buf = buf[n:]
		case fieldHashLength:
			v, n, err := consumeVarint(buf, typ)
			if err != nil {
				return err
			}
			d.chunkHashLength = uint32(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return err
			}
			buf = buf[n:]
		}
	}
	return nil
}

func consumeVarint(buf []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("archive: %w: expected varint field", archiveerr.ErrInvalidArchive)
	}
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return 0, 0, fmt.Errorf("archive: %w: malformed varint", archiveerr.ErrInvalidArchive)
	}
	return v, n, nil
}

func consumeBytes(buf []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("archive: %w: expected length-delimited field", archiveerr.ErrInvalidArchive)
	}
	v, n := protowire.ConsumeBytes(buf)
	if n < 0 {
		return nil, 0, fmt.Errorf("archive: %w: malformed length-delimited field", archiveerr.ErrInvalidArchive)
	}
	return v, n, nil
}

func skipField(buf []byte, typ protowire.Type) (int, error) {
	n := protowire.ConsumeFieldValue(0, typ, buf)
	if n < 0 {
		return 0, fmt.Errorf("archive: %w: malformed field", archiveerr.ErrInvalidArchive)
	}
	return n, nil
}
