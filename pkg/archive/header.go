package archive

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/saworbit/chunkarchive/pkg/archiveerr"
)

// Magic is the six-byte prefix identifying a chunkarchive file.
var Magic = [6]byte{'B', 'I', 'T', 'A', '1', 0}

// legacyMagic is accepted on read for archives written before the magic
// was reordered; never produced by buildHeader.
var legacyMagic = [6]byte{0, 'B', 'I', 'T', 'A', '1'}

// PreHeaderSize is the magic plus the 8-byte little-endian dictionary
// length that precedes the dictionary itself.
const PreHeaderSize = len(Magic) + 8

// ChecksumSize is the size of the trailing Blake2b-512 header checksum.
const ChecksumSize = 64

// buildHeader assembles the full on-disk header: magic, dictionary length,
// dictionary bytes, absolute chunk-data offset, and a Blake2b-512 checksum
// over everything that precedes it. If chunkDataOffset is zero, it is
// computed as the byte immediately following this header.
func buildHeader(dict dictionary, chunkDataOffset uint64) ([]byte, error) {
	dictBuf := encodeDictionary(dict)

	header := make([]byte, 0, PreHeaderSize+len(dictBuf)+8+ChecksumSize)
	header = append(header, Magic[:]...)
	header = binary.LittleEndian.AppendUint64(header, uint64(len(dictBuf)))
	header = append(header, dictBuf...)

	offset := chunkDataOffset
	if offset == 0 {
		offset = uint64(len(header)) + 8 + ChecksumSize
	}
	header = binary.LittleEndian.AppendUint64(header, offset)

	sum := blake2b.Sum512(header)
	header = append(header, sum[:]...)

	return header, nil
}

func verifyMagic(preHeader []byte) error {
	if len(preHeader) < len(Magic) {
		return fmt.Errorf("archive: %w", archiveerr.ErrNotAnArchive)
	}
	var got [6]byte
	copy(got[:], preHeader[:6])
	if got != Magic && got != legacyMagic {
		return fmt.Errorf("archive: %w", archiveerr.ErrNotAnArchive)
	}
	return nil
}

// parseHeader validates and decodes a complete header buffer (pre-header
// through the trailing checksum, as assembled by TryInit).
func parseHeader(header []byte, dictionarySize uint64) (dictionary, uint64, []byte, error) {
	checksumOffset := PreHeaderSize + int(dictionarySize) + 8
	if len(header) < checksumOffset+ChecksumSize {
		return dictionary{}, 0, nil, fmt.Errorf("archive: %w", archiveerr.ErrUnexpectedEnd)
	}

	sum := blake2b.Sum512(header[:checksumOffset])
	headerChecksum := header[checksumOffset : checksumOffset+ChecksumSize]
	if string(sum[:]) != string(headerChecksum) {
		return dictionary{}, 0, nil, fmt.Errorf("archive: %w", archiveerr.ErrHeaderChecksumMismatch)
	}

	dictBuf := header[PreHeaderSize : PreHeaderSize+int(dictionarySize)]
	dict, err := decodeDictionary(dictBuf)
	if err != nil {
		return dictionary{}, 0, nil, err
	}

	chunkDataOffset := binary.LittleEndian.Uint64(header[PreHeaderSize+int(dictionarySize):])
	return dict, chunkDataOffset, headerChecksum, nil
}
