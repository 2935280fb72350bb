// Package archiveerr defines the typed error taxonomy shared by the
// archive reader, writer, and HTTP range reader. Errors here wrap an
// underlying cause with %w so callers can still unwrap to the original
// failure while switching on the sentinel with errors.Is.
package archiveerr

import "errors"

var (
	// ErrNotAnArchive means the pre-header magic did not match.
	ErrNotAnArchive = errors.New("archiveerr: not an archive")

	// ErrInvalidArchive means the dictionary failed to decode, referenced
	// an unknown algorithm, or otherwise violated the schema.
	ErrInvalidArchive = errors.New("archiveerr: invalid archive")

	// ErrHeaderChecksumMismatch means the trailing Blake2b-512 checksum
	// did not match the header bytes it covers.
	ErrHeaderChecksumMismatch = errors.New("archiveerr: header checksum mismatch")

	// ErrChunkChecksumMismatch means a fetched chunk's post-decompression
	// hash disagreed with its descriptor's hash.
	ErrChunkChecksumMismatch = errors.New("archiveerr: chunk checksum mismatch")

	// ErrUnexpectedEnd means a byte source returned fewer bytes than it
	// promised.
	ErrUnexpectedEnd = errors.New("archiveerr: unexpected end of stream")

	// ErrReaderError wraps a transport-specific failure (HTTP, I/O).
	ErrReaderError = errors.New("archiveerr: reader error")

	// ErrCompressionError wraps a codec failure.
	ErrCompressionError = errors.New("archiveerr: compression error")

	// ErrRequestNotClonable means an HTTP request template could not be
	// cloned for retry; this is a configuration bug, not retriable.
	ErrRequestNotClonable = errors.New("archiveerr: request template not clonable")
)
