// Package hashsum provides a fixed-capacity hash value with
// prefix-sensitive equality, used throughout the archive format wherever a
// full-length digest may be compared against a truncated one.
package hashsum

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// MaxLength is the largest number of bytes a Sum can hold (the digest size
// of Blake2b-512).
const MaxLength = 64

// Sum is an immutable byte string of at most MaxLength bytes. Two Sums
// compare equal iff they agree on every byte of the shorter of the two —
// this lets a full-length digest be checked against a table keyed by a
// truncated prefix of that same digest without reallocating anything.
type Sum struct {
	bytes [MaxLength]byte
	n     int
}

// New truncates (or copies, if shorter) b into a Sum of at most MaxLength
// bytes. If len(b) > MaxLength, only the first MaxLength bytes are kept.
func New(b []byte) Sum {
	var s Sum
	n := len(b)
	if n > MaxLength {
		n = MaxLength
	}
	copy(s.bytes[:n], b[:n])
	s.n = n
	return s
}

// Truncate returns a copy of s holding only its first n bytes. It panics if
// n is negative or greater than s.Len().
func (s Sum) Truncate(n int) Sum {
	if n < 0 || n > s.n {
		panic("hashsum: truncate length out of range")
	}
	var out Sum
	copy(out.bytes[:n], s.bytes[:n])
	out.n = n
	return out
}

// Len returns the number of meaningful bytes in s.
func (s Sum) Len() int { return s.n }

// Bytes returns the meaningful bytes of s. The caller must not mutate the
// returned slice's backing array beyond its length.
func (s Sum) Bytes() []byte {
	return append([]byte(nil), s.bytes[:s.n]...)
}

// Equal reports whether s and other agree on every byte of the shorter of
// the two. A zero-length Sum is equal to any Sum (including another
// zero-length one).
func (s Sum) Equal(other Sum) bool {
	n := s.n
	if other.n < n {
		n = other.n
	}
	for i := 0; i < n; i++ {
		if s.bytes[i] != other.bytes[i] {
			return false
		}
	}
	return true
}

// String renders s as lowercase hex.
func (s Sum) String() string {
	return hex.EncodeToString(s.bytes[:s.n])
}

// Digest computes the full Blake2b-512 digest of b as a 64-byte Sum.
func Digest(b []byte) Sum {
	sum := blake2b.Sum512(b)
	return New(sum[:])
}
