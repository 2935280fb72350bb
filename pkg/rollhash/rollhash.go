// Package rollhash implements fixed-window rolling hashes used to find
// content-defined chunk boundaries: RollSum (the rsync/bup checksum) and
// BuzHash (a cyclic-shift table hash). Both update in O(1) per input byte.
package rollhash

// Hash is a fixed-window rolling hash fed one byte at a time.
type Hash interface {
	// WindowSize returns the configured window size in bytes.
	WindowSize() int

	// Input feeds the next byte into the window, evicting the oldest byte.
	Input(b byte)

	// Sum returns the current 32-bit rolling sum.
	Sum() uint32

	// Valid reports whether Sum is meaningful yet. RollSum is always
	// valid; BuzHash needs a full window of input first.
	Valid() bool

	// Reset returns the hash to its initial (empty-window) state, as
	// happens at every chunk boundary.
	Reset()
}
