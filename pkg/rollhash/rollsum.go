package rollhash

// RollSum is the rsync/bup rolling checksum: two accumulators s1/s2 updated
// from the byte entering and leaving a fixed window, all arithmetic
// wrapping modulo 2^32. Unlike BuzHash it needs no warm-up period; its sum
// is meaningful from the very first input.
type RollSum struct {
	window int
	buf    []byte
	cursor int
	filled int
	s1, s2 uint32
}

// NewRollSum constructs a RollSum with the given window size in bytes.
func NewRollSum(window int) *RollSum {
	r := &RollSum{window: window, buf: make([]byte, window)}
	r.Reset()
	return r
}

func (r *RollSum) WindowSize() int { return r.window }

func (r *RollSum) Valid() bool { return true }

// Reset returns s1/s2 to the initial values for an empty window of the
// configured size and clears the window buffer.
func (r *RollSum) Reset() {
	w := uint32(r.window)
	r.s1 = w * 31
	r.s2 = w * (w - 1) * 31
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.cursor = 0
	r.filled = 0
}

func (r *RollSum) Input(add byte) {
	drop := r.buf[r.cursor]
	r.buf[r.cursor] = add
	r.cursor++
	if r.cursor == r.window {
		r.cursor = 0
	}
	if r.filled < r.window {
		r.filled++
	}

	w := uint32(r.window)
	r.s1 = r.s1 + uint32(add) - uint32(drop)
	r.s2 = r.s2 + r.s1 - w*(uint32(drop)+31)
}

func (r *RollSum) Sum() uint32 {
	return (r.s1 << 16) | (r.s2 & 0xffff)
}
