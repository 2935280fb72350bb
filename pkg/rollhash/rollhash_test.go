package rollhash

import "testing"

func TestRollSumAlwaysValid(t *testing.T) {
	r := NewRollSum(16)
	if !r.Valid() {
		t.Fatal("RollSum must be valid from construction")
	}
}

func TestRollSumDeterministic(t *testing.T) {
	data := pseudoRandomBytes(1000)

	r1 := NewRollSum(10)
	r2 := NewRollSum(10)
	for i, b := range data {
		r1.Input(b)
		r2.Input(b)
		if r1.Sum() != r2.Sum() {
			t.Fatalf("sums diverged at byte %d", i)
		}
	}
}

func TestRollSumResetMatchesFreshState(t *testing.T) {
	data := pseudoRandomBytes(64)

	r := NewRollSum(8)
	for _, b := range data {
		r.Input(b)
	}
	r.Reset()
	sumAfterReset := r.Sum()

	fresh := NewRollSum(8)
	if fresh.Sum() != sumAfterReset {
		t.Fatalf("reset sum %d does not match fresh sum %d", sumAfterReset, fresh.Sum())
	}
}

func TestBuzHashInvalidBeforeWindowFull(t *testing.T) {
	b := NewBuzHash(10)
	if b.Valid() {
		t.Fatal("BuzHash should not be valid before any input")
	}
	for i := 0; i < 9; i++ {
		b.Input(byte(i))
	}
	if b.Valid() {
		t.Fatal("BuzHash should not be valid before window is full")
	}
	b.Input(9)
	if !b.Valid() {
		t.Fatal("BuzHash should be valid once window is full")
	}
}

func TestBuzHashDeterministic(t *testing.T) {
	data := pseudoRandomBytes(1000)

	b1 := NewBuzHash(12)
	b2 := NewBuzHash(12)
	for i, b := range data {
		b1.Input(b)
		b2.Input(b)
		if b1.Sum() != b2.Sum() {
			t.Fatalf("sums diverged at byte %d", i)
		}
	}
}

func pseudoRandomBytes(n int) []byte {
	out := make([]byte, n)
	var seed byte = 0xa3
	for i := range out {
		seed ^= seed * 4
		out[i] = seed ^ byte(i)
	}
	return out
}
