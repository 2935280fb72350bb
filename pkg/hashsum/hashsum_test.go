package hashsum

import "testing"

func TestZeroLengthEqualsEverything(t *testing.T) {
	zero := New(nil)
	other := New([]byte{1, 2, 3})
	if !zero.Equal(other) || !other.Equal(zero) {
		t.Fatal("zero-length sum must equal any sum")
	}
}

func TestEqualLengthExactComparison(t *testing.T) {
	a := New([]byte{1, 2, 3})
	b := New([]byte{1, 2, 3})
	c := New([]byte{1, 2, 4})
	if !a.Equal(b) {
		t.Fatal("identical sums must be equal")
	}
	if a.Equal(c) {
		t.Fatal("differing sums must not be equal")
	}
}

func TestDifferingLengthSharedPrefix(t *testing.T) {
	short := New([]byte{1, 2, 3})
	long := New([]byte{1, 2, 3, 4, 5})
	if !short.Equal(long) || !long.Equal(short) {
		t.Fatal("sums sharing a prefix up to the shorter length must be equal")
	}

	longDiffering := New([]byte{1, 2, 9, 4, 5})
	if short.Equal(longDiffering) {
		t.Fatal("sums differing within the shared prefix must not be equal")
	}
}

func TestTruncate(t *testing.T) {
	full := Digest([]byte("hello world"))
	short := full.Truncate(8)
	if short.Len() != 8 {
		t.Fatalf("expected length 8, got %d", short.Len())
	}
	if !short.Equal(full) {
		t.Fatal("a truncated sum must equal its full-length source")
	}
}

func TestStringIsHex(t *testing.T) {
	s := New([]byte{0xde, 0xad, 0xbe, 0xef})
	if got, want := s.String(), "deadbeef"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
