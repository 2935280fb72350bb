package compression

import (
	"bytes"
	"testing"
)

func TestRoundTripEveryAlgorithm(t *testing.T) {
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

	for _, alg := range []Algorithm{Brotli, Zstd, Lzma} {
		c, err := New(alg, 3)
		if err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
		compressed, err := c.Compress(src)
		if err != nil {
			t.Fatalf("%s compress: %v", alg, err)
		}
		out, err := Decompress(alg, compressed)
		if err != nil {
			t.Fatalf("%s decompress: %v", alg, err)
		}
		if !bytes.Equal(out, src) {
			t.Fatalf("%s: round-trip mismatch", alg)
		}
	}
}

func TestNoneIsIdentity(t *testing.T) {
	src := []byte("hello")
	c := Compression{Algorithm: None}
	out, err := c.Compress(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, src) {
		t.Fatal("none algorithm must be identity")
	}
}

func TestLevelOutOfRange(t *testing.T) {
	if _, err := New(Brotli, 12); err == nil {
		t.Fatal("expected error for level above max")
	}
	if _, err := New(Zstd, -1); err == nil {
		t.Fatal("expected error for negative level")
	}
}
