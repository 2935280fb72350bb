package chunk

import (
	"bytes"
	"testing"

	"github.com/saworbit/chunkarchive/pkg/compression"
)

func TestTryCompressFallsBackWhenNotSmaller(t *testing.T) {
	vc := Verify([]byte("ab"))
	c := compression.Compression{Algorithm: compression.Zstd, Level: 3}

	cc, err := TryCompress(vc, c)
	if err != nil {
		t.Fatal(err)
	}
	if cc.Algorithm != compression.None {
		t.Fatalf("expected fallback to None for a tiny chunk, got %s", cc.Algorithm)
	}
	if !bytes.Equal(cc.Data, vc.Data) {
		t.Fatal("fallback must keep the original bytes")
	}
}

func TestTryCompressDecompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("compressible payload "), 500)
	vc := Verify(data)
	c := compression.Compression{Algorithm: compression.Zstd, Level: 3}

	cc, err := TryCompress(vc, c)
	if err != nil {
		t.Fatal(err)
	}
	if cc.Algorithm != compression.Zstd {
		t.Fatalf("expected zstd to shrink a repetitive payload, got %s", cc.Algorithm)
	}

	out, err := cc.Decompress()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("decompress must recover the original bytes")
	}
}

func TestArchiveChunkVerifySuccess(t *testing.T) {
	data := []byte("payload")
	vc := Verify(data)
	ac := ArchiveChunk{
		CompressedChunk: CompressedChunk{Data: data, SourceSize: len(data), Algorithm: compression.None},
		ExpectedHash:    vc.HashSum,
	}

	got, err := ac.Verify()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Data, data) {
		t.Fatal("verified chunk data mismatch")
	}
}

func TestArchiveChunkVerifyMismatch(t *testing.T) {
	data := []byte("payload")
	other := []byte("tampered")
	ac := ArchiveChunk{
		CompressedChunk: CompressedChunk{Data: data, SourceSize: len(data), Algorithm: compression.None},
		ExpectedHash:    Verify(other).HashSum,
	}

	_, err := ac.Verify()
	var mismatch *HashSumMismatchError
	if err == nil {
		t.Fatal("expected a hash mismatch error")
	}
	if !asHashMismatch(err, &mismatch) {
		t.Fatalf("expected *HashSumMismatchError, got %T", err)
	}
	if !bytes.Equal(mismatch.InvalidChunk, data) {
		t.Fatal("mismatch error must carry the offending bytes")
	}
}

func asHashMismatch(err error, target **HashSumMismatchError) bool {
	if e, ok := err.(*HashSumMismatchError); ok {
		*target = e
		return true
	}
	return false
}
