package merkle

import (
	"bytes"
	"fmt"
	"testing"
)

func TestNewMerkleManager(t *testing.T) {
	mm := NewMerkleManager()
	if mm == nil {
		t.Fatal("NewMerkleManager() returned nil")
	}
}

func TestContent(t *testing.T) {
	chk1 := "test-checksum-1"
	chk2 := "test-checksum-2"

	c1 := NewContent(chk1)
	c2 := NewContent(chk2)
	c3 := NewContent(chk1)

	hash1, err := c1.CalculateHash()
	if err != nil {
		t.Fatalf("CalculateHash() error = %v", err)
	}
	hash2, err := c2.CalculateHash()
	if err != nil {
		t.Fatalf("CalculateHash() error = %v", err)
	}
	hash3, err := c3.CalculateHash()
	if err != nil {
		t.Fatalf("CalculateHash() error = %v", err)
	}

	if !bytes.Equal(hash1, hash3) {
		t.Error("same checksum produced different hashes")
	}
	if bytes.Equal(hash1, hash2) {
		t.Error("different checksums produced same hash")
	}

	equal, err := c1.Equals(c3)
	if err != nil {
		t.Fatalf("Equals() error = %v", err)
	}
	if !equal {
		t.Error("equal checksums should return true")
	}

	equal, err = c1.Equals(c2)
	if err != nil {
		t.Fatalf("Equals() error = %v", err)
	}
	if equal {
		t.Error("different checksums should return false")
	}
}

func TestBuildTree(t *testing.T) {
	mm := NewMerkleManager()

	tests := []struct {
		name      string
		checksums []string
		wantErr   bool
	}{
		{name: "valid tree with one checksum", checksums: []string{"chk1"}, wantErr: false},
		{name: "valid tree with multiple checksums", checksums: []string{"chk1", "chk2", "chk3", "chk4"}, wantErr: false},
		{name: "empty checksum list", checksums: []string{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := mm.BuildTree(tt.checksums)
			if (err != nil) != tt.wantErr {
				t.Errorf("BuildTree() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tree == nil {
				t.Error("BuildTree() returned nil tree without error")
			}
		})
	}
}

func TestGetRoot(t *testing.T) {
	mm := NewMerkleManager()

	checksums := []string{"chk1", "chk2", "chk3"}
	tree, err := mm.BuildTree(checksums)
	if err != nil {
		t.Fatalf("BuildTree() error = %v", err)
	}

	root := GetRoot(tree)
	if root == nil {
		t.Error("GetRoot() returned nil")
	}

	if nilRoot := GetRoot(nil); nilRoot != nil {
		t.Error("GetRoot(nil) should return nil")
	}
}

func TestVerifyArchiveIntegrity(t *testing.T) {
	mm := NewMerkleManager()

	checksums := []string{"chk1", "chk2", "chk3"}
	tree, err := mm.BuildTree(checksums)
	if err != nil {
		t.Fatalf("BuildTree() error = %v", err)
	}
	expectedRoot := GetRoot(tree)

	if err := mm.VerifyArchiveIntegrity(checksums, expectedRoot); err != nil {
		t.Errorf("VerifyArchiveIntegrity() error for valid data = %v", err)
	}

	wrongRoot := make([]byte, len(expectedRoot))
	copy(wrongRoot, expectedRoot)
	wrongRoot[0] ^= 0xFF
	if err := mm.VerifyArchiveIntegrity(checksums, wrongRoot); err == nil {
		t.Error("VerifyArchiveIntegrity() should fail with wrong root")
	}

	if err := mm.VerifyArchiveIntegrity([]string{}, expectedRoot); err == nil {
		t.Error("VerifyArchiveIntegrity() should fail with empty checksums")
	}

	differentChecksums := []string{"chk-x", "chk-y", "chk-z"}
	if err := mm.VerifyArchiveIntegrity(differentChecksums, expectedRoot); err == nil {
		t.Error("VerifyArchiveIntegrity() should fail with different checksums")
	}
}

func TestBytesEqual(t *testing.T) {
	tests := []struct {
		name string
		a    []byte
		b    []byte
		want bool
	}{
		{"equal bytes", []byte{1, 2, 3}, []byte{1, 2, 3}, true},
		{"different bytes", []byte{1, 2, 3}, []byte{1, 2, 4}, false},
		{"different lengths", []byte{1, 2}, []byte{1, 2, 3}, false},
		{"both empty", []byte{}, []byte{}, true},
		{"one empty", []byte{1}, []byte{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bytesEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("bytesEqual() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkBuildTree_LargeTree(b *testing.B) {
	mm := NewMerkleManager()

	checksums := make([]string, 100)
	for i := 0; i < 100; i++ {
		checksums[i] = fmt.Sprintf("chk-%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := mm.BuildTree(checksums); err != nil {
			b.Fatalf("BuildTree() error = %v", err)
		}
	}
}
