package merkle

import (
	"crypto/sha256"
	"fmt"

	"github.com/cbergoon/merkletree"

	"github.com/saworbit/chunkarchive/pkg/archive"
)

// ChecksumsOf returns the chunk checksums of arc's descriptors, in
// descriptor order, as the hex strings BuildTree expects.
func ChecksumsOf(arc *archive.Archive) []string {
	descriptors := arc.ChunkDescriptors()
	checksums := make([]string, len(descriptors))
	for i, d := range descriptors {
		checksums[i] = d.Checksum.String()
	}
	return checksums
}

// MerkleManager builds Merkle trees over archive chunk checksums, used to
// produce and verify a single integrity digest for an archive's content.
type MerkleManager struct{}

// NewMerkleManager creates a new Merkle tree manager.
func NewMerkleManager() *MerkleManager {
	return &MerkleManager{}
}

// Content implements merkletree.Content for a single chunk checksum, given
// as its lowercase hex string.
type Content struct {
	checksum string
}

// CalculateHash implements the Content interface.
func (c Content) CalculateHash() ([]byte, error) {
	h := sha256.New()
	if _, err := h.Write([]byte(c.checksum)); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Equals implements the Content interface.
func (c Content) Equals(other merkletree.Content) (bool, error) {
	otherContent, ok := other.(Content)
	if !ok {
		return false, fmt.Errorf("type mismatch")
	}
	return c.checksum == otherContent.checksum, nil
}

// NewContent creates a new Content from a chunk checksum's hex string.
func NewContent(checksum string) Content {
	return Content{checksum: checksum}
}

// BuildTree builds a Merkle tree from a list of chunk checksum hex strings.
func (m *MerkleManager) BuildTree(checksums []string) (*merkletree.MerkleTree, error) {
	if len(checksums) == 0 {
		return nil, fmt.Errorf("cannot build tree from empty checksum list")
	}

	contents := make([]merkletree.Content, len(checksums))
	for i, checksum := range checksums {
		contents[i] = NewContent(checksum)
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, fmt.Errorf("failed to build Merkle tree: %w", err)
	}

	return tree, nil
}

// GetRoot returns the Merkle root hash for a tree.
func GetRoot(tree *merkletree.MerkleTree) []byte {
	if tree == nil {
		return nil
	}
	return tree.MerkleRoot()
}

// VerifyArchiveIntegrity rebuilds a Merkle tree from checksums, checks the
// tree's own internal structure, and compares its root against
// expectedRoot. Used by the info subcommand to confirm an archive's chunk
// checksums still match a root pinned from an earlier run.
func (m *MerkleManager) VerifyArchiveIntegrity(checksums []string, expectedRoot []byte) error {
	tree, err := m.BuildTree(checksums)
	if err != nil {
		return fmt.Errorf("failed to build tree for verification: %w", err)
	}

	valid, err := tree.VerifyTree()
	if err != nil {
		return fmt.Errorf("tree verification failed: %w", err)
	}
	if !valid {
		return fmt.Errorf("tree structure is invalid")
	}

	actualRoot := GetRoot(tree)
	if !bytesEqual(actualRoot, expectedRoot) {
		return fmt.Errorf("merkle root mismatch: expected %x, got %x", expectedRoot, actualRoot)
	}

	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
