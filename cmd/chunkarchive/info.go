package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/multiformats/go-multihash"
	"github.com/spf13/cobra"

	"github.com/saworbit/chunkarchive/pkg/archive"
	"github.com/saworbit/chunkarchive/pkg/archivesource"
	"github.com/saworbit/chunkarchive/pkg/merkle"
)

func newInfoCmd() *cobra.Command {
	var showRoot bool
	var verifyRootHex string

	cmd := &cobra.Command{
		Use:   "info <archive>",
		Short: "Print metadata about an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0], showRoot, verifyRootHex)
		},
	}

	cmd.Flags().BoolVar(&showRoot, "merkle-root", false, "Also compute and print a Merkle root over the archive's chunk checksums")
	cmd.Flags().StringVar(&verifyRootHex, "verify-root", "", "Rebuild the Merkle tree and fail unless its root matches this hex-encoded root")
	return cmd
}

func runInfo(archivePath string, showRoot bool, verifyRootHex string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer f.Close()

	ctx := context.Background()
	arc, err := archive.TryInit(ctx, archivesource.NewLocalReader(f))
	if err != nil {
		return fmt.Errorf("reading archive header: %w", err)
	}

	fmt.Printf("source size:       %d bytes\n", arc.TotalSourceSize())
	fmt.Printf("source checksum:   %s\n", arc.SourceChecksum())
	fmt.Printf("total chunks:      %d\n", arc.TotalChunks())
	fmt.Printf("unique chunks:     %d\n", arc.UniqueChunks())
	fmt.Printf("compressed size:   %d bytes\n", arc.CompressedSize())
	fmt.Printf("chunk hash length: %d bytes\n", arc.ChunkHashLength())
	fmt.Printf("chunker algorithm: %s\n", arc.ChunkerConfig().Algorithm)
	if comp := arc.ChunkCompression(); comp != nil {
		fmt.Printf("compression:       %s (level %d)\n", comp.Algorithm, comp.Level)
	}
	fmt.Printf("built with:        %s\n", arc.BuiltWithVersion())
	fmt.Printf("header checksum:   %s\n", arc.HeaderChecksum())
	fmt.Printf("header size:       %d bytes\n", arc.HeaderSize())

	if len(arc.ChunkDescriptors()) > 0 {
		first := arc.ChunkDescriptors()[0]
		mh, err := multihash.Sum(first.Checksum.Bytes(), multihash.BLAKE2B_MAX, -1)
		if err == nil {
			fmt.Printf("first chunk multihash: %s\n", mh.B58String())
		}
	}

	if showRoot || verifyRootHex != "" {
		checksums := merkle.ChecksumsOf(arc)
		mgr := merkle.NewMerkleManager()
		tree, err := mgr.BuildTree(checksums)
		if err != nil {
			return fmt.Errorf("building merkle tree: %w", err)
		}
		root := merkle.GetRoot(tree)
		if showRoot {
			fmt.Printf("merkle root:       %x\n", root)
		}

		if verifyRootHex != "" {
			expectedRoot, err := hex.DecodeString(verifyRootHex)
			if err != nil {
				return fmt.Errorf("decoding --verify-root: %w", err)
			}
			if err := mgr.VerifyArchiveIntegrity(checksums, expectedRoot); err != nil {
				return fmt.Errorf("archive integrity check failed: %w", err)
			}
			fmt.Println("merkle integrity:  verified")
		}
	}

	return nil
}
