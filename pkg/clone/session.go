package clone

import (
	"context"
	"io"

	"github.com/saworbit/chunkarchive/pkg/archive"
)

// Result summarizes how a completed clone session satisfied the target's
// content, broken down by where the bytes came from.
type Result struct {
	ReusedInPlace      uint64
	ReusedFromSeeds    uint64
	FetchedFromArchive uint64
}

// Session reconstructs the source described by arc into target, in three
// sequential passes that each claim exclusive ownership of target before
// handing off to the next: first reorder whatever target already holds in
// place, then pull bytes from any seed readers in order, and finally
// fetch whatever remains from the archive itself.
func Session(ctx context.Context, opts Options, arc *archive.Archive, target Target, seeds []io.Reader) (Result, error) {
	var result Result

	chunks := arc.BuildSourceIndex()

	inPlace, err := InPlace(ctx, opts, arc, target, chunks)
	if err != nil {
		return result, err
	}
	result.ReusedInPlace = inPlace

	out := NewOutput(target)
	for _, seed := range seeds {
		if chunks.IsEmpty() {
			break
		}
		used, err := FeedReadable(ctx, seed, arc.ChunkerConfig(), out, chunks, opts.maxBufferedChunks())
		if err != nil {
			return result, err
		}
		result.ReusedFromSeeds += used
	}

	if !chunks.IsEmpty() {
		fetched, err := FromArchive(ctx, opts, arc, chunks, out)
		if err != nil {
			return result, err
		}
		result.FetchedFromArchive = fetched
	}

	return result, nil
}
