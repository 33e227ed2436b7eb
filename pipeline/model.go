// Package pipeline implements the streaming, concurrent tile assembly
// pipeline: reader (batching), encoder (parallel, memoizing), writer
// (ordered archive append) and the telemetry that ties them together.
package pipeline

import (
	"context"
	"sync"

	"github.com/pronitdas/planetiler/tile"
	"github.com/pronitdas/planetiler/vectortile"
)

// Group is the set of source features that fall within one tile, as handed
// to the pipeline by the upstream feature store. Grouping, classification
// and geometry construction happen upstream; the pipeline only encodes,
// batches and writes what it is given.
type Group interface {
	Coord() tile.Coord
	NumFeaturesToEmit() int
	NumFeaturesProcessed() int
	BuildTile() (*vectortile.Tile, error)
	// HasSameContents reports whether other would build byte-identical
	// tiles to this one. Used to memoize repeated adjacent tiles; it must
	// be reflexive, and equal-content tiles must encode to equal bytes.
	HasSameContents(other Group) bool
}

// Store is a lazy, finite, ordered source of Groups in ascending tile.Coord
// order. It is consumed once by the reader stage.
type Store interface {
	// Next returns the next Group in the stream, or ok=false when exhausted.
	Next() (Group, bool)
	// NumFeatures returns the cumulative feature count across the whole
	// stream, used for progress reporting.
	NumFeatures() int64
}

// TileEntry is a single encoded, compressed tile ready for the archive.
type TileEntry struct {
	Coord tile.Coord
	Bytes []byte
}

// TileBatch is an ordered slice of Groups moving through the pipeline as a
// unit, together with a completion handle the encoder fills in once every
// tile in the batch has been encoded. A batch may be completed at most once.
type TileBatch struct {
	Groups []Group

	once    sync.Once
	done    chan struct{}
	entries []TileEntry
	err     error
}

// NewTileBatch creates an empty batch with room for capacity groups.
func NewTileBatch(capacity int) *TileBatch {
	return &TileBatch{
		Groups: make([]Group, 0, capacity),
		done:   make(chan struct{}),
	}
}

func (b *TileBatch) Len() int { return len(b.Groups) }

// Complete fills in the batch's result. Calling it twice is a bug-level
// invariant violation and panics.
func (b *TileBatch) Complete(entries []TileEntry, err error) {
	completed := false
	b.once.Do(func() {
		b.entries, b.err = entries, err
		completed = true
		close(b.done)
	})
	if !completed {
		panic("pipeline: tile batch completed twice")
	}
}

// Await blocks until the batch is completed, or ctx is done, and returns its
// result.
func (b *TileBatch) Await(ctx context.Context) ([]TileEntry, error) {
	select {
	case <-b.done:
		return b.entries, b.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
