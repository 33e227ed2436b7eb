package mb

import (
	"github.com/pronitdas/planetiler/pipeline"
	"github.com/pronitdas/planetiler/tile"
)

// TileWriter adapts an Archive to tile.Writer for the format-conversion
// CLI, which writes tiles one at a time outside the batched assembly
// pipeline. It reuses Archive's schema, metadata and indexing rather than
// duplicating the MBTiles DDL a second time: the whole conversion run is a
// single BatchedTileWriter transaction, closed and indexed at Finalize.
type TileWriter struct {
	archive *Archive
	bw      pipeline.BatchedTileWriter
}

// NewTileWriter creates archive's schema, seeds it with metadata carried
// through verbatim from a source archive, and opens a batch for tile-by-tile
// writes. metadata may be nil.
func NewTileWriter(archive *Archive, metadata map[string]string) (*TileWriter, error) {
	if err := archive.SetupSchema(); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := archive.SetRawMetadata(metadata); err != nil {
			return nil, err
		}
	}
	bw, err := archive.NewBatchedTileWriter()
	if err != nil {
		return nil, err
	}
	return &TileWriter{archive: archive, bw: bw}, nil
}

// WriteTile implements tile.Writer.
func (w *TileWriter) WriteTile(id tile.ID, data []byte) error {
	return w.bw.Write(tile.FromID(id), data)
}

// Finalize implements tile.Writer: it commits the pending transaction and
// builds the tile index, mirroring the batched pipeline's deferred-index
// shutdown path.
func (w *TileWriter) Finalize() error {
	if err := w.bw.Close(); err != nil {
		return err
	}
	return w.archive.AddIndex()
}

// Close releases the underlying archive handle.
func (w *TileWriter) Close() error {
	return w.archive.Close()
}
