package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pronitdas/planetiler/telemetry"
	"github.com/pronitdas/planetiler/tile"
)

// Writer drains completed TileBatch values in FIFO order from its input
// queue and appends their tiles to an Archive, enforcing that tile.Coord
// values arrive in strictly ascending order across the whole run.
type Writer struct {
	archive Archive
	cfg     Config
	metrics *telemetry.Registry
	logger  *slog.Logger

	lastCoord    tile.Coord
	haveLastCoord bool
}

// NewWriter constructs a Writer over archive.
func NewWriter(archive Archive, cfg Config, metrics *telemetry.Registry, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{archive: archive, cfg: cfg, metrics: metrics, logger: logger}
}

// Run sets up the archive schema, drains batchQueue in order, and performs
// the shutdown sequence (deferred index creation, optional vacuum/analyze,
// close) regardless of how draining ends. It returns the first error
// encountered; if both draining and shutdown fail, the drain error wins and
// the shutdown error is logged.
func (w *Writer) Run(ctx context.Context, batchQueue <-chan *TileBatch) (err error) {
	if err := w.archive.SetupSchema(); err != nil {
		return fmt.Errorf("pipeline: writer: setup schema: %w", err)
	}
	if err := w.archive.SetMetadata(w.cfg.Metadata); err != nil {
		return fmt.Errorf("pipeline: writer: set metadata: %w", err)
	}
	if !w.cfg.DeferIndexCreation {
		if err := w.archive.AddIndex(); err != nil {
			return fmt.Errorf("pipeline: writer: add index: %w", err)
		}
	}

	drainErr := w.drain(ctx, batchQueue)

	if w.cfg.DeferIndexCreation {
		if err := w.archive.AddIndex(); err != nil {
			w.logger.Error("deferred index creation failed", "err", err)
			if drainErr == nil {
				drainErr = fmt.Errorf("pipeline: writer: deferred add index: %w", err)
			}
		}
	}
	if w.cfg.OptimizeDB {
		if err := w.archive.VacuumAnalyze(); err != nil {
			w.logger.Error("vacuum/analyze failed", "err", err)
			if drainErr == nil {
				drainErr = fmt.Errorf("pipeline: writer: vacuum/analyze: %w", err)
			}
		}
	}
	if err := w.archive.Close(); err != nil {
		w.logger.Error("archive close failed", "err", err)
		if drainErr == nil {
			drainErr = fmt.Errorf("pipeline: writer: close archive: %w", err)
		}
	}
	return drainErr
}

// drain writes each batch inside its own archive transaction: a fresh
// BatchedTileWriter is opened per batch and closed (committed) once every
// tile in that batch has been written, so a batch's tiles become durable as
// a unit and a failure partway through only rolls back the batch in
// progress.
func (w *Writer) drain(ctx context.Context, batchQueue <-chan *TileBatch) error {
	for {
		var batch *TileBatch
		select {
		case b, ok := <-batchQueue:
			if !ok {
				return nil
			}
			batch = b
		case <-ctx.Done():
			return ctx.Err()
		}

		entries, err := batch.Await(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			continue
		}

		tw, err := w.archive.NewBatchedTileWriter()
		if err != nil {
			return fmt.Errorf("pipeline: writer: new batch: %w", err)
		}
		if err := w.writeBatch(tw, entries); err != nil {
			tw.Close()
			return err
		}
		if err := tw.Close(); err != nil {
			return fmt.Errorf("pipeline: writer: close batch: %w", err)
		}
		w.metrics.RecordBatchLength(int64(len(entries)))
	}
}

func (w *Writer) writeBatch(tw BatchedTileWriter, entries []TileEntry) error {
	for _, entry := range entries {
		if w.haveLastCoord && !w.lastCoord.Less(entry.Coord) {
			return newInvariantError("tile order regressed: %s did not follow %s", entry.Coord, w.lastCoord)
		}
		if err := tw.Write(entry.Coord, entry.Bytes); err != nil {
			return fmt.Errorf("pipeline: writer: write tile %s: %w", entry.Coord, err)
		}
		w.lastCoord = entry.Coord
		w.haveLastCoord = true
		w.metrics.WroteTile(entry.Coord.Z())
	}
	w.metrics.SetLastTileWritten(w.lastCoord)
	return nil
}
