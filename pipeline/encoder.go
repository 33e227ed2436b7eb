package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pronitdas/planetiler/telemetry"
	"github.com/pronitdas/planetiler/vectortile"
)

// worker holds one encoder goroutine's memoization state. Its fields persist
// across every batch that goroutine processes, not just within one batch:
// two adjacent tiles with identical contents encode to identical bytes, so
// when the same worker meets the same contents again it skips straight to
// the cached gzip output.
type worker struct {
	id int

	lastGroup   Group
	lastEncoded []byte
	lastGzipped []byte
}

// Encoder runs a pool of worker goroutines that turn Groups into encoded,
// gzip-compressed TileEntry values and complete the TileBatch that held them.
type Encoder struct {
	cfg          Config
	metrics      *telemetry.Registry
	postProcess  *PostProcessorRegistry
	logger       *slog.Logger
}

// NewEncoder constructs an Encoder. postProcess may be nil.
func NewEncoder(cfg Config, metrics *telemetry.Registry, postProcess *PostProcessorRegistry, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Encoder{cfg: cfg, metrics: metrics, postProcess: postProcess, logger: logger}
}

// Run starts cfg.Threads worker goroutines consuming from encoderQueue. Each
// completed batch is written back via TileBatch.Complete. When writerQueue
// is non-nil (the unordered topology), the same *TileBatch is forwarded to
// it immediately after completion so the writer can pick it up without
// caring about encoder scheduling order; writerQueue is closed once every
// worker has exited. Run returns the first encode failure it observes, or
// nil once encoderQueue is drained.
func (e *Encoder) Run(ctx context.Context, encoderQueue <-chan *TileBatch, writerQueue chan<- *TileBatch) error {
	var wg sync.WaitGroup
	errs := make(chan error, e.cfg.Threads)

	for i := 0; i < e.cfg.Threads; i++ {
		wg.Add(1)
		w := &worker{id: i}
		go func() {
			defer wg.Done()
			for batch := range encoderQueue {
				entries, err := e.processBatch(ctx, w, batch)
				batch.Complete(entries, err)
				if writerQueue != nil {
					select {
					case writerQueue <- batch:
					case <-ctx.Done():
					}
				}
				if err != nil {
					select {
					case errs <- err:
					default:
					}
				}
			}
		}()
	}

	wg.Wait()
	if writerQueue != nil {
		close(writerQueue)
	}
	close(errs)
	return <-errs
}

// processBatch encodes every group in batch in order, using and updating w's
// memoization state. It never returns a partial result: the first encode
// failure aborts the rest of the batch.
func (e *Encoder) processBatch(ctx context.Context, w *worker, batch *TileBatch) ([]TileEntry, error) {
	entries := make([]TileEntry, 0, batch.Len())
	for _, group := range batch.Groups {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		e.metrics.AddFeaturesProcessed(group.NumFeaturesProcessed())

		gzipped, encodedLen, memoized, err := e.encodeOne(w, group)
		if err != nil {
			return nil, &EncodeError{Coord: group.Coord().String(), Err: err}
		}
		if memoized {
			e.metrics.IncMemoizedTiles()
		}
		e.metrics.RecordEncodedTile(group.Coord().Z(), encodedLen)
		if int64(encodedLen) > e.cfg.OversizedTileBytes {
			e.logger.Warn("oversized tile", "coord", group.Coord().String(), "bytes", encodedLen)
		}

		entries = append(entries, TileEntry{Coord: group.Coord(), Bytes: gzipped})
		w.lastGroup = group
	}
	return entries, nil
}

// encodeOne returns the gzip-compressed bytes for group, the uncompressed
// encoded length (used for size telemetry, which reports the wire size
// before compression), and whether the result was served from w's
// single-slot memoization cache.
func (e *Encoder) encodeOne(w *worker, group Group) (gzipped []byte, encodedLen int, memoized bool, err error) {
	if w.lastGroup != nil && group.HasSameContents(w.lastGroup) {
		return w.lastGzipped, len(w.lastEncoded), true, nil
	}

	t, err := group.BuildTile()
	if err != nil {
		return nil, 0, false, fmt.Errorf("build tile: %w", err)
	}
	if err := e.postProcess.Apply(group.Coord().Z(), t); err != nil {
		return nil, 0, false, fmt.Errorf("post-process: %w", err)
	}

	encoded, err := t.Encode()
	if err != nil {
		return nil, 0, false, fmt.Errorf("encode: %w", err)
	}
	gz, err := vectortile.Gzip(encoded)
	if err != nil {
		return nil, 0, false, fmt.Errorf("gzip: %w", err)
	}

	w.lastEncoded = encoded
	w.lastGzipped = gz
	return gz, len(encoded), false, nil
}
