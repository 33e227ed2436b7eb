package pipeline

import (
	"context"

	"github.com/pronitdas/planetiler/telemetry"
)

// Reader pulls Groups from a Store and packs them into TileBatch values
// following the batching rule: a batch closes and a new one starts once it
// holds MaxTilesPerBatch groups, or once adding the next group would push it
// past MaxFeaturesPerBatch. A batch always holds at least one group,
// regardless of how large that group's feature count is.
type Reader struct {
	store   Store
	cfg     Config
	metrics *telemetry.Registry
}

// NewReader constructs a Reader over store using cfg's batching knobs.
func NewReader(store Store, cfg Config, metrics *telemetry.Registry) *Reader {
	return &Reader{store: store, cfg: cfg, metrics: metrics}
}

// Run drains the store into batches on encoderQueue. When orderedQueue is
// non-nil, every batch is also pushed there in emission order before it is
// pushed to encoderQueue, giving the writer stage a FIFO of the same batch
// pointers to await independently of encoder completion order. Run returns
// when the store is exhausted or when ctx is cancelled, and closes both
// queues on return.
func (r *Reader) Run(ctx context.Context, encoderQueue chan<- *TileBatch, orderedQueue chan<- *TileBatch) error {
	defer close(encoderQueue)
	if orderedQueue != nil {
		defer close(orderedQueue)
	}

	batch := NewTileBatch(r.cfg.MaxTilesPerBatch)
	featuresInBatch := 0
	lastZoom := -1

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if orderedQueue != nil {
			select {
			case orderedQueue <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case encoderQueue <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
		batch = NewTileBatch(r.cfg.MaxTilesPerBatch)
		featuresInBatch = 0
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		group, ok := r.store.Next()
		if !ok {
			return flush()
		}

		z := group.Coord().Z()
		if z != lastZoom {
			r.metrics.ZoomStarted(z)
			lastZoom = z
		}

		k := group.NumFeaturesToEmit()
		if batch.Len() > 0 && (batch.Len() >= r.cfg.MaxTilesPerBatch || featuresInBatch+k > r.cfg.MaxFeaturesPerBatch) {
			if err := flush(); err != nil {
				return err
			}
		}

		batch.Groups = append(batch.Groups, group)
		featuresInBatch += k
	}
}
