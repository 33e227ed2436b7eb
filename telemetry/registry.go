// Package telemetry holds the process-wide counters the assembly pipeline
// updates as it runs, and formats them for an external progress logger. It
// also exposes the same counters as Prometheus metrics for scraping.
package telemetry

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/pronitdas/planetiler/tile"
	"github.com/prometheus/client_golang/prometheus"
)

// ZoomExtent is the horizontal tile range covered at one zoom level, used
// only to compute the "percent through this zoom" figure in the last-tile
// telemetry string.
type ZoomExtent struct {
	MinX, MaxX int
}

// Extents holds one ZoomExtent per zoom level, indexed by zoom.
type Extents []ZoomExtent

// ForZoom returns the extent registered for z, or the zero value if none
// was configured.
func (e Extents) ForZoom(z int) ZoomExtent {
	if z < 0 || z >= len(e) {
		return ZoomExtent{}
	}
	return e[z]
}

// zoomCounters is the per-zoom bucket of counters described in spec section
// 3: a single-writer tile count, a multi-writer cumulative byte sum, and a
// multi-writer monotonic byte-size watermark.
type zoomCounters struct {
	tiles      atomic.Int64
	totalBytes atomic.Int64
	maxBytes   atomic.Int64
}

// Registry is the pipeline supervisor's telemetry hub. Workers receive it at
// construction and update it directly; it never blocks.
type Registry struct {
	extents Extents
	minZoom int
	maxZoom int
	byZoom  []zoomCounters

	featuresProcessed atomic.Int64
	memoizedTiles     atomic.Int64

	lastTileWritten atomic.Pointer[tile.Coord]
	maxBatchLength  atomic.Int64
	minBatchLength  atomic.Int64

	tilesWritten     *prometheus.CounterVec
	bytesWritten     *prometheus.CounterVec
	maxTileBytes     *prometheus.GaugeVec
	featuresCounter  prometheus.Counter
	memoizedCounter  prometheus.Counter
	batchLenObserver prometheus.Histogram
}

// NewRegistry builds a Registry for zoom levels [0, maxZoom] and registers
// its Prometheus collectors against reg. Pass nil to skip Prometheus
// registration (e.g. in tests that construct multiple registries).
func NewRegistry(maxZoom int, extents Extents, reg prometheus.Registerer) *Registry {
	r := &Registry{
		extents: extents,
		maxZoom: maxZoom,
		byZoom:  make([]zoomCounters, maxZoom+1),
	}
	r.minBatchLength.Store(math.MaxInt64)

	r.tilesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tileforge_tiles_written_total",
		Help: "Tiles appended to the archive, by zoom level.",
	}, []string{"zoom"})
	r.bytesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tileforge_tile_bytes_total",
		Help: "Cumulative uncompressed encoded tile bytes, by zoom level.",
	}, []string{"zoom"})
	r.maxTileBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tileforge_max_tile_bytes",
		Help: "Largest uncompressed encoded tile seen so far, by zoom level.",
	}, []string{"zoom"})
	r.featuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tileforge_features_processed_total",
		Help: "Source features consumed by the encoder.",
	})
	r.memoizedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tileforge_memoized_tiles_total",
		Help: "Tiles whose bytes were reused from the previous tile encoded by the same worker.",
	})
	r.batchLenObserver = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tileforge_batch_length",
		Help:    "Distribution of tile counts per written batch.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1000},
	})

	if reg != nil {
		reg.MustRegister(r.tilesWritten, r.bytesWritten, r.maxTileBytes,
			r.featuresCounter, r.memoizedCounter, r.batchLenObserver)
	}
	return r
}

// ZoomStarted is a no-op hook point for a zoom-transition event; kept so the
// reader can call it without special-casing telemetry-less test setups.
func (r *Registry) ZoomStarted(z int) {}

// AddFeaturesProcessed records features consumed by an encoder worker.
func (r *Registry) AddFeaturesProcessed(n int) {
	if n <= 0 {
		return
	}
	r.featuresProcessed.Add(int64(n))
	r.featuresCounter.Add(float64(n))
}

// IncMemoizedTiles records one reused (memoized) tile encoding.
func (r *Registry) IncMemoizedTiles() {
	r.memoizedTiles.Add(1)
	r.memoizedCounter.Inc()
}

// RecordEncodedTile updates the per-zoom byte sum and max-byte watermark for
// one encoded (uncompressed) tile.
func (r *Registry) RecordEncodedTile(zoom int, encodedLen int) {
	if zoom < 0 || zoom >= len(r.byZoom) {
		return
	}
	z := &r.byZoom[zoom]
	z.totalBytes.Add(int64(encodedLen))
	atomicMax(&z.maxBytes, int64(encodedLen))

	zoomLabel := fmt.Sprintf("%d", zoom)
	r.bytesWritten.WithLabelValues(zoomLabel).Add(float64(encodedLen))
	current := z.maxBytes.Load()
	r.maxTileBytes.WithLabelValues(zoomLabel).Set(float64(current))
}

// WroteTile records that one tile at zoom z was appended to the archive.
// Called only by the writer, which is single-threaded, but stored as an
// atomic so telemetry readers never race with it.
func (r *Registry) WroteTile(zoom int) {
	if zoom < 0 || zoom >= len(r.byZoom) {
		return
	}
	r.byZoom[zoom].tiles.Add(1)
	r.tilesWritten.WithLabelValues(fmt.Sprintf("%d", zoom)).Inc()
}

// SetLastTileWritten publishes the most recently written coordinate.
func (r *Registry) SetLastTileWritten(c tile.Coord) {
	cc := c
	r.lastTileWritten.Store(&cc)
}

// RecordBatchLength folds n into the monotonic max/min batch-length
// accumulators, which telemetry polling resets via PollBatchRange.
func (r *Registry) RecordBatchLength(n int64) {
	atomicMax(&r.maxBatchLength, n)
	atomicMin(&r.minBatchLength, n)
	r.batchLenObserver.Observe(float64(n))
}

// PollBatchRange returns the batch length range observed since the last
// poll and resets the accumulators, per spec section 3 ("reset on each
// telemetry poll").
func (r *Registry) PollBatchRange() (min, max int64) {
	max = r.maxBatchLength.Swap(0)
	min = r.minBatchLength.Swap(math.MaxInt64)
	return min, max
}

// LastTileString renders the "last tile" progress line described in spec
// section 6. It returns "n/a" until the first tile has been written.
func (r *Registry) LastTileString() string {
	last := r.lastTileWritten.Load()
	minBatch, maxBatch := r.PollBatchRange()
	batchRange := "-"
	if minBatch > 0 && minBatch != math.MaxInt64 && maxBatch > 0 {
		batchRange = fmt.Sprintf("%d-%d", minBatch, maxBatch)
	}
	if last == nil {
		return "n/a"
	}
	z, x, y := last.Z(), last.X(), last.Y()
	extent := r.extents.ForZoom(z)
	percent := 0
	if span := extent.MaxX - extent.MinX; span != 0 {
		percent = 100 * (x + 1 - extent.MinX) / span
	}
	return fmt.Sprintf("%d/%d/%d (z%d %d%%) batch sizes: %s %s",
		z, x, y, z, percent, batchRange, last.DebugURL())
}

// ZoomStat is one row of the shutdown zoom summary.
type ZoomStat struct {
	Zoom     int
	AvgBytes int64
	MaxBytes int64
	Tiles    int64
}

// ZoomSummary computes the per-zoom average/max encoded size for
// [minZoom, maxZoom] plus a synthetic "all" row aggregating every zoom, with
// maxMax correctly taken as the max over zooms (spec section 9 fixes the
// upstream bug where this value was always zero).
func (r *Registry) ZoomSummary(minZoom, maxZoom int) (perZoom []ZoomStat, all ZoomStat) {
	var sumSize, sumCount, maxMax int64
	for z := minZoom; z <= maxZoom && z < len(r.byZoom); z++ {
		zc := &r.byZoom[z]
		count := zc.tiles.Load()
		size := zc.totalBytes.Load()
		maxSize := zc.maxBytes.Load()
		sumSize += size
		sumCount += count
		if maxSize > maxMax {
			maxMax = maxSize
		}
		avg := int64(0)
		if count > 0 {
			avg = size / count
		}
		perZoom = append(perZoom, ZoomStat{Zoom: z, AvgBytes: avg, MaxBytes: maxSize, Tiles: count})
	}
	avgAll := int64(0)
	if sumCount > 0 {
		avgAll = sumSize / sumCount
	}
	all = ZoomStat{AvgBytes: avgAll, MaxBytes: maxMax, Tiles: sumCount}
	return perZoom, all
}

// FeaturesProcessed returns the running total of features consumed.
func (r *Registry) FeaturesProcessed() int64 { return r.featuresProcessed.Load() }

// MemoizedTiles returns the running total of memoized tile reuses.
func (r *Registry) MemoizedTiles() int64 { return r.memoizedTiles.Load() }

// TilesEmitted returns the total tile count written across all zooms.
func (r *Registry) TilesEmitted() int64 {
	var total int64
	for i := range r.byZoom {
		total += r.byZoom[i].tiles.Load()
	}
	return total
}

func atomicMax(addr *atomic.Int64, val int64) {
	for {
		cur := addr.Load()
		if val <= cur {
			return
		}
		if addr.CompareAndSwap(cur, val) {
			return
		}
	}
}

func atomicMin(addr *atomic.Int64, val int64) {
	for {
		cur := addr.Load()
		if val >= cur {
			return
		}
		if addr.CompareAndSwap(cur, val) {
			return
		}
	}
}
