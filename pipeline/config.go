package pipeline

import (
	"time"

	"github.com/pronitdas/planetiler/telemetry"
)

// Default batching and back-pressure knobs, matching the reference pipeline.
// Implementations should treat these as configuration, not constants.
const (
	DefaultMaxTilesPerBatch    = 1000
	DefaultMaxFeaturesPerBatch = 10000
	DefaultQueueCapacity       = 5000
	DefaultOversizedTileBytes  = 1_000_000
)

// Config controls batching, topology and archive shutdown behavior.
type Config struct {
	MinZoom, MaxZoom int

	// Threads is the number of parallel encoder workers.
	Threads int

	// EmitTilesInOrder selects the ordered topology: the reader tees each
	// batch into an auxiliary FIFO consumed by the writer, guaranteeing
	// archive write order equals reader emission order regardless of
	// encoder scheduling. When false, encoder output feeds the writer
	// directly and only within-batch order is guaranteed.
	EmitTilesInOrder bool

	// DeferIndexCreation delays the archive index until after all tiles
	// are written.
	DeferIndexCreation bool

	// OptimizeDB runs a vacuum/analyze pass at archive close.
	OptimizeDB bool

	MaxTilesPerBatch    int
	MaxFeaturesPerBatch int
	QueueCapacity       int

	// OversizedTileBytes is the uncompressed tile size, in bytes, above
	// which a warning is logged. The tile is still written.
	OversizedTileBytes int64

	LogInterval time.Duration

	Extents      telemetry.Extents
	LatLonBounds LatLonBounds
	Metadata     Metadata
}

// WithDefaults returns a copy of c with zero-valued knobs replaced by their
// documented defaults.
func (c Config) WithDefaults() Config {
	if c.MaxTilesPerBatch <= 0 {
		c.MaxTilesPerBatch = DefaultMaxTilesPerBatch
	}
	if c.MaxFeaturesPerBatch <= 0 {
		c.MaxFeaturesPerBatch = DefaultMaxFeaturesPerBatch
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.OversizedTileBytes <= 0 {
		c.OversizedTileBytes = DefaultOversizedTileBytes
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.LogInterval <= 0 {
		c.LogInterval = 10 * time.Second
	}
	return c
}
