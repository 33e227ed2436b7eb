package pipeline

import "github.com/pronitdas/planetiler/tile"

// Metadata is the set of archive-level metadata the writer persists before
// the first tile is written.
type Metadata struct {
	Name          string
	Description   string
	Attribution   string
	Version       string
	Overlay       bool // false = baselayer
	Bounds        LatLonBounds
	MinZoom       int
	MaxZoom       int
	TileStatsJSON string // opaque, upstream-provided per-layer statistics blob
}

// LatLonBounds is a geographic bounding box in degrees.
type LatLonBounds struct {
	West, South, East, North float64
}

// Center returns the bounding box's centroid and the configured max zoom,
// in the "lon,lat,zoom" form archives conventionally store.
func (b LatLonBounds) Center(zoom int) (lon, lat float64, z int) {
	return (b.West + b.East) / 2, (b.South + b.North) / 2, zoom
}

// BatchedTileWriter appends tiles to an archive inside a single write
// transaction; Close commits the transaction and must make every write
// durable.
type BatchedTileWriter interface {
	Write(coord tile.Coord, data []byte) error
	Close() error
}

// Archive is the tile storage backend the writer stage appends to. Backends
// are expected to batch writes into one transaction per TileBatch and to
// guarantee durability once Close returns.
type Archive interface {
	SetupSchema() error
	AddIndex() error
	SetMetadata(Metadata) error
	NewBatchedTileWriter() (BatchedTileWriter, error)
	VacuumAnalyze() error
	Close() error
}
