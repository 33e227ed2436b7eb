// Package tile provides the coordinate type and storage interfaces shared by
// every tile archive backend in this module.
package tile

// ID represents tile coordinates in the XYZ scheme (Tiled web map), the
// form every archive backend's public API accepts and returns; each backend
// translates ID to its own on-disk addressing (mb's TMS row complement, xyz's
// directory path).
type ID struct {
	X uint32
	Y uint32
	Z uint32
}

// Valid reports whether id falls inside the zoom range the assembly
// pipeline's Coord encoding supports and the tile grid for that zoom.
func (t ID) Valid() bool {
	return t.Z <= MaxZoom && t.X < (1<<t.Z) && t.Y < (1<<t.Z)
}

// Writer appends tiles to an archive one at a time, outside the batched
// assembly pipeline (used by the format-conversion CLI).
type Writer interface {
	// WriteTile writes a single tile to the archive.
	WriteTile(id ID, data []byte) error

	// Finalize completes the writing process: flushes buffers, writes
	// indices and metadata. It must be called before closing the Writer.
	Finalize() error
}

// Reader reads individual tiles back out of an archive by coordinate.
type Reader interface {
	// ReadTile reads a single tile from the archive.
	// It returns the tile data or an error if the tile cannot be read.
	// If the tile does not exist, it returns an empty slice with no error.
	ReadTile(id ID) ([]byte, error)
}

// Visitor walks every tile of an archive, in backend-defined order. The
// format-conversion CLI drives one archive's Visitor into another's Writer.
type Visitor interface {
	// VisitTiles visits all tiles in the archive, calling the visitor for each.
	// It returns an error if visiting fails.
	VisitTiles(visitor func(ID, []byte) error) error
}
