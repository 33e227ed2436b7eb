package mb

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pronitdas/planetiler/pipeline"
	"github.com/pronitdas/planetiler/tile"
)

// tmsRow converts an XYZ row to the TMS row MBTiles stores on disk. The
// conversion is its own inverse, so the same function reads rows back out
// (see Reader.ReadTile/VisitTiles).
func tmsRow(z, y int) int { return (1 << uint(z)) - 1 - y }

// Archive implements pipeline.Archive against an MBTiles (SQLite) file. It
// is the module's reference tile storage backend.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

type archiveConfig struct {
	Logger *slog.Logger
}

// ArchiveOption configures a new Archive.
type ArchiveOption func(*archiveConfig)

// WithLogger overrides the archive's logger. The default discards.
func WithLogger(logger *slog.Logger) ArchiveOption {
	return func(c *archiveConfig) { c.Logger = logger }
}

// NewArchive opens (creating if necessary) an MBTiles file at filePath.
func NewArchive(filePath string, opts ...ArchiveOption) (*Archive, error) {
	config := archiveConfig{Logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, fmt.Errorf("mb: open %s: %w", filePath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("mb: pragma: %w", err)
	}
	return &Archive{db: db, logger: config.Logger}, nil
}

// SetupSchema creates the metadata and tiles tables.
func (a *Archive) SetupSchema() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (name TEXT PRIMARY KEY, value TEXT);
		CREATE TABLE IF NOT EXISTS tiles (
			zoom_level INTEGER,
			tile_column INTEGER,
			tile_row INTEGER,
			tile_data BLOB
		);
	`)
	if err != nil {
		return fmt.Errorf("mb: setup schema: %w", err)
	}
	return nil
}

// AddIndex creates the unique tile index. Safe to call before or after
// tiles are written; the writer stage calls it once, before the first write,
// or after the last write when index creation is deferred.
func (a *Archive) AddIndex() error {
	a.logger.Debug("mb: creating tile index")
	_, err := a.db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row)")
	if err != nil {
		return fmt.Errorf("mb: add index: %w", err)
	}
	return nil
}

// SetMetadata writes the standard MBTiles metadata keys plus the opaque
// tilestats JSON blob under "json", following the metadata table
// convention consumers of the format expect.
func (a *Archive) SetMetadata(md pipeline.Metadata) error {
	layerType := "baselayer"
	if md.Overlay {
		layerType = "overlay"
	}
	lon, lat, z := md.Bounds.Center(md.MaxZoom)

	rows := map[string]string{
		"name":        md.Name,
		"format":      "pbf",
		"description": md.Description,
		"attribution": md.Attribution,
		"version":     md.Version,
		"type":        layerType,
		"bounds": fmt.Sprintf("%g,%g,%g,%g", md.Bounds.West, md.Bounds.South, md.Bounds.East, md.Bounds.North),
		"center":  fmt.Sprintf("%g,%g,%d", lon, lat, z),
		"minzoom": fmt.Sprintf("%d", md.MinZoom),
		"maxzoom": fmt.Sprintf("%d", md.MaxZoom),
	}
	if md.TileStatsJSON != "" {
		rows["json"] = md.TileStatsJSON
	}
	return a.SetRawMetadata(rows)
}

// SetRawMetadata upserts metadata rows verbatim, for callers that already
// hold a source archive's metadata as a plain string map and want it carried
// through unchanged (the format-conversion CLI) rather than rebuilt from a
// pipeline.Metadata. SetMetadata itself is a thin wrapper around this.
func (a *Archive) SetRawMetadata(rows map[string]string) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("mb: set metadata: begin: %w", err)
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("mb: set metadata: prepare: %w", err)
	}
	for k, v := range rows {
		if _, err := stmt.Exec(k, v); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("mb: set metadata: insert %s: %w", k, err)
		}
	}
	stmt.Close()
	return tx.Commit()
}

// BatchWriter appends tiles to the archive inside one SQLite transaction.
type BatchWriter struct {
	tx   *sql.Tx
	stmt *sql.Stmt
}

// NewBatchedTileWriter opens one write transaction covering the next batch
// of tiles.
func (a *Archive) NewBatchedTileWriter() (pipeline.BatchedTileWriter, error) {
	tx, err := a.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("mb: new batch: begin: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("mb: new batch: prepare: %w", err)
	}
	return &BatchWriter{tx: tx, stmt: stmt}, nil
}

// Write inserts one tile, translating the XYZ coordinate to the TMS row
// convention MBTiles stores on disk.
func (bw *BatchWriter) Write(coord tile.Coord, data []byte) error {
	_, err := bw.stmt.Exec(coord.Z(), coord.X(), tmsRow(coord.Z(), coord.Y()), data)
	if err != nil {
		return fmt.Errorf("mb: write tile: %w", err)
	}
	return nil
}

// Close commits the transaction, making every tile written since
// NewBatchedTileWriter durable.
func (bw *BatchWriter) Close() error {
	if err := bw.stmt.Close(); err != nil {
		bw.tx.Rollback()
		return fmt.Errorf("mb: close batch: %w", err)
	}
	if err := bw.tx.Commit(); err != nil {
		return fmt.Errorf("mb: close batch: commit: %w", err)
	}
	return nil
}

// VacuumAnalyze runs ANALYZE followed by VACUUM to compact the file and
// refresh the query planner's statistics.
func (a *Archive) VacuumAnalyze() error {
	if _, err := a.db.Exec("ANALYZE"); err != nil {
		return fmt.Errorf("mb: analyze: %w", err)
	}
	if _, err := a.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("mb: vacuum: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
