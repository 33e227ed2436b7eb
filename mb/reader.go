// Package mb implements the MBTiles (SQLite) archive backend the tile
// assembly pipeline writes to and the format-conversion CLI reads and
// writes: Archive and TileWriter for writing, Reader for reading.
//
// Note: callers must initialize the sqlite3 driver (e.g. import
// _ "github.com/mattn/go-sqlite3") before using this package.
package mb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pronitdas/planetiler/tile"
)

// Reader implements tile.Reader and tile.Visitor against an MBTiles file,
// translating stored TMS rows back to the XYZ tile.Coord the rest of this
// module deals in.
type Reader struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewReader opens the MBTiles file at filePath read-only.
//
// The returned Reader must be closed after use to release database resources.
func NewReader(filePath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}

	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Reader{db: db, stmt: stmt}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.stmt.Close(), r.db.Close())
}

// ReadMetadata returns the archive's metadata table verbatim, so a caller
// converting between formats can carry unrecognized keys through untouched.
func (r *Reader) ReadMetadata() (map[string]string, error) {
	metadata := make(map[string]string)

	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return metadata, nil
}

// ReadTile implements tile.Reader. A missing tile is not an error: it
// returns an empty (non-nil) slice, matching the archive contract every
// backend in this module follows.
func (r *Reader) ReadTile(id tile.ID) ([]byte, error) {
	coord := tile.FromID(id)

	var tileData []byte
	err := r.stmt.QueryRow(coord.Z(), coord.X(), tmsRow(coord.Z(), coord.Y())).Scan(&tileData)
	if errors.Is(err, sql.ErrNoRows) {
		return make([]byte, 0), nil
	}
	return tileData, err
}

// VisitTiles implements tile.Visitor, walking every row of the archive in
// storage order and translating each back to an XYZ tile.ID for the caller.
func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	rows, err := r.db.Query("SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var z, x, tmsY int
		var tileData []byte

		if err := rows.Scan(&z, &x, &tmsY, &tileData); err != nil {
			return err
		}

		coord := tile.FromXYZ(x, tmsRow(z, tmsY), z) // tmsRow is its own inverse
		if err := visitor(coord.ID(), tileData); err != nil {
			return err
		}
	}

	return rows.Err()
}
