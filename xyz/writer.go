package xyz

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pronitdas/planetiler/tile"
)

// Writer implements tile.Writer against a directory tree of per-tile files,
// one of the two archive formats the format-conversion CLI can produce for
// this module's tile assembly output (the other being mb.Archive).
type Writer struct {
	filePattern string
}

// NewWriter creates a new Writer for the given file pattern (e.g. "/home/user/tiles/{z}/{x}/{y}.png").
func NewWriter(filePattern string) (*Writer, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	return &Writer{filePattern}, nil
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	if !tileID.Valid() {
		return fmt.Errorf("xyz: write tile: %v is outside the tile grid or exceeds zoom %d", tileID, tile.MaxZoom)
	}
	filePath := formatPattern(w.filePattern, tileID)

	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return err
	}

	return os.WriteFile(filePath, tileData, 0644)
}

func (w *Writer) Finalize() error {
	return nil
}
