// Package xyz is the second archive backend the format-conversion CLI can
// target: a directory tree of one file per tile, addressed by a path
// pattern like "/home/user/tiles/{z}/{x}/{y}.pbf", as an alternative to
// mb.Archive's single MBTiles file.
package xyz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pronitdas/planetiler/tile"
)

// ErrInvalidPattern is returned when a file pattern is missing one of the
// {x}, {y}, {z} placeholders every archive path needs.
var ErrInvalidPattern = errors.New("xyz: invalid file pattern")

func validatePattern(pattern string) error {
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	return nil
}

// formatPattern substitutes a tile's coordinates into pattern, producing the
// on-disk path for that tile.
func formatPattern(pattern string, tileID tile.ID) string {
	result := pattern
	result = strings.ReplaceAll(result, "{x}", fmt.Sprintf("%d", tileID.X))
	result = strings.ReplaceAll(result, "{y}", fmt.Sprintf("%d", tileID.Y))
	result = strings.ReplaceAll(result, "{z}", fmt.Sprintf("%d", tileID.Z))
	return result
}
