package xyz

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pronitdas/planetiler/tile"
)

// Reader implements tile.Reader and tile.Visitor against a directory tree of
// per-tile files, the counterpart to Writer used by the format-conversion
// CLI to read an XYZ archive back out (e.g. into an mb.Archive).
type Reader struct {
	filePattern string
	rootDir     string
	pathRegexp  *regexp.Regexp
}

// NewReader creates a new Reader for the given file pattern (e.g. "/home/user/tiles/{z}/{x}/{y}.png").
func NewReader(filePattern string) (*Reader, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}

	regexPattern := filePattern
	regexPattern = strings.ReplaceAll(regexPattern, "{x}", "(?P<x>\\d+)")
	regexPattern = strings.ReplaceAll(regexPattern, "{y}", "(?P<y>\\d+)")
	regexPattern = strings.ReplaceAll(regexPattern, "{z}", "(?P<z>\\d+)")
	pathRegex, err := regexp.Compile("^" + regexPattern + "$")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	path0 := formatPattern(filePattern, tile.ID{X: 0, Y: 0, Z: 0})
	path1 := formatPattern(filePattern, tile.ID{X: 1, Y: 1, Z: 1})
	for path0 != path1 {
		path0 = filepath.Dir(path0)
		path1 = filepath.Dir(path1)
	}
	rootDir := path0

	return &Reader{filePattern, rootDir, pathRegex}, nil
}

// ReadTile implements tile.Reader. A missing file is not an error: it
// returns an empty (non-nil) slice, matching the archive contract every
// backend in this module follows.
func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	filePath := formatPattern(r.filePattern, tileID)
	tileData, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return make([]byte, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

// VisitTiles implements tile.Visitor, walking the directory tree and
// parsing each matching path back into a tile.ID. Paths whose parsed
// coordinates fall outside this module's supported zoom range are skipped
// rather than handed to the visitor, since they can't have come from this
// module's own writer.
func (r *Reader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	return filepath.WalkDir(r.rootDir, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		matches := r.pathRegexp.FindStringSubmatch(filePath)
		if matches == nil {
			return nil
		}

		x, _ := strconv.Atoi(matches[r.pathRegexp.SubexpIndex("x")])
		y, _ := strconv.Atoi(matches[r.pathRegexp.SubexpIndex("y")])
		z, _ := strconv.Atoi(matches[r.pathRegexp.SubexpIndex("z")])

		tileID := tile.ID{X: uint32(x), Y: uint32(y), Z: uint32(z)}
		if !tileID.Valid() {
			return nil
		}

		tileData, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}

		return visitor(tileID, tileData)
	})
}
