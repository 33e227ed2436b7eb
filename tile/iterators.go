package tile

import (
	"errors"
	"iter"
)

var errVisitCancelled = errors.New("visit cancelled")

// IterTiles adapts a Visitor to a range-over-func iterator, letting a caller
// walk an archive's tiles with a plain for range loop instead of a callback. Breaking out of the loop stops the
// underlying walk cleanly; any other error from the Visitor panics, since
// there is no caller left downstream to hand it to.
func IterTiles(r Visitor) iter.Seq2[ID, []byte] {
	return func(yield func(ID, []byte) bool) {
		err := r.VisitTiles(func(tileID ID, tileData []byte) error {
			if !yield(tileID, tileData) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}
