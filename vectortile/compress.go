package vectortile

import (
	"bytes"
	"compress/gzip"
	"fmt"
)

// Gzip compresses data with a fixed, deterministic configuration: default
// compression level and the zero-value header timestamp. Determinism is
// required so that the bytes the assembly pipeline's per-worker memoization
// reuses for an identical adjacent tile equal what a fresh encode would give.
func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("vectortile: gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("vectortile: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("vectortile: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}
