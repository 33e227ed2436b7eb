package pipeline_test

import (
	"sync"

	"github.com/pronitdas/planetiler/pipeline"
	"github.com/pronitdas/planetiler/tile"
)

// fakeArchive is an in-memory pipeline.Archive used by writer and supervisor
// tests. It records every call so tests can assert on ordering, index
// timing and shutdown sequencing.
type fakeArchive struct {
	mu sync.Mutex

	schemaSetUp        bool
	metadata           pipeline.Metadata
	indexCreatedCount  int
	rowsAtFirstIndex   int
	vacuumed           bool
	closed             bool
	rows               []fakeRow
}

type fakeRow struct {
	coord tile.Coord
	data  []byte
}

func (a *fakeArchive) SetupSchema() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.schemaSetUp = true
	return nil
}

func (a *fakeArchive) AddIndex() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexCreatedCount++
	if a.indexCreatedCount == 1 {
		a.rowsAtFirstIndex = len(a.rows)
	}
	return nil
}

func (a *fakeArchive) SetMetadata(md pipeline.Metadata) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata = md
	return nil
}

func (a *fakeArchive) NewBatchedTileWriter() (pipeline.BatchedTileWriter, error) {
	return &fakeBatchWriter{archive: a}, nil
}

func (a *fakeArchive) VacuumAnalyze() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vacuumed = true
	return nil
}

func (a *fakeArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *fakeArchive) rowCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rows)
}

type fakeBatchWriter struct {
	archive *fakeArchive
}

func (w *fakeBatchWriter) Write(coord tile.Coord, data []byte) error {
	w.archive.mu.Lock()
	defer w.archive.mu.Unlock()
	w.archive.rows = append(w.archive.rows, fakeRow{coord: coord, data: data})
	return nil
}

func (w *fakeBatchWriter) Close() error { return nil }
