package pipeline_test

import (
	"context"
	"testing"

	"github.com/pronitdas/planetiler/internal/fixtures"
	"github.com/pronitdas/planetiler/pipeline"
	"github.com/pronitdas/planetiler/telemetry"
)

func runSupervisor(t *testing.T, store pipeline.Store, cfg pipeline.Config, archive *fakeArchive) (*telemetry.Registry, error) {
	t.Helper()
	cfg = cfg.WithDefaults()
	metrics := telemetry.NewRegistry(cfg.MaxZoom, nil, nil)
	sup := &pipeline.Supervisor{
		Store:   store,
		Archive: archive,
		Config:  cfg,
		Metrics: metrics,
	}
	err := sup.Run(context.Background())
	return metrics, err
}

func TestSupervisorEmptyStream(t *testing.T) {
	store := fixtures.NewFromGroups(nil)
	archive := &fakeArchive{}

	metrics, err := runSupervisor(t, store, pipeline.Config{MaxZoom: 0}, archive)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if archive.rowCount() != 0 {
		t.Errorf("expected zero rows, got %d", archive.rowCount())
	}
	if metrics.TilesEmitted() != 0 {
		t.Errorf("expected zero tiles emitted, got %d", metrics.TilesEmitted())
	}
	if !archive.closed {
		t.Errorf("expected archive to be closed")
	}
}

func TestSupervisorSingleTile(t *testing.T) {
	g := fixtures.NewGroup(0, 0, 0, 1, 1)
	store := fixtures.NewFromGroups([]pipeline.Group{g})
	archive := &fakeArchive{}

	metrics, err := runSupervisor(t, store, pipeline.Config{MaxZoom: 0}, archive)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if archive.rowCount() != 1 {
		t.Fatalf("expected exactly one row, got %d", archive.rowCount())
	}
	if archive.rows[0].coord.X() != 0 || archive.rows[0].coord.Y() != 0 || archive.rows[0].coord.Z() != 0 {
		t.Errorf("wrote unexpected coord: %v", archive.rows[0].coord)
	}
	if metrics.TilesEmitted() != 1 {
		t.Errorf("expected TilesEmitted=1, got %d", metrics.TilesEmitted())
	}
}

func TestSupervisorOrderedTopologyPreservesArchiveOrder(t *testing.T) {
	store := fixtures.NewGridStore(0, 5, 1, fixtures.ZoomSeed())
	archive := &fakeArchive{}

	_, err := runSupervisor(t, store, pipeline.Config{MaxZoom: 5, Threads: 4, EmitTilesInOrder: true, MaxTilesPerBatch: 7}, archive)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i := 1; i < len(archive.rows); i++ {
		if !archive.rows[i-1].coord.Less(archive.rows[i].coord) {
			t.Fatalf("archive order regressed at row %d: %v then %v", i, archive.rows[i-1].coord, archive.rows[i].coord)
		}
	}
}

func TestSupervisorFailsOnNonMonotonicInput(t *testing.T) {
	// Two tiles handed to the store in descending coordinate order: this
	// violates the store's ordering contract deliberately, to exercise the
	// writer's monotonicity check end to end.
	g1 := fixtures.NewGroup(1, 0, 5, 1, 1)
	g2 := fixtures.NewGroup(0, 0, 5, 1, 1)
	store := fixtures.NewFromGroups([]pipeline.Group{g1, g2})
	archive := &fakeArchive{}

	_, err := runSupervisor(t, store, pipeline.Config{MaxZoom: 5, Threads: 1}, archive)
	if err == nil {
		t.Fatal("expected an invariant-violation error")
	}
}
