package pipeline_test

import (
	"context"
	"testing"

	"github.com/pronitdas/planetiler/internal/fixtures"
	"github.com/pronitdas/planetiler/pipeline"
	"github.com/pronitdas/planetiler/telemetry"
)

func drainBatches(t *testing.T, ch <-chan *pipeline.TileBatch) []*pipeline.TileBatch {
	t.Helper()
	var out []*pipeline.TileBatch
	for b := range ch {
		out = append(out, b)
	}
	return out
}

func TestReaderRespectsMaxTilesPerBatch(t *testing.T) {
	store := fixtures.NewGridStore(6, 6, 1, fixtures.ConstantSeed(0))
	cfg := pipeline.Config{MaxTilesPerBatch: 100, MaxFeaturesPerBatch: 1_000_000, QueueCapacity: 8}.WithDefaults()
	metrics := telemetry.NewRegistry(cfg.MaxZoom, nil, nil)
	reader := pipeline.NewReader(store, cfg, metrics)

	encoderQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)
	go func() {
		if err := reader.Run(context.Background(), encoderQueue, nil); err != nil {
			t.Errorf("reader.Run: %v", err)
		}
	}()

	batches := drainBatches(t, encoderQueue)

	total := 0
	for i, b := range batches {
		if b.Len() > cfg.MaxTilesPerBatch {
			t.Errorf("batch %d exceeds MaxTilesPerBatch: %d", i, b.Len())
		}
		total += b.Len()
	}
	want := (1 << 6) * (1 << 6) // 2^z * 2^z tiles at z=6
	if total != want {
		t.Errorf("total tiles across batches = %d, want %d", total, want)
	}
}

func TestReaderRespectsMaxFeaturesPerBatch(t *testing.T) {
	store := fixtures.NewGridStore(6, 6, 3000, fixtures.ConstantSeed(0))
	cfg := pipeline.Config{MaxTilesPerBatch: 1_000_000, MaxFeaturesPerBatch: 10_000, QueueCapacity: 8}.WithDefaults()
	metrics := telemetry.NewRegistry(cfg.MaxZoom, nil, nil)
	reader := pipeline.NewReader(store, cfg, metrics)

	encoderQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)
	go func() {
		if err := reader.Run(context.Background(), encoderQueue, nil); err != nil {
			t.Errorf("reader.Run: %v", err)
		}
	}()

	batches := drainBatches(t, encoderQueue)
	for i, b := range batches {
		features := 0
		for _, g := range b.Groups {
			features += g.NumFeaturesToEmit()
		}
		if features > cfg.MaxFeaturesPerBatch && b.Len() != 1 {
			t.Errorf("batch %d has %d features (> max) with %d tiles", i, features, b.Len())
		}
	}
}

// TestReaderPacksAcrossZoomBoundary confirms a zoom transition alone never
// forces a flush: a batch left under threshold by the last tile of one zoom
// keeps filling from the next zoom's tiles, same as any other tile.
func TestReaderPacksAcrossZoomBoundary(t *testing.T) {
	var groups []pipeline.Group
	for i := 0; i < 1001; i++ {
		groups = append(groups, fixtures.NewGroup(0, 8191-i, 13, 0, 1000))
	}
	groups = append(groups, fixtures.NewGroup(0, 0, 14, 0, 1000))
	store := fixtures.NewFromGroups(groups)

	cfg := pipeline.Config{MaxTilesPerBatch: 1_000_000, MaxFeaturesPerBatch: 10_000, QueueCapacity: 256}.WithDefaults()
	metrics := telemetry.NewRegistry(14, nil, nil)
	reader := pipeline.NewReader(store, cfg, metrics)

	encoderQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)
	go func() {
		if err := reader.Run(context.Background(), encoderQueue, nil); err != nil {
			t.Errorf("reader.Run: %v", err)
		}
	}()

	batches := drainBatches(t, encoderQueue)

	total := 0
	for i, b := range batches {
		features := 0
		for _, g := range b.Groups {
			features += g.NumFeaturesToEmit()
		}
		if features > cfg.MaxFeaturesPerBatch && b.Len() != 1 {
			t.Errorf("batch %d has %d features (> max) with %d tiles", i, features, b.Len())
		}
		total += b.Len()
	}
	if total != 1002 {
		t.Errorf("total tiles across batches = %d, want 1002", total)
	}

	last := batches[len(batches)-1]
	zooms := make(map[int]bool)
	for _, g := range last.Groups {
		zooms[g.Coord().Z()] = true
	}
	if !zooms[13] || !zooms[14] {
		t.Errorf("expected the trailing z=13 tile to pack into the same batch as the z=14 tile, got zooms=%v", zooms)
	}
}

func TestReaderEmitsOrderedSideChannel(t *testing.T) {
	store := fixtures.NewGridStore(4, 4, 1, fixtures.ConstantSeed(0))
	cfg := pipeline.Config{MaxTilesPerBatch: 4, MaxFeaturesPerBatch: 1_000_000, QueueCapacity: 8}.WithDefaults()
	metrics := telemetry.NewRegistry(cfg.MaxZoom, nil, nil)
	reader := pipeline.NewReader(store, cfg, metrics)

	encoderQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)
	orderedQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)
	go func() {
		if err := reader.Run(context.Background(), encoderQueue, orderedQueue); err != nil {
			t.Errorf("reader.Run: %v", err)
		}
	}()

	encoderBatches := drainBatches(t, encoderQueue)
	orderedBatches := drainBatches(t, orderedQueue)

	if len(encoderBatches) != len(orderedBatches) {
		t.Fatalf("encoder queue got %d batches, ordered queue got %d", len(encoderBatches), len(orderedBatches))
	}
	for i := range encoderBatches {
		if encoderBatches[i] != orderedBatches[i] {
			t.Errorf("batch %d: encoder and ordered queues disagree on identity", i)
		}
	}
}
