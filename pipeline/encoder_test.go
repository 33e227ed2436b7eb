package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/pronitdas/planetiler/internal/fixtures"
	"github.com/pronitdas/planetiler/pipeline"
	"github.com/pronitdas/planetiler/telemetry"
	"github.com/pronitdas/planetiler/vectortile"
)

func TestEncoderMemoizesAdjacentIdenticalTiles(t *testing.T) {
	g1 := fixtures.NewGroup(0, 0, 14, 1, 2)
	g2 := fixtures.NewGroup(0, 1, 14, 1, 2)
	g3 := fixtures.NewGroup(0, 2, 14, 1, 2)
	store := fixtures.NewFromGroups([]pipeline.Group{g1, g2, g3})

	cfg := pipeline.Config{Threads: 1, MaxTilesPerBatch: 1000, MaxFeaturesPerBatch: 100000, QueueCapacity: 8}.WithDefaults()
	metrics := telemetry.NewRegistry(14, nil, nil)
	reader := pipeline.NewReader(store, cfg, metrics)
	encoder := pipeline.NewEncoder(cfg, metrics, nil, nil)

	encoderQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)
	writerQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)

	go func() {
		if err := reader.Run(context.Background(), encoderQueue, nil); err != nil {
			t.Errorf("reader.Run: %v", err)
		}
	}()

	if err := encoder.Run(context.Background(), encoderQueue, writerQueue); err != nil {
		t.Fatalf("encoder.Run: %v", err)
	}

	var entries []pipeline.TileEntry
	for batch := range writerQueue {
		got, err := batch.Await(context.Background())
		if err != nil {
			t.Fatalf("batch.Await: %v", err)
		}
		entries = append(entries, got...)
	}

	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if string(entries[0].Bytes) != string(entries[1].Bytes) || string(entries[1].Bytes) != string(entries[2].Bytes) {
		t.Errorf("expected identical-content tiles to encode to identical bytes")
	}
	if got := metrics.MemoizedTiles(); got != 2 {
		t.Errorf("MemoizedTiles = %d, want 2", got)
	}
}

func TestEncoderFailsBatchOnBuildError(t *testing.T) {
	failing := failingGroup{fixtures.NewGroup(0, 0, 0, 1, 1)}
	store := fixtures.NewFromGroups([]pipeline.Group{failing})

	cfg := pipeline.Config{Threads: 1, MaxTilesPerBatch: 10, MaxFeaturesPerBatch: 100, QueueCapacity: 4}.WithDefaults()
	metrics := telemetry.NewRegistry(0, nil, nil)
	reader := pipeline.NewReader(store, cfg, metrics)
	encoder := pipeline.NewEncoder(cfg, metrics, nil, nil)

	encoderQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)
	writerQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)

	go reader.Run(context.Background(), encoderQueue, nil)

	err := encoder.Run(context.Background(), encoderQueue, writerQueue)
	if err == nil {
		t.Fatalf("expected encoder.Run to fail")
	}
}

func TestEncoderWarnsButStillWritesOversizedTile(t *testing.T) {
	g := fixtures.NewGroup(0, 0, 0, 1, 200)
	store := fixtures.NewFromGroups([]pipeline.Group{g})

	cfg := pipeline.Config{Threads: 1, MaxTilesPerBatch: 10, MaxFeaturesPerBatch: 1000, QueueCapacity: 4, OversizedTileBytes: 1}.WithDefaults()
	metrics := telemetry.NewRegistry(0, nil, nil)
	warnings := &recordingHandler{}
	logger := slog.New(warnings)
	reader := pipeline.NewReader(store, cfg, metrics)
	encoder := pipeline.NewEncoder(cfg, metrics, nil, logger)

	encoderQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)
	writerQueue := make(chan *pipeline.TileBatch, cfg.QueueCapacity)

	go reader.Run(context.Background(), encoderQueue, nil)

	if err := encoder.Run(context.Background(), encoderQueue, writerQueue); err != nil {
		t.Fatalf("encoder.Run: %v", err)
	}

	var entries []pipeline.TileEntry
	for batch := range writerQueue {
		got, err := batch.Await(context.Background())
		if err != nil {
			t.Fatalf("batch.Await: %v", err)
		}
		entries = append(entries, got...)
	}

	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if len(entries[0].Bytes) == 0 {
		t.Errorf("oversized tile was not written")
	}
	if warnings.count(slog.LevelWarn) == 0 {
		t.Errorf("expected an oversized-tile warning to be logged")
	}
}

// recordingHandler is a minimal slog.Handler that counts records by level,
// used to assert a warning was logged without depending on log formatting.
type recordingHandler struct {
	counts [4]int // debug, info, warn, error
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	switch {
	case r.Level >= slog.LevelError:
		h.counts[3]++
	case r.Level >= slog.LevelWarn:
		h.counts[2]++
	case r.Level >= slog.LevelInfo:
		h.counts[1]++
	default:
		h.counts[0]++
	}
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(name string) slog.Handler       { return h }

func (h *recordingHandler) count(level slog.Level) int {
	switch {
	case level >= slog.LevelError:
		return h.counts[3]
	case level >= slog.LevelWarn:
		return h.counts[2]
	default:
		return h.counts[1] + h.counts[0]
	}
}

type failingGroup struct {
	fixtures.Group
}

func (failingGroup) BuildTile() (*vectortile.Tile, error) {
	return nil, errors.New("synthetic build failure")
}

// HasSameContents must not report equal contents with any real fixtures
// group, so the encoder never memoizes a failing tile away.
func (g failingGroup) HasSameContents(other pipeline.Group) bool {
	_, ok := other.(failingGroup)
	return ok
}
