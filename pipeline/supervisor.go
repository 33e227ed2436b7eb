package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pronitdas/planetiler/telemetry"
)

// Supervisor wires exactly one reader goroutine, cfg.Threads encoder
// goroutines and exactly one writer goroutine together, in either the
// ordered or unordered topology, and reports the first error raised by any
// of them.
type Supervisor struct {
	Store   Store
	Archive Archive
	Config  Config
	Metrics *telemetry.Registry
	Logger  *slog.Logger

	PostProcess *PostProcessorRegistry
}

// Run blocks until the store is exhausted and every tile has been written,
// or until ctx is cancelled, or until any stage fails. The first error
// observed from any stage cancels the others.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg := s.Config.WithDefaults()
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reader := NewReader(s.Store, cfg, s.Metrics)
	encoder := NewEncoder(cfg, s.Metrics, s.PostProcess, logger)
	writer := NewWriter(s.Archive, cfg, s.Metrics, logger)

	encoderQueue := make(chan *TileBatch, cfg.QueueCapacity)

	var orderedQueue chan *TileBatch
	var writerFeed chan *TileBatch
	if cfg.EmitTilesInOrder {
		orderedQueue = make(chan *TileBatch, cfg.QueueCapacity)
		writerFeed = orderedQueue
	} else {
		writerFeed = make(chan *TileBatch, cfg.QueueCapacity)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	report := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		report(reader.Run(ctx, encoderQueue, orderedQueue))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		var encoderWriterFeed chan *TileBatch
		if !cfg.EmitTilesInOrder {
			encoderWriterFeed = writerFeed
		}
		report(encoder.Run(ctx, encoderQueue, encoderWriterFeed))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		report(writer.Run(ctx, writerFeed))
	}()

	wg.Wait()
	return firstErr
}
