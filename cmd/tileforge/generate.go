package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/pronitdas/planetiler/internal/fixtures"
	"github.com/pronitdas/planetiler/mb"
	"github.com/pronitdas/planetiler/pipeline"
	"github.com/pronitdas/planetiler/telemetry"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type generateCmd struct {
	configPath  string
	outputPath  string
	metricsAddr string
	features    int
}

func (c *generateCmd) Name() string     { return "generate" }
func (c *generateCmd) Synopsis() string { return "run the tile assembly pipeline against a synthetic tile source" }
func (c *generateCmd) Usage() string {
	return "tileforge generate -config <path> -o <path.mbtiles>\n"
}
func (c *generateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "YAML run configuration")
	f.StringVar(&c.outputPath, "o", "out.mbtiles", "Output MBTiles path")
	f.StringVar(&c.metricsAddr, "metrics", "", "Address to serve Prometheus metrics on, e.g. :9090 (optional)")
	f.IntVar(&c.features, "features-per-tile", 4, "Synthetic feature count per tile")
}

func (c *generateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := pipeline.Config{MinZoom: 0, MaxZoom: 6, Threads: 4}
	if c.configPath != "" {
		rc, err := loadRunConfig(c.configPath)
		if err != nil {
			logger.Error("load config", "err", err)
			return subcommands.ExitFailure
		}
		cfg = rc.toPipelineConfig()
	}
	cfg = cfg.WithDefaults()

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewRegistry(cfg.MaxZoom, cfg.Extents, registry)

	if c.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: c.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer srv.Close()
	}

	archive, err := mb.NewArchive(c.outputPath, mb.WithLogger(logger))
	if err != nil {
		logger.Error("open archive", "err", err)
		return subcommands.ExitFailure
	}

	store := fixtures.NewGridStore(cfg.MinZoom, cfg.MaxZoom, c.features, fixtures.ZoomSeed())

	postProcess := pipeline.NewPostProcessorRegistry()

	sup := &pipeline.Supervisor{
		Store:       store,
		Archive:     archive,
		Config:      cfg,
		Metrics:     metrics,
		Logger:      logger,
		PostProcess: postProcess,
	}

	done := make(chan struct{})
	go pollTelemetry(ctx, cfg.LogInterval, metrics, logger, done)

	err = sup.Run(ctx)
	close(done)

	if err != nil {
		logger.Error("pipeline run failed", "err", err)
		return subcommands.ExitFailure
	}

	perZoom, all := metrics.ZoomSummary(cfg.MinZoom, cfg.MaxZoom)
	for _, z := range perZoom {
		log.Printf("z%d: tiles=%d avg=%dB max=%dB", z.Zoom, z.Tiles, z.AvgBytes, z.MaxBytes)
	}
	log.Printf("all: tiles=%d avg=%dB max=%dB features=%d memoized=%d",
		all.Tiles, all.AvgBytes, all.MaxBytes, metrics.FeaturesProcessed(), metrics.MemoizedTiles())

	return subcommands.ExitSuccess
}

func pollTelemetry(ctx context.Context, interval time.Duration, metrics *telemetry.Registry, logger *slog.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			logger.Info(metrics.LastTileString())
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
