package main

import (
	"fmt"
	"os"

	"github.com/pronitdas/planetiler/pipeline"
	"github.com/pronitdas/planetiler/telemetry"
	"gopkg.in/yaml.v2"
)

// runConfig is the on-disk shape of a generate run's YAML config file. It
// mirrors pipeline.Config's fields using plain types yaml can decode
// directly, then converts.
type runConfig struct {
	MinZoom             int     `yaml:"minzoom"`
	MaxZoom             int     `yaml:"maxzoom"`
	Threads             int     `yaml:"threads"`
	EmitTilesInOrder    bool    `yaml:"emit_tiles_in_order"`
	DeferIndexCreation  bool    `yaml:"defer_index_creation"`
	OptimizeDB          bool    `yaml:"optimize_db"`
	MaxTilesPerBatch    int     `yaml:"max_tiles_per_batch"`
	MaxFeaturesPerBatch int     `yaml:"max_features_per_batch"`
	OversizedTileBytes  int64   `yaml:"oversized_tile_bytes"`
	Bounds              [4]float64 `yaml:"bounds"`

	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Attribution string `yaml:"attribution"`
	Version     string `yaml:"version"`
}

func loadRunConfig(path string) (runConfig, error) {
	var rc runConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return rc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return rc, fmt.Errorf("parse config: %w", err)
	}
	return rc, nil
}

func (rc runConfig) toPipelineConfig() pipeline.Config {
	return pipeline.Config{
		MinZoom:             rc.MinZoom,
		MaxZoom:             rc.MaxZoom,
		Threads:             rc.Threads,
		EmitTilesInOrder:    rc.EmitTilesInOrder,
		DeferIndexCreation:  rc.DeferIndexCreation,
		OptimizeDB:          rc.OptimizeDB,
		MaxTilesPerBatch:    rc.MaxTilesPerBatch,
		MaxFeaturesPerBatch: rc.MaxFeaturesPerBatch,
		OversizedTileBytes:  rc.OversizedTileBytes,
		Extents:             telemetry.Extents{},
		LatLonBounds: pipeline.LatLonBounds{
			West: rc.Bounds[0], South: rc.Bounds[1], East: rc.Bounds[2], North: rc.Bounds[3],
		},
		Metadata: pipeline.Metadata{
			Name:        rc.Name,
			Description: rc.Description,
			Attribution: rc.Attribution,
			Version:     rc.Version,
			MinZoom:     rc.MinZoom,
			MaxZoom:     rc.MaxZoom,
			Bounds: pipeline.LatLonBounds{
				West: rc.Bounds[0], South: rc.Bounds[1], East: rc.Bounds[2], North: rc.Bounds[3],
			},
		},
	}
}
