package pipeline

import (
	"sync"

	"github.com/pronitdas/planetiler/vectortile"
)

// PostProcessor may replace a layer's features before encoding. Returning a
// nil slice means "keep the original features"; it is not an error. A
// returned error fails encoding for the whole tile.
type PostProcessor func(zoom int, features []vectortile.Feature) ([]vectortile.Feature, error)

// PostProcessorRegistry maps layer name to PostProcessor. It is read
// concurrently by every encoder worker and must not be mutated once
// encoding starts; registration is expected to happen during pipeline
// setup.
type PostProcessorRegistry struct {
	mu      sync.RWMutex
	byLayer map[string]PostProcessor
}

// NewPostProcessorRegistry returns an empty registry.
func NewPostProcessorRegistry() *PostProcessorRegistry {
	return &PostProcessorRegistry{byLayer: make(map[string]PostProcessor)}
}

// Register installs pp for the given layer name, replacing any previous
// registration.
func (r *PostProcessorRegistry) Register(layer string, pp PostProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLayer[layer] = pp
}

// Apply runs every registered post-processor against the matching layer of
// t, replacing its features in place when the hook returns a non-nil slice.
func (r *PostProcessorRegistry) Apply(zoom int, t *vectortile.Tile) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.byLayer) == 0 {
		return nil
	}
	for i := range t.Layers {
		layer := &t.Layers[i]
		pp, ok := r.byLayer[layer.Name]
		if !ok {
			continue
		}
		replaced, err := pp(zoom, layer.Features)
		if err != nil {
			return err
		}
		if replaced != nil {
			layer.Features = replaced
		}
	}
	return nil
}
