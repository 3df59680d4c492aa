package embeddings

import (
	"context"
	"fmt"
	"sync"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/embeddings/providers"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
)

// Factory builds a Provider for a fully-resolved Config. Split out so
// tests can substitute a fake without touching the Engine's caching
// logic.
type Factory func(cfg Config) (Provider, error)

// Engine maintains a lazily constructed, cached provider instance per
// knowledge base, protected by a reader-writer lock: many readers can
// fetch a cached provider concurrently, only one constructs a new one.
type Engine struct {
	mu        sync.RWMutex
	providers map[string]Provider
	factory   Factory

	// queryCache memoizes embed(text) results within a process
	// lifetime, keyed by (base, provider, model, text). It only ever
	// shortcuts recomputation for byte-identical repeated text (e.g.
	// the same question asked twice); it is never a substitute for the
	// persisted vector index.
	queryCache otter.Cache[string, []float32]
}

// NewEngine builds an Engine using DefaultFactory unless a custom one
// is supplied.
func NewEngine(factory Factory) *Engine {
	if factory == nil {
		factory = DefaultFactory
	}
	cache, err := otter.MustBuilder[string, []float32](10_000).Build()
	if err != nil {
		// otter's builder only fails on invalid capacity; 10_000 is
		// always valid, so this is unreachable in practice.
		panic(fmt.Sprintf("embeddings: building query cache: %v", err))
	}
	return &Engine{
		providers:  make(map[string]Provider),
		factory:    factory,
		queryCache: cache,
	}
}

// DefaultFactory constructs the built-in provider variants.
func DefaultFactory(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "trigram", "mock":
		return providers.NewTrigram(cfg.Dimensions), nil
	case "neural-http":
		return providers.NewNeuralHTTP(cfg.Endpoint, cfg.Model, cfg.Dimensions), nil
	case "cloud":
		return providers.NewCloud(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.Dimensions), nil
	default:
		return nil, errs.Errorf(errs.KindConfigInvalid, "unknown embedding provider: %s", cfg.Provider)
	}
}

// GetProvider returns the cached provider for baseName, constructing
// and caching one from cfg if this is the first request. If a provider
// is already cached, cfg is validated against the config it was built
// with; a mismatch fails closed rather than silently re-embedding under
// different settings.
func (e *Engine) GetProvider(baseName string, cfg Config) (Provider, error) {
	e.mu.RLock()
	p, ok := e.providers[baseName]
	e.mu.RUnlock()
	if ok {
		if p.ProviderName() != cfg.Provider || p.ModelName() != cfg.Model || p.Dimensions() != cfg.Dimensions {
			return nil, errs.Errorf(errs.KindConfigInvalid,
				"config-inconsistency: base %q provider changed since it was opened", baseName)
		}
		return p, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Re-check: another writer may have inserted while we waited.
	if p, ok := e.providers[baseName]; ok {
		return p, nil
	}

	p, err := e.factory(cfg)
	if err != nil {
		return nil, err
	}
	e.providers[baseName] = p
	return p, nil
}

// EmbedTexts embeds texts for baseName, using the cached provider.
func (e *Engine) EmbedTexts(ctx context.Context, baseName string, cfg Config, texts []string) ([][]float32, error) {
	p, err := e.GetProvider(baseName, cfg)
	if err != nil {
		return nil, err
	}
	vectors, err := p.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if cfg.Dimensions > 0 {
		for _, v := range vectors {
			if len(v) != cfg.Dimensions {
				return nil, errs.Errorf(errs.KindDimMismatch,
					"provider %s returned %d-dim vector, expected %d", p.ProviderName(), len(v), cfg.Dimensions)
			}
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string, consulting the query cache
// first so repeated identical questions against the same base skip
// provider round-trips.
func (e *Engine) EmbedQuery(ctx context.Context, baseName string, cfg Config, text string) ([]float32, error) {
	key := baseName + "\x00" + cfg.Provider + "\x00" + cfg.Model + "\x00" + text
	if v, ok := e.queryCache.Get(key); ok {
		return v, nil
	}

	vectors, err := e.EmbedTexts(ctx, baseName, cfg, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	e.queryCache.Set(key, vectors[0])
	return vectors[0], nil
}

// Close releases any resources held by cached providers.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, p := range e.providers {
		if closer, ok := p.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	e.providers = make(map[string]Provider)
	e.queryCache.Close()
	return firstErr
}
