package embeddings

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
)

// countingProvider wraps the batch call counter the cache tests need.
type countingProvider struct {
	name  string
	model string
	dim   int

	mu    sync.Mutex
	calls int
}

func (p *countingProvider) ProviderName() string { return p.name }
func (p *countingProvider) ModelName() string    { return p.model }
func (p *countingProvider) Dimensions() int      { return p.dim }

func (p *countingProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dim)
		out[i][0] = 1
	}
	return out, nil
}

func countingFactory(p *countingProvider) Factory {
	return func(cfg Config) (Provider, error) {
		p.name = cfg.Provider
		p.model = cfg.Model
		p.dim = cfg.Dimensions
		return p, nil
	}
}

func testCfg() Config {
	return Config{Provider: "trigram", Model: "trigram-v1", Dimensions: 8, Normalize: true, BatchSize: 10}
}

func TestEngineCachesProviderPerBase(t *testing.T) {
	p := &countingProvider{}
	e := NewEngine(countingFactory(p))
	defer e.Close()

	a, err := e.GetProvider("base-a", testCfg())
	require.NoError(t, err)
	b, err := e.GetProvider("base-a", testCfg())
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestEngineRejectsChangedConfigForOpenBase(t *testing.T) {
	e := NewEngine(countingFactory(&countingProvider{}))
	defer e.Close()

	_, err := e.GetProvider("base-a", testCfg())
	require.NoError(t, err)

	changed := testCfg()
	changed.Dimensions = 16
	_, err = e.GetProvider("base-a", changed)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConfigInvalid))
}

func TestEmbedTextsValidatesDimensions(t *testing.T) {
	p := &countingProvider{}
	e := NewEngine(func(cfg Config) (Provider, error) {
		p.name = cfg.Provider
		p.model = cfg.Model
		p.dim = 4 // deliberately disagree with cfg.Dimensions
		return p, nil
	})
	defer e.Close()

	cfg := testCfg()
	_, err := e.EmbedTexts(context.Background(), "base-a", cfg, []string{"hello"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDimMismatch))
}

func TestEmbedQueryHitsCacheOnRepeat(t *testing.T) {
	p := &countingProvider{}
	e := NewEngine(countingFactory(p))
	defer e.Close()

	cfg := testCfg()
	first, err := e.EmbedQuery(context.Background(), "base-a", cfg, "same question")
	require.NoError(t, err)
	second, err := e.EmbedQuery(context.Background(), "base-a", cfg, "same question")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 1, p.calls)
}

func TestDefaultFactoryUnknownProvider(t *testing.T) {
	_, err := DefaultFactory(Config{Provider: "nope"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConfigInvalid))
}

func TestValidateConsistency(t *testing.T) {
	stored := testCfg()

	ok := stored
	require.NoError(t, ok.ValidateConsistency(stored))

	badModel := stored
	badModel.Model = "other"
	err := badModel.ValidateConsistency(stored)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConfigInvalid))

	badDim := stored
	badDim.Dimensions = 1536
	err = badDim.ValidateConsistency(stored)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDimMismatch))
}
