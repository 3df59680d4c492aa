// Package embeddings turns text into fixed-dimension vectors via a
// pluggable provider, and caches one provider instance per knowledge
// base behind a reader-writer lock.
package embeddings

import "context"

// Provider is the capability set every embedding backend implements.
// embed_batch is length-preserving: empty input yields empty output.
type Provider interface {
	ProviderName() string
	ModelName() string
	Dimensions() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Embed is a convenience wrapper over EmbedBatch for a single text.
func Embed(ctx context.Context, p Provider, text string) ([]float32, error) {
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}
