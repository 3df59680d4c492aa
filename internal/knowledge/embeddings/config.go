package embeddings

// Config is the embedding configuration derived from a
// KnowledgeBaseConfig and cached per base. MinRelevanceScore is
// per-provider and distinct from the RAG orchestrator's fixed
// confidence threshold, which never filters results, only decides
// whether to add a cautionary clause.
type Config struct {
	Provider          string
	Model             string
	Dimensions        int
	Normalize         bool
	BatchSize         int
	MinRelevanceScore float32

	Endpoint string // Neural-HTTP / Cloud base URL
	APIKey   string // Cloud bearer token
}

// DefaultMinRelevanceScore returns the per-provider default cutoff.
// Trigram scores cluster much lower than neural embeddings, so its
// cutoff is correspondingly lower.
func DefaultMinRelevanceScore(provider string) float32 {
	switch provider {
	case "trigram":
		return 0.08
	case "neural-http":
		return 0.20
	case "cloud":
		return 0.20
	default:
		return 0.20
	}
}

// DefaultConfig returns the local trigram provider configuration used
// when a base has no explicit embedding settings.
func DefaultConfig() Config {
	return Config{
		Provider:          "trigram",
		Model:             "trigram-v1",
		Dimensions:        384,
		Normalize:         true,
		BatchSize:         100,
		MinRelevanceScore: DefaultMinRelevanceScore("trigram"),
	}
}

// ValidateConsistency compares this config against a stored config
// (e.g. recorded in a base's persisted config.yaml). A mismatch in
// provider, model, or dimensions is fatal: never silently re-embed
// under a changed configuration.
func (c Config) ValidateConsistency(stored Config) error {
	if c.Provider != stored.Provider {
		return newMismatchError("provider", stored.Provider, c.Provider)
	}
	if c.Model != stored.Model {
		return newMismatchError("model", stored.Model, c.Model)
	}
	if c.Dimensions != stored.Dimensions {
		return newDimMismatchError(stored.Dimensions, c.Dimensions)
	}
	return nil
}
