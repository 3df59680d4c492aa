// Package config loads cortex's workspace-level defaults: the global
// ".cortex.yaml" settings the CLI merges with flags and environment
// variables before constructing a knowledge base. Per-base settings
// (provider, model, chunk size) live in each base's own config.yaml,
// handled by internal/knowledge.KnowledgeBaseConfig; this package only
// supplies the defaults a new base is created with and the LLM
// transport settings `ask` needs.
package config

// Config is the workspace-level default configuration, read from
// ".cortex.yaml" (home directory or workspace root) and environment
// variables prefixed CORTEX_.
type Config struct {
	DefaultBase string         `yaml:"default_base" mapstructure:"default_base"`
	Embedding   EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Chunking    ChunkingConfig  `yaml:"chunking" mapstructure:"chunking"`
	LLM         LLMConfig       `yaml:"llm" mapstructure:"llm"`
}

// EmbeddingConfig supplies the defaults a newly created knowledge base
// is seeded with.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"`
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
}

// ChunkingConfig supplies the default chunk_size/chunk_overlap knobs a
// newly created knowledge base is seeded with.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
}

// LLMConfig configures the `ask` command's completion transport.
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
}

// Default returns the built-in defaults: the local, deterministic
// trigram embedding provider and an Ollama LLM transport pointed at
// its default local address.
func Default() *Config {
	return &Config{
		DefaultBase: "default",
		Embedding: EmbeddingConfig{
			Provider:   "trigram",
			Model:      "trigram-v1",
			Dimensions: 384,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Endpoint: "http://localhost:11434",
			Model:    "llama3.2",
		},
	}
}
