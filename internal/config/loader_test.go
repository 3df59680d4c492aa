package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoConfigFile(t *testing.T) {
	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.DefaultBase, cfg.DefaultBase)
	assert.Equal(t, d.Embedding.Provider, cfg.Embedding.Provider)
	assert.Equal(t, d.Embedding.Dimensions, cfg.Embedding.Dimensions)
	assert.Equal(t, d.Chunking.ChunkSize, cfg.Chunking.ChunkSize)
	assert.Equal(t, d.LLM.Provider, cfg.LLM.Provider)
}

func TestLoadWorkspaceConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `default_base: notes
embedding:
  provider: neural-http
  model: nomic-embed-text
  dimensions: 768
  endpoint: http://localhost:8080/embed
chunking:
  chunk_size: 500
llm:
  model: mistral
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cortex.yaml"), []byte(content), 0o644))

	cfg, err := NewLoader(dir).Load()
	require.NoError(t, err)

	assert.Equal(t, "notes", cfg.DefaultBase)
	assert.Equal(t, "neural-http", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	// Values the file omits keep their defaults.
	assert.Equal(t, Default().Chunking.ChunkOverlap, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, Default().LLM.Endpoint, cfg.LLM.Endpoint)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cortex.yaml"), []byte("embedding:\n  provider: trigram\n"), 0o644))
	t.Setenv("CORTEX_EMBEDDING_PROVIDER", "cloud")
	t.Setenv("CORTEX_LLM_MODEL", "llama3.3")

	cfg, err := NewLoader(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, "cloud", cfg.Embedding.Provider)
	assert.Equal(t, "llama3.3", cfg.LLM.Model)
}

func TestLoadMalformedYAMLFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cortex.yaml"), []byte("embedding: [unclosed"), 0o644))

	_, err := NewLoader(dir).Load()
	require.Error(t, err)
}
