package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/embeddings"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/progress"
)

// The end-to-end tests run against the in-memory chromem backend and
// the deterministic trigram provider so they need neither cgo nor a
// network.
func testBaseConfig(name string) KnowledgeBaseConfig {
	return KnowledgeBaseConfig{
		Name:             name,
		Provider:         "trigram",
		Model:            "trigram-v1",
		ChunkSize:        200,
		ChunkOverlap:     40,
		EmbeddingDim:     64,
		MaxContextTokens: 4000,
		Backend:          "memory",
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func learnOnce(t *testing.T, workspace string, opts LearnOptions) LearnStats {
	t.Helper()
	stats, err := Learn(context.Background(), workspace, testBaseConfig(opts.BaseName), opts, embeddings.NewEngine(nil), nil)
	require.NoError(t, err)
	return stats
}

func TestLearnIngestsAndSearchReturnsIngestedContent(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "rust.md", "Rust is a systems programming language emphasizing memory safety.")

	stats := learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})
	assert.Equal(t, 1, stats.SourcesCount)
	assert.GreaterOrEqual(t, stats.ChunksCount, 1)
	assert.Greater(t, stats.BytesProcessed, int64(0))

	engine := embeddings.NewEngine(nil)
	base, err := Open(workspace, "kb", engine, nil)
	require.NoError(t, err)
	defer base.Close()

	provider, err := engine.GetProvider("kb", base.Config.EmbeddingConfig())
	require.NoError(t, err)
	queryVec, err := embeddings.Embed(context.Background(), provider, "What does Rust emphasize?")
	require.NoError(t, err)

	results, err := base.Index.Search(context.Background(), queryVec, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Chunk.Text, "memory safety")
	assert.Equal(t, "rust.md", results[0].Chunk.FileName)
}

func TestLearnTracksSourcesInOrder(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "a.md", "Document alpha talks about databases and storage engines.")
	writeFile(t, docs, "b.md", "Document beta covers networking and protocol design.")

	stats := learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})
	assert.Equal(t, 2, stats.SourcesCount)

	base, err := Open(workspace, "kb", nil, nil)
	require.NoError(t, err)
	defer base.Close()

	tracked, err := base.Tracker.List()
	require.NoError(t, err)
	require.Len(t, tracked, 2)
	// Discovery sorts paths, so batch order is deterministic.
	assert.Contains(t, tracked[0].Path, "a.md")
	assert.Contains(t, tracked[1].Path, "b.md")
	for _, s := range tracked {
		assert.NotEmpty(t, s.SourceID)
		assert.Greater(t, s.ChunkCount, 0)
		assert.Greater(t, s.ByteCount, int64(0))
	}
}

func TestLearnTwiceSkipsUnchangedFiles(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "a.md", "Stable content that does not change between runs.")

	first := learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})
	assert.Equal(t, 1, first.SourcesCount)

	second := learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})
	assert.Equal(t, 0, second.SourcesCount)
	assert.Equal(t, 0, second.ChunksCount)

	base, err := Open(workspace, "kb", nil, nil)
	require.NoError(t, err)
	defer base.Close()
	st, err := base.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.SourceCount)
}

func TestLearnReplacesChangedFileWithoutDuplicating(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	path := writeFile(t, docs, "a.md", "Original content about caching strategies.")

	learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})

	require.NoError(t, os.WriteFile(path, []byte("Rewritten content about eviction policies."), 0o644))
	second := learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})
	assert.Equal(t, 1, second.SourcesCount)

	base, err := Open(workspace, "kb", nil, nil)
	require.NoError(t, err)
	defer base.Close()

	st, err := base.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.SourceCount)

	engine := embeddings.NewEngine(nil)
	provider, err := engine.GetProvider("kb", base.Config.EmbeddingConfig())
	require.NoError(t, err)
	queryVec, err := embeddings.Embed(context.Background(), provider, "eviction policies")
	require.NoError(t, err)
	results, err := base.Index.Search(context.Background(), queryVec, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.NotContains(t, r.Chunk.Text, "caching strategies")
	}
}

func TestLearnResetClearsPriorState(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "a.md", "Content one about message queues.")
	writeFile(t, docs, "b.md", "Content two about load balancing.")

	learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})
	stats := learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}, Reset: true})
	assert.Equal(t, 2, stats.SourcesCount)

	base, err := Open(workspace, "kb", nil, nil)
	require.NoError(t, err)
	defer base.Close()

	st, err := base.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.SourceCount)

	tracked, err := base.Tracker.List()
	require.NoError(t, err)
	assert.Len(t, tracked, 2)
}

func TestLearnWritesStatsCache(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "a.md", "Some content worth caching statistics about.")

	learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})

	cached, ok := ReadStatsCache(workspace, "kb")
	require.True(t, ok)
	assert.Equal(t, 1, cached.SourcesCount)
	assert.GreaterOrEqual(t, cached.ChunksCount, 1)
	assert.False(t, cached.LastIndexedAt.IsZero())
}

func TestLearnEmitsProgressForEveryPhase(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "a.md", "Progress events should cover each ingest phase.")

	seen := map[progress.Phase]bool{}
	learnOnce(t, workspace, LearnOptions{
		BaseName: "kb",
		Paths:    []string{docs},
		Progress: func(ev progress.Event) { seen[ev.Phase] = true },
	})

	for _, phase := range []progress.Phase{
		progress.PhaseDiscover, progress.PhaseParse, progress.PhaseChunk,
		progress.PhaseEmbed, progress.PhaseIndex,
	} {
		assert.True(t, seen[phase], "missing progress phase %s", phase)
	}
}

func TestLearnSkipsEmptyAndBinaryFiles(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "empty.md", "")
	writeFile(t, docs, "blob.dat", "abc\x00def")
	writeFile(t, docs, "real.md", "The only document with actual text content.")

	stats := learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})
	assert.Equal(t, 1, stats.SourcesCount)
}

func TestLearnCancelledBeforeBatchSurfacesCancellation(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "a.md", "Some content.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Learn(ctx, workspace, testBaseConfig("kb"), LearnOptions{BaseName: "kb", Paths: []string{docs}}, embeddings.NewEngine(nil), nil)
	require.Error(t, err)
	assert.True(t, Is(err, KindCancelled))
}

func TestCleanRemovesEverythingAndStatsCache(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "a.md", "Content that will be cleaned away.")

	learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})

	base, err := Open(workspace, "kb", nil, nil)
	require.NoError(t, err)
	require.NoError(t, base.Clean(context.Background()))

	st, err := base.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.SourceCount)
	assert.Equal(t, 0, st.ChunkCount)

	tracked, err := base.Tracker.List()
	require.NoError(t, err)
	assert.Empty(t, tracked)

	_, ok := ReadStatsCache(workspace, "kb")
	assert.False(t, ok)
	require.NoError(t, base.Close())
}

func TestLearnRejectsEmbeddingConfigChangeWithoutReset(t *testing.T) {
	workspace := t.TempDir()
	docs := filepath.Join(workspace, "docs")
	writeFile(t, docs, "a.md", "Content embedded at 64 dimensions.")

	learnOnce(t, workspace, LearnOptions{BaseName: "kb", Paths: []string{docs}})

	changed := testBaseConfig("kb")
	changed.EmbeddingDim = 128
	_, err := Learn(context.Background(), workspace, changed, LearnOptions{BaseName: "kb", Paths: []string{docs}, Model: "other-model"}, embeddings.NewEngine(nil), nil)
	require.Error(t, err)
	assert.True(t, Is(err, KindConfigInvalid))

	// The persisted config is untouched by the rejected run.
	loaded, err := LoadConfig(workspace, "kb")
	require.NoError(t, err)
	assert.Equal(t, "trigram-v1", loaded.Model)
	assert.Equal(t, 64, loaded.EmbeddingDim)

	// A reset run is allowed to change the triple.
	_, err = Learn(context.Background(), workspace, changed, LearnOptions{BaseName: "kb", Paths: []string{docs}, Model: "other-model", Reset: true}, embeddings.NewEngine(nil), nil)
	require.NoError(t, err)

	loaded, err = LoadConfig(workspace, "kb")
	require.NoError(t, err)
	assert.Equal(t, "other-model", loaded.Model)
}

func TestLoadConfigMissingBase(t *testing.T) {
	_, err := LoadConfig(t.TempDir(), "nope")
	require.Error(t, err)
	assert.True(t, Is(err, KindBaseMissing))
}

func TestConfigRoundTripsThroughYAML(t *testing.T) {
	workspace := t.TempDir()
	cfg := testBaseConfig("kb")
	cfg.APIKey = "never-persisted"
	require.NoError(t, SaveConfig(workspace, cfg))

	loaded, err := LoadConfig(workspace, "kb")
	require.NoError(t, err)
	assert.Equal(t, cfg.Provider, loaded.Provider)
	assert.Equal(t, cfg.EmbeddingDim, loaded.EmbeddingDim)
	assert.Empty(t, loaded.APIKey)
}

func TestDiscoverAppliesBuiltinAndUserFilters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "kept")
	writeFile(t, root, "node_modules/dep/index.js", "skipped")
	writeFile(t, root, "app.min.js", "skipped")
	writeFile(t, root, "logo.png", "skipped")
	writeFile(t, root, "notes/draft.md", "kept unless excluded")

	files, err := discover([]string{root}, nil, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)

	files, err = discover([]string{root}, nil, []string{"notes"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0], "keep.md")

	files, err = discover([]string{root}, []string{"notes"}, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0], "draft.md")
}

func TestPassesFilterGlobPatterns(t *testing.T) {
	assert.True(t, passesFilter("docs/guide.md", []string{"**/*.md"}, nil))
	assert.False(t, passesFilter("docs/guide.md", []string{"**/*.go"}, nil))
	assert.False(t, passesFilter("docs/guide.md", nil, []string{"**/*.md"}))
}
