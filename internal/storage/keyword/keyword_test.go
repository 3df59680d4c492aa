package keyword

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
)

func indexWithChunks(t *testing.T, chunks ...chunk.Chunk) *Index {
	t.Helper()
	idx := New("")
	require.NoError(t, idx.Open())
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.UpsertChunks(chunks))
	return idx
}

func kwChunk(text, fileName, sourceID string) chunk.Chunk {
	return chunk.Chunk{
		ID:       uuid.NewString(),
		SourceID: sourceID,
		Text:     text,
		FileName: fileName,
		Language: metadata.LangGo,
	}
}

func TestKeywordSearchFindsExactIdentifier(t *testing.T) {
	target := kwChunk("func ParseConfigFile reads the yaml settings", "config.go", "s1")
	idx := indexWithChunks(t,
		target,
		kwChunk("unrelated prose about cooking", "recipes.md", "s2"),
	)

	hits, err := idx.Search("ParseConfigFile", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, target.ID, hits[0].ChunkID)
}

func TestKeywordSearchFieldScoping(t *testing.T) {
	a := kwChunk("shared term", "alpha.go", "s1")
	b := kwChunk("shared term", "beta.go", "s2")
	idx := indexWithChunks(t, a, b)

	hits, err := idx.Search("file_name:alpha.go", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a.ID, hits[0].ChunkID)
}

func TestKeywordSearchLimit(t *testing.T) {
	idx := indexWithChunks(t,
		kwChunk("repeated token", "a.go", "s1"),
		kwChunk("repeated token", "b.go", "s2"),
		kwChunk("repeated token", "c.go", "s3"),
	)
	hits, err := idx.Search("repeated", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestKeywordDeleteBySource(t *testing.T) {
	keep := kwChunk("alpha content", "a.go", "keep")
	drop := kwChunk("alpha content", "b.go", "drop")
	idx := indexWithChunks(t, keep, drop)

	require.NoError(t, idx.DeleteBySource("drop"))

	hits, err := idx.Search("alpha", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, keep.ID, hits[0].ChunkID)
}

func TestKeywordResetEmptiesIndex(t *testing.T) {
	idx := indexWithChunks(t, kwChunk("anything at all", "a.go", "s1"))
	require.NoError(t, idx.Reset())

	hits, err := idx.Search("anything", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
