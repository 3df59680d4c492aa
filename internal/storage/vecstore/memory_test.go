package vecstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
)

func testChunk(text string, embedding []float32) chunk.Chunk {
	return chunk.Chunk{
		ID:             uuid.NewString(),
		SourceID:       uuid.NewString(),
		Position:       0,
		Text:           text,
		ByteStart:      0,
		ByteEnd:        len(text),
		LineStart:      -1,
		LineEnd:        -1,
		ContentType:    metadata.ContentText,
		Language:       metadata.LangEnglish,
		Hash:           metadata.ContentHash(text),
		CreatedAt:      time.Now(),
		SplitterTag:    "fallback",
		Tags:           []string{"docs"},
		FileName:       "note.txt",
		FileType:       metadata.FileText,
		FileSizeBytes:  int64(len(text)),
		FileModifiedAt: time.Now(),
		FileLineCount:  1,
		Embedding:      embedding,
	}
}

// After upsert+flush, a chunk is found by searching for its own
// embedding with k=1 and score >= 0.999.
func TestMemoryUpsertFlushSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory("")
	require.NoError(t, idx.Open(ctx, 3))

	c := testChunk("hello world", []float32{1, 0, 0})
	require.NoError(t, idx.UpsertChunks(ctx, []chunk.Chunk{c}))
	require.NoError(t, idx.Flush(ctx))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, c.ID, results[0].Chunk.ID)
	assert.GreaterOrEqual(t, results[0].Score, float32(0.999))
}

// After reset, stats is (0, 0) and search returns empty.
func TestMemoryResetClearsStatsAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory("")
	require.NoError(t, idx.Open(ctx, 3))

	c := testChunk("hello world", []float32{1, 0, 0})
	require.NoError(t, idx.UpsertChunks(ctx, []chunk.Chunk{c}))
	require.NoError(t, idx.UpsertSource(ctx, c.SourceID, "note.txt", c.Hash, 1, time.Now()))

	require.NoError(t, idx.Reset(ctx))

	st, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{SourceCount: 0, ChunkCount: 0}, st)

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// A query vector of the wrong dimension is a dim-mismatch error, not
// a panic or silent truncation.
func TestMemorySearchDimMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory("")
	require.NoError(t, idx.Open(ctx, 3))

	_, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDimMismatch))
}

// An empty index returns empty, not an error.
func TestMemorySearchEmptyIndexReturnsNoResults(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory("")
	require.NoError(t, idx.Open(ctx, 3))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// A zero query vector scores 0 against every chunk; the returned k
// come back in insertion order.
func TestMemorySearchZeroVectorScoresZeroInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory("")
	require.NoError(t, idx.Open(ctx, 3))

	first := testChunk("first inserted", []float32{1, 0, 0})
	second := testChunk("second inserted", []float32{0, 1, 0})
	third := testChunk("third inserted", []float32{0, 0, 1})
	require.NoError(t, idx.UpsertChunks(ctx, []chunk.Chunk{first, second, third}))

	results, err := idx.Search(ctx, []float32{0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, first.ID, results[0].Chunk.ID)
	assert.Equal(t, second.ID, results[1].Chunk.ID)
	for _, r := range results {
		assert.Equal(t, float32(0), r.Score)
	}
}

// TestMemoryDeleteBySourceRemovesOnlyThatSourcesChunks exercises the
// incremental re-ingest path DeleteBySource exists for.
func TestMemoryDeleteBySourceRemovesOnlyThatSourcesChunks(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory("")
	require.NoError(t, idx.Open(ctx, 3))

	kept := testChunk("keep me", []float32{0, 1, 0})
	removed := testChunk("remove me", []float32{0, 0, 1})
	require.NoError(t, idx.UpsertChunks(ctx, []chunk.Chunk{kept, removed}))

	require.NoError(t, idx.DeleteBySource(ctx, removed.SourceID))

	st, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ChunkCount)
}
