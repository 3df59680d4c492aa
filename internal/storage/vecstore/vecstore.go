// Package vecstore implements the vector index: a persistent store of
// chunks with embeddings supporting upsert/search/stats/reset, with a
// durable sqlite-vec backend and an in-memory chromem-go backend.
package vecstore

import (
	"context"
	"time"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk"
)

// SearchResult pairs a stored chunk with its similarity score against
// a query vector (cosine similarity; higher is better).
type SearchResult struct {
	Chunk chunk.Chunk
	Score float32
}

// Stats reports the index's distinct-source and chunk counts.
type Stats struct {
	SourceCount int
	ChunkCount  int
}

// isZeroVector reports whether v has no non-zero component. Cosine
// similarity against such a vector is undefined (division by a zero
// norm), so both backends detect it and return insertion-ordered rows
// scored 0 instead of running the KNN path.
func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// SourceInfo describes one indexed source document, keyed by path in
// ListSources results. ContentHash lets ingest skip files whose
// content has not changed since they were last indexed.
type SourceInfo struct {
	ID          string
	ContentHash string
	ChunkCount  int
}

// Index is the persistent chunk+vector store contract. Implementations
// must rank search results by descending cosine similarity and must
// compute the returned score from the stored vectors themselves, never
// substituting an approximate distance.
type Index interface {
	// Open creates the on-disk index if it does not exist and
	// validates its schema against embeddingDim. Idempotent.
	Open(ctx context.Context, embeddingDim int) error

	// UpsertChunks inserts or replaces the given chunks by ID, in a
	// single transaction: a search that begins after this returns sees
	// either the whole batch or none of it.
	UpsertChunks(ctx context.Context, chunks []chunk.Chunk) error

	// Search returns up to k results ordered by descending score. An
	// all-zero query vector scores 0 against every chunk; the returned
	// k are then ordered by the stable tie-break, insertion order. A
	// dimension mismatch against the index's embeddingDim is a
	// *CategorizedError with KindDimMismatch.
	Search(ctx context.Context, queryVec []float32, k int) ([]SearchResult, error)

	// Stats returns (distinct source count, chunk count).
	Stats(ctx context.Context) (Stats, error)

	// Reset removes all rows, preserving schema. After Reset, Stats
	// returns (0, 0) and every Search returns empty.
	Reset(ctx context.Context) error

	// Flush forces durable persistence; any search that begins after
	// Flush returns sees all chunks committed before it.
	Flush(ctx context.Context) error

	// DeleteBySource removes every chunk belonging to sourceID, used
	// for incremental re-ingest of a changed file.
	DeleteBySource(ctx context.Context, sourceID string) error

	// ListSources returns the indexed sources keyed by path, so ingest
	// can skip unchanged files and replace changed ones.
	ListSources(ctx context.Context) (map[string]SourceInfo, error)

	// UpsertSource records or refreshes the source row a batch of
	// chunks belongs to, called once per ingested document.
	UpsertSource(ctx context.Context, id, path, contentHash string, chunkCount int, ingestedAt time.Time) error

	Close() error
}
