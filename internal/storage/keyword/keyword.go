// Package keyword implements a companion full-text index over ingested
// chunks, letting cortex answer exact-phrase and field-scoped queries
// the vector index's cosine search is a poor fit for (symbol names,
// error strings, identifiers): a bleve index over chunk text queried
// with bleve's query_string syntax, kept as a best-effort sidecar to
// the vector index rather than the system of record.
package keyword

import (
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
)

// indexedChunk is the bleve document shape: only the fields worth
// scoping a query_string search to are promoted as separate fields.
type indexedChunk struct {
	Text     string `json:"text"`
	FileName string `json:"file_name"`
	Language string `json:"language"`
	SourceID string `json:"source_id"`
}

// Result pairs a chunk ID with its bleve relevance score.
type Result struct {
	ChunkID string
	Score   float64
}

// Index wraps a bleve.Index over one knowledge base's chunks.
type Index struct {
	path string
	idx  bleve.Index
}

// New returns an unopened Index. path == "" builds a transient
// in-memory index (used in tests); otherwise the index is persisted
// under path, created on first Open if absent.
func New(path string) *Index {
	return &Index{path: path}
}

// Open creates the on-disk bleve index if absent, or opens the
// existing one otherwise.
func (k *Index) Open() error {
	mapping := bleve.NewIndexMapping()

	if k.path == "" {
		idx, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return errs.NewError(errs.KindIO, err)
		}
		k.idx = idx
		return nil
	}

	if _, err := os.Stat(k.path); err == nil {
		idx, err := bleve.Open(k.path)
		if err != nil {
			return errs.NewError(errs.KindIO, err)
		}
		k.idx = idx
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(k.path), 0o755); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	idx, err := bleve.New(k.path, mapping)
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	k.idx = idx
	return nil
}

// UpsertChunks indexes (or re-indexes) each chunk's text under its ID,
// using bleve's batch API so a large ingest is one durable write.
func (k *Index) UpsertChunks(chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := k.idx.NewBatch()
	for _, c := range chunks {
		doc := indexedChunk{
			Text:     c.Text,
			FileName: c.FileName,
			Language: string(c.Language),
			SourceID: c.SourceID,
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return errs.NewError(errs.KindIO, err)
		}
	}
	if err := k.idx.Batch(batch); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return nil
}

// Search runs a bleve query_string search (supporting field scoping,
// boolean operators, phrases, wildcards, and fuzzy matching) and
// returns up to limit chunk IDs ranked by descending score.
func (k *Index) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 15
	}
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := k.idx.Search(req)
	if err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, Result{ChunkID: hit.ID, Score: hit.Score})
	}
	return out, nil
}

// DeleteBySource removes every indexed chunk belonging to sourceID.
func (k *Index) DeleteBySource(sourceID string) error {
	q := bleve.NewMatchQuery(sourceID)
	q.SetField("source_id")
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	res, err := k.idx.Search(req)
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	batch := k.idx.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := k.idx.Batch(batch); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return nil
}

// Reset discards all indexed documents by recreating the index in
// place, mirroring vecstore.Memory's create-to-replace idiom.
func (k *Index) Reset() error {
	if err := k.idx.Close(); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	if k.path == "" {
		return k.Open()
	}
	if err := os.RemoveAll(k.path); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return k.Open()
}

func (k *Index) Close() error {
	if k.idx == nil {
		return nil
	}
	return k.idx.Close()
}
