package vecstore

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
)

const collectionName = "knowledge"

// Memory is the linear-scan Index backend for small knowledge bases,
// backed by chromem-go's in-process collection rather than SQLite and
// sqlite-vec. Vectors are supplied directly (nil embedding func), and
// queries go through collection.QueryEmbedding. Chosen over SQLite
// when a base's corpus is small enough that loading the whole
// collection into memory and scanning it costs less than paying
// SQLite's disk round-trips.
//
// chromem persists documents but offers no enumeration and knows
// nothing about sources, so the backend keeps its own source table and
// an insertion-ordered chunk record (embeddings stripped), round-
// tripped through a JSON sidecar next to the chromem directory. The
// chunk record serves the zero-query path and per-source deletion.
type Memory struct {
	path string

	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	dim        int
	sources    map[string]sourceRow
	order      []string               // chunk IDs in first-insertion order
	chunks     map[string]chunk.Chunk // by ID, embeddings stripped
}

type sourceRow struct {
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// memoryState is the sidecar file's on-disk shape.
type memoryState struct {
	Sources map[string]sourceRow   `json:"sources"`
	Order   []string               `json:"order"`
	Chunks  map[string]chunk.Chunk `json:"chunks"`
}

func NewMemory(path string) *Memory {
	return &Memory{
		path:    path,
		sources: make(map[string]sourceRow),
		chunks:  make(map[string]chunk.Chunk),
	}
}

func (m *Memory) Open(_ context.Context, embeddingDim int) error {
	var db *chromem.DB
	var err error
	if m.path != "" {
		db, err = chromem.NewPersistentDB(m.path, false)
		if err != nil {
			return errs.NewError(errs.KindIO, err)
		}
	} else {
		db = chromem.NewDB()
	}

	col := db.GetCollection(collectionName, nil)
	if col == nil {
		col, err = db.CreateCollection(collectionName, nil, nil)
		if err != nil {
			return errs.NewError(errs.KindIO, err)
		}
	}

	m.mu.Lock()
	m.db = db
	m.collection = col
	m.dim = embeddingDim
	if err := m.loadState(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	return nil
}

// statePath is the sidecar file the source table and chunk order
// round-trip through. Empty when the store is purely in-memory.
func (m *Memory) statePath() string {
	if m.path == "" {
		return ""
	}
	return m.path + ".state.json"
}

func (m *Memory) loadState() error {
	p := m.statePath()
	if p == "" {
		return nil
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	var st memoryState
	if err := json.Unmarshal(data, &st); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	if st.Sources != nil {
		m.sources = st.Sources
	}
	m.order = st.Order
	if st.Chunks != nil {
		m.chunks = st.Chunks
	}
	return nil
}

// persistState is called under m.mu by every mutation.
func (m *Memory) persistState() error {
	p := m.statePath()
	if p == "" {
		return nil
	}
	data, err := json.Marshal(memoryState{Sources: m.sources, Order: m.order, Chunks: m.chunks})
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return nil
}

func (m *Memory) UpsertChunks(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range chunks {
		if m.dim > 0 && len(c.Embedding) != m.dim {
			return errs.Errorf(errs.KindDimMismatch,
				"chunk %s has %d-dim embedding, index expects %d", c.ID, len(c.Embedding), m.dim)
		}

		tags, err := json.Marshal(c.Tags)
		if err != nil {
			return err
		}

		doc := chromem.Document{
			ID:      c.ID,
			Content: c.Text,
			Metadata: map[string]string{
				"source_id":        c.SourceID,
				"position":         strconv.Itoa(c.Position),
				"byte_start":       strconv.Itoa(c.ByteStart),
				"byte_end":         strconv.Itoa(c.ByteEnd),
				"line_start":       strconv.Itoa(c.LineStart),
				"line_end":         strconv.Itoa(c.LineEnd),
				"content_type":     string(c.ContentType),
				"language":         string(c.Language),
				"hash":             c.Hash,
				"created_at":       c.CreatedAt.UTC().Format(time.RFC3339Nano),
				"splitter_tag":     c.SplitterTag,
				"tags":             string(tags),
				"file_name":        c.FileName,
				"file_type":        string(c.FileType),
				"file_size_bytes":  strconv.FormatInt(c.FileSizeBytes, 10),
				"file_modified_at": c.FileModifiedAt.UTC().Format(time.RFC3339Nano),
				"file_line_count":  strconv.Itoa(c.FileLineCount),
			},
			Embedding: c.Embedding,
		}

		// chromem-go has no upsert; AddDocument replaces by ID within a
		// collection backed by a map, so delete-then-add is redundant
		// but kept explicit for clarity when reviewing diffs.
		_ = m.collection.Delete(ctx, nil, nil, c.ID)
		if err := m.collection.AddDocument(ctx, doc); err != nil {
			return errs.NewError(errs.KindIO, err)
		}

		// Replacing an existing ID keeps its original position; the
		// tie-break is first-insertion order.
		if _, ok := m.chunks[c.ID]; !ok {
			m.order = append(m.order, c.ID)
		}
		stored := c
		stored.Embedding = nil
		m.chunks[c.ID] = stored
	}
	return m.persistState()
}

func (m *Memory) Search(ctx context.Context, queryVec []float32, k int) ([]SearchResult, error) {
	m.mu.RLock()
	col := m.collection
	dim := m.dim

	if dim > 0 && len(queryVec) != dim {
		m.mu.RUnlock()
		return nil, errs.Errorf(errs.KindDimMismatch,
			"query vector has %d dims, index expects %d", len(queryVec), dim)
	}
	if k <= 0 {
		m.mu.RUnlock()
		return nil, nil
	}

	// A zero query vector is orthogonal-by-definition to everything:
	// every chunk scores 0, and cosine against a zero norm is
	// undefined, so answer from the insertion-ordered chunk record
	// instead of chromem.
	if isZeroVector(queryVec) {
		results := make([]SearchResult, 0, k)
		for _, id := range m.order {
			if len(results) == k {
				break
			}
			results = append(results, SearchResult{Chunk: m.chunks[id], Score: 0})
		}
		m.mu.RUnlock()
		return results, nil
	}
	m.mu.RUnlock()

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	docs, err := col.QueryEmbedding(ctx, queryVec, k, nil, nil)
	if err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}

	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		c, err := docToChunk(doc)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Chunk: c, Score: doc.Similarity})
	}
	return results, nil
}

func docToChunk(doc chromem.Result) (chunk.Chunk, error) {
	md := doc.Metadata
	var tags []string
	if err := json.Unmarshal([]byte(md["tags"]), &tags); err != nil {
		return chunk.Chunk{}, errs.NewError(errs.KindIO, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, md["created_at"])
	if err != nil {
		return chunk.Chunk{}, errs.NewError(errs.KindIO, err)
	}
	fileModifiedAt, err := time.Parse(time.RFC3339Nano, md["file_modified_at"])
	if err != nil {
		return chunk.Chunk{}, errs.NewError(errs.KindIO, err)
	}

	return chunk.Chunk{
		ID:             doc.ID,
		SourceID:       md["source_id"],
		Position:       mustAtoi(md["position"]),
		Text:           doc.Content,
		ByteStart:      mustAtoi(md["byte_start"]),
		ByteEnd:        mustAtoi(md["byte_end"]),
		LineStart:      mustAtoi(md["line_start"]),
		LineEnd:        mustAtoi(md["line_end"]),
		ContentType:    metadata.ContentType(md["content_type"]),
		Language:       metadata.Language(md["language"]),
		Hash:           md["hash"],
		CreatedAt:      createdAt,
		SplitterTag:    md["splitter_tag"],
		Tags:           tags,
		FileName:       md["file_name"],
		FileType:       metadata.FileType(md["file_type"]),
		FileSizeBytes:  mustAtoi64(md["file_size_bytes"]),
		FileModifiedAt: fileModifiedAt,
		FileLineCount:  mustAtoi(md["file_line_count"]),
	}, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{SourceCount: len(m.sources), ChunkCount: m.collection.Count()}, nil
}

// Reset discards the current collection, including its persisted
// document files, and creates a fresh one in its place.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.DeleteCollection(collectionName); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	col, err := m.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	m.collection = col
	m.sources = make(map[string]sourceRow)
	m.order = nil
	m.chunks = make(map[string]chunk.Chunk)
	return m.persistState()
}

// Flush is a no-op for the in-memory backend unless it was opened with
// a persistence path, in which case chromem-go has already written
// each document through on AddDocument.
func (m *Memory) Flush(_ context.Context) error { return nil }

func (m *Memory) DeleteBySource(ctx context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.collection.Delete(ctx, map[string]string{"source_id": sourceID}, nil); err != nil {
		return errs.NewError(errs.KindIO, err)
	}

	kept := m.order[:0]
	for _, id := range m.order {
		if m.chunks[id].SourceID == sourceID {
			delete(m.chunks, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	delete(m.sources, sourceID)
	return m.persistState()
}

func (m *Memory) ListSources(_ context.Context) (map[string]SourceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]SourceInfo, len(m.sources))
	for id, row := range m.sources {
		out[row.Path] = SourceInfo{ID: id, ContentHash: row.ContentHash, ChunkCount: row.ChunkCount}
	}
	return out, nil
}

func (m *Memory) UpsertSource(_ context.Context, id, path, contentHash string, chunkCount int, ingestedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[id] = sourceRow{Path: path, ContentHash: contentHash, ChunkCount: chunkCount, IngestedAt: ingestedAt}
	return m.persistState()
}

func (m *Memory) Close() error { return nil }

// mustAtoi and mustAtoi64 parse metadata values this package itself
// wrote via strconv.Itoa/FormatInt; a parse failure means document
// metadata was corrupted and is a programmer error, not a runtime
// condition worth a returned error.
func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic("vecstore: corrupt chunk metadata: " + err.Error())
	}
	return n
}

func mustAtoi64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		panic("vecstore: corrupt chunk metadata: " + err.Error())
	}
	return n
}
