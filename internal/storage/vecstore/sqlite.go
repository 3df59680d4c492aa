package vecstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
)

var initVecOnce sync.Once

// SQLite is the default, durable Index backend: a SQLite database with
// typed metadata columns on the chunks table and a sqlite-vec vec0
// virtual table for KNN search, written delete-then-insert since vec0
// has no native upsert.
type SQLite struct {
	path string

	mu  sync.RWMutex
	db  *sql.DB
	dim int
}

func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

func (s *SQLite) Open(_ context.Context, embeddingDim int) error {
	initVecOnce.Do(sqlite_vec.Auto)

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return errs.NewError(errs.KindIO, fmt.Errorf("open vector index: %w", err))
	}
	db.SetMaxOpenConns(1) // vec0 virtual tables are not safe under concurrent writers

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	if err := createSchema(db); err != nil {
		return errs.NewError(errs.KindIO, err)
	}

	createVec := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_vec USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding float[%d]
		)`, embeddingDim)
	if _, err := db.Exec(createVec); err != nil {
		return errs.NewError(errs.KindIO, fmt.Errorf("create vector table: %w", err))
	}

	stored, err := readStoredDimensions(db)
	if err != nil {
		return err
	}
	if stored == 0 {
		if err := writeStoredDimensions(db, embeddingDim); err != nil {
			return err
		}
		stored = embeddingDim
	} else if stored != embeddingDim {
		return errs.Errorf(errs.KindDimMismatch,
			"vector index was built with %d dimensions, got %d", stored, embeddingDim)
	}

	s.mu.Lock()
	s.db = db
	s.dim = stored
	s.mu.Unlock()
	return nil
}

func readStoredDimensions(db *sql.DB) (int, error) {
	var raw string
	err := db.QueryRow("SELECT value FROM index_metadata WHERE key = 'embedding_dimensions'").Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errs.NewError(errs.KindIO, err)
	}
	var dim int
	if _, err := fmt.Sscanf(raw, "%d", &dim); err != nil {
		return 0, errs.NewError(errs.KindIO, err)
	}
	return dim, nil
}

func writeStoredDimensions(db *sql.DB, dim int) error {
	_, err := db.Exec(
		"INSERT INTO index_metadata (key, value) VALUES ('embedding_dimensions', ?)",
		fmt.Sprintf("%d", dim),
	)
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return nil
}

func (s *SQLite) UpsertChunks(_ context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	defer tx.Rollback()

	upsertChunk, err := tx.Prepare(`
		INSERT INTO chunks (
			id, source_id, position, text, byte_start, byte_end, line_start, line_end,
			content_type, language, hash, created_at, splitter_tag, tags,
			file_name, file_type, file_size_bytes, file_modified_at, file_line_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id=excluded.source_id, position=excluded.position, text=excluded.text,
			byte_start=excluded.byte_start, byte_end=excluded.byte_end,
			line_start=excluded.line_start, line_end=excluded.line_end,
			content_type=excluded.content_type, language=excluded.language, hash=excluded.hash,
			created_at=excluded.created_at, splitter_tag=excluded.splitter_tag, tags=excluded.tags,
			file_name=excluded.file_name, file_type=excluded.file_type,
			file_size_bytes=excluded.file_size_bytes, file_modified_at=excluded.file_modified_at,
			file_line_count=excluded.file_line_count
	`)
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	defer upsertChunk.Close()

	deleteVec, err := tx.Prepare("DELETE FROM chunks_vec WHERE chunk_id = ?")
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	defer deleteVec.Close()

	insertVec, err := tx.Prepare("INSERT INTO chunks_vec (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	defer insertVec.Close()

	for _, c := range chunks {
		if s.dim > 0 && len(c.Embedding) != s.dim {
			return errs.Errorf(errs.KindDimMismatch,
				"chunk %s has %d-dim embedding, index expects %d", c.ID, len(c.Embedding), s.dim)
		}

		tags, err := json.Marshal(c.Tags)
		if err != nil {
			return err
		}

		_, err = upsertChunk.Exec(
			c.ID, c.SourceID, c.Position, c.Text, c.ByteStart, c.ByteEnd, c.LineStart, c.LineEnd,
			string(c.ContentType), string(c.Language), c.Hash, c.CreatedAt.UTC().Format(time.RFC3339Nano),
			c.SplitterTag, string(tags),
			c.FileName, string(c.FileType), c.FileSizeBytes, c.FileModifiedAt.UTC().Format(time.RFC3339Nano),
			c.FileLineCount,
		)
		if err != nil {
			return errs.NewError(errs.KindIO, fmt.Errorf("upsert chunk %s: %w", c.ID, err))
		}

		if _, err := deleteVec.Exec(c.ID); err != nil {
			return errs.NewError(errs.KindIO, err)
		}
		embBytes, err := sqlite_vec.SerializeFloat32(c.Embedding)
		if err != nil {
			return errs.NewError(errs.KindIO, err)
		}
		if _, err := insertVec.Exec(c.ID, embBytes); err != nil {
			return errs.NewError(errs.KindIO, fmt.Errorf("index vector for chunk %s: %w", c.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return nil
}

func (s *SQLite) Search(_ context.Context, queryVec []float32, k int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dim > 0 && len(queryVec) != s.dim {
		return nil, errs.Errorf(errs.KindDimMismatch,
			"query vector has %d dims, index expects %d", len(queryVec), s.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	// A zero query vector is orthogonal-by-definition to everything:
	// every chunk scores 0, so skip the KNN table (whose cosine
	// distance is undefined at zero norm) and hand back the first k
	// rows in insertion order as the stable tie-break.
	if isZeroVector(queryVec) {
		return s.zeroScoredChunks(k)
	}

	queryBytes, err := sqlite_vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}

	rows, err := s.db.Query(`
		SELECT chunk_id, vec_distance_cosine(embedding, ?) AS distance
		FROM chunks_vec
		ORDER BY distance
		LIMIT ?
	`, queryBytes, k)
	if err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	defer rows.Close()

	type hit struct {
		id       string
		distance float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.distance); err != nil {
			return nil, errs.NewError(errs.KindIO, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		c, err := s.loadChunk(h.id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue // vector row survived a chunk deletion; skip it
		}
		// cosine distance is 1 - cosine similarity for sqlite-vec.
		results = append(results, SearchResult{Chunk: *c, Score: float32(1 - h.distance)})
	}
	return results, nil
}

// zeroScoredChunks returns up to k chunks scored 0, ordered by rowid.
// Upserts update in place, so rowid order is first-insertion order.
// Called under s.mu.
func (s *SQLite) zeroScoredChunks(k int) ([]SearchResult, error) {
	rows, err := s.db.Query("SELECT id FROM chunks ORDER BY rowid LIMIT ?", k)
	if err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.NewError(errs.KindIO, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}

	results := make([]SearchResult, 0, len(ids))
	for _, id := range ids {
		c, err := s.loadChunk(id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		results = append(results, SearchResult{Chunk: *c, Score: 0})
	}
	return results, nil
}

func (s *SQLite) loadChunk(id string) (*chunk.Chunk, error) {
	row := s.db.QueryRow(`
		SELECT id, source_id, position, text, byte_start, byte_end, line_start, line_end,
		       content_type, language, hash, created_at, splitter_tag, tags,
		       file_name, file_type, file_size_bytes, file_modified_at, file_line_count
		FROM chunks WHERE id = ?
	`, id)

	var c chunk.Chunk
	var contentType, language, createdAt, tags, fileType, fileModifiedAt string
	err := row.Scan(
		&c.ID, &c.SourceID, &c.Position, &c.Text, &c.ByteStart, &c.ByteEnd, &c.LineStart, &c.LineEnd,
		&contentType, &language, &c.Hash, &createdAt, &c.SplitterTag, &tags,
		&c.FileName, &fileType, &c.FileSizeBytes, &fileModifiedAt, &c.FileLineCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}

	c.ContentType = metadata.ContentType(contentType)
	c.Language = metadata.Language(language)
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	if c.FileModifiedAt, err = time.Parse(time.RFC3339Nano, fileModifiedAt); err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	c.FileType = metadata.FileType(fileType)
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	return &c, nil
}

func (s *SQLite) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&st.SourceCount); err != nil {
		return Stats{}, errs.NewError(errs.KindIO, err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&st.ChunkCount); err != nil {
		return Stats{}, errs.NewError(errs.KindIO, err)
	}
	return st, nil
}

func (s *SQLite) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM chunks_vec", "DELETE FROM chunks", "DELETE FROM sources", "DELETE FROM index_metadata WHERE key != 'embedding_dimensions'"} {
		if _, err := tx.Exec(stmt); err != nil {
			return errs.NewError(errs.KindIO, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return nil
}

func (s *SQLite) Flush(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return nil
}

func (s *SQLite) DeleteBySource(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM chunks WHERE source_id = ?", sourceID)
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return errs.NewError(errs.KindIO, err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	deleteVec, err := tx.Prepare("DELETE FROM chunks_vec WHERE chunk_id = ?")
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	defer deleteVec.Close()
	for _, id := range ids {
		if _, err := deleteVec.Exec(id); err != nil {
			return errs.NewError(errs.KindIO, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM chunks WHERE source_id = ?", sourceID); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	if _, err := tx.Exec("DELETE FROM sources WHERE id = ?", sourceID); err != nil {
		return errs.NewError(errs.KindIO, err)
	}

	return tx.Commit()
}

func (s *SQLite) ListSources(_ context.Context) (map[string]SourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, path, content_hash, chunk_count FROM sources")
	if err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	defer rows.Close()

	out := make(map[string]SourceInfo)
	for rows.Next() {
		var info SourceInfo
		var path string
		if err := rows.Scan(&info.ID, &path, &info.ContentHash, &info.ChunkCount); err != nil {
			return nil, errs.NewError(errs.KindIO, err)
		}
		out[path] = info
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	return out, nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertSource records (or refreshes) the source row a batch of chunks
// belongs to. Called by the Ingest Orchestrator once per document.
func (s *SQLite) UpsertSource(_ context.Context, id, path, contentHash string, chunkCount int, ingestedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO sources (id, path, content_hash, chunk_count, last_ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path=excluded.path, content_hash=excluded.content_hash,
			chunk_count=excluded.chunk_count, last_ingested_at=excluded.last_ingested_at
	`, id, path, contentHash, chunkCount, ingestedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return nil
}
