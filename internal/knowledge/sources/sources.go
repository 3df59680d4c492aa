// Package sources implements the source tracker: an append-only log of
// ingested documents at sources.jsonl, one JSON object per line. It
// holds no in-memory cache beyond what a single List call builds.
package sources

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
)

// Source is one tracked ingestion record, matching the on-disk
// sources.jsonl shape.
type Source struct {
	SourceID   string    `json:"source_id"`
	Path       string    `json:"path"`
	SourceType string    `json:"source_type"`
	IndexedAt  time.Time `json:"indexed_at"`
	ChunkCount int       `json:"chunk_count"`
	ByteCount  int64     `json:"byte_count"`
}

// Tracker manages sources.jsonl for one knowledge base.
type Tracker struct {
	path string
}

// New builds a Tracker rooted at <workspace>/.guided/knowledge/<base>/sources.jsonl.
func New(workspace, baseName string) *Tracker {
	return &Tracker{
		path: filepath.Join(workspace, ".guided", "knowledge", baseName, "sources.jsonl"),
	}
}

// NewAtPath builds a Tracker for an explicit sources.jsonl path,
// bypassing the workspace-layout convention (used by tests and callers
// that already resolved the base directory).
func NewAtPath(path string) *Tracker {
	return &Tracker{path: path}
}

// Track appends one Source record: open-append-write-fsync-close.
// No record is ever mutated once written.
func (t *Tracker) Track(src Source) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return errs.NewError(errs.KindIO, err)
	}

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	defer f.Close()

	line, err := json.Marshal(src)
	if err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errs.NewError(errs.KindIO, err)
	}
	return f.Sync()
}

// List parses every line of sources.jsonl in file order, tolerating
// blank lines. A missing file is an empty list, not an error; a
// non-blank line that fails to parse fails the whole read.
func (t *Tracker) List() ([]Source, error) {
	f, err := os.Open(t.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	defer f.Close()

	var out []Source
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		trimmed := trimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		var s Source
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, errs.NewError(errs.KindParseFailed, err)
		}
		out = append(out, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	return out, nil
}

// Clear deletes sources.jsonl entirely. It is the only way to remove
// tracked entries, and it removes all of them together.
func (t *Tracker) Clear() error {
	err := os.Remove(t.path)
	if err != nil && !os.IsNotExist(err) {
		return errs.NewError(errs.KindIO, err)
	}
	return nil
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
