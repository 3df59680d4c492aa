// Package chunk implements the content-type-aware semantic splitting
// pipeline: detection, dispatch to a splitter, and post-processing
// (merge-small / split-oversized) over the raw spans a splitter
// produces.
package chunk

import (
	"time"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk/splitters"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
)

// Chunk is a contiguous, bounded slice of a source document with its
// metadata attached. Embedding is populated later by the embedding
// engine; it is nil immediately after the Chunk Pipeline runs.
type Chunk struct {
	ID          string
	SourceID    string
	Position    int
	Text        string
	ByteStart   int
	ByteEnd     int
	LineStart   int // -1 when unknown
	LineEnd     int // -1 when unknown
	ContentType metadata.ContentType
	Language    metadata.Language
	Hash        string
	CreatedAt   time.Time
	SplitterTag string
	Tags        []string

	FileName       string
	FileType       metadata.FileType
	FileSizeBytes  int64
	FileModifiedAt time.Time
	FileLineCount  int

	Embedding []float32
}

// Span is the splitter-level output before metadata enrichment: just
// the text and its byte/line extent within the source.
type Span = splitters.Span

// Splitter turns source text into an ordered sequence of spans using a
// content-type-specific strategy.
type Splitter = splitters.Splitter
