package chunk

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/chunk/splitters"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
)

// Pipeline dispatches text to the right Splitter by content type, then
// runs post-processing (merge-small / split-oversized) over the raw
// spans before stamping them into Chunk records.
type Pipeline struct {
	Config Config
}

func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{Config: cfg}
}

// Process turns source text into fully-populated Chunks, given the
// source's already-computed Metadata. sourceID and fileName are carried
// onto every produced chunk.
func (p *Pipeline) Process(sourceID, fileName, text string, meta metadata.Metadata) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	splitter := p.dispatch(meta)
	spans, err := splitter.Split(text, p.Config)
	if err != nil {
		return nil, errs.NewError(errs.KindParseFailed, err)
	}
	if len(spans) == 0 {
		return nil, nil
	}

	spans = postProcess(spans, p.Config)

	chunks := make([]Chunk, 0, len(spans))
	now := time.Now()
	for i, s := range spans {
		lineStart, lineEnd := s.LineStart, s.LineEnd
		chunks = append(chunks, Chunk{
			ID:             uuid.NewString(),
			SourceID:       sourceID,
			Position:       i,
			Text:           s.Text,
			ByteStart:      s.ByteStart,
			ByteEnd:        s.ByteEnd,
			LineStart:      lineStart,
			LineEnd:        lineEnd,
			ContentType:    metadata.DetectContentType(meta.FileType),
			Language:       meta.Language,
			Hash:           metadata.ContentHash(s.Text),
			CreatedAt:      now,
			SplitterTag:    splitter.Tag(),
			Tags:           meta.Tags,
			FileName:       fileName,
			FileType:       meta.FileType,
			FileSizeBytes:  meta.FileSizeBytes,
			FileModifiedAt: meta.FileModifiedAt,
			FileLineCount:  meta.FileLineCount,
		})
	}

	return chunks, nil
}

// dispatch chooses a splitter based on the already-computed content
// type. Code content additionally carries the detected language so the
// code splitter (and its fallback) can stamp it correctly.
func (p *Pipeline) dispatch(meta metadata.Metadata) Splitter {
	contentType := metadata.DetectContentType(meta.FileType)

	if !p.Config.RespectSemantics {
		return splitters.Fallback{}
	}

	switch contentType {
	case metadata.ContentCode:
		return splitters.Code{Language: meta.Language}
	case metadata.ContentMarkdown, metadata.ContentHTML, metadata.ContentText:
		return splitters.Text{}
	default:
		return splitters.Fallback{}
	}
}
