package chunk

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
)

func testMeta(ft metadata.FileType, lang metadata.Language) metadata.Metadata {
	return metadata.Metadata{
		FileType:       ft,
		Language:       lang,
		Tags:           []string{"docs"},
		FileModifiedAt: time.Now(),
	}
}

func TestPipelineEmptyTextYieldsNoChunks(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	chunks, err := p.Process("src-1", "empty.md", "   \n  ", testMeta(metadata.FileMarkdown, metadata.LangEnglish))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestPipelineTextProducesBoundedNumberedChunks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetChunkSize = 50
	cfg.MaxChunkSize = 100
	cfg.MinChunkSize = 10
	p := NewPipeline(cfg)

	text := strings.Repeat("This is a sentence about Rust programming. ", 20)
	chunks, err := p.Process("src-1", "notes.txt", text, testMeta(metadata.FileText, metadata.LangEnglish))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.True(t, utf8.ValidString(c.Text))
		assert.LessOrEqual(t, len(c.Text), cfg.MaxChunkSize)
		assert.Equal(t, metadata.ContentHash(c.Text), c.Hash)
	}
}

func TestPipelineMarkdownStripsNothingExtraFromChunkText(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	text := "## Section One\n\nRust is a systems programming language emphasizing memory safety.\n"
	chunks, err := p.Process("src-1", "doc.md", text, testMeta(metadata.FileMarkdown, metadata.LangEnglish))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Text, "memory safety")
}

func TestPipelineUTF8SafetyAcrossManyChunks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetChunkSize = 40
	cfg.MaxChunkSize = 80
	cfg.MinChunkSize = 10
	p := NewPipeline(cfg)

	text := strings.Repeat("Gamedex é um aplicativo 🎮 brasileiro. ", 50)
	chunks, err := p.Process("src-1", "notes.txt", text, testMeta(metadata.FileText, metadata.LangPortuguese))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Text))
	}
}

func TestMergeSmallCombinesUndersizedSpans(t *testing.T) {
	cfg := Config{TargetChunkSize: 100, MaxChunkSize: 200, MinChunkSize: 20, Overlap: 0}
	spans := []Span{
		{Text: "short one", ByteStart: 0, ByteEnd: 9, LineStart: -1, LineEnd: -1},
		{Text: "short two", ByteStart: 9, ByteEnd: 18, LineStart: -1, LineEnd: -1},
	}
	out := mergeSmall(spans, cfg)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "short one")
	assert.Contains(t, out[0].Text, "short two")
}

func TestSplitOversizedEnforcesMaxChunkSize(t *testing.T) {
	cfg := Config{TargetChunkSize: 100, MaxChunkSize: 20, MinChunkSize: 5, Overlap: 0}
	spans := []Span{{Text: strings.Repeat("word ", 20), ByteStart: 0, ByteEnd: 100, LineStart: -1, LineEnd: -1}}
	out := splitOversized(spans, cfg)
	for _, s := range out {
		assert.LessOrEqual(t, len(s.Text), cfg.MaxChunkSize)
	}
}
