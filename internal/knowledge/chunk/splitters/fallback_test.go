package splitters

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackSplitsWithinTarget(t *testing.T) {
	cfg := Config{TargetChunkSize: 30, MaxChunkSize: 60, MinChunkSize: 5, Overlap: 5}
	text := strings.Repeat("word ", 40)
	spans, err := Fallback{}.Split(text, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, spans)
	for _, s := range spans {
		assert.True(t, utf8.ValidString(s.Text))
	}
}

func TestFallbackEmptyInput(t *testing.T) {
	spans, err := Fallback{}.Split("", DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestFallbackUTF8BoundarySafety(t *testing.T) {
	cfg := Config{TargetChunkSize: 10, MaxChunkSize: 30, MinChunkSize: 2, Overlap: 2}
	text := strings.Repeat("café 🎮 日本語 ", 30)
	spans, err := Fallback{}.Split(text, cfg)
	require.NoError(t, err)
	for _, s := range spans {
		assert.True(t, utf8.ValidString(s.Text))
	}
}

func TestFallbackCoversWholeInput(t *testing.T) {
	cfg := Config{TargetChunkSize: 20, MaxChunkSize: 40, MinChunkSize: 5, Overlap: 0}
	text := strings.Repeat("a", 100)
	spans, err := Fallback{}.Split(text, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, spans)
	assert.Equal(t, 0, spans[0].ByteStart)
	assert.Equal(t, len(text), spans[len(spans)-1].ByteEnd)
}
