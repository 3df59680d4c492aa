package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBytesRejectsBinary(t *testing.T) {
	_, err := ParseBytes("blob.dat", []byte("abc\x00def"))
	require.Error(t, err)
}

func TestParseBytesMarkdown(t *testing.T) {
	out, err := ParseBytes("doc.md", []byte("# Title\n\nSome body text.\n\n```go\ncode here\n```\n"))
	require.NoError(t, err)
	assert.NotContains(t, out, "#")
	assert.NotContains(t, out, "```")
	assert.Contains(t, out, "Some body text.")
}

func TestParseBytesHTML(t *testing.T) {
	out, err := ParseBytes("page.html", []byte("<html><head><style>.a{}</style></head><body><p>Hello <b>World</b></p><script>alert(1)</script></body></html>"))
	require.NoError(t, err)
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "World")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "<p>")
}

func TestParseBytesCodeStripsComments(t *testing.T) {
	out, err := ParseBytes("main.go", []byte("package main\n// a comment\nfunc main() {}\n"))
	require.NoError(t, err)
	assert.NotContains(t, out, "// a comment")
	assert.Contains(t, out, "func main")
}

func TestParseBytesPlainTextPassesThrough(t *testing.T) {
	out, err := ParseBytes("notes.txt", []byte("plain text content"))
	require.NoError(t, err)
	assert.Equal(t, "plain text content", out)
}

func TestParseBytesOutputIsValidUTF8NoNulls(t *testing.T) {
	out, err := ParseBytes("doc.md", []byte("# Héllo Wörld\n\nBody with 🎮 emoji.\n"))
	require.NoError(t, err)
	for _, r := range out {
		assert.NotEqual(t, rune(0), r)
	}
}
