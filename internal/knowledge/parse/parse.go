// Package parse reads a file and strips format-specific noise, leaving
// plain UTF-8 text suitable for chunking and embedding. The cleaners
// are deliberately lossy but conservative: their only job is to remove
// markup that would poison embedding similarity.
package parse

import (
	"bytes"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
)

// Parse reads path, classifies it by extension, and returns cleaned
// text. Binary content (detected by a null-byte heuristic) is rejected
// with KindParseFailed; read failures are KindIO.
func Parse(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.NewError(errs.KindIO, err)
	}
	return ParseBytes(path, data)
}

// ParseBytes applies the same classification and cleaning as Parse but
// operates on already-read content, letting callers avoid a second
// filesystem round trip.
func ParseBytes(path string, data []byte) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", errs.Errorf(errs.KindParseFailed, "binary-rejected: %s", path)
	}
	if !utf8.Valid(data) {
		return "", errs.Errorf(errs.KindParseFailed, "invalid-utf8: %s", path)
	}

	text := string(data)
	ft := metadata.DetectFileType(path)

	switch metadata.DetectContentType(ft) {
	case metadata.ContentMarkdown:
		return cleanMarkdown(text), nil
	case metadata.ContentHTML:
		return cleanHTML(text), nil
	case metadata.ContentCode:
		return cleanCode(text), nil
	default:
		if !isLikelyText(text) {
			return "", errs.Errorf(errs.KindParseFailed, "binary-rejected: %s", path)
		}
		return text, nil
	}
}

var (
	headingPattern  = regexp.MustCompile(`(?m)^#+\s+`)
	fencePattern    = regexp.MustCompile("(?m)^```.*$")
	hrPattern       = regexp.MustCompile(`(?m)^(-{3,}|\*{3,}|_{3,})\s*$`)
	scriptStyleTags = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	htmlTagPattern  = regexp.MustCompile(`(?s)<[^>]+>`)
	lineCommentGo   = regexp.MustCompile(`//.*$`)
	lineCommentHash = regexp.MustCompile(`#.*$`)
	blankRun        = regexp.MustCompile(`\n{3,}`)
	whitespaceRun   = regexp.MustCompile(`[ \t]+`)
)

// cleanMarkdown strips leading heading markers, fence delimiters, and
// horizontal rules, preserving all other content.
func cleanMarkdown(text string) string {
	text = headingPattern.ReplaceAllString(text, "")
	text = fencePattern.ReplaceAllString(text, "")
	text = hrPattern.ReplaceAllString(text, "")
	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// cleanHTML drops script/style blocks entirely, strips remaining tags,
// and collapses whitespace.
func cleanHTML(text string) string {
	text = scriptStyleTags.ReplaceAllString(text, " ")
	text = htmlTagPattern.ReplaceAllString(text, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// cleanCode drops every line whose first non-blank characters are //
// or # and collapses blank lines. It does not parse the language: such
// a line is dropped even inside a multi-line string literal, while a
// comment that follows code on the same line is kept.
func cleanCode(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, line)
	}
	cleaned := strings.Join(out, "\n")
	cleaned = blankRun.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// isLikelyText is a conservative sniff for unknown-but-probably-text
// files: reject if more than 30% of the sampled bytes are non-printable
// control characters.
func isLikelyText(text string) bool {
	sample := text
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	if len(sample) == 0 {
		return true
	}
	nonPrintable := 0
	for _, r := range sample {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if r < 0x20 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(sample)) < 0.3
}
