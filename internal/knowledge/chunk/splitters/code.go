package splitters

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/metadata"
)

// Code walks the top-level nodes of a syntax tree for a supported
// language, emitting one span per top-level node. Nodes larger than
// cfg.MaxChunkSize are split further along line boundaries.
// Unsupported languages, or any failure to obtain a grammar, fall back
// to the UTF-8-safe Fallback splitter while keeping the original
// language tag.
type Code struct {
	Language metadata.Language
}

func (Code) Tag() string { return "code" }

// languageFactory returns a fresh *sitter.Language for a supported
// language, or nil when unsupported.
func languageFactory(lang metadata.Language) *sitter.Language {
	switch lang {
	case metadata.LangRust:
		return sitter.NewLanguage(rust.Language())
	case metadata.LangPython:
		return sitter.NewLanguage(python.Language())
	case metadata.LangGo:
		return sitter.NewLanguage(golang.Language())
	case metadata.LangTypeScript:
		return sitter.NewLanguage(typescript.LanguageTypescript())
	case metadata.LangJavaScript:
		// No dedicated JavaScript grammar ships in this module; the
		// TypeScript grammar parses plain JavaScript's top-level node
		// shapes (functions, classes, statements) without error, so it
		// stands in.
		return sitter.NewLanguage(typescript.LanguageTypescript())
	default:
		return nil
	}
}

func (c Code) Split(text string, cfg Config) ([]Span, error) {
	lang := languageFactory(c.Language)
	if lang == nil {
		return Fallback{}.Split(text, cfg)
	}

	spans, err := c.splitWithGrammar(text, cfg, lang)
	if err != nil || len(spans) == 0 {
		return Fallback{}.Split(text, cfg)
	}
	return spans, nil
}

func (c Code) splitWithGrammar(text string, cfg Config, lang *sitter.Language) ([]Span, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	source := []byte(text)
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}

	var spans []Span
	childCount := int(root.ChildCount())
	for i := 0; i < childCount; i++ {
		node := root.Child(uint(i))
		if node == nil {
			continue
		}
		start := int(node.StartByte())
		end := int(node.EndByte())
		if end <= start {
			continue
		}
		nodeText := text[start:end]
		startLine := int(node.StartPosition().Row) + 1
		endLine := int(node.EndPosition().Row) + 1

		if len(nodeText) > cfg.MaxChunkSize {
			spans = append(spans, splitLargeNode(text, start, end, startLine, cfg)...)
			continue
		}

		spans = append(spans, Span{
			Text:      nodeText,
			ByteStart: start,
			ByteEnd:   end,
			LineStart: startLine,
			LineEnd:   endLine,
		})
	}

	return spans, nil
}

// splitLargeNode breaks an oversized top-level node along line
// boundaries, packing whole lines into spans of at most
// cfg.MaxChunkSize, staying UTF-8-safe because it only ever cuts at
// '\n'. A single line longer than cfg.MaxChunkSize is kept whole as one
// span.
func splitLargeNode(text string, start, end, startLine int, cfg Config) []Span {
	nodeText := text[start:end]
	lines := strings.Split(nodeText, "\n")

	var spans []Span
	var cur []string
	curSize := 0
	curByteStart := start
	curLine := startLine
	lineOffset := startLine
	pos := start

	flush := func(byteEnd, lastLine int) {
		if len(cur) == 0 {
			return
		}
		spans = append(spans, Span{
			Text:      strings.Join(cur, "\n"),
			ByteStart: curByteStart,
			ByteEnd:   byteEnd,
			LineStart: curLine,
			LineEnd:   lastLine,
		})
		cur = nil
		curSize = 0
	}

	for i, line := range lines {
		lineLen := len(line) + 1
		if curSize > 0 && curSize+lineLen > cfg.MaxChunkSize {
			flush(pos, lineOffset+i-1)
			curByteStart = pos
			curLine = lineOffset + i
		}
		cur = append(cur, line)
		curSize += lineLen
		pos += lineLen
	}
	flush(end, lineOffset+len(lines)-1)

	return spans
}
