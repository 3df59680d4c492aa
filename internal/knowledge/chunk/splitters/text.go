package splitters

import (
	"regexp"
	"strings"
)

// Text splits prose (and markdown, HTML-stripped text) along paragraph
// and sentence boundaries, targeting cfg.TargetChunkSize: paragraphs
// are packed into a window until it would overflow, and a paragraph
// too large on its own degrades to sentence-level packing, then to the
// UTF-8-safe Fallback splitter.
type Text struct{}

func (Text) Tag() string { return "text" }

var (
	codeFencePattern = regexp.MustCompile("^```")
	sentenceSplitRe  = regexp.MustCompile(`[.!?]+\s+`)
)

type paragraph struct {
	text      string
	byteStart int
	byteEnd   int
	isCode    bool
}

func (t Text) Split(text string, cfg Config) ([]Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	paragraphs := extractParagraphs(text, cfg.PreserveCodeBlocks)

	var spans []Span
	var current []paragraph
	currentSize := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		spans = append(spans, buildSpan(current))
		current = nil
		currentSize = 0
	}

	for _, p := range paragraphs {
		size := len(p.text)

		if currentSize > 0 && currentSize+size > cfg.TargetChunkSize {
			flush()
		}

		if size > cfg.TargetChunkSize {
			flush()
			spans = append(spans, splitLargeParagraph(p, cfg)...)
			continue
		}

		current = append(current, p)
		currentSize += size
	}
	flush()

	return spans, nil
}

// extractParagraphs splits on blank-line runs, keeping fenced code
// blocks intact as a single paragraph when preserveCodeBlocks is set.
func extractParagraphs(text string, preserveCodeBlocks bool) []paragraph {
	lines := strings.Split(text, "\n")
	var paragraphs []paragraph
	var cur []string
	curStart := 0
	pos := 0
	inCode := false
	codeStart := 0

	flush := func(end int) {
		if len(cur) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(cur, "\n"))
		if joined != "" {
			paragraphs = append(paragraphs, paragraph{text: joined, byteStart: curStart, byteEnd: end})
		}
		cur = nil
	}

	for _, line := range lines {
		lineLen := len(line) + 1 // + newline

		if preserveCodeBlocks && codeFencePattern.MatchString(line) {
			if !inCode {
				flush(pos)
				inCode = true
				codeStart = pos
				cur = append(cur, line)
			} else {
				cur = append(cur, line)
				paragraphs = append(paragraphs, paragraph{
					text:      strings.Join(cur, "\n"),
					byteStart: codeStart,
					byteEnd:   pos + len(line),
					isCode:    true,
				})
				cur = nil
				inCode = false
			}
			pos += lineLen
			curStart = pos
			continue
		}

		if inCode {
			cur = append(cur, line)
			pos += lineLen
			continue
		}

		if strings.TrimSpace(line) == "" {
			flush(pos)
			pos += lineLen
			curStart = pos
			continue
		}

		if len(cur) == 0 {
			curStart = pos
		}
		cur = append(cur, line)
		pos += lineLen
	}
	// The last line has no trailing newline, so pos may overshoot by one.
	flush(min(pos, len(text)))

	return paragraphs
}

func buildSpan(paragraphs []paragraph) Span {
	texts := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		texts[i] = p.text
	}
	return Span{
		Text:      strings.Join(texts, "\n\n"),
		ByteStart: paragraphs[0].byteStart,
		ByteEnd:   paragraphs[len(paragraphs)-1].byteEnd,
		LineStart: -1,
		LineEnd:   -1,
	}
}

// splitLargeParagraph splits an oversized paragraph by sentence
// boundaries, further degrading to the UTF-8-safe Fallback splitter
// for any sentence that is still too large on its own.
func splitLargeParagraph(p paragraph, cfg Config) []Span {
	// Cut after each terminator run and its whitespace, so every
	// sentence keeps its own punctuation.
	var sentences []string
	rest := 0
	for _, loc := range sentenceSplitRe.FindAllStringIndex(p.text, -1) {
		sentences = append(sentences, p.text[rest:loc[1]])
		rest = loc[1]
	}
	sentences = append(sentences, p.text[rest:])

	var spans []Span
	var current []string
	currentSize := 0
	offset := p.byteStart

	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.Join(current, " ")
		spans = append(spans, Span{
			Text:      joined,
			ByteStart: offset,
			ByteEnd:   offset + len(joined),
			LineStart: -1,
			LineEnd:   -1,
		})
		offset += len(joined) + 1
		current = nil
		currentSize = 0
	}

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(s) > cfg.TargetChunkSize {
			flush()
			fb, _ := Fallback{}.Split(s, cfg)
			for _, span := range fb {
				span.ByteStart += offset
				span.ByteEnd += offset
				spans = append(spans, span)
			}
			offset += len(s)
			continue
		}
		if currentSize > 0 && currentSize+len(s) > cfg.TargetChunkSize {
			flush()
		}
		current = append(current, s)
		currentSize += len(s)
	}
	flush()

	return spans
}
