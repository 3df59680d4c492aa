// Package splitters implements the three content-type-specific chunk
// pipeline strategies: text, code, and the generic fallback every other
// strategy degrades to. All three guarantee UTF-8 code-point-safe
// boundaries.
package splitters

import (
	"unicode/utf8"
)

// Fallback is a UTF-8-safe sliding-window splitter used for content
// types without a dedicated splitter, for unsupported code languages,
// when RespectSemantics is off, and by the Code splitter when a grammar
// yields no spans. Boundaries always fall on code-point boundaries;
// grapheme clusters (e.g. a base letter plus combining mark) are not
// tracked and can be split. Breaks prefer whitespace within a small
// lookback window; overlap bytes are repeated between consecutive
// windows.
type Fallback struct{}

func (Fallback) Tag() string { return "fallback" }

func (f Fallback) Split(text string, cfg Config) ([]Span, error) {
	if len(text) == 0 {
		return nil, nil
	}

	target := cfg.TargetChunkSize
	if target <= 0 {
		target = 1000
	}
	overlap := cfg.Overlap
	if overlap < 0 || overlap >= target {
		overlap = 0
	}
	minSize := cfg.MinChunkSize

	var spans []Span
	start := 0
	n := len(text)

	for start < n {
		end := start + target
		if end > n {
			end = n
		} else {
			end = extendToMinAndBreak(text, start, end, minSize, n)
			end = preferWhitespaceBreak(text, start, end)
		}
		end = safeBoundary(text, end)
		if end <= start {
			end = safeBoundary(text, minRune(start+1, n))
		}

		spans = append(spans, Span{
			Text:      text[start:end],
			ByteStart: start,
			ByteEnd:   end,
			LineStart: -1,
			LineEnd:   -1,
		})

		if end >= n {
			break
		}

		advance := target - overlap
		if advance <= 0 {
			advance = 1
		}
		next := start + advance
		if next <= start {
			next = end
		}
		if next >= end {
			next = end
		}
		start = safeBoundary(text, next)
		if start >= end && end < n {
			start = end
		}
	}

	return spans, nil
}

// extendToMinAndBreak grows end toward minSize if the window would
// otherwise be pathologically short near the end of the text, so the
// final window doesn't produce a tiny trailing chunk when a slightly
// larger one would still fit.
func extendToMinAndBreak(text string, start, end, minSize, n int) int {
	if minSize <= 0 {
		return end
	}
	if n-end < minSize {
		return n
	}
	return end
}

// preferWhitespaceBreak looks backward from end for the nearest
// whitespace rune within a bounded lookback, to avoid splitting mid
// word. Falls back to end unchanged if none is found nearby.
func preferWhitespaceBreak(text string, start, end int) int {
	if end >= len(text) {
		return end
	}
	lookback := end - start/2
	if lookback > 80 {
		lookback = 80
	}
	limit := end - lookback
	if limit < start {
		limit = start
	}
	for i := end; i > limit; i-- {
		if !utf8.RuneStart(text[i]) {
			continue
		}
		r, _ := utf8.DecodeRuneInString(text[i:])
		if r == ' ' || r == '\n' || r == '\t' {
			return i
		}
	}
	return end
}

// safeBoundary nudges pos backward until it lands on a UTF-8 rune
// boundary, never going below 0.
func safeBoundary(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(text) {
		return len(text)
	}
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

func minRune(a, b int) int {
	if a < b {
		return a
	}
	return b
}
