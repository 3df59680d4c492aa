package chunk

// postProcess merges adjacent undersized spans and splits any span that
// still exceeds MaxChunkSize, then leaves positions implicit (the
// caller renumbers densely by simply iterating the returned slice).
func postProcess(spans []Span, cfg Config) []Span {
	merged := mergeSmall(spans, cfg)
	return splitOversized(merged, cfg)
}

// mergeSmall walks spans left to right, combining the accumulated span
// with its successor while the accumulated span is below MinChunkSize,
// both are below TargetChunkSize, and their combined size (with the
// joining newline) does not exceed 2*TargetChunkSize. The last span is
// never dropped, only possibly merged into its predecessor.
func mergeSmall(spans []Span, cfg Config) []Span {
	if len(spans) == 0 {
		return spans
	}

	var out []Span
	current := spans[0]

	for i := 1; i < len(spans); i++ {
		next := spans[i]
		if shouldMerge(current, next, cfg) {
			current = mergeTwo(current, next)
			continue
		}
		out = append(out, current)
		current = next
	}
	out = append(out, current)

	return out
}

func shouldMerge(a, b Span, cfg Config) bool {
	if len(a.Text) >= cfg.MinChunkSize {
		return false
	}
	combined := len(a.Text) + 1 + len(b.Text)
	return combined <= 2*cfg.TargetChunkSize && len(a.Text) < cfg.TargetChunkSize && len(b.Text) < cfg.TargetChunkSize
}

func mergeTwo(a, b Span) Span {
	lineStart := a.LineStart
	lineEnd := b.LineEnd
	if lineStart < 0 {
		lineStart = b.LineStart
	}
	if lineEnd < 0 {
		lineEnd = a.LineEnd
	}
	return Span{
		Text:      a.Text + "\n" + b.Text,
		ByteStart: a.ByteStart,
		ByteEnd:   b.ByteEnd,
		LineStart: lineStart,
		LineEnd:   lineEnd,
	}
}

// splitOversized breaks any span still larger than MaxChunkSize at
// word boundaries, so the hard ceiling invariant holds after merging
// (a merge can itself create an oversized span).
func splitOversized(spans []Span, cfg Config) []Span {
	var out []Span
	for _, s := range spans {
		if len(s.Text) <= cfg.MaxChunkSize {
			out = append(out, s)
			continue
		}
		out = append(out, splitAtWordBoundaries(s, cfg)...)
	}
	return out
}

func splitAtWordBoundaries(s Span, cfg Config) []Span {
	text := s.Text
	var result []Span
	start := 0
	byteOffset := s.ByteStart

	for start < len(text) {
		end := start + cfg.MaxChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			// Prefer the last space within the window so we don't cut
			// a word in half; fall back to a hard cut if none exists.
			cut := end
			for cut > start && text[cut] != ' ' && text[cut] != '\n' {
				cut--
			}
			if cut > start {
				end = cut
			}
		}
		for end > start && !isRuneBoundary(text, end) {
			end--
		}
		if end <= start {
			end = start + 1
			if end > len(text) {
				end = len(text)
			}
		}

		result = append(result, Span{
			Text:      text[start:end],
			ByteStart: byteOffset + start,
			ByteEnd:   byteOffset + end,
			LineStart: s.LineStart,
			LineEnd:   s.LineEnd,
		})
		start = end
	}

	return result
}

func isRuneBoundary(s string, i int) bool {
	if i <= 0 || i >= len(s) {
		return true
	}
	b := s[i]
	return b&0xC0 != 0x80
}
