package chunk

import "github.com/mvp-joe/cortex-rag/internal/knowledge/chunk/splitters"

// Config controls the chunk pipeline's splitting and post-processing
// behavior.
type Config = splitters.Config

// DefaultConfig returns the tuned defaults every knob starts from.
func DefaultConfig() Config {
	return splitters.DefaultConfig()
}

// FromBaseKnobs maps the coarser, persisted per-base knobs
// (chunk_size, chunk_overlap) onto the pipeline's finer Config: the
// target is the chunk size itself, the hard ceiling is twice that, and
// the merge floor is a tenth of it (never below 50 bytes).
func FromBaseKnobs(chunkSize, chunkOverlap int) Config {
	return splitters.FromBaseKnobs(chunkSize, chunkOverlap)
}
