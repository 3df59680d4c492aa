package splitters

// Config controls the chunk pipeline's splitting and post-processing
// behavior.
type Config struct {
	TargetChunkSize    int
	MaxChunkSize       int
	MinChunkSize       int
	Overlap            int
	RespectSemantics   bool
	PreserveCodeBlocks bool
}

// DefaultConfig returns the tuned defaults every knob starts from.
func DefaultConfig() Config {
	return Config{
		TargetChunkSize:    1000,
		MaxChunkSize:       2000,
		MinChunkSize:       100,
		Overlap:            200,
		RespectSemantics:   true,
		PreserveCodeBlocks: true,
	}
}

// FromBaseKnobs maps the coarser, persisted per-base knobs
// (chunk_size, chunk_overlap) onto the pipeline's finer Config: the
// target is the chunk size itself, the hard ceiling is twice that, and
// the merge floor is a tenth of it (never below 50 bytes).
func FromBaseKnobs(chunkSize, chunkOverlap int) Config {
	cfg := DefaultConfig()
	if chunkSize > 0 {
		cfg.TargetChunkSize = chunkSize
		cfg.MaxChunkSize = chunkSize * 2
		minSize := chunkSize / 10
		if minSize < 50 {
			minSize = 50
		}
		cfg.MinChunkSize = minSize
	}
	if chunkOverlap > 0 {
		cfg.Overlap = chunkOverlap
	}
	return cfg
}

// Span is the splitter-level output before metadata enrichment: just
// the text and its byte/line extent within the source.
type Span struct {
	Text      string
	ByteStart int
	ByteEnd   int
	LineStart int // -1 when unknown
	LineEnd   int // -1 when unknown
}

// Splitter turns source text into an ordered sequence of spans using a
// content-type-specific strategy.
type Splitter interface {
	Split(text string, cfg Config) ([]Span, error)
	Tag() string
}
