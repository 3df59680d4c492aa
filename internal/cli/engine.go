package cli

import (
	"sync"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/embeddings"
)

var (
	engineOnce sync.Once
	engine     *embeddings.Engine
)

// sharedEngine returns the process-wide Embedding Engine, constructed
// once, so `learn` and `ask` within the same invocation reuse cached
// provider instances per base.
func sharedEngine() *embeddings.Engine {
	engineOnce.Do(func() {
		engine = embeddings.NewEngine(nil)
	})
	return engine
}
