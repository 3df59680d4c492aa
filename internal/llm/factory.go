package llm

import (
	"github.com/mvp-joe/cortex-rag/internal/knowledge"
)

// New builds a Client for providerName. Ollama is the only fully
// implemented transport; openai/claude/gguf-local return an explicit
// not-yet-implemented error rather than silently degrading.
func New(providerName, endpoint, apiKey string) (Client, error) {
	switch providerName {
	case "ollama", "":
		return NewOllama(endpoint), nil
	case "openai":
		return nil, knowledge.Errorf(knowledge.KindConfigInvalid, "llm provider %q is not yet implemented", providerName)
	case "claude", "anthropic":
		return nil, knowledge.Errorf(knowledge.KindConfigInvalid, "llm provider %q is not yet implemented", providerName)
	case "gguf-local", "gguf":
		return nil, knowledge.Errorf(knowledge.KindConfigInvalid, "llm provider %q is not yet implemented", providerName)
	default:
		return nil, knowledge.Errorf(knowledge.KindConfigInvalid, "unknown llm provider: %s", providerName)
	}
}
