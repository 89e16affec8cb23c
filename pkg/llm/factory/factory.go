package factory

import (
	"fmt"

	"ai-sqlnotebook-be/pkg/llm"
	"ai-sqlnotebook-be/pkg/llm/ollama"
)

// NewLLMProvider builds the configured provider. defaults apply to every call
// and can be overridden per call.
func NewLLMProvider(providerType, modelName, baseURL string, defaults ...llm.Option) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, modelName, defaults...), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
