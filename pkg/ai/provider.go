// Package ai provides a uniform chat-completion contract over the hosted
// LLM APIs the app can be configured with.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// Message is one turn of conversation history, role "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates a reply from a system prompt and ordered history.
// Implementations translate the uniform message sequence into their
// provider's wire shape and issue a single synchronous request; they never
// retry.
type Provider interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message, maxTokens int) (string, error)
}

// ProviderError reports a non-success upstream response. The body is kept
// for server-side logging and must not be surfaced to callers.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s api error: status %d", e.Provider, e.Status)
}

// Config selects and credentials the active provider. Exactly one provider
// is constructed per process.
type Config struct {
	Provider string

	GeminiAPIKey    string
	AnthropicAPIKey string
	OpenAIAPIKey    string

	GeminiModel string
	ClaudeModel string
	OpenAIModel string
}

// New builds the configured provider. Unknown provider names and missing
// credentials fail here, at startup, not per request.
func New(cfg Config) (Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "claude"
	}
	switch provider {
	case "gemini":
		return NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel)
	case "claude":
		return NewClaudeProvider(cfg.AnthropicAPIKey, cfg.ClaudeModel)
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", provider)
	}
}
