package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

// ClaudeProvider calls the Anthropic Messages API. Claude accepts the system
// prompt as a dedicated field and the history roles unchanged.
type ClaudeProvider struct {
	client anthropic.Client
	model  string
}

// NewClaudeProvider constructs the provider with the given API key.
func NewClaudeProvider(apiKey, model string) (*ClaudeProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Chat implements Provider.
func (p *ClaudeProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, maxTokens int) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(messages)),
	}
	if strings.TrimSpace(systemPrompt) != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return "", &ProviderError{
				Provider: "claude",
				Status:   apierr.StatusCode,
				Body:     string(apierr.DumpResponse(true)),
			}
		}
		return "", fmt.Errorf("claude request: %w", err)
	}
	for _, block := range message.Content {
		if text := strings.TrimSpace(block.Text); text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from claude")
}
