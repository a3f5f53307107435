package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIProvider calls the OpenAI chat completions API. OpenAI takes the
// system prompt as the leading message rather than a separate field.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider constructs the provider with the given API key.
func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Chat implements Provider.
func (p *OpenAIProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, maxTokens int) (string, error) {
	all := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		all = append(all, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range messages {
		all = append(all, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    all,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		var apierr *openai.APIError
		if errors.As(err, &apierr) {
			return "", &ProviderError{
				Provider: "openai",
				Status:   apierr.HTTPStatusCode,
				Body:     apierr.Message,
			}
		}
		return "", fmt.Errorf("openai request: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
