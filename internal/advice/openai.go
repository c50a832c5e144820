package advice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"ask-kyra/internal/logging"
)

// OpenAIClient answers through any OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

func NewOpenAI(apiKey, baseURL, model, systemPrompt string, timeout time.Duration) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(config),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

func (c *OpenAIClient) Ask(ctx context.Context, studentID, query string) Result {
	var msgs []openai.ChatCompletionMessage
	if c.systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(query)})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		User:     strings.TrimSpace(studentID),
	})
	if err != nil {
		logging.FromContext(ctx).Warn(ctx, "openai completion failed", zap.Error(err))
		return transportFailure(fmt.Errorf("failed to create chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return answer("", c.model)
	}
	logging.FromContext(ctx).Debug(ctx, "openai answered",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return answer(resp.Choices[0].Message.Content, c.model)
}
