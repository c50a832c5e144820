package advice

import (
	"context"
	"fmt"
	"strings"

	"github.com/Morwran/yagpt"
	"go.uber.org/zap"

	"ask-kyra/internal/logging"
)

type YandexClient struct {
	ya           yagpt.YaGPTFace
	iamToken     string
	systemPrompt string
}

func NewYandex(oauthToken, folderID, systemPrompt string) (*YandexClient, error) {
	// Create IAM token from OAuth token
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}

	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}

	return &YandexClient{
		ya:           ya,
		iamToken:     resp.IamToken,
		systemPrompt: systemPrompt,
	}, nil
}

func (c *YandexClient) Ask(ctx context.Context, _ string, query string) Result {
	var messages []yagpt.Message
	if c.systemPrompt != "" {
		messages = append(messages, yagpt.Message{Role: "system", Content: c.systemPrompt})
	}
	messages = append(messages, yagpt.Message{Role: "user", Content: strings.TrimSpace(query)})

	resp, err := c.ya.CompletionWithCtx(ctx, c.iamToken, messages)
	if err != nil {
		logging.FromContext(ctx).Warn(ctx, "yagpt completion failed", zap.Error(err))
		return transportFailure(fmt.Errorf("yagpt completion failed: %w", err))
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return answer("", yagpt.YaModelLite)
	}
	return answer(resp.Alternatives[0].Message.Content, yagpt.YaModelLite)
}
