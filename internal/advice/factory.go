package advice

import (
	"fmt"
	"os"
	"strings"

	"ask-kyra/internal/config"
)

// New builds the advice client selected by cfg.AdviceProvider.
func New(cfg *config.Config, systemPrompt string) (Client, error) {
	switch cfg.AdviceProvider {
	case config.ProviderKyra:
		return NewKyra(cfg.KyraAPIURL, KyraOptions{
			Timeout:   cfg.AdviceTimeout,
			Retries:   cfg.AdviceRetries,
			RetryWait: cfg.AdviceRetryWait,
		}), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for provider %s", cfg.AdviceProvider)
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, systemPrompt, cfg.AdviceTimeout), nil
	case config.ProviderYandex:
		return NewYandex(cfg.YandexOAuthToken, cfg.YandexFolderID, systemPrompt)
	default:
		return nil, fmt.Errorf("unknown advice provider: %s", cfg.AdviceProvider)
	}
}

// ReadSystemPrompt returns the prompt file contents, or "" when the file is
// missing. Only the LLM-backed providers use it.
func ReadSystemPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
