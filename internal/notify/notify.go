package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"ask-kyra/internal/logging"
)

// Notifier delivers short operational messages to the site admin.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Telegram's message length limit.
const maxMessageLen = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	s      sender
	chatID int64
}

func NewTelegram(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{s: api, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, part := range split(text, maxMessageLen) {
		if _, err := n.s.Send(tgbotapi.NewMessage(n.chatID, part)); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// LogNotifier writes notifications to the log when no bot is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, text string) error {
	logging.FromContext(ctx).Info(ctx, "admin notification", zap.String("text", text))
	return nil
}

// New picks the Telegram notifier when both token and chat are set.
func New(token string, chatID int64) (Notifier, error) {
	if token == "" || chatID == 0 {
		return LogNotifier{}, nil
	}
	return NewTelegram(token, chatID)
}

func split(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}
