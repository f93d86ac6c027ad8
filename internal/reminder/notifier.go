package reminder

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers a formatted message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// TelegramNotifier sends HTML messages through the Bot API.
type TelegramNotifier struct {
	api *tgbotapi.BotAPI
}

func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{api: api}, nil
}

// NewTelegramNotifierWithEndpoint targets a non-default Bot API server.
// endpoint is a format string taking the token and the method name.
func NewTelegramNotifierWithEndpoint(token, endpoint string) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{api: api}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

// Sent is a single delivered message.
type Sent struct {
	ChatID int64
	Text   string
}

// MemoryNotifier records messages instead of sending them. It backs
// dry runs of the digest job.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []Sent
	Fail map[int64]error
}

func (m *MemoryNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[chatID]; err != nil {
		return err
	}
	m.sent = append(m.sent, Sent{ChatID: chatID, Text: text})
	return nil
}

func (m *MemoryNotifier) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}
