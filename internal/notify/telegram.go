package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type telegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramTransport posts alerts to a fixed chat. The recipient address is
// only mentioned in the text.
type TelegramTransport struct {
	bot    telegramSender
	chatID int64
}

func NewTelegramTransport(token string, chatID int64) (*TelegramTransport, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramTransport{bot: b, chatID: chatID}, nil
}

func (t *TelegramTransport) Name() string { return "telegram" }

func (t *TelegramTransport) Send(ctx context.Context, recipient string, msg Message) error {
	params := &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   fmt.Sprintf("%s\n\n%sRecipient: %s", msg.Subject, msg.Text, recipient),
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram message to chat %d: %w", t.chatID, err)
	}
	return nil
}
