// Package push delivers push notifications through the Telegram bot gateway.
// Each dashboard user links a chat with the mill bot; the chat ID acts as the
// push token.
package push

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

func Send(ctx context.Context, botToken string, chatID int64, text string) error {
	if chatID == 0 {
		return fmt.Errorf("missing chat_id")
	}
	b, err := bot.New(botToken)
	if err != nil {
		return fmt.Errorf("failed to initialize push bot: %w", err)
	}
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send push to chat_id %d: %w", chatID, err)
	}
	return nil
}
