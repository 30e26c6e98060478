package contacts

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"dispatch-service/internal/models"
)

// sendTelegram delivers via the bot library, rate-limited globally so a burst
// of alerts cannot trip the Telegram API.
func (n *Notifier) sendTelegram(c models.EmergencyContact, subject, body string) error {
	if err := n.limiter.Wait(n.ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait failed: %w", err)
	}

	text := fmt.Sprintf("*%s*\n%s", subject, body)
	return n.withRetry(channelTelegram, c.Name, func() error {
		b, err := bot.New(n.cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID:    c.ChatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(n.ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", c.ChatID, err)
		}
		return nil
	})
}

// ProbeTelegram sends a registration notice to verify a chat is reachable
// before the contact is stored. Chats that never started the bot fail here.
func ProbeTelegram(ctx context.Context, token string, chatID int64) error {
	b, err := bot.New(token)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "You are now registered as an emergency contact.",
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("chat_id %d unreachable: %w", chatID, err)
	}
	return nil
}
