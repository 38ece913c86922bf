// Package telegram delivers notifications to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	applog "choreboard/internal/log"
	"choreboard/internal/notify"
)

type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *applog.Logger
}

var _ notify.Notifier = (*Notifier)(nil)

func New(token string, chatID int64, logger *slog.Logger) (*Notifier, error) {
	return NewWithEndpoint(token, chatID, tgbotapi.APIEndpoint, logger)
}

// NewWithEndpoint targets a custom Bot API endpoint, in the
// "https://host/bot%s/%s" form.
func NewWithEndpoint(token string, chatID int64, endpoint string, logger *slog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	n := &Notifier{
		bot:    bot,
		chatID: chatID,
		logger: applog.Wrap(logger, applog.ComponentNotify),
	}
	n.logger.Info("Telegram notifier ready", "bot", bot.Self.UserName)
	return n, nil
}

// Notify sends an HTML message to the configured chat.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	n.logger.DebugContext(ctx, "Telegram message sent", "chat_id", n.chatID)
	return nil
}
