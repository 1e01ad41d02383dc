// Package notify delivers staff notifications.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of tgbotapi.BotAPI used for outgoing messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts messages to a single staff chat.
type TelegramNotifier struct {
	bot    Sender
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64, debug bool) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = debug
	return NewTelegramNotifierWithSender(bot, chatID), nil
}

func NewTelegramNotifierWithSender(bot Sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the log when no chat is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, text string) error {
	n.logger.Info().Str("text", text).Msg("notification")
	return nil
}
