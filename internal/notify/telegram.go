// ABOUTME: Telegram delivery channel using go-telegram-bot-api
// ABOUTME: Sends one HTML-formatted message per notification to a fixed chat

package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramSender is the subset of *tgbotapi.BotAPI used for delivery.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts notifications to a Telegram chat.
type TelegramNotifier struct {
	bot    telegramSender
	chatID int64
	logger *slog.Logger
}

// NewTelegramNotifier connects to the Bot API with the given token.
func NewTelegramNotifier(token string, chatID int64, logger *slog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return newTelegramNotifier(bot, chatID, logger), nil
}

func newTelegramNotifier(bot telegramSender, chatID int64, logger *slog.Logger) *TelegramNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logger.With("component", "notify-telegram"),
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	msg := tgbotapi.NewMessage(t.chatID, telegramHTML(n))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	t.logger.Debug("telegram notification sent", "reminder_id", n.ReminderID, "chat_id", t.chatID)
	return nil
}

func telegramHTML(n Notification) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(n.Title))
	b.WriteString("</b>")
	if n.Body != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(n.Body))
	}
	if n.Location != "" {
		b.WriteString("\n<blockquote>")
		b.WriteString(html.EscapeString(n.Location))
		b.WriteString("</blockquote>")
	}
	if c := n.Coordinates(); c != "" {
		b.WriteString("\n<code>")
		b.WriteString(c)
		b.WriteString("</code>")
	}
	return b.String()
}
