package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Notifier delivers a short alert outside the regular chat flow.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Sender is the slice of the Telegram API a notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Nop drops every notification. It stands in when no channel was granted.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }

// Telegram posts notifications into the owner chat.
type Telegram struct {
	api    Sender
	chatID int64
	log    zerolog.Logger
}

// NewTelegram returns Nop unless both an API and an owner chat are set.
func NewTelegram(api Sender, chatID int64, log zerolog.Logger) Notifier {
	if api == nil || chatID == 0 {
		log.Info().Msg("notifications disabled: no owner chat configured")
		return Nop{}
	}
	return &Telegram{api: api, chatID: chatID, log: log.With().Str("component", "notify").Logger()}
}

func (t *Telegram) Notify(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("<b>")
	sb.WriteString(html.EscapeString(strings.TrimSpace(title)))
	sb.WriteString("</b>")
	if body = strings.TrimSpace(body); body != "" {
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(body))
	}

	msg := tgbotapi.NewMessage(t.chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error().Err(err).Str("title", title).Msg("failed to send notification")
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
