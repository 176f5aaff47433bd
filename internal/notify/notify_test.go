package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func TestNewTelegram_WithoutPermissionIsNop(t *testing.T) {
	assert.IsType(t, Nop{}, NewTelegram(nil, 42, zerolog.Nop()))
	assert.IsType(t, Nop{}, NewTelegram(&fakeSender{}, 0, zerolog.Nop()))
	assert.NoError(t, Nop{}.Notify(context.Background(), "t", "b"))
}

func TestTelegram_NotifyFormatsHTML(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegram(sender, 42, zerolog.Nop())

	require.NoError(t, n.Notify(context.Background(), "Reminder: <ship>", "notes & more"))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, sender.sent[0].ParseMode)
	assert.Equal(t, "<b>Reminder: &lt;ship&gt;</b>\nnotes &amp; more", sender.sent[0].Text)
}

func TestTelegram_NotifyReturnsSendError(t *testing.T) {
	boom := errors.New("blocked by user")
	n := NewTelegram(&fakeSender{err: boom}, 42, zerolog.Nop())

	err := n.Notify(context.Background(), "title", "")

	assert.ErrorIs(t, err, boom)
}

func TestTelegram_NotifyHonoursCancelledContext(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegram(sender, 42, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Notify(ctx, "title", "body"), context.Canceled)
	assert.Empty(t, sender.sent)
}
