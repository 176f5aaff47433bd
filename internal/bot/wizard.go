package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"focus-tasks/internal/model"
	"focus-tasks/internal/service"
)

type wizardStage int

const (
	stageNone wizardStage = iota
	stageTitle
	stageNotes
	stageTags
	stagePriority
	stageDue
	stageRemind
)

type wizardState struct {
	stage wizardStage
	input service.TaskInput
}

func (b *Bot) startWizard(msg *tgbotapi.Message) error {
	b.log.Info().Int64("chat_id", msg.Chat.ID).Msg("start new task conversation")
	b.setWizard(msg.Chat.ID, &wizardState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleWizard(ctx context.Context, msg *tgbotapi.Message, state *wizardState) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "A task needs a title. What should it be called?", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageNotes
		return b.sendWithReplyMarkup(chatID, "✏️ Add a short note (or skip).", skipKeyboard())
	case stageNotes:
		if !isSkipInput(text) {
			state.input.Notes = text
		}
		state.stage = stageTags
		return b.sendWithReplyMarkup(chatID, "🏷 Tags, separated by commas (or skip).", skipKeyboard())
	case stageTags:
		if !isSkipInput(text) {
			state.input.Tags = strings.Split(text, ",")
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(chatID, "🚦 Priority?", priorityKeyboard())
	case stagePriority:
		p, ok := parsePriorityInput(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, "Pick high, medium or low.", priorityKeyboard())
		}
		state.input.Priority = p
		state.stage = stageDue
		return b.sendWithReplyMarkup(chatID, "⏰ Due date as <code>2026-11-30</code> or <code>2026-11-30 18:00</code> (or skip).", skipKeyboard())
	case stageDue:
		if !isSkipInput(text) {
			due, err := parseWhen(text, b.now(), b.opts.Location, 23, 59)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "I cannot read that date. Use <code>2026-11-30</code>, <code>2026-11-30 18:00</code> or skip.", skipKeyboard())
			}
			ms := model.Millis(due)
			state.input.DueAt = &ms
		}
		state.stage = stageRemind
		return b.sendWithReplyMarkup(chatID, "🔔 Remind me at <code>2026-11-30 09:00</code>, or in <code>+2h</code> (or skip).", skipKeyboard())
	case stageRemind:
		if !isSkipInput(text) {
			at, err := parseWhen(text, b.now(), b.opts.Location, 9, 0)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "I cannot read that time. Use <code>2026-11-30 09:00</code>, <code>+30m</code> or skip.", skipKeyboard())
			}
			ms := model.Millis(at)
			state.input.RemindAt = &ms
		}
		input := state.input
		b.clearWizard(chatID)
		return b.createAndReport(ctx, chatID, input)
	default:
		b.clearWizard(chatID)
		return b.sendText(chatID, "Conversation reset. Start again with /newtask.")
	}
}

// parseWhen accepts "+90m" style offsets from now, "YYYY-MM-DD HH:MM", or a
// bare date that gets the given default clock time.
func parseWhen(raw string, now time.Time, loc *time.Location, hour, minute int) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "+") {
		d, err := time.ParseDuration(raw[1:])
		if err != nil || d <= 0 {
			return time.Time{}, fmt.Errorf("invalid offset %q", raw)
		}
		return now.Add(d), nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", raw, loc); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

func parsePriorityInput(text string) (model.Priority, bool) {
	value := strings.ToLower(strings.TrimSpace(text))
	switch value {
	case strings.ToLower(btnHigh):
		return model.PriorityHigh, true
	case strings.ToLower(btnMedium):
		return model.PriorityMedium, true
	case strings.ToLower(btnLow):
		return model.PriorityLow, true
	}
	if isSkipInput(value) {
		return model.PriorityMedium, true
	}
	return model.ParsePriority(value)
}
