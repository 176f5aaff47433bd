package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"focus-tasks/internal/model"
	"focus-tasks/internal/service"
)

const editUsage = "Usage: /edit &lt;n&gt; &lt;field&gt; &lt;value&gt;\n" +
	"Fields: title, notes, priority, tags, due, remind, steps.\n" +
	"Use <code>-</code> as the value to clear notes, tags, steps or a date."

// clearValue empties an optional field in /edit.
const clearValue = "-"

// handleEdit changes one field: /edit 2 due 2026-11-30 18:00
func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 3 {
		return b.sendText(msg.Chat.ID, editUsage)
	}
	id, ok := b.resolve(msg.Chat.ID, args[0])
	if !ok {
		return b.sendText(msg.Chat.ID, "Task not found. Use the number from /tasks, e.g. /edit 2 title Call mom")
	}

	patch, problem := b.editPatch(strings.ToLower(args[1]), strings.Join(args[2:], " "))
	if problem != "" {
		return b.sendText(msg.Chat.ID, problem)
	}

	if err := b.tasks.Update(ctx, id, patch); err != nil {
		if errors.Is(err, service.ErrEmptyTitle) {
			return b.sendText(msg.Chat.ID, "A task needs a title.")
		}
		return err
	}

	task, ok := b.tasks.Get(id)
	if !ok {
		return b.sendText(msg.Chat.ID, "Task not found or already deleted.")
	}
	b.log.Info().Int64("chat_id", msg.Chat.ID).Str("task_id", id).Str("field", args[1]).Msg("edited task")
	return b.sendText(msg.Chat.ID, "✏️ <b>Task updated</b>\n"+formatDetails(task, b.opts.Location, b.now()))
}

// editPatch builds the patch for one field, or a reply explaining the problem.
func (b *Bot) editPatch(field, value string) (service.Patch, string) {
	var patch service.Patch
	unset := value == clearValue

	switch field {
	case "title":
		if unset {
			value = ""
		}
		patch.Title = &value
	case "notes", "note":
		if unset {
			value = ""
		}
		patch.Notes = &value
	case "priority":
		p, ok := parsePriorityInput(value)
		if !ok {
			return patch, "Pick high, medium or low."
		}
		patch.Priority = &p
	case "tags", "tag":
		tags := []string{}
		if !unset {
			tags = strings.Split(value, ",")
		}
		patch.Tags = &tags
	case "steps", "step":
		steps := []model.Subtask{}
		if !unset {
			for _, text := range strings.Split(value, ",") {
				steps = append(steps, model.Subtask{Text: text})
			}
		}
		patch.Subtasks = &steps
	case "due":
		ms, ok := b.editTime(value, unset, 23, 59)
		if !ok {
			return patch, badTime(value)
		}
		patch.DueAt = &ms
	case "remind", "reminder":
		ms, ok := b.editTime(value, unset, 9, 0)
		if !ok {
			return patch, badTime(value)
		}
		patch.RemindAt = &ms
	default:
		return patch, fmt.Sprintf("Unknown field «%s». Fields: title, notes, priority, tags, due, remind, steps.", escape(field))
	}
	return patch, ""
}

// editTime returns zero for a cleared date, which the store reads as "unset".
func (b *Bot) editTime(value string, unset bool, hour, minute int) (int64, bool) {
	if unset {
		return 0, true
	}
	at, err := parseWhen(value, b.now(), b.opts.Location, hour, minute)
	if err != nil {
		return 0, false
	}
	return model.Millis(at), true
}

func badTime(value string) string {
	return fmt.Sprintf("I cannot read «%s». Use <code>2026-11-30</code>, <code>2026-11-30 18:00</code>, <code>+2h</code> or <code>-</code>.", escape(value))
}
