package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"focus-tasks/internal/model"
	"focus-tasks/internal/service"
)

const (
	cbDonePrefix    = "done:"
	cbDeletePrefix  = "delete:"
	cbArchivePrefix = "archive:"
	cbUndo          = "undo"
)

type confirmAction int

const (
	actionClearAll confirmAction = iota
	actionClearCompleted
)

type confirmation struct {
	action confirmAction
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := "there"
	if msg.From != nil && strings.TrimSpace(msg.From.FirstName) != "" {
		name = strings.TrimSpace(msg.From.FirstName)
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep your task list, reminders and streaks.</b>\n\nCommands:\n"+
			"• /add &lt;title&gt; — quick add (use !high, !low, #tag)\n"+
			"• /newtask — add a task step by step\n"+
			"• /tasks — show open tasks\n"+
			"• /done &lt;n&gt; — toggle completion\n"+
			"• /stats — points and streak\n"+
			"• /help — everything else",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /add &lt;title&gt; — quick add, e.g. <code>/add Pay rent !high #home</code>\n" +
		"• /newtask — add a task step by step\n" +
		"• /tasks [all|active|completed|archived] [newest|oldest|priority|due]\n" +
		"• /find &lt;text&gt; — search titles, notes, tags and steps\n" +
		"• /done &lt;n&gt; — toggle completion of task n from the last list\n" +
		"• /step &lt;n&gt; &lt;k&gt; — toggle step k of task n\n" +
		"• /edit &lt;n&gt; &lt;field&gt; &lt;value&gt; — change title, notes, priority, tags, due, remind or steps\n" +
		"• /delete &lt;n&gt; — delete a task (/undo brings it back for a few seconds)\n" +
		"• /archive &lt;n&gt; — archive or unarchive a task\n" +
		"• /clear [all] — remove completed tasks, or everything\n" +
		"• /stats — counters, points and streak\n" +
		"• /theme [light|dark|auto]\n" +
		"• /report — daily report now\n" +
		"• /export — download a backup\n" +
		"• /import &lt;json&gt; — import tasks from a backup\n" +
		"• /cancel — cancel the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	input := parseQuickAdd(msg.CommandArguments())
	if strings.TrimSpace(input.Title) == "" {
		return b.startWizard(msg)
	}
	return b.createAndReport(ctx, msg.Chat.ID, input)
}

func (b *Bot) createAndReport(ctx context.Context, chatID int64, input service.TaskInput) error {
	task, err := b.tasks.Create(ctx, input)
	if errors.Is(err, service.ErrEmptyTitle) {
		return b.sendText(chatID, "A task needs a title.")
	}
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	if err := b.sendText(chatID, formatSaved(task, b.opts.Location)); err != nil {
		return err
	}
	return b.sendTaskList(chatID, service.ViewQuery{Filter: service.FilterActive})
}

func (b *Bot) handleListTasks(msg *tgbotapi.Message) error {
	q := service.ViewQuery{Filter: service.FilterActive}
	for _, arg := range strings.Fields(msg.CommandArguments()) {
		if f, ok := service.ParseFilter(arg); ok {
			q.Filter = f
			continue
		}
		if s, ok := service.ParseSort(arg); ok {
			q.Sort = s
			continue
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Unknown option %q. Try /tasks active due.", escape(arg)))
	}
	return b.sendTaskList(msg.Chat.ID, q)
}

func (b *Bot) handleFind(msg *tgbotapi.Message) error {
	needle := strings.TrimSpace(msg.CommandArguments())
	if needle == "" {
		return b.sendText(msg.Chat.ID, "What should I look for? /find groceries")
	}
	return b.sendTaskList(msg.Chat.ID, service.ViewQuery{Search: needle})
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	id, ok := b.resolve(msg.Chat.ID, msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Task not found. Use the number from /tasks, e.g. /done 2")
	}
	return b.toggleAndReport(ctx, msg.Chat.ID, id)
}

func (b *Bot) toggleAndReport(ctx context.Context, chatID int64, id string) error {
	award, completed := b.tasks.ToggleComplete(ctx, id)
	task, ok := b.tasks.Get(id)
	if !ok {
		return b.sendText(chatID, "Task not found or already deleted.")
	}

	if !completed {
		return b.sendText(chatID, fmt.Sprintf("↩️ «%s» is open again.", escape(normalizeTitle(task.Title))))
	}
	return b.sendText(chatID, fmt.Sprintf("✅ <b>Task completed</b>\n%s\n+%d points · streak %d",
		escape(normalizeTitle(task.Title)), award.Points, award.Streak.Current))
}

func (b *Bot) handleStep(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /step &lt;task&gt; &lt;step&gt;, e.g. /step 1 2")
	}
	id, ok := b.resolve(msg.Chat.ID, args[0])
	if !ok {
		return b.sendText(msg.Chat.ID, "Task not found.")
	}
	task, _ := b.tasks.Get(id)
	k, ok := parseIndex(args[1])
	if !ok || k > len(task.Subtasks) {
		return b.sendText(msg.Chat.ID, "Step not found.")
	}

	b.tasks.ToggleSubtask(ctx, id, task.Subtasks[k-1].ID)
	task, _ = b.tasks.Get(id)
	return b.sendText(msg.Chat.ID, formatDetails(task, b.opts.Location, b.now()))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	id, ok := b.resolve(msg.Chat.ID, msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Task not found. Use the number from /tasks, e.g. /delete 2")
	}
	return b.deleteAndOfferUndo(ctx, msg.Chat.ID, id)
}

func (b *Bot) deleteAndOfferUndo(ctx context.Context, chatID int64, id string) error {
	removed, ok := b.tasks.Remove(ctx, id)
	if !ok {
		return b.sendText(chatID, "Task not found or already deleted.")
	}
	b.undo.Hold(removed)

	text := fmt.Sprintf("🗑 «%s» deleted. /undo within %s to bring it back.",
		escape(normalizeTitle(removed.Title)), b.opts.UndoWindow)
	return b.sendWithReplyMarkup(chatID, text, undoKeyboard())
}

func (b *Bot) handleUndo(ctx context.Context, chatID int64) error {
	task, ok := b.undo.Take()
	if !ok {
		return b.sendText(chatID, "Nothing to undo.")
	}
	b.tasks.Restore(ctx, task)
	return b.sendText(chatID, fmt.Sprintf("↩️ «%s» restored.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleArchive(ctx context.Context, msg *tgbotapi.Message) error {
	id, ok := b.resolve(msg.Chat.ID, msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Task not found. Use the number from /tasks, e.g. /archive 2")
	}
	return b.toggleArchive(ctx, msg.Chat.ID, id)
}

func (b *Bot) toggleArchive(ctx context.Context, chatID int64, id string) error {
	task, ok := b.tasks.Get(id)
	if !ok {
		return b.sendText(chatID, "Task not found or already deleted.")
	}
	if task.Archived {
		b.tasks.Unarchive(ctx, id)
		return b.sendText(chatID, fmt.Sprintf("📤 «%s» is back in the list.", escape(normalizeTitle(task.Title))))
	}
	b.tasks.Archive(ctx, id)
	return b.sendText(chatID, fmt.Sprintf("📦 «%s» archived.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleClear(_ context.Context, msg *tgbotapi.Message) error {
	switch strings.ToLower(strings.TrimSpace(msg.CommandArguments())) {
	case "":
		b.setConfirmation(msg.Chat.ID, &confirmation{action: actionClearCompleted})
		return b.sendWithReplyMarkup(msg.Chat.ID, "Remove all completed tasks?", confirmKeyboard())
	case "all":
		b.setConfirmation(msg.Chat.ID, &confirmation{action: actionClearAll})
		return b.sendWithReplyMarkup(msg.Chat.ID, "⚠️ Remove <b>every</b> task? This cannot be undone.", confirmKeyboard())
	default:
		return b.sendText(msg.Chat.ID, "Usage: /clear or /clear all")
	}
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmation) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.Chat.ID)
		if req.action == actionClearAll {
			n := b.tasks.ClearAll(ctx)
			return b.sendText(msg.Chat.ID, fmt.Sprintf("🧹 Removed %d %s.", n, plural(n, "task", "tasks")))
		}
		n := b.tasks.ClearCompleted(ctx)
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🧹 Removed %d completed %s.", n, plural(n, "task", "tasks")))
	case isCancelInput(text):
		b.clearConfirmation(msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "Nothing removed.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel the cleanup.", confirmKeyboard())
	}
}

func (b *Bot) handleStats(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, formatStats(b.tasks.Stats(), b.tasks.Meta()))
}

func (b *Bot) handleTheme(ctx context.Context, msg *tgbotapi.Message) error {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🎨 Theme: <b>%s</b>. Change it with /theme light|dark|auto", b.tasks.Meta().Theme))
	}
	if err := b.tasks.SetTheme(ctx, arg); err != nil {
		return b.sendText(msg.Chat.ID, "Themes are light, dark and auto.")
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🎨 Theme set to <b>%s</b>.", b.tasks.Meta().Theme))
}

func (b *Bot) handleExport(msg *tgbotapi.Message) error {
	data, err := service.MarshalExport(b.tasks.ExportDocument())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Export failed: %s", escape(err.Error())))
	}

	name := fmt.Sprintf("focus-tasks-%s.json", b.now().In(b.opts.Location).Format("2006-01-02"))
	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = fmt.Sprintf("%d %s", len(b.tasks.Tasks()), plural(len(b.tasks.Tasks()), "task", "tasks"))
	_, err = b.api.Send(doc)
	return err
}

func (b *Bot) handleImport(ctx context.Context, msg *tgbotapi.Message) error {
	raw := strings.TrimSpace(msg.CommandArguments())
	if raw == "" {
		return b.sendText(msg.Chat.ID, "Paste the backup after the command: /import [{\"title\":\"...\"}]")
	}
	imported, err := b.tasks.Import(ctx, []byte(raw))
	if errors.Is(err, service.ErrInvalidImport) {
		return b.sendText(msg.Chat.ID, "That does not look like a task backup. Nothing was imported.")
	}
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📥 Imported %d %s.", len(imported), plural(len(imported), "task", "tasks")))
}

func (b *Bot) sendTaskList(chatID int64, q service.ViewQuery) error {
	tasks := b.tasks.View(q)

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	b.setListing(chatID, ids)

	if len(tasks) == 0 {
		if q.Search != "" {
			return b.sendText(chatID, fmt.Sprintf("Nothing matches «%s».", escape(q.Search)))
		}
		return b.sendText(chatID, "No tasks here. Add one with /add or /newtask.")
	}

	now := b.now()
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>%s</b>\n", listTitle(q)))
	builder.WriteString("Tap ✅ to toggle completion or 🗑 to delete.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, task := range tasks {
		builder.WriteString(formatListItem(i+1, task, b.opts.Location, now))
		label := "✅"
		if task.Completed {
			label = "↩️"
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %d · %s", label, i+1, shortTitle(task.Title, 24)), cbDonePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("📦", cbArchivePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	chatID := cb.Message.Chat.ID
	data := cb.Data
	b.log.Info().Int64("chat_id", chatID).Str("data", data).Msg("callback")

	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		b.ack(cb, "")
		return b.toggleAndReport(ctx, chatID, strings.TrimPrefix(data, cbDonePrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		b.ack(cb, "")
		return b.deleteAndOfferUndo(ctx, chatID, strings.TrimPrefix(data, cbDeletePrefix))
	case strings.HasPrefix(data, cbArchivePrefix):
		b.ack(cb, "")
		return b.toggleArchive(ctx, chatID, strings.TrimPrefix(data, cbArchivePrefix))
	case data == cbUndo:
		b.ack(cb, "")
		return b.handleUndo(ctx, chatID)
	default:
		b.ack(cb, "")
		return nil
	}
}

// parseQuickAdd reads "/add Pay rent !high #home" style arguments.
func parseQuickAdd(args string) service.TaskInput {
	var input service.TaskInput
	var title []string
	for _, word := range strings.Fields(args) {
		switch {
		case strings.HasPrefix(word, "!") && len(word) > 1:
			if p, ok := model.ParsePriority(strings.ToLower(word[1:])); ok {
				input.Priority = p
				continue
			}
		case strings.HasPrefix(word, "#") && len(word) > 1:
			input.Tags = append(input.Tags, word[1:])
			continue
		}
		title = append(title, word)
	}
	input.Title = strings.Join(title, " ")
	return input
}

func parseIndex(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func listTitle(q service.ViewQuery) string {
	if q.Search != "" {
		return fmt.Sprintf("Search: %s", escape(q.Search))
	}
	switch q.Filter {
	case service.FilterActive:
		return "Open tasks"
	case service.FilterCompleted:
		return "Completed tasks"
	case service.FilterArchived:
		return "Archive"
	default:
		return "All tasks"
	}
}
