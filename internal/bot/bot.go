package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"focus-tasks/internal/service"
)

// API is the part of tgbotapi.BotAPI the bot talks to.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Options configures who may talk to the bot and how it renders time.
type Options struct {
	// OwnerChatID restricts the bot to one chat. Zero accepts any private chat.
	OwnerChatID int64
	UndoWindow  time.Duration
	Location    *time.Location
}

type chatState struct {
	wizard  *wizardState
	listing []string
	confirm *confirmation
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api       API
	tasks     *service.TaskService
	reminders *service.ReminderService
	undo      *service.UndoSlot
	opts      Options
	log       zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	chats map[int64]*chatState
}

// Connect authorizes token against the Telegram API.
func Connect(token string, log zerolog.Logger) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")
	return api, nil
}

func New(api API, tasks *service.TaskService, reminders *service.ReminderService, opts Options, log zerolog.Logger) *Bot {
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = 4 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Bot{
		api:       api,
		tasks:     tasks,
		reminders: reminders,
		undo:      service.NewUndoSlot(opts.UndoWindow),
		opts:      opts,
		log:       log.With().Str("component", "bot").Logger(),
		now:       tasks.Now,
		chats:     make(map[int64]*chatState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Int64("owner_chat", b.opts.OwnerChatID).Msg("start polling updates")
	if b.opts.OwnerChatID == 0 {
		b.log.Warn().Msg("OWNER_CHAT_ID is not set, any private chat may use the bot")
	}

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()
	defer b.undo.Stop()

	for update := range updates {
		b.HandleUpdate(ctx, update)
	}

	return ctx.Err()
}

// HandleUpdate dispatches a single update. Errors are logged.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil || !b.allowed(cb.Message.Chat.ID) {
			return
		}
		if err := b.handleCallback(ctx, cb); err != nil {
			b.log.Error().Err(err).Str("data", cb.Data).Msg("handle callback")
		}
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil || !msg.Chat.IsPrivate() {
			return
		}
		if !b.allowed(msg.Chat.ID) {
			b.log.Warn().Int64("chat_id", msg.Chat.ID).Msg("message from foreign chat ignored")
			_ = b.sendText(msg.Chat.ID, "🔒 This bot is private.")
			return
		}
		if err := b.handleMessage(ctx, msg); err != nil {
			b.log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("handle message")
		}
	}
}

// SendDailyReport posts the summary to the owner chat, or to every chat
// seen this session when no owner is configured.
func (b *Bot) SendDailyReport(ctx context.Context) error {
	text := b.reminders.DailySummary(b.now())
	for _, chatID := range b.reportChats() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.Error().Err(err).Int64("chat_id", chatID).Msg("send report")
		}
	}
	return nil
}

func (b *Bot) reportChats() []int64 {
	if b.opts.OwnerChatID != 0 {
		return []int64{b.opts.OwnerChatID}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int64, 0, len(b.chats))
	for id := range b.chats {
		out = append(out, id)
	}
	return out
}

func (b *Bot) allowed(chatID int64) bool {
	return b.opts.OwnerChatID == 0 || chatID == b.opts.OwnerChatID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	b.touch(msg.Chat.ID)

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearWizard(msg.Chat.ID)
		b.clearConfirmation(msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Info().Int64("chat_id", msg.Chat.ID).Str("command", msg.Command()).Str("args", msg.CommandArguments()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	if req := b.getConfirmation(msg.Chat.ID); req != nil {
		return b.handleConfirmationResponse(ctx, msg, *req)
	}

	if state := b.getWizard(msg.Chat.ID); state != nil {
		b.log.Debug().Int64("chat_id", msg.Chat.ID).Int("stage", int(state.stage)).Msg("wizard step")
		return b.handleWizard(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /add <title> to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "newtask":
		return b.startWizard(msg)
	case "tasks":
		return b.handleListTasks(msg)
	case "find":
		return b.handleFind(msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "step":
		return b.handleStep(ctx, msg)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "undo":
		return b.handleUndo(ctx, msg.Chat.ID)
	case "archive":
		return b.handleArchive(ctx, msg)
	case "clear":
		return b.handleClear(ctx, msg)
	case "stats":
		return b.handleStats(msg)
	case "theme":
		return b.handleTheme(ctx, msg)
	case "report":
		return b.sendText(msg.Chat.ID, b.reminders.DailySummary(b.now()))
	case "export":
		return b.handleExport(msg)
	case "import":
		return b.handleImport(ctx, msg)
	case "cancel":
		b.clearWizard(msg.Chat.ID)
		b.clearConfirmation(msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startWizard(msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(msg.Chat.ID, service.ViewQuery{})
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
}

func (b *Bot) stateLocked(chatID int64) *chatState {
	st, ok := b.chats[chatID]
	if !ok {
		st = &chatState{}
		b.chats[chatID] = st
	}
	return st
}

func (b *Bot) touch(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stateLocked(chatID)
}

func (b *Bot) setListing(chatID int64, ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stateLocked(chatID).listing = ids
}

// resolve maps a listing number (or a literal id) to a task id.
func (b *Bot) resolve(chatID int64, ref string) (string, bool) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return "", false
	}

	b.mu.Lock()
	listing := b.stateLocked(chatID).listing
	b.mu.Unlock()

	if n, ok := parseIndex(ref); ok && n <= len(listing) {
		ref = listing[n-1]
	}
	if _, ok := b.tasks.Get(ref); !ok {
		return "", false
	}
	return ref, true
}

func (b *Bot) getWizard(chatID int64) *wizardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(chatID).wizard
}

func (b *Bot) setWizard(chatID int64, state *wizardState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stateLocked(chatID).wizard = state
}

func (b *Bot) clearWizard(chatID int64) {
	b.setWizard(chatID, nil)
}

func (b *Bot) getConfirmation(chatID int64) *confirmation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(chatID).confirm
}

func (b *Bot) setConfirmation(chatID int64, req *confirmation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stateLocked(chatID).confirm = req
}

func (b *Bot) clearConfirmation(chatID int64) {
	b.setConfirmation(chatID, nil)
}
