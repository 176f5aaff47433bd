package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-tasks/internal/model"
	"focus-tasks/internal/repository"
	"focus-tasks/internal/service"
)

const ownerChat int64 = 1001

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 16)}
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.updates)
	}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeAPI) anyTextContains(sub string) bool {
	for _, text := range f.texts() {
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}

type botFixture struct {
	api   *fakeAPI
	tasks *service.TaskService
	bot   *Bot
	now   time.Time
}

func newBotFixture(t *testing.T, owner int64) *botFixture {
	t.Helper()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	gw := repository.NewGateway(repository.NewMemoryStore(), zerolog.Nop())
	tasks := service.NewTaskService(context.Background(), gw, service.NewTracker(model.DefaultRewards(), time.UTC), zerolog.Nop(),
		service.WithClock(func() time.Time { return now }),
	)
	reminders := service.NewReminderService(tasks, nil, time.UTC, zerolog.Nop())
	api := newFakeAPI()
	b := New(api, tasks, reminders, Options{OwnerChatID: owner, UndoWindow: time.Minute, Location: time.UTC}, zerolog.Nop())
	return &botFixture{api: api, tasks: tasks, bot: b, now: now}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID, Type: "private"},
		From: &tgbotapi.User{ID: chatID, FirstName: "Ada"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID, Type: "private"}},
		Data:    data,
	}}
}

func (f *botFixture) say(text string) {
	f.bot.HandleUpdate(context.Background(), textUpdate(ownerChat, text))
}

func TestBot_QuickAdd(t *testing.T) {
	f := newBotFixture(t, ownerChat)

	f.say("/add pay rent !high #home #bills")

	tasks := f.tasks.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "pay rent", tasks[0].Title)
	assert.Equal(t, model.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, []string{"home", "bills"}, tasks[0].Tags)
	assert.True(t, f.api.anyTextContains("Task saved"))
	assert.Contains(t, f.api.lastText(), "1.</b> Pay rent")
}

func TestBot_DoneUsesListingNumbers(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add first")
	f.say("/add second !high")
	f.say("/tasks")

	f.say("/done 2")

	first := f.tasks.View(service.ViewQuery{Search: "first"})
	require.Len(t, first, 1)
	assert.True(t, first[0].Completed)
	assert.Contains(t, f.api.lastText(), "Task completed")
	assert.Contains(t, f.api.lastText(), "+15 points")

	f.say("/done 2")
	assert.Contains(t, f.api.lastText(), "open again")
}

func TestBot_DoneUnknownTask(t *testing.T) {
	f := newBotFixture(t, ownerChat)

	f.say("/done 7")

	assert.Contains(t, f.api.lastText(), "Task not found")
}

func TestBot_DeleteThenUndo(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add keep me")
	before := f.tasks.Tasks()

	f.say("/delete 1")
	assert.Empty(t, f.tasks.Tasks())
	assert.Contains(t, f.api.lastText(), "deleted")

	f.say("/undo")
	assert.Equal(t, before, f.tasks.Tasks())
	assert.Contains(t, f.api.lastText(), "restored")

	f.say("/undo")
	assert.Contains(t, f.api.lastText(), "Nothing to undo")
}

func TestBot_RejectsForeignChat(t *testing.T) {
	f := newBotFixture(t, ownerChat)

	f.bot.HandleUpdate(context.Background(), textUpdate(999, "/add sneaky"))

	assert.Empty(t, f.tasks.Tasks())
	assert.Contains(t, f.api.lastText(), "private")
}

func TestBot_Wizard(t *testing.T) {
	f := newBotFixture(t, ownerChat)

	f.say("/newtask")
	f.say("Write report")
	f.say("first draft only")
	f.say("work, writing")
	f.say(btnHigh)
	f.say("2026-03-12")
	f.say("+2h")

	tasks := f.tasks.Tasks()
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, "first draft only", task.Notes)
	assert.Equal(t, []string{"work", "writing"}, task.Tags)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	require.NotNil(t, task.DueAt)
	assert.Equal(t, time.Date(2026, 3, 12, 23, 59, 0, 0, time.UTC).UnixMilli(), *task.DueAt)
	require.NotNil(t, task.RemindAt)
	assert.Equal(t, f.now.Add(2*time.Hour).UnixMilli(), *task.RemindAt)
}

func TestBot_WizardRetriesBadDateAndCancels(t *testing.T) {
	f := newBotFixture(t, ownerChat)

	f.say("/newtask")
	f.say("Plan trip")
	f.say(btnSkip)
	f.say(btnSkip)
	f.say("whenever")
	assert.Contains(t, f.api.lastText(), "Pick high, medium or low")
	f.say("low")
	f.say("next week")
	assert.Contains(t, f.api.lastText(), "cannot read that date")

	f.say(btnCancelDialog)

	assert.Empty(t, f.tasks.Tasks())
	f.say("hello?")
	assert.Contains(t, f.api.lastText(), "did not get that")
}

func TestBot_ClearAllNeedsConfirmation(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add a")
	f.say("/add b")

	f.say("/clear all")
	assert.Len(t, f.tasks.Tasks(), 2)

	f.say(btnConfirm)
	assert.Empty(t, f.tasks.Tasks())
	assert.Contains(t, f.api.lastText(), "Removed 2 tasks")
}

func TestBot_ClearCompletedCancelled(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add a")
	f.say("/done 1")

	f.say("/clear")
	f.say(btnCancel)

	assert.Len(t, f.tasks.Tasks(), 1)
	assert.Contains(t, f.api.lastText(), "Nothing removed")
}

func TestBot_CallbacksToggleAndAck(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add tap me")
	id := f.tasks.Tasks()[0].ID

	f.bot.HandleUpdate(context.Background(), callbackUpdate(ownerChat, cbDonePrefix+id))

	task, _ := f.tasks.Get(id)
	assert.True(t, task.Completed)
	assert.Len(t, f.api.requests, 1)

	f.bot.HandleUpdate(context.Background(), callbackUpdate(ownerChat, cbArchivePrefix+id))
	task, _ = f.tasks.Get(id)
	assert.True(t, task.Archived)

	f.bot.HandleUpdate(context.Background(), callbackUpdate(ownerChat, cbDeletePrefix+id))
	assert.Empty(t, f.tasks.Tasks())

	f.bot.HandleUpdate(context.Background(), callbackUpdate(ownerChat, cbUndo))
	assert.Len(t, f.tasks.Tasks(), 1)
}

func TestBot_FindAndFilters(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add buy milk #groceries")
	f.say("/add call bank")

	f.say("/find groc")
	assert.Contains(t, f.api.lastText(), "Buy milk")
	assert.NotContains(t, f.api.lastText(), "Call bank")

	f.say("/tasks archived")
	assert.Contains(t, f.api.lastText(), "No tasks here")

	f.say("/tasks someday")
	assert.Contains(t, f.api.lastText(), "Unknown option")
}

func TestBot_StepTogglesSubtask(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	_, err := f.tasks.Create(context.Background(), service.TaskInput{Title: "pack", Subtasks: []model.Subtask{{Text: "socks"}, {Text: "charger"}}})
	require.NoError(t, err)
	f.say("/tasks")

	f.say("/step 1 2")

	task := f.tasks.Tasks()[0]
	assert.False(t, task.Subtasks[0].Done)
	assert.True(t, task.Subtasks[1].Done)
	assert.Contains(t, f.api.lastText(), "✅ 2. charger")
}

func TestBot_EditFields(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add draft report #work")
	f.say("/tasks")

	f.say("/edit 1 title Final report")
	assert.Contains(t, f.api.lastText(), "Task updated")
	assert.Contains(t, f.api.lastText(), "Final report")

	f.say("/edit 1 priority high")
	f.say("/edit 1 notes send to Bob")
	f.say("/edit 1 tags q1, finance")
	f.say("/edit 1 steps outline, numbers")
	f.say("/edit 1 due 2026-03-12")
	f.say("/edit 1 remind +2h")

	task := f.tasks.Tasks()[0]
	assert.Equal(t, "Final report", task.Title)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, "send to Bob", task.Notes)
	assert.Equal(t, []string{"q1", "finance"}, task.Tags)
	require.Len(t, task.Subtasks, 2)
	assert.Equal(t, "numbers", task.Subtasks[1].Text)
	require.NotNil(t, task.DueAt)
	assert.Equal(t, model.Millis(time.Date(2026, 3, 12, 23, 59, 0, 0, time.UTC)), *task.DueAt)
	require.NotNil(t, task.RemindAt)
	assert.Equal(t, model.Millis(f.now.Add(2*time.Hour)), *task.RemindAt)

	f.say("/edit 1 due -")
	f.say("/edit 1 tags -")
	task = f.tasks.Tasks()[0]
	assert.Nil(t, task.DueAt)
	assert.Empty(t, task.Tags)
	assert.NotNil(t, task.RemindAt)
}

func TestBot_EditRejectsBadInput(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add keep me")
	f.say("/tasks")

	f.say("/edit 1 title -")
	assert.Equal(t, "A task needs a title.", f.api.lastText())
	assert.Equal(t, "Keep me", normalizeTitle(f.tasks.Tasks()[0].Title))

	f.say("/edit 1 colour red")
	assert.Contains(t, f.api.lastText(), "Unknown field")

	f.say("/edit 1 due someday")
	assert.Contains(t, f.api.lastText(), "I cannot read")
	assert.Nil(t, f.tasks.Tasks()[0].DueAt)

	f.say("/edit 1 priority urgent")
	assert.Equal(t, "Pick high, medium or low.", f.api.lastText())

	f.say("/edit 7 title x")
	assert.Contains(t, f.api.lastText(), "Task not found")

	f.say("/edit 1")
	assert.Contains(t, f.api.lastText(), "Usage: /edit")
}

func TestBot_StatsAndTheme(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add a !high")
	f.say("/done 1")

	f.say("/stats")
	assert.Contains(t, f.api.lastText(), "Points: <b>40</b>")
	assert.Contains(t, f.api.lastText(), "Streak: <b>1</b> day")

	f.say("/theme dark")
	assert.Equal(t, model.ThemeDark, f.tasks.Meta().Theme)
	f.say("/theme neon")
	assert.Contains(t, f.api.lastText(), "light, dark and auto")
}

func TestBot_ExportSendsDocument(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	f.say("/add backup me")

	f.say("/export")

	f.api.mu.Lock()
	last := f.api.sent[len(f.api.sent)-1]
	f.api.mu.Unlock()
	doc, ok := last.(tgbotapi.DocumentConfig)
	require.True(t, ok)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "focus-tasks-2026-03-10.json", file.Name)
	assert.Contains(t, string(file.Bytes), `"title": "backup me"`)
}

func TestBot_Import(t *testing.T) {
	f := newBotFixture(t, ownerChat)

	f.say(`/import {"todos":[]}`)
	assert.Contains(t, f.api.lastText(), "Nothing was imported")

	f.say(`/import [{"title":"from backup"},{"text":"legacy"}]`)
	assert.Contains(t, f.api.lastText(), "Imported 2 tasks")
	assert.Len(t, f.tasks.Tasks(), 2)
}

func TestBot_SendDailyReport(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	_, err := f.tasks.Create(context.Background(), service.TaskInput{Title: "report me"})
	require.NoError(t, err)

	require.NoError(t, f.bot.SendDailyReport(context.Background()))

	f.api.mu.Lock()
	msg := f.api.sent[len(f.api.sent)-1].(tgbotapi.MessageConfig)
	f.api.mu.Unlock()
	assert.Equal(t, ownerChat, msg.ChatID)
	assert.Contains(t, msg.Text, "Daily report")
	assert.Contains(t, msg.Text, "report me")
}

func TestBot_StartStopsOnCancel(t *testing.T) {
	f := newBotFixture(t, ownerChat)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.bot.Start(ctx) }()

	f.api.updates <- textUpdate(ownerChat, "/add from polling")
	assert.Eventually(t, func() bool { return len(f.tasks.Tasks()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
}

func TestParseQuickAdd(t *testing.T) {
	input := parseQuickAdd("  email Bob !LOW #work !soon ")

	assert.Equal(t, "email Bob !soon", input.Title)
	assert.Equal(t, model.PriorityLow, input.Priority)
	assert.Equal(t, []string{"work"}, input.Tags)
}

func TestParseWhen(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	got, err := parseWhen("+90m", now, time.UTC, 9, 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(90*time.Minute), got)

	got, err = parseWhen("2026-03-11 18:30", now, time.UTC, 9, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 18, 30, 0, 0, time.UTC), got)

	got, err = parseWhen("2026-03-11", now, time.UTC, 23, 59)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 23, 59, 0, 0, time.UTC), got)

	for _, bad := range []string{"tomorrow", "+", "+-1h", "2026-13-01"} {
		_, err := parseWhen(bad, now, time.UTC, 9, 0)
		assert.Error(t, err, bad)
	}
}
