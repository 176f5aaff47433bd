package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-tasks/internal/model"
)

type sentNotification struct {
	title string
	body  string
}

type recordingNotifier struct {
	sent []sentNotification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, title, body string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentNotification{title: title, body: body})
	return nil
}

func TestReminderService_SweepFiresOncePerReminder(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	now := f.clock.now
	past := now.Add(-time.Minute).UnixMilli()
	future := now.Add(time.Hour).UnixMilli()
	_, _ = f.svc.Create(ctx, TaskInput{Title: "call mom", RemindAt: &past})
	_, _ = f.svc.Create(ctx, TaskInput{Title: "stretch", Notes: "5 minutes", RemindAt: &past})
	_, _ = f.svc.Create(ctx, TaskInput{Title: "later", RemindAt: &future})
	done, _ := f.svc.Create(ctx, TaskInput{Title: "done already", RemindAt: &past})
	f.svc.ToggleComplete(ctx, done.ID)

	n := &recordingNotifier{}
	rs := NewReminderService(f.svc, n, time.UTC, zerolog.Nop())

	assert.Equal(t, 2, rs.Sweep(ctx, now))
	assert.ElementsMatch(t, []sentNotification{
		{title: "Reminder: call mom", body: "Time to complete your task"},
		{title: "Reminder: stretch", body: "5 minutes"},
	}, n.sent)

	assert.Equal(t, 0, rs.Sweep(ctx, now.Add(time.Minute)))
	assert.Equal(t, 1, rs.Sweep(ctx, now.Add(2*time.Hour)))
	assert.Len(t, n.sent, 3)
}

func TestReminderService_EditingRemindAtRearms(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	now := f.clock.now
	past := now.Add(-time.Minute).UnixMilli()
	task, _ := f.svc.Create(ctx, TaskInput{Title: "water plants", RemindAt: &past})

	n := &recordingNotifier{}
	rs := NewReminderService(f.svc, n, time.UTC, zerolog.Nop())
	require.Equal(t, 1, rs.Sweep(ctx, now))

	again := now.Add(time.Minute).UnixMilli()
	require.NoError(t, f.svc.Update(ctx, task.ID, Patch{RemindAt: &again}))

	assert.Equal(t, 1, rs.Sweep(ctx, now.Add(2*time.Minute)))
}

func TestReminderService_FreshServiceRefires(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	past := f.clock.now.Add(-time.Minute).UnixMilli()
	_, _ = f.svc.Create(ctx, TaskInput{Title: "pending", RemindAt: &past})

	first := NewReminderService(f.svc, &recordingNotifier{}, time.UTC, zerolog.Nop())
	require.Equal(t, 1, first.Sweep(ctx, f.clock.now))

	second := NewReminderService(f.svc, &recordingNotifier{}, time.UTC, zerolog.Nop())
	assert.Equal(t, 1, second.Sweep(ctx, f.clock.now))
}

func TestReminderService_FailedDeliveryRetries(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	past := f.clock.now.Add(-time.Minute).UnixMilli()
	_, _ = f.svc.Create(ctx, TaskInput{Title: "retry", RemindAt: &past})

	n := &recordingNotifier{err: errors.New("offline")}
	rs := NewReminderService(f.svc, n, time.UTC, zerolog.Nop())
	assert.Equal(t, 0, rs.Sweep(ctx, f.clock.now))

	n.err = nil
	assert.Equal(t, 1, rs.Sweep(ctx, f.clock.now))
}

func TestReminderService_DailySummary(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	now := f.clock.now
	overdue := now.Add(-2 * time.Hour).UnixMilli()
	soon := now.Add(20 * time.Hour).UnixMilli()
	_, _ = f.svc.Create(ctx, TaskInput{Title: "no date <b>", Tags: []string{"home"}})
	_, _ = f.svc.Create(ctx, TaskInput{Title: "soon", DueAt: &soon, Subtasks: []model.Subtask{{Text: "a", Done: true}, {Text: "b"}}})
	late, _ := f.svc.Create(ctx, TaskInput{Title: "late", Notes: "hurry", DueAt: &overdue})
	finished, _ := f.svc.Create(ctx, TaskInput{Title: "finished"})
	f.svc.ToggleComplete(ctx, finished.ID)

	rs := NewReminderService(f.svc, nil, time.UTC, zerolog.Nop())
	report := rs.DailySummary(now)

	assert.Contains(t, report, "📋 <b>Daily report</b>\n🗓 10.03.2026")
	assert.Contains(t, report, "⚠️ late\n   ⏰ 2026-03-10 07:00 — <b>overdue</b>\n   📝 hurry")
	assert.Contains(t, report, "⏳ soon\n   ⏰ 2026-03-11 05:00 · ≈1 day left\n   ☑️ 1/2 steps")
	assert.Contains(t, report, "🟡 no date &lt;b&gt; <i>(home)</i>")
	assert.NotContains(t, report, "finished")
	assert.Less(t, strings.Index(report, late.Title), strings.Index(report, "soon"))
	assert.Less(t, strings.Index(report, "soon"), strings.Index(report, "no date"))
	assert.Contains(t, report, "🏆 Points: <b>35</b> · Streak: <b>1</b> day")
}

func TestReminderService_DailySummaryEmpty(t *testing.T) {
	f := newStoreFixture(t)
	rs := NewReminderService(f.svc, nil, time.UTC, zerolog.Nop())

	report := rs.DailySummary(f.clock.now)

	assert.Contains(t, report, "— nothing open")
	assert.Contains(t, report, "Streak: <b>0</b> days")
}
