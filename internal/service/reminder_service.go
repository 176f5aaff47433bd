package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"focus-tasks/internal/model"
	"focus-tasks/internal/notify"
)

const defaultReminderBody = "Time to complete your task"

// ReminderService fires due reminders and builds the periodic report.
type ReminderService struct {
	tasks    *TaskService
	notifier notify.Notifier
	loc      *time.Location
	log      zerolog.Logger

	mu       sync.Mutex
	notified map[string]struct{}
}

func NewReminderService(tasks *TaskService, notifier notify.Notifier, loc *time.Location, log zerolog.Logger) *ReminderService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReminderService{
		tasks:    tasks,
		notifier: notifier,
		loc:      loc,
		log:      log.With().Str("component", "reminders").Logger(),
		notified: make(map[string]struct{}),
	}
}

// Sweep notifies every open task whose reminder time has passed and returns
// how many notifications went out. The notified set lives in memory only,
// so a restart re-arms every pending reminder. Changing remindAt re-arms it
// as well.
func (s *ReminderService) Sweep(ctx context.Context, now time.Time) int {
	nowMs := model.Millis(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]struct{})
	sent := 0
	for _, task := range s.tasks.Tasks() {
		if task.RemindAt == nil || task.Completed || task.Archived {
			continue
		}
		key := reminderKey(task)
		live[key] = struct{}{}
		if *task.RemindAt > nowMs {
			continue
		}
		if _, done := s.notified[key]; done {
			continue
		}

		body := strings.TrimSpace(task.Notes)
		if body == "" {
			body = defaultReminderBody
		}
		if err := s.notifier.Notify(ctx, "Reminder: "+task.Title, body); err != nil {
			s.log.Warn().Err(err).Str("task_id", task.ID).Msg("reminder not delivered")
			continue
		}
		s.notified[key] = struct{}{}
		sent++
	}

	for key := range s.notified {
		if _, ok := live[key]; !ok {
			delete(s.notified, key)
		}
	}

	if sent > 0 {
		s.log.Info().Int("count", sent).Msg("sent reminders")
	}
	return sent
}

// DailySummary renders open tasks, earliest deadline first, with points and
// streak. The result is Telegram HTML.
func (s *ReminderService) DailySummary(now time.Time) string {
	now = now.In(s.loc)
	open := s.tasks.View(ViewQuery{Filter: FilterActive, Sort: SortDue})
	meta := s.tasks.Meta()

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(open) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for _, task := range open {
			builder.WriteString(formatTask(task, now))
		}
	}

	builder.WriteString(fmt.Sprintf("\n🏆 Points: <b>%d</b> · Streak: <b>%d</b> %s\n",
		meta.Points, meta.Streak.Current, plural(meta.Streak.Current, "day", "days")))

	return strings.TrimSpace(builder.String())
}

func reminderKey(task model.Task) string {
	return fmt.Sprintf("%s@%d", task.ID, *task.RemindAt)
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := priorityIcon(task.Priority)
	due, hasDue := task.Due(now.Location())
	if hasDue {
		switch {
		case now.After(due):
			icon = "⚠️"
		case due.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s %s", icon, title))

	if len(task.Tags) > 0 {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(strings.Join(task.Tags, ", "))))
	}

	if hasDue {
		if now.After(due) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s — <b>overdue</b>", due.Format("2006-01-02 15:04")))
		} else {
			daysLeft := int(due.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s · ≈%d %s left", due.Format("2006-01-02 15:04"), daysLeft, plural(daysLeft, "day", "days")))
		}
	}

	if len(task.Subtasks) > 0 {
		done := 0
		for _, sub := range task.Subtasks {
			if sub.Done {
				done++
			}
		}
		sb.WriteString(fmt.Sprintf("\n   ☑️ %d/%d steps", done, len(task.Subtasks)))
	}

	if notes := strings.TrimSpace(task.Notes); notes != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(notes)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
