package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"focus-tasks/internal/model"
	"focus-tasks/internal/service"
)

const (
	iconDue     = "⏳"
	iconOverdue = "⚠️"
	iconDone    = "✔️"
)

func escape(s string) string {
	return html.EscapeString(s)
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

func formatListItem(n int, task model.Task, loc *time.Location, now time.Time) string {
	var b strings.Builder

	icon := priorityIcon(task.Priority)
	due, hasDue := task.Due(loc)
	switch {
	case task.Completed:
		icon = iconDone
	case hasDue && now.After(due):
		icon = iconOverdue
	case hasDue && due.Sub(now) <= 48*time.Hour:
		icon = iconDue
	}

	title := escape(normalizeTitle(task.Title))
	if task.Completed {
		title = "<s>" + title + "</s>"
	}
	b.WriteString(fmt.Sprintf("%s <b>%d.</b> %s", icon, n, title))
	if len(task.Tags) > 0 {
		b.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(strings.Join(task.Tags, ", "))))
	}
	b.WriteByte('\n')

	if hasDue {
		if now.After(due) && !task.Completed {
			b.WriteString(fmt.Sprintf("   ⏰ %s — <b>overdue</b>\n", due.Format("2006-01-02 15:04")))
		} else {
			b.WriteString(fmt.Sprintf("   ⏰ %s\n", due.Format("2006-01-02 15:04")))
		}
	}
	if len(task.Subtasks) > 0 {
		b.WriteString(fmt.Sprintf("   ☑️ %d/%d steps\n", doneSteps(task), len(task.Subtasks)))
	}
	if notes := strings.TrimSpace(task.Notes); notes != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(shortTitle(notes, 80))))
	}
	return b.String()
}

// formatDetails renders one task with its checklist.
func formatDetails(task model.Task, loc *time.Location, now time.Time) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(formatListItem(1, task, loc, now), "\n"))
	for i, sub := range task.Subtasks {
		mark := "▫️"
		if sub.Done {
			mark = "✅"
		}
		b.WriteString(fmt.Sprintf("\n   %s %d. %s", mark, i+1, escape(sub.Text)))
	}
	return b.String()
}

func formatSaved(task model.Task, loc *time.Location) string {
	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s %s\n", priorityIcon(task.Priority), task.Priority))
	if task.Notes != "" {
		summary.WriteString(fmt.Sprintf("• <b>Notes:</b> %s\n", escape(task.Notes)))
	}
	if len(task.Tags) > 0 {
		summary.WriteString(fmt.Sprintf("• <b>Tags:</b> %s\n", escape(strings.Join(task.Tags, ", "))))
	}
	if due, ok := task.Due(loc); ok {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", due.Format("2006-01-02 15:04")))
	}
	if task.RemindAt != nil {
		summary.WriteString(fmt.Sprintf("• <b>Reminder:</b> %s\n", time.UnixMilli(*task.RemindAt).In(loc).Format("2006-01-02 15:04")))
	}
	return strings.TrimSpace(summary.String())
}

func formatStats(st service.Stats, meta model.Meta) string {
	var b strings.Builder
	b.WriteString("🏆 <b>Progress</b>\n")
	b.WriteString(fmt.Sprintf("• Points: <b>%d</b>\n", meta.Points))
	b.WriteString(fmt.Sprintf("• Streak: <b>%d</b> %s", meta.Streak.Current, plural(meta.Streak.Current, "day", "days")))
	if meta.Streak.LastDate != nil {
		b.WriteString(fmt.Sprintf(" (last %s)", *meta.Streak.LastDate))
	}
	b.WriteString("\n\n📊 <b>Tasks</b>\n")
	b.WriteString(fmt.Sprintf("• Total: %d\n", st.Total))
	b.WriteString(fmt.Sprintf("• Active: %d\n", st.Active))
	b.WriteString(fmt.Sprintf("• Completed: %d\n", st.Completed))
	b.WriteString(fmt.Sprintf("• Archived: %d\n", st.Archived))
	b.WriteString(fmt.Sprintf("• High priority: %d", st.High))
	return b.String()
}

func doneSteps(task model.Task) int {
	n := 0
	for _, sub := range task.Subtasks {
		if sub.Done {
			n++
		}
	}
	return n
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
