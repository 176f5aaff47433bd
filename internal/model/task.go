package model

import "time"

// Priority ranks a task. Unknown values are treated as medium.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority reports whether raw names a known priority.
func ParsePriority(raw string) (Priority, bool) {
	switch Priority(raw) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(raw), true
	default:
		return PriorityMedium, false
	}
}

// Subtask is a checklist item inside a task.
type Subtask struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Task represents a single item in the collection. Timestamps are epoch milliseconds.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes"`
	Priority  Priority  `json:"priority"`
	Tags      []string  `json:"tags"`
	DueAt     *int64    `json:"dueAt"`
	RemindAt  *int64    `json:"remindAt"`
	Subtasks  []Subtask `json:"subtasks"`
	Completed bool      `json:"completed"`
	Archived  bool      `json:"archived"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share slices or pointers with the store.
func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string{}, t.Tags...)
	} else {
		out.Tags = []string{}
	}
	if t.Subtasks != nil {
		out.Subtasks = append([]Subtask{}, t.Subtasks...)
	} else {
		out.Subtasks = []Subtask{}
	}
	if t.DueAt != nil {
		v := *t.DueAt
		out.DueAt = &v
	}
	if t.RemindAt != nil {
		v := *t.RemindAt
		out.RemindAt = &v
	}
	return out
}

// Due returns the due date in loc, if any.
func (t Task) Due(loc *time.Location) (time.Time, bool) {
	if t.DueAt == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*t.DueAt).In(loc), true
}

// Millis converts a time to the epoch-millisecond form used on the wire.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
