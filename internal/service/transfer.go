package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"focus-tasks/internal/model"
)

// ErrInvalidImport is returned when a document is neither a task array nor an
// object carrying a "tasks" array.
var ErrInvalidImport = errors.New("unrecognized import document")

// ExportVersion tags the wrapped export format.
const ExportVersion = 1

const untitled = "Untitled"

// MaxIDLength bounds imported ids, in bytes. Telegram callback data is
// capped at 64 bytes including the action prefix.
const MaxIDLength = 48

// ExportDocument is the downloadable backup of the whole engine state.
type ExportDocument struct {
	Version    int          `json:"version"`
	ExportedAt int64        `json:"exportedAt"`
	Tasks      []model.Task `json:"tasks"`
	Meta       model.Meta   `json:"meta"`
}

// MarshalExport renders doc as pretty-printed JSON.
func MarshalExport(doc ExportDocument) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return b, nil
}

// ParseImport splits an export file into raw task items. It accepts a bare
// array or any object with a "tasks" array.
func ParseImport(data []byte) ([]json.RawMessage, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid json", ErrInvalidImport)
	}

	root := gjson.ParseBytes(data)
	var list gjson.Result
	switch {
	case root.IsArray():
		list = root
	case root.IsObject() && root.Get("tasks").IsArray():
		list = root.Get("tasks")
	default:
		return nil, ErrInvalidImport
	}

	items := make([]json.RawMessage, 0)
	list.ForEach(func(_, item gjson.Result) bool {
		items = append(items, json.RawMessage(item.Raw))
		return true
	})
	return items, nil
}

// sanitizer coerces arbitrary JSON into fully defaulted tasks. It is the only
// place where untrusted documents turn into model values.
type sanitizer struct {
	now      time.Time
	newID    func() string
	maxTitle int
}

func (s sanitizer) task(raw []byte) model.Task {
	r := gjson.ParseBytes(raw)
	nowMs := model.Millis(s.now)

	task := model.Task{
		ID:        s.id(r.Get("id")),
		Title:     s.title(r),
		Notes:     stringField(r.Get("notes")),
		Tags:      stringList(r.Get("tags")),
		DueAt:     optionalMillis(r.Get("dueAt")),
		RemindAt:  optionalMillis(r.Get("remindAt")),
		Subtasks:  s.subtasks(r.Get("subtasks")),
		Completed: r.Get("completed").Bool(),
		Archived:  r.Get("archived").Bool(),
		CreatedAt: millisOr(r.Get("createdAt"), nowMs),
		UpdatedAt: millisOr(r.Get("updatedAt"), nowMs),
	}
	task.Priority, _ = model.ParsePriority(r.Get("priority").String())
	return task
}

// id keeps a usable stored id. Ids longer than MaxIDLength are replaced so
// they still fit into chat button payloads.
func (s sanitizer) id(v gjson.Result) string {
	if v.Type == gjson.String || v.Type == gjson.Number {
		if id := strings.TrimSpace(v.String()); id != "" && len(id) <= MaxIDLength {
			return id
		}
	}
	return s.newID()
}

func (s sanitizer) title(r gjson.Result) string {
	for _, field := range []string{"title", "text"} {
		v := r.Get(field)
		if v.Type != gjson.String && v.Type != gjson.Number {
			continue
		}
		if title := strings.TrimSpace(v.String()); title != "" {
			return truncate(title, s.maxTitle)
		}
	}
	return untitled
}

func (s sanitizer) subtasks(v gjson.Result) []model.Subtask {
	out := []model.Subtask{}
	if !v.IsArray() {
		return out
	}
	v.ForEach(func(_, item gjson.Result) bool {
		switch {
		case item.IsObject():
			out = append(out, model.Subtask{
				ID:   s.id(item.Get("id")),
				Text: stringField(item.Get("text")),
				Done: item.Get("done").Bool(),
			})
		case item.Type == gjson.String:
			out = append(out, model.Subtask{ID: s.newID(), Text: item.String()})
		}
		return true
	})
	return out
}

func stringField(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}

func stringList(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() {
		return out
	}
	v.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String || item.Type == gjson.Number {
			out = append(out, item.String())
		}
		return true
	})
	return out
}

// optionalMillis accepts epoch milliseconds as a number, a numeric string or
// an RFC 3339 timestamp. Zero and anything else mean "unset".
func optionalMillis(v gjson.Result) *int64 {
	var ms int64
	switch v.Type {
	case gjson.Number:
		ms = v.Int()
	case gjson.String:
		raw := strings.TrimSpace(v.String())
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ms = n
		} else if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			ms = ts.UnixMilli()
		}
	}
	if ms <= 0 {
		return nil
	}
	return &ms
}

func millisOr(v gjson.Result, fallback int64) int64 {
	if ms := optionalMillis(v); ms != nil {
		return *ms
	}
	return fallback
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
