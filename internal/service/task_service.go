package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"focus-tasks/internal/ids"
	"focus-tasks/internal/model"
	"focus-tasks/internal/notify"
	"focus-tasks/internal/repository"
)

var (
	ErrEmptyTitle   = errors.New("title is required")
	ErrInvalidTheme = errors.New("unknown theme")
)

// DefaultMaxTitleLength caps task titles, in runes.
const DefaultMaxTitleLength = 500

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title     string
	Notes     string
	Priority  model.Priority
	Tags      []string
	DueAt     *int64
	RemindAt  *int64
	Subtasks  []model.Subtask
	Completed bool
}

// Patch represents a partial update. A nil field means "no change"; a zero
// DueAt or RemindAt clears the date. There is deliberately no way to patch
// ID or CreatedAt.
type Patch struct {
	Title     *string
	Notes     *string
	Priority  *model.Priority
	Tags      *[]string
	DueAt     *int64
	RemindAt  *int64
	Subtasks  *[]model.Subtask
	Completed *bool
	Archived  *bool
}

// Stats summarises the collection.
type Stats struct {
	Total     int
	Active    int
	Completed int
	Archived  int
	High      int
}

type tasksDocument struct {
	Tasks []model.Task `json:"tasks"`
}

// Option customises a TaskService.
type Option func(*TaskService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

// WithIDGenerator replaces ids.New.
func WithIDGenerator(newID func() string) Option {
	return func(s *TaskService) { s.newID = newID }
}

// WithCompletionNotifier announces every awarded completion through n.
func WithCompletionNotifier(n notify.Notifier) Option {
	return func(s *TaskService) {
		if n != nil {
			s.completions = n
		}
	}
}

// WithMaxTitleLength overrides DefaultMaxTitleLength.
func WithMaxTitleLength(n int) Option {
	return func(s *TaskService) {
		if n > 0 {
			s.maxTitle = n
		}
	}
}

// TaskService owns the task collection and the gamification meta. It is
// built once per process and shared by reference with every front end.
// Operations on unknown ids are no-ops.
type TaskService struct {
	mu       sync.Mutex
	tasks    []model.Task
	meta     model.Meta
	gw       *repository.Gateway
	tracker  *Tracker
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
	maxTitle int

	completions notify.Notifier
}

// NewTaskService loads both persisted documents through gw. Missing or
// corrupt documents start the store empty with default meta.
func NewTaskService(ctx context.Context, gw *repository.Gateway, tracker *Tracker, log zerolog.Logger, opts ...Option) *TaskService {
	s := &TaskService{
		gw:       gw,
		tracker:  tracker,
		log:      log.With().Str("component", "tasks").Logger(),
		now:      time.Now,
		newID:    ids.New,
		maxTitle: DefaultMaxTitleLength,

		completions: notify.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tasks = s.loadTasks(ctx)
	s.meta = repository.LoadOr(ctx, gw, repository.MetaKey, model.DefaultMeta()).Normalize()
	s.log.Info().Int("tasks", len(s.tasks)).Int("points", s.meta.Points).Msg("loaded state")
	return s
}

func (s *TaskService) loadTasks(ctx context.Context) []model.Task {
	var raw json.RawMessage
	if !s.gw.Load(ctx, repository.TasksKey, &raw) {
		return []model.Task{}
	}
	items, err := ParseImport(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("stored tasks have an unknown shape, starting empty")
		return []model.Task{}
	}
	return s.sanitizeAll(items, nil)
}

// Create validates input and inserts a new task at the front.
func (s *TaskService) Create(ctx context.Context, input TaskInput) (model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.Task{}, ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := model.Millis(s.now())
	priority, _ := model.ParsePriority(string(input.Priority))
	task := model.Task{
		ID:        s.newID(),
		Title:     truncate(title, s.maxTitle),
		Notes:     strings.TrimSpace(input.Notes),
		Priority:  priority,
		Tags:      cleanTags(input.Tags),
		DueAt:     positive(input.DueAt),
		RemindAt:  positive(input.RemindAt),
		Subtasks:  s.cleanSubtasks(input.Subtasks),
		Completed: input.Completed,
		CreatedAt: nowMs,
		UpdatedAt: nowMs,
	}

	s.tasks = append([]model.Task{task}, s.tasks...)
	s.meta.Points += s.tracker.CreationPoints(priority)
	s.saveLocked(ctx)

	s.log.Info().Str("task_id", task.ID).Str("priority", string(priority)).Msg("created task")
	return task.Clone(), nil
}

// Update shallow-merges p into the task with id and refreshes UpdatedAt.
func (s *TaskService) Update(ctx context.Context, id string, p Patch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		s.log.Debug().Str("task_id", id).Msg("update of unknown task ignored")
		return nil
	}

	t := &s.tasks[i]
	if p.Title != nil {
		t.Title = truncate(strings.TrimSpace(*p.Title), s.maxTitle)
	}
	if p.Notes != nil {
		t.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Priority != nil {
		t.Priority, _ = model.ParsePriority(string(*p.Priority))
	}
	if p.Tags != nil {
		t.Tags = cleanTags(*p.Tags)
	}
	if p.DueAt != nil {
		t.DueAt = positive(p.DueAt)
	}
	if p.RemindAt != nil {
		t.RemindAt = positive(p.RemindAt)
	}
	if p.Subtasks != nil {
		t.Subtasks = s.cleanSubtasks(*p.Subtasks)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Archived != nil {
		t.Archived = *p.Archived
	}
	t.UpdatedAt = model.Millis(s.now())

	s.saveTasksLocked(ctx)
	return nil
}

// ToggleComplete flips the completed flag. Completing a task awards points,
// advances the streak and tells the completion notifier; reopening it takes
// nothing back.
func (s *TaskService) ToggleComplete(ctx context.Context, id string) (Award, bool) {
	award, title, completed := s.toggleComplete(ctx, id)
	if !completed {
		return award, false
	}

	body := fmt.Sprintf("%s · +%d points", title, award.Points)
	if err := s.completions.Notify(ctx, "Task completed", body); err != nil {
		s.log.Warn().Err(err).Str("task_id", id).Msg("completion notice not delivered")
	}
	return award, true
}

func (s *TaskService) toggleComplete(ctx context.Context, id string) (Award, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Award{}, "", false
	}

	now := s.now()
	t := &s.tasks[i]
	t.Completed = !t.Completed
	t.UpdatedAt = model.Millis(now)

	if !t.Completed {
		s.saveTasksLocked(ctx)
		return Award{}, "", false
	}

	award := s.tracker.RecordCompletion(t.Priority, s.meta.Streak, now)
	s.meta.Points += award.Points
	s.meta.Streak = award.Streak
	s.saveLocked(ctx)

	s.log.Info().
		Str("task_id", id).
		Int("points", award.Points).
		Int("streak", award.Streak.Current).
		Msg("completed task")
	return award, t.Title, true
}

// Remove deletes the task and hands it back so the caller can offer undo.
func (s *TaskService) Remove(ctx context.Context, id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return model.Task{}, false
	}
	removed := s.tasks[i]
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.saveTasksLocked(ctx)

	s.log.Info().Str("task_id", id).Msg("removed task")
	return removed, true
}

// Restore puts a previously removed task back at the front.
func (s *TaskService) Restore(ctx context.Context, task model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(task.ID); i >= 0 {
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	}
	s.tasks = append([]model.Task{task.Clone()}, s.tasks...)
	s.saveTasksLocked(ctx)

	s.log.Info().Str("task_id", task.ID).Msg("restored task")
}

// Archive hides a task from the default views without deleting it.
func (s *TaskService) Archive(ctx context.Context, id string) {
	archived := true
	_ = s.Update(ctx, id, Patch{Archived: &archived})
}

func (s *TaskService) Unarchive(ctx context.Context, id string) {
	archived := false
	_ = s.Update(ctx, id, Patch{Archived: &archived})
}

// ToggleSubtask flips one checklist item.
func (s *TaskService) ToggleSubtask(ctx context.Context, taskID, subtaskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(taskID)
	if i < 0 {
		return
	}
	t := &s.tasks[i]
	for j := range t.Subtasks {
		if t.Subtasks[j].ID == subtaskID {
			t.Subtasks[j].Done = !t.Subtasks[j].Done
			t.UpdatedAt = model.Millis(s.now())
			s.saveTasksLocked(ctx)
			return
		}
	}
}

// CompleteAll marks every task completed. Bulk completion earns no points.
func (s *TaskService) CompleteAll(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := model.Millis(s.now())
	n := 0
	for i := range s.tasks {
		if !s.tasks[i].Completed {
			s.tasks[i].Completed = true
			s.tasks[i].UpdatedAt = nowMs
			n++
		}
	}
	if n > 0 {
		s.saveTasksLocked(ctx)
	}
	return n
}

// ClearCompleted deletes every completed task and reports how many went.
func (s *TaskService) ClearCompleted(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	n := len(s.tasks) - len(kept)
	if n > 0 {
		s.tasks = kept
		s.saveTasksLocked(ctx)
		s.log.Info().Int("count", n).Msg("cleared completed tasks")
	}
	return n
}

// ClearAll empties the collection.
func (s *TaskService) ClearAll(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.tasks)
	s.tasks = []model.Task{}
	s.saveTasksLocked(ctx)
	s.log.Info().Int("count", n).Msg("cleared all tasks")
	return n
}

// ImportBatch coerces raw items into tasks and prepends them in order.
// Malformed items are repaired, never rejected; ids already present are
// replaced with fresh ones.
func (s *TaskService) ImportBatch(ctx context.Context, items []json.RawMessage) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]bool, len(s.tasks))
	for _, t := range s.tasks {
		taken[t.ID] = true
	}
	imported := s.sanitizeAll(items, taken)

	s.tasks = append(append(make([]model.Task, 0, len(imported)+len(s.tasks)), imported...), s.tasks...)
	s.saveTasksLocked(ctx)
	s.log.Info().Int("count", len(imported)).Msg("imported tasks")

	out := make([]model.Task, len(imported))
	for i, t := range imported {
		out[i] = t.Clone()
	}
	return out
}

// Import parses an export file and imports its tasks. Unrecognised
// documents return ErrInvalidImport and leave the store untouched.
func (s *TaskService) Import(ctx context.Context, data []byte) ([]model.Task, error) {
	items, err := ParseImport(data)
	if err != nil {
		return nil, err
	}
	return s.ImportBatch(ctx, items), nil
}

// ExportAll returns the collection as plain data.
func (s *TaskService) ExportAll() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ExportDocument wraps tasks and meta for a backup file.
func (s *TaskService) ExportDocument() ExportDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ExportDocument{
		Version:    ExportVersion,
		ExportedAt: model.Millis(s.now()),
		Tasks:      s.snapshotLocked(),
		Meta:       s.metaLocked(),
	}
}

// Get returns a copy of the task with id.
func (s *TaskService) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return model.Task{}, false
	}
	return s.tasks[i].Clone(), true
}

// Tasks returns a copy of the collection in stored order.
func (s *TaskService) Tasks() []model.Task {
	return s.ExportAll()
}

// View composes a filtered, sorted projection of the collection.
func (s *TaskService) View(q ViewQuery) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Compose(s.tasks, q)
}

func (s *TaskService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Total: len(s.tasks)}
	for _, t := range s.tasks {
		switch {
		case t.Archived:
			st.Archived++
		case !t.Completed:
			st.Active++
		}
		if t.Completed {
			st.Completed++
		}
		if t.Priority == model.PriorityHigh && !t.Archived {
			st.High++
		}
	}
	return st
}

// Meta returns a copy of the gamification state.
func (s *TaskService) Meta() model.Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metaLocked()
}

func (s *TaskService) SetTheme(ctx context.Context, raw string) error {
	theme, ok := model.ParseTheme(strings.ToLower(strings.TrimSpace(raw)))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.Theme = theme
	s.gw.Save(ctx, repository.MetaKey, s.meta)
	return nil
}

// ResetMeta restores points, streak and theme to their defaults.
func (s *TaskService) ResetMeta(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = model.DefaultMeta()
	s.gw.Save(ctx, repository.MetaKey, s.meta)
}

// Now exposes the service clock so collaborators agree on the time.
func (s *TaskService) Now() time.Time {
	return s.now()
}

func (s *TaskService) sanitizeAll(items []json.RawMessage, taken map[string]bool) []model.Task {
	if taken == nil {
		taken = map[string]bool{}
	}
	san := sanitizer{now: s.now(), newID: s.newID, maxTitle: s.maxTitle}
	out := make([]model.Task, 0, len(items))
	for _, item := range items {
		t := san.task(item)
		for taken[t.ID] {
			t.ID = s.newID()
		}
		taken[t.ID] = true
		out = append(out, t)
	}
	return out
}

func (s *TaskService) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *TaskService) snapshotLocked() []model.Task {
	out := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (s *TaskService) metaLocked() model.Meta {
	m := s.meta
	if m.Streak.LastDate != nil {
		d := *m.Streak.LastDate
		m.Streak.LastDate = &d
	}
	return m
}

func (s *TaskService) saveTasksLocked(ctx context.Context) {
	s.gw.Save(ctx, repository.TasksKey, tasksDocument{Tasks: s.tasks})
}

func (s *TaskService) saveLocked(ctx context.Context) {
	s.saveTasksLocked(ctx)
	s.gw.Save(ctx, repository.MetaKey, s.meta)
}

func (s *TaskService) cleanSubtasks(in []model.Subtask) []model.Subtask {
	out := make([]model.Subtask, 0, len(in))
	for _, sub := range in {
		text := strings.TrimSpace(sub.Text)
		if text == "" {
			continue
		}
		if sub.ID == "" {
			sub.ID = s.newID()
		}
		sub.Text = text
		out = append(out, sub)
	}
	return out
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		out = append(out, tag)
	}
	return out
}

func positive(v *int64) *int64 {
	if v == nil || *v <= 0 {
		return nil
	}
	n := *v
	return &n
}
