package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"focus-tasks/internal/model"
)

func int64Ptr(v int64) *int64 { return &v }

func taskIDs(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestCompose_SortNewestAndOldest(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", CreatedAt: 100},
		{ID: "b", CreatedAt: 300},
		{ID: "c", CreatedAt: 200},
	}

	assert.Equal(t, []string{"b", "c", "a"}, taskIDs(Compose(tasks, ViewQuery{Sort: SortNewest})))
	assert.Equal(t, []string{"a", "c", "b"}, taskIDs(Compose(tasks, ViewQuery{Sort: SortOldest})))
	assert.Equal(t, []string{"a", "b", "c"}, taskIDs(tasks), "input order must not change")
}

func TestCompose_SortDueUndatedLastAndStable(t *testing.T) {
	tasks := []model.Task{
		{ID: "a"},
		{ID: "b", DueAt: int64Ptr(50)},
		{ID: "c"},
		{ID: "d", DueAt: int64Ptr(20)},
	}

	assert.Equal(t, []string{"d", "b", "a", "c"}, taskIDs(Compose(tasks, ViewQuery{Sort: SortDue})))
}

func TestCompose_SortPriorityStable(t *testing.T) {
	tasks := []model.Task{
		{ID: "l1", Priority: model.PriorityLow},
		{ID: "m1", Priority: model.PriorityMedium},
		{ID: "h1", Priority: model.PriorityHigh},
		{ID: "m2", Priority: model.PriorityMedium},
		{ID: "h2", Priority: model.PriorityHigh},
	}

	assert.Equal(t, []string{"h1", "h2", "m1", "m2", "l1"}, taskIDs(Compose(tasks, ViewQuery{Sort: SortPriority})))
}

func TestCompose_Filters(t *testing.T) {
	tasks := []model.Task{
		{ID: "open"},
		{ID: "done", Completed: true},
		{ID: "shelved", Archived: true},
		{ID: "done-shelved", Completed: true, Archived: true},
	}

	assert.Equal(t, []string{"open", "done"}, taskIDs(Compose(tasks, ViewQuery{Filter: FilterAll})))
	assert.Equal(t, []string{"open"}, taskIDs(Compose(tasks, ViewQuery{Filter: FilterActive})))
	assert.Equal(t, []string{"done"}, taskIDs(Compose(tasks, ViewQuery{Filter: FilterCompleted})))
	assert.Equal(t, []string{"shelved", "done-shelved"}, taskIDs(Compose(tasks, ViewQuery{Filter: FilterArchived})))
}

func TestCompose_Search(t *testing.T) {
	tasks := []model.Task{
		{ID: "title", Title: "Plan Weekly study"},
		{ID: "notes", Title: "x", Notes: "use POMODORO"},
		{ID: "tag", Title: "x", Tags: []string{"Portfolio"}},
		{ID: "sub", Title: "x", Subtasks: []model.Subtask{{Text: "Pick top 3"}}},
		{ID: "none", Title: "nothing here"},
	}

	assert.Equal(t, []string{"title"}, taskIDs(Compose(tasks, ViewQuery{Search: "weekly"})))
	assert.Equal(t, []string{"notes"}, taskIDs(Compose(tasks, ViewQuery{Search: "pomodoro"})))
	assert.Equal(t, []string{"tag"}, taskIDs(Compose(tasks, ViewQuery{Search: "portf"})))
	assert.Equal(t, []string{"sub"}, taskIDs(Compose(tasks, ViewQuery{Search: "TOP 3"})))
	assert.Len(t, Compose(tasks, ViewQuery{Search: "   "}), 5)
}

func TestCompose_ReturnsCopies(t *testing.T) {
	tasks := []model.Task{{ID: "a", Tags: []string{"x"}}}

	view := Compose(tasks, ViewQuery{})
	view[0].Tags[0] = "changed"

	assert.Equal(t, "x", tasks[0].Tags[0])
}

func TestParseFilterAndSort(t *testing.T) {
	f, ok := ParseFilter(" Active ")
	assert.True(t, ok)
	assert.Equal(t, FilterActive, f)

	_, ok = ParseFilter("someday")
	assert.False(t, ok)

	s, ok := ParseSort("")
	assert.True(t, ok)
	assert.Equal(t, SortNewest, s)

	_, ok = ParseSort("alphabetical")
	assert.False(t, ok)
}
