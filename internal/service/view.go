package service

import (
	"sort"
	"strings"

	"focus-tasks/internal/model"
)

// Filter selects tasks by their completed/archived flags.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterArchived  Filter = "archived"
)

// SortKey orders a view.
type SortKey string

const (
	SortNewest   SortKey = "newest"
	SortOldest   SortKey = "oldest"
	SortPriority SortKey = "priority"
	SortDue      SortKey = "due"
)

// ViewQuery describes a derived, read-only projection of the collection.
type ViewQuery struct {
	Filter Filter
	Sort   SortKey
	Search string
}

func ParseFilter(raw string) (Filter, bool) {
	switch Filter(strings.ToLower(strings.TrimSpace(raw))) {
	case FilterAll, "":
		return FilterAll, true
	case FilterActive:
		return FilterActive, true
	case FilterCompleted:
		return FilterCompleted, true
	case FilterArchived:
		return FilterArchived, true
	default:
		return FilterAll, false
	}
}

func ParseSort(raw string) (SortKey, bool) {
	switch SortKey(strings.ToLower(strings.TrimSpace(raw))) {
	case SortNewest, "":
		return SortNewest, true
	case SortOldest:
		return SortOldest, true
	case SortPriority:
		return SortPriority, true
	case SortDue:
		return SortDue, true
	default:
		return SortNewest, false
	}
}

// Compose filters, searches and sorts tasks into a fresh slice. The input
// slice is never reordered. "all" hides archived tasks; they only show up
// under the archived filter.
func Compose(tasks []model.Task, q ViewQuery) []model.Task {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if !matchesFilter(task, q.Filter) {
			continue
		}
		if needle != "" && !matchesSearch(task, needle) {
			continue
		}
		out = append(out, task.Clone())
	}

	switch q.Sort {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool { return priorityRank(out[i].Priority) < priorityRank(out[j].Priority) })
	case SortDue:
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].DueAt, out[j].DueAt
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return *a < *b
			}
		})
	}
	return out
}

func matchesFilter(task model.Task, f Filter) bool {
	switch f {
	case FilterActive:
		return !task.Completed && !task.Archived
	case FilterCompleted:
		return task.Completed && !task.Archived
	case FilterArchived:
		return task.Archived
	default:
		return !task.Archived
	}
}

func matchesSearch(task model.Task, needle string) bool {
	if strings.Contains(strings.ToLower(task.Title), needle) ||
		strings.Contains(strings.ToLower(task.Notes), needle) {
		return true
	}
	for _, tag := range task.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	for _, sub := range task.Subtasks {
		if strings.Contains(strings.ToLower(sub.Text), needle) {
			return true
		}
	}
	return false
}

func priorityRank(p model.Priority) int {
	switch p {
	case model.PriorityHigh:
		return 0
	case model.PriorityLow:
		return 2
	default:
		return 1
	}
}
