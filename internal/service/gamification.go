package service

import (
	"time"

	"focus-tasks/internal/model"
)

// Award is the outcome of a qualifying completion.
type Award struct {
	Points int
	Streak model.Streak
}

// Tracker turns completion events into points and day-streak updates.
// Calendar days are evaluated in loc so DST shifts never skew the count.
type Tracker struct {
	rewards model.Rewards
	loc     *time.Location
}

func NewTracker(rewards model.Rewards, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{rewards: rewards, loc: loc}
}

// CreationPoints is the reward for adding a task of priority p.
func (t *Tracker) CreationPoints(p model.Priority) int {
	return t.rewards.Creation.For(p)
}

// RecordCompletion awards points for priority and advances streak.
// A second completion on the same day leaves the streak as is.
func (t *Tracker) RecordCompletion(priority model.Priority, streak model.Streak, now time.Time) Award {
	award := Award{
		Points: t.rewards.Completion.For(priority),
		Streak: streak,
	}

	today := now.In(t.loc).Format(model.DateLayout)
	if streak.LastDate != nil && *streak.LastDate == today {
		return award
	}

	if streak.LastDate != nil && *streak.LastDate == t.previousDay(now) {
		award.Streak.Current = streak.Current + 1
	} else {
		award.Streak.Current = 1
	}
	award.Streak.LastDate = &today
	return award
}

func (t *Tracker) previousDay(now time.Time) string {
	y, m, d := now.In(t.loc).Date()
	// Noon keeps AddDate clear of DST gaps at midnight.
	return time.Date(y, m, d, 12, 0, 0, 0, t.loc).AddDate(0, 0, -1).Format(model.DateLayout)
}
