package model

import "time"

// Theme is the stored UI preference. The engine only persists it.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// ParseTheme reports whether raw names a known theme.
func ParseTheme(raw string) (Theme, bool) {
	switch Theme(raw) {
	case ThemeLight, ThemeDark, ThemeAuto:
		return Theme(raw), true
	default:
		return ThemeAuto, false
	}
}

// Streak counts consecutive calendar days with at least one completion.
// LastDate is a local date in DateLayout, nil before the first completion.
type Streak struct {
	Current  int     `json:"current"`
	LastDate *string `json:"lastDate"`
}

// Meta holds gamification state independent of any single task.
type Meta struct {
	Theme  Theme  `json:"theme"`
	Points int    `json:"points"`
	Streak Streak `json:"streak"`
}

// DateLayout is the calendar-day format used for streak bookkeeping.
const DateLayout = "2006-01-02"

// DefaultMeta is the state of a fresh install.
func DefaultMeta() Meta {
	return Meta{Theme: ThemeAuto}
}

// Normalize clamps values a hand-edited or corrupt document could carry.
func (m Meta) Normalize() Meta {
	if _, ok := ParseTheme(string(m.Theme)); !ok {
		m.Theme = ThemeAuto
	}
	if m.Points < 0 {
		m.Points = 0
	}
	if m.Streak.Current < 0 {
		m.Streak.Current = 0
	}
	if m.Streak.LastDate != nil {
		if _, err := time.Parse(DateLayout, *m.Streak.LastDate); err != nil {
			m.Streak.LastDate = nil
			m.Streak.Current = 0
		} else {
			v := *m.Streak.LastDate
			m.Streak.LastDate = &v
		}
	}
	return m
}
