// Package streak decides how a user's day-over-day completion streak moves.
// Every function is pure: callers pass "today" explicitly as a calendar day
// in DayLayout form.
package streak

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day format exchanged with the store.
const DayLayout = "2006-01-02"

type State struct {
	CurrentStreak       int    `json:"current_streak"`
	LastActiveDate      string `json:"last_active_date,omitempty"`
	TotalTasksCompleted int    `json:"total_tasks_completed"`
}

// Today returns the calendar day of now in loc (UTC when loc is nil).
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DayLayout)
}

func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t, nil
}

// Yesterday returns the calendar day before day, or "" if day does not parse.
func Yesterday(day string) string {
	t, err := ParseDay(day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DayLayout)
}

// Rollover runs before a user sees their streak. Any gap other than
// "active yesterday" or "already active today" breaks the streak.
// Applying it twice with the same today is the same as applying it once.
func Rollover(s State, today string) State {
	last := s.LastActiveDate
	switch {
	case last != "" && last == Yesterday(today):
		return s
	case last != today:
		s.CurrentStreak = 0
		return s
	default:
		return s
	}
}

// OnAllTasksCompleted records the day's completion event.
func OnAllTasksCompleted(s State, today string) State {
	if s.LastActiveDate != "" && s.LastActiveDate == Yesterday(today) {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}
	s.LastActiveDate = today
	s.TotalTasksCompleted++
	return s
}

// ShouldRecord reports whether a toggle must fire OnAllTasksCompleted: the
// day's aggregate flipped from incomplete to complete and the day has not
// been recorded yet.
func ShouldRecord(before, after bool, s State, today string) bool {
	if before || !after {
		return false
	}
	return s.LastActiveDate != today
}

// AllComplete reports whether every flag is set. An empty day is never
// complete.
func AllComplete(flags []bool) bool {
	if len(flags) == 0 {
		return false
	}
	for _, done := range flags {
		if !done {
			return false
		}
	}
	return true
}

// Message is the motivational copy shown next to a streak count.
func Message(streak int) string {
	switch {
	case streak <= 0:
		return "Start your streak today!"
	case streak == 1:
		return "Great start! Keep it going!"
	case streak < 7:
		return fmt.Sprintf("%d days strong! You're building momentum!", streak)
	case streak < 30:
		return fmt.Sprintf("%d days! You're creating lasting change!", streak)
	default:
		return fmt.Sprintf("%d days! You're unstoppable!", streak)
	}
}
