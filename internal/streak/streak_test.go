package streak_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"habitline/internal/streak"
)

const today = "2024-03-01"

func TestYesterdayCrossesMonthAndLeapDay(t *testing.T) {
	assert.Equal(t, "2024-02-29", streak.Yesterday(today))
	assert.Equal(t, "2023-12-31", streak.Yesterday("2024-01-01"))
	assert.Equal(t, "", streak.Yesterday("not-a-day"))
}

func TestTodayUsesLocation(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, "2024-03-01", streak.Today(now, nil))
	assert.Equal(t, "2024-03-02", streak.Today(now, tokyo))
}

func TestRollover(t *testing.T) {
	cases := []struct {
		name string
		in   streak.State
		want int
	}{
		{"yesterday keeps streak", streak.State{CurrentStreak: 4, LastActiveDate: "2024-02-29"}, 4},
		{"today keeps streak", streak.State{CurrentStreak: 5, LastActiveDate: today}, 5},
		{"gap resets", streak.State{CurrentStreak: 10, LastActiveDate: "2024-02-27"}, 0},
		{"never active", streak.State{CurrentStreak: 0}, 0},
		{"garbage date resets", streak.State{CurrentStreak: 3, LastActiveDate: "yesterday"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.TotalTasksCompleted = 12
			got := streak.Rollover(tc.in, today)
			assert.Equal(t, tc.want, got.CurrentStreak)
			assert.Equal(t, tc.in.LastActiveDate, got.LastActiveDate)
			assert.Equal(t, 12, got.TotalTasksCompleted)
		})
	}
}

func TestRolloverIdempotent(t *testing.T) {
	for _, s := range []streak.State{
		{CurrentStreak: 10, LastActiveDate: "2024-02-27", TotalTasksCompleted: 10},
		{CurrentStreak: 4, LastActiveDate: "2024-02-29", TotalTasksCompleted: 4},
		{CurrentStreak: 2, LastActiveDate: today, TotalTasksCompleted: 9},
		{},
	} {
		once := streak.Rollover(s, today)
		assert.Equal(t, once, streak.Rollover(once, today))
	}
}

func TestOnAllTasksCompletedContinues(t *testing.T) {
	got := streak.OnAllTasksCompleted(streak.State{CurrentStreak: 4, LastActiveDate: "2024-02-29", TotalTasksCompleted: 7}, today)
	assert.Equal(t, streak.State{CurrentStreak: 5, LastActiveDate: today, TotalTasksCompleted: 8}, got)
}

func TestOnAllTasksCompletedRestarts(t *testing.T) {
	first := streak.OnAllTasksCompleted(streak.State{}, today)
	assert.Equal(t, streak.State{CurrentStreak: 1, LastActiveDate: today, TotalTasksCompleted: 1}, first)

	broken := streak.OnAllTasksCompleted(streak.State{CurrentStreak: 9, LastActiveDate: "2024-02-20", TotalTasksCompleted: 30}, today)
	assert.Equal(t, 1, broken.CurrentStreak)
	assert.Equal(t, 31, broken.TotalTasksCompleted)
}

func TestStreakBreakThenResume(t *testing.T) {
	s := streak.State{CurrentStreak: 10, LastActiveDate: "2024-02-27", TotalTasksCompleted: 10}
	s = streak.Rollover(s, today)
	assert.Equal(t, 0, s.CurrentStreak)
	s = streak.OnAllTasksCompleted(s, today)
	assert.Equal(t, 1, s.CurrentStreak)
	assert.Equal(t, 11, s.TotalTasksCompleted)
}

func TestShouldRecordIsEdgeTriggered(t *testing.T) {
	fresh := streak.State{CurrentStreak: 2, LastActiveDate: "2024-02-29"}
	assert.True(t, streak.ShouldRecord(false, true, fresh, today))
	assert.False(t, streak.ShouldRecord(true, true, fresh, today))
	assert.False(t, streak.ShouldRecord(true, false, fresh, today))
	assert.False(t, streak.ShouldRecord(false, false, fresh, today))
}

func TestCompleteUncheckRecheckCountsOnce(t *testing.T) {
	s := streak.State{CurrentStreak: 4, LastActiveDate: "2024-02-29", TotalTasksCompleted: 4}
	fired := 0
	// incomplete -> complete -> incomplete -> complete
	for _, step := range [][2]bool{{false, true}, {true, false}, {false, true}} {
		if streak.ShouldRecord(step[0], step[1], s, today) {
			s = streak.OnAllTasksCompleted(s, today)
			fired++
		}
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, 5, s.CurrentStreak)
	assert.Equal(t, 5, s.TotalTasksCompleted)
}

func TestAllComplete(t *testing.T) {
	assert.False(t, streak.AllComplete(nil))
	assert.False(t, streak.AllComplete([]bool{true, false}))
	assert.True(t, streak.AllComplete([]bool{true, true}))
}

func TestMessageTiers(t *testing.T) {
	assert.Equal(t, "Start your streak today!", streak.Message(0))
	assert.Equal(t, "Great start! Keep it going!", streak.Message(1))
	assert.Equal(t, "6 days strong! You're building momentum!", streak.Message(6))
	assert.Equal(t, "7 days! You're creating lasting change!", streak.Message(7))
	assert.Equal(t, "29 days! You're creating lasting change!", streak.Message(29))
	assert.Equal(t, "30 days! You're unstoppable!", streak.Message(30))

	seen := map[string]bool{}
	for _, n := range []int{0, 1, 6, 29, 30} {
		seen[streak.Message(n)] = true
	}
	assert.Len(t, seen, 5)
}
