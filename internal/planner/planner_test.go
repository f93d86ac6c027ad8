package planner_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitline/internal/planner"
)

type fixedRand int

func (f fixedRand) IntN(n int) int { return int(f) % n }

func titles(tasks []planner.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func firstProblem(t *testing.T, category string) planner.Task {
	t.Helper()
	tasks, ok := planner.ProblemTasks(category)
	require.True(t, ok, "unknown problem %s", category)
	return tasks[0]
}

func firstGoal(t *testing.T, category string) planner.Task {
	t.Helper()
	tasks, ok := planner.GoalTasks(category)
	require.True(t, ok, "unknown goal %s", category)
	return tasks[0]
}

func TestTierBoundaries(t *testing.T) {
	want := map[int]planner.MotivationTier{
		1: planner.TierLow, 2: planner.TierLow, 3: planner.TierLow,
		4: planner.TierMedium, 5: planner.TierMedium, 6: planner.TierMedium, 7: planner.TierMedium,
		8: planner.TierHigh, 9: planner.TierHigh, 10: planner.TierHigh,
	}
	for level, tier := range want {
		assert.Equal(t, tier, planner.Tier(level), "level %d", level)
	}
}

func TestMessageAlwaysFromTierSet(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for level := planner.MinMotivation; level <= planner.MaxMotivation; level++ {
		set := planner.Messages(planner.Tier(level))
		require.Len(t, set, 3)
		for i := 0; i < 20; i++ {
			plan := planner.Generate(planner.Answers{MainProblem: "focus", MotivationLevel: level}, rng)
			assert.Contains(t, set, plan.MotivationalMessage, "level %d", level)
		}
	}
}

func TestInjectedRandPicksVariant(t *testing.T) {
	set := planner.Messages(planner.TierMedium)
	for i := range set {
		plan := planner.Generate(planner.Answers{MotivationLevel: 5}, fixedRand(i))
		assert.Equal(t, set[i], plan.MotivationalMessage)
	}
}

func TestUnknownProblemFallsBack(t *testing.T) {
	plan := planner.Generate(planner.Answers{
		MainProblem:     "Unknown",
		PersonalGoals:   []string{},
		AvailableTime:   "Evening",
		MotivationLevel: 5,
	}, fixedRand(0))

	require.Len(t, plan.Tasks, 3)
	assert.Equal(t, firstProblem(t, "procrastination"), plan.Tasks[0])
	assert.Equal(t, planner.ReflectAndPlan, plan.Tasks[1])
	assert.Equal(t, planner.CelebrateProgress, plan.Tasks[2])
}

func TestTruncationDropsTrailingTasks(t *testing.T) {
	plan := planner.Generate(planner.Answers{
		MainProblem:     "laziness",
		PersonalGoals:   []string{"Study", "Work", "Health", "Habits"},
		AvailableTime:   "Morning",
		MotivationLevel: 1,
	}, fixedRand(0))

	require.Len(t, plan.Tasks, planner.MaxTasks)
	assert.Equal(t, firstProblem(t, "laziness"), plan.Tasks[0])
	assert.Equal(t, firstGoal(t, "study"), plan.Tasks[1])
	assert.Equal(t, firstGoal(t, "work"), plan.Tasks[2])
	assert.Equal(t, firstGoal(t, "health"), plan.Tasks[3])
	assert.NotContains(t, titles(plan.Tasks), planner.MorningMomentum.Title)
	assert.NotContains(t, titles(plan.Tasks), planner.CelebrateProgress.Title)
	assert.Contains(t, planner.Messages(planner.TierLow), plan.MotivationalMessage)
}

func TestMorningMatchIsCaseSensitive(t *testing.T) {
	lower := planner.Generate(planner.Answers{MainProblem: "focus", AvailableTime: "early morning"}, fixedRand(0))
	assert.Equal(t, []string{"Single-task focus", "Morning momentum", "Celebrate progress"}, titles(lower.Tasks))

	upper := planner.Generate(planner.Answers{MainProblem: "focus", AvailableTime: "Morning"}, fixedRand(0))
	assert.Equal(t, []string{"Single-task focus", "Reflect and plan", "Celebrate progress"}, titles(upper.Tasks))
}

func TestGoalsKeepOrderAndDuplicates(t *testing.T) {
	plan := planner.Generate(planner.Answers{
		MainProblem:   "DISCIPLINE",
		PersonalGoals: []string{"health", "Sleep", "HEALTH"},
	}, fixedRand(0))

	assert.Equal(t, []string{
		"Morning routine",
		"Physical activity",
		"Physical activity",
		"Celebrate progress",
	}, titles(plan.Tasks))
}

func TestOptionLabelsWithoutTableKeyUseDefault(t *testing.T) {
	plan := planner.Generate(planner.Answers{MainProblem: "Lack of Discipline"}, fixedRand(0))
	assert.Equal(t, firstProblem(t, planner.DefaultProblem), plan.Tasks[0])
}

func TestCatalogLookupsReturnCopies(t *testing.T) {
	tasks, _ := planner.ProblemTasks("focus")
	tasks[0].Title = "mutated"
	again, _ := planner.ProblemTasks("focus")
	assert.Equal(t, "Single-task focus", again[0].Title)
}
