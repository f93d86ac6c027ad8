// Package planner turns onboarding answers into a daily action plan.
package planner

import (
	"math/rand/v2"
	"strings"
)

const (
	MinMotivation = 1
	MaxMotivation = 10
	MaxTasks      = 5
	minTasks      = 3
)

// Answers is the subset of an onboarding submission the generator reads.
type Answers struct {
	MainProblem     string
	DailyRoutine    string
	AvailableTime   string
	PersonalGoals   []string
	MotivationLevel int
}

type Plan struct {
	Tasks               []Task `json:"tasks"`
	MotivationalMessage string `json:"motivational_message"`
}

// Rand is the randomness used to pick a motivational message.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand returns a Rand backed by the goroutine-safe global source.
func DefaultRand() Rand { return globalRand{} }

// Generate builds the plan for a set of answers. Unknown categories fall
// back silently; the result never has more than MaxTasks entries, which can
// drop the closing CelebrateProgress task.
func Generate(a Answers, rng Rand) Plan {
	if rng == nil {
		rng = DefaultRand()
	}
	var tasks []Task

	problem, ok := problemTasks[normalize(a.MainProblem)]
	if !ok {
		problem = problemTasks[DefaultProblem]
	}
	tasks = append(tasks, problem[0])

	for _, goal := range a.PersonalGoals {
		if list, ok := goalTasks[normalize(goal)]; ok {
			tasks = append(tasks, list[0])
		}
	}

	if strings.Contains(a.AvailableTime, "morning") {
		tasks = append(tasks, MorningMomentum)
	}
	if len(tasks) < minTasks {
		tasks = append(tasks, ReflectAndPlan)
	}
	tasks = append(tasks, CelebrateProgress)

	if len(tasks) > MaxTasks {
		tasks = tasks[:MaxTasks]
	}

	messages := motivationalMessages[Tier(a.MotivationLevel)]
	return Plan{
		Tasks:               tasks,
		MotivationalMessage: messages[rng.IntN(len(messages))],
	}
}

// Tier classifies a motivation level: <=3 low, 4-7 medium, >=8 high.
func Tier(level int) MotivationTier {
	switch {
	case level <= 3:
		return TierLow
	case level <= 7:
		return TierMedium
	default:
		return TierHigh
	}
}

func normalize(s string) string {
	return strings.ToLower(s)
}
