package planner

// Task is a catalog entry: a title and what to do.
type Task struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type MotivationTier string

const (
	TierLow    MotivationTier = "low"
	TierMedium MotivationTier = "medium"
	TierHigh   MotivationTier = "high"
)

const DefaultProblem = "procrastination"

var motivationalMessages = map[MotivationTier][]string{
	TierLow: {
		"Small steps lead to big changes. You've got this!",
		"Progress, not perfection. Let's start simple today.",
		"Every journey begins with a single step. Take yours now.",
	},
	TierMedium: {
		"You're building momentum! Keep the energy flowing.",
		"Consistency is key. You're doing great!",
		"Your dedication is inspiring. Let's make today count!",
	},
	TierHigh: {
		"Your determination is unstoppable! Let's achieve greatness today.",
		"Channel that energy into action. Amazing things await!",
		"You're on fire! Let's turn that motivation into results.",
	},
}

var problemTasks = map[string][]Task{
	"laziness": {
		{Title: "Start with 5 minutes", Description: "Do your most important task for just 5 minutes"},
		{Title: "Physical movement", Description: "10 jumping jacks or a quick walk to energize"},
		{Title: "Quick win", Description: "Complete one small task you've been avoiding"},
	},
	"procrastination": {
		{Title: "Break it down", Description: "Divide your biggest task into 3 smaller steps"},
		{Title: "Time block", Description: "Schedule 25 minutes of focused work (Pomodoro)"},
		{Title: "Remove distractions", Description: "Put phone away and close unnecessary tabs"},
	},
	"discipline": {
		{Title: "Morning routine", Description: "Follow your planned morning sequence"},
		{Title: "Track progress", Description: "Log what you accomplished today"},
		{Title: "Evening review", Description: "Reflect on wins and tomorrow's priorities"},
	},
	"focus": {
		{Title: "Single-task focus", Description: "Work on ONE thing at a time for 30 minutes"},
		{Title: "Environment setup", Description: "Create a distraction-free workspace"},
		{Title: "Mindfulness break", Description: "5 minutes of deep breathing or meditation"},
	},
}

var goalTasks = map[string][]Task{
	"study": {
		{Title: "Study session", Description: "30 minutes of focused learning"},
		{Title: "Review notes", Description: "Go through today's key concepts"},
		{Title: "Practice problems", Description: "Complete 3 practice exercises"},
	},
	"work": {
		{Title: "Priority task", Description: "Complete your most important work task"},
		{Title: "Email management", Description: "Respond to urgent messages"},
		{Title: "Plan tomorrow", Description: "List top 3 priorities for tomorrow"},
	},
	"health": {
		{Title: "Physical activity", Description: "20 minutes of exercise or movement"},
		{Title: "Healthy meal", Description: "Prepare or eat a nutritious meal"},
		{Title: "Hydration check", Description: "Drink 2 glasses of water"},
	},
	"habits": {
		{Title: "New habit practice", Description: "Spend 10 minutes on your new habit"},
		{Title: "Habit tracking", Description: "Mark off today's habit completions"},
		{Title: "Reflect on progress", Description: "Note how you feel about your habits"},
	},
}

var (
	MorningMomentum   = Task{Title: "Morning momentum", Description: "Complete your most challenging task first thing"}
	ReflectAndPlan    = Task{Title: "Reflect and plan", Description: "Spend 5 minutes reviewing your goals"}
	CelebrateProgress = Task{Title: "Celebrate progress", Description: "Acknowledge what you accomplished today"}
)

// ProblemTasks returns a copy of the task list for a problem category and
// whether the category is known. Lookup is case-insensitive.
func ProblemTasks(category string) ([]Task, bool) {
	tasks, ok := problemTasks[normalize(category)]
	return append([]Task(nil), tasks...), ok
}

// GoalTasks is the goal-table counterpart of ProblemTasks.
func GoalTasks(category string) ([]Task, bool) {
	tasks, ok := goalTasks[normalize(category)]
	return append([]Task(nil), tasks...), ok
}

// Messages returns the fixed message set for a tier.
func Messages(tier MotivationTier) []string {
	return append([]string(nil), motivationalMessages[tier]...)
}

// OnboardingOptions are the labels offered to users by the questionnaire.
type OnboardingOptions struct {
	Problems      []string `json:"problems"`
	Routines      []string `json:"routines"`
	TimeSlots     []string `json:"time_slots"`
	Goals         []string `json:"goals"`
	MinMotivation int      `json:"min_motivation"`
	MaxMotivation int      `json:"max_motivation"`
}

// Options returns the questionnaire labels. "Lack of Discipline" and
// "Focus Issues" are not table keys and resolve to the default problem list.
func Options() OnboardingOptions {
	return OnboardingOptions{
		Problems:      []string{"Laziness", "Procrastination", "Lack of Discipline", "Focus Issues"},
		Routines:      []string{"Morning person", "Night owl", "Flexible schedule", "Fixed work hours"},
		TimeSlots:     []string{"Morning", "Afternoon", "Evening", "Night"},
		Goals:         []string{"Study", "Work", "Health", "Habits"},
		MinMotivation: MinMotivation,
		MaxMotivation: MaxMotivation,
	}
}
