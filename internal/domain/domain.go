package domain

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Session struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	ExpiresAt string  `json:"expires_at" format:"date-time"`
	RevokedAt *string `json:"revoked_at,omitempty" format:"date-time"`
}

type UserProfile struct {
	ID                  string  `json:"id"`
	Username            string  `json:"username"`
	CurrentStreak       int     `json:"current_streak"`
	TotalTasksCompleted int     `json:"total_tasks_completed"`
	LastActiveDate      *string `json:"last_active_date,omitempty" format:"date"`
	TelegramChatID      *int64  `json:"telegram_chat_id,omitempty"`
	CreatedAt           string  `json:"created_at" format:"date-time"`
	UpdatedAt           string  `json:"updated_at" format:"date-time"`
}

// OnboardingResponse is one immutable questionnaire submission.
type OnboardingResponse struct {
	ID              string   `json:"id"`
	UserID          string   `json:"user_id"`
	MainProblem     string   `json:"main_problem"`
	DailyRoutine    string   `json:"daily_routine"`
	AvailableTime   string   `json:"available_time"`
	PersonalGoals   []string `json:"personal_goals"`
	MotivationLevel int      `json:"motivation_level" minimum:"1" maximum:"10"`
	CreatedAt       string   `json:"created_at" format:"date-time"`
}

type PlanTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ActionPlan struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	Tasks               []PlanTask `json:"tasks"`
	MotivationalMessage string     `json:"motivational_message"`
	IsActive            bool       `json:"is_active"`
	CreatedAt           string     `json:"created_at" format:"date-time"`
}

// Task is a plan task materialized for one user and one calendar day.
type Task struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	PlanID      *string `json:"plan_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	TaskDate    string  `json:"task_date" format:"date"`
	Position    int     `json:"position"`
	Completed   bool    `json:"completed"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
