package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"habitline/internal/config"
	"habitline/internal/domain"
	"habitline/internal/engine/auth"
	"habitline/internal/events"
	"habitline/internal/logging"
	"habitline/internal/planner"
	"habitline/internal/repo"
	"habitline/internal/streak"
)

var ErrNoOnboarding = errors.New("no onboarding answers on file")

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Auth     auth.Service
	Config   *config.Config
	Now      func() time.Time
	Rand     planner.Rand
	Location *time.Location
	Log      logging.Logger
}

func New(db *sql.DB, cfg *config.Config, jwtSecret string) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	ttl, err := cfg.TokenTTL()
	if err != nil {
		ttl = 0
	}
	r := repo.Repo{DB: db}
	w := events.Writer{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: w,
		Auth: auth.Service{
			Repo:   r,
			Events: w,
			Secret: []byte(jwtSecret),
			TTL:    ttl,
		},
		Config:   cfg,
		Now:      time.Now,
		Rand:     planner.DefaultRand(),
		Location: loc,
		Log:      logging.Nop(),
	}
}

// WithClock points every time source of the engine at now.
func (e Engine) WithClock(now func() time.Time) Engine {
	e.Now = now
	e.Events.Now = now
	e.Auth.Now = now
	e.Auth.Events.Now = now
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() logging.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logging.Nop()
}

// Today is the calendar day the engine currently operates on.
func (e Engine) Today() string {
	return streak.Today(e.now(), e.Location)
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// OnboardingInput is one questionnaire submission.
type OnboardingInput struct {
	MainProblem     string   `json:"main_problem" validate:"required,max=100"`
	DailyRoutine    string   `json:"daily_routine" validate:"max=100"`
	AvailableTime   string   `json:"available_time" validate:"max=100"`
	PersonalGoals   []string `json:"personal_goals" validate:"max=20,dive,required,max=100"`
	MotivationLevel int      `json:"motivation_level" validate:"min=1,max=10"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fe.Field()
		if i := strings.Index(fe.Namespace(), "."); i >= 0 {
			field = fe.Namespace()[i+1:]
		}
		return ValidationError{Field: field, Message: describe(fe)}
	}
	return err
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.String {
			return "must have at most " + fe.Param() + " items or characters"
		}
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

func (in OnboardingInput) answers() planner.Answers {
	return planner.Answers{
		MainProblem:     in.MainProblem,
		DailyRoutine:    in.DailyRoutine,
		AvailableTime:   in.AvailableTime,
		PersonalGoals:   in.PersonalGoals,
		MotivationLevel: in.MotivationLevel,
	}
}

func answersOf(o domain.OnboardingResponse) planner.Answers {
	return planner.Answers{
		MainProblem:     o.MainProblem,
		DailyRoutine:    o.DailyRoutine,
		AvailableTime:   o.AvailableTime,
		PersonalGoals:   o.PersonalGoals,
		MotivationLevel: o.MotivationLevel,
	}
}

// PlanResult is the outcome of generating a plan.
type PlanResult struct {
	Onboarding domain.OnboardingResponse `json:"onboarding"`
	Plan       domain.ActionPlan         `json:"plan"`
	Tasks      []domain.Task             `json:"tasks"`
}

func (e Engine) requireUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ValidationError{Field: "user_id", Message: "is required"}
	}
	_, err := e.Repo.GetUser(ctx, userID)
	return err
}

func (e Engine) insertOnboarding(ctx context.Context, tx *sql.Tx, userID string, in OnboardingInput) (domain.OnboardingResponse, error) {
	goals := append([]string{}, in.PersonalGoals...)
	o := domain.OnboardingResponse{
		ID:              uuid.NewString(),
		UserID:          userID,
		MainProblem:     in.MainProblem,
		DailyRoutine:    in.DailyRoutine,
		AvailableTime:   in.AvailableTime,
		PersonalGoals:   goals,
		MotivationLevel: in.MotivationLevel,
		CreatedAt:       e.stamp(),
	}
	if err := e.Repo.InsertOnboarding(ctx, tx, o); err != nil {
		return domain.OnboardingResponse{}, fmt.Errorf("insert onboarding: %w", err)
	}
	return o, nil
}

// installPlan replaces the active plan and today's tasks with a freshly
// generated plan.
func (e Engine) installPlan(ctx context.Context, tx *sql.Tx, userID string, a planner.Answers) (domain.ActionPlan, []domain.Task, error) {
	generated := planner.Generate(a, e.Rand)
	now := e.stamp()
	today := e.Today()

	if err := e.Repo.DeactivatePlans(ctx, tx, userID); err != nil {
		return domain.ActionPlan{}, nil, fmt.Errorf("deactivate plans: %w", err)
	}
	replaced, err := e.Repo.DeleteTasksForDay(ctx, tx, userID, today)
	if err != nil {
		return domain.ActionPlan{}, nil, fmt.Errorf("clear tasks: %w", err)
	}
	plan := domain.ActionPlan{
		ID:                  uuid.NewString(),
		UserID:              userID,
		MotivationalMessage: generated.MotivationalMessage,
		IsActive:            true,
		CreatedAt:           now,
	}
	tasks := make([]domain.Task, 0, len(generated.Tasks))
	for i, t := range generated.Tasks {
		plan.Tasks = append(plan.Tasks, domain.PlanTask{Title: t.Title, Description: t.Description})
		planID := plan.ID
		tasks = append(tasks, domain.Task{
			ID:          uuid.NewString(),
			UserID:      userID,
			PlanID:      &planID,
			Title:       t.Title,
			Description: t.Description,
			TaskDate:    today,
			Position:    i,
			CreatedAt:   now,
		})
	}
	if err := e.Repo.InsertPlan(ctx, tx, plan); err != nil {
		return domain.ActionPlan{}, nil, fmt.Errorf("insert plan: %w", err)
	}
	if err := e.Repo.InsertTasks(ctx, tx, tasks); err != nil {
		return domain.ActionPlan{}, nil, fmt.Errorf("insert tasks: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.PlanGenerated, userID, "plan", plan.ID, events.EventPayload{
		"task_date":      today,
		"task_count":     len(tasks),
		"replaced_tasks": replaced,
	}); err != nil {
		return domain.ActionPlan{}, nil, err
	}
	return plan, tasks, nil
}

// SubmitOnboarding stores the answers, replaces the active plan and
// materializes today's tasks. Either every write lands or none does.
func (e Engine) SubmitOnboarding(ctx context.Context, userID string, in OnboardingInput) (PlanResult, error) {
	if err := validateInput(in); err != nil {
		return PlanResult{}, err
	}
	if err := e.requireUser(ctx, userID); err != nil {
		return PlanResult{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return PlanResult{}, err
	}
	defer tx.Rollback()

	o, err := e.insertOnboarding(ctx, tx, userID, in)
	if err != nil {
		return PlanResult{}, err
	}
	if err := e.Events.Append(ctx, tx, events.OnboardingSubmitted, userID, "onboarding", o.ID, events.EventPayload{
		"main_problem":     o.MainProblem,
		"motivation_level": o.MotivationLevel,
	}); err != nil {
		return PlanResult{}, err
	}
	plan, tasks, err := e.installPlan(ctx, tx, userID, in.answers())
	if err != nil {
		return PlanResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return PlanResult{}, err
	}
	e.log().Infow("onboarding submitted", "user_id", userID, "plan_id", plan.ID, "tasks", len(tasks))
	return PlanResult{Onboarding: o, Plan: plan, Tasks: tasks}, nil
}

// SavePreferences stores a new answer set without touching the plan.
func (e Engine) SavePreferences(ctx context.Context, userID string, in OnboardingInput) (domain.OnboardingResponse, error) {
	if err := validateInput(in); err != nil {
		return domain.OnboardingResponse{}, err
	}
	if err := e.requireUser(ctx, userID); err != nil {
		return domain.OnboardingResponse{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.OnboardingResponse{}, err
	}
	defer tx.Rollback()

	o, err := e.insertOnboarding(ctx, tx, userID, in)
	if err != nil {
		return domain.OnboardingResponse{}, err
	}
	if err := e.Events.Append(ctx, tx, events.PreferencesSaved, userID, "onboarding", o.ID, nil); err != nil {
		return domain.OnboardingResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.OnboardingResponse{}, err
	}
	return o, nil
}

// RegeneratePlan rebuilds the plan from the most recent answers.
func (e Engine) RegeneratePlan(ctx context.Context, userID string) (PlanResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return PlanResult{}, err
	}
	defer tx.Rollback()

	o, err := e.Repo.LatestOnboarding(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return PlanResult{}, ErrNoOnboarding
		}
		return PlanResult{}, err
	}
	plan, tasks, err := e.installPlan(ctx, tx, userID, answersOf(o))
	if err != nil {
		return PlanResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return PlanResult{}, err
	}
	e.log().Infow("plan regenerated", "user_id", userID, "plan_id", plan.ID)
	return PlanResult{Onboarding: o, Plan: plan, Tasks: tasks}, nil
}

func stateOf(p domain.UserProfile) streak.State {
	s := streak.State{CurrentStreak: p.CurrentStreak, TotalTasksCompleted: p.TotalTasksCompleted}
	if p.LastActiveDate != nil {
		s.LastActiveDate = *p.LastActiveDate
	}
	return s
}

func withState(p domain.UserProfile, s streak.State) domain.UserProfile {
	p.CurrentStreak = s.CurrentStreak
	p.TotalTasksCompleted = s.TotalTasksCompleted
	if s.LastActiveDate != "" {
		last := s.LastActiveDate
		p.LastActiveDate = &last
	} else {
		p.LastActiveDate = nil
	}
	return p
}

// rollover applies the day rollover to a loaded profile and persists it
// when the streak was reset.
func (e Engine) rollover(ctx context.Context, tx *sql.Tx, p domain.UserProfile, today string) (domain.UserProfile, bool, error) {
	before := stateOf(p)
	after := streak.Rollover(before, today)
	if after == before {
		return p, false, nil
	}
	p = withState(p, after)
	p.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateStreak(ctx, tx, p); err != nil {
		return p, false, fmt.Errorf("reset streak: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.StreakReset, p.ID, "profile", p.ID, events.EventPayload{
		"previous_streak":  before.CurrentStreak,
		"last_active_date": before.LastActiveDate,
		"today":            today,
	}); err != nil {
		return p, false, err
	}
	return p, true, nil
}

func completionFlags(tasks []domain.Task) []bool {
	flags := make([]bool, len(tasks))
	for i, t := range tasks {
		flags[i] = t.Completed
	}
	return flags
}

// DashboardView is everything the daily view renders.
type DashboardView struct {
	Date                string              `json:"date" format:"date"`
	Tasks               []domain.Task       `json:"tasks"`
	CompletedCount      int                 `json:"completed_count"`
	TotalCount          int                 `json:"total_count"`
	AllComplete         bool                `json:"all_complete"`
	Profile             *domain.UserProfile `json:"profile,omitempty"`
	StreakMessage       string              `json:"streak_message"`
	Plan                *domain.ActionPlan  `json:"plan,omitempty"`
	MotivationalMessage string              `json:"motivational_message,omitempty"`
}

// Dashboard loads today's tasks and the streak after rollover.
func (e Engine) Dashboard(ctx context.Context, userID string) (DashboardView, error) {
	today := e.Today()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return DashboardView{}, err
	}
	defer tx.Rollback()

	view := DashboardView{Date: today}
	profile, err := e.Repo.GetProfile(ctx, tx, userID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return DashboardView{}, err
	default:
		profile, _, err = e.rollover(ctx, tx, profile, today)
		if err != nil {
			return DashboardView{}, err
		}
		view.Profile = &profile
	}
	tasks, err := e.Repo.ListTasksForDay(ctx, tx, userID, today)
	if err != nil {
		return DashboardView{}, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	view.Tasks = tasks
	view.TotalCount = len(tasks)
	for _, t := range tasks {
		if t.Completed {
			view.CompletedCount++
		}
	}
	view.AllComplete = streak.AllComplete(completionFlags(tasks))
	plan, err := e.Repo.ActivePlan(ctx, tx, userID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return DashboardView{}, err
	default:
		view.Plan = &plan
		view.MotivationalMessage = plan.MotivationalMessage
	}
	current := 0
	if view.Profile != nil {
		current = view.Profile.CurrentStreak
	}
	view.StreakMessage = streak.Message(current)
	if err := tx.Commit(); err != nil {
		return DashboardView{}, err
	}
	return view, nil
}

// ToggleResult is the outcome of a task toggle.
type ToggleResult struct {
	Task           domain.Task         `json:"task"`
	AllComplete    bool                `json:"all_complete"`
	StreakRecorded bool                `json:"streak_recorded"`
	Profile        *domain.UserProfile `json:"profile,omitempty"`
	StreakMessage  string              `json:"streak_message"`
}

// ToggleTask flips one of today's tasks and records the streak when the
// day becomes complete for the first time.
func (e Engine) ToggleTask(ctx context.Context, userID, taskID string) (ToggleResult, error) {
	today := e.Today()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ToggleResult{}, err
	}
	defer tx.Rollback()

	task, err := e.Repo.GetTask(ctx, tx, userID, taskID)
	if err != nil {
		return ToggleResult{}, err
	}
	if task.TaskDate != today {
		return ToggleResult{}, ValidationError{Field: "task_id", Message: fmt.Sprintf("task belongs to %s, only tasks for %s can be toggled", task.TaskDate, today)}
	}
	dayTasks, err := e.Repo.ListTasksForDay(ctx, tx, userID, today)
	if err != nil {
		return ToggleResult{}, err
	}
	flags := completionFlags(dayTasks)
	before := streak.AllComplete(flags)
	for i, t := range dayTasks {
		if t.ID == task.ID {
			flags[i] = !t.Completed
		}
	}
	after := streak.AllComplete(flags)

	task.Completed = !task.Completed
	task.CompletedAt = nil
	if task.Completed {
		at := e.stamp()
		task.CompletedAt = &at
	}
	if err := e.Repo.SetTaskCompletion(ctx, tx, task.ID, task.Completed, task.CompletedAt); err != nil {
		return ToggleResult{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TaskToggled, userID, "task", task.ID, events.EventPayload{
		"completed": task.Completed,
		"task_date": task.TaskDate,
	}); err != nil {
		return ToggleResult{}, err
	}

	res := ToggleResult{Task: task, AllComplete: after}
	profile, err := e.Repo.GetProfile(ctx, tx, userID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		e.log().Warnw("toggle without profile, streak not tracked", "user_id", userID)
	case err != nil:
		return ToggleResult{}, err
	default:
		profile, _, err = e.rollover(ctx, tx, profile, today)
		if err != nil {
			return ToggleResult{}, err
		}
		state := stateOf(profile)
		if streak.ShouldRecord(before, after, state, today) {
			state = streak.OnAllTasksCompleted(state, today)
			profile = withState(profile, state)
			profile.UpdatedAt = e.stamp()
			if err := e.Repo.UpdateStreak(ctx, tx, profile); err != nil {
				return ToggleResult{}, fmt.Errorf("record streak: %w", err)
			}
			if err := e.Events.Append(ctx, tx, events.StreakRecorded, userID, "profile", profile.ID, events.EventPayload{
				"current_streak":        state.CurrentStreak,
				"total_tasks_completed": state.TotalTasksCompleted,
				"day":                   today,
			}); err != nil {
				return ToggleResult{}, err
			}
			res.StreakRecorded = true
		}
		res.Profile = &profile
	}
	current := 0
	if res.Profile != nil {
		current = res.Profile.CurrentStreak
	}
	res.StreakMessage = streak.Message(current)
	if err := tx.Commit(); err != nil {
		return ToggleResult{}, err
	}
	if res.StreakRecorded {
		e.log().Infow("streak recorded", "user_id", userID, "streak", current)
	}
	return res, nil
}

// ProfileView is the profile page: stats plus the latest answers.
type ProfileView struct {
	User          domain.User                `json:"user"`
	Profile       *domain.UserProfile        `json:"profile,omitempty"`
	Onboarding    *domain.OnboardingResponse `json:"onboarding,omitempty"`
	StreakMessage string                     `json:"streak_message"`
	PlansCreated  int                        `json:"plans_created"`
}

func (e Engine) Profile(ctx context.Context, userID string) (ProfileView, error) {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return ProfileView{}, err
	}
	view := ProfileView{User: u}
	p, err := e.Repo.GetProfile(ctx, nil, userID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return ProfileView{}, err
	default:
		view.Profile = &p
	}
	o, err := e.Repo.LatestOnboarding(ctx, nil, userID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return ProfileView{}, err
	default:
		view.Onboarding = &o
	}
	total, _, err := e.Repo.CountPlans(ctx, userID)
	if err != nil {
		return ProfileView{}, err
	}
	view.PlansCreated = total
	current := 0
	if view.Profile != nil {
		current = view.Profile.CurrentStreak
	}
	view.StreakMessage = streak.Message(current)
	return view, nil
}

// ProfileUpdateOptions lists the editable profile fields; nil leaves a
// field unchanged.
type ProfileUpdateOptions struct {
	Username       *string
	TelegramChatID *int64
	ClearTelegram  bool
}

func (e Engine) UpdateProfile(ctx context.Context, userID string, opts ProfileUpdateOptions) (domain.UserProfile, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserProfile{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProfile(ctx, tx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	changed := []string{}
	if opts.Username != nil {
		name := strings.TrimSpace(*opts.Username)
		if name == "" {
			return domain.UserProfile{}, ValidationError{Field: "username", Message: "is required"}
		}
		if utf8.RuneCountInString(name) > 64 {
			return domain.UserProfile{}, ValidationError{Field: "username", Message: "must have at most 64 characters"}
		}
		p.Username = name
		changed = append(changed, "username")
	}
	if opts.ClearTelegram {
		p.TelegramChatID = nil
		changed = append(changed, "telegram_chat_id")
	} else if opts.TelegramChatID != nil {
		id := *opts.TelegramChatID
		p.TelegramChatID = &id
		changed = append(changed, "telegram_chat_id")
	}
	if len(changed) == 0 {
		return p, nil
	}
	p.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateProfileDetails(ctx, tx, p); err != nil {
		return domain.UserProfile{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ProfileUpdated, userID, "profile", p.ID, events.EventPayload{"fields": changed}); err != nil {
		return domain.UserProfile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UserProfile{}, err
	}
	return p, nil
}

// RolloverAll runs the day rollover for every profile and returns how many
// streaks were reset.
func (e Engine) RolloverAll(ctx context.Context) (int, error) {
	profiles, err := e.Repo.ListProfiles(ctx, false)
	if err != nil {
		return 0, err
	}
	today := e.Today()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	reset := 0
	for _, p := range profiles {
		_, changed, err := e.rollover(ctx, tx, p, today)
		if err != nil {
			return 0, fmt.Errorf("rollover %s: %w", p.ID, err)
		}
		if changed {
			reset++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	e.log().Infow("rollover complete", "day", today, "profiles", len(profiles), "reset", reset)
	return reset, nil
}

// RecentEvents lists recent activity for a user, newest first.
func (e Engine) RecentEvents(ctx context.Context, userID, evtType string, limit int) ([]domain.Event, error) {
	if evtType != "" && !events.Known(evtType) {
		return nil, ValidationError{Field: "type", Message: "unknown event type " + evtType}
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return e.Repo.LatestEvents(ctx, userID, evtType, limit)
}
