package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"habitline/internal/domain"
)

func (r Repo) InsertOnboarding(ctx context.Context, tx *sql.Tx, o domain.OnboardingResponse) error {
	goals := o.PersonalGoals
	if goals == nil {
		goals = []string{}
	}
	goalsJSON, err := json.Marshal(goals)
	if err != nil {
		return fmt.Errorf("marshal goals: %w", err)
	}
	_, err = r.conn(tx).ExecContext(ctx, `INSERT INTO onboarding_responses(id,user_id,main_problem,daily_routine,available_time,personal_goals_json,motivation_level,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		o.ID, o.UserID, o.MainProblem, o.DailyRoutine, o.AvailableTime, string(goalsJSON), o.MotivationLevel, o.CreatedAt)
	return err
}

// LatestOnboarding returns the newest submission for a user.
func (r Repo) LatestOnboarding(ctx context.Context, tx *sql.Tx, userID string) (domain.OnboardingResponse, error) {
	var o domain.OnboardingResponse
	var goalsJSON string
	err := r.conn(tx).QueryRowContext(ctx, `SELECT id,user_id,main_problem,daily_routine,available_time,personal_goals_json,motivation_level,created_at
FROM onboarding_responses WHERE user_id=? ORDER BY created_at DESC, rowid DESC LIMIT 1`, userID).
		Scan(&o.ID, &o.UserID, &o.MainProblem, &o.DailyRoutine, &o.AvailableTime, &goalsJSON, &o.MotivationLevel, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal([]byte(goalsJSON), &o.PersonalGoals); err != nil {
		return o, fmt.Errorf("decode goals: %w", err)
	}
	return o, nil
}
