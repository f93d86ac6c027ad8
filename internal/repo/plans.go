package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"habitline/internal/domain"
)

type planData struct {
	Tasks []domain.PlanTask `json:"tasks"`
}

// DeactivatePlans clears the active flag on every plan of a user.
func (r Repo) DeactivatePlans(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := r.conn(tx).ExecContext(ctx, `UPDATE action_plans SET is_active=0 WHERE user_id=? AND is_active=1`, userID)
	return err
}

func (r Repo) InsertPlan(ctx context.Context, tx *sql.Tx, p domain.ActionPlan) error {
	data, err := json.Marshal(planData{Tasks: p.Tasks})
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	_, err = r.conn(tx).ExecContext(ctx, `INSERT INTO action_plans(id,user_id,plan_json,motivational_message,is_active,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.UserID, string(data), p.MotivationalMessage, p.IsActive, p.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("active plan for %s: %w", p.UserID, ErrConflict)
	}
	return err
}

func (r Repo) ActivePlan(ctx context.Context, tx *sql.Tx, userID string) (domain.ActionPlan, error) {
	var p domain.ActionPlan
	var data string
	err := r.conn(tx).QueryRowContext(ctx, `SELECT id,user_id,plan_json,motivational_message,is_active,created_at
FROM action_plans WHERE user_id=? AND is_active=1 ORDER BY created_at DESC LIMIT 1`, userID).
		Scan(&p.ID, &p.UserID, &data, &p.MotivationalMessage, &p.IsActive, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	var decoded planData
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		return p, fmt.Errorf("decode plan: %w", err)
	}
	p.Tasks = decoded.Tasks
	return p, nil
}

func (r Repo) CountPlans(ctx context.Context, userID string) (total, active int, err error) {
	err = r.DB.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(is_active),0) FROM action_plans WHERE user_id=?`, userID).Scan(&total, &active)
	return total, active, err
}
