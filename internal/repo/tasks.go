package repo

import (
	"context"
	"database/sql"

	"habitline/internal/domain"
)

const taskColumns = `id,user_id,plan_id,title,description,task_date,position,completed,completed_at,created_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var planID, completedAt sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &planID, &t.Title, &t.Description, &t.TaskDate, &t.Position, &t.Completed, &completedAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.PlanID = stringPtr(planID)
	t.CompletedAt = stringPtr(completedAt)
	return t, nil
}

func (r Repo) InsertTasks(ctx context.Context, tx *sql.Tx, tasks []domain.Task) error {
	q := r.conn(tx)
	for _, t := range tasks {
		if _, err := q.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			t.ID, t.UserID, nullableStringPtr(t.PlanID), t.Title, t.Description, t.TaskDate, t.Position,
			t.Completed, nullableStringPtr(t.CompletedAt), t.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTasksForDay removes a user's tasks for one calendar day.
func (r Repo) DeleteTasksForDay(ctx context.Context, tx *sql.Tx, userID, day string) (int64, error) {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM tasks WHERE user_id=? AND task_date=?`, userID, day)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListTasksForDay returns a user's tasks for a day in plan order.
func (r Repo) ListTasksForDay(ctx context.Context, tx *sql.Tx, userID, day string) ([]domain.Task, error) {
	rows, err := r.conn(tx).QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id=? AND task_date=? ORDER BY position, created_at, id`, userID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// GetTask loads a task owned by userID; other users' tasks are not found.
func (r Repo) GetTask(ctx context.Context, tx *sql.Tx, userID, taskID string) (domain.Task, error) {
	return scanTask(r.conn(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND user_id=?`, taskID, userID))
}

func (r Repo) SetTaskCompletion(ctx context.Context, tx *sql.Tx, taskID string, completed bool, completedAt *string) error {
	return mustAffect(r.conn(tx).ExecContext(ctx, `UPDATE tasks SET completed=?, completed_at=? WHERE id=?`,
		completed, nullableStringPtr(completedAt), taskID))
}
