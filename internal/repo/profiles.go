package repo

import (
	"context"
	"database/sql"

	"habitline/internal/domain"
)

const profileColumns = `id,username,current_streak,total_tasks_completed,last_active_date,telegram_chat_id,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.UserProfile, error) {
	var p domain.UserProfile
	var last sql.NullString
	var chat sql.NullInt64
	err := row.Scan(&p.ID, &p.Username, &p.CurrentStreak, &p.TotalTasksCompleted, &last, &chat, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.LastActiveDate = stringPtr(last)
	if chat.Valid {
		id := chat.Int64
		p.TelegramChatID = &id
	}
	return p, nil
}

func (r Repo) InsertProfile(ctx context.Context, tx *sql.Tx, p domain.UserProfile) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO user_profiles(`+profileColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Username, p.CurrentStreak, p.TotalTasksCompleted, nullableStringPtr(p.LastActiveDate),
		nullableInt64Ptr(p.TelegramChatID), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProfile(ctx context.Context, tx *sql.Tx, id string) (domain.UserProfile, error) {
	return scanProfile(r.conn(tx).QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id=?`, id))
}

// UpdateStreak writes the streak fields of a profile.
func (r Repo) UpdateStreak(ctx context.Context, tx *sql.Tx, p domain.UserProfile) error {
	return mustAffect(r.conn(tx).ExecContext(ctx, `UPDATE user_profiles SET current_streak=?, total_tasks_completed=?, last_active_date=?, updated_at=? WHERE id=?`,
		p.CurrentStreak, p.TotalTasksCompleted, nullableStringPtr(p.LastActiveDate), p.UpdatedAt, p.ID))
}

// UpdateProfileDetails writes the user-editable fields of a profile.
func (r Repo) UpdateProfileDetails(ctx context.Context, tx *sql.Tx, p domain.UserProfile) error {
	return mustAffect(r.conn(tx).ExecContext(ctx, `UPDATE user_profiles SET username=?, telegram_chat_id=?, updated_at=? WHERE id=?`,
		p.Username, nullableInt64Ptr(p.TelegramChatID), p.UpdatedAt, p.ID))
}

// ListProfiles returns all profiles, optionally only those linked to a chat.
func (r Repo) ListProfiles(ctx context.Context, withChatOnly bool) ([]domain.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles`
	if withChatOnly {
		query += ` WHERE telegram_chat_id IS NOT NULL`
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
