package events_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitline/internal/db"
	"habitline/internal/events"
	"habitline/internal/migrate"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return conn
}

func TestAppendCommitsWithTransaction(t *testing.T) {
	conn := openDB(t)
	ctx := context.Background()
	w := events.Writer{DB: conn, Now: func() time.Time { return time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC) }}

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, events.StreakRecorded, "u1", "profile", "u1", events.EventPayload{"streak": 3}))
	require.NoError(t, tx.Commit())

	var ts, typ, payload string
	require.NoError(t, conn.QueryRow(`SELECT ts, type, payload_json FROM events`).Scan(&ts, &typ, &payload))
	assert.Equal(t, "2024-03-10T07:30:00Z", ts)
	assert.Equal(t, events.StreakRecorded, typ)
	assert.JSONEq(t, `{"streak":3}`, payload)
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	conn := openDB(t)
	ctx := context.Background()
	w := events.Writer{DB: conn}

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, events.TaskToggled, "u1", "task", "t1", nil))
	require.NoError(t, tx.Rollback())

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n))
	assert.Zero(t, n)
}

func TestAppendRejectsUnknownTypeAndMissingTx(t *testing.T) {
	conn := openDB(t)
	ctx := context.Background()
	w := events.Writer{DB: conn}

	assert.Error(t, w.Append(ctx, nil, events.TaskToggled, "u1", "task", "t1", nil))

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	assert.Error(t, w.Append(ctx, tx, "task.deleted", "u1", "task", "t1", nil))
	assert.True(t, events.Known(events.PlanGenerated))
	assert.False(t, events.Known(""))
}
