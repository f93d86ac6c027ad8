package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitline/internal/app"
	"habitline/internal/engine"
)

func onboardedWorkspace(t *testing.T, email string) (*app.Workspace, string, []string) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	ws, err := app.Open(ctx, dir, app.Options{JWTSecret: "cli-test-secret", LogLevel: "error"})
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	u, err := ws.Engine.Auth.SignUp(ctx, email, "long enough", "")
	require.NoError(t, err)
	res, err := ws.Engine.SubmitOnboarding(ctx, u.ID, engine.OnboardingInput{
		MainProblem:     "procrastination",
		AvailableTime:   "Evening",
		PersonalGoals:   []string{"Work"},
		MotivationLevel: 5,
	})
	require.NoError(t, err)
	ids := make([]string, len(res.Tasks))
	for i, task := range res.Tasks {
		ids[i] = task.ID
	}
	return ws, u.ID, ids
}

func TestResolveTaskRef(t *testing.T) {
	ws, uid, ids := onboardedWorkspace(t, "cli@example.com")
	require.Len(t, ids, 4)

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "first position", ref: "1", want: ids[0]},
		{name: "last position", ref: "4", want: ids[3]},
		{name: "task id passes through", ref: ids[2], want: ids[2]},
		{name: "unknown id passes through", ref: "not-a-task", want: "not-a-task"},
		{name: "zero", ref: "0", wantErr: true},
		{name: "past the end", ref: "5", wantErr: true},
		{name: "negative", ref: "-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTaskRef(context.Background(), ws.Engine, uid, tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func captureStdout(t *testing.T, fn func() error) []byte {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	runErr := fn()
	os.Stdout = orig
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, runErr)
	return out
}

func TestTodayJSONOutput(t *testing.T) {
	ws, _, ids := onboardedWorkspace(t, "json@example.com")
	t.Cleanup(viper.Reset)
	viper.Set("workspace", ws.Dir)
	viper.Set("user", "json@example.com")
	viper.Set("json", true)
	viper.Set("jwt-secret", "cli-test-secret")
	viper.Set("log-level", "error")

	cmd := todayCmd()
	cmd.SetContext(context.Background())
	out := captureStdout(t, func() error { return cmd.RunE(cmd, nil) })

	var view engine.DashboardView
	require.NoError(t, json.Unmarshal(out, &view))
	require.Len(t, view.Tasks, len(ids))
	assert.Equal(t, ids[0], view.Tasks[0].ID)
	assert.Equal(t, 0, view.CompletedCount)
	assert.False(t, view.AllComplete)
}
