package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"habitline/internal/config"
	"habitline/internal/db"
	"habitline/internal/engine"
	"habitline/internal/migrate"
)

type fixedRand struct{}

func (fixedRand) IntN(int) int { return 0 }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), "server-test-secret").
		WithClock(func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) })
	e.Rand = fixedRand{}
	handler, err := New(Config{Engine: e, BasePath: "/v1"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return srv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env
}

func login(t *testing.T, srv *httptest.Server, email string) map[string]string {
	t.Helper()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/signup", map[string]any{
		"email":    email,
		"password": "correct horse",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"email":    email,
		"password": "correct horse",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if out.Token == "" || out.TokenType != "Bearer" {
		t.Fatalf("unexpected login response: %s", string(data))
	}
	return map[string]string{"Authorization": "Bearer " + out.Token}
}

func TestPublicRoutes(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/options", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("options status %d: %s", res.StatusCode, string(data))
	}
	var opts struct {
		Goals []string `json:"goals"`
	}
	_ = json.Unmarshal(data, &opts)
	if len(opts.Goals) != 4 {
		t.Fatalf("expected 4 goals, got %v", opts.Goals)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/me/dashboard", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	if env := decodeError(t, data); env.Error.Code != "unauthorized" {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me/dashboard", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d %s", res.StatusCode, string(data))
	}
}

func TestSignUpAndLoginErrors(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	login(t, srv, "ada@example.com")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/signup", map[string]any{
		"email":    "ada@example.com",
		"password": "another one",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
	if env := decodeError(t, data); env.Error.Code != "email_taken" {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"email":    "ada@example.com",
		"password": "wrong password",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
}

func TestOnboardingToggleFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	headers := login(t, srv, "ada@example.com")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/me/plan/regenerate", nil, headers)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 before onboarding, got %d %s", res.StatusCode, string(data))
	}
	if env := decodeError(t, data); env.Error.Code != "onboarding_required" {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/me/onboarding", map[string]any{
		"main_problem":     "Focus",
		"available_time":   "Evening",
		"motivation_level": 2,
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("onboarding status %d: %s", res.StatusCode, string(data))
	}
	var plan engine.PlanResult
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if len(plan.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(plan.Tasks))
	}
	if plan.Plan.MotivationalMessage != "Small steps lead to big changes. You've got this!" {
		t.Fatalf("unexpected message %q", plan.Plan.MotivationalMessage)
	}

	var last engine.ToggleResult
	for _, task := range plan.Tasks {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/me/tasks/"+task.ID+"/toggle", nil, headers)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("toggle status %d: %s", res.StatusCode, string(data))
		}
		if err := json.Unmarshal(data, &last); err != nil {
			t.Fatalf("unmarshal toggle: %v", err)
		}
	}
	if !last.AllComplete || !last.StreakRecorded {
		t.Fatalf("expected completed day with streak recorded: %+v", last)
	}
	if last.Profile == nil || last.Profile.CurrentStreak != 1 {
		t.Fatalf("expected streak 1: %+v", last.Profile)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me/dashboard", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", res.StatusCode, string(data))
	}
	var view engine.DashboardView
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("unmarshal dashboard: %v", err)
	}
	if view.CompletedCount != 3 || view.TotalCount != 3 || view.Date != "2024-03-10" {
		t.Fatalf("unexpected dashboard: %+v", view)
	}
	if view.StreakMessage != "Great start! Keep it going!" {
		t.Fatalf("unexpected streak message %q", view.StreakMessage)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me/events?type=streak.recorded", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var events EventList
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events.Items) != 1 || events.Items[0].Payload["current_streak"] != float64(1) {
		t.Fatalf("unexpected events: %s", string(data))
	}
}

func TestOnboardingValidation(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	headers := login(t, srv, "ada@example.com")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/me/onboarding", map[string]any{
		"main_problem":     "Focus",
		"motivation_level": 12,
	}, headers)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", res.StatusCode, string(data))
	}
}

func TestToggleOtherUsersTask(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	ada := login(t, srv, "ada@example.com")
	bob := login(t, srv, "bob@example.com")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/me/onboarding", map[string]any{
		"main_problem":     "laziness",
		"motivation_level": 5,
	}, ada)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("onboarding status %d: %s", res.StatusCode, string(data))
	}
	var plan engine.PlanResult
	_ = json.Unmarshal(data, &plan)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/me/tasks/"+plan.Tasks[0].ID+"/toggle", nil, bob)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
}

func TestProfileUpdateAndLogout(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	headers := login(t, srv, "ada@example.com")

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v1/me/profile", map[string]any{
		"username":         "Ada",
		"telegram_chat_id": 99,
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch profile status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me/profile", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get profile status %d: %s", res.StatusCode, string(data))
	}
	var view engine.ProfileView
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	if view.Profile == nil || view.Profile.Username != "Ada" || view.Profile.TelegramChatID == nil || *view.Profile.TelegramChatID != 99 {
		t.Fatalf("unexpected profile: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/logout", nil, headers)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me/profile", nil, headers)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d %s", res.StatusCode, string(data))
	}
}

func TestOpenAPIConcurrentFetches(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	const n = 8
	bodies := make([][]byte, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.Get(srv.URL + "/v1/openapi.json")
			if err != nil {
				t.Errorf("get openapi: %v", err)
				return
			}
			defer res.Body.Close()
			bodies[i], _ = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if !bytes.Equal(bodies[0], bodies[i]) {
			t.Fatalf("openapi document differs between requests")
		}
	}
	var doc struct {
		Components struct {
			SecuritySchemes map[string]any `json:"securitySchemes"`
		} `json:"components"`
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(bodies[0], &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	if _, ok := doc.Components.SecuritySchemes["bearerAuth"]; !ok {
		t.Fatalf("bearerAuth scheme missing")
	}
	if _, ok := doc.Paths["/v1/me/dashboard"]; !ok {
		t.Fatalf("dashboard path missing from document")
	}
}
