package habitlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Habitline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// User represents an account.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// Session is returned by SignIn.
type Session struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	ExpiresAt string `json:"expires_at"`
}

// Profile represents streak stats.
type Profile struct {
	ID                  string  `json:"id"`
	Username            string  `json:"username"`
	CurrentStreak       int     `json:"current_streak"`
	TotalTasksCompleted int     `json:"total_tasks_completed"`
	LastActiveDate      *string `json:"last_active_date,omitempty"`
	TelegramChatID      *int64  `json:"telegram_chat_id,omitempty"`
}

// Task represents one of the day's tasks.
type Task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	TaskDate    string  `json:"task_date"`
	Position    int     `json:"position"`
	Completed   bool    `json:"completed"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

type Plan struct {
	ID                  string `json:"id"`
	MotivationalMessage string `json:"motivational_message"`
	IsActive            bool   `json:"is_active"`
	Tasks               []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"tasks"`
}

// Answers is a questionnaire submission.
type Answers struct {
	MainProblem     string   `json:"main_problem"`
	DailyRoutine    string   `json:"daily_routine,omitempty"`
	AvailableTime   string   `json:"available_time,omitempty"`
	PersonalGoals   []string `json:"personal_goals,omitempty"`
	MotivationLevel int      `json:"motivation_level"`
}

type PlanResult struct {
	Plan  Plan   `json:"plan"`
	Tasks []Task `json:"tasks"`
}

type Dashboard struct {
	Date                string   `json:"date"`
	Tasks               []Task   `json:"tasks"`
	CompletedCount      int      `json:"completed_count"`
	TotalCount          int      `json:"total_count"`
	AllComplete         bool     `json:"all_complete"`
	Profile             *Profile `json:"profile,omitempty"`
	StreakMessage       string   `json:"streak_message"`
	MotivationalMessage string   `json:"motivational_message,omitempty"`
}

type ToggleResult struct {
	Task           Task     `json:"task"`
	AllComplete    bool     `json:"all_complete"`
	StreakRecorded bool     `json:"streak_recorded"`
	Profile        *Profile `json:"profile,omitempty"`
	StreakMessage  string   `json:"streak_message"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SignUp creates an account.
func (c *Client) SignUp(ctx context.Context, email, password, username string) (User, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if username != "" {
		body["username"] = username
	}
	var resp User
	err := c.do(ctx, http.MethodPost, "auth/signup", body, &resp)
	return resp, err
}

// SignIn exchanges credentials for a token and keeps it on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "me/dashboard", nil, &resp)
	return resp, err
}

// SubmitOnboarding stores answers and returns the new plan.
func (c *Client) SubmitOnboarding(ctx context.Context, answers Answers) (PlanResult, error) {
	var resp PlanResult
	err := c.do(ctx, http.MethodPost, "me/onboarding", answers, &resp)
	return resp, err
}

func (c *Client) RegeneratePlan(ctx context.Context) (PlanResult, error) {
	var resp PlanResult
	err := c.do(ctx, http.MethodPost, "me/plan/regenerate", nil, &resp)
	return resp, err
}

func (c *Client) ToggleTask(ctx context.Context, taskID string) (ToggleResult, error) {
	var resp ToggleResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("me/tasks/%s/toggle", url.PathEscape(taskID)), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
