package server

import (
	"encoding/json"

	"habitline/internal/domain"
	"habitline/internal/engine"
)

// Request payloads

type SignUpRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password" minLength:"8"`
	Username string `json:"username,omitempty" maxLength:"64"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OnboardingRequest struct {
	MainProblem     string   `json:"main_problem" minLength:"1" example:"Procrastination"`
	DailyRoutine    string   `json:"daily_routine,omitempty" example:"Night owl"`
	AvailableTime   string   `json:"available_time,omitempty" example:"Morning"`
	PersonalGoals   []string `json:"personal_goals,omitempty" example:"[\"Study\",\"Health\"]"`
	MotivationLevel int      `json:"motivation_level" minimum:"1" maximum:"10"`
}

func (r OnboardingRequest) input() engine.OnboardingInput {
	return engine.OnboardingInput{
		MainProblem:     r.MainProblem,
		DailyRoutine:    r.DailyRoutine,
		AvailableTime:   r.AvailableTime,
		PersonalGoals:   r.PersonalGoals,
		MotivationLevel: r.MotivationLevel,
	}
}

type UpdateProfileRequest struct {
	Username       *string `json:"username,omitempty"`
	TelegramChatID *int64  `json:"telegram_chat_id,omitempty"`
	ClearTelegram  bool    `json:"clear_telegram,omitempty"`
}

// Response payloads

type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type" example:"Bearer"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	ExpiresAt string `json:"expires_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

type EventList struct {
	Items []EventResponse `json:"items"`
}

func eventResponse(e domain.Event) EventResponse {
	payload := map[string]any{}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    payload,
	}
}
