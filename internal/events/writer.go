package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	OnboardingSubmitted = "onboarding.submitted"
	PreferencesSaved    = "preferences.saved"
	PlanGenerated       = "plan.generated"
	TaskToggled         = "task.toggled"
	StreakRecorded      = "streak.recorded"
	StreakReset         = "streak.reset"
	UserSignedUp        = "user.signed_up"
	ProfileUpdated      = "profile.updated"
)

var known = map[string]struct{}{
	OnboardingSubmitted: {},
	PreferencesSaved:    {},
	PlanGenerated:       {},
	TaskToggled:         {},
	StreakRecorded:      {},
	StreakReset:         {},
	UserSignedUp:        {},
	ProfileUpdated:      {},
}

// Known reports whether evtType is one of the types Habitline writes.
func Known(evtType string) bool {
	_, ok := known[evtType]
	return ok
}

// Writer appends audit events. It never opens its own transaction so an
// event commits or rolls back with the change it describes.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) stamp() string {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return now().UTC().Format(time.RFC3339)
}

// Append writes an event inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, userID, entityKind, entityID string, payload EventPayload) error {
	if tx == nil {
		return fmt.Errorf("append %s: transaction required", evtType)
	}
	if !Known(evtType) {
		return fmt.Errorf("append: unknown event type %q", evtType)
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", evtType, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events(ts,type,user_id,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?,?)`,
		w.stamp(), evtType, nullable(userID), entityKind, nullable(entityID), string(data)); err != nil {
		return fmt.Errorf("append %s: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
