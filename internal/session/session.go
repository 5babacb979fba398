// Package session runs the emergency-session state machine: a detected
// fall opens a cancellation countdown, and the session either gets
// cancelled by the user, confirmed early, or auto-activates into
// emergency escalation when the countdown expires.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/falldetect/internal/detect"
	"github.com/banshee-data/falldetect/internal/motion"
)

// State is the lifecycle phase of an emergency session.
type State string

const (
	StateIdle       State = "idle"
	StateCountdown  State = "countdown"
	StateCancelled  State = "cancelled"
	StateActivating State = "activating"
	StateCompleted  State = "completed"
)

// DefaultCountdownSeconds is the cancellation window granted to the user
// before escalation starts.
const DefaultCountdownSeconds = 15

// Session is one emergency episode, from detection to resolution.
type Session struct {
	ID                 string                `json:"id"`
	State              State                 `json:"state"`
	StartedAt          time.Time             `json:"started_at"`
	EndedAt            time.Time             `json:"ended_at,omitempty"`
	CountdownRemaining int                   `json:"countdown_remaining"`
	TriggerConfidence  float64               `json:"trigger_confidence"`
	TriggerRationale   string                `json:"trigger_rationale"`
	TriggerFeatures    motion.MotionFeatures `json:"trigger_features"`
	// TriggerWindow is the raw window behind the detection. Kept for
	// diagnostics and future model training; too bulky for the API.
	TriggerWindow motion.Window `json:"-"`
}

func newSession(res detect.Result, f motion.MotionFeatures, w motion.Window, countdown int, now time.Time) *Session {
	return &Session{
		ID:                 uuid.NewString(),
		State:              StateCountdown,
		StartedAt:          now,
		CountdownRemaining: countdown,
		TriggerConfidence:  res.Confidence,
		TriggerRationale:   res.Rationale,
		TriggerFeatures:    f,
		TriggerWindow:      w,
	}
}

// Active reports whether the session still occupies the engine: only
// cancelled and completed sessions release it.
func (s *Session) Active() bool {
	return s.State == StateCountdown || s.State == StateActivating
}
