// Package dispatch escalates an activated emergency session to the
// configured contacts: it resolves a location fix, composes the alert
// message, fans out per-contact delivery across the notification
// channels, and optionally places a voice call to the primary contact.
package dispatch

import (
	"context"
	"time"
)

// Contact is one emergency contact. PreferredChannels lists channel
// names in priority order; when empty the dispatcher's default order
// applies.
type Contact struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Phone             string   `json:"phone"`
	Relationship      string   `json:"relationship,omitempty"`
	Primary           bool     `json:"primary"`
	PreferredChannels []string `json:"preferred_channels,omitempty"`
}

// Location is a position fix attached to an alert.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AccuracyM  float64   `json:"accuracy_m"`
	CapturedAt time.Time `json:"captured_at"`
	// LastKnown marks a stale fix served because a fresh one could not
	// be obtained in time.
	LastKnown bool `json:"last_known"`
}

// ChannelResult is the outcome of one delivery attempt.
type ChannelResult struct {
	ContactID string        `json:"contact_id"`
	Contact   string        `json:"contact"`
	Channel   string        `json:"channel"`
	Delivered bool          `json:"delivered"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Report summarizes one escalation run.
type Report struct {
	SessionID       string          `json:"session_id"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	Location        *Location       `json:"location,omitempty"`
	Results         []ChannelResult `json:"results"`
	ContactsReached int             `json:"contacts_reached"`
	CallPlaced      bool            `json:"call_placed"`
}

// Channel delivers an alert message to one contact.
type Channel interface {
	Name() string
	Send(ctx context.Context, c Contact, message string) error
}

// DeliveryRecorder persists per-attempt delivery outcomes.
type DeliveryRecorder interface {
	RecordDelivery(sessionID string, r ChannelResult) error
}
