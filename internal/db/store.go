// Package db persists detections, sessions, delivery attempts, learned
// false-alarm patterns and lifetime counters in a local sqlite file.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/falldetect/internal/detect"
	"github.com/banshee-data/falldetect/internal/dispatch"
	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/motion"
	"github.com/banshee-data/falldetect/internal/session"
)

type Store struct {
	*sql.DB
}

// NewStore opens (or creates) the sqlite database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			is_fall BOOLEAN,
			confidence DOUBLE,
			rationale TEXT,
			features TEXT,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			state TEXT,
			started_at TIMESTAMP,
			ended_at TIMESTAMP,
			countdown_remaining INTEGER,
			confidence DOUBLE,
			rationale TEXT
		);
		CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			contact_id TEXT,
			contact TEXT,
			channel TEXT,
			delivered BOOLEAN,
			error TEXT,
			elapsed_ms BIGINT,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(id)
		);
		CREATE TABLE IF NOT EXISTS patterns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			features TEXT,
			confidence DOUBLE,
			learned_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS counters (
			name TEXT PRIMARY KEY,
			value BIGINT
		);
	`)
	if err != nil {
		return nil, err
	}

	return &Store{db}, nil
}

// RecordDetection stores one classified window.
func (s *Store) RecordDetection(res detect.Result, f motion.MotionFeatures) error {
	features, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding features: %w", err)
	}
	_, err = s.Exec("INSERT INTO detections (is_fall, confidence, rationale, features) VALUES (?, ?, ?, ?)",
		res.IsFall, res.Confidence, res.Rationale, string(features))
	return err
}

// RecordSession upserts a session row on every state transition, so the
// row always shows the latest state.
func (s *Store) RecordSession(sess session.Session) error {
	var endedAt any
	if !sess.EndedAt.IsZero() {
		endedAt = sess.EndedAt
	}
	_, err := s.Exec(`
		INSERT INTO sessions (id, state, started_at, ended_at, countdown_remaining, confidence, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			ended_at = excluded.ended_at,
			countdown_remaining = excluded.countdown_remaining`,
		sess.ID, string(sess.State), sess.StartedAt, endedAt,
		sess.CountdownRemaining, sess.TriggerConfidence, sess.TriggerRationale)
	return err
}

// SessionRow is one persisted session.
type SessionRow struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	Confidence float64   `json:"confidence"`
}

// RecentSessions returns the most recently started sessions.
func (s *Store) RecentSessions(limit int) ([]SessionRow, error) {
	rows, err := s.Query("SELECT id, state, started_at, confidence FROM sessions ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.ID, &r.State, &r.StartedAt, &r.Confidence); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordDelivery stores one delivery attempt.
func (s *Store) RecordDelivery(sessionID string, r dispatch.ChannelResult) error {
	_, err := s.Exec(`
		INSERT INTO deliveries (session_id, contact_id, contact, channel, delivered, error, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, r.ContactID, r.Contact, r.Channel, r.Delivered, r.Error, r.Elapsed.Milliseconds())
	return err
}

// SavePattern implements detect.PatternStore.
func (s *Store) SavePattern(p detect.FalseAlarmPattern) error {
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("encoding pattern features: %w", err)
	}
	_, err = s.Exec("INSERT INTO patterns (features, confidence, learned_at) VALUES (?, ?, ?)",
		string(features), p.Confidence, p.LearnedAt)
	return err
}

// LoadPatterns implements detect.PatternStore: it returns the newest
// limit patterns in learned order, oldest first, matching the
// suppressor's FIFO history.
func (s *Store) LoadPatterns(limit int) ([]detect.FalseAlarmPattern, error) {
	rows, err := s.Query(`
		SELECT features, confidence, learned_at FROM (
			SELECT id, features, confidence, learned_at FROM patterns ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []detect.FalseAlarmPattern
	for rows.Next() {
		var features string
		var p detect.FalseAlarmPattern
		if err := rows.Scan(&features, &p.Confidence, &p.LearnedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
			return nil, fmt.Errorf("decoding pattern features: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClearPatterns implements detect.PatternStore.
func (s *Store) ClearPatterns() error {
	_, err := s.Exec("DELETE FROM patterns")
	return err
}

// Counter names.
const (
	CounterDetections  = "detections"
	CounterFalseAlarms = "false_alarms"
	CounterActivations = "activations"
)

func (s *Store) incr(name string) {
	_, err := s.Exec(`
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1`, name)
	if err != nil {
		monitoring.Logf("db: incrementing counter %s failed: %v", name, err)
	}
}

// IncrDetections implements session.Counters.
func (s *Store) IncrDetections() { s.incr(CounterDetections) }

// IncrFalseAlarms implements session.Counters.
func (s *Store) IncrFalseAlarms() { s.incr(CounterFalseAlarms) }

// IncrActivations implements session.Counters.
func (s *Store) IncrActivations() { s.incr(CounterActivations) }

// Counters returns all lifetime counters.
func (s *Store) Counters() (map[string]int64, error) {
	rows, err := s.Query("SELECT name, value FROM counters")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}
