// Package api exposes the device's local HTTP interface: status
// inspection, session cancel/confirm, escalation reports and learned
// false-alarm management.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/falldetect/internal/config"
	"github.com/banshee-data/falldetect/internal/db"
	"github.com/banshee-data/falldetect/internal/detect"
	"github.com/banshee-data/falldetect/internal/dispatch"
	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/motion"
	"github.com/banshee-data/falldetect/internal/session"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

type Server struct {
	engine     *session.Engine
	suppressor *detect.Suppressor
	classifier detect.Classifier
	dispatcher *dispatch.Dispatcher
	collector  *motion.Collector
	store      *db.Store
	cfg        *config.Config
	clock      timeutil.Clock
	started    time.Time
}

// NewServer wires the API over the running pipeline. The dispatcher and
// store may be nil on reduced deployments; the affected endpoints answer
// 404/503 accordingly.
func NewServer(engine *session.Engine, supp *detect.Suppressor, classifier detect.Classifier,
	dispatcher *dispatch.Dispatcher, collector *motion.Collector, store *db.Store,
	cfg *config.Config, clock timeutil.Clock) *Server {
	return &Server{
		engine:     engine,
		suppressor: supp,
		classifier: classifier,
		dispatcher: dispatcher,
		collector:  collector,
		store:      store,
		cfg:        cfg,
		clock:      clock,
		started:    clock.Now(),
	}
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("falldetect: wearable fall-detection core\n"))
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.statusHandler)
	mux.HandleFunc("/api/config", s.configHandler)
	mux.HandleFunc("/api/session", s.sessionHandler)
	mux.HandleFunc("/api/session/cancel", s.cancelHandler)
	mux.HandleFunc("/api/session/confirm", s.confirmHandler)
	mux.HandleFunc("/api/sessions", s.sessionsHandler)
	mux.HandleFunc("/api/report", s.reportHandler)
	mux.HandleFunc("/api/patterns", s.patternsHandler)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("api: encoding response failed: %v", err)
	}
}

type statusResponse struct {
	Model            string                `json:"model"`
	SensitivityLevel int                   `json:"sensitivity_level"`
	UptimeSeconds    float64               `json:"uptime_seconds"`
	LearnedPatterns  int                   `json:"learned_patterns"`
	Collector        motion.CollectorStats `json:"collector"`
	Counters         map[string]int64      `json:"counters,omitempty"`
	Session          *session.Session      `json:"session,omitempty"`
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		Model:            s.classifier.Model(),
		SensitivityLevel: s.cfg.GetSensitivityLevel(),
		UptimeSeconds:    s.clock.Since(s.started).Seconds(),
	}
	if s.suppressor != nil {
		resp.LearnedPatterns = s.suppressor.Len()
	}
	if s.collector != nil {
		resp.Collector = s.collector.Stats()
	}
	if s.store != nil {
		counters, err := s.store.Counters()
		if err != nil {
			monitoring.Logf("api: reading counters failed: %v", err)
		} else {
			resp.Counters = counters
		}
	}
	if sess, ok := s.engine.Current(); ok {
		resp.Session = &sess
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg)
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := s.engine.Current()
	if !ok {
		http.Error(w, "No session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	s.resolveSession(w, r, "cancel", s.engine.Cancel)
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	s.resolveSession(w, r, "confirm", s.engine.Confirm)
}

// resolveSession handles the two user responses to a countdown. A
// missing countdown is a conflict, not a server error: the button was
// pressed after the session already moved on.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request, action string, fn func() error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := fn(); err != nil {
		if errors.Is(err, session.ErrNoCountdown) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to %s session: %v", action, err), http.StatusInternalServerError)
		return
	}
	sess, _ := s.engine.Current()
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "No session store", http.StatusServiceUnavailable)
		return
	}
	rows, err := s.store.RecentSessions(50)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve sessions: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.dispatcher == nil {
		http.Error(w, "No dispatcher", http.StatusNotFound)
		return
	}
	report, ok := s.dispatcher.LastReport()
	if !ok {
		http.Error(w, "No escalation has run", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// patternsHandler serves the learned false-alarm history: GET lists it,
// DELETE clears it (memory and store).
func (s *Server) patternsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.store == nil {
			writeJSON(w, http.StatusOK, map[string]int{"count": s.suppressor.Len()})
			return
		}
		patterns, err := s.store.LoadPatterns(detect.DefaultPatternCapacity)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to retrieve patterns: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, patterns)
	case http.MethodDelete:
		if err := s.suppressor.Reset(); err != nil {
			http.Error(w, fmt.Sprintf("Failed to reset patterns: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
