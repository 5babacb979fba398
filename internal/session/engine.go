package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/falldetect/internal/detect"
	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/motion"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

// Activator carries a confirmed or expired session into emergency
// escalation. The dispatch package provides the production
// implementation.
type Activator interface {
	Activate(ctx context.Context, s Session) error
}

// ActivatorFunc adapts a function to the Activator interface.
type ActivatorFunc func(ctx context.Context, s Session) error

func (f ActivatorFunc) Activate(ctx context.Context, s Session) error { return f(ctx, s) }

// Recorder persists session state transitions.
type Recorder interface {
	RecordSession(s Session) error
}

// Counters tracks lifetime detection statistics.
type Counters interface {
	IncrDetections()
	IncrFalseAlarms()
	IncrActivations()
}

// Callbacks are optional hooks invoked outside the engine lock. Any
// field may be nil.
type Callbacks struct {
	OnFallDetected  func(s Session)
	OnStateChange   func(s Session)
	OnCountdownTick func(s Session)
}

// Options configures an Engine. Zero values pick the defaults; Recorder
// and Counters may be nil.
type Options struct {
	CountdownSeconds int
	Recorder         Recorder
	Counters         Counters
	Callbacks        Callbacks
}

// ErrNoCountdown is returned by Cancel and Confirm when no session is in
// its countdown phase.
var ErrNoCountdown = errors.New("no session in countdown")

// Engine owns at most one emergency session at a time. Detections that
// arrive while a session is active are dropped; the session in progress
// already represents the emergency.
type Engine struct {
	clock     timeutil.Clock
	activator Activator
	supp      *detect.Suppressor
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *Session
	// stopTick belongs to the current countdown; closing it retires the
	// ticker goroutine so a stale tick can never touch a later session.
	stopTick chan struct{}
}

// NewEngine creates an engine. The suppressor may be nil, in which case
// cancellations are not learned from.
func NewEngine(activator Activator, supp *detect.Suppressor, clock timeutil.Clock, opts Options) *Engine {
	if opts.CountdownSeconds <= 0 {
		opts.CountdownSeconds = DefaultCountdownSeconds
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		clock:     clock,
		activator: activator,
		supp:      supp,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Stop aborts any pending activation work and waits for the engine's
// goroutines to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
	e.mu.Unlock()
	e.cancel()
	e.wg.Wait()
}

// Current returns a copy of the most recent session, or false when no
// session has ever run.
func (e *Engine) Current() (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return Session{}, false
	}
	return *e.current, true
}

// HandleDetection opens a new session for a positive classification and
// reports whether one was opened. Non-fall results and detections that
// arrive while a session is active are ignored.
func (e *Engine) HandleDetection(res detect.Result, f motion.MotionFeatures, w motion.Window) bool {
	if !res.IsFall {
		return false
	}

	e.mu.Lock()
	if e.current != nil && e.current.Active() {
		e.mu.Unlock()
		monitoring.Logf("session: detection dropped, session %s already %s", e.current.ID, e.current.State)
		return false
	}

	s := newSession(res, f, w, e.opts.CountdownSeconds, e.clock.Now())
	stop := make(chan struct{})
	e.current = s
	e.stopTick = stop
	snap := *s
	e.mu.Unlock()

	if e.opts.Counters != nil {
		e.opts.Counters.IncrDetections()
	}
	monitoring.Logf("session %s: fall detected (confidence=%.3f), countdown %ds", snap.ID, snap.TriggerConfidence, snap.CountdownRemaining)
	if e.opts.Callbacks.OnFallDetected != nil {
		e.opts.Callbacks.OnFallDetected(snap)
	}
	e.record(snap)
	e.notifyState(snap)

	e.wg.Add(1)
	go e.runCountdown(stop)
	return true
}

// Cancel stops the countdown, learns the trigger as a false alarm, and
// closes the session. Only valid during the countdown phase.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	if e.current == nil || e.current.State != StateCountdown {
		e.mu.Unlock()
		return ErrNoCountdown
	}
	close(e.stopTick)
	e.stopTick = nil
	e.current.State = StateCancelled
	e.current.EndedAt = e.clock.Now()
	snap := *e.current
	e.mu.Unlock()

	if e.supp != nil {
		e.supp.Learn(snap.TriggerFeatures, snap.TriggerConfidence)
	}
	if e.opts.Counters != nil {
		e.opts.Counters.IncrFalseAlarms()
	}
	monitoring.Logf("session %s: cancelled by user with %ds remaining", snap.ID, snap.CountdownRemaining)
	e.record(snap)
	e.notifyState(snap)
	return nil
}

// Confirm skips the remaining countdown and escalates immediately. Only
// valid during the countdown phase.
func (e *Engine) Confirm() error {
	e.mu.Lock()
	if e.current == nil || e.current.State != StateCountdown {
		e.mu.Unlock()
		return ErrNoCountdown
	}
	close(e.stopTick)
	e.stopTick = nil
	e.current.CountdownRemaining = 0
	monitoring.Logf("session %s: confirmed by user, escalating now", e.current.ID)
	e.activateLocked()
	return nil
}

// runCountdown decrements the session once per second until it is
// stopped or reaches zero.
func (e *Engine) runCountdown(stop chan struct{}) {
	defer e.wg.Done()
	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !e.tick(stop) {
				return
			}
		}
	}
}

// tick advances the countdown by one second. It returns false once the
// countdown no longer belongs to this goroutine.
func (e *Engine) tick(stop chan struct{}) bool {
	e.mu.Lock()
	if e.stopTick != stop || e.current == nil || e.current.State != StateCountdown {
		e.mu.Unlock()
		return false
	}
	e.current.CountdownRemaining--
	if e.current.CountdownRemaining > 0 {
		snap := *e.current
		e.mu.Unlock()
		if e.opts.Callbacks.OnCountdownTick != nil {
			e.opts.Callbacks.OnCountdownTick(snap)
		}
		return true
	}

	// Countdown expired with no user response: treat as a real fall.
	e.stopTick = nil
	monitoring.Logf("session %s: countdown expired, auto-activating", e.current.ID)
	e.activateLocked()
	return false
}

// activateLocked transitions the current session to activating and runs
// the escalation asynchronously. The caller must hold e.mu; it is
// released before returning.
func (e *Engine) activateLocked() {
	e.current.State = StateActivating
	snap := *e.current
	e.mu.Unlock()

	e.record(snap)
	e.notifyState(snap)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.activator.Activate(e.ctx, snap); err != nil {
			monitoring.Logf("session %s: escalation finished with error: %v", snap.ID, err)
		}

		e.mu.Lock()
		if e.current == nil || e.current.ID != snap.ID {
			e.mu.Unlock()
			return
		}
		e.current.State = StateCompleted
		e.current.EndedAt = e.clock.Now()
		done := *e.current
		e.mu.Unlock()

		if e.opts.Counters != nil {
			e.opts.Counters.IncrActivations()
		}
		monitoring.Logf("session %s: escalation complete after %s", done.ID, done.EndedAt.Sub(done.StartedAt))
		e.record(done)
		e.notifyState(done)
	}()
}

func (e *Engine) record(s Session) {
	if e.opts.Recorder == nil {
		return
	}
	if err := e.opts.Recorder.RecordSession(s); err != nil {
		monitoring.Logf("session %s: recording state %s failed: %v", s.ID, s.State, err)
	}
}

func (e *Engine) notifyState(s Session) {
	if e.opts.Callbacks.OnStateChange != nil {
		e.opts.Callbacks.OnStateChange(s)
	}
}
