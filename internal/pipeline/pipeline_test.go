package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/falldetect/internal/detect"
	"github.com/banshee-data/falldetect/internal/motion"
	"github.com/banshee-data/falldetect/internal/session"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

type recordingSink struct {
	mu      sync.Mutex
	results []detect.Result
}

func (r *recordingSink) RecordDetection(res detect.Result, _ motion.MotionFeatures) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func sampleAt(ts int64, mag float64) motion.Sample {
	return motion.Sample{TimeMS: ts, Accel: [3]float64{0, 0, mag}}
}

// fallTrace is 50 samples at 50Hz: rest, a free-fall dip, an impact
// spike, rest again.
func fallTrace() []motion.Sample {
	var out []motion.Sample
	for i := 0; i < 50; i++ {
		mag := 9.8
		switch {
		case i >= 20 && i <= 22:
			mag = 2.0
		case i == 23:
			mag = 28.0
		}
		out = append(out, sampleAt(int64(i*20), mag))
	}
	return out
}

func quietTrace() []motion.Sample {
	var out []motion.Sample
	for i := 0; i < 50; i++ {
		out = append(out, sampleAt(int64(i*20), 9.8))
	}
	return out
}

type testRig struct {
	p      *Pipeline
	engine *session.Engine
	supp   *detect.Suppressor
	clock  *timeutil.MockClock
	rec    *recordingSink
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	supp := detect.NewSuppressor(10, nil)
	engine := session.NewEngine(
		session.ActivatorFunc(func(context.Context, session.Session) error { return nil }),
		supp, clock, session.Options{CountdownSeconds: 600})
	t.Cleanup(engine.Stop)

	rec := &recordingSink{}
	p := New(detect.NewRuleClassifier(supp), engine, clock, Options{
		SensitivityLevel: 3,
		Recorder:         rec,
	})
	p.Start()
	t.Cleanup(p.Stop)
	return &testRig{p: p, engine: engine, supp: supp, clock: clock, rec: rec}
}

// pump feeds the trace and advances the evaluation clock until cond
// holds or the deadline passes.
func (r *testRig) pump(t *testing.T, trace []motion.Sample, cond func() bool, msg string) bool {
	t.Helper()
	for _, s := range trace {
		r.p.Offer(s)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			if msg == "" {
				return false
			}
			t.Fatalf("condition never reached: %s", msg)
		}
		r.clock.Advance(motion.DefaultEvaluateInterval)
		time.Sleep(5 * time.Millisecond)
	}
	return true
}

func TestPipelineOpensSessionOnFall(t *testing.T) {
	r := newRig(t)

	r.pump(t, fallTrace(), func() bool {
		s, ok := r.engine.Current()
		return ok && s.State == session.StateCountdown
	}, "session opened")

	s, _ := r.engine.Current()
	assert.GreaterOrEqual(t, s.TriggerConfidence, 0.7)
	assert.Equal(t, 28.0, s.TriggerFeatures.MaxMagnitude)
	assert.Greater(t, r.rec.count(), 0, "the triggering window must be recorded")
}

func TestPipelineQuietTraceStaysIdle(t *testing.T) {
	r := newRig(t)

	// Let several evaluation ticks pass over a quiet buffer.
	opened := r.pump(t, quietTrace(), func() bool {
		_, ok := r.engine.Current()
		return ok
	}, "")
	assert.False(t, opened, "quiet trace must not open a session")
	assert.Equal(t, 0, r.rec.count(), "quiet windows are not persisted")
}

func TestPipelineSuppressesLearnedFalseAlarm(t *testing.T) {
	r := newRig(t)

	r.pump(t, fallTrace(), func() bool {
		s, ok := r.engine.Current()
		return ok && s.State == session.StateCountdown
	}, "first session opened")

	// The user cancels; the trigger becomes a learned false alarm.
	require.NoError(t, r.engine.Cancel())
	require.Equal(t, 1, r.supp.Len())

	// The same motion again no longer opens a session.
	reopened := r.pump(t, fallTrace(), func() bool {
		s, ok := r.engine.Current()
		return ok && s.State == session.StateCountdown
	}, "")
	assert.False(t, reopened, "learned false alarm must be suppressed")
}
