package detect

import (
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/falldetect/internal/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory PatternStore for tests.
type memStore struct {
	saved   []FalseAlarmPattern
	loadErr error
	cleared bool
}

func (m *memStore) SavePattern(p FalseAlarmPattern) error {
	m.saved = append(m.saved, p)
	return nil
}

func (m *memStore) LoadPatterns(limit int) ([]FalseAlarmPattern, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if len(m.saved) > limit {
		return m.saved[len(m.saved)-limit:], nil
	}
	return m.saved, nil
}

func (m *memStore) ClearPatterns() error {
	m.cleared = true
	m.saved = nil
	return nil
}

func TestSuppressorLearnAndMatch(t *testing.T) {
	s := NewSuppressor(10, nil)
	f := fallFeatures()

	assert.False(t, s.IsSimilar(f, 0.75), "empty history must match nothing")
	assert.Equal(t, 0.75, s.Adjust(f, 0.75), "empty history must not adjust")

	s.Learn(f, 0.75)
	assert.Equal(t, 1, s.Len())

	// An identical replay is maximally similar: adjusted by the full
	// learning rate and flagged.
	assert.InDelta(t, 0.75*(1.0-LearningRate), s.Adjust(f, 0.75), 1e-9)
	assert.True(t, s.IsSimilar(f, 0.75))
}

func TestSuppressorIgnoresDissimilar(t *testing.T) {
	s := NewSuppressor(10, nil)
	s.Learn(fallFeatures(), 0.75)

	other := motion.MotionFeatures{
		MaxMagnitude:         120,
		MinMagnitude:         0.5,
		AvgMagnitude:         60,
		StdDevMagnitude:      30,
		MaxJerk:              90,
		OrientationChangeDeg: 175,
		DominantFreqHz:       28,
	}
	assert.False(t, s.IsSimilar(other, 0.9))
	assert.Equal(t, 0.9, s.Adjust(other, 0.9))
}

func TestSuppressorEvictsOldestAtCapacity(t *testing.T) {
	s := NewSuppressor(3, nil)
	vec := func(i int) motion.MotionFeatures {
		return motion.MotionFeatures{
			MaxMagnitude:         10 + 20*float64(i),
			MinMagnitude:         5 * float64(i),
			AvgMagnitude:         8 * float64(i),
			StdDevMagnitude:      3 * float64(i),
			MaxJerk:              7 * float64(i),
			OrientationChangeDeg: 40 * float64(i),
			DominantFreqHz:       6 * float64(i),
		}
	}

	for i := 0; i < 4; i++ {
		s.Learn(vec(i), 0.8)
	}
	assert.Equal(t, 3, s.Len(), "history must stay at capacity")

	// The first pattern was evicted; its exact vector no longer matches.
	assert.False(t, s.IsSimilar(vec(0), 0.8))
	assert.True(t, s.IsSimilar(vec(3), 0.8))
}

func TestSuppressorFlipsLearnedFalseAlarm(t *testing.T) {
	s := NewSuppressor(DefaultPatternCapacity, nil)
	rc := NewRuleClassifier(s)
	f := fallFeatures()

	first := rc.Classify(f, 1.0)
	require.True(t, first.IsFall)

	// User cancels: the engine learns this vector as a false alarm.
	s.Learn(f, first.Confidence)

	second := rc.Classify(f, 1.0)
	assert.False(t, second.IsFall)
	assert.Less(t, second.Confidence, first.Confidence)
	assert.Contains(t, second.Rationale, "matches learned false alarm")
}

func TestSuppressorRecentCount(t *testing.T) {
	s := NewSuppressor(10, nil)
	s.Learn(fallFeatures(), 0.75)
	now := time.Now()
	assert.Equal(t, 1, s.RecentCount(time.Hour, now))
	assert.Equal(t, 0, s.RecentCount(time.Hour, now.Add(2*time.Hour)))
}

func TestSuppressorPersistence(t *testing.T) {
	store := &memStore{}
	s := NewSuppressor(10, store)
	f := fallFeatures()
	s.Learn(f, 0.75)
	require.Len(t, store.saved, 1)

	// A fresh suppressor over the same store starts with the history.
	s2 := NewSuppressor(10, store)
	assert.Equal(t, 1, s2.Len())
	assert.True(t, s2.IsSimilar(f, 0.75))

	require.NoError(t, s2.Reset())
	assert.True(t, store.cleared)
	assert.Equal(t, 0, s2.Len())
}

func TestSuppressorLoadFailureStartsFresh(t *testing.T) {
	store := &memStore{loadErr: errors.New("disk gone")}
	s := NewSuppressor(10, store)
	assert.Equal(t, 0, s.Len())
}
