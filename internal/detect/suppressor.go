package detect

import (
	"sync"
	"time"

	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/motion"
)

// Suppressor parameters. Similarity is a weighted sum of normalized
// per-feature differences subtracted from 1; the weights sum to 1.0.
const (
	DefaultPatternCapacity = 100
	SimilarityThreshold    = 0.85 // IsSimilar trips above this
	AdjustmentThreshold    = 0.5  // Adjust dampens above this
	LearningRate           = 0.1

	simWeightMaxMag      = 0.20
	simWeightMinMag      = 0.15
	simWeightAvgMag      = 0.15
	simWeightStdDev      = 0.15
	simWeightJerk        = 0.15
	simWeightOrientation = 0.10
	simWeightFrequency   = 0.05
	simWeightConfidence  = 0.05
)

// Normalization divisors bring each feature difference onto a rough 0–1
// scale before weighting.
const (
	simScaleMaxMag      = 50.0
	simScaleMinMag      = 20.0
	simScaleAvgMag      = 30.0
	simScaleStdDev      = 15.0
	simScaleJerk        = 25.0
	simScaleOrientation = 180.0
	simScaleFrequency   = 30.0
)

// FalseAlarmPattern is the feature vector and confidence of one
// user-cancelled alert.
type FalseAlarmPattern struct {
	Features   motion.MotionFeatures `json:"features"`
	Confidence float64               `json:"confidence"`
	LearnedAt  time.Time             `json:"learned_at"`
}

// PatternStore persists learned patterns across restarts. Implementations
// must tolerate being handed more patterns than they were asked to load.
type PatternStore interface {
	SavePattern(p FalseAlarmPattern) error
	LoadPatterns(limit int) ([]FalseAlarmPattern, error)
	ClearPatterns() error
}

// Suppressor holds a bounded FIFO history of false-alarm patterns and
// dampens classifications that resemble them. It is a nearest-neighbour
// heuristic by design, replaceable by a trained model without changing
// the surrounding contract. Safe for concurrent use.
type Suppressor struct {
	mu       sync.RWMutex
	patterns []FalseAlarmPattern
	capacity int
	store    PatternStore
}

// NewSuppressor creates a suppressor with the given history capacity.
// When a store is supplied, previously learned patterns are loaded at
// construction; load failures degrade to an empty history.
func NewSuppressor(capacity int, store PatternStore) *Suppressor {
	if capacity <= 0 {
		capacity = DefaultPatternCapacity
	}
	s := &Suppressor{capacity: capacity, store: store}
	if store != nil {
		patterns, err := store.LoadPatterns(capacity)
		if err != nil {
			monitoring.Logf("suppressor: loading patterns failed, starting fresh: %v", err)
		} else {
			s.patterns = patterns
			if len(patterns) > 0 {
				monitoring.Logf("suppressor: loaded %d learned patterns", len(patterns))
			}
		}
	}
	return s
}

// Learn appends a false-alarm pattern, evicting the oldest entry once the
// history is at capacity.
func (s *Suppressor) Learn(f motion.MotionFeatures, confidence float64) {
	p := FalseAlarmPattern{Features: f, Confidence: confidence, LearnedAt: time.Now()}

	s.mu.Lock()
	s.patterns = append(s.patterns, p)
	if len(s.patterns) > s.capacity {
		s.patterns = s.patterns[len(s.patterns)-s.capacity:]
	}
	total := len(s.patterns)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SavePattern(p); err != nil {
			monitoring.Logf("suppressor: persisting pattern failed: %v", err)
		}
	}
	monitoring.Logf("suppressor: learned false alarm (confidence=%.3f, patterns=%d)", confidence, total)
}

// IsSimilar reports whether the feature vector resembles any stored
// pattern beyond the similarity threshold.
func (s *Suppressor) IsSimilar(f motion.MotionFeatures, confidence float64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patterns {
		if similarity(f, confidence, p) > SimilarityThreshold {
			return true
		}
	}
	return false
}

// Adjust returns the confidence dampened in proportion to the maximum
// similarity across the history. Below the adjustment threshold the
// confidence passes through unchanged.
func (s *Suppressor) Adjust(f motion.MotionFeatures, confidence float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.patterns) == 0 {
		return confidence
	}
	maxSim := 0.0
	for _, p := range s.patterns {
		if sim := similarity(f, confidence, p); sim > maxSim {
			maxSim = sim
		}
	}
	if maxSim <= AdjustmentThreshold {
		return confidence
	}
	adjusted := confidence * (1.0 - maxSim*LearningRate)
	monitoring.Debugf("suppressor: confidence %.3f -> %.3f (similarity %.2f)", confidence, adjusted, maxSim)
	return adjusted
}

// Len returns the number of stored patterns.
func (s *Suppressor) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

// RecentCount returns how many patterns were learned within the given
// duration before now.
func (s *Suppressor) RecentCount(since time.Duration, now time.Time) int {
	cutoff := now.Add(-since)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.patterns {
		if p.LearnedAt.After(cutoff) {
			n++
		}
	}
	return n
}

// Reset clears the in-memory history and, when a store is configured, the
// persisted patterns as well.
func (s *Suppressor) Reset() error {
	s.mu.Lock()
	s.patterns = nil
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.ClearPatterns(); err != nil {
			return err
		}
	}
	monitoring.Logf("suppressor: learned patterns reset")
	return nil
}

// similarity computes the weighted resemblance between a live feature
// vector and a stored pattern, clamped to [0,1].
func similarity(f motion.MotionFeatures, confidence float64, p FalseAlarmPattern) float64 {
	diff := abs(f.MaxMagnitude-p.Features.MaxMagnitude)/simScaleMaxMag*simWeightMaxMag +
		abs(f.MinMagnitude-p.Features.MinMagnitude)/simScaleMinMag*simWeightMinMag +
		abs(f.AvgMagnitude-p.Features.AvgMagnitude)/simScaleAvgMag*simWeightAvgMag +
		abs(f.StdDevMagnitude-p.Features.StdDevMagnitude)/simScaleStdDev*simWeightStdDev +
		abs(f.MaxJerk-p.Features.MaxJerk)/simScaleJerk*simWeightJerk +
		abs(f.OrientationChangeDeg-p.Features.OrientationChangeDeg)/simScaleOrientation*simWeightOrientation +
		abs(f.DominantFreqHz-p.Features.DominantFreqHz)/simScaleFrequency*simWeightFrequency +
		abs(confidence-p.Confidence)*simWeightConfidence
	return clamp01(1.0 - diff)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
