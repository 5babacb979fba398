package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/falldetect/internal/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stationaryFeatures models a device at rest: gravity only, no motion.
func stationaryFeatures() motion.MotionFeatures {
	return motion.MotionFeatures{
		MaxMagnitude:     9.8,
		MinMagnitude:     9.8,
		AvgMagnitude:     9.8,
		AvgVerticalAccel: 9.8,
	}
}

// fallFeatures models a clear fall: impact spike, free-fall dip, high jerk.
func fallFeatures() motion.MotionFeatures {
	return motion.MotionFeatures{
		MaxMagnitude:         28,
		MinMagnitude:         2,
		AvgMagnitude:         10.5,
		StdDevMagnitude:      4.0,
		MaxJerk:              20,
		OrientationChangeDeg: 10,
		DominantFreqHz:       2,
		AvgVerticalAccel:     8.0,
		AvgHorizontalMag:     5.0,
	}
}

func TestClassifyStationary(t *testing.T) {
	rc := NewRuleClassifier(nil)
	res := rc.Classify(stationaryFeatures(), 1.0)

	assert.False(t, res.IsFall)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestClassifyClearFall(t *testing.T) {
	rc := NewRuleClassifier(nil)
	res := rc.Classify(fallFeatures(), 1.0)

	require.True(t, res.IsFall, "rationale: %s", res.Rationale)
	// Impact + free-fall + jerk + variation = 0.25+0.20+0.20+0.10.
	assert.InDelta(t, 0.75, res.Confidence, 1e-9)
}

func TestClassifyConfidenceAlwaysClamped(t *testing.T) {
	rc := NewRuleClassifier(nil)
	vectors := []motion.MotionFeatures{
		{},
		stationaryFeatures(),
		fallFeatures(),
		{MaxMagnitude: 500, MinMagnitude: -10, MaxJerk: 400, OrientationChangeDeg: 180, StdDevMagnitude: 90, DominantFreqHz: 40},
		{MaxMagnitude: 30, MinMagnitude: 1, MaxJerk: 25, OrientationChangeDeg: 90, StdDevMagnitude: 10, DominantFreqHz: 3},
	}
	for _, mult := range []float64{0.5, 0.7, 1.0, 2.0, 3.0} {
		for _, f := range vectors {
			res := rc.Classify(f, mult)
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
		}
	}
}

func TestClassifyVibrationPenalty(t *testing.T) {
	rc := NewRuleClassifier(nil)
	f := fallFeatures()
	f.DominantFreqHz = 20 // above the vibration cutoff

	res := rc.Classify(f, 1.0)
	assert.False(t, res.IsFall)
	assert.InDelta(t, 0.75*VibrationPenaltyFactor, res.Confidence, 1e-9)
}

func TestClassifyPlacementPenalty(t *testing.T) {
	rc := NewRuleClassifier(nil)
	f := fallFeatures()
	f.MaxMagnitude = 55 // above the placement ceiling at multiplier 1.0

	res := rc.Classify(f, 1.0)
	assert.False(t, res.IsFall)
	// All four tripped indicators survive, halved by the penalty.
	assert.InDelta(t, 0.75*PlacementPenaltyFactor, res.Confidence, 1e-9)
}

func TestClassifyRequiresImpactCorroboration(t *testing.T) {
	rc := NewRuleClassifier(nil)

	// High confidence without the impact indicator must not trigger.
	f := motion.MotionFeatures{
		MaxMagnitude:         20, // below impact threshold
		MinMagnitude:         2,
		MaxJerk:              20,
		OrientationChangeDeg: 90,
		StdDevMagnitude:      9,
	}
	res := rc.Classify(f, 1.0)
	assert.False(t, res.IsFall, "fall without impact indicator")

	// Impact alone without free-fall or jerk must not trigger either,
	// however the other indicators stack up.
	f = motion.MotionFeatures{
		MaxMagnitude:         30,
		MinMagnitude:         10,
		MaxJerk:              5,
		OrientationChangeDeg: 90,
		StdDevMagnitude:      9,
	}
	res = rc.Classify(f, 1.0)
	assert.False(t, res.IsFall, "fall without free-fall or jerk corroboration")
}

func TestSensitivityMultiplierLevels(t *testing.T) {
	cases := map[int]float64{1: 3.0, 2: 2.0, 3: 1.0, 4: 0.7, 5: 0.5, 0: 1.0, 9: 1.0}
	for level, want := range cases {
		assert.Equal(t, want, SensitivityMultiplier(level), "level %d", level)
	}
}

func TestClassifySensitivityScaling(t *testing.T) {
	rc := NewRuleClassifier(nil)
	f := fallFeatures()

	// At the least sensitive level the same event stays below every
	// scaled threshold and must not trigger.
	res := rc.Classify(f, SensitivityMultiplier(1))
	assert.False(t, res.IsFall)
	assert.Equal(t, 0.0, res.Confidence)

	// At a more sensitive level it still triggers.
	res = rc.Classify(f, SensitivityMultiplier(4))
	assert.True(t, res.IsFall)

	// At the most sensitive level the lowered placement ceiling catches
	// the same spike as a slammed-down device and vetoes the verdict.
	res = rc.Classify(f, SensitivityMultiplier(5))
	assert.False(t, res.IsFall)
}

func TestModelClassifierFallsBackWithoutArtifact(t *testing.T) {
	c := NewClassifier("", nil)
	assert.Equal(t, "rule-based-v1", c.Model())

	c = NewClassifier("/nonexistent/model.tflite", nil)
	assert.Equal(t, "rule-based-v1", c.Model())

	// Behaviour matches the rules either way.
	res := c.Classify(fallFeatures(), 1.0)
	assert.True(t, res.IsFall)
}

func TestModelClassifierDetectsArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fall_model.bin")
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))

	mc := NewModelClassifier(path, NewRuleClassifier(nil))
	assert.True(t, mc.Loaded())
	assert.Equal(t, "model:"+path, mc.Model())
}
