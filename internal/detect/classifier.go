// Package detect scores motion-feature vectors into fall / no-fall
// decisions and learns from user-cancelled alerts to suppress recurring
// false alarms.
package detect

import (
	"fmt"

	"github.com/banshee-data/falldetect/internal/motion"
)

// Base thresholds, scaled by the sensitivity multiplier before comparison.
// Impact, jerk, variation and std-dev thresholds scale up with the
// multiplier (higher multiplier = harder to trip); free-fall and
// orientation thresholds scale down.
const (
	ImpactThreshold      = 25.0 // m/s², magnitude spike on landing
	FreeFallThreshold    = 4.0  // m/s², magnitude dip while airborne
	JerkThreshold        = 15.0 // m/s² per sample, sudden change
	OrientationThreshold = 45.0 // degrees between window endpoints
	VariationThreshold   = 12.0 // m/s², max−min magnitude range
	StdDevThreshold      = 8.0  // m/s², magnitude dispersion

	// False-positive penalties. Sustained high-frequency oscillation looks
	// like machinery or vigorous shaking, and an extreme magnitude ceiling
	// catches the device being slammed down rather than a body falling.
	VibrationFreqCutoffHz  = 15.0
	PlacementMagnitudeCeil = 50.0
	VibrationPenaltyFactor = 0.3
	PlacementPenaltyFactor = 0.5

	// DecisionThreshold is the confidence gate for the final fall verdict.
	DecisionThreshold = 0.7
)

// Indicator weights sum to 1.0 across the six indicators.
const (
	weightImpact      = 0.25
	weightFreeFall    = 0.20
	weightJerk        = 0.20
	weightOrientation = 0.15
	weightVariation   = 0.10
	weightStdDev      = 0.10
)

// SensitivityMultiplier maps the user-facing sensitivity level (1–5) to
// the threshold multiplier. Lower multiplier means lower thresholds and a
// more sensitive detector; level 3 is the neutral default.
func SensitivityMultiplier(level int) float64 {
	switch level {
	case 1:
		return 3.0
	case 2:
		return 2.0
	case 3:
		return 1.0
	case 4:
		return 0.7
	case 5:
		return 0.5
	default:
		return 1.0
	}
}

// Result is the outcome of classifying one window.
type Result struct {
	IsFall     bool    `json:"is_fall"`
	Confidence float64 `json:"confidence"` // always in [0,1]
	Rationale  string  `json:"rationale"`
}

// Classifier scores a feature vector under a sensitivity multiplier. The
// contract is fixed so rule-based and learned-model implementations are
// interchangeable at construction time.
type Classifier interface {
	Classify(f motion.MotionFeatures, sensitivityMultiplier float64) Result
	Model() string
}

// indicators holds the six boolean fall indicators plus the two penalty
// conditions for one feature vector.
type indicators struct {
	impact      bool
	freeFall    bool
	jerk        bool
	orientation bool
	variation   bool
	stdDev      bool

	vibration bool // dominant frequency at or above the vibration cutoff
	placement bool // magnitude at or above the placement ceiling
}

// RuleClassifier is the rule-based implementation: weighted threshold
// indicators with penalty damping and a conjunctive decision gate, plus
// an adaptive suppressor consulted before the final verdict.
type RuleClassifier struct {
	suppressor *Suppressor
}

// NewRuleClassifier creates a rule classifier. The suppressor may be nil,
// in which case no false-alarm adjustment is applied.
func NewRuleClassifier(suppressor *Suppressor) *RuleClassifier {
	return &RuleClassifier{suppressor: suppressor}
}

// Model identifies the classifier implementation.
func (rc *RuleClassifier) Model() string { return "rule-based-v1" }

// Classify scores one feature vector. Confidence is always clamped to
// [0,1]. The fall verdict requires the confidence gate, the impact
// indicator, a free-fall or jerk corroboration, no penalty condition, and
// no similarity to a learned false alarm; single-indicator events (like
// setting the device down hard) do not trigger.
func (rc *RuleClassifier) Classify(f motion.MotionFeatures, mult float64) Result {
	if mult <= 0 {
		mult = 1.0
	}
	ind := evaluateIndicators(f, mult)

	confidence := 0.0
	if ind.impact {
		confidence += weightImpact
	}
	if ind.freeFall {
		confidence += weightFreeFall
	}
	if ind.jerk {
		confidence += weightJerk
	}
	if ind.orientation {
		confidence += weightOrientation
	}
	if ind.variation {
		confidence += weightVariation
	}
	if ind.stdDev {
		confidence += weightStdDev
	}

	if ind.vibration {
		confidence *= VibrationPenaltyFactor
	}
	if ind.placement {
		confidence *= PlacementPenaltyFactor
	}
	confidence = clamp01(confidence)

	original := confidence
	similar := false
	if rc.suppressor != nil {
		confidence = clamp01(rc.suppressor.Adjust(f, confidence))
		similar = rc.suppressor.IsSimilar(f, confidence)
	}

	isFall := confidence > DecisionThreshold &&
		ind.impact &&
		(ind.freeFall || ind.jerk) &&
		!ind.vibration &&
		!ind.placement &&
		!similar

	rationale := fmt.Sprintf(
		"impact=%.1f freefall=%.1f jerk=%.1f orient=%.1f° stddev=%.2f conf=%.3f",
		f.MaxMagnitude, f.MinMagnitude, f.MaxJerk, f.OrientationChangeDeg,
		f.StdDevMagnitude, confidence)
	if original != confidence {
		rationale += fmt.Sprintf(" (adjusted from %.3f)", original)
	}
	if similar {
		rationale += " [matches learned false alarm]"
	}

	return Result{IsFall: isFall, Confidence: confidence, Rationale: rationale}
}

func evaluateIndicators(f motion.MotionFeatures, mult float64) indicators {
	return indicators{
		impact:      f.MaxMagnitude > ImpactThreshold*mult,
		freeFall:    f.MinMagnitude < FreeFallThreshold/mult,
		jerk:        f.MaxJerk > JerkThreshold*mult,
		orientation: f.OrientationChangeDeg > OrientationThreshold/mult,
		variation:   f.MaxMagnitude-f.MinMagnitude > VariationThreshold*mult,
		stdDev:      f.StdDevMagnitude > StdDevThreshold*mult,
		vibration:   f.DominantFreqHz >= VibrationFreqCutoffHz,
		placement:   f.MaxMagnitude >= PlacementMagnitudeCeil*mult,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
