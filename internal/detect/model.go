package detect

import (
	"os"

	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/motion"
)

// ModelClassifier is the learned-model slot in the classifier contract.
// On-device inference is out of scope for this core; the type validates
// that a model artifact exists and otherwise defers to the rule-based
// implementation it wraps, mirroring the original firmware's
// model-with-rule-fallback behaviour.
type ModelClassifier struct {
	path     string
	fallback *RuleClassifier
	loaded   bool
}

// NewModelClassifier wraps the rule classifier with a model artifact at
// path. A missing or unreadable artifact is not an error; the classifier
// simply runs in fallback mode.
func NewModelClassifier(path string, fallback *RuleClassifier) *ModelClassifier {
	mc := &ModelClassifier{path: path, fallback: fallback}
	if path == "" {
		return mc
	}
	if _, err := os.Stat(path); err != nil {
		monitoring.Logf("model classifier: artifact %q unavailable, using rules: %v", path, err)
		return mc
	}
	// TODO: wire a real inference runtime once a trained artifact ships;
	// until then the artifact only marks the deployment as model-capable.
	mc.loaded = true
	return mc
}

// Loaded reports whether a model artifact was found.
func (mc *ModelClassifier) Loaded() bool { return mc.loaded }

// Model identifies the classifier implementation.
func (mc *ModelClassifier) Model() string {
	if mc.loaded {
		return "model:" + mc.path
	}
	return mc.fallback.Model()
}

// Classify scores the feature vector. With no inference runtime the
// learned path defers to the rules on every call.
func (mc *ModelClassifier) Classify(f motion.MotionFeatures, mult float64) Result {
	return mc.fallback.Classify(f, mult)
}

// NewClassifier selects the implementation at construction time: a model
// classifier when a model path is configured, the plain rule classifier
// otherwise.
func NewClassifier(modelPath string, suppressor *Suppressor) Classifier {
	rules := NewRuleClassifier(suppressor)
	if modelPath == "" {
		return rules
	}
	return NewModelClassifier(modelPath, rules)
}
