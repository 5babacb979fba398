// Package pipeline assembles the detection path: sliding-window
// collection, feature extraction, classification and session handling.
package pipeline

import (
	"context"
	"time"

	"github.com/banshee-data/falldetect/internal/detect"
	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/motion"
	"github.com/banshee-data/falldetect/internal/session"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

// DetectionRecorder persists classified windows. The db store implements
// it; nil disables recording.
type DetectionRecorder interface {
	RecordDetection(res detect.Result, f motion.MotionFeatures) error
}

// Options configures a Pipeline.
type Options struct {
	WindowSize       int
	WindowOverlap    int
	EvaluateInterval time.Duration // zero picks the collector default
	SensitivityLevel int
	Recorder         DetectionRecorder
	// OnWindowReady observes every extracted feature vector. Optional.
	OnWindowReady func(f motion.MotionFeatures)
}

// Pipeline owns the collector and routes every completed window through
// the classifier into the session engine.
type Pipeline struct {
	collector  *motion.Collector
	classifier detect.Classifier
	engine     *session.Engine
	mult       float64
	recorder   DetectionRecorder
	onWindow   func(f motion.MotionFeatures)
}

// New builds a pipeline over the given classifier and engine.
func New(classifier detect.Classifier, engine *session.Engine, clock timeutil.Clock, opts Options) *Pipeline {
	p := &Pipeline{
		classifier: classifier,
		engine:     engine,
		mult:       detect.SensitivityMultiplier(opts.SensitivityLevel),
		recorder:   opts.Recorder,
		onWindow:   opts.OnWindowReady,
	}
	interval := motion.DefaultEvaluateInterval
	if opts.EvaluateInterval > 0 {
		interval = opts.EvaluateInterval
	}
	buffer := motion.NewWindowBuffer(opts.WindowSize, opts.WindowOverlap)
	p.collector = motion.NewCollector(buffer, motion.SinkFunc(p.consume), clock, interval)
	return p
}

// Start launches the collector.
func (p *Pipeline) Start() { p.collector.Start() }

// Stop drains and stops the collector.
func (p *Pipeline) Stop() { p.collector.Stop() }

// Offer hands one sample to the collector without blocking.
func (p *Pipeline) Offer(s motion.Sample) { p.collector.Offer(s) }

// Collector exposes the collector for stats reporting.
func (p *Pipeline) Collector() *motion.Collector { return p.collector }

// consume classifies one completed window. Windows with no signal are
// only logged at debug level; anything scored is persisted, and positive
// verdicts open a session.
func (p *Pipeline) consume(_ context.Context, w motion.Window) error {
	f := motion.ExtractFeatures(w)
	if p.onWindow != nil {
		p.onWindow(f)
	}
	res := p.classifier.Classify(f, p.mult)

	if res.Confidence == 0 && !res.IsFall {
		monitoring.Debugf("pipeline: quiet window (%s)", res.Rationale)
		return nil
	}

	if p.recorder != nil {
		if err := p.recorder.RecordDetection(res, f); err != nil {
			monitoring.Logf("pipeline: recording detection failed: %v", err)
		}
	}
	if res.IsFall {
		p.engine.HandleDetection(res, f, w)
	}
	return nil
}
