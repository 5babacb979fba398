package motion

import (
	"math"
	"testing"
)

// stationaryWindow is 50 samples of a device at rest, gravity on z.
func stationaryWindow() Window {
	samples := make([]Sample, 50)
	for i := range samples {
		samples[i] = Sample{TimeMS: int64(i * 20), Accel: [3]float64{0, 0, 9.8}}
	}
	return Window{Samples: samples}
}

func TestExtractFeaturesStationary(t *testing.T) {
	f := ExtractFeatures(stationaryWindow())

	if math.Abs(f.MaxMagnitude-9.8) > 1e-9 || math.Abs(f.MinMagnitude-9.8) > 1e-9 {
		t.Errorf("max/min magnitude = %v/%v, want 9.8/9.8", f.MaxMagnitude, f.MinMagnitude)
	}
	if math.Abs(f.AvgMagnitude-9.8) > 1e-9 {
		t.Errorf("avg magnitude = %v, want 9.8", f.AvgMagnitude)
	}
	if f.StdDevMagnitude > 1e-9 {
		t.Errorf("stddev = %v, want 0", f.StdDevMagnitude)
	}
	if f.MaxJerk > 1e-9 {
		t.Errorf("max jerk = %v, want 0", f.MaxJerk)
	}
	if f.OrientationChangeDeg > 1e-9 {
		t.Errorf("orientation change = %v, want 0", f.OrientationChangeDeg)
	}
	if f.DominantFreqHz != 0 {
		t.Errorf("dominant freq = %v, want 0", f.DominantFreqHz)
	}
	if math.Abs(f.AvgVerticalAccel-9.8) > 1e-9 {
		t.Errorf("avg vertical = %v, want 9.8", f.AvgVerticalAccel)
	}
	if f.AvgHorizontalMag > 1e-9 {
		t.Errorf("avg horizontal = %v, want 0", f.AvgHorizontalMag)
	}
}

func TestExtractFeaturesSpikeAndDip(t *testing.T) {
	w := stationaryWindow()
	// A free-fall dip followed by a hard impact.
	w.Samples[20] = Sample{TimeMS: 400, Accel: [3]float64{0, 0, 2}}
	w.Samples[21] = Sample{TimeMS: 420, Accel: [3]float64{0, 0, 28}}

	f := ExtractFeatures(w)

	if f.MaxMagnitude != 28 {
		t.Errorf("max magnitude = %v, want 28", f.MaxMagnitude)
	}
	if f.MinMagnitude != 2 {
		t.Errorf("min magnitude = %v, want 2", f.MinMagnitude)
	}
	// Largest first difference is the 2 → 28 transition.
	if f.MaxJerk != 26 {
		t.Errorf("max jerk = %v, want 26", f.MaxJerk)
	}
	if f.StdDevMagnitude <= 0 {
		t.Errorf("stddev = %v, want > 0", f.StdDevMagnitude)
	}
}

func TestExtractFeaturesOrientationChange(t *testing.T) {
	samples := make([]Sample, 50)
	for i := range samples {
		samples[i] = Sample{TimeMS: int64(i * 20), Accel: [3]float64{0, 0, 9.8}}
	}
	// Device ends up on its side: gravity moved from z to x.
	samples[49] = Sample{TimeMS: 980, Accel: [3]float64{9.8, 0, 0}}

	f := ExtractFeatures(Window{Samples: samples})
	if math.Abs(f.OrientationChangeDeg-90) > 1e-6 {
		t.Errorf("orientation change = %v, want 90", f.OrientationChangeDeg)
	}
}

func TestExtractFeaturesDominantFreq(t *testing.T) {
	// Alternating high/low magnitudes: every high sample is a local
	// maximum, 24 peaks over a one-second window.
	samples := make([]Sample, 50)
	for i := range samples {
		z := 9.8
		if i%2 == 1 {
			z = 12.0
		}
		samples[i] = Sample{TimeMS: int64(i * 20), Accel: [3]float64{0, 0, z}}
	}

	f := ExtractFeatures(Window{Samples: samples})
	if f.DominantFreqHz != 24 {
		t.Errorf("dominant freq = %v, want 24", f.DominantFreqHz)
	}
}

func TestExtractFeaturesEmptyWindow(t *testing.T) {
	f := ExtractFeatures(Window{})
	if f != (MotionFeatures{}) {
		t.Errorf("empty window features = %+v, want zero value", f)
	}
}
