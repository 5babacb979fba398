package motion

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MotionFeatures is the fixed-shape statistical summary of one window.
// All values derive deterministically from the window contents; the
// extractor keeps no state between windows.
type MotionFeatures struct {
	MaxMagnitude         float64 `json:"max_magnitude"`
	MinMagnitude         float64 `json:"min_magnitude"`
	AvgMagnitude         float64 `json:"avg_magnitude"`
	StdDevMagnitude      float64 `json:"stddev_magnitude"`
	MaxJerk              float64 `json:"max_jerk"`
	OrientationChangeDeg float64 `json:"orientation_change_deg"`
	DominantFreqHz       float64 `json:"dominant_freq_hz"`
	AvgVerticalAccel     float64 `json:"avg_vertical_accel"`
	AvgHorizontalMag     float64 `json:"avg_horizontal_mag"`
}

// ExtractFeatures computes the feature vector for a window. It is a pure
// function; an empty window yields the zero vector.
func ExtractFeatures(w Window) MotionFeatures {
	if len(w.Samples) == 0 {
		return MotionFeatures{}
	}

	mags := make([]float64, len(w.Samples))
	vertical := make([]float64, len(w.Samples))
	horizontal := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		mags[i] = s.Magnitude()
		// The z axis is treated as roughly vertical. This is a deliberate
		// simplification, not a gravity-removal filter.
		vertical[i] = math.Abs(s.Accel[2])
		horizontal[i] = math.Hypot(s.Accel[0], s.Accel[1])
	}

	f := MotionFeatures{
		MaxMagnitude:     mags[0],
		MinMagnitude:     mags[0],
		AvgMagnitude:     stat.Mean(mags, nil),
		StdDevMagnitude:  stat.PopStdDev(mags, nil),
		AvgVerticalAccel: stat.Mean(vertical, nil),
		AvgHorizontalMag: stat.Mean(horizontal, nil),
	}
	for _, m := range mags {
		if m > f.MaxMagnitude {
			f.MaxMagnitude = m
		}
		if m < f.MinMagnitude {
			f.MinMagnitude = m
		}
	}

	f.MaxJerk = maxJerk(mags)
	f.OrientationChangeDeg = orientationChangeDeg(w.Samples[0], w.Samples[len(w.Samples)-1])
	f.DominantFreqHz = dominantFreqHz(mags, w.DurationSeconds())

	return f
}

// maxJerk returns the largest absolute first difference of the magnitude
// series.
func maxJerk(mags []float64) float64 {
	if len(mags) < 2 {
		return 0
	}
	var max float64
	for i := 1; i < len(mags); i++ {
		j := math.Abs(mags[i] - mags[i-1])
		if j > max {
			max = j
		}
	}
	return max
}

// orientationChangeDeg returns the angle in degrees between the first and
// last acceleration vectors of the window. It is a cheap proxy for device
// orientation change, not orientation tracking.
func orientationChangeDeg(first, last Sample) float64 {
	m1 := first.Magnitude()
	m2 := last.Magnitude()
	if m1 == 0 || m2 == 0 {
		return 0
	}
	dot := first.Accel[0]*last.Accel[0] + first.Accel[1]*last.Accel[1] + first.Accel[2]*last.Accel[2]
	cos := dot / (m1 * m2)
	// Clamp against floating-point drift before acos.
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// dominantFreqHz estimates the dominant oscillation frequency by counting
// local maxima in the magnitude series. A peak-count proxy, not an FFT.
func dominantFreqHz(mags []float64, durationSecs float64) float64 {
	if len(mags) < 4 || durationSecs <= 0 {
		return 0
	}
	peaks := 0
	for i := 1; i < len(mags)-1; i++ {
		if mags[i] > mags[i-1] && mags[i] > mags[i+1] {
			peaks++
		}
	}
	return float64(peaks) / durationSecs
}
