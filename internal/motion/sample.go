// Package motion ingests raw tri-axis samples from a wearable IMU and
// turns them into fixed-shape feature vectors for classification.
package motion

import "math"

// Sample is one IMU reading. Accelerometer values are m/s²; gyroscope and
// magnetometer readings are optional and pass through unused by the
// current feature set.
type Sample struct {
	TimeMS int64 // wall-clock timestamp, milliseconds
	Accel  [3]float64
	Gyro   *[3]float64
	Mag    *[3]float64
}

// Magnitude returns the Euclidean norm of the acceleration vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.Accel[0]*s.Accel[0] + s.Accel[1]*s.Accel[1] + s.Accel[2]*s.Accel[2])
}

// Window is an immutable snapshot of consecutive samples handed to the
// feature extractor. Samples appear in arrival order; no reordering is
// guaranteed by upstream.
type Window struct {
	Samples []Sample
}

// Len returns the number of samples in the window.
func (w Window) Len() int { return len(w.Samples) }

// DurationSeconds estimates the window span from the sample count at the
// nominal sampling rate. Using the nominal rate rather than timestamps
// keeps the frequency proxy stable when upstream jitters.
func (w Window) DurationSeconds() float64 {
	return float64(len(w.Samples)) / NominalRateHz
}

// Magnitudes returns the per-sample acceleration magnitude series.
func (w Window) Magnitudes() []float64 {
	out := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = s.Magnitude()
	}
	return out
}

// NominalRateHz is the expected sensor sampling rate. Upstream may drop or
// jitter samples; nothing here assumes strict periodicity.
const NominalRateHz = 50.0
