// Package sensor ingests IMU samples, either live from a serial-attached
// sensor board or replayed from a recorded trace file.
package sensor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/falldetect/internal/motion"
)

// ParseLine parses one CSV trace line into a sample. The wire format is
//
//	ts_ms,ax,ay,az[,gx,gy,gz[,mx,my,mz]]
//
// with accelerometer values in m/s². Gyroscope and magnetometer triples
// are optional. Blank lines and #-comments yield ok=false with no error.
func ParseLine(line string) (motion.Sample, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return motion.Sample{}, false, nil
	}

	fields := strings.Split(line, ",")
	if n := len(fields); n != 4 && n != 7 && n != 10 {
		return motion.Sample{}, false, fmt.Errorf("line has %d fields, want 4, 7 or 10", n)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return motion.Sample{}, false, fmt.Errorf("bad timestamp %q: %w", fields[0], err)
	}

	values := make([]float64, len(fields)-1)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return motion.Sample{}, false, fmt.Errorf("bad value %q: %w", f, err)
		}
		values[i] = v
	}

	s := motion.Sample{
		TimeMS: ts,
		Accel:  [3]float64{values[0], values[1], values[2]},
	}
	if len(values) >= 6 {
		s.Gyro = &[3]float64{values[3], values[4], values[5]}
	}
	if len(values) >= 9 {
		s.Mag = &[3]float64{values[6], values[7], values[8]}
	}
	return s, true, nil
}
