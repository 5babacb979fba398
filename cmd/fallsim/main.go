// fallsim generates synthetic IMU traces in the falldetectd replay
// format. Traces can be piped into a file and rehearsed against the
// daemon with -replay.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"
)

var (
	scenario = flag.String("scenario", "fall", "Scenario to generate: fall, walk, sit, shake, still")
	duration = flag.Duration("duration", 10*time.Second, "Trace duration")
	rate     = flag.Int("rate", 50, "Sample rate in Hz")
	seed     = flag.Int64("seed", 0, "Random seed (0 = time-based)")
	out      = flag.String("out", "", "Output file (default stdout)")
)

const gravity = 9.81

func main() {
	flag.Parse()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))

	w := bufio.NewWriter(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *out, err)
		}
		defer f.Close()
		w = bufio.NewWriter(f)
	}
	defer w.Flush()

	gen, ok := scenarios[*scenario]
	if !ok {
		log.Fatalf("Unknown scenario %q", *scenario)
	}

	fmt.Fprintf(w, "# fallsim scenario=%s rate=%dHz seed=%d\n", *scenario, *rate, s)
	stepMS := 1000 / *rate
	total := int(duration.Seconds() * float64(*rate))
	for i := 0; i < total; i++ {
		t := float64(i) / float64(*rate)
		az := gen(t, rng)
		ax := rng.NormFloat64() * 0.2
		ay := rng.NormFloat64() * 0.2
		fmt.Fprintf(w, "%d,%.3f,%.3f,%.3f\n", i*stepMS, ax, ay, az)
	}
}

// Each generator returns the vertical acceleration at time t. Lateral
// axes carry only sensor noise, which keeps the traces simple while
// still exercising every detector path.
var scenarios = map[string]func(t float64, rng *rand.Rand) float64{
	// Rest, then at t=3s a free-fall dip, an impact spike, and rest on
	// the ground.
	"fall": func(t float64, rng *rand.Rand) float64 {
		switch {
		case t >= 3.0 && t < 3.3:
			return 1.5 + rng.NormFloat64()*0.5 // airborne
		case t >= 3.3 && t < 3.4:
			return 28 + rng.NormFloat64()*2 // impact
		default:
			return gravity + rng.NormFloat64()*0.1
		}
	},

	// Gentle 2Hz gait oscillation, never near the impact threshold.
	"walk": func(t float64, rng *rand.Rand) float64 {
		return gravity + 2.5*math.Sin(2*math.Pi*2*t) + rng.NormFloat64()*0.3
	},

	// Sitting down hard at t=3s: a single moderate bump without the
	// free-fall phase, the classic near-miss.
	"sit": func(t float64, rng *rand.Rand) float64 {
		if t >= 3.0 && t < 3.1 {
			return 18 + rng.NormFloat64()
		}
		return gravity + rng.NormFloat64()*0.15
	},

	// Vigorous 20Hz vibration, like a phone on a washing machine. The
	// frequency penalty should keep this below the decision gate.
	"shake": func(t float64, rng *rand.Rand) float64 {
		return gravity + 10*math.Sin(2*math.Pi*20*t) + rng.NormFloat64()*0.5
	},

	"still": func(_ float64, rng *rand.Rand) float64 {
		return gravity + rng.NormFloat64()*0.05
	},
}
