package sensor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

// Replay feeds samples from a recorded trace file, either as fast as
// possible or paced by the recorded timestamps. Paced replay is how a
// recorded fall is rehearsed against the live pipeline.
type Replay struct {
	path  string
	paced bool
	clock timeutil.Clock
}

// NewReplay creates a replay source for the trace at path. With paced
// set, inter-sample gaps from the recording are reproduced on the clock.
func NewReplay(path string, paced bool, clock timeutil.Clock) *Replay {
	return &Replay{path: path, paced: paced, clock: clock}
}

// Play streams the trace into emit until the file ends or the context is
// cancelled.
func (r *Replay) Play(ctx context.Context, emit Emit) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	scan := bufio.NewScanner(f)
	var count int64
	var lastTS int64 = -1
	for scan.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s, ok, err := ParseLine(scan.Text())
		if err != nil {
			monitoring.Debugf("replay %s: %v", r.path, err)
			continue
		}
		if !ok {
			continue
		}

		if r.paced && lastTS >= 0 && s.TimeMS > lastTS {
			gap := time.Duration(s.TimeMS-lastTS) * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(gap):
			}
		}
		lastTS = s.TimeMS
		count++
		emit(s)
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("reading trace: %w", err)
	}
	monitoring.Logf("replay %s: %d samples played", r.path, count)
	return nil
}
