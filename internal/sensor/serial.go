package sensor

import (
	"bufio"
	"context"

	"go.bug.st/serial"

	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/motion"
)

// Emit receives every successfully parsed sample. Implementations must
// not block; the collector's Offer is the intended target.
type Emit func(s motion.Sample)

// IMUPort reads IMU trace lines from a serial-attached sensor board.
type IMUPort struct {
	serial.Port
	name string
}

// NewIMUPort opens the serial port at the given baud rate.
func NewIMUPort(portName string, baud int) (*IMUPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}
	return &IMUPort{port, portName}, nil
}

// Monitor reads lines from the port until the context is cancelled or
// the port fails, emitting every parsed sample. Malformed lines are
// counted and skipped; a sensor board mid-reset emits garbage for a
// moment and that must not kill the pipeline.
func (p *IMUPort) Monitor(ctx context.Context, emit Emit) error {
	defer p.Close()
	scan := bufio.NewScanner(p.Port)

	var parsed, malformed int64
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("sensor %s: stopping (%d samples, %d malformed lines)", p.name, parsed, malformed)
			return nil
		default:
			if !scan.Scan() {
				monitoring.Logf("sensor %s: port closed (%d samples, %d malformed lines)", p.name, parsed, malformed)
				return scan.Err()
			}
			s, ok, err := ParseLine(scan.Text())
			if err != nil {
				malformed++
				monitoring.Debugf("sensor %s: %v", p.name, err)
				continue
			}
			if !ok {
				continue
			}
			parsed++
			emit(s)
		}
	}
}
