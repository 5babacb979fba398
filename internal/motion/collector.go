package motion

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

// DefaultEvaluateInterval is how often the collector checks whether a full
// window has accumulated. Decoupling evaluation from sample arrival bounds
// the CPU cost on the hot path.
const DefaultEvaluateInterval = 100 * time.Millisecond

// Sink consumes completed windows. Consume runs on the collector's flush
// worker, never on the sample-arrival path.
type Sink interface {
	Consume(ctx context.Context, w Window) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, w Window) error

func (f SinkFunc) Consume(ctx context.Context, w Window) error { return f(ctx, w) }

// CollectorStats is a point-in-time snapshot of collector counters.
type CollectorStats struct {
	Received int64 `json:"received"`
	Dropped  int64 `json:"dropped"`
	Windows  int64 `json:"windows"`
}

// Collector is the single owner of the window buffer. Samples arrive on a
// buffered channel (Offer never blocks; overflow is counted and dropped),
// a periodic tick evaluates the buffer, and completed windows are handed
// to the sink on a separate flush worker.
type Collector struct {
	buf      *WindowBuffer
	sink     Sink
	clock    timeutil.Clock
	interval time.Duration

	sampleCh chan Sample
	flushCh  chan Window
	stopCh   chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup

	stats struct {
		mu       sync.Mutex
		received int64
		dropped  int64
		windows  int64
	}
}

// NewCollector creates a collector around the given buffer and sink. Call
// Start to begin processing.
func NewCollector(buf *WindowBuffer, sink Sink, clock timeutil.Clock, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultEvaluateInterval
	}
	return &Collector{
		buf:      buf,
		sink:     sink,
		clock:    clock,
		interval: interval,
		sampleCh: make(chan Sample, 256),
		flushCh:  make(chan Window, 16),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the buffer owner and flush worker goroutines.
func (c *Collector) Start() {
	c.done.Add(2)
	go c.run()
	go c.flushWorker()
}

// Offer enqueues a sample for processing. It never blocks: when the intake
// channel is full the sample is dropped and counted.
func (c *Collector) Offer(s Sample) {
	select {
	case c.sampleCh <- s:
		c.stats.mu.Lock()
		c.stats.received++
		c.stats.mu.Unlock()
	default:
		c.stats.mu.Lock()
		c.stats.dropped++
		c.stats.mu.Unlock()
	}
}

// Stop shuts down both workers. Pending windows in the flush channel are
// abandoned; sessions in flight are unaffected.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.done.Wait()
	s := c.Stats()
	monitoring.Logf("collector stopped: received=%d dropped=%d windows=%d",
		s.Received, s.Dropped, s.Windows)
}

// Stats returns a snapshot of the collector counters.
func (c *Collector) Stats() CollectorStats {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return CollectorStats{
		Received: c.stats.received,
		Dropped:  c.stats.dropped,
		Windows:  c.stats.windows,
	}
}

// run owns the window buffer: it drains the intake channel and, on each
// evaluation tick, snapshots a completed window into the flush channel.
func (c *Collector) run() {
	defer c.done.Done()
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case s := <-c.sampleCh:
			c.buf.Append(s)

		case <-ticker.C():
			// Drain whatever arrived since the last tick before deciding
			// whether the window is ready.
			for drained := false; !drained; {
				select {
				case s := <-c.sampleCh:
					c.buf.Append(s)
				default:
					drained = true
				}
			}
			w, ok := c.buf.Snapshot()
			if !ok {
				continue
			}
			select {
			case c.flushCh <- w:
				c.stats.mu.Lock()
				c.stats.windows++
				c.stats.mu.Unlock()
			default:
				monitoring.Logf("collector: flush channel full, window dropped")
				c.stats.mu.Lock()
				c.stats.dropped++
				c.stats.mu.Unlock()
			}

		case <-c.stopCh:
			return
		}
	}
}

// flushWorker feeds completed windows to the sink off the sample path.
func (c *Collector) flushWorker() {
	defer c.done.Done()
	for {
		select {
		case w := <-c.flushCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.sink.Consume(ctx, w); err != nil {
				monitoring.Logf("collector: sink failed: %v", err)
			}
			cancel()
		case <-c.stopCh:
			return
		}
	}
}
