package motion

// Default window geometry: one second of samples at the nominal rate,
// with 50% overlap between consecutive windows.
const (
	DefaultWindowSize = 50
	DefaultOverlap    = 25
)

// WindowBuffer accumulates samples until a full window is available, then
// hands out an immutable snapshot and retains the newest overlap samples
// so consecutive windows share context. Append never blocks and never
// fails. The buffer is not safe for concurrent use; the Collector is its
// single owner.
type WindowBuffer struct {
	size    int
	overlap int
	samples []Sample
}

// NewWindowBuffer creates a buffer with the given window size and overlap
// retention. Nonsensical values fall back to the defaults.
func NewWindowBuffer(size, overlap int) *WindowBuffer {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 2
	}
	return &WindowBuffer{
		size:    size,
		overlap: overlap,
		samples: make([]Sample, 0, size),
	}
}

// Append adds a sample at the tail. Out-of-order timestamps are accepted
// as-is.
func (b *WindowBuffer) Append(s Sample) {
	b.samples = append(b.samples, s)
	// Upstream can outpace the evaluation tick; cap growth at one window
	// so a stalled consumer cannot grow the buffer without bound.
	if len(b.samples) > b.size {
		b.samples = b.samples[len(b.samples)-b.size:]
	}
}

// Len returns the number of buffered samples.
func (b *WindowBuffer) Len() int { return len(b.samples) }

// Ready reports whether a full window has accumulated.
func (b *WindowBuffer) Ready() bool { return len(b.samples) >= b.size }

// Snapshot returns a copy of the current window and evicts the oldest
// size−overlap samples, leaving exactly overlap samples behind. It returns
// false when the buffer is not yet full.
func (b *WindowBuffer) Snapshot() (Window, bool) {
	if !b.Ready() {
		return Window{}, false
	}
	out := make([]Sample, b.size)
	copy(out, b.samples[len(b.samples)-b.size:])

	retained := make([]Sample, b.overlap, b.size)
	copy(retained, b.samples[len(b.samples)-b.overlap:])
	b.samples = retained

	return Window{Samples: out}, true
}
