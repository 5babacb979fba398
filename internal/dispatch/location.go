package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

// DefaultLocationTimeout bounds how long an escalation waits for a fresh
// position fix before falling back to the last known one.
const DefaultLocationTimeout = 30 * time.Second

// LocationProvider produces position fixes. RequestFix may block until a
// fix is acquired or the context is done.
type LocationProvider interface {
	RequestFix(ctx context.Context) (Location, error)
}

// LocationProviderFunc adapts a function to the LocationProvider interface.
type LocationProviderFunc func(ctx context.Context) (Location, error)

func (f LocationProviderFunc) RequestFix(ctx context.Context) (Location, error) { return f(ctx) }

// LocationResolver wraps a provider with a timeout and a last-known-fix
// cache. Escalation must never stall on GPS: past the timeout the stale
// fix is served, and with no fix at all the alert goes out without one.
type LocationResolver struct {
	provider LocationProvider
	clock    timeutil.Clock
	timeout  time.Duration

	mu        sync.Mutex
	lastKnown *Location
}

// NewLocationResolver creates a resolver. A zero timeout picks the
// default; the provider may be nil, in which case Resolve only ever
// serves the seeded last-known fix.
func NewLocationResolver(provider LocationProvider, clock timeutil.Clock, timeout time.Duration) *LocationResolver {
	if timeout <= 0 {
		timeout = DefaultLocationTimeout
	}
	return &LocationResolver{provider: provider, clock: clock, timeout: timeout}
}

// Seed installs a last-known fix, marked as stale when later served.
func (r *LocationResolver) Seed(loc Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc.LastKnown = true
	r.lastKnown = &loc
}

// Resolve returns the best available fix within the resolver's timeout,
// or nil when none exists. A fresh fix refreshes the last-known cache.
func (r *LocationResolver) Resolve(ctx context.Context) *Location {
	if r.provider == nil {
		return r.fallback()
	}

	type fix struct {
		loc Location
		err error
	}
	ch := make(chan fix, 1)
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		loc, err := r.provider.RequestFix(reqCtx)
		ch <- fix{loc, err}
	}()

	timer := r.clock.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case f := <-ch:
		if f.err != nil {
			monitoring.Logf("location: fix failed: %v", f.err)
			return r.fallback()
		}
		r.mu.Lock()
		cached := f.loc
		cached.LastKnown = true
		r.lastKnown = &cached
		r.mu.Unlock()
		loc := f.loc
		return &loc
	case <-timer.C():
		monitoring.Logf("location: no fix within %s, using last known", r.timeout)
		return r.fallback()
	case <-ctx.Done():
		return r.fallback()
	}
}

func (r *LocationResolver) fallback() *Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastKnown == nil {
		return nil
	}
	loc := *r.lastKnown
	return &loc
}
