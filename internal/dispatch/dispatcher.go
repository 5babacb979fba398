package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/session"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

// ErrNobodyReached is returned when every contact failed on every
// channel. The session still completes; the error is surfaced for
// logging and the report records the failures.
var ErrNobodyReached = errors.New("no emergency contact could be reached")

// Options configures a Dispatcher.
type Options struct {
	UserName string
	Contacts []Contact
	// DefaultOrder lists channel names in delivery priority for contacts
	// without a preference. Empty means the order channels were supplied.
	DefaultOrder    []string
	AutoCallPrimary bool
	Recorder        DeliveryRecorder
}

// Dispatcher implements session.Activator: on activation it resolves a
// location, composes the alert, and notifies every contact concurrently.
// Per contact, channels are tried in priority order until one delivers.
type Dispatcher struct {
	channels map[string]Channel
	order    []string
	voice    Channel
	location *LocationResolver
	clock    timeutil.Clock
	opts     Options

	mu         sync.Mutex
	lastReport *Report
}

// NewDispatcher creates a dispatcher over the given message channels.
// The voice channel is separate from the fan-out; it rings the primary
// contact when AutoCallPrimary is set. Either may be nil/empty for
// reduced deployments.
func NewDispatcher(channels []Channel, voice Channel, location *LocationResolver, clock timeutil.Clock, opts Options) *Dispatcher {
	d := &Dispatcher{
		channels: make(map[string]Channel, len(channels)),
		voice:    voice,
		location: location,
		clock:    clock,
		opts:     opts,
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
		d.order = append(d.order, ch.Name())
	}
	if len(opts.DefaultOrder) > 0 {
		d.order = opts.DefaultOrder
	}
	return d
}

// Activate runs one escalation. It blocks until every contact has been
// attempted and returns ErrNobodyReached when all of them failed.
func (d *Dispatcher) Activate(ctx context.Context, s session.Session) error {
	started := d.clock.Now()
	monitoring.Logf("dispatch: escalating session %s to %d contacts", s.ID, len(d.opts.Contacts))

	var loc *Location
	if d.location != nil {
		loc = d.location.Resolve(ctx)
	}
	msg := ComposeMessage(d.opts.UserName, loc, d.clock.Now())

	type outcome struct {
		results []ChannelResult
		reached bool
	}
	outcomes := make(chan outcome, len(d.opts.Contacts))
	var wg sync.WaitGroup
	for _, c := range d.opts.Contacts {
		wg.Add(1)
		go func(c Contact) {
			defer wg.Done()
			results, reached := d.notifyContact(ctx, c, msg)
			outcomes <- outcome{results, reached}
		}(c)
	}
	wg.Wait()
	close(outcomes)

	report := Report{
		SessionID: s.ID,
		StartedAt: started,
		Location:  loc,
	}
	for o := range outcomes {
		report.Results = append(report.Results, o.results...)
		if o.reached {
			report.ContactsReached++
		}
	}

	if d.opts.AutoCallPrimary && d.voice != nil && len(d.opts.Contacts) > 0 {
		report.Results = append(report.Results, d.callPrimary(ctx, msg, &report))
	}
	report.FinishedAt = d.clock.Now()

	d.record(s.ID, report.Results)
	d.mu.Lock()
	d.lastReport = &report
	d.mu.Unlock()

	monitoring.Logf("dispatch: session %s reached %d/%d contacts in %s",
		s.ID, report.ContactsReached, len(d.opts.Contacts), report.FinishedAt.Sub(report.StartedAt))
	if report.ContactsReached == 0 && len(d.opts.Contacts) > 0 {
		return ErrNobodyReached
	}
	return nil
}

// notifyContact works through the contact's channel order until one
// delivery succeeds, recording every attempt.
func (d *Dispatcher) notifyContact(ctx context.Context, c Contact, msg string) ([]ChannelResult, bool) {
	order := c.PreferredChannels
	if len(order) == 0 {
		order = d.order
	}

	var results []ChannelResult
	for _, name := range order {
		ch, ok := d.channels[name]
		if !ok {
			monitoring.Logf("dispatch: contact %s prefers unknown channel %q, skipping", c.Name, name)
			continue
		}
		start := d.clock.Now()
		err := ch.Send(ctx, c, msg)
		r := ChannelResult{
			ContactID: c.ID,
			Contact:   c.Name,
			Channel:   name,
			Delivered: err == nil,
			Elapsed:   d.clock.Since(start),
		}
		if err != nil {
			r.Error = err.Error()
			monitoring.Logf("dispatch: %s via %s failed: %v", c.Name, name, err)
			results = append(results, r)
			continue
		}
		monitoring.Logf("dispatch: %s reached via %s", c.Name, name)
		return append(results, r), true
	}
	return results, false
}

// callPrimary rings the primary contact (or the first contact when none
// is marked primary) through the voice channel.
func (d *Dispatcher) callPrimary(ctx context.Context, msg string, report *Report) ChannelResult {
	target := d.primaryContact()
	start := d.clock.Now()
	err := d.voice.Send(ctx, target, msg)
	r := ChannelResult{
		ContactID: target.ID,
		Contact:   target.Name,
		Channel:   d.voice.Name(),
		Delivered: err == nil,
		Elapsed:   d.clock.Since(start),
	}
	if err != nil {
		r.Error = err.Error()
		monitoring.Logf("dispatch: auto-call to %s failed: %v", target.Name, err)
	} else {
		report.CallPlaced = true
		monitoring.Logf("dispatch: auto-call placed to %s", target.Name)
	}
	return r
}

func (d *Dispatcher) primaryContact() Contact {
	for _, c := range d.opts.Contacts {
		if c.Primary {
			return c
		}
	}
	return d.opts.Contacts[0]
}

func (d *Dispatcher) record(sessionID string, results []ChannelResult) {
	if d.opts.Recorder == nil {
		return
	}
	for _, r := range results {
		if err := d.opts.Recorder.RecordDelivery(sessionID, r); err != nil {
			monitoring.Logf("dispatch: recording delivery for %s failed: %v", r.Contact, err)
		}
	}
}

// LastReport returns a copy of the most recent escalation report.
func (d *Dispatcher) LastReport() (Report, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastReport == nil {
		return Report{}, false
	}
	r := *d.lastReport
	return r, true
}

// String implements fmt.Stringer for startup logging.
func (d *Dispatcher) String() string {
	return fmt.Sprintf("dispatcher(channels=%v contacts=%d autocall=%v)", d.order, len(d.opts.Contacts), d.opts.AutoCallPrimary)
}
