package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/gasflow/ops-console/pkg/metrics"
)

// DefaultWindow is how long a coalescer collects triggers before refreshing.
const DefaultWindow = 500 * time.Millisecond

// Timer is the stoppable handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock schedules deferred work.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Coalescer collapses a burst of refresh triggers into one run. The first
// trigger opens a window; triggers inside the window are absorbed; when it
// closes the refresh runs exactly once.
type Coalescer struct {
	name    string
	window  time.Duration
	clock   Clock
	run     func(ctx context.Context)
	ctx     context.Context
	metrics *metrics.RefreshMetrics

	mu      sync.Mutex
	timer   Timer
	pending bool
	stopped bool
}

type CoalescerOption func(*Coalescer)

func WithClock(c Clock) CoalescerOption {
	return func(co *Coalescer) {
		if c != nil {
			co.clock = c
		}
	}
}

func WithRefreshMetrics(m *metrics.RefreshMetrics) CoalescerOption {
	return func(co *Coalescer) { co.metrics = m }
}

// WithBaseContext sets the context handed to each run.
func WithBaseContext(ctx context.Context) CoalescerOption {
	return func(co *Coalescer) {
		if ctx != nil {
			co.ctx = ctx
		}
	}
}

func NewCoalescer(name string, window time.Duration, run func(ctx context.Context), opts ...CoalescerOption) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Coalescer{
		name:   name,
		window: window,
		clock:  SystemClock,
		run:    run,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Trigger requests a refresh. It never blocks on the refresh itself.
func (c *Coalescer) Trigger() {
	c.metrics.IncTrigger(c.name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.pending {
		return
	}
	c.pending = true
	c.timer = c.clock.AfterFunc(c.window, c.fire)
}

// Pending reports whether a window is open.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Flush runs the pending refresh now, if any.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	if !c.pending || c.stopped {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	c.fire()
}

// Stop cancels any open window. Later triggers are ignored.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.pending = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	if !c.pending || c.stopped {
		c.mu.Unlock()
		return
	}
	c.pending = false
	c.timer = nil
	c.mu.Unlock()

	c.metrics.IncRun(c.name)
	if c.run != nil {
		c.run(c.ctx)
	}
}

// ManualClock is a Clock driven by Advance, for deterministic tests of
// anything built on a Coalescer.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Time
	f       func()
	stopped bool
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{clock: m, at: m.now.Add(d), f: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves time forward and runs every timer that came due, in order,
// on the caller's goroutine.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	var due []*manualTimer
	remaining := m.timers[:0]
	for _, t := range m.timers {
		switch {
		case t.stopped:
		case !t.at.After(now):
			due = append(due, t)
		default:
			remaining = append(remaining, t)
		}
	}
	m.timers = remaining
	m.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Waiting reports how many timers are scheduled and not stopped.
func (m *ManualClock) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}
