package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/coordinator"
	"github.com/gasflow/ops-console/internal/livesync"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const queueDashboard = "dashboard"

// Counter counts orders for one status tab.
type Counter interface {
	CountOrders(ctx context.Context, filter orders.Filter, tab enums.StatusTab) (int, error)
}

// AgentDirectory reports agents currently online.
type AgentDirectory interface {
	Online() []agents.Agent
}

// Summary is the aggregate view shown on the dashboard.
type Summary struct {
	Counts       map[enums.StatusTab]int `json:"counts"`
	OnlineAgents int                     `json:"onlineAgents"`
	RefreshedAt  *time.Time              `json:"refreshedAt,omitempty"`
}

// Dashboard keeps per-tab order counts fresh. Live order events only schedule
// a refresh; bursts inside the window collapse into one round of counts.
type Dashboard struct {
	counter Counter
	agents  AgentDirectory
	logg    *logger.Logger
	clock   coordinator.Clock
	refresh *coordinator.Coalescer

	mu          sync.Mutex
	counts      map[enums.StatusTab]int
	refreshedAt *time.Time
	subs        []livesync.Subscription
	bus         livesync.Bus
}

type options struct {
	agents  AgentDirectory
	logg    *logger.Logger
	window  time.Duration
	clock   coordinator.Clock
	metrics *metrics.RefreshMetrics
	ctx     context.Context
}

type Option func(*options)

func WithAgents(dir AgentDirectory) Option {
	return func(o *options) { o.agents = dir }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logg = l }
}

// WithWindow overrides the coalescing window and the clock driving it.
func WithWindow(window time.Duration, clock coordinator.Clock) Option {
	return func(o *options) {
		o.window = window
		if clock != nil {
			o.clock = clock
		}
	}
}

func WithMetrics(m *metrics.RefreshMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithContext sets the context coalesced refreshes run under.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

func New(counter Counter, opts ...Option) *Dashboard {
	o := options{
		logg:   logger.Nop(),
		window: coordinator.DefaultWindow,
		clock:  coordinator.SystemClock,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logg == nil {
		o.logg = logger.Nop()
	}

	d := &Dashboard{
		counter: counter,
		agents:  o.agents,
		logg:    o.logg,
		clock:   o.clock,
		counts:  make(map[enums.StatusTab]int),
	}
	d.refresh = coordinator.NewCoalescer(queueDashboard, o.window, d.refreshQuietly,
		coordinator.WithClock(o.clock),
		coordinator.WithRefreshMetrics(o.metrics),
		coordinator.WithBaseContext(o.ctx),
	)
	return d
}

// Attach subscribes to every order event on bus. Attaching again moves the
// subscriptions to the new bus.
func (d *Dashboard) Attach(bus livesync.Bus) {
	d.Detach()
	if bus == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.bus = bus
	for _, event := range enums.OrderLiveEvents() {
		d.subs = append(d.subs, bus.Subscribe(event, d.onEvent))
	}
}

// Detach removes the subscriptions Attach registered.
func (d *Dashboard) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus != nil {
		for _, sub := range d.subs {
			d.bus.Unsubscribe(sub)
		}
	}
	d.subs = nil
	d.bus = nil
}

func (d *Dashboard) onEvent(ctx context.Context, msg livesync.Message) {
	d.refresh.Trigger()
}

// Refresh counts every tab now. Counts are replaced only when every tab
// succeeded.
func (d *Dashboard) Refresh(ctx context.Context) error {
	tabs := enums.StatusTabs()
	results := make([]int, len(tabs))
	g, gctx := errgroup.WithContext(ctx)
	for i, tab := range tabs {
		g.Go(func() error {
			n, err := d.counter.CountOrders(gctx, orders.Filter{}, tab)
			if err != nil {
				return err
			}
			results[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	counts := make(map[enums.StatusTab]int, len(tabs))
	for i, tab := range tabs {
		counts[tab] = results[i]
	}
	now := d.clock.Now()

	d.mu.Lock()
	d.counts = counts
	d.refreshedAt = &now
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) refreshQuietly(ctx context.Context) {
	if err := d.Refresh(ctx); err != nil {
		d.logg.Warn(ctx, "dashboard refresh failed: "+err.Error())
	}
}

// Pending reports whether a coalesced refresh is scheduled.
func (d *Dashboard) Pending() bool {
	return d.refresh.Pending()
}

func (d *Dashboard) Summary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := Summary{Counts: make(map[enums.StatusTab]int, len(d.counts))}
	for tab, n := range d.counts {
		out.Counts[tab] = n
	}
	if d.refreshedAt != nil {
		at := *d.refreshedAt
		out.RefreshedAt = &at
	}
	if d.agents != nil {
		out.OnlineAgents = len(d.agents.Online())
	}
	return out
}

// Close detaches from the bus and drops any scheduled refresh.
func (d *Dashboard) Close() {
	d.Detach()
	d.refresh.Stop()
}
