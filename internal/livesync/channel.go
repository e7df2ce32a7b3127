package livesync

import (
	"context"
	"errors"
	"sync"

	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/gasflow/ops-console/pkg/idempotency"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/metrics"
)

const ordersConsumer = "console-orders"

// Sink receives normalized order patches. It reports whether the patch changed
// anything it holds.
type Sink interface {
	ApplyRemoteUpdate(ctx context.Context, patch orders.OrderPatch) bool
}

// AgentSink receives agent presence changes.
type AgentSink interface {
	Apply(p agents.Patch) bool
}

// Channel turns bus events into sink calls. It carries no transition rules.
type Channel struct {
	bus       Bus
	decoder   *Decoder
	sink      Sink
	agentSink AgentSink
	dedup     *idempotency.Manager
	metrics   *metrics.PushMetrics
	logg      *logger.Logger
	consumer  string

	mu   sync.Mutex
	subs []Subscription
}

type ChannelOption func(*Channel)

func WithAgentSink(s AgentSink) ChannelOption {
	return func(c *Channel) { c.agentSink = s }
}

// WithDedup drops events whose id was already seen by consumer.
func WithDedup(m *idempotency.Manager, consumer string) ChannelOption {
	return func(c *Channel) {
		c.dedup = m
		if consumer != "" {
			c.consumer = consumer
		}
	}
}

func WithPushMetrics(m *metrics.PushMetrics) ChannelOption {
	return func(c *Channel) { c.metrics = m }
}

func WithChannelLogger(l *logger.Logger) ChannelOption {
	return func(c *Channel) {
		if l != nil {
			c.logg = l
		}
	}
}

func NewChannel(bus Bus, sink Sink, opts ...ChannelOption) (*Channel, error) {
	if bus == nil {
		return nil, errors.New("live bus required")
	}
	if sink == nil {
		return nil, errors.New("order sink required")
	}
	c := &Channel{
		bus:      bus,
		decoder:  NewDecoder(),
		sink:     sink,
		logg:     logger.Nop(),
		consumer: ordersConsumer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Open registers a handler for every order event, plus agent events when an
// agent sink is set. Calling Open twice is a no-op.
func (c *Channel) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) > 0 {
		return
	}
	for _, event := range enums.OrderLiveEvents() {
		c.subs = append(c.subs, c.bus.Subscribe(event, c.handle))
	}
	if c.agentSink != nil {
		for _, event := range enums.AgentLiveEvents() {
			c.subs = append(c.subs, c.bus.Subscribe(event, c.handle))
		}
	}
}

// Close removes exactly the handlers Open registered.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		c.bus.Unsubscribe(sub)
	}
	c.subs = nil
}

func (c *Channel) handle(ctx context.Context, msg Message) {
	event := msg.Event.String()
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event":    event,
		"event_id": msg.EventID,
	})

	decoded, err := c.decoder.Decode(msg.Event, msg.Data)
	if err != nil {
		c.metrics.Inc(event, metrics.OutcomeInvalid)
		c.logg.Warn(logCtx, "dropping malformed live event: "+err.Error())
		return
	}

	eventID := msg.EventID
	if eventID == "" {
		eventID = decoded.EventID
	}
	if eventID != "" && c.dedup != nil {
		seen, err := c.dedup.CheckAndMarkProcessed(ctx, c.consumer, eventID)
		if err != nil {
			c.logg.Error(logCtx, "idempotency check failed", err)
		} else if seen {
			c.metrics.Inc(event, metrics.OutcomeDuplicate)
			c.logg.Debug(logCtx, "duplicate live event dropped")
			return
		}
	}

	applied := false
	switch {
	case decoded.Order != nil:
		applied = c.sink.ApplyRemoteUpdate(ctx, *decoded.Order)
	case decoded.Agent != nil && c.agentSink != nil:
		applied = c.agentSink.Apply(*decoded.Agent)
	}

	if applied {
		c.metrics.Inc(event, metrics.OutcomeApplied)
		return
	}
	c.metrics.Inc(event, metrics.OutcomeDropped)
	c.logg.Debug(logCtx, "live event did not change the view")
}
