package livesync

import (
	"context"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/gasflow/ops-console/pkg/idempotency"
	"github.com/gasflow/ops-console/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	patches []orders.OrderPatch
	result  bool
}

func (s *recordingSink) ApplyRemoteUpdate(ctx context.Context, p orders.OrderPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, p)
	return s.result
}

type recordingAgents struct {
	patches []agents.Patch
}

func (r *recordingAgents) Apply(p agents.Patch) bool {
	r.patches = append(r.patches, p)
	return true
}

func newDedup(t *testing.T) *idempotency.Manager {
	t.Helper()
	m, err := idempotency.NewManager(idempotency.NewMemoryStore(), time.Minute)
	require.NoError(t, err)
	return m
}

func TestChannelNormalizesEachEventIntoOneCall(t *testing.T) {
	hub := NewHub(nil)
	sink := &recordingSink{result: true}
	ch, err := NewChannel(hub, sink)
	require.NoError(t, err)
	ch.Open()
	defer ch.Close()

	hub.Publish(context.Background(), Message{
		Event: enums.LiveEventOrderStatusUpdated,
		Data:  []byte(`{"id":"ord-1","status":"confirmed"}`),
	})
	require.Len(t, sink.patches, 1)
	assert.Equal(t, "ord-1", sink.patches[0].ID)
}

func TestChannelDropsMalformedAndUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := metrics.NewPushMetrics(reg)
	hub := NewHub(nil)
	sink := &recordingSink{result: true}
	ch, err := NewChannel(hub, sink, WithPushMetrics(pm))
	require.NoError(t, err)
	ch.Open()

	hub.Publish(context.Background(), Message{Event: enums.LiveEventOrderCreated, Data: []byte(`{`)})
	hub.Publish(context.Background(), Message{Event: "order:teleported", Data: []byte(`{}`)})

	assert.Empty(t, sink.patches)
	count, err := testutil.GatherAndCount(reg, "push_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only the subscribed malformed event is counted")
}

func TestChannelDeduplicatesByEventID(t *testing.T) {
	hub := NewHub(nil)
	sink := &recordingSink{result: true}
	ch, err := NewChannel(hub, sink, WithDedup(newDedup(t), "test"))
	require.NoError(t, err)
	ch.Open()

	msg := Message{
		Event:   enums.LiveEventOrderStatusUpdated,
		EventID: "evt-1",
		Data:    []byte(`{"id":"ord-1","status":"confirmed"}`),
	}
	hub.Publish(context.Background(), msg)
	hub.Publish(context.Background(), msg)

	// payload-level ids are honoured too
	inline := Message{Event: enums.LiveEventOrderStatusUpdated, Data: []byte(`{"id":"ord-1","status":"assigned","eventId":"evt-2"}`)}
	hub.Publish(context.Background(), inline)
	hub.Publish(context.Background(), inline)

	assert.Len(t, sink.patches, 2)
}

func TestChannelRoutesAgentEvents(t *testing.T) {
	hub := NewHub(nil)
	sink := &recordingSink{}
	roster := &recordingAgents{}
	ch, err := NewChannel(hub, sink, WithAgentSink(roster))
	require.NoError(t, err)
	ch.Open()

	hub.Publish(context.Background(), Message{Event: enums.LiveEventLegacyAgentStatus, Data: []byte(`{"agentId":"A1","status":"online"}`)})
	require.Len(t, roster.patches, 1)
	assert.Empty(t, sink.patches)
}

func TestChannelCloseUnregistersSymmetrically(t *testing.T) {
	hub := NewHub(nil)
	ch, err := NewChannel(hub, &recordingSink{}, WithAgentSink(&recordingAgents{}))
	require.NoError(t, err)

	ch.Open()
	ch.Open()
	for _, event := range enums.OrderLiveEvents() {
		assert.Equal(t, 1, hub.Subscribers(event), event)
	}
	for _, event := range enums.AgentLiveEvents() {
		assert.Equal(t, 1, hub.Subscribers(event), event)
	}

	ch.Close()
	for _, event := range append(enums.OrderLiveEvents(), enums.AgentLiveEvents()...) {
		assert.Equal(t, 0, hub.Subscribers(event), event)
	}
}

func TestNewChannelRequiresCollaborators(t *testing.T) {
	_, err := NewChannel(nil, &recordingSink{})
	assert.Error(t, err)
	_, err = NewChannel(NewHub(nil), nil)
	assert.Error(t, err)
}

type fakeReceiver struct {
	messages []*pubsub.Message
}

func (f *fakeReceiver) Receive(ctx context.Context, fn func(context.Context, *pubsub.Message)) error {
	for _, m := range f.messages {
		fn(ctx, m)
	}
	return nil
}

func TestPubSubSourcePublishesByAttribute(t *testing.T) {
	hub := NewHub(nil)
	var got []Message
	hub.Subscribe(enums.LiveEventOrderAssigned, func(ctx context.Context, m Message) { got = append(got, m) })

	src := newPubSubSource(&fakeReceiver{messages: []*pubsub.Message{
		{ID: "m-1", Data: []byte(`{"id":"ord-1"}`), Attributes: map[string]string{"event": "order:assigned"}},
		{ID: "m-2", Data: []byte(`{}`), Attributes: map[string]string{}},
	}}, nil)

	require.NoError(t, src.Run(context.Background(), hub))
	require.Len(t, got, 1)
	assert.Equal(t, "m-1", got[0].EventID)
}

func TestParseFrame(t *testing.T) {
	raw, err := EncodeFrame(Message{Event: enums.LiveEventOrderCreated, EventID: "e1", Data: []byte(`{"id":"o1"}`)})
	require.NoError(t, err)

	msg, err := ParseFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, enums.LiveEventOrderCreated, msg.Event)
	assert.Equal(t, "e1", msg.EventID)
	assert.JSONEq(t, `{"id":"o1"}`, string(msg.Data))

	_, err = ParseFrame([]byte(`{"data":{}}`))
	assert.Error(t, err)
	_, err = ParseFrame([]byte(`{"event":"order:created"}`))
	assert.Error(t, err)
}

func TestNewRedisSourceValidates(t *testing.T) {
	_, err := NewRedisSource(nil, "subscribe-orders", nil)
	assert.Error(t, err)
}
