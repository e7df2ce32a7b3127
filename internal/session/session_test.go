package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/dashboard"
	"github.com/gasflow/ops-console/internal/gateway"
	"github.com/gasflow/ops-console/internal/livesync"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkStub struct {
	mu      sync.Mutex
	patches []orders.OrderPatch
}

func (s *sinkStub) ApplyRemoteUpdate(ctx context.Context, p orders.OrderPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, p)
	return true
}

func (s *sinkStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

// scriptedSource publishes its messages once and then waits for cancellation.
type scriptedSource struct {
	messages  []livesync.Message
	published chan struct{}
}

func (s *scriptedSource) Run(ctx context.Context, hub *livesync.Hub) error {
	for _, msg := range s.messages {
		hub.Publish(ctx, msg)
	}
	close(s.published)
	<-ctx.Done()
	return ctx.Err()
}

type refresherStub struct{ calls int }

func (r *refresherStub) Refresh(ctx context.Context) error {
	r.calls++
	return errors.New("roster unavailable")
}

type counterStub struct{}

func (counterStub) CountOrders(ctx context.Context, filter orders.Filter, tab enums.StatusTab) (int, error) {
	return 3, nil
}

func newSession(t *testing.T) (*Session, *sinkStub, *scriptedSource, *int) {
	t.Helper()
	sink := &sinkStub{}
	source := &scriptedSource{
		messages: []livesync.Message{{
			Event: enums.LiveEventOrderStatusUpdated,
			Data:  []byte(`{"id":"ord-1","status":"confirmed"}`),
		}},
		published: make(chan struct{}),
	}
	loggedOut := 0
	s, err := New(Deps{
		Source:    source,
		Sink:      sink,
		Roster:    &refresherStub{},
		Dashboard: dashboard.New(counterStub{}),
		OnLogout: func(ctx context.Context) error {
			loggedOut++
			return nil
		},
	})
	require.NoError(t, err)
	return s, sink, source, &loggedOut
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestStartDeliversPushEventsToSink(t *testing.T) {
	s, sink, source, _ := newSession(t)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "second start is a no-op")
	waitClosed(t, source.published)

	assert.Equal(t, 1, sink.count())
	assert.True(t, s.Active())
	assert.Equal(t, 2, s.Hub().Subscribers(enums.LiveEventOrderCreated), "channel and dashboard share the hub")
	assert.Equal(t, 3, s.deps.Dashboard.Summary().Counts[enums.StatusTabAll])

	require.NoError(t, s.Logout(ctx))
	waitClosed(t, s.Done())
}

func TestUnauthorizedResponseLogsOut(t *testing.T) {
	s, _, source, loggedOut := newSession(t)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	waitClosed(t, source.published)

	s.HandleAPIError(ctx, &gateway.APIError{Operation: "listOrders", Status: http.StatusInternalServerError})
	assert.True(t, s.Active(), "only a 401 ends the session")

	hub := s.Hub()
	s.HandleAPIError(ctx, &gateway.APIError{Operation: "listOrders", Status: http.StatusUnauthorized})
	assert.False(t, s.Active())
	assert.Equal(t, 1, *loggedOut)
	assert.Nil(t, s.Hub())
	assert.Zero(t, hub.Subscribers(enums.LiveEventOrderStatusUpdated))
	waitClosed(t, s.Done())

	require.NoError(t, s.Logout(ctx), "logout is idempotent")
	assert.Equal(t, 1, *loggedOut)
}

// sessionRelay forwards gateway failures to a session created after the client.
type sessionRelay struct{ s *Session }

func (r *sessionRelay) HandleAPIError(ctx context.Context, err *gateway.APIError) {
	if r.s != nil {
		r.s.HandleAPIError(ctx, err)
	}
}

func TestStartLogsOutWhenBackendRejectsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	}))
	defer srv.Close()

	relay := &sessionRelay{}
	gw, err := gateway.NewClient(srv.URL,
		gateway.WithTokenSource(gateway.StaticToken("stale")),
		gateway.WithAuthHandler(relay),
		gateway.WithTimeout(time.Second),
	)
	require.NoError(t, err)

	loggedOut := 0
	s, err := New(Deps{
		Sink:      &sinkStub{},
		Roster:    agents.NewRoster(gw, nil),
		Dashboard: dashboard.New(gw),
		OnLogout: func(ctx context.Context) error {
			loggedOut++
			return nil
		},
	})
	require.NoError(t, err)
	relay.s = s

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrRejected)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after a 401")
	}
	assert.False(t, s.Active())
	assert.Nil(t, s.Hub())
	assert.Equal(t, 1, loggedOut)
	waitClosed(t, s.Done())
}

func TestNewRequiresSink(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
