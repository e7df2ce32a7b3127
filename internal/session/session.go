package session

import (
	"context"
	"errors"
	"sync"

	"github.com/gasflow/ops-console/internal/dashboard"
	"github.com/gasflow/ops-console/internal/gateway"
	"github.com/gasflow/ops-console/internal/livesync"
	"github.com/gasflow/ops-console/pkg/idempotency"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/metrics"
	"go.uber.org/multierr"
)

// Refresher reloads data owned by the session on start.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Deps are the collaborators a session wires together. Sink is required.
type Deps struct {
	Source    livesync.Source
	Sink      livesync.Sink
	Agents    livesync.AgentSink
	Roster    Refresher
	Dashboard *dashboard.Dashboard
	Dedup     *idempotency.Manager
	Push      *metrics.PushMetrics
	Logger    *logger.Logger
	// OnLogout runs after teardown, e.g. to drop cached credentials.
	OnLogout func(ctx context.Context) error
}

// Session owns the push connection for one authenticated operator. Every
// subscriber shares the session's hub and none of them own the connection.
type Session struct {
	deps Deps
	logg *logger.Logger

	mu      sync.Mutex
	active  bool
	hub     *livesync.Hub
	channel *livesync.Channel
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(deps Deps) (*Session, error) {
	if deps.Sink == nil {
		return nil, errors.New("session requires an order sink")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Session{deps: deps, logg: logg}, nil
}

// ErrRejected is returned by Start when the backend rejected the operator's
// credentials while the session was loading its initial data.
var ErrRejected = errors.New("session ended during start: credentials rejected")

// Start opens the push connection and subscribes the order list, roster and
// dashboard. Starting an active session is a no-op.
//
// The initial refreshes run without s.mu held: a 401 from either of them
// reaches HandleAPIError, which logs the session out.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}

	hub := livesync.NewHub(s.logg)
	opts := []livesync.ChannelOption{
		livesync.WithChannelLogger(s.logg),
		livesync.WithPushMetrics(s.deps.Push),
	}
	if s.deps.Agents != nil {
		opts = append(opts, livesync.WithAgentSink(s.deps.Agents))
	}
	if s.deps.Dedup != nil {
		opts = append(opts, livesync.WithDedup(s.deps.Dedup, ""))
	}
	channel, err := livesync.NewChannel(hub, s.deps.Sink, opts...)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	channel.Open()
	if s.deps.Dashboard != nil {
		s.deps.Dashboard.Attach(hub)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	if s.deps.Source != nil {
		go func() {
			defer close(done)
			if err := s.deps.Source.Run(runCtx, hub); err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(runCtx, "push source stopped", err)
			}
		}()
	} else {
		close(done)
	}

	s.hub = hub
	s.channel = channel
	s.cancel = cancel
	s.done = done
	s.active = true
	s.mu.Unlock()

	if s.deps.Roster != nil {
		if err := s.deps.Roster.Refresh(ctx); err != nil {
			s.logg.Warn(ctx, "agent roster refresh failed: "+err.Error())
		}
	}
	if s.deps.Dashboard != nil && s.Active() {
		if err := s.deps.Dashboard.Refresh(ctx); err != nil {
			s.logg.Warn(ctx, "dashboard refresh failed: "+err.Error())
		}
	}
	if !s.Active() {
		return ErrRejected
	}
	s.logg.Info(ctx, "operator session started")
	return nil
}

// Logout tears down what Start built, in reverse order. It does not wait for
// the source to drain, so it is safe to call from inside a push handler.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	hub, channel, cancel := s.hub, s.channel, s.cancel
	s.hub, s.channel, s.cancel = nil, nil, nil
	s.mu.Unlock()

	cancel()
	if s.deps.Dashboard != nil {
		s.deps.Dashboard.Detach()
	}
	channel.Close()

	err := hub.Close()
	if s.deps.OnLogout != nil {
		err = multierr.Append(err, s.deps.OnLogout(ctx))
	}
	s.logg.Info(ctx, "operator session ended")
	return err
}

// Done is closed once the push source has stopped. It is nil before the first
// Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Hub returns the live hub of the active session, or nil.
func (s *Session) Hub() *livesync.Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub
}

// HandleAPIError ends the session on a 401. Other failures are reported by
// whichever action hit them.
func (s *Session) HandleAPIError(ctx context.Context, apiErr *gateway.APIError) {
	if apiErr == nil || !apiErr.Unauthorized() {
		return
	}
	s.logg.Warn(ctx, "backend rejected credentials, logging out")
	if err := s.Logout(ctx); err != nil {
		s.logg.Error(ctx, "logout failed", err)
	}
}

var _ gateway.AuthHandler = (*Session)(nil)
