package notices

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/logger"
)

// Level is the severity of an operator notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const (
	DefaultHistory = 50
	genericFailure = "Something went wrong. Please try again."
)

// Notice is a transient message shown to the operator.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
	// Retryable marks failures the operator may simply repeat.
	Retryable bool      `json:"retryable,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier publishes operator notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Board keeps the most recent notices and logs every one of them.
type Board struct {
	logg *logger.Logger
	now  func() time.Time

	mu    sync.Mutex
	ring  []Notice
	start int
	size  int
}

func NewBoard(capacity int, logg *logger.Logger) *Board {
	if capacity <= 0 {
		capacity = DefaultHistory
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Board{
		logg: logg,
		now:  time.Now,
		ring: make([]Notice, capacity),
	}
}

func (b *Board) Notify(ctx context.Context, n Notice) {
	if n.At.IsZero() {
		n.At = b.now().UTC()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}

	b.mu.Lock()
	idx := (b.start + b.size) % len(b.ring)
	b.ring[idx] = n
	if b.size < len(b.ring) {
		b.size++
	} else {
		b.start = (b.start + 1) % len(b.ring)
	}
	b.mu.Unlock()

	logCtx := ctx
	if n.OrderID != "" {
		logCtx = b.logg.WithOrderID(ctx, n.OrderID)
	}
	switch n.Level {
	case LevelError, LevelWarning:
		b.logg.Warn(logCtx, "notice: "+n.Message)
	default:
		b.logg.Info(logCtx, "notice: "+n.Message)
	}
}

// Recent returns the retained notices, newest first.
func (b *Board) Recent() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notice, 0, b.size)
	for i := b.size - 1; i >= 0; i-- {
		out = append(out, b.ring[(b.start+i)%len(b.ring)])
	}
	return out
}

// Discard drops notices.
type Discard struct{}

func (Discard) Notify(context.Context, Notice) {}

// FailureMessage returns what the operator should read for err: the typed
// message when there is one, else a generic fallback.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return genericFailure
}

// Failure builds an error notice for err.
func Failure(orderID string, err error) Notice {
	return Notice{Level: LevelError, Message: FailureMessage(err), OrderID: orderID, Retryable: pkgerrors.Retryable(err)}
}
