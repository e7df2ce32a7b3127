package dialogs

import (
	"context"

	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/assignments"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/gasflow/ops-console/pkg/logger"
)

// Gateway is the backend surface the assign saga drives directly.
type Gateway interface {
	AssignAgent(ctx context.Context, id, agentID string) (*orders.Order, error)
	SetStatus(ctx context.Context, id string, status enums.OrderStatus, notes string) (*orders.Order, error)
}

// Rows is the coordinator surface: row locks, validated status changes and
// the refresh that follows a write.
type Rows interface {
	RunRowAction(ctx context.Context, id string, action func(ctx context.Context) error, success string) error
	MutateStatus(ctx context.Context, order orders.Order, target enums.OrderStatus, notes string) error
	RefreshAfterMutation(ctx context.Context)
}

// Directory lists agents available for assignment.
type Directory interface {
	Online() []agents.Agent
	Get(id string) (agents.Agent, bool)
}

// CompensationStore persists assignments that never advanced.
type CompensationStore interface {
	Record(ctx context.Context, e assignments.Entry) (*assignments.PendingAdvance, error)
	Resolve(ctx context.Context, orderID string) (bool, error)
	ListOpen(ctx context.Context, limit int) ([]assignments.PendingAdvance, error)
}

// Service backs the console's action dialogs. Dialogs never touch the working
// set directly; every change goes through Rows.
type Service struct {
	gw     Gateway
	rows   Rows
	agents Directory
	store  CompensationStore
	logg   *logger.Logger
}

type Option func(*Service)

// WithCompensationStore enables persisted saga compensation.
func WithCompensationStore(s CompensationStore) Option {
	return func(svc *Service) { svc.store = s }
}

func WithLogger(l *logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logg = l
		}
	}
}

func NewService(gw Gateway, rows Rows, dir Directory, opts ...Option) *Service {
	s := &Service{
		gw:     gw,
		rows:   rows,
		agents: dir,
		logg:   logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}
