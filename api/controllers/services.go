package controllers

import (
	"context"

	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/assignments"
	"github.com/gasflow/ops-console/internal/coordinator"
	"github.com/gasflow/ops-console/internal/dashboard"
	"github.com/gasflow/ops-console/internal/dialogs"
	"github.com/gasflow/ops-console/internal/notices"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
)

// OrderView is the coordinator surface the order endpoints drive.
type OrderView interface {
	LoadPage(ctx context.Context, filter orders.Filter, page int) (coordinator.LoadResult, error)
	RefreshStatusCounts(ctx context.Context) error
	Snapshot() coordinator.View
	ActiveFilter() orders.Filter
	Resolve(ctx context.Context, id string) (orders.Order, error)
	MutateStatus(ctx context.Context, order orders.Order, target enums.OrderStatus, notes string) error
	SetPaymentReceived(ctx context.Context, order orders.Order, received bool, notes string) error
}

// ActionDialogs backs the assign, cancel and return dialogs.
type ActionDialogs interface {
	OpenAssign(order orders.Order) (dialogs.AssignDialog, error)
	Assign(ctx context.Context, order orders.Order, agentID string) (dialogs.AssignOutcome, error)
	RetryAdvance(ctx context.Context, order orders.Order) (dialogs.AssignOutcome, error)
	PendingAdvances(ctx context.Context, limit int) ([]assignments.PendingAdvance, error)
	OpenCancel(order orders.Order) (dialogs.ReasonDialog, error)
	Cancel(ctx context.Context, order orders.Order, form dialogs.ReasonForm) error
	OpenReturn(order orders.Order) (dialogs.ReasonDialog, error)
	Return(ctx context.Context, order orders.Order, form dialogs.ReasonForm) error
	ReviewReturn(ctx context.Context, order orders.Order, approve bool, note string) error
}

type Exporter interface {
	ExportOrders(ctx context.Context, filter orders.Filter) ([]byte, error)
}

type OnlineAgents interface {
	Online() []agents.Agent
}

type DashboardReader interface {
	Summary() dashboard.Summary
}

type NoticeReader interface {
	Recent() []notices.Notice
}
