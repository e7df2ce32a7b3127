package dialogs

import (
	"context"
	"strings"

	"github.com/gasflow/ops-console/internal/lifecycle"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
)

// OtherReason lets the operator type a free-text reason.
const OtherReason = "Other"

var cancelReasons = []string{
	"Customer requested cancellation",
	"Item out of stock",
	"Customer unreachable",
	"Duplicate order",
	"Delivery address out of range",
}

var returnReasons = []string{
	"Leaking cylinder",
	"Damaged cylinder",
	"Wrong size delivered",
	"Customer refused delivery",
}

func CancelReasons() []string {
	return withOther(cancelReasons)
}

func ReturnReasons() []string {
	return withOther(returnReasons)
}

func withOther(list []string) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, list...)
	return append(out, OtherReason)
}

// ReasonForm is the operator's selection in a cancel or return dialog.
type ReasonForm struct {
	Selected string `json:"reason"`
	Other    string `json:"otherReason,omitempty"`
}

// Resolve returns the reason text to send, or a validation error while the
// form cannot be confirmed.
func (f ReasonForm) Resolve(allowed []string) (string, error) {
	selected := strings.TrimSpace(f.Selected)
	if selected == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "select a reason")
	}
	if selected == OtherReason {
		other := strings.TrimSpace(f.Other)
		if other == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "describe the reason")
		}
		return other, nil
	}
	for _, r := range allowed {
		if r == selected {
			return selected, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown reason").
		WithDetails(map[string]any{"reason": selected})
}

// ReasonDialog is the state of a cancel or return dialog.
type ReasonDialog struct {
	Order   orders.Order      `json:"order"`
	Target  enums.OrderStatus `json:"target"`
	Reasons []string          `json:"reasons"`
}

func (s *Service) OpenCancel(order orders.Order) (ReasonDialog, error) {
	if err := offered(order, enums.OrderStatusCancelled); err != nil {
		return ReasonDialog{}, err
	}
	return ReasonDialog{Order: order, Target: enums.OrderStatusCancelled, Reasons: CancelReasons()}, nil
}

// Cancel cancels the order with the selected reason.
func (s *Service) Cancel(ctx context.Context, order orders.Order, form ReasonForm) error {
	reason, err := form.Resolve(cancelReasons)
	if err != nil {
		return err
	}
	return s.rows.MutateStatus(ctx, order, enums.OrderStatusCancelled, reason)
}

// OpenReturn is only offered for delivered orders.
func (s *Service) OpenReturn(order orders.Order) (ReasonDialog, error) {
	if err := offered(order, enums.OrderStatusReturned); err != nil {
		return ReasonDialog{}, err
	}
	return ReasonDialog{Order: order, Target: enums.OrderStatusReturned, Reasons: ReturnReasons()}, nil
}

func (s *Service) Return(ctx context.Context, order orders.Order, form ReasonForm) error {
	if err := offered(order, enums.OrderStatusReturned); err != nil {
		return err
	}
	reason, err := form.Resolve(returnReasons)
	if err != nil {
		return err
	}
	return s.rows.MutateStatus(ctx, order, enums.OrderStatusReturned, reason)
}

// ReviewReturn approves or rejects a returned order.
func (s *Service) ReviewReturn(ctx context.Context, order orders.Order, approve bool, note string) error {
	target := enums.OrderStatusReturnRejected
	if approve {
		target = enums.OrderStatusReturnApproved
	}
	return s.rows.MutateStatus(ctx, order, target, note)
}

// offered reports whether the edge exists at all, ignoring side data.
func offered(order orders.Order, target enums.OrderStatus) error {
	d := lifecycle.CanTransition(order.Status, target, lifecycle.ContextFor(order, "-"))
	if d.Allowed {
		return nil
	}
	return lifecycle.DecisionError(order.Status, target, d)
}
