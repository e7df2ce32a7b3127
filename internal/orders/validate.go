package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
)

// Validate checks the structural invariants of a single order.
func (o Order) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !o.Status.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", o.Status)
	}
	if o.Status == enums.OrderStatusOutForDelivery && !o.HasAgent() {
		return pkgerrors.New(pkgerrors.CodeValidation, "an out for delivery order must have an assigned agent")
	}
	return o.CheckTimeline()
}

type stamp struct {
	name string
	at   *time.Time
}

// CheckTimeline verifies lifecycle timestamps are set in order. Cancellation and
// return may short-circuit, so they only need to follow creation. Pickup orders
// skip the assignment and dispatch stages.
func (o Order) CheckTimeline() error {
	created := o.CreatedAt
	var chain []stamp
	if o.IsPickup() {
		chain = []stamp{
			{"confirmedAt", o.ConfirmedAt},
			{"deliveredAt", o.DeliveredAt},
		}
	} else {
		chain = []stamp{
			{"confirmedAt", o.ConfirmedAt},
			{"assignedAt", o.AssignedAt},
			{"outForDeliveryAt", o.OutForDeliveryAt},
			{"deliveredAt", o.DeliveredAt},
		}
	}

	prevName, prev := "createdAt", &created
	if created.IsZero() {
		prev = nil
	}
	for _, s := range chain {
		if s.at == nil {
			prevName, prev = s.name, nil
			continue
		}
		if prev == nil && prevName != "createdAt" {
			return timelineError(fmt.Sprintf("%s is set without %s", s.name, prevName))
		}
		if prev != nil && s.at.Before(*prev) {
			return timelineError(fmt.Sprintf("%s precedes %s", s.name, prevName))
		}
		prevName, prev = s.name, s.at
	}

	for _, s := range []stamp{{"cancelledAt", o.CancelledAt}, {"returnedAt", o.ReturnedAt}} {
		if s.at != nil && !created.IsZero() && s.at.Before(created) {
			return timelineError(fmt.Sprintf("%s precedes createdAt", s.name))
		}
	}
	if o.ReturnedAt != nil && o.DeliveredAt != nil && o.ReturnedAt.Before(*o.DeliveredAt) {
		return timelineError("returnedAt precedes deliveredAt")
	}
	return nil
}

func timelineError(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "order timeline: "+msg)
}
