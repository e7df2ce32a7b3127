package orders

import (
	"encoding/json"
	"time"

	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/shopspring/decimal"
)

// PatchKind classifies the remote change a patch describes.
type PatchKind string

const (
	PatchCreated   PatchKind = "created"
	PatchUpdated   PatchKind = "updated"
	PatchAssigned  PatchKind = "assigned"
	PatchDelivered PatchKind = "delivered"
	PatchPayment   PatchKind = "payment"
	PatchRemoved   PatchKind = "removed"
)

// OrderPatch is the single typed mutation produced from a live event. Nil pointer
// fields are left untouched when the patch is applied.
type OrderPatch struct {
	ID          string
	OrderNumber string
	Kind        PatchKind
	EventID     string

	Status          *enums.OrderStatus
	PaymentStatus   *enums.PaymentStatus
	PaymentReceived *bool
	AssignedAgent   *AgentRef
	TotalAmount     *decimal.Decimal

	ConfirmedAt      *time.Time
	AssignedAt       *time.Time
	OutForDeliveryAt *time.Time
	DeliveredAt      *time.Time
	CancelledAt      *time.Time
	CancelledBy      *string
	CancelledByName  *string
	ReturnedAt       *time.Time
	ReturnedBy       *string
	ReturnedByName   *string
	ReturnReason     *string
	AdminNotes       *string
	AgentNotes       *string

	DeliveryProofImage *string
	DeliveryNote       *string

	UpdatedAt time.Time

	// Full is set when the event carried a complete order representation.
	Full *Order
}

// IsStaleFor reports whether the patch predates the order's last known update.
func (p OrderPatch) IsStaleFor(o Order) bool {
	if p.UpdatedAt.IsZero() || o.UpdatedAt.IsZero() {
		return false
	}
	return p.UpdatedAt.Before(o.UpdatedAt)
}

// Apply merges the patch into a copy of the order. The second return is false when
// the patch is stale, targets another order, or changes nothing. Applying the same
// patch twice yields the same order.
func (o Order) Apply(p OrderPatch) (Order, bool) {
	if p.ID != "" && p.ID != o.ID {
		return o, false
	}
	if p.IsStaleFor(o) {
		return o, false
	}

	next := o.Clone()
	if p.Full != nil {
		next = p.Full.Clone()
		if next.ID == "" {
			next.ID = o.ID
		}
	}

	if p.OrderNumber != "" {
		next.OrderNumber = p.OrderNumber
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		next.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentReceived != nil {
		next.PaymentReceived = *p.PaymentReceived
	}
	if p.AssignedAgent != nil {
		agent := *p.AssignedAgent
		next.AssignedAgent = &agent
	}
	if p.TotalAmount != nil {
		next.TotalAmount = *p.TotalAmount
	}

	setTime(&next.ConfirmedAt, p.ConfirmedAt)
	setTime(&next.AssignedAt, p.AssignedAt)
	setTime(&next.OutForDeliveryAt, p.OutForDeliveryAt)
	setTime(&next.DeliveredAt, p.DeliveredAt)
	setTime(&next.CancelledAt, p.CancelledAt)
	setTime(&next.ReturnedAt, p.ReturnedAt)

	setString(&next.CancelledBy, p.CancelledBy)
	setString(&next.CancelledByName, p.CancelledByName)
	setString(&next.ReturnedBy, p.ReturnedBy)
	setString(&next.ReturnedByName, p.ReturnedByName)
	setString(&next.ReturnReason, p.ReturnReason)
	setString(&next.AdminNotes, p.AdminNotes)
	setString(&next.AgentNotes, p.AgentNotes)
	setString(&next.DeliveryProofImage, p.DeliveryProofImage)
	setString(&next.DeliveryNote, p.DeliveryNote)

	if !p.UpdatedAt.IsZero() && p.UpdatedAt.After(next.UpdatedAt) {
		next.UpdatedAt = p.UpdatedAt
	}

	if next.Equal(o) {
		return o, false
	}
	return next, true
}

// AsOrder materializes a patch that carries enough data to stand alone.
func (p OrderPatch) AsOrder() (Order, bool) {
	if p.Full != nil {
		return p.Full.Clone(), true
	}
	if p.ID == "" || p.Status == nil {
		return Order{}, false
	}
	o, _ := Order{ID: p.ID}.Apply(p)
	return o, true
}

func setTime(dst **time.Time, src *time.Time) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

func setString(dst *string, src *string) {
	if src == nil {
		return
	}
	*dst = *src
}

func (o Order) fingerprint() string {
	b, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	return string(b)
}
