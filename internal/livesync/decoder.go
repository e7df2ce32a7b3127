package livesync

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownEvent = errors.New("unknown live event")
	ErrMissingID    = errors.New("live event carries no id or order number")
)

// Decoded is the tagged union produced from one message. Exactly one of
// Order or Agent is set.
type Decoded struct {
	Event   enums.LiveEvent
	EventID string
	Order   *orders.OrderPatch
	Agent   *agents.Patch
}

type factory func(data []byte) (Decoded, error)

// Decoder maps event names to payload factories.
type Decoder struct {
	factories map[enums.LiveEvent]factory
}

func NewDecoder() *Decoder {
	d := &Decoder{factories: make(map[enums.LiveEvent]factory)}

	d.register(enums.LiveEventOrderCreated, orderFactory(orders.PatchCreated, true, nil))
	d.register(enums.LiveEventLegacyOrderCreated, orderFactory(orders.PatchCreated, true, nil))
	d.register(enums.LiveEventOrderStatusUpdated, orderFactory(orders.PatchUpdated, false, nil))
	d.register(enums.LiveEventLegacyOrderUpdated, orderFactory(orders.PatchUpdated, false, nil))
	d.register(enums.LiveEventOrderAssigned, orderFactory(orders.PatchAssigned, false, nil))

	delivered := enums.OrderStatusDelivered
	d.register(enums.LiveEventOrderDelivered, orderFactory(orders.PatchDelivered, false, &delivered))
	d.register(enums.LiveEventLegacyOrderDeleted, orderFactory(orders.PatchRemoved, false, nil))
	d.register(enums.LiveEventLegacyPaymentUpdated, orderFactory(orders.PatchPayment, false, nil))

	d.register(enums.LiveEventAgentStatusUpdated, decodeAgent)
	d.register(enums.LiveEventLegacyAgentStatus, decodeAgent)
	return d
}

func (d *Decoder) register(event enums.LiveEvent, f factory) {
	d.factories[event] = f
}

// Known reports whether event has a registered factory.
func (d *Decoder) Known(event enums.LiveEvent) bool {
	_, ok := d.factories[event]
	return ok
}

// Decode turns a raw payload into a typed patch.
func (d *Decoder) Decode(event enums.LiveEvent, data []byte) (Decoded, error) {
	f, ok := d.factories[event]
	if !ok {
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	out, err := f(data)
	if err != nil {
		return Decoded{}, fmt.Errorf("decoding %s: %w", event, err)
	}
	out.Event = event
	return out, nil
}

// orderPayload covers every partial order shape the publishers send.
type orderPayload struct {
	ID          string `json:"id"`
	MongoID     string `json:"_id"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	EventID     string `json:"eventId"`

	Status          *enums.OrderStatus   `json:"status"`
	PaymentStatus   *enums.PaymentStatus `json:"paymentStatus"`
	PaymentReceived *bool                `json:"paymentReceived"`
	AssignedAgent   *orders.AgentRef     `json:"assignedAgent"`
	Agent           *orders.AgentRef     `json:"agent"`
	TotalAmount     *decimal.Decimal     `json:"totalAmount"`

	ConfirmedAt      *time.Time `json:"confirmedAt"`
	AssignedAt       *time.Time `json:"assignedAt"`
	OutForDeliveryAt *time.Time `json:"outForDeliveryAt"`
	DeliveredAt      *time.Time `json:"deliveredAt"`
	CancelledAt      *time.Time `json:"cancelledAt"`
	CancelledBy      *string    `json:"cancelledBy"`
	CancelledByName  *string    `json:"cancelledByName"`
	ReturnedAt       *time.Time `json:"returnedAt"`
	ReturnedBy       *string    `json:"returnedBy"`
	ReturnedByName   *string    `json:"returnedByName"`
	ReturnReason     *string    `json:"returnReason"`
	AdminNotes       *string    `json:"adminNotes"`
	AgentNotes       *string    `json:"agentNotes"`

	DeliveryProofImage *string `json:"deliveryProofImage"`
	DeliveryNote       *string `json:"deliveryNote"`

	UpdatedAt *time.Time `json:"updatedAt"`

	Order json.RawMessage `json:"order"`
}

func (p orderPayload) id() string {
	for _, candidate := range []string{p.ID, p.MongoID, p.OrderID} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}

// orderFactory builds the factory for one order event. When full is set the
// payload is expected to be a complete order, either bare or under `order`.
func orderFactory(kind orders.PatchKind, full bool, impliedStatus *enums.OrderStatus) factory {
	return func(data []byte) (Decoded, error) {
		var payload orderPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Decoded{}, err
		}

		patch := orders.OrderPatch{
			ID:                 payload.id(),
			OrderNumber:        strings.TrimSpace(payload.OrderNumber),
			Kind:               kind,
			EventID:            payload.EventID,
			Status:             payload.Status,
			PaymentStatus:      payload.PaymentStatus,
			PaymentReceived:    payload.PaymentReceived,
			AssignedAgent:      payload.AssignedAgent,
			TotalAmount:        payload.TotalAmount,
			ConfirmedAt:        payload.ConfirmedAt,
			AssignedAt:         payload.AssignedAt,
			OutForDeliveryAt:   payload.OutForDeliveryAt,
			DeliveredAt:        payload.DeliveredAt,
			CancelledAt:        payload.CancelledAt,
			CancelledBy:        payload.CancelledBy,
			CancelledByName:    payload.CancelledByName,
			ReturnedAt:         payload.ReturnedAt,
			ReturnedBy:         payload.ReturnedBy,
			ReturnedByName:     payload.ReturnedByName,
			ReturnReason:       payload.ReturnReason,
			AdminNotes:         payload.AdminNotes,
			AgentNotes:         payload.AgentNotes,
			DeliveryProofImage: payload.DeliveryProofImage,
			DeliveryNote:       payload.DeliveryNote,
		}
		if patch.AssignedAgent == nil {
			patch.AssignedAgent = payload.Agent
		}
		if patch.AssignedAgent != nil && patch.AssignedAgent.ID == "" {
			patch.AssignedAgent = nil
		}
		if payload.UpdatedAt != nil {
			patch.UpdatedAt = *payload.UpdatedAt
		}
		if patch.Status == nil && impliedStatus != nil {
			s := *impliedStatus
			patch.Status = &s
		}

		raw := []byte(payload.Order)
		if len(raw) == 0 && full {
			raw = data
		}
		if len(raw) > 0 && string(raw) != "null" {
			var o orders.Order
			if err := json.Unmarshal(raw, &o); err != nil {
				return Decoded{}, err
			}
			if o.ID != "" && o.Status != "" {
				patch.Full = &o
				if patch.ID == "" {
					patch.ID = o.ID
				}
				if patch.UpdatedAt.IsZero() {
					patch.UpdatedAt = o.UpdatedAt
				}
			} else if patch.ID == "" {
				patch.ID = o.ID
			}
		}

		// the view resolves a number-only patch against its visible rows
		if patch.ID == "" && patch.OrderNumber == "" {
			return Decoded{}, ErrMissingID
		}
		return Decoded{EventID: payload.EventID, Order: &patch}, nil
	}
}

type agentPayload struct {
	ID      string             `json:"id"`
	MongoID string             `json:"_id"`
	AgentID string             `json:"agentId"`
	EventID string             `json:"eventId"`
	Status  *enums.AgentStatus `json:"status"`
	Name    *string            `json:"name"`
	Phone   *string            `json:"phone"`
	Agent   *agents.Agent      `json:"agent"`
}

func decodeAgent(data []byte) (Decoded, error) {
	var payload agentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Decoded{}, err
	}
	if payload.Status != nil && !payload.Status.IsValid() {
		return Decoded{}, fmt.Errorf("invalid agent status %q", *payload.Status)
	}

	patch := agents.Patch{
		Status: payload.Status,
		Name:   payload.Name,
		Phone:  payload.Phone,
		Full:   payload.Agent,
	}
	for _, candidate := range []string{payload.ID, payload.MongoID, payload.AgentID} {
		if s := strings.TrimSpace(candidate); s != "" {
			patch.ID = s
			break
		}
	}
	if patch.ID == "" && patch.Full != nil {
		patch.ID = patch.Full.ID
	}
	if patch.ID == "" {
		return Decoded{}, ErrMissingID
	}
	return Decoded{EventID: payload.EventID, Agent: &patch}, nil
}
