package enums

import (
	"fmt"
	"strings"
)

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusAssigned       OrderStatus = "assigned"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReturned       OrderStatus = "returned"
	OrderStatusReturnApproved OrderStatus = "return_approved"
	OrderStatusReturnRejected OrderStatus = "return_rejected"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusAssigned,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
	OrderStatusReturnApproved,
	OrderStatusReturnRejected,
}

// OrderStatuses returns the closed status set in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(validOrderStatuses))
	copy(out, validOrderStatuses)
	return out
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is expected from the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusReturnApproved, OrderStatusReturnRejected:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus. Hyphenated spellings
// ("out-for-delivery") are accepted and normalized.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	for _, candidate := range validOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// UnmarshalText rejects statuses outside the closed set.
func (s *OrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
