package enums

import "fmt"

// DeliveryMode describes how an order reaches the customer.
type DeliveryMode string

const (
	DeliveryModeHomeDelivery DeliveryMode = "home_delivery"
	DeliveryModePickup       DeliveryMode = "pickup"
)

var validDeliveryModes = []DeliveryMode{
	DeliveryModeHomeDelivery,
	DeliveryModePickup,
}

// String implements fmt.Stringer.
func (d DeliveryMode) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryMode.
func (d DeliveryMode) IsValid() bool {
	for _, candidate := range validDeliveryModes {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsPickup reports whether the customer collects the order.
func (d DeliveryMode) IsPickup() bool {
	return d == DeliveryModePickup
}

// Label returns the human-facing name of the mode.
func (d DeliveryMode) Label() string {
	switch d {
	case DeliveryModePickup:
		return "Pickup"
	case DeliveryModeHomeDelivery:
		return "Home Delivery"
	default:
		return string(d)
	}
}

// ParseDeliveryMode converts raw input into a DeliveryMode.
func ParseDeliveryMode(value string) (DeliveryMode, error) {
	for _, candidate := range validDeliveryModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery mode %q", value)
}
