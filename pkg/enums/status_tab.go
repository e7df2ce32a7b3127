package enums

import "fmt"

// StatusTab names a tab of the order list. Tab names are UI vocabulary and
// differ from the backend status vocabulary for some members.
type StatusTab string

const (
	StatusTabAll            StatusTab = "all"
	StatusTabPending        StatusTab = "pending"
	StatusTabConfirmed      StatusTab = "confirmed"
	StatusTabInProgress     StatusTab = "in-progress"
	StatusTabOutForDelivery StatusTab = "out-for-delivery"
	StatusTabDelivered      StatusTab = "delivered"
	StatusTabCancelled      StatusTab = "cancelled"
	StatusTabReturned       StatusTab = "returned"
)

var validStatusTabs = []StatusTab{
	StatusTabAll,
	StatusTabPending,
	StatusTabConfirmed,
	StatusTabInProgress,
	StatusTabOutForDelivery,
	StatusTabDelivered,
	StatusTabCancelled,
	StatusTabReturned,
}

var tabStatuses = map[StatusTab]OrderStatus{
	StatusTabPending:        OrderStatusPending,
	StatusTabConfirmed:      OrderStatusConfirmed,
	StatusTabInProgress:     OrderStatusAssigned,
	StatusTabOutForDelivery: OrderStatusOutForDelivery,
	StatusTabDelivered:      OrderStatusDelivered,
	StatusTabCancelled:      OrderStatusCancelled,
	StatusTabReturned:       OrderStatusReturned,
}

// StatusTabs returns every tab, "all" first.
func StatusTabs() []StatusTab {
	out := make([]StatusTab, len(validStatusTabs))
	copy(out, validStatusTabs)
	return out
}

// String implements fmt.Stringer.
func (t StatusTab) String() string {
	return string(t)
}

// IsValid reports whether the value is a known StatusTab.
func (t StatusTab) IsValid() bool {
	for _, candidate := range validStatusTabs {
		if candidate == t {
			return true
		}
	}
	return false
}

// BackendStatus translates the tab into the backend status filter. The second
// return is false for "all", which means no status filter.
func (t StatusTab) BackendStatus() (OrderStatus, bool) {
	status, ok := tabStatuses[t]
	return status, ok
}

// Admits reports whether an order in the given status belongs on the tab.
func (t StatusTab) Admits(status OrderStatus) bool {
	if t == StatusTabAll || t == "" {
		return true
	}
	want, ok := tabStatuses[t]
	return ok && want == status
}

// ParseStatusTab converts raw input into a StatusTab; empty input means "all".
func ParseStatusTab(value string) (StatusTab, error) {
	if value == "" {
		return StatusTabAll, nil
	}
	for _, candidate := range validStatusTabs {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid status tab %q", value)
}
