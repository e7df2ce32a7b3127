package enums

// LiveEvent names a push event delivered over the live channel.
type LiveEvent string

const (
	LiveEventOrderCreated       LiveEvent = "order:created"
	LiveEventOrderStatusUpdated LiveEvent = "order:status-updated"
	LiveEventOrderAssigned      LiveEvent = "order:assigned"
	LiveEventOrderDelivered     LiveEvent = "order:delivered"

	// Legacy namespace, kept only while older publishers are still deployed.
	LiveEventLegacyOrderCreated   LiveEvent = "order_created"
	LiveEventLegacyOrderUpdated   LiveEvent = "order_updated"
	LiveEventLegacyOrderDeleted   LiveEvent = "order_deleted"
	LiveEventLegacyPaymentUpdated LiveEvent = "payment_updated"

	LiveEventAgentStatusUpdated LiveEvent = "agent:status-updated"
	LiveEventLegacyAgentStatus  LiveEvent = "agent_status"
)

var orderLiveEvents = []LiveEvent{
	LiveEventOrderCreated,
	LiveEventOrderStatusUpdated,
	LiveEventOrderAssigned,
	LiveEventOrderDelivered,
	LiveEventLegacyOrderCreated,
	LiveEventLegacyOrderUpdated,
	LiveEventLegacyOrderDeleted,
	LiveEventLegacyPaymentUpdated,
}

var agentLiveEvents = []LiveEvent{
	LiveEventAgentStatusUpdated,
	LiveEventLegacyAgentStatus,
}

// OrderLiveEvents lists every event name that carries an order payload.
func OrderLiveEvents() []LiveEvent {
	out := make([]LiveEvent, len(orderLiveEvents))
	copy(out, orderLiveEvents)
	return out
}

// AgentLiveEvents lists every event name that carries an agent payload.
func AgentLiveEvents() []LiveEvent {
	out := make([]LiveEvent, len(agentLiveEvents))
	copy(out, agentLiveEvents)
	return out
}

// String implements fmt.Stringer.
func (e LiveEvent) String() string {
	return string(e)
}

// IsLegacy reports whether the event belongs to the legacy underscore namespace.
func (e LiveEvent) IsLegacy() bool {
	switch e {
	case LiveEventLegacyOrderCreated, LiveEventLegacyOrderUpdated, LiveEventLegacyOrderDeleted,
		LiveEventLegacyPaymentUpdated, LiveEventLegacyAgentStatus:
		return true
	default:
		return false
	}
}
