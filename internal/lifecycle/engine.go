package lifecycle

import (
	"fmt"
	"strings"

	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
)

// Requirement names the side data or precondition a transition needs.
type Requirement string

const (
	RequireNone               Requirement = ""
	RequireReason             Requirement = "reason"
	RequireAgent              Requirement = "agent"
	RequireHomeDelivery       Requirement = "home_delivery"
	RequirePickup             Requirement = "pickup"
	RequirePickupConfirmation Requirement = "pickup_confirmation"
)

// Context carries the side data a caller supplies with a transition request.
type Context struct {
	DeliveryMode enums.DeliveryMode
	HasAgent     bool
	AgentID      string
	Notes        string
	Reason       string
}

// ContextFor builds a context from the order's current state plus caller notes.
func ContextFor(o orders.Order, notes string) Context {
	ctx := Context{
		DeliveryMode: o.DeliveryMode,
		HasAgent:     o.HasAgent(),
		Notes:        notes,
	}
	if o.AssignedAgent != nil {
		ctx.AgentID = o.AssignedAgent.ID
	}
	return ctx
}

func (c Context) hasAgent() bool {
	return c.HasAgent || strings.TrimSpace(c.AgentID) != ""
}

func (c Context) reason() string {
	if r := strings.TrimSpace(c.Reason); r != "" {
		return r
	}
	return strings.TrimSpace(c.Notes)
}

// Decision records whether a transition is allowed and why it is forbidden.
// GuidedPath lists the steps to take instead when a direct edge is refused
// but an indirect route exists.
type Decision struct {
	Allowed     bool
	Reason      string
	Requirement Requirement
	GuidedPath  []enums.OrderStatus
}

type modeRule int

const (
	anyMode modeRule = iota
	homeDeliveryOnly
	pickupOnly
)

// Transition is a single allowed edge in the order lifecycle.
type Transition struct {
	From     enums.OrderStatus
	To       enums.OrderStatus
	Mode     modeRule
	Requires Requirement
	// DefaultNote fills the admin note when the caller leaves it empty.
	DefaultNote func(enums.DeliveryMode) string
}

var transitionsTable = []Transition{
	{From: enums.OrderStatusPending, To: enums.OrderStatusConfirmed, DefaultNote: DefaultConfirmNote},
	{From: enums.OrderStatusPending, To: enums.OrderStatusCancelled, Requires: RequireReason},

	// Delivery path
	{From: enums.OrderStatusConfirmed, To: enums.OrderStatusAssigned, Mode: homeDeliveryOnly, Requires: RequireAgent},
	{From: enums.OrderStatusAssigned, To: enums.OrderStatusOutForDelivery, Mode: homeDeliveryOnly, Requires: RequireAgent},
	{From: enums.OrderStatusOutForDelivery, To: enums.OrderStatusDelivered, Mode: homeDeliveryOnly},

	// Pickup path
	{From: enums.OrderStatusConfirmed, To: enums.OrderStatusDelivered, Mode: pickupOnly},

	// Post-delivery disputes
	{From: enums.OrderStatusDelivered, To: enums.OrderStatusReturned, Requires: RequireReason},
	{From: enums.OrderStatusReturned, To: enums.OrderStatusReturnApproved},
	{From: enums.OrderStatusReturned, To: enums.OrderStatusReturnRejected},
}

// Transitions returns a copy of the lifecycle table.
func Transitions() []Transition {
	out := make([]Transition, len(transitionsTable))
	copy(out, transitionsTable)
	return out
}

func transitionFor(from, to enums.OrderStatus) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to {
			return tr, true
		}
	}
	return Transition{}, false
}

// DefaultConfirmNote is the admin note recorded when an operator confirms without typing one.
func DefaultConfirmNote(mode enums.DeliveryMode) string {
	if mode.IsPickup() {
		return "Order confirmed and ready for pickup"
	}
	return "Order confirmed and ready for delivery"
}

// CanTransition decides whether current may move to target given the side data.
func CanTransition(current, target enums.OrderStatus, ctx Context) Decision {
	if !current.IsValid() {
		return deny(fmt.Sprintf("unknown current status %q", current), RequireNone)
	}
	if !target.IsValid() {
		return deny(fmt.Sprintf("unknown target status %q", target), RequireNone)
	}
	if current == target {
		return deny(fmt.Sprintf("order is already %s", FormatStatus(current)), RequireNone)
	}

	if current == enums.OrderStatusPending && target == enums.OrderStatusDelivered && ctx.DeliveryMode.IsPickup() {
		return Decision{
			Allowed:     false,
			Reason:      "pickup orders must be confirmed before they can be marked delivered",
			Requirement: RequirePickupConfirmation,
			GuidedPath:  []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusDelivered},
		}
	}

	tr, ok := transitionFor(current, target)
	if !ok {
		if current.IsTerminal() {
			return deny(fmt.Sprintf("%s orders cannot change status", FormatStatus(current)), RequireNone)
		}
		return deny(fmt.Sprintf("cannot move an order from %s to %s", FormatStatus(current), FormatStatus(target)), RequireNone)
	}

	switch tr.Mode {
	case homeDeliveryOnly:
		if ctx.DeliveryMode.IsPickup() {
			return deny(fmt.Sprintf("pickup orders do not go through %s", FormatStatus(target)), RequireHomeDelivery)
		}
	case pickupOnly:
		if !ctx.DeliveryMode.IsPickup() {
			return deny(fmt.Sprintf("only pickup orders move from %s straight to %s", FormatStatus(current), FormatStatus(target)), RequirePickup)
		}
	}

	switch tr.Requires {
	case RequireReason:
		if ctx.reason() == "" {
			return deny("a reason is required", RequireReason)
		}
	case RequireAgent:
		if !ctx.hasAgent() {
			return deny("an agent must be assigned first", RequireAgent)
		}
	}

	return Decision{Allowed: true}
}

// CanAssign decides whether an agent may be (re)assigned to the order. Assignment
// advances the order to assigned as a side effect, so it is accepted from pending
// and confirmed as well as for re-assignment.
func CanAssign(o orders.Order, agentID string) Decision {
	if o.IsPickup() {
		return deny("pickup orders are not assigned to agents", RequireHomeDelivery)
	}
	switch o.Status {
	case enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.OrderStatusAssigned:
	default:
		return deny(fmt.Sprintf("cannot assign an agent to a %s order", FormatStatus(o.Status)), RequireNone)
	}
	if strings.TrimSpace(agentID) == "" {
		return deny("select an agent", RequireAgent)
	}
	return Decision{Allowed: true}
}

// GuidedPickupPath returns the steps a pickup order must take to reach delivered.
func GuidedPickupPath(o orders.Order) []enums.OrderStatus {
	if !o.IsPickup() {
		return nil
	}
	switch o.Status {
	case enums.OrderStatusPending:
		return []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusDelivered}
	case enums.OrderStatusConfirmed:
		return []enums.OrderStatus{enums.OrderStatusDelivered}
	default:
		return nil
	}
}

// AllowedTargets lists the statuses reachable in one step, assuming the caller
// will supply any required reason. Agent requirements use the order as it is.
func AllowedTargets(o orders.Order) []enums.OrderStatus {
	ctx := ContextFor(o, "")
	ctx.Reason = "-"
	var out []enums.OrderStatus
	for _, target := range enums.OrderStatuses() {
		if CanTransition(o.Status, target, ctx).Allowed {
			out = append(out, target)
		}
	}
	return out
}

// ResolveNotes returns the notes to send with the transition, filling defaults.
func ResolveNotes(o orders.Order, target enums.OrderStatus, notes string) string {
	notes = strings.TrimSpace(notes)
	if notes != "" {
		return notes
	}
	if tr, ok := transitionFor(o.Status, target); ok && tr.DefaultNote != nil {
		return tr.DefaultNote(o.DeliveryMode)
	}
	return ""
}

// Validate checks a requested transition for the order and returns a typed error:
// CodeValidation when side data is missing, CodeStateConflict for an illegal edge.
func Validate(o orders.Order, target enums.OrderStatus, notes string) error {
	d := CanTransition(o.Status, target, ContextFor(o, notes))
	if d.Allowed {
		return nil
	}
	return DecisionError(o.Status, target, d)
}

// DecisionError converts a refused decision into a typed error.
func DecisionError(from, to enums.OrderStatus, d Decision) error {
	if d.Allowed {
		return nil
	}
	details := map[string]any{
		"from": string(from),
		"to":   string(to),
	}
	if d.Requirement != RequireNone {
		details["requirement"] = string(d.Requirement)
	}
	if len(d.GuidedPath) > 0 {
		path := make([]string, len(d.GuidedPath))
		for i, s := range d.GuidedPath {
			path[i] = string(s)
		}
		details["guidedPath"] = path
	}

	code := pkgerrors.CodeStateConflict
	switch d.Requirement {
	case RequireReason, RequireAgent:
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.New(code, d.Reason).WithDetails(details)
}

func deny(reason string, req Requirement) Decision {
	return Decision{Allowed: false, Reason: reason, Requirement: req}
}
