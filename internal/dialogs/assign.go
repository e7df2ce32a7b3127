package dialogs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gasflow/ops-console/internal/agents"
	"github.com/gasflow/ops-console/internal/assignments"
	"github.com/gasflow/ops-console/internal/lifecycle"
	"github.com/gasflow/ops-console/internal/notices"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
)

// AgentAssignedNote is sent with the status advance that follows an assignment.
const AgentAssignedNote = "Agent assigned"

// ErrAssignedNotAdvanced marks an assignment whose status step failed.
var ErrAssignedNotAdvanced = errors.New("agent assigned but status not advanced")

// AssignState is the outcome of the assign saga.
type AssignState string

const (
	StateAssigned            AssignState = "assigned"
	StateAssignedNotAdvanced AssignState = "assigned_not_advanced"
)

// AssignDialog is what the operator sees when opening the assign dialog.
type AssignDialog struct {
	Order           orders.Order   `json:"order"`
	Agents          []agents.Agent `json:"agents"`
	SelectedAgentID string         `json:"selectedAgentId,omitempty"`
}

// AssignOutcome reports how far the saga got.
type AssignOutcome struct {
	State   AssignState                 `json:"state"`
	AgentID string                      `json:"agentId"`
	Pending *assignments.PendingAdvance `json:"pending,omitempty"`
}

// OpenAssign lists online agents and preselects the current one.
func (s *Service) OpenAssign(order orders.Order) (AssignDialog, error) {
	if d := lifecycle.CanAssign(order, "-"); !d.Allowed {
		return AssignDialog{}, lifecycle.DecisionError(order.Status, enums.OrderStatusAssigned, d)
	}

	dialog := AssignDialog{Order: order, Agents: []agents.Agent{}}
	if s.agents != nil {
		dialog.Agents = s.agents.Online()
	}
	if order.HasAgent() {
		dialog.SelectedAgentID = order.AssignedAgent.ID
	}
	return dialog, nil
}

// Assign runs the two-step saga: assign the agent, then advance the status to
// assigned. A failed second step leaves a compensation record and returns an
// error wrapping ErrAssignedNotAdvanced.
func (s *Service) Assign(ctx context.Context, order orders.Order, agentID string) (AssignOutcome, error) {
	agentID = strings.TrimSpace(agentID)
	if d := lifecycle.CanAssign(order, agentID); !d.Allowed {
		return AssignOutcome{}, lifecycle.DecisionError(order.Status, enums.OrderStatusAssigned, d)
	}

	outcome := AssignOutcome{AgentID: agentID}
	err := s.rows.RunRowAction(ctx, order.ID, func(ctx context.Context) error {
		if _, err := s.gw.AssignAgent(ctx, order.ID, agentID); err != nil {
			return err
		}
		if order.Status == enums.OrderStatusAssigned {
			outcome.State = StateAssigned
			return nil
		}
		pending, err := s.advance(ctx, order, agentID)
		if err != nil {
			outcome.State = StateAssignedNotAdvanced
			outcome.Pending = pending
			return err
		}
		outcome.State = StateAssigned
		return nil
	}, fmt.Sprintf("Order %s assigned to %s", order.ShortNumber(), s.agentName(agentID)))

	if errors.Is(err, ErrAssignedNotAdvanced) {
		// the agent is on the order remotely, so the row and badges must show it
		s.rows.RefreshAfterMutation(ctx)
	}
	return outcome, err
}

// RetryAdvance re-runs only the status step of a partially applied assignment.
func (s *Service) RetryAdvance(ctx context.Context, order orders.Order) (AssignOutcome, error) {
	if !order.HasAgent() {
		return AssignOutcome{}, pkgerrors.New(pkgerrors.CodeValidation, "order has no assigned agent")
	}
	agentID := order.AssignedAgent.ID
	outcome := AssignOutcome{AgentID: agentID}

	if order.Status == enums.OrderStatusAssigned {
		s.resolve(ctx, order.ID)
		outcome.State = StateAssigned
		return outcome, nil
	}
	if d := lifecycle.CanAssign(order, agentID); !d.Allowed {
		return AssignOutcome{}, lifecycle.DecisionError(order.Status, enums.OrderStatusAssigned, d)
	}

	err := s.rows.RunRowAction(ctx, order.ID, func(ctx context.Context) error {
		pending, err := s.advance(ctx, order, agentID)
		if err != nil {
			outcome.State = StateAssignedNotAdvanced
			outcome.Pending = pending
			return err
		}
		outcome.State = StateAssigned
		return nil
	}, fmt.Sprintf("Order %s is now Assigned", order.ShortNumber()))
	return outcome, err
}

// PendingAdvances lists assignments still waiting for their status step.
func (s *Service) PendingAdvances(ctx context.Context, limit int) ([]assignments.PendingAdvance, error) {
	if s.store == nil {
		return []assignments.PendingAdvance{}, nil
	}
	return s.store.ListOpen(ctx, limit)
}

func (s *Service) advance(ctx context.Context, order orders.Order, agentID string) (*assignments.PendingAdvance, error) {
	_, err := s.gw.SetStatus(ctx, order.ID, enums.OrderStatusAssigned, AgentAssignedNote)
	if err == nil {
		s.resolve(ctx, order.ID)
		return nil, nil
	}

	var pending *assignments.PendingAdvance
	if s.store != nil {
		rec, recErr := s.store.Record(ctx, assignments.Entry{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			AgentID:     agentID,
			AgentName:   s.agentName(agentID),
			Err:         err,
		})
		if recErr != nil {
			s.logg.Error(ctx, "recording pending advance failed", recErr)
		}
		pending = rec
	}
	return pending, assignedNotAdvanced(err)
}

func (s *Service) resolve(ctx context.Context, orderID string) {
	if s.store == nil {
		return
	}
	if _, err := s.store.Resolve(ctx, orderID); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID), "resolving pending advance failed", err)
	}
}

func (s *Service) agentName(id string) string {
	if s.agents != nil {
		if a, ok := s.agents.Get(id); ok && a.Name != "" {
			return a.Name
		}
	}
	return id
}

func assignedNotAdvanced(cause error) error {
	msg := "Agent assigned, but the status could not be advanced: " + notices.FailureMessage(cause)
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, fmt.Errorf("%w: %w", ErrAssignedNotAdvanced, cause), msg).
		WithDetails(map[string]any{"step": "advance_status"})
}
