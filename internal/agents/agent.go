package agents

import (
	"encoding/json"
	"strings"

	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
)

// Agent is a delivery agent as listed by the backend.
type Agent struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Phone         string            `json:"phone,omitempty"`
	VehicleNumber string            `json:"vehicleNumber,omitempty"`
	Status        enums.AgentStatus `json:"status"`
	Agency        *orders.AgencyRef `json:"agency,omitempty"`
}

func (a *Agent) UnmarshalJSON(data []byte) error {
	type alias Agent
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if strings.TrimSpace(a.ID) == "" {
		a.ID = aux.MongoID
	}
	return nil
}

func (a Agent) IsOnline() bool {
	return a.Status == enums.AgentStatusOnline
}

// Ref is the snapshot stored on an order when the agent is assigned.
func (a Agent) Ref() orders.AgentRef {
	return orders.AgentRef{
		ID:            a.ID,
		Name:          a.Name,
		Phone:         a.Phone,
		VehicleNumber: a.VehicleNumber,
	}
}

// Query narrows an agent listing. An empty status lists everyone.
type Query struct {
	Status enums.AgentStatus
}

// Patch is a presence or profile change pushed for one agent.
type Patch struct {
	ID     string
	Status *enums.AgentStatus
	Name   *string
	Phone  *string

	// Full is set when the event carried the complete agent.
	Full *Agent
}
