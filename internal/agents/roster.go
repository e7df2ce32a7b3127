package agents

import (
	"context"
	"sort"
	"sync"

	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/logger"
)

// Lister fetches agents from the backend.
type Lister interface {
	ListAgents(ctx context.Context, q Query) ([]Agent, error)
}

// Roster holds the latest known agent list. Order snapshots of past
// assignments are never rewritten from here.
type Roster struct {
	lister Lister
	logg   *logger.Logger

	mu     sync.RWMutex
	agents map[string]Agent
}

func NewRoster(lister Lister, logg *logger.Logger) *Roster {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Roster{
		lister: lister,
		logg:   logg,
		agents: make(map[string]Agent),
	}
}

// Refresh replaces the roster with the backend's current list.
func (r *Roster) Refresh(ctx context.Context) error {
	if r.lister == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "agent lister not configured")
	}
	list, err := r.lister.ListAgents(ctx, Query{})
	if err != nil {
		return err
	}

	next := make(map[string]Agent, len(list))
	for _, a := range list {
		if a.ID == "" {
			continue
		}
		next[a.ID] = a
	}

	r.mu.Lock()
	r.agents = next
	r.mu.Unlock()

	r.logg.Debug(r.logg.WithField(ctx, "agents", len(next)), "agent roster refreshed")
	return nil
}

// Apply merges a pushed change. It reports whether the roster changed.
func (r *Roster) Apply(p Patch) bool {
	if p.ID == "" && p.Full != nil {
		p.ID = p.Full.ID
	}
	if p.ID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, known := r.agents[p.ID]
	next := current
	if p.Full != nil {
		next = *p.Full
		next.ID = p.ID
	} else if !known {
		next = Agent{ID: p.ID, Status: enums.AgentStatusOffline}
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Phone != nil {
		next.Phone = *p.Phone
	}

	if known && sameAgent(current, next) {
		return false
	}
	r.agents[p.ID] = next
	return true
}

func (r *Roster) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// All returns every known agent sorted by name.
func (r *Roster) All() []Agent {
	return r.collect(func(Agent) bool { return true })
}

// Online returns the agents currently available for assignment, sorted by name.
func (r *Roster) Online() []Agent {
	return r.collect(Agent.IsOnline)
}

func (r *Roster) collect(keep func(Agent) bool) []Agent {
	r.mu.RLock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if keep(a) {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sameAgent(a, b Agent) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Phone != b.Phone ||
		a.VehicleNumber != b.VehicleNumber || a.Status != b.Status {
		return false
	}
	if (a.Agency == nil) != (b.Agency == nil) {
		return false
	}
	return a.Agency == nil || *a.Agency == *b.Agency
}
