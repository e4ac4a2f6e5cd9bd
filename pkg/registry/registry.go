// Package registry implements the agent id/name directory: it owns every
// agent's state record, input queue, and dispatch table for the lifetime of
// the network. Registration happens once during topology-init and the
// registry is read-only once the scheduler starts (spec.md §5), so lookups
// need no locking on the hot path.
//
// The id-indexed array plus linear name scan follows the ownership model
// in the teacher's internal/ratelimiter/core/store.go (Store.GetOrCreate /
// ForEach / Delete), adapted from a concurrent sync.Map (appropriate there,
// since rate-limiter keys come and go at request rate) to a fixed array
// (appropriate here, since agents are declared once at compile time and
// never created or destroyed after init).
package registry

import (
	"mycelial/internal/errs"
	"mycelial/pkg/dispatch"
	"mycelial/pkg/queue"
)

// Agent is one durable actor: its identity plus the three resources the
// registry owns on its behalf.
type Agent struct {
	ID       uint32
	Name     string
	State    any
	Queue    *queue.Queue
	Dispatch *dispatch.Table
	Active   bool
}

// Registry maps agent id and name to Agent, in spawn order.
type Registry struct {
	capacity int
	byID     []*Agent // index 0 unused; ids run [1, capacity]
	order    []uint32 // spawn order, for SENSE/ACT round-robin
}

// New creates a registry sized for agent ids in [1, capacity].
func New(capacity int) *Registry {
	return &Registry{capacity: capacity, byID: make([]*Agent, capacity+1)}
}

// Register installs an agent under id, taking ownership of state, q, and
// dispatch. Fails with errs.KindCapacityExceeded if id is out of range, or
// errs.KindAgentExists if id is already registered.
func (r *Registry) Register(id uint32, name string, state any, q *queue.Queue, d *dispatch.Table) error {
	if id < 1 || int(id) > r.capacity {
		return errs.New("registry.Register", errs.KindCapacityExceeded, "agent id out of range")
	}
	if r.byID[id] != nil {
		return errs.New("registry.Register", errs.KindAgentExists, "agent id already registered")
	}
	r.byID[id] = &Agent{ID: id, Name: name, State: state, Queue: q, Dispatch: d, Active: true}
	r.order = append(r.order, id)
	return nil
}

// ByID returns the agent registered under id.
func (r *Registry) ByID(id uint32) (*Agent, bool) {
	if id < 1 || int(id) > r.capacity || r.byID[id] == nil {
		return nil, false
	}
	return r.byID[id], true
}

// ByName performs a linear scan for the agent with the given name.
// Registries are expected to hold at most a few hundred agents, so a hash
// index would be premature (spec.md §4.5).
func (r *Registry) ByName(name string) (*Agent, bool) {
	for _, id := range r.order {
		a := r.byID[id]
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// QueueFor implements routing.QueueProvider.
func (r *Registry) QueueFor(id uint32) (*queue.Queue, bool) {
	a, ok := r.ByID(id)
	if !ok {
		return nil, false
	}
	return a.Queue, true
}

// Each iterates agents in spawn order, the order spec.md §4.7 requires for
// both SENSE's dequeue pass and ACT's handler-invocation pass.
func (r *Registry) Each(f func(*Agent)) {
	for _, id := range r.order {
		f(r.byID[id])
	}
}

// Len returns the number of registered agents.
func (r *Registry) Len() int { return len(r.order) }
