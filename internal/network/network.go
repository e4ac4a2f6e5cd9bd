// Package network assembles a runnable Network from a compiled
// descriptor.NetworkDescriptor and a host-supplied set of Go handler
// closures, then exposes the Host API fruiting-body surface (spec.md §6):
// Inject enqueues an exogenous signal, Observe drains signals collected at
// an outgoing fruiting body. This mirrors the teacher's own assembly
// façade (plugin/tfd/pipeline.go's Pipeline.Handle/DrainV: a thin surface
// in front of a wired-together set of sub-components), generalized from
// one shard-lane concern to the whole arena/registry/routing/dispatch/
// scheduler stack.
package network

import (
	"sync"

	"mycelial/internal/descriptor"
	"mycelial/internal/errs"
	"mycelial/pkg/arena"
	"mycelial/pkg/dispatch"
	"mycelial/pkg/queue"
	"mycelial/pkg/registry"
	"mycelial/pkg/routing"
	"mycelial/pkg/scheduler"
	"mycelial/pkg/signal"
)

// DefaultQueueCapacity is used for every agent and observe-sink queue
// unless HandlerSet.QueueCapacity overrides it per hyphal.
const DefaultQueueCapacity = 64

// HandlerSet is the host's binding of Go closures to a descriptor's
// declared (hyphal, frequency) pairs. A descriptor names handlers only by
// frequency and hyphal name — the host supplies the actual executable
// behavior, since handler bodies are not interpreted by this
// implementation (internal/compiler/ast's package doc explains why).
type HandlerSet struct {
	// StateFactories creates a fresh, host-defined state value for each
	// agent spawned from the named hyphal.
	StateFactories map[string]func() any
	// Handlers maps "<hyphal>.<freq>" to the Go closure that implements
	// that binding.
	Handlers map[string]dispatch.Handler
	// Guards optionally maps "<hyphal>.<freq>" to a guard function.
	Guards map[string]dispatch.Guard
	// OnCycle optionally maps a hyphal name to its `on cycle` hook.
	OnCycle map[string]dispatch.CycleHook
	// QueueCapacity optionally overrides DefaultQueueCapacity per hyphal.
	QueueCapacity map[string]int
}

func (hs HandlerSet) handlerFor(hyphal, freq string) (dispatch.Handler, bool) {
	h, ok := hs.Handlers[hyphal+"."+freq]
	return h, ok
}

func (hs HandlerSet) guardFor(hyphal, freq string) dispatch.Guard {
	return hs.Guards[hyphal+"."+freq]
}

func (hs HandlerSet) queueCapacity(hyphal string) int {
	if n, ok := hs.QueueCapacity[hyphal]; ok && n > 0 {
		return n
	}
	return DefaultQueueCapacity
}

// Observed is one signal captured at an observing fruiting body.
type Observed struct {
	FreqName string
	Payload  []byte
}

// Network is one fully assembled, runnable instance of a compiled
// descriptor.
type Network struct {
	Arena     *arena.Arena
	Registry  *registry.Registry
	Routing   *routing.Table
	Scheduler *scheduler.Scheduler

	freqIDByName map[string]uint32
	idByName     map[string]uint32 // covers spawned agents and fruiting bodies
	injectSites  map[string]fruitingSite
	observeSites map[string]*observeSink
}

type fruitingSite struct {
	id       uint32
	freqName string
}

type observeSink struct {
	mu      sync.Mutex
	pending []Observed
}

func (s *observeSink) push(o Observed) {
	s.mu.Lock()
	s.pending = append(s.pending, o)
	s.mu.Unlock()
}

func (s *observeSink) drain() []Observed {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// Load assembles a Network from a compiled descriptor and a host-supplied
// HandlerSet. It fails with errs.KindSemantic if the descriptor names a
// (hyphal, frequency) binding the HandlerSet does not cover — a
// host/descriptor mismatch, not a fault in the descriptor itself.
func Load(d *descriptor.NetworkDescriptor, hs HandlerSet, opts scheduler.Options) (*Network, error) {
	n := &Network{
		freqIDByName: make(map[string]uint32, len(d.Frequencies)),
		idByName:     make(map[string]uint32, len(d.Agents)+len(d.FruitingBodies)),
		injectSites:  make(map[string]fruitingSite),
		observeSites: make(map[string]*observeSink),
	}
	for _, f := range d.Frequencies {
		n.freqIDByName[f.Name] = f.ID
	}

	n.Arena = arena.New()
	n.Registry = registry.New(len(d.Agents) + len(d.FruitingBodies))
	n.Routing = routing.New(len(d.Sockets))

	for _, spec := range d.Agents {
		n.idByName[spec.Name] = spec.ID

		var state any
		if factory, ok := hs.StateFactories[spec.HyphalName]; ok && factory != nil {
			state = factory()
		}

		q := queue.New(hs.queueCapacity(spec.HyphalName), queue.WithCapacityGate())
		dt := dispatch.New(state)
		for _, binding := range spec.Handlers {
			h, ok := hs.handlerFor(spec.HyphalName, binding.FrequencyName)
			if !ok {
				return nil, errs.New("network.Load", errs.KindSemantic,
					"no host handler bound for hyphal "+spec.HyphalName+" frequency "+binding.FrequencyName)
			}
			dt.Register(n.freqIDByName[binding.FrequencyName], h, hs.guardFor(spec.HyphalName, binding.FrequencyName))
		}
		if hook, ok := hs.OnCycle[spec.HyphalName]; ok {
			dt.SetOnCycle(hook)
		}
		if err := n.Registry.Register(spec.ID, spec.Name, state, q, dt); err != nil {
			return nil, err
		}
	}

	nextID := uint32(len(d.Agents) + 1)
	for _, fb := range d.FruitingBodies {
		id, known := n.idByName[fb.Name]
		if !known {
			id = nextID
			nextID++
			n.idByName[fb.Name] = id
		}
		switch fb.Direction {
		case "inject":
			n.injectSites[fb.Name] = fruitingSite{id: id, freqName: fb.FreqName}
		case "observe":
			sink := &observeSink{}
			n.observeSites[fb.Name] = sink
			q := queue.New(DefaultQueueCapacity, queue.WithCapacityGate())
			dt := dispatch.New(nil)
			freqName := fb.FreqName
			dt.SetDefault(func(state any, sig *signal.Signal, emit dispatch.EmitFunc) error {
				payload := append([]byte(nil), sig.Payload()...)
				sink.push(Observed{FreqName: freqName, Payload: payload})
				return nil
			})
			if err := n.Registry.Register(id, fb.Name, nil, q, dt); err != nil {
				return nil, err
			}
		}
	}

	groups := make(map[routing.Key][]uint32)
	var order []routing.Key
	for _, sock := range d.Sockets {
		srcID, ok := n.idByName[sock.Source]
		if !ok {
			return nil, errs.New("network.Load", errs.KindSemantic, "socket source "+sock.Source+" is not a known endpoint")
		}
		dstID, ok := n.idByName[sock.Dest]
		if !ok {
			return nil, errs.New("network.Load", errs.KindSemantic, "socket destination "+sock.Dest+" is not a known endpoint")
		}
		freqID, ok := n.freqIDByName[sock.Freq]
		if !ok {
			return nil, errs.New("network.Load", errs.KindSemantic, "socket frequency "+sock.Freq+" is not declared")
		}
		key := routing.Key{Source: srcID, Freq: freqID}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], dstID)
	}
	for _, key := range order {
		if err := n.Routing.AddEntry(key.Source, key.Freq, groups[key]); err != nil {
			return nil, err
		}
	}
	n.Routing.ResolveQueues(n.Registry)

	n.Scheduler = scheduler.New(n.Registry, n.Routing, n.Arena, opts)
	return n, nil
}

// Inject enqueues an exogenous signal at the named fruiting body. Per
// spec.md §6 this takes effect in the next SENSE, not immediately.
func (n *Network) Inject(name string, payload []byte) error {
	site, ok := n.injectSites[name]
	if !ok {
		return errs.New("network.Inject", errs.KindAgentNotFound, "no inject fruiting body named "+name)
	}
	freqID := n.freqIDByName[site.freqName]
	sig, err := signal.Create(n.Arena, freqID, site.id, payload)
	if err != nil {
		return err
	}
	n.Routing.Broadcast(sig, site.id, freqID)
	return nil
}

// Observe drains every signal collected at the named observing fruiting
// body since the last call. Per spec.md §6, values become available at
// the end of the ACT phase that produced them.
func (n *Network) Observe(name string) ([]Observed, error) {
	sink, ok := n.observeSites[name]
	if !ok {
		return nil, errs.New("network.Observe", errs.KindAgentNotFound, "no observe fruiting body named "+name)
	}
	return sink.drain(), nil
}
