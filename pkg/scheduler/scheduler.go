// Package scheduler implements the tidal-cycle scheduler: the deterministic
// REST -> SENSE -> ACT loop that drives a network (spec.md §4.7).
//
// The loop itself is grounded on the teacher's single-goroutine service
// run-loop (plugin/tfd/sservice.go's run()): a select-free, synchronous
// for-loop owned by one goroutine, started with Run and stopped by closing
// a channel, mirrored here as stopCh guarded by sync.Once. Where the
// teacher's loop reacts to channel events (ingest, ticker, flush-now,
// stop), the tidal scheduler instead advances a fixed three-phase cycle on
// every iteration — there is nothing to select on, since cycles are driven
// by wall-clock-free, deterministic progress rather than external events.
package scheduler

import (
	"sync"

	"mycelial/internal/errs"
	"mycelial/internal/obslog"
	"mycelial/pkg/arena"
	"mycelial/pkg/dispatch"
	"mycelial/pkg/registry"
	"mycelial/pkg/routing"
	"mycelial/pkg/signal"
)

// Phase names one of the three stages of a tidal cycle.
type Phase int

const (
	PhaseRest Phase = iota
	PhaseSense
	PhaseAct
)

func (p Phase) String() string {
	switch p {
	case PhaseRest:
		return "REST"
	case PhaseSense:
		return "SENSE"
	case PhaseAct:
		return "ACT"
	default:
		return "UNKNOWN"
	}
}

// DefaultMaxEmptyCycles is the default shutdown threshold (spec.md §4.7).
const DefaultMaxEmptyCycles = 10

// Counters tracks cumulative scheduler activity, exported for telemetry.
type Counters struct {
	CycleCount       uint64
	SignalCount      uint64
	EmptyCycles      uint64
	HandlerFailures  uint64
	CycleHookFailures uint64
}

// Options configure a Scheduler. Zero values take the documented defaults.
type Options struct {
	// MaxEmptyCycles is the number of consecutive zero-signal cycles after
	// which Run returns. Default DefaultMaxEmptyCycles.
	MaxEmptyCycles int
	// Logger receives non-fatal diagnostics (handler and on-cycle-hook
	// failures, missing handlers, dropped emits); guard rejections are not
	// logged. Default obslog.Default().
	Logger *obslog.Logger
}

type work struct {
	agent *registry.Agent
	sig   *signal.Signal
}

type emitted struct {
	sourceID uint32
	freq     uint32
	payload  []byte
}

// Scheduler runs one network's tidal cycles. It is not safe for concurrent
// use by multiple goroutines beyond the documented Shutdown/Run pairing:
// exactly one goroutine should call Run or RunCycles at a time.
type Scheduler struct {
	registry *registry.Registry
	routing  *routing.Table
	arena    *arena.Arena
	opts     Options

	phase           Phase
	running         bool
	emptyCycles     int
	maxEmptyCycles  int
	counters        Counters

	workList []work
	emitBuf  []emitted

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a scheduler over the given registry, routing table, and
// arena (used to allocate signals created by emit()).
func New(reg *registry.Registry, rt *routing.Table, a *arena.Arena, opts Options) *Scheduler {
	max := opts.MaxEmptyCycles
	if max <= 0 {
		max = DefaultMaxEmptyCycles
	}
	logger := opts.Logger
	if logger == nil {
		logger = obslog.Default()
	}
	opts.Logger = logger
	return &Scheduler{
		registry:       reg,
		routing:        rt,
		arena:          a,
		opts:           opts,
		maxEmptyCycles: max,
		stopCh:         make(chan struct{}),
	}
}

// Counters returns a snapshot of cumulative scheduler activity.
func (s *Scheduler) Counters() Counters { return s.counters }

// CycleCount returns the number of cycles completed so far, satisfying
// replay.CycleCounter.
func (s *Scheduler) CycleCount() uint64 { return s.counters.CycleCount }

// Phase returns the phase the scheduler is currently in (or last completed,
// between Run/RunCycles calls).
func (s *Scheduler) Phase() Phase { return s.phase }

// Shutdown requests a graceful stop: the current cycle (if any) completes,
// then Run returns. Safe to call from another goroutine. Idempotent.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) shuttingDown() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// Run executes tidal cycles until max_empty_cycles consecutive empty cycles
// have elapsed or Shutdown is called, whichever comes first.
func (s *Scheduler) Run() {
	s.running = true
	for s.running {
		if s.shuttingDown() {
			s.running = false
			break
		}
		s.runCycle()
		if s.emptyCycles >= s.maxEmptyCycles {
			s.running = false
		}
	}
}

// RunCycles executes exactly n tidal cycles regardless of empty-cycle
// shutdown, returning early only on Shutdown. Intended for tests and
// deterministic replay, where the caller wants precise cycle-count control.
func (s *Scheduler) RunCycles(n int) {
	s.running = true
	for i := 0; i < n && s.running; i++ {
		if s.shuttingDown() {
			s.running = false
			break
		}
		s.runCycle()
	}
	s.running = false
}

func (s *Scheduler) runCycle() {
	s.rest()
	s.sense()
	s.act()
	s.flushEmits()

	if len(s.workList) == 0 {
		s.emptyCycles++
		s.counters.EmptyCycles++
	} else {
		s.emptyCycles = 0
	}
}

// rest runs REST: bookkeeping plus every agent's on-cycle hook, fired every
// cycle including empty ones (spec.md §9's resolved open question).
func (s *Scheduler) rest() {
	s.phase = PhaseRest
	s.counters.CycleCount++
	s.workList = s.workList[:0]

	s.registry.Each(func(a *registry.Agent) {
		if a.Dispatch == nil {
			return
		}
		emit := s.emitFuncFor(a.ID)
		if err := a.Dispatch.InvokeCycleHook(emit); err != nil {
			s.counters.CycleHookFailures++
			s.opts.Logger.Warn("on-cycle hook failed", "agent", a.Name, "err", err)
		}
	})
}

// sense dequeues at most one signal per agent into the cycle's work list,
// preserving spawn order and the one-signal-per-agent fairness contract.
func (s *Scheduler) sense() {
	s.phase = PhaseSense
	s.registry.Each(func(a *registry.Agent) {
		if a.Queue == nil || a.Queue.Empty() {
			return
		}
		sig, ok := a.Queue.Dequeue()
		if !ok {
			return
		}
		s.workList = append(s.workList, work{agent: a, sig: sig})
	})
}

// act invokes dispatch for every (agent, signal) pair sensed this cycle, in
// spawn order, deferring any emitted signals to the per-cycle buffer.
func (s *Scheduler) act() {
	s.phase = PhaseAct
	for _, w := range s.workList {
		emit := s.emitFuncFor(w.agent.ID)
		err := w.agent.Dispatch.Invoke(w.sig, emit)
		w.sig.Release()
		s.counters.SignalCount++
		if err == nil {
			continue
		}
		switch {
		case errs.Is(err, errs.KindGuardFailed):
			// policy outcome, not a fault: the signal was still consumed.
		case errs.Is(err, errs.KindHandlerFailed):
			s.counters.HandlerFailures++
			s.opts.Logger.Warn("handler failed", "agent", w.agent.Name, "err", err)
		case errs.Is(err, errs.KindNoHandler):
			s.opts.Logger.Debug("no handler for signal", "agent", w.agent.Name, "err", err)
		default:
			s.opts.Logger.Warn("dispatch error", "agent", w.agent.Name, "err", err)
		}
	}
}

// emitFuncFor returns an EmitFunc bound to sourceID that appends a copy of
// the payload to the cycle's deferred emit buffer instead of delivering
// immediately.
func (s *Scheduler) emitFuncFor(sourceID uint32) dispatch.EmitFunc {
	return func(freq uint32, payload []byte) error {
		s.emitBuf = append(s.emitBuf, emitted{sourceID: sourceID, freq: freq, payload: append([]byte(nil), payload...)})
		return nil
	}
}

// flushEmits delivers every signal emitted during this cycle's REST and ACT
// phases through the routing table, so they land in destination queues at
// the cycle boundary rather than mid-cycle (spec.md §4.7).
func (s *Scheduler) flushEmits() {
	if len(s.emitBuf) == 0 {
		return
	}
	buf := s.emitBuf
	s.emitBuf = nil
	for _, e := range buf {
		sig, err := signal.Create(s.arena, e.freq, e.sourceID, e.payload)
		if err != nil {
			s.opts.Logger.Warn("emit dropped: could not allocate signal", "err", err)
			continue
		}
		s.routing.Broadcast(sig, e.sourceID, e.freq)
	}
}
