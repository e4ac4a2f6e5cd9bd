// Package dispatch implements the per-agent frequency -> handler table.
// Tables are small and dense (a handful of frequencies per agent is
// typical), so lookup is a linear scan rather than a hash map, matching the
// teacher's own small-table idiom (plugin/tfd/classifier.go's explicit
// branch-per-case classification, generalized here into a data-driven
// table so lowering can install entries without generating Go code).
package dispatch

import (
	"mycelial/internal/errs"
	"mycelial/pkg/signal"
)

// EmitFunc is handed to a Handler so it can emit outgoing signals. Per
// spec.md §4.7, emits never deliver immediately: the scheduler appends them
// to the current cycle's emit buffer and flushes the buffer through the
// routing table only after every agent's ACT has run.
type EmitFunc func(freq uint32, payload []byte) error

// Handler processes a signal against an agent's state. A non-nil error is
// mapped by Invoke to errs.KindHandlerFailed and counted.
type Handler func(state any, sig *signal.Signal, emit EmitFunc) error

// Guard decides whether a dispatch entry's handler should run.
type Guard func(state any, sig *signal.Signal) bool

// CycleHook is an agent's optional `on cycle` handler, invoked once per
// tidal cycle during REST regardless of whether the agent has pending
// signals (spec.md §9: "fires every cycle including empty ones").
type CycleHook func(state any, emit EmitFunc) error

// Entry is one (frequency, handler, optional guard) binding.
type Entry struct {
	FrequencyID uint32
	Handler     Handler
	Guard       Guard // nil means "always run"
	Active      bool
}

// Counters tracks dispatch observability as required by spec.md §4.6.
type Counters struct {
	Lookups       uint64
	Hits          uint64
	Misses        uint64
	GuardFailed   uint64
	HandlerFailed uint64
}

// Table is an agent's dispatch table: a small dense array of entries plus
// an optional default handler and the agent's own state, cached so Invoke
// never has to round-trip through the registry.
type Table struct {
	entries []Entry
	deflt   Handler
	onCycle CycleHook
	state   any

	counters Counters
}

// New creates an empty dispatch table bound to the given agent state.
func New(state any) *Table {
	return &Table{state: state}
}

// SetDefault installs the handler invoked when no frequency-specific entry
// matches.
func (t *Table) SetDefault(h Handler) { t.deflt = h }

// SetOnCycle installs the agent's `on cycle` hook.
func (t *Table) SetOnCycle(h CycleHook) { t.onCycle = h }

// InvokeCycleHook runs the agent's on-cycle hook, if any. A nil hook is a
// no-op, not an error.
func (t *Table) InvokeCycleHook(emit EmitFunc) error {
	if t.onCycle == nil {
		return nil
	}
	return t.onCycle(t.state, emit)
}

// Register installs or updates (in place) the binding for freq. Tables are
// small enough that a linear scan to find an existing binding is cheaper
// than hashing.
func (t *Table) Register(freq uint32, h Handler, guard Guard) {
	for i := range t.entries {
		if t.entries[i].FrequencyID == freq {
			t.entries[i].Handler = h
			t.entries[i].Guard = guard
			t.entries[i].Active = true
			return
		}
	}
	t.entries = append(t.entries, Entry{FrequencyID: freq, Handler: h, Guard: guard, Active: true})
}

// Unregister clears the active flag for freq without compacting the slice,
// keeping the table's backing array stable across calls.
func (t *Table) Unregister(freq uint32) {
	for i := range t.entries {
		if t.entries[i].FrequencyID == freq {
			t.entries[i].Active = false
			return
		}
	}
}

// Counters returns a snapshot of the table's lookup/hit/miss/outcome counts.
func (t *Table) Counters() Counters { return t.counters }

// Invoke dispatches sig against the table's cached agent state:
//  1. look up the entry for sig.FrequencyID;
//  2. if none (or inactive), call the default handler if set, else return
//     errs.KindNoHandler;
//  3. if the entry has a guard and it returns false, return
//     errs.KindGuardFailed (a policy outcome, not a fatal error) — the
//     signal is still considered consumed by the caller;
//  4. otherwise call the handler; a non-nil return is wrapped as
//     errs.KindHandlerFailed and counted.
func (t *Table) Invoke(sig *signal.Signal, emit EmitFunc) error {
	t.counters.Lookups++
	for i := range t.entries {
		e := &t.entries[i]
		if !e.Active || e.FrequencyID != sig.FrequencyID {
			continue
		}
		t.counters.Hits++
		if e.Guard != nil && !e.Guard(t.state, sig) {
			t.counters.GuardFailed++
			return errs.New("dispatch.Invoke", errs.KindGuardFailed, "guard declined signal")
		}
		if err := e.Handler(t.state, sig, emit); err != nil {
			t.counters.HandlerFailed++
			return errs.Wrap("dispatch.Invoke", errs.KindHandlerFailed, err)
		}
		return nil
	}
	t.counters.Misses++
	if t.deflt != nil {
		if err := t.deflt(t.state, sig, emit); err != nil {
			t.counters.HandlerFailed++
			return errs.Wrap("dispatch.Invoke", errs.KindHandlerFailed, err)
		}
		return nil
	}
	return errs.New("dispatch.Invoke", errs.KindNoHandler, "no entry or default handler for frequency")
}
