// Package signal implements the typed message envelope that flows through a
// Mycelial network: a fixed header plus an optional owned payload, with
// reference counting so a broadcast signal can be held by several queues at
// once and freed exactly when the last holder releases it. The refcount
// style follows the teacher's own atomic-counter idiom (see vsa.go).
package signal

import (
	"sync/atomic"
	"time"

	"mycelial/internal/errs"
	"mycelial/pkg/arena"
)

// MaxPayload is the largest payload a signal may carry.
const MaxPayload = 64 * 1024

// Flags are bit flags on a Signal header.
type Flags uint8

const (
	FlagOwnsPayload Flags = 1 << iota
	FlagBroadcast
	FlagProcessed
)

// Signal is a message header plus an optional payload. A Signal is only
// valid while its RefCount is greater than zero; at zero it has been
// returned to its arena and must not be touched.
type Signal struct {
	FrequencyID    uint32
	SourceAgentID  uint32
	Flags          Flags
	Timestamp      int64 // monotonic nanoseconds

	refCount atomic.Int32

	payload         []byte
	payloadSize     int
	payloadCapacity int

	arena *arena.Arena
}

// clockBase anchors Timestamp on the monotonic clock.
var clockBase = time.Now()

// now is overridable for deterministic tests. It returns monotonic
// nanoseconds elapsed since package initialisation.
var now = func() int64 { return int64(time.Since(clockBase)) }

func round8(n int) int {
	return (n + 7) &^ 7
}

// Create allocates a header and, if payload is non-empty, copies it into a
// freshly arena-allocated block rounded up to an 8-byte boundary. size=0
// yields a nil payload and zero capacity. size > MaxPayload fails with
// errs.KindPayloadTooLarge.
func Create(a *arena.Arena, freq uint32, source uint32, payload []byte) (*Signal, error) {
	size := len(payload)
	if size > MaxPayload {
		return nil, errs.New("signal.Create", errs.KindPayloadTooLarge, "payload exceeds MAX_PAYLOAD")
	}
	s := &Signal{
		FrequencyID:   freq,
		SourceAgentID: source,
		Timestamp:     now(),
		arena:         a,
	}
	s.refCount.Store(1)

	if size == 0 {
		return s, nil
	}
	cap8 := round8(size)
	blk, err := a.Allocate(cap8)
	if err != nil {
		return nil, errs.Wrap("signal.Create", errs.KindOutOfMemory, err)
	}
	n := copy(blk, payload)
	s.payload = blk[:n]
	s.payloadSize = size
	s.payloadCapacity = cap8
	s.Flags |= FlagOwnsPayload
	return s, nil
}

// Payload returns the signal's payload bytes (read-only view).
func (s *Signal) Payload() []byte { return s.payload[:s.payloadSize] }

// PayloadSize returns the logical payload size in bytes.
func (s *Signal) PayloadSize() int { return s.payloadSize }

// PayloadCapacity returns the rounded, allocated payload capacity.
func (s *Signal) PayloadCapacity() int { return s.payloadCapacity }

// RefCount returns the current strong reference count.
func (s *Signal) RefCount() int32 { return s.refCount.Load() }

// Ref increments the reference count; call once per new strong holder
// (e.g. once per destination queue during a broadcast).
func (s *Signal) Ref() {
	s.refCount.Add(1)
}

// Release decrements the reference count and, if it reaches zero, returns
// the owned payload (if any) to its arena. Release is idempotent-unsafe by
// design: calling it more times than Ref+Create's initial reference is a
// caller bug, matching spec.md's "ref_count=0 ⇔ freed" invariant.
func (s *Signal) Release() {
	if s.refCount.Add(-1) != 0 {
		return
	}
	if s.Flags&FlagOwnsPayload != 0 && s.payload != nil && s.arena != nil {
		s.arena.Free(s.payload[:0:s.payloadCapacity], s.payloadCapacity)
	}
	s.payload = nil
}

// MarkProcessed sets the processed flag for observability. Neither the
// scheduler nor the dispatch table calls it, and routing logic never reads
// the flag.
func (s *Signal) MarkProcessed() { s.Flags |= FlagProcessed }

// IsBroadcast reports whether the broadcast flag is set.
func (s *Signal) IsBroadcast() bool { return s.Flags&FlagBroadcast != 0 }

// SetBroadcast sets the broadcast flag, used by routing when a signal is
// fanned out to more than one destination.
func (s *Signal) SetBroadcast() { s.Flags |= FlagBroadcast }
