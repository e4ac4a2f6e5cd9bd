// Package routing implements the (source agent, frequency) -> destination
// set used to fan signals out to agent queues. The table is an
// open-addressed hash map with linear probing over FNV-1a keys, following
// the teacher's own fixed-size shard table (SShard.probe in
// plugin/tfd/saccumulator.go): a power-of-two array of slots, a zero/unused
// sentinel, and linear probing on collision.
//
// After ResolveQueues has run once (at network startup, before scheduling
// begins), Broadcast never hashes an agent id again — it walks the cached
// destination-queue array directly, satisfying spec.md §4.4's "delivery is
// a pure pointer-array iteration" invariant.
package routing

import (
	"hash/fnv"

	"mycelial/internal/errs"
	"mycelial/pkg/queue"
	"mycelial/pkg/signal"
)

// Key identifies a routing entry.
type Key struct {
	Source uint32
	Freq   uint32
}

func (k Key) hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	buf[0] = byte(k.Source)
	buf[1] = byte(k.Source >> 8)
	buf[2] = byte(k.Source >> 16)
	buf[3] = byte(k.Source >> 24)
	buf[4] = byte(k.Freq)
	buf[5] = byte(k.Freq >> 8)
	buf[6] = byte(k.Freq >> 16)
	buf[7] = byte(k.Freq >> 24)
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// QueueProvider resolves an agent id to its input queue. Registry
// implementations satisfy this interface.
type QueueProvider interface {
	QueueFor(agentID uint32) (*queue.Queue, bool)
}

type entry struct {
	key        Key
	used       bool
	destIDs    []uint32
	destQueues []*queue.Queue // filled by ResolveQueues; index-aligned with destIDs
}

// Table is the routing table. Capacity is fixed at construction and is
// rounded up to a power of two; it must comfortably exceed the number of
// distinct (source, frequency) pairs a topology declares.
type Table struct {
	slots []entry
	mask  uint64
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// New creates a routing table sized for at least capacityHint entries.
func New(capacityHint int) *Table {
	n := nextPow2(capacityHint*2 + 1) // keep load factor well under 1
	if n < 8 {
		n = 8
	}
	return &Table{slots: make([]entry, n), mask: uint64(n - 1)}
}

func (t *Table) probe(k Key) (idx int, found bool) {
	i := int(k.hash() & t.mask)
	for attempts := 0; attempts <= int(t.mask); attempts++ {
		s := &t.slots[i]
		if !s.used {
			return i, false
		}
		if s.key == k {
			return i, true
		}
		i = (i + 1) & int(t.mask)
	}
	return -1, false
}

// AddEntry installs or replaces the destination list for (source, freq).
// Destination order is preserved as declared (socket order), which
// determines broadcast delivery order per spec.md §4.7. Fails with
// errs.KindTableFull if probing wraps without finding a slot.
func (t *Table) AddEntry(source, freq uint32, dests []uint32) error {
	key := Key{Source: source, Freq: freq}
	idx, found := t.probe(key)
	if idx < 0 {
		return errs.New("routing.AddEntry", errs.KindTableFull, "probe sequence exhausted")
	}
	uniq := make([]uint32, 0, len(dests))
	seen := make(map[uint32]bool, len(dests))
	for _, d := range dests {
		if seen[d] {
			continue
		}
		seen[d] = true
		uniq = append(uniq, d)
	}
	t.slots[idx] = entry{key: key, used: true, destIDs: uniq}
	_ = found // replacing in place is the same write regardless of found
	return nil
}

// Lookup returns the destination agent ids declared for (source, freq).
func (t *Table) Lookup(source, freq uint32) ([]uint32, bool) {
	idx, found := t.probe(Key{Source: source, Freq: freq})
	if !found {
		return nil, false
	}
	return t.slots[idx].destIDs, true
}

// ResolveQueues fills the cached destination-queue array for every entry
// from the given provider. Destinations whose agent is not registered are
// left as a nil cache slot and are silently skipped during Broadcast
// (spec.md §4.4: "not an error").
func (t *Table) ResolveQueues(provider QueueProvider) {
	for i := range t.slots {
		s := &t.slots[i]
		if !s.used {
			continue
		}
		s.destQueues = make([]*queue.Queue, len(s.destIDs))
		for j, id := range s.destIDs {
			if q, ok := provider.QueueFor(id); ok {
				s.destQueues[j] = q
			}
		}
	}
}

// Broadcast delivers sig to every resolved destination queue for
// (source, freq), consuming the caller's reference to sig. It returns the
// number of successful deliveries. If there are zero destinations (or no
// matching entry), no enqueue is attempted and sig is still released.
func (t *Table) Broadcast(sig *signal.Signal, source, freq uint32) int {
	idx, found := t.probe(Key{Source: source, Freq: freq})
	if !found {
		sig.Release()
		return 0
	}
	dests := t.slots[idx].destQueues
	if len(dests) > 1 {
		sig.SetBroadcast()
	}
	delivered := 0
	for _, q := range dests {
		if q == nil {
			continue
		}
		if err := q.Enqueue(sig); err == nil {
			delivered++
		}
	}
	sig.Release()
	return delivered
}
