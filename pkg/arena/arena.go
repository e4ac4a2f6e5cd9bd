// Package arena implements the memory backing store for Mycelial: a bump
// allocator over fixed-size pages with a size-bucketed free list for reuse,
// used for queues, dispatch tables, agent state records, and signal
// payload/header blocks. Sized pages follow the teacher corpus's own
// sharded-backing-store idiom (see pkg/arena's DESIGN.md entry):
// allocate in coarse pages, then carve fixed blocks out of them.
package arena

import (
	"sync"

	"mycelial/internal/errs"
)

// DefaultPageSize is the size of a single backing page, chosen to comfortably
// hold a handful of signal payloads before a new page is needed.
const DefaultPageSize = 64 * 1024

const alignment = 8

func align8(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

// Stats reports allocator statistics. Peak and Total are monotonic until
// Reset; Used falls as blocks are freed.
type Stats struct {
	Used  int64
	Peak  int64
	Total int64 // cumulative bytes ever handed out (including reused blocks)
}

// Arena is a single-threaded-by-contract bump/free-list allocator. It is
// guarded by a mutex so it can back queues and signal pools shared across a
// network's exogenous injection path, matching spec.md §4.1's "fails with
// OutOfMemory" contract without requiring callers to coordinate externally.
type Arena struct {
	mu        sync.Mutex
	pageSize  int
	pages     [][]byte
	pageUsed  []int // bytes consumed in the tail of each page
	freeLists map[int][][]byte

	stats Stats
}

// New creates an arena with the default page size.
func New() *Arena {
	return NewWithPageSize(DefaultPageSize)
}

// NewWithPageSize creates an arena whose backing pages are pageSize bytes.
func NewWithPageSize(pageSize int) *Arena {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Arena{
		pageSize:  pageSize,
		freeLists: make(map[int][][]byte),
	}
}

// Allocate returns an 8-byte-aligned, zero-initialized block of n bytes.
// Reused blocks (from Free) are zeroed up to n before being returned; fresh
// pages are already zero. Fails with errs.KindOutOfMemory when neither the
// free list nor the bump region can satisfy the request.
func (a *Arena) Allocate(n int) ([]byte, error) {
	if n < 0 {
		return nil, errs.New("arena.Allocate", errs.KindOutOfMemory, "negative allocation size")
	}
	if n == 0 {
		return nil, nil
	}
	size := align8(n)

	a.mu.Lock()
	defer a.mu.Unlock()

	if bucket := a.freeLists[size]; len(bucket) > 0 {
		blk := bucket[len(bucket)-1]
		a.freeLists[size] = bucket[:len(bucket)-1]
		for i := range blk[:n] {
			blk[i] = 0
		}
		a.recordAlloc(size)
		return blk[:n:size], nil
	}

	if size > a.pageSize {
		// Oversized block: give it a dedicated page.
		page := make([]byte, size)
		a.pages = append(a.pages, page)
		a.pageUsed = append(a.pageUsed, size)
		a.recordAlloc(size)
		return page[:n:size], nil
	}

	if len(a.pages) == 0 || a.pageUsed[len(a.pages)-1]+size > a.pageSize {
		a.pages = append(a.pages, make([]byte, a.pageSize))
		a.pageUsed = append(a.pageUsed, 0)
	}
	last := len(a.pages) - 1
	off := a.pageUsed[last]
	blk := a.pages[last][off : off+size]
	a.pageUsed[last] += size
	a.recordAlloc(size)
	return blk[:n:size], nil
}

func (a *Arena) recordAlloc(size int) {
	a.stats.Used += int64(size)
	a.stats.Total += int64(size)
	if a.stats.Used > a.stats.Peak {
		a.stats.Peak = a.stats.Used
	}
}

// Free returns a block of the given logical size n to the free list for
// reuse. n must match the size originally requested from Allocate.
func (a *Arena) Free(blk []byte, n int) {
	if n <= 0 || blk == nil {
		return
	}
	size := align8(n)
	full := blk[:n:size]

	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeLists[size] = append(a.freeLists[size], full[:size:size])
	a.stats.Used -= int64(size)
	if a.stats.Used < 0 {
		a.stats.Used = 0
	}
}

// Stats returns a snapshot of current allocator statistics.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Reset clears used/peak/total bookkeeping without releasing backing pages or the
// free list; intended for per-run metrics resets in tests and benchmarks.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = Stats{}
}
