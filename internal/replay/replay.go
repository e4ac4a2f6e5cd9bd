// Package replay records the exogenous input stream a Network is driven
// with — not signal objects, per spec.md §9's design note that recording
// just the input stream suffices to replay any run exactly, since the
// scheduler itself is deterministic given topology + injected input.
//
// The Recorder abstraction and its adapters follow the teacher's
// persistence package shape (internal/ratelimiter/persistence): a small
// interface, a dependency-free in-process adapter, and a real
// github.com/redis/go-redis/v9-backed adapter, selected through a string-
// keyed factory function mirroring persistence/factory.go's BuildPersister.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"mycelial/internal/errs"
)

// Entry is one recorded exogenous injection: the fruiting body it targeted,
// the payload bytes, and the cycle count observed immediately before the
// injection took effect. Replaying the same ordered Entry stream into a
// freshly loaded Network with the same topology reproduces the same run.
type Entry struct {
	Cycle   uint64 `json:"cycle"`
	Site    string `json:"site"`
	Payload []byte `json:"payload"`
}

// Recorder appends Entries to a durable or in-process log and reads them
// back in append order.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Entries(ctx context.Context) ([]Entry, error)
}

// MemoryRecorder is a dependency-free, in-process Recorder. It is the
// default adapter, usable without any external service.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryRecorder returns an empty in-process recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryRecorder) Entries(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

// RedisRecorder appends the input stream to a Redis list, using RPUSH/LRANGE
// so replay always reads entries back in recorded order. Built on a real
// github.com/redis/go-redis/v9 client rather than a logging stand-in,
// since a replay log is only useful if it actually survives process
// restarts.
type RedisRecorder struct {
	client *redis.Client
	key    string
}

// DefaultRedisKey is the list key used when the caller does not need more
// than one replay stream per Redis instance.
const DefaultRedisKey = "mycelial:replay"

// NewRedisRecorder returns a Recorder backed by a Redis instance at addr,
// appending to the given list key.
func NewRedisRecorder(addr, key string) *RedisRecorder {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRecorder{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

func (r *RedisRecorder) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errs.Wrap("replay.Record", errs.KindIO, err)
	}
	return r.client.RPush(ctx, r.key, data).Err()
}

func (r *RedisRecorder) Entries(ctx context.Context) ([]Entry, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, errs.Wrap("replay.Entries", errs.KindIO, err)
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, errs.Wrap("replay.Entries", errs.KindIO, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Close releases the underlying Redis connection pool.
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}

// BuildRecorder constructs a Recorder by adapter name, mirroring the
// teacher's persistence.BuildPersister selector:
//   - "memory" (default): dependency-free MemoryRecorder
//   - "redis": RedisRecorder against addr
func BuildRecorder(kind, addr string) (Recorder, error) {
	switch kind {
	case "", "memory":
		return NewMemoryRecorder(), nil
	case "redis":
		if addr == "" {
			return nil, errs.New("replay.BuildRecorder", errs.KindInvalidInput, "redis adapter requires a non-empty address")
		}
		return NewRedisRecorder(addr, DefaultRedisKey), nil
	default:
		return nil, errs.New("replay.BuildRecorder", errs.KindInvalidInput, fmt.Sprintf("unknown replay adapter: %s", kind))
	}
}

// Injector is the subset of *network.Network replay needs, kept narrow so
// this package does not import internal/network (network's Inject already
// reads clean without needing anything back from replay).
type Injector interface {
	Inject(name string, payload []byte) error
}

// CycleCounter reports how many tidal cycles a scheduler has completed, and
// can run more. *pkg/scheduler.Scheduler satisfies this.
type CycleCounter interface {
	RunCycles(n int)
	CycleCount() uint64
}

// Replay drives net with the recorded entries in order. Before each entry
// it advances sched by whole cycles until sched has completed exactly the
// entry's recorded Cycle, then injects — reproducing the cycle boundary
// the original run observed that injection at.
func Replay(ctx context.Context, rec Recorder, net Injector, sched CycleCounter) error {
	// The recorded stream is read up front: it is the closed log of a run
	// that already finished, not a live feed growing alongside replay.
	entries, err := rec.Entries(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if behind := e.Cycle - sched.CycleCount(); behind > 0 {
			sched.RunCycles(int(behind))
		}
		if err := net.Inject(e.Site, e.Payload); err != nil {
			return err
		}
	}
	return nil
}
