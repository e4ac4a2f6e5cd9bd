// Package runtimeconfig holds the tunables loaded by cmd/mycelial-run
// (cmd/mycelialc does not use it): queue default capacity, scheduler shutdown threshold,
// arena page size, and the metrics bind address. Defaulting follows the
// teacher's own pattern in plugin/tfd/sservice.go's SServiceOptions and
// persistence/clients.go's DemoOptions — a plain struct where the zero
// value of each field means "use the documented default", applied by a
// single normalizing pass rather than scattered nil checks at each call
// site.
package runtimeconfig

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"mycelial/internal/errs"
)

// Config is the runtime tunable set. A zero Config is valid: Normalize
// fills in every default.
type Config struct {
	// QueueCapacity is the default per-agent queue capacity, rounded up to
	// the next power of two by pkg/queue. Default 64.
	QueueCapacity int `json:"queue_capacity"`
	// MaxEmptyCycles is the scheduler's consecutive-empty-cycle shutdown
	// threshold (spec.md §4.7). Default pkg/scheduler.DefaultMaxEmptyCycles.
	MaxEmptyCycles int `json:"max_empty_cycles"`
	// ArenaPageSize is an arena page size in bytes. Default 64 KiB. It is
	// loaded and normalized but not passed to the arena: internal/network
	// builds its arena with arena.New(), which uses arena.DefaultPageSize.
	ArenaPageSize int `json:"arena_page_size"`
	// MetricsAddr is a metrics bind address. Default ":9090". No listener
	// is opened on it: cmd/mycelial-run serves /metrics on the HTTPAddr mux.
	MetricsAddr string `json:"metrics_addr"`
	// HTTPAddr is the bind address cmd/mycelial-run serves the fruiting
	// body facade on. Default ":8080".
	HTTPAddr string `json:"http_addr"`
	// ReplayAdapter selects internal/replay's Recorder ("memory", "redis").
	// Default "memory".
	ReplayAdapter string `json:"replay_adapter"`
	// ReplayAddr is the address passed to the replay adapter (e.g. a Redis
	// address). Required when ReplayAdapter is "redis".
	ReplayAddr string `json:"replay_addr"`
	// ShutdownGrace bounds how long cmd/mycelial-run waits for its HTTP
	// server to shut down gracefully after a shutdown signal.
	// Default 5s.
	ShutdownGrace time.Duration `json:"shutdown_grace"`
}

const (
	DefaultQueueCapacity  = 64
	DefaultArenaPageSize  = 64 * 1024
	DefaultMetricsAddr    = ":9090"
	DefaultHTTPAddr       = ":8080"
	DefaultReplayAdapter  = "memory"
	DefaultShutdownGrace  = 5 * time.Second
)

// Normalize applies documented defaults to every zero-valued field and
// returns the receiver's value, so callers can write
// cfg = cfg.Normalize().
func (c Config) Normalize() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.MaxEmptyCycles <= 0 {
		c.MaxEmptyCycles = 10
	}
	if c.ArenaPageSize <= 0 {
		c.ArenaPageSize = DefaultArenaPageSize
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.ReplayAdapter == "" {
		c.ReplayAdapter = DefaultReplayAdapter
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	return c
}

// LoadFile reads a JSON-encoded Config from path and normalizes it. A
// missing file is not an error: it returns a fully-defaulted Config, since
// both host binaries are meant to run config-file-free out of the box.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}.Normalize(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}.Normalize(), nil
	}
	if err != nil {
		return Config{}, errs.Wrap("runtimeconfig.LoadFile", errs.KindIO, err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, errs.Wrap("runtimeconfig.LoadFile", errs.KindInvalidInput, err)
	}
	return c.Normalize(), nil
}

// BindFlags registers every Config field on fs, seeded with the
// documented defaults, and returns a function that reads the parsed flag
// values back into a Config. Mirrors cmd/tfd-sim's flag.Int/flag.Duration
// usage, generalized across one struct instead of ad hoc local variables.
func BindFlags(fs *flag.FlagSet, base Config) func() Config {
	base = base.Normalize()
	queueCapacity := fs.Int("queue_capacity", base.QueueCapacity, "default per-agent queue capacity")
	maxEmptyCycles := fs.Int("max_empty_cycles", base.MaxEmptyCycles, "consecutive empty cycles before shutdown")
	arenaPageSize := fs.Int("arena_page_size", base.ArenaPageSize, "arena allocation page size in bytes")
	metricsAddr := fs.String("metrics_addr", base.MetricsAddr, "address to serve /metrics on")
	httpAddr := fs.String("http_addr", base.HTTPAddr, "address to serve the fruiting body facade on")
	replayAdapter := fs.String("replay_adapter", base.ReplayAdapter, "replay recorder adapter: memory or redis")
	replayAddr := fs.String("replay_addr", base.ReplayAddr, "address for the replay adapter, if it needs one")
	shutdownGrace := fs.Duration("shutdown_grace", base.ShutdownGrace, "time to wait for the HTTP server to shut down gracefully")

	return func() Config {
		return Config{
			QueueCapacity:  *queueCapacity,
			MaxEmptyCycles: *maxEmptyCycles,
			ArenaPageSize:  *arenaPageSize,
			MetricsAddr:    *metricsAddr,
			HTTPAddr:       *httpAddr,
			ReplayAdapter:  *replayAdapter,
			ReplayAddr:     *replayAddr,
			ShutdownGrace:  *shutdownGrace,
		}.Normalize()
	}
}
