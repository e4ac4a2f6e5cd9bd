// Package telemetry exports runtime counters as Prometheus metrics,
// matching the project's existing telemetry practice in
// internal/ratelimiter/telemetry/churn/prom_counters.go: package-level
// metric descriptors, an /metrics HTTP handler via promhttp, and
// recording drawn from the component's own counters rather than a
// parallel bookkeeping system. Unlike churn's push-style counters
// (Inc() called at each hot-path event), this package is a pull-style
// prometheus.Collector: every scrape reads the live snapshot each
// component already exposes (arena.Stats, queue.Stats, dispatch.Counters,
// scheduler.Counters), so no runtime package needs a Prometheus import on
// its hot path.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mycelial/pkg/arena"
	"mycelial/pkg/registry"
	"mycelial/pkg/scheduler"
)

var (
	cyclesDesc            = prometheus.NewDesc("mycelial_scheduler_cycles_total", "Total tidal cycles run.", nil, nil)
	signalsDesc           = prometheus.NewDesc("mycelial_scheduler_signals_total", "Total signals processed in ACT.", nil, nil)
	emptyCyclesDesc       = prometheus.NewDesc("mycelial_scheduler_empty_cycles_total", "Total cycles that processed zero signals.", nil, nil)
	handlerFailuresDesc   = prometheus.NewDesc("mycelial_scheduler_handler_failures_total", "Total handler invocations that returned an error.", nil, nil)
	cycleHookFailuresDesc = prometheus.NewDesc("mycelial_scheduler_cycle_hook_failures_total", "Total on-cycle hook invocations that returned an error.", nil, nil)

	arenaUsedDesc  = prometheus.NewDesc("mycelial_arena_used_bytes", "Bytes currently allocated from the arena.", nil, nil)
	arenaPeakDesc  = prometheus.NewDesc("mycelial_arena_peak_bytes", "Peak bytes allocated from the arena.", nil, nil)
	arenaTotalDesc = prometheus.NewDesc("mycelial_arena_total_bytes", "Total bytes ever allocated from the arena.", nil, nil)

	queueDepthDesc   = prometheus.NewDesc("mycelial_queue_depth", "Current number of signals queued for an agent.", []string{"agent"}, nil)
	queueDroppedDesc = prometheus.NewDesc("mycelial_queue_dropped_total", "Total signals dropped due to a full queue.", []string{"agent"}, nil)

	dispatchHitsDesc          = prometheus.NewDesc("mycelial_dispatch_hits_total", "Total dispatch lookups that matched an active entry.", []string{"agent"}, nil)
	dispatchMissesDesc        = prometheus.NewDesc("mycelial_dispatch_misses_total", "Total dispatch lookups with no matching entry.", []string{"agent"}, nil)
	dispatchGuardFailedDesc   = prometheus.NewDesc("mycelial_dispatch_guard_failed_total", "Total dispatch invocations a guard declined.", []string{"agent"}, nil)
	dispatchHandlerFailedDesc = prometheus.NewDesc("mycelial_dispatch_handler_failed_total", "Total dispatch invocations whose handler returned an error.", []string{"agent"}, nil)
)

// Collector is a prometheus.Collector over one network's live state. It
// holds no counters of its own: every Collect call reads straight through
// to the registry, scheduler, and arena it was built from.
type Collector struct {
	reg   *registry.Registry
	sched *scheduler.Scheduler
	arena *arena.Arena
}

// New builds a Collector over the given network components.
func New(reg *registry.Registry, sched *scheduler.Scheduler, a *arena.Arena) *Collector {
	return &Collector{reg: reg, sched: sched, arena: a}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cyclesDesc
	ch <- signalsDesc
	ch <- emptyCyclesDesc
	ch <- handlerFailuresDesc
	ch <- cycleHookFailuresDesc
	ch <- arenaUsedDesc
	ch <- arenaPeakDesc
	ch <- arenaTotalDesc
	ch <- queueDepthDesc
	ch <- queueDroppedDesc
	ch <- dispatchHitsDesc
	ch <- dispatchMissesDesc
	ch <- dispatchGuardFailedDesc
	ch <- dispatchHandlerFailedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	sc := c.sched.Counters()
	ch <- prometheus.MustNewConstMetric(cyclesDesc, prometheus.CounterValue, float64(sc.CycleCount))
	ch <- prometheus.MustNewConstMetric(signalsDesc, prometheus.CounterValue, float64(sc.SignalCount))
	ch <- prometheus.MustNewConstMetric(emptyCyclesDesc, prometheus.CounterValue, float64(sc.EmptyCycles))
	ch <- prometheus.MustNewConstMetric(handlerFailuresDesc, prometheus.CounterValue, float64(sc.HandlerFailures))
	ch <- prometheus.MustNewConstMetric(cycleHookFailuresDesc, prometheus.CounterValue, float64(sc.CycleHookFailures))

	as := c.arena.Stats()
	ch <- prometheus.MustNewConstMetric(arenaUsedDesc, prometheus.GaugeValue, float64(as.Used))
	ch <- prometheus.MustNewConstMetric(arenaPeakDesc, prometheus.GaugeValue, float64(as.Peak))
	ch <- prometheus.MustNewConstMetric(arenaTotalDesc, prometheus.GaugeValue, float64(as.Total))

	c.reg.Each(func(a *registry.Agent) {
		if a.Queue != nil {
			qs := a.Queue.Stats()
			ch <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(a.Queue.Count()), a.Name)
			ch <- prometheus.MustNewConstMetric(queueDroppedDesc, prometheus.CounterValue, float64(qs.DroppedCount), a.Name)
		}
		if a.Dispatch != nil {
			dc := a.Dispatch.Counters()
			ch <- prometheus.MustNewConstMetric(dispatchHitsDesc, prometheus.CounterValue, float64(dc.Hits), a.Name)
			ch <- prometheus.MustNewConstMetric(dispatchMissesDesc, prometheus.CounterValue, float64(dc.Misses), a.Name)
			ch <- prometheus.MustNewConstMetric(dispatchGuardFailedDesc, prometheus.CounterValue, float64(dc.GuardFailed), a.Name)
			ch <- prometheus.MustNewConstMetric(dispatchHandlerFailedDesc, prometheus.CounterValue, float64(dc.HandlerFailed), a.Name)
		}
	})
}

// NewRegistry builds a dedicated prometheus.Registry with c registered.
// Keeping the collector on a private registry rather than the global
// default avoids cross-network metric collisions when more than one
// Network runs in the same process.
func NewRegistry(c *Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return reg, nil
}

// Handler returns the /metrics HTTP handler for reg, matching churn's
// promhttp.Handler() wiring.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
