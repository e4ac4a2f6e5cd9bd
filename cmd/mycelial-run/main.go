// Command mycelial-run loads a compiled Mycelial descriptor, runs the
// tidal scheduler, and exposes its fruiting bodies over a small HTTP
// facade, modeled on cmd/ratelimiter-api's store+worker+ServeMux+
// signal-triggered graceful shutdown.
//
// Handler bodies are not interpreted by this implementation (they are
// documentation-only in a compiled descriptor's CODE section — see
// internal/compiler/ast's package doc for why): every declared binding is
// bound to a no-op handler that does nothing and emits nothing.
// This makes mycelial-run a soak/load-testing host — exercising the
// scheduler, routing, and HTTP surface under real traffic from
// tools/mycelial-loadgen — rather than a host for any one network's
// business logic, which is supplied by embedding internal/network.Load
// directly the way internal/network's own tests do.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mycelial/internal/descriptor"
	"mycelial/internal/network"
	"mycelial/internal/obslog"
	"mycelial/internal/replay"
	"mycelial/internal/runtimeconfig"
	"mycelial/internal/telemetry"
	"mycelial/pkg/dispatch"
	"mycelial/pkg/scheduler"
	"mycelial/pkg/signal"
)

func main() {
	os.Exit(mainRun(os.Args[1:]))
}

func mainRun(args []string) int {
	fs := flag.NewFlagSet("mycelial-run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	descPath := fs.String("descriptor", "", "path to a compiled .mycd descriptor")
	configPath := fs.String("config", "", "path to a JSON runtime config file")
	getConfig := runtimeconfig.BindFlags(fs, runtimeconfig.Config{})
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *descPath == "" {
		fmt.Fprintln(os.Stderr, "mycelial-run: --descriptor is required")
		return 1
	}

	cfg := getConfig()
	if *configPath != "" {
		fileCfg, err := runtimeconfig.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mycelial-run: %v\n", err)
			return 1
		}
		cfg = fileCfg
	}

	logger := obslog.Default()

	data, err := os.ReadFile(*descPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mycelial-run: reading descriptor: %v\n", err)
		return 1
	}
	desc, err := descriptor.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mycelial-run: decoding descriptor: %v\n", err)
		return 1
	}

	hs := soakHandlerSet(desc, cfg.QueueCapacity)
	net, err := network.Load(desc, hs, scheduler.Options{MaxEmptyCycles: cfg.MaxEmptyCycles, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mycelial-run: loading network: %v\n", err)
		return 1
	}

	rec, err := replay.BuildRecorder(cfg.ReplayAdapter, cfg.ReplayAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mycelial-run: %v\n", err)
		return 1
	}

	collector := telemetry.New(net.Registry, net.Scheduler, net.Arena)
	metricsReg, err := telemetry.NewRegistry(collector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mycelial-run: registering telemetry: %v\n", err)
		return 1
	}

	mux := http.NewServeMux()
	registerRoutes(mux, net, rec)
	mux.Handle("/metrics", telemetry.Handler(metricsReg))

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	go func() {
		logger.Info("starting scheduler")
		net.Scheduler.Run()
		logger.Info("scheduler stopped")
	}()

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	net.Scheduler.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
		return 1
	}
	return 0
}

// soakHandlerSet binds every declared (hyphal, frequency) pair to a no-op
// handler, since handler bodies are not interpreted by this
// implementation. Queue capacity for every hyphal is the configured
// default.
func soakHandlerSet(d *descriptor.NetworkDescriptor, queueCapacity int) network.HandlerSet {
	handlers := make(map[string]dispatch.Handler)
	factories := make(map[string]func() any)
	queueCaps := make(map[string]int)
	for _, agent := range d.Agents {
		factories[agent.HyphalName] = func() any { return nil }
		queueCaps[agent.HyphalName] = queueCapacity
		for _, binding := range agent.Handlers {
			handlers[agent.HyphalName+"."+binding.FrequencyName] = func(state any, sig *signal.Signal, emit dispatch.EmitFunc) error {
				return nil
			}
		}
	}
	return network.HandlerSet{
		StateFactories: factories,
		Handlers:       handlers,
		QueueCapacity:  queueCaps,
	}
}

func registerRoutes(mux *http.ServeMux, net *network.Network, rec replay.Recorder) {
	mux.HandleFunc("/inject/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/inject/")
		if name == "" {
			http.Error(w, "missing fruiting body name", http.StatusBadRequest)
			return
		}
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := net.Inject(name, payload); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if rec != nil {
			_ = rec.Record(r.Context(), replay.Entry{
				Cycle:   net.Scheduler.CycleCount(),
				Site:    name,
				Payload: payload,
			})
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/observe/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/observe/")
		if name == "" {
			http.Error(w, "missing fruiting body name", http.StatusBadRequest)
			return
		}
		out, err := net.Observe(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
