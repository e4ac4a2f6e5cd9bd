package runtimeconfig

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	c := Config{}.Normalize()
	if c.QueueCapacity != DefaultQueueCapacity {
		t.Errorf("QueueCapacity = %d, want %d", c.QueueCapacity, DefaultQueueCapacity)
	}
	if c.ArenaPageSize != DefaultArenaPageSize {
		t.Errorf("ArenaPageSize = %d, want %d", c.ArenaPageSize, DefaultArenaPageSize)
	}
	if c.MetricsAddr != DefaultMetricsAddr {
		t.Errorf("MetricsAddr = %q, want %q", c.MetricsAddr, DefaultMetricsAddr)
	}
	if c.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr = %q, want %q", c.HTTPAddr, DefaultHTTPAddr)
	}
	if c.ReplayAdapter != DefaultReplayAdapter {
		t.Errorf("ReplayAdapter = %q, want %q", c.ReplayAdapter, DefaultReplayAdapter)
	}
	if c.ShutdownGrace != DefaultShutdownGrace {
		t.Errorf("ShutdownGrace = %v, want %v", c.ShutdownGrace, DefaultShutdownGrace)
	}
}

func TestNormalizePreservesExplicitValues(t *testing.T) {
	c := Config{QueueCapacity: 128, MetricsAddr: ":1234"}.Normalize()
	if c.QueueCapacity != 128 {
		t.Errorf("QueueCapacity = %d, want 128", c.QueueCapacity)
	}
	if c.MetricsAddr != ":1234" {
		t.Errorf("MetricsAddr = %q, want :1234", c.MetricsAddr)
	}
	// untouched fields still get defaults
	if c.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr = %q, want %q", c.HTTPAddr, DefaultHTTPAddr)
	}
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	c, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.QueueCapacity != DefaultQueueCapacity {
		t.Errorf("QueueCapacity = %d, want %d", c.QueueCapacity, DefaultQueueCapacity)
	}
}

func TestLoadFileParsesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"queue_capacity": 256, "replay_adapter": "redis", "replay_addr": "localhost:6379"}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.QueueCapacity != 256 {
		t.Errorf("QueueCapacity = %d, want 256", c.QueueCapacity)
	}
	if c.ReplayAdapter != "redis" || c.ReplayAddr != "localhost:6379" {
		t.Errorf("replay config = %q/%q", c.ReplayAdapter, c.ReplayAddr)
	}
}

func TestLoadFileRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestBindFlagsAppliesOverridesAndDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	get := BindFlags(fs, Config{})
	if err := fs.Parse([]string{"-queue_capacity=32", "-shutdown_grace=10s"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c := get()
	if c.QueueCapacity != 32 {
		t.Errorf("QueueCapacity = %d, want 32", c.QueueCapacity)
	}
	if c.ShutdownGrace != 10*time.Second {
		t.Errorf("ShutdownGrace = %v, want 10s", c.ShutdownGrace)
	}
	if c.MetricsAddr != DefaultMetricsAddr {
		t.Errorf("MetricsAddr = %q, want default %q", c.MetricsAddr, DefaultMetricsAddr)
	}
}
