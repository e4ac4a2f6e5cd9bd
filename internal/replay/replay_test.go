package replay

import (
	"context"
	"testing"
)

func TestMemoryRecorderRoundTrip(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()

	want := []Entry{
		{Cycle: 0, Site: "fruit_in", Payload: []byte{1}},
		{Cycle: 2, Site: "fruit_in", Payload: []byte{2}},
		{Cycle: 5, Site: "other_site", Payload: []byte{3, 4}},
	}
	for _, e := range want {
		if err := rec.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := rec.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Entries = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i].Cycle != want[i].Cycle || got[i].Site != want[i].Site || string(got[i].Payload) != string(want[i].Payload) {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildRecorderDefaultsToMemory(t *testing.T) {
	rec, err := BuildRecorder("", "")
	if err != nil {
		t.Fatalf("BuildRecorder: %v", err)
	}
	if _, ok := rec.(*MemoryRecorder); !ok {
		t.Fatalf("BuildRecorder(\"\", \"\") = %T, want *MemoryRecorder", rec)
	}
}

func TestBuildRecorderRedisRequiresAddr(t *testing.T) {
	if _, err := BuildRecorder("redis", ""); err == nil {
		t.Fatal("expected error for redis adapter with no address")
	}
}

func TestBuildRecorderUnknownKind(t *testing.T) {
	if _, err := BuildRecorder("carrier-pigeon", "x"); err == nil {
		t.Fatal("expected error for unknown adapter kind")
	}
}

type fakeNet struct {
	injected []Entry
	fail     string
}

func (f *fakeNet) Inject(name string, payload []byte) error {
	if name == f.fail {
		return errString("injection rejected")
	}
	f.injected = append(f.injected, Entry{Site: name, Payload: payload})
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }

type fakeSched struct {
	cycles uint64
}

func (f *fakeSched) RunCycles(n int) { f.cycles += uint64(n) }
func (f *fakeSched) CycleCount() uint64 { return f.cycles }

func TestReplayAdvancesCyclesBeforeInjecting(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()
	entries := []Entry{
		{Cycle: 0, Site: "a", Payload: []byte{1}},
		{Cycle: 3, Site: "b", Payload: []byte{2}},
		{Cycle: 3, Site: "c", Payload: []byte{3}},
	}
	for _, e := range entries {
		if err := rec.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	net := &fakeNet{}
	sched := &fakeSched{}
	if err := Replay(ctx, rec, net, sched); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if sched.cycles != 3 {
		t.Fatalf("sched.cycles = %d, want 3", sched.cycles)
	}
	if len(net.injected) != 3 {
		t.Fatalf("injected = %+v, want 3 entries", net.injected)
	}
}

func TestReplayPropagatesInjectError(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()
	if err := rec.Record(ctx, Entry{Site: "bad"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	net := &fakeNet{fail: "bad"}
	sched := &fakeSched{}
	if err := Replay(ctx, rec, net, sched); err == nil {
		t.Fatal("expected Replay to propagate Inject error")
	}
}
