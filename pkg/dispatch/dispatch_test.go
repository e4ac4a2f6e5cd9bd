package dispatch

import (
	"errors"
	"testing"

	"mycelial/internal/errs"
	"mycelial/pkg/arena"
	"mycelial/pkg/signal"
)

type fakeState struct{ value int }

func newSig(t *testing.T, freq uint32) *signal.Signal {
	t.Helper()
	a := arena.New()
	s, err := signal.Create(a, freq, 0, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func noopEmit(freq uint32, payload []byte) error { return nil }

func TestInvokeCallsMatchingHandler(t *testing.T) {
	st := &fakeState{}
	tbl := New(st)
	called := false
	tbl.Register(1, func(state any, sig *signal.Signal, emit EmitFunc) error {
		called = true
		state.(*fakeState).value = 42
		return nil
	}, nil)

	if err := tbl.Invoke(newSig(t, 1), noopEmit); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !called || st.value != 42 {
		t.Fatalf("handler not invoked correctly: called=%v value=%d", called, st.value)
	}
}

func TestInvokeNoHandler(t *testing.T) {
	tbl := New(&fakeState{})
	err := tbl.Invoke(newSig(t, 99), noopEmit)
	if !errs.Is(err, errs.KindNoHandler) {
		t.Fatalf("err = %v, want KindNoHandler", err)
	}
}

func TestInvokeDefaultHandler(t *testing.T) {
	tbl := New(&fakeState{})
	defaultCalled := false
	tbl.SetDefault(func(state any, sig *signal.Signal, emit EmitFunc) error {
		defaultCalled = true
		return nil
	})
	if err := tbl.Invoke(newSig(t, 7), noopEmit); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !defaultCalled {
		t.Fatal("default handler not invoked")
	}
}

func TestGuardFailed(t *testing.T) {
	tbl := New(&fakeState{})
	tbl.Register(1, func(state any, sig *signal.Signal, emit EmitFunc) error { return nil }, func(state any, sig *signal.Signal) bool {
		return false
	})
	err := tbl.Invoke(newSig(t, 1), noopEmit)
	if !errs.Is(err, errs.KindGuardFailed) {
		t.Fatalf("err = %v, want KindGuardFailed", err)
	}
	if tbl.Counters().GuardFailed != 1 {
		t.Fatalf("GuardFailed counter = %d, want 1", tbl.Counters().GuardFailed)
	}
}

func TestHandlerFailedCounted(t *testing.T) {
	tbl := New(&fakeState{})
	tbl.Register(1, func(state any, sig *signal.Signal, emit EmitFunc) error { return errors.New("boom") }, nil)
	err := tbl.Invoke(newSig(t, 1), noopEmit)
	if !errs.Is(err, errs.KindHandlerFailed) {
		t.Fatalf("err = %v, want KindHandlerFailed", err)
	}
	if tbl.Counters().HandlerFailed != 1 {
		t.Fatalf("HandlerFailed counter = %d, want 1", tbl.Counters().HandlerFailed)
	}
}

func TestRegisterUpdatesInPlace(t *testing.T) {
	tbl := New(&fakeState{})
	tbl.Register(1, func(state any, sig *signal.Signal, emit EmitFunc) error { return errors.New("first") }, nil)
	tbl.Register(1, func(state any, sig *signal.Signal, emit EmitFunc) error { return nil }, nil)

	if len(tbl.entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(tbl.entries))
	}
	if err := tbl.Invoke(newSig(t, 1), noopEmit); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
}

func TestUnregisterDeactivates(t *testing.T) {
	tbl := New(&fakeState{})
	tbl.Register(1, func(state any, sig *signal.Signal, emit EmitFunc) error { return nil }, nil)
	tbl.Unregister(1)
	err := tbl.Invoke(newSig(t, 1), noopEmit)
	if !errs.Is(err, errs.KindNoHandler) {
		t.Fatalf("err = %v, want KindNoHandler after Unregister", err)
	}
}

func TestOnCycleHookRunsAndCanEmit(t *testing.T) {
	tbl := New(&fakeState{})
	var gotFreq uint32
	tbl.SetOnCycle(func(state any, emit EmitFunc) error {
		return emit(5, []byte("tick"))
	})
	emit := func(freq uint32, payload []byte) error {
		gotFreq = freq
		return nil
	}
	if err := tbl.InvokeCycleHook(emit); err != nil {
		t.Fatalf("InvokeCycleHook: %v", err)
	}
	if gotFreq != 5 {
		t.Fatalf("gotFreq = %d, want 5", gotFreq)
	}
}

func TestInvokeCycleHookNilIsNoop(t *testing.T) {
	tbl := New(&fakeState{})
	if err := tbl.InvokeCycleHook(noopEmit); err != nil {
		t.Fatalf("InvokeCycleHook with nil hook: %v", err)
	}
}
