package queue

import (
	"testing"

	"mycelial/internal/errs"
	"mycelial/pkg/arena"
	"mycelial/pkg/signal"
)

func newSig(t *testing.T, a *arena.Arena) *signal.Signal {
	t.Helper()
	s, err := signal.Create(a, 1, 0, []byte("v"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestCapacityRoundsToPowerOfTwo(t *testing.T) {
	q := New(5)
	if q.Capacity() != 8 {
		t.Fatalf("Capacity() = %d, want 8", q.Capacity())
	}
}

func TestEnqueueDequeueEmptyQueue(t *testing.T) {
	a := arena.New()
	q := New(4)
	sig := newSig(t, a)

	if err := q.Enqueue(sig); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, ok := q.Dequeue()
	if !ok || got != sig {
		t.Fatalf("Dequeue() = %v, %v, want %v, true", got, ok, sig)
	}
	if !q.Empty() {
		t.Fatal("queue should be empty")
	}
	st := q.Stats()
	if st.TotalEnqueued != 1 || st.TotalDequeued != 1 {
		t.Fatalf("Stats() = %+v", st)
	}
	got.Release()
}

func TestQueueFullAtCapacityOne(t *testing.T) {
	a := arena.New()
	q := New(1)
	s1 := newSig(t, a)
	s2 := newSig(t, a)

	if err := q.Enqueue(s1); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	err := q.Enqueue(s2)
	if !errs.Is(err, errs.KindQueueFull) {
		t.Fatalf("second Enqueue err = %v, want KindQueueFull", err)
	}
	st := q.Stats()
	if st.DroppedCount != 1 {
		t.Fatalf("DroppedCount = %d, want 1", st.DroppedCount)
	}
}

func TestCountEqualsEnqueuedMinusDequeuedMinusDropped(t *testing.T) {
	a := arena.New()
	q := New(2)
	s1, s2, s3 := newSig(t, a), newSig(t, a), newSig(t, a)

	_ = q.Enqueue(s1)
	_ = q.Enqueue(s2)
	_ = q.Enqueue(s3) // dropped, capacity 2

	got, _ := q.Dequeue()
	if got != s1 {
		t.Fatalf("Dequeue() = %v, want s1", got)
	}

	st := q.Stats()
	want := int(st.TotalEnqueued) - int(st.TotalDequeued) - int(st.DroppedCount)
	if q.Count() != want {
		t.Fatalf("Count() = %d, want %d", q.Count(), want)
	}
}

func TestPeekNonDestructive(t *testing.T) {
	a := arena.New()
	q := New(2)
	s1 := newSig(t, a)
	_ = q.Enqueue(s1)

	got, ok := q.Peek()
	if !ok || got != s1 {
		t.Fatalf("Peek() = %v, %v", got, ok)
	}
	if q.Count() != 1 {
		t.Fatal("Peek should not remove the signal")
	}
}

func TestCapacityGateRejectsWhenFull(t *testing.T) {
	a := arena.New()
	q := New(1, WithCapacityGate())
	s1, s2 := newSig(t, a), newSig(t, a)

	if err := q.Enqueue(s1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(s2); !errs.Is(err, errs.KindQueueFull) {
		t.Fatalf("err = %v, want KindQueueFull", err)
	}

	if _, ok := q.Dequeue(); !ok {
		t.Fatal("Dequeue should succeed")
	}
	if err := q.Enqueue(s2); err != nil {
		t.Fatalf("Enqueue after Dequeue should succeed, got: %v", err)
	}
}
