package registry

import (
	"testing"

	"mycelial/internal/errs"
	"mycelial/pkg/dispatch"
	"mycelial/pkg/queue"
)

func TestRegisterAndByID(t *testing.T) {
	r := New(4)
	q := queue.New(4)
	d := dispatch.New(nil)
	if err := r.Register(1, "spore", nil, q, d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	a, ok := r.ByID(1)
	if !ok {
		t.Fatal("ByID should find agent 1")
	}
	if a.Name != "spore" || a.Queue != q || a.Dispatch != d {
		t.Fatalf("agent fields not wired correctly: %+v", a)
	}
}

func TestRegisterOutOfRange(t *testing.T) {
	r := New(2)
	err := r.Register(5, "x", nil, queue.New(1), dispatch.New(nil))
	if !errs.Is(err, errs.KindCapacityExceeded) {
		t.Fatalf("err = %v, want KindCapacityExceeded", err)
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	r := New(2)
	_ = r.Register(1, "a", nil, queue.New(1), dispatch.New(nil))
	err := r.Register(1, "b", nil, queue.New(1), dispatch.New(nil))
	if !errs.Is(err, errs.KindAgentExists) {
		t.Fatalf("err = %v, want KindAgentExists", err)
	}
}

func TestByName(t *testing.T) {
	r := New(2)
	_ = r.Register(1, "hypha-a", nil, queue.New(1), dispatch.New(nil))
	_ = r.Register(2, "hypha-b", nil, queue.New(1), dispatch.New(nil))
	a, ok := r.ByName("hypha-b")
	if !ok || a.ID != 2 {
		t.Fatalf("ByName(hypha-b) = %+v, %v", a, ok)
	}
	if _, ok := r.ByName("missing"); ok {
		t.Fatal("ByName should not find unregistered name")
	}
}

func TestQueueForSatisfiesProvider(t *testing.T) {
	r := New(1)
	q := queue.New(4)
	_ = r.Register(1, "a", nil, q, dispatch.New(nil))
	got, ok := r.QueueFor(1)
	if !ok || got != q {
		t.Fatalf("QueueFor(1) = %v, %v", got, ok)
	}
	if _, ok := r.QueueFor(99); ok {
		t.Fatal("QueueFor should fail for unregistered id")
	}
}

func TestEachVisitsInSpawnOrder(t *testing.T) {
	r := New(3)
	_ = r.Register(3, "third", nil, queue.New(1), dispatch.New(nil))
	_ = r.Register(1, "first", nil, queue.New(1), dispatch.New(nil))
	_ = r.Register(2, "second", nil, queue.New(1), dispatch.New(nil))

	var order []string
	r.Each(func(a *Agent) { order = append(order, a.Name) })
	want := []string{"third", "first", "second"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestLen(t *testing.T) {
	r := New(3)
	_ = r.Register(1, "a", nil, queue.New(1), dispatch.New(nil))
	_ = r.Register(2, "b", nil, queue.New(1), dispatch.New(nil))
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
}
