package arena

import "testing"

func TestAllocateZeroed(t *testing.T) {
	a := New()
	blk, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	for i, b := range blk {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, b)
		}
	}
	if len(blk) != 16 {
		t.Fatalf("len(blk) = %d, want 16", len(blk))
	}
}

func TestAllocateZeroSize(t *testing.T) {
	a := New()
	blk, err := a.Allocate(0)
	if err != nil {
		t.Fatalf("Allocate(0): %v", err)
	}
	if blk != nil {
		t.Fatalf("Allocate(0) = %v, want nil", blk)
	}
}

func TestFreeListReuse(t *testing.T) {
	a := New()
	blk1, _ := a.Allocate(32)
	blk1[0] = 0xFF
	a.Free(blk1, 32)

	before := a.Stats()
	blk2, _ := a.Allocate(32)
	after := a.Stats()

	if blk2[0] != 0 {
		t.Fatalf("reused block not zeroed: %d", blk2[0])
	}
	if after.Total != before.Total+32 {
		t.Fatalf("Total = %d, want %d", after.Total, before.Total+32)
	}
}

func TestStatsMonotonic(t *testing.T) {
	a := New()
	_, _ = a.Allocate(100)
	_, _ = a.Allocate(200)
	s := a.Stats()
	if s.Used != 104+200 { // align8(100)=104
		t.Fatalf("Used = %d, want %d", s.Used, 104+200)
	}
	if s.Peak != s.Used {
		t.Fatalf("Peak = %d, want %d", s.Peak, s.Used)
	}
}

func TestOversizedAllocationGetsDedicatedPage(t *testing.T) {
	a := NewWithPageSize(64)
	blk, err := a.Allocate(1000)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(blk) != 1000 {
		t.Fatalf("len(blk) = %d, want 1000", len(blk))
	}
}

func TestResetClearsStatsNotPages(t *testing.T) {
	a := New()
	_, _ = a.Allocate(16)
	a.Reset()
	s := a.Stats()
	if s.Used != 0 || s.Peak != 0 || s.Total != 0 {
		t.Fatalf("Stats after Reset = %+v, want zero", s)
	}
}
