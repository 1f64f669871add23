package rsi

import "testing"

func TestClientIdAllocator_UniquenessP1(t *testing.T) {
	a := NewClientIdAllocator()

	seen := make(map[uint16]struct{})

	for i := 0; i < 2000; i++ {
		id, err := a.Allocate()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}

		if id == 0 {
			t.Fatal("allocated id must be nonzero")
		}

		if _, dup := seen[uint16(id)]; dup {
			t.Fatalf("duplicate client id %d", id)
		}

		seen[uint16(id)] = struct{}{}
	}

	if a.Live() != 2000 {
		t.Fatalf("live count = %d, want 2000", a.Live())
	}
}

func TestClientIdAllocator_ReleaseAllowsReuse(t *testing.T) {
	a := NewClientIdAllocator()

	id, err := a.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	a.Release(id)

	if a.IsAllocated(id) {
		t.Fatal("released id must not be allocated")
	}

	if a.Live() != 0 {
		t.Fatalf("live count = %d, want 0", a.Live())
	}
}

func TestClientIdAllocator_ReleaseUnknownIsNoop(t *testing.T) {
	a := NewClientIdAllocator()
	a.Release(42) // must not panic
}
