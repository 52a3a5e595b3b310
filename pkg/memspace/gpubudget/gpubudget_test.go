package gpubudget

import "testing"

func TestTracker_AllocateWithinCeilingSucceeds(t *testing.T) {
	tr := NewTracker(100)
	if err := tr.Allocate("weights", 60); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	got, ok := tr.Get("weights")
	if !ok || got != 60 {
		t.Fatalf("expected 60 bytes reserved, got %d (ok=%v)", got, ok)
	}
}

func TestTracker_AllocateOverCeilingFails(t *testing.T) {
	tr := NewTracker(100)
	if err := tr.Allocate("weights", 60); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := tr.Allocate("activations", 50); err == nil {
		t.Fatal("expected overflow allocation to fail")
	}
}

func TestTracker_ReallocatingSameNameResizes(t *testing.T) {
	tr := NewTracker(100)
	if err := tr.Allocate("working", 20); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := tr.Allocate("working", 40); err != nil {
		t.Fatalf("Allocate resize: %v", err)
	}
	stats := tr.Stats()
	if stats.Allocated != 40 {
		t.Fatalf("expected resized total 40, got %d", stats.Allocated)
	}
}

func TestTracker_DeallocateFreesBytes(t *testing.T) {
	tr := NewTracker(100)
	tr.Allocate("weights", 60)
	tr.Deallocate("weights")
	if err := tr.Allocate("activations", 90); err != nil {
		t.Fatalf("expected room after deallocation, got error: %v", err)
	}
}

func TestTracker_DeallocateUnknownNameIsNoop(t *testing.T) {
	tr := NewTracker(100)
	tr.Deallocate("nonexistent")
	if stats := tr.Stats(); stats.Allocated != 0 {
		t.Fatalf("expected no change, got allocated=%d", stats.Allocated)
	}
}

func TestTracker_StatsReportsUtilizationAndAvailability(t *testing.T) {
	tr := NewTracker(200)
	tr.Allocate("weights", 150)
	stats := tr.Stats()
	if stats.Available != 50 {
		t.Fatalf("expected 50 available, got %d", stats.Available)
	}
	if stats.Utilization != 0.75 {
		t.Fatalf("expected utilization 0.75, got %v", stats.Utilization)
	}
	if stats.Reservations["weights"] != 150 {
		t.Fatalf("expected reservations snapshot to include weights=150, got %+v", stats.Reservations)
	}
}

func TestNewDefaultTracker_MatchesRecommendedSplit(t *testing.T) {
	tr, err := NewDefaultTracker()
	if err != nil {
		t.Fatalf("NewDefaultTracker: %v", err)
	}
	stats := tr.Stats()
	if stats.Ceiling != DefaultTotalBytes {
		t.Fatalf("expected ceiling %d, got %d", DefaultTotalBytes, stats.Ceiling)
	}
	if stats.Allocated != DefaultWeightsBytes+DefaultActivationBytes+DefaultWorkingBytes+DefaultReservedBytes {
		t.Fatalf("expected fully-reserved default split, got allocated=%d", stats.Allocated)
	}
	if stats.Available != 0 {
		t.Fatalf("expected the default split to exactly exhaust the ceiling, got available=%d", stats.Available)
	}
}

func TestTracker_ResizeShrinkBlocksFutureAllocationUntilFreed(t *testing.T) {
	tr := NewTracker(100)
	tr.Allocate("weights", 80)
	tr.Resize(50)
	if err := tr.Allocate("activations", 10); err == nil {
		t.Fatal("expected allocation to fail after shrinking ceiling below current usage")
	}
	tr.Deallocate("weights")
	if err := tr.Allocate("activations", 10); err != nil {
		t.Fatalf("expected allocation to succeed once usage dropped below new ceiling: %v", err)
	}
}
