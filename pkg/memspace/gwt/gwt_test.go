package gwt

import (
	"testing"
	"time"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
)

func TestSystem_New_HasDefaultSizedKuramotoNetwork(t *testing.T) {
	s := New()
	if s.Kuramoto.Size() != DefaultN {
		t.Fatalf("expected %d oscillators, got %d", DefaultN, s.Kuramoto.Size())
	}
}

func TestSystem_StepKuramotoKeepsOrderParameterInRange(t *testing.T) {
	s := New()
	initial := s.KuramotoR()
	for i := 0; i < 10; i++ {
		s.StepKuramoto(10 * time.Millisecond)
	}
	final := s.KuramotoR()
	if final < 0 || final > 1 {
		t.Fatalf("expected r to remain valid, got %v", final)
	}
	_ = initial
}

func TestSystem_UpdateConsciousnessAutoUsesInternalR(t *testing.T) {
	s := New()
	for i := 0; i < 50; i++ {
		s.StepKuramoto(10 * time.Millisecond)
	}
	vals := make([]float32, fingerprint.PurposeVectorDim)
	for i := range vals {
		vals[i] = 1.0
	}
	pv, err := fingerprint.NewPurposeVector(vals)
	if err != nil {
		t.Fatalf("NewPurposeVector: %v", err)
	}
	c, _, err := s.UpdateConsciousnessAuto(0.8, pv)
	if err != nil {
		t.Fatalf("UpdateConsciousnessAuto: %v", err)
	}
	if c < 0 || c > 1 {
		t.Fatalf("expected C(t) in [0,1], got %v", c)
	}
}

func TestSystem_SelectWorkspaceMemoryDelegatesToWorkspace(t *testing.T) {
	s := New()
	winner, ok := s.SelectWorkspaceMemory([]Candidate{{R: 0.5, Importance: 0.5}})
	if !ok {
		t.Fatal("expected a winner")
	}
	current, ok := s.Workspace.CurrentWinner()
	if !ok || current.ID != winner {
		t.Fatal("expected System.SelectWorkspaceMemory to update the underlying Workspace")
	}
}
