package atc

import "testing"

func TestArmStats_RecordOutcomes(t *testing.T) {
	var s ArmStats
	if s.MeanReward != 0 {
		t.Fatal("expected zero initial mean reward")
	}
	s.recordSuccess()
	if s.Successes != 1 || s.Pulls != 1 || s.MeanReward != 1.0 {
		t.Fatalf("unexpected stats after one success: %+v", s)
	}
	s.recordFailure()
	if s.Failures != 1 || s.Pulls != 2 || s.MeanReward != 0.5 {
		t.Fatalf("unexpected stats after success+failure: %+v", s)
	}
}

func TestArmStats_BetaParams(t *testing.T) {
	var s ArmStats
	s.recordSuccess()
	s.recordSuccess()
	alpha, beta := s.BetaParams()
	if alpha != 3 || beta != 1 {
		t.Fatalf("expected alpha=3 beta=1, got alpha=%v beta=%v", alpha, beta)
	}
}

func TestNewBandit_Construction(t *testing.T) {
	arms := []Arm{{Value: 0.70}, {Value: 0.75}, {Value: 0.80}}
	b := NewBandit(arms, 1.5)
	if len(b.arms) != 3 {
		t.Fatalf("expected 3 arms, got %d", len(b.arms))
	}
	if b.totalPulls != 0 {
		t.Fatal("expected zero initial pulls")
	}
}

func TestBandit_UCBPrioritizesUnplayedArms(t *testing.T) {
	arms := []Arm{{Value: 0.70}, {Value: 0.75}, {Value: 0.80}}
	b := NewBandit(arms, 1.5)
	b.RecordOutcome(Arm{Value: 0.70}, true)
	b.RecordOutcome(Arm{Value: 0.75}, true)
	arm, ok := b.SelectUCB()
	if !ok {
		t.Fatal("expected a selection from a non-empty bandit")
	}
	if arm.Value != 0.80 {
		t.Fatalf("expected the unplayed arm 0.80 to be selected, got %v", arm.Value)
	}
}

func TestBandit_RecordOutcomes(t *testing.T) {
	arms := []Arm{{Value: 0.70}, {Value: 0.75}}
	b := NewBandit(arms, 1.5)
	b.RecordOutcome(Arm{Value: 0.70}, true)
	b.RecordOutcome(Arm{Value: 0.70}, true)
	b.RecordOutcome(Arm{Value: 0.75}, false)

	s70, ok := b.ArmStatsFor(Arm{Value: 0.70})
	if !ok || s70.Successes != 2 || s70.Failures != 0 {
		t.Fatalf("unexpected stats for arm 0.70: %+v", s70)
	}
	s75, ok := b.ArmStatsFor(Arm{Value: 0.75})
	if !ok || s75.Successes != 0 || s75.Failures != 1 {
		t.Fatalf("unexpected stats for arm 0.75: %+v", s75)
	}
}

func TestBandit_ViolationBudgetNearB0WhenFresh(t *testing.T) {
	b := NewBandit([]Arm{{Value: 0.75}}, 1.5)
	budget := b.ViolationBudget()
	if !(budget > 99.0 && budget <= 100.0) {
		t.Fatalf("expected fresh budget close to 100, got %v", budget)
	}
	if !b.CanExplore() {
		t.Fatal("expected a fresh bandit to still permit exploration")
	}
}

func TestBandit_BestArm(t *testing.T) {
	arms := []Arm{{Value: 0.70}, {Value: 0.75}, {Value: 0.80}}
	b := NewBandit(arms, 1.5)
	for i := 0; i < 10; i++ {
		b.RecordOutcome(Arm{Value: 0.80}, true)
	}
	for i := 0; i < 5; i++ {
		b.RecordOutcome(Arm{Value: 0.70}, false)
	}
	best, mean, ok := b.BestArm()
	if !ok || best.Value != 0.80 || mean != 1.0 {
		t.Fatalf("expected best arm 0.80 with mean 1.0, got %v mean=%v", best, mean)
	}
}

func TestBandit_ResetClearsHistory(t *testing.T) {
	b := NewBandit([]Arm{{Value: 0.70}}, 1.5)
	b.RecordOutcome(Arm{Value: 0.70}, true)
	b.Reset()
	if b.totalPulls != 0 {
		t.Fatal("expected reset to clear total pulls")
	}
	s, _ := b.ArmStatsFor(Arm{Value: 0.70})
	if s.Pulls != 0 {
		t.Fatal("expected reset to clear per-arm stats")
	}
}
