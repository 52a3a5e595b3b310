package atc

import (
	"math"
	"time"
)

// Arm is one candidate threshold value the bandit chooses between.
type Arm struct {
	Value float64
}

// ArmStats is the running outcome tally for one arm.
type ArmStats struct {
	Successes  uint32
	Failures   uint32
	Pulls      uint32
	MeanReward float64
}

func (s *ArmStats) recordSuccess() { s.Successes++; s.pull() }
func (s *ArmStats) recordFailure() { s.Failures++; s.pull() }

func (s *ArmStats) pull() {
	s.Pulls++
	if s.Pulls > 0 {
		s.MeanReward = float64(s.Successes) / float64(s.Pulls)
	}
}

// BetaParams returns the Beta(α, β) pseudo-count parameters used as a
// deterministic stand-in for Thompson sampling: α = successes+1, β =
// failures+1.
func (s ArmStats) BetaParams() (alpha, beta float64) {
	return float64(s.Successes) + 1, float64(s.Failures) + 1
}

// Bandit is a session-level multi-armed bandit over a fixed set of
// threshold candidates, offering both a deterministic Thompson-mean
// selector and a UCB1 selector, plus an exponentially decaying violation
// budget that forces pure exploitation once exhausted.
type Bandit struct {
	arms         []Arm
	stats        []ArmStats
	totalPulls   uint32
	ucbC         float64
	budgetB0     float64
	budgetLambda float64
	createdAt    time.Time
}

// NewBandit constructs a bandit over arms with UCB exploration coefficient
// ucbC, using the constitution's default violation budget (B0=100,
// λ=0.01).
func NewBandit(arms []Arm, ucbC float64) *Bandit {
	return &Bandit{
		arms:         append([]Arm(nil), arms...),
		stats:        make([]ArmStats, len(arms)),
		ucbC:         ucbC,
		budgetB0:     100,
		budgetLambda: 0.01,
		createdAt:    time.Now(),
	}
}

// SelectThompson picks the arm with the highest deterministic Beta mean
// α/(α+β). Returns false if the bandit has no arms.
func (b *Bandit) SelectThompson() (Arm, bool) {
	if len(b.arms) == 0 {
		return Arm{}, false
	}
	best := 0
	bestScore := -1.0
	for i := range b.arms {
		alpha, beta := b.stats[i].BetaParams()
		mean := alpha / (alpha + beta)
		if mean > bestScore {
			bestScore = mean
			best = i
		}
	}
	return b.arms[best], true
}

// SelectUCB picks the arm maximizing mean + c·sqrt(ln(N+1)/n); unplayed
// arms get +Inf exploration and are therefore prioritized.
func (b *Bandit) SelectUCB() (Arm, bool) {
	if len(b.arms) == 0 {
		return Arm{}, false
	}
	best := 0
	bestUCB := math.Inf(-1)
	lnN := math.Log(float64(b.totalPulls) + 1)
	for i := range b.arms {
		var exploration float64
		if b.stats[i].Pulls > 0 {
			exploration = b.ucbC * math.Sqrt(lnN/float64(b.stats[i].Pulls))
		} else {
			exploration = math.Inf(1)
		}
		ucb := b.stats[i].MeanReward + exploration
		if ucb > bestUCB {
			bestUCB = ucb
			best = i
		}
	}
	return b.arms[best], true
}

// ViolationBudget returns the remaining exploration budget B(t) = B0 ·
// exp(-λ·age_seconds).
func (b *Bandit) ViolationBudget() float64 {
	age := time.Since(b.createdAt).Seconds()
	return b.budgetB0 * math.Exp(-b.budgetLambda*age)
}

// CanExplore reports whether the violation budget still permits
// exploration (B(t) > 1); once exhausted the caller must only exploit
// (SelectUCB/SelectThompson's current best arm, never an unplayed one).
func (b *Bandit) CanExplore() bool { return b.ViolationBudget() > 1 }

func (b *Bandit) indexOf(arm Arm) (int, bool) {
	for i, a := range b.arms {
		if a.Value == arm.Value {
			return i, true
		}
	}
	return 0, false
}

// RecordOutcome records a pull's success/failure against arm.
func (b *Bandit) RecordOutcome(arm Arm, success bool) {
	idx, ok := b.indexOf(arm)
	if !ok {
		return
	}
	if success {
		b.stats[idx].recordSuccess()
	} else {
		b.stats[idx].recordFailure()
	}
	b.totalPulls++
}

// ArmStatsFor returns the current statistics for arm.
func (b *Bandit) ArmStatsFor(arm Arm) (ArmStats, bool) {
	idx, ok := b.indexOf(arm)
	if !ok {
		return ArmStats{}, false
	}
	return b.stats[idx], true
}

// BestArm returns the arm with the highest empirical mean reward seen so
// far.
func (b *Bandit) BestArm() (Arm, float64, bool) {
	if len(b.arms) == 0 {
		return Arm{}, 0, false
	}
	best := 0
	bestMean := -1.0
	for i := range b.arms {
		if b.stats[i].MeanReward > bestMean {
			bestMean = b.stats[i].MeanReward
			best = i
		}
	}
	return b.arms[best], bestMean, true
}

// AllStats returns every arm paired with its current statistics.
func (b *Bandit) AllStats() map[float64]ArmStats {
	out := make(map[float64]ArmStats, len(b.arms))
	for i, a := range b.arms {
		out[a.Value] = b.stats[i]
	}
	return out
}

// Reset clears all pull history and restarts the violation-budget clock,
// per the session-boundary reset rule.
func (b *Bandit) Reset() {
	b.totalPulls = 0
	for i := range b.stats {
		b.stats[i] = ArmStats{}
	}
	b.createdAt = time.Now()
}
