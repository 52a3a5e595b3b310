package atc

import "sync"

// Decision is the controller's per-query answer: which threshold to apply,
// the confidence predicted for it, and the calibration state that produced
// it (§4.8.5).
type Decision struct {
	Threshold           float64
	PredictedConfidence float64
	Status              CalibrationStatus
	ShouldRecalibrate    bool
}

// Controller composes the four ATC levels behind a single lock: L1
// calibration, L2 per-domain thresholds, L3 session bandit, L4 weekly
// Bayesian optimizer. Query-path reads (Decide) and feedback writes
// (RecordOutcome) share one RWMutex; the weekly optimizer runs under the
// same lock since it is invoked far less often than query traffic.
type Controller struct {
	mu sync.RWMutex

	calibration *CalibrationComputer
	domains     *Manager
	bandit      *Bandit
	optimizer   *Optimizer

	numBins int
}

// NewController wires a fresh controller: calibration over numBins bins,
// default per-domain thresholds, a bandit over the given candidate arms,
// and an optimizer over the default constraint grid.
func NewController(numBins int, arms []Arm, ucbC float64) *Controller {
	return &Controller{
		calibration: NewCalibrationComputer(numBins),
		domains:     NewManager(),
		bandit:      NewBandit(arms, ucbC),
		optimizer:   NewOptimizer(DefaultConstraints),
		numBins:     numBins,
	}
}

// Decide selects a threshold for domain and reports the current
// calibration state. It exploits (picks the best-known arm) once the
// bandit's violation budget is exhausted, otherwise explores via UCB1.
// The arm value is scaled by the domain's confidence_bias to produce the
// predicted confidence.
func (c *Controller) Decide(domain Domain) (Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var arm Arm
	var ok bool
	if c.bandit.CanExplore() {
		arm, ok = c.bandit.SelectUCB()
	} else {
		arm, _, ok = c.bandit.BestArm()
	}
	if !ok {
		return Decision{}, false
	}

	thresholds, hasDomain := c.domains.Get(domain)
	bias := 1.0
	if hasDomain {
		bias = thresholds.ConfidenceBias
	}

	metrics := c.calibration.ComputeAll()
	return Decision{
		Threshold:           arm.Value,
		PredictedConfidence: clampRange(arm.Value*bias, 0, 1),
		Status:              metrics.QualityStatus,
		ShouldRecalibrate:    metrics.QualityStatus.ShouldRecalibrate(),
	}, true
}

// RecordOutcome feeds ground truth back into both the bandit (which arm
// won/lost) and the calibration computer (did the predicted confidence
// match reality), the two feedback loops §4.8.5 requires stay in sync.
func (c *Controller) RecordOutcome(arm Arm, predictedConfidence float64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bandit.RecordOutcome(arm, success)
	c.calibration.AddPrediction(predictedConfidence, success)
}

// CalibrationMetrics returns a snapshot of the current calibration report.
func (c *Controller) CalibrationMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calibration.ComputeAll()
}

// DomainThresholds returns the current thresholds for domain.
func (c *Controller) DomainThresholds(d Domain) (DomainThresholds, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.domains.Get(d)
}

// UpdateDomainThresholds installs new thresholds for their domain, subject
// to validation.
func (c *Controller) UpdateDomainThresholds(t DomainThresholds) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.domains.Update(t)
}

// TransferDomainLearning blends target's thresholds from source.
func (c *Controller) TransferDomainLearning(target, source Domain, alpha float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.domains.TransferLearn(target, source, alpha)
}

// ResetSession resets the session-level bandit, per the session-boundary
// reset rule; domain thresholds and the weekly optimizer persist across
// sessions.
func (c *Controller) ResetSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bandit.Reset()
}

// MaybeOptimize runs the weekly Bayesian meta-optimizer if due, returning
// the suggested next configuration and whether optimization ran.
func (c *Controller) MaybeOptimize() (ThresholdConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.optimizer.ShouldOptimize() {
		return nil, false
	}
	suggestion := c.optimizer.SuggestNext()
	c.optimizer.MarkOptimized()
	return suggestion, true
}

// ObserveOptimizerPerformance records a (config, performance) sample for
// the weekly optimizer's surrogate model.
func (c *Controller) ObserveOptimizerPerformance(config ThresholdConfig, performance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.optimizer.Observe(config, performance)
}

// BanditViolationBudget returns the bandit's current remaining exploration
// budget.
func (c *Controller) BanditViolationBudget() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bandit.ViolationBudget()
}
