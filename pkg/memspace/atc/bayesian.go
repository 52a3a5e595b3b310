package atc

import (
	"math"
	"time"
)

// ThresholdConfig is a named point in the (θ_opt, θ_acc, θ_warn) threshold
// space the weekly optimizer searches over.
type ThresholdConfig map[string]float64

const (
	keyThetaOpt  = "theta_opt"
	keyThetaAcc  = "theta_acc"
	keyThetaWarn = "theta_warn"
)

// Observation is one (threshold configuration, performance) sample fed to
// the Gaussian-process tracker.
type Observation struct {
	Thresholds  ThresholdConfig
	Performance float64
	Timestamp   time.Time
}

// GPTracker is a deliberately simplified Gaussian-process-style surrogate:
// rather than fitting a real GP kernel, it tracks a running mean/variance
// over observed performance and uses that as the predictive distribution
// for every candidate configuration. This mirrors the original system's own
// "simplified" tracker — a real GP was judged unnecessary for a weekly,
// human-reviewed optimization loop.
type GPTracker struct {
	observations   []Observation
	bestPerformance float64
	mean           float64
	variance       float64
}

// NewGPTracker constructs an empty tracker with a neutral prior (mean=0.5,
// variance=0.1).
func NewGPTracker() *GPTracker {
	return &GPTracker{mean: 0.5, variance: 0.1}
}

// AddObservation records obs and refreshes the running mean/variance and
// best-performance-seen bookkeeping.
func (g *GPTracker) AddObservation(obs Observation) {
	if obs.Performance > g.bestPerformance {
		g.bestPerformance = obs.Performance
	}
	g.observations = append(g.observations, obs)
	g.updateStatistics()
}

// ObservationCount reports how many observations have been recorded.
func (g *GPTracker) ObservationCount() int { return len(g.observations) }

func (g *GPTracker) updateStatistics() {
	n := float64(len(g.observations))
	if n == 0 {
		return
	}
	var sum float64
	for _, o := range g.observations {
		sum += o.Performance
	}
	mean := sum / n
	var variance float64
	for _, o := range g.observations {
		d := o.Performance - mean
		variance += d * d
	}
	variance /= n
	if variance < 0.01 {
		variance = 0.01
	}
	g.mean = mean
	g.variance = variance
}

// PredictPerformance returns the tracker's (mean, stddev) prediction for
// any configuration — the surrogate does not condition on the
// configuration itself, matching the original's documented simplification.
func (g *GPTracker) PredictPerformance(_ ThresholdConfig) (mean, stddev float64) {
	return g.mean, math.Sqrt(g.variance)
}

// ExpectedImprovement computes EI(μ,σ) = (μ−f*)·Φ(z) + σ·φ(z), z =
// (μ−f*)/σ, using a tanh approximation of the standard normal CDF Φ.
func (g *GPTracker) ExpectedImprovement(predictedMean, predictedStd float64) float64 {
	if predictedStd == 0 {
		return 0
	}
	improvement := predictedMean - g.bestPerformance
	if improvement <= 0 {
		return 0
	}
	z := improvement / predictedStd
	normalCDF := 0.5 * (1 + math.Tanh(z/math.Sqrt2))
	normalPDF := math.Exp(-z*z/2) / math.Sqrt(2*math.Pi)
	return improvement*normalCDF + predictedStd*normalPDF
}

// Constraints bounds and orders the threshold search space the Bayesian
// optimizer grid-searches over.
type Constraints struct {
	ThetaOptRange  [2]float64
	ThetaAccRange  [2]float64
	ThetaWarnRange [2]float64
	EnforceMonotonicity bool
}

// DefaultConstraints mirrors the domain package's own threshold ranges.
var DefaultConstraints = Constraints{
	ThetaOptRange:       [2]float64{thetaOptMin, thetaOptMax},
	ThetaAccRange:       [2]float64{thetaAccMin, thetaAccMax},
	ThetaWarnRange:      [2]float64{thetaWarnMin, thetaWarnMax},
	EnforceMonotonicity: true,
}

// IsValid reports whether config satisfies every present key's range and,
// if all three keys are present, the monotonicity constraint.
func (c Constraints) IsValid(config ThresholdConfig) bool {
	if v, ok := config[keyThetaOpt]; ok && (v < c.ThetaOptRange[0] || v > c.ThetaOptRange[1]) {
		return false
	}
	if v, ok := config[keyThetaAcc]; ok && (v < c.ThetaAccRange[0] || v > c.ThetaAccRange[1]) {
		return false
	}
	if v, ok := config[keyThetaWarn]; ok && (v < c.ThetaWarnRange[0] || v > c.ThetaWarnRange[1]) {
		return false
	}
	if c.EnforceMonotonicity {
		opt, hasOpt := config[keyThetaOpt]
		acc, hasAcc := config[keyThetaAcc]
		warn, hasWarn := config[keyThetaWarn]
		if hasOpt && hasAcc && hasWarn && !(opt > acc && acc > warn) {
			return false
		}
	}
	return true
}

var optGrid = []float64{0.65, 0.70, 0.75, 0.80, 0.85}
var accGrid = []float64{0.60, 0.65, 0.70, 0.75}
var warnGrid = []float64{0.50, 0.55, 0.60, 0.65}

// Optimizer is the weekly Bayesian meta-optimizer: it records observed
// (config, performance) pairs and suggests the next configuration to
// evaluate by maximizing Expected Improvement over a fixed constraint grid.
type Optimizer struct {
	gp            *GPTracker
	lastOptimized time.Time
	constraints   Constraints
}

// NewOptimizer constructs an optimizer with an empty GP tracker and the
// clock started now.
func NewOptimizer(constraints Constraints) *Optimizer {
	return &Optimizer{gp: NewGPTracker(), lastOptimized: time.Now(), constraints: constraints}
}

// Observe records a (config, performance) sample.
func (o *Optimizer) Observe(config ThresholdConfig, performance float64) {
	o.gp.AddObservation(Observation{Thresholds: config, Performance: performance, Timestamp: time.Now()})
}

// SuggestNext grid-searches the constrained (θ_opt, θ_acc, θ_warn) space
// and returns the configuration maximizing Expected Improvement. Falls
// back to the midpoint of each range if no valid grid point has positive
// EI.
func (o *Optimizer) SuggestNext() ThresholdConfig {
	best := ThresholdConfig{
		keyThetaOpt:  mid(o.constraints.ThetaOptRange),
		keyThetaAcc:  mid(o.constraints.ThetaAccRange),
		keyThetaWarn: mid(o.constraints.ThetaWarnRange),
	}
	bestEI := 0.0

	for _, opt := range optGrid {
		for _, acc := range accGrid {
			for _, warn := range warnGrid {
				config := ThresholdConfig{keyThetaOpt: opt, keyThetaAcc: acc, keyThetaWarn: warn}
				if !o.constraints.IsValid(config) {
					continue
				}
				mean, std := o.gp.PredictPerformance(config)
				ei := o.gp.ExpectedImprovement(mean, std)
				if ei > bestEI {
					bestEI = ei
					best = config
				}
			}
		}
	}
	return best
}

func mid(r [2]float64) float64 { return (r[0] + r[1]) / 2 }

// ShouldOptimize reports whether 7 days have elapsed since the last
// MarkOptimized call.
func (o *Optimizer) ShouldOptimize() bool {
	return time.Since(o.lastOptimized) > 7*24*time.Hour
}

// MarkOptimized resets the weekly optimization clock.
func (o *Optimizer) MarkOptimized() { o.lastOptimized = time.Now() }

// BestConfig returns the configuration with the highest observed
// performance, if any observations have been recorded.
func (o *Optimizer) BestConfig() (ThresholdConfig, bool) {
	if len(o.gp.observations) == 0 {
		return nil, false
	}
	best := o.gp.observations[0]
	for _, obs := range o.gp.observations[1:] {
		if obs.Performance > best.Performance {
			best = obs
		}
	}
	return best.Thresholds, true
}

// ObservationCount reports how many samples the optimizer has recorded.
func (o *Optimizer) ObservationCount() int { return o.gp.ObservationCount() }
