// Package atc implements the Adaptive Threshold Controller (§4.8): a
// four-level hierarchy running calibration metrics, per-domain thresholds
// with transfer learning, a session-level bandit, and a weekly Bayesian
// meta-optimizer over the same threshold surface.
package atc

// Prediction is one observed (confidence, outcome) pair fed to the
// calibration computer.
type Prediction struct {
	Confidence float64
	IsCorrect  bool
}

// CalibrationStatus buckets a computer's ECE into a coarse quality band.
type CalibrationStatus int

const (
	Excellent CalibrationStatus = iota
	Good
	Acceptable
	Poor
	Critical
)

func (s CalibrationStatus) String() string {
	switch s {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Acceptable:
		return "acceptable"
	case Poor:
		return "poor"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// StatusFromECE buckets an ECE value per the constitution's bands.
func StatusFromECE(ece float64) CalibrationStatus {
	switch {
	case ece < 0.05:
		return Excellent
	case ece < 0.10:
		return Good
	case ece < 0.15:
		return Acceptable
	case ece < 0.25:
		return Poor
	default:
		return Critical
	}
}

// ShouldRecalibrate reports whether this status demands recalibration.
func (s CalibrationStatus) ShouldRecalibrate() bool {
	return s == Poor || s == Critical
}

// Metrics is a calibration report: ECE, MCE, Brier score and the derived
// quality status over the sample seen so far.
type Metrics struct {
	ECE          float64
	MCE          float64
	Brier        float64
	SampleCount  int
	QualityStatus CalibrationStatus
}

// CalibrationComputer accumulates predictions and computes ECE/MCE/Brier
// over B equal-width confidence bins, B clamped to [5,20].
type CalibrationComputer struct {
	predictions []Prediction
	numBins     int
}

// NewCalibrationComputer constructs a computer with numBins clamped to the
// valid [5,20] range.
func NewCalibrationComputer(numBins int) *CalibrationComputer {
	if numBins < 5 {
		numBins = 5
	}
	if numBins > 20 {
		numBins = 20
	}
	return &CalibrationComputer{numBins: numBins}
}

// AddPrediction records one (confidence, is_correct) observation,
// clamping confidence to [0,1].
func (c *CalibrationComputer) AddPrediction(confidence float64, isCorrect bool) {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	c.predictions = append(c.predictions, Prediction{Confidence: confidence, IsCorrect: isCorrect})
}

// AddPredictions records a batch of predictions.
func (c *CalibrationComputer) AddPredictions(preds []Prediction) {
	c.predictions = append(c.predictions, preds...)
}

// Clear discards all recorded predictions.
func (c *CalibrationComputer) Clear() { c.predictions = nil }

// SampleCount reports how many predictions have been recorded.
func (c *CalibrationComputer) SampleCount() int { return len(c.predictions) }

func (c *CalibrationComputer) bin(confidence float64) int {
	idx := int(confidence * float64(c.numBins))
	if idx >= c.numBins {
		idx = c.numBins - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func (c *CalibrationComputer) bins() [][]Prediction {
	bins := make([][]Prediction, c.numBins)
	for _, p := range c.predictions {
		idx := c.bin(p.Confidence)
		bins[idx] = append(bins[idx], p)
	}
	return bins
}

// ComputeBrier computes the mean squared error between confidence and the
// {0,1} outcome: (1/N) Σ (confidence_i - correct_i)^2.
func (c *CalibrationComputer) ComputeBrier() float64 {
	if len(c.predictions) == 0 {
		return 0
	}
	var sum float64
	for _, p := range c.predictions {
		actual := 0.0
		if p.IsCorrect {
			actual = 1.0
		}
		d := p.Confidence - actual
		sum += d * d
	}
	return sum / float64(len(c.predictions))
}

// ComputeECE computes the Expected Calibration Error: Σ_b (|b|/N) ×
// |avg_confidence_b - avg_accuracy_b|.
func (c *CalibrationComputer) ComputeECE() float64 {
	if len(c.predictions) == 0 {
		return 0
	}
	total := float64(len(c.predictions))
	var ece float64
	for _, bin := range c.bins() {
		if len(bin) == 0 {
			continue
		}
		avgConf, avgAcc := binStats(bin)
		ece += (float64(len(bin)) / total) * absF(avgConf-avgAcc)
	}
	return ece
}

// ComputeMCE computes the Maximum Calibration Error: max_b |avg_confidence_b
// - avg_accuracy_b|.
func (c *CalibrationComputer) ComputeMCE() float64 {
	if len(c.predictions) == 0 {
		return 0
	}
	var mce float64
	for _, bin := range c.bins() {
		if len(bin) == 0 {
			continue
		}
		avgConf, avgAcc := binStats(bin)
		if e := absF(avgConf - avgAcc); e > mce {
			mce = e
		}
	}
	return mce
}

// ComputeAll computes ECE, MCE and Brier in one pass and derives the
// quality status from ECE.
func (c *CalibrationComputer) ComputeAll() Metrics {
	ece := c.ComputeECE()
	return Metrics{
		ECE:           ece,
		MCE:           c.ComputeMCE(),
		Brier:         c.ComputeBrier(),
		SampleCount:   len(c.predictions),
		QualityStatus: StatusFromECE(ece),
	}
}

// BinStatistics reports the confidence/accuracy gap for one non-empty bin.
type BinStatistics struct {
	BinIndex       int
	SampleCount    int
	AvgConfidence  float64
	AvgAccuracy    float64
	CalibrationGap float64
}

// Distribution reports calibration gaps across every non-empty bin, for
// diagnostic surfacing (e.g. an admin dashboard).
type Distribution struct {
	Bins         []BinStatistics
	TotalSamples int
}

// DistributionInfo returns the per-bin confidence/accuracy breakdown.
func (c *CalibrationComputer) DistributionInfo() Distribution {
	if len(c.predictions) == 0 {
		return Distribution{}
	}
	var out []BinStatistics
	for i, bin := range c.bins() {
		if len(bin) == 0 {
			continue
		}
		avgConf, avgAcc := binStats(bin)
		out = append(out, BinStatistics{
			BinIndex:       i,
			SampleCount:    len(bin),
			AvgConfidence:  avgConf,
			AvgAccuracy:    avgAcc,
			CalibrationGap: absF(avgConf - avgAcc),
		})
	}
	return Distribution{Bins: out, TotalSamples: len(c.predictions)}
}

func binStats(bin []Prediction) (avgConfidence, avgAccuracy float64) {
	var confSum float64
	var correct int
	for _, p := range bin {
		confSum += p.Confidence
		if p.IsCorrect {
			correct++
		}
	}
	n := float64(len(bin))
	return confSum / n, float64(correct) / n
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
