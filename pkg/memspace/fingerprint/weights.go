package fingerprint

import (
	"math"

	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

// weightSumTolerance is the slack allowed around 1.0 for a weight profile's
// sum (§3.4: "1 ± 0.01").
const weightSumTolerance = 0.01

// WeightProfile is a vector of 13 non-negative reals, one per embedder in
// declaration order (E1..E13), summing to 1 ± weightSumTolerance.
type WeightProfile [NumEmbedders]float32

// NewWeightProfile validates count, range, finiteness and sum and returns a
// WeightProfile, or a structured error. Parsing from external input is
// strict: wrong count, non-number (NaN/Inf), out-of-range element, or bad
// sum all fail — there is no lenient auto-normalize path here (callers that
// want normalization call Renormalized explicitly after validating).
func NewWeightProfile(values []float32) (WeightProfile, error) {
	var wp WeightProfile
	if len(values) != NumEmbedders {
		return wp, memerr.DimensionMismatch("weight_profile.New", NumEmbedders, len(values))
	}
	var sum float64
	for i, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return wp, memerr.New(memerr.KindInvalidVector, "weight_profile.New", "non-finite weight")
		}
		if v < 0 {
			return wp, memerr.New(memerr.KindInvalidVector, "weight_profile.New", "negative weight")
		}
		wp[i] = v
		sum += float64(v)
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return wp, memerr.New(memerr.KindInvalidVector, "weight_profile.New", "weights do not sum to 1 +/- 0.01")
	}
	return wp, nil
}

// Weight returns the weight assigned to embedder e.
func (wp WeightProfile) Weight(e Embedder) float32 { return wp[int(e)] }

// Sum returns the sum of all weights.
func (wp WeightProfile) Sum() float64 {
	var sum float64
	for _, v := range wp {
		sum += float64(v)
	}
	return sum
}

// Renormalized returns a copy of wp with weights restricted to the given
// active embedders and rescaled so their sum is 1 (used by the linear-fusion
// "renormalize" missing-space policy, §4.5). If no active embedder carries
// positive weight the original profile is returned unchanged.
func (wp WeightProfile) Renormalized(active map[Embedder]bool) WeightProfile {
	var sum float64
	for _, e := range AllEmbedders() {
		if active[e] {
			sum += float64(wp[int(e)])
		}
	}
	if sum <= 0 {
		return wp
	}
	var out WeightProfile
	for _, e := range AllEmbedders() {
		if active[e] {
			out[int(e)] = float32(float64(wp[int(e)]) / sum)
		}
	}
	return out
}
