package fingerprint

import (
	"math"

	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

// PurposeVector is the dense 13-element per-item alignment vector (§3.2).
// Values lie in [0,1]; the sum is not constrained.
type PurposeVector [PurposeVectorDim]float32

// NewPurposeVector validates finiteness and range and returns a
// PurposeVector, or an error at the first offending element (the error
// says what is wrong, not which index).
func NewPurposeVector(values []float32) (PurposeVector, error) {
	var pv PurposeVector
	if len(values) != PurposeVectorDim {
		return pv, memerr.DimensionMismatch("purpose_vector.New", PurposeVectorDim, len(values))
	}
	for i, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return pv, memerr.New(memerr.KindInvalidVector, "purpose_vector.New", "non-finite element")
		}
		if v < 0 || v > 1 {
			return pv, memerr.New(memerr.KindInvalidVector, "purpose_vector.New", "element out of [0,1] range")
		}
		pv[i] = v
	}
	return pv, nil
}

// Entropy computes the normalized Shannon entropy of the purpose vector,
// treating it as an (unnormalized) discrete distribution over its 13 axes.
// Used as the differentiation term D(t) in the consciousness equation
// (§4.9). Entropy is normalized to [0,1] by dividing by log2(13). A
// zero-sum vector has entropy 0 by convention.
func (pv PurposeVector) Entropy() float64 {
	var sum float64
	for _, v := range pv {
		sum += float64(v)
	}
	if sum <= 0 {
		return 0
	}
	var h float64
	for _, v := range pv {
		p := float64(v) / sum
		if p <= 0 {
			continue
		}
		h -= p * math.Log2(p)
	}
	maxH := math.Log2(float64(PurposeVectorDim))
	if maxH == 0 {
		return 0
	}
	return h / maxH
}
