package gwt

import (
	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

// ConsciousnessCalculator computes the consciousness scalar C(t) = I(t) ×
// R(t) × D(t): integration (Kuramoto order parameter), self-reflection
// (externally supplied meta-UTL prediction accuracy), and differentiation
// (normalized purpose-vector entropy).
type ConsciousnessCalculator struct{}

// NewConsciousnessCalculator constructs a calculator. It holds no state:
// every call to Compute is a pure function of its inputs.
func NewConsciousnessCalculator() *ConsciousnessCalculator { return &ConsciousnessCalculator{} }

// Compute returns C(t) = I × R × D, validating that integration and
// reflection both lie in [0,1].
func (c *ConsciousnessCalculator) Compute(integration, reflection float64, purposeVector fingerprint.PurposeVector) (float64, error) {
	if integration < 0 || integration > 1 {
		return 0, memerr.New(memerr.KindInvalidVector, "gwt.Compute", "integration (Kuramoto r) must be in [0,1]")
	}
	if reflection < 0 || reflection > 1 {
		return 0, memerr.New(memerr.KindInvalidVector, "gwt.Compute", "reflection (meta-accuracy) must be in [0,1]")
	}
	differentiation := purposeVector.Entropy()
	return integration * reflection * differentiation, nil
}
