package graphlink

import (
	"math/bits"
	"time"

	"github.com/MrWong99/memoryengine/pkg/memspace/atc"
	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/google/uuid"
)

// EdgeType is the closed set of typed relationships between two
// fingerprints (§4.7). The set is explicitly enumerated; there is no open
// extension point.
type EdgeType int

const (
	SemanticSimilar EdgeType = iota
	CausalChain
	CoReference
	Contradicts
	Contains
	ScopedBy
	DependsOn
	Imports
	Requires
	References
	Cites
	Interprets
	Distinguishes
	Implements
	CompliesWith
	Fulfills
	Extends
	Modifies
	Supersedes
	Overrules
	Calls
	Applies
	UsedBy
)

var edgeTypeNames = [...]string{
	"semantic_similar", "causal_chain", "co_reference", "contradicts",
	"contains", "scoped_by", "depends_on", "imports", "requires",
	"references", "cites", "interprets", "distinguishes", "implements",
	"complies_with", "fulfills", "extends", "modifies", "supersedes",
	"overrules", "calls", "applies", "used_by",
}

// NumEdgeTypes is the size of the closed edge-type set.
const NumEdgeTypes = len(edgeTypeNames)

func (t EdgeType) String() string {
	if int(t) < 0 || int(t) >= NumEdgeTypes {
		return "unknown"
	}
	return edgeTypeNames[t]
}

// asymmetricTypes is the subset of edge types for which source→target
// direction is semantically load-bearing, per §4.7.
var asymmetricTypes = map[EdgeType]bool{
	CausalChain: true, Contains: true, DependsOn: true, Imports: true,
	Cites: true, Extends: true, Supersedes: true, Calls: true,
	Requires: true, ScopedBy: true, Overrules: true, Modifies: true,
}

// IsAsymmetric reports whether t requires a meaningful direction.
func (t EdgeType) IsAsymmetric() bool { return asymmetricTypes[t] }

// AllEdgeTypes returns every edge type in declaration order, for
// exhaustiveness tests.
func AllEdgeTypes() []EdgeType {
	out := make([]EdgeType, NumEdgeTypes)
	for i := range out {
		out[i] = EdgeType(i)
	}
	return out
}

// EmbedderAgreement is a 13-bit set identifying which embedders' per-space
// similarity crossed this edge type's threshold. Bit i corresponds to
// fingerprint.Embedder(i).
type EmbedderAgreement uint16

// Set marks e as agreeing.
func (a EmbedderAgreement) Set(e fingerprint.Embedder) EmbedderAgreement {
	return a | (1 << uint(e))
}

// Has reports whether e is marked as agreeing.
func (a EmbedderAgreement) Has(e fingerprint.Embedder) bool {
	return a&(1<<uint(e)) != 0
}

// Popcount returns the number of agreeing embedders.
func (a EmbedderAgreement) Popcount() int { return bits.OnesCount16(uint16(a)) }

// NeurotransmitterWeights modulates an edge's effective traversal weight
// (§3.5). EffectiveWeight applies the modulation formula:
// w_eff = base × (1 + excitatory − inhibitory + 0.5×modulatory).
type NeurotransmitterWeights struct {
	Excitatory float64
	Inhibitory float64
	Modulatory float64
}

// EffectiveWeight applies n's modulation to base.
func (n NeurotransmitterWeights) EffectiveWeight(base float64) float64 {
	return base * (1 + n.Excitatory - n.Inhibitory + 0.5*n.Modulatory)
}

// Edge is a typed, directed relationship between two fingerprints.
type Edge struct {
	ID         uuid.UUID
	Source     uuid.UUID
	Target     uuid.UUID
	Type       EdgeType
	Agreement  EmbedderAgreement
	Similarity float64 // the representative similarity score that drove creation, in the type's defined range

	// Domain is the knowledge domain this edge belongs to, used for
	// domain-aware retrieval weighting.
	Domain atc.Domain
	// NeurotransmitterWeights modulates this edge's effective weight.
	NeurotransmitterWeights NeurotransmitterWeights
	// SteeringReward is feedback from the retrieval steering loop,
	// in [-1.0, 1.0]. Positive reinforces, negative discourages.
	SteeringReward float64
	// TraversalCount is the number of times this edge has been walked.
	// Used for amortized-shortcut detection (3+ hop paths traversed ≥5
	// times are collapsed into a direct shortcut edge).
	TraversalCount uint64
	// LastTraversedAt is the zero time until the first traversal.
	LastTraversedAt time.Time
	// IsAmortizedShortcut marks an edge learned during consolidation
	// rather than asserted directly from per-space agreement.
	IsAmortizedShortcut bool
}

// NewEdge constructs an Edge, enforcing §4.7's invariants:
//   - AP-60: no temporal embedder (E2/E3/E4) may be set in agreement.
//   - AP-77: E5 (Causal) and E8 (Graph) may contribute to agreement only
//     when an asymmetric comparison was computed for them; NewEdge takes
//     no input that records this and does not check it, so callers in the
//     similarity engine must have already enforced §4.5's role discipline
//     before reaching here.
//   - Asymmetric types require a meaningful (non-identical) source/target.
//   - The agreement count supplied must equal the bitset's popcount
//     (E_GRAPHLINK_015) — agreementCount is the caller's independently
//     tracked tally, checked here as a consistency guard against drift.
//   - steeringReward must fall within [-1.0, 1.0] (E_GRAPHLINK_016).
//
// New edges always start with TraversalCount 0, a zero LastTraversedAt,
// and IsAmortizedShortcut false; those fields are mutated in place by the
// traversal walker and the dream-consolidation shortcut pass, not set at
// construction time.
func NewEdge(id, source, target uuid.UUID, t EdgeType, agreement EmbedderAgreement, agreementCount int, similarity float64, domain atc.Domain, ntWeights NeurotransmitterWeights, steeringReward float64) (*Edge, error) {
	for _, temporal := range []fingerprint.Embedder{fingerprint.TemporalRecent, fingerprint.TemporalPeriodic, fingerprint.TemporalPositional} {
		if agreement.Has(temporal) {
			return nil, newEdgeError(ErrTemporalEmbedderViolation,
				"AP-60 VIOLATION - temporal embedder %s must never drive edge-type agreement", temporal.Name())
		}
	}
	if agreement.Popcount() != agreementCount {
		return nil, newEdgeError(ErrAgreementCountMismatch,
			"agreement count mismatch: count=%d, bitset popcount=%d", agreementCount, agreement.Popcount())
	}
	if t.IsAsymmetric() && source == target {
		return nil, newEdgeError(ErrDirectionRequired,
			"edge type %s requires a meaningful direction, but source equals target", t)
	}
	if similarity < -1.0 || similarity > 1.0 {
		return nil, newEdgeError(ErrInvalidSimilarityScore,
			"similarity %.6f outside valid range [-1.0, 1.0]", similarity)
	}
	if steeringReward < -1.0 || steeringReward > 1.0 {
		return nil, newEdgeError(ErrInvalidSteeringReward,
			"steering reward %.6f outside valid range [-1.0, 1.0]", steeringReward)
	}
	return &Edge{
		ID:                      id,
		Source:                  source,
		Target:                  target,
		Type:                    t,
		Agreement:               agreement,
		Similarity:              similarity,
		Domain:                  domain,
		NeurotransmitterWeights: ntWeights,
		SteeringReward:          steeringReward,
	}, nil
}
