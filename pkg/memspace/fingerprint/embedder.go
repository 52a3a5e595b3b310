// Package fingerprint defines the thirteen-embedding fingerprint contract:
// the closed set of embedder variants, their declared dimensions and
// metrics, the Fingerprint value object itself, the purpose vector, and the
// named weight-profile registry used by the similarity engine.
package fingerprint

import "fmt"

// Embedder is a closed enumeration of the thirteen embedding spaces plus the
// two derived spaces (Matryoshka-128 and the purpose vector) that the index
// manager also maintains. It is modeled as a sum type via an int enum rather
// than an open registry: every switch over Embedder is expected to be
// exhaustive, and AllEmbedders enumerates the canonical set for tests that
// want to assert exhaustiveness.
type Embedder int

const (
	Semantic           Embedder = iota // E1
	TemporalRecent                     // E2
	TemporalPeriodic                   // E3
	TemporalPositional                 // E4
	Causal                             // E5
	Sparse                             // E6
	Code                               // E7
	Graph                              // E8
	HDC                                // E9
	Multimodal                         // E10
	Entity                             // E11
	LateInteraction                    // E12
	SPLADE                             // E13
)

// AllEmbedders returns the thirteen canonical embedder ids in declaration
// order (E1..E13). It exists so tests can assert that every table keyed by
// Embedder is exhaustive.
func AllEmbedders() []Embedder {
	return []Embedder{
		Semantic, TemporalRecent, TemporalPeriodic, TemporalPositional,
		Causal, Sparse, Code, Graph, HDC, Multimodal, Entity,
		LateInteraction, SPLADE,
	}
}

// Kind classifies how an embedder's representation is shaped: a single dense
// vector, a sparse (indices, values) pair, or a list of per-token dense
// vectors (late interaction).
type Kind int

const (
	KindDense Kind = iota
	KindSparse
	KindTokenDense
)

// Metric is the similarity function assigned to an embedder.
type Metric int

const (
	MetricCosineSymmetric Metric = iota
	MetricCosineAsymmetric
	MetricSparseDot
	MetricHammingSign
	MetricMaxSim
)

func (m Metric) String() string {
	switch m {
	case MetricCosineSymmetric:
		return "cosine-symmetric"
	case MetricCosineAsymmetric:
		return "cosine-asymmetric"
	case MetricSparseDot:
		return "sparse-dot"
	case MetricHammingSign:
		return "hamming-sign"
	case MetricMaxSim:
		return "max-sim"
	default:
		return "unknown"
	}
}

// spec holds the static, per-embedder metadata: declared shape, kind and
// metric. It is the "total function Embedder -> metadata" the design notes
// call for; there is exactly one entry per embedder.
type spec struct {
	name   string
	dim    int // for KindDense/KindTokenDense: per-vector dim. For KindSparse: vocab upper bound.
	kind   Kind
	metric Metric
}

var specs = map[Embedder]spec{
	Semantic:           {"Semantic", 1024, KindDense, MetricCosineSymmetric},
	TemporalRecent:     {"Temporal-Recent", 512, KindDense, MetricCosineSymmetric},
	TemporalPeriodic:   {"Temporal-Periodic", 512, KindDense, MetricCosineSymmetric},
	TemporalPositional: {"Temporal-Positional", 512, KindDense, MetricCosineSymmetric},
	Causal:             {"Causal", 768, KindDense, MetricCosineAsymmetric},
	Sparse:             {"Sparse", 30522, KindSparse, MetricSparseDot},
	Code:               {"Code", 1536, KindDense, MetricCosineSymmetric},
	Graph:              {"Graph", 384, KindDense, MetricCosineAsymmetric},
	HDC:                {"HDC", 10000, KindDense, MetricHammingSign},
	Multimodal:         {"Multimodal", 768, KindDense, MetricCosineSymmetric},
	Entity:             {"Entity", 384, KindDense, MetricCosineSymmetric},
	LateInteraction:    {"Late-Interaction", 128, KindTokenDense, MetricMaxSim},
	SPLADE:             {"SPLADE", 30522, KindSparse, MetricSparseDot},
}

// Name returns the human-readable embedder name, e.g. "Semantic".
func (e Embedder) Name() string {
	if s, ok := specs[e]; ok {
		return s.name
	}
	return fmt.Sprintf("Embedder(%d)", int(e))
}

func (e Embedder) String() string { return e.Name() }

// Dim returns the declared dense/token dimension, or the sparse vocabulary
// upper bound for KindSparse embedders.
func (e Embedder) Dim() int { return specs[e].dim }

// DataKind reports whether this embedder is dense, sparse, or token-dense.
func (e Embedder) DataKind() Kind { return specs[e].kind }

// SimMetric returns the similarity metric statically assigned to this
// embedder.
func (e Embedder) SimMetric() Metric { return specs[e].metric }

// IsAsymmetric reports whether the embedder is subject to the AP-77
// constitutional rule: it must never be compared with symmetric cosine.
func (e Embedder) IsAsymmetric() bool { return specs[e].metric == MetricCosineAsymmetric }

// IsTemporal reports whether the embedder is one of E2/E3/E4, subject to the
// AP-60 constitutional rule: it may never drive topic detection, edge-type
// inference, or divergence scoring.
func (e Embedder) IsTemporal() bool {
	return e == TemporalRecent || e == TemporalPeriodic || e == TemporalPositional
}

// IsSparse reports whether the embedder uses the sparse (indices, values)
// representation rather than a dense vector.
func (e Embedder) IsSparse() bool { return specs[e].kind == KindSparse }

// SemanticSpaces is the fixed set consulted by check_divergence: every
// embedder except the three temporal ones, per AP-60.
func SemanticSpaces() []Embedder {
	out := make([]Embedder, 0, 10)
	for _, e := range AllEmbedders() {
		if !e.IsTemporal() {
			out = append(out, e)
		}
	}
	return out
}

// NumEmbedders is the fixed fingerprint arity (13).
const NumEmbedders = 13

// PurposeVectorDim is the fixed dimensionality of the purpose vector.
const PurposeVectorDim = 13

// MatryoshkaDim is the truncated Matryoshka-128 projection of E1.
const MatryoshkaDim = 128
