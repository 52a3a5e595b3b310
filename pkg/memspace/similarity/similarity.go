// Package similarity implements the cross-space similarity engine (C6): per
// embedder comparison functions, the minimum-active-spaces guard, and the
// three fusion modes (linear weighted, Reciprocal Rank Fusion, and the
// SPLADE-to-dense-to-MaxSim-to-purpose staged pipeline).
package similarity

import (
	"math"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/index"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

// MissingSpacePolicy controls how a comparison behaves when a space is
// absent on one of the two sides.
type MissingSpacePolicy int

const (
	// RequireAll fails the comparison (InsufficientSpaces) if any weighted
	// space is missing.
	RequireAll MissingSpacePolicy = iota
	// Renormalize drops missing spaces and renormalizes the remaining
	// weights to sum to 1 over the active set.
	Renormalize
)

// DefaultMinActiveSpaces is the default minimum number of active
// (non-missing, non-temporal) spaces a comparison must have, per §4.5.
const DefaultMinActiveSpaces = 3

// DefaultRRFK is the default Reciprocal Rank Fusion constant.
const DefaultRRFK = 60

// Role distinguishes which projection head produced an asymmetric
// embedding (E5 Causal, E8 Graph). The similarity engine refuses to compare
// two vectors of the same role for an asymmetric embedder — that would be a
// symmetric-cosine-on-an-asymmetric-space constitutional violation (AP-77).
type Role int

const (
	RoleQuery Role = iota
	RoleDocument
)

// Tagged pairs a dense vector with the role it was produced under, required
// for asymmetric embedders.
type Tagged struct {
	Vector []float32
	Role   Role
}

// Comparison is the per-space similarity result: the raw similarity (cosine
// in [-1,1], Hamming in [0,1], an unnormalized dot product for sparse
// spaces) and whether the space participated (false if missing on either
// side).
type Comparison struct {
	Embedder fingerprint.Embedder
	Score    float64
	Active   bool
}

// Badge is a temporal enrichment label (§4.6). Badges are metadata only and
// never feed back into a fused score (I3).
type Badge string

const (
	BadgeSameSession  Badge = "SameSession"
	BadgeSameDay      Badge = "SameDay"
	BadgeSamePeriod   Badge = "SamePeriod"
	BadgeSameSequence Badge = "SameSequence"
)

// Result is the full output of Compare: the fused score, the per-space
// components (including inactive temporal spaces used only for badges), and
// the emitted temporal badges.
type Result struct {
	Score      float64
	Components []Comparison
	Badges     []Badge
}

// Query bundles everything Compare needs from the query side: the
// fingerprint and, for asymmetric embedders, which role the query vector was
// produced under (always RoleQuery in practice, but explicit so callers
// cannot silently pass a document-role vector as a query).
type Query struct {
	Fingerprint *fingerprint.Fingerprint
	AsymRole    map[fingerprint.Embedder]Role // must map Causal and Graph to RoleQuery
}

// Candidate bundles the comparison target's fingerprint and asymmetric
// roles (must map Causal and Graph to RoleDocument).
type Candidate struct {
	Fingerprint *fingerprint.Fingerprint
	AsymRole    map[fingerprint.Embedder]Role
}

// Compare computes per-space similarity between a query and a candidate
// fingerprint under the given weight profile, fuses them with linear
// weighting, and emits temporal badges. It enforces the minimum-active-spaces
// guard and the asymmetric-role discipline (AP-77).
func Compare(q Query, c Candidate, w fingerprint.WeightProfile, policy MissingSpacePolicy, minActive int) (Result, error) {
	if minActive <= 0 {
		minActive = DefaultMinActiveSpaces
	}

	var components []Comparison
	active := 0
	var weightedSum, weightSum float64

	for _, e := range fingerprint.SemanticSpaces() {
		cmp, err := compareSpace(e, q, c)
		if err != nil {
			return Result{}, err
		}
		components = append(components, cmp)
		if cmp.Active {
			active++
			wt := float64(w.Weight(e))
			weightedSum += wt * cmp.Score
			weightSum += wt
		}
	}

	if active < minActive {
		return Result{}, memerr.New(memerr.KindInsufficientSpaces, "similarity.Compare",
			"fewer than the minimum active spaces were present on both sides")
	}
	if policy == RequireAll && active < len(fingerprint.SemanticSpaces()) {
		return Result{}, memerr.New(memerr.KindInsufficientSpaces, "similarity.Compare",
			"require-all policy: at least one semantic space missing")
	}

	var score float64
	if weightSum > 0 {
		score = weightedSum / weightSum
	}

	badges := temporalBadges(q.Fingerprint, c.Fingerprint)

	// Temporal spaces are reported for observability but excluded from
	// fusion weight (I3): compute their raw scores and append as inactive
	// contributions relative to fusion, even though they are "active" in
	// the sense of both sides carrying the embedding.
	for _, e := range []fingerprint.Embedder{fingerprint.TemporalRecent, fingerprint.TemporalPeriodic, fingerprint.TemporalPositional} {
		cmp, err := compareSpace(e, q, c)
		if err != nil {
			return Result{}, err
		}
		components = append(components, cmp)
	}

	return Result{Score: score, Components: components, Badges: badges}, nil
}

// compareSpace dispatches to the metric assigned to e. Missing vectors on
// either side yield an inactive Comparison (not an error): the caller
// decides whether that trips the minimum-active-spaces guard.
func compareSpace(e fingerprint.Embedder, q Query, c Candidate) (Comparison, error) {
	switch e.DataKind() {
	case fingerprint.KindSparse:
		qv, qok := q.Fingerprint.Sparse(e)
		cv, cok := c.Fingerprint.Sparse(e)
		if !qok || !cok {
			return Comparison{Embedder: e}, nil
		}
		return Comparison{Embedder: e, Score: SparseDot(qv, cv), Active: true}, nil

	case fingerprint.KindTokenDense:
		qv, qok := q.Fingerprint.Tokens(e)
		cv, cok := c.Fingerprint.Tokens(e)
		if !qok || !cok {
			return Comparison{Embedder: e}, nil
		}
		return Comparison{Embedder: e, Score: index.Score(qv.Tokens, cv.Tokens), Active: true}, nil

	default:
		qv, qok := q.Fingerprint.Dense(e)
		cv, cok := c.Fingerprint.Dense(e)
		if !qok || !cok {
			return Comparison{Embedder: e}, nil
		}
		if e.IsAsymmetric() {
			if q.AsymRole[e] != RoleQuery || c.AsymRole[e] != RoleDocument {
				return Comparison{}, memerr.New(memerr.KindConstitutionalViolation, "similarity.compareSpace",
					e.Name()+": asymmetric embedder compared without distinct query/document roles (AP-77)")
			}
			return Comparison{Embedder: e, Score: AsymmetricCosine(qv, cv), Active: true}, nil
		}
		if e.SimMetric() == fingerprint.MetricHammingSign {
			return Comparison{Embedder: e, Score: HammingSimilarity(qv, cv), Active: true}, nil
		}
		n1, n2 := fingerprint.Norm(qv), fingerprint.Norm(cv)
		if n1 == 0 || n2 == 0 {
			return Comparison{}, memerr.New(memerr.KindInvalidVector, "similarity.compareSpace", e.Name()+": zero-norm vector")
		}
		return Comparison{Embedder: e, Score: Cosine(qv, cv), Active: true}, nil
	}
}

// Cosine computes symmetric cosine similarity. Callers must ensure neither
// input is zero-norm; compareSpace enforces this before calling.
func Cosine(a, b []float32) float64 { return index.CosineSimilarity(a, b) }

// AsymmetricCosine computes the "asymmetric cosine" similarity (§4.5): the
// same dot-product-of-unit-vectors computation as Cosine, but the caller is
// required to have supplied query-role and document-role vectors — the
// asymmetry is a property of how the embedder was invoked, not of this
// function.
func AsymmetricCosine(query, doc []float32) float64 { return index.CosineSimilarity(query, doc) }

// SparseDot computes the dot product of two sparse vectors over their
// intersected term indices.
func SparseDot(a, b fingerprint.SparseVector) float64 {
	bv := make(map[uint16]float32, len(b.Indices))
	for i, idx := range b.Indices {
		bv[idx] = b.Values[i]
	}
	var sum float64
	for i, idx := range a.Indices {
		if v, ok := bv[idx]; ok {
			sum += float64(a.Values[i]) * float64(v)
		}
	}
	return sum
}

// HammingSimilarity maps sign-pattern Hamming distance to a similarity in
// [0,1]: 1 - (hamming/dim), per E9's rule (§4.5).
func HammingSimilarity(a, b []float32) float64 {
	dim := len(a)
	if dim == 0 {
		return 1
	}
	mismatches := 0
	for i := range a {
		if (a[i] >= 0) != (b[i] >= 0) {
			mismatches++
		}
	}
	return 1 - float64(mismatches)/float64(dim)
}

// temporalBadges emits up to four temporal badges from E2/E3/E4 cosine
// similarity. A zero-norm comparison yields no badge, never an error (§4.6).
func temporalBadges(q, c *fingerprint.Fingerprint) []Badge {
	var badges []Badge

	if sim, ok := safeCosine(q, c, fingerprint.TemporalRecent); ok && sim > 0.8 {
		badges = append(badges, BadgeSameSession)
	}
	if sim, ok := safeCosine(q, c, fingerprint.TemporalPeriodic); ok {
		switch {
		case sim > 0.7:
			badges = append(badges, BadgeSameDay)
		case sim > 0.6:
			badges = append(badges, BadgeSamePeriod)
		}
	}
	if sim, ok := safeCosine(q, c, fingerprint.TemporalPositional); ok && sim > 0.6 {
		badges = append(badges, BadgeSameSequence)
	}
	return badges
}

func safeCosine(q, c *fingerprint.Fingerprint, e fingerprint.Embedder) (float64, bool) {
	qv, qok := q.Dense(e)
	cv, cok := c.Dense(e)
	if !qok || !cok {
		return 0, false
	}
	if fingerprint.Norm(qv) == 0 || fingerprint.Norm(cv) == 0 {
		return 0, false
	}
	return Cosine(qv, cv), true
}

// clamp01 keeps a fused score in [0,1] for fusion modes whose inputs may
// legitimately exceed that range (e.g. RRF sums).
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
