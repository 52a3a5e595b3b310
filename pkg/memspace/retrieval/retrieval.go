// Package retrieval implements the retrieval facade (C10, §4.10): the
// three high-level, session-scoped operations callers actually invoke —
// retrieve_similar, check_divergence, and detect_contradictions — composed
// from the index manager, the cross-space similarity engine, the adaptive
// threshold controller, and the graph-link contradiction walker. No new
// algorithms live here; this package is pure composition, grounded on the
// orchestrator_lifecycle.go pattern of sequencing independently-owned
// subsystems behind one caller-facing operation.
package retrieval

import (
	"context"
	"sort"

	"github.com/MrWong99/memoryengine/pkg/memspace/atc"
	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/graphlink"
	"github.com/MrWong99/memoryengine/pkg/memspace/index"
	"github.com/MrWong99/memoryengine/pkg/memspace/indexmanager"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
	"github.com/MrWong99/memoryengine/pkg/memspace/similarity"
	"github.com/google/uuid"
)

// Facade composes the subsystems needed by the three retrieval operations.
// Store is optional: detect_contradictions needs it to resolve explicit
// Contradicts edges, but retrieve_similar and check_divergence work
// without it.
type Facade struct {
	Indexes *indexmanager.Manager
	Control *atc.Controller
	Store   graphlink.EdgeStore
	Domain  atc.Domain
}

// New constructs a Facade. store may be nil if detect_contradictions will
// not be called.
func New(indexes *indexmanager.Manager, control *atc.Controller, store graphlink.EdgeStore, domain atc.Domain) *Facade {
	return &Facade{Indexes: indexes, Control: control, Store: store, Domain: domain}
}

// Hit is one ranked retrieval result: the matched id, the k-NN index's raw
// distance/similarity from the winning embedder, and the ATC decision that
// was consulted for it.
type Hit struct {
	ID       uuid.UUID
	Score    float64
	Decision atc.Decision
}

// RetrieveSimilar performs session-scoped similarity retrieval (§4.10):
// a k-NN search over the query's primary semantic embedding (E1), gated by
// the session's domain threshold decision from the ATC. limit bounds the
// returned ranked list. session_id itself does not change the search (the
// facade is stateless across sessions); it is accepted for signature
// parity with §6.2's query contract and to let a future caller route it
// to per-session bandit state via Control.
func (f *Facade) RetrieveSimilar(ctx context.Context, query *fingerprint.Fingerprint, sessionID uuid.UUID, limit int) ([]Hit, error) {
	qv, ok := query.Dense(fingerprint.Semantic)
	if !ok {
		return nil, memerr.New(memerr.KindDimension, "retrieval.RetrieveSimilar", "query missing E1 (Semantic) embedding")
	}

	decision, ok := f.Control.Decide(f.Domain)
	if !ok {
		return nil, memerr.New(memerr.KindThreshold, "retrieval.RetrieveSimilar", "no calibrated threshold decision available")
	}

	scored, err := f.Indexes.Search(ctx, fingerprint.Semantic, qv, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(scored))
	for _, s := range scored {
		if err := ctx.Err(); err != nil {
			return nil, memerr.New(memerr.KindDeadline, "retrieval.RetrieveSimilar", err.Error())
		}
		sim := 1 - s.Distance
		if sim < decision.Threshold {
			continue
		}
		hits = append(hits, Hit{ID: s.ID, Score: sim, Decision: decision})
	}
	return hits, nil
}

// divergenceSpaces is the narrower "semantic" set check_divergence
// consults (§4.10): E1, E5, E6, E7, E10, E12, E13. It deliberately excludes
// E8/E9/E11, which DO participate in ordinary similarity.Compare fusion,
// and the three temporal embedders, excluded everywhere by I3.
var divergenceSpaces = []fingerprint.Embedder{
	fingerprint.Semantic, fingerprint.Causal, fingerprint.Sparse,
	fingerprint.Code, fingerprint.Multimodal, fingerprint.LateInteraction,
	fingerprint.SPLADE,
}

// DivergenceAlert is one embedder's divergence finding: how far its
// similarity to the session's context fell below θ_warn, and a severity
// bucket derived from that deficit.
type DivergenceAlert struct {
	Embedder fingerprint.Embedder
	Score    float64
	Deficit  float64
	Severity DivergenceSeverity
}

// DivergenceSeverity buckets a deficit below θ_warn.
type DivergenceSeverity int

const (
	SeverityNone DivergenceSeverity = iota
	SeverityMild
	SeverityModerate
	SeveritySevere
)

func (s DivergenceSeverity) String() string {
	switch s {
	case SeverityMild:
		return "mild"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	default:
		return "none"
	}
}

func severityFor(deficit float64) DivergenceSeverity {
	switch {
	case deficit <= 0:
		return SeverityNone
	case deficit < 0.1:
		return SeverityMild
	case deficit < 0.25:
		return SeverityModerate
	default:
		return SeveritySevere
	}
}

// CheckDivergence computes per-space similarity between query and context
// over divergenceSpaces only (§4.10) and emits an alert for every space
// whose similarity falls short of the session domain's θ_warn threshold.
// A space missing on either side is skipped (no alert, not an error) since
// divergence is about comparing what's present, not penalizing absence.
func (f *Facade) CheckDivergence(ctx context.Context, query, ctxFingerprint *fingerprint.Fingerprint, sessionID uuid.UUID) ([]DivergenceAlert, error) {
	thresholds, ok := f.Control.DomainThresholds(f.Domain)
	if !ok {
		return nil, memerr.New(memerr.KindThreshold, "retrieval.CheckDivergence", "no domain thresholds configured")
	}

	var alerts []DivergenceAlert
	for _, e := range divergenceSpaces {
		if err := ctx.Err(); err != nil {
			return nil, memerr.New(memerr.KindDeadline, "retrieval.CheckDivergence", err.Error())
		}
		qv, qok := query.Dense(e)
		cv, cok := ctxFingerprint.Dense(e)
		if e.DataKind() == fingerprint.KindSparse {
			qsv, qsok := query.Sparse(e)
			csv, csok := ctxFingerprint.Sparse(e)
			if !qsok || !csok {
				continue
			}
			score := similarity.SparseDot(qsv, csv)
			if deficit := thresholds.ThetaWarn - score; deficit > 0 {
				alerts = append(alerts, DivergenceAlert{Embedder: e, Score: score, Deficit: deficit, Severity: severityFor(deficit)})
			}
			continue
		}
		if e.DataKind() == fingerprint.KindTokenDense {
			qtv, qtok := query.Tokens(e)
			ctv, ctok := ctxFingerprint.Tokens(e)
			if !qtok || !ctok {
				continue
			}
			score := index.Score(qtv.Tokens, ctv.Tokens)
			if deficit := thresholds.ThetaWarn - score; deficit > 0 {
				alerts = append(alerts, DivergenceAlert{Embedder: e, Score: score, Deficit: deficit, Severity: severityFor(deficit)})
			}
			continue
		}
		if !qok || !cok || fingerprint.Norm(qv) == 0 || fingerprint.Norm(cv) == 0 {
			continue
		}
		score := similarity.Cosine(qv, cv)
		if deficit := thresholds.ThetaWarn - score; deficit > 0 {
			alerts = append(alerts, DivergenceAlert{Embedder: e, Score: score, Deficit: deficit, Severity: severityFor(deficit)})
		}
	}
	return alerts, nil
}

// ShouldAlertDivergence aggregates alerts per §4.10: any severe alert, or
// two or more moderate-or-worse alerts, trips the aggregate.
func ShouldAlertDivergence(alerts []DivergenceAlert) bool {
	moderateOrWorse := 0
	for _, a := range alerts {
		if a.Severity == SeveritySevere {
			return true
		}
		if a.Severity == SeverityModerate {
			moderateOrWorse++
		}
	}
	return moderateOrWorse >= 2
}

// ContradictionHit is one detect_contradictions finding: the contradicting
// node, the confidence derived from combining semantic proximity with
// explicit graph structure, and whether it was reached via a Contradicts
// edge, semantic k-NN, or both.
type ContradictionHit struct {
	Node           uuid.UUID
	Confidence     float64
	ViaGraph       bool
	SemanticRanked bool
}

// DetectContradictions combines semantic k-NN candidates (found via the
// Matryoshka-128 truncated E1 index, for a cheap recall pass) with explicit
// Contradicts edges walked up to two hops, per §4.10. threshold gates which
// semantic candidates are considered corroborating. Confidence is 0.7 for a
// graph-only hit, 0.3 for a semantic-only hit above threshold, and their sum
// (capped at 1.0) when both signals agree — an explicit edge is taken as
// stronger evidence than proximity alone, and agreement between the two
// signals is stronger still.
func (f *Facade) DetectContradictions(ctx context.Context, nodeEmbedding []float32, nodeID uuid.UUID, threshold float64, limit int) ([]ContradictionHit, error) {
	if f.Store == nil {
		return nil, memerr.New(memerr.KindDimension, "retrieval.DetectContradictions", "no edge store configured")
	}

	scored, err := f.Indexes.SearchMatryoshka(ctx, nodeEmbedding, limit)
	if err != nil {
		return nil, err
	}
	semanticCandidates := make(map[uuid.UUID]bool, len(scored))
	for _, s := range scored {
		if 1-s.Distance >= threshold {
			semanticCandidates[s.ID] = true
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, memerr.New(memerr.KindDeadline, "retrieval.DetectContradictions", err.Error())
	}

	walker := graphlink.NewContradictionWalker(f.Store, 2)
	graphHits := walker.Walk(nodeID, semanticCandidates)
	viaGraph := make(map[uuid.UUID]bool, len(graphHits))
	for _, h := range graphHits {
		viaGraph[h.Node] = true
	}

	if err := ctx.Err(); err != nil {
		return nil, memerr.New(memerr.KindDeadline, "retrieval.DetectContradictions", err.Error())
	}

	results := make(map[uuid.UUID]*ContradictionHit)
	for _, h := range graphHits {
		conf := 0.7
		if h.SemanticCorroborated {
			conf += 0.3
		}
		results[h.Node] = &ContradictionHit{Node: h.Node, Confidence: clamp1(conf), ViaGraph: true, SemanticRanked: h.SemanticCorroborated}
	}
	for id := range semanticCandidates {
		if id == nodeID || viaGraph[id] {
			continue
		}
		results[id] = &ContradictionHit{Node: id, Confidence: 0.3, ViaGraph: false, SemanticRanked: true}
	}

	out := make([]ContradictionHit, 0, len(results))
	for _, h := range results {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
