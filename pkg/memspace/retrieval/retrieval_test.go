package retrieval

import (
	"testing"

	"github.com/MrWong99/memoryengine/pkg/memspace/atc"
	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/graphlink"
	"github.com/MrWong99/memoryengine/pkg/memspace/indexmanager"
	"github.com/google/uuid"
)

func testArms() []atc.Arm {
	return []atc.Arm{{Value: 0.5}, {Value: 0.6}, {Value: 0.7}}
}

func newTestController(t *testing.T) *atc.Controller {
	t.Helper()
	return atc.NewController(10, testArms(), 1.4)
}

func vec(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}

func sampleFingerprint(t *testing.T, fill float32) *fingerprint.Fingerprint {
	t.Helper()
	dense := map[fingerprint.Embedder][]float32{}
	for _, e := range fingerprint.AllEmbedders() {
		switch e.DataKind() {
		case fingerprint.KindDense:
			dense[e] = vec(e.Dim(), fill)
		}
	}
	sparse := map[fingerprint.Embedder]fingerprint.SparseVector{}
	for _, e := range fingerprint.AllEmbedders() {
		if e.DataKind() == fingerprint.KindSparse {
			sparse[e] = fingerprint.SparseVector{Indices: []uint16{1, 2}, Values: []float32{fill, fill}}
		}
	}
	tokens := map[fingerprint.Embedder]fingerprint.TokenVectors{}
	for _, e := range fingerprint.AllEmbedders() {
		if e.DataKind() == fingerprint.KindTokenDense {
			tokens[e] = fingerprint.TokenVectors{Tokens: [][]float32{vec(e.Dim(), fill)}}
		}
	}
	fp, err := fingerprint.New(fingerprint.Inputs{Dense: dense, Sparse: sparse, Tokens: tokens})
	if err != nil {
		t.Fatalf("New fingerprint: %v", err)
	}
	return fp
}

// fakeEdgeStore is a minimal in-memory graphlink.EdgeStore for testing
// DetectContradictions without pulling in the sqlite-backed store.
type fakeEdgeStore struct {
	from map[uuid.UUID][]*graphlink.Edge
	to   map[uuid.UUID][]*graphlink.Edge
}

func newFakeEdgeStore() *fakeEdgeStore {
	return &fakeEdgeStore{from: map[uuid.UUID][]*graphlink.Edge{}, to: map[uuid.UUID][]*graphlink.Edge{}}
}

func (f *fakeEdgeStore) addContradicts(a, b uuid.UUID) {
	e := &graphlink.Edge{ID: uuid.New(), Source: a, Target: b, Type: graphlink.Contradicts}
	f.from[a] = append(f.from[a], e)
	f.to[b] = append(f.to[b], e)
}

func (f *fakeEdgeStore) EdgesFrom(node uuid.UUID) []*graphlink.Edge { return f.from[node] }
func (f *fakeEdgeStore) EdgesTo(node uuid.UUID) []*graphlink.Edge   { return f.to[node] }

func TestRetrieveSimilar_ReturnsHitsAboveThreshold(t *testing.T) {
	idx := indexmanager.New()
	id := uuid.New()
	fp := sampleFingerprint(t, 1.0)
	pv := fingerprint.PurposeVector{}
	if err := idx.AddFingerprint(t.Context(), id, fp, pv); err != nil {
		t.Fatalf("AddFingerprint: %v", err)
	}

	control := newTestController(t)
	f := New(idx, control, nil, atc.DomainGeneral)

	hits, err := f.RetrieveSimilar(t.Context(), fp, uuid.New(), 5)
	if err != nil {
		t.Fatalf("RetrieveSimilar: %v", err)
	}
	found := false
	for _, h := range hits {
		if h.ID == id {
			found = true
		}
	}
	if !found {
		t.Errorf("RetrieveSimilar did not return the ingested id among %d hits", len(hits))
	}
}

func TestRetrieveSimilar_MissingSemanticEmbeddingErrors(t *testing.T) {
	idx := indexmanager.New()
	control := newTestController(t)
	f := New(idx, control, nil, atc.DomainGeneral)

	empty, err := fingerprint.New(fingerprint.Inputs{})
	if err == nil {
		// An all-missing fingerprint is itself invalid; build a facade call
		// directly against a query missing E1 using a minimal valid one
		// instead isn't representable via New, so skip straight to the
		// error path by asserting New rejected it.
		t.Fatalf("expected fingerprint.New to reject an empty Inputs, got fp=%v", empty)
	}
	if _, err := f.RetrieveSimilar(t.Context(), &fingerprint.Fingerprint{}, uuid.New(), 5); err == nil {
		t.Fatal("expected RetrieveSimilar to reject a query without an E1 embedding")
	}
}

func TestCheckDivergence_FlagsLowSimilaritySpaces(t *testing.T) {
	control := newTestController(t)
	thresholds, ok := control.DomainThresholds(atc.DomainGeneral)
	if !ok {
		t.Fatal("expected default domain thresholds")
	}

	query := sampleFingerprint(t, 1.0)
	context := sampleFingerprint(t, -1.0)

	f := New(indexmanager.New(), control, nil, atc.DomainGeneral)
	alerts, err := f.CheckDivergence(t.Context(), query, context, uuid.New())
	if err != nil {
		t.Fatalf("CheckDivergence: %v", err)
	}
	if len(alerts) == 0 {
		t.Fatal("expected at least one divergence alert for opposed embeddings")
	}
	for _, a := range alerts {
		if a.Score >= thresholds.ThetaWarn {
			t.Errorf("alert for %v has score %.3f >= theta_warn %.3f, should not have alerted", a.Embedder, a.Score, thresholds.ThetaWarn)
		}
		seen := false
		for _, e := range divergenceSpaces {
			if e == a.Embedder {
				seen = true
			}
		}
		if !seen {
			t.Errorf("alert for embedder %v outside the restricted divergence set", a.Embedder)
		}
	}
}

func TestCheckDivergence_IdenticalFingerprintsHaveNoAlerts(t *testing.T) {
	control := newTestController(t)
	query := sampleFingerprint(t, 1.0)

	f := New(indexmanager.New(), control, nil, atc.DomainGeneral)
	alerts, err := f.CheckDivergence(t.Context(), query, query, uuid.New())
	if err != nil {
		t.Fatalf("CheckDivergence: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected no alerts comparing a fingerprint to itself, got %d", len(alerts))
	}
}

func TestShouldAlertDivergence_SevereAlertAlwaysTrips(t *testing.T) {
	if !ShouldAlertDivergence([]DivergenceAlert{{Severity: SeveritySevere}}) {
		t.Error("single severe alert should trip ShouldAlertDivergence")
	}
}

func TestShouldAlertDivergence_SingleModerateDoesNotTrip(t *testing.T) {
	if ShouldAlertDivergence([]DivergenceAlert{{Severity: SeverityModerate}}) {
		t.Error("single moderate alert should not trip ShouldAlertDivergence")
	}
}

func TestShouldAlertDivergence_TwoModerateAlertsTrip(t *testing.T) {
	alerts := []DivergenceAlert{{Severity: SeverityModerate}, {Severity: SeverityModerate}}
	if !ShouldAlertDivergence(alerts) {
		t.Error("two moderate alerts should trip ShouldAlertDivergence")
	}
}

func TestDetectContradictions_CombinesGraphAndSemanticSignals(t *testing.T) {
	idx := indexmanager.New()
	node := uuid.New()
	graphOnly := uuid.New()
	bothSignals := uuid.New()

	nodeFP := sampleFingerprint(t, 1.0)
	bothFP := sampleFingerprint(t, 0.99)
	graphOnlyFP := sampleFingerprint(t, -1.0)

	for id, fp := range map[uuid.UUID]*fingerprint.Fingerprint{node: nodeFP, bothSignals: bothFP, graphOnly: graphOnlyFP} {
		if err := idx.AddFingerprint(t.Context(), id, fp, fingerprint.PurposeVector{}); err != nil {
			t.Fatalf("AddFingerprint(%s): %v", id, err)
		}
	}

	store := newFakeEdgeStore()
	store.addContradicts(node, graphOnly)
	store.addContradicts(node, bothSignals)

	control := newTestController(t)
	f := New(idx, control, store, atc.DomainGeneral)

	qv, _ := nodeFP.Dense(fingerprint.Semantic)
	hits, err := f.DetectContradictions(t.Context(), qv, node, 0.5, 10)
	if err != nil {
		t.Fatalf("DetectContradictions: %v", err)
	}

	byID := map[uuid.UUID]ContradictionHit{}
	for _, h := range hits {
		byID[h.Node] = h
	}

	bh, ok := byID[bothSignals]
	if !ok {
		t.Fatal("expected bothSignals node in results")
	}
	if !bh.ViaGraph || !bh.SemanticRanked {
		t.Errorf("bothSignals hit should be corroborated by both signals: %+v", bh)
	}

	gh, ok := byID[graphOnly]
	if !ok {
		t.Fatal("expected graphOnly node in results")
	}
	if !gh.ViaGraph || gh.SemanticRanked {
		t.Errorf("graphOnly hit should be graph-only: %+v", gh)
	}
	if gh.Confidence >= bh.Confidence {
		t.Errorf("corroborated hit confidence %.2f should exceed graph-only %.2f", bh.Confidence, gh.Confidence)
	}

	if _, self := byID[node]; self {
		t.Error("the query node itself should not appear among its own contradiction hits")
	}
}

func TestDetectContradictions_NoEdgeStoreErrors(t *testing.T) {
	f := New(indexmanager.New(), newTestController(t), nil, atc.DomainGeneral)
	if _, err := f.DetectContradictions(t.Context(), vec(1024, 1.0), uuid.New(), 0.5, 5); err == nil {
		t.Error("expected an error when no edge store is configured")
	}
}
