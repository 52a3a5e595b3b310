package graphlink

import (
	"testing"

	"github.com/MrWong99/memoryengine/pkg/memspace/atc"
	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/google/uuid"
)

func TestEdgeTypes_ClosedSetExhaustive(t *testing.T) {
	if len(AllEdgeTypes()) != 23 {
		t.Fatalf("expected 23 edge types, got %d", len(AllEdgeTypes()))
	}
}

func TestNewEdge_RejectsTemporalAgreement(t *testing.T) {
	agreement := EmbedderAgreement(0).Set(fingerprint.TemporalRecent)
	_, err := NewEdge(uuid.New(), uuid.New(), uuid.New(), SemanticSimilar, agreement, 1, 0.9, atc.DomainGeneral, NeurotransmitterWeights{}, 0)
	if err == nil {
		t.Fatal("expected AP-60 violation for temporal embedder in agreement bitset")
	}
	var ee *EdgeError
	if !asEdgeError(err, &ee) || ee.Code != ErrTemporalEmbedderViolation {
		t.Fatalf("expected E_GRAPHLINK_003, got %v", err)
	}
}

func TestNewEdge_RejectsAgreementCountMismatch(t *testing.T) {
	agreement := EmbedderAgreement(0).Set(fingerprint.Semantic).Set(fingerprint.Code)
	_, err := NewEdge(uuid.New(), uuid.New(), uuid.New(), SemanticSimilar, agreement, 1, 0.9, atc.DomainGeneral, NeurotransmitterWeights{}, 0)
	if err == nil {
		t.Fatal("expected agreement count mismatch error")
	}
}

func TestNewEdge_AsymmetricTypeRejectsIdenticalEndpoints(t *testing.T) {
	id := uuid.New()
	agreement := EmbedderAgreement(0).Set(fingerprint.Causal)
	_, err := NewEdge(uuid.New(), id, id, CausalChain, agreement, 1, 0.9, atc.DomainGeneral, NeurotransmitterWeights{}, 0)
	if err == nil {
		t.Fatal("expected direction-required error for identical source/target on an asymmetric type")
	}
}

func TestNewEdge_ValidEdgeConstructsSuccessfully(t *testing.T) {
	agreement := EmbedderAgreement(0).Set(fingerprint.Semantic).Set(fingerprint.Code)
	nt := NeurotransmitterWeights{Excitatory: 0.3, Inhibitory: 0.1, Modulatory: 0.2}
	e, err := NewEdge(uuid.New(), uuid.New(), uuid.New(), SemanticSimilar, agreement, 2, 0.85, atc.DomainResearch, nt, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Agreement.Popcount() != 2 {
		t.Fatalf("expected popcount 2, got %d", e.Agreement.Popcount())
	}
	if e.Domain != atc.DomainResearch {
		t.Errorf("expected domain research, got %v", e.Domain)
	}
	if e.SteeringReward != 0.5 {
		t.Errorf("expected steering reward 0.5, got %v", e.SteeringReward)
	}
}

func TestNewEdge_RejectsOutOfRangeSteeringReward(t *testing.T) {
	agreement := EmbedderAgreement(0)
	_, err := NewEdge(uuid.New(), uuid.New(), uuid.New(), SemanticSimilar, agreement, 0, 0.5, atc.DomainGeneral, NeurotransmitterWeights{}, 1.5)
	if err == nil {
		t.Fatal("expected invalid steering reward error")
	}
	var ee *EdgeError
	if !asEdgeError(err, &ee) || ee.Code != ErrInvalidSteeringReward {
		t.Fatalf("expected E_GRAPHLINK_016, got %v", err)
	}
}

func TestKnnGraph_RejectsTemporalEmbedder(t *testing.T) {
	if _, err := NewKnnGraph(fingerprint.TemporalRecent, 10); err == nil {
		t.Fatal("expected AP-60 rejection constructing a K-NN graph over a temporal embedder")
	}
}

func TestKnnGraph_EvictsLowestSimilarityAtCapacity(t *testing.T) {
	g, err := NewKnnGraph(fingerprint.Semantic, 2)
	if err != nil {
		t.Fatalf("NewKnnGraph: %v", err)
	}
	node := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	g.AddEdge(EmbedderEdge{Source: node, Target: a, Embedder: fingerprint.Semantic, Similarity: 0.5})
	g.AddEdge(EmbedderEdge{Source: node, Target: b, Embedder: fingerprint.Semantic, Similarity: 0.6})
	g.AddEdge(EmbedderEdge{Source: node, Target: c, Embedder: fingerprint.Semantic, Similarity: 0.9})

	neighbors := g.Neighbors(node)
	if len(neighbors) != 2 {
		t.Fatalf("expected capacity-bounded 2 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].Target != c {
		t.Fatalf("expected highest-similarity neighbor first, got %+v", neighbors[0])
	}
	for _, n := range neighbors {
		if n.Target == a {
			t.Fatal("expected lowest-similarity neighbor (a) to have been evicted")
		}
	}
}

type fakeEdgeStore struct {
	edges map[uuid.UUID][]*Edge
}

func (s *fakeEdgeStore) EdgesFrom(node uuid.UUID) []*Edge { return s.edges[node] }
func (s *fakeEdgeStore) EdgesTo(node uuid.UUID) []*Edge    { return nil }

func TestContradictionWalker_BoundedHopBFS(t *testing.T) {
	n0, n1, n2, n3 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	store := &fakeEdgeStore{edges: map[uuid.UUID][]*Edge{
		n0: {{Source: n0, Target: n1, Type: Contradicts}},
		n1: {{Source: n1, Target: n2, Type: Contradicts}},
		n2: {{Source: n2, Target: n3, Type: Contradicts}},
	}}
	walker := NewContradictionWalker(store, 2)
	hits := walker.Walk(n0, map[uuid.UUID]bool{n1: true})

	found := map[uuid.UUID]bool{}
	for _, h := range hits {
		found[h.Node] = true
	}
	if !found[n1] || !found[n2] {
		t.Fatalf("expected n1 and n2 within 2 hops, got %+v", hits)
	}
	if found[n3] {
		t.Fatal("expected n3 beyond max hops to be excluded")
	}
}

func asEdgeError(err error, target **EdgeError) bool {
	ee, ok := err.(*EdgeError)
	if !ok {
		return false
	}
	*target = ee
	return true
}
