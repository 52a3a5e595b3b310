package memorytool

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/memoryengine/pkg/memspace/atc"
	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/graphlink"
	"github.com/MrWong99/memoryengine/pkg/memspace/indexmanager"
	"github.com/MrWong99/memoryengine/pkg/memspace/retrieval"
	"github.com/MrWong99/memoryengine/pkg/memspace/storage"
	"github.com/google/uuid"
)

func testArms() []atc.Arm {
	return []atc.Arm{{Value: 0.5}, {Value: 0.6}, {Value: 0.7}}
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
	sparse := map[fingerprint.Embedder]fingerprint.SparseVector{}
	tokens := map[fingerprint.Embedder]fingerprint.TokenVectors{}
	for _, e := range fingerprint.AllEmbedders() {
		switch e.DataKind() {
		case fingerprint.KindDense:
			dense[e] = vec(e.Dim(), fill)
		case fingerprint.KindSparse:
			sparse[e] = fingerprint.SparseVector{Indices: []uint16{1, 2}, Values: []float32{fill, fill}}
		case fingerprint.KindTokenDense:
			tokens[e] = fingerprint.TokenVectors{Tokens: [][]float32{vec(e.Dim(), fill)}}
		}
	}
	fp, err := fingerprint.New(fingerprint.Inputs{Dense: dense, Sparse: sparse, Tokens: tokens})
	if err != nil {
		t.Fatalf("New fingerprint: %v", err)
	}
	return fp
}

func newTestEnv(t *testing.T) (*storage.Store, *retrieval.Facade) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "memorytool_test.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	idx := indexmanager.New()
	control := atc.NewController(10, testArms(), 1.4)
	facade := retrieval.New(idx, control, store, atc.DomainGeneral)

	return store, facade
}

func ingest(t *testing.T, store *storage.Store, facade *retrieval.Facade, fp *fingerprint.Fingerprint) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := facade.Indexes.AddFingerprint(t.Context(), id, fp, fingerprint.PurposeVector{}); err != nil {
		t.Fatalf("AddFingerprint: %v", err)
	}
	if err := store.PutFingerprint(id, fp); err != nil {
		t.Fatalf("PutFingerprint: %v", err)
	}
	return id
}

// ─────────────────────────────────────────────────────────────────────────────
// retrieve_similar
// ─────────────────────────────────────────────────────────────────────────────

func TestRetrieveSimilar_Success(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	id := ingest(t, store, facade, sampleFingerprint(t, 1.0))

	handler := makeRetrieveSimilarHandler(store, facade)
	out, err := handler(context.Background(), `{"query_id":"`+id.String()+`","session_id":"`+uuid.New().String()+`"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var hits []retrieval.Hit
	if err := json.Unmarshal([]byte(out), &hits); err != nil {
		t.Fatalf("failed to unmarshal: %v\noutput: %s", err, out)
	}
	found := false
	for _, h := range hits {
		if h.ID == id {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ingested id %s among results", id)
	}
}

func TestRetrieveSimilar_UnknownQueryID(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	handler := makeRetrieveSimilarHandler(store, facade)

	_, err := handler(context.Background(), `{"query_id":"`+uuid.New().String()+`","session_id":"`+uuid.New().String()+`"}`)
	if err == nil {
		t.Error("expected error for unknown query_id")
	}
	if !strings.HasPrefix(err.Error(), "memory tool:") {
		t.Errorf("error %q should be prefixed with 'memory tool:'", err.Error())
	}
}

func TestRetrieveSimilar_BadJSON(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	handler := makeRetrieveSimilarHandler(store, facade)

	_, err := handler(context.Background(), `{bad json}`)
	if err == nil {
		t.Error("expected error for bad JSON")
	}
}

func TestRetrieveSimilar_InvalidUUID(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	handler := makeRetrieveSimilarHandler(store, facade)

	_, err := handler(context.Background(), `{"query_id":"not-a-uuid","session_id":"`+uuid.New().String()+`"}`)
	if err == nil {
		t.Error("expected error for invalid query_id")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// check_divergence
// ─────────────────────────────────────────────────────────────────────────────

func TestCheckDivergence_Success(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	queryID := ingest(t, store, facade, sampleFingerprint(t, 1.0))
	contextID := ingest(t, store, facade, sampleFingerprint(t, -1.0))

	handler := makeCheckDivergenceHandler(store, facade)
	args := `{"query_id":"` + queryID.String() + `","context_id":"` + contextID.String() + `","session_id":"` + uuid.New().String() + `"}`
	out, err := handler(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res divergenceResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("failed to unmarshal: %v\noutput: %s", err, out)
	}
	if len(res.Alerts) == 0 {
		t.Error("expected alerts for opposed fingerprints")
	}
}

func TestCheckDivergence_UnknownContextID(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	queryID := ingest(t, store, facade, sampleFingerprint(t, 1.0))

	handler := makeCheckDivergenceHandler(store, facade)
	args := `{"query_id":"` + queryID.String() + `","context_id":"` + uuid.New().String() + `","session_id":"` + uuid.New().String() + `"}`
	_, err := handler(context.Background(), args)
	if err == nil {
		t.Error("expected error for unknown context_id")
	}
}

func TestCheckDivergence_BadJSON(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	handler := makeCheckDivergenceHandler(store, facade)

	_, err := handler(context.Background(), `{bad json}`)
	if err == nil {
		t.Error("expected error for bad JSON")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// detect_contradictions
// ─────────────────────────────────────────────────────────────────────────────

func TestDetectContradictions_Success(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	node := ingest(t, store, facade, sampleFingerprint(t, 1.0))
	other := ingest(t, store, facade, sampleFingerprint(t, -1.0))

	edge, err := graphlink.NewEdge(uuid.New(), node, other, graphlink.Contradicts, 0, 0, 0.9, atc.DomainGeneral, graphlink.NeurotransmitterWeights{}, 0)
	if err != nil {
		t.Fatalf("NewEdge: %v", err)
	}
	if err := store.PutEdge(edge); err != nil {
		t.Fatalf("PutEdge: %v", err)
	}

	handler := makeDetectContradictionsHandler(store, facade)
	out, err := handler(context.Background(), `{"node_id":"`+node.String()+`"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var hits []retrieval.ContradictionHit
	if err := json.Unmarshal([]byte(out), &hits); err != nil {
		t.Fatalf("failed to unmarshal: %v\noutput: %s", err, out)
	}
	found := false
	for _, h := range hits {
		if h.Node == other {
			found = true
		}
	}
	if !found {
		t.Errorf("expected contradicting node %s among results", other)
	}
}

func TestDetectContradictions_UnknownNodeID(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	handler := makeDetectContradictionsHandler(store, facade)

	_, err := handler(context.Background(), `{"node_id":"`+uuid.New().String()+`"}`)
	if err == nil {
		t.Error("expected error for unknown node_id")
	}
}

func TestDetectContradictions_BadJSON(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)
	handler := makeDetectContradictionsHandler(store, facade)

	_, err := handler(context.Background(), `{bad json}`)
	if err == nil {
		t.Error("expected error for bad JSON")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// NewTools
// ─────────────────────────────────────────────────────────────────────────────

func TestNewTools_ReturnsExpectedTools(t *testing.T) {
	t.Parallel()
	store, facade := newTestEnv(t)

	ts := NewTools(store, facade)
	if len(ts) != 3 {
		t.Fatalf("NewTools returned %d tools, want 3", len(ts))
	}

	wantNames := map[string]bool{
		"retrieve_similar":      true,
		"check_divergence":      true,
		"detect_contradictions": true,
	}

	for _, tool := range ts {
		if !wantNames[tool.Definition.Name] {
			t.Errorf("unexpected tool name %q", tool.Definition.Name)
		}
		delete(wantNames, tool.Definition.Name)

		if tool.Handler == nil {
			t.Errorf("tool %q has nil Handler", tool.Definition.Name)
		}
		if tool.DeclaredP50 <= 0 {
			t.Errorf("tool %q DeclaredP50 = %d, want > 0", tool.Definition.Name, tool.DeclaredP50)
		}
		if tool.DeclaredMax <= 0 {
			t.Errorf("tool %q DeclaredMax = %d, want > 0", tool.Definition.Name, tool.DeclaredMax)
		}
	}

	for missing := range wantNames {
		t.Errorf("NewTools missing tool %q", missing)
	}
}
