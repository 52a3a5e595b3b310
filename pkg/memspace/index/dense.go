// Package index implements the per-embedder index contract (C4): a
// concrete, concurrency-safe index per dense embedder (conceptually HNSW;
// here an exact brute-force search preserves the public contract exactly,
// as §4.3 explicitly allows), an inverted index for the two sparse
// embedders, and a MaxSim index for the late-interaction embedder.
package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
	"github.com/google/uuid"
)

// Health is the lifecycle state of an index. There is no partial-degradation
// mode: a Failed index cannot accept writes (§4.4).
type Health int

const (
	HealthHealthy Health = iota
	HealthFailed
	HealthRebuilding
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthFailed:
		return "failed"
	case HealthRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// ScoredID is a single search result: the matched id and its distance
// (smaller is closer) or similarity (larger is closer) depending on the
// caller's convention. Dense.Search returns ascending distance.
type ScoredID struct {
	ID       uuid.UUID
	Distance float64
}

// Dense is a per-embedder index over dense vectors of a fixed dimension. It
// is guarded by a single sync.RWMutex: many concurrent readers (Search), one
// exclusive writer (Insert/Remove) at a time, matching §5's per-index
// reader-writer contract.
//
// Entries are kept in insertion order so that Search ties break
// deterministically by insertion order (§4.3, §5 "Ordering").
type Dense struct {
	name     string
	embedder *fingerprint.Embedder // nil for derived indexes (Matryoshka-128, PurposeVector)
	dim      int
	metric   fingerprint.Metric

	mu      sync.RWMutex
	health  Health
	order   []uuid.UUID // insertion order, for deterministic tie-breaking
	vectors map[uuid.UUID][]float32
	seq     map[uuid.UUID]int // insertion sequence number
	nextSeq int
}

// NewDense constructs an empty Dense index for the given embedder.
func NewDense(e fingerprint.Embedder) *Dense {
	return &Dense{
		name:     e.Name(),
		embedder: &e,
		dim:      e.Dim(),
		metric:   e.SimMetric(),
		health:   HealthHealthy,
		vectors:  make(map[uuid.UUID][]float32),
		seq:      make(map[uuid.UUID]int),
	}
}

// NewDenseRaw constructs an empty Dense index that is not tied to one of the
// thirteen embedders: the Matryoshka-128 truncated E1 index and the
// PurposeVector index (§4.4) are both plain cosine-symmetric dense indexes
// over a fixed dimension, not one of the closed Embedder variants.
func NewDenseRaw(name string, dim int) *Dense {
	return &Dense{
		name:    name,
		dim:     dim,
		metric:  fingerprint.MetricCosineSymmetric,
		health:  HealthHealthy,
		vectors: make(map[uuid.UUID][]float32),
		seq:     make(map[uuid.UUID]int),
	}
}

// Name returns the index's identifying name (an embedder name, or a derived
// index name such as "matryoshka_128"/"purpose_vector").
func (d *Dense) Name() string { return d.name }

// Embedder returns the embedder this index serves, or nil for a derived
// index constructed via NewDenseRaw.
func (d *Dense) Embedder() *fingerprint.Embedder { return d.embedder }

// Health returns the current index health state.
func (d *Dense) Health() Health {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.health
}

// MarkFailed transitions the index to Failed; it will reject further writes
// until a rebuild. This is exported so the index manager can flag a failure
// observed at a higher layer (e.g. persistence corruption).
func (d *Dense) MarkFailed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.health = HealthFailed
}

// Insert validates dimension and finiteness, and — for a per-embedder index
// constructed via NewDense — zero-norm (I2), then inserts or replaces the
// vector for id. Derived indexes built via NewDenseRaw (Matryoshka-128,
// PurposeVector) are not one of the thirteen I2-governed embedding spaces
// and may legitimately hold a zero vector (e.g. a PurposeVector of zero
// entropy by convention). Replacing an existing id updates the vector in
// place without changing its original insertion-order position.
func (d *Dense) Insert(id uuid.UUID, vector []float32) error {
	if len(vector) != d.dim {
		return memerr.DimensionMismatch("index.Dense.Insert", d.dim, len(vector))
	}
	for _, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return memerr.New(memerr.KindInvalidVector, "index.Dense.Insert", d.name+": non-finite component")
		}
	}
	if d.embedder != nil && fingerprint.Norm(vector) == 0 {
		return memerr.New(memerr.KindInvalidVector, "index.Dense.Insert", d.name+": zero-norm vector")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.health == HealthFailed {
		return memerr.New(memerr.KindIndexFailed, "index.Dense.Insert", d.name)
	}

	cp := make([]float32, len(vector))
	copy(cp, vector)

	if _, exists := d.vectors[id]; !exists {
		d.order = append(d.order, id)
		d.seq[id] = d.nextSeq
		d.nextSeq++
	}
	d.vectors[id] = cp
	return nil
}

// Remove deletes id from the index and reports whether it was present.
func (d *Dense) Remove(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.vectors[id]; !ok {
		return false
	}
	delete(d.vectors, id)
	delete(d.seq, id)
	for i, existing := range d.order {
		if existing == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// Search returns the k nearest neighbors of query by the embedder's metric,
// sorted ascending by distance with ties broken by insertion order. k=0
// returns an empty list (never an error); k larger than the index size
// returns all entries. If ctx's deadline elapses before the ranked list is
// assembled, the partial result is discarded and a KindDeadline error is
// returned instead.
func (d *Dense) Search(ctx context.Context, query []float32, k int) ([]ScoredID, error) {
	if len(query) != d.dim {
		return nil, memerr.DimensionMismatch("index.Dense.Search", d.dim, len(query))
	}
	for _, v := range query {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, memerr.New(memerr.KindInvalidVector, "index.Dense.Search", d.name+": non-finite query component")
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.health != HealthHealthy {
		return nil, memerr.New(memerr.KindIndexNotInitialized, "index.Dense.Search", d.name)
	}
	if k == 0 || len(d.order) == 0 {
		return []ScoredID{}, nil
	}

	type scored struct {
		id   uuid.UUID
		dist float64
		seq  int
	}
	results := make([]scored, 0, len(d.order))
	for _, id := range d.order {
		if err := ctx.Err(); err != nil {
			return nil, memerr.New(memerr.KindDeadline, "index.Dense.Search", d.name+": "+err.Error())
		}
		vec := d.vectors[id]
		dist := distanceFor(d.metric, query, vec)
		results = append(results, scored{id: id, dist: dist, seq: d.seq[id]})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].dist != results[j].dist {
			return results[i].dist < results[j].dist
		}
		return results[i].seq < results[j].seq
	})

	if k > len(results) {
		k = len(results)
	}
	if err := ctx.Err(); err != nil {
		return nil, memerr.New(memerr.KindDeadline, "index.Dense.Search", d.name+": "+err.Error())
	}
	out := make([]ScoredID, k)
	for i := 0; i < k; i++ {
		out[i] = ScoredID{ID: results[i].id, Distance: results[i].dist}
	}
	return out, nil
}

// Len returns the number of entries currently held.
func (d *Dense) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.vectors)
}

// MemoryBytes approximates the in-memory size for monitoring: each entry's
// vector (4 bytes/float32) plus bookkeeping overhead for the UUID key and
// sequence number.
func (d *Dense) MemoryBytes() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	const perEntryOverhead = 16 /* uuid */ + 8 /* seq */ + 24 /* slice header */
	return int64(len(d.vectors)) * (int64(d.dim)*4 + perEntryOverhead)
}

// DenseEntry is one persisted record of a Dense index: an id and its
// original (unquantized) vector, used by the file-based index persistence
// layer (§6.7).
type DenseEntry struct {
	ID     uuid.UUID
	Vector []float32
}

// Entries returns a snapshot of every entry currently held, in insertion
// order, for persistence.
func (d *Dense) Entries() []DenseEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]DenseEntry, 0, len(d.order))
	for _, id := range d.order {
		v := d.vectors[id]
		cp := make([]float32, len(v))
		copy(cp, v)
		out = append(out, DenseEntry{ID: id, Vector: cp})
	}
	return out
}

// LoadEntries replaces the index's contents with entries, preserving their
// given order as the insertion order for deterministic tie-breaking on
// reload. It does not validate dimension against the index's expected dim —
// callers restoring from a manifest-matched file are expected to have
// already confirmed the dimension recorded in the manifest.
func (d *Dense) LoadEntries(entries []DenseEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = d.order[:0]
	d.vectors = make(map[uuid.UUID][]float32, len(entries))
	d.seq = make(map[uuid.UUID]int, len(entries))
	d.nextSeq = 0
	for _, e := range entries {
		cp := make([]float32, len(e.Vector))
		copy(cp, e.Vector)
		d.order = append(d.order, e.ID)
		d.vectors[e.ID] = cp
		d.seq[e.ID] = d.nextSeq
		d.nextSeq++
	}
}

// distanceFor computes a distance (smaller = closer) between query and vec
// using the given metric. Cosine-based metrics are converted to a distance
// as 1 - similarity so that ascending-distance ordering matches
// descending-similarity ordering.
func distanceFor(metric fingerprint.Metric, query, vec []float32) float64 {
	switch metric {
	case fingerprint.MetricHammingSign:
		return 1 - hammingSignSimilarity(query, vec)
	default:
		// Cosine (symmetric or asymmetric — the asymmetric discipline is
		// enforced by the similarity engine at the comparison-construction
		// boundary, not by this index; the index just needs a consistent
		// distance for ranking within one embedder's space).
		return 1 - CosineSimilarity(query, vec)
	}
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 for a zero-norm input (callers that need the
// zero-norm error per I2 should check Norm before calling this; the index's
// internal ranking use is tolerant since a zero vector simply ranks as
// similarity 0, i.e. distance 1).
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// hammingSignSimilarity maps Hamming distance over sign patterns to a
// similarity in [0,1]: 1 - (hamming/dim), per §4.5's E9 rule.
func hammingSignSimilarity(a, b []float32) float64 {
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
