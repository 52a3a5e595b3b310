// Package indexmanager implements the multi-space index manager (C5): the
// single owner of every per-embedder index the engine maintains — the ten
// real dense indexes, the Matryoshka-128 truncated index, the PurposeVector
// index, the two inverted sparse indexes, and the MaxSim token index — and
// the only component that fans a single fingerprint insertion out across all
// of them (§4.4).
package indexmanager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/index"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MatryoshkaName and PurposeVectorName identify the two derived dense
// indexes that have no corresponding fingerprint.Embedder value.
const (
	MatryoshkaName    = "matryoshka_128"
	PurposeVectorName = "purpose_vector"
)

// denseEmbedders lists the ten embedders that get a plain dense index: every
// embedder except the two sparse ones (E6, E13) and the token-dense one
// (E12), which each get their own index type below.
func denseEmbedders() []fingerprint.Embedder {
	out := make([]fingerprint.Embedder, 0, 10)
	for _, e := range fingerprint.AllEmbedders() {
		switch e.DataKind() {
		case fingerprint.KindDense:
			out = append(out, e)
		}
	}
	return out
}

// sparseEmbedders lists E6 and E13 — each gets its own Inverted instance
// (I5: they must never share one).
func sparseEmbedders() []fingerprint.Embedder {
	out := make([]fingerprint.Embedder, 0, 2)
	for _, e := range fingerprint.AllEmbedders() {
		if e.DataKind() == fingerprint.KindSparse {
			out = append(out, e)
		}
	}
	return out
}

// Manager owns every index the engine maintains and is the sole entry point
// for mutating or searching them. Each underlying index keeps its own
// sync.RWMutex (§5); Manager itself holds no lock around searches and only a
// light one to guard its own maps (which never change shape after
// New).
type Manager struct {
	dense   map[fingerprint.Embedder]*index.Dense
	sparse  map[fingerprint.Embedder]*index.Inverted
	maxsim  *index.MaxSim
	matry   *index.Dense
	purpose *index.Dense

	mu sync.RWMutex
}

// New constructs and initializes a Manager with all twelve dense-style
// indexes (ten per-embedder plus Matryoshka-128 and PurposeVector), the two
// inverted indexes, and the MaxSim index already allocated. Construction is
// idempotent in the sense that it always yields a complete, empty index set
// — there is no partial-initialization state (§4.4).
func New() *Manager {
	m := &Manager{
		dense:  make(map[fingerprint.Embedder]*index.Dense),
		sparse: make(map[fingerprint.Embedder]*index.Inverted),
	}
	for _, e := range denseEmbedders() {
		m.dense[e] = index.NewDense(e)
	}
	for _, e := range sparseEmbedders() {
		m.sparse[e] = index.NewInverted(e)
	}
	m.maxsim = index.NewMaxSim()
	m.matry = index.NewDenseRaw(MatryoshkaName, fingerprint.MatryoshkaDim)
	m.purpose = index.NewDenseRaw(PurposeVectorName, fingerprint.PurposeVectorDim)
	return m
}

// AddFingerprint inserts a fully-validated Fingerprint and its PurposeVector
// into every underlying index in parallel, using one goroutine per index so
// that a slow index never blocks the others (§4.4's fan-out requirement).
// Every insert runs to completion; the first error encountered is
// returned. Already-applied inserts on other indexes are not rolled back —
// callers that need atomicity across indexes must call Remove(id) on error
// to clean up.
func (m *Manager) AddFingerprint(ctx context.Context, id uuid.UUID, fp *fingerprint.Fingerprint, pv fingerprint.PurposeVector) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)

	for e, ix := range m.dense {
		e, ix := e, ix
		g.Go(func() error {
			v, ok := fp.Dense(e)
			if !ok {
				return memerr.New(memerr.KindDimension, "indexmanager.AddFingerprint", e.Name()+": missing dense embedding")
			}
			return ix.Insert(id, v)
		})
	}
	for e, ix := range m.sparse {
		e, ix := e, ix
		g.Go(func() error {
			sv, ok := fp.Sparse(e)
			if !ok {
				return memerr.New(memerr.KindDimension, "indexmanager.AddFingerprint", e.Name()+": missing sparse embedding")
			}
			return ix.Insert(id, sv)
		})
	}
	g.Go(func() error {
		tv, ok := fp.Tokens(fingerprint.LateInteraction)
		if !ok {
			return memerr.New(memerr.KindDimension, "indexmanager.AddFingerprint", "Late-Interaction: missing token embedding")
		}
		return m.maxsim.Insert(id, tv.Tokens)
	})
	g.Go(func() error {
		v, ok := fp.Dense(fingerprint.Semantic)
		if !ok {
			return memerr.New(memerr.KindDimension, "indexmanager.AddFingerprint", "Semantic: missing dense embedding for matryoshka truncation")
		}
		if len(v) < fingerprint.MatryoshkaDim {
			return memerr.DimensionMismatch("indexmanager.AddFingerprint:matryoshka", fingerprint.MatryoshkaDim, len(v))
		}
		return m.matry.Insert(id, v[:fingerprint.MatryoshkaDim])
	})
	g.Go(func() error {
		return m.purpose.Insert(id, pv[:])
	})

	return g.Wait()
}

// Remove deletes id from every index, reporting whether it was present in at
// least one of them.
func (m *Manager) Remove(id uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := false
	for _, ix := range m.dense {
		if ix.Remove(id) {
			found = true
		}
	}
	for _, ix := range m.sparse {
		if ix.Remove(id) {
			found = true
		}
	}
	if m.maxsim.Remove(id) {
		found = true
	}
	if m.matry.Remove(id) {
		found = true
	}
	if m.purpose.Remove(id) {
		found = true
	}
	return found
}

// Search runs a k-NN search against a single embedder's dense index. It is
// an error to call Search for a sparse or token-dense embedder; use
// SearchSparse or SearchMaxSim instead.
func (m *Manager) Search(ctx context.Context, e fingerprint.Embedder, query []float32, k int) ([]index.ScoredID, error) {
	m.mu.RLock()
	ix, ok := m.dense[e]
	m.mu.RUnlock()
	if !ok {
		return nil, memerr.New(memerr.KindDimension, "indexmanager.Search", e.Name()+": not a dense-indexed embedder")
	}
	return ix.Search(ctx, query, k)
}

// SearchMatryoshka runs a k-NN search against the Matryoshka-128 truncated
// E1 index.
func (m *Manager) SearchMatryoshka(ctx context.Context, query []float32, k int) ([]index.ScoredID, error) {
	return m.matry.Search(ctx, query, k)
}

// SearchPurpose runs a k-NN search against the 13-D PurposeVector index.
func (m *Manager) SearchPurpose(ctx context.Context, query fingerprint.PurposeVector, k int) ([]index.ScoredID, error) {
	return m.purpose.Search(ctx, query[:], k)
}

// SearchSparse runs a sparse dot-product search against E6 or E13's inverted
// index. Calling it for any other embedder is an error.
func (m *Manager) SearchSparse(ctx context.Context, e fingerprint.Embedder, query fingerprint.SparseVector, k int) ([]index.ScoredID, error) {
	m.mu.RLock()
	ix, ok := m.sparse[e]
	m.mu.RUnlock()
	if !ok {
		return nil, memerr.New(memerr.KindDimension, "indexmanager.SearchSparse", e.Name()+": not a sparse-indexed embedder")
	}
	return ix.Search(ctx, query, k)
}

// SearchMaxSim runs a MaxSim search against the E12 token index.
func (m *Manager) SearchMaxSim(ctx context.Context, queryTokens [][]float32, k int) ([]index.ScoredID, error) {
	return m.maxsim.Search(ctx, queryTokens, k)
}

// Status reports the health, size, and approximate memory footprint of
// every index the manager owns, sorted by index name.
func (m *Manager) Status() []index.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]index.Status, 0, 16)
	for _, e := range denseEmbedders() {
		ix := m.dense[e]
		ePtr := e
		out = append(out, index.Status{
			Name:        ix.Name(),
			Embedder:    &ePtr,
			Health:      ix.Health(),
			Count:       ix.Len(),
			MemoryBytes: ix.MemoryBytes(),
		})
	}
	out = append(out, index.Status{
		Name:        MatryoshkaName,
		Health:      m.matry.Health(),
		Count:       m.matry.Len(),
		MemoryBytes: m.matry.MemoryBytes(),
	})
	out = append(out, index.Status{
		Name:        PurposeVectorName,
		Health:      m.purpose.Health(),
		Count:       m.purpose.Len(),
		MemoryBytes: m.purpose.MemoryBytes(),
	})
	for _, e := range sparseEmbedders() {
		ix := m.sparse[e]
		ePtr := e
		out = append(out, index.Status{
			Name:        ePtr.Name(),
			Embedder:    &ePtr,
			Health:      ix.Health(),
			Count:       ix.Len(),
			MemoryBytes: ix.MemoryBytes(),
		})
	}
	out = append(out, index.Status{
		Name:        "maxsim",
		Health:      m.maxsim.Health(),
		Count:       m.maxsim.Len(),
		MemoryBytes: m.maxsim.MemoryBytes(),
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DenseIndex returns the underlying Dense index for e, for callers (the
// persistence layer, diagnostics) that need direct access. It panics if e is
// not a dense-indexed embedder — a programming error, not a runtime
// condition.
func (m *Manager) DenseIndex(e fingerprint.Embedder) *index.Dense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ix, ok := m.dense[e]
	if !ok {
		panic(fmt.Sprintf("indexmanager: %s is not a dense-indexed embedder", e.Name()))
	}
	return ix
}

// MatryoshkaIndex returns the Matryoshka-128 index for persistence/diagnostics.
func (m *Manager) MatryoshkaIndex() *index.Dense { return m.matry }

// PurposeIndex returns the PurposeVector index for persistence/diagnostics.
func (m *Manager) PurposeIndex() *index.Dense { return m.purpose }

// SparseIndex returns the underlying Inverted index for e.
func (m *Manager) SparseIndex(e fingerprint.Embedder) *index.Inverted {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ix, ok := m.sparse[e]
	if !ok {
		panic(fmt.Sprintf("indexmanager: %s is not a sparse-indexed embedder", e.Name()))
	}
	return ix
}

// MaxSimIndex returns the MaxSim index for persistence/diagnostics.
func (m *Manager) MaxSimIndex() *index.MaxSim { return m.maxsim }
