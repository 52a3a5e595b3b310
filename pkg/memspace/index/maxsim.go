package index

import (
	"context"
	"sort"
	"sync"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
	"github.com/google/uuid"
)

// MaxSim is the token-level index for E12 (late-interaction / ColBERT-style).
// For a query token set T_q and a document token set T_d the score is
// Σ_{t∈T_q} max_{u∈T_d} cos(t,u) (§4.3).
type MaxSim struct {
	dim int

	mu      sync.RWMutex
	health  Health
	order   []uuid.UUID
	docs    map[uuid.UUID][][]float32
	seq     map[uuid.UUID]int
	nextSeq int
}

// NewMaxSim constructs an empty MaxSim index for E12.
func NewMaxSim() *MaxSim {
	return &MaxSim{
		dim:    fingerprint.LateInteraction.Dim(),
		health: HealthHealthy,
		docs:   make(map[uuid.UUID][][]float32),
		seq:    make(map[uuid.UUID]int),
	}
}

func (m *MaxSim) Health() Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health
}

func (m *MaxSim) MarkFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health = HealthFailed
}

// Insert adds or replaces the token set for id.
func (m *MaxSim) Insert(id uuid.UUID, tokens [][]float32) error {
	for _, t := range tokens {
		if len(t) != m.dim {
			return memerr.DimensionMismatch("index.MaxSim.Insert", m.dim, len(t))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.health == HealthFailed {
		return memerr.New(memerr.KindIndexFailed, "index.MaxSim.Insert", fingerprint.LateInteraction.Name())
	}

	cp := make([][]float32, len(tokens))
	for i, t := range tokens {
		v := make([]float32, len(t))
		copy(v, t)
		cp[i] = v
	}

	if _, exists := m.docs[id]; !exists {
		m.order = append(m.order, id)
		m.seq[id] = m.nextSeq
		m.nextSeq++
	}
	m.docs[id] = cp
	return nil
}

// Remove deletes id and reports whether it was present.
func (m *MaxSim) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return false
	}
	delete(m.docs, id)
	delete(m.seq, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Score computes the MaxSim score between a query token set and a stored
// document's token set.
func Score(queryTokens, docTokens [][]float32) float64 {
	var total float64
	for _, qt := range queryTokens {
		best := -1.0
		for _, dt := range docTokens {
			if sim := CosineSimilarity(qt, dt); sim > best {
				best = sim
			}
		}
		if best > -1.0 {
			total += best
		}
	}
	return total
}

// Search returns the k documents with the highest MaxSim score against the
// query token set, descending by score with ties broken by insertion order.
// If ctx's deadline elapses before the ranked list is assembled, the
// partial result is discarded and a KindDeadline error is returned instead.
func (m *MaxSim) Search(ctx context.Context, queryTokens [][]float32, k int) ([]ScoredID, error) {
	for _, t := range queryTokens {
		if len(t) != m.dim {
			return nil, memerr.DimensionMismatch("index.MaxSim.Search", m.dim, len(t))
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.health != HealthHealthy {
		return nil, memerr.New(memerr.KindIndexNotInitialized, "index.MaxSim.Search", fingerprint.LateInteraction.Name())
	}
	if k == 0 || len(m.order) == 0 || len(queryTokens) == 0 {
		return []ScoredID{}, nil
	}

	type scored struct {
		id    uuid.UUID
		score float64
		seq   int
	}
	results := make([]scored, 0, len(m.order))
	for _, id := range m.order {
		if err := ctx.Err(); err != nil {
			return nil, memerr.New(memerr.KindDeadline, "index.MaxSim.Search", fingerprint.LateInteraction.Name()+": "+err.Error())
		}
		results = append(results, scored{id: id, score: Score(queryTokens, m.docs[id]), seq: m.seq[id]})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].seq < results[j].seq
	})

	if k > len(results) {
		k = len(results)
	}
	if err := ctx.Err(); err != nil {
		return nil, memerr.New(memerr.KindDeadline, "index.MaxSim.Search", fingerprint.LateInteraction.Name()+": "+err.Error())
	}
	out := make([]ScoredID, k)
	for i := 0; i < k; i++ {
		out[i] = ScoredID{ID: results[i].id, Distance: -results[i].score}
	}
	return out, nil
}

// MaxSimEntry is one persisted record of a MaxSim index.
type MaxSimEntry struct {
	ID     uuid.UUID
	Tokens [][]float32
}

// Entries returns a snapshot of every document's token set, in insertion
// order, for persistence.
func (m *MaxSim) Entries() []MaxSimEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MaxSimEntry, 0, len(m.order))
	for _, id := range m.order {
		toks := m.docs[id]
		cp := make([][]float32, len(toks))
		for i, t := range toks {
			v := make([]float32, len(t))
			copy(v, t)
			cp[i] = v
		}
		out = append(out, MaxSimEntry{ID: id, Tokens: cp})
	}
	return out
}

// LoadEntries replaces the index's contents with entries, preserving order.
func (m *MaxSim) LoadEntries(entries []MaxSimEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = m.order[:0]
	m.docs = make(map[uuid.UUID][][]float32, len(entries))
	m.seq = make(map[uuid.UUID]int, len(entries))
	m.nextSeq = 0
	for _, e := range entries {
		cp := make([][]float32, len(e.Tokens))
		for i, t := range e.Tokens {
			v := make([]float32, len(t))
			copy(v, t)
			cp[i] = v
		}
		m.order = append(m.order, e.ID)
		m.docs[e.ID] = cp
		m.seq[e.ID] = m.nextSeq
		m.nextSeq++
	}
}

// Len returns the number of documents currently held.
func (m *MaxSim) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// MemoryBytes approximates the in-memory size for monitoring.
func (m *MaxSim) MemoryBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, toks := range m.docs {
		n += int64(len(toks)) * int64(m.dim) * 4
	}
	return n
}
