package index

import (
	"context"
	"sort"
	"sync"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
	"github.com/google/uuid"
)

// posting is one entry in a term's posting list.
type posting struct {
	id  uuid.UUID
	val float32
	seq int
}

// Inverted is the sparse per-embedder index used by E6 and E13. It is keyed
// by term id (a u16, per §6.3's fixed-width key discipline) with a posting
// list of (id, value) pairs per term. E6 and E13 must never share an
// Inverted instance (I5) — the index manager enforces this by constructing
// two independent instances.
type Inverted struct {
	embedder fingerprint.Embedder
	vocab    int

	mu      sync.RWMutex
	health  Health
	postings map[uint16][]posting
	docs    map[uuid.UUID]fingerprint.SparseVector
	seq     map[uuid.UUID]int
	nextSeq int
}

// NewInverted constructs an empty inverted index for the given sparse
// embedder.
func NewInverted(e fingerprint.Embedder) *Inverted {
	return &Inverted{
		embedder: e,
		vocab:    e.Dim(),
		health:   HealthHealthy,
		postings: make(map[uint16][]posting),
		docs:     make(map[uuid.UUID]fingerprint.SparseVector),
		seq:      make(map[uuid.UUID]int),
	}
}

func (ix *Inverted) Health() Health {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.health
}

func (ix *Inverted) MarkFailed() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.health = HealthFailed
}

// Insert adds or replaces the posting for id under every term it carries,
// removing any stale postings from a previous insertion of the same id.
func (ix *Inverted) Insert(id uuid.UUID, sv fingerprint.SparseVector) error {
	for _, idx := range sv.Indices {
		if int(idx) >= ix.vocab {
			return memerr.DimensionMismatch("index.Inverted.Insert", ix.vocab, int(idx)+1)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.health == HealthFailed {
		return memerr.New(memerr.KindIndexFailed, "index.Inverted.Insert", ix.embedder.Name())
	}

	if old, exists := ix.docs[id]; exists {
		for _, idx := range old.Indices {
			ix.removePostingLocked(idx, id)
		}
	} else {
		ix.seq[id] = ix.nextSeq
		ix.nextSeq++
	}

	s := ix.seq[id]
	for i, idx := range sv.Indices {
		ix.postings[idx] = append(ix.postings[idx], posting{id: id, val: sv.Values[i], seq: s})
	}
	ix.docs[id] = sv
	return nil
}

func (ix *Inverted) removePostingLocked(term uint16, id uuid.UUID) {
	list := ix.postings[term]
	for i, p := range list {
		if p.id == id {
			ix.postings[term] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(ix.postings[term]) == 0 {
		delete(ix.postings, term)
	}
}

// Remove deletes id and reports whether it was present.
func (ix *Inverted) Remove(id uuid.UUID) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	old, ok := ix.docs[id]
	if !ok {
		return false
	}
	for _, idx := range old.Indices {
		ix.removePostingLocked(idx, id)
	}
	delete(ix.docs, id)
	delete(ix.seq, id)
	return true
}

// Search performs a sparse dot-product top-k search over the intersected
// term indices of query. An all-zero (empty) query returns an empty list,
// never an error (boundary behavior, §8). If ctx's deadline elapses before
// the ranked list is assembled, the partial result is discarded and a
// KindDeadline error is returned instead.
func (ix *Inverted) Search(ctx context.Context, query fingerprint.SparseVector, k int) ([]ScoredID, error) {
	for _, idx := range query.Indices {
		if int(idx) >= ix.vocab {
			return nil, memerr.DimensionMismatch("index.Inverted.Search", ix.vocab, int(idx)+1)
		}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.health != HealthHealthy {
		return nil, memerr.New(memerr.KindIndexNotInitialized, "index.Inverted.Search", ix.embedder.Name())
	}
	if k == 0 || len(query.Indices) == 0 {
		return []ScoredID{}, nil
	}

	scores := make(map[uuid.UUID]float64)
	for i, term := range query.Indices {
		if err := ctx.Err(); err != nil {
			return nil, memerr.New(memerr.KindDeadline, "index.Inverted.Search", ix.embedder.Name()+": "+err.Error())
		}
		qval := float64(query.Values[i])
		for _, p := range ix.postings[term] {
			scores[p.id] += qval * float64(p.val)
		}
	}

	type scored struct {
		id   uuid.UUID
		dot  float64
		seq  int
	}
	results := make([]scored, 0, len(scores))
	for id, dot := range scores {
		results = append(results, scored{id: id, dot: dot, seq: ix.seq[id]})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].dot != results[j].dot {
			return results[i].dot > results[j].dot
		}
		return results[i].seq < results[j].seq
	})

	if k > len(results) {
		k = len(results)
	}
	if err := ctx.Err(); err != nil {
		return nil, memerr.New(memerr.KindDeadline, "index.Inverted.Search", ix.embedder.Name()+": "+err.Error())
	}
	out := make([]ScoredID, k)
	for i := 0; i < k; i++ {
		// Distance convention: the negated dot, so ascending distance still means
		// "more similar first", consistent with Dense.Search's contract.
		out[i] = ScoredID{ID: results[i].id, Distance: -results[i].dot}
	}
	return out, nil
}

// InvertedEntry is one persisted record of an Inverted index.
type InvertedEntry struct {
	ID     uuid.UUID
	Sparse fingerprint.SparseVector
}

// Entries returns a snapshot of every document currently held, for
// persistence. Order is not significant for an Inverted index (term
// postings are always re-derived from the docs map on load).
func (ix *Inverted) Entries() []InvertedEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]InvertedEntry, 0, len(ix.docs))
	for id, sv := range ix.docs {
		idxCp := make([]uint16, len(sv.Indices))
		copy(idxCp, sv.Indices)
		valCp := make([]float32, len(sv.Values))
		copy(valCp, sv.Values)
		out = append(out, InvertedEntry{ID: id, Sparse: fingerprint.SparseVector{Indices: idxCp, Values: valCp}})
	}
	return out
}

// LoadEntries replaces the index's contents with entries and rebuilds the
// term posting lists from scratch.
func (ix *Inverted) LoadEntries(entries []InvertedEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.postings = make(map[uint16][]posting)
	ix.docs = make(map[uuid.UUID]fingerprint.SparseVector, len(entries))
	ix.seq = make(map[uuid.UUID]int, len(entries))
	ix.nextSeq = 0
	for _, e := range entries {
		s := ix.nextSeq
		ix.nextSeq++
		ix.seq[e.ID] = s
		ix.docs[e.ID] = e.Sparse
		for i, idx := range e.Sparse.Indices {
			ix.postings[idx] = append(ix.postings[idx], posting{id: e.ID, val: e.Sparse.Values[i], seq: s})
		}
	}
}

// Len returns the number of documents currently held.
func (ix *Inverted) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// MemoryBytes approximates the in-memory size for monitoring.
func (ix *Inverted) MemoryBytes() int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var n int64
	for _, list := range ix.postings {
		n += int64(len(list)) * (16 + 4 + 8)
	}
	return n
}
