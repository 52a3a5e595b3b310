package similarity

import (
	"sort"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
	"github.com/google/uuid"
)

// RankedList is one embedder's ranked candidate list, best-first, as
// produced by a single index search. RRF operates purely on rank position,
// not on the underlying score.
type RankedList struct {
	Embedder fingerprint.Embedder
	IDs      []uuid.UUID
}

// ReciprocalRankFusion fuses per-space ranked lists into a single score per
// id: score(id) = Σ_i w_i · 1/(k + rank_i(id)), where rank_i(id) is 1-based.
// An id absent from a list contributes 0 for that list. Under RequireAll,
// any empty list fails the fusion outright (§4.5).
func ReciprocalRankFusion(lists []RankedList, w fingerprint.WeightProfile, k int, policy MissingSpacePolicy) (map[uuid.UUID]float64, error) {
	if k <= 0 {
		k = DefaultRRFK
	}
	if policy == RequireAll {
		for _, l := range lists {
			if len(l.IDs) == 0 {
				return nil, memerr.New(memerr.KindInsufficientSpaces, "similarity.ReciprocalRankFusion",
					l.Embedder.Name()+": empty ranked list under require-all policy")
			}
		}
	}

	scores := make(map[uuid.UUID]float64)
	for _, l := range lists {
		wt := float64(w.Weight(l.Embedder))
		if wt == 0 {
			continue
		}
		for rank, id := range l.IDs {
			scores[id] += wt * (1.0 / float64(k+rank+1))
		}
	}
	return scores, nil
}

// TopK sorts a fused score map descending by score, breaking ties by id
// string order for determinism, and returns the top k ids.
func TopK(scores map[uuid.UUID]float64, k int) []uuid.UUID {
	type pair struct {
		id    uuid.UUID
		score float64
	}
	pairs := make([]pair, 0, len(scores))
	for id, s := range scores {
		pairs = append(pairs, pair{id, s})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].id.String() < pairs[j].id.String()
	})
	if k > len(pairs) {
		k = len(pairs)
	}
	out := make([]uuid.UUID, k)
	for i := 0; i < k; i++ {
		out[i] = pairs[i].id
	}
	return out
}

// StagedPipeline implements the four-stage fusion mode (§4.5): stage 1
// recalls candidates from SPLADE (E13), stage 2 reranks under a dense-heavy
// profile, stage 3 optionally reranks with E12 MaxSim, stage 4 applies
// purpose-vector affinity. Each stage narrows (or reorders) the candidate
// set. RecallFn and DenseRerankFn are always called and must be set; stages
// 3 and 4 are skipped when their function is nil.
type StagedPipeline struct {
	// RecallFn returns SPLADE-ranked candidate ids, best-first.
	RecallFn func(k int) ([]uuid.UUID, error)
	// DenseRerankFn rescoes a candidate set under a dense-heavy profile and
	// returns ids reordered best-first.
	DenseRerankFn func(candidates []uuid.UUID) ([]uuid.UUID, error)
	// MaxSimRerankFn optionally rescoes with E12 MaxSim; nil disables stage 3.
	MaxSimRerankFn func(candidates []uuid.UUID) ([]uuid.UUID, error)
	// PurposeAffinityFn optionally rescoes by purpose-vector affinity; nil
	// disables stage 4.
	PurposeAffinityFn func(candidates []uuid.UUID) ([]uuid.UUID, error)
}

// Run executes the pipeline, recalling recallK candidates and returning the
// final reordered list.
func (p StagedPipeline) Run(recallK int) ([]uuid.UUID, error) {
	candidates, err := p.RecallFn(recallK)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "similarity.StagedPipeline.Run", "recall stage", err)
	}
	candidates, err = p.DenseRerankFn(candidates)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "similarity.StagedPipeline.Run", "dense rerank stage", err)
	}
	if p.MaxSimRerankFn != nil {
		candidates, err = p.MaxSimRerankFn(candidates)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "similarity.StagedPipeline.Run", "maxsim rerank stage", err)
		}
	}
	if p.PurposeAffinityFn != nil {
		candidates, err = p.PurposeAffinityFn(candidates)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "similarity.StagedPipeline.Run", "purpose affinity stage", err)
		}
	}
	return candidates, nil
}
