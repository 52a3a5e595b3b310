package graphlink

import (
	"github.com/google/uuid"
)

// EdgeStore is the minimal read interface the ContradictionWalker needs:
// given a node, return its outgoing and incoming edges. The engine's full
// edge storage (backed by sqlite, per SPEC_FULL.md §6.3) implements this.
type EdgeStore interface {
	EdgesFrom(node uuid.UUID) []*Edge
	EdgesTo(node uuid.UUID) []*Edge
}

// ContradictionWalker performs a bounded-hop breadth-first walk over
// Contradicts edges, merged with a semantic candidate set supplied by the
// caller (typically E1 k-NN results), combining explicit contradiction
// structure with semantic proximity rather than relying on either signal
// alone.
type ContradictionWalker struct {
	Store   EdgeStore
	MaxHops int
}

// NewContradictionWalker constructs a walker with the given bounded hop
// count. A non-positive maxHops defaults to 2.
func NewContradictionWalker(store EdgeStore, maxHops int) *ContradictionWalker {
	if maxHops <= 0 {
		maxHops = 2
	}
	return &ContradictionWalker{Store: store, MaxHops: maxHops}
}

// Hit is one contradiction finding: the contradicting node, the hop distance
// at which it was discovered, and whether it was also present in the
// semantic candidate set (a corroborating signal, not a requirement).
type Hit struct {
	Node                 uuid.UUID
	Hops                 int
	SemanticCorroborated bool
}

// Walk performs the bounded BFS from start over Contradicts edges
// (following both directions, since a contradiction is symmetric in effect
// even though the edge itself may have been recorded in either direction)
// and merges in semanticCandidates as corroboration flags. Nodes reachable
// only via edges beyond MaxHops are not visited.
func (w *ContradictionWalker) Walk(start uuid.UUID, semanticCandidates map[uuid.UUID]bool) []Hit {
	visited := map[uuid.UUID]int{start: 0}
	queue := []uuid.UUID{start}
	var hits []Hit

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		hop := visited[node]
		if hop >= w.MaxHops {
			continue
		}

		for _, e := range w.neighborsVia(node, Contradicts) {
			other := e.Target
			if other == node {
				other = e.Source
			}
			if _, seen := visited[other]; seen {
				continue
			}
			visited[other] = hop + 1
			queue = append(queue, other)
			hits = append(hits, Hit{
				Node:                 other,
				Hops:                 hop + 1,
				SemanticCorroborated: semanticCandidates[other],
			})
		}
	}
	return hits
}

func (w *ContradictionWalker) neighborsVia(node uuid.UUID, t EdgeType) []*Edge {
	var out []*Edge
	for _, e := range w.Store.EdgesFrom(node) {
		if e.Type == t {
			out = append(out, e)
		}
	}
	for _, e := range w.Store.EdgesTo(node) {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
