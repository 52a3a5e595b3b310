package graphlink

import (
	"sort"
	"sync"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/google/uuid"
)

// EmbedderEdge is one neighbor relationship within a single embedder's
// K-NN graph: node -> target at the given similarity.
type EmbedderEdge struct {
	Source     uuid.UUID
	Target     uuid.UUID
	Embedder   fingerprint.Embedder
	Similarity float64
}

// KnnGraph holds, for a single embedder, the k nearest neighbors of every
// node seen so far. Inserting past capacity evicts the lowest-similarity
// neighbor, mirroring a bounded max-heap per node.
type KnnGraph struct {
	embedder fingerprint.Embedder
	k        int

	mu        sync.RWMutex
	adjacency map[uuid.UUID][]EmbedderEdge
	edgeCount int
}

// NewKnnGraph constructs an empty K-NN graph for the given embedder and
// per-node neighbor capacity k. Temporal embedders are rejected (AP-60): a
// K-NN graph keyed by a temporal embedder would let temporal similarity
// drive edge-type inference, which is forbidden.
func NewKnnGraph(e fingerprint.Embedder, k int) (*KnnGraph, error) {
	if e.IsTemporal() {
		return nil, newEdgeError(ErrTemporalEmbedderViolation,
			"AP-60 VIOLATION - a K-NN graph keyed by temporal embedder %s would drive edge-type inference", e.Name())
	}
	return &KnnGraph{embedder: e, k: k, adjacency: make(map[uuid.UUID][]EmbedderEdge)}, nil
}

// Embedder returns the embedder this graph is keyed by.
func (g *KnnGraph) Embedder() fingerprint.Embedder { return g.embedder }

// AddEdge inserts or updates a neighbor relationship, evicting the
// lowest-similarity neighbor if the node is already at capacity and the new
// edge scores higher.
func (g *KnnGraph) AddEdge(e EmbedderEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	neighbors := g.adjacency[e.Source]
	for i, existing := range neighbors {
		if existing.Target == e.Target {
			if e.Similarity > existing.Similarity {
				neighbors[i] = e
			}
			g.adjacency[e.Source] = neighbors
			return
		}
	}

	if len(neighbors) < g.k {
		g.adjacency[e.Source] = append(neighbors, e)
		g.edgeCount++
		return
	}

	minIdx, minSim := 0, neighbors[0].Similarity
	for i, n := range neighbors {
		if n.Similarity < minSim {
			minIdx, minSim = i, n.Similarity
		}
	}
	if e.Similarity > minSim {
		neighbors[minIdx] = e
		g.adjacency[e.Source] = neighbors
	}
}

// Neighbors returns node's neighbors sorted descending by similarity.
func (g *KnnGraph) Neighbors(node uuid.UUID) []EmbedderEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	src := g.adjacency[node]
	out := make([]EmbedderEdge, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

// RemoveNode deletes node and its neighbor list, returning whether it
// existed.
func (g *KnnGraph) RemoveNode(node uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	edges, ok := g.adjacency[node]
	if !ok {
		return false
	}
	g.edgeCount -= len(edges)
	delete(g.adjacency, node)
	return true
}

// NodeCount returns the number of nodes with at least one neighbor.
func (g *KnnGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adjacency)
}

// EdgeCount returns the total number of neighbor edges across all nodes.
func (g *KnnGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeCount
}
