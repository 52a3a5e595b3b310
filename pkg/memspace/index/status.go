package index

import "github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"

// Status reports an index's identity, health, and approximate size — the
// public shape returned by the index manager's status() operation (§4.4).
type Status struct {
	// Name identifies the index: an embedder name (for the per-embedder
	// dense indexes and the two inverted indexes), "matryoshka_128",
	// "purpose_vector", or "maxsim".
	Name        string
	Embedder    *fingerprint.Embedder // nil for the matryoshka, purpose and maxsim indexes
	Health      Health
	Count       int
	MemoryBytes int64
}
