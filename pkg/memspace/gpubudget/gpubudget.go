// Package gpubudget tracks the engine's process-wide GPU memory ceiling
// (§6.6): a fixed byte budget split across named reservations (embedder
// weights, activations, working buffers, held-back headroom), with
// allocation failing loudly rather than silently oversubscribing the
// device. Reservations are named byte allocations kept against a running
// total, each of which can be released individually.
package gpubudget

import (
	"sync"

	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

// Default recommended reservation split (§6.6), in bytes.
const (
	DefaultTotalBytes      uint64 = 32 << 30 // 32 GiB
	DefaultWeightsBytes    uint64 = 16 << 30 // 16 GiB
	DefaultActivationBytes uint64 = 8 << 30  // 8 GiB
	DefaultWorkingBytes    uint64 = 6 << 30  // 6 GiB
	DefaultReservedBytes   uint64 = 2 << 30  // 2 GiB
)

// Recommended reservation names for the default split.
const (
	ReservationWeights    = "weights"
	ReservationActivation = "activations"
	ReservationWorking    = "working"
	ReservationReserved   = "reserved"
)

// Tracker is a process-wide named-allocation map guarded by a mutex,
// enforcing a hard ceiling on the sum of all live allocations.
type Tracker struct {
	mu         sync.Mutex
	ceiling    uint64
	allocated  map[string]uint64
	totalBytes uint64
}

// NewTracker constructs a Tracker with the given hard ceiling in bytes.
func NewTracker(ceilingBytes uint64) *Tracker {
	return &Tracker{ceiling: ceilingBytes, allocated: make(map[string]uint64)}
}

// NewDefaultTracker constructs a Tracker at DefaultTotalBytes and
// pre-allocates the four recommended reservations, matching §6.6's
// suggested default split. The caller may still Deallocate and
// re-Allocate individual reservations at runtime.
func NewDefaultTracker() (*Tracker, error) {
	t := NewTracker(DefaultTotalBytes)
	for name, size := range map[string]uint64{
		ReservationWeights:    DefaultWeightsBytes,
		ReservationActivation: DefaultActivationBytes,
		ReservationWorking:    DefaultWorkingBytes,
		ReservationReserved:   DefaultReservedBytes,
	} {
		if err := t.Allocate(name, size); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Allocate reserves bytes under name. Allocating an already-present name
// replaces its prior reservation (the caller is expected to Deallocate
// first if that's not wanted); Allocate itself treats re-allocation as
// resizing that reservation. It fails if the new total would exceed the
// ceiling.
func (t *Tracker) Allocate(name string, bytes uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prospective := t.totalBytes - t.allocated[name] + bytes
	if prospective > t.ceiling {
		return memerr.New(memerr.KindStorage, "gpubudget.Allocate",
			name+": would exceed ceiling")
	}
	t.totalBytes = prospective
	t.allocated[name] = bytes
	return nil
}

// Deallocate releases the reservation under name, freeing its bytes back
// to the ceiling. It is a no-op if name was never allocated.
func (t *Tracker) Deallocate(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalBytes -= t.allocated[name]
	delete(t.allocated, name)
}

// Stats is a point-in-time snapshot of the tracker's allocation state.
type Stats struct {
	Ceiling      uint64
	Allocated    uint64
	Available    uint64
	Utilization  float64
	Reservations map[string]uint64
}

// Stats returns a snapshot of the current allocation state. The returned
// Reservations map is a copy and safe to mutate.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	reservations := make(map[string]uint64, len(t.allocated))
	for name, bytes := range t.allocated {
		reservations[name] = bytes
	}
	var utilization float64
	if t.ceiling > 0 {
		utilization = float64(t.totalBytes) / float64(t.ceiling)
	}
	return Stats{
		Ceiling:      t.ceiling,
		Allocated:    t.totalBytes,
		Available:    t.ceiling - t.totalBytes,
		Utilization:  utilization,
		Reservations: reservations,
	}
}

// Get returns the byte count currently reserved under name.
func (t *Tracker) Get(name string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bytes, ok := t.allocated[name]
	return bytes, ok
}

// Resize changes the ceiling. It does not retroactively shrink existing reservations; a
// shrink below the current total is accepted (future Allocate calls will
// then fail until usage drops) rather than forcibly evicting live
// reservations.
func (t *Tracker) Resize(newCeiling uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ceiling = newCeiling
}
