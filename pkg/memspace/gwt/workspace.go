package gwt

import (
	"sync"

	"github.com/google/uuid"
)

// Candidate is one memory competing for workspace broadcast: its
// integration level r, an importance weight, and an alignment score
// (e.g. purpose-vector cosine to the current session intent).
type Candidate struct {
	ID         uuid.UUID
	R          float64
	Importance float64
	Alignment  float64
}

// score computes the winner-take-all scoring function: the product of
// integration and importance, plus a bonus proportional to alignment. Both
// terms are documented in §4.9 as "product of r and importance with an
// alignment bonus"; the 0.5 alignment weight below is this implementation's
// choice of bonus magnitude, kept small enough that alignment tie-breaks
// rather than dominates the r×importance term.
func (c Candidate) score() float64 {
	return c.R*c.Importance + 0.5*c.Alignment
}

// Workspace holds the currently broadcast winning memory, if any, selected
// by winner-take-all competition among candidates.
type Workspace struct {
	mu     sync.RWMutex
	winner *Candidate
}

// NewWorkspace constructs an empty workspace with no current winner.
func NewWorkspace() *Workspace { return &Workspace{} }

// SelectWinningMemory runs winner-take-all selection over candidates,
// broadcasts the highest-scoring one (ties broken by input order), and
// returns its id. Returns (uuid.Nil, false) for an empty candidate list,
// leaving any prior winner in place (an empty round is not itself a
// broadcast).
func (w *Workspace) SelectWinningMemory(candidates []Candidate) (uuid.UUID, bool) {
	if len(candidates) == 0 {
		return uuid.Nil, false
	}
	best := candidates[0]
	bestScore := best.score()
	for _, c := range candidates[1:] {
		if s := c.score(); s > bestScore {
			best = c
			bestScore = s
		}
	}

	w.mu.Lock()
	w.winner = &best
	w.mu.Unlock()

	return best.ID, true
}

// CurrentWinner returns the most recently broadcast candidate, if any.
func (w *Workspace) CurrentWinner() (Candidate, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.winner == nil {
		return Candidate{}, false
	}
	return *w.winner, true
}

// Clear resets the workspace to empty, e.g. on a workspace_empty event
// where no candidate currently qualifies.
func (w *Workspace) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.winner = nil
}
