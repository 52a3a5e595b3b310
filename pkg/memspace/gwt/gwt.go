package gwt

import (
	"time"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/google/uuid"
)

// System orchestrates the full consciousness loop: the Kuramoto network
// supplying I(t), the calculator folding in externally-supplied R(t) and
// the purpose vector's D(t), the hysteresis-latched state machine, and the
// winner-take-all workspace.
type System struct {
	Kuramoto     *KuramotoNetwork
	Calculator   *ConsciousnessCalculator
	StateMachine *StateMachine
	Workspace    *Workspace
}

// New constructs a system with a default-sized Kuramoto network (N=8,
// K=2.0) and fresh state machine/workspace.
func New() *System {
	return &System{
		Kuramoto:     NewKuramotoNetwork(DefaultN, DefaultK),
		Calculator:   NewConsciousnessCalculator(),
		StateMachine: NewStateMachine(),
		Workspace:    NewWorkspace(),
	}
}

// StepKuramoto advances the oscillator network by elapsed real time, using
// DefaultDt as the integration step and a minimum of one step.
func (s *System) StepKuramoto(elapsed time.Duration) {
	s.Kuramoto.StepElapsed(elapsed.Seconds(), DefaultDt)
}

// KuramotoR returns the network's current order parameter.
func (s *System) KuramotoR() float64 { return s.Kuramoto.OrderParameter() }

// UpdateConsciousness computes C(t) from the given integration value,
// externally supplied meta-accuracy and purpose vector, feeds it into the
// state machine, and returns the resulting consciousness level and state.
func (s *System) UpdateConsciousness(kuramotoR, metaAccuracy float64, pv fingerprint.PurposeVector) (float64, ConsciousnessState, error) {
	c, err := s.Calculator.Compute(kuramotoR, metaAccuracy, pv)
	if err != nil {
		return 0, s.StateMachine.CurrentState(), err
	}
	state := s.StateMachine.Update(c)
	return c, state, nil
}

// UpdateConsciousnessAuto is UpdateConsciousness using the network's own
// current order parameter as I(t), sparing the caller from fetching it
// separately.
func (s *System) UpdateConsciousnessAuto(metaAccuracy float64, pv fingerprint.PurposeVector) (float64, ConsciousnessState, error) {
	return s.UpdateConsciousness(s.KuramotoR(), metaAccuracy, pv)
}

// SelectWorkspaceMemory runs winner-take-all selection over candidates and
// broadcasts the winner.
func (s *System) SelectWorkspaceMemory(candidates []Candidate) (uuid.UUID, bool) {
	return s.Workspace.SelectWinningMemory(candidates)
}
