package threshold

import (
	"sync"

	"codeberg.org/mutker/perfmond/internal/logger"
	"codeberg.org/mutker/perfmond/internal/metric"
)

// Source exposes the current threshold set and accepts validated updates.
// The monitoring engine depends only on this interface.
type Source interface {
	Current() Set
	ValidatePerformance(sample *metric.Sample) Result
	UpdateThresholds(set Set) error
}

// Manager is the default Source. An invalid update is rejected and the
// previous valid set remains active. Safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	set       Set
	evaluator *Evaluator
}

// NewManager returns a Manager seeded with the given set, or an error when
// the set does not validate.
func NewManager(set Set) (*Manager, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	return &Manager{
		set:       set.Clone(),
		evaluator: NewEvaluator(),
	}, nil
}

// Current returns a copy of the active threshold set.
func (m *Manager) Current() Set {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.set.Clone()
}

// ValidatePerformance evaluates a sample against the active set using the
// manager's own escalation state.
func (m *Manager) ValidatePerformance(sample *metric.Sample) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.evaluator.Evaluate(sample, m.set)
}

// UpdateThresholds swaps in a new set after validation. Escalation streaks
// survive the swap so an ongoing degradation keeps its history.
func (m *Manager) UpdateThresholds(set Set) error {
	if err := set.Validate(); err != nil {
		logger.Warn().Err(err).Msg("rejected threshold update, keeping previous set")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set.Version = m.set.Version + 1
	m.set = set.Clone()
	logger.Info().Int("version", m.set.Version).Msg("threshold set updated")

	return nil
}
