package monitor

import (
	"sync"
	"time"

	"codeberg.org/mutker/perfmond/internal/analysis"
	"codeberg.org/mutker/perfmond/internal/history"
	"codeberg.org/mutker/perfmond/internal/metric"
	"codeberg.org/mutker/perfmond/internal/threshold"
)

// Status is a session lifecycle state.
type Status string

const (
	// StatusActive sessions collect samples on every scheduler tick.
	StatusActive Status = "active"
	// StatusPaused sessions retain history but skip collection.
	StatusPaused Status = "paused"
	// StatusEnded is terminal; history stays queryable until disposal.
	StatusEnded Status = "ended"
)

// session wraps one monitoring run. All mutable state is guarded by mu;
// the critical sections are short and never block on I/O.
type session struct {
	id        string
	createdAt time.Time

	mu        sync.Mutex
	status    Status
	store     *history.Store
	evaluator *threshold.Evaluator

	stats  analysis.Statistics
	trends analysis.TrendResult

	totalSamples    uint64
	violatedSamples uint64
	totalViolations uint64
}

func newSession(id string, maxPoints int, retention time.Duration, now time.Time) *session {
	return &session{
		id:        id,
		createdAt: now,
		status:    StatusActive,
		store:     history.NewStore(maxPoints, retention),
		evaluator: threshold.NewEvaluator(),
		trends: analysis.TrendResult{
			PerMetric:       map[metric.Kind]analysis.MetricTrend{},
			OverallTrend:    analysis.Stable,
			Recommendations: []string{},
		},
	}
}

func (s *session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// record evaluates and appends one sample, updating violation counters.
// Only Active and Paused sessions accept samples; the caller decides which
// states are eligible (scheduled ticks require Active, force-sampling also
// accepts Paused).
func (s *session) record(sample *metric.Sample, set threshold.Set) threshold.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.evaluator.Evaluate(sample, set)

	// An invalid (empty) sample carries no readings; storing it or counting
	// it as violation-free would inflate the violation-free ratio.
	if !result.IsValid && len(result.Violations) == 0 {
		return result
	}

	s.store.Append(sample)
	s.totalSamples++
	if len(result.Violations) > 0 {
		s.violatedSamples++
		s.totalViolations += uint64(len(result.Violations))
	}

	return result
}

func (s *session) pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusEnded {
		return false
	}
	s.status = StatusPaused

	return true
}

func (s *session) resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusEnded {
		return false
	}
	s.status = StatusActive

	return true
}

func (s *session) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusEnded {
		return false
	}
	s.status = StatusEnded

	return true
}

// violationFreeRatio is the fraction of evaluated samples without violations.
func (s *session) violationFreeRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalSamples == 0 {
		return 1.0
	}

	return float64(s.totalSamples-s.violatedSamples) / float64(s.totalSamples)
}

// recompute refreshes the cached statistics and trend analysis from a
// snapshot of history taken at invocation time.
func (s *session) recompute(now time.Time, trendWindow time.Duration) {
	samples := s.store.Snapshot()
	ratio := s.violationFreeRatio()

	stats := analysis.ComputeStatistics(samples, ratio, now)
	trends := analysis.AnalyzeTrends(samples, trendWindow)

	s.mu.Lock()
	s.stats = stats
	s.trends = trends
	s.mu.Unlock()
}

func (s *session) lastStatistics() analysis.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

func (s *session) lastTrends() analysis.TrendResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.trends
}

func (s *session) counters() (totalSamples, totalViolations uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalSamples, s.totalViolations
}
