package history

import (
	"sync"
	"time"

	"codeberg.org/mutker/perfmond/internal/metric"
)

// Store is a per-session bounded, time-ordered sample buffer. Two
// independent caps apply: a maximum sample count and a maximum sample age.
// Append evicts the oldest entries first when either cap is exceeded; age
// pruning otherwise runs on a schedule via Prune, not on every append.
type Store struct {
	mu        sync.RWMutex
	samples   []*metric.Sample
	maxPoints int
	retention time.Duration
}

func NewStore(maxPoints int, retention time.Duration) *Store {
	return &Store{
		samples:   make([]*metric.Sample, 0, maxPoints),
		maxPoints: maxPoints,
		retention: retention,
	}
}

// Append adds a sample, evicting the oldest entries beyond the count cap.
// Samples arrive from the sampling loop in non-decreasing timestamp order.
func (s *Store) Append(sample *metric.Sample) {
	if sample == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample)
	if len(s.samples) > s.maxPoints {
		over := len(s.samples) - s.maxPoints
		s.samples = append(s.samples[:0:0], s.samples[over:]...)
	}
}

// Query returns the samples with timestamp >= now-window in chronological
// order. The result is never nil and is safe for the caller to retain.
func (s *Store) Query(now time.Time, window time.Duration) []*metric.Sample {
	cutoff := now.Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*metric.Sample, 0, len(s.samples))
	for _, sample := range s.samples {
		if !sample.Timestamp().Before(cutoff) {
			out = append(out, sample)
		}
	}

	return out
}

// Snapshot returns a copy of the full buffer in chronological order.
func (s *Store) Snapshot() []*metric.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*metric.Sample, len(s.samples))
	copy(out, s.samples)

	return out
}

// Prune drops samples older than the retention horizon and returns how many
// were evicted.
func (s *Store) Prune(now time.Time) int {
	cutoff := now.Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	keep := 0
	for keep < len(s.samples) && s.samples[keep].Timestamp().Before(cutoff) {
		keep++
	}
	if keep == 0 {
		return 0
	}

	s.samples = append(s.samples[:0:0], s.samples[keep:]...)

	return keep
}

// Len returns the number of retained samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.samples)
}

// Clear drops all samples.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = s.samples[:0]
}
