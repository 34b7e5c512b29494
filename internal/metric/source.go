package metric

import (
	"sync"
	"time"

	"codeberg.org/mutker/perfmond/internal/logger"
)

// Source supplies raw metric readings. Implementations are provided by the
// surrounding application and must tolerate being called from the sampling
// goroutine at the configured cadence.
type Source interface {
	Collect() (*Sample, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func() (*Sample, error)

func (f SourceFunc) Collect() (*Sample, error) {
	return f()
}

// FallbackSource wraps a Source and degrades gracefully when it fails:
// a collection error yields the last-known readings with zeroed custom
// metrics, never a nil sample.
type FallbackSource struct {
	inner Source
	mu    sync.Mutex
	last  *Sample
}

func NewFallbackSource(inner Source) *FallbackSource {
	return &FallbackSource{inner: inner}
}

func (s *FallbackSource) Collect() (*Sample, error) {
	sample, err := s.inner.Collect()
	if err == nil && sample != nil {
		s.mu.Lock()
		s.last = sample
		s.mu.Unlock()

		return sample, nil
	}

	if err != nil {
		logger.Warn().Err(err).Msg("metric source failed, using last-known values")
	}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil {
		return NewSample(time.Now(), nil, nil), nil
	}

	return NewSample(time.Now(), last.Values(), nil), nil
}
