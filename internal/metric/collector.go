package metric

import (
	"sync"
	"time"

	"codeberg.org/mutker/perfmond/internal/errors"
	"codeberg.org/mutker/perfmond/internal/logger"
)

// Collector is a pluggable custom metric collector. Initialize is called on
// registration and Cleanup on unregistration. Collect runs on the sampling
// path, so implementations must return promptly.
type Collector interface {
	Name() string
	Initialize() bool
	Collect() map[string]float64
	Cleanup()
}

// CollectorRegistry is an explicit registration table for custom collectors.
// Each collector runs under a timeout during collection so a stalled
// collector cannot stall the sampler.
type CollectorRegistry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
	timeout    time.Duration
}

func NewCollectorRegistry(timeout time.Duration) *CollectorRegistry {
	return &CollectorRegistry{
		collectors: make(map[string]Collector),
		timeout:    timeout,
	}
}

// Register initializes and adds a collector. A nil collector is ignored.
// Returns false when the collector declines initialization or the name is
// already taken.
func (r *CollectorRegistry) Register(c Collector) bool {
	if c == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collectors[c.Name()]; exists {
		logger.Warn().Str("collector", c.Name()).Msg("collector already registered")
		return false
	}

	if !c.Initialize() {
		logger.Warn().Str("collector", c.Name()).Msg("collector failed to initialize")
		return false
	}

	r.collectors[c.Name()] = c
	logger.Debug().Str("collector", c.Name()).Msg("collector registered")

	return true
}

// Unregister removes a collector and runs its Cleanup. Unknown names are a
// no-op.
func (r *CollectorRegistry) Unregister(name string) {
	r.mu.Lock()
	c, ok := r.collectors[name]
	if ok {
		delete(r.collectors, name)
	}
	r.mu.Unlock()

	if ok {
		c.Cleanup()
		logger.Debug().Str("collector", name).Msg("collector unregistered")
	}
}

// Collect gathers custom metrics from every registered collector. A collector
// that exceeds the timeout contributes nothing to this sample; its goroutine
// result is discarded when it eventually returns.
func (r *CollectorRegistry) Collect() map[string]float64 {
	r.mu.RLock()
	collectors := make([]Collector, 0, len(r.collectors))
	for _, c := range r.collectors {
		collectors = append(collectors, c)
	}
	r.mu.RUnlock()

	errFactory := errors.New()
	merged := make(map[string]float64)
	for _, c := range collectors {
		values, err := r.collectOne(c)
		if err != nil {
			logger.ErrorWithCode(errFactory.WithData(errors.ErrCollectorStall, c.Name())).Send()
			continue
		}
		for name, v := range values {
			merged[c.Name()+"."+name] = v
		}
	}

	return merged
}

func (r *CollectorRegistry) collectOne(c Collector) (map[string]float64, error) {
	done := make(chan map[string]float64, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error().Interface("panic", rec).Str("collector", c.Name()).Msg("collector panicked")
				done <- nil
			}
		}()
		done <- c.Collect()
	}()

	select {
	case values := <-done:
		return values, nil
	case <-time.After(r.timeout):
		return nil, errors.New().New(errors.ErrCollectorStall)
	}
}

// Close unregisters every collector, running each Cleanup.
func (r *CollectorRegistry) Close() {
	r.mu.Lock()
	collectors := r.collectors
	r.collectors = make(map[string]Collector)
	r.mu.Unlock()

	for _, c := range collectors {
		c.Cleanup()
	}
}
