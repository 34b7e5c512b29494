package monitor

import (
	"context"
	"time"

	"codeberg.org/mutker/perfmond/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Run drives periodic sampling, statistics recomputation and history cleanup
// until the context is canceled. Stopping a session only stops its future
// sampling; the driver itself keeps running for the remaining sessions.
// In-flight ticks observe cancellation at the next tick boundary.
func (m *Monitor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.samplingLoop(ctx, time.Duration(m.cfg.IntervalSeconds)*time.Second)
	})

	if m.cfg.HighFrequencyIntervalMillis > 0 {
		g.Go(func() error {
			return m.samplingLoop(ctx, time.Duration(m.cfg.HighFrequencyIntervalMillis)*time.Millisecond)
		})
	}

	g.Go(func() error {
		return m.statisticsLoop(ctx)
	})

	if m.cfg.AutoCleanup {
		g.Go(func() error {
			return m.cleanupLoop(ctx)
		})
	}

	logger.Info().
		Int("interval_s", m.cfg.IntervalSeconds).
		Int("statistics_interval_s", m.cfg.StatisticsIntervalSeconds).
		Bool("auto_cleanup", m.cfg.AutoCleanup).
		Msg("monitoring scheduler started")

	return g.Wait()
}

// samplingLoop collects one sample per tick and records it for every active
// session.
func (m *Monitor) samplingLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	sessions := m.activeSessions()
	if len(sessions) == 0 {
		return
	}

	// One source pull per tick; the external call may block, so it stays
	// outside every session lock.
	sample := m.CollectCurrentMetrics()

	for _, s := range sessions {
		if s.Status() != StatusActive {
			continue
		}
		m.recordSample(s, sample)
	}
}

func (m *Monitor) statisticsLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(m.cfg.StatisticsIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			window := m.trendWindow()
			now := time.Now()
			for _, s := range m.liveSessions() {
				s.recompute(now, window)
			}
		}
	}
}

func (m *Monitor) cleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(m.cfg.CleanupIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.prune(time.Now())
		}
	}
}

// prune applies age-based eviction to every session store and the archive.
func (m *Monitor) prune(now time.Time) {
	evicted := 0
	for _, s := range m.allSessions() {
		evicted += s.store.Prune(now)
	}

	retention := time.Duration(m.cfg.RetentionHours) * time.Hour
	if err := m.archive.PruneBefore(now.Add(-retention)); err != nil {
		logger.Warn().Err(err).Msg("archive prune failed")
	}

	if evicted > 0 {
		logger.Debug().Int("evicted", evicted).Msg("pruned session history")
	}
}

func (m *Monitor) activeSessions() []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Status() == StatusActive {
			out = append(out, s)
		}
	}

	return out
}

// liveSessions returns sessions still collecting or paused.
func (m *Monitor) liveSessions() []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Status() != StatusEnded {
			out = append(out, s)
		}
	}

	return out
}

func (m *Monitor) allSessions() []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}

	return out
}
