// Package monitor is the public API of the performance monitoring engine:
// session lifecycle, scheduled sampling, threshold validation, statistics,
// trend analysis, alerting and export.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/perfmond/internal/alert"
	"codeberg.org/mutker/perfmond/internal/analysis"
	"codeberg.org/mutker/perfmond/internal/config"
	"codeberg.org/mutker/perfmond/internal/errors"
	"codeberg.org/mutker/perfmond/internal/history"
	"codeberg.org/mutker/perfmond/internal/logger"
	"codeberg.org/mutker/perfmond/internal/metric"
	"codeberg.org/mutker/perfmond/internal/report"
	"codeberg.org/mutker/perfmond/internal/threshold"
)

// Result is the structured outcome of a session operation. Failures carry a
// descriptive message instead of an error so callers can branch without
// unwrapping.
type Result struct {
	IsSuccessful bool
	SessionID    string
	Message      string
}

// Monitor owns the session registry and the sampling scheduler. The registry
// is the single shared mutable structure, guarded by one coarse lock;
// per-sample work is confined to each session's own store.
type Monitor struct {
	cfg        *config.Config
	source     *metric.FallbackSource
	thresholds threshold.Source
	collectors *metric.CollectorRegistry
	dispatcher *alert.Dispatcher
	archive    history.Archive

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
}

// New builds a monitor from validated parts. A nil source or threshold
// source, or an invalid config, fails without mutating any state.
func New(cfg *config.Config, source metric.Source, thresholds threshold.Source) (*Monitor, error) {
	errFactory := errors.New()

	if cfg == nil {
		return nil, errFactory.WithMessage(errors.ErrMissingConfig, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "metric source is required")
	}
	if thresholds == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "threshold source is required")
	}

	archive, err := history.NewArchive(history.ArchiveConfig{
		Enabled:      cfg.ArchiveEnabled,
		DBPath:       cfg.ArchiveDB,
		BatchSize:    cfg.ArchiveBatchSize,
		BatchTimeout: time.Duration(cfg.ArchiveBatchTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return &Monitor{
		cfg:        cfg,
		source:     metric.NewFallbackSource(source),
		thresholds: thresholds,
		collectors: metric.NewCollectorRegistry(time.Duration(cfg.CollectorTimeoutMillis) * time.Millisecond),
		dispatcher: alert.NewDispatcher(alert.Config{
			MaxAlertsPerMinute: cfg.MaxAlertsPerMinute,
			Batching:           cfg.AlertBatching,
			EscalationDelay:    time.Duration(cfg.AlertEscalationDelaySeconds) * time.Second,
		}),
		archive:  archive,
		sessions: make(map[string]*session),
	}, nil
}

// StartMonitoring creates a session, or returns the existing one when the id
// is already active or paused. Starting is idempotent, not an error.
func (m *Monitor) StartMonitoring(id string) Result {
	if id == "" {
		return Result{IsSuccessful: false, Message: "session id is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && s.Status() != StatusEnded {
		return Result{IsSuccessful: true, SessionID: id, Message: "session already active"}
	}

	m.sessions[id] = newSession(
		id,
		m.cfg.MaxDataPoints,
		time.Duration(m.cfg.RetentionHours)*time.Hour,
		time.Now(),
	)
	logger.Info().Str("session", id).Msg("monitoring session started")

	return Result{IsSuccessful: true, SessionID: id}
}

// StopMonitoring ends a session. History stays queryable until Reset or
// retention cleanup disposes it.
func (m *Monitor) StopMonitoring(id string) Result {
	s, ok := m.lookup(id)
	if !ok {
		return notFound(id)
	}

	if !s.end() {
		return Result{IsSuccessful: true, SessionID: id, Message: "session already ended"}
	}
	logger.Info().Str("session", id).Msg("monitoring session stopped")

	return Result{IsSuccessful: true, SessionID: id}
}

// PauseMonitoring suspends collection while retaining session state.
func (m *Monitor) PauseMonitoring(id string) Result {
	s, ok := m.lookup(id)
	if !ok {
		return notFound(id)
	}

	if !s.pause() {
		return Result{IsSuccessful: false, SessionID: id, Message: fmt.Sprintf("Session '%s' has ended", id)}
	}

	return Result{IsSuccessful: true, SessionID: id}
}

// ResumeMonitoring resumes a paused session.
func (m *Monitor) ResumeMonitoring(id string) Result {
	s, ok := m.lookup(id)
	if !ok {
		return notFound(id)
	}

	if !s.resume() {
		return Result{IsSuccessful: false, SessionID: id, Message: fmt.Sprintf("Session '%s' has ended", id)}
	}

	return Result{IsSuccessful: true, SessionID: id}
}

// CollectCurrentMetrics pulls one sample from the metric source and merges
// custom collector readings. It always returns a well-formed sample; a
// degraded source falls back to last-known values.
func (m *Monitor) CollectCurrentMetrics() *metric.Sample {
	sample, _ := m.source.Collect()
	if custom := m.collectors.Collect(); len(custom) > 0 {
		sample = sample.WithCustom(custom)
	}

	return sample
}

// ForceSample collects and records one sample on demand. Permitted for
// Active and Paused sessions; an Ended or unknown session yields a failure
// result.
func (m *Monitor) ForceSample(id string) Result {
	s, ok := m.lookup(id)
	if !ok {
		return notFound(id)
	}
	if s.Status() == StatusEnded {
		return Result{IsSuccessful: false, SessionID: id, Message: fmt.Sprintf("Session '%s' has ended", id)}
	}

	sample := m.CollectCurrentMetrics()
	m.recordSample(s, sample)

	return Result{IsSuccessful: true, SessionID: id}
}

// GetPerformanceHistory returns the session's samples within the window,
// oldest first. Unknown sessions yield an empty, non-nil slice.
func (m *Monitor) GetPerformanceHistory(id string, window time.Duration) []*metric.Sample {
	s, ok := m.lookup(id)
	if !ok {
		return []*metric.Sample{}
	}

	return s.store.Query(time.Now(), window)
}

// GetPerformanceStatistics returns the last computed statistics for the
// session, or a zero-valued result for unknown sessions.
func (m *Monitor) GetPerformanceStatistics(id string) analysis.Statistics {
	s, ok := m.lookup(id)
	if !ok {
		return analysis.Statistics{Metrics: map[metric.Kind]analysis.MetricStats{}}
	}

	stats := s.lastStatistics()
	if stats.Metrics == nil {
		s.recompute(time.Now(), m.trendWindow())
		stats = s.lastStatistics()
	}

	return stats
}

// AnalyzePerformanceTrends runs trend analysis over the session's windowed
// history. Unknown sessions yield a stable, zero-confidence result.
func (m *Monitor) AnalyzePerformanceTrends(id string, window time.Duration) analysis.TrendResult {
	s, ok := m.lookup(id)
	if !ok {
		return analysis.AnalyzeTrends(nil, window)
	}

	return analysis.AnalyzeTrends(s.store.Query(time.Now(), window), window)
}

// GenerateMonitoringReport renders the session's current state as Markdown.
// Unknown sessions yield a well-formed report over empty data.
func (m *Monitor) GenerateMonitoringReport(id string) string {
	return report.GenerateMarkdown(m.reportInput(id, m.trendWindow()))
}

// ExportPerformanceData serializes the session's windowed samples in the
// requested format.
func (m *Monitor) ExportPerformanceData(id string, format report.Format, window time.Duration) (report.Envelope, error) {
	return report.Export(format, m.reportInput(id, window))
}

// RegisterCollector adds a custom metric collector. Nil collectors are
// ignored. Returns whether the collector was registered.
func (m *Monitor) RegisterCollector(c metric.Collector) bool {
	return m.collectors.Register(c)
}

// UnregisterCollector removes a collector and runs its cleanup.
func (m *Monitor) UnregisterCollector(name string) {
	m.collectors.Unregister(name)
}

// RegisterAlertCallback subscribes to dispatched alerts and returns an id
// for unregistration.
func (m *Monitor) RegisterAlertCallback(cb alert.Callback) int {
	return m.dispatcher.Register(cb)
}

// UnregisterAlertCallback removes an alert subscription.
func (m *Monitor) UnregisterAlertCallback(id int) {
	m.dispatcher.Unregister(id)
}

// Reset terminates all sessions and clears all history. Idempotent.
func (m *Monitor) Reset() {
	m.mu.Lock()
	for _, s := range m.sessions {
		s.end()
		s.store.Clear()
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	logger.Info().Msg("monitoring system reset")
}

// Close resets the monitor and releases the dispatcher, collectors and
// archive. Safe to call more than once.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Reset()
	m.dispatcher.Close()
	m.collectors.Close()

	return m.archive.Close()
}

// SessionStatus reports a session's lifecycle state.
func (m *Monitor) SessionStatus(id string) (Status, bool) {
	s, ok := m.lookup(id)
	if !ok {
		return "", false
	}

	return s.Status(), true
}

// SuppressedAlerts returns how many alert dispatches the rate limiter
// dropped.
func (m *Monitor) SuppressedAlerts() uint64 {
	return m.dispatcher.Suppressed()
}

func (m *Monitor) lookup(id string) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]

	return s, ok
}

// recordSample evaluates, stores, archives and dispatches one sample for a
// session.
func (m *Monitor) recordSample(s *session, sample *metric.Sample) {
	result := s.record(sample, m.thresholds.Current())

	if err := m.archive.Record(s.id, sample); err != nil {
		logger.Warn().Err(err).Str("session", s.id).Msg("failed to archive sample")
	}

	if len(result.Violations) > 0 {
		m.dispatcher.Notify(s.id, result.Violations)
	}
}

func (m *Monitor) reportInput(id string, window time.Duration) report.Input {
	now := time.Now()
	in := report.Input{
		SessionID:        id,
		GeneratedAt:      now,
		Samples:          []*metric.Sample{},
		Statistics:       analysis.Statistics{Metrics: map[metric.Kind]analysis.MetricStats{}},
		Trends:           analysis.AnalyzeTrends(nil, window),
		SuppressedAlerts: m.dispatcher.Suppressed(),
	}

	s, ok := m.lookup(id)
	if !ok {
		return in
	}

	in.Samples = s.store.Query(now, window)
	s.recompute(now, window)
	in.Statistics = s.lastStatistics()
	in.Trends = s.lastTrends()
	in.TotalSamples, in.TotalViolations = s.counters()

	return in
}

func (m *Monitor) trendWindow() time.Duration {
	return time.Duration(m.cfg.RetentionHours) * time.Hour
}

func notFound(id string) Result {
	return Result{
		IsSuccessful: false,
		SessionID:    id,
		Message:      fmt.Sprintf("Session '%s' not found", id),
	}
}
