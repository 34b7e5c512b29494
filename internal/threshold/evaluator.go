package threshold

import (
	"fmt"
	"math"
	"time"

	"codeberg.org/mutker/perfmond/internal/metric"
)

// Relative breach magnitude bands for base severity.
const (
	warningBreachRatio  = 0.10
	criticalBreachRatio = 0.25
)

// Health loss per violation by severity, capped at a total loss of 1.0.
var severityWeights = map[Severity]float64{
	Info:     0.1,
	Warning:  0.25,
	Critical: 0.5,
}

type streak struct {
	count int
	first time.Time
}

// Evaluator validates samples against a threshold set and owns the
// per-metric consecutive-violation escalation state. Not safe for concurrent
// use; each session owns its own evaluator.
type Evaluator struct {
	streaks map[metric.Kind]streak
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		streaks: make(map[metric.Kind]streak),
	}
}

// Evaluate compares a sample against the set and returns the violations plus
// a health score in [0,1]. A nil or empty sample yields an invalid result
// with health 0 and no violations.
func (e *Evaluator) Evaluate(sample *metric.Sample, set Set) Result {
	if sample.IsEmpty() {
		return Result{
			IsValid:     false,
			Violations:  []Violation{},
			HealthScore: 0,
			Message:     "invalid sample: no metric readings",
		}
	}

	now := sample.Timestamp()
	violations := make([]Violation, 0)

	for kind, t := range set.Thresholds {
		observed, ok := sample.Value(kind)
		if !ok {
			continue
		}

		if !t.Breached(observed) {
			// A clean reading ends the metric's streak, warning zone included.
			delete(e.streaks, kind)

			if t.InWarningZone(observed) {
				violations = append(violations, Violation{
					Kind:        kind,
					Observed:    observed,
					Limit:       t.WarningLimit,
					Magnitude:   math.Abs(observed - t.WarningLimit),
					Severity:    Info,
					Timestamp:   now,
					Description: fmt.Sprintf("%s at %.2f approaching limit %.2f", kind, observed, t.Limit),
				})
				continue
			}

			continue
		}

		magnitude := math.Abs(observed - t.Limit)
		severity := baseSeverity(magnitude, t.Limit)

		if e.advanceStreak(kind, now, set.ViolationTimeWindow) >= set.ViolationTolerance {
			severity = severity.Promote()
		}

		violations = append(violations, Violation{
			Kind:        kind,
			Observed:    observed,
			Limit:       t.Limit,
			Magnitude:   magnitude,
			Severity:    severity,
			Timestamp:   now,
			Description: fmt.Sprintf("%s at %.2f breached limit %.2f", kind, observed, t.Limit),
		})
	}

	if len(violations) == 0 {
		return Result{
			IsValid:     true,
			Violations:  violations,
			HealthScore: 1.0,
		}
	}

	return Result{
		IsValid:     false,
		Violations:  violations,
		HealthScore: healthScore(violations),
		Message:     fmt.Sprintf("%d threshold violation(s)", len(violations)),
	}
}

// Reset clears all escalation streaks.
func (e *Evaluator) Reset() {
	e.streaks = make(map[metric.Kind]streak)
}

// advanceStreak records a breach for the metric and returns the streak count.
// A breach outside the time window starts a new streak.
func (e *Evaluator) advanceStreak(kind metric.Kind, now time.Time, window time.Duration) int {
	s, ok := e.streaks[kind]
	if !ok || now.Sub(s.first) > window {
		s = streak{count: 1, first: now}
	} else {
		s.count++
	}
	e.streaks[kind] = s

	return s.count
}

func baseSeverity(magnitude, limit float64) Severity {
	ratio := magnitude / limit
	switch {
	case ratio < warningBreachRatio:
		return Info
	case ratio < criticalBreachRatio:
		return Warning
	default:
		return Critical
	}
}

// healthScore is 1.0 minus the summed severity weights, floored at zero.
func healthScore(violations []Violation) float64 {
	loss := 0.0
	for _, v := range violations {
		loss += severityWeights[v.Severity]
	}
	if loss > 1.0 {
		loss = 1.0
	}

	return 1.0 - loss
}
