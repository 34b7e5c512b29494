package threshold

import (
	"time"

	"codeberg.org/mutker/perfmond/internal/errors"
	"codeberg.org/mutker/perfmond/internal/metric"
)

// Direction states which side of the limit is unacceptable.
type Direction int

const (
	// MinIsBad flags observations below the limit (e.g. FPS).
	MinIsBad Direction = iota
	// MaxIsBad flags observations above the limit (e.g. memory usage).
	MaxIsBad
)

// Severity of a violation. Ordering matters: escalation promotes one level
// at a time, capped at Critical.
type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

// String implements the Stringer interface
func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "info"
	}
}

// Promote returns the next severity level, capped at Critical.
func (s Severity) Promote() Severity {
	if s >= Critical {
		return Critical
	}

	return s + 1
}

// Threshold is one configured bound. WarningLimit is optional (zero = unset)
// and marks a softer bound inside the hard limit.
type Threshold struct {
	Kind         metric.Kind
	Limit        float64
	WarningLimit float64
	Direction    Direction
}

// Breached reports whether an observation violates the hard limit.
func (t Threshold) Breached(observed float64) bool {
	if t.Direction == MinIsBad {
		return observed < t.Limit
	}

	return observed > t.Limit
}

// InWarningZone reports whether an observation passes the hard limit but
// violates the warning limit.
func (t Threshold) InWarningZone(observed float64) bool {
	if t.WarningLimit == 0 || t.Breached(observed) {
		return false
	}
	if t.Direction == MinIsBad {
		return observed < t.WarningLimit
	}

	return observed > t.WarningLimit
}

// Set is a versioned collection of thresholds plus the escalation policy.
type Set struct {
	Version             int
	Thresholds          map[metric.Kind]Threshold
	ViolationTolerance  int
	ViolationTimeWindow time.Duration
}

// DefaultSet returns conservative bounds for all built-in metrics.
func DefaultSet() Set {
	return Set{
		Version: 1,
		Thresholds: map[metric.Kind]Threshold{
			metric.FPS:          {Kind: metric.FPS, Limit: 30, WarningLimit: 45, Direction: MinIsBad},
			metric.FrameTime:    {Kind: metric.FrameTime, Limit: 33.3, Direction: MaxIsBad},
			metric.MemoryUsage:  {Kind: metric.MemoryUsage, Limit: 512, Direction: MaxIsBad},
			metric.CPUUsage:     {Kind: metric.CPUUsage, Limit: 90, Direction: MaxIsBad},
			metric.GPUUsage:     {Kind: metric.GPUUsage, Limit: 95, Direction: MaxIsBad},
			metric.ThermalState: {Kind: metric.ThermalState, Limit: 85, Direction: MaxIsBad},
		},
		ViolationTolerance:  3,
		ViolationTimeWindow: 10 * time.Second,
	}
}

// Validate rejects sets whose limits or escalation policy cannot be applied.
// The warning/critical ordering check is direction-aware: for min-is-bad
// thresholds the warning limit sits above the hard limit.
func (s Set) Validate() error {
	errFactory := errors.New()

	if len(s.Thresholds) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidThresholds, "threshold set is empty")
	}
	if s.ViolationTolerance <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidThresholds, "violation tolerance must be positive")
	}
	if s.ViolationTimeWindow <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidThresholds, "violation time window must be positive")
	}

	for kind, t := range s.Thresholds {
		if t.Limit <= 0 {
			return errFactory.WithData(errors.ErrInvalidThresholds, string(kind))
		}
		if t.WarningLimit != 0 {
			if t.WarningLimit <= 0 {
				return errFactory.WithData(errors.ErrInvalidThresholds, string(kind))
			}
			if t.Direction == MaxIsBad && t.WarningLimit > t.Limit {
				return errFactory.WithData(errors.ErrInvalidThresholds, string(kind))
			}
			if t.Direction == MinIsBad && t.WarningLimit < t.Limit {
				return errFactory.WithData(errors.ErrInvalidThresholds, string(kind))
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	out := s
	out.Thresholds = make(map[metric.Kind]Threshold, len(s.Thresholds))
	for kind, t := range s.Thresholds {
		out.Thresholds[kind] = t
	}

	return out
}

// Violation records one breach of a threshold by an observed sample.
type Violation struct {
	Kind        metric.Kind
	Observed    float64
	Limit       float64
	Magnitude   float64
	Severity    Severity
	Timestamp   time.Time
	Description string
}

// Result is the outcome of validating one sample. IsValid is true only for a
// present, violation-free sample; a nil or empty sample yields an invalid
// result with a zero health score, distinguishable from a healthy one by its
// message and empty violation list.
type Result struct {
	IsValid     bool
	Violations  []Violation
	HealthScore float64
	Message     string
}
