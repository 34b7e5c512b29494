package metric

import (
	"time"
)

// Kind identifies one tracked performance metric.
type Kind string

const (
	FPS          Kind = "fps"
	FrameTime    Kind = "frame_time_ms"
	MemoryUsage  Kind = "memory_usage_mb"
	CPUUsage     Kind = "cpu_usage_percent"
	GPUUsage     Kind = "gpu_usage_percent"
	ThermalState Kind = "thermal_state"
)

// Kinds lists the built-in metric kinds in a stable order.
func Kinds() []Kind {
	return []Kind{FPS, FrameTime, MemoryUsage, CPUUsage, GPUUsage, ThermalState}
}

// String implements the Stringer interface
func (k Kind) String() string {
	return string(k)
}

// HigherIsBetter reports the good direction for a metric. Rising FPS is an
// improvement; rising frame time, memory, CPU, GPU load or temperature is not.
func (k Kind) HigherIsBetter() bool {
	return k == FPS
}

// Sample is one timestamped reading of all tracked metrics. It is immutable
// once constructed: NewSample copies its inputs and the accessors return
// copies.
type Sample struct {
	timestamp time.Time
	values    map[Kind]float64
	custom    map[string]float64
}

// NewSample builds an immutable sample from the given readings. Nil maps are
// treated as empty.
func NewSample(ts time.Time, values map[Kind]float64, custom map[string]float64) *Sample {
	s := &Sample{
		timestamp: ts,
		values:    make(map[Kind]float64, len(values)),
		custom:    make(map[string]float64, len(custom)),
	}
	for k, v := range values {
		s.values[k] = v
	}
	for name, v := range custom {
		s.custom[name] = v
	}

	return s
}

// Timestamp returns the capture time of the sample.
func (s *Sample) Timestamp() time.Time {
	return s.timestamp
}

// Value returns the reading for a metric kind and whether it was captured.
func (s *Sample) Value(kind Kind) (float64, bool) {
	v, ok := s.values[kind]
	return v, ok
}

// Values returns a copy of all built-in metric readings.
func (s *Sample) Values() map[Kind]float64 {
	out := make(map[Kind]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}

	return out
}

// Custom returns a copy of the free-form custom metric readings.
func (s *Sample) Custom() map[string]float64 {
	out := make(map[string]float64, len(s.custom))
	for name, v := range s.custom {
		out[name] = v
	}

	return out
}

// IsEmpty reports whether the sample carries no readings at all.
func (s *Sample) IsEmpty() bool {
	return s == nil || (len(s.values) == 0 && len(s.custom) == 0)
}

// Len returns the number of built-in readings in the sample.
func (s *Sample) Len() int {
	return len(s.values)
}

// WithCustom returns a new sample carrying the given custom metrics merged
// over the receiver's. The receiver is left untouched.
func (s *Sample) WithCustom(custom map[string]float64) *Sample {
	merged := s.Custom()
	for name, v := range custom {
		merged[name] = v
	}

	return NewSample(s.timestamp, s.values, merged)
}
