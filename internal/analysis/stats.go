// Package analysis computes historical statistics and trend direction over
// session history windows. Score formulas are documented tunables: stability
// is one minus the mean coefficient of variation across metrics, health is a
// weighted blend of stability and the violation-free sample ratio.
package analysis

import (
	"math"
	"time"

	"codeberg.org/mutker/perfmond/internal/metric"
)

const (
	stabilityWeight     = 0.6
	violationFreeWeight = 0.4
)

// MetricStats holds per-metric aggregates over the analyzed window.
type MetricStats struct {
	Average float64
	Min     float64
	Max     float64
	StdDev  float64
	Count   int
}

// Statistics summarizes a session's history at a point in time.
type Statistics struct {
	SampleCount    int
	Metrics        map[metric.Kind]MetricStats
	StabilityScore float64
	HealthScore    float64
	ComputedAt     time.Time
}

// ComputeStatistics aggregates the given samples. violationFreeRatio is the
// fraction of evaluated samples without violations, supplied by the session.
// Empty input yields a well-formed zero result.
func ComputeStatistics(samples []*metric.Sample, violationFreeRatio float64, now time.Time) Statistics {
	stats := Statistics{
		SampleCount: len(samples),
		Metrics:     make(map[metric.Kind]MetricStats),
		ComputedAt:  now,
	}
	if len(samples) == 0 {
		return stats
	}

	series := make(map[metric.Kind][]float64)
	for _, s := range samples {
		for kind, v := range s.Values() {
			series[kind] = append(series[kind], v)
		}
	}

	covSum := 0.0
	covCount := 0
	for kind, values := range series {
		ms := summarize(values)
		stats.Metrics[kind] = ms

		if ms.Average != 0 {
			covSum += ms.StdDev / math.Abs(ms.Average)
			covCount++
		}
	}

	stability := 1.0
	if covCount > 0 {
		stability = clamp01(1.0 - covSum/float64(covCount))
	}

	stats.StabilityScore = stability
	stats.HealthScore = clamp01(stabilityWeight*stability + violationFreeWeight*clamp01(violationFreeRatio))

	return stats
}

func summarize(values []float64) MetricStats {
	ms := MetricStats{
		Min:   values[0],
		Max:   values[0],
		Count: len(values),
	}

	sum := 0.0
	for _, v := range values {
		sum += v
		if v < ms.Min {
			ms.Min = v
		}
		if v > ms.Max {
			ms.Max = v
		}
	}
	ms.Average = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - ms.Average
		variance += d * d
	}
	ms.StdDev = math.Sqrt(variance / float64(len(values)))

	return ms
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}

	return v
}
