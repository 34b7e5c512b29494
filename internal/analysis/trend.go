package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"codeberg.org/mutker/perfmond/internal/metric"
)

// Direction characterizes a metric's trajectory over the analyzed window.
type Direction string

const (
	Improving Direction = "improving"
	Stable    Direction = "stable"
	Degrading Direction = "degrading"
)

const (
	// MinTrendSamples is the confidence floor: below this count the result
	// is Stable with zero strength and confidence under 0.5.
	MinTrendSamples = 10

	// Relative change per window below which a slope counts as stable.
	stableEpsilon = 0.02

	confidenceDivisor = 20.0
)

// MetricTrend is the fitted trajectory of one metric.
type MetricTrend struct {
	Kind      metric.Kind
	Direction Direction
	// Slope is the least-squares slope in metric units per second.
	Slope float64
	// Strength is the relative change over the window, clipped to [0,1].
	Strength float64
}

// TrendResult is the outcome of analyzing a history window.
type TrendResult struct {
	PerMetric          map[metric.Kind]MetricTrend
	OverallTrend       Direction
	TrendStrength      float64
	AnalysisConfidence float64
	Recommendations    []string
	SampleCount        int
	Window             time.Duration
}

// AnalyzeTrends fits a linear trend per metric over the windowed samples.
// With fewer than MinTrendSamples samples the result is forced Stable with
// zero strength and a confidence below 0.5.
func AnalyzeTrends(samples []*metric.Sample, window time.Duration) TrendResult {
	result := TrendResult{
		PerMetric:          make(map[metric.Kind]MetricTrend),
		OverallTrend:       Stable,
		Recommendations:    []string{},
		SampleCount:        len(samples),
		Window:             window,
		AnalysisConfidence: math.Min(1.0, float64(len(samples))/confidenceDivisor),
	}

	if len(samples) < MinTrendSamples {
		return result
	}

	series := make(map[metric.Kind][]point)
	origin := samples[0].Timestamp()
	for _, s := range samples {
		x := s.Timestamp().Sub(origin).Seconds()
		for kind, v := range s.Values() {
			series[kind] = append(series[kind], point{x: x, y: v})
		}
	}

	span := samples[len(samples)-1].Timestamp().Sub(origin).Seconds()
	if span <= 0 {
		return result
	}

	for kind, points := range series {
		if len(points) < 2 {
			continue
		}

		slope, mean := fit(points)

		relChange := 0.0
		if mean != 0 {
			relChange = slope * span / math.Abs(mean)
		}

		mt := MetricTrend{
			Kind:     kind,
			Slope:    slope,
			Strength: math.Min(1.0, math.Abs(relChange)),
		}

		switch {
		case math.Abs(relChange) < stableEpsilon:
			mt.Direction = Stable
			mt.Strength = 0
		case (relChange > 0) == kind.HigherIsBetter():
			mt.Direction = Improving
		default:
			mt.Direction = Degrading
		}

		result.PerMetric[kind] = mt
	}

	degrading := make([]MetricTrend, 0)
	improving := make([]MetricTrend, 0)
	for _, mt := range result.PerMetric {
		switch mt.Direction {
		case Degrading:
			degrading = append(degrading, mt)
		case Improving:
			improving = append(improving, mt)
		}
	}

	switch {
	case len(degrading) > 0:
		result.OverallTrend = Degrading
		result.TrendStrength = maxStrength(degrading)
	case len(improving) > 0:
		result.OverallTrend = Improving
		result.TrendStrength = maxStrength(improving)
	}

	result.Recommendations = recommendations(degrading)

	return result
}

type point struct {
	x, y float64
}

func fit(points []point) (slope, mean float64) {
	n := float64(len(points))
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		sumX += p.x
		sumY += p.y
		sumXY += p.x * p.y
		sumXX += p.x * p.x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}

	return (n*sumXY - sumX*sumY) / denom, sumY / n
}

func maxStrength(trends []MetricTrend) float64 {
	maxVal := 0.0
	for _, mt := range trends {
		if mt.Strength > maxVal {
			maxVal = mt.Strength
		}
	}

	return maxVal
}

var adviceByKind = map[metric.Kind]string{
	metric.FPS:          "FPS trending down; investigate GC spikes and draw-call growth",
	metric.FrameTime:    "Frame time rising; profile the hot path for added per-frame work",
	metric.MemoryUsage:  "Memory usage climbing; check for leaks or unbounded caches",
	metric.CPUUsage:     "CPU load rising; look for busy loops or added background work",
	metric.GPUUsage:     "GPU load rising; review shader and fill-rate cost",
	metric.ThermalState: "Thermal state rising; sustained load may trigger throttling",
}

// recommendations lists advice for the degrading metrics, worst first.
func recommendations(degrading []MetricTrend) []string {
	sort.Slice(degrading, func(i, j int) bool {
		return degrading[i].Strength > degrading[j].Strength
	})

	out := make([]string, 0, len(degrading))
	for _, mt := range degrading {
		if advice, ok := adviceByKind[mt.Kind]; ok {
			out = append(out, advice)
		} else {
			out = append(out, fmt.Sprintf("%s degrading; review recent changes affecting it", mt.Kind))
		}
	}

	return out
}
