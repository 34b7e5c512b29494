package analysis_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/perfmond/internal/analysis"
	"codeberg.org/mutker/perfmond/internal/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(start time.Time, step time.Duration, fps []float64) []*metric.Sample {
	samples := make([]*metric.Sample, 0, len(fps))
	for i, v := range fps {
		samples = append(samples, metric.NewSample(
			start.Add(time.Duration(i)*step),
			map[metric.Kind]float64{metric.FPS: v},
			nil,
		))
	}

	return samples
}

func TestComputeStatistics(t *testing.T) {
	start := time.Now()
	samples := series(start, time.Second, []float64{50, 60, 70})

	stats := analysis.ComputeStatistics(samples, 1.0, start)

	assert.Equal(t, 3, stats.SampleCount)
	ms, ok := stats.Metrics[metric.FPS]
	require.True(t, ok)
	assert.InDelta(t, 60.0, ms.Average, 1e-9)
	assert.InDelta(t, 50.0, ms.Min, 1e-9)
	assert.InDelta(t, 70.0, ms.Max, 1e-9)
	assert.Equal(t, 3, ms.Count)
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := analysis.ComputeStatistics(nil, 1.0, time.Now())

	assert.Zero(t, stats.SampleCount)
	assert.NotNil(t, stats.Metrics)
	assert.Empty(t, stats.Metrics)
}

func TestStabilityScoreRange(t *testing.T) {
	start := time.Now()

	steady := analysis.ComputeStatistics(series(start, time.Second, []float64{60, 60, 60, 60}), 1.0, start)
	assert.InDelta(t, 1.0, steady.StabilityScore, 1e-9)

	jittery := analysis.ComputeStatistics(series(start, time.Second, []float64{10, 200, 5, 180}), 1.0, start)
	assert.Less(t, jittery.StabilityScore, steady.StabilityScore)
	assert.GreaterOrEqual(t, jittery.StabilityScore, 0.0)
}

func TestHealthScoreBlendsViolationRatio(t *testing.T) {
	start := time.Now()
	samples := series(start, time.Second, []float64{60, 60, 60})

	clean := analysis.ComputeStatistics(samples, 1.0, start)
	dirty := analysis.ComputeStatistics(samples, 0.0, start)

	assert.Greater(t, clean.HealthScore, dirty.HealthScore)
	assert.LessOrEqual(t, clean.HealthScore, 1.0)
	assert.GreaterOrEqual(t, dirty.HealthScore, 0.0)
}

func TestTrendConfidenceFloor(t *testing.T) {
	start := time.Now()
	samples := series(start, time.Second, []float64{100, 95, 90, 85, 80, 75, 70, 65, 60})
	require.Less(t, len(samples), analysis.MinTrendSamples)

	result := analysis.AnalyzeTrends(samples, time.Minute)

	assert.Equal(t, analysis.Stable, result.OverallTrend)
	assert.Zero(t, result.TrendStrength)
	assert.Less(t, result.AnalysisConfidence, 0.5)
}

func TestTrendDetectsDegradingFPS(t *testing.T) {
	start := time.Now()
	fps := make([]float64, 20)
	for i := range fps {
		fps[i] = 100 - 2*float64(i)
	}

	result := analysis.AnalyzeTrends(series(start, time.Second, fps), time.Minute)

	assert.Equal(t, analysis.Degrading, result.OverallTrend)
	assert.Greater(t, result.TrendStrength, 0.0)
	assert.GreaterOrEqual(t, result.AnalysisConfidence, 0.5)

	mt, ok := result.PerMetric[metric.FPS]
	require.True(t, ok)
	assert.Equal(t, analysis.Degrading, mt.Direction)
	assert.Negative(t, mt.Slope)

	require.NotEmpty(t, result.Recommendations)
	assert.Contains(t, result.Recommendations[0], "FPS")
}

func TestTrendDetectsImprovingFPS(t *testing.T) {
	start := time.Now()
	fps := make([]float64, 20)
	for i := range fps {
		fps[i] = 40 + 2*float64(i)
	}

	result := analysis.AnalyzeTrends(series(start, time.Second, fps), time.Minute)

	assert.Equal(t, analysis.Improving, result.OverallTrend)
	assert.Empty(t, result.Recommendations)
}

func TestTrendStableSeries(t *testing.T) {
	start := time.Now()
	fps := make([]float64, 20)
	for i := range fps {
		fps[i] = 60
	}

	result := analysis.AnalyzeTrends(series(start, time.Second, fps), time.Minute)

	assert.Equal(t, analysis.Stable, result.OverallTrend)
	assert.Zero(t, result.TrendStrength)
	mt, ok := result.PerMetric[metric.FPS]
	require.True(t, ok)
	assert.Equal(t, analysis.Stable, mt.Direction)
}

func TestTrendRisingMemoryDegrades(t *testing.T) {
	start := time.Now()
	samples := make([]*metric.Sample, 0, 20)
	for i := 0; i < 20; i++ {
		samples = append(samples, metric.NewSample(
			start.Add(time.Duration(i)*time.Second),
			map[metric.Kind]float64{metric.MemoryUsage: 200 + 10*float64(i)},
			nil,
		))
	}

	result := analysis.AnalyzeTrends(samples, time.Minute)

	mt, ok := result.PerMetric[metric.MemoryUsage]
	require.True(t, ok)
	assert.Equal(t, analysis.Degrading, mt.Direction)
	assert.Positive(t, mt.Slope)
}
