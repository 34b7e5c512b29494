package threshold_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/perfmond/internal/metric"
	"codeberg.org/mutker/perfmond/internal/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSet() threshold.Set {
	return threshold.Set{
		Version: 1,
		Thresholds: map[metric.Kind]threshold.Threshold{
			metric.FPS:         {Kind: metric.FPS, Limit: 72, Direction: threshold.MinIsBad},
			metric.MemoryUsage: {Kind: metric.MemoryUsage, Limit: 512, Direction: threshold.MaxIsBad},
		},
		ViolationTolerance:  3,
		ViolationTimeWindow: 10 * time.Second,
	}
}

func sampleAt(ts time.Time, values map[metric.Kind]float64) *metric.Sample {
	return metric.NewSample(ts, values, nil)
}

func TestEvaluateLowFPS(t *testing.T) {
	e := threshold.NewEvaluator()

	result := e.Evaluate(sampleAt(time.Now(), map[metric.Kind]float64{
		metric.FPS:         50,
		metric.MemoryUsage: 300,
	}), testSet())

	assert.False(t, result.IsValid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, metric.FPS, result.Violations[0].Kind)
	assert.InDelta(t, 22.0, result.Violations[0].Magnitude, 1e-9)
}

func TestEvaluateHighMemory(t *testing.T) {
	e := threshold.NewEvaluator()

	result := e.Evaluate(sampleAt(time.Now(), map[metric.Kind]float64{
		metric.FPS:         80,
		metric.MemoryUsage: 600,
	}), testSet())

	assert.False(t, result.IsValid)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, metric.MemoryUsage, result.Violations[0].Kind)
	assert.InDelta(t, 88.0, result.Violations[0].Magnitude, 1e-9)
}

func TestEvaluateHealthySample(t *testing.T) {
	e := threshold.NewEvaluator()

	result := e.Evaluate(sampleAt(time.Now(), map[metric.Kind]float64{
		metric.FPS:         90,
		metric.MemoryUsage: 256,
	}), testSet())

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Violations)
	assert.InDelta(t, 1.0, result.HealthScore, 1e-9)
}

func TestEvaluateEmptySample(t *testing.T) {
	e := threshold.NewEvaluator()

	result := e.Evaluate(nil, testSet())

	assert.False(t, result.IsValid)
	assert.Empty(t, result.Violations)
	assert.Zero(t, result.HealthScore)
	assert.Contains(t, result.Message, "invalid sample")
}

func TestEscalationMonotonicity(t *testing.T) {
	e := threshold.NewEvaluator()
	set := testSet()
	start := time.Now()

	// A small breach keeps base severity at Info so the promotion on the
	// third consecutive breach is visible.
	var severities []threshold.Severity
	for i := 0; i < 3; i++ {
		result := e.Evaluate(sampleAt(start.Add(time.Duration(i)*time.Second), map[metric.Kind]float64{
			metric.FPS: 71,
		}), set)
		require.Len(t, result.Violations, 1)
		severities = append(severities, result.Violations[0].Severity)
	}

	assert.Equal(t, threshold.Info, severities[0])
	assert.LessOrEqual(t, severities[0], severities[1])
	assert.LessOrEqual(t, severities[1], severities[2])
	assert.Equal(t, threshold.Warning, severities[2])
}

func TestEscalationStreakReset(t *testing.T) {
	e := threshold.NewEvaluator()
	set := testSet()
	start := time.Now()

	for i := 0; i < 2; i++ {
		e.Evaluate(sampleAt(start.Add(time.Duration(i)*time.Second), map[metric.Kind]float64{
			metric.FPS: 71,
		}), set)
	}

	// A non-breaching sample resets the streak; the next breach starts over.
	clean := e.Evaluate(sampleAt(start.Add(2*time.Second), map[metric.Kind]float64{
		metric.FPS: 90,
	}), set)
	assert.True(t, clean.IsValid)

	result := e.Evaluate(sampleAt(start.Add(3*time.Second), map[metric.Kind]float64{
		metric.FPS: 71,
	}), set)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, threshold.Info, result.Violations[0].Severity)
}

func TestEscalationWindowExpiry(t *testing.T) {
	e := threshold.NewEvaluator()
	set := testSet()
	start := time.Now()

	for i := 0; i < 2; i++ {
		e.Evaluate(sampleAt(start.Add(time.Duration(i)*time.Second), map[metric.Kind]float64{
			metric.FPS: 71,
		}), set)
	}

	// Third breach lands outside the time window and starts a new streak.
	result := e.Evaluate(sampleAt(start.Add(15*time.Second), map[metric.Kind]float64{
		metric.FPS: 71,
	}), set)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, threshold.Info, result.Violations[0].Severity)
}

func TestHealthScoreDecreasesWithViolations(t *testing.T) {
	e := threshold.NewEvaluator()

	result := e.Evaluate(sampleAt(time.Now(), map[metric.Kind]float64{
		metric.FPS:         50,
		metric.MemoryUsage: 700,
	}), testSet())

	assert.False(t, result.IsValid)
	assert.Len(t, result.Violations, 2)
	assert.Less(t, result.HealthScore, 1.0)
	assert.GreaterOrEqual(t, result.HealthScore, 0.0)
}

func TestSetValidate(t *testing.T) {
	set := testSet()
	require.NoError(t, set.Validate())

	invalid := testSet()
	invalid.ViolationTolerance = 0
	assert.Error(t, invalid.Validate())

	invalid = testSet()
	invalid.ViolationTimeWindow = 0
	assert.Error(t, invalid.Validate())

	invalid = testSet()
	invalid.Thresholds[metric.FPS] = threshold.Threshold{Kind: metric.FPS, Limit: -1, Direction: threshold.MinIsBad}
	assert.Error(t, invalid.Validate())

	// Warning limit ordering is direction-aware.
	invalid = testSet()
	invalid.Thresholds[metric.MemoryUsage] = threshold.Threshold{
		Kind: metric.MemoryUsage, Limit: 512, WarningLimit: 600, Direction: threshold.MaxIsBad,
	}
	assert.Error(t, invalid.Validate())

	valid := testSet()
	valid.Thresholds[metric.FPS] = threshold.Threshold{
		Kind: metric.FPS, Limit: 72, WarningLimit: 80, Direction: threshold.MinIsBad,
	}
	assert.NoError(t, valid.Validate())
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	m, err := threshold.NewManager(testSet())
	require.NoError(t, err)

	invalid := testSet()
	invalid.ViolationTolerance = -1
	require.Error(t, m.UpdateThresholds(invalid))

	// Previous valid set remains active.
	current := m.Current()
	assert.Equal(t, 3, current.ViolationTolerance)

	updated := testSet()
	updated.Thresholds[metric.FPS] = threshold.Threshold{Kind: metric.FPS, Limit: 60, Direction: threshold.MinIsBad}
	require.NoError(t, m.UpdateThresholds(updated))
	assert.InDelta(t, 60.0, m.Current().Thresholds[metric.FPS].Limit, 1e-9)
	assert.Equal(t, 2, m.Current().Version)
}

func TestManagerValidatePerformance(t *testing.T) {
	m, err := threshold.NewManager(testSet())
	require.NoError(t, err)

	result := m.ValidatePerformance(sampleAt(time.Now(), map[metric.Kind]float64{
		metric.FPS: 90,
	}))
	assert.True(t, result.IsValid)
}
