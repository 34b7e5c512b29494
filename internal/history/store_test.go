package history_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/perfmond/internal/history"
	"codeberg.org/mutker/perfmond/internal/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(ts time.Time) *metric.Sample {
	return metric.NewSample(ts, map[metric.Kind]float64{metric.FPS: 60}, nil)
}

func TestStoreCountEviction(t *testing.T) {
	store := history.NewStore(3, time.Hour)
	start := time.Now()

	for i := 0; i < 5; i++ {
		store.Append(sampleAt(start.Add(time.Duration(i) * time.Second)))
	}

	assert.Equal(t, 3, store.Len())

	// Oldest entries are evicted first.
	samples := store.Snapshot()
	require.Len(t, samples, 3)
	assert.Equal(t, start.Add(2*time.Second), samples[0].Timestamp())
	assert.Equal(t, start.Add(4*time.Second), samples[2].Timestamp())
}

func TestStoreAgePrune(t *testing.T) {
	store := history.NewStore(100, time.Hour)
	now := time.Now()

	store.Append(sampleAt(now.Add(-2 * time.Hour)))
	store.Append(sampleAt(now.Add(-90 * time.Minute)))
	store.Append(sampleAt(now.Add(-10 * time.Minute)))

	evicted := store.Prune(now)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, store.Len())

	for _, s := range store.Snapshot() {
		assert.LessOrEqual(t, now.Sub(s.Timestamp()), time.Hour)
	}
}

func TestStoreQueryWindow(t *testing.T) {
	store := history.NewStore(100, time.Hour)
	now := time.Now()

	store.Append(sampleAt(now.Add(-30 * time.Minute)))
	store.Append(sampleAt(now.Add(-10 * time.Minute)))
	store.Append(sampleAt(now.Add(-1 * time.Minute)))

	samples := store.Query(now, 15*time.Minute)
	require.Len(t, samples, 2)
	assert.True(t, samples[0].Timestamp().Before(samples[1].Timestamp()))
}

func TestStoreQueryEmptyIsNonNil(t *testing.T) {
	store := history.NewStore(10, time.Hour)

	samples := store.Query(time.Now(), time.Minute)
	require.NotNil(t, samples)
	assert.Empty(t, samples)
}

func TestStoreClear(t *testing.T) {
	store := history.NewStore(10, time.Hour)
	store.Append(sampleAt(time.Now()))
	store.Clear()
	assert.Zero(t, store.Len())
}

func TestStoreNilAppendIgnored(t *testing.T) {
	store := history.NewStore(10, time.Hour)
	store.Append(nil)
	assert.Zero(t, store.Len())
}
