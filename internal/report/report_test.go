package report_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/perfmond/internal/analysis"
	"codeberg.org/mutker/perfmond/internal/metric"
	"codeberg.org/mutker/perfmond/internal/report"
	"codeberg.org/mutker/perfmond/internal/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput(t *testing.T, sampleCount int) report.Input {
	t.Helper()

	start := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	samples := make([]*metric.Sample, 0, sampleCount)
	for i := 0; i < sampleCount; i++ {
		samples = append(samples, metric.NewSample(
			start.Add(time.Duration(i)*time.Second),
			map[metric.Kind]float64{
				metric.FPS:         60 - float64(i),
				metric.MemoryUsage: 300 + 5*float64(i),
			},
			map[string]float64{"draw_calls": float64(100 + i)},
		))
	}

	return report.Input{
		SessionID:       "sess-1",
		GeneratedAt:     start.Add(time.Minute),
		Samples:         samples,
		Statistics:      analysis.ComputeStatistics(samples, 1.0, start.Add(time.Minute)),
		Trends:          analysis.AnalyzeTrends(samples, time.Minute),
		TotalSamples:    uint64(sampleCount),
		TotalViolations: 2,
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	in := testInput(t, 12)

	env, err := report.Export(report.FormatJSON, in)
	require.NoError(t, err)

	assert.Equal(t, report.FormatJSON, env.Format)
	assert.Equal(t, "sess-1", env.SessionID)
	assert.Equal(t, 12, env.DataPointsExported)
	assert.Equal(t, len(env.Payload), env.FileSizeBytes)

	var doc struct {
		SessionID   string `json:"session_id"`
		SampleCount int    `json:"sample_count"`
		Samples     []struct {
			Timestamp time.Time          `json:"timestamp"`
			Metrics   map[string]float64 `json:"metrics"`
			Custom    map[string]float64 `json:"custom"`
		} `json:"samples"`
	}
	require.NoError(t, json.Unmarshal([]byte(env.Payload), &doc))

	assert.Equal(t, "sess-1", doc.SessionID)
	assert.Equal(t, 12, doc.SampleCount)
	require.Len(t, doc.Samples, 12)
	assert.InDelta(t, 60.0, doc.Samples[0].Metrics[string(metric.FPS)], 1e-9)
	assert.InDelta(t, 100.0, doc.Samples[0].Custom["draw_calls"], 1e-9)
}

func TestExportCSVLongForm(t *testing.T) {
	in := testInput(t, 3)

	env, err := report.Export(report.FormatCSV, in)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(env.Payload), "\n")
	assert.Equal(t, "timestamp,metric,value", lines[0])

	// Header plus one row per reading: 2 metrics + 1 custom per sample.
	assert.Len(t, lines, 1+3*3)
	assert.Equal(t, 3, env.DataPointsExported)
	assert.Equal(t, len(env.Payload), env.FileSizeBytes)
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := report.Export(report.Format("xml"), testInput(t, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestExportEmptyWindow(t *testing.T) {
	in := testInput(t, 0)

	env, err := report.Export(report.FormatJSON, in)
	require.NoError(t, err)
	assert.Zero(t, env.DataPointsExported)
	assert.Equal(t, len(env.Payload), env.FileSizeBytes)
	assert.NotEmpty(t, env.Payload)
}

func TestGenerateMarkdownSections(t *testing.T) {
	doc := report.GenerateMarkdown(testInput(t, 20))

	assert.Contains(t, doc, "# Performance Monitoring Report")
	assert.Contains(t, doc, "## Overall Status")
	assert.Contains(t, doc, "## Summary Statistics")
	assert.Contains(t, doc, "## Recommendations")
	assert.Contains(t, doc, "sess-1")
	assert.Contains(t, doc, string(metric.FPS))
}

func TestGenerateMarkdownNoRecommendations(t *testing.T) {
	in := testInput(t, 20)
	in.Trends.Recommendations = nil

	doc := report.GenerateMarkdown(in)
	assert.Contains(t, doc, "No action needed")
}

func TestGenerateHTMLEscapesSessionID(t *testing.T) {
	in := testInput(t, 5)
	in.SessionID = "<script>"

	doc := report.GenerateHTML(in)
	assert.NotContains(t, doc, "<script>")
	assert.Contains(t, doc, "&lt;script&gt;")
}

func TestSummarizeViolations(t *testing.T) {
	now := time.Now()
	counts := report.SummarizeViolations([]threshold.Violation{
		{Kind: metric.FPS, Severity: threshold.Warning, Timestamp: now},
		{Kind: metric.FPS, Severity: threshold.Warning, Timestamp: now},
		{Kind: metric.MemoryUsage, Severity: threshold.Critical, Timestamp: now},
	})

	assert.Equal(t, 2, counts[threshold.Warning])
	assert.Equal(t, 1, counts[threshold.Critical])
	assert.Zero(t, counts[threshold.Info])
}
