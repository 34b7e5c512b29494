// Package report renders session statistics, trends and violation summaries
// into human-readable documents and machine-readable export envelopes.
package report

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"codeberg.org/mutker/perfmond/internal/analysis"
	"codeberg.org/mutker/perfmond/internal/metric"
	"codeberg.org/mutker/perfmond/internal/threshold"
)

// Input is the read-only view of one session used to build reports and
// exports.
type Input struct {
	SessionID        string
	GeneratedAt      time.Time
	Samples          []*metric.Sample
	Statistics       analysis.Statistics
	Trends           analysis.TrendResult
	TotalSamples     uint64
	TotalViolations  uint64
	SuppressedAlerts uint64
}

// GenerateMarkdown renders the monitoring report as a Markdown document.
func GenerateMarkdown(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Performance Monitoring Report\n\n")
	fmt.Fprintf(&b, "- Session: `%s`\n", in.SessionID)
	fmt.Fprintf(&b, "- Generated: %s\n", in.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Samples analyzed: %d (lifetime %d)\n", in.Statistics.SampleCount, in.TotalSamples)
	fmt.Fprintf(&b, "- Violations recorded: %d (alerts suppressed: %d)\n\n", in.TotalViolations, in.SuppressedAlerts)

	fmt.Fprintf(&b, "## Overall Status\n\n")
	fmt.Fprintf(&b, "- Health score: %.2f\n", in.Statistics.HealthScore)
	fmt.Fprintf(&b, "- Stability score: %.2f\n", in.Statistics.StabilityScore)
	fmt.Fprintf(&b, "- Trend: %s (strength %.2f, confidence %.2f)\n\n",
		in.Trends.OverallTrend, in.Trends.TrendStrength, in.Trends.AnalysisConfidence)

	fmt.Fprintf(&b, "## Summary Statistics\n\n")
	fmt.Fprintf(&b, "| Metric | Average | Min | Max | StdDev |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	for _, kind := range sortedKinds(in.Statistics.Metrics) {
		ms := in.Statistics.Metrics[kind]
		fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.2f | %.2f |\n", kind, ms.Average, ms.Min, ms.Max, ms.StdDev)
	}
	b.WriteString("\n")

	if len(in.Trends.PerMetric) > 0 {
		fmt.Fprintf(&b, "## Trends\n\n")
		for _, kind := range sortedTrendKinds(in.Trends.PerMetric) {
			mt := in.Trends.PerMetric[kind]
			fmt.Fprintf(&b, "- %s: %s (strength %.2f)\n", kind, mt.Direction, mt.Strength)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Recommendations\n\n")
	if len(in.Trends.Recommendations) == 0 {
		b.WriteString("- No action needed; all monitored metrics are stable or improving.\n")
	} else {
		for _, rec := range in.Trends.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	return b.String()
}

// GenerateHTML renders the monitoring report as a standalone HTML document.
func GenerateHTML(in Input) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head><title>Performance Monitoring Report</title></head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>Performance Monitoring Report</h1>\n")
	fmt.Fprintf(&b, "<p>Session: <code>%s</code><br>Generated: %s</p>\n",
		html.EscapeString(in.SessionID), in.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "<h2>Overall Status</h2>\n")
	fmt.Fprintf(&b, "<p>Health %.2f, stability %.2f, trend %s (confidence %.2f)</p>\n",
		in.Statistics.HealthScore, in.Statistics.StabilityScore,
		in.Trends.OverallTrend, in.Trends.AnalysisConfidence)

	b.WriteString("<h2>Summary Statistics</h2>\n<table border=\"1\">\n")
	b.WriteString("<tr><th>Metric</th><th>Average</th><th>Min</th><th>Max</th><th>StdDev</th></tr>\n")
	for _, kind := range sortedKinds(in.Statistics.Metrics) {
		ms := in.Statistics.Metrics[kind]
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%.2f</td><td>%.2f</td><td>%.2f</td><td>%.2f</td></tr>\n",
			html.EscapeString(kind.String()), ms.Average, ms.Min, ms.Max, ms.StdDev)
	}
	b.WriteString("</table>\n")

	b.WriteString("<h2>Recommendations</h2>\n<ul>\n")
	if len(in.Trends.Recommendations) == 0 {
		b.WriteString("<li>No action needed.</li>\n")
	} else {
		for _, rec := range in.Trends.Recommendations {
			fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(rec))
		}
	}
	b.WriteString("</ul>\n</body>\n</html>\n")

	return b.String()
}

// SummarizeViolations folds a violation list into per-severity counts.
func SummarizeViolations(violations []threshold.Violation) map[threshold.Severity]int {
	out := make(map[threshold.Severity]int)
	for _, v := range violations {
		out[v.Severity]++
	}

	return out
}

func sortedKinds(m map[metric.Kind]analysis.MetricStats) []metric.Kind {
	kinds := make([]metric.Kind, 0, len(m))
	for kind := range m {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}

func sortedTrendKinds(m map[metric.Kind]analysis.MetricTrend) []metric.Kind {
	kinds := make([]metric.Kind, 0, len(m))
	for kind := range m {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}
