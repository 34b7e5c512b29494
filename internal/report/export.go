package report

import (
	"encoding/csv"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/perfmond/internal/errors"
	"codeberg.org/mutker/perfmond/internal/metric"
)

// Format identifies a supported export encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// IsValid returns whether the format is supported.
func (f Format) IsValid() bool {
	switch f {
	case FormatJSON, FormatCSV, FormatMarkdown, FormatHTML:
		return true
	default:
		return false
	}
}

// Envelope is the structured export result for machine consumption.
// FileSizeBytes always equals len(Payload).
type Envelope struct {
	Format             Format  `json:"format"`
	SessionID          string  `json:"session_id"`
	DataPointsExported int     `json:"data_points_exported"`
	Payload            string  `json:"payload"`
	FileSizeBytes      int     `json:"file_size_bytes"`
	Confidence         float64 `json:"confidence"`
}

type exportedSample struct {
	Timestamp time.Time          `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
	Custom    map[string]float64 `json:"custom,omitempty"`
}

type exportDocument struct {
	SessionID   string           `json:"session_id"`
	ExportedAt  time.Time        `json:"exported_at"`
	SampleCount int              `json:"sample_count"`
	Samples     []exportedSample `json:"samples"`
}

// Export serializes a session's windowed samples into the requested format.
// The confidence indicator comes from the trend analysis of the same window.
func Export(format Format, in Input) (Envelope, error) {
	errFactory := errors.New()

	if !format.IsValid() {
		return Envelope{}, errFactory.WithData(errors.ErrUnsupportedFormat, string(format))
	}

	var payload string
	var err error
	switch format {
	case FormatJSON:
		payload, err = exportJSON(in)
	case FormatCSV:
		payload, err = exportCSV(in)
	case FormatMarkdown:
		payload = GenerateMarkdown(in)
	case FormatHTML:
		payload = GenerateHTML(in)
	}
	if err != nil {
		return Envelope{}, errFactory.Wrap(errors.ErrExportFailed, err)
	}

	return Envelope{
		Format:             format,
		SessionID:          in.SessionID,
		DataPointsExported: len(in.Samples),
		Payload:            payload,
		FileSizeBytes:      len(payload),
		Confidence:         in.Trends.AnalysisConfidence,
	}, nil
}

func exportJSON(in Input) (string, error) {
	doc := exportDocument{
		SessionID:   in.SessionID,
		ExportedAt:  in.GeneratedAt,
		SampleCount: len(in.Samples),
		Samples:     make([]exportedSample, 0, len(in.Samples)),
	}

	for _, s := range in.Samples {
		es := exportedSample{
			Timestamp: s.Timestamp(),
			Metrics:   make(map[string]float64, s.Len()),
			Custom:    s.Custom(),
		}
		for kind, v := range s.Values() {
			es.Metrics[string(kind)] = v
		}
		doc.Samples = append(doc.Samples, es)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// exportCSV writes samples in long form: one row per metric reading.
func exportCSV(in Input) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write([]string{"timestamp", "metric", "value"}); err != nil {
		return "", err
	}

	for _, s := range in.Samples {
		ts := s.Timestamp().Format(time.RFC3339Nano)

		values := s.Values()
		kinds := make([]metric.Kind, 0, len(values))
		for kind := range values {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

		for _, kind := range kinds {
			row := []string{ts, string(kind), strconv.FormatFloat(values[kind], 'f', -1, 64)}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}

		custom := s.Custom()
		names := make([]string, 0, len(custom))
		for name := range custom {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			row := []string{ts, name, strconv.FormatFloat(custom[name], 'f', -1, 64)}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return b.String(), nil
}
