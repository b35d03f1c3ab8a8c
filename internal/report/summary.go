package report

import (
	"cmp"
	"slices"

	"github.com/audiolibrelab/asrbench/internal/sweep"
)

// SummaryRow aggregates the records sharing a model and a level pair.
type SummaryRow struct {
	ModelName      string
	VoiceLevel     float64
	NoiseLevel     float64
	Count          int
	MeanLevelDelta float64
	MeanErrorRate  float64
	MinErrorRate   float64
	MaxErrorRate   float64
}

type summaryKey struct {
	model        string
	voice, noise float64
}

// Summarize groups records by model and level pair. Rows are ordered by model,
// then by decreasing level delta, so each model reads from clean to noisy.
func Summarize(records []sweep.ResultRecord) []SummaryRow {
	groups := make(map[summaryKey]*SummaryRow)
	var order []summaryKey

	for _, r := range records {
		k := summaryKey{model: r.ModelName, voice: r.VoiceLevel, noise: r.NoiseLevel}
		row, ok := groups[k]
		if !ok {
			row = &SummaryRow{
				ModelName:    r.ModelName,
				VoiceLevel:   r.VoiceLevel,
				NoiseLevel:   r.NoiseLevel,
				MinErrorRate: r.ErrorRate,
				MaxErrorRate: r.ErrorRate,
			}
			groups[k] = row
			order = append(order, k)
		}
		row.Count++
		row.MeanLevelDelta += r.LevelDeltaDB
		row.MeanErrorRate += r.ErrorRate
		row.MinErrorRate = min(row.MinErrorRate, r.ErrorRate)
		row.MaxErrorRate = max(row.MaxErrorRate, r.ErrorRate)
	}

	rows := make([]SummaryRow, 0, len(order))
	for _, k := range order {
		row := groups[k]
		row.MeanLevelDelta /= float64(row.Count)
		row.MeanErrorRate /= float64(row.Count)
		rows = append(rows, *row)
	}

	slices.SortStableFunc(rows, func(a, b SummaryRow) int {
		if c := cmp.Compare(a.ModelName, b.ModelName); c != 0 {
			return c
		}
		return cmp.Compare(b.MeanLevelDelta, a.MeanLevelDelta)
	})
	return rows
}

// Merge concatenates the records of several tables. All tables must use the
// same metric.
func Merge(tables ...*Table) (*Table, error) {
	merged := &Table{}
	for i, t := range tables {
		if i == 0 {
			merged.Metric = t.Metric
		} else if t.Metric != merged.Metric {
			return nil, &MetricMismatchError{Want: merged.Metric, Got: t.Metric, Index: i}
		}
		merged.Records = append(merged.Records, t.Records...)
	}
	return merged, nil
}
