package report

import (
	"testing"

	"github.com/audiolibrelab/asrbench/internal/score"
	"github.com/audiolibrelab/asrbench/internal/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	records := []sweep.ResultRecord{
		{ModelName: "small", VoiceLevel: 30, NoiseLevel: 10, LevelDeltaDB: 9, ErrorRate: 0.4},
		{ModelName: "large", VoiceLevel: 30, NoiseLevel: 10, LevelDeltaDB: 9, ErrorRate: 0.2},
		{ModelName: "large", VoiceLevel: 30, NoiseLevel: 5, LevelDeltaDB: 15, ErrorRate: 0.1},
		{ModelName: "large", VoiceLevel: 30, NoiseLevel: 10, LevelDeltaDB: 11, ErrorRate: 0.4},
		{ModelName: "large", VoiceLevel: 30, NoiseLevel: 5, LevelDeltaDB: 17, ErrorRate: 0.0},
	}

	rows := Summarize(records)
	require.Len(t, rows, 3)

	assert.Equal(t, "large", rows[0].ModelName)
	assert.Equal(t, 5.0, rows[0].NoiseLevel)
	assert.Equal(t, 2, rows[0].Count)
	assert.InDelta(t, 16.0, rows[0].MeanLevelDelta, 1e-12)
	assert.InDelta(t, 0.05, rows[0].MeanErrorRate, 1e-12)
	assert.Equal(t, 0.0, rows[0].MinErrorRate)
	assert.Equal(t, 0.1, rows[0].MaxErrorRate)

	assert.Equal(t, "large", rows[1].ModelName)
	assert.InDelta(t, 10.0, rows[1].MeanLevelDelta, 1e-12)
	assert.InDelta(t, 0.3, rows[1].MeanErrorRate, 1e-12)

	assert.Equal(t, "small", rows[2].ModelName)
	assert.Equal(t, 1, rows[2].Count)

	assert.Empty(t, Summarize(nil))
}

func TestMerge(t *testing.T) {
	a := &Table{Metric: score.MetricCER, Records: []sweep.ResultRecord{{VoiceID: "v1"}}}
	b := &Table{Metric: score.MetricCER, Records: []sweep.ResultRecord{{VoiceID: "v2"}, {VoiceID: "v3"}}}

	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, score.MetricCER, merged.Metric)
	assert.Len(t, merged.Records, 3)

	_, err = Merge(a, &Table{Metric: score.MetricWER})
	var mm *MetricMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, 1, mm.Index)
	assert.Equal(t, "table 2 uses WER, expected CER", err.Error())
}
