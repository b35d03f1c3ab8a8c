package cmd

import (
	"path/filepath"
	"testing"

	"github.com/audiolibrelab/asrbench/internal/report"
	"github.com/audiolibrelab/asrbench/internal/score"
	"github.com/audiolibrelab/asrbench/internal/sweep"
)

func TestSummary_WritesMergedTable(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "run1.tsv")
	second := filepath.Join(dir, "run2.csv")
	merged := filepath.Join(dir, "result.txt")

	rec := sweep.ResultRecord{VoiceID: "v1", NoiseID: "hum", VoiceLevel: 50, NoiseLevel: 10,
		DistanceMeters: 1, DeviceName: "mic-a", LevelDeltaDB: 12.5, ModelName: "large", ErrorRate: 0.25}
	other := rec
	other.DistanceMeters = 2
	other.ErrorRate = 0.5

	if err := report.WriteTable(first, report.FormatTSV, score.MetricCER, []sweep.ResultRecord{rec}); err != nil {
		t.Fatalf("write first table: %v", err)
	}
	if err := report.WriteTable(second, report.FormatCSV, score.MetricCER, []sweep.ResultRecord{rec, other}); err != nil {
		t.Fatalf("write second table: %v", err)
	}

	cfgFile, profile = "", ""
	rootCmd.SetArgs([]string{"summary", first, second, "--output", merged})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	table, err := report.ReadTable(merged)
	if err != nil {
		t.Fatalf("read merged table: %v", err)
	}
	if table.Metric != score.MetricCER {
		t.Errorf("Expected metric cer, got %s", table.Metric)
	}
	if len(table.Records) != 3 {
		t.Fatalf("Expected 3 merged rows, got %d", len(table.Records))
	}
	if table.Records[2].DistanceMeters != 2 || table.Records[2].ErrorRate != 0.5 {
		t.Errorf("Unexpected last row: %+v", table.Records[2])
	}
}
