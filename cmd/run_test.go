package cmd

import (
	"testing"

	"github.com/audiolibrelab/asrbench/internal/config"
	"github.com/audiolibrelab/asrbench/internal/sweep"
	"github.com/spf13/cobra"
)

func TestParseLevels(t *testing.T) {
	levels, err := parseLevels([]string{"30:5", " 100 : 0 ", "12.5:7.5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []sweep.LevelPair{{Voice: 30, Noise: 5}, {Voice: 100, Noise: 0}, {Voice: 12.5, Noise: 7.5}}
	if len(levels) != len(expected) {
		t.Fatalf("Expected %d levels, got %d", len(expected), len(levels))
	}
	for i := range expected {
		if levels[i] != expected[i] {
			t.Errorf("level %d: expected %+v, got %+v", i, expected[i], levels[i])
		}
	}

	for _, bad := range []string{"30", "x:5", "30:y", ""} {
		if _, err := parseLevels([]string{bad}); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestApplyRunOverrides(t *testing.T) {
	c := &cobra.Command{}
	addRunFlags(c)
	if err := c.Flags().Parse([]string{"--distance", "2.5", "--level", "30:5", "--level", "30:10", "--metric", "wer"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	base := config.Default()
	base.Rig.DeviceName = "mic-a"
	base.Levels = []sweep.LevelPair{{Voice: 50, Noise: 50}}

	if err := applyRunOverrides(c, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if base.Rig.DistanceMeters != 2.5 {
		t.Errorf("Expected distance 2.5, got %g", base.Rig.DistanceMeters)
	}
	if base.Rig.DeviceName != "mic-a" {
		t.Errorf("Expected device name to stay 'mic-a', got %s", base.Rig.DeviceName)
	}
	if len(base.Levels) != 2 || base.Levels[1].Noise != 10 {
		t.Errorf("Expected levels replaced by flags, got %+v", base.Levels)
	}
	if base.Metric != "wer" {
		t.Errorf("Expected metric 'wer', got %s", base.Metric)
	}
}
