package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/audiolibrelab/asrbench/internal/config"
)

const twoProfiles = `
active_config: default

definitions:
  models:
    - id: large
      url: http://localhost:7861/asr

configs:
  default:
    models:
      - ref: large
  lab:
    metric: wer
`

func TestConfigUse_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, ".config", "asrbench.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(twoProfiles), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfgFile, profile = "", ""
	t.Cleanup(func() { cfgFile = "" })

	rootCmd.SetArgs([]string{"config", "use", "lab"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config use failed: %v", err)
	}

	if cfgFile != path {
		t.Errorf("Expected default config path %s, got %s", path, cfgFile)
	}

	root, err := config.ValidateConfigurationFormat(path)
	if err != nil {
		t.Fatalf("Failed to reload configuration: %v", err)
	}
	if root.ActiveConfig != "lab" {
		t.Errorf("Expected active_config 'lab', got %s", root.ActiveConfig)
	}
}
