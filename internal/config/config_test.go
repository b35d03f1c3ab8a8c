package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/audiolibrelab/asrbench/internal/asr"
	"github.com/audiolibrelab/asrbench/internal/sweep"
)

const labConfig = `
active_config: lab

audio:
  frames_per_buffer: 512

definitions:
  models:
    - id: large
      url: http://localhost:7861/asr
      timeout: 30s
    - id: small
      url: http://localhost:7862/asr
      result_field: text

configs:
  default:
    corpus:
      voice_dir: /data/voice
      noise_dir: /data/noise
    rig:
      distance_m: 1
      device_name: mic-a
      input_device: USB Mic
    levels:
      - voice: 30
        noise: 5
      - voice: 30
        noise: 10
    models:
      - ref: large
    output:
      directory: /tmp/asrbench
  lab:
    rig:
      distance_m: 2.5
    models:
      - ref: small
      - ref: large
        timeout: 5s
    metric: wer
    output:
      keep_artifacts: true
`

func TestMergeConfigs_SelectionAndFallback(t *testing.T) {
	base := &Config{
		Audio:  AudioConfig{Backend: "portaudio", FramesPerBuffer: 256},
		Corpus: CorpusConfig{VoiceDir: "/voice", NoiseDir: "/noise"},
		Rig:    RigConfig{DistanceMeters: 1, DeviceName: "mic-a", InputDevice: "USB Mic"},
		Levels: []sweep.LevelPair{{Voice: 30, Noise: 5}},
		Models: []asr.Definition{{Name: "large", URL: "http://a"}},
		Metric: "cer",
		Output: OutputConfig{Directory: "~/results", Format: "tsv"},
	}

	profile := &Config{
		Rig:    RigConfig{DistanceMeters: 3, OutputDevice: "Speaker"},
		Models: []asr.Definition{{Name: "small", URL: "http://b"}},
		Output: OutputConfig{Format: "csv", KeepArtifacts: true},
	}

	result := mergeConfigs(base, profile)

	if result.Rig.DistanceMeters != 3 {
		t.Errorf("Expected distance 3, got %g", result.Rig.DistanceMeters)
	}
	if result.Rig.DeviceName != "mic-a" || result.Rig.InputDevice != "USB Mic" {
		t.Errorf("Expected rig labels inherited from base, got %+v", result.Rig)
	}
	if result.Rig.OutputDevice != "Speaker" {
		t.Errorf("Expected output device 'Speaker', got %s", result.Rig.OutputDevice)
	}

	// Lists are replaced as a whole, never merged element by element
	if len(result.Models) != 1 || result.Models[0].Name != "small" {
		t.Errorf("Expected only the profile model, got %+v", result.Models)
	}
	if len(result.Levels) != 1 || result.Levels[0].Noise != 5 {
		t.Errorf("Expected levels inherited from base, got %+v", result.Levels)
	}

	if result.Output.Directory != "~/results" || result.Output.Format != "csv" || !result.Output.KeepArtifacts {
		t.Errorf("Output not merged: %+v", result.Output)
	}
	if result.Audio.Backend != "portaudio" || result.Audio.FramesPerBuffer != 256 {
		t.Errorf("Audio not inherited: %+v", result.Audio)
	}

	if result.Inheritance == nil {
		t.Fatal("Inheritance tracking not initialized")
	}
	if result.Inheritance.Rig.DistanceMeters != "profile-specific" {
		t.Errorf("Expected distance to be profile-specific, got %s", result.Inheritance.Rig.DistanceMeters)
	}
	if result.Inheritance.Rig.DeviceName != "inherited" {
		t.Errorf("Expected device name to be inherited, got %s", result.Inheritance.Rig.DeviceName)
	}
	if result.Inheritance.Levels != "inherited" {
		t.Errorf("Expected levels to be inherited, got %s", result.Inheritance.Levels)
	}
	if result.Inheritance.Models != "profile-specific" {
		t.Errorf("Expected models to be profile-specific, got %s", result.Inheritance.Models)
	}
	if result.Inheritance.Output.Format != "profile-specific" {
		t.Errorf("Expected format to be profile-specific, got %s", result.Inheritance.Output.Format)
	}
}

func TestMergeConfigs_ProfileOnly(t *testing.T) {
	profile := &Config{
		Corpus: CorpusConfig{VoiceDir: "/v", NoiseDir: "/n"},
		Levels: []sweep.LevelPair{{Voice: 50, Noise: 50}},
		Metric: "wer",
	}

	result := mergeConfigs(nil, profile)

	if result.Corpus.VoiceDir != "/v" || result.Metric != "wer" || len(result.Levels) != 1 {
		t.Errorf("Profile values not preserved: %+v", result)
	}
	if result.Inheritance.Corpus.VoiceDir != "profile-specific" || result.Inheritance.Output.Directory != "profile-specific" {
		t.Errorf("Expected every value to be profile-specific without a base, got %+v", result.Inheritance)
	}
}

func TestMergeConfigs_EmptyProfile(t *testing.T) {
	base := &Config{Metric: "cer", Recognition: RecognitionConfig{Workers: 4}}

	result := mergeConfigs(base, nil)

	if result.Metric != "cer" || result.Recognition.Workers != 4 {
		t.Errorf("Expected base values, got %+v", result)
	}
	if result.Inheritance.Workers != "inherited" {
		t.Errorf("Expected workers to be inherited, got %s", result.Inheritance.Workers)
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"~/corpus/voice", filepath.Join(homeDir, "corpus/voice")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~", "~"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := expandPath(tt.input); got != tt.expected {
			t.Errorf("expandPath(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadWithProfile_Inheritance(t *testing.T) {
	configFile := createTempConfig(t, labConfig)
	defer os.Remove(configFile)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Rig.DistanceMeters != 2.5 {
		t.Errorf("Expected distance 2.5 from profile, got %g", cfg.Rig.DistanceMeters)
	}
	if cfg.Rig.DeviceName != "mic-a" {
		t.Errorf("Expected device name 'mic-a' from default, got %s", cfg.Rig.DeviceName)
	}
	if cfg.Corpus.VoiceDir != "/data/voice" {
		t.Errorf("Expected voice dir from default, got %s", cfg.Corpus.VoiceDir)
	}
	if len(cfg.Levels) != 2 || cfg.Levels[1].Noise != 10 {
		t.Errorf("Expected two inherited level pairs, got %+v", cfg.Levels)
	}

	if len(cfg.Models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(cfg.Models))
	}
	if cfg.Models[0].Name != "small" || cfg.Models[0].ResultField != "text" {
		t.Errorf("Unexpected first model: %+v", cfg.Models[0])
	}
	if cfg.Models[1].Name != "large" || cfg.Models[1].Timeout != 5*time.Second {
		t.Errorf("Expected timeout override on large, got %+v", cfg.Models[1])
	}

	if cfg.Metric != "wer" {
		t.Errorf("Expected metric 'wer', got %s", cfg.Metric)
	}
	if cfg.Output.Directory != "/tmp/asrbench" || cfg.Output.Format != "tsv" || !cfg.Output.KeepArtifacts {
		t.Errorf("Unexpected output config: %+v", cfg.Output)
	}

	// Defaults and global audio settings
	if cfg.Audio.Backend != "auto" || cfg.Audio.FramesPerBuffer != 512 || cfg.Audio.ResampleQuality != "balanced" {
		t.Errorf("Unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Recognition.Workers != 1 {
		t.Errorf("Expected 1 worker by default, got %d", cfg.Recognition.Workers)
	}
	if len(cfg.Extensions) != 4 {
		t.Errorf("Expected default extensions, got %v", cfg.Extensions)
	}

	if cfg.Inheritance.Rig.DeviceName != "inherited" || cfg.Inheritance.Models != "profile-specific" {
		t.Errorf("Unexpected inheritance: %+v", cfg.Inheritance)
	}
}

func TestLoadWithProfile_DefaultProfile(t *testing.T) {
	configFile := createTempConfig(t, labConfig)
	defer os.Remove(configFile)

	cfg, err := LoadWithProfile(configFile, "default")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Rig.DistanceMeters != 1 {
		t.Errorf("Expected distance 1, got %g", cfg.Rig.DistanceMeters)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].Timeout != 30*time.Second {
		t.Errorf("Expected large with its defined timeout, got %+v", cfg.Models)
	}
	if cfg.Metric != "cer" {
		t.Errorf("Expected default metric 'cer', got %s", cfg.Metric)
	}
	if cfg.Inheritance.Rig.DistanceMeters != "profile-specific" {
		t.Errorf("Expected default profile values to be profile-specific, got %s", cfg.Inheritance.Rig.DistanceMeters)
	}
}

func TestLoadWithProfile_Errors(t *testing.T) {
	if _, err := LoadWithProfile("", ""); err == nil {
		t.Error("Expected error without config file")
	}

	configFile := createTempConfig(t, labConfig)
	defer os.Remove(configFile)

	if _, err := LoadWithProfile(configFile, "missing"); err == nil {
		t.Error("Expected error for unknown profile")
	}

	badLevels := createTempConfig(t, `
definitions:
  models:
    - id: large
      url: http://localhost:7861/asr
configs:
  default:
    levels:
      - voice: 130
        noise: 5
    models:
      - ref: large
`)
	defer os.Remove(badLevels)

	if _, err := LoadWithProfile(badLevels, ""); err == nil {
		t.Error("Expected error for a level above 100 percent")
	}

	badMetric := createTempConfig(t, `
definitions:
  models:
    - id: large
      url: http://localhost:7861/asr
configs:
  default:
    metric: bleu
`)
	defer os.Remove(badMetric)

	if _, err := LoadWithProfile(badMetric, ""); err == nil {
		t.Error("Expected error for an unknown metric")
	}
}

func TestUpdateActiveConfig(t *testing.T) {
	configFile := createTempConfig(t, labConfig)
	defer os.Remove(configFile)

	if err := UpdateActiveConfig(configFile, "default"); err != nil {
		t.Fatalf("Failed to update active config: %v", err)
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		t.Fatalf("Failed to reload configuration: %v", err)
	}
	if rootConfig.ActiveConfig != "default" {
		t.Errorf("Expected active_config 'default', got %s", rootConfig.ActiveConfig)
	}

	if err := UpdateActiveConfig(configFile, "nope"); err == nil {
		t.Error("Expected error for unknown profile")
	}
}

func TestLoadWithProfile_SupportedExtensions(t *testing.T) {
	configFile := createTempConfig(t, labConfig)
	defer os.Remove(configFile)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Extensions) != 4 {
		t.Errorf("Expected default extensions, got %v", cfg.Extensions)
	}

	withExts := createTempConfig(t, labConfig+`
supported_audio_extensions:
  - wav
  - ogg
`)
	defer os.Remove(withExts)

	cfg, err = LoadWithProfile(withExts, "")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Extensions) != 2 || cfg.Extensions[1] != "ogg" {
		t.Errorf("Expected [wav ogg], got %v", cfg.Extensions)
	}
}
