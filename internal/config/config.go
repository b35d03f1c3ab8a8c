package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/audiolibrelab/asrbench/internal/asr"
	"github.com/audiolibrelab/asrbench/internal/audio"
	"github.com/audiolibrelab/asrbench/internal/mix"
	"github.com/audiolibrelab/asrbench/internal/report"
	"github.com/audiolibrelab/asrbench/internal/score"
	"github.com/audiolibrelab/asrbench/internal/sweep"
	"github.com/spf13/viper"
)

const (
	inherited       = "inherited"
	profileSpecific = "profile-specific"
)

type DefinitionsConfig struct {
	Models []ModelDefinition `mapstructure:"models" yaml:"models"`
}

// ModelDefinition describes one recognition endpoint that profiles refer to by id.
type ModelDefinition struct {
	ID          string        `mapstructure:"id" yaml:"id"`
	Type        string        `mapstructure:"type" yaml:"type"`
	URL         string        `mapstructure:"url" yaml:"url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ResultField string        `mapstructure:"result_field" yaml:"result_field"`
}

type ModelReference struct {
	Ref     string        `mapstructure:"ref" yaml:"ref"`
	Timeout time.Duration `mapstructure:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type RootConfig struct {
	ActiveConfig             string                    `mapstructure:"active_config" yaml:"active_config"`
	Audio                    *AudioConfig              `mapstructure:"audio,omitempty" yaml:"audio,omitempty"`
	Definitions              *DefinitionsConfig        `mapstructure:"definitions,omitempty" yaml:"definitions,omitempty"`
	Configs                  map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
	SupportedAudioExtensions []string                  `mapstructure:"supported_audio_extensions" yaml:"supported_audio_extensions"`
}

// Config is a fully resolved profile.
type Config struct {
	Audio         AudioConfig       `mapstructure:"audio" yaml:"audio"`
	Corpus        CorpusConfig      `mapstructure:"corpus" yaml:"corpus"`
	Rig           RigConfig         `mapstructure:"rig" yaml:"rig"`
	Levels        []sweep.LevelPair `mapstructure:"levels" yaml:"levels"`
	Models        []asr.Definition  `mapstructure:"models" yaml:"models"`
	Metric        string            `mapstructure:"metric" yaml:"metric"`
	Recognition   RecognitionConfig `mapstructure:"recognition" yaml:"recognition"`
	Output        OutputConfig      `mapstructure:"output" yaml:"output"`
	Notifications bool              `mapstructure:"notifications" yaml:"notifications"`
	Extensions    []string          `mapstructure:"-" yaml:"supported_audio_extensions"`

	// Internal field to track inheritance information for info command
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

type ConfigProfile struct {
	Audio         AudioConfig       `mapstructure:"audio" yaml:"audio"`
	Corpus        CorpusConfig      `mapstructure:"corpus" yaml:"corpus"`
	Rig           RigConfig         `mapstructure:"rig" yaml:"rig"`
	Levels        []sweep.LevelPair `mapstructure:"levels" yaml:"levels"`
	Models        []ModelReference  `mapstructure:"models" yaml:"models"`
	Metric        string            `mapstructure:"metric" yaml:"metric"`
	Recognition   RecognitionConfig `mapstructure:"recognition" yaml:"recognition"`
	Output        OutputConfig      `mapstructure:"output" yaml:"output"`
	Notifications *bool             `mapstructure:"notifications" yaml:"notifications,omitempty"`
}

type InheritanceInfo struct {
	Audio struct {
		Backend         string
		FramesPerBuffer string
		ResampleQuality string
	}
	Corpus struct {
		VoiceDir string
		NoiseDir string
	}
	Rig struct {
		DistanceMeters string
		DeviceName     string
		InputDevice    string
		OutputDevice   string
	}
	Levels  string
	Models  string
	Metric  string
	Workers string
	Output  struct {
		Directory string
		Format    string
	}
}

type AudioConfig struct {
	Backend         string `mapstructure:"backend" yaml:"backend"` // "portaudio", "auto"
	FramesPerBuffer int    `mapstructure:"frames_per_buffer" yaml:"frames_per_buffer"`
	ResampleQuality string `mapstructure:"resample_quality" yaml:"resample_quality"` // "fast", "balanced", "best"
}

type CorpusConfig struct {
	VoiceDir string   `mapstructure:"voice_dir" yaml:"voice_dir"`
	NoiseDir string   `mapstructure:"noise_dir" yaml:"noise_dir"`
	Voices   []string `mapstructure:"voices" yaml:"voices,omitempty"`
	Noises   []string `mapstructure:"noises" yaml:"noises,omitempty"`
}

// RigConfig identifies the physical setup. DistanceMeters and DeviceName are
// labels copied into every result row; the devices are opened for playback and capture.
type RigConfig struct {
	DistanceMeters float64 `mapstructure:"distance_m" yaml:"distance_m"`
	DeviceName     string  `mapstructure:"device_name" yaml:"device_name"`
	InputDevice    string  `mapstructure:"input_device" yaml:"input_device"`
	OutputDevice   string  `mapstructure:"output_device" yaml:"output_device"`
}

type RecognitionConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

type OutputConfig struct {
	Directory     string `mapstructure:"directory" yaml:"directory"`
	Format        string `mapstructure:"format" yaml:"format"`
	KeepArtifacts bool   `mapstructure:"keep_artifacts" yaml:"keep_artifacts"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		Backend:         "auto",
		FramesPerBuffer: audio.DefaultFramesPerBuffer,
		ResampleQuality: "balanced",
	},
	Metric:      string(score.MetricCER),
	Recognition: RecognitionConfig{Workers: 1},
	Output: OutputConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "asrbench", "results"),
		Format:    string(report.FormatTSV),
	},
	Extensions: audio.DefaultExtensions,
}

// Default returns the built-in settings used when no config file is loaded.
func Default() *Config {
	c := defaultConfig
	c.Extensions = slices.Clone(defaultConfig.Extensions)
	c.Inheritance = &InheritanceInfo{}
	return &c
}

func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	selectedConfig, err := convertProfileToConfig(selectedProfile, rootConfig.Definitions)
	if err != nil {
		return nil, fmt.Errorf("error resolving configuration profile '%s': %w", configName, err)
	}

	// Merge with default config if it exists and we're not already using default
	var base *Config
	if configName != "default" {
		if defaultProfile, exists := rootConfig.Configs["default"]; exists {
			base, err = convertProfileToConfig(defaultProfile, rootConfig.Definitions)
			if err != nil {
				return nil, fmt.Errorf("error resolving default configuration: %w", err)
			}
		}
	}
	selectedConfig = mergeConfigs(base, selectedConfig)

	// Global audio settings fill whatever the profiles left unset
	if rootConfig.Audio != nil {
		if selectedConfig.Audio.Backend == "" {
			selectedConfig.Audio.Backend = rootConfig.Audio.Backend
		}
		if selectedConfig.Audio.FramesPerBuffer == 0 {
			selectedConfig.Audio.FramesPerBuffer = rootConfig.Audio.FramesPerBuffer
		}
		if selectedConfig.Audio.ResampleQuality == "" {
			selectedConfig.Audio.ResampleQuality = rootConfig.Audio.ResampleQuality
		}
	}

	selectedConfig.Extensions = rootConfig.SupportedAudioExtensions
	applyDefaults(selectedConfig)

	selectedConfig.Corpus.VoiceDir = expandPath(selectedConfig.Corpus.VoiceDir)
	selectedConfig.Corpus.NoiseDir = expandPath(selectedConfig.Corpus.NoiseDir)
	selectedConfig.Output.Directory = expandPath(selectedConfig.Output.Directory)

	if err := selectedConfig.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, ok := rootConfig.Configs[newActiveConfig]; !ok {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// convertProfileToConfig converts a ConfigProfile to Config by resolving model references
func convertProfileToConfig(profile *ConfigProfile, definitions *DefinitionsConfig) (*Config, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}

	config := &Config{
		Audio:       profile.Audio,
		Corpus:      profile.Corpus,
		Rig:         profile.Rig,
		Levels:      profile.Levels,
		Metric:      profile.Metric,
		Recognition: profile.Recognition,
		Output:      profile.Output,
	}
	if profile.Notifications != nil {
		config.Notifications = *profile.Notifications
	}

	for i, ref := range profile.Models {
		if ref.Ref == "" {
			return nil, fmt.Errorf("models[%d]: 'ref' is required", i)
		}

		definition := findModel(definitions, ref.Ref)
		if definition == nil {
			return nil, fmt.Errorf("models[%d]: reference '%s' not found in definitions", i, ref.Ref)
		}

		model := asr.Definition{
			Name:        definition.ID,
			Type:        definition.Type,
			URL:         definition.URL,
			Timeout:     definition.Timeout,
			ResultField: definition.ResultField,
		}
		if ref.Timeout > 0 {
			model.Timeout = ref.Timeout
		}

		config.Models = append(config.Models, model)
	}

	return config, nil
}

func findModel(definitions *DefinitionsConfig, id string) *ModelDefinition {
	if definitions == nil {
		return nil
	}
	for i := range definitions.Models {
		if definitions.Models[i].ID == id {
			return &definitions.Models[i]
		}
	}
	return nil
}

// mergeConfigs resolves a profile against the default one. Every field set in
// the profile wins; unset fields fall back to the base. Levels and models are
// taken as a whole list from whichever side defines them.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{Inheritance: &InheritanceInfo{}}
	inh := result.Inheritance

	if base != nil {
		result.Audio = base.Audio
		result.Corpus = base.Corpus
		result.Rig = base.Rig
		result.Levels = base.Levels
		result.Models = base.Models
		result.Metric = base.Metric
		result.Recognition = base.Recognition
		result.Output = base.Output
		result.Notifications = base.Notifications
	}

	pick := func(dst *string, val string, status *string) {
		if val != "" {
			*dst = val
			*status = profileSpecific
		} else {
			*status = inherited
		}
	}

	if profile == nil {
		profile = &Config{}
	}

	pick(&result.Audio.Backend, profile.Audio.Backend, &inh.Audio.Backend)
	pick(&result.Audio.ResampleQuality, profile.Audio.ResampleQuality, &inh.Audio.ResampleQuality)
	inh.Audio.FramesPerBuffer = inherited
	if profile.Audio.FramesPerBuffer != 0 {
		result.Audio.FramesPerBuffer = profile.Audio.FramesPerBuffer
		inh.Audio.FramesPerBuffer = profileSpecific
	}

	pick(&result.Corpus.VoiceDir, profile.Corpus.VoiceDir, &inh.Corpus.VoiceDir)
	pick(&result.Corpus.NoiseDir, profile.Corpus.NoiseDir, &inh.Corpus.NoiseDir)
	if len(profile.Corpus.Voices) > 0 {
		result.Corpus.Voices = profile.Corpus.Voices
	}
	if len(profile.Corpus.Noises) > 0 {
		result.Corpus.Noises = profile.Corpus.Noises
	}

	inh.Rig.DistanceMeters = inherited
	if profile.Rig.DistanceMeters != 0 {
		result.Rig.DistanceMeters = profile.Rig.DistanceMeters
		inh.Rig.DistanceMeters = profileSpecific
	}
	pick(&result.Rig.DeviceName, profile.Rig.DeviceName, &inh.Rig.DeviceName)
	pick(&result.Rig.InputDevice, profile.Rig.InputDevice, &inh.Rig.InputDevice)
	pick(&result.Rig.OutputDevice, profile.Rig.OutputDevice, &inh.Rig.OutputDevice)

	inh.Levels = inherited
	if len(profile.Levels) > 0 {
		result.Levels = profile.Levels
		inh.Levels = profileSpecific
	}
	inh.Models = inherited
	if len(profile.Models) > 0 {
		result.Models = profile.Models
		inh.Models = profileSpecific
	}

	pick(&result.Metric, profile.Metric, &inh.Metric)

	inh.Workers = inherited
	if profile.Recognition.Workers != 0 {
		result.Recognition.Workers = profile.Recognition.Workers
		inh.Workers = profileSpecific
	}

	pick(&result.Output.Directory, profile.Output.Directory, &inh.Output.Directory)
	pick(&result.Output.Format, profile.Output.Format, &inh.Output.Format)

	// Booleans cannot be told apart from unset once resolved, so true on either side wins
	result.Output.KeepArtifacts = result.Output.KeepArtifacts || profile.Output.KeepArtifacts
	result.Notifications = result.Notifications || profile.Notifications

	// Without a base every value comes from the profile itself
	if base == nil {
		markAllProfileSpecific(inh)
	}

	return result
}

func markAllProfileSpecific(inh *InheritanceInfo) {
	for _, s := range []*string{
		&inh.Audio.Backend, &inh.Audio.FramesPerBuffer, &inh.Audio.ResampleQuality,
		&inh.Corpus.VoiceDir, &inh.Corpus.NoiseDir,
		&inh.Rig.DistanceMeters, &inh.Rig.DeviceName, &inh.Rig.InputDevice, &inh.Rig.OutputDevice,
		&inh.Levels, &inh.Models, &inh.Metric, &inh.Workers,
		&inh.Output.Directory, &inh.Output.Format,
	} {
		*s = profileSpecific
	}
}

func applyDefaults(c *Config) {
	if c.Audio.Backend == "" {
		c.Audio.Backend = defaultConfig.Audio.Backend
	}
	if c.Audio.FramesPerBuffer == 0 {
		c.Audio.FramesPerBuffer = defaultConfig.Audio.FramesPerBuffer
	}
	if c.Audio.ResampleQuality == "" {
		c.Audio.ResampleQuality = defaultConfig.Audio.ResampleQuality
	}
	if c.Metric == "" {
		c.Metric = defaultConfig.Metric
	}
	if c.Recognition.Workers == 0 {
		c.Recognition.Workers = defaultConfig.Recognition.Workers
	}
	if c.Output.Directory == "" {
		c.Output.Directory = defaultConfig.Output.Directory
	}
	if c.Output.Format == "" {
		c.Output.Format = defaultConfig.Output.Format
	}
	if len(c.Extensions) == 0 {
		c.Extensions = defaultConfig.Extensions
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Validate checks the resolved run parameters. Corpus directories are only
// checked for presence; Scan reports unreadable ones.
func (c *Config) Validate() error {
	backend := audio.BackendType(strings.ToLower(c.Audio.Backend))
	if backend != audio.BackendTypeAuto && !slices.Contains(audio.GetAvailableBackends(), backend) {
		return fmt.Errorf("audio.backend must be one of auto, %v, got: %s", audio.GetAvailableBackends(), c.Audio.Backend)
	}
	if c.Audio.FramesPerBuffer < 0 {
		return fmt.Errorf("audio.frames_per_buffer must be >= 0, got %d", c.Audio.FramesPerBuffer)
	}
	if _, err := mix.ParseQuality(c.Audio.ResampleQuality); err != nil {
		return fmt.Errorf("audio.resample_quality: %w", err)
	}
	if c.Rig.DistanceMeters < 0 {
		return fmt.Errorf("rig.distance_m must be >= 0, got %g", c.Rig.DistanceMeters)
	}

	for i, l := range c.Levels {
		if err := mix.ValidateLevel(l.Voice); err != nil {
			return fmt.Errorf("levels[%d].voice: %w", i, err)
		}
		if err := mix.ValidateLevel(l.Noise); err != nil {
			return fmt.Errorf("levels[%d].noise: %w", i, err)
		}
	}

	if _, err := score.ParseMetric(c.Metric); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if c.Recognition.Workers < 0 {
		return fmt.Errorf("recognition.workers must be >= 0, got %d", c.Recognition.Workers)
	}

	return nil
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("ASRBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateDefinitions(rootConfig.Definitions); err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section cannot be empty")
	}

	for configName, configProfile := range rootConfig.Configs {
		if configProfile == nil {
			continue
		}
		if err := validateModelReferences(configProfile.Models, rootConfig.Definitions); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
		}
	}

	return &rootConfig, nil
}

// validateDefinitions validates the definitions section
func validateDefinitions(definitions *DefinitionsConfig) error {
	if definitions == nil {
		return fmt.Errorf("definitions section is required")
	}

	if len(definitions.Models) == 0 {
		return fmt.Errorf("definitions.models cannot be empty")
	}

	seenIDs := make(map[string]bool)

	for i, def := range definitions.Models {
		prefix := fmt.Sprintf("definitions.models[%d]", i)

		if def.ID == "" {
			return fmt.Errorf("%s: 'id' is required", prefix)
		}
		if seenIDs[def.ID] {
			return fmt.Errorf("%s: duplicate ID '%s'", prefix, def.ID)
		}
		seenIDs[def.ID] = true

		if err := validateModelDefinition(def, prefix); err != nil {
			return err
		}
	}

	return nil
}

// validateModelDefinition validates a single model definition
func validateModelDefinition(def ModelDefinition, prefix string) error {
	modelType := strings.ToLower(def.Type)
	if modelType == "" || modelType == asr.TypeHTTP {
		if def.URL == "" {
			return fmt.Errorf("%s: 'url' is required for http models", prefix)
		}
		if !strings.HasPrefix(def.URL, "http://") && !strings.HasPrefix(def.URL, "https://") {
			return fmt.Errorf("%s: 'url' must start with http:// or https://, got: %s", prefix, def.URL)
		}
	}

	if def.Timeout < 0 {
		return fmt.Errorf("%s: 'timeout' must be >= 0, got: %s", prefix, def.Timeout)
	}

	return nil
}

// validateModelReferences validates model references in a config profile
func validateModelReferences(models []ModelReference, definitions *DefinitionsConfig) error {
	for i, ref := range models {
		prefix := fmt.Sprintf("models[%d]", i)

		if ref.Ref == "" {
			return fmt.Errorf("%s: 'ref' is required", prefix)
		}

		if findModel(definitions, ref.Ref) == nil {
			return fmt.Errorf("%s: references undefined model definition '%s'", prefix, ref.Ref)
		}

		if ref.Timeout < 0 {
			return fmt.Errorf("%s: timeout override must be >= 0, got %s", prefix, ref.Timeout)
		}
	}

	return nil
}

// ModelNames returns the names of the resolved models in order.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		names = append(names, m.Name)
	}
	return names
}
