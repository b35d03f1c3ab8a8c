package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/asrbench/internal/corpus"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show resolved configuration and the planned sweep",
	Long:  `Display the resolved configuration with inheritance indicators and the size of the sweep it describes. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inh := cfg.Inheritance

		fmt.Printf("=== RESOLVED CONFIGURATION ===\n")

		fmt.Printf("\n[Audio]\n")
		fmt.Printf("backend: %s %s\n", cfg.Audio.Backend, getInheritanceIndicator(inh.Audio.Backend))
		fmt.Printf("frames_per_buffer: %d %s\n", cfg.Audio.FramesPerBuffer, getInheritanceIndicator(inh.Audio.FramesPerBuffer))
		fmt.Printf("resample_quality: %s %s\n", cfg.Audio.ResampleQuality, getInheritanceIndicator(inh.Audio.ResampleQuality))

		fmt.Printf("\n[Corpus]\n")
		fmt.Printf("voice_dir: %s %s\n", cfg.Corpus.VoiceDir, getInheritanceIndicator(inh.Corpus.VoiceDir))
		fmt.Printf("noise_dir: %s %s\n", cfg.Corpus.NoiseDir, getInheritanceIndicator(inh.Corpus.NoiseDir))

		fmt.Printf("\n[Rig]\n")
		fmt.Printf("distance_m: %g %s\n", cfg.Rig.DistanceMeters, getInheritanceIndicator(inh.Rig.DistanceMeters))
		fmt.Printf("device_name: %s %s\n", cfg.Rig.DeviceName, getInheritanceIndicator(inh.Rig.DeviceName))
		fmt.Printf("input_device: %s %s\n", orDefault(cfg.Rig.InputDevice), getInheritanceIndicator(inh.Rig.InputDevice))
		fmt.Printf("output_device: %s %s\n", orDefault(cfg.Rig.OutputDevice), getInheritanceIndicator(inh.Rig.OutputDevice))

		fmt.Printf("\n[Levels] %s\n", getInheritanceIndicator(inh.Levels))
		for i, l := range cfg.Levels {
			fmt.Printf("%d. voice=%g%% noise=%g%%\n", i, l.Voice, l.Noise)
		}

		fmt.Printf("\n[Models] %s\n", getInheritanceIndicator(inh.Models))
		for i, m := range cfg.Models {
			fmt.Printf("%d. %s: %s timeout=%s\n", i, m.Name, m.URL, m.Timeout)
		}

		fmt.Printf("\n[Scoring]\n")
		fmt.Printf("metric: %s %s\n", cfg.Metric, getInheritanceIndicator(inh.Metric))
		fmt.Printf("workers: %d %s\n", cfg.Recognition.Workers, getInheritanceIndicator(inh.Workers))

		fmt.Printf("\n[Output]\n")
		fmt.Printf("directory: %s %s\n", cfg.Output.Directory, getInheritanceIndicator(inh.Output.Directory))
		fmt.Printf("format: %s %s\n", cfg.Output.Format, getInheritanceIndicator(inh.Output.Format))
		fmt.Printf("keep_artifacts: %t\n", cfg.Output.KeepArtifacts)

		fmt.Printf("\n=== PLANNED SWEEP ===\n")
		c, err := corpus.Scan(cfg.Corpus.VoiceDir, cfg.Corpus.NoiseDir, cfg.Extensions)
		if err != nil {
			fmt.Printf("corpus: %v\n", err)
			return nil
		}

		usable, excluded := c.Split()
		iterations := len(usable) * len(c.Noises) * len(cfg.Levels)
		fmt.Printf("voices: %d usable, %d without reference\n", len(usable), len(excluded))
		for _, ex := range excluded {
			fmt.Printf("  excluded: %s\n", ex.Sample.Path)
		}
		fmt.Printf("noises: %d\n", len(c.Noises))
		fmt.Printf("iterations: %d\n", iterations)
		fmt.Printf("recognitions: %d\n", iterations*len(cfg.Models))
		fmt.Printf("extensions: %s\n", strings.Join(cfg.Extensions, ", "))

		return nil
	},
}

func orDefault(name string) string {
	if name == "" {
		return "(system default)"
	}
	return name
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[unknown]"
	}
}
