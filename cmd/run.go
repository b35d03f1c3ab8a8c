package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/audiolibrelab/asrbench/internal/config"
	"github.com/audiolibrelab/asrbench/internal/service"
	"github.com/audiolibrelab/asrbench/internal/sweep"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a noise sweep over the corpus",
	Long: `Run the full cross product of voice samples, noise samples and level pairs.
Each mix is played through the loudspeaker and captured with the microphone,
then every selected model transcribes the capture.

Flags override the values of the active profile. Levels are given as
voice:noise percentages and may be repeated:

  asrbench run --distance 1.5 --device-name usb-mic --level 30:5 --level 30:10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyRunOverrides(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		svc, err := service.New(cfg)
		if err != nil {
			return err
		}

		models, _ := cmd.Flags().GetStringSlice("model")
		voices, _ := cmd.Flags().GetStringSlice("voice")
		noises, _ := cmd.Flags().GetStringSlice("noise")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Distance: %gm  Device: %s  Metric: %s\n", cfg.Rig.DistanceMeters, cfg.Rig.DeviceName, strings.ToUpper(cfg.Metric))

		result, err := svc.Run(ctx, service.RunOptions{
			Models: models,
			Voices: voices,
			Noises: noises,
			OnResult: func(r sweep.ResultRecord) {
				fmt.Printf("[%d] %s + %s (%g:%g) %s: %.2f%% (dB_diff %.2f)\n",
					r.Iteration, r.VoiceID, r.NoiseID, r.VoiceLevel, r.NoiseLevel,
					r.ModelName, r.ErrorRate*100, r.LevelDeltaDB)
			},
		})
		if result != nil {
			printRunSummary(result)
		}
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		return nil
	},
}

func printRunSummary(result *service.RunResult) {
	rep := result.Report
	fmt.Printf("\nCompleted %d/%d iterations, %d results, %d failures\n",
		rep.Completed, rep.Iterations, len(rep.Records), len(rep.Failures))
	for _, ex := range rep.Excluded {
		fmt.Printf("Excluded: %s (%v)\n", ex.Sample.Path, ex.Err)
	}
	if result.TablePath != "" {
		fmt.Printf("Results: %s\n", result.TablePath)
	}
	if result.FailuresPath != "" {
		fmt.Printf("Failures: %s\n", result.FailuresPath)
	}
}

// applyRunOverrides copies explicitly set flags over the loaded profile.
func applyRunOverrides(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("distance") {
		c.Rig.DistanceMeters, _ = flags.GetFloat64("distance")
	}
	if flags.Changed("device-name") {
		c.Rig.DeviceName, _ = flags.GetString("device-name")
	}
	if flags.Changed("input-device") {
		c.Rig.InputDevice, _ = flags.GetString("input-device")
	}
	if flags.Changed("output-device") {
		c.Rig.OutputDevice, _ = flags.GetString("output-device")
	}
	if flags.Changed("level") {
		specs, _ := flags.GetStringArray("level")
		levels, err := parseLevels(specs)
		if err != nil {
			return err
		}
		c.Levels = levels
	}
	if flags.Changed("output") {
		c.Output.Directory, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		c.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("keep-artifacts") {
		c.Output.KeepArtifacts, _ = flags.GetBool("keep-artifacts")
	}
	if flags.Changed("metric") {
		c.Metric, _ = flags.GetString("metric")
	}
	if flags.Changed("workers") {
		c.Recognition.Workers, _ = flags.GetInt("workers")
	}
	return nil
}

// parseLevels parses "voice:noise" percentage pairs such as "30:5".
func parseLevels(specs []string) ([]sweep.LevelPair, error) {
	levels := make([]sweep.LevelPair, 0, len(specs))
	for _, spec := range specs {
		voice, noise, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("invalid level %q, expected voice:noise (e.g. 30:5)", spec)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(voice), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid voice level in %q: %w", spec, err)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(noise), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid noise level in %q: %w", spec, err)
		}
		levels = append(levels, sweep.LevelPair{Voice: v, Noise: n})
	}
	return levels, nil
}

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(c *cobra.Command) {
	c.Flags().Float64("distance", 0, "speaker to microphone distance in meters (overrides config)")
	c.Flags().String("device-name", "", "recording device label written to the results (overrides config)")
	c.Flags().String("input-device", "", "capture device name (overrides config)")
	c.Flags().String("output-device", "", "playback device name (overrides config)")
	c.Flags().StringArrayP("level", "l", nil, "voice:noise level pair in percent, repeatable (overrides config)")
	c.Flags().StringP("output", "o", "", "output directory (overrides config)")
	c.Flags().String("format", "", "result table format: tsv or csv (overrides config)")
	c.Flags().Bool("keep-artifacts", false, "keep mixes, captures and transcripts (overrides config)")
	c.Flags().String("metric", "", "error rate metric: cer or wer (overrides config)")
	c.Flags().Int("workers", 0, "concurrent recognition requests (overrides config)")
	c.Flags().StringSliceP("model", "m", nil, "models to evaluate (default: all models of the profile)")
	c.Flags().StringSlice("voice", nil, "voice sample ids to use (default: all)")
	c.Flags().StringSlice("noise", nil, "noise sample ids to use (default: all)")
}
