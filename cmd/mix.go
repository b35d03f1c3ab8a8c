package cmd

import (
	"fmt"

	"github.com/audiolibrelab/asrbench/internal/play"
	"github.com/audiolibrelab/asrbench/internal/service"

	"github.com/spf13/cobra"
)

var mixCmd = &cobra.Command{
	Use:   "mix [voice-file] [noise-file]",
	Short: "Mix one voice file with one noise file",
	Long: `Mix a voice file and a noise file at the given levels without sending it through the rig.
The noise is resampled to the voice rate and looped or cut to the voice length.
Useful to listen to a level pair before running a sweep; --play auditions the
result through ffplay, mpv, vlc or aplay.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		voiceLevel, _ := cmd.Flags().GetFloat64("voice-level")
		noiseLevel, _ := cmd.Flags().GetFloat64("noise-level")
		output, _ := cmd.Flags().GetString("output")
		audition, _ := cmd.Flags().GetBool("play")

		svc, err := service.New(cfg)
		if err != nil {
			return err
		}

		fmt.Printf("Voice: %s (%g%%)\n", args[0], voiceLevel)
		fmt.Printf("Noise: %s (%g%%)\n", args[1], noiseLevel)

		res, err := svc.MixFiles(cmd.Context(), args[0], args[1], voiceLevel, noiseLevel, output)
		if err != nil {
			return fmt.Errorf("mixing failed: %w", err)
		}

		fmt.Printf("Voice level: %.2f dBFS\n", res.VoiceLevelDB)
		fmt.Printf("Noise level: %.2f dBFS\n", res.NoiseLevelDB)
		fmt.Printf("dB_diff: %.2f\n", res.LevelDeltaDB)
		fmt.Printf("Written: %s (%s)\n", output, res.Mixed.Duration())

		if audition {
			fmt.Println("Playing mix...")
			if err := play.New().Play(cmd.Context(), output); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	mixCmd.Flags().Float64("voice-level", 100, "voice level in percent")
	mixCmd.Flags().Float64("noise-level", 100, "noise level in percent")
	mixCmd.Flags().StringP("output", "o", "mixed.wav", "output WAV file")
	mixCmd.Flags().Bool("play", false, "play the mix after writing it")
}
