package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/asrbench/internal/service"

	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture [audio-file]",
	Short: "Play a file through the rig and record it",
	Long: `Play an audio file through the configured loudspeaker while recording the
microphone, then write the capture as WAV. Use it to check levels and
placement before a sweep.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		svc, err := service.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("Playing and recording", "input", args[0], "output_device", cfg.Rig.OutputDevice, "input_device", cfg.Rig.InputDevice)

		info, err := svc.CaptureFile(ctx, args[0], output)
		if err != nil {
			return fmt.Errorf("capture failed: %w", err)
		}

		fmt.Printf("Written: %s\n", output)
		if info != nil {
			fmt.Printf("Frames: %d\n", info.Frames)
			fmt.Printf("RMS: %.2f dBFS\n", info.RMSdBFS)
			fmt.Printf("Loudness: %.2f LUFS\n", info.LoudnessLUFS)
		}
		return nil
	},
}

func init() {
	captureCmd.Flags().StringP("output", "o", "capture.wav", "output WAV file")
}
