package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/asrbench/internal/service"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio devices",
	Long:  `List the playback and capture devices the audio backend can open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("backend") {
			cfg.Audio.Backend, _ = cmd.Flags().GetString("backend")
		}

		svc, err := service.New(cfg)
		if err != nil {
			return err
		}

		devices, err := svc.ListDevices()
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		fmt.Printf("🎵 Audio Devices (%s, %s)\n", cfg.Audio.Backend, runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		for i, d := range devices {
			marks := ""
			if d.IsDefaultInput {
				marks += " [default input]"
			}
			if d.IsDefaultOutput {
				marks += " [default output]"
			}
			fmt.Printf("  %d. %s%s\n", i+1, d.Name, marks)
			fmt.Printf("     in: %d  out: %d  rate: %.0f Hz  api: %s\n",
				d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, d.HostAPI)
		}

		fmt.Printf("\n💡 Usage:\n")
		fmt.Printf("  • Set rig.input_device and rig.output_device to a name above\n")
		fmt.Printf("  • A unique part of the name is enough, empty selects the default\n\n")
		return nil
	},
}

func init() {
	devicesCmd.Flags().String("backend", "", "audio backend to query (auto, portaudio, pipewire)")
}
