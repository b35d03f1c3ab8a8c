package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/audiolibrelab/asrbench/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
)

// Commands that work without a config file unless one is given explicitly
var configOptional = map[string]bool{
	"devices": true,
	"mix":     true,
	"score":   true,
	"summary": true,
}

var rootCmd = &cobra.Command{
	Use:   "asrbench",
	Short: "Measure speech recognition accuracy under controlled noise",
	Long: `asrbench mixes clean speech with background noise at chosen levels, plays
each mix through a loudspeaker, records it back through a microphone, sends
the capture to one or more speech recognition services and scores the
transcripts against reference texts.

Results are written as a table with one row per capture and model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel)

		if configOptional[cmd.Name()] && cfgFile == "" {
			cfg = config.Default()
			return nil
		}

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/asrbench.yaml")
		}

		// use and edit work on the file itself, even when it no longer loads
		if cmd.Name() == "use" || cmd.Name() == "edit" {
			return nil
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/asrbench.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=ffmpeg output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mixCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(infoCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	var slogLevel slog.Level
	switch {
	case level <= 0:
		slogLevel = slog.LevelInfo
	default:
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if level >= 2 {
		os.Setenv("FFMPEG_LOGLEVEL", "debug")
	}
}
