package cmd

import (
	"fmt"

	"github.com/audiolibrelab/asrbench/internal/score"
	"github.com/audiolibrelab/asrbench/internal/service"

	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [audio-file]",
	Short: "Send one file to a recognition model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		reference, _ := cmd.Flags().GetString("reference")

		if model == "" {
			names := cfg.ModelNames()
			if len(names) == 0 {
				return fmt.Errorf("no models in profile, use --model")
			}
			model = names[0]
		}

		svc, err := service.New(cfg)
		if err != nil {
			return err
		}

		text, err := svc.Transcribe(cmd.Context(), model, args[0])
		if err != nil {
			return err
		}
		fmt.Println(text)

		if reference != "" {
			metric, err := score.ParseMetric(cfg.Metric)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %.2f%%\n", metric.Label(), service.ScoreTexts(metric, reference, text)*100)
		}
		return nil
	},
}

func init() {
	transcribeCmd.Flags().StringP("model", "m", "", "model name (default: first model of the profile)")
	transcribeCmd.Flags().StringP("reference", "r", "", "reference text to score the transcript against")
}
