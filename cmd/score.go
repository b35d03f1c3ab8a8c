package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/audiolibrelab/asrbench/internal/score"
	"github.com/audiolibrelab/asrbench/internal/service"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score [reference] [hypothesis]",
	Short: "Compute the error rate between two texts",
	Long: `Normalize a reference and a hypothesis and print their character or word
error rate. With --files the arguments are read as text files.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromFiles, _ := cmd.Flags().GetBool("files")
		metricName, _ := cmd.Flags().GetString("metric")
		if metricName == "" {
			metricName = cfg.Metric
		}

		metric, err := score.ParseMetric(metricName)
		if err != nil {
			return err
		}

		ref, hyp := args[0], args[1]
		if fromFiles {
			if ref, err = readText(ref); err != nil {
				return err
			}
			if hyp, err = readText(hyp); err != nil {
				return err
			}
		}

		fmt.Printf("reference:  %s\n", metric.Normalize(ref))
		fmt.Printf("hypothesis: %s\n", metric.Normalize(hyp))
		fmt.Printf("%s: %.2f%%\n", metric.Label(), service.ScoreTexts(metric, ref, hyp)*100)
		return nil
	},
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

func init() {
	scoreCmd.Flags().String("metric", "", "cer or wer (default from config, cer without one)")
	scoreCmd.Flags().Bool("files", false, "treat arguments as text file paths")
}
