package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/audiolibrelab/asrbench/internal/report"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [table...]",
	Short: "Summarize one or more result tables",
	Long: `Read result tables written by 'asrbench run', merge them and print the mean
error rate per model and level pair, from the cleanest to the noisiest mix.
With --output the merged rows are also saved as one table (.csv for CSV,
anything else TSV).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tables := make([]*report.Table, 0, len(args))
		for _, path := range args {
			t, err := report.ReadTable(path)
			if err != nil {
				return err
			}
			tables = append(tables, t)
		}

		merged, err := report.Merge(tables...)
		if err != nil {
			return err
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			if err := report.WriteTable(output, report.FormatForPath(output), merged.Metric, merged.Records); err != nil {
				return err
			}
			fmt.Printf("Merged %d rows into %s\n\n", len(merged.Records), output)
		}

		label := merged.Metric.Label()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "model\tvoice\tnoise\tn\tdB_diff\t%s mean\tmin\tmax\n", label)
		for _, row := range report.Summarize(merged.Records) {
			fmt.Fprintf(w, "%s\t%g\t%g\t%d\t%.2f\t%.2f%%\t%.2f%%\t%.2f%%\n",
				row.ModelName, row.VoiceLevel, row.NoiseLevel, row.Count, row.MeanLevelDelta,
				row.MeanErrorRate*100, row.MinErrorRate*100, row.MaxErrorRate*100)
		}
		return w.Flush()
	},
}

func init() {
	summaryCmd.Flags().StringP("output", "o", "", "write the merged table to this file")
}
