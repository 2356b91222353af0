package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"keegan-registry/internal/telemetry"
)

var (
	dataDir    string
	jsonOutput bool
	topN       int
)

var rootCmd = &cobra.Command{
	Use:   "telemetry-summary",
	Short: "Summarize registry telemetry logs",
	Long:  "Reads the daily telemetry-*.jsonl files written by the registry and prints event, station and room totals.",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := telemetry.LogFiles(dataDir)
		if len(paths) == 0 {
			return fmt.Errorf("no telemetry logs under %s", dataDir)
		}
		summary := telemetry.Summarize(telemetry.LoadEvents(paths))

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Events: %d (%d files)\n", summary.Total, len(paths))
		if summary.FirstTsMs > 0 {
			fmt.Fprintf(out, "Range:  %s .. %s\n", fmtTs(summary.FirstTsMs), fmtTs(summary.LastTsMs))
		}
		fmt.Fprintf(out, "Distinct sessions: %d\n", summary.Sessions)
		printCounter(out, "By event", summary.ByEvent)
		printCounter(out, "By source", summary.BySource)
		printCounter(out, "Top stations", summary.ByStation)
		printCounter(out, "Top rooms", summary.ByRoom)
		return nil
	},
}

func printCounter(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for _, key := range telemetry.TopN(counts, topN) {
		fmt.Fprintf(out, "  %6d  %s\n", counts[key], key)
	}
}

func fmtTs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

func main() {
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "registry data directory")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the summary as JSON")
	rootCmd.Flags().IntVar(&topN, "top", 10, "rows per counter section")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
