package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/minghsuy/pixel-detector-v2/pkg/batch"
	"github.com/minghsuy/pixel-detector-v2/pkg/report"
)

var reportInputFile string
var reportResultsDir string
var reportOutputFile string

// reportCmd joins the original input rows to their scan outcomes
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Join scan results back to the original input rows",
	Run: func(cmd *cobra.Command, args []string) {
		rows, err := report.ReadInputCSV(reportInputFile)
		if err != nil {
			log.Error().Err(err).Msg("Could not read input CSV")
			os.Exit(1)
		}

		store, err := batch.NewStore(reportResultsDir)
		if err != nil {
			log.Error().Err(err).Msg("Could not open results directory")
			os.Exit(1)
		}

		built := report.Build(rows, store)

		if reportOutputFile != "" {
			f, err := os.Create(reportOutputFile)
			if err != nil {
				log.Error().Err(err).Msg("Could not create output file")
				os.Exit(1)
			}
			defer f.Close()
			if err := report.WriteCSV(f, built); err != nil {
				log.Error().Err(err).Msg("Could not write report")
				os.Exit(1)
			}
			log.Info().Str("file", reportOutputFile).Int("rows", len(built)).Msg("Report written")
			return
		}

		report.RenderTable(os.Stdout, built)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportInputFile, "input", "i", "", "Original input CSV (id + url columns)")
	reportCmd.Flags().StringVarP(&reportResultsDir, "results", "r", "scan_results", "Directory with per-domain result files")
	reportCmd.Flags().StringVarP(&reportOutputFile, "output", "o", "", "Write the report as CSV to this file instead of printing a table")
	reportCmd.MarkFlagRequired("input")
}
