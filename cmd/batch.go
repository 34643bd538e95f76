package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/minghsuy/pixel-detector-v2/pkg/batch"
	"github.com/minghsuy/pixel-detector-v2/pkg/browser"
	"github.com/minghsuy/pixel-detector-v2/pkg/domain"
	"github.com/minghsuy/pixel-detector-v2/pkg/probe"
	"github.com/minghsuy/pixel-detector-v2/pkg/report"
	"github.com/minghsuy/pixel-detector-v2/pkg/scan"
)

var batchListFile string
var batchCSVFile string
var batchConcurrency int
var batchCheckpointEvery int
var batchCheckpointPath string
var batchProgressPath string
var batchResultsDir string
var batchNoHealthCheck bool

// batchCmd scans a domain list with checkpoint/resume
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Scan a list of domains with checkpointed resume",
	Long: `Scans every domain from a line-delimited list or a CSV (id + url
columns) through a bounded worker pool. Progress checkpoints let an
interrupted run resume without rescanning completed domains.`,
	Run: func(cmd *cobra.Command, args []string) {
		domains := loadBatchInput()
		if len(domains) == 0 {
			log.Error().Msg("No valid domains to scan")
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		manager := browser.NewPoolManager(browser.PoolManagerConfig{PoolSize: viper.GetInt("scan.pool_size")})
		defer manager.Close()

		var checker batch.HealthChecker
		if viper.GetBool("probe.enabled") {
			checker = probe.NewChecker()
		}

		cfg := batch.Config{
			Concurrency:     batchConcurrency,
			CheckpointEvery: batchCheckpointEvery,
			CheckpointPath:  batchCheckpointPath,
			ProgressPath:    batchProgressPath,
			ResultsDir:      batchResultsDir,
			SkipHealthCheck: batchNoHealthCheck,
		}
		executor := scan.NewExecutor(newSessionFactory(manager))
		orchestrator, err := batch.NewOrchestrator(cfg, executor, checker, scan.RetryPolicyFromConfig())
		if err != nil {
			log.Error().Err(err).Msg("Could not start batch")
			os.Exit(1)
		}

		summary, err := orchestrator.Run(ctx, domains)
		if err != nil {
			log.Error().Err(err).Msg("Batch run failed")
			os.Exit(1)
		}

		data, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(data))
		if summary.Interrupted {
			os.Exit(130)
		}
	},
}

// loadBatchInput reads domains from whichever input flag was given and
// drops invalid entries with a warning.
func loadBatchInput() []domain.Domain {
	var raw []string
	switch {
	case batchListFile != "":
		lines, err := batch.ReadDomainList(batchListFile)
		if err != nil {
			log.Error().Err(err).Msg("Could not read domain list")
			os.Exit(1)
		}
		raw = lines
	case batchCSVFile != "":
		rows, err := report.ReadInputCSV(batchCSVFile)
		if err != nil {
			log.Error().Err(err).Msg("Could not read input CSV")
			os.Exit(1)
		}
		for _, row := range rows {
			raw = append(raw, row.URL)
		}
	default:
		log.Error().Msg("Either --input or --csv is required")
		os.Exit(1)
	}

	valid, rejected := batch.ValidateAll(raw)
	if len(rejected) > 0 {
		log.Warn().Int("count", len(rejected)).Msg("Rejected invalid inputs")
		for input, verr := range rejected {
			log.Debug().Str("input", input).Str("reason", string(verr.Reason)).Msg("Rejected")
		}
	}
	return valid
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&batchListFile, "input", "i", "", "Line-delimited domain list file")
	batchCmd.Flags().StringVar(&batchCSVFile, "csv", "", "CSV input with id and url columns")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 5, "Maximum concurrent scans")
	batchCmd.Flags().IntVar(&batchCheckpointEvery, "checkpoint-every", 10, "Checkpoint after this many outcomes")
	batchCmd.Flags().StringVar(&batchCheckpointPath, "checkpoint", "scan_checkpoint.json", "Checkpoint file path")
	batchCmd.Flags().StringVar(&batchProgressPath, "progress", "scan_progress.json", "Progress artifact path")
	batchCmd.Flags().StringVarP(&batchResultsDir, "results", "r", "scan_results", "Directory for per-domain result files")
	batchCmd.Flags().BoolVar(&batchNoHealthCheck, "no-health-check", false, "Skip pre-flight health checks")
}
