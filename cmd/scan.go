package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/minghsuy/pixel-detector-v2/pkg/browser"
	"github.com/minghsuy/pixel-detector-v2/pkg/domain"
	"github.com/minghsuy/pixel-detector-v2/pkg/probe"
	"github.com/minghsuy/pixel-detector-v2/pkg/scan"
)

var scanJSONOutput bool
var scanSkipProbe bool

// scanCmd scans one domain and prints its detections
var scanCmd = &cobra.Command{
	Use:   "scan [domain]",
	Short: "Scan a single domain for tracking pixels",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d, err := domain.Validate(args[0])
		if err != nil {
			log.Error().Err(err).Msg("Invalid domain")
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var health *probe.Result
		if !scanSkipProbe {
			h := probe.NewChecker().Check(ctx, d.Name)
			health = &h
			if !h.Scannable() {
				log.Error().Str("status", string(h.Status)).Str("detail", h.Detail).Msg("Domain is not reachable")
				os.Exit(1)
			}
		}

		manager := browser.NewPoolManager(browser.PoolManagerConfig{PoolSize: 1})
		defer manager.Close()

		executor := scan.NewExecutor(newSessionFactory(manager))
		outcome, err := executor.ScanWithRetry(ctx, d, scan.RetryPolicyFromConfig(), health)
		if err != nil {
			log.Error().Err(err).Msg("Scan could not run")
			os.Exit(1)
		}

		if scanJSONOutput {
			data, _ := json.MarshalIndent(outcome, "", "  ")
			fmt.Println(string(data))
			return
		}

		if !outcome.Success {
			log.Error().Str("error_type", string(outcome.ErrorType)).Str("error", outcome.Error).Msg("Scan failed")
			os.Exit(1)
		}

		fmt.Printf("Scanned %s (%d requests, %d tracking)\n", outcome.URLScanned, outcome.Timing.TotalRequests, outcome.Timing.TrackingRequests)
		if len(outcome.Detections) == 0 {
			fmt.Println("No tracking pixels detected")
			return
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Tracker", "Risk", "HIPAA", "Tracker ID", "Requests", "Cookies", "Globals"})
		table.SetBorder(true)
		for _, det := range outcome.Detections {
			table.Append([]string{
				string(det.Type),
				string(det.RiskLevel),
				fmt.Sprintf("%t", det.HIPAARelevant),
				det.TrackerID,
				fmt.Sprintf("%d", len(det.Evidence.NetworkRequests)),
				strings.Join(det.Evidence.CookiesSet, ", "),
				strings.Join(det.Evidence.GlobalVariables, ", "),
			})
		}
		table.Render()
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanJSONOutput, "json", false, "Print the full outcome as JSON")
	scanCmd.Flags().BoolVar(&scanSkipProbe, "skip-probe", false, "Skip the pre-flight health check")
}
