package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/minghsuy/pixel-detector-v2/pkg/detect"
)

// detectorsCmd lists the supported tracker detectors
var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "List the supported tracking pixel detectors",
	Run: func(cmd *cobra.Command, args []string) {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Tracker", "Risk", "HIPAA", "Network Domains", "Cookies", "Globals"})
		table.SetBorder(true)
		for _, sig := range detect.Signatures() {
			table.Append([]string{
				string(sig.Type),
				string(sig.RiskLevel),
				fmt.Sprintf("%t", sig.HIPAARelevant),
				strings.Join(sig.Domains, "\n"),
				strings.Join(sig.CookieNames, ", "),
				strings.Join(sig.GlobalVariables, ", "),
			})
		}
		table.Render()
	},
}

func init() {
	rootCmd.AddCommand(detectorsCmd)
}
