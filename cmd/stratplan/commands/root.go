package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	planFile string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stratplan",
	Short: "Strategic plan KPI achievement engine",
	Long: `stratplan Unified CLI

Aggregates accomplishment-report activities against the targets of a
strategic plan, tracks cumulative KPI progress and serves the review and
approval workflow.

Usage:
  go run ./cmd/stratplan [command]

Examples:
  go run ./cmd/stratplan api
  go run ./cmd/stratplan plan validate --plan plan.yaml
  go run ./cmd/stratplan plan resolve "KRA 1" KRA1-KPI1 2025
  go run ./cmd/stratplan aggregate --file input.json
  go run ./cmd/stratplan migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&planFile, "plan", "", "strategic plan file (default is PLAN_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
