package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "An automated equities trading bot with durable state",
	Long: `Sentinel polls market prices during the trading session, buys dips
below a per-symbol baseline, and exits on profit targets or
volatility-scaled stop losses.

It provides tools for:
  - Running the live trading loop against the broker API
  - Validating configuration and auditing the trade journal
  - Replaying a scripted session against the in-memory simulator
  - Generating a starter configuration file`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
