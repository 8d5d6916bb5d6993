package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketsentinel/sentinel/config"
	"github.com/marketsentinel/sentinel/journal"
	"github.com/marketsentinel/sentinel/logging"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file and audit the trade journal",
	Long: `Validate checks a configuration file for errors and, when the
configured trade log exists, audits it for anomalies: sells without a
matching buy, duplicate closes of the same trade id, and same-day round
trips.

Example:
  sentinel validate -f config.yaml`,
	RunE: runValidate,
}

var validateConfigPath string

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(validateConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Printf("Config OK: %d profile(s), polling every %s\n", len(cfg.Profiles), cfg.PollInterval())

	log, err := logging.New(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer log.Sync()

	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	tl := journal.NewTradeLog(cfg.Files.TradeLog, log)
	anomalies, err := tl.Validate(loc)
	if err != nil {
		return fmt.Errorf("audit trade log: %w", err)
	}
	if anomalies.Clean() {
		fmt.Println("Trade log OK: no anomalies")
		return nil
	}
	fmt.Printf("Trade log anomalies: %d sell(s) without a buy, %d duplicate close(s), %d same-day round trip(s)\n",
		anomalies.SellsWithoutBuy, anomalies.DuplicateCloses, anomalies.SameDayRoundTrips)
	return nil
}
