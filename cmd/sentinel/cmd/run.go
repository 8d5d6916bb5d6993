package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketsentinel/sentinel/broker/alpaca"
	"github.com/marketsentinel/sentinel/config"
	"github.com/marketsentinel/sentinel/engine"
	"github.com/marketsentinel/sentinel/journal"
	"github.com/marketsentinel/sentinel/ledger"
	"github.com/marketsentinel/sentinel/logging"
	"github.com/marketsentinel/sentinel/market"
	"github.com/marketsentinel/sentinel/report"
	"github.com/marketsentinel/sentinel/retry"
	"github.com/marketsentinel/sentinel/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop against the broker API",
	Long: `Run the live polling loop using settings from a configuration file.

Broker credentials come from the environment (APCA_API_KEY and
APCA_API_SECRET; the legacy APCA_API_KEY_ID / APCA_API_SECRET_KEY names
are also accepted). When email summaries are enabled, EMAIL_PASSWORD is
required too.

Example:
  sentinel run -f config.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	creds, err := config.LoadCredentials(cfg.Email.Enabled)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.Files.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	cal, err := market.NewCalendar(cfg.Session.Timezone,
		mustClock(cfg.Session.LunchStart), mustClock(cfg.Session.LunchEnd), mustClock(cfg.Session.MarketClose))
	if err != nil {
		return fmt.Errorf("session calendar: %w", err)
	}

	profiles, err := engine.ProfilesFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("resolve profiles: %w", err)
	}

	client := alpaca.NewClient(creds.APIKey, creds.APISecret,
		cfg.Broker.BaseURL, cfg.Broker.DataURL, cfg.Broker.RatePerMinute)

	breaker := &retry.Breaker{
		Threshold: cfg.Breaker.Threshold,
		Cooldown:  time.Duration(cfg.Breaker.CooldownSecs) * time.Second,
	}
	caller := retry.NewCaller(cfg.Retry.Attempts,
		time.Duration(cfg.Retry.BaseDelaySecs)*time.Second, breaker, log)

	var archive *journal.Archive
	if cfg.Files.Archive != "" {
		archive, err = journal.OpenArchive(cfg.Files.Archive)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer archive.Close()
	}

	var sender report.Sender
	if cfg.Email.Enabled {
		sender = &report.SMTPSender{
			Host: cfg.Email.Host, Port: cfg.Email.Port,
			From: cfg.Email.From, To: cfg.Email.To,
			Password: creds.EmailPassword,
		}
	} else {
		sender = &report.LogSender{Log: log}
	}

	eng := engine.New(engine.Deps{
		Config:    cfg,
		Log:       log,
		Broker:    client,
		Caller:    caller,
		Calendar:  cal,
		Profiles:  profiles,
		Stats:     engine.NewStats(cfg.Indicators.EMAShortPeriod, cfg.Indicators.EMALongPeriod, cfg.Indicators.SMAPeriod),
		Baselines: state.LoadBaselines(cfg.Files.Baselines, log),
		Purchases: state.LoadPurchaseDates(cfg.Files.PurchaseDates, cal.TradingDay(time.Now()), log),
		Ledger:    ledger.Load(cfg.Files.Positions, log),
		TradeLog:  journal.NewTradeLog(cfg.Files.TradeLog, log),
		History:   journal.NewPriceHistory(cfg.Files.PriceHistory, log),
		Archive:   archive,
		Summary:   report.NewSummary(),
		Sender:    sender,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting", "config", runConfigPath, "profiles", len(profiles))
	if err := eng.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return eng.Run(ctx)
}

// mustClock is safe after Validate has accepted the config.
func mustClock(s string) market.ClockTime {
	ct, err := market.ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return ct
}
