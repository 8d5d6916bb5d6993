package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketsentinel/sentinel/broker"
	"github.com/marketsentinel/sentinel/broker/sim"
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

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted session against the in-memory simulator",
	Long: `Run a short scripted price session against the in-memory broker
simulator. State files are written to a temporary directory, so the demo
never touches live journals.

The script warms up the trend filter, dips the price below the buy
trigger, then rallies through the profit target, producing one full
round trip.

Example:
  sentinel demo`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Default()
	dir, err := demoDir()
	if err != nil {
		return err
	}
	cfg.Files.Baselines = dir + "/baselines.json"
	cfg.Files.Positions = dir + "/positions.json"
	cfg.Files.TradeLog = dir + "/trades.csv"
	cfg.Files.PriceHistory = dir + "/prices.csv"
	cfg.Files.WindowState = dir + "/windows.json"
	cfg.Files.PurchaseDates = dir + "/purchases.json"

	log, err := logging.New("warn", "")
	if err != nil {
		return err
	}
	defer log.Sync()

	cal, err := market.NewCalendar(cfg.Session.Timezone,
		mustClock(cfg.Session.LunchStart), mustClock(cfg.Session.LunchEnd), mustClock(cfg.Session.MarketClose))
	if err != nil {
		return err
	}

	const sym = "DEMO"
	broker0 := sim.NewEngine(broker.Account{Cash: 100_000, Equity: 100_000})
	caller := retry.NewCaller(1, time.Millisecond, &retry.Breaker{Threshold: 5, Cooldown: time.Second}, log)

	// Morning, outside the lunch blackout.
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, cal.Location())

	profile := engine.Profile{
		Name: "demo", Symbols: []string{sym},
		BuyTrigger: 0.995, SellTrigger: 1.03, StopMultiplier: 0.5,
	}
	summary := report.NewSummary()
	eng := engine.New(engine.Deps{
		Config:    cfg,
		Log:       log,
		Broker:    broker0,
		Caller:    caller,
		Calendar:  cal,
		Profiles:  []engine.Profile{profile},
		Stats:     engine.NewStats(cfg.Indicators.EMAShortPeriod, cfg.Indicators.EMALongPeriod, cfg.Indicators.SMAPeriod),
		Baselines: state.LoadBaselines(cfg.Files.Baselines, log),
		Purchases: state.LoadPurchaseDates(cfg.Files.PurchaseDates, cal.TradingDay(time.Now()), log),
		Ledger:    ledger.Load(cfg.Files.Positions, log),
		TradeLog:  journal.NewTradeLog(cfg.Files.TradeLog, log),
		History:   journal.NewPriceHistory(cfg.Files.PriceHistory, log),
		Summary:   summary,
		Sender:    &report.LogSender{Log: log},
		Now:       func() time.Time { return at },
	})

	fmt.Println("=== Scripted Simulator Session ===")
	fmt.Println()

	// Warm-up: the first tick pins the baseline at $100, then a soft
	// tape at $99 fills the trend window without triggering a buy.
	broker0.SetQuote(sym, 100, at)
	if err := eng.Tick(ctx, profile, sym, 100_000); err != nil {
		return err
	}
	for i := 1; i < cfg.Indicators.SMAPeriod; i++ {
		at = at.Add(time.Minute)
		broker0.SetQuote(sym, 99, at)
		if err := eng.Tick(ctx, profile, sym, 100_000); err != nil {
			return err
		}
	}
	fmt.Printf("Warm-up complete: %d samples, baseline $100.00\n", cfg.Indicators.SMAPeriod)

	// Dip below the buy trigger ($99.50) while staying above the trend
	// filter.
	at = at.Add(time.Minute)
	broker0.SetQuote(sym, 99.40, at)
	if err := eng.Tick(ctx, profile, sym, 100_000); err != nil {
		return err
	}

	// Rally through the profit target the next day, clearing the
	// same-day guard.
	at = at.Add(24 * time.Hour)
	broker0.SetQuote(sym, 103.50, at)
	if err := eng.Tick(ctx, profile, sym, 100_000); err != nil {
		return err
	}

	fmt.Println()
	for _, fill := range broker0.Fills() {
		fmt.Printf("  %-4s %.6f %s\n", fill.Side, fill.Qty, fill.Symbol)
	}
	acct, _ := broker0.GetAccount(ctx)
	fmt.Printf("\nFinal cash: $%.2f\n", acct.Cash)
	fmt.Println()
	fmt.Println(summary.Body())
	fmt.Printf("\nJournals written under %s\n", dir)
	return nil
}

func demoDir() (string, error) {
	dir, err := os.MkdirTemp("", "sentinel-demo-")
	if err != nil {
		return "", fmt.Errorf("create demo directory: %w", err)
	}
	return dir, nil
}
