package engine

import (
	"context"
	"time"

	"github.com/marketsentinel/sentinel/broker"
	"github.com/marketsentinel/sentinel/retry"
	"github.com/marketsentinel/sentinel/state"
)

// maxClosedSleep bounds the market-closed sleep so a long weekend still
// re-checks the clock every minute.
const maxClosedSleep = time.Minute

// Bootstrap reconciles startup state before the first cycle: migrate a
// legacy trade log, adopt broker positions the ledger has never seen,
// backfill today's purchase dates from the journal, recover SMA windows,
// and audit the journal for anomalies.
func (e *Engine) Bootstrap(ctx context.Context) error {
	if renamed, err := e.tradeLog.Migrate(); err != nil {
		return err
	} else if renamed != "" {
		e.log.Infow("migrated legacy trade log", "renamed_to", renamed)
	}

	positions, err := retry.Do(ctx, e.caller, "list_positions", func(ctx context.Context) ([]broker.Position, error) {
		return e.broker.ListPositions(ctx)
	})
	if err != nil && !broker.IsNotFound(err) {
		e.log.Warnw("could not list broker positions at startup", "error", err)
	}
	adopted, err := e.ledger.Bootstrap(positions)
	if err != nil {
		return err
	}
	for _, a := range adopted {
		if err := e.tradeLog.AppendBuy(a.TradeID, a.Position.Symbol, a.Position.Quantity, a.Position.EntryPrice); err != nil {
			return err
		}
	}

	today := e.cal.TradingDay(e.now())
	bought, err := e.tradeLog.BuysOn(today, e.cal.Location())
	if err != nil {
		e.log.Warnw("could not read trade log for purchase dates", "error", err)
	}
	for _, sym := range bought {
		if err := e.purchases.Mark(sym, today); err != nil {
			e.log.Warnw("failed to persist purchase date", "symbol", sym, "error", err)
		}
	}

	e.restoreWindows(today)

	anomalies, err := e.tradeLog.Validate(e.cal.Location())
	if err != nil {
		e.log.Warnw("trade log validation failed", "error", err)
	} else if anomalies.Clean() {
		e.log.Infow("trade log validated, no anomalies")
	}
	return nil
}

// restoreWindows prefers rebuilding from today's price history rows; a
// dated snapshot is the fallback, and neither leaves the engine in a
// clean warm-up.
func (e *Engine) restoreWindows(today string) {
	if windows := e.history.LoadWindows(today, e.cal.Location(), e.cfg.Indicators.SMAPeriod); windows != nil {
		e.stats.Restore(windows)
		e.log.Infow("recovered indicator windows from price history", "symbols", len(windows))
		return
	}
	if windows := state.LoadWindows(e.cfg.Files.WindowState, today, e.log); windows != nil {
		e.stats.Restore(windows)
		e.log.Infow("recovered indicator windows from snapshot", "symbols", len(windows))
		return
	}
	e.log.Infow("no recoverable indicator windows, warming up fresh")
}

// Run is the polling loop. It returns when ctx is cancelled; Shutdown
// runs on the way out regardless of why.
func (e *Engine) Run(ctx context.Context) error {
	defer e.Shutdown()

	poll := e.cfg.PollInterval()
	for {
		if ctx.Err() != nil {
			return nil
		}

		clock, err := retry.Do(ctx, e.caller, "get_clock", func(ctx context.Context) (broker.Clock, error) {
			return e.broker.GetClock(ctx)
		})
		if err != nil {
			e.log.Errorw("could not read market clock", "error", err)
			if !e.sleep(ctx, poll) {
				return nil
			}
			continue
		}

		now := e.now()
		today := e.cal.TradingDay(now)

		if !clock.IsOpen {
			until := time.Until(clock.NextOpen)
			wait := until
			if wait > maxClosedSleep {
				wait = maxClosedSleep
			}
			if wait < time.Second {
				wait = time.Second
			}
			e.log.Infow("market closed", "next_open", clock.NextOpen, "sleeping", wait)
			if !e.sleep(ctx, wait) {
				return nil
			}
			continue
		}

		if today != e.lastDay {
			e.summary.Reset()
			if err := e.purchases.Clear(today); err != nil {
				e.log.Warnw("failed to clear purchase dates", "error", err)
			}
			e.lastDay = today
			e.log.Infow("trading day started", "day", today)
		}

		e.cycle(ctx, today)

		if e.cal.IsPastClose(e.now()) && !e.summary.Sent() {
			e.sendSummary(ctx, "Daily Market Summary")
		}

		if !e.sleep(ctx, poll) {
			return nil
		}
	}
}

// cycle runs every profile and symbol once. A failure in one symbol is
// logged and never stops the rest.
func (e *Engine) cycle(ctx context.Context, today string) {
	acct, err := retry.Do(ctx, e.caller, "get_account", func(ctx context.Context) (broker.Account, error) {
		return e.broker.GetAccount(ctx)
	})
	if err != nil {
		e.log.Errorw("could not read account, skipping cycle", "error", err)
		return
	}
	e.log.Infow("cycle start", "day", today, "cash", acct.Cash, "equity", acct.Equity)

	for _, p := range e.profiles {
		for _, sym := range p.Symbols {
			if ctx.Err() != nil {
				return
			}
			if err := e.Tick(ctx, p, sym, acct.Cash); err != nil {
				e.log.Errorw("symbol evaluation failed",
					"profile", p.Name, "symbol", sym, "error", err)
			}
		}
	}

	if err := state.SaveWindows(e.cfg.Files.WindowState, today, e.stats.Windows()); err != nil {
		e.log.Warnw("failed to snapshot indicator windows", "error", err)
	}
}

func (e *Engine) sendSummary(ctx context.Context, subject string) {
	acct, err := retry.Do(ctx, e.caller, "get_account", func(ctx context.Context) (broker.Account, error) {
		return e.broker.GetAccount(ctx)
	})
	if err != nil {
		e.log.Errorw("could not read account for summary", "error", err)
	} else {
		unrealized := 0.0
		positions, err := retry.Do(ctx, e.caller, "list_positions", func(ctx context.Context) ([]broker.Position, error) {
			return e.broker.ListPositions(ctx)
		})
		if err != nil && !broker.IsNotFound(err) {
			e.log.Warnw("could not list positions for summary", "error", err)
		}
		for _, p := range positions {
			unrealized += p.UnrealizedPL
		}
		e.summary.AddTotals(acct.Equity, unrealized)
	}

	if _, err := e.tradeLog.Validate(e.cal.Location()); err != nil {
		e.log.Warnw("trade log validation failed", "error", err)
	}

	if err := e.sender.Send(subject, e.summary.Body()); err != nil {
		e.log.Errorw("failed to send summary", "subject", subject, "error", err)
		return
	}
	e.summary.MarkSent()
	e.log.Infow("summary sent", "subject", subject)
}

// Shutdown persists the in-memory state a restart needs and, if trades
// happened today without a summary going out, sends an early-exit one.
func (e *Engine) Shutdown() {
	today := e.cal.TradingDay(e.now())

	if err := state.SaveWindows(e.cfg.Files.WindowState, today, e.stats.Windows()); err != nil {
		e.log.Warnw("failed to snapshot indicator windows on shutdown", "error", err)
	}
	if err := e.purchases.Save(today); err != nil {
		e.log.Warnw("failed to persist purchase dates on shutdown", "error", err)
	}

	if !e.summary.Empty() && !e.summary.Sent() {
		if err := e.sender.Send("Early Exit Market Summary", e.summary.Body()); err != nil {
			e.log.Errorw("failed to send early-exit summary", "error", err)
		} else {
			e.summary.MarkSent()
		}
	}
	e.log.Infow("engine stopped")
}
