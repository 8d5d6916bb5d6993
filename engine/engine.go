// Package engine drives the per-symbol decision loop: fold fresh prices
// into the indicators, compare against the baseline-derived thresholds,
// and turn crossings into broker orders plus journal entries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/marketsentinel/sentinel/broker"
	"github.com/marketsentinel/sentinel/config"
	"github.com/marketsentinel/sentinel/indicators"
	"github.com/marketsentinel/sentinel/journal"
	"github.com/marketsentinel/sentinel/ledger"
	"github.com/marketsentinel/sentinel/market"
	"github.com/marketsentinel/sentinel/report"
	"github.com/marketsentinel/sentinel/retry"
	"github.com/marketsentinel/sentinel/state"
)

// Deps bundles the collaborators the engine operates over. Archive may
// be nil when the SQLite mirror is disabled.
type Deps struct {
	Config    *config.Config
	Log       *zap.SugaredLogger
	Broker    broker.Broker
	Caller    *retry.Caller
	Calendar  *market.Calendar
	Profiles  []Profile
	Stats     *Stats
	Baselines *state.Baselines
	Purchases *state.PurchaseDates
	Ledger    *ledger.Ledger
	TradeLog  *journal.TradeLog
	History   *journal.PriceHistory
	Archive   *journal.Archive
	Summary   *report.Summary
	Sender    report.Sender

	// Now and Sleep override the real clock for simulated sessions.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) bool
}

// Engine is the decision core. It is single-goroutine by construction:
// one polling loop evaluates every profile and symbol in turn, so the
// durable stores never see concurrent writers.
type Engine struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	broker    broker.Broker
	caller    *retry.Caller
	cal       *market.Calendar
	profiles  []Profile
	stats     *Stats
	baselines *state.Baselines
	purchases *state.PurchaseDates
	ledger    *ledger.Ledger
	tradeLog  *journal.TradeLog
	history   *journal.PriceHistory
	archive   *journal.Archive
	summary   *report.Summary
	sender    report.Sender
	policy    state.ResetPolicy

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	lastDay string
}

func New(d Deps) *Engine {
	e := &Engine{
		cfg:       d.Config,
		log:       d.Log,
		broker:    d.Broker,
		caller:    d.Caller,
		cal:       d.Calendar,
		profiles:  d.Profiles,
		stats:     d.Stats,
		baselines: d.Baselines,
		purchases: d.Purchases,
		ledger:    d.Ledger,
		tradeLog:  d.TradeLog,
		history:   d.History,
		archive:   d.Archive,
		summary:   d.Summary,
		sender:    d.Sender,
		policy: state.ResetPolicy{
			MaxAge:    time.Duration(d.Config.Risk.ResetHours) * time.Hour,
			Drift:     d.Config.Risk.BaselineDrift,
			VolFilter: d.Config.Risk.VolatilityFilter,
		},
		now:   time.Now,
		sleep: sleepCtx,
	}
	if d.Now != nil {
		e.now = d.Now
	}
	if d.Sleep != nil {
		e.sleep = d.Sleep
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Fractional shares round to six decimal places, matching the broker's
// order granularity and the journal's float format.
func roundQty(q float64) float64 {
	return math.Round(q*1e6) / 1e6
}

// Tick evaluates one symbol under one profile against the latest quote.
// Broker faults skip the symbol for this cycle; only journal write
// failures surface as errors, since a silent journal gap would corrupt
// recovery.
func (e *Engine) Tick(ctx context.Context, p Profile, sym string, cash float64) error {
	now := e.now()
	today := e.cal.TradingDay(now)

	quote, err := retry.Do(ctx, e.caller, "get_latest_price", func(ctx context.Context) (market.Quote, error) {
		return e.broker.GetLatestPrice(ctx, sym)
	})
	if err != nil {
		e.log.Warnw("no price this cycle, skipping symbol",
			"profile", p.Name, "symbol", sym, "error", err)
		return nil
	}
	price := quote.Price
	if price <= 0 {
		e.log.Warnw("non-positive price, skipping symbol",
			"profile", p.Name, "symbol", sym, "price", price)
		return nil
	}

	ownedQty := 0.0
	pos, err := retry.Do(ctx, e.caller, "get_position", func(ctx context.Context) (broker.Position, error) {
		return e.broker.GetPosition(ctx, sym)
	})
	switch {
	case err == nil:
		ownedQty = pos.Qty
	case broker.IsNotFound(err):
		// flat
	default:
		e.log.Warnw("position lookup failed, skipping symbol",
			"profile", p.Name, "symbol", sym, "error", err)
		return nil
	}

	atr := 0.0
	bars, err := retry.Do(ctx, e.caller, "get_daily_bars", func(ctx context.Context) ([]market.Bar, error) {
		return e.broker.GetDailyBars(ctx, sym, e.cfg.Indicators.ATRPeriod+1)
	})
	if err != nil {
		e.log.Debugw("no daily bars, trading without volatility data",
			"symbol", sym, "error", err)
	} else {
		atr = indicators.ATR(bars, e.cfg.Indicators.ATRPeriod)
	}

	if e.baselines.ShouldReset(sym, price, atr, now, e.policy) {
		if err := e.baselines.Reset(sym, price, now); err != nil {
			return fmt.Errorf("reset baseline for %s: %w", sym, err)
		}
		e.log.Infow("baseline reset", "profile", p.Name, "symbol", sym, "baseline", price)
	}

	// While a position is open its entry price stands in for the stored
	// baseline, so the exit thresholds track the actual trade.
	base, _ := e.baselines.Get(sym)
	basePrice := base.Price
	if ownedQty > 0 {
		if _, lp, ok := e.ledger.Find(sym); ok {
			basePrice = lp.EntryPrice
		}
	}

	if err := e.history.Record(sym, price, basePrice); err != nil {
		e.log.Warnw("failed to record price history", "symbol", sym, "error", err)
	}

	snap := e.stats.Update(sym, price)
	if !snap.SMAReady {
		e.log.Infow("warming up trend filter",
			"profile", p.Name, "symbol", sym, "samples", snap.WindowLen)
		return nil
	}

	buyPrice := basePrice * p.BuyTrigger
	sellPrice := basePrice * p.SellTrigger
	stopPrice := math.Max(basePrice-atr*p.StopMultiplier, 0)
	trendOK := price > snap.SMA

	e.log.Infow("evaluated",
		"profile", p.Name, "symbol", sym,
		"price", price, "baseline", basePrice,
		"buy_below", buyPrice, "sell_above", sellPrice, "stop_below", stopPrice,
		"sma", snap.SMA, "ema_short", snap.EMAShort, "ema_long", snap.EMALong,
		"atr", atr, "trend_ok", trendOK, "owned_qty", ownedQty)

	if ownedQty == 0 && !e.ledger.HasOpen(sym) {
		if price > buyPrice || !trendOK {
			return nil
		}
		if e.cal.IsLunch(now) {
			e.log.Infow("buy signal suppressed during lunch blackout",
				"profile", p.Name, "symbol", sym, "price", price)
			return nil
		}
		return e.buy(ctx, p, sym, today, price, cash)
	}

	if ownedQty > 0 {
		if e.purchases.BoughtOn(sym, today) {
			e.log.Infow("holding, bought earlier today",
				"profile", p.Name, "symbol", sym)
			return nil
		}
		// Target exit wins when a violent bar satisfies both.
		switch {
		case price >= sellPrice:
			return e.sell(ctx, p, sym, ownedQty, price, "target")
		case price <= stopPrice:
			return e.sell(ctx, p, sym, ownedQty, price, "stop")
		}
	}
	return nil
}

func (e *Engine) buy(ctx context.Context, p Profile, sym, today string, price, cash float64) error {
	qty := roundQty(cash * e.cfg.Risk.RiskPct / price)
	if qty <= 0 {
		e.log.Warnw("buy signal with no buying power",
			"profile", p.Name, "symbol", sym, "cash", cash)
		return nil
	}

	// Top-of-book snapshot for the audit trail; absence never blocks the
	// order.
	if book, err := retry.Do(ctx, e.caller, "get_order_book", func(ctx context.Context) (market.Book, error) {
		return e.broker.GetOrderBook(ctx, sym)
	}); err == nil {
		e.log.Infow("order book before buy",
			"symbol", sym, "bid", book.Bid, "ask", book.Ask, "mid", book.Mid(),
			"spread", book.Spread(), "depth_usd", book.DepthUSD)
	}

	_, err := retry.Do(ctx, e.caller, "submit_buy", func(ctx context.Context) (broker.OrderAck, error) {
		return e.broker.SubmitOrder(ctx, broker.OrderRequest{
			Symbol: sym, Side: broker.Buy, Qty: qty, Type: "market", TimeInForce: "day",
		})
	})
	if err != nil {
		if broker.IsRejection(err) {
			e.log.Errorw("buy rejected", "profile", p.Name, "symbol", sym, "error", err)
			return nil
		}
		e.log.Errorw("buy order failed", "profile", p.Name, "symbol", sym, "error", err)
		return nil
	}

	tradeID, err := e.ledger.Open(sym, qty, price)
	if err != nil {
		return fmt.Errorf("record open position for %s: %w", sym, err)
	}
	if err := e.tradeLog.AppendBuy(tradeID, sym, qty, price); err != nil {
		return fmt.Errorf("journal buy for %s: %w", sym, err)
	}
	e.mirror(journal.Row{
		Time: e.now(), Action: "buy", TradeID: tradeID,
		Symbol: sym, Quantity: qty, Price: price,
	})
	if err := e.purchases.Mark(sym, today); err != nil {
		e.log.Warnw("failed to persist purchase date", "symbol", sym, "error", err)
	}

	e.log.Infow("bought", "profile", p.Name, "symbol", sym,
		"qty", qty, "price", price, "trade_id", tradeID)
	e.summary.Add("[%s] BUY %.6f %s @ $%.2f", p.Name, qty, sym, price)
	return nil
}

func (e *Engine) sell(ctx context.Context, p Profile, sym string, qty, price float64, reason string) error {
	_, err := retry.Do(ctx, e.caller, "submit_sell", func(ctx context.Context) (broker.OrderAck, error) {
		return e.broker.SubmitOrder(ctx, broker.OrderRequest{
			Symbol: sym, Side: broker.Sell, Qty: qty, Type: "market", TimeInForce: "day",
		})
	})
	if err != nil {
		if broker.IsRejection(err) {
			e.log.Errorw("sell rejected", "profile", p.Name, "symbol", sym, "error", err)
			return nil
		}
		e.log.Errorw("sell order failed", "profile", p.Name, "symbol", sym, "error", err)
		return nil
	}

	tradeID, profit, err := e.ledger.Close(sym, qty, price)
	if err != nil {
		if errors.Is(err, ledger.ErrNoMatchingPosition) {
			e.log.Warnw("sold position with no matching ledger entry",
				"profile", p.Name, "symbol", sym, "qty", qty)
			return nil
		}
		return fmt.Errorf("record close for %s: %w", sym, err)
	}
	if err := e.tradeLog.AppendSell(tradeID, sym, qty, price, profit); err != nil {
		return fmt.Errorf("journal sell for %s: %w", sym, err)
	}
	e.mirror(journal.Row{
		Time: e.now(), Action: "sell", TradeID: tradeID,
		Symbol: sym, Quantity: qty, Price: price,
		Profit: profit, HasProfit: true,
	})

	e.log.Infow("sold", "profile", p.Name, "symbol", sym, "reason", reason,
		"qty", qty, "price", price, "profit", profit, "trade_id", tradeID)
	e.summary.Add("[%s] SELL (%s) %.6f %s @ $%.2f, P/L $%.2f",
		p.Name, reason, qty, sym, price, profit)
	return nil
}

func (e *Engine) mirror(row journal.Row) {
	if e.archive == nil {
		return
	}
	if err := e.archive.Record(row); err != nil {
		e.log.Warnw("failed to mirror trade to archive",
			"symbol", row.Symbol, "trade_id", row.TradeID, "error", err)
	}
}
