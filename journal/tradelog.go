// Package journal owns the append-only durable logs: the trade log, the
// per-tick price history, and an optional SQLite mirror for queries. Rows
// are never mutated; schema changes migrate the old file aside.
package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var tradeLogHeader = []string{"timestamp", "action", "trade_id", "symbol", "quantity", "entry_price", "price", "profit"}

// TradeLog is the append-only CSV record of every executed buy and sell.
type TradeLog struct {
	path string
	log  *zap.SugaredLogger
	now  func() time.Time
}

// NewTradeLog returns a TradeLog writing to path. Call Migrate before the
// first append.
func NewTradeLog(path string, log *zap.SugaredLogger) *TradeLog {
	return &TradeLog{path: path, log: log, now: time.Now}
}

// Migrate backs up a legacy trade log whose header lacks the trade_id
// column, renaming it to <stem>.legacy_<timestamp>.csv untouched, and
// ensures a fresh log with the current header exists at the original
// path. Returns the legacy path when a migration happened.
func (t *TradeLog) Migrate() (string, error) {
	legacy := ""
	if data, err := os.ReadFile(t.path); err == nil {
		header, _, _ := strings.Cut(string(data), "\n")
		if !strings.Contains(header, "trade_id") {
			ts := t.now().Format("20060102_150405")
			ext := filepath.Ext(t.path)
			stem := strings.TrimSuffix(t.path, ext)
			legacy = fmt.Sprintf("%s.legacy_%s%s", stem, ts, ext)
			if err := os.Rename(t.path, legacy); err != nil {
				return "", fmt.Errorf("migrate trade log: %w", err)
			}
			t.log.Infow("migrated legacy trade log", "from", t.path, "to", legacy)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read trade log: %w", err)
	}

	if _, err := os.Stat(t.path); os.IsNotExist(err) {
		f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return legacy, fmt.Errorf("create trade log: %w", err)
		}
		w := csv.NewWriter(f)
		if err := w.Write(tradeLogHeader); err != nil {
			f.Close()
			return legacy, fmt.Errorf("write trade log header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return legacy, err
		}
		if err := f.Close(); err != nil {
			return legacy, err
		}
		t.log.Infow("initialized trade log", "path", t.path)
	}
	return legacy, nil
}

// AppendBuy records an executed buy. The entry price of a buy is its fill
// price; profit is left empty.
func (t *TradeLog) AppendBuy(tradeID, sym string, qty, price float64) error {
	return t.appendRow("buy", tradeID, sym, qty, f(price), price, "")
}

// AppendSell records an executed sell with its realized profit.
func (t *TradeLog) AppendSell(tradeID, sym string, qty, price, profit float64) error {
	return t.appendRow("sell", tradeID, sym, qty, "", price, f(profit))
}

func (t *TradeLog) appendRow(action, tradeID, sym string, qty float64, entryPrice string, price float64, profit string) error {
	fl, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer fl.Close()

	w := csv.NewWriter(fl)
	if st, err := fl.Stat(); err == nil && st.Size() == 0 {
		if err := w.Write(tradeLogHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		t.now().Format(time.RFC3339),
		action,
		tradeID,
		sym,
		f(qty),
		entryPrice,
		f(price),
		profit,
	}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append trade log: %w", err)
	}
	return nil
}

// Row is one parsed trade-log entry.
type Row struct {
	Time      time.Time
	Action    string
	TradeID   string
	Symbol    string
	Quantity  float64
	Price     float64
	Profit    float64
	HasProfit bool
}

// Rows parses the full trade log, skipping malformed rows.
func (t *TradeLog) Rows() ([]Row, error) {
	fl, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	defer fl.Close()

	r := csv.NewReader(fl)
	r.FieldsPerRecord = -1

	var rows []Row
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.log.Warnw("skipping unreadable trade log row", "error", err)
			continue
		}
		if first {
			first = false
			continue // header
		}
		if len(rec) < len(tradeLogHeader) {
			t.log.Warnw("skipping short trade log row", "fields", len(rec))
			continue
		}
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			t.log.Warnw("skipping trade log row with bad timestamp", "timestamp", rec[0])
			continue
		}
		qty, _ := strconv.ParseFloat(rec[4], 64)
		price, _ := strconv.ParseFloat(rec[6], 64)
		row := Row{
			Time:     ts,
			Action:   rec[1],
			TradeID:  rec[2],
			Symbol:   rec[3],
			Quantity: qty,
			Price:    price,
		}
		if rec[7] != "" {
			if p, err := strconv.ParseFloat(rec[7], 64); err == nil {
				row.Profit = p
				row.HasProfit = true
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// BuysOn returns the symbols with a buy entry dated day in loc. Used at
// startup to re-arm the same-day-sell guard from the trade log.
func (t *TradeLog) BuysOn(day string, loc *time.Location) ([]string, error) {
	rows, err := t.Rows()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		if row.Action != "buy" {
			continue
		}
		if row.Time.In(loc).Format("2006-01-02") != day {
			continue
		}
		if !seen[row.Symbol] {
			seen[row.Symbol] = true
			out = append(out, row.Symbol)
		}
	}
	return out, nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
