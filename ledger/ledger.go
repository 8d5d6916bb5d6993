// Package ledger tracks open positions keyed by unique trade id. The
// ledger is the sole owner of position records: buys create exactly one
// record, sells remove it and realize P&L. Every mutation is persisted
// before the caller proceeds.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/marketsentinel/sentinel/broker"
	"github.com/marketsentinel/sentinel/pkg/id"
)

// ErrNoMatchingPosition is returned by Close when no open record exists
// for the symbol. A logic fault, logged as a warning, never fatal.
var ErrNoMatchingPosition = errors.New("no matching open position")

// Position is one open long position.
type Position struct {
	Symbol     string
	Quantity   float64
	EntryPrice float64
	OpenTime   time.Time
}

type storedPosition struct {
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	OpenTime   string  `json:"open_time"`
}

// Ledger is the durable trade_id→Position store.
type Ledger struct {
	path  string
	log   *zap.SugaredLogger
	now   func() time.Time
	newID func() string
	m     map[string]Position
}

// Load reads the positions file. A missing file yields an empty ledger;
// malformed individual entries are logged and skipped so one bad record
// never blocks startup.
func Load(path string, log *zap.SugaredLogger) *Ledger {
	l := &Ledger{
		path:  path,
		log:   log,
		now:   time.Now,
		newID: id.NewGenerator().New,
		m:     make(map[string]Position),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorw("failed to load positions", "path", path, "error", err)
		}
		return l
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Errorw("positions file is not valid JSON, starting fresh", "path", path, "error", err)
		return l
	}
	for tradeID, msg := range raw {
		var sp storedPosition
		if err := json.Unmarshal(msg, &sp); err != nil {
			log.Warnw("skipping malformed position entry", "trade_id", tradeID, "error", err)
			continue
		}
		openTime, err := time.Parse(time.RFC3339, sp.OpenTime)
		if err != nil {
			log.Warnw("skipping position entry with bad open_time",
				"trade_id", tradeID, "open_time", sp.OpenTime, "error", err)
			continue
		}
		if sp.Symbol == "" || sp.Quantity <= 0 || sp.EntryPrice <= 0 {
			log.Warnw("skipping position entry with invalid fields", "trade_id", tradeID)
			continue
		}
		l.m[tradeID] = Position{
			Symbol:     sp.Symbol,
			Quantity:   sp.Quantity,
			EntryPrice: sp.EntryPrice,
			OpenTime:   openTime,
		}
	}
	return l
}

// HasOpen reports whether sym has an open position. At most one open
// record may exist per symbol; the decision engine must not call Open
// while this returns true.
func (l *Ledger) HasOpen(sym string) bool {
	_, _, ok := l.Find(sym)
	return ok
}

// Find returns the open record for sym, if any.
func (l *Ledger) Find(sym string) (string, Position, bool) {
	for tradeID, pos := range l.m {
		if pos.Symbol == sym {
			return tradeID, pos, true
		}
	}
	return "", Position{}, false
}

// Len returns the number of open positions.
func (l *Ledger) Len() int { return len(l.m) }

// Open records a new position and returns its trade id.
func (l *Ledger) Open(sym string, qty, price float64) (string, error) {
	tradeID := l.newID()
	l.m[tradeID] = Position{
		Symbol:     sym,
		Quantity:   qty,
		EntryPrice: price,
		OpenTime:   l.now(),
	}
	if err := l.save(); err != nil {
		return "", err
	}
	return tradeID, nil
}

// Close removes the open record for sym and returns its trade id and the
// realized profit (exit − entry) × qty. ErrNoMatchingPosition when no
// record exists.
func (l *Ledger) Close(sym string, qty, exitPrice float64) (string, float64, error) {
	tradeID, pos, ok := l.Find(sym)
	if !ok {
		return "", 0, fmt.Errorf("%w for %s", ErrNoMatchingPosition, sym)
	}
	profit := (exitPrice - pos.EntryPrice) * qty
	delete(l.m, tradeID)
	if err := l.save(); err != nil {
		return "", 0, err
	}
	return tradeID, profit, nil
}

// Adopted describes a broker position the ledger started tracking during
// Bootstrap.
type Adopted struct {
	TradeID  string
	Position Position
}

// Bootstrap reconciles broker-reported positions not yet tracked locally
// by synthesizing trade ids for them. Idempotent: symbols already tracked
// and non-positive quantities are skipped.
func (l *Ledger) Bootstrap(external []broker.Position) ([]Adopted, error) {
	var adopted []Adopted
	for _, p := range external {
		if p.Qty <= 0 || l.HasOpen(p.Symbol) {
			continue
		}
		tradeID := l.newID()
		pos := Position{
			Symbol:     p.Symbol,
			Quantity:   p.Qty,
			EntryPrice: p.AvgEntryPrice,
			OpenTime:   l.now(),
		}
		l.m[tradeID] = pos
		if err := l.save(); err != nil {
			return adopted, err
		}
		adopted = append(adopted, Adopted{TradeID: tradeID, Position: pos})
		l.log.Infow("bootstrapped position",
			"symbol", p.Symbol, "qty", p.Qty, "entry_price", p.AvgEntryPrice, "trade_id", tradeID)
	}
	return adopted, nil
}

func (l *Ledger) save() error {
	out := make(map[string]storedPosition, len(l.m))
	for tradeID, pos := range l.m {
		out[tradeID] = storedPosition{
			Symbol:     pos.Symbol,
			Quantity:   pos.Quantity,
			EntryPrice: pos.EntryPrice,
			OpenTime:   pos.OpenTime.Format(time.RFC3339),
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}
