package state

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

type purchaseSnapshot struct {
	Date          string            `json:"date"`
	PurchaseDates map[string]string `json:"purchase_dates"`
}

// PurchaseDates records, per symbol, the trading day a position was
// opened. It exists solely to enforce the same-day-sell guard and is
// cleared at the start of each new trading day.
type PurchaseDates struct {
	path string
	log  *zap.SugaredLogger
	m    map[string]string
}

// LoadPurchaseDates reads the purchase-dates file, discarding it when its
// stored date is not today. Days are exchange-local YYYY-MM-DD strings.
func LoadPurchaseDates(path, today string, log *zap.SugaredLogger) *PurchaseDates {
	p := &PurchaseDates{path: path, log: log, m: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorw("failed to load purchase dates", "path", path, "error", err)
		}
		return p
	}

	var snap purchaseSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Errorw("purchase dates file is not valid JSON, starting fresh", "path", path, "error", err)
		return p
	}
	if snap.Date != today {
		log.Infow("ignoring stale purchase dates", "path", path, "file_date", snap.Date, "today", today)
		return p
	}
	for sym, day := range snap.PurchaseDates {
		p.m[sym] = day
	}
	return p
}

// Mark records that sym was bought on day and persists immediately.
func (p *PurchaseDates) Mark(sym, day string) error {
	p.m[sym] = day
	return p.save(day)
}

// BoughtOn reports whether sym was bought on day.
func (p *PurchaseDates) BoughtOn(sym, day string) bool {
	return p.m[sym] == day
}

// Clear drops all entries at a day rollover and persists the empty set.
func (p *PurchaseDates) Clear(day string) error {
	p.m = make(map[string]string)
	return p.save(day)
}

// Symbols lists the symbols with a recorded purchase date.
func (p *PurchaseDates) Symbols() []string {
	out := make([]string, 0, len(p.m))
	for sym := range p.m {
		out = append(out, sym)
	}
	return out
}

// Save persists the current mapping under the given day. Called from the
// shutdown path so an interrupted session still blocks same-day sells
// after restart.
func (p *PurchaseDates) Save(day string) error {
	return p.save(day)
}

func (p *PurchaseDates) save(day string) error {
	data, err := json.Marshal(purchaseSnapshot{Date: day, PurchaseDates: p.m})
	if err != nil {
		return fmt.Errorf("marshal purchase dates: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write purchase dates: %w", err)
	}
	return nil
}
