// Package state holds the per-symbol durable state the decision loop
// depends on: baselines, SMA window snapshots, and purchase dates. Every
// mutation is written through to disk before the next decision reads it.
package state

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"go.uber.org/zap"
)

// Baseline is the reference price percentage moves are measured against.
type Baseline struct {
	Price float64   `json:"price"`
	Time  time.Time `json:"ts"`
}

// ResetPolicy controls when a baseline is overwritten with the current
// price.
type ResetPolicy struct {
	MaxAge    time.Duration // reset unconditionally after this long
	Drift     float64       // fractional price drift needed for a reset
	VolFilter float64       // minimum atr/price for drift to count
}

// Baselines is the durable symbol→baseline store.
type Baselines struct {
	path string
	log  *zap.SugaredLogger
	m    map[string]Baseline
}

// LoadBaselines reads the baseline file. A missing file yields an empty
// store; malformed entries are logged and skipped.
func LoadBaselines(path string, log *zap.SugaredLogger) *Baselines {
	b := &Baselines{path: path, log: log, m: make(map[string]Baseline)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorw("failed to load baselines", "path", path, "error", err)
		}
		return b
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Errorw("baseline file is not valid JSON, starting fresh", "path", path, "error", err)
		return b
	}
	for sym, msg := range raw {
		var bl Baseline
		if err := json.Unmarshal(msg, &bl); err != nil || bl.Price <= 0 {
			log.Warnw("skipping malformed baseline entry", "symbol", sym, "error", err)
			continue
		}
		b.m[sym] = bl
	}
	return b
}

// Get returns the stored baseline for sym.
func (b *Baselines) Get(sym string) (Baseline, bool) {
	bl, ok := b.m[sym]
	return bl, ok
}

// ShouldReset applies the reset policy: no baseline yet, baseline older
// than MaxAge, or price drift beyond Drift while volatility (atr/price)
// clears VolFilter. Drift alone never resets in a low-volatility regime,
// so the baseline does not chase a choppy-but-flat market.
func (b *Baselines) ShouldReset(sym string, price, atr float64, now time.Time, p ResetPolicy) bool {
	bl, ok := b.m[sym]
	if !ok {
		return true
	}
	if now.Sub(bl.Time) > p.MaxAge {
		return true
	}
	if math.Abs(price-bl.Price)/bl.Price > p.Drift {
		if atr > 0 && atr/price > p.VolFilter {
			return true
		}
	}
	return false
}

// Reset overwrites the baseline for sym and persists the store.
func (b *Baselines) Reset(sym string, price float64, now time.Time) error {
	b.m[sym] = Baseline{Price: price, Time: now}
	return b.save()
}

func (b *Baselines) save() error {
	data, err := json.MarshalIndent(b.m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baselines: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write baselines: %w", err)
	}
	return nil
}
