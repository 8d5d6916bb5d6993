package engine

import (
	"github.com/marketsentinel/sentinel/indicators"
)

// StatSnapshot is the derived state emitted for one price sample.
type StatSnapshot struct {
	EMAShort  float64
	EMALong   float64
	SMA       float64
	SMAReady  bool
	WindowLen int
}

// Stats maintains the per-symbol rolling indicators. It has no side
// effects beyond the emitted values; durability of the SMA windows is
// handled by the caller through Windows/Restore.
type Stats struct {
	shortPeriod int
	longPeriod  int
	smaPeriod   int
	symbols     map[string]*symbolStats
}

type symbolStats struct {
	short *indicators.EWMA
	long  *indicators.EWMA
	sma   *indicators.SMA
}

func NewStats(shortPeriod, longPeriod, smaPeriod int) *Stats {
	return &Stats{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		smaPeriod:   smaPeriod,
		symbols:     make(map[string]*symbolStats),
	}
}

func (s *Stats) forSymbol(sym string) *symbolStats {
	ss, ok := s.symbols[sym]
	if !ok {
		ss = &symbolStats{
			short: indicators.NewEWMA(s.shortPeriod),
			long:  indicators.NewEWMA(s.longPeriod),
			sma:   indicators.NewSMA(s.smaPeriod),
		}
		s.symbols[sym] = ss
	}
	return ss
}

// Update folds one price sample into the symbol's indicators and returns
// the derived values. SMAReady is false during warm-up; callers must not
// trade the symbol until it turns true.
func (s *Stats) Update(sym string, price float64) StatSnapshot {
	ss := s.forSymbol(sym)
	ss.short.Update(price)
	ss.long.Update(price)
	ss.sma.Update(price)

	sma, ready := ss.sma.Value()
	return StatSnapshot{
		EMAShort:  ss.short.Value(),
		EMALong:   ss.long.Value(),
		SMA:       sma,
		SMAReady:  ready,
		WindowLen: ss.sma.Len(),
	}
}

// Windows returns a copy of every symbol's raw SMA window for
// snapshotting.
func (s *Stats) Windows() map[string][]float64 {
	out := make(map[string][]float64, len(s.symbols))
	for sym, ss := range s.symbols {
		out[sym] = ss.sma.Samples()
	}
	return out
}

// Restore seeds SMA windows from recovered samples so a restart resumes
// without a multi-hour warm-up blackout. EMAs reseed from the live
// stream.
func (s *Stats) Restore(windows map[string][]float64) {
	for sym, samples := range windows {
		s.forSymbol(sym).sma.Restore(samples)
	}
}
