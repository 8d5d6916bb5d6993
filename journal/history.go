package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var historyHeader = []string{"timestamp", "symbol", "price", "baseline"}

// PriceHistory is the append-only per-tick price log. Besides auditing,
// it is the preferred source for rebuilding SMA windows after a restart:
// it holds the exact samples the windows saw.
type PriceHistory struct {
	path string
	log  *zap.SugaredLogger
	now  func() time.Time
}

// NewPriceHistory returns a PriceHistory writing to path.
func NewPriceHistory(path string, log *zap.SugaredLogger) *PriceHistory {
	return &PriceHistory{path: path, log: log, now: time.Now}
}

// Record appends one observation together with the baseline in effect.
func (h *PriceHistory) Record(sym string, price, baseline float64) error {
	fl, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open price history: %w", err)
	}
	defer fl.Close()

	w := csv.NewWriter(fl)
	if st, err := fl.Stat(); err == nil && st.Size() == 0 {
		if err := w.Write(historyHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		h.now().Format(time.RFC3339),
		sym,
		f(price),
		f(baseline),
	}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append price history: %w", err)
	}
	return nil
}

// LoadWindows rebuilds per-symbol SMA windows from today's history rows.
// Only rows dated day in loc count; each window keeps the most recent
// period samples in chronological order. Missing file yields nil;
// malformed rows are skipped.
func (h *PriceHistory) LoadWindows(day string, loc *time.Location, period int) map[string][]float64 {
	fl, err := os.Open(h.path)
	if err != nil {
		if !os.IsNotExist(err) {
			h.log.Errorw("failed to open price history", "path", h.path, "error", err)
		}
		return nil
	}
	defer fl.Close()

	r := csv.NewReader(fl)
	r.FieldsPerRecord = -1

	windows := make(map[string][]float64)
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.log.Warnw("skipping unreadable price history row", "error", err)
			continue
		}
		if first {
			first = false
			continue
		}
		if len(rec) < 3 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			continue
		}
		if ts.In(loc).Format("2006-01-02") != day {
			continue
		}
		price, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			continue
		}
		sym := rec[1]
		w := append(windows[sym], price)
		if len(w) > period {
			w = w[1:]
		}
		windows[sym] = w
	}
	if len(windows) == 0 {
		return nil
	}
	return windows
}
