package state

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

type windowSnapshot struct {
	Date    string               `json:"date"`
	Windows map[string][]float64 `json:"windows"`
}

// SaveWindows snapshots the raw SMA windows keyed by trading day. Written
// on graceful shutdown and periodically by the decision loop; used on
// startup only when the price-history log yields nothing for today.
func SaveWindows(path, day string, windows map[string][]float64) error {
	data, err := json.Marshal(windowSnapshot{Date: day, Windows: windows})
	if err != nil {
		return fmt.Errorf("marshal window snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write window snapshot: %w", err)
	}
	return nil
}

// LoadWindows returns the snapshotted windows when the snapshot's stored
// date equals day. A missing, corrupt, or stale snapshot yields nil; a
// stale one is discarded rather than reused so yesterday's prices never
// leak into today's SMA.
func LoadWindows(path, day string, log *zap.SugaredLogger) map[string][]float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorw("failed to load window snapshot", "path", path, "error", err)
		}
		return nil
	}

	var snap windowSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Errorw("window snapshot is not valid JSON, ignoring", "path", path, "error", err)
		return nil
	}
	if snap.Date != day {
		log.Infow("ignoring stale window snapshot", "path", path, "snapshot_date", snap.Date, "today", day)
		return nil
	}
	return snap.Windows
}
