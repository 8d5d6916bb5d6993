package journal

import "time"

// Anomalies summarizes trade-log validation findings. All three classes
// are observability signals: they are logged at WARN and reported, never
// raised as errors.
type Anomalies struct {
	SellsWithoutBuy   int
	DuplicateCloses   int
	SameDayRoundTrips int
}

// Clean reports whether no anomalies were found.
func (a Anomalies) Clean() bool {
	return a.SellsWithoutBuy == 0 && a.DuplicateCloses == 0 && a.SameDayRoundTrips == 0
}

// Validate scans the full trade log for sells with no matching buy
// trade_id, duplicate closes of the same trade_id, and same-calendar-day
// buy/sell round trips. Days are calendar dates in loc, the exchange
// timezone.
func (t *TradeLog) Validate(loc *time.Location) (Anomalies, error) {
	rows, err := t.Rows()
	if err != nil {
		return Anomalies{}, err
	}

	var a Anomalies
	buyDates := make(map[string]string)
	sellCounts := make(map[string]int)

	for _, row := range rows {
		day := row.Time.In(loc).Format("2006-01-02")
		switch row.Action {
		case "buy":
			if row.TradeID != "" {
				buyDates[row.TradeID] = day
			}
		case "sell":
			sellCounts[row.TradeID]++
			buyDay, matched := buyDates[row.TradeID]
			if row.TradeID == "" || !matched {
				a.SellsWithoutBuy++
				t.log.Warnw("validation: sell without matching buy",
					"trade_id", row.TradeID, "symbol", row.Symbol, "timestamp", row.Time)
			}
			if sellCounts[row.TradeID] > 1 {
				a.DuplicateCloses++
				t.log.Warnw("validation: duplicate close", "trade_id", row.TradeID)
			}
			if matched && buyDay == day {
				a.SameDayRoundTrips++
				t.log.Warnw("validation: same-day buy and sell",
					"trade_id", row.TradeID, "day", day)
			}
		}
	}

	t.log.Infow("trade log validation completed",
		"rows", len(rows),
		"sells_without_buy", a.SellsWithoutBuy,
		"duplicate_closes", a.DuplicateCloses,
		"same_day_round_trips", a.SameDayRoundTrips)
	return a, nil
}
