package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS trades (
	timestamp TEXT NOT NULL,
	day TEXT NOT NULL,
	action TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	profit REAL
);

CREATE INDEX IF NOT EXISTS idx_trades_day ON trades(day);
CREATE INDEX IF NOT EXISTS idx_trades_trade_id ON trades(trade_id);
`

// Archive mirrors executed trades into SQLite for day/symbol queries.
// The CSV trade log stays canonical; the archive only serves reporting,
// so a failed mirror write is logged, not fatal.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (creating if needed) the archive database.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trade archive: %w", err)
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init trade archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Record mirrors one trade-log row.
func (a *Archive) Record(row Row) error {
	var profit any
	if row.HasProfit {
		profit = row.Profit
	}
	_, err := a.db.Exec(`
		INSERT INTO trades (timestamp, day, action, trade_id, symbol, quantity, price, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Time.Format(time.RFC3339),
		row.Time.Format("2006-01-02"),
		row.Action,
		row.TradeID,
		row.Symbol,
		row.Quantity,
		row.Price,
		profit,
	)
	return err
}

// TradesOn returns the trades executed on the given day, oldest first.
func (a *Archive) TradesOn(day string) ([]Row, error) {
	rows, err := a.db.Query(`
		SELECT timestamp, action, trade_id, symbol, quantity, price, profit
		FROM trades
		WHERE day = ?
		ORDER BY timestamp ASC`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r      Row
			ts     string
			profit sql.NullFloat64
		)
		if err := rows.Scan(&ts, &r.Action, &r.TradeID, &r.Symbol, &r.Quantity, &r.Price, &profit); err != nil {
			return nil, err
		}
		r.Time, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, err
		}
		if profit.Valid {
			r.Profit = profit.Float64
			r.HasProfit = true
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RealizedProfitOn sums the realized profit of sells on the given day.
func (a *Archive) RealizedProfitOn(day string) (float64, error) {
	var total sql.NullFloat64
	err := a.db.QueryRow(`
		SELECT SUM(profit) FROM trades
		WHERE day = ? AND action = 'sell'`, day).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
