package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day in the exchange timezone.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" (24h).
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in clock time %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// minutes returns the time of day as minutes since midnight.
func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

// Calendar answers trading-session questions in the exchange's local
// timezone. All date comparisons (same-day-sell guard, window recovery,
// day rollover) use the exchange calendar date, never UTC.
type Calendar struct {
	loc        *time.Location
	lunchStart ClockTime
	lunchEnd   ClockTime
	close      ClockTime
}

// NewCalendar builds a Calendar for the named IANA timezone.
func NewCalendar(tz string, lunchStart, lunchEnd, close ClockTime) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Calendar{loc: loc, lunchStart: lunchStart, lunchEnd: lunchEnd, close: close}, nil
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// TradingDay returns the exchange-local calendar date for t as YYYY-MM-DD.
func (c *Calendar) TradingDay(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

// IsLunch reports whether t falls inside the lunch blackout window
// [lunchStart, lunchEnd).
func (c *Calendar) IsLunch(t time.Time) bool {
	lt := t.In(c.loc)
	m := lt.Hour()*60 + lt.Minute()
	return m >= c.lunchStart.minutes() && m < c.lunchEnd.minutes()
}

// IsPastClose reports whether t is at or after the market close time.
func (c *Calendar) IsPastClose(t time.Time) bool {
	lt := t.In(c.loc)
	m := lt.Hour()*60 + lt.Minute()
	return m >= c.close.minutes()
}
